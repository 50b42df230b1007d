// AngelaMos | 2026
// errors.go

package apiclient

import (
	"errors"
	"fmt"
)

// ErrSignedOut marks a terminal authentication failure: the client has
// cleared its token, reset the refresh coordinator, and fired the
// sign-out hook. No retry will follow.
var ErrSignedOut = errors.New("signed out")

// APIError is a structured error returned by the server's JSON envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// IsAPIError unwraps err into an *APIError when one is present.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
