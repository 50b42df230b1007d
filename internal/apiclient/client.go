// AngelaMos | 2026
// client.go

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

const refreshPath = "/auth/refresh-token"

const defaultTimeout = 30 * time.Second

// Client is an authenticated HTTP client for the key licensing API. It
// attaches the bearer token to every request and recovers from token
// expiry transparently: the first caller to hit an expired-token 401
// performs the refresh while concurrent callers queue and replay in
// arrival order. Each request is retried at most once.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       TokenStore
	coord       *coordinator
	cooldown    time.Duration
	signOutHook func()
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Client)

// WithHTTPClient substitutes the underlying http.Client. A cookie jar is
// installed if the given client has none, since the refresh token travels
// as an HTTP-only cookie.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// WithSignOutHook registers a callback fired after a terminal auth
// failure clears the client state, the navigation-to-login analog.
func WithSignOutHook(hook func()) Option {
	return func(c *Client) { c.signOutHook = hook }
}

func WithRefreshCooldown(d time.Duration) Option {
	return func(c *Client) { c.cooldown = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		store:    NewMemoryStore(),
		cooldown: DefaultRefreshCooldown,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	c.coord = newCoordinator(c.cooldown)

	return c, nil
}

// SignOut clears the stored token and all refresh-coordination state,
// rejects any queued callers, and fires the sign-out hook.
func (c *Client) SignOut() {
	c.store.Clear()
	c.coord.reset(fmt.Errorf("session terminated: %w", ErrSignedOut))
	if c.signOutHook != nil {
		c.signOutHook()
	}
}

// codeTokenExpired is the server's error code for an access token that
// failed verification because its expiry passed. Only this 401 variant is
// recoverable through refresh; any other 401 (bad credentials, revoked
// session) carries meaning the caller needs and propagates unchanged.
const codeTokenExpired = "TOKEN_EXPIRED"

// do executes one API call. On an expired-token 401 it runs the refresh
// state machine and replays the request exactly once with the new token.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	body, out any,
) error {
	sent := c.store.Token()
	err := c.send(ctx, method, path, body, out, sent)
	if err == nil {
		return nil
	}

	apiErr, ok := IsAPIError(err)
	if !ok || apiErr.Status != http.StatusUnauthorized ||
		apiErr.Code != codeTokenExpired {
		return err
	}

	token, refreshErr := c.handleUnauthorized(ctx, sent)
	if refreshErr != nil {
		return refreshErr
	}

	// Single replay with the refreshed token. A second 401 propagates
	// as-is; no request is ever retried twice.
	return c.send(ctx, method, path, body, out, token)
}

// handleUnauthorized decides whether an expired-token 401 is recoverable
// and, if so, returns the refreshed token to replay with. sentToken is the
// token the failing request actually carried; if the store has moved on
// since, a concurrent caller already refreshed and the stored token is
// replayed directly. Terminal outcomes sign the client out before
// returning.
func (c *Client) handleUnauthorized(
	ctx context.Context,
	sentToken string,
) (string, error) {
	stored := c.store.Token()
	if stored != "" && stored != sentToken {
		return stored, nil
	}
	if stored == "" {
		c.SignOut()
		return "", fmt.Errorf("unauthorized with no stored token: %w", ErrSignedOut)
	}

	claims, err := ParseClaims(stored)
	if err != nil {
		c.SignOut()
		return "", fmt.Errorf("unauthorized with unreadable token: %w", ErrSignedOut)
	}

	// The server says the token expired but the local clock disagrees.
	// Refreshing on a clock dispute risks an immediate repeat, so this is
	// treated as terminal.
	if !claims.Expired(c.now()) {
		c.SignOut()
		return "", fmt.Errorf("unauthorized without expiry: %w", ErrSignedOut)
	}

	role, wait := c.coord.begin(c.now())
	switch role {
	case beginWait:
		select {
		case outcome := <-wait:
			if outcome.err != nil {
				return "", outcome.err
			}
			return outcome.token, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}

	case beginCooled:
		c.SignOut()
		return "", fmt.Errorf("refresh attempted too recently: %w", ErrSignedOut)

	default:
		token, refreshErr := c.refresh(ctx)
		if refreshErr != nil {
			c.logger.Warn("token refresh failed", "error", refreshErr)
			failure := fmt.Errorf("token refresh failed: %w", ErrSignedOut)
			c.coord.finish(refreshOutcome{err: failure})
			c.SignOut()
			return "", failure
		}

		c.store.SetToken(token)
		c.coord.finish(refreshOutcome{token: token})
		return token, nil
	}
}

// refresh calls the refresh endpoint. The refresh context is the HTTP-only
// cookie held by the client's jar; no bearer token is sent.
func (c *Client) refresh(ctx context.Context) (string, error) {
	var resp AuthResponse
	if err := c.send(ctx, http.MethodPost, refreshPath, nil, &resp, ""); err != nil {
		return "", err
	}
	if resp.Tokens.AccessToken == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}
	return resp.Tokens.AccessToken, nil
}

type successEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// send performs one HTTP round trip and decodes the response envelope.
// When out is *[]byte and the response is not JSON, the raw body is
// returned instead (CSV export).
func (c *Client) send(
	ctx context.Context,
	method, path string,
	body, out any,
	token string,
) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		//nolint:errcheck // nothing useful to do with a close error here
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			Status:  resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
		}
		var envelope errorEnvelope
		if jsonErr := json.Unmarshal(respBody, &envelope); jsonErr == nil &&
			envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}

	if raw, ok := out.(*[]byte); ok &&
		!strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		*raw = respBody
		return nil
	}

	var envelope successEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if envelope.Data == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}

	return nil
}
