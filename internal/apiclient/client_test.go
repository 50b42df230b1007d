// AngelaMos | 2026
// client_test.go

package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // test server
	_ = json.NewEncoder(w).Encode(body)
}

func writeExpired(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    "TOKEN_EXPIRED",
			"message": "token has expired",
		},
	})
}

func writeStats(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"total": 4, "active": 3, "blocked": 1, "totalKeys": 500,
		},
	})
}

func writeRefreshSuccess(w http.ResponseWriter, token string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"user": map[string]string{"id": "nd-1", "role": "nd"},
			"tokens": map[string]any{
				"accessToken": token,
				"tokenType":   "Bearer",
				"expiresIn":   900,
			},
		},
	})
}

func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()

	client, err := New(serverURL, opts...)
	require.NoError(t, err)
	return client
}

func TestConcurrentExpiredRequestsRefreshOnce(t *testing.T) {
	const concurrency = 8

	freshToken := validToken(t)
	var refreshCalls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/refresh-token":
				refreshCalls.Add(1)
				// slow refresh widens the window in which all other
				// callers must queue
				time.Sleep(50 * time.Millisecond)
				writeRefreshSuccess(w, freshToken)
			case "/nd/ss-stats":
				if r.Header.Get("Authorization") == "Bearer "+freshToken {
					writeStats(w)
					return
				}
				writeExpired(w)
			default:
				http.NotFound(w, r)
			}
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.store.SetToken(expiredToken(t))

	var wg sync.WaitGroup
	errs := make([]error, concurrency)
	for i := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = client.SsStats(context.Background())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int64(1), refreshCalls.Load(),
		"exactly one refresh call for one expiry event")
	assert.Equal(t, freshToken, client.Token())
}

func TestRefreshFailureRejectsAllAndSignsOut(t *testing.T) {
	const concurrency = 3

	var refreshCalls atomic.Int64
	var signOuts atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/refresh-token":
				refreshCalls.Add(1)
				time.Sleep(50 * time.Millisecond)
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"success": false,
					"error": map[string]string{
						"code":    "TOKEN_REVOKED",
						"message": "refresh token revoked",
					},
				})
			default:
				writeExpired(w)
			}
		}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithSignOutHook(func() { signOuts.Add(1) }),
	)
	client.store.SetToken(expiredToken(t))

	var wg sync.WaitGroup
	errs := make([]error, concurrency)
	for i := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = client.SsStats(context.Background())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.ErrorIs(t, err, ErrSignedOut, "request %d", i)
	}
	assert.Equal(t, int64(1), refreshCalls.Load(),
		"no second refresh after a terminal failure")
	assert.Empty(t, client.Token(), "token cleared on terminal failure")
	assert.GreaterOrEqual(t, signOuts.Load(), int64(1))
}

func TestExpiredCodeOnUnexpiredTokenSignsOutWithoutRefresh(t *testing.T) {
	// The server insists the token expired while the client's clock says it
	// has not. Refreshing on a clock dispute risks a storm, so the client
	// treats it as terminal.
	var refreshCalls atomic.Int64
	signedOut := false

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/refresh-token" {
				refreshCalls.Add(1)
			}
			writeExpired(w)
		}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithSignOutHook(func() { signedOut = true }),
	)
	client.store.SetToken(validToken(t))

	_, err := client.SsStats(context.Background())
	assert.ErrorIs(t, err, ErrSignedOut)
	assert.Zero(t, refreshCalls.Load(),
		"an expired-token 401 on an unexpired token is not refreshable")
	assert.True(t, signedOut)
	assert.Empty(t, client.Token())
}

func TestRevokedSessionErrorPropagatesWithoutRefresh(t *testing.T) {
	// Only the expired-token error code enters the refresh machinery; a
	// revocation 401 reaches the caller with the server's own error intact.
	var refreshCalls atomic.Int64
	signedOut := false

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/refresh-token" {
				refreshCalls.Add(1)
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error": map[string]string{
					"code":    "TOKEN_REVOKED",
					"message": "session revoked",
				},
			})
		}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithSignOutHook(func() { signedOut = true }),
	)
	stored := validToken(t)
	client.store.SetToken(stored)

	_, err := client.SsStats(context.Background())
	require.Error(t, err)

	apiErr, ok := IsAPIError(err)
	require.True(t, ok, "revocation must surface as APIError, got %v", err)
	assert.Equal(t, "TOKEN_REVOKED", apiErr.Code)
	assert.Equal(t, "session revoked", apiErr.Message)
	assert.Zero(t, refreshCalls.Load())
	assert.False(t, signedOut)
	assert.Equal(t, stored, client.Token(), "token left in place")
}

func TestLoginFailureKeepsServerError(t *testing.T) {
	var refreshCalls atomic.Int64
	signedOut := false

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/refresh-token" {
				refreshCalls.Add(1)
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error": map[string]string{
					"code":    "UNAUTHORIZED",
					"message": "invalid email or password",
				},
			})
		}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithSignOutHook(func() { signedOut = true }),
	)

	_, err := client.Login(context.Background(), "nd@example.com", "wrong")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSignedOut,
		"bad credentials are a caller error, not a session event")

	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
	assert.Equal(t, "invalid email or password", apiErr.Message)
	assert.Zero(t, refreshCalls.Load())
	assert.False(t, signedOut)
}

func TestLateUnauthorizedAfterRefreshReplaysWithNewToken(t *testing.T) {
	// Two callers go out with the same expired token. The first 401 returns
	// promptly and its caller refreshes; the second 401 straggles in well
	// after the new token is stored. The straggler must replay with the
	// stored token instead of judging it and tearing the session down.
	freshToken := validToken(t)
	staleToken := expiredToken(t)

	var refreshCalls, signOuts atomic.Int64
	var staleStats atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/refresh-token":
				refreshCalls.Add(1)
				time.Sleep(50 * time.Millisecond)
				writeRefreshSuccess(w, freshToken)
			case "/nd/ss-stats":
				if r.Header.Get("Authorization") == "Bearer "+freshToken {
					writeStats(w)
					return
				}
				if staleStats.Add(1) > 1 {
					// straggling 401, delivered after the refresh is done
					time.Sleep(250 * time.Millisecond)
				}
				writeExpired(w)
			default:
				http.NotFound(w, r)
			}
		}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithSignOutHook(func() { signOuts.Add(1) }),
	)
	client.store.SetToken(staleToken)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = client.SsStats(context.Background())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int64(1), refreshCalls.Load())
	assert.Zero(t, signOuts.Load(),
		"a stale 401 after a successful refresh must not end the session")
	assert.Equal(t, freshToken, client.Token())
}

func TestUnauthorizedWithNoTokenSignsOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			writeExpired(w)
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.SsStats(context.Background())
	assert.ErrorIs(t, err, ErrSignedOut)
}

func TestMalformedStoredTokenSignsOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			writeExpired(w)
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.store.SetToken("garbage-not-a-jwt")

	_, err := client.SsStats(context.Background())
	assert.ErrorIs(t, err, ErrSignedOut)
	assert.Empty(t, client.Token())
}

func TestRequestRetriedAtMostOnce(t *testing.T) {
	// The refresh succeeds but the replayed request still fails with 401;
	// the failure must propagate without a second refresh cycle.
	var refreshCalls, statsCalls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/refresh-token":
				refreshCalls.Add(1)
				writeRefreshSuccess(w, expiredToken(t))
			case "/nd/ss-stats":
				statsCalls.Add(1)
				writeExpired(w)
			default:
				http.NotFound(w, r)
			}
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.store.SetToken(expiredToken(t))

	_, err := client.SsStats(context.Background())

	require.Error(t, err)
	apiErr, ok := IsAPIError(err)
	require.True(t, ok, "second 401 propagates as APIError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, int64(1), refreshCalls.Load())
	assert.Equal(t, int64(2), statsCalls.Load(),
		"original request plus exactly one replay")
}

func TestRefreshCooldownIsTerminal(t *testing.T) {
	var refreshCalls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/refresh-token":
				refreshCalls.Add(1)
				writeRefreshSuccess(w, expiredToken(t))
			default:
				writeExpired(w)
			}
		}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithRefreshCooldown(time.Minute),
	)
	client.store.SetToken(expiredToken(t))

	// First call: refreshes once, replay still 401s, error propagates.
	_, err := client.SsStats(context.Background())
	require.Error(t, err)
	require.Equal(t, int64(1), refreshCalls.Load())

	// Second call lands inside the cooldown window with another expired
	// token: terminal, no refresh storm.
	_, err = client.SsStats(context.Background())
	assert.ErrorIs(t, err, ErrSignedOut)
	assert.Equal(t, int64(1), refreshCalls.Load(),
		"cooldown must block a second refresh attempt")
}

func TestIndependentClientsDoNotShareRefreshState(t *testing.T) {
	var refreshCalls atomic.Int64
	freshToken := validToken(t)

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/refresh-token":
				refreshCalls.Add(1)
				writeRefreshSuccess(w, freshToken)
			case "/nd/ss-stats":
				if r.Header.Get("Authorization") == "Bearer "+freshToken {
					writeStats(w)
					return
				}
				writeExpired(w)
			default:
				http.NotFound(w, r)
			}
		}))
	defer server.Close()

	a := newTestClient(t, server.URL)
	b := newTestClient(t, server.URL)
	a.store.SetToken(expiredToken(t))
	b.store.SetToken(expiredToken(t))

	_, errA := a.SsStats(context.Background())
	_, errB := b.SsStats(context.Background())

	assert.NoError(t, errA)
	assert.NoError(t, errB)
	assert.Equal(t, int64(2), refreshCalls.Load(),
		"each client coordinates its own refresh")
}

func TestAPIErrorPropagation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error": map[string]string{
					"code":    "INSUFFICIENT_BALANCE",
					"message": "insufficient balance: requested 900, available 500",
				},
			})
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.store.SetToken(validToken(t))

	err := client.TransferKeys(context.Background(), "ss-1", 900, "")
	require.Error(t, err)

	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "INSUFFICIENT_BALANCE", apiErr.Code)
	assert.Contains(t, apiErr.Message, "requested 900, available 500")
}

func TestLoginStoresToken(t *testing.T) {
	token := validToken(t)

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/login", r.URL.Path)
			writeRefreshSuccess(w, token)
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	resp, err := client.Login(context.Background(), "nd@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, token, resp.Tokens.AccessToken)
	assert.Equal(t, token, client.Token())
}

func TestExportReturnsRawCSV(t *testing.T) {
	csvBody := "Date,Type,Quantity\n2026-08-01,Sent,300\n"

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/nd/key-transfer-logs/export", r.URL.Path)
			w.Header().Set("Content-Type", "text/csv")
			//nolint:errcheck // test server
			_, _ = w.Write([]byte(csvBody))
		}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	client.store.SetToken(validToken(t))

	data, err := client.ExportKeyTransferLogs(context.Background(), LogQuery{})
	require.NoError(t, err)
	assert.Equal(t, csvBody, string(data))
}
