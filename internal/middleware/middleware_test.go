// AngelaMos | 2026
// middleware_test.go

package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
)

type tokens map[string]error

func (t tokens) VerifyAccessToken(_ context.Context, token string) (*middleware.AccessTokenClaims, error) {
	err, ok := t[token]
	if !ok {
		return nil, core.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	return &middleware.AccessTokenClaims{UserID: token, Username: token}, nil
}

type admins map[string]error

func (a admins) VerifyAdmin(_ context.Context, userID string) (bool, error) {
	err, ok := a[userID]
	return ok && err == nil, err
}

var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	core.OK(w, map[string]string{"user_id": middleware.GetUserID(r.Context())})
})

func send(t *testing.T, h http.Handler, token string) (int, core.Response, http.Header) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp core.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp, rec.Header()
}

func TestAuthenticator(t *testing.T) {
	h := middleware.Authenticator(tokens{
		"ann":     nil,
		"expired": core.ErrTokenExpired,
		"revoked": core.ErrTokenRevoked,
	})(echoUser)

	code, resp, _ := send(t, h, "")
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	code, resp, _ = send(t, h, "expired")
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "TOKEN_EXPIRED", resp.Error.Code)

	code, resp, _ = send(t, h, "revoked")
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "TOKEN_REVOKED", resp.Error.Code)

	code, resp, _ = send(t, h, "ann")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ann", resp.Data.(map[string]any)["user_id"])
}

func TestRequireAdminChecksEveryRequest(t *testing.T) {
	live := admins{"root": nil, "flaky": errors.New("db down")}
	h := middleware.Authenticator(tokens{"root": nil, "ann": nil, "flaky": nil})(
		middleware.RequireAdmin(live)(echoUser),
	)

	code, _, _ := send(t, h, "root")
	require.Equal(t, http.StatusOK, code)

	code, resp, _ := send(t, h, "ann")
	require.Equal(t, http.StatusForbidden, code)
	require.Equal(t, "FORBIDDEN", resp.Error.Code)

	code, _, _ = send(t, h, "flaky")
	require.Equal(t, http.StatusInternalServerError, code)

	delete(live, "root")
	code, _, _ = send(t, h, "root")
	require.Equal(t, http.StatusForbidden, code)
}

func TestLocalRateLimitPerUser(t *testing.T) {
	limiter := middleware.NewRateLimiter(nil, middleware.RateLimitConfig{
		Name:    "purchase",
		Limit:   middleware.PerHour(2, 2),
		KeyFunc: middleware.KeyByUser,
	})
	h := middleware.Authenticator(tokens{"ann": nil, "ben": nil})(limiter.Handler(echoUser))

	for i := 0; i < 2; i++ {
		code, _, headers := send(t, h, "ann")
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "2", headers.Get("X-RateLimit-Limit"))
	}

	code, resp, headers := send(t, h, "ann")
	require.Equal(t, http.StatusTooManyRequests, code)
	require.Equal(t, "RATE_LIMITED", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "Purchase limit reached")
	require.NotEmpty(t, headers.Get("Retry-After"))

	code, _, _ = send(t, h, "ben")
	require.Equal(t, http.StatusOK, code)
}
