package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/wallet-engine/internal/auth"
)

func whoami(w http.ResponseWriter, r *http.Request) {
	u, _ := FromCtx(r.Context())
	_, _ = w.Write([]byte(u.UserID + "/" + u.Role))
}

func TestAuth(t *testing.T) {
	tm := auth.NewTokenManager("a", "r", "wallet-test", time.Minute, time.Hour)
	access, refresh, _, err := tm.GeneratePair("u-1", auth.RoleAdmin)
	require.NoError(t, err)

	h := NewAuthMiddleware(tm, "prod").Auth(http.HandlerFunc(whoami))
	cases := []struct {
		header string
		status int
		body   string
	}{
		{"Bearer " + access, http.StatusOK, "u-1/admin"},
		{"bearer " + access, http.StatusOK, "u-1/admin"},
		{"Bearer " + refresh, http.StatusUnauthorized, ""},
		{"Bearer dev-someone", http.StatusUnauthorized, ""},
		{"", http.StatusUnauthorized, ""},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, c.status, rec.Code, c.header)
		if c.body != "" {
			assert.Equal(t, c.body, rec.Body.String())
		}
	}
}

func TestAuthDevShortcut(t *testing.T) {
	tm := auth.NewTokenManager("a", "r", "wallet-test", time.Minute, time.Hour)
	h := NewAuthMiddleware(tm, "dev").Auth(http.HandlerFunc(whoami))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer dev-alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice/user", rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(auth.RoleAdmin)(http.HandlerFunc(whoami))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithUser(req.Context(), UserCtx{UserID: "u", Role: auth.RoleUser})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(WithUser(req.Context(), UserCtx{UserID: "u", Role: auth.RoleAdmin})))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", given)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, given, seen)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
