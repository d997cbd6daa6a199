package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/baharkarakas/wallet-engine/internal/api/httpx"
	"github.com/baharkarakas/wallet-engine/internal/auth"
	"github.com/baharkarakas/wallet-engine/internal/logger"
)

type userKey struct{}

// UserCtx is the verified caller.
type UserCtx struct {
	UserID string
	Role   string
}

func (u UserCtx) IsAdmin() bool { return u.Role == auth.RoleAdmin }

func WithUser(ctx context.Context, u UserCtx) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func FromCtx(ctx context.Context) (UserCtx, bool) {
	u, ok := ctx.Value(userKey{}).(UserCtx)
	return u, ok && u.UserID != ""
}

type AuthMiddleware struct {
	TM     *auth.TokenManager
	AppEnv string
}

func NewAuthMiddleware(tm *auth.TokenManager, appEnv string) *AuthMiddleware {
	return &AuthMiddleware{TM: tm, AppEnv: appEnv}
}

// bearer reads the token from the Authorization header. Browsers cannot set
// headers on a websocket handshake, so upgrades may pass ?access_token=.
func bearer(r *http.Request) string {
	ah := r.Header.Get("Authorization")
	if len(ah) > 7 && strings.EqualFold(ah[:7], "bearer ") {
		return strings.TrimSpace(ah[7:])
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// Auth accepts `Bearer <JWT access token>`. In dev, `Bearer dev-<user id>`
// is also accepted as a plain user.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
			return
		}

		var u UserCtx
		if m.AppEnv == "dev" && strings.HasPrefix(token, "dev-") {
			u = UserCtx{UserID: strings.TrimPrefix(token, "dev-"), Role: auth.RoleUser}
		} else {
			claims, err := m.TM.ParseAccess(token)
			if err != nil {
				slog.DebugContext(r.Context(), "token rejected", "err", err)
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid access token", nil)
				return
			}
			u = UserCtx{UserID: claims.UserID, Role: claims.Role}
		}

		ctx := WithUser(r.Context(), u)
		ctx = logger.With(ctx, slog.String("user_id", u.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
