package handlers

import (
	"net/http"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/api/httpx"
	"github.com/baharkarakas/wallet-engine/internal/auth"
)

// AuthHandler only refreshes tokens; users sign in with the identity
// service, which shares the signing secrets.
type AuthHandler struct {
	TM     *auth.TokenManager
	AppEnv string
}

func NewAuthHandler(tm *auth.TokenManager, appEnv string) *AuthHandler {
	return &AuthHandler{TM: tm, AppEnv: appEnv}
}

type tokenResp struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

func (h *AuthHandler) issue(w http.ResponseWriter, userID, role string) {
	access, refresh, exp, err := h.TM.GeneratePair(userID, role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(exp).Truncate(time.Second).Seconds()),
	})
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if !bind(w, r, &req) {
		return
	}
	claims, isRefresh, err := h.TM.ParseAny(req.RefreshToken)
	if err != nil || !isRefresh {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
		return
	}
	h.issue(w, claims.UserID, claims.Role)
}

type devLoginReq struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=user admin"`
}

// DevLogin mints tokens for any user id. Only routed when APP_ENV=dev.
func (h *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	if h.AppEnv != "dev" {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found", nil)
		return
	}
	var req devLoginReq
	if !bind(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleUser
	}
	h.issue(w, req.UserID, req.Role)
}
