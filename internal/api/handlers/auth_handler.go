package handlers

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"courier/internal/pkg/errors"
	"courier/internal/platform/auth"
	"courier/internal/platform/config"
)

type AuthHandler struct {
	adminCfg config.AdminConfig
	tokenSvc *auth.TokenService
}

func NewAuthHandler(adminCfg config.AdminConfig, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{adminCfg: adminCfg, tokenSvc: tokenSvc}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// Login verifies the bootstrap admin credential and issues an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Username != h.adminCfg.Username {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid credentials", nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.adminCfg.PasswordHash), []byte(req.Password)); err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.tokenSvc.GenerateAccessToken(req.Username, "admin")
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue token", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{AccessToken: token})
}
