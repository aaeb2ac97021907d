package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "courier/internal/api/context"
	"courier/internal/pkg/errors"
	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

// EnterpriseHandler covers the provisioning surface: enterprises, learners
// and the memberships that drive event fan-out.
type EnterpriseHandler struct {
	enterprises *repositories.EnterpriseRepository
	users       *repositories.UserRepository
}

func NewEnterpriseHandler(enterprises *repositories.EnterpriseRepository, users *repositories.UserRepository) *EnterpriseHandler {
	return &EnterpriseHandler{enterprises: enterprises, users: users}
}

func (h *EnterpriseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name is required", nil)
		return
	}

	enterprise := &models.Enterprise{Name: req.Name, Country: req.Country}
	if err := h.enterprises.Create(enterprise); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(enterprise)
}

func (h *EnterpriseHandler) Get(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	enterprise, err := h.enterprises.GetByID(params.ByName("enterprise_id"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Enterprise not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(enterprise)
}

func (h *EnterpriseHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	enterpriseID := params.ByName("enterprise_id")

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if _, err := h.enterprises.GetByID(enterpriseID); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Enterprise not found", nil)
		return
	}
	if _, err := h.users.GetByID(req.UserID); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "User not found", nil)
		return
	}

	if err := h.enterprises.AddMember(enterpriseID, req.UserID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *EnterpriseHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		SSO      []struct {
			Provider string `json:"provider"`
			UID      string `json:"uid"`
			Region   string `json:"region"`
			Country  string `json:"country"`
		} `json:"sso_accounts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Username == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "username is required", nil)
		return
	}

	user := &models.User{Username: req.Username, Email: req.Email}
	if err := h.users.Create(user); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	for _, sso := range req.SSO {
		account := &models.SSOAccount{
			UserID:   user.ID,
			Provider: sso.Provider,
			UID:      sso.UID,
			Region:   sso.Region,
			Country:  sso.Country,
		}
		if err := h.users.CreateSSOAccount(account); err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}
