package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "courier/internal/api/context"
	"courier/internal/engine/webhooks"
	"courier/internal/pkg/errors"
	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

type ConfigHandler struct {
	configs     *repositories.WebhookConfigRepository
	enterprises *repositories.EnterpriseRepository
}

func NewConfigHandler(configs *repositories.WebhookConfigRepository, enterprises *repositories.EnterpriseRepository) *ConfigHandler {
	return &ConfigHandler{configs: configs, enterprises: enterprises}
}

type ConfigRequest struct {
	Region                  string  `json:"region"`
	WebhookURL              *string `json:"webhook_url"`
	AuthToken               *string `json:"auth_token"`
	TokenAPIURL             *string `json:"token_api_url"`
	ClientID                *string `json:"client_id"`
	ClientSecret            *string `json:"client_secret"`
	ProviderName            *string `json:"provider_name"`
	TimeoutSeconds          *int    `json:"timeout_seconds"`
	RetryAttempts           *int    `json:"retry_attempts"`
	MaxRequestsPerMinute    *int    `json:"max_requests_per_minute"`
	EnrollmentEventsEnabled *bool   `json:"enrollment_events_enabled"`
	Active                  *bool   `json:"active"`
}

func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	enterpriseID := params.ByName("enterprise_id")

	if _, err := h.enterprises.GetByID(enterpriseID); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Enterprise not found", nil)
		return
	}

	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	cfg := &models.WebhookConfiguration{
		EnterpriseID:            enterpriseID,
		Region:                  req.Region,
		TimeoutSeconds:          30,
		RetryAttempts:           3,
		MaxRequestsPerMinute:    100,
		EnrollmentEventsEnabled: true,
		Active:                  true,
	}
	applyConfigRequest(cfg, &req)

	if err := webhooks.ValidateConfiguration(cfg); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.configs.Create(cfg); err != nil {
		if repositories.IsUniqueViolation(err) {
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeConflict, "Configuration already exists for this region", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(cfg)
}

func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	enterpriseID := params.ByName("enterprise_id")

	configs, err := h.configs.ListByEnterprise(enterpriseID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(configs)
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.load(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// Update revalidates the merged configuration before persisting; a change
// that would make the destination unsafe is rejected whole.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.load(w, r)
	if !ok {
		return
	}

	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	applyConfigRequest(cfg, &req)

	if err := webhooks.ValidateConfiguration(cfg); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.configs.Update(cfg); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// Delete deactivates rather than removes; routing filters on active.
func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.configs.Deactivate(cfg.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConfigHandler) load(w http.ResponseWriter, r *http.Request) (*models.WebhookConfiguration, bool) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	id := params.ByName("config_id")

	cfg, err := h.configs.GetByID(id)
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Configuration not found", nil)
		return nil, false
	}
	if cfg.EnterpriseID != params.ByName("enterprise_id") {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Configuration not found", nil)
		return nil, false
	}
	return cfg, true
}

func applyConfigRequest(cfg *models.WebhookConfiguration, req *ConfigRequest) {
	if req.WebhookURL != nil {
		cfg.WebhookURL = *req.WebhookURL
	}
	if req.AuthToken != nil {
		cfg.AuthToken = *req.AuthToken
	}
	if req.TokenAPIURL != nil {
		cfg.TokenAPIURL = *req.TokenAPIURL
	}
	if req.ClientID != nil {
		cfg.ClientID = *req.ClientID
	}
	if req.ClientSecret != nil {
		cfg.ClientSecret = *req.ClientSecret
	}
	if req.ProviderName != nil {
		cfg.ProviderName = *req.ProviderName
	}
	if req.TimeoutSeconds != nil {
		cfg.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.RetryAttempts != nil {
		cfg.RetryAttempts = *req.RetryAttempts
	}
	if req.MaxRequestsPerMinute != nil {
		cfg.MaxRequestsPerMinute = *req.MaxRequestsPerMinute
	}
	if req.EnrollmentEventsEnabled != nil {
		cfg.EnrollmentEventsEnabled = *req.EnrollmentEventsEnabled
	}
	if req.Active != nil {
		cfg.Active = *req.Active
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	if verr, ok := err.(*errors.ValidationError); ok {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, verr.Reason, map[string]string{"field": verr.Field})
		return
	}
	errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
}
