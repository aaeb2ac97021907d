package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	_ "github.com/mattn/go-sqlite3"

	apiContext "courier/internal/api/context"
	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

func setupHandlerDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	query := `
	CREATE TABLE enterprises (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE webhook_configurations (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT NOT NULL,
		region TEXT NOT NULL,
		webhook_url TEXT NOT NULL DEFAULT '',
		auth_token TEXT,
		token_api_url TEXT,
		client_id TEXT,
		client_secret TEXT,
		provider_name TEXT,
		timeout_seconds INTEGER NOT NULL DEFAULT 30,
		retry_attempts INTEGER NOT NULL DEFAULT 3,
		max_requests_per_minute INTEGER NOT NULL DEFAULT 100,
		enrollment_events_enabled INTEGER NOT NULL DEFAULT 1,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (enterprise_id, region)
	);
	`
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	enterprises := repositories.NewEnterpriseRepository(db)
	enterprise := &models.Enterprise{Name: "Acme", Country: "US"}
	if err := enterprises.Create(enterprise); err != nil {
		t.Fatalf("Failed to create enterprise: %v", err)
	}
	return db, enterprise.ID
}

func requestWithParams(method, target, body string, params httprouter.Params) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), apiContext.Params, params)
	return req.WithContext(ctx)
}

func TestConfigHandler_CreateRejectsUnsafeURL(t *testing.T) {
	db, entID := setupHandlerDB(t)
	handler := NewConfigHandler(
		repositories.NewWebhookConfigRepository(db),
		repositories.NewEnterpriseRepository(db),
	)

	tests := []struct {
		name string
		url  string
	}{
		{"Plain HTTP", "http://x.example.com/hook"},
		{"Loopback", "https://127.0.0.1/hook"},
		{"Private IP", "https://10.0.0.1/hook"},
		{"Metadata endpoint", "https://169.254.169.254/hook"},
		{"Localhost", "https://localhost/hook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]interface{}{"region": "US", "webhook_url": tt.url})
			req := requestWithParams(http.MethodPost, "/api/v1/enterprises/"+entID+"/webhooks", string(body),
				httprouter.Params{{Key: "enterprise_id", Value: entID}})
			rr := httptest.NewRecorder()

			handler.Create(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", rr.Code)
			}
			var resp struct {
				Details map[string]string `json:"details"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Response not JSON: %v", err)
			}
			if resp.Details["field"] != "webhook_url" {
				t.Errorf("Expected field webhook_url in details, got %v", resp.Details)
			}

			// Nothing persisted.
			configs, _ := repositories.NewWebhookConfigRepository(db).ListByEnterprise(entID)
			if len(configs) != 0 {
				t.Errorf("Expected no saved configurations, got %d", len(configs))
			}
		})
	}
}

func TestConfigHandler_CreateAndConflict(t *testing.T) {
	db, entID := setupHandlerDB(t)
	handler := NewConfigHandler(
		repositories.NewWebhookConfigRepository(db),
		repositories.NewEnterpriseRepository(db),
	)

	body := `{"region":"US","webhook_url":"https://api.example.com/hook"}`
	params := httprouter.Params{{Key: "enterprise_id", Value: entID}}

	rr := httptest.NewRecorder()
	handler.Create(rr, requestWithParams(http.MethodPost, "/", body, params))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var created models.WebhookConfiguration
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("Response not JSON: %v", err)
	}
	if created.TimeoutSeconds != 30 || created.RetryAttempts != 3 {
		t.Errorf("Expected defaults applied, got timeout=%d retries=%d", created.TimeoutSeconds, created.RetryAttempts)
	}

	rr = httptest.NewRecorder()
	handler.Create(rr, requestWithParams(http.MethodPost, "/", body, params))
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate region, got %d", rr.Code)
	}
}

func TestConfigHandler_UpdateRevalidates(t *testing.T) {
	db, entID := setupHandlerDB(t)
	configRepo := repositories.NewWebhookConfigRepository(db)
	handler := NewConfigHandler(configRepo, repositories.NewEnterpriseRepository(db))

	cfg := &models.WebhookConfiguration{
		EnterpriseID: entID,
		Region:       models.RegionUS,
		WebhookURL:   "https://api.example.com/hook",
		Active:       true,
	}
	if err := configRepo.Create(cfg); err != nil {
		t.Fatalf("Failed to seed configuration: %v", err)
	}

	params := httprouter.Params{
		{Key: "enterprise_id", Value: entID},
		{Key: "config_id", Value: cfg.ID},
	}

	rr := httptest.NewRecorder()
	handler.Update(rr, requestWithParams(http.MethodPatch, "/", `{"webhook_url":"https://192.168.1.1/hook"}`, params))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unsafe update, got %d", rr.Code)
	}

	// Original URL untouched.
	stored, _ := configRepo.GetByID(cfg.ID)
	if stored.WebhookURL != "https://api.example.com/hook" {
		t.Errorf("Expected original URL preserved, got %s", stored.WebhookURL)
	}

	rr = httptest.NewRecorder()
	handler.Update(rr, requestWithParams(http.MethodPatch, "/", `{"timeout_seconds":60}`, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	stored, _ = configRepo.GetByID(cfg.ID)
	if stored.TimeoutSeconds != 60 {
		t.Errorf("Expected timeout updated to 60, got %d", stored.TimeoutSeconds)
	}
}

func TestConfigHandler_DeleteDeactivates(t *testing.T) {
	db, entID := setupHandlerDB(t)
	configRepo := repositories.NewWebhookConfigRepository(db)
	handler := NewConfigHandler(configRepo, repositories.NewEnterpriseRepository(db))

	cfg := &models.WebhookConfiguration{
		EnterpriseID: entID,
		Region:       models.RegionUS,
		WebhookURL:   "https://api.example.com/hook",
		Active:       true,
	}
	if err := configRepo.Create(cfg); err != nil {
		t.Fatalf("Failed to seed configuration: %v", err)
	}

	params := httprouter.Params{
		{Key: "enterprise_id", Value: entID},
		{Key: "config_id", Value: cfg.ID},
	}

	rr := httptest.NewRecorder()
	handler.Delete(rr, requestWithParams(http.MethodDelete, "/", "", params))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rr.Code)
	}

	stored, _ := configRepo.GetByID(cfg.ID)
	if stored.Active {
		t.Error("Expected configuration deactivated, not deleted")
	}
	active, _ := configRepo.GetActive(entID, models.RegionUS)
	if active != nil {
		t.Error("Expected deactivated configuration hidden from routing")
	}
}
