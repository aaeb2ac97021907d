package webhooks

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

func newTestRouter(t *testing.T, db *sql.DB) (*Router, *stubScheduler) {
	t.Helper()

	users := repositories.NewUserRepository(db)
	enterprises := repositories.NewEnterpriseRepository(db)
	configs := repositories.NewWebhookConfigRepository(db)
	queue := repositories.NewQueueRepository(db)

	scheduler := &stubScheduler{}
	classifier := NewRegionClassifier(users, enterprises)
	return NewRouter(configs, queue, classifier, scheduler), scheduler
}

func seedConfig(t *testing.T, db *sql.DB, enterpriseID, region, url string) *models.WebhookConfiguration {
	t.Helper()

	configs := repositories.NewWebhookConfigRepository(db)
	cfg := &models.WebhookConfiguration{
		EnterpriseID:            enterpriseID,
		Region:                  region,
		WebhookURL:              url,
		EnrollmentEventsEnabled: true,
		Active:                  true,
	}
	if err := configs.Create(cfg); err != nil {
		t.Fatalf("Failed to create configuration: %v", err)
	}
	return cfg
}

func TestRoute_IdempotentAdmission(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, enterpriseID, _ := seedLearner(t, db, "US", "", "")
	seedConfig(t, db, enterpriseID, models.RegionUS, "https://u.example/webhook")
	router, scheduler := newTestRouter(t, db)

	payload := json.RawMessage(`{"status":"completed"}`)

	first, created, err := router.Route(userID, enterpriseID, "course-v1:X+Y+Z", models.EventTypeCompletion, payload)
	if err != nil {
		t.Fatalf("First route failed: %v", err)
	}
	if !created {
		t.Error("Expected first call to create the entry")
	}

	second, created, err := router.Route(userID, enterpriseID, "course-v1:X+Y+Z", models.EventTypeCompletion, payload)
	if err != nil {
		t.Fatalf("Second route failed: %v", err)
	}
	if created {
		t.Error("Expected second call to find the existing entry")
	}
	if second.ID != first.ID {
		t.Errorf("Expected same entry, got %s and %s", first.ID, second.ID)
	}

	if subs := scheduler.submissions(); len(subs) != 1 {
		t.Errorf("Expected exactly one scheduler submission, got %d", len(subs))
	}
}

func TestRoute_FallbackPreservesRegion(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, enterpriseID, _ := seedLearner(t, db, "EU", "", "")
	other := seedConfig(t, db, enterpriseID, models.RegionOther, "https://catchall.example/webhook")
	router, _ := newTestRouter(t, db)

	entry, created, err := router.Route(userID, enterpriseID, "course-1", models.EventTypeCompletion, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if !created {
		t.Fatal("Expected entry to be created")
	}
	if entry.WebhookURL != other.WebhookURL {
		t.Errorf("Expected fallback URL %s, got %s", other.WebhookURL, entry.WebhookURL)
	}
	if entry.UserRegion != models.RegionEU {
		t.Errorf("Expected resolved region EU preserved, got %s", entry.UserRegion)
	}
}

func TestRoute_NoConfiguration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, enterpriseID, _ := seedLearner(t, db, "US", "", "")
	router, scheduler := newTestRouter(t, db)

	_, _, err := router.Route(userID, enterpriseID, "course-1", models.EventTypeCompletion, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("Expected routing error with no configuration")
	}
	if _, ok := err.(*ErrNoWebhookConfigured); !ok {
		t.Errorf("Expected ErrNoWebhookConfigured, got %T", err)
	}
	if len(scheduler.submissions()) != 0 {
		t.Error("Expected no scheduler submission")
	}
}

func TestRoute_EnrollmentEventsDisabled(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, enterpriseID, _ := seedLearner(t, db, "US", "", "")

	configs := repositories.NewWebhookConfigRepository(db)
	cfg := &models.WebhookConfiguration{
		EnterpriseID: enterpriseID,
		Region:       models.RegionUS,
		WebhookURL:   "https://u.example/webhook",
		Active:       true,
	}
	if err := configs.Create(cfg); err != nil {
		t.Fatalf("Failed to create configuration: %v", err)
	}

	router, _ := newTestRouter(t, db)

	_, _, err := router.Route(userID, enterpriseID, "course-1", models.EventTypeEnrollment, json.RawMessage(`{}`))
	noConfig, ok := err.(*ErrNoWebhookConfigured)
	if !ok {
		t.Fatalf("Expected ErrNoWebhookConfigured, got %v", err)
	}
	if noConfig.Reason != "Enrollment events processing disabled" {
		t.Errorf("Unexpected reason: %s", noConfig.Reason)
	}

	// Completion events still route.
	_, created, err := router.Route(userID, enterpriseID, "course-1", models.EventTypeCompletion, json.RawMessage(`{}`))
	if err != nil || !created {
		t.Errorf("Expected completion to route, created=%v err=%v", created, err)
	}
}

func TestDeduplicationKey_UTCDayBoundary(t *testing.T) {
	before := time.Date(2026, 8, 22, 23, 59, 59, 0, time.UTC)
	after := time.Date(2026, 8, 23, 0, 0, 1, 0, time.UTC)

	k1 := DeduplicationKey("ent_1", "usr_1", "course-1", models.EventTypeCompletion, before)
	k2 := DeduplicationKey("ent_1", "usr_1", "course-1", models.EventTypeCompletion, after)

	if k1 == k2 {
		t.Error("Expected distinct keys across the UTC midnight boundary")
	}
	if k1 != "ent_1:usr_1:course-1:course_completion:2026-08-22" {
		t.Errorf("Unexpected key format: %s", k1)
	}

	same := DeduplicationKey("ent_1", "usr_1", "course-1", models.EventTypeCompletion, before.Add(-time.Hour))
	if same != k1 {
		t.Error("Expected identical keys within the same UTC day")
	}
}

func TestRoute_CancelledEntryPermitsReadmission(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, enterpriseID, _ := seedLearner(t, db, "US", "", "")
	seedConfig(t, db, enterpriseID, models.RegionUS, "https://u.example/webhook")
	router, _ := newTestRouter(t, db)

	queue := repositories.NewQueueRepository(db)

	first, _, err := router.Route(userID, enterpriseID, "course-1", models.EventTypeCompletion, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if err := queue.Cancel(first.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	second, created, err := router.Route(userID, enterpriseID, "course-1", models.EventTypeCompletion, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Re-admission failed: %v", err)
	}
	if !created {
		t.Error("Expected a fresh entry after cancellation")
	}
	if second.ID == first.ID {
		t.Error("Expected a new entry id after cancellation")
	}
}
