package webhooks

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const testSchema = `
CREATE TABLE enterprises (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	country TEXT,
	active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE sso_accounts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	uid TEXT NOT NULL,
	region TEXT,
	country TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE enterprise_memberships (
	enterprise_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (enterprise_id, user_id)
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

CREATE TABLE webhook_queue (
	id TEXT PRIMARY KEY,
	enterprise_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	course_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	user_region TEXT NOT NULL,
	webhook_url TEXT NOT NULL,
	payload TEXT NOT NULL,
	deduplication_key TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempt_count INTEGER NOT NULL DEFAULT 0,
	http_status_code INTEGER,
	response_body TEXT,
	error_message TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	last_attempt_at INTEGER,
	next_retry_at INTEGER,
	completed_at INTEGER
);

CREATE UNIQUE INDEX idx_queue_dedup_active
	ON webhook_queue(deduplication_key) WHERE status != 'cancelled';
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

type submission struct {
	EntryID string
	Delay   time.Duration
}

// stubScheduler records submissions without running anything.
type stubScheduler struct {
	mu   sync.Mutex
	subs []submission
}

func (s *stubScheduler) Submit(entryID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, submission{EntryID: entryID, Delay: delay})
}

func (s *stubScheduler) submissions() []submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]submission, len(s.subs))
	copy(out, s.subs)
	return out
}
