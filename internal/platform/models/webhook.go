package models

import "encoding/json"

const (
	RegionUS    = "US"
	RegionEU    = "EU"
	RegionUK    = "UK"
	RegionOther = "OTHER"
)

const (
	EventTypeCompletion = "course_completion"
	EventTypeEnrollment = "course_enrollment"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// WebhookConfiguration is the per-(enterprise, region) destination record.
// When both an OAuth2 client-credentials triple and a static auth token are
// configured, the OAuth2 path takes precedence at delivery time.
type WebhookConfiguration struct {
	ID           string `json:"id"`
	EnterpriseID string `json:"enterprise_id"`
	Region       string `json:"region"`
	WebhookURL   string `json:"webhook_url"`

	// Static bearer token (deprecated in favour of client credentials).
	AuthToken string `json:"-"`

	// OAuth2 client-credentials grant.
	TokenAPIURL  string `json:"token_api_url,omitempty"`
	ClientID     string `json:"-"`
	ClientSecret string `json:"-"`
	ProviderName string `json:"provider_name,omitempty"`

	TimeoutSeconds          int  `json:"timeout_seconds"`
	RetryAttempts           int  `json:"retry_attempts"`
	MaxRequestsPerMinute    int  `json:"max_requests_per_minute"`
	EnrollmentEventsEnabled bool `json:"enrollment_events_enabled"`
	Active                  bool `json:"active"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// HasOAuthCredentials reports whether the dynamic token path is usable.
func (c *WebhookConfiguration) HasOAuthCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// QueueEntry is one admitted delivery. The webhook URL and region are
// snapshotted at admission time; retries do not re-resolve them.
type QueueEntry struct {
	ID           string `json:"id"`
	EnterpriseID string `json:"enterprise_id"`
	UserID       string `json:"user_id"`
	CourseID     string `json:"course_id"`
	EventType    string `json:"event_type"`
	UserRegion   string `json:"user_region"`
	WebhookURL   string `json:"webhook_url"`

	Payload          json.RawMessage `json:"payload"`
	DeduplicationKey string          `json:"deduplication_key"`

	Status         string `json:"status"`
	AttemptCount   int    `json:"attempt_count"`
	HTTPStatusCode *int   `json:"http_status_code,omitempty"`
	ResponseBody   string `json:"response_body,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`

	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
	LastAttemptAt *int64 `json:"last_attempt_at,omitempty"`
	NextRetryAt   *int64 `json:"next_retry_at,omitempty"`
	CompletedAt   *int64 `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the entry is in a state the delivery worker
// must not touch again. A failed entry only moves again through an operator
// retry, which resets it to pending first.
func (e *QueueEntry) IsTerminal() bool {
	return e.Status == StatusSuccess || e.Status == StatusCancelled || e.Status == StatusFailed
}
