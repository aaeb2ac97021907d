package repositories

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"courier/internal/platform/models"
)

type QueueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

const queueColumns = `id, enterprise_id, user_id, course_id, event_type, user_region,
	webhook_url, payload, deduplication_key, status, attempt_count, http_status_code,
	response_body, error_message, created_at, updated_at, last_attempt_at, next_retry_at,
	completed_at`

// GetOrCreate admits the entry under the partial uniqueness constraint on
// deduplication_key (scoped to non-cancelled statuses). A concurrent loser
// hits the constraint and returns the winner's row with created=false.
func (r *QueueRepository) GetOrCreate(entry *models.QueueEntry) (*models.QueueEntry, bool, error) {
	if entry.ID == "" {
		entry.ID = "whq_" + uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = models.StatusPending
	}
	entry.CreatedAt = time.Now().Unix()
	entry.UpdatedAt = entry.CreatedAt

	query := `
		INSERT INTO webhook_queue
			(id, enterprise_id, user_id, course_id, event_type, user_region,
			 webhook_url, payload, deduplication_key, status, attempt_count,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err := r.db.Exec(query,
		entry.ID, entry.EnterpriseID, entry.UserID, entry.CourseID, entry.EventType,
		entry.UserRegion, entry.WebhookURL, string(entry.Payload), entry.DeduplicationKey,
		entry.Status, entry.CreatedAt, entry.UpdatedAt,
	)
	if err == nil {
		return entry, true, nil
	}
	if !IsUniqueViolation(err) {
		return nil, false, err
	}

	existing, lookupErr := r.GetActiveByDedupKey(entry.DeduplicationKey)
	if lookupErr != nil {
		return nil, false, lookupErr
	}
	return existing, false, nil
}

func (r *QueueRepository) GetByID(id string) (*models.QueueEntry, error) {
	row := r.db.QueryRow(`SELECT `+queueColumns+` FROM webhook_queue WHERE id = ?`, id)
	entry, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// GetActiveByDedupKey returns the non-cancelled entry holding the key.
func (r *QueueRepository) GetActiveByDedupKey(key string) (*models.QueueEntry, error) {
	row := r.db.QueryRow(
		`SELECT `+queueColumns+` FROM webhook_queue WHERE deduplication_key = ? AND status != ?`,
		key, models.StatusCancelled,
	)
	return scanQueueEntry(row)
}

// MarkProcessing claims the entry for a delivery attempt: the transient
// processing marker, the attempt increment and the attempt timestamp, all in
// one write. Only a pending entry can be claimed, so a concurrent cancel or
// a duplicate submission loses the race and claimed is false.
func (r *QueueRepository) MarkProcessing(id string) (claimed bool, err error) {
	now := time.Now().Unix()
	res, err := r.db.Exec(
		`UPDATE webhook_queue
		 SET status = ?, attempt_count = attempt_count + 1, last_attempt_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		models.StatusProcessing, now, now, id, models.StatusPending,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *QueueRepository) MarkSuccess(id string, httpStatus int, responseBody string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(
		`UPDATE webhook_queue
		 SET status = ?, http_status_code = ?, response_body = ?, error_message = '',
		     next_retry_at = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		models.StatusSuccess, httpStatus, responseBody, now, now, id,
	)
	return err
}

// MarkRetry returns the entry to pending with the next attempt scheduled.
func (r *QueueRepository) MarkRetry(id string, httpStatus *int, errorMessage string, nextRetryAt time.Time) error {
	now := time.Now().Unix()
	retryAt := nextRetryAt.Unix()
	_, err := r.db.Exec(
		`UPDATE webhook_queue
		 SET status = ?, http_status_code = ?, error_message = ?, next_retry_at = ?, updated_at = ?
		 WHERE id = ?`,
		models.StatusPending, httpStatus, errorMessage, retryAt, now, id,
	)
	return err
}

func (r *QueueRepository) MarkFailed(id string, httpStatus *int, errorMessage string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(
		`UPDATE webhook_queue
		 SET status = ?, http_status_code = ?, error_message = ?, next_retry_at = NULL, updated_at = ?
		 WHERE id = ?`,
		models.StatusFailed, httpStatus, errorMessage, now, id,
	)
	return err
}

// Cancel releases the entry's hold on its deduplication key, permitting a
// fresh admission for the same fact.
func (r *QueueRepository) Cancel(id string) error {
	_, err := r.db.Exec(
		`UPDATE webhook_queue SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		models.StatusCancelled, time.Now().Unix(), id, models.StatusPending, models.StatusFailed,
	)
	return err
}

// ResetForRetry returns a terminally failed entry to pending for an
// operator-driven re-delivery.
func (r *QueueRepository) ResetForRetry(id string) error {
	_, err := r.db.Exec(
		`UPDATE webhook_queue
		 SET status = ?, error_message = '', next_retry_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		models.StatusPending, time.Now().Unix(), id, models.StatusFailed,
	)
	return err
}

// ListDue returns pending entries whose scheduled retry time has passed.
// The sweeper uses this to recover timers lost with a process restart.
func (r *QueueRepository) ListDue(now time.Time, limit int) ([]*models.QueueEntry, error) {
	rows, err := r.db.Query(
		`SELECT `+queueColumns+` FROM webhook_queue
		 WHERE status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?
		 ORDER BY next_retry_at LIMIT ?`,
		models.StatusPending, now.Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	return collectQueueEntries(rows)
}

// ListStaleProcessing returns entries stuck in processing since before the
// cutoff, usually left behind by a crashed worker mid-attempt.
func (r *QueueRepository) ListStaleProcessing(cutoff time.Time, limit int) ([]*models.QueueEntry, error) {
	rows, err := r.db.Query(
		`SELECT `+queueColumns+` FROM webhook_queue
		 WHERE status = ? AND last_attempt_at IS NOT NULL AND last_attempt_at <= ?
		 ORDER BY last_attempt_at LIMIT ?`,
		models.StatusProcessing, cutoff.Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	return collectQueueEntries(rows)
}

// ReleaseProcessing returns a stale processing entry to pending without
// touching its attempt count.
func (r *QueueRepository) ReleaseProcessing(id string) error {
	_, err := r.db.Exec(
		`UPDATE webhook_queue SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		models.StatusPending, time.Now().Unix(), id, models.StatusProcessing,
	)
	return err
}

type QueueFilter struct {
	EnterpriseID string
	Status       string
	Limit        int
	Offset       int
}

func (r *QueueRepository) List(filter QueueFilter) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM webhook_queue`
	var conditions []string
	var args []interface{}

	if filter.EnterpriseID != "" {
		conditions = append(conditions, "enterprise_id = ?")
		args = append(args, filter.EnterpriseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return collectQueueEntries(rows)
}

// IsUniqueViolation reports whether err is a sqlite uniqueness constraint
// failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	var e models.QueueEntry
	var payload string
	var httpStatus sql.NullInt64
	var responseBody, errorMessage sql.NullString
	var lastAttemptAt, nextRetryAt, completedAt sql.NullInt64

	err := row.Scan(
		&e.ID, &e.EnterpriseID, &e.UserID, &e.CourseID, &e.EventType, &e.UserRegion,
		&e.WebhookURL, &payload, &e.DeduplicationKey, &e.Status, &e.AttemptCount, &httpStatus,
		&responseBody, &errorMessage, &e.CreatedAt, &e.UpdatedAt, &lastAttemptAt, &nextRetryAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Payload = []byte(payload)
	if httpStatus.Valid {
		code := int(httpStatus.Int64)
		e.HTTPStatusCode = &code
	}
	e.ResponseBody = responseBody.String
	e.ErrorMessage = errorMessage.String
	if lastAttemptAt.Valid {
		e.LastAttemptAt = &lastAttemptAt.Int64
	}
	if nextRetryAt.Valid {
		e.NextRetryAt = &nextRetryAt.Int64
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Int64
	}
	return &e, nil
}

func collectQueueEntries(rows *sql.Rows) ([]*models.QueueEntry, error) {
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
