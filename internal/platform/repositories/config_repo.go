package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"courier/internal/platform/models"
)

type WebhookConfigRepository struct {
	db *sql.DB
}

func NewWebhookConfigRepository(db *sql.DB) *WebhookConfigRepository {
	return &WebhookConfigRepository{db: db}
}

const configColumns = `id, enterprise_id, region, webhook_url, auth_token, token_api_url,
	client_id, client_secret, provider_name, timeout_seconds, retry_attempts,
	max_requests_per_minute, enrollment_events_enabled, active, created_at, updated_at`

func (r *WebhookConfigRepository) Create(c *models.WebhookConfiguration) error {
	if c.ID == "" {
		c.ID = "whc_" + uuid.New().String()
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.MaxRequestsPerMinute == 0 {
		c.MaxRequestsPerMinute = 100
	}
	c.CreatedAt = time.Now().Unix()
	c.UpdatedAt = c.CreatedAt

	query := `
		INSERT INTO webhook_configurations (` + configColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		c.ID, c.EnterpriseID, c.Region, c.WebhookURL, c.AuthToken, c.TokenAPIURL,
		c.ClientID, c.ClientSecret, c.ProviderName, c.TimeoutSeconds, c.RetryAttempts,
		c.MaxRequestsPerMinute, c.EnrollmentEventsEnabled, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *WebhookConfigRepository) GetByID(id string) (*models.WebhookConfiguration, error) {
	row := r.db.QueryRow(`SELECT `+configColumns+` FROM webhook_configurations WHERE id = ?`, id)
	return scanConfig(row)
}

// GetActive returns the active configuration for (enterprise, region), or
// nil when none exists. Callers implement the OTHER fallback.
func (r *WebhookConfigRepository) GetActive(enterpriseID, region string) (*models.WebhookConfiguration, error) {
	row := r.db.QueryRow(
		`SELECT `+configColumns+` FROM webhook_configurations WHERE enterprise_id = ? AND region = ? AND active = 1`,
		enterpriseID, region,
	)
	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

func (r *WebhookConfigRepository) ListByEnterprise(enterpriseID string) ([]*models.WebhookConfiguration, error) {
	rows, err := r.db.Query(
		`SELECT `+configColumns+` FROM webhook_configurations WHERE enterprise_id = ? ORDER BY region`,
		enterpriseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*models.WebhookConfiguration
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func (r *WebhookConfigRepository) Update(c *models.WebhookConfiguration) error {
	c.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE webhook_configurations
		SET webhook_url = ?, auth_token = ?, token_api_url = ?, client_id = ?,
		    client_secret = ?, provider_name = ?, timeout_seconds = ?,
		    retry_attempts = ?, max_requests_per_minute = ?,
		    enrollment_events_enabled = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query,
		c.WebhookURL, c.AuthToken, c.TokenAPIURL, c.ClientID,
		c.ClientSecret, c.ProviderName, c.TimeoutSeconds,
		c.RetryAttempts, c.MaxRequestsPerMinute,
		c.EnrollmentEventsEnabled, c.Active, c.UpdatedAt,
		c.ID,
	)
	return err
}

// Deactivate is the soft delete: delivery-time lookups filter on active.
func (r *WebhookConfigRepository) Deactivate(id string) error {
	_, err := r.db.Exec(
		`UPDATE webhook_configurations SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row rowScanner) (*models.WebhookConfiguration, error) {
	var c models.WebhookConfiguration
	var authToken, tokenURL, clientID, clientSecret, providerName sql.NullString

	err := row.Scan(
		&c.ID, &c.EnterpriseID, &c.Region, &c.WebhookURL, &authToken, &tokenURL,
		&clientID, &clientSecret, &providerName, &c.TimeoutSeconds, &c.RetryAttempts,
		&c.MaxRequestsPerMinute, &c.EnrollmentEventsEnabled, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.AuthToken = authToken.String
	c.TokenAPIURL = tokenURL.String
	c.ClientID = clientID.String
	c.ClientSecret = clientSecret.String
	c.ProviderName = providerName.String
	return &c, nil
}
