package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"courier/internal/platform/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	if u.ID == "" {
		u.ID = "usr_" + uuid.New().String()
	}
	u.CreatedAt = time.Now().Unix()

	_, err := r.db.Exec(
		`INSERT INTO users (id, username, email, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.CreatedAt,
	)
	return err
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	row := r.db.QueryRow(`SELECT id, username, email, created_at FROM users WHERE id = ?`, id)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// SSOAccountsForUser returns the user's identity-provider records, newest
// first, for region classification.
func (r *UserRepository) SSOAccountsForUser(userID string) ([]*models.SSOAccount, error) {
	query := `
		SELECT id, user_id, provider, uid, region, country, created_at
		FROM sso_accounts WHERE user_id = ? ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SSOAccount
	for rows.Next() {
		var a models.SSOAccount
		var region, country sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Provider, &a.UID, &region, &country, &a.CreatedAt); err != nil {
			return nil, err
		}
		if region.Valid {
			a.Region = region.String
		}
		if country.Valid {
			a.Country = country.String
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

func (r *UserRepository) CreateSSOAccount(a *models.SSOAccount) error {
	if a.ID == "" {
		a.ID = "sso_" + uuid.New().String()
	}
	a.CreatedAt = time.Now().Unix()

	_, err := r.db.Exec(
		`INSERT INTO sso_accounts (id, user_id, provider, uid, region, country, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Provider, a.UID, a.Region, a.Country, a.CreatedAt,
	)
	return err
}
