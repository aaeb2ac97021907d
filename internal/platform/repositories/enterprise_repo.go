package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"courier/internal/platform/models"
)

type EnterpriseRepository struct {
	db *sql.DB
}

func NewEnterpriseRepository(db *sql.DB) *EnterpriseRepository {
	return &EnterpriseRepository{db: db}
}

func (r *EnterpriseRepository) Create(e *models.Enterprise) error {
	if e.ID == "" {
		e.ID = "ent_" + uuid.New().String()
	}
	e.Active = true
	e.CreatedAt = time.Now().Unix()
	e.UpdatedAt = e.CreatedAt

	query := `
		INSERT INTO enterprises (id, name, country, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, e.ID, e.Name, e.Country, e.Active, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *EnterpriseRepository) GetByID(id string) (*models.Enterprise, error) {
	query := `SELECT id, name, country, active, created_at, updated_at FROM enterprises WHERE id = ?`
	row := r.db.QueryRow(query, id)

	var e models.Enterprise
	var country sql.NullString
	err := row.Scan(&e.ID, &e.Name, &country, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if country.Valid {
		e.Country = country.String
	}
	return &e, nil
}

// EnterprisesForUser returns every enterprise the user is a member of. A
// learner in several enterprises gets one webhook admission per membership.
func (r *EnterpriseRepository) EnterprisesForUser(userID string) ([]*models.Enterprise, error) {
	query := `
		SELECT e.id, e.name, e.country, e.active, e.created_at, e.updated_at
		FROM enterprises e
		JOIN enterprise_memberships m ON m.enterprise_id = e.id
		WHERE m.user_id = ? AND e.active = 1
		ORDER BY e.created_at
	`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enterprises []*models.Enterprise
	for rows.Next() {
		var e models.Enterprise
		var country sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &country, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if country.Valid {
			e.Country = country.String
		}
		enterprises = append(enterprises, &e)
	}
	return enterprises, rows.Err()
}

func (r *EnterpriseRepository) AddMember(enterpriseID, userID string) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO enterprise_memberships (enterprise_id, user_id, created_at) VALUES (?, ?, ?)`,
		enterpriseID, userID, time.Now().Unix(),
	)
	return err
}
