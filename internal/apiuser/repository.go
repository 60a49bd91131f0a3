package apiuser

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository handles database operations for API users.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new API user.
func (r *Repository) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New().String()
	u.Enabled = true
	u.CreatedAt = time.Now()

	query := `
		INSERT INTO api_users (id, name, key_prefix, key_hash, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Name, u.KeyPrefix, u.KeyHash, u.Enabled, u.CreatedAt,
	)
	return err
}

// GetByKeyPrefix returns the user owning a key prefix, or nil.
func (r *Repository) GetByKeyPrefix(ctx context.Context, prefix string) (*User, error) {
	query := `
		SELECT id, name, key_prefix, key_hash, enabled, created_at
		FROM api_users WHERE key_prefix = $1
	`
	row := r.db.QueryRowContext(ctx, query, prefix)

	var u User
	err := row.Scan(&u.ID, &u.Name, &u.KeyPrefix, &u.KeyHash, &u.Enabled, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Disable revokes a credential.
func (r *Repository) Disable(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_users SET enabled = FALSE WHERE id = $1`, id)
	return err
}
