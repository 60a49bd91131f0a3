package account

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository handles database operations for accounts.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, document, account_type, status, COALESCE(external_key, ''), request, response, revision, created_at, updated_at`

// Create inserts a new account record.
func (r *Repository) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New().String()
	a.Revision = 1
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt

	query := `
		INSERT INTO accounts (id, document, account_type, status, external_key, request, response, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Document, a.Type, a.Status, nullable(a.ExternalKey), a.Request, a.Response, a.Revision, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// Update persists a modified account guarded by its revision. It returns
// ErrStaleRecord when the row changed since it was read.
func (r *Repository) Update(ctx context.Context, a *Account) error {
	query := `
		UPDATE accounts
		SET status = $1, external_key = $2, request = $3, response = $4,
		    revision = revision + 1, updated_at = now()
		WHERE id = $5 AND revision = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		a.Status, nullable(a.ExternalKey), a.Request, a.Response, a.ID, a.Revision,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleRecord
	}
	a.Revision++
	return nil
}

// GetByDocument returns the most recent account for a document, regardless
// of status, or nil when none exists.
func (r *Repository) GetByDocument(ctx context.Context, doc string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE document = $1 ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, doc))
}

// GetByExternalKey returns the account with the given provider key, or nil.
func (r *Repository) GetByExternalKey(ctx context.Context, key string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE external_key = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, key))
}

// The nullable response column scans through a []byte intermediate; Scan
// cannot store a NULL into json.RawMessage.
func (r *Repository) scanOne(row *sql.Row) (*Account, error) {
	var a Account
	var response []byte
	err := row.Scan(&a.ID, &a.Document, &a.Type, &a.Status, &a.ExternalKey,
		&a.Request, &response, &a.Revision, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Response = response
	return &a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
