package pix

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository handles database operations for Pix keys and limit requests.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const keyColumns = `id, COALESCE(account_id::text, ''), document, COALESCE(key, ''), key_type, status, COALESCE(request_key, ''), request, response, revision, created_at, updated_at`

// CreateKey inserts a new Pix key record.
func (r *Repository) CreateKey(ctx context.Context, k *Key) error {
	k.ID = uuid.New().String()
	k.Revision = 1
	k.CreatedAt = time.Now()
	k.UpdatedAt = k.CreatedAt

	query := `
		INSERT INTO pix_keys (id, account_id, document, key, key_type, status, request_key, request, response, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		k.ID, nullable(k.AccountID), k.Document, nullable(k.Key), k.Type, k.Status,
		nullable(k.RequestKey), k.Request, k.Response, k.Revision, k.CreatedAt, k.UpdatedAt,
	)
	return err
}

// UpdateKey persists a modified key guarded by its revision. It returns
// ErrStaleRecord when the row changed since it was read.
func (r *Repository) UpdateKey(ctx context.Context, k *Key) error {
	query := `
		UPDATE pix_keys
		SET status = $1, key = $2, response = $3,
		    revision = revision + 1, updated_at = now()
		WHERE id = $4 AND revision = $5
	`
	res, err := r.db.ExecContext(ctx, query,
		k.Status, nullable(k.Key), k.Response, k.ID, k.Revision,
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
	k.Revision++
	return nil
}

// GetKey returns the most recent key for a (document, type) pair, or nil.
func (r *Repository) GetKey(ctx context.Context, doc string, keyType string) (*Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys WHERE document = $1 AND key_type = $2 ORDER BY created_at DESC LIMIT 1`
	return r.scanKey(r.db.QueryRowContext(ctx, query, doc, keyType))
}

// GetKeyByRequestKey returns the key with the given provider request key,
// or nil. Webhooks correlate through this key.
func (r *Repository) GetKeyByRequestKey(ctx context.Context, requestKey string) (*Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys WHERE request_key = $1`
	return r.scanKey(r.db.QueryRowContext(ctx, query, requestKey))
}

// Nullable JSONB columns scan through []byte intermediates; Scan cannot
// store a NULL into json.RawMessage.
func (r *Repository) scanKey(row *sql.Row) (*Key, error) {
	var k Key
	var response []byte
	err := row.Scan(&k.ID, &k.AccountID, &k.Document, &k.Key, &k.Type, &k.Status,
		&k.RequestKey, &k.Request, &response, &k.Revision, &k.CreatedAt, &k.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	k.Response = response
	return &k, nil
}

// CreateLimitRequest appends a limit-change submission to the log.
func (r *Repository) CreateLimitRequest(ctx context.Context, lr *LimitRequest) error {
	lr.ID = uuid.New().String()
	lr.CreatedAt = time.Now()
	lr.UpdatedAt = lr.CreatedAt

	query := `
		INSERT INTO pix_limit_requests (id, document, request, response, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		lr.ID, lr.Document, lr.Request, lr.Response, lr.Data, lr.CreatedAt, lr.UpdatedAt,
	)
	return err
}

// ListLimitRequests returns the submission log for a document, newest first.
func (r *Repository) ListLimitRequests(ctx context.Context, doc string) ([]*LimitRequest, error) {
	query := `
		SELECT id, document, request, response, data, created_at, updated_at
		FROM pix_limit_requests WHERE document = $1 ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, doc)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*LimitRequest
	for rows.Next() {
		var lr LimitRequest
		var response, data []byte
		if err := rows.Scan(&lr.ID, &lr.Document, &lr.Request, &response, &data, &lr.CreatedAt, &lr.UpdatedAt); err != nil {
			return nil, err
		}
		lr.Response = response
		lr.Data = data
		out = append(out, &lr)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
