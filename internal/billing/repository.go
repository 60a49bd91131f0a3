package billing

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository handles database operations for billing configuration requests.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new configuration request.
func (r *Repository) Create(ctx context.Context, cr *ConfigurationRequest) error {
	cr.ID = uuid.New().String()
	cr.CreatedAt = time.Now()
	cr.UpdatedAt = cr.CreatedAt

	query := `
		INSERT INTO billing_configuration_requests (id, account_key, status, request, response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		cr.ID, cr.AccountKey, cr.Status, cr.Request, cr.Response, cr.CreatedAt, cr.UpdatedAt,
	)
	return err
}

// UpdateStatus moves a request to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status RequestStatus) error {
	query := `UPDATE billing_configuration_requests SET status = $1, updated_at = now() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

// ListPending returns requests still awaiting provider confirmation.
func (r *Repository) ListPending(ctx context.Context) ([]*ConfigurationRequest, error) {
	query := `
		SELECT id, account_key, status, request, response, created_at, updated_at
		FROM billing_configuration_requests WHERE status = $1 ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ConfigurationRequest
	for rows.Next() {
		var cr ConfigurationRequest
		// A []byte intermediate, since Scan cannot store a NULL into
		// json.RawMessage.
		var response []byte
		if err := rows.Scan(&cr.ID, &cr.AccountKey, &cr.Status, &cr.Request, &response, &cr.CreatedAt, &cr.UpdatedAt); err != nil {
			return nil, err
		}
		cr.Response = response
		out = append(out, &cr)
	}
	return out, rows.Err()
}
