package onboarding

import (
	"context"
	"database/sql"
	"time"
)

// Repository handles database operations for onboarding records.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, document, person_type, status, request, response, analysis, COALESCE(last_error, ''), revision, created_at, updated_at`

// Create inserts a new record. The caller assigns the ID, since it is also
// the correlation id sent to the provider.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	rec.Revision = 1
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt

	query := `
		INSERT INTO onboarding_records (id, document, person_type, status, request, response, analysis, last_error, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Document, rec.PersonType, rec.Status, rec.Request, rec.Response,
		rec.Analysis, nullable(rec.LastError), rec.Revision, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// Update persists a modified record guarded by its revision.
func (r *Repository) Update(ctx context.Context, rec *Record) error {
	query := `
		UPDATE onboarding_records
		SET status = $1, response = $2, analysis = $3, last_error = $4,
		    revision = revision + 1, updated_at = now()
		WHERE id = $5 AND revision = $6
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.Status, rec.Response, rec.Analysis, nullable(rec.LastError), rec.ID, rec.Revision,
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
	rec.Revision++
	return nil
}

// GetByDocument returns the most recent record for a document, or nil.
func (r *Repository) GetByDocument(ctx context.Context, doc string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM onboarding_records WHERE document = $1 ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, doc))
}

// GetByID returns the record with the given id, or nil.
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM onboarding_records WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// ListPending returns records still awaiting a final analysis outcome.
func (r *Repository) ListPending(ctx context.Context) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM onboarding_records WHERE status = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var response, analysis []byte
		if err := rows.Scan(&rec.ID, &rec.Document, &rec.PersonType, &rec.Status, &rec.Request,
			&response, &analysis, &rec.LastError, &rec.Revision, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Response = response
		rec.Analysis = analysis
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Nullable JSONB columns scan through []byte intermediates; Scan cannot
// store a NULL into json.RawMessage.
func (r *Repository) scanOne(row *sql.Row) (*Record, error) {
	var rec Record
	var response, analysis []byte
	err := row.Scan(&rec.ID, &rec.Document, &rec.PersonType, &rec.Status, &rec.Request,
		&response, &analysis, &rec.LastError, &rec.Revision, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Response = response
	rec.Analysis = analysis
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
