package notification

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Repository handles database operations for notifications.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const columns = `id, notif_type, status, url, payload, COALESCE(last_error, ''), attempts, last_attempt, next_attempt, created_at`

// Create enqueues a new notification, due immediately.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New().String()
	n.Status = StatusPending
	n.CreatedAt = time.Now()
	n.NextAttempt = &n.CreatedAt

	query := `
		INSERT INTO notifications (id, notif_type, status, url, payload, attempts, next_attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.Type, n.Status, n.URL, n.Payload, n.Attempts, n.NextAttempt, n.CreatedAt,
	)
	return err
}

// Update persists the outcome of a delivery attempt.
func (r *Repository) Update(ctx context.Context, n *Notification) error {
	query := `
		UPDATE notifications
		SET status = $1, last_error = $2, attempts = $3, last_attempt = $4, next_attempt = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query,
		n.Status, nullable(n.LastError), n.Attempts, n.LastAttempt, n.NextAttempt, n.ID,
	)
	return err
}

// ListDue returns pending notifications whose next attempt time has passed.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]*Notification, error) {
	query := `
		SELECT ` + columns + `
		FROM notifications
		WHERE status = $1 AND next_attempt IS NOT NULL AND next_attempt <= $2
		ORDER BY next_attempt
	`
	rows, err := r.db.QueryContext(ctx, query, StatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Status, &n.URL, &n.Payload,
			&n.LastError, &n.Attempts, &n.LastAttempt, &n.NextAttempt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// CountPending returns the number of notifications still awaiting delivery.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM notifications WHERE status = $1`, StatusPending).Scan(&n)
	return n, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
