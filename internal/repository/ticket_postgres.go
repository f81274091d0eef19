package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

const ticketColumns = `id, office, number, transaction_no, service_id, window_id,
	role, student_status, priority, customer_form_id, status, currently_serving,
	queued_at, called_at, served_at, completed_at, skipped_at,
	rating, remarks, processed_by, version`

// PostgresTicketRepository implements TicketRepository over Postgres.
type PostgresTicketRepository struct {
	db *sqlx.DB
}

// NewPostgresTicketRepository creates the Postgres-backed ticket repository.
func NewPostgresTicketRepository(db *sqlx.DB) *PostgresTicketRepository {
	return &PostgresTicketRepository{db: db}
}

func (r *PostgresTicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	t.Version = 1
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (:id, :office, :number, :transaction_no, :service_id, :window_id,
			:role, :student_status, :priority, :customer_form_id, :status, :currently_serving,
			:queued_at, :called_at, :served_at, :completed_at, :skipped_at,
			:rating, :remarks, :processed_by, :version)`, t)
	return mapErr(err, "ticket")
}

func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	var t models.Ticket
	err := r.db.GetContext(ctx, &t,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr(err, "ticket")
	}
	return &t, nil
}

// GetByTransactionNo prefers the ticket that still reserves the number;
// released holders (skipped, no-show, cancelled) sort after it, latest
// first.
func (r *PostgresTicketRepository) GetByTransactionNo(ctx context.Context, txn string) (*models.Ticket, error) {
	var t models.Ticket
	err := r.db.GetContext(ctx, &t, `
		SELECT `+ticketColumns+` FROM tickets WHERE transaction_no = $1
		ORDER BY status IN ('waiting', 'serving', 'completed') DESC, queued_at DESC
		LIMIT 1`, txn)
	if err != nil {
		return nil, mapErr(err, "ticket")
	}
	return &t, nil
}

func (r *PostgresTicketRepository) Find(ctx context.Context, q TicketQuery) ([]*models.Ticket, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q.Office != "" {
		add("office = $%d", q.Office)
	}
	if q.WindowID != "" {
		add("window_id = $%d", q.WindowID)
	}
	if len(q.Statuses) > 0 {
		ph := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			args = append(args, s)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, "status IN ("+strings.Join(ph, ", ")+")")
	}
	if len(q.ServiceIDs) > 0 {
		ph := make([]string, len(q.ServiceIDs))
		for i, s := range q.ServiceIDs {
			args = append(args, s)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, "service_id IN ("+strings.Join(ph, ", ")+")")
	}
	if q.Priority != nil {
		add("priority = $%d", *q.Priority)
	}
	if q.QueuedFrom != nil {
		add("queued_at >= $%d", *q.QueuedFrom)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY queued_at"
	if q.OrderDesc {
		query += " DESC"
	} else {
		query += " ASC"
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var out []*models.Ticket
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, mapErr(err, "ticket")
	}
	return out, nil
}

func (r *PostgresTicketRepository) CurrentlyServing(ctx context.Context, windowID string) (*models.Ticket, error) {
	var t models.Ticket
	err := r.db.GetContext(ctx, &t, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE window_id = $1 AND currently_serving = TRUE AND status = $2
		LIMIT 1`, windowID, models.StatusServing)
	if err != nil {
		return nil, mapErr(err, "serving ticket")
	}
	return &t, nil
}

// Update compare-and-swaps on version. A zero-row update means another
// writer got there first.
func (r *PostgresTicketRepository) Update(ctx context.Context, t *models.Ticket) error {
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE tickets SET
			transaction_no = :transaction_no,
			service_id = :service_id,
			window_id = :window_id,
			student_status = :student_status,
			priority = :priority,
			customer_form_id = :customer_form_id,
			status = :status,
			currently_serving = :currently_serving,
			queued_at = :queued_at,
			called_at = :called_at,
			served_at = :served_at,
			completed_at = :completed_at,
			skipped_at = :skipped_at,
			rating = :rating,
			remarks = :remarks,
			processed_by = :processed_by,
			version = :version + 1
		WHERE id = :id AND version = :version`, t)
	if err != nil {
		return mapErr(err, "ticket")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err, "ticket")
	}
	if n == 0 {
		return apperr.E(apperr.CodeConflict, "ticket %s was modified concurrently", t.ID)
	}
	t.Version++
	return nil
}

func (r *PostgresTicketRepository) LastCompleted(ctx context.Context, windowID string, since time.Time) (*models.Ticket, error) {
	var t models.Ticket
	err := r.db.GetContext(ctx, &t, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE window_id = $1 AND status = $2 AND completed_at >= $3
		ORDER BY completed_at DESC
		LIMIT 1`, windowID, models.StatusCompleted, since)
	if err != nil {
		return nil, mapErr(err, "completed ticket")
	}
	return &t, nil
}

func (r *PostgresTicketRepository) MaxNumberSince(ctx context.Context, office models.Office, since time.Time) (int, error) {
	var max int
	err := r.db.GetContext(ctx, &max, `
		SELECT COALESCE(MAX(number), 0) FROM tickets
		WHERE office = $1 AND queued_at >= $2`, office, since)
	if err != nil {
		return 0, mapErr(err, "ticket number")
	}
	return max, nil
}

// MarkStaleNoShow flips prior-day waiting and skipped tickets to no-show.
// A null key timestamp counts as stale.
func (r *PostgresTicketRepository) MarkStaleNoShow(ctx context.Context, f StaleFilter) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tickets SET
			status = $1,
			currently_serving = FALSE,
			version = version + 1
		WHERE office = $2 AND (
			(status = $3 AND (queued_at IS NULL OR queued_at < $4)) OR
			(status = $5 AND (skipped_at IS NULL OR skipped_at < $4))
		)`,
		models.StatusNoShow, f.Office, models.StatusWaiting, f.Cutoff, models.StatusSkipped)
	if err != nil {
		return 0, mapErr(err, "rollover")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(err, "rollover")
	}
	return n, nil
}
