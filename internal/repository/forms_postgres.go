package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

// PostgresCustomerFormRepository implements CustomerFormRepository.
type PostgresCustomerFormRepository struct {
	db *sqlx.DB
}

func NewPostgresCustomerFormRepository(db *sqlx.DB) *PostgresCustomerFormRepository {
	return &PostgresCustomerFormRepository{db: db}
}

func (r *PostgresCustomerFormRepository) Create(ctx context.Context, f *models.CustomerForm) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO customer_forms (id, name, contact, email, address, id_number)
		VALUES (:id, :name, :contact, :email, :address, :id_number)`, f)
	return mapErr(err, "customer form")
}

func (r *PostgresCustomerFormRepository) GetByID(ctx context.Context, id string) (*models.CustomerForm, error) {
	var f models.CustomerForm
	err := r.db.GetContext(ctx, &f,
		`SELECT id, name, contact, email, address, id_number FROM customer_forms WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr(err, "customer form")
	}
	return &f, nil
}

func (r *PostgresCustomerFormRepository) GetMany(ctx context.Context, ids []string) (map[string]*models.CustomerForm, error) {
	out := make(map[string]*models.CustomerForm, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, name, contact, email, address, id_number FROM customer_forms WHERE id IN (?)`, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "customer form batch query")
	}
	var rows []*models.CustomerForm
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, mapErr(err, "customer form")
	}
	for _, f := range rows {
		out[f.ID] = f
	}
	return out, nil
}

// PostgresDocumentRequestRepository implements DocumentRequestRepository.
type PostgresDocumentRequestRepository struct {
	db *sqlx.DB
}

func NewPostgresDocumentRequestRepository(db *sqlx.DB) *PostgresDocumentRequestRepository {
	return &PostgresDocumentRequestRepository{db: db}
}

func (r *PostgresDocumentRequestRepository) Create(ctx context.Context, d *models.DocumentRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO document_requests (transaction_no, office, name, contact, email, request_items, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.TransactionNo, d.Office, d.Name, d.Contact, d.Email,
		pq.Array(d.RequestItems), d.Status, d.CreatedAt)
	return mapErr(err, "document request")
}

func (r *PostgresDocumentRequestRepository) GetByTransactionNo(ctx context.Context, txn string) (*models.DocumentRequest, error) {
	var d models.DocumentRequest
	var items pq.StringArray
	row := r.db.QueryRowxContext(ctx, `
		SELECT transaction_no, office, name, contact, email, request_items, status, created_at
		FROM document_requests WHERE transaction_no = $1`, txn)
	err := row.Scan(&d.TransactionNo, &d.Office, &d.Name, &d.Contact, &d.Email,
		&items, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "document request")
	}
	d.RequestItems = items
	return &d, nil
}

// PostgresRatingRepository implements RatingRepository.
type PostgresRatingRepository struct {
	db *sqlx.DB
}

func NewPostgresRatingRepository(db *sqlx.DB) *PostgresRatingRepository {
	return &PostgresRatingRepository{db: db}
}

func (r *PostgresRatingRepository) Create(ctx context.Context, rec *models.Rating) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO ratings (id, ticket_id, office, score, approved, created_at)
		VALUES (:id, :ticket_id, :office, :score, :approved, :created_at)
		ON CONFLICT (ticket_id) DO UPDATE SET score = EXCLUDED.score`, rec)
	return mapErr(err, "rating")
}

// NewPostgresStore wires the full repository bundle over one connection.
func NewPostgresStore(db *sqlx.DB) *Store {
	return &Store{
		Tickets:          NewPostgresTicketRepository(db),
		Services:         NewPostgresServiceRepository(db),
		Windows:          NewPostgresWindowRepository(db),
		CustomerForms:    NewPostgresCustomerFormRepository(db),
		DocumentRequests: NewPostgresDocumentRequestRepository(db),
		Ratings:          NewPostgresRatingRepository(db),
		Offices:          NewPostgresOfficeRepository(db),
	}
}
