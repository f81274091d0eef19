package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

// PostgresServiceRepository implements ServiceRepository.
type PostgresServiceRepository struct {
	db *sqlx.DB
}

func NewPostgresServiceRepository(db *sqlx.DB) *PostgresServiceRepository {
	return &PostgresServiceRepository{db: db}
}

func (r *PostgresServiceRepository) GetByID(ctx context.Context, id string) (*models.Service, error) {
	var s models.Service
	err := r.db.GetContext(ctx, &s,
		`SELECT id, office, name, active, special_request FROM services WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr(err, "service")
	}
	return &s, nil
}

func (r *PostgresServiceRepository) GetByName(ctx context.Context, office models.Office, name string) (*models.Service, error) {
	var s models.Service
	err := r.db.GetContext(ctx, &s, `
		SELECT id, office, name, active, special_request FROM services
		WHERE office = $1 AND name = $2`, office, name)
	if err != nil {
		return nil, mapErr(err, "service")
	}
	return &s, nil
}

func (r *PostgresServiceRepository) ListByOffice(ctx context.Context, office models.Office, includeSpecial bool) ([]*models.Service, error) {
	query := `SELECT id, office, name, active, special_request FROM services
		WHERE office = $1 AND active = TRUE`
	if !includeSpecial {
		query += ` AND special_request = FALSE`
	}
	query += ` ORDER BY name`

	var out []*models.Service
	if err := r.db.SelectContext(ctx, &out, query, office); err != nil {
		return nil, mapErr(err, "service")
	}
	return out, nil
}

func (r *PostgresServiceRepository) GetMany(ctx context.Context, ids []string) (map[string]*models.Service, error) {
	out := make(map[string]*models.Service, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, office, name, active, special_request FROM services WHERE id IN (?)`, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "service batch query")
	}
	var rows []*models.Service
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, mapErr(err, "service")
	}
	for _, s := range rows {
		out[s.ID] = s
	}
	return out, nil
}

// PostgresWindowRepository implements WindowRepository. Window service sets
// live in a window_services join table and are loaded in one extra query per
// call, never per window.
type PostgresWindowRepository struct {
	db *sqlx.DB
}

func NewPostgresWindowRepository(db *sqlx.DB) *PostgresWindowRepository {
	return &PostgresWindowRepository{db: db}
}

func (r *PostgresWindowRepository) GetByID(ctx context.Context, id string) (*models.Window, error) {
	var w models.Window
	err := r.db.GetContext(ctx, &w,
		`SELECT id, office, name, is_open, is_serving, version FROM windows WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr(err, "window")
	}
	if err := r.attachServices(ctx, []*models.Window{&w}); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *PostgresWindowRepository) ListByOffice(ctx context.Context, office models.Office) ([]*models.Window, error) {
	var out []*models.Window
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, office, name, is_open, is_serving, version FROM windows
		WHERE office = $1 ORDER BY name`, office)
	if err != nil {
		return nil, mapErr(err, "window")
	}
	if err := r.attachServices(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresWindowRepository) Update(ctx context.Context, w *models.Window) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE windows SET is_open = $1, is_serving = $2, version = version + 1
		WHERE id = $3 AND version = $4`,
		w.IsOpen, w.IsServing, w.ID, w.Version)
	if err != nil {
		return mapErr(err, "window")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err, "window")
	}
	if n == 0 {
		return apperr.E(apperr.CodeConflict, "window %s was modified concurrently", w.ID)
	}
	w.Version++
	return nil
}

func (r *PostgresWindowRepository) GetMany(ctx context.Context, ids []string) (map[string]*models.Window, error) {
	out := make(map[string]*models.Window, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, office, name, is_open, is_serving, version FROM windows WHERE id IN (?)`, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "window batch query")
	}
	var rows []*models.Window
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, mapErr(err, "window")
	}
	if err := r.attachServices(ctx, rows); err != nil {
		return nil, err
	}
	for _, w := range rows {
		out[w.ID] = w
	}
	return out, nil
}

func (r *PostgresWindowRepository) attachServices(ctx context.Context, windows []*models.Window) error {
	if len(windows) == 0 {
		return nil
	}
	ids := make([]string, len(windows))
	byID := make(map[string]*models.Window, len(windows))
	for i, w := range windows {
		ids[i] = w.ID
		byID[w.ID] = w
	}
	query, args, err := sqlx.In(
		`SELECT window_id, service_id FROM window_services WHERE window_id IN (?)`, ids)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "window services query")
	}
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return mapErr(err, "window services")
	}
	defer rows.Close()
	for rows.Next() {
		var windowID, serviceID string
		if err := rows.Scan(&windowID, &serviceID); err != nil {
			return mapErr(err, "window services")
		}
		if w := byID[windowID]; w != nil {
			w.ServiceIDs = append(w.ServiceIDs, serviceID)
		}
	}
	return mapErr(rows.Err(), "window services")
}

// PostgresOfficeRepository serves office metadata.
type PostgresOfficeRepository struct {
	db *sqlx.DB
}

func NewPostgresOfficeRepository(db *sqlx.DB) *PostgresOfficeRepository {
	return &PostgresOfficeRepository{db: db}
}

func (r *PostgresOfficeRepository) Location(ctx context.Context, office models.Office) (string, error) {
	var loc string
	err := r.db.GetContext(ctx, &loc,
		`SELECT location FROM offices WHERE id = $1`, office)
	if err != nil {
		return "", mapErr(err, "office")
	}
	return loc, nil
}
