package repository

import (
	"context"
	"database/sql"
	"errors"
	"net"

	"github.com/lib/pq"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
)

const pqUniqueViolation = "23505"

// mapErr translates driver errors into the store error taxonomy: NotFound,
// Conflict (unique violation), Timeout, Unavailable.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.CodeNotFound, err, "%s not found", what)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.CodeTimeout, err, "%s query timed out", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return apperr.Wrap(apperr.CodeConflict, err, "%s already exists", what)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sql.ErrConnDone) {
		return apperr.Wrap(apperr.CodeUnavailable, err, "store unreachable")
	}
	return apperr.Wrap(apperr.CodeInternal, err, "%s query failed", what)
}
