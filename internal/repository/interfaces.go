// Package repository is the typed gateway over the document store. The
// dispatcher never issues raw queries; everything it needs is an interface
// here, with a Postgres implementation and an in-memory one for tests.
package repository

import (
	"context"
	"time"

	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

// TicketQuery describes an indexed ticket lookup. Zero values mean "any".
type TicketQuery struct {
	Office     models.Office
	WindowID   string
	Statuses   []string
	ServiceIDs []string
	Priority   *bool
	QueuedFrom *time.Time

	// OrderDesc flips the default queued_at ascending order.
	OrderDesc bool
	Limit     int
}

// StaleFilter selects tickets whose key timestamp (queued_at for waiting,
// skipped_at for skipped, null treated as stale) lies before Cutoff.
type StaleFilter struct {
	Office models.Office
	Cutoff time.Time
}

// TicketRepository is the C2 surface for tickets.
type TicketRepository interface {
	Create(ctx context.Context, t *models.Ticket) error
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	GetByTransactionNo(ctx context.Context, txn string) (*models.Ticket, error)
	Find(ctx context.Context, q TicketQuery) ([]*models.Ticket, error)

	// CurrentlyServing returns the unique serving ticket at a window, or
	// NotFound.
	CurrentlyServing(ctx context.Context, windowID string) (*models.Ticket, error)

	// Update writes the ticket back, compare-and-swapping on its version.
	// Returns Conflict when the stored version moved.
	Update(ctx context.Context, t *models.Ticket) error

	// LastCompleted returns the most recently completed ticket at a window
	// since the given instant, or NotFound.
	LastCompleted(ctx context.Context, windowID string, since time.Time) (*models.Ticket, error)

	// MaxNumberSince returns the highest assigned number for an office since
	// the given instant; zero when the office has no tickets today.
	MaxNumberSince(ctx context.Context, office models.Office, since time.Time) (int, error)

	// MarkStaleNoShow applies the daily rollover and reports how many rows
	// changed.
	MarkStaleNoShow(ctx context.Context, f StaleFilter) (int64, error)
}

// ServiceRepository reads the service catalog.
type ServiceRepository interface {
	GetByID(ctx context.Context, id string) (*models.Service, error)
	GetByName(ctx context.Context, office models.Office, name string) (*models.Service, error)
	ListByOffice(ctx context.Context, office models.Office, includeSpecial bool) ([]*models.Service, error)
	GetMany(ctx context.Context, ids []string) (map[string]*models.Service, error)
}

// WindowRepository reads and updates windows. Update CASes on version.
type WindowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Window, error)
	ListByOffice(ctx context.Context, office models.Office) ([]*models.Window, error)
	Update(ctx context.Context, w *models.Window) error
	GetMany(ctx context.Context, ids []string) (map[string]*models.Window, error)
}

// CustomerFormRepository stores the contact forms owned by tickets.
type CustomerFormRepository interface {
	Create(ctx context.Context, f *models.CustomerForm) error
	GetByID(ctx context.Context, id string) (*models.CustomerForm, error)
	GetMany(ctx context.Context, ids []string) (map[string]*models.CustomerForm, error)
}

// DocumentRequestRepository reads and creates document-request records. The
// approval workflow lives outside the core.
type DocumentRequestRepository interface {
	Create(ctx context.Context, r *models.DocumentRequest) error
	GetByTransactionNo(ctx context.Context, txn string) (*models.DocumentRequest, error)
}

// RatingRepository materializes rating records for reporting.
type RatingRepository interface {
	Create(ctx context.Context, r *models.Rating) error
}

// OfficeRepository serves the static office metadata (display location).
type OfficeRepository interface {
	Location(ctx context.Context, office models.Office) (string, error)
}

// Store bundles the repositories the dispatcher and API are wired with.
type Store struct {
	Tickets          TicketRepository
	Services         ServiceRepository
	Windows          WindowRepository
	CustomerForms    CustomerFormRepository
	DocumentRequests DocumentRequestRepository
	Ratings          RatingRepository
	Offices          OfficeRepository
}
