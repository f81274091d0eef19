// Package lookup builds the read-only projections the kiosk, public portal
// and admin dashboard render. Everything here is bounded: capped lists,
// batched service/form resolution, no N+1 reads.
package lookup

import (
	"context"
	"time"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/clock"
	"github.com/frontdesk-io/frontdesk-ce/internal/janitor"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
)

const (
	publicWaitingCap = 5
	adminWaitingCap  = 20
	upcomingCap      = 2
)

// Service answers snapshot and ticket-detail queries.
type Service struct {
	store        *repository.Store
	clock        clock.Clock
	lookupMaxAge time.Duration
}

// NewService builds the lookup service. maxAge bounds how old a ticket may
// be before lookups answer Gone.
func NewService(store *repository.Store, clk clock.Clock, maxAge time.Duration) *Service {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Service{store: store, clock: clk, lookupMaxAge: maxAge}
}

// WindowSnapshot is one open window on the public board.
type WindowSnapshot struct {
	WindowID   string `json:"window_id"`
	WindowName string `json:"window_name"`
	Serving    int    `json:"serving"`
	NextInLine int    `json:"next_in_line"`
}

// WaitingEntry is one row of a waiting list.
type WaitingEntry struct {
	TicketID    string    `json:"ticket_id"`
	Number      int       `json:"number"`
	DisplayName string    `json:"display_name"`
	ServiceName string    `json:"service_name,omitempty"`
	Priority    bool      `json:"priority"`
	QueuedAt    time.Time `json:"queued_at"`
}

// PublicSnapshot is the kiosk/public display projection.
type PublicSnapshot struct {
	Office  models.Office    `json:"office"`
	Windows []WindowSnapshot `json:"windows"`
	Waiting []WaitingEntry   `json:"waiting"`
}

// Public builds the public queue board for an office.
func (s *Service) Public(ctx context.Context, office models.Office) (*PublicSnapshot, error) {
	if !office.Valid() {
		return nil, apperr.E(apperr.CodeNotFound, "unknown office")
	}
	windows, err := s.store.Windows.ListByOffice(ctx, office)
	if err != nil {
		return nil, err
	}

	snap := &PublicSnapshot{Office: office, Windows: []WindowSnapshot{}}
	for _, w := range windows {
		if !w.IsOpen {
			continue
		}
		ws := WindowSnapshot{WindowID: w.ID, WindowName: w.Name}
		if cur, err := s.store.Tickets.CurrentlyServing(ctx, w.ID); err == nil {
			ws.Serving = cur.Number
		} else if !apperr.Is(err, apperr.CodeNotFound) {
			return nil, err
		}
		upNext, err := s.waitingAt(ctx, w, 1)
		if err != nil {
			return nil, err
		}
		if len(upNext) > 0 {
			ws.NextInLine = upNext[0].Number
		}
		snap.Windows = append(snap.Windows, ws)
	}

	waiting, err := s.waitingList(ctx, office, publicWaitingCap)
	if err != nil {
		return nil, err
	}
	snap.Waiting = waiting
	return snap, nil
}

// AdminSnapshot is the per-window dashboard projection.
type AdminSnapshot struct {
	Office         models.Office  `json:"office"`
	WindowID       string         `json:"window_id"`
	Waiting        []WaitingEntry `json:"waiting"`
	Serving        *WaitingEntry  `json:"serving,omitempty"`
	SkippedNumbers []int          `json:"skipped_numbers"`
}

// Admin builds the dashboard projection for one window. Special-request
// services stay out of the waiting list here too.
func (s *Service) Admin(ctx context.Context, windowID string) (*AdminSnapshot, error) {
	w, err := s.store.Windows.GetByID(ctx, windowID)
	if err != nil {
		return nil, err
	}

	isPriority := w.IsPriority()
	waitingTickets, err := s.store.Tickets.Find(ctx, repository.TicketQuery{
		Office:   w.Office,
		WindowID: w.ID,
		Statuses: []string{models.StatusWaiting},
		Priority: &isPriority,
		Limit:    adminWaitingCap,
	})
	if err != nil {
		return nil, err
	}
	waiting, err := s.resolveEntries(ctx, waitingTickets, true)
	if err != nil {
		return nil, err
	}

	snap := &AdminSnapshot{
		Office:         w.Office,
		WindowID:       w.ID,
		Waiting:        waiting,
		SkippedNumbers: []int{},
	}

	if cur, err := s.store.Tickets.CurrentlyServing(ctx, w.ID); err == nil {
		entries, err := s.resolveEntries(ctx, []*models.Ticket{cur}, false)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			snap.Serving = &entries[0]
		}
	} else if !apperr.Is(err, apperr.CodeNotFound) {
		return nil, err
	}

	today := s.clock.TodayStart()
	skipped, err := s.store.Tickets.Find(ctx, repository.TicketQuery{
		Office:     w.Office,
		Statuses:   []string{models.StatusSkipped},
		ServiceIDs: w.ServiceIDs,
		QueuedFrom: &today,
	})
	if err != nil {
		return nil, err
	}
	for _, t := range skipped {
		snap.SkippedNumbers = append(snap.SkippedNumbers, t.Number)
	}
	return snap, nil
}

// TicketDetail is the QR/portal projection for one ticket.
type TicketDetail struct {
	Ticket      *models.Ticket `json:"ticket"`
	ServiceName string         `json:"service_name"`
	WindowName  string         `json:"window_name"`
	Location    string         `json:"location"`
	NowServing  int            `json:"now_serving"`
	Upcoming    []int          `json:"upcoming"`
	DisplayName string         `json:"display_name"`
}

// Ticket resolves one ticket with its surroundings. Tickets older than the
// configured lookup age answer Gone.
func (s *Service) Ticket(ctx context.Context, ticketID string) (*TicketDetail, error) {
	t, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := janitor.CheckFreshness(t, s.clock.Now(), s.lookupMaxAge); err != nil {
		return nil, err
	}

	w, err := s.store.Windows.GetByID(ctx, t.WindowID)
	if err != nil {
		return nil, err
	}
	svc, err := s.store.Services.GetByID(ctx, t.ServiceID)
	if err != nil {
		return nil, err
	}
	location, err := s.store.Offices.Location(ctx, t.Office)
	if err != nil {
		return nil, err
	}

	detail := &TicketDetail{
		Ticket:      t,
		ServiceName: svc.Name,
		WindowName:  w.Name,
		Location:    location,
		Upcoming:    []int{},
	}

	var form *models.CustomerForm
	if t.CustomerFormID != nil {
		forms, err := s.store.CustomerForms.GetMany(ctx, []string{*t.CustomerFormID})
		if err != nil {
			return nil, err
		}
		form = forms[*t.CustomerFormID]
	}
	detail.DisplayName = models.DisplayName(t, form)

	if cur, err := s.store.Tickets.CurrentlyServing(ctx, w.ID); err == nil {
		detail.NowServing = cur.Number
	} else if !apperr.Is(err, apperr.CodeNotFound) {
		return nil, err
	}

	upcoming, err := s.waitingAt(ctx, w, upcomingCap)
	if err != nil {
		return nil, err
	}
	for _, u := range upcoming {
		detail.Upcoming = append(detail.Upcoming, u.Number)
	}
	return detail, nil
}

// waitingAt returns the first waiting tickets at a window in its priority
// class.
func (s *Service) waitingAt(ctx context.Context, w *models.Window, limit int) ([]*models.Ticket, error) {
	isPriority := w.IsPriority()
	return s.store.Tickets.Find(ctx, repository.TicketQuery{
		Office:   w.Office,
		WindowID: w.ID,
		Statuses: []string{models.StatusWaiting},
		Priority: &isPriority,
		Limit:    limit,
	})
}

// waitingList returns the office-wide waiting list. Special-request
// services are excluded in the query itself so the board always fills to
// the cap no matter how many special tickets sit ahead.
func (s *Service) waitingList(ctx context.Context, office models.Office, limit int) ([]WaitingEntry, error) {
	svcs, err := s.store.Services.ListByOffice(ctx, office, false)
	if err != nil {
		return nil, err
	}
	if len(svcs) == 0 {
		return []WaitingEntry{}, nil
	}
	serviceIDs := make([]string, 0, len(svcs))
	for _, svc := range svcs {
		serviceIDs = append(serviceIDs, svc.ID)
	}

	tickets, err := s.store.Tickets.Find(ctx, repository.TicketQuery{
		Office:     office,
		Statuses:   []string{models.StatusWaiting},
		ServiceIDs: serviceIDs,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	return s.resolveEntries(ctx, tickets, false)
}

// resolveEntries batches the service and form reads for a ticket list and
// renders display rows. filterSpecial drops tickets on special-request
// services.
func (s *Service) resolveEntries(ctx context.Context, tickets []*models.Ticket, filterSpecial bool) ([]WaitingEntry, error) {
	serviceIDs := make([]string, 0, len(tickets))
	formIDs := make([]string, 0, len(tickets))
	seenSvc := make(map[string]bool)
	for _, t := range tickets {
		if !seenSvc[t.ServiceID] {
			seenSvc[t.ServiceID] = true
			serviceIDs = append(serviceIDs, t.ServiceID)
		}
		if t.CustomerFormID != nil {
			formIDs = append(formIDs, *t.CustomerFormID)
		}
	}

	services, err := s.store.Services.GetMany(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}
	forms, err := s.store.CustomerForms.GetMany(ctx, formIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]WaitingEntry, 0, len(tickets))
	for _, t := range tickets {
		svc := services[t.ServiceID]
		if filterSpecial && svc != nil && svc.SpecialRequest {
			continue
		}
		var form *models.CustomerForm
		if t.CustomerFormID != nil {
			form = forms[*t.CustomerFormID]
		}
		entry := WaitingEntry{
			TicketID:    t.ID,
			Number:      t.Number,
			DisplayName: models.DisplayName(t, form),
			Priority:    t.Priority,
			QueuedAt:    t.QueuedAt,
		}
		if svc != nil {
			entry.ServiceName = svc.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
