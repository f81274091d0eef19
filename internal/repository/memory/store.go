// Package memory provides in-memory implementations of the repository
// interfaces. They back unit tests and local development without Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
)

// NewStore builds a repository bundle backed entirely by process memory.
func NewStore() *repository.Store {
	return &repository.Store{
		Tickets:          NewTicketRepository(),
		Services:         NewServiceRepository(),
		Windows:          NewWindowRepository(),
		CustomerForms:    NewCustomerFormRepository(),
		DocumentRequests: NewDocumentRequestRepository(),
		Ratings:          NewRatingRepository(),
		Offices:          NewOfficeRepository(),
	}
}

// TicketRepository is the in-memory ticket store.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]models.Ticket
}

func NewTicketRepository() *TicketRepository {
	return &TicketRepository{tickets: make(map[string]models.Ticket)}
}

func (r *TicketRepository) Create(_ context.Context, t *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[t.ID]; exists {
		return apperr.E(apperr.CodeConflict, "ticket %s already exists", t.ID)
	}
	if t.TransactionNo != nil {
		for _, other := range r.tickets {
			if other.TransactionNo != nil && *other.TransactionNo == *t.TransactionNo &&
				models.HoldsTransactionNo(other.Status) {
				return apperr.E(apperr.CodeConflict, "transaction number %s already exists", *t.TransactionNo)
			}
		}
	}
	t.Version = 1
	r.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (r *TicketRepository) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, apperr.E(apperr.CodeNotFound, "ticket not found")
	}
	out := cloneTicket(&t)
	return &out, nil
}

// GetByTransactionNo prefers the ticket that still reserves the number;
// released holders (skipped, no-show, cancelled) are returned only when no
// reserving ticket exists, latest first.
func (r *TicketRepository) GetByTransactionNo(_ context.Context, txn string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var released *models.Ticket
	for id := range r.tickets {
		t := r.tickets[id]
		if t.TransactionNo == nil || *t.TransactionNo != txn {
			continue
		}
		if models.HoldsTransactionNo(t.Status) {
			out := cloneTicket(&t)
			return &out, nil
		}
		if released == nil || t.QueuedAt.After(released.QueuedAt) {
			out := cloneTicket(&t)
			released = &out
		}
	}
	if released != nil {
		return released, nil
	}
	return nil, apperr.E(apperr.CodeNotFound, "ticket not found")
}

func (r *TicketRepository) Find(_ context.Context, q repository.TicketQuery) ([]*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Ticket
	for id := range r.tickets {
		t := r.tickets[id]
		if !matches(&t, q) {
			continue
		}
		c := cloneTicket(&t)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.OrderDesc {
			return out[i].QueuedAt.After(out[j].QueuedAt)
		}
		return out[i].QueuedAt.Before(out[j].QueuedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(t *models.Ticket, q repository.TicketQuery) bool {
	if q.Office != "" && t.Office != q.Office {
		return false
	}
	if q.WindowID != "" && t.WindowID != q.WindowID {
		return false
	}
	if len(q.Statuses) > 0 && !containsString(q.Statuses, t.Status) {
		return false
	}
	if len(q.ServiceIDs) > 0 && !containsString(q.ServiceIDs, t.ServiceID) {
		return false
	}
	if q.Priority != nil && t.Priority != *q.Priority {
		return false
	}
	if q.QueuedFrom != nil && t.QueuedAt.Before(*q.QueuedFrom) {
		return false
	}
	return true
}

func (r *TicketRepository) CurrentlyServing(_ context.Context, windowID string) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tickets {
		if t.WindowID == windowID && t.CurrentlyServing && t.Status == models.StatusServing {
			out := cloneTicket(&t)
			return &out, nil
		}
	}
	return nil, apperr.E(apperr.CodeNotFound, "no serving ticket at window")
}

func (r *TicketRepository) Update(_ context.Context, t *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[t.ID]
	if !ok {
		return apperr.E(apperr.CodeNotFound, "ticket not found")
	}
	if stored.Version != t.Version {
		return apperr.E(apperr.CodeConflict, "ticket %s was modified concurrently", t.ID)
	}
	t.Version++
	r.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (r *TicketRepository) LastCompleted(_ context.Context, windowID string, since time.Time) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *models.Ticket
	for id := range r.tickets {
		t := r.tickets[id]
		if t.WindowID != windowID || t.Status != models.StatusCompleted || t.CompletedAt == nil {
			continue
		}
		if t.CompletedAt.Before(since) {
			continue
		}
		if best == nil || t.CompletedAt.After(*best.CompletedAt) {
			c := cloneTicket(&t)
			best = &c
		}
	}
	if best == nil {
		return nil, apperr.E(apperr.CodeNotFound, "no completed ticket at window")
	}
	return best, nil
}

func (r *TicketRepository) MaxNumberSince(_ context.Context, office models.Office, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	max := 0
	for _, t := range r.tickets {
		if t.Office == office && !t.QueuedAt.Before(since) && t.Number > max {
			max = t.Number
		}
	}
	return max, nil
}

func (r *TicketRepository) MarkStaleNoShow(_ context.Context, f repository.StaleFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tickets {
		if t.Office != f.Office {
			continue
		}
		stale := false
		switch t.Status {
		case models.StatusWaiting:
			stale = t.QueuedAt.IsZero() || t.QueuedAt.Before(f.Cutoff)
		case models.StatusSkipped:
			stale = t.SkippedAt == nil || t.SkippedAt.Before(f.Cutoff)
		}
		if !stale {
			continue
		}
		t.Status = models.StatusNoShow
		t.CurrentlyServing = false
		t.Version++
		r.tickets[id] = t
		n++
	}
	return n, nil
}

// ServiceRepository is the in-memory service catalog.
type ServiceRepository struct {
	mu       sync.RWMutex
	services map[string]models.Service
}

func NewServiceRepository() *ServiceRepository {
	return &ServiceRepository{services: make(map[string]models.Service)}
}

// Put seeds a service. Test helper.
func (r *ServiceRepository) Put(s *models.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID] = *s
}

func (r *ServiceRepository) GetByID(_ context.Context, id string) (*models.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, apperr.E(apperr.CodeNotFound, "service not found")
	}
	return &s, nil
}

func (r *ServiceRepository) GetByName(_ context.Context, office models.Office, name string) (*models.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.services {
		if s.Office == office && strings.EqualFold(s.Name, name) {
			out := s
			return &out, nil
		}
	}
	return nil, apperr.E(apperr.CodeNotFound, "service not found")
}

func (r *ServiceRepository) ListByOffice(_ context.Context, office models.Office, includeSpecial bool) ([]*models.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Service
	for id := range r.services {
		s := r.services[id]
		if s.Office != office || !s.Active {
			continue
		}
		if s.SpecialRequest && !includeSpecial {
			continue
		}
		c := s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *ServiceRepository) GetMany(_ context.Context, ids []string) (map[string]*models.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*models.Service, len(ids))
	for _, id := range ids {
		if s, ok := r.services[id]; ok {
			c := s
			out[id] = &c
		}
	}
	return out, nil
}

// WindowRepository is the in-memory window store.
type WindowRepository struct {
	mu      sync.RWMutex
	windows map[string]models.Window
}

func NewWindowRepository() *WindowRepository {
	return &WindowRepository{windows: make(map[string]models.Window)}
}

// Put seeds a window. Test helper.
func (r *WindowRepository) Put(w *models.Window) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w.Version == 0 {
		w.Version = 1
	}
	r.windows[w.ID] = cloneWindow(w)
}

func (r *WindowRepository) GetByID(_ context.Context, id string) (*models.Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.windows[id]
	if !ok {
		return nil, apperr.E(apperr.CodeNotFound, "window not found")
	}
	out := cloneWindow(&w)
	return &out, nil
}

func (r *WindowRepository) ListByOffice(_ context.Context, office models.Office) ([]*models.Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Window
	for id := range r.windows {
		w := r.windows[id]
		if w.Office != office {
			continue
		}
		c := cloneWindow(&w)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *WindowRepository) Update(_ context.Context, w *models.Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.windows[w.ID]
	if !ok {
		return apperr.E(apperr.CodeNotFound, "window not found")
	}
	if stored.Version != w.Version {
		return apperr.E(apperr.CodeConflict, "window %s was modified concurrently", w.ID)
	}
	w.Version++
	r.windows[w.ID] = cloneWindow(w)
	return nil
}

func (r *WindowRepository) GetMany(_ context.Context, ids []string) (map[string]*models.Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*models.Window, len(ids))
	for _, id := range ids {
		if w, ok := r.windows[id]; ok {
			c := cloneWindow(&w)
			out[id] = &c
		}
	}
	return out, nil
}

// CustomerFormRepository is the in-memory form store.
type CustomerFormRepository struct {
	mu    sync.RWMutex
	forms map[string]models.CustomerForm
}

func NewCustomerFormRepository() *CustomerFormRepository {
	return &CustomerFormRepository{forms: make(map[string]models.CustomerForm)}
}

func (r *CustomerFormRepository) Create(_ context.Context, f *models.CustomerForm) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.forms[f.ID]; exists {
		return apperr.E(apperr.CodeConflict, "customer form %s already exists", f.ID)
	}
	r.forms[f.ID] = *f
	return nil
}

func (r *CustomerFormRepository) GetByID(_ context.Context, id string) (*models.CustomerForm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forms[id]
	if !ok {
		return nil, apperr.E(apperr.CodeNotFound, "customer form not found")
	}
	return &f, nil
}

func (r *CustomerFormRepository) GetMany(_ context.Context, ids []string) (map[string]*models.CustomerForm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*models.CustomerForm, len(ids))
	for _, id := range ids {
		if f, ok := r.forms[id]; ok {
			c := f
			out[id] = &c
		}
	}
	return out, nil
}

// DocumentRequestRepository is the in-memory document-request store.
type DocumentRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]models.DocumentRequest
}

func NewDocumentRequestRepository() *DocumentRequestRepository {
	return &DocumentRequestRepository{requests: make(map[string]models.DocumentRequest)}
}

// Put seeds a request with a given status. Test helper.
func (r *DocumentRequestRepository) Put(d *models.DocumentRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[d.TransactionNo] = *d
}

func (r *DocumentRequestRepository) Create(_ context.Context, d *models.DocumentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[d.TransactionNo]; exists {
		return apperr.E(apperr.CodeConflict, "transaction number %s already exists", d.TransactionNo)
	}
	r.requests[d.TransactionNo] = *d
	return nil
}

func (r *DocumentRequestRepository) GetByTransactionNo(_ context.Context, txn string) (*models.DocumentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.requests[txn]
	if !ok {
		return nil, apperr.E(apperr.CodeNotFound, "document request not found")
	}
	out := d
	out.RequestItems = append([]string(nil), d.RequestItems...)
	return &out, nil
}

// RatingRepository is the in-memory rating sink.
type RatingRepository struct {
	mu      sync.Mutex
	ratings map[string]models.Rating
}

func NewRatingRepository() *RatingRepository {
	return &RatingRepository{ratings: make(map[string]models.Rating)}
}

func (r *RatingRepository) Create(_ context.Context, rec *models.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Idempotent per ticket, matching the SQL upsert.
	for id, existing := range r.ratings {
		if existing.TicketID == rec.TicketID {
			existing.Score = rec.Score
			r.ratings[id] = existing
			return nil
		}
	}
	r.ratings[rec.ID] = *rec
	return nil
}

// Count returns the number of stored ratings. Test helper.
func (r *RatingRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ratings)
}

// OfficeRepository is the in-memory office metadata store.
type OfficeRepository struct {
	mu        sync.RWMutex
	locations map[models.Office]string
}

func NewOfficeRepository() *OfficeRepository {
	return &OfficeRepository{locations: map[models.Office]string{
		models.OfficeRegistrar:  "Main Building, Ground Floor",
		models.OfficeAdmissions: "Main Building, Second Floor",
	}}
}

func (r *OfficeRepository) Location(_ context.Context, office models.Office) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.locations[office]
	if !ok {
		return "", apperr.E(apperr.CodeNotFound, "office not found")
	}
	return loc, nil
}

func cloneTicket(t *models.Ticket) models.Ticket {
	c := *t
	c.TransactionNo = clonePtr(t.TransactionNo)
	c.StudentStatus = clonePtr(t.StudentStatus)
	c.CustomerFormID = clonePtr(t.CustomerFormID)
	c.CalledAt = clonePtr(t.CalledAt)
	c.ServedAt = clonePtr(t.ServedAt)
	c.CompletedAt = clonePtr(t.CompletedAt)
	c.SkippedAt = clonePtr(t.SkippedAt)
	c.Rating = clonePtr(t.Rating)
	c.Remarks = clonePtr(t.Remarks)
	c.ProcessedBy = clonePtr(t.ProcessedBy)
	return c
}

func cloneWindow(w *models.Window) models.Window {
	c := *w
	c.ServiceIDs = append([]string(nil), w.ServiceIDs...)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
