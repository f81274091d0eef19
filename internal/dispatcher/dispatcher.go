// Package dispatcher is the queue core: it admits tickets, executes the
// window commands admins issue, and publishes the resulting deltas to the
// event hub. Every mutation is serialized by a per-window lock (plus a
// per-office lock around numbering) and persisted through the repository
// gateway before any event leaves the process.
package dispatcher

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/clock"
	"github.com/frontdesk-io/frontdesk-ce/internal/config"
	"github.com/frontdesk-io/frontdesk-ce/internal/events"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/numbering"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
	"github.com/frontdesk-io/frontdesk-ce/internal/routing"
)

// casRetries bounds the optimistic-update retry loop. Conflicts here can
// only come from writers outside the dispatcher's locks.
const casRetries = 3

// Dispatcher coordinates all queue mutations.
type Dispatcher struct {
	store  *repository.Store
	seq    *numbering.Sequence
	txnGen *numbering.TransactionNoGenerator
	router *routing.Router
	hub    *events.Hub
	clock  clock.Clock
	logger *log.Logger

	queueCfg func() config.QueueConfig

	mu          sync.Mutex
	windowLocks map[string]*sync.Mutex
}

// Options carries optional dependencies for New.
type Options struct {
	Logger   *log.Logger
	QueueCfg func() config.QueueConfig
}

// New wires a dispatcher over the store, hub and clock.
func New(store *repository.Store, hub *events.Hub, clk clock.Clock, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	queueCfg := opts.QueueCfg
	if queueCfg == nil {
		queueCfg = func() config.QueueConfig { return config.Get().Queue }
	}
	return &Dispatcher{
		store:       store,
		seq:         numbering.NewSequence(store.Tickets, clk),
		txnGen:      numbering.NewTransactionNoGenerator(clk),
		router:      routing.NewRouter(store.Windows),
		hub:         hub,
		clock:       clk,
		logger:      logger,
		queueCfg:    queueCfg,
		windowLocks: make(map[string]*sync.Mutex),
	}
}

// Clock exposes the dispatcher's clock to collaborating packages.
func (d *Dispatcher) Clock() clock.Clock { return d.clock }

// lockWindow serializes commands against one window and returns the unlock.
func (d *Dispatcher) lockWindow(windowID string) func() {
	mu := d.windowMutex(windowID)
	mu.Lock()
	return mu.Unlock
}

// lockWindows acquires several window locks in ascending id order so
// concurrent transfers cannot deadlock.
func (d *Dispatcher) lockWindows(ids ...string) func() {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	unlocks := make([]func(), 0, len(sorted))
	for _, id := range sorted {
		unlocks = append(unlocks, d.lockWindow(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (d *Dispatcher) windowMutex(windowID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	mu, ok := d.windowLocks[windowID]
	if !ok {
		mu = &sync.Mutex{}
		d.windowLocks[windowID] = mu
	}
	return mu
}

// updateTicket writes a ticket back with a bounded CAS retry: on conflict
// the stored row is re-read and mutate is re-applied.
func (d *Dispatcher) updateTicket(ctx context.Context, t *models.Ticket, mutate func(*models.Ticket)) (*models.Ticket, error) {
	cur := t
	for attempt := 0; ; attempt++ {
		mutate(cur)
		err := d.store.Tickets.Update(ctx, cur)
		if err == nil {
			return cur, nil
		}
		if !apperr.Is(err, apperr.CodeConflict) || attempt >= casRetries {
			return nil, err
		}
		fresh, rerr := d.store.Tickets.GetByID(ctx, cur.ID)
		if rerr != nil {
			return nil, rerr
		}
		cur = fresh
	}
}

// ticketEvent builds the ticket-facing payload events carry.
func ticketEvent(t *models.Ticket) map[string]interface{} {
	payload := map[string]interface{}{
		"ticket_id": t.ID,
		"number":    t.Number,
		"office":    t.Office,
		"window_id": t.WindowID,
		"status":    t.Status,
		"priority":  t.Priority,
	}
	if t.TransactionNo != nil {
		payload["transaction_no"] = *t.TransactionNo
	}
	return payload
}

// emitTicketUpdate publishes the ticket's own room update. Emission is
// post-commit and best-effort.
func (d *Dispatcher) emitTicketUpdate(t *models.Ticket) {
	d.hub.Emit(events.RoomTicket(t.ID), events.Event{
		Type:     events.TypeQueueStatusUpdated,
		Office:   t.Office,
		WindowID: t.WindowID,
		Data:     ticketEvent(t),
	})
}
