package dispatcher

import (
	"context"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/events"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

// NextResult reports what a next command did: the ticket now being served
// (nil when the queue ran dry) and the previously serving ticket it closed.
type NextResult struct {
	Called    *models.Ticket `json:"called,omitempty"`
	Completed *models.Ticket `json:"completed,omitempty"`
	NoMore    bool           `json:"no_more"`
}

// Next advances the window: closes the currently-serving ticket and calls
// the next eligible one.
func (d *Dispatcher) Next(ctx context.Context, windowID string, principal models.Principal) (*NextResult, error) {
	w, err := d.store.Windows.GetByID(ctx, windowID)
	if err != nil {
		return nil, err
	}
	if !w.IsOpen || !w.IsServing {
		return nil, apperr.E(apperr.CodeConflict, "window %s is not serving", w.Name)
	}

	unlock := d.lockWindow(w.ID)
	defer unlock()

	candidate, err := d.selectCandidate(ctx, w)
	if err != nil {
		return nil, err
	}

	completed, err := d.completeCurrent(ctx, w)
	if err != nil {
		return nil, err
	}

	if candidate == nil {
		d.hub.EmitAll(events.Event{
			Type:     events.TypeNoMoreQueues,
			Office:   w.Office,
			WindowID: w.ID,
			Data:     map[string]interface{}{"window_id": w.ID, "window_name": w.Name},
		}, events.RoomAdmin(w.Office), events.RoomKiosk)
		if completed != nil {
			d.emitTicketUpdate(completed)
		}
		return &NextResult{Completed: completed, NoMore: true}, nil
	}

	now := d.clock.Now()
	called, err := d.updateTicket(ctx, candidate, func(t *models.Ticket) {
		t.Status = models.StatusServing
		t.CurrentlyServing = true
		t.CalledAt = &now
		t.ServedAt = &now
		who := principal.UserID
		t.ProcessedBy = &who
	})
	if err != nil {
		return nil, err
	}

	d.logger.Printf("next called: window=%s number=%d office=%s", w.Name, called.Number, w.Office)
	d.hub.EmitAll(events.Event{
		Type:     events.TypeNextCalled,
		Office:   w.Office,
		WindowID: w.ID,
		Data:     ticketEvent(called),
	}, events.RoomAdmin(w.Office), events.RoomKiosk)
	d.emitTicketUpdate(called)
	if completed != nil {
		d.emitTicketUpdate(completed)
	}

	return &NextResult{Called: called, Completed: completed}, nil
}

// selectCandidate picks the oldest waiting ticket for the window: priority
// class fixed by the window name, service restricted to the window's set,
// then retried without the service filter so tickets transferred from a
// window with a foreign service still get called.
func (d *Dispatcher) selectCandidate(ctx context.Context, w *models.Window) (*models.Ticket, error) {
	isPriority := w.IsPriority()
	base := func(serviceIDs []string) ([]*models.Ticket, error) {
		return d.store.Tickets.Find(ctx, ticketQueryWaiting(w, isPriority, serviceIDs))
	}

	found, err := base(w.ServiceIDs)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		if found, err = base(nil); err != nil {
			return nil, err
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// completeCurrent closes the window's serving ticket, if any.
func (d *Dispatcher) completeCurrent(ctx context.Context, w *models.Window) (*models.Ticket, error) {
	current, err := d.store.Tickets.CurrentlyServing(ctx, w.ID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	now := d.clock.Now()
	return d.updateTicket(ctx, current, func(t *models.Ticket) {
		t.Status = models.StatusCompleted
		t.CurrentlyServing = false
		t.CompletedAt = &now
	})
}

// Recall re-announces the window's currently-serving ticket without touching
// its state.
func (d *Dispatcher) Recall(ctx context.Context, windowID string) (*models.Ticket, error) {
	w, err := d.store.Windows.GetByID(ctx, windowID)
	if err != nil {
		return nil, err
	}
	current, err := d.store.Tickets.CurrentlyServing(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	d.hub.EmitAll(events.Event{
		Type:     events.TypeQueueRecalled,
		Office:   w.Office,
		WindowID: w.ID,
		Data:     ticketEvent(current),
	}, events.RoomAdmin(w.Office), events.RoomKiosk)
	d.emitTicketUpdate(current)
	return current, nil
}

// Previous pulls back the window's most recently completed ticket of the
// day: the current serving ticket (if any) reverts to waiting, the previous
// one is served again. Its completed_at survives until the next completion
// overwrites it.
func (d *Dispatcher) Previous(ctx context.Context, windowID string, principal models.Principal) (*models.Ticket, error) {
	w, err := d.store.Windows.GetByID(ctx, windowID)
	if err != nil {
		return nil, err
	}

	unlock := d.lockWindow(w.ID)
	defer unlock()

	prev, err := d.store.Tickets.LastCompleted(ctx, w.ID, d.clock.TodayStart())
	if err != nil {
		return nil, err
	}

	if current, err := d.store.Tickets.CurrentlyServing(ctx, w.ID); err == nil {
		if _, err := d.updateTicket(ctx, current, func(t *models.Ticket) {
			t.Status = models.StatusWaiting
			t.CurrentlyServing = false
			t.CalledAt = nil
		}); err != nil {
			return nil, err
		}
	} else if !apperr.Is(err, apperr.CodeNotFound) {
		return nil, err
	}

	now := d.clock.Now()
	served, err := d.updateTicket(ctx, prev, func(t *models.Ticket) {
		t.Status = models.StatusServing
		t.CurrentlyServing = true
		t.CalledAt = &now
		who := principal.UserID
		t.ProcessedBy = &who
	})
	if err != nil {
		return nil, err
	}

	d.hub.EmitAll(events.Event{
		Type:     events.TypePreviousRecalled,
		Office:   w.Office,
		WindowID: w.ID,
		Data:     ticketEvent(served),
	}, events.RoomAdmin(w.Office), events.RoomKiosk)
	d.emitTicketUpdate(served)
	return served, nil
}

// SkipResult carries both sides of a skip: the ticket set aside and the one
// called in its place.
type SkipResult struct {
	Skipped *models.Ticket `json:"skipped"`
	Called  *models.Ticket `json:"called,omitempty"`
	NoMore  bool           `json:"no_more"`
}

// Skip sets the serving ticket aside (re-eligible via requeue today) and
// advances to the next eligible ticket.
func (d *Dispatcher) Skip(ctx context.Context, windowID string, principal models.Principal) (*SkipResult, error) {
	w, err := d.store.Windows.GetByID(ctx, windowID)
	if err != nil {
		return nil, err
	}

	unlock := d.lockWindow(w.ID)
	defer unlock()

	current, err := d.store.Tickets.CurrentlyServing(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	now := d.clock.Now()
	skipped, err := d.updateTicket(ctx, current, func(t *models.Ticket) {
		t.Status = models.StatusSkipped
		t.CurrentlyServing = false
		t.SkippedAt = &now
	})
	if err != nil {
		return nil, err
	}

	candidate, err := d.selectCandidate(ctx, w)
	if err != nil {
		return nil, err
	}

	result := &SkipResult{Skipped: skipped}
	if candidate == nil {
		result.NoMore = true
	} else {
		callTime := d.clock.Now()
		called, err := d.updateTicket(ctx, candidate, func(t *models.Ticket) {
			t.Status = models.StatusServing
			t.CurrentlyServing = true
			t.CalledAt = &callTime
			t.ServedAt = &callTime
			who := principal.UserID
			t.ProcessedBy = &who
		})
		if err != nil {
			return nil, err
		}
		result.Called = called
	}

	payload := map[string]interface{}{"skipped": ticketEvent(skipped)}
	if result.Called != nil {
		payload["called"] = ticketEvent(result.Called)
	}
	d.hub.EmitAll(events.Event{
		Type:     events.TypeQueueSkipped,
		Office:   w.Office,
		WindowID: w.ID,
		Data:     payload,
	}, events.RoomAdmin(w.Office), events.RoomKiosk)
	d.emitTicketUpdate(skipped)
	if result.Called != nil {
		d.emitTicketUpdate(result.Called)
	}
	return result, nil
}

// Transfer moves the source window's serving ticket to another window in the
// same office. The ticket re-enters the destination queue as waiting and its
// priority flag is recomputed from the destination window's name.
func (d *Dispatcher) Transfer(ctx context.Context, fromWindowID, toWindowID string) (*models.Ticket, error) {
	if fromWindowID == toWindowID {
		return nil, apperr.Validation("cannot transfer to the same window", apperr.FieldError{
			Field: "to_window_id", Message: "destination must differ from source",
		})
	}
	from, err := d.store.Windows.GetByID(ctx, fromWindowID)
	if err != nil {
		return nil, err
	}
	to, err := d.store.Windows.GetByID(ctx, toWindowID)
	if err != nil {
		return nil, err
	}
	if from.Office != to.Office {
		return nil, apperr.Validation("cross-office transfer is not supported", apperr.FieldError{
			Field: "to_window_id", Message: "both windows must belong to the same office",
		})
	}
	if !to.IsOpen {
		return nil, apperr.E(apperr.CodeConflict, "window %s is closed", to.Name)
	}

	unlock := d.lockWindows(from.ID, to.ID)
	defer unlock()

	current, err := d.store.Tickets.CurrentlyServing(ctx, from.ID)
	if err != nil {
		return nil, err
	}

	moved, err := d.updateTicket(ctx, current, func(t *models.Ticket) {
		t.WindowID = to.ID
		t.Status = models.StatusWaiting
		t.CurrentlyServing = false
		t.CalledAt = nil
		t.Priority = to.IsPriority()
	})
	if err != nil {
		return nil, err
	}

	d.logger.Printf("ticket transferred: number=%d from=%s to=%s office=%s",
		moved.Number, from.Name, to.Name, from.Office)
	d.hub.EmitAll(events.Event{
		Type:     events.TypeQueueTransferred,
		Office:   from.Office,
		WindowID: to.ID,
		Data: map[string]interface{}{
			"ticket":         ticketEvent(moved),
			"from_window_id": from.ID,
			"to_window_id":   to.ID,
		},
	}, events.RoomAdmin(from.Office), events.RoomKiosk)
	d.emitTicketUpdate(moved)
	return moved, nil
}

// Stop actions.
const (
	ActionPause  = "pause"
	ActionResume = "resume"
)

// Stop pauses or resumes serving at a window. Purely advisory to Next.
func (d *Dispatcher) Stop(ctx context.Context, windowID, action string) (*models.Window, error) {
	if action != ActionPause && action != ActionResume {
		return nil, apperr.Validation("unknown action", apperr.FieldError{
			Field: "action", Message: "must be pause or resume", Value: action,
		})
	}

	unlock := d.lockWindow(windowID)
	defer unlock()

	w, err := d.store.Windows.GetByID(ctx, windowID)
	if err != nil {
		return nil, err
	}
	w.IsServing = action == ActionResume
	if err := d.store.Windows.Update(ctx, w); err != nil {
		return nil, err
	}

	d.hub.EmitAll(events.Event{
		Type:     events.TypeServingStatusChanged,
		Office:   w.Office,
		WindowID: w.ID,
		Data: map[string]interface{}{
			"window_id":  w.ID,
			"is_open":    w.IsOpen,
			"is_serving": w.IsServing,
		},
	}, events.RoomAdmin(w.Office), events.RoomKiosk)
	return w, nil
}

// Requeue moves today's skipped tickets that the window can serve back to
// waiting with a fresh queued_at. A non-nil numbers set restricts the sweep
// to those display numbers.
func (d *Dispatcher) Requeue(ctx context.Context, windowID string, numbers []int) ([]*models.Ticket, error) {
	w, err := d.store.Windows.GetByID(ctx, windowID)
	if err != nil {
		return nil, err
	}

	unlock := d.lockWindow(w.ID)
	defer unlock()

	today := d.clock.TodayStart()
	skipped, err := d.store.Tickets.Find(ctx, ticketQuerySkipped(w.Office, w.ServiceIDs, today))
	if err != nil {
		return nil, err
	}

	wanted := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		wanted[n] = true
	}

	var requeued []*models.Ticket
	for _, t := range skipped {
		if numbers != nil && !wanted[t.Number] {
			continue
		}
		now := d.clock.Now()
		back, err := d.updateTicket(ctx, t, func(t *models.Ticket) {
			t.Status = models.StatusWaiting
			t.QueuedAt = now
			t.SkippedAt = nil
		})
		if err != nil {
			return nil, err
		}
		requeued = append(requeued, back)
	}

	evType := events.TypeQueueRequeuedAll
	if numbers != nil {
		evType = events.TypeQueueRequeuedSelected
	}
	payload := make([]map[string]interface{}, len(requeued))
	for i, t := range requeued {
		payload[i] = ticketEvent(t)
	}
	d.hub.EmitAll(events.Event{
		Type:     evType,
		Office:   w.Office,
		WindowID: w.ID,
		Data:     map[string]interface{}{"tickets": payload},
	}, events.RoomAdmin(w.Office), events.RoomKiosk)
	for _, t := range requeued {
		d.emitTicketUpdate(t)
	}
	return requeued, nil
}
