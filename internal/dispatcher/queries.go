package dispatcher

import (
	"time"

	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
)

// ticketQueryWaiting is the candidate query for next: oldest waiting ticket
// at the window in the window's priority class. A nil serviceIDs drops the
// service filter (the transferred-ticket fallback).
func ticketQueryWaiting(w *models.Window, isPriority bool, serviceIDs []string) repository.TicketQuery {
	return repository.TicketQuery{
		Office:     w.Office,
		WindowID:   w.ID,
		Statuses:   []string{models.StatusWaiting},
		ServiceIDs: serviceIDs,
		Priority:   &isPriority,
		Limit:      1,
	}
}

// ticketQuerySkipped selects today's skipped tickets the window's service
// set covers. Prior days are invisible; rollover already converted them.
func ticketQuerySkipped(office models.Office, serviceIDs []string, todayStart time.Time) repository.TicketQuery {
	return repository.TicketQuery{
		Office:     office,
		Statuses:   []string{models.StatusSkipped},
		ServiceIDs: serviceIDs,
		QueuedFrom: &todayStart,
	}
}
