// Package routing decides which window a fresh ticket lands on. The rules
// are small and fixed: priority tickets go to the office's open "Priority"
// window, everything else to an open non-priority window whose service set
// covers the ticket.
package routing

import (
	"context"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
)

// Router selects target windows for admits.
type Router struct {
	windows repository.WindowRepository
}

// NewRouter builds a router over the window repository.
func NewRouter(windows repository.WindowRepository) *Router {
	return &Router{windows: windows}
}

// Route returns the destination window for (office, serviceID, priority).
// When several non-priority windows qualify the lowest name wins, which
// keeps the choice deterministic without promising load balancing.
func (r *Router) Route(ctx context.Context, office models.Office, serviceID string, priority bool) (*models.Window, error) {
	windows, err := r.windows.ListByOffice(ctx, office)
	if err != nil {
		return nil, err
	}

	if priority {
		for _, w := range windows {
			if w.IsPriority() && w.IsOpen {
				return w, nil
			}
		}
		return nil, apperr.E(apperr.CodeUnavailable, "priority window is closed")
	}

	var best *models.Window
	for _, w := range windows {
		if w.IsPriority() || !w.IsOpen || !w.Serves(serviceID) {
			continue
		}
		if best == nil || w.Name < best.Name {
			best = w
		}
	}
	if best == nil {
		return nil, apperr.E(apperr.CodeUnavailable, "no open window serves this service")
	}
	return best, nil
}
