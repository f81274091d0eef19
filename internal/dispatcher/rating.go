package dispatcher

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

const maxRemarksLen = 500

// SubmitRating records customer feedback on a ticket. The write is
// idempotent: re-submitting replaces the score. One auto-approved rating
// record is materialized for reporting.
func (d *Dispatcher) SubmitRating(ctx context.Context, ticketID string, score int, remarks string) (*models.Ticket, error) {
	if score < 1 || score > 5 {
		return nil, apperr.Validation("invalid rating", apperr.FieldError{
			Field: "rating", Message: "must be between 1 and 5", Value: score,
		})
	}
	remarks = strings.TrimSpace(remarks)
	if len(remarks) > maxRemarksLen {
		return nil, apperr.Validation("remarks too long", apperr.FieldError{
			Field: "remarks", Message: "must be at most 500 characters",
		})
	}

	t, err := d.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	rated, err := d.updateTicket(ctx, t, func(t *models.Ticket) {
		s := score
		t.Rating = &s
		if remarks != "" {
			r := remarks
			t.Remarks = &r
		}
	})
	if err != nil {
		return nil, err
	}

	rec := &models.Rating{
		ID:        uuid.New().String(),
		TicketID:  rated.ID,
		Office:    rated.Office,
		Score:     score,
		Approved:  true,
		CreatedAt: d.clock.Now(),
	}
	if err := d.store.Ratings.Create(ctx, rec); err != nil {
		// The ticket already carries the score; losing the report row is
		// not worth failing the customer.
		d.logger.Printf("rating record write failed: ticket=%s err=%v", rated.ID, err)
	}
	return rated, nil
}
