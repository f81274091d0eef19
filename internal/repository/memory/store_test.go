package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
)

func ticket(id string, number int, mutate func(*models.Ticket)) *models.Ticket {
	t := &models.Ticket{
		ID:        id,
		Office:    models.OfficeRegistrar,
		Number:    number,
		ServiceID: "svc",
		WindowID:  "win",
		Role:      models.RoleVisitor,
		Status:    models.StatusWaiting,
		QueuedAt:  time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC).Add(time.Duration(number) * time.Minute),
	}
	if mutate != nil {
		mutate(t)
	}
	return t
}

func TestTicketCreateAndGet(t *testing.T) {
	repo := NewTicketRepository()
	txn := "TR250602-001"
	require.NoError(t, repo.Create(context.Background(), ticket("t1", 1, func(x *models.Ticket) {
		x.TransactionNo = &txn
	})))

	got, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Number)
	assert.Equal(t, 1, got.Version)

	byTxn, err := repo.GetByTransactionNo(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, "t1", byTxn.ID)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestTicketCreateDuplicateTransactionNo(t *testing.T) {
	repo := NewTicketRepository()
	txn := "TR250602-001"
	require.NoError(t, repo.Create(context.Background(), ticket("t1", 1, func(x *models.Ticket) {
		x.TransactionNo = &txn
	})))
	err := repo.Create(context.Background(), ticket("t2", 2, func(x *models.Ticket) {
		x.TransactionNo = &txn
	}))
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestTicketCreateReusesReleasedTransactionNo(t *testing.T) {
	repo := NewTicketRepository()
	txn := "TR250602-001"
	require.NoError(t, repo.Create(context.Background(), ticket("t1", 1, func(x *models.Ticket) {
		x.TransactionNo = &txn
		x.Status = models.StatusNoShow
	})))

	// A no-show holder releases the number for a fresh claim ticket.
	require.NoError(t, repo.Create(context.Background(), ticket("t2", 2, func(x *models.Ticket) {
		x.TransactionNo = &txn
	})))

	// Lookup prefers the ticket that still reserves the number.
	got, err := repo.GetByTransactionNo(context.Background(), txn)
	require.NoError(t, err)
	assert.Equal(t, "t2", got.ID)
}

func TestTicketUpdateCAS(t *testing.T) {
	repo := NewTicketRepository()
	require.NoError(t, repo.Create(context.Background(), ticket("t1", 1, nil)))

	first, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	second, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)

	first.Status = models.StatusServing
	require.NoError(t, repo.Update(context.Background(), first))
	assert.Equal(t, 2, first.Version)

	// The stale copy loses.
	second.Status = models.StatusSkipped
	err = repo.Update(context.Background(), second)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	got, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, got.Status)
}

func TestTicketReadsAreSnapshots(t *testing.T) {
	repo := NewTicketRepository()
	require.NoError(t, repo.Create(context.Background(), ticket("t1", 1, nil)))

	got, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	got.Status = models.StatusCancelled

	again, err := repo.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, again.Status)
}

func TestTicketFindFilters(t *testing.T) {
	repo := NewTicketRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, ticket("t1", 1, nil)))
	require.NoError(t, repo.Create(ctx, ticket("t2", 2, func(x *models.Ticket) {
		x.Status = models.StatusServing
		x.CurrentlyServing = true
	})))
	require.NoError(t, repo.Create(ctx, ticket("t3", 3, func(x *models.Ticket) {
		x.Priority = true
	})))
	require.NoError(t, repo.Create(ctx, ticket("t4", 4, func(x *models.Ticket) {
		x.WindowID = "other"
		x.ServiceID = "svc2"
	})))

	waiting, err := repo.Find(ctx, repository.TicketQuery{
		Office:   models.OfficeRegistrar,
		Statuses: []string{models.StatusWaiting},
	})
	require.NoError(t, err)
	assert.Len(t, waiting, 3)
	// queued_at ascending.
	assert.Equal(t, "t1", waiting[0].ID)

	notPriority := false
	regular, err := repo.Find(ctx, repository.TicketQuery{
		WindowID: "win",
		Statuses: []string{models.StatusWaiting},
		Priority: &notPriority,
	})
	require.NoError(t, err)
	require.Len(t, regular, 1)
	assert.Equal(t, "t1", regular[0].ID)

	byService, err := repo.Find(ctx, repository.TicketQuery{ServiceIDs: []string{"svc2"}})
	require.NoError(t, err)
	require.Len(t, byService, 1)
	assert.Equal(t, "t4", byService[0].ID)

	desc, err := repo.Find(ctx, repository.TicketQuery{OrderDesc: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, "t4", desc[0].ID)

	from := time.Date(2025, 6, 2, 9, 3, 0, 0, time.UTC)
	recent, err := repo.Find(ctx, repository.TicketQuery{QueuedFrom: &from})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestCurrentlyServing(t *testing.T) {
	repo := NewTicketRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, ticket("t1", 1, func(x *models.Ticket) {
		x.Status = models.StatusServing
		x.CurrentlyServing = true
	})))

	cur, err := repo.CurrentlyServing(ctx, "win")
	require.NoError(t, err)
	assert.Equal(t, "t1", cur.ID)

	_, err = repo.CurrentlyServing(ctx, "other")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestLastCompleted(t *testing.T) {
	repo := NewTicketRepository()
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new"} {
		done := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, ticket(id, i+1, func(x *models.Ticket) {
			x.Status = models.StatusCompleted
			x.CompletedAt = &done
		})))
	}

	last, err := repo.LastCompleted(ctx, "win", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "new", last.ID)

	_, err = repo.LastCompleted(ctx, "win", base.Add(2*time.Hour))
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestMaxNumberSince(t *testing.T) {
	repo := NewTicketRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, ticket("t1", 12, nil)))
	require.NoError(t, repo.Create(ctx, ticket("t2", 7, nil)))

	max, err := repo.MaxNumberSince(ctx, models.OfficeRegistrar, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 12, max)

	max, err = repo.MaxNumberSince(ctx, models.OfficeRegistrar, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, max)

	max, err = repo.MaxNumberSince(ctx, models.OfficeAdmissions, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, max)
}

func TestWindowUpdateCAS(t *testing.T) {
	repo := NewWindowRepository()
	repo.Put(&models.Window{ID: "w1", Office: models.OfficeRegistrar, Name: "Window A", IsOpen: true})

	first, err := repo.GetByID(context.Background(), "w1")
	require.NoError(t, err)
	stale, err := repo.GetByID(context.Background(), "w1")
	require.NoError(t, err)

	first.IsServing = true
	require.NoError(t, repo.Update(context.Background(), first))

	stale.IsOpen = false
	err = repo.Update(context.Background(), stale)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestServiceLookups(t *testing.T) {
	repo := NewServiceRepository()
	repo.Put(&models.Service{ID: "s1", Office: models.OfficeRegistrar, Name: "Transcript", Active: true})
	repo.Put(&models.Service{ID: "s2", Office: models.OfficeRegistrar, Name: "Document Request", Active: true, SpecialRequest: true})

	svc, err := repo.GetByName(context.Background(), models.OfficeRegistrar, "Transcript")
	require.NoError(t, err)
	assert.Equal(t, "s1", svc.ID)

	_, err = repo.GetByName(context.Background(), models.OfficeAdmissions, "Transcript")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	visible, err := repo.ListByOffice(context.Background(), models.OfficeRegistrar, false)
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	all, err := repo.ListByOffice(context.Background(), models.OfficeRegistrar, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	many, err := repo.GetMany(context.Background(), []string{"s1", "s2", "missing"})
	require.NoError(t, err)
	assert.Len(t, many, 2)
}

func TestRatingCreateUpsertsPerTicket(t *testing.T) {
	repo := NewRatingRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Rating{ID: "r1", TicketID: "t1", Office: models.OfficeRegistrar, Score: 3}))
	require.NoError(t, repo.Create(ctx, &models.Rating{ID: "r2", TicketID: "t1", Office: models.OfficeRegistrar, Score: 5}))
	assert.Equal(t, 1, repo.Count())
}
