package janitor

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/clock"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository/memory"
)

func seedTicket(t *testing.T, repo *memory.TicketRepository, id string, status string, queuedAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.Ticket{
		ID:        id,
		Office:    models.OfficeRegistrar,
		Number:    1,
		ServiceID: "svc",
		WindowID:  "win",
		Role:      models.RoleStudent,
		Status:    status,
		QueuedAt:  queuedAt,
	}))
}

func TestSweepRollsStaleWaitingAndSkipped(t *testing.T) {
	repo := memory.NewTicketRepository()
	clk := &clock.Fixed{T: time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC)}
	yesterday := clk.T.Add(-8 * time.Hour)
	today := clk.T.Add(-30 * time.Second)

	seedTicket(t, repo, "stale-waiting", models.StatusWaiting, yesterday)
	seedTicket(t, repo, "stale-skipped", models.StatusSkipped, yesterday)
	seedTicket(t, repo, "stale-completed", models.StatusCompleted, yesterday)
	seedTicket(t, repo, "fresh-waiting", models.StatusWaiting, today)

	jan := New(repo, clk, log.Default())
	jan.Sweep(context.Background())

	get := func(id string) *models.Ticket {
		ticket, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		return ticket
	}
	assert.Equal(t, models.StatusNoShow, get("stale-waiting").Status)
	assert.Equal(t, models.StatusNoShow, get("stale-skipped").Status)
	assert.Equal(t, models.StatusCompleted, get("stale-completed").Status)
	assert.Equal(t, models.StatusWaiting, get("fresh-waiting").Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	repo := memory.NewTicketRepository()
	clk := &clock.Fixed{T: time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC)}
	seedTicket(t, repo, "stale", models.StatusWaiting, clk.T.Add(-6*time.Hour))

	jan := New(repo, clk, log.Default())
	jan.Sweep(context.Background())
	jan.Sweep(context.Background())

	ticket, err := repo.GetByID(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, ticket.Status)
}

func TestStartRunsStartupSweep(t *testing.T) {
	repo := memory.NewTicketRepository()
	clk := &clock.Fixed{T: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
	seedTicket(t, repo, "leftover", models.StatusWaiting, clk.T.Add(-24*time.Hour))

	jan := New(repo, clk, log.Default())
	require.NoError(t, jan.Start())
	defer jan.Stop()

	ticket, err := repo.GetByID(context.Background(), "leftover")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, ticket.Status)

	// Start is one-shot.
	require.NoError(t, jan.Start())
}

func TestWithRolloverDelay(t *testing.T) {
	repo := memory.NewTicketRepository()
	clk := &clock.Fixed{T: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}

	jan := New(repo, clk, log.Default(), WithRolloverDelay(5*time.Minute))
	assert.Equal(t, 5*time.Minute, jan.delay)

	// Out-of-range values keep the default.
	jan = New(repo, clk, log.Default(), WithRolloverDelay(-time.Minute))
	assert.Equal(t, defaultRolloverDelay, jan.delay)
	jan = New(repo, clk, log.Default(), WithRolloverDelay(2*time.Hour))
	assert.Equal(t, defaultRolloverDelay, jan.delay)
}

func TestCheckFreshness(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	fresh := &models.Ticket{Number: 5, QueuedAt: now.Add(-23 * time.Hour)}
	stale := &models.Ticket{Number: 6, QueuedAt: now.Add(-25 * time.Hour)}

	assert.NoError(t, CheckFreshness(fresh, now, 24*time.Hour))
	err := CheckFreshness(stale, now, 24*time.Hour)
	assert.True(t, apperr.Is(err, apperr.CodeGone))
}
