// Package janitor rolls abandoned tickets over at the day boundary: any
// waiting or skipped ticket left from a previous day becomes a no-show. The
// sweep runs once at startup and once shortly after every local midnight.
package janitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/clock"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/repository"
)

// sweepTimeout bounds one rollover pass.
const sweepTimeout = time.Minute

// defaultRolloverDelay keeps the sweep clear of the exact day boundary.
const defaultRolloverDelay = time.Minute

// Janitor owns the scheduled rollover.
type Janitor struct {
	tickets repository.TicketRepository
	clock   clock.Clock
	logger  *log.Logger
	cron    *cron.Cron
	delay   time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
}

// Option configures a janitor.
type Option func(*Janitor)

// WithRolloverDelay sets how long after local midnight the nightly sweep
// fires. Values outside (0, 1h) fall back to the default.
func WithRolloverDelay(d time.Duration) Option {
	return func(j *Janitor) {
		if d > 0 && d < time.Hour {
			j.delay = d
		}
	}
}

// New builds a janitor over the ticket repository. The cron engine runs in
// the clock's location so "midnight" tracks the configured timezone.
func New(tickets repository.TicketRepository, clk clock.Clock, logger *log.Logger, opts ...Option) *Janitor {
	if logger == nil {
		logger = log.Default()
	}
	j := &Janitor{
		tickets: tickets,
		clock:   clk,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(clk.Location())),
		delay:   defaultRolloverDelay,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start runs the startup sweep and arms the nightly schedule, which fires
// the configured delay past midnight so the day boundary has clearly passed.
func (j *Janitor) Start() error {
	var err error
	j.startOnce.Do(func() {
		j.Sweep(context.Background())
		spec := fmt.Sprintf("%d 0 * * *", int(j.delay.Minutes()))
		_, err = j.cron.AddFunc(spec, func() { j.Sweep(context.Background()) })
		if err != nil {
			return
		}
		j.cron.Start()
		j.logger.Printf("janitor started: nightly rollover armed (%s)", spec)
	})
	return err
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		ctx := j.cron.Stop()
		<-ctx.Done()
	})
}

// Sweep rolls stale tickets for every office. Failures are logged and left
// for the next scheduled tick; no events are emitted for no-shows.
func (j *Janitor) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	cutoff := j.clock.TodayStart()
	for _, office := range []models.Office{models.OfficeRegistrar, models.OfficeAdmissions} {
		n, err := j.tickets.MarkStaleNoShow(ctx, repository.StaleFilter{Office: office, Cutoff: cutoff})
		if err != nil {
			j.logger.Printf("rollover failed: office=%s err=%v", office, err)
			continue
		}
		if n > 0 {
			j.logger.Printf("rollover: office=%s no-shows=%d cutoff=%s", office, n, cutoff.Format(time.RFC3339))
		}
	}
}

// CheckFreshness is the request-local ticket age gate: lookups on tickets
// older than maxAge fail with Gone.
func CheckFreshness(t *models.Ticket, now time.Time, maxAge time.Duration) error {
	if now.Sub(t.QueuedAt) > maxAge {
		return apperr.E(apperr.CodeGone, "ticket %d has expired", t.Number)
	}
	return nil
}
