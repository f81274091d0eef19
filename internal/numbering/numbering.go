// Package numbering assigns the per-office daily ticket numbers shown on
// displays. Numbers run 1..99 and wrap back to 1, then keep climbing; the
// sequence restarts each local calendar day, reseeding from today's tickets.
package numbering

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/frontdesk-io/frontdesk-ce/internal/clock"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

// MaxNumber is the display limit; the next number after it wraps to 1.
const MaxNumber = 99

// LastNumberStore reads the highest number assigned to an office since an
// instant. Satisfied by the ticket repository; used only to seed the
// in-process counter at boot and at day boundaries.
type LastNumberStore interface {
	MaxNumberSince(ctx context.Context, office models.Office, since time.Time) (int, error)
}

// Sequence hands out ticket numbers. The last assigned number is tracked
// per office in process, so the sequence keeps climbing 1, 2, 3 after a
// 99→1 wrap instead of re-reading the day's high-water mark (which would
// stick at 99 and hand out 1 forever). Next must run while the caller
// holds the office lock (see Lock) across Next and the ticket insert.
type Sequence struct {
	store LastNumberStore
	clock clock.Clock

	mu      sync.Mutex
	offices map[models.Office]*officeState
}

// officeState is the per-office admit serialization point plus the day's
// counter. day/last are guarded by the office mutex, not by Sequence.mu.
type officeState struct {
	sync.Mutex
	day  time.Time
	last int
}

// NewSequence builds a sequence over the given store and clock.
func NewSequence(store LastNumberStore, clk clock.Clock) *Sequence {
	return &Sequence{
		store:   store,
		clock:   clk,
		offices: make(map[models.Office]*officeState),
	}
}

// Lock acquires the office's admit mutex and returns the unlock func.
func (s *Sequence) Lock(office models.Office) func() {
	st := s.officeState(office)
	st.Lock()
	return st.Unlock
}

// Next returns the next number for the office's current day: last+1, or 1
// after 99. On the first call of a local day (or after a restart) the
// counter reseeds from the stored high-water mark, so a restarted process
// resumes past the numbers already handed out.
func (s *Sequence) Next(ctx context.Context, office models.Office) (int, error) {
	st := s.officeState(office)
	today := s.clock.TodayStart()

	if !st.day.Equal(today) {
		seed, err := s.store.MaxNumberSince(ctx, office, today)
		if err != nil {
			return 0, fmt.Errorf("read last number: %w", err)
		}
		st.day = today
		st.last = seed
	}

	next := st.last + 1
	if next > MaxNumber {
		next = 1
	}
	st.last = next
	return next, nil
}

func (s *Sequence) officeState(office models.Office) *officeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.offices[office]
	if !ok {
		st = &officeState{}
		s.offices[office] = st
	}
	return st
}
