package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solwatch/internal/market"
)

// ErrInFlight is returned by manual ticks that find another refresh running.
var ErrInFlight = errors.New("refresh already in flight")

type BatchFetcher interface {
	FetchBatch(ctx context.Context, addresses []string) market.BatchResult
}

// Target is the watchlist being refreshed; *watchlist.Store implements it.
type Target interface {
	Addresses() []string
	ApplySnapshots(snaps map[string]market.Snapshot) int
}

// Outcome describes one tick.
type Outcome struct {
	Skipped   bool                  `json:"skipped"`
	Requested int                   `json:"requested"`
	Updated   int                   `json:"updated"`
	Missing   []string              `json:"missing,omitempty"`
	Failures  []market.ChunkFailure `json:"-"`
	Duration  time.Duration         `json:"duration"`
}

// Err joins chunk failures, nil on a clean or skipped tick.
func (o Outcome) Err() error {
	return market.BatchResult{Failures: o.Failures}.Err()
}

// Scheduler refreshes every tracked token on a fixed interval. At most one
// tick runs at a time; a tick that would overlap is skipped.
type Scheduler struct {
	Store  Target
	Market BatchFetcher
	Logger *zap.Logger

	inFlight atomic.Bool
}

// Tick runs one refresh. Background ticks log failures at debug level and
// drop them; manual ticks leave reporting to the caller.
func (s *Scheduler) Tick(ctx context.Context, manual bool) Outcome {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Outcome{Skipped: true}
	}
	defer s.inFlight.Store(false)

	start := time.Now()
	addrs := s.Store.Addresses()
	if len(addrs) == 0 {
		return Outcome{}
	}

	res := s.Market.FetchBatch(ctx, addrs)
	out := Outcome{
		Requested: len(addrs),
		Updated:   s.Store.ApplySnapshots(res.Snapshots),
		Missing:   res.Missing(addrs),
		Failures:  res.Failures,
		Duration:  time.Since(start),
	}
	if err := out.Err(); err != nil && !manual {
		s.log().Debug("refresh tick partial failure",
			zap.Int("requested", out.Requested),
			zap.Int("updated", out.Updated),
			zap.Int("failed_chunks", len(out.Failures)),
			zap.Error(err),
		)
	}
	return out
}

// Run is the cron entry point.
func (s *Scheduler) Run(ctx context.Context) error {
	out := s.Tick(ctx, false)
	if out.Skipped {
		s.log().Debug("refresh tick skipped, previous still running")
	}
	return nil
}

// Manual runs a user-requested tick and reports failures as an error.
func (s *Scheduler) Manual(ctx context.Context) (Outcome, error) {
	out := s.Tick(ctx, true)
	if out.Skipped {
		return out, ErrInFlight
	}
	if err := out.Err(); err != nil {
		return out, fmt.Errorf("refresh: %w", err)
	}
	return out, nil
}

func (s *Scheduler) log() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}
