package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"solwatch/internal/market"
	"solwatch/internal/models"
	"solwatch/internal/repository"
	"solwatch/internal/watchlist"
)

const BatchRefreshScope = "watchlist_batch_refresh"

var (
	ErrStoreNotConfigured = errors.New("store not configured")
	ErrBatchInFlight      = errors.New("batch refresh already running")
)

type BatchFetcher interface {
	FetchBatch(ctx context.Context, addresses []string) market.BatchResult
}

type BatchRefreshResult struct {
	Count     int `json:"count"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
	// Skipped counts watchlists never attempted because the run timed out.
	// They are included in Failed.
	Skipped   int `json:"skipped"`
}

// BatchRefreshService refreshes every stored watchlist with the same
// adapter and reconciler the interactive daemon uses, writing back only
// documents that changed.
type BatchRefreshService struct {
	Repo        repository.WatchlistRepository
	States      repository.SyncStateRepository
	Market      BatchFetcher
	Flags       *SystemSettingsService
	Logger      *zap.Logger
	Timeout     time.Duration
	Concurrency int
	WriteRetry  int
	Now         func() time.Time

	running atomic.Bool
}

type docOutcome int

const (
	docUnchanged docOutcome = iota
	docUpdated
	docFailed
)

// Run performs one pass over all watchlists.
func (s *BatchRefreshService) Run(ctx context.Context) (BatchRefreshResult, error) {
	if s == nil || s.Repo == nil {
		return BatchRefreshResult{}, ErrStoreNotConfigured
	}
	if s.Market == nil {
		return BatchRefreshResult{}, errors.New("market adapter is nil")
	}
	if !s.running.CompareAndSwap(false, true) {
		return BatchRefreshResult{}, ErrBatchInFlight
	}
	defer s.running.Store(false)

	started := s.now()
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 50 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ids, err := s.Repo.ListWatchlistIDs(ctx)
	if err != nil {
		s.recordState(ctx, started, BatchRefreshResult{}, err)
		return BatchRefreshResult{}, fmt.Errorf("list watchlists: %w", err)
	}

	var (
		mu     sync.Mutex
		result = BatchRefreshResult{Count: len(ids)}
	)
	swg := sizedwaitgroup.New(s.concurrency())
	for i, id := range ids {
		swg.Add()
		if ctx.Err() != nil {
			swg.Done()
			mu.Lock()
			result.Skipped = len(ids) - i
			result.Failed += result.Skipped
			mu.Unlock()
			break
		}
		go func(id string) {
			defer swg.Done()
			outcome := s.refreshOne(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case docUpdated:
				result.Updated++
			case docFailed:
				result.Failed++
			default:
				result.Unchanged++
			}
		}(id)
	}
	swg.Wait()

	var runErr error
	if ctx.Err() != nil {
		runErr = fmt.Errorf("batch refresh: %w", ctx.Err())
	}
	s.recordState(context.WithoutCancel(ctx), started, result, runErr)
	s.log().Info("batch refresh done",
		zap.Int("count", result.Count),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("took", s.now().Sub(started)),
	)
	return result, runErr
}

// RunScheduled is the cron entry point; it honours the feature switch.
func (s *BatchRefreshService) RunScheduled(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, FeatureBatchRefresh, true) {
		return nil
	}
	_, err := s.Run(ctx)
	if errors.Is(err, ErrBatchInFlight) {
		return nil
	}
	return err
}

func (s *BatchRefreshService) refreshOne(ctx context.Context, id string) docOutcome {
	w, found, err := s.Repo.GetWatchlist(ctx, id)
	if err != nil {
		s.log().Warn("batch refresh load failed", zap.String("id", id), zap.Error(err))
		return docFailed
	}
	if !found {
		return docUnchanged
	}
	addrs := w.Addresses()
	if len(addrs) == 0 {
		return docUnchanged
	}

	res := s.Market.FetchBatch(ctx, addrs)
	if err := res.Err(); err != nil {
		s.log().Debug("batch refresh partial fetch", zap.String("id", id), zap.Error(err))
	}
	if watchlist.ApplySnapshots(w, res.Snapshots, s.now()) == 0 {
		if len(res.Failures) > 0 {
			return docFailed
		}
		return docUnchanged
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.writeRetry())),
		ctx,
	)
	err = backoff.Retry(func() error {
		err := s.Repo.UpsertWatchlist(ctx, id, w)
		if errors.Is(err, repository.ErrInvalidID) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		s.log().Warn("batch refresh write failed", zap.String("id", id), zap.Error(err))
		return docFailed
	}
	return docUpdated
}

func (s *BatchRefreshService) recordState(ctx context.Context, started time.Time, result BatchRefreshResult, runErr error) {
	if s.States == nil {
		return
	}
	state := &models.SyncState{
		Scope:         BatchRefreshScope,
		LastAttemptAt: &started,
		StatsJSON:     mustJSON(result),
	}
	if runErr != nil {
		msg := runErr.Error()
		state.LastError = &msg
		if prev, err := s.States.GetSyncState(ctx, BatchRefreshScope); err == nil && prev != nil {
			state.LastSuccessAt = prev.LastSuccessAt
		}
	} else {
		state.LastSuccessAt = &started
	}
	if err := s.States.SaveSyncState(ctx, state); err != nil {
		s.log().Warn("save batch refresh state failed", zap.Error(err))
	}
}

func (s *BatchRefreshService) concurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return 4
}

func (s *BatchRefreshService) writeRetry() int {
	return max(s.WriteRetry, 0)
}

func (s *BatchRefreshService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *BatchRefreshService) log() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func mustJSON(v any) datatypes.JSON {
	payload, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(payload)
}
