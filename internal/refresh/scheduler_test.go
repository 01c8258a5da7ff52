package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solwatch/internal/market"
	"solwatch/internal/models"
	"solwatch/internal/watchlist"
)

type scriptedMarket struct {
	mu      sync.Mutex
	calls   int
	mcaps   []float64
	block   chan struct{}
	entered chan struct{}
	fail    []string
}

func (m *scriptedMarket) FetchBatch(ctx context.Context, addrs []string) market.BatchResult {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	res := market.BatchResult{Snapshots: map[string]market.Snapshot{}, Requests: 1}
	mcap := 0.0
	if m.calls < len(m.mcaps) {
		mcap = m.mcaps[m.calls]
	}
	m.calls++
	for _, a := range addrs {
		if contains(m.fail, a) {
			continue
		}
		res.Snapshots[a] = market.Snapshot{Address: a, Symbol: "T", Name: "Token", MarketCap: mcap}
	}
	if len(m.fail) > 0 {
		res.Failures = []market.ChunkFailure{{Addresses: m.fail, Err: errors.New("http 500")}}
	}
	return res
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func storeWith(addrs ...string) *watchlist.Store {
	w := models.NewWatchlist()
	for i, a := range addrs {
		w[0].Tokens = append(w[0].Tokens, models.Token{
			ID: a, Address: a, InitialMcap: 100_000, CurrentMcap: 100_000, MaxMcap: 100_000, AddedAt: int64(i),
		})
	}
	return watchlist.NewStore(w, watchlist.Options{})
}

func TestTick_ExampleSeries(t *testing.T) {
	store := storeWith("mint")
	m := &scriptedMarket{mcaps: []float64{150_000, 90_000, 200_000, 120_000}}
	s := &Scheduler{Store: store, Market: m}

	for i := 0; i < 4; i++ {
		out := s.Tick(context.Background(), false)
		require.False(t, out.Skipped)
		require.Equal(t, 1, out.Updated)
		require.NoError(t, out.Err())
	}
	g, _ := store.Group(models.DefaultGroupID)
	tok := g.Tokens[0]
	assert.Equal(t, 120_000.0, tok.CurrentMcap)
	assert.Equal(t, 200_000.0, tok.MaxMcap)
	assert.InDelta(t, -40.0, tok.MaxDrawdown, 1e-9)
}

func TestTick_EmptyWatchlistIsNoop(t *testing.T) {
	m := &scriptedMarket{}
	s := &Scheduler{Store: storeWith(), Market: m}
	out := s.Tick(context.Background(), false)
	assert.Zero(t, out.Requested)
	assert.Zero(t, m.calls)
}

func TestTick_OverlapIsSkipped(t *testing.T) {
	m := &scriptedMarket{
		mcaps:   []float64{1, 2},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 2),
	}
	s := &Scheduler{Store: storeWith("a"), Market: m}

	done := make(chan Outcome)
	go func() { done <- s.Tick(context.Background(), false) }()
	<-m.entered

	second := s.Tick(context.Background(), false)
	assert.True(t, second.Skipped)
	_, err := s.Manual(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)

	close(m.block)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, m.calls)

	third := s.Tick(context.Background(), false)
	assert.False(t, third.Skipped)
}

func TestManual_ReportsPartialFailure(t *testing.T) {
	store := storeWith("a", "b")
	m := &scriptedMarket{mcaps: []float64{500_000}, fail: []string{"b"}}
	s := &Scheduler{Store: store, Market: m}

	out, err := s.Manual(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, out.Updated)
	assert.Equal(t, []string{"b"}, out.Missing)

	g, _ := store.Group(models.DefaultGroupID)
	for _, tok := range g.Tokens {
		if tok.Address == "a" {
			assert.Equal(t, 500_000.0, tok.CurrentMcap)
		} else {
			assert.Equal(t, 100_000.0, tok.CurrentMcap)
		}
	}

	bg := s.Tick(context.Background(), false)
	assert.Error(t, bg.Err())
	assert.NoError(t, s.Run(context.Background()))
}
