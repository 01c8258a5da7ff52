package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/zap"

	"solwatch/internal/client/dexscreener"
)

// ErrNotFound means no pair on the configured chain references the address.
var ErrNotFound = errors.New("token not found on chain")

const DefaultChain = "solana"

// PairSource is the upstream query the adapter needs; *dexscreener.Client implements it.
type PairSource interface {
	TokenPairs(ctx context.Context, addresses []string) ([]dexscreener.Pair, error)
}

// Snapshot is one normalized metrics reading for a token.
type Snapshot struct {
	Address     string
	PairAddress string
	Symbol      string
	Name        string
	MarketCap   float64
	FDV         float64
	Volume1h    float64
	Volume24h   float64
	PriceNative string
	PriceUSD    string
	ImageURL    string
	DexURL      string
	Liquidity   float64
}

// ChunkFailure records one upstream request that produced nothing usable.
type ChunkFailure struct {
	Addresses []string
	Err       error
}

// BatchResult is the typed outcome of FetchBatch. Addresses from failed
// chunks, and addresses with no same-chain pair, are absent from Snapshots.
type BatchResult struct {
	Snapshots map[string]Snapshot
	Failures  []ChunkFailure
	Requests  int
}

// Missing lists requested addresses that did not produce a snapshot.
func (r BatchResult) Missing(addresses []string) []string {
	var out []string
	for _, a := range addresses {
		if _, ok := r.Snapshots[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// Err joins chunk failures, nil when every request succeeded.
func (r BatchResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("chunk of %d: %w", len(f.Addresses), f.Err))
	}
	return errors.Join(errs...)
}

type Adapter struct {
	Source      PairSource
	Chain       string
	BatchSize   int
	Concurrency int
	Logger      *zap.Logger
}

func (a *Adapter) FetchOne(ctx context.Context, address string) (Snapshot, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Snapshot{}, ErrNotFound
	}
	pairs, err := a.Source.TokenPairs(ctx, []string{address})
	if err != nil {
		return Snapshot{}, err
	}
	snaps := a.canonical(pairs, []string{address})
	snap, ok := snaps[address]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (a *Adapter) FetchBatch(ctx context.Context, addresses []string) BatchResult {
	chunks := Chunk(dedupe(addresses), a.batchSize())
	result := BatchResult{
		Snapshots: map[string]Snapshot{},
		Requests:  len(chunks),
	}
	if len(chunks) == 0 {
		return result
	}

	failures := make([]*ChunkFailure, len(chunks))
	var mu sync.Mutex
	swg := sizedwaitgroup.New(a.concurrency())
	for i, chunk := range chunks {
		swg.Add()
		go func(i int, chunk []string) {
			defer swg.Done()
			pairs, err := a.Source.TokenPairs(ctx, chunk)
			if err != nil {
				failures[i] = &ChunkFailure{Addresses: chunk, Err: err}
				if a.Logger != nil {
					a.Logger.Debug("dexscreener chunk failed",
						zap.Int("chunk", i),
						zap.Int("addresses", len(chunk)),
						zap.Error(err),
					)
				}
				return
			}
			snaps := a.canonical(pairs, chunk)
			mu.Lock()
			for addr, s := range snaps {
				result.Snapshots[addr] = s
			}
			mu.Unlock()
		}(i, chunk)
	}
	swg.Wait()

	for _, f := range failures {
		if f != nil {
			result.Failures = append(result.Failures, *f)
		}
	}
	return result
}

// canonical picks one pair per requested address. Mint addresses are
// case-sensitive, so pairs are matched on the exact base token address.
func (a *Adapter) canonical(pairs []dexscreener.Pair, requested []string) map[string]Snapshot {
	byAddr := make(map[string][]dexscreener.Pair, len(requested))
	for _, addr := range requested {
		byAddr[addr] = nil
	}
	for _, p := range pairs {
		addr := strings.TrimSpace(p.BaseToken.Address)
		if _, ok := byAddr[addr]; ok {
			byAddr[addr] = append(byAddr[addr], p)
		}
	}
	chain := a.chain()
	out := make(map[string]Snapshot, len(byAddr))
	for addr, candidates := range byAddr {
		if p, ok := SelectCanonical(candidates, chain); ok {
			out[addr] = snapshotFromPair(addr, p)
		}
	}
	return out
}

// Prefer reports whether candidate outranks current as the canonical pair.
// Higher USD liquidity wins; absent liquidity counts as zero; ties keep current.
func Prefer(candidate, current dexscreener.Pair) bool {
	return candidate.LiquidityUSD() > current.LiquidityUSD()
}

// SelectCanonical returns the highest-liquidity pair on chain, false if none.
func SelectCanonical(pairs []dexscreener.Pair, chain string) (dexscreener.Pair, bool) {
	var best dexscreener.Pair
	found := false
	for _, p := range pairs {
		if p.ChainID != chain {
			continue
		}
		if !found || Prefer(p, best) {
			best = p
			found = true
		}
	}
	return best, found
}

func snapshotFromPair(address string, p dexscreener.Pair) Snapshot {
	mcap := p.MarketCap
	if mcap <= 0 {
		mcap = p.Fdv
	}
	return Snapshot{
		Address:     address,
		PairAddress: p.PairAddress,
		Symbol:      p.BaseToken.Symbol,
		Name:        p.BaseToken.Name,
		MarketCap:   mcap,
		FDV:         p.Fdv,
		Volume1h:    p.Volume.H1,
		Volume24h:   p.Volume.H24,
		PriceNative: p.PriceNative,
		PriceUSD:    p.PriceUsd,
		ImageURL:    p.ImageURL(),
		DexURL:      p.URL,
		Liquidity:   p.LiquidityUSD(),
	}
}

// Chunk splits addresses into consecutive slices of at most size elements.
func Chunk(addresses []string, size int) [][]string {
	if size <= 0 {
		size = dexscreener.MaxAddressesPerRequest
	}
	var out [][]string
	for i := 0; i < len(addresses); i += size {
		end := i + size
		if end > len(addresses) {
			end = len(addresses)
		}
		out = append(out, addresses[i:end])
	}
	return out
}

func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

func (a *Adapter) chain() string {
	if c := strings.TrimSpace(a.Chain); c != "" {
		return c
	}
	return DefaultChain
}

func (a *Adapter) batchSize() int {
	if a.BatchSize <= 0 || a.BatchSize > dexscreener.MaxAddressesPerRequest {
		return dexscreener.MaxAddressesPerRequest
	}
	return a.BatchSize
}

func (a *Adapter) concurrency() int {
	if a.Concurrency <= 0 {
		return 1
	}
	return a.Concurrency
}
