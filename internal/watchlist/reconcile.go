package watchlist

import (
	"time"

	"github.com/shopspring/decimal"

	"solwatch/internal/market"
	"solwatch/internal/models"
)

var hundred = decimal.NewFromInt(100)

// NewToken builds the record for a freshly added token.
func NewToken(id string, s market.Snapshot, now time.Time) models.Token {
	mcap := s.MarketCap
	if mcap < 0 {
		mcap = 0
	}
	t := models.Token{
		ID:          id,
		Address:     s.Address,
		InitialMcap: mcap,
		CurrentMcap: mcap,
		MaxMcap:     mcap,
		MaxDrawdown: 0,
		AddedAt:     now.UnixMilli(),
	}
	applyDisplay(&t, s)
	t.LastUpdated = now.UnixMilli()
	return t
}

// Merge folds a snapshot into an existing record. A missing or zero market
// cap keeps the previous value, MaxMcap only grows and MaxDrawdown only falls.
func Merge(r models.Token, s market.Snapshot, now time.Time) models.Token {
	current := r.CurrentMcap
	if s.MarketCap > 0 {
		current = s.MarketCap
	}
	peak := maxOf(r.MaxMcap, r.InitialMcap, current)
	drawdown := Drawdown(current, peak)
	worst := r.MaxDrawdown
	if worst > 0 {
		worst = 0
	}
	if drawdown < worst {
		worst = drawdown
	}

	out := r
	applyDisplay(&out, s)
	out.CurrentMcap = current
	out.MaxMcap = peak
	out.MaxDrawdown = worst
	out.LastUpdated = now.UnixMilli()
	return out
}

// Drawdown is the percentage distance of current below peak, in [-100, 0].
func Drawdown(current, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	pct := decimal.NewFromFloat(current).
		Sub(decimal.NewFromFloat(peak)).
		Div(decimal.NewFromFloat(peak)).
		Mul(hundred)
	f, _ := pct.Float64()
	if f > 0 {
		return 0
	}
	if f < -100 {
		return -100
	}
	return f
}

// ROIAtPeak is the return from the add-time market cap to the running peak.
// It is derived on demand and never stored.
func ROIAtPeak(t models.Token) float64 {
	base := decimal.NewFromFloat(t.InitialMcap)
	if base.IsZero() {
		base = decimal.NewFromInt(1)
	}
	f, _ := decimal.NewFromFloat(t.MaxMcap).
		Sub(decimal.NewFromFloat(t.InitialMcap)).
		Div(base).
		Mul(hundred).
		Float64()
	return f
}

// ApplySnapshots merges snapshots into every matching token of every group in
// place. Tokens without a snapshot are left untouched. Returns the number of
// tokens merged.
func ApplySnapshots(w models.Watchlist, snaps map[string]market.Snapshot, now time.Time) int {
	if len(snaps) == 0 {
		return 0
	}
	merged := 0
	for gi := range w {
		tokens := w[gi].Tokens
		for ti := range tokens {
			s, ok := snaps[tokens[ti].Address]
			if !ok {
				continue
			}
			tokens[ti] = Merge(tokens[ti], s, now)
			merged++
		}
	}
	return merged
}

func applyDisplay(t *models.Token, s market.Snapshot) {
	t.PairAddress = s.PairAddress
	t.Symbol = s.Symbol
	if t.Symbol == "" {
		t.Symbol = "?"
	}
	t.Name = s.Name
	if t.Name == "" {
		t.Name = "Unknown"
	}
	t.Volume24h = s.Volume24h
	t.Volume1h = s.Volume1h
	t.FDV = s.FDV
	t.PriceNative = s.PriceNative
	if t.PriceNative == "" {
		t.PriceNative = "0"
	}
	t.PriceUSD = s.PriceUSD
	if t.PriceUSD == "" {
		t.PriceUSD = "0"
	}
	t.ImageURL = s.ImageURL
	t.DexURL = s.DexURL
}

func maxOf(first float64, rest ...float64) float64 {
	m := first
	for _, v := range rest {
		if v > m {
			m = v
		}
	}
	return m
}
