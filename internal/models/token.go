package models

// Token is one tracked instrument inside a group. Field names follow the
// stored document so existing watchlists decode without migration.
type Token struct {
	ID          string  `json:"id"`
	Address     string  `json:"address"`
	PairAddress string  `json:"pairAddress"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	InitialMcap float64 `json:"initialMcap"`
	CurrentMcap float64 `json:"currentMcap"`
	MaxMcap     float64 `json:"maxMcap"`
	// MaxDrawdown is the most negative % drop from MaxMcap seen since tracking began.
	MaxDrawdown float64 `json:"maxDrawdown"`
	Volume24h   float64 `json:"volume24h"`
	Volume1h    float64 `json:"volume1h"`
	FDV         float64 `json:"fdv"`
	PriceNative string  `json:"priceNative"`
	PriceUSD    string  `json:"priceUsd"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	DexURL      string  `json:"dexUrl"`
	AddedAt     int64   `json:"addedAt"`
	LastUpdated int64   `json:"lastUpdated"`
}

type Group struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Tokens []Token `json:"tokens"`
}

// Watchlist is the unit of persistence: the ordered groups under one identifier.
type Watchlist []Group

const (
	DefaultGroupID   = "default"
	DefaultGroupName = "Main Watchlist"
)

// NewWatchlist returns the document created on first use of an identifier.
func NewWatchlist() Watchlist {
	return Watchlist{{ID: DefaultGroupID, Name: DefaultGroupName, Tokens: []Token{}}}
}

// Clone returns a deep copy.
func (w Watchlist) Clone() Watchlist {
	if w == nil {
		return nil
	}
	out := make(Watchlist, len(w))
	for i, g := range w {
		tokens := make([]Token, len(g.Tokens))
		copy(tokens, g.Tokens)
		out[i] = Group{ID: g.ID, Name: g.Name, Tokens: tokens}
	}
	return out
}

func (w Watchlist) TotalTokens() int {
	n := 0
	for _, g := range w {
		n += len(g.Tokens)
	}
	return n
}

// Addresses returns the deduplicated union of tracked addresses in first-seen order.
func (w Watchlist) Addresses() []string {
	out := make([]string, 0, w.TotalTokens())
	seen := map[string]struct{}{}
	for _, g := range w {
		for _, t := range g.Tokens {
			if t.Address == "" {
				continue
			}
			if _, ok := seen[t.Address]; ok {
				continue
			}
			seen[t.Address] = struct{}{}
			out = append(out, t.Address)
		}
	}
	return out
}

// ValidWatchlistID reports whether id is usable as a storage key and URL fragment.
func ValidWatchlistID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
