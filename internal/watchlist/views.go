package watchlist

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"

	"solwatch/internal/models"
)

type SortField string

const (
	SortCanonical   SortField = ""
	SortCurrentMcap SortField = "currentMcap"
	SortVolume24h   SortField = "volume24h"
	SortMaxMcap     SortField = "maxMcap"
	SortATHROI      SortField = "athROI"
	SortAddedAt     SortField = "addedAt"
)

type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// ParseSortField accepts the wire names of the sortable columns. An empty
// string selects the canonical (stored) order.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case SortCanonical, SortCurrentMcap, SortVolume24h, SortMaxMcap, SortATHROI, SortAddedAt:
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(s) {
	case "", "desc":
		return Desc, nil
	case "asc":
		return Asc, nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

// SortKey returns the numeric value a field sorts by.
func SortKey(t models.Token, f SortField) float64 {
	switch f {
	case SortCurrentMcap:
		return t.CurrentMcap
	case SortVolume24h:
		return t.Volume24h
	case SortMaxMcap:
		return t.MaxMcap
	case SortATHROI:
		return ROIAtPeak(t)
	default:
		return float64(t.AddedAt)
	}
}

// SortedView yields a group's tokens ordered by field without touching the
// stored order. Each range over the sequence reads a fresh snapshot.
func (s *Store) SortedView(groupID string, field SortField, dir SortDirection) iter.Seq[models.Token] {
	return func(yield func(models.Token) bool) {
		g, ok := s.Group(groupID)
		if !ok {
			return
		}
		tokens := g.Tokens
		if field != SortCanonical {
			slices.SortStableFunc(tokens, func(a, b models.Token) int {
				c := cmp.Compare(SortKey(a, field), SortKey(b, field))
				if dir == Desc {
					return -c
				}
				return c
			})
		}
		for _, t := range tokens {
			if !yield(t) {
				return
			}
		}
	}
}

// Filter keeps tokens whose symbol, name or address contains term,
// ignoring case. An empty term keeps everything.
func Filter(seq iter.Seq[models.Token], term string) iter.Seq[models.Token] {
	term = strings.ToLower(strings.TrimSpace(term))
	return func(yield func(models.Token) bool) {
		for t := range seq {
			if term != "" && !matches(t, term) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// FilteredView is the canonical order of a group narrowed by term.
func (s *Store) FilteredView(groupID, term string) iter.Seq[models.Token] {
	return Filter(s.SortedView(groupID, SortCanonical, Desc), term)
}

func matches(t models.Token, term string) bool {
	return strings.Contains(strings.ToLower(t.Symbol), term) ||
		strings.Contains(strings.ToLower(t.Name), term) ||
		strings.Contains(strings.ToLower(t.Address), term)
}

type VolumeWindow string

const (
	Window1h  VolumeWindow = "1h"
	Window24h VolumeWindow = "24h"
)

// VolumeLeaders returns up to n tokens across every group with the highest
// volume for the window. A token tracked in several groups appears once.
func (s *Store) VolumeLeaders(window VolumeWindow, n int) []models.Token {
	if n <= 0 {
		return nil
	}
	w := s.Snapshot()
	byAddr := map[string]models.Token{}
	var order []string
	for _, g := range w {
		for _, t := range g.Tokens {
			if _, ok := byAddr[t.Address]; !ok {
				order = append(order, t.Address)
			}
			byAddr[t.Address] = t
		}
	}
	out := make([]models.Token, 0, len(order))
	for _, a := range order {
		out = append(out, byAddr[a])
	}
	vol := func(t models.Token) float64 {
		if window == Window1h {
			return t.Volume1h
		}
		return t.Volume24h
	}
	slices.SortStableFunc(out, func(a, b models.Token) int {
		return cmp.Compare(vol(b), vol(a))
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
