package watchlist

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"solwatch/internal/market"
	"solwatch/internal/models"
)

const DefaultMaxTokens = 200

// Fetcher resolves a single address to its current snapshot.
type Fetcher interface {
	FetchOne(ctx context.Context, address string) (market.Snapshot, error)
}

type Options struct {
	Fetcher   Fetcher
	MaxTokens int
	Now       func() time.Time
	NewID     func() string
}

// Store is the authoritative in-memory watchlist. Every mutation validates
// first and then applies in one critical section. Successful mutations are
// reported to the change hook with a deep copy of the new state.
type Store struct {
	mu       sync.RWMutex
	groups   models.Watchlist
	onChange func(models.Watchlist)

	fetcher   Fetcher
	maxTokens int
	now       func() time.Time
	newID     func() string
}

func NewStore(initial models.Watchlist, opts Options) *Store {
	s := &Store{
		fetcher:   opts.Fetcher,
		maxTokens: opts.MaxTokens,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.groups, _ = normalize(initial)
	return s
}

// OnChange installs the hook invoked after each successful mutation.
func (s *Store) OnChange(fn func(models.Watchlist)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Replace adopts a whole document without firing the change hook. It
// returns how many duplicate addresses were dropped from the document.
func (s *Store) Replace(w models.Watchlist) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped int
	s.groups, dropped = normalize(w)
	return dropped
}

// MaxTokens is the capacity enforced on adds.
func (s *Store) MaxTokens() int {
	return s.maxTokens
}

func (s *Store) Snapshot() models.Watchlist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups.Clone()
}

func (s *Store) Group(groupID string) (models.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(groupID)
	if i < 0 {
		return models.Group{}, false
	}
	g := s.groups[i]
	tokens := make([]models.Token, len(g.Tokens))
	copy(tokens, g.Tokens)
	return models.Group{ID: g.ID, Name: g.Name, Tokens: tokens}, true
}

func (s *Store) TotalTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups.TotalTokens()
}

func (s *Store) Addresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups.Addresses()
}

// AddToken fetches the address and prepends a new record to the group.
// Capacity and duplicate checks run before the fetch and again before the
// insert, since the lock is not held across network I/O.
func (s *Store) AddToken(ctx context.Context, groupID, address string) (models.Token, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.Token{}, ErrInvalidAddress
	}

	s.mu.RLock()
	err := s.checkAddLocked(groupID, address)
	s.mu.RUnlock()
	if err != nil {
		return models.Token{}, err
	}
	if s.fetcher == nil {
		return models.Token{}, fmt.Errorf("add token: no market data source")
	}

	snap, err := s.fetcher.FetchOne(ctx, address)
	if err != nil {
		return models.Token{}, err
	}
	snap.Address = address
	tok := NewToken(s.newID(), snap, s.now())

	s.mu.Lock()
	if err := s.checkAddLocked(groupID, address); err != nil {
		s.mu.Unlock()
		return models.Token{}, err
	}
	i := s.indexOf(groupID)
	s.groups[i].Tokens = append([]models.Token{tok}, s.groups[i].Tokens...)
	next, hook := s.groups.Clone(), s.onChange
	s.mu.Unlock()

	notify(hook, next)
	return tok, nil
}

// RemoveToken is idempotent; unknown groups or tokens are ignored.
func (s *Store) RemoveToken(groupID, tokenID string) {
	s.mu.Lock()
	i := s.indexOf(groupID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	tokens := s.groups[i].Tokens
	kept := make([]models.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.ID != tokenID {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tokens) {
		s.mu.Unlock()
		return
	}
	s.groups[i].Tokens = kept
	next, hook := s.groups.Clone(), s.onChange
	s.mu.Unlock()

	notify(hook, next)
}

func (s *Store) CreateGroup(name string) models.Group {
	s.mu.Lock()
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Group %d", len(s.groups)+1)
	}
	g := models.Group{ID: s.newID(), Name: name, Tokens: []models.Token{}}
	s.groups = append(s.groups, g)
	next, hook := s.groups.Clone(), s.onChange
	s.mu.Unlock()

	notify(hook, next)
	return g
}

// DeleteGroup removes the group and returns the id a caller should select
// next: the first remaining group.
func (s *Store) DeleteGroup(groupID string) (string, error) {
	s.mu.Lock()
	i := s.indexOf(groupID)
	if i < 0 {
		fallback := s.groups[0].ID
		s.mu.Unlock()
		return fallback, nil
	}
	if len(s.groups) <= 1 {
		s.mu.Unlock()
		return groupID, ErrLastGroupProtected
	}
	s.groups = append(s.groups[:i:i], s.groups[i+1:]...)
	fallback := s.groups[0].ID
	next, hook := s.groups.Clone(), s.onChange
	s.mu.Unlock()

	notify(hook, next)
	return fallback, nil
}

func (s *Store) RenameGroup(groupID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	s.mu.Lock()
	i := s.indexOf(groupID)
	if i < 0 {
		s.mu.Unlock()
		return ErrGroupNotFound
	}
	if s.groups[i].Name == name {
		s.mu.Unlock()
		return nil
	}
	s.groups[i].Name = name
	next, hook := s.groups.Clone(), s.onChange
	s.mu.Unlock()

	notify(hook, next)
	return nil
}

// ReorderTokens replaces the canonical order with order, which must be a
// permutation of the group's token ids. A filtered subset is rejected.
func (s *Store) ReorderTokens(groupID string, order []string) error {
	s.mu.Lock()
	i := s.indexOf(groupID)
	if i < 0 {
		s.mu.Unlock()
		return ErrGroupNotFound
	}
	tokens := s.groups[i].Tokens
	if len(order) != len(tokens) {
		s.mu.Unlock()
		return ErrInvalidOrder
	}
	byID := make(map[string]models.Token, len(tokens))
	for _, t := range tokens {
		byID[t.ID] = t
	}
	reordered := make([]models.Token, 0, len(order))
	for _, id := range order {
		t, ok := byID[id]
		if !ok {
			s.mu.Unlock()
			return ErrInvalidOrder
		}
		delete(byID, id)
		reordered = append(reordered, t)
	}
	s.groups[i].Tokens = reordered
	next, hook := s.groups.Clone(), s.onChange
	s.mu.Unlock()

	notify(hook, next)
	return nil
}

// ApplySnapshots runs the reconciler over every tracked token.
func (s *Store) ApplySnapshots(snaps map[string]market.Snapshot) int {
	s.mu.Lock()
	merged := ApplySnapshots(s.groups, snaps, s.now())
	if merged == 0 {
		s.mu.Unlock()
		return 0
	}
	next, hook := s.groups.Clone(), s.onChange
	s.mu.Unlock()

	notify(hook, next)
	return merged
}

func (s *Store) checkAddLocked(groupID, address string) error {
	i := s.indexOf(groupID)
	if i < 0 {
		return ErrGroupNotFound
	}
	if s.groups.TotalTokens() >= s.maxTokens {
		return ErrCapacityExceeded
	}
	for _, t := range s.groups[i].Tokens {
		if t.Address == address {
			return ErrAlreadyTracked
		}
	}
	return nil
}

func (s *Store) indexOf(groupID string) int {
	for i, g := range s.groups {
		if g.ID == groupID {
			return i
		}
	}
	return -1
}

func notify(hook func(models.Watchlist), w models.Watchlist) {
	if hook != nil {
		hook(w)
	}
}

// normalize guarantees at least one group and non-nil token slices, and
// keeps only the first token per address within a group. A document over
// capacity is kept whole; further adds are rejected by checkAddLocked.
func normalize(w models.Watchlist) (models.Watchlist, int) {
	if len(w) == 0 {
		return models.NewWatchlist(), 0
	}
	out := w.Clone()
	dropped := 0
	for i := range out {
		kept := make([]models.Token, 0, len(out[i].Tokens))
		seen := map[string]struct{}{}
		for _, t := range out[i].Tokens {
			if _, dup := seen[t.Address]; dup {
				dropped++
				continue
			}
			seen[t.Address] = struct{}{}
			kept = append(kept, t)
		}
		out[i].Tokens = kept
	}
	return out, dropped
}
