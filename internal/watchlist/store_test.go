package watchlist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solwatch/internal/market"
	"solwatch/internal/models"
)

type fakeFetcher struct {
	mu    sync.Mutex
	mcap  map[string]float64
	err   error
	calls int
}

func (f *fakeFetcher) FetchOne(_ context.Context, address string) (market.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return market.Snapshot{}, f.err
	}
	m, ok := f.mcap[address]
	if !ok {
		return market.Snapshot{}, market.ErrNotFound
	}
	return market.Snapshot{Address: address, Symbol: "S" + address, Name: "N" + address, MarketCap: m}, nil
}

func newTestStore(t *testing.T, f *fakeFetcher, max int) (*Store, *[]models.Watchlist) {
	t.Helper()
	seq := 0
	clock := t0
	s := NewStore(nil, Options{
		Fetcher:   f,
		MaxTokens: max,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
		NewID: func() string {
			seq++
			return fmt.Sprintf("id%d", seq)
		},
	})
	var changes []models.Watchlist
	s.OnChange(func(w models.Watchlist) { changes = append(changes, w) })
	return s, &changes
}

func TestNewStore_EmptyStartsWithDefaultGroup(t *testing.T) {
	s := NewStore(nil, Options{})
	w := s.Snapshot()
	require.Len(t, w, 1)
	assert.Equal(t, models.DefaultGroupID, w[0].ID)
	assert.Equal(t, models.DefaultGroupName, w[0].Name)
	assert.Empty(t, w[0].Tokens)
}

func TestAddToken_PrependsAndNotifies(t *testing.T) {
	f := &fakeFetcher{mcap: map[string]float64{"a": 100, "b": 200}}
	s, changes := newTestStore(t, f, 0)

	_, err := s.AddToken(context.Background(), "default", "a")
	require.NoError(t, err)
	tok, err := s.AddToken(context.Background(), "default", "  b ")
	require.NoError(t, err)
	assert.Equal(t, "b", tok.Address)

	g, ok := s.Group("default")
	require.True(t, ok)
	require.Len(t, g.Tokens, 2)
	assert.Equal(t, "b", g.Tokens[0].Address)
	assert.Equal(t, "a", g.Tokens[1].Address)
	assert.Len(t, *changes, 2)
}

func TestAddToken_Errors(t *testing.T) {
	f := &fakeFetcher{mcap: map[string]float64{"a": 100}}
	s, changes := newTestStore(t, f, 0)
	ctx := context.Background()

	_, err := s.AddToken(ctx, "default", "   ")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = s.AddToken(ctx, "nope", "a")
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = s.AddToken(ctx, "default", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.AddToken(ctx, "default", "a")
	require.NoError(t, err)
	calls := f.calls
	_, err = s.AddToken(ctx, "default", "a")
	assert.ErrorIs(t, err, ErrAlreadyTracked)
	assert.Equal(t, calls, f.calls, "duplicate rejected before fetch")

	f.err = errors.New("upstream down")
	_, err = s.AddToken(ctx, "default", "z")
	assert.EqualError(t, err, "upstream down")

	assert.Len(t, *changes, 1)
	assert.Equal(t, 1, s.TotalTokens())
}

func TestAddToken_SameAddressInAnotherGroup(t *testing.T) {
	f := &fakeFetcher{mcap: map[string]float64{"a": 100}}
	s, _ := newTestStore(t, f, 0)
	g := s.CreateGroup("")
	_, err := s.AddToken(context.Background(), "default", "a")
	require.NoError(t, err)
	_, err = s.AddToken(context.Background(), g.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalTokens())
	assert.Equal(t, []string{"a"}, s.Addresses())
}

func TestAddToken_CapacityCountsAllGroups(t *testing.T) {
	f := &fakeFetcher{mcap: map[string]float64{}}
	for i := 0; i < 201; i++ {
		f.mcap[fmt.Sprintf("m%03d", i)] = float64(i + 1)
	}
	s, _ := newTestStore(t, f, 200)
	g := s.CreateGroup("Second")
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		group := "default"
		if i%2 == 1 {
			group = g.ID
		}
		_, err := s.AddToken(ctx, group, fmt.Sprintf("m%03d", i))
		require.NoError(t, err)
	}
	before := s.Snapshot()

	_, err := s.AddToken(ctx, "default", "m200")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 200, s.TotalTokens())
}

func TestRemoveToken_Idempotent(t *testing.T) {
	f := &fakeFetcher{mcap: map[string]float64{"a": 1}}
	s, changes := newTestStore(t, f, 0)
	tok, err := s.AddToken(context.Background(), "default", "a")
	require.NoError(t, err)

	s.RemoveToken("default", tok.ID)
	s.RemoveToken("default", tok.ID)
	s.RemoveToken("ghost", tok.ID)
	assert.Zero(t, s.TotalTokens())
	assert.Len(t, *changes, 2)
}

func TestGroups_CreateRenameDelete(t *testing.T) {
	s, _ := newTestStore(t, &fakeFetcher{}, 0)

	g := s.CreateGroup("")
	assert.Equal(t, "Group 2", g.Name)
	named := s.CreateGroup("  Memes ")
	assert.Equal(t, "Memes", named.Name)

	require.NoError(t, s.RenameGroup(g.ID, " Blue chips "))
	got, _ := s.Group(g.ID)
	assert.Equal(t, "Blue chips", got.Name)
	assert.ErrorIs(t, s.RenameGroup(g.ID, "   "), ErrEmptyName)
	assert.ErrorIs(t, s.RenameGroup("ghost", "x"), ErrGroupNotFound)

	next, err := s.DeleteGroup("default")
	require.NoError(t, err)
	assert.Equal(t, g.ID, next)
	_, err = s.DeleteGroup(named.ID)
	require.NoError(t, err)

	_, err = s.DeleteGroup(g.ID)
	assert.ErrorIs(t, err, ErrLastGroupProtected)
	require.Len(t, s.Snapshot(), 1)
}

func TestReorderTokens(t *testing.T) {
	f := &fakeFetcher{mcap: map[string]float64{"a": 1, "b": 2, "c": 3}}
	s, _ := newTestStore(t, f, 0)
	ctx := context.Background()
	var ids []string
	for _, a := range []string{"a", "b", "c"} {
		tok, err := s.AddToken(ctx, "default", a)
		require.NoError(t, err)
		ids = append(ids, tok.ID)
	}

	require.NoError(t, s.ReorderTokens("default", ids))
	g, _ := s.Group("default")
	var got []string
	for _, tok := range g.Tokens {
		got = append(got, tok.ID)
	}
	assert.Equal(t, ids, got)

	assert.ErrorIs(t, s.ReorderTokens("default", ids[:2]), ErrInvalidOrder)
	assert.ErrorIs(t, s.ReorderTokens("default", []string{ids[0], ids[0], ids[1]}), ErrInvalidOrder)
	assert.ErrorIs(t, s.ReorderTokens("ghost", ids), ErrGroupNotFound)
}

func TestSnapshotIsDetached(t *testing.T) {
	f := &fakeFetcher{mcap: map[string]float64{"a": 1}}
	s, _ := newTestStore(t, f, 0)
	_, err := s.AddToken(context.Background(), "default", "a")
	require.NoError(t, err)

	w := s.Snapshot()
	w[0].Tokens[0].Symbol = "mutated"
	g, _ := s.Group("default")
	assert.Equal(t, "Sa", g.Tokens[0].Symbol)
}

func TestStoreApplySnapshots(t *testing.T) {
	f := &fakeFetcher{mcap: map[string]float64{"a": 100}}
	s, changes := newTestStore(t, f, 0)
	_, err := s.AddToken(context.Background(), "default", "a")
	require.NoError(t, err)

	assert.Zero(t, s.ApplySnapshots(map[string]market.Snapshot{"zzz": {MarketCap: 5}}))
	assert.Len(t, *changes, 1)

	n := s.ApplySnapshots(map[string]market.Snapshot{"a": {Address: "a", MarketCap: 50}})
	assert.Equal(t, 1, n)
	g, _ := s.Group("default")
	assert.InDelta(t, -50.0, g.Tokens[0].MaxDrawdown, 1e-9)
	assert.Len(t, *changes, 2)
}

func TestReplace_DoesNotNotify(t *testing.T) {
	s, changes := newTestStore(t, &fakeFetcher{}, 0)
	s.Replace(models.Watchlist{{ID: "x", Name: "X"}})
	assert.Empty(t, *changes)
	g, ok := s.Group("x")
	require.True(t, ok)
	assert.NotNil(t, g.Tokens)

	s.Replace(nil)
	_, ok = s.Group(models.DefaultGroupID)
	assert.True(t, ok)
}

func TestReplace_DropsDuplicateAddressesPerGroup(t *testing.T) {
	s, changes := newTestStore(t, &fakeFetcher{}, 0)
	dropped := s.Replace(models.Watchlist{
		{ID: "g1", Name: "One", Tokens: []models.Token{
			{ID: "t1", Address: "a", CurrentMcap: 1},
			{ID: "t2", Address: "b"},
			{ID: "t3", Address: "a", CurrentMcap: 3},
		}},
		{ID: "g2", Name: "Two", Tokens: []models.Token{{ID: "t4", Address: "a"}}},
	})
	assert.Equal(t, 1, dropped)
	assert.Empty(t, *changes)

	g1, _ := s.Group("g1")
	require.Len(t, g1.Tokens, 2)
	assert.Equal(t, "t1", g1.Tokens[0].ID)
	assert.Equal(t, 1.0, g1.Tokens[0].CurrentMcap)
	g2, _ := s.Group("g2")
	assert.Len(t, g2.Tokens, 1)
}

func TestReplace_OverCapacityKeepsTokensButRejectsAdds(t *testing.T) {
	f := &fakeFetcher{mcap: map[string]float64{"c": 10}}
	s, _ := newTestStore(t, f, 2)
	s.Replace(models.Watchlist{{ID: "g", Name: "G", Tokens: []models.Token{
		{ID: "t1", Address: "a"}, {ID: "t2", Address: "b"}, {ID: "t3", Address: "x"},
	}}})
	assert.Equal(t, 3, s.TotalTokens())
	assert.Equal(t, 2, s.MaxTokens())

	_, err := s.AddToken(context.Background(), "g", "c")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Zero(t, f.calls)
}

func TestSortedView(t *testing.T) {
	w := models.Watchlist{{ID: "g", Name: "G", Tokens: []models.Token{
		{ID: "1", Symbol: "AAA", CurrentMcap: 10, InitialMcap: 10, MaxMcap: 40, AddedAt: 3},
		{ID: "2", Symbol: "BBB", CurrentMcap: 30, InitialMcap: 30, MaxMcap: 30, AddedAt: 1},
		{ID: "3", Symbol: "CCC", CurrentMcap: 20, InitialMcap: 10, MaxMcap: 20, AddedAt: 2},
	}}}
	s := NewStore(w, Options{})

	ids := func(field SortField, dir SortDirection) []string {
		var out []string
		for tok := range s.SortedView("g", field, dir) {
			out = append(out, tok.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids(SortCanonical, Desc))
	assert.Equal(t, []string{"2", "3", "1"}, ids(SortCurrentMcap, Desc))
	assert.Equal(t, []string{"1", "3", "2"}, ids(SortCurrentMcap, Asc))
	assert.Equal(t, []string{"1", "3", "2"}, ids(SortAddedAt, Desc))
	assert.Equal(t, []string{"1", "3", "2"}, ids(SortATHROI, Desc))

	g, _ := s.Group("g")
	assert.Equal(t, "1", g.Tokens[0].ID, "stored order untouched")
}

func TestFilter(t *testing.T) {
	w := models.Watchlist{{ID: "g", Tokens: []models.Token{
		{ID: "1", Symbol: "BONK", Name: "Bonk", Address: "DezX"},
		{ID: "2", Symbol: "WIF", Name: "dogwifhat", Address: "EKpQ"},
	}}}
	s := NewStore(w, Options{})
	collect := func(term string) []string {
		var out []string
		for tok := range s.FilteredView("g", term) {
			out = append(out, tok.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1"}, collect("bonk"))
	assert.Equal(t, []string{"2"}, collect("HAT"))
	assert.Equal(t, []string{"2"}, collect("ekpq"))
	assert.Equal(t, []string{"1", "2"}, collect(""))
	assert.Empty(t, collect("nothing"))
}

func TestVolumeLeaders(t *testing.T) {
	w := models.Watchlist{
		{ID: "a", Tokens: []models.Token{
			{ID: "1", Address: "x", Volume24h: 10, Volume1h: 5},
			{ID: "2", Address: "y", Volume24h: 30, Volume1h: 1},
		}},
		{ID: "b", Tokens: []models.Token{
			{ID: "3", Address: "x", Volume24h: 10, Volume1h: 5},
			{ID: "4", Address: "z", Volume24h: 20, Volume1h: 9},
		}},
	}
	s := NewStore(w, Options{})

	top := s.VolumeLeaders(Window24h, 6)
	require.Len(t, top, 3)
	var addrs []string
	for _, tok := range top {
		addrs = append(addrs, tok.Address)
	}
	assert.Equal(t, []string{"y", "z", "x"}, addrs)

	top = s.VolumeLeaders(Window1h, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "z", top[0].Address)
	assert.Nil(t, s.VolumeLeaders(Window1h, 0))
}

func TestParseSort(t *testing.T) {
	f, err := ParseSortField("athROI")
	require.NoError(t, err)
	assert.Equal(t, SortATHROI, f)
	_, err = ParseSortField("bogus")
	assert.Error(t, err)

	d, err := ParseSortDirection("ASC")
	require.NoError(t, err)
	assert.Equal(t, Asc, d)
	d, err = ParseSortDirection("")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)
	assert.True(t, slices.Contains([]SortDirection{Asc, Desc}, d))
}
