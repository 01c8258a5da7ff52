package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"solwatch/internal/models"
	"solwatch/internal/watchlist"
)

type memRemote struct {
	mu     sync.Mutex
	docs   map[string]models.Watchlist
	getErr error
	putErr error
	puts   int
}

func newMemRemote() *memRemote {
	return &memRemote{docs: map[string]models.Watchlist{}}
}

func (m *memRemote) Get(_ context.Context, id string) (models.Watchlist, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	w, ok := m.docs[id]
	return w.Clone(), ok, nil
}

func (m *memRemote) Put(_ context.Context, id string, w models.Watchlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.docs[id] = w.Clone()
	return nil
}

func (m *memRemote) state() (int, map[string]models.Watchlist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.Watchlist{}
	for k, v := range m.docs {
		out[k] = v.Clone()
	}
	return m.puts, out
}

func (m *memRemote) setPutErr(err error) {
	m.mu.Lock()
	m.putErr = err
	m.mu.Unlock()
}

func newController(t *testing.T, remote RemoteStore) (*Controller, FileStore) {
	t.Helper()
	local := FileStore{Dir: t.TempDir()}
	return &Controller{
		Store:        watchlist.NewStore(nil, watchlist.Options{}),
		Local:        local,
		Remote:       remote,
		Debounce:     20 * time.Millisecond,
		ShareBaseURL: "https://watch.example/app",
	}, local
}

func TestStart_AdoptsRemoteDocument(t *testing.T) {
	remote := newMemRemote()
	remote.docs["abc"] = models.Watchlist{{ID: "g1", Name: "Remote", Tokens: []models.Token{{ID: "t1", Address: "mint"}}}}
	c, local := newController(t, remote)

	require.NoError(t, c.Start(context.Background(), "abc"))

	st := c.Status()
	assert.Equal(t, ModeCloudSynced, st.Mode)
	assert.Equal(t, "abc", st.WatchlistID)
	assert.Equal(t, "https://watch.example/app#abc", st.ShareLink)
	assert.NotNil(t, st.LastSyncedAt)
	assert.Equal(t, 1, c.Store.TotalTokens())

	saved, ok, err := local.Load("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Remote", saved[0].Name)

	remembered, err := local.CurrentID()
	require.NoError(t, err)
	assert.Equal(t, "abc", remembered)
}

func TestStart_AdoptedDocumentIsDeduplicated(t *testing.T) {
	remote := newMemRemote()
	remote.docs["abc"] = models.Watchlist{{ID: "g1", Name: "Remote", Tokens: []models.Token{
		{ID: "t1", Address: "mint"},
		{ID: "t2", Address: "mint"},
		{ID: "t3", Address: "other"},
	}}}
	c, local := newController(t, remote)
	core, logs := observer.New(zap.WarnLevel)
	c.Logger = zap.New(core)

	require.NoError(t, c.Start(context.Background(), "abc"))

	assert.Equal(t, 2, c.Store.TotalTokens())
	saved, ok, err := local.Load("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, saved[0].Tokens, 2)
	assert.Equal(t, 1, logs.FilterMessage("dropped duplicate tokens from loaded watchlist").Len())
}

func TestStart_NotConfiguredFallsBackToLocal(t *testing.T) {
	c, local := newController(t, NewHTTPRemote(HTTPRemoteOptions{}))
	require.NoError(t, local.Save("abc", models.Watchlist{{ID: "g", Name: "Local"}}))

	require.NoError(t, c.Start(context.Background(), "abc"))
	st := c.Status()
	assert.Equal(t, ModeLocalOnly, st.Mode)
	assert.Empty(t, st.LastError)

	c.Store.CreateGroup("Another")
	saved, ok, err := local.Load("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, saved, 2)
	assert.False(t, c.Status().PendingWrite)
}

func TestStart_TransientErrorFallsBackToLocal(t *testing.T) {
	remote := newMemRemote()
	remote.getErr = errors.New("connection refused")
	c, _ := newController(t, remote)

	require.NoError(t, c.Start(context.Background(), "abc"))
	st := c.Status()
	assert.Equal(t, ModeLocalOnly, st.Mode)
	assert.Equal(t, "connection refused", st.LastError)

	w := c.Store.Snapshot()
	require.Len(t, w, 1)
	assert.Equal(t, models.DefaultGroupID, w[0].ID)

	c.Store.CreateGroup("x")
	time.Sleep(60 * time.Millisecond)
	puts, _ := remote.state()
	assert.Zero(t, puts)
}

func TestStart_EmptyRemoteStaysCloudSynced(t *testing.T) {
	remote := newMemRemote()
	c, local := newController(t, remote)
	require.NoError(t, local.Save("abc", models.Watchlist{{ID: "g", Name: "Local"}}))

	require.NoError(t, c.Start(context.Background(), "abc"))
	assert.Equal(t, ModeCloudSynced, c.Status().Mode)
	assert.Nil(t, c.Status().LastSyncedAt)
	g, ok := c.Store.Group("g")
	require.True(t, ok)
	assert.Equal(t, "Local", g.Name)
}

func TestMutations_DebouncedIntoOneWrite(t *testing.T) {
	remote := newMemRemote()
	c, _ := newController(t, remote)
	require.NoError(t, c.Start(context.Background(), "abc"))

	c.Store.CreateGroup("one")
	c.Store.CreateGroup("two")
	c.Store.CreateGroup("three")
	assert.True(t, c.Status().PendingWrite)

	require.Eventually(t, func() bool {
		puts, _ := remote.state()
		return puts == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	puts, docs := remote.state()
	assert.Equal(t, 1, puts)
	assert.Len(t, docs["abc"], 4)
	st := c.Status()
	assert.False(t, st.PendingWrite)
	assert.False(t, st.SyncPaused)
	assert.NotNil(t, st.LastSyncedAt)
}

func TestWriteFailure_PausesThenRecovers(t *testing.T) {
	remote := newMemRemote()
	c, _ := newController(t, remote)
	require.NoError(t, c.Start(context.Background(), "abc"))

	remote.setPutErr(errors.New("boom"))
	c.Store.CreateGroup("one")
	require.Eventually(t, func() bool { return c.Status().SyncPaused }, time.Second, 5*time.Millisecond)
	st := c.Status()
	assert.Equal(t, ModeCloudSynced, st.Mode)
	assert.Equal(t, "boom", st.LastError)
	assert.True(t, st.PendingWrite)

	remote.setPutErr(nil)
	require.NoError(t, c.Flush(context.Background()))
	st = c.Status()
	assert.False(t, st.SyncPaused)
	assert.Empty(t, st.LastError)
	_, docs := remote.state()
	assert.Len(t, docs["abc"], 2)
}

func TestFlush_WritesPendingImmediately(t *testing.T) {
	remote := newMemRemote()
	c, _ := newController(t, remote)
	c.Debounce = time.Hour
	require.NoError(t, c.Start(context.Background(), "abc"))

	c.Store.CreateGroup("x")
	require.NoError(t, c.Flush(context.Background()))
	puts, docs := remote.state()
	assert.Equal(t, 1, puts)
	assert.Len(t, docs["abc"], 2)

	require.NoError(t, c.Flush(context.Background()))
	puts, _ = remote.state()
	assert.Equal(t, 1, puts, "nothing pending")
}

func TestStart_IdentityResolution(t *testing.T) {
	c, local := newController(t, nil)
	require.NoError(t, local.SetCurrentID("remembered"))
	require.NoError(t, c.Start(context.Background(), ""))
	assert.Equal(t, "remembered", c.ID())

	c2, local2 := newController(t, nil)
	require.NoError(t, c2.Start(context.Background(), ""))
	id := c2.ID()
	assert.Len(t, id, 10)
	remembered, err := local2.CurrentID()
	require.NoError(t, err)
	assert.Equal(t, id, remembered)

	c3, local3 := newController(t, nil)
	require.NoError(t, local3.SetCurrentID("remembered"))
	require.NoError(t, c3.Start(context.Background(), "explicit"))
	assert.Equal(t, "explicit", c3.ID())
}
