package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"solwatch/internal/models"
	"solwatch/internal/watchlist"
)

type Mode string

const (
	ModeInitializing Mode = "initializing"
	ModeCloudSynced  Mode = "cloud_synced"
	ModeLocalOnly    Mode = "local_only"
)

const DefaultDebounce = 2 * time.Second

type Status struct {
	WatchlistID  string     `json:"watchlistId"`
	ShareLink    string     `json:"shareLink"`
	Mode         Mode       `json:"mode"`
	SyncPaused   bool       `json:"syncPaused"`
	PendingWrite bool       `json:"pendingWrite"`
	LastError    string     `json:"lastError,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
}

// Controller binds a Store to an identity, loads it from the remote or local
// copy on start and keeps both copies current as the Store changes. Every
// change is written locally at once; remote writes are debounced and carry
// the full document (last write wins).
type Controller struct {
	Store        *watchlist.Store
	Local        LocalStore
	Remote       RemoteStore
	Logger       *zap.Logger
	Debounce     time.Duration
	WriteTimeout time.Duration
	ShareBaseURL string
	Now          func() time.Time

	mu         sync.Mutex
	id         string
	mode       Mode
	paused     bool
	pending    bool
	lastErr    string
	lastSynced time.Time
	gen        uint64
	timer      *time.Timer
	base       context.Context

	saveMu  sync.Mutex
	writeMu sync.Mutex
}

// Start resolves the identity, loads the document and begins observing the
// Store. It only fails when the Store is missing; remote problems degrade
// to local-only mode.
func (c *Controller) Start(ctx context.Context, explicitID string) error {
	if c.Store == nil {
		return errors.New("syncer: store is nil")
	}
	c.mu.Lock()
	c.mode = ModeInitializing
	c.base = context.WithoutCancel(ctx)
	c.mu.Unlock()

	remembered := ""
	if c.Local != nil {
		id, err := c.Local.CurrentID()
		if err != nil {
			c.log().Warn("read remembered watchlist id failed", zap.Error(err))
		}
		remembered = id
	}
	id, fresh := ResolveIdentity(explicitID, remembered)
	if c.Local != nil {
		if err := c.Local.SetCurrentID(id); err != nil {
			c.log().Warn("remember watchlist id failed", zap.String("id", id), zap.Error(err))
		}
	}

	local, hasLocal := c.loadLocal(id)
	mode, loaded, lastErr := c.loadRemote(ctx, id)
	var dropped int
	switch {
	case loaded != nil:
		dropped = c.Store.Replace(loaded)
		c.saveLocal(id)
	case hasLocal:
		dropped = c.Store.Replace(local)
	default:
		c.Store.Replace(nil)
	}
	if dropped > 0 {
		c.log().Warn("dropped duplicate tokens from loaded watchlist", zap.String("id", id), zap.Int("dropped", dropped))
	}
	if n, limit := c.Store.TotalTokens(), c.Store.MaxTokens(); n > limit {
		c.log().Warn("loaded watchlist is over capacity, adds are disabled",
			zap.String("id", id), zap.Int("tokens", n), zap.Int("max_tokens", limit))
	}

	c.mu.Lock()
	c.id = id
	c.mode = mode
	c.lastErr = lastErr
	if mode == ModeCloudSynced && loaded != nil {
		c.lastSynced = c.now()
	}
	c.mu.Unlock()

	c.Store.OnChange(c.handleChange)
	c.log().Info("watchlist sync started",
		zap.String("id", id),
		zap.Bool("fresh_id", fresh),
		zap.String("mode", string(mode)),
		zap.Int("tokens", c.Store.TotalTokens()),
	)
	return nil
}

func (c *Controller) loadRemote(ctx context.Context, id string) (Mode, models.Watchlist, string) {
	if c.Remote == nil {
		return ModeLocalOnly, nil, ""
	}
	w, found, err := c.Remote.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotConfigured):
		return ModeLocalOnly, nil, ""
	case err != nil:
		c.log().Warn("remote load failed, continuing locally", zap.String("id", id), zap.Error(err))
		return ModeLocalOnly, nil, err.Error()
	case !found || len(w) == 0:
		return ModeCloudSynced, nil, ""
	default:
		return ModeCloudSynced, w, ""
	}
}

func (c *Controller) loadLocal(id string) (models.Watchlist, bool) {
	if c.Local == nil {
		return nil, false
	}
	w, ok, err := c.Local.Load(id)
	if err != nil {
		c.log().Warn("local load failed", zap.String("id", id), zap.Error(err))
		return nil, false
	}
	return w, ok && len(w) > 0
}

// handleChange runs after every Store mutation.
func (c *Controller) handleChange(models.Watchlist) {
	c.mu.Lock()
	id := c.id
	c.mu.Unlock()
	c.saveLocal(id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeCloudSynced {
		return
	}
	c.pending = true
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce(), func() { c.fire(gen) })
}

// saveLocal writes the Store's current state rather than the hook argument
// so concurrent mutations cannot leave an older copy on disk.
func (c *Controller) saveLocal(id string) {
	if c.Local == nil || id == "" {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if err := c.Local.Save(id, c.Store.Snapshot()); err != nil {
		c.log().Warn("local save failed", zap.String("id", id), zap.Error(err))
	}
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.pending {
		c.mu.Unlock()
		return
	}
	c.pending = false
	base := c.base
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, c.writeTimeout())
	defer cancel()
	_ = c.push(ctx)
}

// Flush performs any pending remote write immediately.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.mode != ModeCloudSynced || !c.pending {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.pending = false
	c.gen++
	c.mu.Unlock()
	return c.push(ctx)
}

func (c *Controller) push(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	id := c.id
	c.mu.Unlock()

	err := c.Remote.Put(ctx, id, c.Store.Snapshot())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.paused = true
		c.pending = true
		c.lastErr = err.Error()
		c.log().Warn("remote write failed, sync paused", zap.String("id", id), zap.Error(err))
		return err
	}
	c.paused = false
	c.lastErr = ""
	c.lastSynced = c.now()
	c.log().Debug("remote write ok", zap.String("id", id))
	return nil
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		WatchlistID:  c.id,
		Mode:         c.mode,
		SyncPaused:   c.paused,
		PendingWrite: c.pending,
		LastError:    c.lastErr,
	}
	if s.Mode == "" {
		s.Mode = ModeInitializing
	}
	if c.id != "" {
		s.ShareLink = ShareLink(c.ShareBaseURL, c.id)
	}
	if !c.lastSynced.IsZero() {
		t := c.lastSynced
		s.LastSyncedAt = &t
	}
	return s
}

func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Controller) debounce() time.Duration {
	if c.Debounce > 0 {
		return c.Debounce
	}
	return DefaultDebounce
}

func (c *Controller) writeTimeout() time.Duration {
	if c.WriteTimeout > 0 {
		return c.WriteTimeout
	}
	return 15 * time.Second
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) log() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
