package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solwatch/internal/models"
	"solwatch/internal/repository"
)

const maxWatchlistBody = 2 << 20

// WatchlistHandler is the shared persistence surface the session daemons
// read from and write to. A nil Repo answers 503 so clients can tell a
// missing store from a transient failure.
type WatchlistHandler struct {
	Repo   repository.WatchlistRepository
	Logger *zap.Logger
	Token  string
}

func (h *WatchlistHandler) Register(r *gin.Engine) {
	g := r.Group("/api/watchlist", OptionalBearer(h.Token))
	g.GET("", h.get)
	g.POST("", h.put)
}

// @Summary Read a watchlist
// @Tags watchlist
// @Param id query string true "watchlist id"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /api/watchlist [get]
func (h *WatchlistHandler) get(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	w, found, err := h.Repo.GetWatchlist(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "read", id, err)
		return
	}
	if !found {
		Ok(c, nil, nil)
		return
	}
	Ok(c, w, nil)
}

// @Summary Replace a watchlist
// @Tags watchlist
// @Param id query string true "watchlist id"
// @Param body body []models.Group true "groups"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /api/watchlist [post]
func (h *WatchlistHandler) put(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWatchlistBody))
	if err != nil {
		Error(c, http.StatusRequestEntityTooLarge, "body too large", nil)
		return
	}
	var w models.Watchlist
	if err := json.Unmarshal(body, &w); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: expected an array of groups", nil)
		return
	}
	if w == nil {
		w = models.Watchlist{}
	}
	if err := h.Repo.UpsertWatchlist(c.Request.Context(), id, w); err != nil {
		h.fail(c, "write", id, err)
		return
	}
	Ok(c, nil, nil)
}

func (h *WatchlistHandler) id(c *gin.Context) (string, bool) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "store not configured", nil)
		return "", false
	}
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "missing id", nil)
		return "", false
	}
	if !models.ValidWatchlistID(id) {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return "", false
	}
	return id, true
}

func (h *WatchlistHandler) fail(c *gin.Context, op, id string, err error) {
	if h.Logger != nil {
		h.Logger.Warn("watchlist "+op+" failed", zap.String("id", id), zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, err.Error(), nil)
}
