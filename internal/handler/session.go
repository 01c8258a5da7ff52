package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"solwatch/internal/models"
	"solwatch/internal/refresh"
	"solwatch/internal/syncer"
	"solwatch/internal/watchlist"
)

const defaultLeaders = 6

// SessionHandler is the daemon's local API over one watchlist session.
type SessionHandler struct {
	Store   *watchlist.Store
	Sync    *syncer.Controller
	Refresh *refresh.Scheduler
}

func (h *SessionHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1")
	g.GET("/status", h.status)
	g.GET("/watchlist", h.getWatchlist)
	g.POST("/groups", h.createGroup)
	g.PATCH("/groups/:id", h.renameGroup)
	g.DELETE("/groups/:id", h.deleteGroup)
	g.GET("/groups/:id/tokens", h.listTokens)
	g.POST("/groups/:id/tokens", h.addToken)
	g.DELETE("/groups/:id/tokens/:tokenId", h.removeToken)
	g.PUT("/groups/:id/order", h.reorder)
	g.GET("/leaders", h.leaders)
	g.POST("/refresh", h.refresh)
}

type createGroupRequest struct {
	Name string `json:"name"`
}

type renameGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type addTokenRequest struct {
	Address string `json:"address" binding:"required"`
}

type reorderRequest struct {
	TokenIDs []string `json:"tokenIds" binding:"required"`
}

type tokenView struct {
	models.Token
	ATHROI float64 `json:"athRoi"`
}

func viewOf(t models.Token) tokenView {
	return tokenView{Token: t, ATHROI: watchlist.ROIAtPeak(t)}
}

// @Summary Session status
// @Tags session
// @Success 200 {object} syncer.Status
// @Router /api/v1/status [get]
func (h *SessionHandler) status(c *gin.Context) {
	st := syncer.Status{Mode: syncer.ModeLocalOnly}
	if h.Sync != nil {
		st = h.Sync.Status()
	}
	Ok(c, st, map[string]any{"tokens": h.Store.TotalTokens()})
}

// @Summary Whole watchlist
// @Tags session
// @Success 200 {object} map[string]any
// @Router /api/v1/watchlist [get]
func (h *SessionHandler) getWatchlist(c *gin.Context) {
	Ok(c, h.Store.Snapshot(), nil)
}

// @Summary Create a group
// @Tags session
// @Param body body createGroupRequest false "group name"
// @Success 200 {object} models.Group
// @Router /api/v1/groups [post]
func (h *SessionHandler) createGroup(c *gin.Context) {
	var req createGroupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body", nil)
			return
		}
	}
	Ok(c, h.Store.CreateGroup(req.Name), nil)
}

// @Summary Rename a group
// @Tags session
// @Param id path string true "group id"
// @Param body body renameGroupRequest true "new name"
// @Success 200 {object} map[string]any
// @Router /api/v1/groups/{id} [patch]
func (h *SessionHandler) renameGroup(c *gin.Context) {
	var req renameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorFrom(c, watchlist.ErrEmptyName)
		return
	}
	if err := h.Store.RenameGroup(c.Param("id"), req.Name); err != nil {
		ErrorFrom(c, err)
		return
	}
	Ok(c, nil, nil)
}

// @Summary Delete a group
// @Tags session
// @Param id path string true "group id"
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/v1/groups/{id} [delete]
func (h *SessionHandler) deleteGroup(c *gin.Context) {
	next, err := h.Store.DeleteGroup(c.Param("id"))
	if err != nil {
		ErrorFrom(c, err)
		return
	}
	Ok(c, gin.H{"activeGroupId": next}, nil)
}

// @Summary List a group's tokens
// @Tags session
// @Param id path string true "group id"
// @Param sort query string false "currentMcap|volume24h|maxMcap|athROI|addedAt"
// @Param dir query string false "asc|desc"
// @Param q query string false "search term"
// @Success 200 {object} map[string]any
// @Router /api/v1/groups/{id}/tokens [get]
func (h *SessionHandler) listTokens(c *gin.Context) {
	groupID := c.Param("id")
	if _, ok := h.Store.Group(groupID); !ok {
		ErrorFrom(c, watchlist.ErrGroupNotFound)
		return
	}
	field, err := watchlist.ParseSortField(c.Query("sort"))
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	dir, err := watchlist.ParseSortDirection(c.Query("dir"))
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	items := []tokenView{}
	for t := range watchlist.Filter(h.Store.SortedView(groupID, field, dir), c.Query("q")) {
		items = append(items, viewOf(t))
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

// @Summary Track a token
// @Tags session
// @Param id path string true "group id"
// @Param body body addTokenRequest true "token address"
// @Success 200 {object} models.Token
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/v1/groups/{id}/tokens [post]
func (h *SessionHandler) addToken(c *gin.Context) {
	var req addTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Address) == "" {
		ErrorFrom(c, watchlist.ErrInvalidAddress)
		return
	}
	tok, err := h.Store.AddToken(c.Request.Context(), c.Param("id"), req.Address)
	if err != nil {
		ErrorFrom(c, err)
		return
	}
	Ok(c, viewOf(tok), nil)
}

// @Summary Stop tracking a token
// @Tags session
// @Param id path string true "group id"
// @Param tokenId path string true "token id"
// @Success 200 {object} map[string]any
// @Router /api/v1/groups/{id}/tokens/{tokenId} [delete]
func (h *SessionHandler) removeToken(c *gin.Context) {
	h.Store.RemoveToken(c.Param("id"), c.Param("tokenId"))
	Ok(c, nil, nil)
}

// @Summary Reorder a group's tokens
// @Tags session
// @Param id path string true "group id"
// @Param body body reorderRequest true "full token id order"
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/v1/groups/{id}/order [put]
func (h *SessionHandler) reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Store.ReorderTokens(c.Param("id"), req.TokenIDs); err != nil {
		ErrorFrom(c, err)
		return
	}
	Ok(c, nil, nil)
}

// @Summary Volume leaders across all groups
// @Tags session
// @Param window query string false "1h|24h"
// @Param limit query int false "max results"
// @Success 200 {object} map[string]any
// @Router /api/v1/leaders [get]
func (h *SessionHandler) leaders(c *gin.Context) {
	window := watchlist.VolumeWindow(c.DefaultQuery("window", string(watchlist.Window24h)))
	if window != watchlist.Window1h && window != watchlist.Window24h {
		Error(c, http.StatusBadRequest, "window must be 1h or 24h", nil)
		return
	}
	limit := intQuery(c, "limit", defaultLeaders)
	items := []tokenView{}
	for _, t := range h.Store.VolumeLeaders(window, limit) {
		items = append(items, viewOf(t))
	}
	Ok(c, items, map[string]any{"window": window})
}

// @Summary Refresh now
// @Tags session
// @Success 200 {object} refresh.Outcome
// @Failure 409 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/v1/refresh [post]
func (h *SessionHandler) refresh(c *gin.Context) {
	if h.Refresh == nil {
		Error(c, http.StatusServiceUnavailable, "refresh disabled", nil)
		return
	}
	out, err := h.Refresh.Manual(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), apiResponse{
			Code:    statusFor(err),
			Message: err.Error(),
			Data:    out,
		})
		return
	}
	Ok(c, out, nil)
}
