package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"solwatch/internal/repository"
	"solwatch/internal/service"
)

type SystemSettingsHandler struct {
	Repo     repository.SettingsRepository
	States   repository.SyncStateRepository
	Settings *service.SystemSettingsService
	Token    string
}

func (h *SystemSettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/system-settings", OptionalBearer(h.Token))
	g.GET("", h.list)
	g.GET("/switches", h.listSwitches)
	g.PUT("/switches/:name", h.putSwitch)
	g.GET("/jobs", h.jobs)
}

type switchRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// @Summary List stored settings
// @Tags settings
// @Param prefix query string false "key prefix"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} map[string]any
// @Router /api/system-settings [get]
func (h *SystemSettingsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "store not configured", nil)
		return
	}
	limit := intQuery(c, "limit", 200)
	offset := intQuery(c, "offset", 0)
	var prefix *string
	if v := strings.TrimSpace(c.Query("prefix")); v != "" {
		prefix = &v
	}
	params := repository.ListSystemSettingsParams{
		Limit:   limit,
		Offset:  offset,
		Prefix:  prefix,
		OrderBy: "key",
		Asc:     boolPtr(true),
	}
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSystemSettings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List feature switches
// @Tags settings
// @Success 200 {object} map[string]bool
// @Router /api/system-settings/switches [get]
func (h *SystemSettingsHandler) listSwitches(c *gin.Context) {
	Ok(c, h.Settings.Switches(c.Request.Context()), nil)
}

// @Summary Toggle a feature switch
// @Tags settings
// @Param name path string true "switch name"
// @Param body body switchRequest true "state"
// @Success 200 {object} map[string]any
// @Router /api/system-settings/switches/{name} [put]
func (h *SystemSettingsHandler) putSwitch(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "store not configured", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if !service.IsFeatureSwitch(name) {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), name, *req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"name": name, "enabled": *req.Enabled}, nil)
}

// @Summary Background job state
// @Tags settings
// @Success 200 {object} map[string]any
// @Router /api/system-settings/jobs [get]
func (h *SystemSettingsHandler) jobs(c *gin.Context) {
	if h.States == nil {
		Error(c, http.StatusServiceUnavailable, "store not configured", nil)
		return
	}
	states, err := h.States.ListSyncStates(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, states, nil)
}
