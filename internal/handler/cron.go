package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solwatch/internal/service"
)

// CronHandler exposes the batch refresh to an external scheduler.
type CronHandler struct {
	Service *service.BatchRefreshService
	Secret  string
	Logger  *zap.Logger
}

func (h *CronHandler) Register(r *gin.Engine) {
	g := r.Group("/api/cron", RequireBearer(h.Secret))
	g.GET("/refresh", h.refresh)
	g.POST("/refresh", h.refresh)
}

// @Summary Refresh every stored watchlist
// @Tags cron
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /api/cron/refresh [post]
func (h *CronHandler) refresh(c *gin.Context) {
	res, err := h.Service.Run(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("cron batch refresh failed", zap.Error(err))
		}
		status := statusFor(err)
		if status == http.StatusBadGateway {
			status = http.StatusInternalServerError
		}
		c.JSON(status, apiResponse{
			Code:    status,
			Message: err.Error(),
			Data:    res,
		})
		return
	}
	Ok(c, gin.H{"success": true, "count": res.Count, "updated": res.Updated, "unchanged": res.Unchanged, "failed": res.Failed, "skipped": res.Skipped}, nil)
}
