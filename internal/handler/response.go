package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"solwatch/internal/refresh"
	"solwatch/internal/repository"
	"solwatch/internal/service"
	"solwatch/internal/watchlist"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// ErrorFrom maps domain errors onto HTTP statuses.
func ErrorFrom(c *gin.Context, err error) {
	Error(c, statusFor(err), err.Error(), nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, watchlist.ErrInvalidAddress),
		errors.Is(err, watchlist.ErrEmptyName),
		errors.Is(err, repository.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, watchlist.ErrNotFound), errors.Is(err, watchlist.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, watchlist.ErrAlreadyTracked),
		errors.Is(err, watchlist.ErrLastGroupProtected),
		errors.Is(err, watchlist.ErrInvalidOrder),
		errors.Is(err, refresh.ErrInFlight),
		errors.Is(err, service.ErrBatchInFlight):
		return http.StatusConflict
	case errors.Is(err, watchlist.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrStoreNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": int64(offset+limit) < total,
	}
}

func boolPtr(v bool) *bool { return &v }
