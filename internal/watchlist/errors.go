package watchlist

import (
	"errors"

	"solwatch/internal/market"
)

// Validation errors are returned before any network call is made.
var (
	ErrNotFound           = market.ErrNotFound
	ErrInvalidAddress     = errors.New("address is empty")
	ErrAlreadyTracked     = errors.New("token already in this group")
	ErrCapacityExceeded   = errors.New("watchlist token limit reached")
	ErrEmptyName          = errors.New("group name is empty")
	ErrLastGroupProtected = errors.New("cannot delete the last group")
	ErrGroupNotFound      = errors.New("group not found")
	ErrInvalidOrder       = errors.New("order must list every token in the group exactly once")
)
