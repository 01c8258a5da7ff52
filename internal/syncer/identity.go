package syncer

import (
	"strings"

	"github.com/google/uuid"

	"solwatch/internal/models"
)

const idLength = 10

// NewID returns a short random identifier suitable for sharing in a link.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

// ResolveIdentity picks the explicit identifier when valid, then the
// remembered one, then a fresh one. fresh reports whether a new id was minted.
func ResolveIdentity(explicit, remembered string) (id string, fresh bool) {
	if id := strings.TrimSpace(explicit); models.ValidWatchlistID(id) {
		return id, false
	}
	if id := strings.TrimSpace(remembered); models.ValidWatchlistID(id) {
		return id, false
	}
	return NewID(), true
}

// ShareLink places the identifier in the fragment of base, replacing any
// fragment base already carries.
func ShareLink(base, id string) string {
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	return base + "#" + id
}
