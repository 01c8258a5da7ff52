package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"solwatch/internal/models"
)

// LocalStore is the device-local durable copy plus the remembered-identity slot.
type LocalStore interface {
	CurrentID() (string, error)
	SetCurrentID(id string) error
	Load(id string) (models.Watchlist, bool, error)
	Save(id string, w models.Watchlist) error
}

// FileStore keeps one JSON file per identifier under Dir/watchlists and the
// remembered identifier in Dir/current_id.
type FileStore struct {
	Dir string
}

func (f FileStore) CurrentID() (string, error) {
	b, err := os.ReadFile(filepath.Join(f.Dir, "current_id"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (f FileStore) SetCurrentID(id string) error {
	if !models.ValidWatchlistID(id) {
		return fmt.Errorf("invalid watchlist id %q", id)
	}
	return writeAtomic(filepath.Join(f.Dir, "current_id"), []byte(id+"\n"))
}

func (f FileStore) Load(id string) (models.Watchlist, bool, error) {
	if !models.ValidWatchlistID(id) {
		return nil, false, fmt.Errorf("invalid watchlist id %q", id)
	}
	b, err := os.ReadFile(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var w models.Watchlist
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, false, fmt.Errorf("decode local watchlist %s: %w", id, err)
	}
	return w, true, nil
}

func (f FileStore) Save(id string, w models.Watchlist) error {
	if !models.ValidWatchlistID(id) {
		return fmt.Errorf("invalid watchlist id %q", id)
	}
	b, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(f.path(id), b)
}

func (f FileStore) path(id string) string {
	return filepath.Join(f.Dir, "watchlists", id+".json")
}

// writeAtomic writes to a temp file in the target directory, syncs it and
// renames it over the target so readers never see a partial file.
func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
