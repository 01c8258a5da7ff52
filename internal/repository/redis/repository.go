package redisrepository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"solwatch/internal/models"
	"solwatch/internal/repository"
)

// Store keeps each watchlist as a JSON string at <prefix>:watchlist:<id> and
// the set of known ids at <prefix>:watchlist_ids.
type Store struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: strings.Trim(strings.TrimSpace(prefix), ":")}
}

func (s *Store) GetWatchlist(ctx context.Context, id string) (models.Watchlist, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, nil
	}
	if !models.ValidWatchlistID(id) {
		return nil, false, repository.ErrInvalidID
	}
	raw, err := s.client.Get(ctx, s.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var w models.Watchlist
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false, fmt.Errorf("decode watchlist %s: %w", id, err)
	}
	return w, true, nil
}

func (s *Store) UpsertWatchlist(ctx context.Context, id string, w models.Watchlist) error {
	if s == nil || s.client == nil {
		return nil
	}
	if !models.ValidWatchlistID(id) {
		return repository.ErrInvalidID
	}
	if w == nil {
		w = models.Watchlist{}
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.docKey(id), raw, 0)
		p.SAdd(ctx, s.idsKey(), id)
		return nil
	})
	return err
}

func (s *Store) ListWatchlistIDs(ctx context.Context) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("redis missing")
	}
	return s.client.Ping(ctx).Err()
}

func (s *Store) docKey(id string) string {
	return s.key("watchlist:" + id)
}

func (s *Store) idsKey() string {
	return s.key("watchlist_ids")
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}
