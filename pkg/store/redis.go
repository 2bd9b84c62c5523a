// Package store persists the offline state of the app in Redis:
//   - queue:pending        list of QueuedActions awaiting delivery
//   - cache:scores:<game>  mirror of scores recorded for a game
//   - cache:photos:<game>  mirror of photos captured for a game
//   - cache:orders:<game>  mirror of orders placed for a game
//   - cache:index          set of live mirror keys, used for clear and sizing
//
// Mirrors exist purely so the UI can render its own writes before the round
// service confirms them; they are additive-only and never authoritative.
//
// The Store type is deliberately forgiving on reads: an unreachable store or
// a corrupt record is treated as "nothing there", logged, and never surfaced
// as an error to the caller.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairwaylabs/linksync/pkg/actions"
	"github.com/fairwaylabs/linksync/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	queueKey      = "queue:pending"
	cacheIndexKey = "cache:index"
)

// Store manages the pending-action queue and the per-game mirror lists.
type Store struct {
	rdb *redis.Client
	log zerolog.Logger
}

// New creates a Store connected to the Redis instance at addr
// (e.g. "localhost:6379").
func New(addr string) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		log: logger.With("store"),
	}
}

func cacheKey(t actions.Type, gameID string) string {
	return fmt.Sprintf("cache:%ss:%s", t, gameID)
}

// Append persists a new action at the tail of the pending queue.
func (s *Store) Append(ctx context.Context, a actions.QueuedAction) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, queueKey, data).Err()
}

// LoadAll returns the full pending queue. A missing or unreachable store and
// malformed records all degrade to "fewer actions", never to an error: the
// sync loop must keep working with whatever survives.
func (s *Store) LoadAll(ctx context.Context) []actions.QueuedAction {
	raw, err := s.rdb.LRange(ctx, queueKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		s.log.Warn().Err(err).Msg("Pending queue unreadable, treating as empty")
		return nil
	}

	out := make([]actions.QueuedAction, 0, len(raw))
	for _, r := range raw {
		var a actions.QueuedAction
		if err := json.Unmarshal([]byte(r), &a); err != nil {
			s.log.Warn().Err(err).Msg("Skipping malformed queued action")
			continue
		}
		out = append(out, a)
	}
	return out
}

// ReplaceAll overwrites the persisted queue with the given survivors in one
// MULTI/EXEC, so retry-count bumps and removals from a drain pass commit
// together and a concurrent reader never sees a half-written list.
func (s *Store) ReplaceAll(ctx context.Context, list []actions.QueuedAction) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, queueKey)
	for _, a := range list {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, queueKey, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// QueueLen returns the number of pending actions, or 0 if the store is
// unreachable.
func (s *Store) QueueLen(ctx context.Context) int {
	n, err := s.rdb.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// AppendCache adds a record to the mirror list for that entity type and
// game, regardless of online status. The mirror key is also registered in
// cache:index so ClearAll and CacheSizes can find it.
func (s *Store) AppendCache(ctx context.Context, t actions.Type, gameID string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	key := cacheKey(t, gameID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.SAdd(ctx, cacheIndexKey, key)
	_, err = pipe.Exec(ctx)
	return err
}

// CachedScores returns all scores mirrored for a game, independent of
// whether their queued actions were delivered, retried, or dropped.
func (s *Store) CachedScores(ctx context.Context, gameID string) []actions.ScorePayload {
	return readCache[actions.ScorePayload](s, ctx, actions.TypeScore, gameID)
}

// CachedPhotos returns all photos mirrored for a game.
func (s *Store) CachedPhotos(ctx context.Context, gameID string) []actions.PhotoPayload {
	return readCache[actions.PhotoPayload](s, ctx, actions.TypePhoto, gameID)
}

// CachedOrders returns all orders mirrored for a game.
func (s *Store) CachedOrders(ctx context.Context, gameID string) []actions.OrderPayload {
	return readCache[actions.OrderPayload](s, ctx, actions.TypeOrder, gameID)
}

func readCache[T any](s *Store, ctx context.Context, t actions.Type, gameID string) []T {
	raw, err := s.rdb.LRange(ctx, cacheKey(t, gameID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		s.log.Warn().Err(err).Str("type", string(t)).Msg("Mirror unreadable, treating as empty")
		return nil
	}

	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var rec T
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			s.log.Warn().Err(err).Str("type", string(t)).Msg("Skipping malformed mirror record")
			continue
		}
		out = append(out, rec)
	}
	return out
}

// CacheSizes returns the total number of mirrored records per entity type
// across all games.
func (s *Store) CacheSizes(ctx context.Context) map[actions.Type]int {
	sizes := map[actions.Type]int{
		actions.TypeScore: 0,
		actions.TypePhoto: 0,
		actions.TypeOrder: 0,
	}

	keys, err := s.rdb.SMembers(ctx, cacheIndexKey).Result()
	if err != nil {
		return sizes
	}
	for _, key := range keys {
		n, err := s.rdb.LLen(ctx, key).Result()
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(key, "cache:scores:"):
			sizes[actions.TypeScore] += int(n)
		case strings.HasPrefix(key, "cache:photos:"):
			sizes[actions.TypePhoto] += int(n)
		case strings.HasPrefix(key, "cache:orders:"):
			sizes[actions.TypeOrder] += int(n)
		}
	}
	return sizes
}

// ClearAll wipes the pending queue and every mirror list in one MULTI/EXEC.
// Used by logout/reset flows.
func (s *Store) ClearAll(ctx context.Context) error {
	keys, err := s.rdb.SMembers(ctx, cacheIndexKey).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, queueKey)
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	pipe.Del(ctx, cacheIndexKey)
	_, err = pipe.Exec(ctx)
	return err
}
