// Package offline is the public surface of linksync: the rest of the app
// queues scores, photos, and orders here and reads back its own writes for
// optimistic rendering, without caring whether the device is online.
//
// Queueing is fire-and-forget with respect to delivery: a successful call
// means the write was durably queued and mirrored, not that the round
// service accepted it. Delivery status is only observable in aggregate via
// GetQueueStatus.
package offline

import (
	"context"

	"github.com/fairwaylabs/linksync/pkg/actions"
	"github.com/fairwaylabs/linksync/pkg/connectivity"
	"github.com/fairwaylabs/linksync/pkg/logger"
	"github.com/fairwaylabs/linksync/pkg/syncer"
	"github.com/rs/zerolog"
)

// Store is the durable local state the facade writes through: the pending
// queue plus the per-game mirrors.
type Store interface {
	Append(ctx context.Context, a actions.QueuedAction) error
	AppendCache(ctx context.Context, t actions.Type, gameID string, record any) error
	CachedScores(ctx context.Context, gameID string) []actions.ScorePayload
	CachedPhotos(ctx context.Context, gameID string) []actions.PhotoPayload
	CachedOrders(ctx context.Context, gameID string) []actions.OrderPayload
	QueueLen(ctx context.Context) int
	CacheSizes(ctx context.Context) map[actions.Type]int
	ClearAll(ctx context.Context) error
}

// Status is a point-in-time snapshot of the offline subsystem.
type Status struct {
	QueueLength  int    `json:"queue_length"`
	CachedScores int    `json:"cached_scores"`
	CachedPhotos int    `json:"cached_photos"`
	CachedOrders int    `json:"cached_orders"`
	Online       bool   `json:"online"`
	Draining     bool   `json:"draining"`
	Dropped      uint64 `json:"dropped"`
}

// Service wires the durable store, the sync orchestrator, and the
// connectivity monitor behind typed queue entry points.
type Service struct {
	store       Store
	orch        *syncer.Orchestrator
	monitor     connectivity.Monitor
	maxRetries  int
	unsubscribe func()
	log         zerolog.Logger
}

// New creates the facade. maxRetries <= 0 uses the default ceiling.
func New(store Store, orch *syncer.Orchestrator, monitor connectivity.Monitor, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = actions.DefaultMaxRetries
	}
	return &Service{
		store:      store,
		orch:       orch,
		monitor:    monitor,
		maxRetries: maxRetries,
		log:        logger.With("offline"),
	}
}

// Start subscribes to connectivity transitions: the offline→online edge
// triggers a full drain. Returns the service for chaining.
func (s *Service) Start(ctx context.Context) *Service {
	s.unsubscribe = s.monitor.OnStatusChange(func(online bool) {
		if online {
			s.log.Info().Msg("Back online, draining queue")
			s.orch.Drain(ctx)
		}
	})
	return s
}

// Close unregisters the connectivity subscription.
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// QueueScore durably queues a score, mirrors it for optimistic reads, and
// attempts immediate delivery when online.
func (s *Service) QueueScore(ctx context.Context, p actions.ScorePayload) (actions.QueuedAction, error) {
	return s.queue(ctx, actions.TypeScore, p.GameID, p)
}

// QueuePhoto durably queues a photo, mirrors it, and attempts immediate
// delivery when online.
func (s *Service) QueuePhoto(ctx context.Context, p actions.PhotoPayload) (actions.QueuedAction, error) {
	return s.queue(ctx, actions.TypePhoto, p.GameID, p)
}

// QueueOrder durably queues an order, mirrors it, and attempts immediate
// delivery when online.
func (s *Service) QueueOrder(ctx context.Context, p actions.OrderPayload) (actions.QueuedAction, error) {
	return s.queue(ctx, actions.TypeOrder, p.GameID, p)
}

func (s *Service) queue(ctx context.Context, t actions.Type, gameID string, payload any) (actions.QueuedAction, error) {
	a, err := actions.New(t, payload, s.maxRetries)
	if err != nil {
		return actions.QueuedAction{}, err
	}

	// Storage failures are logged, not fatal: the mirror and the immediate
	// sync attempt still give the write a chance to land.
	if err := s.store.Append(ctx, a); err != nil {
		s.log.Error().Err(err).Str("action_id", a.ID).Str("type", string(t)).Msg("Failed to persist queued action")
	}
	if err := s.store.AppendCache(ctx, t, gameID, payload); err != nil {
		s.log.Error().Err(err).Str("action_id", a.ID).Str("type", string(t)).Msg("Failed to mirror record")
	}

	if s.monitor.IsOnline() {
		s.orch.SyncAction(ctx, a)
	}
	return a, nil
}

// IsOnline reports the current connectivity state.
func (s *Service) IsOnline() bool {
	return s.monitor.IsOnline()
}

// OnOnlineStatusChange registers an edge-triggered connectivity callback and
// returns its unsubscribe func.
func (s *Service) OnOnlineStatusChange(cb func(online bool)) func() {
	return s.monitor.OnStatusChange(cb)
}

// SyncWhenOnline triggers a full drain. No-op when offline; the orchestrator
// makes it a no-op when a drain is already in progress.
func (s *Service) SyncWhenOnline(ctx context.Context) {
	if !s.monitor.IsOnline() {
		return
	}
	s.orch.Drain(ctx)
}

// GetCachedScores returns every score mirrored for a game, regardless of
// delivery status.
func (s *Service) GetCachedScores(ctx context.Context, gameID string) []actions.ScorePayload {
	return s.store.CachedScores(ctx, gameID)
}

// GetCachedPhotos returns every photo mirrored for a game.
func (s *Service) GetCachedPhotos(ctx context.Context, gameID string) []actions.PhotoPayload {
	return s.store.CachedPhotos(ctx, gameID)
}

// GetCachedOrders returns every order mirrored for a game.
func (s *Service) GetCachedOrders(ctx context.Context, gameID string) []actions.OrderPayload {
	return s.store.CachedOrders(ctx, gameID)
}

// GetQueueStatus returns a snapshot of queue length, mirror sizes, and
// sync state.
func (s *Service) GetQueueStatus(ctx context.Context) Status {
	sizes := s.store.CacheSizes(ctx)
	return Status{
		QueueLength:  s.store.QueueLen(ctx),
		CachedScores: sizes[actions.TypeScore],
		CachedPhotos: sizes[actions.TypePhoto],
		CachedOrders: sizes[actions.TypeOrder],
		Online:       s.monitor.IsOnline(),
		Draining:     s.orch.Draining(),
		Dropped:      s.orch.Dropped(),
	}
}

// ClearAllCachedData wipes the pending queue and every mirror. Used by
// logout/reset flows.
func (s *Service) ClearAllCachedData(ctx context.Context) error {
	return s.store.ClearAll(ctx)
}
