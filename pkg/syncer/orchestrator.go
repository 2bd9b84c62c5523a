// Package syncer implements the core replay algorithm: when to attempt
// delivery of queued actions to the round service, single-flight drains,
// retry/drop policy, and committing the outcome back to the durable store.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/fairwaylabs/linksync/pkg/actions"
	"github.com/fairwaylabs/linksync/pkg/logger"
	"github.com/rs/zerolog"
)

// Store is the durable queue the orchestrator drains. LoadAll never fails:
// an unreadable store reads as empty so the sync loop keeps working.
type Store interface {
	LoadAll(ctx context.Context) []actions.QueuedAction
	ReplaceAll(ctx context.Context, list []actions.QueuedAction) error
}

// Dispatcher delivers one payload to the round service and returns the
// server-assigned identifier. Errors wrapped with Terminal are never
// retried.
type Dispatcher interface {
	SubmitScore(ctx context.Context, p actions.ScorePayload) (string, error)
	SubmitPhoto(ctx context.Context, p actions.PhotoPayload) (string, error)
	SubmitOrder(ctx context.Context, p actions.OrderPayload) (string, error)
}

// Orchestrator replays queued actions against the round service.
//
// A drain processes actions strictly in enqueue order, awaiting each
// delivery before starting the next, so a player's hole-3 score never races
// ahead of hole 2. Only one drain (or enqueue-time attempt) runs at a time;
// overlapping triggers return immediately.
type Orchestrator struct {
	store      Store
	dispatcher Dispatcher
	policy     RetryPolicy
	inFlight   atomic.Bool
	dropped    atomic.Uint64
	log        zerolog.Logger
}

// New creates an Orchestrator. A nil policy defaults to exponential backoff
// with jitter.
func New(store Store, dispatcher Dispatcher, policy RetryPolicy) *Orchestrator {
	if policy == nil {
		policy = DefaultBackoff()
	}
	return &Orchestrator{
		store:      store,
		dispatcher: dispatcher,
		policy:     policy,
		log:        logger.With("syncer"),
	}
}

// Draining reports whether a drain or enqueue-time attempt is in progress.
func (o *Orchestrator) Draining() bool {
	return o.inFlight.Load()
}

// Dropped returns the number of actions abandoned since startup, either by
// retry exhaustion or by a terminal delivery failure.
func (o *Orchestrator) Dropped() uint64 {
	return o.dropped.Load()
}

// Drain attempts delivery of every currently pending action, in FIFO order,
// and commits the survivors back to the store in one write. Individual
// delivery failures never abort the pass; actions not yet due for retry are
// carried over untouched. A second concurrent Drain returns immediately.
func (o *Orchestrator) Drain(ctx context.Context) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer o.inFlight.Store(false)

	list := o.store.LoadAll(ctx)
	if len(list) == 0 {
		ObserveQueueDepth(0)
		return
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.Before(list[j].Timestamp)
	})

	o.log.Info().Int("pending", len(list)).Msg("Draining queue")

	outcomes := make(map[string]*actions.QueuedAction, len(list))
	for i := range list {
		a := list[i]
		if !a.Due(time.Now()) {
			continue
		}
		if o.attempt(ctx, &a) {
			outcomes[a.ID] = &a
		} else {
			outcomes[a.ID] = nil
		}
	}

	o.commit(ctx, outcomes)
}

// SyncAction is the enqueue-time immediate attempt for a single, already
// persisted action. It shares the drain's single-flight guard: if a drain is
// running the attempt is skipped and the drain (or the next trigger) picks
// the action up.
func (o *Orchestrator) SyncAction(ctx context.Context, a actions.QueuedAction) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer o.inFlight.Store(false)

	outcome := map[string]*actions.QueuedAction{a.ID: nil}
	if o.attempt(ctx, &a) {
		outcome[a.ID] = &a
	}

	o.commit(ctx, outcome)
}

// commit rewrites the persisted queue, applying per-action outcomes (nil =
// remove, non-nil = updated in place). Actions the pass never touched,
// including any appended while it ran, survive unchanged.
func (o *Orchestrator) commit(ctx context.Context, outcomes map[string]*actions.QueuedAction) {
	current := o.store.LoadAll(ctx)
	final := make([]actions.QueuedAction, 0, len(current))
	for _, q := range current {
		if updated, ok := outcomes[q.ID]; ok {
			if updated != nil {
				final = append(final, *updated)
			}
			continue
		}
		final = append(final, q)
	}

	if err := o.store.ReplaceAll(ctx, final); err != nil {
		o.log.Warn().Err(err).Msg("Failed to persist queue after sync pass")
	}
	ObserveQueueDepth(len(final))
}

// attempt runs one delivery attempt and applies the retry/drop policy.
// Returns true if the action should remain queued.
func (o *Orchestrator) attempt(ctx context.Context, a *actions.QueuedAction) bool {
	start := time.Now()
	err := o.dispatch(ctx, *a)
	deliveryDuration.WithLabelValues(string(a.Type)).Observe(time.Since(start).Seconds())

	if err == nil {
		actionsProcessed.WithLabelValues("delivered", string(a.Type)).Inc()
		o.log.Info().
			Str("action_id", a.ID).
			Str("type", string(a.Type)).
			Int("retry_count", a.RetryCount).
			Msg("Action delivered")
		return false
	}

	if IsTerminal(err) {
		o.dropped.Add(1)
		actionsProcessed.WithLabelValues("dropped", string(a.Type)).Inc()
		o.log.Warn().Err(err).
			Str("action_id", a.ID).
			Str("type", string(a.Type)).
			Msg("Action rejected permanently, dropping")
		return false
	}

	a.RetryCount++
	if a.RetryCount >= a.MaxRetries {
		o.dropped.Add(1)
		actionsProcessed.WithLabelValues("dropped", string(a.Type)).Inc()
		o.log.Warn().Err(err).
			Str("action_id", a.ID).
			Str("type", string(a.Type)).
			Int("retry_count", a.RetryCount).
			Msg("Retry budget exhausted, dropping action")
		return false
	}

	a.NextAttemptAt = time.Now().Add(o.policy.NextDelay(a.RetryCount))
	actionsProcessed.WithLabelValues("retry", string(a.Type)).Inc()
	o.log.Warn().Err(err).
		Str("action_id", a.ID).
		Str("type", string(a.Type)).
		Int("retry_count", a.RetryCount).
		Msg("Delivery failed, will retry")
	return true
}

// dispatch routes the action to the matching round-service mutation. A
// payload that cannot be decoded is a terminal failure: it can never
// succeed, so it must not consume the retry budget. A panicking dispatcher
// is contained here so one bad action cannot abort the drain.
func (o *Orchestrator) dispatch(ctx context.Context, a actions.QueuedAction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	switch a.Type {
	case actions.TypeScore:
		var p actions.ScorePayload
		if uerr := json.Unmarshal(a.Payload, &p); uerr != nil {
			return Terminal(fmt.Errorf("decode score payload: %w", uerr))
		}
		_, err = o.dispatcher.SubmitScore(ctx, p)
	case actions.TypePhoto:
		var p actions.PhotoPayload
		if uerr := json.Unmarshal(a.Payload, &p); uerr != nil {
			return Terminal(fmt.Errorf("decode photo payload: %w", uerr))
		}
		_, err = o.dispatcher.SubmitPhoto(ctx, p)
	case actions.TypeOrder:
		var p actions.OrderPayload
		if uerr := json.Unmarshal(a.Payload, &p); uerr != nil {
			return Terminal(fmt.Errorf("decode order payload: %w", uerr))
		}
		_, err = o.dispatcher.SubmitOrder(ctx, p)
	default:
		return Terminal(fmt.Errorf("unknown action type %q", a.Type))
	}
	return err
}
