// Package connectivity tracks whether the round service is reachable and
// notifies subscribers on state transitions. Callbacks fire only on edges
// (offline→online or online→offline), never on repeated signals of the same
// state.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/fairwaylabs/linksync/pkg/logger"
)

// Monitor exposes the current connectivity state and edge-triggered
// change notifications. OnStatusChange returns an unsubscribe func that
// unregisters the callback.
type Monitor interface {
	IsOnline() bool
	OnStatusChange(cb func(online bool)) (unsubscribe func())
}

// notifier implements the subscriber bookkeeping shared by the concrete
// monitors.
type notifier struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
}

func (n *notifier) IsOnline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *notifier) OnStatusChange(cb func(online bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(online bool))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = cb
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// set records the new state and, on a transition, fires the subscribers.
// Callbacks run outside the lock so a subscriber may unsubscribe itself.
func (n *notifier) set(online bool) {
	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return
	}
	n.online = online
	cbs := make([]func(bool), 0, len(n.subs))
	for _, cb := range n.subs {
		cbs = append(cbs, cb)
	}
	n.mu.Unlock()

	for _, cb := range cbs {
		cb(online)
	}
}

// Prober is a Monitor that decides connectivity by periodically running a
// reachability check, typically the round service's health endpoint.
type Prober struct {
	notifier
	check    func(ctx context.Context) error
	interval time.Duration
}

// NewProber creates a Prober around the given check. The monitor reports
// offline until the first successful probe. interval <= 0 defaults to 10s.
func NewProber(check func(ctx context.Context) error, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Prober{check: check, interval: interval}
}

// Run probes immediately and then on every tick until the context is
// cancelled. Intended to be started as a goroutine.
func (p *Prober) Run(ctx context.Context) {
	log := logger.With("connectivity")

	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, p.interval)
		defer cancel()
		err := p.check(probeCtx)
		online := err == nil
		if online != p.IsOnline() {
			log.Info().Bool("online", online).Msg("Connectivity changed")
		}
		p.set(online)
	}

	probe()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// Manual is a Monitor whose state is set explicitly. Used by tests and by
// tools that drive connectivity by hand.
type Manual struct {
	notifier
}

// NewManual creates a Manual monitor starting in the given state.
func NewManual(online bool) *Manual {
	m := &Manual{}
	m.online = online
	return m
}

// SetOnline updates the state, firing subscribers only on a transition.
func (m *Manual) SetOnline(online bool) {
	m.set(online)
}
