package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestManualEdgeTriggered(t *testing.T) {
	m := NewManual(false)

	var transitions []bool
	unsubscribe := m.OnStatusChange(func(online bool) {
		transitions = append(transitions, online)
	})
	defer unsubscribe()

	m.SetOnline(true)
	m.SetOnline(true) // redundant, must not fire
	m.SetOnline(false)
	m.SetOnline(false) // redundant, must not fire
	m.SetOnline(true)

	want := []bool{true, false, true}
	if len(transitions) != len(want) {
		t.Fatalf("Expected %d transitions, got %d (%v)", len(want), len(transitions), transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("Transition %d: expected %v, got %v", i, want[i], transitions[i])
		}
	}
}

func TestUnsubscribeStopsCallbacks(t *testing.T) {
	m := NewManual(false)

	var calls int
	unsubscribe := m.OnStatusChange(func(bool) { calls++ })

	m.SetOnline(true)
	unsubscribe()
	m.SetOnline(false)
	m.SetOnline(true)

	if calls != 1 {
		t.Errorf("Expected 1 callback before unsubscribe, got %d", calls)
	}
}

func TestManualInitialState(t *testing.T) {
	if !NewManual(true).IsOnline() {
		t.Error("Expected monitor created online to report online")
	}
	if NewManual(false).IsOnline() {
		t.Error("Expected monitor created offline to report offline")
	}
}

func TestProberDetectsTransitions(t *testing.T) {
	var reachable atomic.Bool
	check := func(ctx context.Context) error {
		if reachable.Load() {
			return nil
		}
		return errors.New("unreachable")
	}

	p := NewProber(check, 5*time.Millisecond)

	changes := make(chan bool, 16)
	unsubscribe := p.OnStatusChange(func(online bool) { changes <- online })
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Starts offline; no transition expected until the check succeeds.
	reachable.Store(true)
	select {
	case online := <-changes:
		if !online {
			t.Error("Expected first transition to be online")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for online transition")
	}
	if !p.IsOnline() {
		t.Error("Expected prober to report online")
	}

	reachable.Store(false)
	select {
	case online := <-changes:
		if online {
			t.Error("Expected second transition to be offline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for offline transition")
	}
	if p.IsOnline() {
		t.Error("Expected prober to report offline")
	}
}
