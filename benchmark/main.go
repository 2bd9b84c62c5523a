// Package main benchmarks linksync's drain throughput: it queues a large
// number of scores while "offline" against an embedded miniredis, then goes
// online with a no-op dispatcher and measures how fast a full drain clears
// the queue.
//
// Usage:
//
//	go run benchmark/main.go -actions 10000
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fairwaylabs/linksync/pkg/actions"
	"github.com/fairwaylabs/linksync/pkg/connectivity"
	"github.com/fairwaylabs/linksync/pkg/offline"
	"github.com/fairwaylabs/linksync/pkg/store"
	"github.com/fairwaylabs/linksync/pkg/syncer"
)

// nopDispatcher accepts every delivery instantly.
type nopDispatcher struct{}

func (nopDispatcher) SubmitScore(context.Context, actions.ScorePayload) (string, error) {
	return "ok", nil
}
func (nopDispatcher) SubmitPhoto(context.Context, actions.PhotoPayload) (string, error) {
	return "ok", nil
}
func (nopDispatcher) SubmitOrder(context.Context, actions.OrderPayload) (string, error) {
	return "ok", nil
}

func main() {
	numActions := flag.Int("actions", 10000, "Number of scores to enqueue")
	flag.Parse()

	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer mr.Close()

	st := store.New(mr.Addr())
	orch := syncer.New(st, nopDispatcher{}, syncer.NoDelay{})
	monitor := connectivity.NewManual(false)
	svc := offline.New(st, orch, monitor, actions.DefaultMaxRetries)

	ctx := context.Background()

	fmt.Printf("linksync Benchmark\n")
	fmt.Printf("==================\n")
	fmt.Printf("Actions to enqueue: %d\n\n", *numActions)

	// Enqueue phase (offline, so no delivery attempts)
	fmt.Printf("Starting enqueue phase...\n")
	startEnqueue := time.Now()

	for i := 0; i < *numActions; i++ {
		_, err := svc.QueueScore(ctx, actions.ScorePayload{
			PlayerID:   "bench-player",
			GameID:     "bench-game",
			HoleNumber: i%18 + 1,
			Strokes:    4,
			Timestamp:  time.Now(),
		})
		if err != nil {
			fmt.Printf("Error enqueuing: %v\n", err)
			return
		}
	}

	enqueueTime := time.Since(startEnqueue)
	fmt.Printf("Enqueued %d actions in %s\n", *numActions, enqueueTime)
	fmt.Printf("  Throughput: %.2f actions/sec\n\n", float64(*numActions)/enqueueTime.Seconds())

	// Drain phase
	fmt.Printf("Starting drain phase...\n")
	startDrain := time.Now()
	monitor.SetOnline(true)
	svc.SyncWhenOnline(ctx)
	drainTime := time.Since(startDrain)

	remaining := svc.GetQueueStatus(ctx).QueueLength
	fmt.Printf("Drained in %s (remaining: %d)\n", drainTime, remaining)
	fmt.Printf("  Throughput: %.2f actions/sec\n", float64(*numActions)/drainTime.Seconds())
}
