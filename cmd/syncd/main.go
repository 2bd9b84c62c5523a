// Package main implements syncd, the linksync sidecar daemon.
// The app's UI talks to this local HTTP API; syncd durably queues writes,
// mirrors them for optimistic reads, and replays them to the round service
// whenever it is reachable.
//
// API Endpoints:
//
//	POST   /queue/score  - queue a score for delivery
//	POST   /queue/photo  - queue a photo for delivery
//	POST   /queue/order  - queue a food/beverage order for delivery
//	GET    /status       - queue length, mirror sizes, online/draining flags
//	POST   /sync         - trigger a full drain (no-op offline or mid-drain)
//	DELETE /cache        - wipe queue and mirrors (logout/reset)
//
// Configuration (environment):
//
//	REDIS_ADDR   local durable store        (default 127.0.0.1:6379)
//	BACKEND_URL  round service base URL     (default http://localhost:8081)
//	LISTEN_ADDR  local API listen address   (default :8082)
//	METRICS_ADDR prometheus listen address  (default :8080)
//	API_KEY      X-API-Key for both the local API and the round service
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairwaylabs/linksync/pkg/actions"
	"github.com/fairwaylabs/linksync/pkg/backend"
	"github.com/fairwaylabs/linksync/pkg/connectivity"
	"github.com/fairwaylabs/linksync/pkg/logger"
	"github.com/fairwaylabs/linksync/pkg/offline"
	"github.com/fairwaylabs/linksync/pkg/store"
	"github.com/fairwaylabs/linksync/pkg/syncer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

// authMiddleware wraps an http.HandlerFunc and enforces API Key authentication.
func authMiddleware(next http.HandlerFunc, requiredKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// If no key is configured, allow all (dev mode)
		if requiredKey == "" {
			next(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey != requiredKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// enableCORS wraps an http.HandlerFunc and adds CORS headers so the app's
// local web view can call the sidecar directly.
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// queueHandler decodes a payload of type T and hands it to the facade.
func queueHandler[T any](enqueue func(context.Context, T) (actions.QueuedAction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var payload T
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		a, err := enqueue(r.Context(), payload)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"id": a.ID})
	}
}

// setupRouter configures the HTTP handlers and returns the mux.
// CORS runs before auth so preflight requests never fail the key check.
func setupRouter(svc *offline.Service, apiKey string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/queue/score", enableCORS(authMiddleware(queueHandler(svc.QueueScore), apiKey)))
	mux.HandleFunc("/queue/photo", enableCORS(authMiddleware(queueHandler(svc.QueuePhoto), apiKey)))
	mux.HandleFunc("/queue/order", enableCORS(authMiddleware(queueHandler(svc.QueueOrder), apiKey)))

	mux.HandleFunc("/status", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(svc.GetQueueStatus(r.Context()))
	}, apiKey)))

	mux.HandleFunc("/sync", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		svc.SyncWhenOnline(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}, apiKey)))

	mux.HandleFunc("/cache", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := svc.ClearAllCachedData(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}, apiKey)))

	return mux
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	redisAddr := getenv("REDIS_ADDR", "127.0.0.1:6379")
	backendURL := getenv("BACKEND_URL", "http://localhost:8081")
	listenAddr := getenv("LISTEN_ADDR", ":8082")
	metricsAddr := getenv("METRICS_ADDR", ":8080")
	apiKey := os.Getenv("API_KEY")

	if apiKey == "" {
		logger.Log.Warn().Msg("API_KEY not set. Authentication disabled.")
	} else {
		logger.Log.Info().Msg("API Authentication enabled.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.New(redisAddr)
	be := backend.New(backendURL, apiKey)
	orch := syncer.New(st, be, syncer.DefaultBackoff())
	monitor := connectivity.NewProber(be.Ping, 10*time.Second)
	go monitor.Run(ctx)

	svc := offline.New(st, orch, monitor, actions.DefaultMaxRetries).Start(ctx)
	defer svc.Close()

	// Prometheus metrics server
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		logger.Log.Info().Str("addr", metricsAddr).Msg("Metrics server listening")
		http.ListenAndServe(metricsAddr, nil)
	}()

	// Refresh queue/mirror gauges periodically so dashboards stay current
	// even when no sync is running.
	c := cron.New()
	c.AddFunc("@every 30s", func() {
		syncer.ObserveQueueDepth(st.QueueLen(ctx))
		for t, n := range st.CacheSizes(ctx) {
			syncer.ObserveCacheSize(t, n)
		}
	})
	c.Start()
	defer c.Stop()

	// Setup graceful shutdown handlers
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{Addr: listenAddr, Handler: setupRouter(svc, apiKey)}

	go func() {
		<-sigChan
		logger.Log.Info().Msg("Shutting down syncd...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Log.Info().Str("addr", listenAddr).Msg("syncd listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Fatal().Err(err).Msg("Server failed")
	}
}
