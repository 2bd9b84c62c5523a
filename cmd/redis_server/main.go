// Package main runs an embedded miniredis so the syncd sidecar can be
// developed without a real Redis installation. Not for production use:
// miniredis keeps everything in memory, so "durable" only lasts as long as
// this process.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/alicebob/miniredis/v2"
	"github.com/fairwaylabs/linksync/pkg/logger"
)

func main() {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	s := miniredis.NewMiniRedis()
	if err := s.StartAddr(addr); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to start embedded redis")
	}
	defer s.Close()

	logger.Log.Info().Str("addr", s.Addr()).Msg("Embedded redis started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Log.Info().Msg("Shutting down embedded redis...")
}
