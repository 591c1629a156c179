// Command kvsrv runs the in-memory key/value server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	kvsrv "github.com/behrlich/kvsrv"
	"github.com/behrlich/kvsrv/internal/config"
	"github.com/behrlich/kvsrv/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if err := cfg.EnsureDir(); err != nil {
		logger.Error("failed to prepare data directory", "dir", cfg.Dir, "error", err)
		os.Exit(1)
	}

	logger.Info("starting kvsrv", "pid", os.Getpid(), "port", cfg.Port, "bind", cfg.Bind)

	server, err := kvsrv.New(cfg, &kvsrv.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
