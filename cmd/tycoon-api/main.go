package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tycoon/internal/api"
	"tycoon/internal/config"
	"tycoon/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("load .env", "err", err)
	}

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	gameCfg, err := config.LoadGame(cfg.GameConfigPath)
	if err != nil {
		logger.Error("load game config", "err", err, "path", cfg.GameConfigPath)
		os.Exit(1)
	}

	saves, err := store.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath, logger)
	if err != nil {
		logger.Error("open save store failed", "err", err)
		os.Exit(1)
	}
	defer saves.Close()

	server := api.New(cfg, gameCfg, logger, saves)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("tycoon api listening",
		"addr", cfg.Addr,
		"postgres", cfg.DatabaseURL != "",
		"session_ttl", cfg.SessionTTL.String(),
		"max_turns", gameCfg.MaxTurns,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
