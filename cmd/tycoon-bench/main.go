package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tycoon/internal/bench"
	"tycoon/internal/config"
	"tycoon/internal/game"
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

	cfg, err := config.LoadBenchFromEnv()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	gameCfg, err := config.LoadGame(cfg.GameConfigPath)
	if err != nil {
		logger.Error("load game config", "err", err, "path", cfg.GameConfigPath)
		os.Exit(1)
	}

	opts := bench.Options{Games: cfg.Games, BaseSeed: cfg.BaseSeed, Workers: cfg.Workers}
	if cfg.SaveGames {
		saves, err := store.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("open save store failed", "err", err)
			os.Exit(1)
		}
		defer saves.Close()
		opts.Saves = saves
	}

	if cfg.RunOnce {
		if err := runBatch(ctx, logger, gameCfg, opts); err != nil {
			logger.Error("bench failed", "err", err)
			os.Exit(1)
		}
		logger.Info("bench run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.Every)
	defer ticker.Stop()

	logger.Info("bench started", "every", cfg.Every.String(), "games", cfg.Games)
	for {
		if err := runBatch(ctx, logger, gameCfg, opts); err != nil {
			logger.Error("bench batch failed", "err", err)
		}
		opts.BaseSeed += int64(opts.Games)
		select {
		case <-ctx.Done():
			logger.Info("bench shutdown")
			return
		case <-ticker.C:
		}
	}
}

func runBatch(ctx context.Context, logger *slog.Logger, cfg game.Config, opts bench.Options) error {
	started := time.Now()
	sum, err := bench.Run(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	for _, r := range sum.Results {
		logger.Info("bench game",
			"seed", r.Seed,
			"outcome", r.Outcome,
			"turns", r.Turns,
			"net_worth", r.PlayerNetWorth,
			"best_rival", r.BestRival,
			"best_rival_net_worth", r.BestRivalNetWorth,
			"respawns", r.Respawns,
		)
	}
	logger.Info("bench batch complete",
		"base_seed", opts.BaseSeed,
		"games", sum.Games,
		"won", sum.Won,
		"bankrupt", sum.Bankrupt,
		"time_up", sum.TimeUp,
		"mean_turns", sum.MeanTurns,
		"mean_net_worth", sum.MeanNetWorth,
		"median_net_worth", sum.MedianNetWorth,
		"lost_demand_rate", sum.LostDemandRate,
		"elapsed", time.Since(started).String(),
	)
	return nil
}
