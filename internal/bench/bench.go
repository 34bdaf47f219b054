// Package bench plays whole games with the autopilot in the player seat and
// aggregates how they ended. It is used to tune Config values.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"tycoon/internal/game"
	"tycoon/internal/store"

	"golang.org/x/sync/errgroup"
)

type Options struct {
	Games    int
	BaseSeed int64
	Workers  int
	// Saves, when set, receives every finished game as "bench-<seed>".
	Saves store.Store
}

type Result struct {
	Seed              int64        `json:"seed"`
	Outcome           game.Outcome `json:"outcome"`
	Turns             int          `json:"turns"`
	PlayerNetWorth    float64      `json:"player_net_worth"`
	PlayerQuality     int          `json:"player_quality"`
	BestRival         string       `json:"best_rival"`
	BestRivalNetWorth float64      `json:"best_rival_net_worth"`
	Respawns          int          `json:"respawns"`
	TotalDemand       int          `json:"total_demand"`
	LostDemand        int          `json:"lost_demand"`
}

type Summary struct {
	Games          int      `json:"games"`
	Won            int      `json:"won"`
	Bankrupt       int      `json:"bankrupt"`
	TimeUp         int      `json:"time_up"`
	MeanTurns      float64  `json:"mean_turns"`
	MeanNetWorth   float64  `json:"mean_net_worth"`
	MedianNetWorth float64  `json:"median_net_worth"`
	Respawns       int      `json:"respawns"`
	LostDemandRate float64  `json:"lost_demand_rate"`
	Results        []Result `json:"results"`
}

func Run(ctx context.Context, cfg game.Config, opts Options, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Games <= 0 {
		return Summary{}, fmt.Errorf("games must be positive, got %d", opts.Games)
	}
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, opts.Games)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < opts.Games; i++ {
		i := i
		seed := opts.BaseSeed + int64(i)
		g.Go(func() error {
			res, snap, err := Play(gctx, cfg, seed, logger)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			if opts.Saves != nil {
				if err := opts.Saves.Save(gctx, fmt.Sprintf("bench-%d", seed), snap); err != nil {
					return fmt.Errorf("save seed %d: %w", seed, err)
				}
			}
			results[i] = res
			logger.Debug("bench game finished", "seed", seed, "outcome", res.Outcome, "turns", res.Turns)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return Summarize(results), nil
}

// Play runs one seeded game to its end.
func Play(ctx context.Context, cfg game.Config, seed int64, logger *slog.Logger) (Result, game.Snapshot, error) {
	g, err := game.New(cfg, game.WithSeed(seed), game.WithLogger(logger))
	if err != nil {
		return Result{}, game.Snapshot{}, err
	}
	res := Result{Seed: seed}
	for !g.Outcome().Over() {
		report, err := g.PlayTurn(ctx, g.Autopilot())
		if err != nil {
			return Result{}, game.Snapshot{}, err
		}
		res.Turns = report.Turn
		res.Respawns += len(report.Respawns)
		res.TotalDemand += report.Settlement.Market.TotalDemand
		res.LostDemand += report.Settlement.Market.LostDemand
	}

	player := g.Player()
	res.Outcome = g.Outcome()
	res.PlayerNetWorth = player.NetWorth()
	res.PlayerQuality = player.Quality
	for _, r := range g.Rivals() {
		if nw := r.NetWorth(); res.BestRival == "" || nw > res.BestRivalNetWorth {
			res.BestRival = r.Name
			res.BestRivalNetWorth = nw
		}
	}
	return res, g.Snapshot(), nil
}

func Summarize(results []Result) Summary {
	s := Summary{Games: len(results), Results: results}
	if len(results) == 0 {
		return s
	}
	worths := make([]float64, 0, len(results))
	var turns, demand, lost int
	var total float64
	for _, r := range results {
		switch r.Outcome {
		case game.OutcomeWon:
			s.Won++
		case game.OutcomeBankrupt:
			s.Bankrupt++
		case game.OutcomeTimeUp:
			s.TimeUp++
		}
		turns += r.Turns
		total += r.PlayerNetWorth
		demand += r.TotalDemand
		lost += r.LostDemand
		s.Respawns += r.Respawns
		worths = append(worths, r.PlayerNetWorth)
	}
	n := float64(len(results))
	s.MeanTurns = float64(turns) / n
	s.MeanNetWorth = total / n
	sort.Float64s(worths)
	mid := len(worths) / 2
	if len(worths)%2 == 1 {
		s.MedianNetWorth = worths[mid]
	} else {
		s.MedianNetWorth = (worths[mid-1] + worths[mid]) / 2
	}
	if demand > 0 {
		s.LostDemandRate = float64(lost) / float64(demand)
	}
	return s
}
