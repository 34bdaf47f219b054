package bench

import (
	"context"
	"path/filepath"
	"testing"

	"tycoon/internal/game"
	"tycoon/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortConfig() game.Config {
	cfg := game.DefaultConfig()
	cfg.MaxTurns = 8
	return cfg
}

func TestPlayFinishesTheGame(t *testing.T) {
	res, snap, err := Play(context.Background(), shortConfig(), 3, nil)
	require.NoError(t, err)
	assert.True(t, res.Outcome.Over())
	assert.LessOrEqual(t, res.Turns, 8)
	assert.Equal(t, res.Outcome, snap.Outcome)
	assert.NotEmpty(t, res.BestRival)
	assert.LessOrEqual(t, res.LostDemand, res.TotalDemand)
}

func TestPlayIsDeterministic(t *testing.T) {
	a, _, err := Play(context.Background(), shortConfig(), 9, nil)
	require.NoError(t, err)
	b, _, err := Play(context.Background(), shortConfig(), 9, nil)
	require.NoError(t, err)
	a.BestRival, b.BestRival = "", ""
	assert.Equal(t, a, b)
}

func TestRunAggregates(t *testing.T) {
	sum, err := Run(context.Background(), shortConfig(), Options{Games: 5, BaseSeed: 100, Workers: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Games)
	assert.Equal(t, 5, sum.Won+sum.Bankrupt+sum.TimeUp)
	require.Len(t, sum.Results, 5)
	for i, r := range sum.Results {
		assert.Equal(t, int64(100+i), r.Seed, "results keep seed order")
	}
	assert.Greater(t, sum.MeanTurns, 0.0)
}

func TestRunSavesGames(t *testing.T) {
	ctx := context.Background()
	saves, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "bench.db"), nil)
	require.NoError(t, err)
	defer saves.Close()

	_, err = Run(ctx, shortConfig(), Options{Games: 2, BaseSeed: 7, Workers: 1, Saves: saves}, nil)
	require.NoError(t, err)
	list, err := saves.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	snap, err := saves.Load(ctx, "bench-8")
	require.NoError(t, err)
	assert.True(t, snap.Outcome.Over())
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := Run(context.Background(), shortConfig(), Options{}, nil)
	assert.Error(t, err)

	cfg := shortConfig()
	cfg.BaseDemand = -1
	_, err = Run(context.Background(), cfg, Options{Games: 1}, nil)
	assert.ErrorIs(t, err, game.ErrInvalidConfig)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, shortConfig(), Options{Games: 3}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	sum := Summarize([]Result{
		{Outcome: game.OutcomeWon, Turns: 10, PlayerNetWorth: 30_000, TotalDemand: 100, LostDemand: 10},
		{Outcome: game.OutcomeBankrupt, Turns: 4, PlayerNetWorth: -500, Respawns: 1, TotalDemand: 100},
		{Outcome: game.OutcomeTimeUp, Turns: 16, PlayerNetWorth: 12_000, Respawns: 2},
		{Outcome: game.OutcomeTimeUp, Turns: 16, PlayerNetWorth: 14_000},
	})
	assert.Equal(t, 4, sum.Games)
	assert.Equal(t, 1, sum.Won)
	assert.Equal(t, 1, sum.Bankrupt)
	assert.Equal(t, 2, sum.TimeUp)
	assert.Equal(t, 11.5, sum.MeanTurns)
	assert.Equal(t, 13_000.0, sum.MedianNetWorth)
	assert.Equal(t, 3, sum.Respawns)
	assert.InDelta(t, 0.05, sum.LostDemandRate, 1e-12)

	assert.Zero(t, Summarize(nil).MeanTurns)
}
