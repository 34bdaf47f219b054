package game

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame(t *testing.T, cfg Config, opts ...Option) *Game {
	t.Helper()
	g, err := New(cfg, append([]Option{WithSeed(1234)}, opts...)...)
	require.NoError(t, err)
	return g
}

func TestNewGame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumCompetitors = 3
	g := newTestGame(t, cfg)

	assert.Equal(t, 1, g.Turn())
	assert.Equal(t, OutcomeInProgress, g.Outcome())
	assert.Equal(t, PlayerName, g.Player().Name)
	rivals := g.Rivals()
	require.Len(t, rivals, 3)
	for i, r := range rivals {
		assert.True(t, r.AI)
		assert.Equal(t, []string{"Competitor Mk1", "Competitor Mk2", "Competitor Mk3"}[i], r.Name)
		assert.GreaterOrEqual(t, r.Difficulty, 0.1)
		assert.LessOrEqual(t, r.Difficulty, 1.0)
	}
	assert.Equal(t, 1, g.Conditions().Turn)
}

func TestNewGameRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTurns = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGameIsDeterministicForASeed(t *testing.T) {
	cfg := DefaultConfig()
	a := newTestGame(t, cfg)
	b := newTestGame(t, cfg)

	for i := 0; i < 24 && !a.Outcome().Over(); i++ {
		ra, err := a.PlayTurn(context.Background(), a.Autopilot())
		require.NoError(t, err)
		rb, err := b.PlayTurn(context.Background(), b.Autopilot())
		require.NoError(t, err)

		assert.Equal(t, ra.Conditions, rb.Conditions)
		assert.Equal(t, ra.Settlement.Market.TotalDemand, rb.Settlement.Market.TotalDemand)
		for j := range ra.Settlement.Statements {
			assert.Equal(t, ra.Settlement.Statements[j].NetIncome, rb.Settlement.Statements[j].NetIncome)
		}
	}
	assert.Equal(t, a.Player().Cash, b.Player().Cash)
}

func TestGameTimeLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTurns = 2
	g := newTestGame(t, cfg)

	r, err := g.PlayTurn(context.Background(), Decision{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInProgress, r.Outcome)
	assert.Equal(t, 2, r.Next.Turn)

	r, err = g.PlayTurn(context.Background(), Decision{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeUp, r.Outcome)

	_, err = g.PlayTurn(context.Background(), Decision{})
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestGameWinsAtTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetNetWorth = cfg.InitialMoney / 2
	g := newTestGame(t, cfg)

	r, err := g.PlayTurn(context.Background(), Decision{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWon, r.Outcome)
	assert.Equal(t, OutcomeWon, g.Outcome())
}

func TestGamePlayerBankruptcyEndsGame(t *testing.T) {
	cfg := DefaultConfig()
	snap := newTestGame(t, cfg).Snapshot()
	snap.Player.Cash = 100
	snap.Player.Workers = 10
	snap.Player.LoanBalance = 5000

	g, err := Restore(cfg, snap)
	require.NoError(t, err)
	r, err := g.PlayTurn(context.Background(), Decision{})
	require.NoError(t, err)
	assert.True(t, r.PlayerStatement().Bankrupt)
	assert.Equal(t, OutcomeBankrupt, g.Outcome())
}

func TestGameReplacesBankruptRivalBeforeNextIntake(t *testing.T) {
	cfg := DefaultConfig()
	var seen [][]Firm
	recorder := StrategyFunc(func(in StrategyInput) Decision {
		if len(seen) < in.Market.Turn {
			seen = append(seen, nil)
		}
		seen[in.Market.Turn-1] = append(seen[in.Market.Turn-1], in.Firm)
		return Decision{}
	})

	snap := newTestGame(t, cfg).Snapshot()
	snap.Rivals[0].Cash = -50
	snap.Rivals[0].LoanBalance = 150
	doomed := snap.Rivals[0].ID

	g, err := Restore(cfg, snap, WithStrategy(recorder))
	require.NoError(t, err)

	r, err := g.PlayTurn(context.Background(), Decision{})
	require.NoError(t, err)
	st, ok := r.Settlement.Statement(doomed)
	require.True(t, ok)
	assert.True(t, st.Bankrupt)
	assert.Less(t, st.EndingCash, 0.0)
	assert.Less(t, st.EndingNetWorth, 0.0)

	require.Len(t, r.Respawns, 1)
	assert.Equal(t, 0, r.Respawns[0].Slot)
	assert.Equal(t, doomed, r.Respawns[0].OldID)
	assert.Equal(t, "Competitor Mk3", r.Respawns[0].NewName)
	assert.Equal(t, OutcomeInProgress, g.Outcome())

	fresh := g.Rivals()[0]
	assert.Equal(t, cfg.InitialMoney, fresh.Cash)
	assert.Zero(t, fresh.LoanBalance)
	assert.Equal(t, cfg.InitialQuality, fresh.Quality)
	assert.Equal(t, cfg.InitialWorkers, fresh.Workers)
	assert.False(t, fresh.Bankrupt)

	_, err = g.PlayTurn(context.Background(), Decision{})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, "Competitor Mk3", seen[1][0].Name, "the next intake already sees the replacement")
	assert.Equal(t, fresh.ID, seen[1][0].ID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	g := newTestGame(t, cfg)
	for i := 0; i < 5; i++ {
		_, err := g.PlayTurn(context.Background(), g.Autopilot())
		require.NoError(t, err)
	}

	raw, err := json.Marshal(g.Snapshot())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	restored, err := Restore(snap.Config, snap)
	require.NoError(t, err)
	assert.Equal(t, g.Snapshot(), restored.Snapshot())

	for i := 0; i < 5; i++ {
		want, err := g.PlayTurn(context.Background(), g.Autopilot())
		require.NoError(t, err)
		got, err := restored.PlayTurn(context.Background(), restored.Autopilot())
		require.NoError(t, err)
		assert.Equal(t, want.Conditions, got.Conditions)
		assert.Equal(t, want.Commands, got.Commands)
		assert.Equal(t, want.Settlement, got.Settlement)
		assert.Equal(t, want.Respawns, got.Respawns)
		if want.Outcome.Over() {
			break
		}
	}
}

func TestFirmIDsFollowTheSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumCompetitors = 3
	a := newTestGame(t, cfg)
	b := newTestGame(t, cfg)
	other, err := New(cfg, WithSeed(99))
	require.NoError(t, err)

	assert.Equal(t, a.Player().ID, b.Player().ID)
	assert.NotEqual(t, a.Player().ID, other.Player().ID)
	ids := map[string]bool{a.Player().ID: true}
	for i, r := range a.Rivals() {
		assert.Equal(t, r.ID, b.Rivals()[i].ID)
		ids[r.ID] = true
	}
	assert.Len(t, ids, 4, "ids are distinct within a game")

	// Push the same rival under in both games; the replacements must match.
	for _, g := range []*Game{a, b} {
		g.rivals[1].Cash = -1e6
		g.rivals[1].LoanBalance = 1e6
	}
	ra, err := a.PlayTurn(context.Background(), a.Autopilot())
	require.NoError(t, err)
	rb, err := b.PlayTurn(context.Background(), b.Autopilot())
	require.NoError(t, err)
	require.Len(t, ra.Respawns, 1)
	assert.Equal(t, ra.Respawns, rb.Respawns)
	assert.NotContains(t, ids, ra.Respawns[0].NewID)
	assert.Equal(t, a.Rivals()[1].ID, b.Rivals()[1].ID)
}

func TestSnapshotRoundTripThroughRespawn(t *testing.T) {
	cfg := DefaultConfig()
	g := newTestGame(t, cfg)
	snap := g.Snapshot()
	snap.Rivals[0].Cash = -1e6
	snap.Rivals[0].LoanBalance = 1e6

	a, err := Restore(cfg, snap)
	require.NoError(t, err)
	b, err := Restore(cfg, snap)
	require.NoError(t, err)

	ra, err := a.PlayTurn(context.Background(), a.Autopilot())
	require.NoError(t, err)
	rb, err := b.PlayTurn(context.Background(), b.Autopilot())
	require.NoError(t, err)
	require.Len(t, ra.Respawns, 1)
	assert.Equal(t, ra.Respawns, rb.Respawns)

	for i := 0; i < 3 && !a.Outcome().Over(); i++ {
		wa, err := a.PlayTurn(context.Background(), a.Autopilot())
		require.NoError(t, err)
		wb, err := b.PlayTurn(context.Background(), b.Autopilot())
		require.NoError(t, err)
		assert.Equal(t, wa.Settlement, wb.Settlement)
	}
	assert.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	cfg := DefaultConfig()
	snap := newTestGame(t, cfg).Snapshot()

	bad := snap
	bad.Version = 99
	_, err := Restore(cfg, bad)
	assert.ErrorIs(t, err, ErrInvalidState)

	bad = snap
	bad.Rivals = append([]Firm(nil), snap.Rivals...)
	bad.Rivals[1].Workers = -2
	_, err = Restore(cfg, bad)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPlayTurnHonoursContext(t *testing.T) {
	g := newTestGame(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.PlayTurn(ctx, Decision{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, g.Turn())
}

func TestViewHidesRivalBooks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EventProbability = 0
	g := newTestGame(t, cfg)
	v := g.View()

	assert.Equal(t, DollarsToMicros(10_000), v.Player.CashMicros)
	assert.Equal(t, DollarsToMicros(20_000), v.Player.MaxLoanMicros)
	assert.Equal(t, DollarsToMicros(400), v.Player.NextMarketingCostMicros)
	require.Len(t, v.Rivals, 2)
	raw, err := json.Marshal(v.Rivals[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "cash")
	assert.NotContains(t, string(raw), "loan")
}
