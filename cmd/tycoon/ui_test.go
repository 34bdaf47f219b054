package main

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"tycoon/internal/game"
	"tycoon/internal/store"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withConsole feeds input to the prompts and captures what they print.
func withConsole(t *testing.T, input string) *bytes.Buffer {
	t.Helper()
	oldIn, oldOut, oldColor := stdinReader, stdout, color.NoColor
	var out bytes.Buffer
	stdinReader = bufio.NewReader(strings.NewReader(input))
	stdout = &out
	color.NoColor = true
	t.Cleanup(func() {
		stdinReader, stdout, color.NoColor = oldIn, oldOut, oldColor
	})
	return &out
}

func TestFormatDollars(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{1234.5, "$1,234.50"},
		{-250, "-$250.00"},
		{1_000_000, "$1,000,000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDollars(tt.in))
	}
	assert.Equal(t, "$12.34", formatMicros(12_340_000))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("  short  ", 10))
	assert.Equal(t, "Acme In...", truncate("Acme Industries", 10))
	assert.Equal(t, "Ac", truncate("Acme", 2))
	assert.Equal(t, "Acme", truncate("Acme", 0))
}

func TestPromptChoiceAcceptsInitials(t *testing.T) {
	out := withConsole(t, "x\nA\n")
	got, err := promptChoice("Action", []string{"turn", "auto", "save", "quit"}, "turn")
	require.NoError(t, err)
	assert.Equal(t, "auto", got)
	assert.Contains(t, out.String(), "Invalid option")

	withConsole(t, "\n")
	got, err = promptChoice("Action", []string{"turn", "quit"}, "turn")
	require.NoError(t, err)
	assert.Equal(t, "turn", got)
}

func TestPromptMoneyRetriesBadInput(t *testing.T) {
	out := withConsole(t, "-4\nabc\n$1,250.75\n")
	v, err := promptMoney("Price", 10)
	require.NoError(t, err)
	assert.Equal(t, 1250.75, v)
	assert.Equal(t, 2, strings.Count(out.String(), "Enter an amount"))
}

func TestPromptDecision(t *testing.T) {
	dash := game.Dashboard{Player: game.FirmView{
		Workers:       2,
		ProdPerWorker: 10,
		PriceMicros:   20_000_000,
		MaxLoanMicros: 5_000_000_000,
	}}
	input := strings.Join([]string{
		"3",     // hire
		"1",     // fire
		"",      // produce, defaults to capacity
		"$25",   // price
		"",      // marketing
		"100",   // r&d
		"c",     // breakthrough
		"1,000", // loan draw
	}, "\n") + "\n"
	out := withConsole(t, input)

	d, err := promptDecision(dash)
	require.NoError(t, err)
	assert.Equal(t, game.Decision{
		Hire:         3,
		Fire:         1,
		Produce:      40,
		Price:        25,
		RndSpend:     100,
		Breakthrough: game.BreakthroughCost,
		LoanDraw:     1000,
	}, d)
	assert.Contains(t, out.String(), "capacity now 40")
	assert.NotContains(t, out.String(), "Loan repayment")
}

func TestPromptDecisionStopsOnClosedInput(t *testing.T) {
	withConsole(t, "")
	_, err := promptDecision(game.Dashboard{})
	assert.Error(t, err)
}

func testDriver(t *testing.T) (*localDriver, string) {
	t.Helper()
	cfg := game.DefaultConfig()
	cfg.MaxTurns = 6
	g, err := game.New(cfg, game.WithSeed(42))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "saves.db")
	return &localDriver{g: g, saves: func(ctx context.Context) (store.Store, error) {
		return store.OpenSQLite(ctx, path, nil)
	}}, path
}

func TestPlayLoopAutopilotStopsAfterTurns(t *testing.T) {
	out := withConsole(t, "")
	drv, _ := testDriver(t)

	require.NoError(t, playLoop(context.Background(), drv, loopOptions{autopilot: true, quiet: true, maxTurns: 3}))
	assert.Equal(t, 4, drv.g.Turn(), "three turns played, the fourth is next")
	assert.Equal(t, 3, strings.Count(out.String(), "turn "))
	assert.Contains(t, out.String(), "Stopped after 3 turns.")
}

func TestPlayLoopRunsToTheEnd(t *testing.T) {
	withConsole(t, "")
	drv, _ := testDriver(t)

	require.NoError(t, playLoop(context.Background(), drv, loopOptions{autopilot: true, quiet: true}))
	assert.True(t, drv.g.Outcome().Over())
}

func TestPlayLoopInteractiveSaveAndQuit(t *testing.T) {
	out := withConsole(t, "a\ns\nq\n")
	drv, path := testDriver(t)
	ctx := context.Background()

	require.NoError(t, playLoop(ctx, drv, loopOptions{saveAs: "lunch break"}))
	assert.Contains(t, out.String(), `Saved as "lunch break".`)

	saves, err := store.OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer saves.Close()
	snap, err := saves.Load(ctx, "lunch break")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Turn)
}
