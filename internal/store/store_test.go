package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tycoon/internal/game"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playedSnapshot(t *testing.T, turns int) game.Snapshot {
	t.Helper()
	g, err := game.New(game.DefaultConfig(), game.WithSeed(77))
	require.NoError(t, err)
	for i := 0; i < turns && !g.Outcome().Over(); i++ {
		_, err := g.PlayTurn(context.Background(), g.Autopilot())
		require.NoError(t, err)
	}
	return g.Snapshot()
}

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "saves.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "  campaign one ", want: "campaign one"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: strings.Repeat("x", maxNameLen+1), wantErr: true},
		{in: "tab\there", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeName(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidName, "%q", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	snap := playedSnapshot(t, 6)

	require.NoError(t, s.Save(ctx, "alpha", snap))
	got, err := s.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	restored, err := game.Restore(got.Config, got)
	require.NoError(t, err)
	assert.Equal(t, snap.Turn, restored.Turn())
}

func TestSQLiteSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	first := playedSnapshot(t, 2)
	require.NoError(t, s.Save(ctx, "slot", first))
	clock = clock.Add(time.Minute)
	second := playedSnapshot(t, 5)
	require.NoError(t, s.Save(ctx, "slot", second))

	got, err := s.Load(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, second.Turn, got.Turn)

	saves, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, saves, 1)
	assert.Equal(t, second.Turn, saves[0].Turn)
	assert.Equal(t, clock, saves[0].SavedAt)

	standings, err := s.Standings(ctx, "slot")
	require.NoError(t, err)
	assert.Len(t, standings, 1+len(second.Rivals))
}

func TestSQLiteListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	snap := playedSnapshot(t, 1)
	for _, name := range []string{"old", "mid", "new"} {
		require.NoError(t, s.Save(ctx, name, snap))
		clock = clock.Add(time.Hour)
	}

	saves, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, saves, 3)
	assert.Equal(t, "new", saves[0].Name)
	assert.Equal(t, "old", saves[2].Name)
	assert.Equal(t, game.PlayerName, saves[0].PlayerName)
	assert.Equal(t, game.DollarsToMicros(snap.Player.Cash), saves[0].CashMicros)
	assert.Equal(t, snap.Config.MaxTurns, saves[0].MaxTurns)
}

func TestSQLiteStandingsUseMicros(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	snap := playedSnapshot(t, 0)
	snap.Player.Cash = 1234.56
	snap.Rivals[0].Cash = 99_999

	require.NoError(t, s.Save(ctx, "micros", snap))
	standings, err := s.Standings(ctx, "micros")
	require.NoError(t, err)
	require.Len(t, standings, 1+len(snap.Rivals))

	assert.Equal(t, snap.Rivals[0].ID, standings[0].FirmID, "ordered by net worth")
	assert.True(t, standings[0].AI)
	var player Standing
	for _, st := range standings {
		if st.Slot == 0 {
			player = st
		}
	}
	assert.Equal(t, int64(1_234_560_000), player.CashMicros)
	assert.False(t, player.AI)
}

func TestSQLiteMissingSave(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	_, err := s.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrSaveNotFound)
	_, err = s.Standings(ctx, "nope")
	assert.ErrorIs(t, err, ErrSaveNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "nope"), ErrSaveNotFound)
	assert.ErrorIs(t, s.Save(ctx, " ", game.Snapshot{}), ErrInvalidName)
}

func TestSQLiteDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	require.NoError(t, s.Save(ctx, "gone", playedSnapshot(t, 1)))
	require.NoError(t, s.Delete(ctx, "gone"))

	_, err := s.Load(ctx, "gone")
	assert.ErrorIs(t, err, ErrSaveNotFound)
	saves, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, saves)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "saves.db")
	snap := playedSnapshot(t, 3)

	s, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "keep", snap))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestPostgresRoundTrip(t *testing.T) {
	url := os.Getenv("TYCOON_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TYCOON_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, url, nil)
	require.NoError(t, err)
	defer s.Close()

	name := "test-" + uuid.NewString()[:8]
	snap := playedSnapshot(t, 4)
	require.NoError(t, s.Save(ctx, name, snap))
	t.Cleanup(func() { _ = s.Delete(context.Background(), name) })

	got, err := s.Load(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	standings, err := s.Standings(ctx, name)
	require.NoError(t, err)
	assert.Len(t, standings, 1+len(snap.Rivals))

	saves, err := s.List(ctx)
	require.NoError(t, err)
	found := false
	for _, info := range saves {
		if info.Name == name {
			found = true
			assert.Equal(t, snap.Turn, info.Turn)
		}
	}
	assert.True(t, found)
}
