package syncq

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tycoon/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueLifecycle(t *testing.T) {
	dir := t.TempDir()

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, got)

	d := &game.Decision{Produce: 40, Price: 19.5}
	require.NoError(t, Push(dir, Command{GameID: "g1", Decision: d, IdempotencyKey: "k1", QueuedAt: time.Unix(100, 0).UTC()}))
	require.NoError(t, Push(dir, Command{GameID: "g2", IdempotencyKey: "k2"}))

	cmd, ok, err := Pending(dir, "g1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k1", cmd.IdempotencyKey)
	assert.Equal(t, d, cmd.Decision)

	cmd, ok, err = Pending(dir, "g2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, cmd.Decision, "autopilot turns carry no decision")

	require.NoError(t, Ack(dir, "k1"))
	_, ok, err = Pending(dir, "g1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Ack(dir, "k2"))
	_, err = os.Stat(filepath.Join(dir, "pending.json"))
	assert.True(t, os.IsNotExist(err), "empty queue removes its file")
}

func TestPushReplacesSameGame(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Push(dir, Command{GameID: "g1", IdempotencyKey: "old"}))
	require.NoError(t, Push(dir, Command{GameID: "g1", IdempotencyKey: "new"}))

	all, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "new", all[0].IdempotencyKey)
}

func TestAckUnknownKeyIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Ack(dir, "missing"))
	require.NoError(t, Push(dir, Command{GameID: "g1", IdempotencyKey: "k1"}))
	require.NoError(t, Ack(dir, "missing"))
	all, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pending.json"), []byte("{not json"), 0o600))
	_, err := Load(dir)
	assert.Error(t, err)
}
