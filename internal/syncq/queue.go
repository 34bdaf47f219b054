// Package syncq journals remote turns that were sent but never acknowledged,
// so they can be replayed with the same idempotency key.
package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"tycoon/internal/game"
)

type Command struct {
	GameID string `json:"game_id"`
	// Decision is nil for an autopilot turn.
	Decision       *game.Decision `json:"decision,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	QueuedAt       time.Time      `json:"queued_at"`
}

func queuePath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "pending.json"), nil
}

func Load(dir string) ([]Command, error) {
	path, err := queuePath(dir)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(dir string, commands []Command) error {
	path, err := queuePath(dir)
	if err != nil {
		return err
	}
	if len(commands) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// Push records cmd, replacing any earlier entry for the same game. A game
// has at most one turn in flight.
func Push(dir string, cmd Command) error {
	commands, err := Load(dir)
	if err != nil {
		return err
	}
	kept := commands[:0]
	for _, c := range commands {
		if c.GameID != cmd.GameID {
			kept = append(kept, c)
		}
	}
	return Save(dir, append(kept, cmd))
}

// Pending returns the unacknowledged turn of a game, if any.
func Pending(dir, gameID string) (Command, bool, error) {
	commands, err := Load(dir)
	if err != nil {
		return Command{}, false, err
	}
	for _, c := range commands {
		if c.GameID == gameID {
			return c, true, nil
		}
	}
	return Command{}, false, nil
}

// Ack drops the entry carrying key.
func Ack(dir, key string) error {
	commands, err := Load(dir)
	if err != nil {
		return err
	}
	kept := commands[:0]
	for _, c := range commands {
		if c.IdempotencyKey != key {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(commands) {
		return nil
	}
	return Save(dir, kept)
}
