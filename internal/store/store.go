// Package store persists game snapshots under a save name.
//
// The snapshot is kept as JSON so a restored game continues bit-for-bit; the
// firm rows beside it carry money as integer micros for listings and reports.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tycoon/internal/game"
)

var (
	ErrSaveNotFound = errors.New("save not found")
	ErrInvalidName  = errors.New("invalid save name")
)

const maxNameLen = 64

// Store is implemented by SQLite and Postgres.
type Store interface {
	Save(ctx context.Context, name string, snap game.Snapshot) error
	Load(ctx context.Context, name string) (game.Snapshot, error)
	List(ctx context.Context) ([]SaveInfo, error)
	Standings(ctx context.Context, name string) ([]Standing, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

type SaveInfo struct {
	Name           string       `json:"name" db:"name"`
	Turn           int          `json:"turn" db:"turn"`
	MaxTurns       int          `json:"max_turns" db:"max_turns"`
	Outcome        game.Outcome `json:"outcome" db:"outcome"`
	PlayerName     string       `json:"player_name" db:"player_name"`
	CashMicros     int64        `json:"cash_micros" db:"cash_micros"`
	NetWorthMicros int64        `json:"net_worth_micros" db:"net_worth_micros"`
	SavedAt        time.Time    `json:"saved_at" db:"saved_at"`
}

// Standing is one firm's persisted position in a save.
type Standing struct {
	Slot           int    `json:"slot" db:"slot"`
	FirmID         string `json:"firm_id" db:"firm_id"`
	Name           string `json:"name" db:"name"`
	AI             bool   `json:"ai" db:"ai"`
	CashMicros     int64  `json:"cash_micros" db:"cash_micros"`
	LoanMicros     int64  `json:"loan_micros" db:"loan_micros"`
	NetWorthMicros int64  `json:"net_worth_micros" db:"net_worth_micros"`
	PriceMicros    int64  `json:"price_micros" db:"price_micros"`
	Quality        int    `json:"quality" db:"quality"`
	Marketing      int    `json:"marketing" db:"marketing"`
	Workers        int    `json:"workers" db:"workers"`
	LastUnitsSold  int    `json:"last_units_sold" db:"last_units_sold"`
}

func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return "", fmt.Errorf("%w: must be 1-%d characters", ErrInvalidName, maxNameLen)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("%w: control characters are not allowed", ErrInvalidName)
		}
	}
	return name, nil
}

type record struct {
	info      SaveInfo
	state     []byte
	standings []Standing
}

func newRecord(name string, snap game.Snapshot, now time.Time) (record, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return record{}, fmt.Errorf("encode snapshot: %w", err)
	}
	rec := record{
		info: SaveInfo{
			Name:           name,
			Turn:           snap.Turn,
			MaxTurns:       snap.Config.MaxTurns,
			Outcome:        snap.Outcome,
			PlayerName:     snap.Player.Name,
			CashMicros:     game.DollarsToMicros(snap.Player.Cash),
			NetWorthMicros: game.DollarsToMicros(snap.Player.NetWorth()),
			SavedAt:        now.UTC(),
		},
		state: raw,
	}
	rec.standings = append(rec.standings, standingOf(0, snap.Player))
	for i, r := range snap.Rivals {
		rec.standings = append(rec.standings, standingOf(i+1, r))
	}
	return rec, nil
}

func standingOf(slot int, f game.Firm) Standing {
	return Standing{
		Slot:           slot,
		FirmID:         f.ID,
		Name:           f.Name,
		AI:             f.AI,
		CashMicros:     game.DollarsToMicros(f.Cash),
		LoanMicros:     game.DollarsToMicros(f.LoanBalance),
		NetWorthMicros: game.DollarsToMicros(f.NetWorth()),
		PriceMicros:    game.DollarsToMicros(f.Price),
		Quality:        f.Quality,
		Marketing:      f.Marketing,
		Workers:        f.Workers,
		LastUnitsSold:  f.LastUnitsSold,
	}
}

func decodeState(name string, raw []byte) (game.Snapshot, error) {
	var snap game.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode save %q: %w", name, err)
	}
	return snap, nil
}

// Open picks Postgres when databaseURL is set and falls back to the SQLite file.
func Open(ctx context.Context, databaseURL, sqlitePath string, logger *slog.Logger) (Store, error) {
	if databaseURL != "" {
		return OpenPostgres(ctx, databaseURL, logger)
	}
	return OpenSQLite(ctx, sqlitePath, logger)
}
