package game

import (
	"errors"
	"fmt"
	"math"
)

const (
	MicrosPerDollar = int64(1_000_000)

	MinLevel = 1
	MaxLevel = 10

	// Upper bounds a Config may ask for. Every rival is settled each turn.
	MaxCompetitors = 16
	MaxTurnLimit   = 1200

	// Quality and marketing factors are normalized around this level.
	BaselineLevel = 5.0

	SnapshotVersion = 1
)

var (
	ErrInvalidState    = errors.New("invalid firm state")
	ErrInvalidConfig   = errors.New("invalid config")
	ErrGameOver        = errors.New("game is over")
	ErrCommandMismatch = errors.New("one command per firm is required")
	ErrUnknownFirm     = errors.New("unknown firm")
)

// InvalidStateError describes a ledger that can not exist. It is a caller
// bug, never a game event.
type InvalidStateError struct {
	FirmID string
	Field  string
	Value  any
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("firm %s: %s=%v: %v", e.FirmID, e.Field, e.Value, ErrInvalidState)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

func DollarsToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerDollar)))
}

func MicrosToDollars(v int64) float64 {
	return float64(v) / float64(MicrosPerDollar)
}

// RoundCents is used wherever a money value is shown or compared by a person.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
