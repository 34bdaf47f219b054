package game

import (
	"fmt"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

const (
	MinTrend = 0.5
	MaxTrend = 1.5

	trendStep      = 0.05
	trendFrequency = 0.35
	turnMix        = int64(0x2545F4914F6CDD1D)
	streamMix      = int64(0x369DEA0F31A53F85)
)

type EventKind string

const (
	EventNone         EventKind = ""
	EventRecession    EventKind = "recession"
	EventSupplyShock  EventKind = "supply_shock"
	EventWageHike     EventKind = "wage_hike"
	EventBoom         EventKind = "boom"
	EventPositivePR   EventKind = "positive_pr"
	EventTechWindfall EventKind = "tech_windfall"
)

// MarketEvent is the random event rolled at a turn boundary. Factor scales
// the trend, unit costs or wages depending on Kind.
type MarketEvent struct {
	Kind   EventKind `json:"kind,omitempty"`
	Factor float64   `json:"factor,omitempty"`
	Levels int       `json:"levels,omitempty"`
	Points int       `json:"points,omitempty"`
}

func (e MarketEvent) String() string {
	switch e.Kind {
	case EventRecession:
		return "Economic downturn!"
	case EventBoom:
		return "Economic boom!"
	case EventSupplyShock:
		return fmt.Sprintf("Supply chain disruption! Production costs up %.1f%%.", (e.Factor-1)*100)
	case EventWageHike:
		return fmt.Sprintf("Wage hike! Salaries up %.1f%%.", (e.Factor-1)*100)
	case EventPositivePR:
		return fmt.Sprintf("Positive PR! Marketing up %d level(s).", e.Levels)
	case EventTechWindfall:
		return fmt.Sprintf("Tech breakthrough! (+%d R&D points).", e.Points)
	}
	return "No significant market events."
}

// Conditions is the market climate for one turn.
type Conditions struct {
	Turn      int         `json:"turn"`
	Trend     float64     `json:"trend"`
	Noise     float64     `json:"noise"`
	WageIndex float64     `json:"wage_index"`
	Event     MarketEvent `json:"event"`
}

// Multiplier is the scalar handed to the resolver.
func (c Conditions) Multiplier() float64 {
	return c.Trend * c.Noise
}

func InitialConditions() Conditions {
	return Conditions{Trend: 1, Noise: 1, WageIndex: 1}
}

// Climate derives every turn's conditions from the seed and the turn number
// alone, so a game restored from a snapshot rolls the same future.
type Climate struct {
	cfg   Config
	seed  int64
	noise opensimplex.Noise
}

func NewClimate(cfg Config, seed int64) *Climate {
	return &Climate{
		cfg:   cfg,
		seed:  seed,
		noise: opensimplex.New(seed),
	}
}

func (c *Climate) Seed() int64 {
	return c.seed
}

// RNG returns the random source for one turn and stream. Stream 0 belongs
// to the climate itself.
func (c *Climate) RNG(turn, stream int) *rand.Rand {
	src := c.seed ^ (int64(turn) * turnMix) ^ (int64(stream) * streamMix)
	return rand.New(rand.NewSource(src))
}

// Roll moves the climate from prev into the given turn.
func (c *Climate) Roll(prev Conditions, turn int) Conditions {
	rng := c.RNG(turn, 0)
	next := Conditions{
		Turn:      turn,
		Trend:     prev.Trend,
		WageIndex: prev.WageIndex,
	}
	if next.Trend <= 0 {
		next.Trend = 1
	}
	if next.WageIndex <= 0 {
		next.WageIndex = 1
	}

	drift := c.noise.Eval2(float64(turn)*trendFrequency, 0) * trendStep
	next.Trend = clampFloat(next.Trend+drift, MinTrend, MaxTrend)
	next.Noise = uniform(rng, 0.9, 1.1)

	roll := rng.Float64()
	half := c.cfg.EventProbability / 2
	switch {
	case roll < half:
		switch rng.Intn(3) {
		case 0:
			if next.Trend > 0.7 {
				next.Event = MarketEvent{Kind: EventRecession, Factor: uniform(rng, 0.7, 0.9)}
			}
		case 1:
			next.Event = MarketEvent{Kind: EventSupplyShock, Factor: uniform(rng, 1.05, 1.20)}
		case 2:
			next.Event = MarketEvent{Kind: EventWageHike, Factor: uniform(rng, 1.10, 1.25)}
		}
	case roll >= 1-half:
		switch rng.Intn(3) {
		case 0:
			if next.Trend < 1.3 {
				next.Event = MarketEvent{Kind: EventBoom, Factor: uniform(rng, 1.1, 1.3)}
			}
		case 1:
			next.Event = MarketEvent{Kind: EventPositivePR, Levels: 1 + rng.Intn(2)}
		case 2:
			next.Event = MarketEvent{Kind: EventTechWindfall, Points: 30 + rng.Intn(31)}
		}
	}

	switch next.Event.Kind {
	case EventRecession, EventBoom:
		next.Trend = clampFloat(next.Trend*next.Event.Factor, MinTrend, MaxTrend)
	case EventWageHike:
		next.WageIndex *= next.Event.Factor
	}
	return next
}

// ApplyEvent carries the firm-level effect of an event. The player is the
// only firm that benefits from positive PR.
func ApplyEvent(ev MarketEvent, player *Firm, firms []*Firm) {
	switch ev.Kind {
	case EventSupplyShock:
		for _, f := range firms {
			if !f.Bankrupt {
				f.UnitCost *= ev.Factor
			}
		}
	case EventPositivePR:
		if player != nil && !player.Bankrupt {
			player.Marketing = min(MaxLevel, player.Marketing+ev.Levels)
		}
	case EventTechWindfall:
		for _, f := range firms {
			if !f.Bankrupt {
				f.RndPoints += ev.Points
			}
		}
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
