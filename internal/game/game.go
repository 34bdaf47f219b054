package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeInProgress Outcome = "in_progress"
	OutcomeWon        Outcome = "won"
	OutcomeBankrupt   Outcome = "bankrupt"
	OutcomeTimeUp     Outcome = "time_up"
)

func (o Outcome) Over() bool {
	return o != OutcomeInProgress && o != ""
}

const (
	PlayerName = "Player Inc."

	autopilotStream = 1 << 10
	idStream        = 1 << 11
)

var initialDifficulties = []float64{0.5, 0.7}

type Option func(*Game)

func WithSeed(seed int64) Option {
	return func(g *Game) { g.seed = seed }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Game) {
		if logger != nil {
			g.log = logger
		}
	}
}

// WithStrategy replaces the policy used by every AI firm and by Autopilot.
func WithStrategy(s Strategy) Option {
	return func(g *Game) {
		if s != nil {
			g.strategy = s
		}
	}
}

func WithPlayerName(name string) Option {
	return func(g *Game) {
		if name != "" {
			g.playerName = name
		}
	}
}

// Respawn records an AI firm that went bankrupt and the firm that took its
// slot.
type Respawn struct {
	Slot    int    `json:"slot"`
	OldID   string `json:"old_id"`
	OldName string `json:"old_name"`
	NewID   string `json:"new_id"`
	NewName string `json:"new_name"`
}

type TurnReport struct {
	Turn       int        `json:"turn"`
	Conditions Conditions `json:"conditions"`
	Commands   []Command  `json:"commands"`
	Settlement Settlement `json:"settlement"`
	Respawns   []Respawn  `json:"respawns,omitempty"`
	Outcome    Outcome    `json:"outcome"`
	Next       Conditions `json:"next"`
}

func (r TurnReport) PlayerStatement() Statement {
	if len(r.Settlement.Statements) == 0 {
		return Statement{}
	}
	return r.Settlement.Statements[0]
}

// Game runs one player against a fixed number of AI slots.
type Game struct {
	cfg        Config
	log        *slog.Logger
	engine     *Engine
	climate    *Climate
	strategy   Strategy
	seed       int64
	playerName string

	turn         int
	cond         Conditions
	lastMarket   Resolution
	spawnCounter int
	outcome      Outcome

	player *Firm
	rivals []*Firm
}

func New(cfg Config, opts ...Option) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := newGame(cfg, opts...)
	g.player = NewFirm(cfg, g.playerName, false, 0)
	g.player.ID = g.firmID(0)

	rng := g.climate.RNG(0, 1)
	for i := 0; i < cfg.NumCompetitors; i++ {
		difficulty := initialDifficulties[i%len(initialDifficulties)] + uniform(rng, -0.05, 0.05)
		g.rivals = append(g.rivals, g.spawnRival(clampFloat(difficulty, 0.1, 1.0)))
	}

	g.turn = 1
	g.outcome = OutcomeInProgress
	g.advanceClimate(InitialConditions())
	g.log.Info("game started",
		"seed", g.seed,
		"competitors", len(g.rivals),
		"target_net_worth", cfg.TargetNetWorth,
		"max_turns", cfg.MaxTurns,
	)
	return g, nil
}

func newGame(cfg Config, opts ...Option) *Game {
	g := &Game{
		cfg:        cfg,
		log:        slog.Default(),
		strategy:   AdaptiveStrategy{},
		seed:       time.Now().UnixNano(),
		playerName: PlayerName,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.engine = NewEngine(cfg, g.log)
	g.climate = NewClimate(cfg, g.seed)
	return g
}

func (g *Game) spawnRival(difficulty float64) *Firm {
	g.spawnCounter++
	f := NewFirm(g.cfg, fmt.Sprintf("Competitor Mk%d", g.spawnCounter), true, difficulty)
	f.ID = g.firmID(g.spawnCounter)
	return f
}

// firmID draws the id of the n-th firm of the game from the seed, so a
// replay hands out the same ids. The player is firm 0.
func (g *Game) firmID(n int) string {
	id, err := uuid.NewRandomFromReader(g.climate.RNG(0, idStream+n))
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (g *Game) advanceClimate(prev Conditions) {
	g.cond = g.climate.Roll(prev, g.turn)
	ApplyEvent(g.cond.Event, g.player, g.firms())
	if g.cond.Event.Kind != EventNone {
		g.log.Info("market event", "turn", g.turn, "event", g.cond.Event.Kind, "detail", g.cond.Event.String())
	}
}

func (g *Game) firms() []*Firm {
	out := make([]*Firm, 0, 1+len(g.rivals))
	out = append(out, g.player)
	return append(out, g.rivals...)
}

func (g *Game) Config() Config {
	return g.cfg
}

func (g *Game) Seed() int64 {
	return g.seed
}

// Turn is the turn that the next PlayTurn will settle.
func (g *Game) Turn() int {
	return g.turn
}

func (g *Game) Conditions() Conditions {
	return g.cond
}

func (g *Game) Outcome() Outcome {
	return g.outcome
}

func (g *Game) Player() Firm {
	return *g.player
}

func (g *Game) Rivals() []Firm {
	out := make([]Firm, len(g.rivals))
	for i, f := range g.rivals {
		out[i] = *f
	}
	return out
}

// MarketView is the aggregate view handed to strategies this turn.
func (g *Game) MarketView() MarketView {
	return NewMarketView(g.cond, g.lastMarket, g.firms())
}

// Autopilot asks the game's strategy to decide the player's turn.
func (g *Game) Autopilot() Decision {
	return g.strategy.Decide(StrategyInput{
		Firm:   *g.player,
		Market: g.MarketView(),
		Config: g.cfg,
		RNG:    g.climate.RNG(g.turn, autopilotStream),
	})
}

// Preview normalizes a decision for the player without playing it.
func (g *Game) Preview(d Decision) Command {
	return Normalize(g.cfg, g.player, d)
}

func (g *Game) PlayTurn(ctx context.Context, d Decision) (TurnReport, error) {
	if err := ctx.Err(); err != nil {
		return TurnReport{}, err
	}
	if g.outcome.Over() {
		return TurnReport{}, ErrGameOver
	}

	firms := g.firms()
	view := NewMarketView(g.cond, g.lastMarket, firms)
	commands := make([]Command, len(firms))
	commands[0] = Normalize(g.cfg, g.player, d)
	for i, ai := range g.rivals {
		decision := g.strategy.Decide(StrategyInput{
			Firm:   *ai,
			Market: view,
			Config: g.cfg,
			RNG:    g.climate.RNG(g.turn, i+1),
		})
		commands[i+1] = Normalize(g.cfg, ai, decision)
	}

	settlement, err := g.engine.Settle(firms, commands, g.cond)
	if err != nil {
		return TurnReport{}, fmt.Errorf("settle turn %d: %w", g.turn, err)
	}

	report := TurnReport{
		Turn:       g.turn,
		Conditions: g.cond,
		Commands:   commands,
		Settlement: settlement,
	}
	if g.player.Bankrupt {
		g.outcome = OutcomeBankrupt
	}
	report.Respawns = g.replaceBankruptRivals()

	if !g.outcome.Over() {
		switch {
		case g.player.NetWorth() >= g.cfg.TargetNetWorth:
			g.outcome = OutcomeWon
		case g.turn >= g.cfg.MaxTurns:
			g.outcome = OutcomeTimeUp
		}
	}

	g.lastMarket = settlement.Market
	g.turn++
	if !g.outcome.Over() {
		g.advanceClimate(g.cond)
	}
	report.Outcome = g.outcome
	report.Next = g.cond

	g.log.Debug("turn played",
		"turn", report.Turn,
		"player_net_worth", g.player.NetWorth(),
		"outcome", g.outcome,
	)
	if g.outcome.Over() {
		g.log.Info("game over",
			"outcome", g.outcome,
			"turns", report.Turn,
			"net_worth", g.player.NetWorth(),
			"total_net_income", g.player.TotalNetIncome,
		)
	}
	return report, nil
}

// replaceBankruptRivals gives every bankrupt AI slot a fresh firm so the
// next intake already sees the replacement.
func (g *Game) replaceBankruptRivals() []Respawn {
	var out []Respawn
	for i, f := range g.rivals {
		if !f.Bankrupt {
			continue
		}
		rng := g.climate.RNG(g.turn, -(i + 1))
		next := g.spawnRival(uniform(rng, 0.4, 0.7))
		out = append(out, Respawn{
			Slot:    i,
			OldID:   f.ID,
			OldName: f.Name,
			NewID:   next.ID,
			NewName: next.Name,
		})
		g.log.Info("competitor bankrupt", "turn", g.turn, "firm", f.Name, "replacement", next.Name)
		g.rivals[i] = next
	}
	return out
}

// Snapshot is the whole game as plain data.
type Snapshot struct {
	Version         int        `json:"version"`
	Config          Config     `json:"config"`
	Seed            int64      `json:"seed"`
	Turn            int        `json:"turn"`
	Conditions      Conditions `json:"conditions"`
	LastTotalDemand int        `json:"last_total_demand"`
	LastLostDemand  int        `json:"last_lost_demand"`
	SpawnCounter    int        `json:"spawn_counter"`
	Outcome         Outcome    `json:"outcome"`
	Player          Firm       `json:"player"`
	Rivals          []Firm     `json:"rivals"`
}

func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		Version:         SnapshotVersion,
		Config:          g.cfg,
		Seed:            g.seed,
		Turn:            g.turn,
		Conditions:      g.cond,
		LastTotalDemand: g.lastMarket.TotalDemand,
		LastLostDemand:  g.lastMarket.LostDemand,
		SpawnCounter:    g.spawnCounter,
		Outcome:         g.outcome,
		Player:          *g.player,
		Rivals:          g.Rivals(),
	}
}

// Restore rebuilds a game from a snapshot. The seed always comes from the
// snapshot; WithSeed is ignored.
func Restore(cfg Config, snap Snapshot, opts ...Option) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d", ErrInvalidState, snap.Version)
	}
	if snap.Turn < 1 {
		return nil, fmt.Errorf("%w: snapshot turn %d", ErrInvalidState, snap.Turn)
	}
	opts = append(opts, WithSeed(snap.Seed))
	g := newGame(cfg, opts...)

	player, err := RestoreFirm(snap.Player)
	if err != nil {
		return nil, fmt.Errorf("restore player: %w", err)
	}
	g.player = player
	for i, data := range snap.Rivals {
		f, err := RestoreFirm(data)
		if err != nil {
			return nil, fmt.Errorf("restore rival %d: %w", i, err)
		}
		g.rivals = append(g.rivals, f)
	}

	g.turn = snap.Turn
	g.cond = snap.Conditions
	g.lastMarket = Resolution{TotalDemand: snap.LastTotalDemand, LostDemand: snap.LastLostDemand}
	g.spawnCounter = max(snap.SpawnCounter, len(snap.Rivals))
	g.outcome = snap.Outcome
	if g.outcome == "" {
		g.outcome = OutcomeInProgress
	}
	return g, nil
}
