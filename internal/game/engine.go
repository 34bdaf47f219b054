package game

import (
	"fmt"
	"log/slog"
	"math"
)

// Statement is one firm's result for one turn.
type Statement struct {
	FirmID string `json:"firm_id"`
	Name   string `json:"name"`
	Turn   int    `json:"turn"`

	UnitsProduced int     `json:"units_produced"`
	UnitsSold     int     `json:"units_sold"`
	UnitsDemanded int     `json:"units_demanded"`
	Price         float64 `json:"price"`
	Share         float64 `json:"share"`

	Revenue        float64 `json:"revenue"`
	COGS           float64 `json:"cogs"`
	Salaries       float64 `json:"salaries"`
	Marketing      float64 `json:"marketing"`
	Rnd            float64 `json:"rnd"`
	LoanInterest   float64 `json:"loan_interest"`
	InterestEarned float64 `json:"interest_earned"`
	HiringCost     float64 `json:"hiring_cost"`
	FiringCost     float64 `json:"firing_cost"`
	ProductionCost float64 `json:"production_cost"`
	LoanDrawn      float64 `json:"loan_drawn"`
	LoanRepaid     float64 `json:"loan_repaid"`
	NetIncome      float64 `json:"net_income"`

	EndingCash     float64 `json:"ending_cash"`
	EndingNetWorth float64 `json:"ending_net_worth"`

	RndPointsGained int                  `json:"rnd_points_gained"`
	MarketingLevels int                  `json:"marketing_levels"`
	Breakthroughs   []BreakthroughChoice `json:"breakthroughs,omitempty"`
	Warnings        []ClampWarning       `json:"warnings,omitempty"`
	Bankrupt        bool                 `json:"bankrupt"`
}

func (s Statement) Expenses() float64 {
	return s.COGS + s.Salaries + s.Marketing + s.Rnd + s.LoanInterest + s.HiringCost + s.FiringCost
}

type Settlement struct {
	Turn       int         `json:"turn"`
	Market     Resolution  `json:"market"`
	Statements []Statement `json:"statements"`
}

func (s Settlement) Statement(firmID string) (Statement, bool) {
	for _, st := range s.Statements {
		if st.FirmID == firmID {
			return st, true
		}
	}
	return Statement{}, false
}

// Engine settles a turn for a set of firms.
type Engine struct {
	cfg      Config
	resolver Resolver
	log      *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		resolver: NewResolver(cfg),
		log:      logger,
	}
}

func (e *Engine) Resolver() Resolver {
	return e.resolver
}

// Settle applies one normalized command per firm, runs the market and books
// every firm's statement. Firms are only written back when the whole turn
// settles; on error they are untouched.
func (e *Engine) Settle(firms []*Firm, commands []Command, cond Conditions) (Settlement, error) {
	if len(firms) != len(commands) {
		return Settlement{}, fmt.Errorf("%w: %d firms, %d commands", ErrCommandMismatch, len(firms), len(commands))
	}
	work := make([]Firm, len(firms))
	for i, f := range firms {
		if f == nil {
			return Settlement{}, fmt.Errorf("%w: nil firm at %d", ErrInvalidState, i)
		}
		if commands[i].FirmID != f.ID {
			return Settlement{}, fmt.Errorf("%w: command for %s at slot of %s", ErrCommandMismatch, commands[i].FirmID, f.ID)
		}
		if err := f.Validate(); err != nil {
			return Settlement{}, err
		}
		work[i] = *f
	}

	wageIndex := cond.WageIndex
	if wageIndex <= 0 {
		wageIndex = 1
	}
	out := Settlement{Turn: cond.Turn, Statements: make([]Statement, len(work))}
	offers := make([]Offer, len(work))

	for i := range work {
		f := &work[i]
		cmd := commands[i]
		st := &out.Statements[i]
		st.FirmID = f.ID
		st.Name = f.Name
		st.Turn = cond.Turn
		st.Warnings = cmd.Warnings

		st.HiringCost = float64(cmd.Hire) * e.cfg.HiringCostPerWorker
		st.FiringCost = float64(cmd.Fire) * e.cfg.FiringCostPerWorker
		f.Cash -= st.HiringCost + st.FiringCost
		f.Workers += cmd.Hire - cmd.Fire
		if f.Workers < 0 {
			return Settlement{}, &InvalidStateError{FirmID: f.ID, Field: "workers", Value: f.Workers}
		}

		produce := min(cmd.Produce, f.ProductionCapacity(e.cfg))
		st.UnitsProduced = max(0, produce)
		st.ProductionCost = float64(st.UnitsProduced) * f.UnitCost
		f.Cash -= st.ProductionCost
		f.addInventory(st.UnitsProduced, f.UnitCost)

		f.Price = cmd.Price
		st.Price = f.Price
		offers[i] = Offer{
			FirmID:    f.ID,
			Price:     f.Price,
			Quality:   f.Quality,
			Marketing: f.Marketing,
			Available: f.InventoryUnits,
		}
	}

	out.Market = e.resolver.Rotated(cond.Turn).Resolve(offers, cond.Multiplier())

	for i := range work {
		f := &work[i]
		cmd := commands[i]
		st := &out.Statements[i]
		alloc := out.Market.Allocations[i]

		st.UnitsSold = alloc.UnitsSold
		st.UnitsDemanded = alloc.Demand
		st.Share = alloc.Share
		st.Revenue = alloc.Revenue
		f.Cash += st.Revenue
		st.COGS = f.removeInventory(alloc.UnitsSold)
		f.LastUnitsSold = alloc.UnitsSold

		st.Salaries = float64(f.Workers) * e.cfg.WorkerSalary * wageIndex
		f.Cash -= st.Salaries

		st.Marketing = cmd.MarketingSpend
		f.Cash -= st.Marketing
		st.MarketingLevels = e.investMarketing(f, st.Marketing)

		st.Rnd = cmd.RndSpend
		f.Cash -= st.Rnd
		st.RndPointsGained = e.investRnd(f, st.Rnd)
		st.Breakthroughs = e.applyBreakthroughs(f, cmd.Breakthrough)

		st.LoanInterest = f.LoanBalance * e.cfg.LoanInterestRate / 12
		f.Cash -= st.LoanInterest
		st.InterestEarned = math.Max(f.Cash, 0) * e.cfg.InterestRate / 12
		f.Cash += st.InterestEarned

		balance := f.LoanBalance
		st.LoanDrawn = cmd.LoanDraw
		st.LoanRepaid = math.Min(cmd.LoanRepay, balance)
		f.Cash += st.LoanDrawn - st.LoanRepaid
		f.LoanBalance = math.Max(0, balance+st.LoanDrawn-st.LoanRepaid)

		st.NetIncome = st.Revenue + st.InterestEarned - st.Expenses()
		f.TotalNetIncome += st.NetIncome
		st.EndingCash = f.Cash
		st.EndingNetWorth = f.NetWorth()
		st.Bankrupt = f.IsInsolvent()
		f.Bankrupt = st.Bankrupt

		if err := f.Validate(); err != nil {
			return Settlement{}, err
		}
	}

	for i := range work {
		*firms[i] = work[i]
	}
	e.log.Debug("turn settled",
		"turn", cond.Turn,
		"total_demand", out.Market.TotalDemand,
		"units_sold", out.Market.UnitsSold(),
		"lost_demand", out.Market.LostDemand,
	)
	return out, nil
}

// investRnd buys whole points at the current cost per point. Spend short of
// a point stays in RndProgress for later turns.
func (e *Engine) investRnd(f *Firm, spend float64) int {
	f.RndProgress += spend
	perPoint := e.cfg.RndCostPerPoint(f.Quality, f.UnitCost)
	points := int(math.Floor(f.RndProgress / perPoint))
	if points > 0 {
		f.RndPoints += points
		f.RndProgress = math.Max(0, f.RndProgress-float64(points)*perPoint)
	}
	return points
}

// investMarketing converts spend into levels along the level^1.5 cost curve
// and keeps the unspent part as progress.
func (e *Engine) investMarketing(f *Firm, spend float64) int {
	if spend <= 0 {
		return 0
	}
	f.MarketingProgress += spend
	gained := 0
	for f.Marketing < MaxLevel {
		cost := e.cfg.MarketingLevelCost(f.Marketing)
		if f.MarketingProgress < cost {
			break
		}
		f.MarketingProgress -= cost
		f.Marketing++
		gained++
	}
	return gained
}

func (e *Engine) applyBreakthroughs(f *Firm, choice BreakthroughChoice) []BreakthroughChoice {
	var applied []BreakthroughChoice
	for f.RndPoints >= e.cfg.RndPointsPerUpgrade {
		f.RndPoints -= e.cfg.RndPointsPerUpgrade
		pick := choice
		if pick != BreakthroughCost {
			pick = BreakthroughQuality
		}
		if pick == BreakthroughQuality && f.QualityCapped() {
			pick = BreakthroughCost
		}
		if pick == BreakthroughCost && f.CostFloored(e.cfg) {
			if f.QualityCapped() {
				continue
			}
			pick = BreakthroughQuality
		}
		switch pick {
		case BreakthroughQuality:
			f.Quality++
		case BreakthroughCost:
			f.UnitCost = math.Max(e.cfg.MinProdCost, f.UnitCost*(1-e.cfg.CostReductionFraction))
		}
		applied = append(applied, pick)
	}
	return applied
}
