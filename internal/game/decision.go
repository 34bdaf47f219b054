package game

import (
	"fmt"
	"math"
)

type BreakthroughChoice string

const (
	BreakthroughUnset   BreakthroughChoice = ""
	BreakthroughQuality BreakthroughChoice = "quality"
	BreakthroughCost    BreakthroughChoice = "cost"
)

func ParseBreakthroughChoice(raw string) (BreakthroughChoice, error) {
	switch BreakthroughChoice(raw) {
	case BreakthroughUnset, BreakthroughQuality, BreakthroughCost:
		return BreakthroughChoice(raw), nil
	}
	return BreakthroughUnset, fmt.Errorf("unknown breakthrough choice %q", raw)
}

// Decision is what a player or strategy proposes for one turn. A zero Price
// keeps the firm's current price and is reported as a ClampWarning.
type Decision struct {
	Hire           int                `json:"hire"`
	Fire           int                `json:"fire"`
	Produce        int                `json:"produce"`
	Price          float64            `json:"price"`
	MarketingSpend float64            `json:"marketing_spend"`
	RndSpend       float64            `json:"rnd_spend"`
	Breakthrough   BreakthroughChoice `json:"breakthrough,omitempty"`
	LoanDraw       float64            `json:"loan_draw"`
	LoanRepay      float64            `json:"loan_repay"`
}

// ClampWarning records one field that Normalize had to alter.
type ClampWarning struct {
	Field     string  `json:"field"`
	Requested float64 `json:"requested"`
	Applied   float64 `json:"applied"`
	Reason    string  `json:"reason"`
}

func (w ClampWarning) String() string {
	return fmt.Sprintf("%s: %g -> %g (%s)", w.Field, w.Requested, w.Applied, w.Reason)
}

// Command is a Decision bounded to what the firm can legally do this turn.
type Command struct {
	FirmID string `json:"firm_id"`
	Decision
	Warnings []ClampWarning `json:"warnings,omitempty"`
}

func (c Command) Clamped() bool {
	return len(c.Warnings) > 0
}

// Normalize never fails. Spend is committed against pre-turn cash plus the
// loan draw in this order: severance, hiring, production, marketing, R&D,
// repayment.
func Normalize(cfg Config, f *Firm, d Decision) Command {
	cmd := Command{FirmID: f.ID}
	warn := func(field string, requested, applied float64, reason string) {
		cmd.Warnings = append(cmd.Warnings, ClampWarning{
			Field:     field,
			Requested: requested,
			Applied:   applied,
			Reason:    reason,
		})
	}

	loan := clampFloat(d.LoanDraw, 0, f.MaxLoan(cfg))
	if loan != d.LoanDraw {
		warn("loan_draw", d.LoanDraw, loan, "limited by loan capacity")
	}
	cmd.LoanDraw = loan
	cash := math.Max(0, f.Cash+loan)

	fires := clampInt(d.Fire, 0, f.Workers)
	if cfg.FiringCostPerWorker > 0 {
		fires = min(fires, affordableUnits(cash, cfg.FiringCostPerWorker))
	}
	if fires != d.Fire {
		warn("fire", float64(d.Fire), float64(fires), "limited by workforce or severance cash")
	}
	cmd.Fire = fires
	cash -= float64(fires) * cfg.FiringCostPerWorker

	hires := max(0, d.Hire)
	if cfg.HiringCostPerWorker > 0 {
		hires = min(hires, affordableUnits(cash, cfg.HiringCostPerWorker))
	}
	if hires != d.Hire {
		warn("hire", float64(d.Hire), float64(hires), "limited by cash")
	}
	cmd.Hire = hires
	cash -= float64(hires) * cfg.HiringCostPerWorker

	capacity := (f.Workers - fires + hires) * cfg.MaxProdPerWorker
	produce := clampInt(d.Produce, 0, capacity)
	produce = min(produce, affordableUnits(cash, f.UnitCost))
	if produce != d.Produce {
		warn("produce", float64(d.Produce), float64(produce), "limited by capacity or cash")
	}
	cmd.Produce = produce
	cash -= float64(produce) * f.UnitCost

	switch {
	case d.Price == 0:
		cmd.Price = f.Price
		warn("price", 0, f.Price, "no price given, kept current")
	case !(d.Price > 0) || math.IsInf(d.Price, 0):
		cmd.Price = f.Price
		warn("price", d.Price, f.Price, "price must be positive")
	default:
		cmd.Price = d.Price
	}

	marketingCap := cash
	if f.Marketing >= MaxLevel {
		marketingCap = 0
	}
	cmd.MarketingSpend = clampFloat(d.MarketingSpend, 0, marketingCap)
	if cmd.MarketingSpend != d.MarketingSpend {
		warn("marketing_spend", d.MarketingSpend, cmd.MarketingSpend, "limited by cash or level cap")
	}
	cash -= cmd.MarketingSpend

	rndCap := cash
	if f.QualityCapped() && f.CostFloored(cfg) {
		rndCap = 0
	}
	cmd.RndSpend = clampFloat(d.RndSpend, 0, rndCap)
	if cmd.RndSpend != d.RndSpend {
		warn("rnd_spend", d.RndSpend, cmd.RndSpend, "limited by cash or nothing left to research")
	}
	cash -= cmd.RndSpend

	cmd.LoanRepay = clampFloat(d.LoanRepay, 0, math.Min(f.LoanBalance, cash))
	if cmd.LoanRepay != d.LoanRepay {
		warn("loan_repay", d.LoanRepay, cmd.LoanRepay, "limited by balance or cash")
	}

	cmd.Breakthrough = normalizeBreakthrough(cfg, f, d.Breakthrough, warn)
	return cmd
}

func normalizeBreakthrough(cfg Config, f *Firm, choice BreakthroughChoice, warn func(string, float64, float64, string)) BreakthroughChoice {
	switch choice {
	case BreakthroughQuality, BreakthroughCost:
	default:
		choice = BreakthroughQuality
	}
	if choice == BreakthroughQuality && f.QualityCapped() && !f.CostFloored(cfg) {
		warn("breakthrough", 0, 1, "quality at maximum, switched to cost")
		return BreakthroughCost
	}
	if choice == BreakthroughCost && f.CostFloored(cfg) && !f.QualityCapped() {
		warn("breakthrough", 1, 0, "cost at floor, switched to quality")
		return BreakthroughQuality
	}
	return choice
}

func affordableUnits(cash, unitPrice float64) int {
	if unitPrice <= 0 {
		return math.MaxInt32
	}
	if cash <= 0 {
		return 0
	}
	return int(math.Floor(cash / unitPrice))
}
