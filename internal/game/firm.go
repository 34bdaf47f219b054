package game

import (
	"math"

	"github.com/google/uuid"
)

// Firm is one competitor's ledger. All fields are plain data so a firm can be
// copied, snapshotted and restored without touching the engine.
type Firm struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	AI         bool    `json:"ai"`
	Difficulty float64 `json:"difficulty,omitempty"`

	Cash           float64 `json:"cash"`
	LoanBalance    float64 `json:"loan_balance"`
	InventoryUnits int     `json:"inventory_units"`
	InventoryValue float64 `json:"inventory_value"`

	Workers           int     `json:"workers"`
	UnitCost          float64 `json:"unit_cost"`
	Quality           int     `json:"quality"`
	Marketing         int     `json:"marketing"`
	RndPoints         int     `json:"rnd_points"`
	RndProgress       float64 `json:"rnd_progress"`
	MarketingProgress float64 `json:"marketing_progress"`
	Price             float64 `json:"price"`

	LastUnitsSold  int     `json:"last_units_sold"`
	TotalNetIncome float64 `json:"total_net_income"`
	Bankrupt       bool    `json:"bankrupt,omitempty"`
}

// NewFirm opens a firm with the configured starting values.
func NewFirm(cfg Config, name string, ai bool, difficulty float64) *Firm {
	return &Firm{
		ID:         uuid.NewString(),
		Name:       name,
		AI:         ai,
		Difficulty: difficulty,
		Cash:       cfg.InitialMoney,
		Workers:    cfg.InitialWorkers,
		UnitCost:   cfg.InitialProdCost,
		Quality:    cfg.InitialQuality,
		Marketing:  cfg.InitialMarketingLvl,
		Price:      RoundCents(cfg.InitialProdCost * cfg.InitialPriceMarkup),
	}
}

// RestoreFirm rebuilds a firm from stored data and rejects impossible ledgers.
func RestoreFirm(data Firm) (*Firm, error) {
	f := data
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every cash-independent field. Cash may be negative.
func (f *Firm) Validate() error {
	bad := func(field string, value any) error {
		return &InvalidStateError{FirmID: f.ID, Field: field, Value: value}
	}
	switch {
	case f.Workers < 0:
		return bad("workers", f.Workers)
	case !(f.UnitCost > 0) || math.IsInf(f.UnitCost, 0):
		return bad("unit_cost", f.UnitCost)
	case f.InventoryUnits < 0:
		return bad("inventory_units", f.InventoryUnits)
	case f.InventoryValue < 0 || math.IsNaN(f.InventoryValue):
		return bad("inventory_value", f.InventoryValue)
	case f.LoanBalance < 0 || math.IsNaN(f.LoanBalance):
		return bad("loan_balance", f.LoanBalance)
	case f.Quality < MinLevel || f.Quality > MaxLevel:
		return bad("quality", f.Quality)
	case f.Marketing < MinLevel || f.Marketing > MaxLevel:
		return bad("marketing", f.Marketing)
	case f.RndPoints < 0:
		return bad("rnd_points", f.RndPoints)
	case f.MarketingProgress < 0 || math.IsNaN(f.MarketingProgress):
		return bad("marketing_progress", f.MarketingProgress)
	case f.RndProgress < 0 || math.IsNaN(f.RndProgress):
		return bad("rnd_progress", f.RndProgress)
	case !(f.Price > 0):
		return bad("price", f.Price)
	case math.IsNaN(f.Cash):
		return bad("cash", f.Cash)
	}
	return nil
}

func (f *Firm) Assets() float64 {
	return f.Cash + f.InventoryValue
}

func (f *Firm) NetWorth() float64 {
	return f.Assets() - f.LoanBalance
}

// MaxLoan is the additional principal the firm may draw right now.
func (f *Firm) MaxLoan(cfg Config) float64 {
	return math.Max(0, f.Assets()*cfg.MaxLoanRatio-f.LoanBalance)
}

func (f *Firm) ProductionCapacity(cfg Config) int {
	return f.Workers * cfg.MaxProdPerWorker
}

// UnitInventoryCost is the weighted average cost of the units on hand.
func (f *Firm) UnitInventoryCost() float64 {
	if f.InventoryUnits == 0 {
		return 0
	}
	return f.InventoryValue / float64(f.InventoryUnits)
}

// IsInsolvent is the bankruptcy test: out of cash and under water.
func (f *Firm) IsInsolvent() bool {
	return f.Cash < 0 && f.NetWorth() < 0
}

func (f *Firm) QualityCapped() bool {
	return f.Quality >= MaxLevel
}

func (f *Firm) CostFloored(cfg Config) bool {
	return f.UnitCost <= cfg.MinProdCost
}

// addInventory re-bases the inventory to the weighted average cost.
func (f *Firm) addInventory(units int, unitCost float64) {
	if units <= 0 {
		return
	}
	f.InventoryUnits += units
	f.InventoryValue += float64(units) * unitCost
}

// removeInventory takes units out at the weighted average cost and returns
// the cost of the goods removed.
func (f *Firm) removeInventory(units int) float64 {
	if units <= 0 || f.InventoryUnits == 0 {
		return 0
	}
	if units >= f.InventoryUnits {
		cogs := f.InventoryValue
		f.InventoryUnits = 0
		f.InventoryValue = 0
		return cogs
	}
	cogs := float64(units) * f.UnitInventoryCost()
	f.InventoryUnits -= units
	f.InventoryValue -= cogs
	if f.InventoryValue < 0 {
		f.InventoryValue = 0
	}
	return cogs
}
