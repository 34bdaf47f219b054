package game

import (
	"math"
	"math/rand"
)

// MarketView is everything a strategy may know about the rest of the market.
// It never carries another firm's ledger.
type MarketView struct {
	Turn             int         `json:"turn"`
	Trend            float64     `json:"trend"`
	WageIndex        float64     `json:"wage_index"`
	Event            MarketEvent `json:"event"`
	AveragePrice     float64     `json:"average_price"`
	AverageQuality   float64     `json:"average_quality"`
	AverageMarketing float64     `json:"average_marketing"`
	LastTotalDemand  int         `json:"last_total_demand"`
	LastLostDemand   int         `json:"last_lost_demand"`
	Competitors      int         `json:"competitors"`
}

// NewMarketView aggregates the active firms as they stand before decisions.
func NewMarketView(cond Conditions, last Resolution, firms []*Firm) MarketView {
	view := MarketView{
		Turn:            cond.Turn,
		Trend:           cond.Trend,
		WageIndex:       cond.WageIndex,
		Event:           cond.Event,
		LastTotalDemand: last.TotalDemand,
		LastLostDemand:  last.LostDemand,
	}
	active := 0
	for _, f := range firms {
		if f.Bankrupt {
			continue
		}
		active++
		view.AveragePrice += f.Price
		view.AverageQuality += float64(f.Quality)
		view.AverageMarketing += float64(f.Marketing)
	}
	if active > 0 {
		view.AveragePrice /= float64(active)
		view.AverageQuality /= float64(active)
		view.AverageMarketing /= float64(active)
		view.Competitors = active - 1
	}
	return view
}

type StrategyInput struct {
	Firm   Firm
	Market MarketView
	Config Config
	RNG    *rand.Rand
}

// Strategy decides a turn for a firm nobody is typing commands for.
type Strategy interface {
	Decide(in StrategyInput) Decision
}

type StrategyFunc func(in StrategyInput) Decision

func (fn StrategyFunc) Decide(in StrategyInput) Decision {
	return fn(in)
}

// AdaptiveStrategy keeps stock near a multiple of expected sales, prices at a
// markup nudged toward the market average and invests a difficulty-scaled
// slice of spare cash. It stays inside what Normalize would allow.
type AdaptiveStrategy struct{}

func (AdaptiveStrategy) Decide(in StrategyInput) Decision {
	cfg, f, mv := in.Config, in.Firm, in.Market
	rng := in.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(mv.Turn)))
	}
	difficulty := f.Difficulty
	if difficulty <= 0 {
		difficulty = 0.5
	}
	difficulty = clampFloat(difficulty, 0.1, 1.0)
	trend := mv.Trend
	if trend <= 0 {
		trend = 1
	}
	wage := cfg.WorkerSalary
	if mv.WageIndex > 0 {
		wage *= mv.WageIndex
	}

	buffer := float64(f.Workers)*wage + f.LoanBalance*cfg.LoanInterestRate/12 + 500
	targetRatio := 1.5 + (difficulty-0.5)*0.4
	minTarget := max(5, int(float64(cfg.InitialWorkers*cfg.MaxProdPerWorker)*0.2))

	var predicted float64
	if f.LastUnitsSold > 0 {
		predicted = float64(f.LastUnitsSold) * trend * uniform(rng, 0.8, 1.2)
	} else {
		guess := float64(f.ProductionCapacity(cfg))
		if mv.LastTotalDemand > 0 {
			guess = math.Max(guess, float64(mv.LastTotalDemand)/float64(mv.Competitors+1))
		}
		predicted = guess * (0.4 + 0.3*difficulty) * trend * uniform(rng, 0.7, 1.1)
	}
	target := max(minTarget, int(predicted*targetRatio))
	needed := max(0, target-f.InventoryUnits)

	var d Decision
	cash := f.Cash

	if cfg.MaxProdPerWorker > 0 {
		targetCapacity := float64(needed)*1.2 + 5
		targetWorkers := max(1, int(math.Ceil(targetCapacity/float64(cfg.MaxProdPerWorker)))+rng.Intn(3)-1)
		switch {
		case targetWorkers > f.Workers:
			n := targetWorkers - f.Workers
			cost := float64(n) * cfg.HiringCostPerWorker
			if cash > cost+float64(targetWorkers)*wage+2000 {
				d.Hire = n
				cash -= cost
			}
		case targetWorkers < f.Workers:
			n := f.Workers - targetWorkers
			cost := float64(n) * cfg.FiringCostPerWorker
			if cash > cost+buffer {
				d.Fire = n
				cash -= cost
			}
		}
	}

	capacity := (f.Workers + d.Hire - d.Fire) * cfg.MaxProdPerWorker
	produce := min(needed, capacity, affordableUnits(cash, f.UnitCost))
	if produce > 0 && f.InventoryUnits > 0 && cash-float64(produce)*f.UnitCost < buffer {
		produce = min(produce, affordableUnits(cash-buffer, f.UnitCost))
	}
	d.Produce = max(0, produce)
	cash -= float64(d.Produce) * f.UnitCost

	margin := 1.5 + 0.05*(1+difficulty)
	base := f.UnitCost * margin
	stock := f.InventoryUnits + d.Produce
	switch {
	case float64(stock) > float64(target)*1.5:
		base *= uniform(rng, 0.9, 0.98)
	case float64(stock) < float64(target)*0.7 && stock > 0:
		base *= uniform(rng, 1.02, 1.1)
	}
	price := base
	if mv.AveragePrice > 0 {
		price = base * (1 + (mv.AveragePrice-base)/math.Max(1, base)*(difficulty*0.15))
	}
	d.Price = math.Max(f.UnitCost+1, math.Floor(price))

	budget := cash * (0.1 + difficulty*0.15)
	if cash > buffer+1000 && budget > 300 {
		split := uniform(rng, 0.4, 0.7)
		marketingBudget := budget * split
		rndBudget := budget - marketingBudget

		if f.Marketing < MaxLevel {
			need := math.Max(1, math.Ceil(cfg.MarketingLevelCost(f.Marketing)-f.MarketingProgress))
			if marketingBudget >= need && cash-need > buffer {
				d.MarketingSpend = need
				cash -= need
			}
		}
		researchable := !(f.QualityCapped() && f.CostFloored(cfg))
		if researchable && rndBudget > 0 && cash-rndBudget > buffer {
			d.RndSpend = math.Floor(rndBudget)
			cash -= d.RndSpend
		}
	}

	qualityChance := 0.6
	if f.Quality >= 7 {
		qualityChance = 0.3
	}
	switch {
	case rng.Float64() < qualityChance && !f.QualityCapped():
		d.Breakthrough = BreakthroughQuality
	case !f.CostFloored(cfg):
		d.Breakthrough = BreakthroughCost
	default:
		d.Breakthrough = BreakthroughQuality
	}

	maxLoan := f.MaxLoan(cfg)
	switch {
	case cash < buffer && maxLoan > 500:
		d.LoanDraw = math.Min(math.Max(500, buffer-cash), maxLoan)
	case f.LoanBalance > 0 && cash > f.LoanBalance*1.5+buffer+10000:
		d.LoanRepay = math.Max(0, math.Min(f.LoanBalance, cash-buffer-5000))
	}
	return d
}
