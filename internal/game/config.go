package game

import (
	"fmt"
	"math"
)

// Config carries every tunable constant of a game. It is passed by value
// into the engine, resolver, strategies and firms and is never mutated after
// construction.
type Config struct {
	InitialMoney   float64 `yaml:"initial_money" json:"initial_money"`
	TargetNetWorth float64 `yaml:"target_net_worth" json:"target_net_worth"`
	MaxTurns       int     `yaml:"max_turns" json:"max_turns"`
	NumCompetitors int     `yaml:"num_competitors" json:"num_competitors"`

	BaseDemand                 float64 `yaml:"base_demand" json:"base_demand"`
	DemandPriceSensitivity     float64 `yaml:"demand_price_sensitivity" json:"demand_price_sensitivity"`
	DemandQualitySensitivity   float64 `yaml:"demand_quality_sensitivity" json:"demand_quality_sensitivity"`
	DemandMarketingSensitivity float64 `yaml:"demand_marketing_sensitivity" json:"demand_marketing_sensitivity"`
	CompetitionSensitivity     float64 `yaml:"competition_sensitivity" json:"competition_sensitivity"`
	// DemandReferencePrice anchors the size of the whole market. Zero means
	// the market average price of the turn is used instead.
	DemandReferencePrice float64 `yaml:"demand_reference_price" json:"demand_reference_price"`

	InitialProdCost     float64 `yaml:"initial_prod_cost" json:"initial_prod_cost"`
	InitialQuality      int     `yaml:"initial_quality" json:"initial_quality"`
	InitialMarketingLvl int     `yaml:"initial_marketing_lvl" json:"initial_marketing_lvl"`
	InitialWorkers      int     `yaml:"initial_workers" json:"initial_workers"`
	InitialPriceMarkup  float64 `yaml:"initial_price_markup" json:"initial_price_markup"`

	WorkerSalary        float64 `yaml:"worker_salary" json:"worker_salary"`
	MaxProdPerWorker    int     `yaml:"max_prod_per_worker" json:"max_prod_per_worker"`
	HiringCostPerWorker float64 `yaml:"hiring_cost_per_worker" json:"hiring_cost_per_worker"`
	FiringCostPerWorker float64 `yaml:"firing_cost_per_worker" json:"firing_cost_per_worker"`

	RndCostFactor         float64 `yaml:"rnd_cost_factor" json:"rnd_cost_factor"`
	RndPointsPerUpgrade   int     `yaml:"rnd_points_per_upgrade" json:"rnd_points_per_upgrade"`
	MarketingCostFactor   float64 `yaml:"marketing_cost_factor" json:"marketing_cost_factor"`
	CostReductionFraction float64 `yaml:"cost_reduction_fraction" json:"cost_reduction_fraction"`
	MinProdCost           float64 `yaml:"min_prod_cost" json:"min_prod_cost"`

	InterestRate     float64 `yaml:"interest_rate" json:"interest_rate"`
	LoanInterestRate float64 `yaml:"loan_interest_rate" json:"loan_interest_rate"`
	MaxLoanRatio     float64 `yaml:"max_loan_ratio" json:"max_loan_ratio"`

	EventProbability float64 `yaml:"event_probability" json:"event_probability"`
}

// DefaultConfig returns the tuning of the classic single-market game.
func DefaultConfig() Config {
	return Config{
		InitialMoney:   10_000,
		TargetNetWorth: 25_000,
		MaxTurns:       120,
		NumCompetitors: 2,

		BaseDemand:                 200,
		DemandPriceSensitivity:     1.6,
		DemandQualitySensitivity:   1.3,
		DemandMarketingSensitivity: 1.1,
		CompetitionSensitivity:     0.75,
		DemandReferencePrice:       16,

		InitialProdCost:     8,
		InitialQuality:      3,
		InitialMarketingLvl: 1,
		InitialWorkers:      0,
		InitialPriceMarkup:  2.5,

		WorkerSalary:        150,
		MaxProdPerWorker:    10,
		HiringCostPerWorker: 250,
		FiringCostPerWorker: 500,

		RndCostFactor:         600,
		RndPointsPerUpgrade:   120,
		MarketingCostFactor:   400,
		CostReductionFraction: 0.15,
		MinProdCost:           5,

		InterestRate:     0.05,
		LoanInterestRate: 0.10,
		MaxLoanRatio:     2.0,

		EventProbability: 0.30,
	}
}

// Validate reports the first constant that would make the simulation
// ill-defined.
func (c Config) Validate() error {
	checks := []struct {
		ok   bool
		name string
	}{
		{c.InitialMoney >= 0, "initial_money"},
		{c.TargetNetWorth > 0, "target_net_worth"},
		{c.MaxTurns > 0 && c.MaxTurns <= MaxTurnLimit, "max_turns"},
		{c.NumCompetitors >= 0 && c.NumCompetitors <= MaxCompetitors, "num_competitors"},
		{c.BaseDemand >= 0, "base_demand"},
		{c.DemandPriceSensitivity >= 0, "demand_price_sensitivity"},
		{c.DemandQualitySensitivity >= 0, "demand_quality_sensitivity"},
		{c.DemandMarketingSensitivity >= 0, "demand_marketing_sensitivity"},
		{c.CompetitionSensitivity >= 0, "competition_sensitivity"},
		{c.DemandReferencePrice >= 0, "demand_reference_price"},
		{c.InitialProdCost > 0, "initial_prod_cost"},
		{c.InitialQuality >= MinLevel && c.InitialQuality <= MaxLevel, "initial_quality"},
		{c.InitialMarketingLvl >= MinLevel && c.InitialMarketingLvl <= MaxLevel, "initial_marketing_lvl"},
		{c.InitialWorkers >= 0, "initial_workers"},
		{c.InitialPriceMarkup > 0, "initial_price_markup"},
		{c.WorkerSalary >= 0, "worker_salary"},
		{c.MaxProdPerWorker >= 0, "max_prod_per_worker"},
		{c.HiringCostPerWorker >= 0, "hiring_cost_per_worker"},
		{c.FiringCostPerWorker >= 0, "firing_cost_per_worker"},
		{c.RndCostFactor > 0, "rnd_cost_factor"},
		{c.RndPointsPerUpgrade > 0, "rnd_points_per_upgrade"},
		{c.MarketingCostFactor > 0, "marketing_cost_factor"},
		{c.CostReductionFraction > 0 && c.CostReductionFraction < 1, "cost_reduction_fraction"},
		{c.MinProdCost > 0 && c.MinProdCost <= c.InitialProdCost, "min_prod_cost"},
		{c.InterestRate >= 0, "interest_rate"},
		{c.LoanInterestRate >= 0, "loan_interest_rate"},
		{c.MaxLoanRatio >= 0, "max_loan_ratio"},
		{c.EventProbability >= 0 && c.EventProbability <= 1, "event_probability"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s out of range", ErrInvalidConfig, chk.name)
		}
	}
	return nil
}

// MarketingLevelCost is what it takes to lift marketing from level to level+1.
func (c Config) MarketingLevelCost(level int) float64 {
	return c.MarketingCostFactor * math.Pow(float64(level), 1.5)
}

// RndCostPerPoint grows with quality and as the unit cost falls, so later
// breakthroughs are dearer than early ones.
func (c Config) RndCostPerPoint(quality int, unitCost float64) float64 {
	costTerm := math.Max(1, 25-unitCost)
	return c.RndCostFactor * (float64(quality) + costTerm) / float64(c.RndPointsPerUpgrade)
}
