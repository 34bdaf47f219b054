package game

type Dashboard struct {
	Turn                 int         `json:"turn"`
	MaxTurns             int         `json:"max_turns"`
	Outcome              Outcome     `json:"outcome"`
	TargetNetWorthMicros int64       `json:"target_net_worth_micros"`
	Climate              ClimateView `json:"climate"`
	Player               FirmView    `json:"player"`
	Rivals               []RivalView `json:"rivals"`
	Market               MarketView  `json:"market"`
}

type ClimateView struct {
	Trend        float64   `json:"trend"`
	WageIndex    float64   `json:"wage_index"`
	Event        EventKind `json:"event,omitempty"`
	EventMessage string    `json:"event_message"`
}

type FirmView struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	CashMicros              int64  `json:"cash_micros"`
	LoanMicros              int64  `json:"loan_micros"`
	MaxLoanMicros           int64  `json:"max_loan_micros"`
	InventoryUnits          int    `json:"inventory_units"`
	InventoryValueMicros    int64  `json:"inventory_value_micros"`
	NetWorthMicros          int64  `json:"net_worth_micros"`
	Workers                 int    `json:"workers"`
	Capacity                int    `json:"capacity"`
	ProdPerWorker           int    `json:"prod_per_worker"`
	UnitCostMicros          int64  `json:"unit_cost_micros"`
	PriceMicros             int64  `json:"price_micros"`
	Quality                 int    `json:"quality"`
	Marketing               int    `json:"marketing"`
	RndPoints               int    `json:"rnd_points"`
	RndProgressMicros       int64  `json:"rnd_progress_micros"`
	RndCostPerPointMicros   int64  `json:"rnd_cost_per_point_micros"`
	NextMarketingCostMicros int64  `json:"next_marketing_cost_micros"`
	LastUnitsSold           int    `json:"last_units_sold"`
	TotalNetIncomeMicros    int64  `json:"total_net_income_micros"`
}

// RivalView is the public face of a competitor: what is on its price tag
// and in its adverts, never its books.
type RivalView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PriceMicros   int64  `json:"price_micros"`
	Quality       int    `json:"quality"`
	Marketing     int    `json:"marketing"`
	LastUnitsSold int    `json:"last_units_sold"`
}

func (g *Game) View() Dashboard {
	p := g.player
	out := Dashboard{
		Turn:                 g.turn,
		MaxTurns:             g.cfg.MaxTurns,
		Outcome:              g.outcome,
		TargetNetWorthMicros: DollarsToMicros(g.cfg.TargetNetWorth),
		Climate: ClimateView{
			Trend:        g.cond.Trend,
			WageIndex:    g.cond.WageIndex,
			Event:        g.cond.Event.Kind,
			EventMessage: g.cond.Event.String(),
		},
		Player: FirmView{
			ID:                    p.ID,
			Name:                  p.Name,
			CashMicros:            DollarsToMicros(p.Cash),
			LoanMicros:            DollarsToMicros(p.LoanBalance),
			MaxLoanMicros:         DollarsToMicros(p.MaxLoan(g.cfg)),
			InventoryUnits:        p.InventoryUnits,
			InventoryValueMicros:  DollarsToMicros(p.InventoryValue),
			NetWorthMicros:        DollarsToMicros(p.NetWorth()),
			Workers:               p.Workers,
			Capacity:              p.ProductionCapacity(g.cfg),
			ProdPerWorker:         g.cfg.MaxProdPerWorker,
			UnitCostMicros:        DollarsToMicros(p.UnitCost),
			PriceMicros:           DollarsToMicros(p.Price),
			Quality:               p.Quality,
			Marketing:             p.Marketing,
			RndPoints:             p.RndPoints,
			RndProgressMicros:     DollarsToMicros(p.RndProgress),
			RndCostPerPointMicros: DollarsToMicros(g.cfg.RndCostPerPoint(p.Quality, p.UnitCost)),
			LastUnitsSold:         p.LastUnitsSold,
			TotalNetIncomeMicros:  DollarsToMicros(p.TotalNetIncome),
		},
		Market: g.MarketView(),
	}
	if p.Marketing < MaxLevel {
		remaining := g.cfg.MarketingLevelCost(p.Marketing) - p.MarketingProgress
		out.Player.NextMarketingCostMicros = DollarsToMicros(max(0, remaining))
	}
	for _, f := range g.rivals {
		out.Rivals = append(out.Rivals, RivalView{
			ID:            f.ID,
			Name:          f.Name,
			PriceMicros:   DollarsToMicros(f.Price),
			Quality:       f.Quality,
			Marketing:     f.Marketing,
			LastUnitsSold: f.LastUnitsSold,
		})
	}
	return out
}
