package game

import (
	"math"
	"sort"
)

// Offer is what one firm brings to the market this turn.
type Offer struct {
	FirmID    string  `json:"firm_id"`
	Price     float64 `json:"price"`
	Quality   int     `json:"quality"`
	Marketing int     `json:"marketing"`
	Available int     `json:"available"`
}

type Allocation struct {
	FirmID      string  `json:"firm_id"`
	Score       float64 `json:"score"`
	Share       float64 `json:"share"`
	Demand      int     `json:"demand"`
	UnitsSold   int     `json:"units_sold"`
	UnitPrice   float64 `json:"unit_price"`
	Revenue     float64 `json:"revenue"`
	Constrained bool    `json:"constrained,omitempty"`
}

type Resolution struct {
	TotalDemand  int          `json:"total_demand"`
	LostDemand   int          `json:"lost_demand"`
	AveragePrice float64      `json:"average_price"`
	Multiplier   float64      `json:"multiplier"`
	Allocations  []Allocation `json:"allocations"`
}

func (r Resolution) UnitsSold() int {
	total := 0
	for _, a := range r.Allocations {
		total += a.UnitsSold
	}
	return total
}

// Resolver splits one turn of demand between offers. It holds only the
// config and a tie-break rotation, so the same inputs always give the same
// Resolution.
type Resolver struct {
	cfg   Config
	first int
}

func NewResolver(cfg Config) Resolver {
	return Resolver{cfg: cfg}
}

// Rotated returns a copy whose remainder ties start at offer n mod len(offers).
// The engine rotates by turn so slot 0 does not win every tie.
func (r Resolver) Rotated(n int) Resolver {
	r.first = n
	return r
}

// Resolve computes total demand and each firm's sales. Demand a firm can not
// serve is lost rather than passed on to its rivals.
func (r Resolver) Resolve(offers []Offer, multiplier float64) Resolution {
	if math.IsNaN(multiplier) || multiplier < 0 {
		multiplier = 0
	}
	res := Resolution{Multiplier: multiplier}
	if len(offers) == 0 {
		return res
	}

	avgPrice := 0.0
	for _, o := range offers {
		avgPrice += o.Price
	}
	avgPrice /= float64(len(offers))
	res.AveragePrice = avgPrice

	anchor := r.cfg.DemandReferencePrice
	if anchor <= 0 {
		anchor = avgPrice
	}

	weights := make([]float64, len(offers))
	scores := make([]float64, len(offers))
	var weightSum, appeal float64
	for i, o := range offers {
		q := levelFactor(o.Quality, r.cfg.DemandQualitySensitivity)
		m := levelFactor(o.Marketing, r.cfg.DemandMarketingSensitivity)
		scores[i] = priceFactor(avgPrice, o.Price, r.cfg.DemandPriceSensitivity) * q * m
		appeal += priceFactor(anchor, o.Price, r.cfg.DemandPriceSensitivity) * q * m
		weights[i] = math.Pow(scores[i], r.cfg.CompetitionSensitivity)
		weightSum += weights[i]
	}
	appeal /= float64(len(offers))

	total := r.cfg.BaseDemand * appeal * multiplier
	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 {
		total = 0
	}
	res.TotalDemand = int(math.Floor(total))

	shares := make([]float64, len(offers))
	for i := range offers {
		if weightSum > 0 && !math.IsInf(weightSum, 0) {
			shares[i] = weights[i] / weightSum
		} else {
			shares[i] = 1 / float64(len(offers))
		}
	}

	demand := splitUnits(res.TotalDemand, shares, r.first)
	res.Allocations = make([]Allocation, len(offers))
	for i, o := range offers {
		sold := min(demand[i], max(0, o.Available))
		res.Allocations[i] = Allocation{
			FirmID:      o.FirmID,
			Score:       scores[i],
			Share:       shares[i],
			Demand:      demand[i],
			UnitsSold:   sold,
			UnitPrice:   o.Price,
			Revenue:     float64(sold) * o.Price,
			Constrained: sold < demand[i],
		}
		res.LostDemand += demand[i] - sold
	}
	return res
}

func priceFactor(reference, price, sensitivity float64) float64 {
	if price <= 0 || reference <= 0 {
		return 0
	}
	return math.Pow(reference/price, sensitivity)
}

func levelFactor(level int, sensitivity float64) float64 {
	if level <= 0 {
		return 0
	}
	return math.Pow(float64(level)/BaselineLevel, sensitivity)
}

// splitUnits hands out whole units by largest remainder. Equal remainders go
// in offer order starting at index first mod len(shares).
func splitUnits(total int, shares []float64, first int) []int {
	out := make([]int, len(shares))
	if total <= 0 || len(shares) == 0 {
		return out
	}
	type remainder struct {
		idx  int
		frac float64
	}
	rems := make([]remainder, len(shares))
	given := 0
	for i, s := range shares {
		ideal := s * float64(total)
		out[i] = int(math.Floor(ideal))
		given += out[i]
		rems[i] = remainder{idx: i, frac: ideal - float64(out[i])}
	}
	n := len(shares)
	start := ((first % n) + n) % n
	sort.SliceStable(rems, func(a, b int) bool {
		if rems[a].frac != rems[b].frac {
			return rems[a].frac > rems[b].frac
		}
		return (rems[a].idx-start+n)%n < (rems[b].idx-start+n)%n
	})
	for i := len(out) - 1; given > total && i >= 0; i-- {
		if out[i] > 0 {
			out[i]--
			given--
		}
	}
	for i := 0; given < total; i++ {
		out[rems[i%len(rems)].idx]++
		given++
	}
	return out
}
