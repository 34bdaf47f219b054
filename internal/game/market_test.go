package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offer(id string, price float64, quality, marketing, available int) Offer {
	return Offer{FirmID: id, Price: price, Quality: quality, Marketing: marketing, Available: available}
}

func TestResolveNoFirms(t *testing.T) {
	res := NewResolver(DefaultConfig()).Resolve(nil, 1)
	assert.Zero(t, res.TotalDemand)
	assert.Empty(t, res.Allocations)
}

func TestResolveSplitNeverExceedsTotal(t *testing.T) {
	r := NewResolver(DefaultConfig())
	markets := [][]Offer{
		{offer("a", 20, 3, 1, 1000), offer("b", 18, 5, 4, 1000), offer("c", 25, 8, 2, 1000)},
		{offer("a", 12, 3, 1, 5), offer("b", 18, 5, 4, 1000)},
		{offer("a", 9, 10, 10, 0), offer("b", 40, 1, 1, 3), offer("c", 14, 6, 6, 50)},
		{offer("solo", 16, 5, 5, 10_000)},
	}
	for i, offers := range markets {
		for _, mult := range []float64{0, 0.5, 1, 1.37, 2.4} {
			res := r.Resolve(offers, mult)
			sold := res.UnitsSold()
			require.LessOrEqual(t, sold, res.TotalDemand, "market %d mult %v", i, mult)

			constrained := false
			for _, a := range res.Allocations {
				assert.LessOrEqual(t, a.UnitsSold, a.Demand)
				constrained = constrained || a.Constrained
			}
			if !constrained {
				assert.Equal(t, res.TotalDemand, sold, "market %d mult %v", i, mult)
			}
			assert.Equal(t, res.TotalDemand-sold, res.LostDemand)
		}
	}
}

func TestResolveLostDemandIsNotRedistributed(t *testing.T) {
	r := NewResolver(DefaultConfig())
	open := r.Resolve([]Offer{offer("a", 16, 5, 5, 1000), offer("b", 16, 5, 5, 1000)}, 1)
	short := r.Resolve([]Offer{offer("a", 16, 5, 5, 3), offer("b", 16, 5, 5, 1000)}, 1)

	assert.Equal(t, open.TotalDemand, short.TotalDemand, "availability does not move demand")
	assert.Equal(t, open.Allocations[1].UnitsSold, short.Allocations[1].UnitsSold)
	assert.Equal(t, 3, short.Allocations[0].UnitsSold)
	assert.Equal(t, short.Allocations[0].Demand-3, short.LostDemand)
}

func TestResolveShareMonotonicity(t *testing.T) {
	cfg := DefaultConfig()
	r := NewResolver(cfg)
	rivals := []Offer{offer("b", 18, 5, 4, 1000), offer("c", 22, 6, 2, 1000)}
	base := offer("a", 20, 4, 3, 1000)

	share := func(o Offer) float64 {
		res := r.Resolve(append([]Offer{o}, rivals...), 1)
		return res.Allocations[0].Share
	}

	prev := share(base)
	for price := 19.0; price >= 10; price-- {
		o := base
		o.Price = price
		cur := share(o)
		assert.GreaterOrEqual(t, cur, prev, "lower price %v", price)
		prev = cur
	}

	prev = share(base)
	for q := base.Quality + 1; q <= MaxLevel; q++ {
		o := base
		o.Quality = q
		cur := share(o)
		assert.GreaterOrEqual(t, cur, prev, "quality %d", q)
		prev = cur
	}

	prev = share(base)
	for m := base.Marketing + 1; m <= MaxLevel; m++ {
		o := base
		o.Marketing = m
		cur := share(o)
		assert.GreaterOrEqual(t, cur, prev, "marketing %d", m)
		prev = cur
	}
}

func TestResolveEqualFirmSymmetry(t *testing.T) {
	for _, sensitivity := range []float64{0, 0.25, 0.75, 1, 2.5} {
		for _, n := range []int{2, 3, 4, 7} {
			t.Run(fmt.Sprintf("cs=%v/n=%d", sensitivity, n), func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.CompetitionSensitivity = sensitivity
				var offers []Offer
				for i := 0; i < n; i++ {
					offers = append(offers, offer(fmt.Sprint(i), 17, 6, 3, 10_000))
				}
				res := NewResolver(cfg).Resolve(offers, 1)
				require.Len(t, res.Allocations, n)
				lo, hi := res.Allocations[0].UnitsSold, res.Allocations[0].UnitsSold
				for _, a := range res.Allocations {
					assert.InDelta(t, 1/float64(n), a.Share, 1e-12)
					lo = min(lo, a.UnitsSold)
					hi = max(hi, a.UnitsSold)
				}
				assert.LessOrEqual(t, hi-lo, 1, "whole units differ by at most the remainder")
				assert.Equal(t, res.TotalDemand, res.UnitsSold())
			})
		}
	}
}

func TestResolveZeroSensitivitySplitsEqually(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CompetitionSensitivity = 0
	res := NewResolver(cfg).Resolve([]Offer{
		offer("cheap", 9, 9, 9, 10_000),
		offer("dear", 40, 1, 1, 10_000),
	}, 1)
	assert.InDelta(t, 0.5, res.Allocations[0].Share, 1e-12)
	assert.InDelta(t, 0.5, res.Allocations[1].Share, 1e-12)
}

func TestResolveIsIdempotent(t *testing.T) {
	r := NewResolver(DefaultConfig())
	offers := []Offer{offer("a", 19.5, 4, 2, 37), offer("b", 15, 3, 6, 400), offer("c", 30, 9, 9, 0)}
	first := r.Resolve(offers, 1.13)
	second := r.Resolve(offers, 1.13)
	assert.Equal(t, first, second)
}

func TestResolveZeroAvailabilityStillCountsTowardDemand(t *testing.T) {
	r := NewResolver(DefaultConfig())
	withEmpty := r.Resolve([]Offer{offer("a", 16, 5, 5, 100), offer("b", 10, 10, 10, 0)}, 1)
	alone := r.Resolve([]Offer{offer("a", 16, 5, 5, 100)}, 1)

	assert.Zero(t, withEmpty.Allocations[1].UnitsSold)
	assert.Greater(t, withEmpty.Allocations[1].Demand, 0)
	assert.NotEqual(t, alone.TotalDemand, withEmpty.TotalDemand)
}

func TestResolveTotalDemand(t *testing.T) {
	cfg := DefaultConfig()
	r := NewResolver(cfg)

	res := r.Resolve([]Offer{offer("a", 16, 5, 5, 1000)}, 1)
	assert.Equal(t, int(cfg.BaseDemand), res.TotalDemand, "baseline firm at the reference price meets base demand")

	res = r.Resolve([]Offer{offer("a", 16, 5, 5, 1000)}, 1.5)
	assert.Equal(t, 300, res.TotalDemand)

	res = r.Resolve([]Offer{offer("a", 16, 5, 5, 1000)}, -2)
	assert.Zero(t, res.TotalDemand)

	cheap := r.Resolve([]Offer{offer("a", 12, 5, 5, 1000)}, 1)
	dear := r.Resolve([]Offer{offer("a", 24, 5, 5, 1000)}, 1)
	assert.Greater(t, cheap.TotalDemand, dear.TotalDemand)
}

func TestResolveRelativeAnchor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DemandReferencePrice = 0
	r := NewResolver(cfg)
	cheap := r.Resolve([]Offer{offer("a", 12, 5, 5, 1000)}, 1)
	dear := r.Resolve([]Offer{offer("a", 24, 5, 5, 1000)}, 1)
	assert.Equal(t, cheap.TotalDemand, dear.TotalDemand, "a solo firm is its own reference")
}

func TestSplitUnits(t *testing.T) {
	third := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	tests := []struct {
		total  int
		shares []float64
		first  int
		want   []int
	}{
		{total: 10, shares: []float64{0.5, 0.5}, want: []int{5, 5}},
		{total: 10, shares: third, want: []int{4, 3, 3}},
		{total: 10, shares: third, first: 1, want: []int{3, 4, 3}},
		{total: 11, shares: third, first: 2, want: []int{4, 3, 4}},
		{total: 10, shares: third, first: 5, want: []int{3, 3, 4}},
		{total: 10, shares: third, first: -1, want: []int{3, 3, 4}},
		{total: 7, shares: []float64{0.15, 0.85}, first: 1, want: []int{1, 6}},
		{total: 0, shares: []float64{0.2, 0.8}, want: []int{0, 0}},
		{total: 3, shares: nil, want: []int{}},
	}
	for _, tc := range tests {
		got := splitUnits(tc.total, tc.shares, tc.first)
		assert.Equal(t, tc.want, got, "total=%d shares=%v first=%d", tc.total, tc.shares, tc.first)
	}
}

func TestResolveRotatesTies(t *testing.T) {
	r := NewResolver(DefaultConfig())
	offers := []Offer{
		offer("player", 20, 5, 5, 1_000_000),
		offer("rival", 20, 5, 5, 1_000_000),
	}
	// Find a multiplier that leaves one unit to hand out.
	mult := 1.0
	base := r.Resolve(offers, mult)
	for base.TotalDemand%2 == 0 {
		mult += 0.001
		base = r.Resolve(offers, mult)
	}
	winners := map[string]int{}
	for turn := 0; turn < 4; turn++ {
		res := r.Rotated(turn).Resolve(offers, mult)
		require.Equal(t, base.TotalDemand, res.TotalDemand)
		a, b := res.Allocations[0], res.Allocations[1]
		assert.Equal(t, 1, abs(a.UnitsSold-b.UnitsSold))
		if a.UnitsSold > b.UnitsSold {
			winners[a.FirmID]++
		} else {
			winners[b.FirmID]++
		}
	}
	assert.Equal(t, map[string]int{"player": 2, "rival": 2}, winners)
	assert.Equal(t, base, r.Rotated(0).Resolve(offers, mult))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
