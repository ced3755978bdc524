package tariff

import (
	"fmt"

	"github.com/Gfacello/ute-energy-cost/pkg/types"
)

// CostForDelta prices an incremental consumption against the progressive tier
// schedule, given the cumulative total already billed this cycle. The delta
// is split across tier boundaries so every kWh is billed at the price of the
// tier it falls into; the energy billed always sums to exactly the delta.
func CostForDelta(prevTotalKWH, deltaKWH float64, sched types.TieredSchedule) float64 {
	if deltaKWH <= 0 || len(sched.Tiers) == 0 {
		return 0
	}

	remaining := deltaKWH
	currentTotal := prevTotalKWH
	var cost float64

	for _, tier := range sched.Tiers {
		if remaining <= 0 {
			break
		}
		if tier.UpperKWH == nil {
			cost += remaining * tier.PriceKWH
			remaining = 0
			break
		}
		// exhausted tier; the cumulative total never moves backwards
		span := *tier.UpperKWH - currentTotal
		if span <= 0 {
			continue
		}
		take := remaining
		if span < take {
			take = span
		}
		cost += take * tier.PriceKWH
		remaining -= take
		currentTotal += take
	}

	// a schedule whose last tier is bounded shouldn't validate, but never
	// drop energy if one slips through
	if remaining > 0 {
		cost += remaining * sched.Tiers[len(sched.Tiers)-1].PriceKWH
	}
	return cost
}

// MarginalPrice returns the unit price of the tier the cumulative total
// currently falls into.
func MarginalPrice(totalKWH float64, sched types.TieredSchedule) float64 {
	if len(sched.Tiers) == 0 {
		return 0
	}
	for _, tier := range sched.Tiers {
		if tier.UpperKWH == nil || totalKWH <= *tier.UpperKWH {
			return tier.PriceKWH
		}
	}
	return sched.Tiers[len(sched.Tiers)-1].PriceKWH
}

// TierBreakdown splits the cumulative total to date across the tiers. It is
// recomputed from scratch on every call rather than accumulated, so it can
// never drift from the month total.
func TierBreakdown(totalKWH float64, sched types.TieredSchedule) map[string]types.PeriodTotals {
	out := make(map[string]types.PeriodTotals, len(sched.Tiers))
	var prevBound float64
	for i, tier := range sched.Tiers {
		var energy float64
		if tier.UpperKWH == nil {
			energy = totalKWH - prevBound
		} else {
			capped := totalKWH
			if *tier.UpperKWH < capped {
				capped = *tier.UpperKWH
			}
			energy = capped - prevBound
			prevBound = *tier.UpperKWH
		}
		if energy < 0 {
			energy = 0
		}
		out[fmt.Sprintf("tier%d", i+1)] = types.PeriodTotals{
			KWH:  energy,
			Cost: energy * tier.PriceKWH,
		}
	}
	return out
}
