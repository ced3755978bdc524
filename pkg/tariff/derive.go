package tariff

import (
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/types"
)

// PriceNow returns the unit price a marginal kWh would cost right now: the
// marginal tier price for the tiered tariff, or the active period's rate for
// time-of-use tariffs. Nil when the schedule has no rate for the period.
func PriceNow(state types.MeterState, now time.Time, opts types.Options) *float64 {
	if !opts.Tariff.TimeOfUse() {
		p := MarginalPrice(state.KWHMonth, opts.Prices.TRS)
		return &p
	}

	sched, ok := opts.Prices.TOUFor(opts.Tariff)
	if !ok {
		return nil
	}
	info := Classify(opts.Tariff, now, opts)
	rate, ok := sched.RatesKWH[info.Period]
	if !ok {
		return nil
	}
	return &rate
}

// AveragePrice is the simple cost-over-energy average for the current month.
// Nil while no energy has accumulated; that signals "no data yet", not an
// error.
func AveragePrice(state types.MeterState) *float64 {
	if state.KWHMonth <= 0 {
		return nil
	}
	avg := state.CostMonth / state.KWHMonth
	return &avg
}

// EffectivePrice is the bill-like unit price: the month's energy cost plus
// the optional fixed and contracted-power charges, optionally taxed, divided
// by the month's energy. Nil while no energy has accumulated.
func EffectivePrice(state types.MeterState, opts types.Options) *float64 {
	if state.KWHMonth <= 0 {
		return nil
	}

	energyCost := state.CostMonth
	fixedCharge, perKW := opts.Prices.ChargesFor(opts.Tariff)

	var fixed, power float64
	if opts.IncludeFixed {
		fixed = fixedCharge
	}
	if opts.IncludePower {
		power = perKW * opts.ContractedPowerKW
	}

	if opts.IncludeVAT {
		energyCost *= 1 + opts.VATRate
		if opts.ApplyVATToFixed {
			fixed *= 1 + opts.VATRate
			power *= 1 + opts.VATRate
		}
	}

	eff := (energyCost + fixed + power) / state.KWHMonth
	return &eff
}

// HeadlinePrice picks the derived price selected by the configured mode.
func HeadlinePrice(state types.MeterState, now time.Time, opts types.Options) *float64 {
	switch opts.Mode {
	case types.PriceModeAverage:
		return AveragePrice(state)
	case types.PriceModeBillLike:
		return EffectivePrice(state, opts)
	default:
		return PriceNow(state, now, opts)
	}
}
