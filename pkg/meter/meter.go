package meter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/log"
	"github.com/Gfacello/ute-energy-cost/pkg/tariff"
	"github.com/Gfacello/ute-energy-cost/pkg/types"
)

const isoDate = "2006-01-02"

// Accumulator owns the running daily and monthly totals for a single meter.
// Exactly one update stream feeds it; Update calls are serialized internally
// and must not be duplicated across instances sharing the same stored state.
type Accumulator struct {
	mu    sync.Mutex
	state types.MeterState
}

// New returns an empty accumulator: all totals zero, no baseline reading.
func New() *Accumulator {
	return &Accumulator{}
}

// NewFromState resumes from a previously persisted snapshot.
func NewFromState(state types.MeterState) *Accumulator {
	return &Accumulator{state: state.Clone()}
}

// Snapshot returns a consistent copy of the current state. Derived-price
// functions should compute on this copy, never on live fields.
func (a *Accumulator) Snapshot() types.MeterState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Update applies one raw meter reading at the given instant and returns the
// updated snapshot for the caller to persist. A nil reading means the source
// was unavailable; only the last-update timestamp advances. No condition in
// here is an error to the caller: implausible deltas are discarded with a
// baseline resync and a warning.
func (a *Accumulator) Update(ctx context.Context, reading *float64, now time.Time, opts types.Options) types.MeterState {
	a.mu.Lock()
	defer a.mu.Unlock()

	local := now.In(opts.Loc())
	a.rollover(ctx, local)
	a.state.LastUpdateTS = local

	if reading == nil {
		log.Ctx(ctx).DebugContext(ctx, "reading unavailable, totals unchanged")
		readingsUnavailable.Inc()
		return a.state.Clone()
	}
	current := *reading

	var delta float64
	if a.state.LastReadingKWH != nil {
		delta = current - *a.state.LastReadingKWH
	}

	if delta < 0 || delta > opts.MaxDelta() {
		log.Ctx(ctx).WarnContext(ctx, "implausible energy delta, resyncing baseline",
			slog.Float64("last", deref(a.state.LastReadingKWH)),
			slog.Float64("current", current),
			slog.Float64("delta", delta),
			slog.Float64("maxDelta", opts.MaxDelta()),
		)
		deltasDiscarded.Inc()
		delta = 0
	}

	if delta > 0 {
		a.applyDelta(ctx, delta, local, opts)
	}

	a.state.LastReadingKWH = &current
	updatesApplied.Inc()
	costMonthGauge.Set(a.state.CostMonth)
	kwhMonthGauge.Set(a.state.KWHMonth)

	return a.state.Clone()
}

// rollover zeroes the daily and monthly totals when the local calendar day or
// month changed since the stored watermarks. The two checks are independent
// and idempotent.
func (a *Accumulator) rollover(ctx context.Context, local time.Time) {
	dayKey := local.Format(isoDate)
	monthKey := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location()).Format(isoDate)

	if a.state.DayKey != dayKey {
		if a.state.DayKey != "" {
			log.Ctx(ctx).InfoContext(ctx, "daily rollover",
				slog.String("from", a.state.DayKey), slog.String("to", dayKey))
			rollovers.WithLabelValues("day").Inc()
		}
		a.state.KWHToday = 0
		a.state.CostToday = 0
		a.state.DayKey = dayKey
	}

	if a.state.MonthKey != monthKey {
		if a.state.MonthKey != "" {
			log.Ctx(ctx).InfoContext(ctx, "monthly rollover",
				slog.String("from", a.state.MonthKey), slog.String("to", monthKey))
			rollovers.WithLabelValues("month").Inc()
		}
		a.state.KWHMonth = 0
		a.state.CostMonth = 0
		a.state.Breakdown = nil
		a.state.MonthKey = monthKey
	}
}

// applyDelta routes the incremental consumption to tiered or time-of-use
// costing and keeps the per-label breakdown.
//
// The two breakdown refresh strategies are deliberately different: the tier
// breakdown is a pure function of the month total and gets recomputed from
// scratch, while the time-of-use breakdown is a genuine running sum across
// differently-priced periods and accumulates in place.
func (a *Accumulator) applyDelta(ctx context.Context, delta float64, local time.Time, opts types.Options) {
	prevMonth := a.state.KWHMonth
	a.state.KWHToday += delta
	a.state.KWHMonth += delta

	if !opts.Tariff.TimeOfUse() {
		cost := tariff.CostForDelta(prevMonth, delta, opts.Prices.TRS)
		a.state.CostToday += cost
		a.state.CostMonth += cost
		a.state.Breakdown = tariff.TierBreakdown(a.state.KWHMonth, opts.Prices.TRS)
		return
	}

	info := tariff.Classify(opts.Tariff, local, opts)
	sched, _ := opts.Prices.TOUFor(opts.Tariff)
	rate, ok := sched.RatesKWH[info.Period]
	if !ok {
		// a validated schedule always has the period; count the energy
		// unpriced rather than lose it
		log.Ctx(ctx).WarnContext(ctx, "no rate for period, energy counted unpriced",
			slog.String("period", info.Period), slog.String("tariff", string(opts.Tariff)))
	}
	cost := delta * rate
	a.state.CostToday += cost
	a.state.CostMonth += cost

	if a.state.Breakdown == nil {
		a.state.Breakdown = make(map[string]types.PeriodTotals)
	}
	totals := a.state.Breakdown[info.Period]
	totals.KWH += delta
	totals.Cost += cost
	a.state.Breakdown[info.Period] = totals
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
