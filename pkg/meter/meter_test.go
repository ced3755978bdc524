package meter

import (
	"context"
	"testing"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOpts(t *testing.T) types.Options {
	loc, err := time.LoadLocation("America/Montevideo")
	require.NoError(t, err)
	return types.Options{
		Tariff:      types.TariffTRS,
		LocationPtr: loc,
		Prices:      types.DefaultPriceTable(),
	}
}

func at(t *testing.T, value string) time.Time {
	loc, err := time.LoadLocation("America/Montevideo")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func f(v float64) *float64 { return &v }

func TestUpdateBaseline(t *testing.T) {
	ctx := context.Background()
	opts := testOpts(t)
	a := New()

	// the first reading only establishes the baseline
	state := a.Update(ctx, f(500), at(t, "2026-03-02 10:00"), opts)
	require.NotNil(t, state.LastReadingKWH)
	assert.Equal(t, 500.0, *state.LastReadingKWH)
	assert.Zero(t, state.KWHToday)
	assert.Zero(t, state.CostToday)

	// next reading bills the delta
	state = a.Update(ctx, f(510), at(t, "2026-03-02 10:30"), opts)
	assert.InDelta(t, 10.0, state.KWHToday, 1e-9)
	assert.InDelta(t, 10.0, state.KWHMonth, 1e-9)
	assert.InDelta(t, 10*6.744, state.CostToday, 1e-9)
	assert.InDelta(t, 10*6.744, state.CostMonth, 1e-9)

	// unchanged register is a no-op
	state = a.Update(ctx, f(510), at(t, "2026-03-02 11:00"), opts)
	assert.InDelta(t, 10.0, state.KWHToday, 1e-9)
	assert.InDelta(t, 10*6.744, state.CostToday, 1e-9)
}

func TestUpdateUnavailable(t *testing.T) {
	ctx := context.Background()
	opts := testOpts(t)
	a := New()

	a.Update(ctx, f(500), at(t, "2026-03-02 10:00"), opts)
	a.Update(ctx, f(520), at(t, "2026-03-02 10:30"), opts)

	// nil reading advances the timestamp but nothing else
	state := a.Update(ctx, nil, at(t, "2026-03-02 11:00"), opts)
	assert.Equal(t, at(t, "2026-03-02 11:00"), state.LastUpdateTS)
	require.NotNil(t, state.LastReadingKWH)
	assert.Equal(t, 520.0, *state.LastReadingKWH)
	assert.InDelta(t, 20.0, state.KWHToday, 1e-9)

	// and the baseline still works afterwards
	state = a.Update(ctx, f(525), at(t, "2026-03-02 11:30"), opts)
	assert.InDelta(t, 25.0, state.KWHToday, 1e-9)
}

func TestUpdateImplausibleDelta(t *testing.T) {
	ctx := context.Background()
	opts := testOpts(t)
	opts.MaxDeltaKWH = 100
	a := New()

	a.Update(ctx, f(500), at(t, "2026-03-02 10:00"), opts)
	a.Update(ctx, f(510), at(t, "2026-03-02 10:30"), opts)

	// meter swap: register goes backwards, delta discarded, baseline resynced
	state := a.Update(ctx, f(100), at(t, "2026-03-02 11:00"), opts)
	assert.InDelta(t, 10.0, state.KWHToday, 1e-9)
	require.NotNil(t, state.LastReadingKWH)
	assert.Equal(t, 100.0, *state.LastReadingKWH)

	// glitch: delta above the ceiling, also discarded
	state = a.Update(ctx, f(900), at(t, "2026-03-02 11:30"), opts)
	assert.InDelta(t, 10.0, state.KWHToday, 1e-9)
	assert.Equal(t, 900.0, *state.LastReadingKWH)

	// normal deltas resume from the new baseline
	state = a.Update(ctx, f(905), at(t, "2026-03-02 12:00"), opts)
	assert.InDelta(t, 15.0, state.KWHToday, 1e-9)
}

func TestUpdateDayRollover(t *testing.T) {
	ctx := context.Background()
	opts := testOpts(t)
	a := New()

	a.Update(ctx, f(500), at(t, "2026-03-02 23:00"), opts)
	a.Update(ctx, f(520), at(t, "2026-03-02 23:30"), opts)

	// crossing local midnight resets the day but not the month
	state := a.Update(ctx, f(530), at(t, "2026-03-03 00:15"), opts)
	assert.InDelta(t, 10.0, state.KWHToday, 1e-9)
	assert.InDelta(t, 30.0, state.KWHMonth, 1e-9)
	assert.InDelta(t, 10*6.744, state.CostToday, 1e-9)
	assert.InDelta(t, 30*6.744, state.CostMonth, 1e-9)
	assert.Equal(t, "2026-03-03", state.DayKey)
}

func TestUpdateMonthRollover(t *testing.T) {
	ctx := context.Background()
	opts := testOpts(t)
	a := New()

	a.Update(ctx, f(500), at(t, "2026-03-31 23:00"), opts)
	a.Update(ctx, f(520), at(t, "2026-03-31 23:30"), opts)

	state := a.Update(ctx, f(530), at(t, "2026-04-01 00:15"), opts)
	assert.InDelta(t, 10.0, state.KWHToday, 1e-9)
	assert.InDelta(t, 10.0, state.KWHMonth, 1e-9)
	assert.Equal(t, "2026-04-01", state.MonthKey)

	// breakdown restarts with the new month's energy only
	assert.InDelta(t, 10.0, state.Breakdown["tier1"].KWH, 1e-9)
}

func TestUpdateTieredBreakdown(t *testing.T) {
	ctx := context.Background()
	opts := testOpts(t)
	a := New()

	a.Update(ctx, f(1000), at(t, "2026-03-02 10:00"), opts)
	state := a.Update(ctx, f(1150), at(t, "2026-03-02 12:00"), opts)

	// 150 kWh this month: 100 in tier 1, 50 in tier 2
	assert.InDelta(t, 100.0, state.Breakdown["tier1"].KWH, 1e-9)
	assert.InDelta(t, 50.0, state.Breakdown["tier2"].KWH, 1e-9)
	assert.InDelta(t, 100*6.744+50*8.452, state.CostMonth, 1e-9)
}

func TestUpdateTimeOfUse(t *testing.T) {
	ctx := context.Background()
	opts := testOpts(t)
	opts.Tariff = types.TariffTRD
	a := New()

	// Monday: baseline offpeak, 10 kWh offpeak, 5 kWh peak
	a.Update(ctx, f(500), at(t, "2026-03-02 10:00"), opts)
	a.Update(ctx, f(510), at(t, "2026-03-02 12:00"), opts)
	state := a.Update(ctx, f(515), at(t, "2026-03-02 19:00"), opts)

	assert.InDelta(t, 15.0, state.KWHMonth, 1e-9)
	assert.InDelta(t, 10*4.771+5*12.034, state.CostMonth, 1e-9)
	assert.InDelta(t, 10.0, state.Breakdown["offpeak"].KWH, 1e-9)
	assert.InDelta(t, 5.0, state.Breakdown["peak"].KWH, 1e-9)
	assert.InDelta(t, 5*12.034, state.Breakdown["peak"].Cost, 1e-9)
}

func TestNewFromState(t *testing.T) {
	ctx := context.Background()
	opts := testOpts(t)
	a := New()

	a.Update(ctx, f(500), at(t, "2026-03-02 10:00"), opts)
	persisted := a.Update(ctx, f(520), at(t, "2026-03-02 11:00"), opts)

	// resuming from the snapshot continues the same day and month
	b := NewFromState(persisted)
	state := b.Update(ctx, f(530), at(t, "2026-03-02 12:00"), opts)
	assert.InDelta(t, 30.0, state.KWHToday, 1e-9)
	assert.InDelta(t, 30.0, state.KWHMonth, 1e-9)
}

func TestSnapshotIsolated(t *testing.T) {
	ctx := context.Background()
	opts := testOpts(t)
	a := New()

	a.Update(ctx, f(1000), at(t, "2026-03-02 10:00"), opts)
	a.Update(ctx, f(1050), at(t, "2026-03-02 11:00"), opts)

	snap := a.Snapshot()
	snap.Breakdown["tier1"] = types.PeriodTotals{KWH: 999}

	// mutating the snapshot must not leak back into the accumulator
	assert.InDelta(t, 50.0, a.Snapshot().Breakdown["tier1"].KWH, 1e-9)
}
