package types

import "time"

// CurrentStateVersion is the current version of the persisted meter snapshot.
// Increment when adding fields that need migration or backfill.
const CurrentStateVersion = 1

// PeriodTotals is the energy/cost pair accumulated under one tier or period
// label within the current monthly cycle.
type PeriodTotals struct {
	KWH  float64 `json:"kwh"`
	Cost float64 `json:"cost"`
}

// MeterState is the accumulator snapshot that gets persisted after every
// update. Totals are reset at day/month boundaries; the breakdown is reset
// monthly. Costs are always derived from the energy totals and the active
// schedule, never set independently.
type MeterState struct {
	// LastReadingKWH is the last cumulative meter value seen. Nil until the
	// first valid reading establishes the baseline.
	LastReadingKWH *float64  `json:"lastReadingKWH,omitempty"`
	LastUpdateTS   time.Time `json:"lastUpdateTS"`

	// DayKey and MonthKey are the local-calendar watermarks used to detect
	// rollover (2006-01-02, first of month respectively).
	DayKey   string `json:"dayKey,omitempty"`
	MonthKey string `json:"monthKey,omitempty"`

	KWHToday  float64 `json:"kwhToday"`
	KWHMonth  float64 `json:"kwhMonth"`
	CostToday float64 `json:"costToday"`
	CostMonth float64 `json:"costMonth"`

	Breakdown map[string]PeriodTotals `json:"breakdown,omitempty"`
}

// Clone returns a deep copy so readers can compute on a consistent snapshot
// while the accumulator keeps mutating its own state.
func (s MeterState) Clone() MeterState {
	out := s
	if s.LastReadingKWH != nil {
		v := *s.LastReadingKWH
		out.LastReadingKWH = &v
	}
	if s.Breakdown != nil {
		out.Breakdown = make(map[string]PeriodTotals, len(s.Breakdown))
		for k, v := range s.Breakdown {
			out.Breakdown[k] = v
		}
	}
	return out
}
