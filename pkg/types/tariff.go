package types

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// TariffKind identifies one of the supported UTE residential tariff plans.
type TariffKind string

const (
	// TariffTRS is the simple residential tariff: the unit price climbs in
	// steps as the cumulative monthly consumption crosses tier thresholds.
	TariffTRS TariffKind = "TRS"
	// TariffTRD is the two-period ("doble horario") time-of-use tariff.
	TariffTRD TariffKind = "TRD"
	// TariffTRT is the three-period ("triple horario") time-of-use tariff.
	TariffTRT TariffKind = "TRT"
)

// Valid reports whether the kind is one of the supported tariffs.
func (k TariffKind) Valid() bool {
	switch k {
	case TariffTRS, TariffTRD, TariffTRT:
		return true
	}
	return false
}

// TimeOfUse reports whether the tariff prices consumption by time period
// rather than by cumulative tiers.
func (k TariffKind) TimeOfUse() bool {
	return k == TariffTRD || k == TariffTRT
}

// PriceMode selects which derived price is reported as the headline price.
type PriceMode string

const (
	PriceModeMarginal PriceMode = "marginal"
	PriceModeAverage  PriceMode = "average"
	PriceModeBillLike PriceMode = "bill_like"
)

// Billing period names produced by the classifier.
const (
	PeriodPeak    = "peak"
	PeriodOffpeak = "offpeak"
	PeriodValley  = "valley"
	PeriodFlat    = "flat"
	// PeriodTiers is the single constant label used for the tiered tariff,
	// which has no time dependence.
	PeriodTiers = "tiers"
)

// PeriodInfo is the result of classifying an instant against a tariff.
// It is recomputed per query and never persisted.
type PeriodInfo struct {
	Period           string `json:"period"`
	IsPeak           bool   `json:"isPeak"`
	IsNonBusinessDay bool   `json:"isNonBusinessDay"`
}

// Tier is one step of a progressive schedule. A nil UpperKWH marks the final
// unbounded tier.
type Tier struct {
	UpperKWH *float64 `json:"upperKWH" yaml:"upperKWH"`
	PriceKWH float64  `json:"priceKWH" yaml:"priceKWH"`
}

// TieredSchedule is the price table for the tiered-progressive tariff.
type TieredSchedule struct {
	Tiers            []Tier  `json:"tiers" yaml:"tiers"`
	FixedChargeMonth float64 `json:"fixedChargeMonth" yaml:"fixedChargeMonth"`
	PowerChargePerKW float64 `json:"powerChargePerKW" yaml:"powerChargePerKW"`
}

// Validate checks the tier invariants: at least one tier, strictly increasing
// bounds, exactly one unbounded tier and it must be last.
func (s TieredSchedule) Validate() error {
	if len(s.Tiers) == 0 {
		return fmt.Errorf("tiered schedule has no tiers")
	}
	var prev float64
	for i, tier := range s.Tiers {
		if tier.PriceKWH < 0 {
			return fmt.Errorf("tier %d has negative price %f", i+1, tier.PriceKWH)
		}
		if tier.UpperKWH == nil {
			if i != len(s.Tiers)-1 {
				return fmt.Errorf("unbounded tier %d must be last", i+1)
			}
			continue
		}
		if *tier.UpperKWH <= 0 {
			return fmt.Errorf("tier %d has non-positive bound %f", i+1, *tier.UpperKWH)
		}
		if i > 0 && *tier.UpperKWH <= prev {
			return fmt.Errorf("tier %d bound %f not above previous bound %f", i+1, *tier.UpperKWH, prev)
		}
		prev = *tier.UpperKWH
	}
	if last := s.Tiers[len(s.Tiers)-1]; last.UpperKWH != nil {
		return fmt.Errorf("last tier must be unbounded")
	}
	if s.FixedChargeMonth < 0 || s.PowerChargePerKW < 0 {
		return fmt.Errorf("tiered schedule has negative charges")
	}
	return nil
}

// TOUSchedule is the price table for a time-of-use tariff: one unit price per
// period name plus the fixed and contracted-power charges.
type TOUSchedule struct {
	RatesKWH         map[string]float64 `json:"ratesKWH" yaml:"ratesKWH"`
	FixedChargeMonth float64            `json:"fixedChargeMonth" yaml:"fixedChargeMonth"`
	PowerChargePerKW float64            `json:"powerChargePerKW" yaml:"powerChargePerKW"`
}

// Validate checks that the required periods are present with non-negative
// prices.
func (s TOUSchedule) Validate(periods ...string) error {
	for _, p := range periods {
		rate, ok := s.RatesKWH[p]
		if !ok {
			return fmt.Errorf("missing rate for period %q", p)
		}
		if rate < 0 {
			return fmt.Errorf("negative rate %f for period %q", rate, p)
		}
	}
	for p, rate := range s.RatesKWH {
		if rate < 0 {
			return fmt.Errorf("negative rate %f for period %q", rate, p)
		}
	}
	if s.FixedChargeMonth < 0 || s.PowerChargePerKW < 0 {
		return fmt.Errorf("tou schedule has negative charges")
	}
	return nil
}

// PriceTable carries the schedules for every supported tariff kind.
type PriceTable struct {
	TRS TieredSchedule `json:"TRS" yaml:"TRS"`
	TRD TOUSchedule    `json:"TRD" yaml:"TRD"`
	TRT TOUSchedule    `json:"TRT" yaml:"TRT"`
}

// Validate checks every schedule in the table.
func (t PriceTable) Validate() error {
	if err := t.TRS.Validate(); err != nil {
		return fmt.Errorf("TRS: %w", err)
	}
	if err := t.TRD.Validate(PeriodPeak, PeriodOffpeak); err != nil {
		return fmt.Errorf("TRD: %w", err)
	}
	if err := t.TRT.Validate(PeriodPeak, PeriodFlat, PeriodValley); err != nil {
		return fmt.Errorf("TRT: %w", err)
	}
	return nil
}

// TOUFor returns the time-of-use schedule for the kind, if it has one.
func (t PriceTable) TOUFor(kind TariffKind) (TOUSchedule, bool) {
	switch kind {
	case TariffTRD:
		return t.TRD, true
	case TariffTRT:
		return t.TRT, true
	}
	return TOUSchedule{}, false
}

// ChargesFor returns the monthly fixed charge and the per-kW contracted power
// charge for the kind.
func (t PriceTable) ChargesFor(kind TariffKind) (fixed, perKW float64) {
	switch kind {
	case TariffTRD:
		return t.TRD.FixedChargeMonth, t.TRD.PowerChargePerKW
	case TariffTRT:
		return t.TRT.FixedChargeMonth, t.TRT.PowerChargePerKW
	default:
		return t.TRS.FixedChargeMonth, t.TRS.PowerChargePerKW
	}
}

// DecodePriceTable parses a price table override from YAML (JSON is a YAML
// subset, so JSON overrides work too) and validates it. Callers are expected
// to fall back to DefaultPriceTable on error.
func DecodePriceTable(raw []byte) (PriceTable, error) {
	var t PriceTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return PriceTable{}, fmt.Errorf("failed to parse price table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return PriceTable{}, fmt.Errorf("invalid price table: %w", err)
	}
	return t, nil
}

func kwh(v float64) *float64 { return &v }

// DefaultPriceTable returns the built-in UTE residential price table
// (pesos per kWh, pesos per month, pesos per contracted kW).
func DefaultPriceTable() PriceTable {
	return PriceTable{
		TRS: TieredSchedule{
			Tiers: []Tier{
				{UpperKWH: kwh(100), PriceKWH: 6.744},
				{UpperKWH: kwh(600), PriceKWH: 8.452},
				{UpperKWH: nil, PriceKWH: 10.539},
			},
			FixedChargeMonth: 324.9,
			PowerChargePerKW: 83.2,
		},
		TRD: TOUSchedule{
			RatesKWH: map[string]float64{
				PeriodOffpeak: 4.771,
				PeriodPeak:    12.034,
			},
			FixedChargeMonth: 488.0,
			PowerChargePerKW: 83.2,
		},
		TRT: TOUSchedule{
			RatesKWH: map[string]float64{
				PeriodValley: 2.443,
				PeriodFlat:   5.172,
				PeriodPeak:   12.034,
			},
			FixedChargeMonth: 488.0,
			PowerChargePerKW: 83.2,
		},
	}
}

// PeakWindow is the peak interval on business days, inclusive of StartHour
// and exclusive of EndHour.
type PeakWindow struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// DefaultPeakWindow is used when an unrecognized window string is configured.
var DefaultPeakWindow = PeakWindow{StartHour: 18, EndHour: 22}

// peakWindows is the small set of windows UTE actually offers.
var peakWindows = map[string]PeakWindow{
	"17-21": {StartHour: 17, EndHour: 21},
	"18-22": {StartHour: 18, EndHour: 22},
	"19-23": {StartHour: 19, EndHour: 23},
}

// ParsePeakWindow maps a window string like "18-22" to its hours. An
// unrecognized value falls back to DefaultPeakWindow rather than failing.
func ParsePeakWindow(s string) PeakWindow {
	if w, ok := peakWindows[s]; ok {
		return w
	}
	return DefaultPeakWindow
}

// PeakWindowStrings lists the recognized window strings, sorted.
func PeakWindowStrings() []string {
	out := make([]string, 0, len(peakWindows))
	for s := range peakWindows {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// String formats the window in the same form ParsePeakWindow accepts.
func (w PeakWindow) String() string {
	return fmt.Sprintf("%d-%d", w.StartHour, w.EndHour)
}

// HolidayPolicy controls whether configured dates count as non-business days
// in addition to weekends.
type HolidayPolicy struct {
	Enabled bool     `json:"enabled"`
	Dates   []string `json:"dates,omitempty"`
}

// IsHoliday reports whether the ISO date (2006-01-02) is in the set. Always
// false when the policy is disabled.
func (p HolidayPolicy) IsHoliday(isoDate string) bool {
	if !p.Enabled {
		return false
	}
	for _, d := range p.Dates {
		if d == isoDate {
			return true
		}
	}
	return false
}

// DefaultHolidays2026 are the non-working Uruguayan public holidays for 2026,
// used when holidays are enabled without an explicit list.
var DefaultHolidays2026 = []string{
	"2026-01-01",
	"2026-05-01",
	"2026-07-18",
	"2026-08-25",
	"2026-12-25",
}
