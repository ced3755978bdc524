package types

import (
	"fmt"
	"time"
)

// DefaultTimezone is the IANA zone UTE bills against.
const DefaultTimezone = "America/Montevideo"

// DefaultMaxDeltaKWH is the ceiling above which a delta between successive
// readings is treated as a meter reset or glitch.
const DefaultMaxDeltaKWH = 100000.0

var montevideoLocation = func() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		panic(fmt.Errorf("failed to load montevideo location: %w", err))
	}
	return loc
}()

// Options is the immutable configuration bundle supplied to every core
// operation. The accumulator and the pricing functions hold no reference to
// live configuration; callers rebuild or reuse an Options value per call.
type Options struct {
	Tariff   TariffKind `json:"tariff"`
	Mode     PriceMode  `json:"mode"`
	Timezone string     `json:"timezone"`
	// LocationPtr, when set, takes precedence over Timezone.
	LocationPtr *time.Location `json:"-"`

	PeakWindow PeakWindow    `json:"peakWindow"`
	Holidays   HolidayPolicy `json:"holidays"`

	IncludeFixed      bool    `json:"includeFixedCharge"`
	IncludePower      bool    `json:"includePowerCharge"`
	ContractedPowerKW float64 `json:"contractedPowerKW"`
	IncludeVAT        bool    `json:"includeVAT"`
	VATRate           float64 `json:"vatRate"`
	ApplyVATToFixed   bool    `json:"applyVATToFixedCharge"`

	// MaxDeltaKWH caps the plausible consumption between two readings.
	// Zero means DefaultMaxDeltaKWH.
	MaxDeltaKWH float64 `json:"maxDeltaKWH"`

	Prices PriceTable `json:"prices"`
}

// Loc resolves the configured timezone. An unknown or empty zone falls back
// to the Montevideo default, never an error.
func (o Options) Loc() *time.Location {
	if o.LocationPtr != nil {
		return o.LocationPtr
	}
	if o.Timezone != "" {
		if loc, err := time.LoadLocation(o.Timezone); err == nil {
			return loc
		}
	}
	return montevideoLocation
}

// MaxDelta returns the configured plausibility ceiling with the default
// applied.
func (o Options) MaxDelta() float64 {
	if o.MaxDeltaKWH > 0 {
		return o.MaxDeltaKWH
	}
	return DefaultMaxDeltaKWH
}
