// Package source acquires the raw cumulative energy reading the meter
// accumulates from. A source may be temporarily unavailable or return a
// malformed value; both are normal, recoverable states.
package source

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Source provides the latest raw cumulative meter value in kWh.
type Source interface {
	// GetCurrentReading returns the latest cumulative reading. ok is false
	// when the source is unavailable or the value is not parseable; callers
	// treat that as "no update this cycle", never as a failure.
	GetCurrentReading(ctx context.Context) (value float64, ok bool)

	// Validate checks that the source is properly configured.
	Validate() error
}

// Configured sets up the reading source based on flags.
func Configured() Source {
	provider := lflag.String("source-provider", "homeassistant", "Reading source to use (available: homeassistant, static)")

	var p struct{ Source }

	ha := configuredHomeAssistant()
	st := configuredStatic()

	lflag.Do(func() {
		switch *provider {
		case "homeassistant":
			if err := ha.Validate(); err != nil {
				panic(fmt.Sprintf("homeassistant source validation failed: %v", err))
			}
			p.Source = ha
		case "static":
			if err := st.Validate(); err != nil {
				panic(fmt.Sprintf("static source validation failed: %v", err))
			}
			p.Source = st
		default:
			panic(fmt.Sprintf("unknown source provider: %s", *provider))
		}
	})

	return &p
}
