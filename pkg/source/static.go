package source

import (
	"context"
	"strconv"
	"sync"

	"github.com/levenlabs/go-lflag"
)

// Static is a settable source for tests and local development. It returns a
// fixed reading until SetReading or SetUnavailable changes it.
type Static struct {
	mu        sync.Mutex
	reading   float64
	available bool
}

// configuredStatic sets up flags for the static source.
func configuredStatic() *Static {
	s := &Static{}
	reading := lflag.String("static-reading", "0", "Fixed cumulative reading for the static source (kWh)")

	lflag.Do(func() {
		if v, err := strconv.ParseFloat(*reading, 64); err == nil {
			s.reading = v
		}
		s.available = true
	})

	return s
}

// NewStatic returns a static source seeded with the given reading.
func NewStatic(reading float64) *Static {
	return &Static{reading: reading, available: true}
}

func (s *Static) Validate() error { return nil }

func (s *Static) GetCurrentReading(ctx context.Context) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading, s.available
}

// SetReading updates the value returned by GetCurrentReading.
func (s *Static) SetReading(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = v
	s.available = true
}

// SetUnavailable makes the source report no value.
func (s *Static) SetUnavailable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = false
}
