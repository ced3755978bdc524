package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// ErrNoState is returned when no snapshot has been persisted yet. Callers
// start from an empty accumulator in that case.
var ErrNoState = errors.New("no meter state stored")

// Database persists the meter snapshot between restarts. The snapshot is an
// opaque versioned document; the accumulator itself never talks to storage.
type Database interface {
	// GetState loads the last persisted snapshot and its version.
	// It returns ErrNoState when nothing has been stored yet.
	GetState(ctx context.Context) (types.MeterState, int, error)

	// SetState persists the snapshot. Called after every update cycle.
	SetState(ctx context.Context, state types.MeterState, version int) error

	// GetStateHistory retrieves the daily snapshot copies within the range.
	GetStateHistory(ctx context.Context, start, end time.Time) ([]types.MeterState, error)

	// Lifecycle
	Close() error
}

// historyKey is the calendar date a snapshot's history document lives under.
// It follows the accumulator's local day watermark so history days line up
// with the rollover boundaries, not UTC.
func historyKey(state types.MeterState) string {
	if state.DayKey != "" {
		return state.DayKey
	}
	if state.LastUpdateTS.IsZero() {
		return ""
	}
	return state.LastUpdateTS.Format("2006-01-02")
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, memory)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
