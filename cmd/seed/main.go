package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/log"
	"github.com/Gfacello/ute-energy-cost/pkg/meter"
	"github.com/Gfacello/ute-energy-cost/pkg/storage"
	"github.com/Gfacello/ute-energy-cost/pkg/types"
	"github.com/levenlabs/go-lflag"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	opts := types.Options{
		Tariff: types.TariffTRD,
		Mode:   types.PriceModeMarginal,
		Prices: types.DefaultPriceTable(),
	}
	loc := opts.Loc()

	// Walk a cumulative register forward from 14 days ago, one reading per
	// hour, through the accumulator so the persisted snapshots carry real
	// rollover and breakdown history.
	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -14)

	register := 12000.0 + rng.Float64()*1000
	acc := meter.New()

	for t := start; t.Before(now); t = t.Add(time.Hour) {
		hour := t.Hour()

		// Household load profile in kWh per hour
		load := 0.3 + rng.Float64()*0.2
		if hour >= 7 && hour < 9 {
			load += 0.8 // Breakfast
		} else if hour >= 12 && hour < 14 {
			load += 0.5 // Lunch
		} else if hour >= 18 && hour < 23 {
			load += 1.5 // Evening activities
		}

		register += load
		reading := register
		state := acc.Update(ctx, &reading, t, opts)

		if err := s.SetState(ctx, state, types.CurrentStateVersion); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed snapshot", "error", err)
			os.Exit(1)
		}

		if hour == 23 {
			fmt.Printf("Seeded day %s: %.1f kWh, $%.0f\n",
				t.Format("2006-01-02"), state.KWHToday, state.CostToday)
		}
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}
