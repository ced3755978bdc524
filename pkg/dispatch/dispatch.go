// Package dispatch resolves a named computed value from the current meter
// snapshot and pushes it to an external HTTP target. This is the generic
// "set a value somewhere else" action: the target decides what to do with it.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/common"
	"github.com/Gfacello/ute-energy-cost/pkg/tariff"
	"github.com/Gfacello/ute-energy-cost/pkg/types"
)

// ValueSource names a value derivable from the snapshot.
type ValueSource string

const (
	SourcePriceNow       ValueSource = "price_kwh_now"
	SourceAvgMonth       ValueSource = "avg_kwh_month"
	SourceEffectiveMonth ValueSource = "effective_kwh_month"
	SourceCostToday      ValueSource = "cost_today"
	SourceCostMonth      ValueSource = "cost_month"
)

// ResolveValue computes the named value from the snapshot. Nil when the value
// has no data yet (e.g. averages before any consumption) or the source name
// is unknown.
func ResolveValue(src ValueSource, state types.MeterState, now time.Time, opts types.Options) *float64 {
	switch src {
	case SourcePriceNow:
		return tariff.PriceNow(state, now, opts)
	case SourceAvgMonth:
		return tariff.AveragePrice(state)
	case SourceEffectiveMonth:
		return tariff.EffectivePrice(state, opts)
	case SourceCostToday:
		v := state.CostToday
		return &v
	case SourceCostMonth:
		v := state.CostMonth
		return &v
	}
	return nil
}

// Round rounds to the given number of decimal digits.
func Round(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}

// Target pushes a resolved value somewhere external.
type Target interface {
	Push(ctx context.Context, source ValueSource, value float64) error
}

type pushPayload struct {
	Source ValueSource `json:"source"`
	Value  float64     `json:"value"`
}

// HTTPTarget POSTs values as JSON to a fixed URL.
type HTTPTarget struct {
	url    string
	client *http.Client
}

// NewHTTPTarget constructs a target for the URL.
func NewHTTPTarget(url string) (*HTTPTarget, error) {
	if url == "" {
		return nil, fmt.Errorf("dispatch target: empty url")
	}
	return &HTTPTarget{
		url:    url,
		client: common.HTTPClient(10 * time.Second),
	}, nil
}

// Push sends the value. Non-2xx responses are errors so the caller can log
// the failed dispatch; nothing is retried here.
func (t *HTTPTarget) Push(ctx context.Context, source ValueSource, value float64) error {
	body, err := json.Marshal(pushPayload{Source: source, Value: value})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch target: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
