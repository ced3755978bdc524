package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/common"
	"github.com/Gfacello/ute-energy-cost/pkg/log"
	"github.com/levenlabs/go-lflag"
)

// cacheTTL dampens bursts of reads (the poll loop plus push-triggered
// refreshes) into at most one upstream request per window.
const cacheTTL = 5 * time.Second

// HomeAssistant reads a cumulative energy sensor through the Home Assistant
// REST API (/api/states/<entity_id>).
type HomeAssistant struct {
	baseURL  string
	entityID string
	token    string
	client   *http.Client

	mu          sync.Mutex
	cachedValue float64
	cachedOK    bool
	cachedAt    time.Time
}

// configuredHomeAssistant sets up flags for the Home Assistant source and
// returns the instance.
func configuredHomeAssistant() *HomeAssistant {
	h := &HomeAssistant{
		client: common.HTTPClient(10 * time.Second),
	}
	baseURL := lflag.String("ha-url", "http://homeassistant.local:8123", "Base URL of the Home Assistant instance")
	entityID := lflag.String("ha-energy-entity", "", "Entity ID of the cumulative energy sensor (e.g. sensor.home_energy_total)")
	token := lflag.String("ha-token", "", "Long-lived access token for the Home Assistant API")

	lflag.Do(func() {
		h.baseURL = strings.TrimSuffix(*baseURL, "/")
		h.entityID = *entityID
		h.token = *token
	})

	return h
}

// Validate ensures the configuration is valid.
func (h *HomeAssistant) Validate() error {
	if h.baseURL == "" {
		return fmt.Errorf("ha-url is required")
	}
	if _, err := url.Parse(h.baseURL); err != nil {
		return fmt.Errorf("failed to parse ha url (%s): %w", h.baseURL, err)
	}
	if h.entityID == "" {
		return fmt.Errorf("ha-energy-entity is required")
	}
	return nil
}

// haState is the subset of the states API response we care about.
type haState struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

// GetCurrentReading fetches the sensor state. Unavailability, transport
// errors, and unparsable states all come back as ok=false; none of them is
// fatal to the poll loop. Results are cached briefly.
func (h *HomeAssistant) GetCurrentReading(ctx context.Context) (float64, bool) {
	h.mu.Lock()
	if time.Since(h.cachedAt) < cacheTTL {
		v, ok := h.cachedValue, h.cachedOK
		h.mu.Unlock()
		return v, ok
	}
	h.mu.Unlock()

	v, ok := h.fetch(ctx)

	h.mu.Lock()
	h.cachedValue = v
	h.cachedOK = ok
	h.cachedAt = time.Now()
	h.mu.Unlock()
	return v, ok
}

func (h *HomeAssistant) fetch(ctx context.Context) (float64, bool) {
	reqURL := fmt.Sprintf("%s/api/states/%s", h.baseURL, h.entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to build states request", slog.Any("error", err))
		return 0, false
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "energy source unavailable", slog.String("entity", h.entityID), slog.Any("error", err))
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Ctx(ctx).WarnContext(ctx, "energy source returned non-200", slog.String("entity", h.entityID), slog.Int("status", resp.StatusCode))
		return 0, false
	}

	var st haState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode state response", slog.String("entity", h.entityID), slog.Any("error", err))
		return 0, false
	}

	switch st.State {
	case "", "unknown", "unavailable":
		log.Ctx(ctx).DebugContext(ctx, "energy entity has no value", slog.String("entity", h.entityID), slog.String("state", st.State))
		return 0, false
	}

	v, err := strconv.ParseFloat(st.State, 64)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid energy state", slog.String("entity", h.entityID), slog.String("state", st.State))
		return 0, false
	}
	return v, true
}
