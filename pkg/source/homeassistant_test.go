package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHA(baseURL string) *HomeAssistant {
	return &HomeAssistant{
		baseURL:  baseURL,
		entityID: "sensor.home_energy_total",
		token:    "test-token",
		client:   common.HTTPClient(2 * time.Second),
	}
}

func TestHomeAssistantGetCurrentReading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/states/sensor.home_energy_total", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"entity_id":"sensor.home_energy_total","state":"12345.6"}`))
	}))
	defer srv.Close()

	h := newTestHA(srv.URL)
	v, ok := h.GetCurrentReading(context.Background())
	require.True(t, ok)
	assert.Equal(t, 12345.6, v)
}

func TestHomeAssistantUnavailableStates(t *testing.T) {
	state := "unavailable"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"entity_id":"sensor.home_energy_total","state":"` + state + `"}`))
	}))
	defer srv.Close()

	for _, state = range []string{"unavailable", "unknown", "", "not-a-number"} {
		h := newTestHA(srv.URL)
		_, ok := h.GetCurrentReading(context.Background())
		assert.False(t, ok, "state %q", state)
	}
}

func TestHomeAssistantErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	h := newTestHA(srv.URL)
	_, ok := h.GetCurrentReading(context.Background())
	assert.False(t, ok)

	// transport failure after the server is gone
	srv.Close()
	h = newTestHA(srv.URL)
	_, ok = h.GetCurrentReading(context.Background())
	assert.False(t, ok)
}

func TestHomeAssistantCache(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"entity_id":"sensor.home_energy_total","state":"100"}`))
	}))
	defer srv.Close()

	h := newTestHA(srv.URL)
	for i := 0; i < 3; i++ {
		v, ok := h.GetCurrentReading(context.Background())
		require.True(t, ok)
		assert.Equal(t, 100.0, v)
	}
	// back-to-back reads inside the TTL hit upstream once
	assert.Equal(t, 1, calls)
}

func TestHomeAssistantValidate(t *testing.T) {
	h := newTestHA("http://homeassistant.local:8123")
	require.NoError(t, h.Validate())

	h.entityID = ""
	assert.Error(t, h.Validate())

	h = newTestHA("")
	assert.Error(t, h.Validate())
}

func TestStatic(t *testing.T) {
	s := NewStatic(100)
	v, ok := s.GetCurrentReading(context.Background())
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	s.SetReading(150)
	v, ok = s.GetCurrentReading(context.Background())
	require.True(t, ok)
	assert.Equal(t, 150.0, v)

	s.SetUnavailable()
	_, ok = s.GetCurrentReading(context.Background())
	assert.False(t, ok)
}
