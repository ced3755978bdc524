package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/types"
)

// Memory is an in-process Database for tests and local development. Nothing
// survives a restart.
type Memory struct {
	mu      sync.Mutex
	state   *types.MeterState
	version int
	history map[string]types.MeterState
}

var _ Database = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{history: make(map[string]types.MeterState)}
}

func (m *Memory) GetState(ctx context.Context) (types.MeterState, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return types.MeterState{}, 0, ErrNoState
	}
	return m.state.Clone(), m.version, nil
}

func (m *Memory) SetState(ctx context.Context, state types.MeterState, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := state.Clone()
	m.state = &s
	m.version = version
	if key := historyKey(state); key != "" {
		m.history[key] = s
	}
	return nil
}

func (m *Memory) GetStateHistory(ctx context.Context, start, end time.Time) ([]types.MeterState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	startKey := start.Format("2006-01-02")
	endKey := end.Format("2006-01-02")

	keys := make([]string, 0, len(m.history))
	for k := range m.history {
		if k >= startKey && k <= endKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var states []types.MeterState
	for _, k := range keys {
		states = append(states, m.history[k].Clone())
	}
	return states, nil
}

func (m *Memory) Close() error { return nil }
