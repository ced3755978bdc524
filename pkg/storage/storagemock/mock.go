package storagemock

import (
	"context"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/storage"
	"github.com/Gfacello/ute-energy-cost/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetState(ctx context.Context) (types.MeterState, int, error) {
	args := m.Called(ctx)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.MeterState), args.Int(1), args.Error(2)
	}
	return types.MeterState{}, 0, nil
}

func (m *MockDatabase) SetState(ctx context.Context, state types.MeterState, version int) error {
	args := m.Called(ctx, state, version)
	return args.Error(0)
}

func (m *MockDatabase) GetStateHistory(ctx context.Context, start, end time.Time) ([]types.MeterState, error) {
	args := m.Called(ctx, start, end)
	if states, ok := args.Get(0).([]types.MeterState); ok {
		return states, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
