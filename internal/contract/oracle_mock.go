package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockOracle is a mock implementation of Oracle for testing.
type MockOracle struct {
	mock.Mock
}

var _ Oracle = &MockOracle{} // Compile-time check

// Invoke implements the Oracle interface.
func (m *MockOracle) Invoke(ctx context.Context, prompt string) (OracleResponse, error) {
	ret := m.Called(ctx, prompt)
	resp, _ := ret.Get(0).(OracleResponse)
	return resp, ret.Error(1)
}
