package testutil

import (
	"context"

	"github.com/reglet-dev/reglet-broker/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockInvoker is a testify mock of ports.Invoker.
type MockInvoker struct {
	mock.Mock
}

var _ ports.Invoker = (*MockInvoker)(nil)

// Invoke implements ports.Invoker. The first return value may be a
// []byte or a func computing one from the call's arguments.
func (m *MockInvoker) Invoke(ctx context.Context, target, method string, params []byte) ([]byte, error) {
	args := m.Called(ctx, target, method, params)
	var out []byte
	switch v := args.Get(0).(type) {
	case []byte:
		out = v
	case func(context.Context, string, string, []byte) []byte:
		out = v(ctx, target, method, params)
	}
	return out, args.Error(1)
}
