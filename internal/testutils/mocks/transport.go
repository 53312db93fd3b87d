// Package mocks holds testify mocks of the peripheral capability interfaces.
package mocks

import (
	"context"

	"github.com/srg/relayctl/internal/peripheral"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a mock of peripheral.Transport
type MockTransport struct {
	mock.Mock
}

func (_m *MockTransport) ListPaired(ctx context.Context) ([]peripheral.RawRecord, error) {
	ret := _m.Called(ctx)
	return rawRecords(ret, 0), ret.Error(1)
}

func (_m *MockTransport) DiscoverUnpaired(ctx context.Context) ([]peripheral.RawRecord, error) {
	ret := _m.Called(ctx)
	return rawRecords(ret, 0), ret.Error(1)
}

func (_m *MockTransport) ConnectSecure(ctx context.Context, id string) (peripheral.Session, error) {
	ret := _m.Called(ctx, id)
	return session(ret, 0), ret.Error(1)
}

func (_m *MockTransport) ConnectInsecure(ctx context.Context, id string) (peripheral.Session, error) {
	ret := _m.Called(ctx, id)
	return session(ret, 0), ret.Error(1)
}

func (_m *MockTransport) Disconnect(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// NewMockTransport creates a MockTransport whose expectations are
// asserted on test cleanup.
func NewMockTransport(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockTransport {
	m := &MockTransport{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// MockSession is a mock of peripheral.Session
type MockSession struct {
	mock.Mock
}

func (_m *MockSession) Write(ctx context.Context, payload []byte) error {
	ret := _m.Called(ctx, payload)
	return ret.Error(0)
}

func (_m *MockSession) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

// NewMockSession creates a MockSession whose expectations are asserted on
// test cleanup.
func NewMockSession(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSession {
	m := &MockSession{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func rawRecords(ret mock.Arguments, i int) []peripheral.RawRecord {
	switch v := ret.Get(i).(type) {
	case []peripheral.RawRecord:
		return v
	case func() []peripheral.RawRecord:
		return v()
	default:
		return nil
	}
}

func session(ret mock.Arguments, i int) peripheral.Session {
	if s, ok := ret.Get(i).(peripheral.Session); ok {
		return s
	}
	return nil
}
