package mocks

import (
	"github.com/brettbedarf/deskfs"
	"github.com/stretchr/testify/mock"
)

// MockRepository implements deskfs.Repository for testing across packages
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Load() ([]deskfs.Node, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]deskfs.Node), args.Error(1)
}

func (m *MockRepository) Commit(cs *deskfs.ChangeSet) error {
	args := m.Called(cs)

	// Handle function return types (for tests that inspect the change set)
	if fn, ok := args.Get(0).(func(*deskfs.ChangeSet) error); ok {
		return fn(cs)
	}
	return args.Error(0)
}

func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ deskfs.Repository = (*MockRepository)(nil)
