package testutils

import (
	"context"
	"fmt"

	"github.com/llmpagina/avamem/pkg/memory"
)

// MockBackend is a scripted memory backend for manager tests.
type MockBackend struct {
	BackendName string
	Records     []memory.Record
	Stored      []memory.Entry
	Cleared     []string

	// FailStore makes every Store return an error
	FailStore bool

	// FailSearch makes every Search return an error
	FailSearch bool
}

func NewMockBackend(name string) *MockBackend {
	return &MockBackend{BackendName: name}
}

func (m *MockBackend) Name() string {
	return m.BackendName
}

func (m *MockBackend) Store(_ context.Context, entry memory.Entry) error {
	if m.FailStore {
		return fmt.Errorf("mock store failure")
	}
	m.Stored = append(m.Stored, entry)
	return nil
}

func (m *MockBackend) Search(_ context.Context, _ memory.SearchRequest) ([]memory.Record, error) {
	if m.FailSearch {
		return nil, fmt.Errorf("mock search failure")
	}
	return m.Records, nil
}

func (m *MockBackend) Stats(_ context.Context, _ string) (memory.BackendStats, error) {
	return memory.BackendStats{
		Backend:  m.BackendName,
		Memories: len(m.Stored),
	}, nil
}

func (m *MockBackend) Clear(_ context.Context, sessionID string) error {
	m.Cleared = append(m.Cleared, sessionID)
	return nil
}

func (m *MockBackend) Close() error {
	return nil
}

var _ memory.Backend = (*MockBackend)(nil)
