package pipeline_test

import (
	"context"
	"sync"
)

// MockArchiver is a mock implementation of pipeline.Archiver for testing.
type MockArchiver struct {
	ArchiveFunc func(ctx context.Context, filename string, content []byte) (string, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockArchiver) Archive(ctx context.Context, filename string, content []byte) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, filename)
	m.mu.Unlock()

	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, filename, content)
	}
	return "gs://test-bucket/uploads/" + filename, nil
}

func (m *MockArchiver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
