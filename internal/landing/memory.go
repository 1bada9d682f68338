package landing

import (
	"context"
	"sync"
)

// Memory is an in-process Sink. The probe and tests use it; it is also
// registered as kind "memory".
type Memory struct {
	mu   sync.Mutex
	recs []Record

	// Truncated counts Truncate calls.
	Truncated int
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Create(context.Context) error {
	m.mu.Lock()
	m.recs = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Append(_ context.Context, recs []Record) error {
	m.mu.Lock()
	m.recs = append(m.recs, recs...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ReadAll(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.recs...), nil
}

func (m *Memory) Truncate(context.Context) error {
	m.mu.Lock()
	m.recs = nil
	m.Truncated++
	m.mu.Unlock()
	return nil
}

// Len returns the number of landed records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func (m *Memory) Close() error { return nil }

func init() {
	Register("memory", func(context.Context, Config) (Sink, error) { return NewMemory(), nil })
}
