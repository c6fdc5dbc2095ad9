// Package readmodel provides organization name read models and the
// projection keeping them up to date from published or stored events.
package readmodel

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/austere-albatross/eventstore/organization"
)

// NewMemory constructs an in-memory name read model
func NewMemory() *Memory {
	return &Memory{names: make(map[string]struct{})}
}

// Memory keeps organization names in a set
type Memory struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

var _ organization.NameReadModel = (*Memory)(nil)

// NameExists reports whether the name was added
func (m *Memory) NameExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.names[name]

	return ok, nil
}

// AddName adds the name, failing with organization.ErrDuplicateName if it is already present
func (m *Memory) AddName(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.names[name]; ok {
		return fmt.Errorf("%w: %q", organization.ErrDuplicateName, name)
	}

	m.names[name] = struct{}{}

	return nil
}

// Names returns all names, sorted
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.names))

	for n := range m.names {
		out = append(out, n)
	}

	slices.Sort(out)

	return out
}
