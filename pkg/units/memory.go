package units

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/thepwagner/debmirror/pkg/debian"
)

type Memory struct {
	mu    sync.RWMutex
	units map[string]Unit
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{units: map[string]Unit{}}
}

func (m *Memory) List(_ context.Context) ([]Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := slices.Sorted(maps.Keys(m.units))
	ret := make([]Unit, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, m.units[k])
	}
	return ret, nil
}

func (m *Memory) Get(_ context.Context, key debian.UnitKey) (Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[key.String()]
	if !ok {
		return Unit{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) Save(_ context.Context, unit Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[unit.Key.String()] = unit
	return nil
}

func (m *Memory) Remove(_ context.Context, key debian.UnitKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.units, key.String())
	return nil
}

func (m *Memory) Close() error { return nil }
