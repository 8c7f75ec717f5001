package partstore

import (
	"sort"
	"sync"
)

func init() {
	RegisterBackend("mem", func(Config) (KeyValue, error) { return NewMemoryKeyValue(), nil })
}

// NewMemoryKeyValue returns a KeyValue backed only by memory, for
// tests and single-process development — grounded on pkg/sorted's
// NewMemoryKeyValue, rebuilt here over a plain sorted slice since the
// teacher's backing memdb package lives in its vendored third_party
// tree rather than its own dependency surface.
func NewMemoryKeyValue() KeyValue {
	return &memKV{vals: make(map[string]string)}
}

type memKV struct {
	mu   sync.Mutex
	keys []string // sorted
	vals map[string]string
}

func (m *memKV) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value)
	return nil
}

func (m *memKV) setLocked(key, value string) {
	if _, exists := m.vals[key]; !exists {
		i := sort.SearchStrings(m.keys, key)
		m.keys = append(m.keys, "")
		copy(m.keys[i+1:], m.keys[i:])
		m.keys[i] = key
	}
	m.vals[key] = value
}

func (m *memKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(key)
	return nil
}

func (m *memKV) deleteLocked(key string) {
	if _, exists := m.vals[key]; !exists {
		return
	}
	delete(m.vals, key)
	i := sort.SearchStrings(m.keys, key)
	if i < len(m.keys) && m.keys[i] == key {
		m.keys = append(m.keys[:i], m.keys[i+1:]...)
	}
}

func (m *memKV) BeginBatch() BatchMutation { return NewBatchMutation() }

func (m *memKV) CommitBatch(b BatchMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mu := range Mutations(b) {
		if mu.IsDelete() {
			m.deleteLocked(mu.Key())
		} else {
			m.setLocked(mu.Key(), mu.Value())
		}
	}
	return nil
}

func (m *memKV) Find(key string) Iterator {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := sort.SearchStrings(m.keys, key)
	keys := append([]string{}, m.keys[start:]...)
	return &memIter{m: m, keys: keys, pos: -1}
}

func (m *memKV) Close() error { return nil }

type memIter struct {
	m    *memKV
	keys []string
	pos  int
}

func (it *memIter) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *memIter) Key() string { return it.keys[it.pos] }

func (it *memIter) Value() string {
	it.m.mu.Lock()
	defer it.m.mu.Unlock()
	return it.m.vals[it.keys[it.pos]]
}

func (it *memIter) Close() error { return nil }
