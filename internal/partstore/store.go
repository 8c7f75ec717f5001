// Package partstore is a pluggable sorted key-value store for
// partition metadata: column file offsets, index variant choices, and
// the partition-to-file table that lets a query resolve "column a of
// partition 3" to a byte range.
//
// Grounded on pkg/sorted/kv.go's KeyValue/Iterator/BatchMutation
// interfaces and its RegisterKeyValue constructor registry, reused
// almost verbatim in shape and renamed to the partition-metadata
// domain this spec actually needs.
package partstore

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("partstore: key not found")

// KeyValue is a sorted, enumerable key-value store with batch writes.
type KeyValue interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error

	BeginBatch() BatchMutation
	CommitBatch(b BatchMutation) error

	// Find returns an iterator positioned before the first key
	// greater than or equal to key.
	Find(key string) Iterator

	Close() error
}

// Iterator walks key/value pairs in key order.
type Iterator interface {
	Next() bool
	Key() string
	Value() string
	Close() error
}

// BatchMutation batches Set/Delete calls for one CommitBatch call.
type BatchMutation interface {
	Set(key, value string)
	Delete(key string)
}

// Mutation is one recorded operation inside a BatchMutation.
type Mutation interface {
	Key() string
	Value() string
	IsDelete() bool
}

type mutation struct {
	key, value string
	delete     bool
}

func (m mutation) Key() string     { return m.key }
func (m mutation) Value() string   { return m.value }
func (m mutation) IsDelete() bool  { return m.delete }

// NewBatchMutation returns an empty, in-memory BatchMutation that any
// KeyValue backend's CommitBatch can replay.
func NewBatchMutation() BatchMutation { return &batch{} }

type batch struct {
	ops []Mutation
}

func (b *batch) Set(key, value string) { b.ops = append(b.ops, mutation{key: key, value: value}) }
func (b *batch) Delete(key string)     { b.ops = append(b.ops, mutation{key: key, delete: true}) }

// Mutations exposes a batch's recorded operations, for backends that
// replay it themselves (the in-memory and generic SQL backends do).
func Mutations(b BatchMutation) []Mutation {
	if bb, ok := b.(*batch); ok {
		return bb.ops
	}
	return nil
}

// Config parametrizes a backend constructor; field meaning is
// backend-specific (e.g. "file" for leveldb, "dsn" for a database/sql
// backend).
type Config map[string]string

// RequiredString returns cfg[key], erroring if absent or empty —
// deliberately simpler than jsonconfig.Obj's accumulate-then-Validate
// idiom (internal/config already owns that contract; this is a narrow
// backend-construction detail, not user-facing configuration).
func (c Config) RequiredString(key string) (string, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return "", fmt.Errorf("partstore: missing required config key %q", key)
	}
	return v, nil
}

type ctor func(Config) (KeyValue, error)

var (
	registryMu sync.Mutex
	registry   = map[string]ctor{}
)

// RegisterBackend adds a named KeyValue constructor.
func RegisterBackend(name string, fn func(Config) (KeyValue, error)) {
	if name == "" || fn == nil {
		panic("partstore: zero name or nil constructor")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Open builds a KeyValue from a registered backend name and config.
func Open(backend string, cfg Config) (KeyValue, error) {
	registryMu.Lock()
	fn, ok := registry[backend]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("partstore: unknown backend %q", backend)
	}
	return fn(cfg)
}
