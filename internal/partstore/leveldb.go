// Package partstore's leveldb backend stores partition metadata in a
// single mutable database file on disk, for single-node deployments
// that want metadata durability without running a separate server.
//
// Grounded on pkg/sorted/leveldb/leveldb.go's KeyValue wrapper around
// github.com/syndtr/goleveldb — same library, same registry pattern,
// adapted to the partstore.KeyValue contract.
package partstore

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

func init() {
	RegisterBackend("leveldb", newLevelDBFromConfig)
}

func newLevelDBFromConfig(cfg Config) (KeyValue, error) {
	file, err := cfg.RequiredString("file")
	if err != nil {
		return nil, err
	}
	opts := &opt.Options{Filter: filter.NewBloomFilter(10)}
	db, err := leveldb.OpenFile(file, opts)
	if err != nil {
		return nil, fmt.Errorf("partstore: opening leveldb file %q: %w", file, err)
	}
	return &levelKV{db: db}, nil
}

type levelKV struct {
	db *leveldb.DB
}

func (k *levelKV) Get(key string) (string, error) {
	v, err := k.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (k *levelKV) Set(key, value string) error {
	return k.db.Put([]byte(key), []byte(value), nil)
}

func (k *levelKV) Delete(key string) error {
	return k.db.Delete([]byte(key), nil)
}

func (k *levelKV) BeginBatch() BatchMutation { return NewBatchMutation() }

func (k *levelKV) CommitBatch(b BatchMutation) error {
	lb := new(leveldb.Batch)
	for _, mu := range Mutations(b) {
		if mu.IsDelete() {
			lb.Delete([]byte(mu.Key()))
		} else {
			lb.Put([]byte(mu.Key()), []byte(mu.Value()))
		}
	}
	return k.db.Write(lb, nil)
}

func (k *levelKV) Find(key string) Iterator {
	it := k.db.NewIterator(&util.Range{Start: []byte(key)}, nil)
	return &levelIter{it: it}
}

func (k *levelKV) Close() error { return k.db.Close() }

type levelIter struct {
	it interface {
		Next() bool
		Key() []byte
		Value() []byte
		Release()
		Error() error
	}
}

func (it *levelIter) Next() bool        { return it.it.Next() }
func (it *levelIter) Key() string       { return string(it.it.Key()) }
func (it *levelIter) Value() string     { return string(it.it.Value()) }
func (it *levelIter) Close() error {
	it.it.Release()
	return it.it.Error()
}
