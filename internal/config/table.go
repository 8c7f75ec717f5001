package config

import (
	"fmt"

	"github.com/bitdex/bitdex/internal/column"
)

// ColumnSpec names one column's on-disk layout: a fixed-width raw
// value file with one record of Kind's width per row.
type ColumnSpec struct {
	Name string
	Kind column.Kind
	Path string
}

// TableConfig is bitdex's own top-level configuration shape, parsed
// from a config.Obj the way pkg/index/corpus.go-style setup code reads
// a jsonconfig.Obj section by section.
type TableConfig struct {
	PartstoreBackend string
	PartstoreConfig  map[string]string
	DensityThreshold float64
	AdmissionQPS     float64
	AdmissionBurst   int
	SamplingSeed     int64
	IndexVariant     string
	Columns          []ColumnSpec
}

var columnKinds = map[string]column.Kind{
	"int8":     column.Int8,
	"int16":    column.Int16,
	"int32":    column.Int32,
	"int64":    column.Int64,
	"uint8":    column.Uint8,
	"uint16":   column.Uint16,
	"uint32":   column.Uint32,
	"uint64":   column.Uint64,
	"float32":  column.Float32,
	"float64":  column.Float64,
	"category": column.Category,
	"text":     column.Text,
}

// ParseTableConfig reads a TableConfig out of obj, accumulating every
// malformed or missing field before returning a single combined error
// from Validate.
func ParseTableConfig(obj Obj) (TableConfig, error) {
	store := obj.RequiredObject("partstore")
	backend := store.RequiredString("backend")
	params := store.RequiredObject("params")

	cfg := TableConfig{
		PartstoreBackend: backend,
		PartstoreConfig:  map[string]string{},
		DensityThreshold: obj.OptionalFloat("density_threshold", 0.1),
		AdmissionQPS:     obj.OptionalFloat("admission_qps", 50),
		AdmissionBurst:   obj.OptionalInt("admission_burst", 10),
		SamplingSeed:     int64(obj.OptionalInt("sampling_seed", 1)),
		IndexVariant:     obj.OptionalString("index_variant", "range"),
	}
	for k, v := range params {
		if s, ok := v.(string); ok {
			cfg.PartstoreConfig[k] = s
		}
	}

	for _, raw := range obj.OptionalArray("columns") {
		m, ok := raw.(map[string]any)
		if !ok {
			obj.appendError(fmt.Errorf("column entry must be an object, got %T", raw))
			continue
		}
		spec, err := parseColumnSpec(Obj(m))
		if err != nil {
			obj.appendError(err)
			continue
		}
		cfg.Columns = append(cfg.Columns, spec)
	}

	if err := store.Validate(); err != nil {
		return TableConfig{}, err
	}
	if err := obj.Validate(); err != nil {
		return TableConfig{}, err
	}
	return cfg, nil
}

func parseColumnSpec(obj Obj) (ColumnSpec, error) {
	name := obj.RequiredString("name")
	kindName := obj.RequiredString("kind")
	path := obj.RequiredString("path")
	if err := obj.Validate(); err != nil {
		return ColumnSpec{}, err
	}
	kind, ok := columnKinds[kindName]
	if !ok {
		return ColumnSpec{}, fmt.Errorf("column %q: unknown kind %q", name, kindName)
	}
	return ColumnSpec{Name: name, Kind: kind, Path: path}, nil
}
