package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequiredStringMissing(t *testing.T) {
	obj := Obj{}
	obj.RequiredString("name")
	require.Error(t, obj.Validate())
}

func TestRequiredStringWrongType(t *testing.T) {
	obj := Obj{"name": 5}
	obj.RequiredString("name")
	require.Error(t, obj.Validate())
}

func TestOptionalDefaults(t *testing.T) {
	obj := Obj{}
	require.Equal(t, "fallback", obj.OptionalString("missing", "fallback"))
	require.Equal(t, 42.0, obj.OptionalFloat("missing", 42))
	require.NoError(t, obj.Validate())
}

func TestUnknownKeyDetected(t *testing.T) {
	obj := Obj{"name": "a", "extra": "b"}
	obj.RequiredString("name")
	err := obj.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "extra")
}

func TestUnderscorePrefixedKeysIgnored(t *testing.T) {
	obj := Obj{"name": "a", "_comment": "ignore me"}
	obj.RequiredString("name")
	require.NoError(t, obj.Validate())
}

func TestParseTableConfig(t *testing.T) {
	obj := Obj{
		"partstore": map[string]any{
			"backend": "mem",
			"params":  map[string]any{},
		},
		"density_threshold": 0.2,
	}
	cfg, err := ParseTableConfig(obj)
	require.NoError(t, err)
	require.Equal(t, "mem", cfg.PartstoreBackend)
	require.Equal(t, 0.2, cfg.DensityThreshold)
	require.Equal(t, float64(50), cfg.AdmissionQPS)
}

func TestParseTableConfigWithColumns(t *testing.T) {
	obj := Obj{
		"partstore": map[string]any{
			"backend": "mem",
			"params":  map[string]any{},
		},
		"columns": []any{
			map[string]any{"name": "a", "kind": "int32", "path": "/data/a.raw"},
			map[string]any{"name": "b", "kind": "float64", "path": "/data/b.raw"},
		},
	}
	cfg, err := ParseTableConfig(obj)
	require.NoError(t, err)
	require.Len(t, cfg.Columns, 2)
	require.Equal(t, "a", cfg.Columns[0].Name)
	require.Equal(t, "range", cfg.IndexVariant)
}

func TestParseTableConfigUnknownColumnKind(t *testing.T) {
	obj := Obj{
		"partstore": map[string]any{
			"backend": "mem",
			"params":  map[string]any{},
		},
		"columns": []any{
			map[string]any{"name": "a", "kind": "bogus", "path": "/data/a.raw"},
		},
	}
	_, err := ParseTableConfig(obj)
	require.Error(t, err)
}

func TestParseTableConfigMissingBackend(t *testing.T) {
	obj := Obj{
		"partstore": map[string]any{
			"params": map[string]any{},
		},
	}
	_, err := ParseTableConfig(obj)
	require.Error(t, err)
}
