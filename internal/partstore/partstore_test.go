package partstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryKeyValueBasicOps(t *testing.T) {
	kv := NewMemoryKeyValue()
	defer kv.Close()

	require.NoError(t, kv.Set("b", "2"))
	require.NoError(t, kv.Set("a", "1"))
	require.NoError(t, kv.Set("c", "3"))

	v, err := kv.Get("b")
	require.NoError(t, err)
	require.Equal(t, "2", v)

	_, err = kv.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Delete("b"))
	_, err = kv.Get("b")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryKeyValueFindIsSortedFromKey(t *testing.T) {
	kv := NewMemoryKeyValue()
	defer kv.Close()
	for _, k := range []string{"c", "a", "e", "b", "d"} {
		require.NoError(t, kv.Set(k, k+"-val"))
	}
	it := kv.Find("b")
	defer it.Close()
	var got []string
	for it.Next() {
		got = append(got, it.Key())
	}
	require.Equal(t, []string{"b", "c", "d", "e"}, got)
}

func TestMemoryKeyValueBatch(t *testing.T) {
	kv := NewMemoryKeyValue()
	defer kv.Close()
	require.NoError(t, kv.Set("x", "old"))

	b := kv.BeginBatch()
	b.Set("x", "new")
	b.Set("y", "1")
	b.Delete("x")
	require.NoError(t, kv.CommitBatch(b))

	_, err := kv.Get("x")
	require.ErrorIs(t, err, ErrNotFound)
	v, err := kv.Get("y")
	require.NoError(t, err)
	require.Equal(t, "1", v)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("nonexistent", Config{})
	require.Error(t, err)
}

func TestOpenMemBackendViaRegistry(t *testing.T) {
	kv, err := Open("mem", Config{})
	require.NoError(t, err)
	defer kv.Close()
	require.NoError(t, kv.Set("k", "v"))
}

func TestDollarPlaceholders(t *testing.T) {
	require.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", dollarPlaceholders("SELECT * FROM t WHERE a = ? AND b = ?"))
}

func TestConfigRequiredString(t *testing.T) {
	cfg := Config{"file": "/tmp/x"}
	v, err := cfg.RequiredString("file")
	require.NoError(t, err)
	require.Equal(t, "/tmp/x", v)

	_, err = cfg.RequiredString("missing")
	require.Error(t, err)
}
