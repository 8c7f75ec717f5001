package column

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitdex/bitdex/internal/bitvec"
)

func int32Backend(vals []int32) Backend {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return MemBackend{Data: buf}
}

func TestSelectValuesMatchesRawValues(t *testing.T) {
	n := 50
	vals := make([]int32, n)
	for i := range vals {
		vals[i] = int32(i)
	}
	allOnes := bitvec.New()
	allOnes.AppendRun(true, uint32(n))
	col := NewFixedWidth("a", Int32, uint32(n), int32Backend(vals), allOnes)

	mask := bitvec.New()
	mask.AppendRun(false, 5)
	mask.AppendRun(true, 3)
	mask.AppendRun(false, 20)
	mask.AppendRun(true, 1)
	mask.AppendRun(false, uint32(n)-29)

	got, err := col.SelectValues(mask)
	require.NoError(t, err)
	require.Equal(t, []int32{5, 6, 7, 28}, got.I32)
	require.EqualValues(t, mask.Count(), got.Len())
}

func TestSelectValuesBulkModeMatchesSeekMode(t *testing.T) {
	n := 50
	vals := make([]int32, n)
	for i := range vals {
		vals[i] = int32(i)
	}
	allOnes := bitvec.New()
	allOnes.AppendRun(true, uint32(n))
	col := NewFixedWidth("a", Int32, uint32(n), int32Backend(vals), allOnes)
	col.DensityThreshold = 0.05 // mask density is 4/50 = 0.08: forces the bulk-read path below

	mask := bitvec.New()
	mask.AppendRun(false, 5)
	mask.AppendRun(true, 3)
	mask.AppendRun(false, 20)
	mask.AppendRun(true, 1)
	mask.AppendRun(false, uint32(n)-29)
	require.True(t, col.accessMode(mask))

	got, err := col.SelectValues(mask)
	require.NoError(t, err)
	require.Equal(t, []int32{5, 6, 7, 28}, got.I32)
}

func TestActualMinMaxSkipsNulls(t *testing.T) {
	vals := []int32{10, -5, 99, 0}
	nulls := bitvec.New()
	nulls.AppendBit(true)
	nulls.AppendBit(false) // -5 is null, excluded
	nulls.AppendBit(true)
	nulls.AppendBit(true)
	col := NewFixedWidth("a", Int32, 4, int32Backend(vals), nulls)

	min, err := col.ActualMin()
	require.NoError(t, err)
	max, err := col.ActualMax()
	require.NoError(t, err)
	require.Equal(t, float64(0), min)
	require.Equal(t, float64(99), max)
}

func TestSelectValuesSizeMismatch(t *testing.T) {
	col := NewFixedWidth("a", Int32, 4, int32Backend([]int32{1, 2, 3, 4}), nil)
	mask := bitvec.New()
	mask.AppendRun(true, 3)
	_, err := col.SelectValues(mask)
	require.Error(t, err)
}

func TestTextColumn(t *testing.T) {
	blob := MemBackend{Data: []byte("helloworld!")}
	offsets := []int64{0, 5, 10, 11}
	col := NewText("s", 3, offsets, blob, nil)
	mask := bitvec.New()
	mask.AppendRun(true, 3)
	got, err := col.SelectValues(mask)
	require.NoError(t, err)
	require.Equal(t, []string{"hello", "world", "!"}, got.Str)
}
