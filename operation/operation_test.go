package operation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/ndview"
	"github.com/c360/reductionist/request"
)

func desc(dtype request.DType, shape []int) *request.Descriptor {
	return &request.Descriptor{
		DType:     dtype,
		ByteOrder: request.NativeByteOrder,
		Order:     request.RowMajor,
		Shape:     shape,
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"count", "max", "min", "select", "sum"} {
		op, ok := Lookup(name)
		require.True(t, ok)
		assert.Equal(t, Op(name), op)
	}
	_, ok := Lookup("mean")
	assert.False(t, ok)
}

func TestSumUint32(t *testing.T) {
	// 10 little u32 values 1..10 sum to 55.
	vals := make([]uint32, 10)
	for i := range vals {
		vals[i] = uint32(i + 1)
	}
	d := desc(request.Uint32, []int{10})
	res, err := Execute(Sum, d, toBytes(vals))
	require.NoError(t, err)

	assert.Equal(t, request.Uint32, res.DType)
	assert.Empty(t, res.Shape)
	assert.Equal(t, []int64{10}, res.Counts)
	assert.True(t, res.ScalarCount)
	assert.Equal(t, []uint32{55}, ndview.AsSlice[uint32](res.Body))
}

func TestSumFloat32Selection(t *testing.T) {
	// 4x5 array of 0..19; rows 1-3, columns 0,2,4.
	vals := make([]float32, 20)
	for i := range vals {
		vals[i] = float32(i)
	}
	d := desc(request.Float32, []int{4, 5})
	d.Selection = []request.Slice{{Start: 1, End: 4, Stride: 1}, {Start: 0, End: 5, Stride: 2}}
	res, err := Execute(Sum, d, toBytes(vals))
	require.NoError(t, err)

	assert.Equal(t, []int64{9}, res.Counts)
	got := ndview.AsSlice[float32](res.Body)
	require.Len(t, got, 1)
	// 5+7+9 + 10+12+14 + 15+17+19
	assert.InDelta(t, 108.0, float64(got[0]), 1e-6)
}

func TestMaxWithMissingValue(t *testing.T) {
	vals := []int32{5, 2, -1, 7, 5, 3, 9, 5, 0, 4}
	d := desc(request.Int32, []int{10})
	d.Missing = &request.Missing{Kind: request.MissingValue, Value: json.Number("9")}
	res, err := Execute(Max, d, toBytes(vals))
	require.NoError(t, err)

	assert.Equal(t, []int32{7}, ndview.AsSlice[int32](res.Body))
	assert.Equal(t, []int64{9}, res.Counts)
	assert.Empty(t, res.Shape)
}

func TestCountAxisValidRange(t *testing.T) {
	// [[1,2,3],[4,5,6]] with valid_range [2,5], reduced over axis 0.
	vals := []float64{1, 2, 3, 4, 5, 6}
	d := desc(request.Float64, []int{2, 3})
	d.Axes = []int{0}
	d.Missing = &request.Missing{Kind: request.ValidRange, Min: json.Number("2"), Max: json.Number("5")}
	res, err := Execute(Count, d, toBytes(vals))
	require.NoError(t, err)

	assert.Equal(t, request.Int64, res.DType)
	assert.Equal(t, []int{3}, res.Shape)
	assert.False(t, res.ScalarCount)
	assert.Equal(t, []int64{1, 2, 1}, res.Counts)
	assert.Equal(t, []int64{1, 2, 1}, ndview.AsSlice[int64](res.Body))
}

func TestSumAxis1(t *testing.T) {
	// [[1,2,3],[4,5,6]] summed over axis 1 -> [6, 15].
	vals := []int64{1, 2, 3, 4, 5, 6}
	d := desc(request.Int64, []int{2, 3})
	d.Axes = []int{1}
	res, err := Execute(Sum, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Shape)
	assert.Equal(t, []int64{6, 15}, ndview.AsSlice[int64](res.Body))
	assert.Equal(t, []int64{3, 3}, res.Counts)
}

func TestSumAllAxesListedIsScalar(t *testing.T) {
	vals := []int64{1, 2, 3, 4, 5, 6}
	d := desc(request.Int64, []int{2, 3})
	d.Axes = []int{0, 1}
	res, err := Execute(Sum, d, toBytes(vals))
	require.NoError(t, err)
	assert.Empty(t, res.Shape)
	assert.True(t, res.ScalarCount)
	assert.Equal(t, []int64{21}, ndview.AsSlice[int64](res.Body))
}

func TestMinAxisReduction(t *testing.T) {
	vals := []uint64{9, 2, 7, 4, 1, 6}
	d := desc(request.Uint64, []int{2, 3})
	d.Axes = []int{0}
	res, err := Execute(Min, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 1, 6}, ndview.AsSlice[uint64](res.Body))
}

func TestNaNAlwaysMissing(t *testing.T) {
	nan := math.NaN()
	vals := []float64{1, nan, 3}
	d := desc(request.Float64, []int{3})

	res, err := Execute(Sum, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, res.Counts)
	assert.Equal(t, []float64{4}, ndview.AsSlice[float64](res.Body))

	res, err = Execute(Count, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, res.Counts)

	res, err = Execute(Max, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, ndview.AsSlice[float64](res.Body))
}

func TestMinAllMissing(t *testing.T) {
	vals := []int32{9, 9, 9}
	d := desc(request.Int32, []int{3})
	d.Missing = &request.Missing{Kind: request.MissingValue, Value: json.Number("9")}
	_, err := Execute(Min, d, toBytes(vals))
	require.Error(t, err)
	assert.Equal(t, errors.KindNoValidElements, errors.KindOf(err))
}

func TestMinAxisCellAllMissing(t *testing.T) {
	// Column 0 is entirely missing under valid_min 3.
	vals := []int32{1, 5, 2, 6}
	d := desc(request.Int32, []int{2, 2})
	d.Axes = []int{0}
	d.Missing = &request.Missing{Kind: request.ValidMin, Min: json.Number("3")}
	_, err := Execute(Min, d, toBytes(vals))
	require.Error(t, err)
	assert.Equal(t, errors.KindNoValidElements, errors.KindOf(err))
}

func TestSumAllMissingIsZero(t *testing.T) {
	vals := []int32{9, 9}
	d := desc(request.Int32, []int{2})
	d.Missing = &request.Missing{Kind: request.MissingValue, Value: json.Number("9")}
	res, err := Execute(Sum, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, res.Counts)
	assert.Equal(t, []int32{0}, ndview.AsSlice[int32](res.Body))
}

func TestSumIntegerOverflowWraps(t *testing.T) {
	vals := []uint32{math.MaxUint32, 2}
	d := desc(request.Uint32, []int{2})
	res, err := Execute(Sum, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, ndview.AsSlice[uint32](res.Body))
}

func TestSelectIdentity(t *testing.T) {
	vals := []int32{1, 2, 3, 4, 5, 6}
	d := desc(request.Int32, []int{2, 3})
	raw := toBytes(vals)
	res, err := Execute(Select, d, raw)
	require.NoError(t, err)
	assert.Equal(t, raw, res.Body)
	assert.Equal(t, []int{2, 3}, res.Shape)
	assert.Equal(t, []int64{6}, res.Counts)
	assert.True(t, res.ScalarCount)
}

func TestSelectWithSelection(t *testing.T) {
	// [[1,2],[3,4]] row-major, select column 1.
	vals := []float32{1, 2, 3, 4}
	d := desc(request.Float32, []int{2, 2})
	d.Selection = []request.Slice{{Start: 0, End: 2, Stride: 1}, {Start: 1, End: 2, Stride: 1}}
	res, err := Execute(Select, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4}, ndview.AsSlice[float32](res.Body))
	assert.Equal(t, []int{2, 1}, res.Shape)
}

func TestSelectColumnMajorRoundTrip(t *testing.T) {
	// Fortran-stored data selected in full must come back byte-identical.
	vals := []int64{1, 2, 3, 4, 5, 6}
	d := desc(request.Int64, []int{2, 3})
	d.Order = request.ColumnMajor
	raw := toBytes(vals)
	res, err := Execute(Select, d, raw)
	require.NoError(t, err)
	assert.Equal(t, raw, res.Body)
}

func TestSelectCountsMissing(t *testing.T) {
	vals := []int32{9, 1, 9, 2}
	d := desc(request.Int32, []int{4})
	d.Missing = &request.Missing{Kind: request.MissingValue, Value: json.Number("9")}
	res, err := Execute(Select, d, toBytes(vals))
	require.NoError(t, err)
	// All elements returned; count reflects only the valid ones.
	assert.Equal(t, []int32{9, 1, 9, 2}, ndview.AsSlice[int32](res.Body))
	assert.Equal(t, []int64{2}, res.Counts)
}

func TestMissingValuesPolicy(t *testing.T) {
	vals := []int64{1, 2, 3, 4}
	d := desc(request.Int64, []int{4})
	d.Missing = &request.Missing{
		Kind:   request.MissingValues,
		Values: []json.Number{json.Number("2"), json.Number("4")},
	}
	res, err := Execute(Sum, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ndview.AsSlice[int64](res.Body))
	assert.Equal(t, []int64{2}, res.Counts)
}

func TestValidMaxPolicy(t *testing.T) {
	vals := []float64{1, 2, 100, 3}
	d := desc(request.Float64, []int{4})
	d.Missing = &request.Missing{Kind: request.ValidMax, Max: json.Number("10")}
	res, err := Execute(Max, d, toBytes(vals))
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, ndview.AsSlice[float64](res.Body))
}

func TestCountInvariantAgainstSelect(t *testing.T) {
	// count(select(x)) equals the selected element count with no policy.
	vals := make([]uint32, 24)
	for i := range vals {
		vals[i] = uint32(i)
	}
	d := desc(request.Uint32, []int{4, 6})
	d.Selection = []request.Slice{{Start: 1, End: 4, Stride: 2}, {Start: 0, End: 6, Stride: 3}}

	sel, err := Execute(Select, d, toBytes(vals))
	require.NoError(t, err)
	cnt, err := Execute(Count, d, toBytes(vals))
	require.NoError(t, err)

	expected := int64(1)
	for _, dim := range sel.Shape {
		expected *= int64(dim)
	}
	assert.Equal(t, []int64{expected}, cnt.Counts)
}
