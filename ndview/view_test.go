package ndview

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/reductionist/request"
)

func TestAsSlice(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:], 1)
	binary.LittleEndian.PutUint32(buf[4:], 2)
	if request.NativeByteOrder == request.BigEndian {
		binary.BigEndian.PutUint32(buf[0:], 1)
		binary.BigEndian.PutUint32(buf[4:], 2)
	}
	s := AsSlice[uint32](buf)
	require.Len(t, s, 2)
	assert.Equal(t, uint32(1), s[0])
	assert.Equal(t, uint32(2), s[1])

	// Mutations are visible through the original buffer: same memory.
	s[0] = 7
	s2 := AsSlice[uint32](buf)
	assert.Equal(t, uint32(7), s2[0])
}

func TestAsSliceEmpty(t *testing.T) {
	assert.Nil(t, AsSlice[int64](nil))
}

func TestViewWalkRowMajor(t *testing.T) {
	data := []int32{0, 1, 2, 3, 4, 5}
	v := New(data, []int{2, 3}, request.RowMajor)
	var got []int32
	v.Walk(func(val int32) { got = append(got, val) })
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5}, got)
	assert.Equal(t, 6, v.Len())
	assert.Equal(t, int32(5), v.At(1, 2))
}

func TestViewWalkColumnMajorStorage(t *testing.T) {
	// Fortran-stored [[0, 2, 4], [1, 3, 5]]: logical row-major walk must
	// still yield 0,2,4,1,3,5.
	data := []int32{0, 1, 2, 3, 4, 5}
	v := New(data, []int{2, 3}, request.ColumnMajor)
	var got []int32
	v.Walk(func(val int32) { got = append(got, val) })
	assert.Equal(t, []int32{0, 2, 4, 1, 3, 5}, got)
	assert.Equal(t, int32(3), v.At(1, 1))
}

func TestViewSlice(t *testing.T) {
	// 4x5 row-major array of 0..19.
	data := make([]float32, 20)
	for i := range data {
		data[i] = float32(i)
	}
	v := New(data, []int{4, 5}, request.RowMajor)
	sub := v.Slice([]request.Slice{{Start: 1, End: 4, Stride: 1}, {Start: 0, End: 5, Stride: 2}})
	assert.Equal(t, []int{3, 3}, sub.Shape())
	assert.Equal(t, 9, sub.Len())

	var got []float32
	sub.Walk(func(val float32) { got = append(got, val) })
	assert.Equal(t, []float32{5, 7, 9, 10, 12, 14, 15, 17, 19}, got)
}

func TestViewSliceOfSlice(t *testing.T) {
	data := []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	v := New(data, []int{10}, request.RowMajor)
	sub := v.Slice([]request.Slice{{Start: 2, End: 10, Stride: 2}}) // 2,4,6,8
	sub2 := sub.Slice([]request.Slice{{Start: 1, End: 4, Stride: 2}})
	var got []int64
	sub2.Walk(func(val int64) { got = append(got, val) })
	assert.Equal(t, []int64{4, 8}, got)
}

func TestViewContiguous(t *testing.T) {
	data := make([]uint64, 12)
	v := New(data, []int{3, 4}, request.RowMajor)
	assert.True(t, v.Contiguous())
	assert.True(t, New(data, []int{3, 4}, request.ColumnMajor).Contiguous())
	sub := v.Slice([]request.Slice{{Start: 0, End: 3, Stride: 1}, {Start: 0, End: 4, Stride: 2}})
	assert.False(t, sub.Contiguous())
	// Selecting everything with stride 1 stays contiguous.
	full := v.Slice([]request.Slice{{Start: 0, End: 3, Stride: 1}, {Start: 0, End: 4, Stride: 1}})
	assert.True(t, full.Contiguous())
}

func TestViewWalkOrderColumnMajor(t *testing.T) {
	data := []int32{0, 1, 2, 3, 4, 5}
	v := New(data, []int{2, 3}, request.RowMajor)
	var got []int32
	v.WalkOrder(request.ColumnMajor, func(val int32) { got = append(got, val) })
	// Column-major walk of [[0,1,2],[3,4,5]] is 0,3,1,4,2,5.
	assert.Equal(t, []int32{0, 3, 1, 4, 2, 5}, got)
}

func TestWalkIndexed(t *testing.T) {
	data := []int32{0, 1, 2, 3}
	v := New(data, []int{2, 2}, request.RowMajor)
	var coords [][]int
	v.WalkIndexed(func(c []int, _ int32) {
		cp := make([]int, len(c))
		copy(cp, c)
		coords = append(coords, cp)
	})
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, coords)
}

func TestSwapBytes4(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	SwapBytes(buf, 4)
	assert.Equal(t, []byte{4, 3, 2, 1, 8, 7, 6, 5}, buf)
}

func TestSwapBytes8(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	SwapBytes(buf, 8)
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, buf)
}

func TestSwapBytesRoundTrip(t *testing.T) {
	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = byte(i)
	}
	orig := make([]byte, len(buf))
	copy(orig, buf)
	SwapBytes(buf, 8)
	SwapBytes(buf, 8)
	assert.Equal(t, orig, buf)
}

func TestSwapBytesParallel(t *testing.T) {
	// Above the parallel threshold the result must match a serial swap.
	buf := make([]byte, parallelSwapThreshold+4096)
	for i := range buf {
		buf[i] = byte(i * 31)
	}
	expected := make([]byte, len(buf))
	copy(expected, buf)
	swapRange(expected, 4)

	SwapBytes(buf, 4)
	assert.Equal(t, expected, buf)
}
