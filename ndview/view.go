// Package ndview provides zero-copy typed N-dimensional views over decoded
// chunk buffers, with byte-order and storage-order normalization.
package ndview

import (
	"unsafe"

	"github.com/c360/reductionist/request"
)

// Element constrains the numeric element types a view can hold.
type Element interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// AsSlice reinterprets buf as a slice of T without copying. The caller
// must keep buf alive for as long as the returned slice is in use, and
// len(buf) must be a multiple of the element size. Buffers produced by the
// download and filter stages are heap-allocated and suitably aligned for
// any of the supported element types.
func AsSlice[T Element](buf []byte) []T {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), len(buf)/elemSize)
}

// View is an N-dimensional view of a borrowed element slice. Strides are
// expressed in elements and may describe C order, Fortran order or any
// strided selection of either; the view never owns or copies the data.
type View[T Element] struct {
	data    []T
	shape   []int
	strides []int
	offset  int
}

// New constructs a view of data with the given shape and storage order.
// The element count implied by shape must equal len(data).
func New[T Element](data []T, shape []int, order request.Order) View[T] {
	return View[T]{
		data:    data,
		shape:   shape,
		strides: stridesFor(shape, order),
	}
}

// stridesFor computes contiguous strides for a shape in the given order.
func stridesFor(shape []int, order request.Order) []int {
	strides := make([]int, len(shape))
	stride := 1
	if order == request.ColumnMajor {
		for i := 0; i < len(shape); i++ {
			strides[i] = stride
			stride *= shape[i]
		}
	} else {
		for i := len(shape) - 1; i >= 0; i-- {
			strides[i] = stride
			stride *= shape[i]
		}
	}
	return strides
}

// Slice returns the sub-view described by the per-dimension selection.
// The result borrows the same underlying data.
func (v View[T]) Slice(selection []request.Slice) View[T] {
	if selection == nil {
		return v
	}
	sub := View[T]{
		data:    v.data,
		shape:   make([]int, len(v.shape)),
		strides: make([]int, len(v.strides)),
		offset:  v.offset,
	}
	for i, s := range selection {
		sub.offset += s.Start * v.strides[i]
		sub.shape[i] = s.Count()
		sub.strides[i] = v.strides[i] * s.Stride
	}
	return sub
}

// Shape returns the dimension lengths of the view.
func (v View[T]) Shape() []int {
	return v.shape
}

// NDim returns the number of dimensions.
func (v View[T]) NDim() int {
	return len(v.shape)
}

// Len returns the number of logical elements in the view.
func (v View[T]) Len() int {
	n := 1
	for _, dim := range v.shape {
		n *= dim
	}
	return n
}

// At returns the element at the given coordinates.
func (v View[T]) At(coords ...int) T {
	idx := v.offset
	for i, c := range coords {
		idx += c * v.strides[i]
	}
	return v.data[idx]
}

// Contiguous reports whether a linear walk of v.data[offset : offset+Len()]
// visits exactly the view's elements, in some order. This holds for
// unsliced views in either storage order and enables the linear fast path
// for order-insensitive full reductions.
func (v View[T]) Contiguous() bool {
	n := v.Len()
	if n == 0 {
		return true
	}
	// A contiguous block covers exactly n elements: the sum over axes of
	// stride*(dim-1) reaches n-1 and all strides are positive.
	span := 0
	for i, dim := range v.shape {
		if v.strides[i] < 0 {
			return false
		}
		span += v.strides[i] * (dim - 1)
	}
	return span == n-1
}

// Raw returns the borrowed data and the view's offset for contiguous
// fast-path consumers. Callers must check Contiguous first.
func (v View[T]) Raw() ([]T, int) {
	return v.data, v.offset
}

// Walk calls fn for every element of the view. Elements are visited in
// row-major logical order: the last axis varies fastest regardless of the
// underlying storage order.
func (v View[T]) Walk(fn func(val T)) {
	v.WalkIndexed(func(_ []int, val T) { fn(val) })
}

// WalkIndexed calls fn with the logical coordinates of every element, in
// row-major logical order. The coordinate slice is reused across calls.
func (v View[T]) WalkIndexed(fn func(coords []int, val T)) {
	ndim := len(v.shape)
	if ndim == 0 {
		fn(nil, v.data[v.offset])
		return
	}
	for _, dim := range v.shape {
		if dim == 0 {
			return
		}
	}

	coords := make([]int, ndim)
	idx := v.offset
	for {
		fn(coords, v.data[idx])

		// Odometer increment over the logical coordinates.
		axis := ndim - 1
		for {
			coords[axis]++
			idx += v.strides[axis]
			if coords[axis] < v.shape[axis] {
				break
			}
			idx -= coords[axis] * v.strides[axis]
			coords[axis] = 0
			axis--
			if axis < 0 {
				return
			}
		}
	}
}

// WalkOrder calls fn for every element following the given storage order:
// row-major visits the last axis fastest, column-major the first. It is
// used to pack selections densely in the order the client requested.
func (v View[T]) WalkOrder(order request.Order, fn func(val T)) {
	if order != request.ColumnMajor {
		v.Walk(fn)
		return
	}
	ndim := len(v.shape)
	if ndim == 0 {
		fn(v.data[v.offset])
		return
	}
	for _, dim := range v.shape {
		if dim == 0 {
			return
		}
	}

	coords := make([]int, ndim)
	idx := v.offset
	for {
		fn(v.data[idx])

		axis := 0
		for {
			coords[axis]++
			idx += v.strides[axis]
			if coords[axis] < v.shape[axis] {
				break
			}
			idx -= coords[axis] * v.strides[axis]
			coords[axis] = 0
			axis++
			if axis >= ndim {
				return
			}
		}
	}
}
