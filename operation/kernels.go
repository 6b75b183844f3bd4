package operation

import (
	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/ndview"
	"github.com/c360/reductionist/request"
)

// axisReduction maps the logical coordinates of an input element to the
// flat index of its output cell for a reduction over a set of axes.
type axisReduction struct {
	outShape   []int
	keptAxes   []int
	keptStride []int
	outLen     int
	all        bool
}

// newAxisReduction resolves the axis list against the view shape. A nil
// list, or one covering every axis, reduces to a scalar.
func newAxisReduction(shape []int, axes []int) axisReduction {
	reduced := make([]bool, len(shape))
	if axes == nil {
		for i := range reduced {
			reduced[i] = true
		}
	} else {
		for _, a := range axes {
			reduced[a] = true
		}
	}

	red := axisReduction{outShape: []int{}, outLen: 1, all: true}
	for axis, dim := range shape {
		if reduced[axis] {
			continue
		}
		red.all = false
		red.outShape = append(red.outShape, dim)
		red.keptAxes = append(red.keptAxes, axis)
	}
	// Row-major strides over the output shape, aligned with keptAxes.
	red.keptStride = make([]int, len(red.outShape))
	stride := 1
	for i := len(red.outShape) - 1; i >= 0; i-- {
		red.keptStride[i] = stride
		stride *= red.outShape[i]
	}
	red.outLen = stride
	return red
}

// outIndex returns the flat output cell for an input element's coordinates.
func (r *axisReduction) outIndex(coords []int) int {
	idx := 0
	for i, axis := range r.keptAxes {
		idx += coords[axis] * r.keptStride[i]
	}
	return idx
}

// countKernel counts non-missing elements per output cell.
func countKernel[T ndview.Element](v ndview.View[T], pol policy[T], axes []int) (*Result, error) {
	red := newAxisReduction(v.Shape(), axes)
	counts := make([]int64, red.outLen)

	if red.all {
		forEachLinear(v, func(val T) {
			if !pol.missing(val) {
				counts[0]++
			}
		})
	} else {
		v.WalkIndexed(func(coords []int, val T) {
			if !pol.missing(val) {
				counts[red.outIndex(coords)]++
			}
		})
	}

	return &Result{
		Body:        toBytes(counts),
		DType:       request.Int64,
		Shape:       red.outShape,
		Counts:      counts,
		ScalarCount: red.all,
	}, nil
}

// sumKernel accumulates in the request dtype: no widening, and integer
// overflow wraps in two's complement.
func sumKernel[T ndview.Element](
	v ndview.View[T], pol policy[T], desc *request.Descriptor, axes []int,
) (*Result, error) {
	red := newAxisReduction(v.Shape(), axes)
	sums := make([]T, red.outLen)
	counts := make([]int64, red.outLen)

	if red.all {
		forEachLinear(v, func(val T) {
			if !pol.missing(val) {
				sums[0] += val
				counts[0]++
			}
		})
	} else {
		v.WalkIndexed(func(coords []int, val T) {
			if !pol.missing(val) {
				idx := red.outIndex(coords)
				sums[idx] += val
				counts[idx]++
			}
		})
	}

	return &Result{
		Body:        toBytes(sums),
		DType:       desc.DType,
		Shape:       red.outShape,
		Counts:      counts,
		ScalarCount: red.all,
	}, nil
}

// minMaxKernel folds the extremum per output cell. A cell with no valid
// elements has no representable sentinel, so the whole reduction fails
// with NO_VALID_ELEMENTS.
func minMaxKernel[T ndview.Element](
	v ndview.View[T], pol policy[T], desc *request.Descriptor, axes []int, isMax bool,
) (*Result, error) {
	red := newAxisReduction(v.Shape(), axes)
	vals := make([]T, red.outLen)
	valid := make([]bool, red.outLen)
	counts := make([]int64, red.outLen)

	fold := func(idx int, val T) {
		if pol.missing(val) {
			return
		}
		counts[idx]++
		if !valid[idx] {
			vals[idx] = val
			valid[idx] = true
			return
		}
		if isMax {
			if val > vals[idx] {
				vals[idx] = val
			}
		} else if val < vals[idx] {
			vals[idx] = val
		}
	}

	if red.all {
		forEachLinear(v, func(val T) { fold(0, val) })
	} else {
		v.WalkIndexed(func(coords []int, val T) { fold(red.outIndex(coords), val) })
	}

	name := "min"
	if isMax {
		name = "max"
	}
	for _, ok := range valid {
		if !ok {
			return nil, errors.Newf(errors.KindNoValidElements, "operation", name,
				"cannot perform %s: no valid elements", name)
		}
	}

	return &Result{
		Body:        toBytes(vals),
		DType:       desc.DType,
		Shape:       red.outShape,
		Counts:      counts,
		ScalarCount: red.all,
	}, nil
}

// selectKernel packs the selected elements densely in the requested
// storage order. All elements are returned; the count reports how many are
// non-missing.
func selectKernel[T ndview.Element](
	v ndview.View[T], pol policy[T], desc *request.Descriptor,
) (*Result, error) {
	out := make([]T, 0, v.Len())
	var count int64
	v.WalkOrder(desc.Order, func(val T) {
		out = append(out, val)
		if !pol.missing(val) {
			count++
		}
	})

	shape := make([]int, len(v.Shape()))
	copy(shape, v.Shape())

	return &Result{
		Body:        toBytes(out),
		DType:       desc.DType,
		Shape:       shape,
		Counts:      []int64{count},
		ScalarCount: true,
	}, nil
}

// forEachLinear visits every element of the view. Contiguous views take a
// single linear scan over the borrowed slice; strided views fall back to
// the odometer walk. Visit order is unspecified, which is fine for the
// order-insensitive full reductions that use it.
func forEachLinear[T ndview.Element](v ndview.View[T], fn func(val T)) {
	if v.Contiguous() {
		data, offset := v.Raw()
		for _, val := range data[offset : offset+v.Len()] {
			fn(val)
		}
		return
	}
	v.Walk(fn)
}
