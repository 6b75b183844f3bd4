// Package operation implements the reduction kernels: count, min, max,
// sum and select over a typed N-dimensional view, honoring the request's
// missing-data policy and axis list.
//
// Dispatch is doubly polymorphic and closed: the operation tag selects a
// kernel and a switch over the six dtypes instantiates a monomorphized
// generic kernel for each. There is no per-element virtual dispatch.
package operation

import (
	"unsafe"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/ndview"
	"github.com/c360/reductionist/request"
)

// Op is a reduction operation tag.
type Op string

// Supported operations.
const (
	Count  Op = "count"
	Max    Op = "max"
	Min    Op = "min"
	Select Op = "select"
	Sum    Op = "sum"
)

// Lookup resolves an operation name from the URL path.
func Lookup(name string) (Op, bool) {
	switch Op(name) {
	case Count, Max, Min, Select, Sum:
		return Op(name), true
	default:
		return "", false
	}
}

// Result is the outcome of a kernel: the packed result bytes in native
// byte order plus the metadata the response encoder needs.
type Result struct {
	Body  []byte
	DType request.DType
	Shape []int
	// Counts holds the number of non-missing elements contributing to
	// each output cell; a single entry for scalar results.
	Counts []int64
	// ScalarCount reports whether Counts should render as a single
	// integer rather than an array.
	ScalarCount bool
}

// Execute runs the operation described by desc over the decoded raw bytes.
// The raw buffer must already be in native byte order and of the size
// implied by desc.Shape; it is borrowed for the duration of the call.
func Execute(op Op, desc *request.Descriptor, raw []byte) (*Result, error) {
	switch desc.DType {
	case request.Int32:
		return executeTyped[int32](op, desc, raw)
	case request.Int64:
		return executeTyped[int64](op, desc, raw)
	case request.Uint32:
		return executeTyped[uint32](op, desc, raw)
	case request.Uint64:
		return executeTyped[uint64](op, desc, raw)
	case request.Float32:
		return executeTyped[float32](op, desc, raw)
	case request.Float64:
		return executeTyped[float64](op, desc, raw)
	default:
		return nil, errors.Newf(errors.KindBadRequest, "operation", "Execute",
			"unknown dtype %q", desc.DType)
	}
}

func executeTyped[T ndview.Element](op Op, desc *request.Descriptor, raw []byte) (*Result, error) {
	view := ndview.New(ndview.AsSlice[T](raw), desc.Shape, desc.Order).Slice(desc.Selection)
	pol, err := newPolicy[T](desc.Missing)
	if err != nil {
		return nil, err
	}

	switch op {
	case Count:
		return countKernel(view, pol, desc.Axes)
	case Min:
		return minMaxKernel(view, pol, desc, desc.Axes, false)
	case Max:
		return minMaxKernel(view, pol, desc, desc.Axes, true)
	case Sum:
		return sumKernel(view, pol, desc, desc.Axes)
	case Select:
		return selectKernel(view, pol, desc)
	default:
		return nil, errors.Newf(errors.KindNotFound, "operation", "Execute",
			"unsupported operation %s", op)
	}
}

// toBytes packs a value slice into a fresh byte slice.
func toBytes[T ndview.Element](vals []T) []byte {
	if len(vals) == 0 {
		return []byte{}
	}
	size := int(unsafe.Sizeof(vals[0]))
	src := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*size)
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
