package operation

import (
	"encoding/json"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/ndview"
	"github.com/c360/reductionist/request"
)

type policyKind int

const (
	policyNone policyKind = iota
	policyValue
	policyValues
	policyValidMin
	policyValidMax
	policyValidRange
)

// policy is the missing-data policy instantiated in the element domain.
// NaN elements of floating dtypes are always missing regardless of kind.
type policy[T ndview.Element] struct {
	kind   policyKind
	value  T
	values []T
	min    T
	max    T
}

// newPolicy converts the request-level policy into the typed domain. The
// request validator has already checked representability, so scalar
// conversion cannot fail here.
func newPolicy[T ndview.Element](m *request.Missing) (policy[T], error) {
	if m == nil {
		return policy[T]{kind: policyNone}, nil
	}
	switch m.Kind {
	case request.MissingValue:
		return policy[T]{kind: policyValue, value: scalarTo[T](m.Value)}, nil
	case request.MissingValues:
		values := make([]T, len(m.Values))
		for i, n := range m.Values {
			values[i] = scalarTo[T](n)
		}
		return policy[T]{kind: policyValues, values: values}, nil
	case request.ValidMin:
		return policy[T]{kind: policyValidMin, min: scalarTo[T](m.Min)}, nil
	case request.ValidMax:
		return policy[T]{kind: policyValidMax, max: scalarTo[T](m.Max)}, nil
	case request.ValidRange:
		return policy[T]{kind: policyValidRange, min: scalarTo[T](m.Min), max: scalarTo[T](m.Max)}, nil
	default:
		return policy[T]{}, errors.Newf(errors.KindBadRequest, "operation", "newPolicy",
			"unknown missing policy kind %d", m.Kind)
	}
}

// missing reports whether element v is absent under the policy.
func (p *policy[T]) missing(v T) bool {
	// NaN is the only value that compares unequal to itself; integer
	// elements never satisfy this.
	if v != v {
		return true
	}
	switch p.kind {
	case policyValue:
		return v == p.value
	case policyValues:
		for _, mv := range p.values {
			if v == mv {
				return true
			}
		}
		return false
	case policyValidMin:
		return v < p.min
	case policyValidMax:
		return v > p.max
	case policyValidRange:
		return v < p.min || v > p.max
	default:
		return false
	}
}

// active reports whether any element can be classified missing. Floating
// dtypes are always active because of NaN.
func (p *policy[T]) active(dtype request.DType) bool {
	return p.kind != policyNone || dtype.IsFloat()
}

// scalarTo parses a JSON number in the element domain. Signed and unsigned
// integers parse in their own domain so 64-bit sentinels do not round-trip
// through float64.
func scalarTo[T ndview.Element](n json.Number) T {
	var zero T
	switch any(zero).(type) {
	case int32, int64:
		return T(request.Int64Value(n))
	case uint32, uint64:
		return T(request.Uint64Value(n))
	default:
		return T(request.Float64Value(n))
	}
}
