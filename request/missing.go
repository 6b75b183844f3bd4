package request

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/c360/reductionist/errors"
)

// MissingKind identifies the form of a missing-data policy.
type MissingKind int

// Missing-data policy kinds.
const (
	// MissingValue marks a single sentinel value as missing.
	MissingValue MissingKind = iota
	// MissingValues marks each value in a set as missing.
	MissingValues
	// ValidMin marks values below a minimum as missing.
	ValidMin
	// ValidMax marks values above a maximum as missing.
	ValidMax
	// ValidRange marks values outside an inclusive range as missing.
	ValidRange
)

// Missing describes which array elements are treated as absent.
// Scalars are kept as json.Number so that 64-bit integer sentinels survive
// without a round trip through float64; kernels parse them into the request
// dtype's domain.
type Missing struct {
	Kind   MissingKind
	Value  json.Number
	Values []json.Number
	Min    json.Number
	Max    json.Number
}

// UnmarshalJSON decodes a missing policy, requiring exactly one of the five
// recognized forms.
func (m *Missing) UnmarshalJSON(data []byte) error {
	var raw struct {
		MissingValue  *json.Number  `json:"missing_value"`
		MissingValues []json.Number `json:"missing_values"`
		ValidMin      *json.Number  `json:"valid_min"`
		ValidMax      *json.Number  `json:"valid_max"`
		ValidRange    []json.Number `json:"valid_range"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	set := 0
	if raw.MissingValue != nil {
		set++
		m.Kind = MissingValue
		m.Value = *raw.MissingValue
	}
	if raw.MissingValues != nil {
		set++
		m.Kind = MissingValues
		m.Values = raw.MissingValues
	}
	if raw.ValidMin != nil {
		set++
		m.Kind = ValidMin
		m.Min = *raw.ValidMin
	}
	if raw.ValidMax != nil {
		set++
		m.Kind = ValidMax
		m.Max = *raw.ValidMax
	}
	if raw.ValidRange != nil {
		set++
		m.Kind = ValidRange
		if len(raw.ValidRange) != 2 {
			return errors.New(errors.KindBadRequest, "request", "Missing",
				"valid_range must have exactly two elements")
		}
		m.Min = raw.ValidRange[0]
		m.Max = raw.ValidRange[1]
	}
	if set != 1 {
		return errors.New(errors.KindBadRequest, "request", "Missing",
			"missing must specify exactly one of missing_value, missing_values, valid_min, valid_max, valid_range")
	}
	return nil
}

// scalars returns every scalar referenced by the policy.
func (m *Missing) scalars() []json.Number {
	switch m.Kind {
	case MissingValue:
		return []json.Number{m.Value}
	case MissingValues:
		return m.Values
	case ValidMin:
		return []json.Number{m.Min}
	case ValidMax:
		return []json.Number{m.Max}
	case ValidRange:
		return []json.Number{m.Min, m.Max}
	}
	return nil
}

// validate checks that every scalar round-trips through dtype without loss.
func (m *Missing) validate(dtype DType) error {
	for _, n := range m.scalars() {
		if err := CheckScalar(n, dtype); err != nil {
			return err
		}
	}
	if m.Kind == ValidRange {
		lo, err1 := m.Min.Float64()
		hi, err2 := m.Max.Float64()
		if err1 == nil && err2 == nil && lo > hi {
			return errors.New(errors.KindBadRequest, "request", "Missing",
				"valid_range minimum exceeds maximum")
		}
	}
	return nil
}

// CheckScalar verifies that the JSON number is representable in dtype
// without loss. Integer dtypes accept integer literals within range;
// float dtypes additionally require exact representability for f32.
func CheckScalar(n json.Number, dtype DType) error {
	s := n.String()
	switch dtype {
	case Int32:
		_, err := strconv.ParseInt(s, 10, 32)
		return scalarErr(err, s, dtype)
	case Int64:
		_, err := strconv.ParseInt(s, 10, 64)
		return scalarErr(err, s, dtype)
	case Uint32:
		_, err := strconv.ParseUint(s, 10, 32)
		return scalarErr(err, s, dtype)
	case Uint64:
		_, err := strconv.ParseUint(s, 10, 64)
		return scalarErr(err, s, dtype)
	case Float64:
		_, err := strconv.ParseFloat(s, 64)
		return scalarErr(err, s, dtype)
	case Float32:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return scalarErr(err, s, dtype)
		}
		if !math.IsInf(f, 0) && float64(float32(f)) != f {
			return errors.Newf(errors.KindBadRequest, "request", "CheckScalar",
				"value %s is not representable in f32", s)
		}
		return nil
	default:
		return errors.Newf(errors.KindBadRequest, "request", "CheckScalar", "unknown dtype %q", dtype)
	}
}

func scalarErr(err error, s string, dtype DType) error {
	if err == nil {
		return nil
	}
	return errors.Newf(errors.KindBadRequest, "request", "CheckScalar",
		"value %s is not representable in %s", s, dtype)
}

// Int64Value parses n in the i64 domain.
func Int64Value(n json.Number) int64 {
	v, _ := strconv.ParseInt(n.String(), 10, 64)
	return v
}

// Uint64Value parses n in the u64 domain.
func Uint64Value(n json.Number) uint64 {
	v, _ := strconv.ParseUint(n.String(), 10, 64)
	return v
}

// Float64Value parses n in the f64 domain.
func Float64Value(n json.Number) float64 {
	v, _ := strconv.ParseFloat(n.String(), 64)
	return v
}
