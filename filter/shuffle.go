package filter

import (
	"github.com/c360/reductionist/errors"
)

// Deshuffle inverts the byte shuffle filter. The shuffle writes the 0th
// byte of every element first, then the 1st byte of every element, and so
// on; the inverse regroups each element's bytes contiguously. The inner
// loop is unrolled for the 4- and 8-byte element sizes of the supported
// dtypes.
func Deshuffle(data []byte, elementSize int) ([]byte, error) {
	if elementSize <= 0 {
		return nil, errors.Newf(errors.KindDecodeFailed, "filter", "Deshuffle",
			"element size %d must be positive", elementSize)
	}
	if len(data)%elementSize != 0 {
		return nil, errors.Newf(errors.KindDecodeFailed, "filter", "Deshuffle",
			"data length %d is not a multiple of element size %d", len(data), elementSize)
	}

	result := make([]byte, len(data))
	elements := len(data) / elementSize

	dst := 0
	switch elementSize {
	case 4:
		for i := 0; i < elements; i++ {
			src := i
			result[dst] = data[src]
			src += elements
			result[dst+1] = data[src]
			src += elements
			result[dst+2] = data[src]
			src += elements
			result[dst+3] = data[src]
			dst += 4
		}
	case 8:
		for i := 0; i < elements; i++ {
			src := i
			result[dst] = data[src]
			src += elements
			result[dst+1] = data[src]
			src += elements
			result[dst+2] = data[src]
			src += elements
			result[dst+3] = data[src]
			src += elements
			result[dst+4] = data[src]
			src += elements
			result[dst+5] = data[src]
			src += elements
			result[dst+6] = data[src]
			src += elements
			result[dst+7] = data[src]
			dst += 8
		}
	default:
		for i := 0; i < elements; i++ {
			src := i
			for b := 0; b < elementSize; b++ {
				result[dst] = data[src]
				src += elements
				dst++
			}
		}
	}
	return result, nil
}

// Shuffle applies the byte shuffle filter. The server never shuffles on
// the request path; this exists for tests and tooling that prepare
// filtered objects.
func Shuffle(data []byte, elementSize int) ([]byte, error) {
	if elementSize <= 0 || len(data)%elementSize != 0 {
		return nil, errors.Newf(errors.KindDecodeFailed, "filter", "Shuffle",
			"data length %d is not a multiple of element size %d", len(data), elementSize)
	}
	result := make([]byte, 0, len(data))
	for b := 0; b < elementSize; b++ {
		for src := b; src < len(data); src += elementSize {
			result = append(result, data[src])
		}
	}
	return result, nil
}
