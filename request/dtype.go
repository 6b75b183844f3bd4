package request

import (
	"encoding/binary"
	"unsafe"
)

// DType identifies one of the supported numeric element types. The string
// values are the wire spellings used in requests and responses.
type DType string

// Supported data types.
const (
	Int32   DType = "i32"
	Int64   DType = "i64"
	Uint32  DType = "u32"
	Uint64  DType = "u64"
	Float32 DType = "f32"
	Float64 DType = "f64"
)

// Size returns the size of one element in bytes, or 0 for an unknown dtype.
func (d DType) Size() int {
	switch d {
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether d names a supported dtype.
func (d DType) Valid() bool {
	return d.Size() != 0
}

// IsFloat reports whether d is a floating point dtype.
func (d DType) IsFloat() bool {
	return d == Float32 || d == Float64
}

// ByteOrder identifies the byte order of the stored data.
type ByteOrder string

// Byte orders.
const (
	BigEndian    ByteOrder = "big"
	LittleEndian ByteOrder = "little"
)

// NativeByteOrder is the byte order of the host.
var NativeByteOrder = detectNativeByteOrder()

func detectNativeByteOrder() ByteOrder {
	var probe [2]byte
	*(*uint16)(unsafe.Pointer(&probe[0])) = 1
	if probe[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}

// Binary returns the encoding/binary order corresponding to o.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Order identifies the storage order of a multi-dimensional array.
type Order string

// Storage orders.
const (
	// RowMajor is C ordering: the last axis varies fastest.
	RowMajor Order = "C"
	// ColumnMajor is Fortran ordering: the first axis varies fastest.
	ColumnMajor Order = "F"
)
