// Package response encodes reduction results and errors on the wire:
// CBOR documents for v2, raw bytes plus x-activestorage-* headers for the
// legacy v1 surface, and structured JSON error bodies for both.
package response

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fxamacker/cbor/v2"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/ndview"
	"github.com/c360/reductionist/operation"
	"github.com/c360/reductionist/request"
)

// Header names of the legacy v1 surface.
const (
	HeaderDType     = "x-activestorage-dtype"
	HeaderByteOrder = "x-activestorage-byte-order"
	HeaderShape     = "x-activestorage-shape"
	HeaderCount     = "x-activestorage-count"
)

// Payload is a reduction result prepared for the wire: the body is in the
// byte order the client requested.
type Payload struct {
	Body        []byte
	DType       request.DType
	Shape       []int
	Counts      []int64
	ScalarCount bool
	ByteOrder   request.ByteOrder
}

// FromResult converts a kernel result, swapping the body into the
// requested byte order. The kernel body is a fresh buffer, so the swap is
// done in place.
func FromResult(res *operation.Result, byteOrder request.ByteOrder) *Payload {
	if byteOrder != request.NativeByteOrder {
		ndview.SwapBytes(res.Body, res.DType.Size())
	}
	return &Payload{
		Body:        res.Body,
		DType:       res.DType,
		Shape:       res.Shape,
		Counts:      res.Counts,
		ScalarCount: res.ScalarCount,
		ByteOrder:   byteOrder,
	}
}

// cborDocument is the v2 wire format.
type cborDocument struct {
	Bytes     []byte `cbor:"bytes"`
	DType     string `cbor:"dtype"`
	Shape     []int  `cbor:"shape"`
	Count     any    `cbor:"count"`
	ByteOrder string `cbor:"byte_order"`
}

func (p *Payload) count() any {
	if p.ScalarCount {
		return p.Counts[0]
	}
	return p.Counts
}

func (p *Payload) shape() []int {
	if p.Shape == nil {
		return []int{}
	}
	return p.Shape
}

// WriteV2 renders the payload as an application/cbor document.
func WriteV2(w http.ResponseWriter, p *Payload) error {
	doc := cborDocument{
		Bytes:     p.Body,
		DType:     string(p.DType),
		Shape:     p.shape(),
		Count:     p.count(),
		ByteOrder: string(p.ByteOrder),
	}
	body, err := cbor.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "response", "WriteV2", "encode cbor")
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}

// WriteV1 renders the payload as a raw binary body with metadata headers.
func WriteV1(w http.ResponseWriter, p *Payload) error {
	shape, err := json.Marshal(p.shape())
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "response", "WriteV1", "encode shape")
	}
	var count []byte
	if p.ScalarCount {
		count = []byte(fmt.Sprintf("%d", p.Counts[0]))
	} else {
		if count, err = json.Marshal(p.Counts); err != nil {
			return errors.Wrap(err, errors.KindInternal, "response", "WriteV1", "encode count")
		}
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(HeaderDType, string(p.DType))
	w.Header().Set(HeaderByteOrder, string(p.ByteOrder))
	w.Header().Set(HeaderShape, string(shape))
	w.Header().Set(HeaderCount, string(count))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(p.Body)
	return err
}

// errorBody is the JSON error wire format shared by both versions.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message  string   `json:"message"`
	CausedBy []string `json:"caused_by"`
}

// WriteError renders err as a structured JSON error. The caused_by chain
// leads with the stable error kind and lists underlying causes with the
// root cause last. Server-side failures are logged with their full chain.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := errors.HTTPStatus(err)
	causedBy := append([]string{string(errors.KindOf(err))}, errors.Chain(err)...)

	if status >= 500 && logger != nil {
		logger.Error("request failed", "status", status, "error", err.Error(), "caused_by", causedBy)
	}

	body, marshalErr := json.Marshal(errorBody{
		Error: errorDetail{Message: err.Error(), CausedBy: causedBy},
	})
	if marshalErr != nil {
		http.Error(w, "failed to serialize error response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
