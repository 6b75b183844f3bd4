// Package request defines the reduction request model: JSON decoding,
// schema validation and normalization into the descriptor consumed by the
// rest of the pipeline.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/c360/reductionist/errors"
)

// Backend identifies the object-store protocol serving a request.
type Backend string

// Supported backends.
const (
	BackendS3    Backend = "s3"
	BackendHTTP  Backend = "http"
	BackendHTTPS Backend = "https"
)

// Version selects the wire format of the request body.
type Version int

// Wire format versions.
const (
	// V1 is the legacy {source, bucket, object} form, S3 only.
	V1 Version = 1
	// V2 is the unified {interface_type, url} form.
	V2 Version = 2
)

// Slice restricts one dimension of an array to [Start, End) with the given
// stride. Decoded from the wire form [start, end, stride].
type Slice struct {
	Start  int
	End    int
	Stride int
}

// UnmarshalJSON decodes a [start, end, stride] triple.
func (s *Slice) UnmarshalJSON(data []byte) error {
	var triple []int
	if err := json.Unmarshal(data, &triple); err != nil {
		return err
	}
	if len(triple) != 3 {
		return errors.New(errors.KindBadRequest, "request", "Slice",
			"selection entries must be [start, end, stride] triples")
	}
	s.Start, s.End, s.Stride = triple[0], triple[1], triple[2]
	return nil
}

// MarshalJSON encodes the wire triple form.
func (s Slice) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{s.Start, s.End, s.Stride})
}

// Count returns the number of indices selected by the slice.
func (s Slice) Count() int {
	if s.End <= s.Start || s.Stride < 1 {
		return 0
	}
	return (s.End - s.Start + s.Stride - 1) / s.Stride
}

// Axis is a reduction axis list, decoded from either a single integer or an
// array of integers.
type Axis []int

// UnmarshalJSON accepts an integer or an array of integers.
func (a *Axis) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []int
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*a = list
		return nil
	}
	var single int
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return err
	}
	*a = []int{single}
	return nil
}

// Filter is one entry of the filter pipeline.
type Filter struct {
	ID          string `json:"id"`
	ElementSize int    `json:"element_size"`
}

// FilterShuffle is the only supported filter.
const FilterShuffle = "shuffle"

// Compression codecs.
const (
	CompressionGzip = "gzip"
	CompressionZlib = "zlib"
)

// RequestData is the decoded JSON body of a reduction request, covering
// both wire versions. It is validated and normalized into a Descriptor
// before use.
type RequestData struct {
	// V1 locator
	Source string `json:"source,omitempty"`
	Bucket string `json:"bucket,omitempty"`
	Object string `json:"object,omitempty"`

	// V2 locator
	InterfaceType string `json:"interface_type,omitempty"`
	URL           string `json:"url,omitempty"`

	DType       DType     `json:"dtype"`
	ByteOrder   ByteOrder `json:"byte_order,omitempty"`
	Offset      *int64    `json:"offset,omitempty"`
	Size        *int64    `json:"size,omitempty"`
	Shape       []int     `json:"shape,omitempty"`
	Order       Order     `json:"order,omitempty"`
	Axis        Axis      `json:"axis,omitempty"`
	Selection   []Slice   `json:"selection,omitempty"`
	Compression string    `json:"compression,omitempty"`
	Filters     []Filter  `json:"filters,omitempty"`
	Missing     *Missing  `json:"missing,omitempty"`
}

// Descriptor is the normalized request consumed by the pipeline stages.
type Descriptor struct {
	Backend  Backend
	Endpoint string // S3 endpoint URL
	Bucket   string // S3 bucket
	Object   string // S3 object key
	URL      string // HTTP(S) object URL

	DType       DType
	ByteOrder   ByteOrder
	Order       Order
	Offset      int64
	Size        int64 // 0 until resolved when absent from the request
	Shape       []int // nil until resolved when absent from the request
	Axes        []int // nil means reduce over all axes
	Selection   []Slice
	Compression string
	Filters     []Filter
	Missing     *Missing

	// Operation is the reduction named by the URL path.
	Operation string

	sizeFromRequest  bool
	shapeFromRequest bool
}

// Parse validates body against the schema for the given wire version,
// decodes it and normalizes it into a Descriptor. All failures are
// BAD_REQUEST.
func Parse(version Version, body []byte) (*Descriptor, error) {
	if err := validateSchema(version, body); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	var data RequestData
	if err := dec.Decode(&data); err != nil {
		return nil, errors.Wrap(err, errors.KindBadRequest, "request", "Parse", "decode body")
	}

	desc, err := data.normalize(version)
	if err != nil {
		return nil, err
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// normalize resolves the locator and fills defaults.
func (r *RequestData) normalize(version Version) (*Descriptor, error) {
	desc := &Descriptor{
		DType:       r.DType,
		ByteOrder:   r.ByteOrder,
		Order:       r.Order,
		Shape:       r.Shape,
		Axes:        r.Axis,
		Selection:   r.Selection,
		Compression: r.Compression,
		Filters:     r.Filters,
		Missing:     r.Missing,
	}
	if desc.ByteOrder == "" {
		desc.ByteOrder = NativeByteOrder
	}
	if desc.Order == "" {
		desc.Order = RowMajor
	}
	if r.Offset != nil {
		desc.Offset = *r.Offset
	}
	if r.Size != nil {
		desc.Size = *r.Size
		desc.sizeFromRequest = true
	}
	desc.shapeFromRequest = r.Shape != nil

	switch version {
	case V1:
		desc.Backend = BackendS3
		desc.Endpoint = r.Source
		desc.Bucket = r.Bucket
		desc.Object = r.Object
	case V2:
		if err := desc.resolveLocator(r.InterfaceType, r.URL); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf(errors.KindBadRequest, "request", "normalize", "unknown version %d", version)
	}
	return desc, nil
}

// resolveLocator splits the unified v2 URL. For S3 the first path segment
// is the bucket and the remainder the object key; for HTTP(S) the URL is
// the object itself.
func (d *Descriptor) resolveLocator(interfaceType, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, errors.KindBadRequest, "request", "resolveLocator", "parse url")
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.Newf(errors.KindBadRequest, "request", "resolveLocator",
			"url %q must be absolute", rawURL)
	}

	switch Backend(interfaceType) {
	case BackendS3:
		d.Backend = BackendS3
		d.Endpoint = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
		path := strings.TrimPrefix(u.Path, "/")
		bucket, object, found := strings.Cut(path, "/")
		if !found || bucket == "" || object == "" {
			return errors.Newf(errors.KindBadRequest, "request", "resolveLocator",
				"s3 url %q must contain bucket and object", rawURL)
		}
		d.Bucket = bucket
		d.Object = object
	case BackendHTTP, BackendHTTPS:
		d.Backend = Backend(interfaceType)
		d.URL = rawURL
	default:
		return errors.Newf(errors.KindBadRequest, "request", "resolveLocator",
			"unsupported interface_type %q", interfaceType)
	}
	return nil
}

// validate enforces the semantic invariants that the JSON schema cannot
// express.
func (d *Descriptor) validate() error {
	dsize := int64(d.DType.Size())
	if dsize == 0 {
		return errors.Newf(errors.KindBadRequest, "request", "validate", "unknown dtype %q", d.DType)
	}

	if d.Offset < 0 {
		return errors.New(errors.KindBadRequest, "request", "validate", "offset must be nonnegative")
	}
	if d.sizeFromRequest {
		if d.Size <= 0 {
			return errors.New(errors.KindBadRequest, "request", "validate", "size must be positive")
		}
		if d.Size%dsize != 0 {
			return errors.Newf(errors.KindBadRequest, "request", "validate",
				"size %d is not a multiple of dtype size %d", d.Size, dsize)
		}
	}

	if d.shapeFromRequest {
		count := int64(1)
		for _, dim := range d.Shape {
			if dim <= 0 {
				return errors.New(errors.KindBadRequest, "request", "validate",
					"shape dimensions must be positive")
			}
			count *= int64(dim)
		}
		// With compression the request size covers the compressed bytes;
		// the raw size is re-validated once the data is decoded.
		if d.sizeFromRequest && d.Compression == "" && count*dsize != d.Size {
			return errors.Newf(errors.KindBadRequest, "request", "validate",
				"shape %v implies %d bytes but size is %d", d.Shape, count*dsize, d.Size)
		}
	}

	if d.Selection != nil {
		if !d.shapeFromRequest {
			return errors.New(errors.KindBadRequest, "request", "validate",
				"selection requires shape to be specified")
		}
		if len(d.Selection) != len(d.Shape) {
			return errors.Newf(errors.KindBadRequest, "request", "validate",
				"selection has %d entries but shape has %d dimensions",
				len(d.Selection), len(d.Shape))
		}
		for i, s := range d.Selection {
			if s.Stride < 1 {
				return errors.New(errors.KindBadRequest, "request", "validate",
					"selection stride must be at least 1")
			}
			if s.Start < 0 || s.End <= s.Start {
				return errors.Newf(errors.KindBadRequest, "request", "validate",
					"selection [%d, %d) is empty or negative", s.Start, s.End)
			}
			if s.End > d.Shape[i] {
				return errors.Newf(errors.KindBadRequest, "request", "validate",
					"selection end %d exceeds dimension %d of length %d", s.End, i, d.Shape[i])
			}
		}
	}

	if d.Axes != nil {
		ndim := len(d.Shape)
		if !d.shapeFromRequest {
			ndim = 1 // default shape is one-dimensional
		}
		seen := make(map[int]bool, len(d.Axes))
		for _, axis := range d.Axes {
			if axis < 0 || axis >= ndim {
				return errors.Newf(errors.KindBadRequest, "request", "validate",
					"axis %d out of range for %d dimensions", axis, ndim)
			}
			if seen[axis] {
				return errors.Newf(errors.KindBadRequest, "request", "validate",
					"axis %d listed more than once", axis)
			}
			seen[axis] = true
		}
	}

	for _, f := range d.Filters {
		if f.ID != FilterShuffle {
			return errors.Newf(errors.KindBadRequest, "request", "validate", "unknown filter %q", f.ID)
		}
		if f.ElementSize != int(dsize) {
			return errors.Newf(errors.KindBadRequest, "request", "validate",
				"shuffle element_size %d does not match dtype size %d", f.ElementSize, dsize)
		}
	}

	switch d.Compression {
	case "", CompressionGzip, CompressionZlib:
	default:
		return errors.Newf(errors.KindBadRequest, "request", "validate",
			"unknown compression %q", d.Compression)
	}

	if d.Missing != nil {
		if err := d.Missing.validate(d.DType); err != nil {
			return err
		}
	}

	switch d.Backend {
	case BackendS3:
		if d.Endpoint == "" || d.Bucket == "" || d.Object == "" {
			return errors.New(errors.KindBadRequest, "request", "validate",
				"s3 requests require source, bucket and object")
		}
		if _, err := url.Parse(d.Endpoint); err != nil {
			return errors.Wrap(err, errors.KindBadRequest, "request", "validate", "parse source url")
		}
	case BackendHTTP, BackendHTTPS:
		if d.URL == "" {
			return errors.New(errors.KindBadRequest, "request", "validate", "http requests require url")
		}
	}

	return nil
}

// ResolveSize records the object size learned from the store when the
// request omitted size. It must be called before the typed view is built.
// It does not set the shape; ValidateRawSize derives the default shape.
func (d *Descriptor) ResolveSize(size int64) error {
	dsize := int64(d.DType.Size())
	if !d.sizeFromRequest {
		if d.Compression == "" && size%dsize != 0 {
			return errors.Newf(errors.KindBadRequest, "request", "ResolveSize",
				"object size %d is not a multiple of dtype size %d", size, dsize)
		}
		d.Size = size
	}
	return nil
}

// ValidateRawSize checks the decoded byte count against the declared shape
// once decompression and filter inversion have run. When the request
// declared no shape the default one-dimensional shape is derived here.
func (d *Descriptor) ValidateRawSize(rawLen int) error {
	dsize := d.DType.Size()
	if rawLen%dsize != 0 {
		return errors.Newf(errors.KindBadRequest, "request", "ValidateRawSize",
			"decoded size %d is not a multiple of dtype size %d", rawLen, dsize)
	}
	if d.Shape == nil {
		d.Shape = []int{rawLen / dsize}
		if d.Selection != nil && len(d.Selection) != 1 {
			return errors.New(errors.KindBadRequest, "request", "ValidateRawSize",
				"selection does not match derived shape")
		}
		return nil
	}
	count := 1
	for _, dim := range d.Shape {
		count *= dim
	}
	if count*dsize != rawLen {
		return errors.Newf(errors.KindBadRequest, "request", "ValidateRawSize",
			"shape %v implies %d bytes but decoded data has %d", d.Shape, count*dsize, rawLen)
	}
	return nil
}

// SizeKnown reports whether the byte count is known before contacting the
// object store.
func (d *Descriptor) SizeKnown() bool {
	return d.sizeFromRequest
}

// ExpectedRawSize returns the post-decode byte count implied by the shape,
// or 0 when it cannot be known in advance.
func (d *Descriptor) ExpectedRawSize() int64 {
	if d.Shape != nil {
		count := int64(1)
		for _, dim := range d.Shape {
			count *= int64(dim)
		}
		return count * int64(d.DType.Size())
	}
	if d.Compression == "" && d.sizeFromRequest {
		return d.Size
	}
	return 0
}
