// Package filter reverses the encoding pipeline of a downloaded chunk:
// decompression first, then filter inversion in reverse order of listing.
// The output is raw bytes in the declared dtype layout.
package filter

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/request"
)

// Run applies the decode pipeline described by desc to data. When neither
// compression nor filters are configured the input is returned unchanged,
// preserving zero-copy through to the typed view.
func Run(desc *request.Descriptor, data []byte) ([]byte, error) {
	var err error
	if desc.Compression != "" {
		data, err = decompress(desc.Compression, data, desc.ExpectedRawSize())
		if err != nil {
			return nil, err
		}
	}
	for i := len(desc.Filters) - 1; i >= 0; i-- {
		switch desc.Filters[i].ID {
		case request.FilterShuffle:
			data, err = Deshuffle(data, desc.Filters[i].ElementSize)
			if err != nil {
				return nil, err
			}
		default:
			return nil, errors.Newf(errors.KindDecodeFailed, "filter", "Run",
				"unknown filter %q", desc.Filters[i].ID)
		}
	}
	return data, nil
}

// decompress inflates data with the named codec. When the post-filter size
// is known it is enforced as an upper bound so a malicious payload cannot
// expand past the memory the governor accounted for.
func decompress(codec string, data []byte, expectedSize int64) ([]byte, error) {
	var reader io.ReadCloser
	var err error
	switch codec {
	case request.CompressionGzip:
		reader, err = gzip.NewReader(bytes.NewReader(data))
	case request.CompressionZlib:
		reader, err = zlib.NewReader(bytes.NewReader(data))
	default:
		return nil, errors.Newf(errors.KindDecodeFailed, "filter", "decompress",
			"unknown codec %q", codec)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.KindDecodeFailed, "filter", "decompress",
			codec+" header read")
	}
	defer reader.Close()

	var out []byte
	if expectedSize > 0 {
		out = make([]byte, 0, expectedSize)
		// Read one byte past the bound to detect oversized output.
		out, err = readAll(io.LimitReader(reader, expectedSize+1), out)
		if err == nil && int64(len(out)) > expectedSize {
			return nil, errors.Newf(errors.KindDecodeFailed, "filter", "decompress",
				"decompressed data exceeds expected size %d", expectedSize)
		}
	} else {
		out, err = readAll(reader, nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.KindDecodeFailed, "filter", "decompress",
			codec+" inflate")
	}
	return out, nil
}

func readAll(r io.Reader, buf []byte) ([]byte, error) {
	if buf == nil {
		return io.ReadAll(r)
	}
	for {
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return buf, err
		}
	}
}
