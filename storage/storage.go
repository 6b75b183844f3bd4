// Package storage defines the object-store client interface implemented by
// the S3 and HTTP(S) backends.
package storage

import (
	"context"

	"github.com/c360/reductionist/request"
)

// Credentials carries the client's upstream identity. The zero value is
// anonymous access.
type Credentials struct {
	AccessKey string
	Secret    string
}

// Anonymous reports whether no credentials were supplied.
func (c Credentials) Anonymous() bool {
	return c.AccessKey == "" && c.Secret == ""
}

// Fetcher is the surface the pipeline needs from an object store: fetch
// exactly the requested byte range as one fully materialized buffer, learn
// the object's size, and probe authorization. Streaming is deliberately absent because downstream
// stages need random access to the whole chunk.
type Fetcher interface {
	// FetchRange downloads [offset, offset+size) of the object. A
	// non-positive size means "from offset to the end of the object".
	FetchRange(ctx context.Context, desc *request.Descriptor, creds Credentials, offset, size int64) ([]byte, error)

	// ObjectSize returns the total object size in bytes.
	ObjectSize(ctx context.Context, desc *request.Descriptor, creds Credentials) (int64, error)

	// IsAuthorized probes, at low cost, whether the credentials could
	// access the object. Used only by the cache's shared-auth mode.
	IsAuthorized(ctx context.Context, desc *request.Descriptor, creds Credentials) (bool, error)
}
