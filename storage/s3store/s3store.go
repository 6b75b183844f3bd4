// Package s3store fetches byte ranges from S3-compatible object stores.
//
// Client construction dominates small-request latency, so one client per
// (endpoint, access key) pair is built lazily and cached in a process-wide
// concurrent map; lookups on the hot path are lock-free and clients are
// immutable after creation.
package s3store

import (
	"context"
	"io"
	"net/url"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/request"
	"github.com/c360/reductionist/storage"
)

// Store is the S3 backend.
type Store struct {
	clients sync.Map // endpoint + "\x00" + access key -> *minio.Client
}

// New creates an empty store; clients are constructed on first use.
func New() *Store {
	return &Store{}
}

// client returns the cached client for the endpoint and credentials,
// constructing it on first use. Concurrent first uses may both construct;
// LoadOrStore keeps exactly one.
func (s *Store) client(endpoint string, creds storage.Credentials) (*minio.Client, error) {
	key := endpoint + "\x00" + creds.AccessKey
	if cached, ok := s.clients.Load(key); ok {
		return cached.(*minio.Client), nil
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, errors.Newf(errors.KindBadRequest, "s3store", "client",
			"invalid endpoint url %q", endpoint)
	}
	opts := &minio.Options{
		Secure: u.Scheme == "https",
	}
	if !creds.Anonymous() {
		opts.Creds = credentials.NewStaticV4(creds.AccessKey, creds.Secret, "")
	}
	constructed, err := minio.New(u.Host, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUpstreamIO, "s3store", "client", "construct client")
	}

	actual, _ := s.clients.LoadOrStore(key, constructed)
	return actual.(*minio.Client), nil
}

// ClientCount reports how many clients the store holds. Used by tests.
func (s *Store) ClientCount() int {
	count := 0
	s.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// FetchRange issues a single ranged GetObject and materializes the body.
func (s *Store) FetchRange(
	ctx context.Context, desc *request.Descriptor, creds storage.Credentials, offset, size int64,
) ([]byte, error) {
	client, err := s.client(desc.Endpoint, creds)
	if err != nil {
		return nil, err
	}

	opts := minio.GetObjectOptions{}
	if size > 0 {
		err = opts.SetRange(offset, offset+size-1)
	} else if offset > 0 {
		err = opts.SetRange(offset, 0)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.KindBadRequest, "s3store", "FetchRange", "set range")
	}

	object, err := client.GetObject(ctx, desc.Bucket, desc.Object, opts)
	if err != nil {
		return nil, mapError(err, "FetchRange")
	}
	defer object.Close()

	body, err := io.ReadAll(object)
	if err != nil {
		return nil, mapError(err, "FetchRange")
	}
	if size > 0 && int64(len(body)) != size {
		return nil, errors.Newf(errors.KindRangeUnsatisfiable, "s3store", "FetchRange",
			"object returned %d bytes but %d were requested", len(body), size)
	}
	return body, nil
}

// ObjectSize stats the object.
func (s *Store) ObjectSize(
	ctx context.Context, desc *request.Descriptor, creds storage.Credentials,
) (int64, error) {
	client, err := s.client(desc.Endpoint, creds)
	if err != nil {
		return 0, err
	}
	info, err := client.StatObject(ctx, desc.Bucket, desc.Object, minio.StatObjectOptions{})
	if err != nil {
		return 0, mapError(err, "ObjectSize")
	}
	return info.Size, nil
}

// IsAuthorized probes the object with a StatObject call. Auth failures and
// absent objects answer false; transport failures are reported as errors.
func (s *Store) IsAuthorized(
	ctx context.Context, desc *request.Descriptor, creds storage.Credentials,
) (bool, error) {
	client, err := s.client(desc.Endpoint, creds)
	if err != nil {
		return false, err
	}
	_, err = client.StatObject(ctx, desc.Bucket, desc.Object, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch",
		"NoSuchKey", "NoSuchBucket":
		return false, nil
	}
	return false, mapError(err, "IsAuthorized")
}

// mapError classifies minio errors into the stable taxonomy.
func mapError(err error, operation string) error {
	resp := minio.ToErrorResponse(err)
	kind := errors.KindUpstreamIO
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		kind = errors.KindNotFound
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		kind = errors.KindUnauthorized
	case "AccessDenied":
		kind = errors.KindForbidden
	case "InvalidRange":
		kind = errors.KindRangeUnsatisfiable
	}
	return errors.Wrap(err, kind, "s3store", operation, "object store request")
}
