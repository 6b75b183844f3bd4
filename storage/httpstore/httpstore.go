// Package httpstore fetches byte ranges over plain HTTP or HTTPS.
package httpstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/request"
	"github.com/c360/reductionist/storage"
)

// Store is the HTTP(S) backend. All requests share one pooled transport.
type Store struct {
	client *http.Client
}

// New creates the shared HTTP client.
func New() *Store {
	return &Store{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// FetchRange issues a single range request and returns the materialized
// body.
func (s *Store) FetchRange(
	ctx context.Context, desc *request.Descriptor, creds storage.Credentials, offset, size int64,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindBadRequest, "httpstore", "FetchRange", "build request")
	}
	if size > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+size-1))
	} else if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	if !creds.Anonymous() {
		req.SetBasicAuth(creds.AccessKey, creds.Secret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUpstreamIO, "httpstore", "FetchRange", "range request")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent, http.StatusOK:
	default:
		return nil, statusError("FetchRange", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUpstreamIO, "httpstore", "FetchRange", "read body")
	}

	// A server that ignores the Range header answers 200 with the whole
	// object; carve out the requested window so callers always see
	// exactly the bytes they asked for.
	if resp.StatusCode == http.StatusOK && (offset > 0 || size > 0) {
		if offset >= int64(len(body)) {
			return nil, errors.Newf(errors.KindRangeUnsatisfiable, "httpstore", "FetchRange",
				"offset %d beyond object of %d bytes", offset, len(body))
		}
		end := int64(len(body))
		if size > 0 && offset+size < end {
			end = offset + size
		}
		body = body[offset:end]
	}
	if size > 0 && int64(len(body)) < size {
		return nil, errors.Newf(errors.KindRangeUnsatisfiable, "httpstore", "FetchRange",
			"object returned %d bytes but %d were requested", len(body), size)
	}
	return body, nil
}

// ObjectSize returns the Content-Length reported by a HEAD request.
func (s *Store) ObjectSize(
	ctx context.Context, desc *request.Descriptor, creds storage.Credentials,
) (int64, error) {
	resp, err := s.head(ctx, desc, creds)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, statusError("ObjectSize", resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return 0, errors.New(errors.KindUpstreamIO, "httpstore", "ObjectSize",
			"response missing Content-Length")
	}
	return resp.ContentLength, nil
}

// IsAuthorized probes the object with a HEAD request.
func (s *Store) IsAuthorized(
	ctx context.Context, desc *request.Descriptor, creds storage.Credentials,
) (bool, error) {
	resp, err := s.head(ctx, desc, creds)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode < 400:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, statusError("IsAuthorized", resp.StatusCode)
	}
}

func (s *Store) head(
	ctx context.Context, desc *request.Descriptor, creds storage.Credentials,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, desc.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindBadRequest, "httpstore", "head", "build request")
	}
	if !creds.Anonymous() {
		req.SetBasicAuth(creds.AccessKey, creds.Secret)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUpstreamIO, "httpstore", "head", "head request")
	}
	return resp, nil
}

func statusError(operation string, status int) error {
	kind := errors.KindUpstreamIO
	switch status {
	case http.StatusUnauthorized:
		kind = errors.KindUnauthorized
	case http.StatusForbidden:
		kind = errors.KindForbidden
	case http.StatusNotFound:
		kind = errors.KindNotFound
	case http.StatusRequestedRangeNotSatisfiable:
		kind = errors.KindRangeUnsatisfiable
	}
	return errors.Newf(kind, "httpstore", operation, "upstream returned status %d", status)
}
