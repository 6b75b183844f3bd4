package httpstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/request"
	"github.com/c360/reductionist/storage"
)

// rangeServer serves a fixed object with RFC 7233 single-range support.
func rangeServer(t *testing.T, object []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(object)))
			return
		}
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			_, _ = w.Write(object)
			return
		}
		var start, end int64
		if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil {
			if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-", &start); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			end = int64(len(object)) - 1
		}
		if start >= int64(len(object)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if end >= int64(len(object)) {
			end = int64(len(object)) - 1
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(object[start : end+1])
	}))
}

func httpDesc(url string) *request.Descriptor {
	return &request.Descriptor{Backend: request.BackendHTTP, URL: url}
}

func TestFetchRange(t *testing.T) {
	object := []byte("0123456789abcdef")
	server := rangeServer(t, object)
	defer server.Close()

	store := New()
	got, err := store.FetchRange(context.Background(), httpDesc(server.URL), storage.Credentials{}, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789ab"), got)
}

func TestFetchWholeObject(t *testing.T) {
	object := []byte("0123456789")
	server := rangeServer(t, object)
	defer server.Close()

	store := New()
	got, err := store.FetchRange(context.Background(), httpDesc(server.URL), storage.Credentials{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, object, got)
}

func TestFetchRangeIgnoredByServer(t *testing.T) {
	// A server that always answers 200 with the full object: the store
	// must carve out the requested window itself.
	object := []byte("0123456789")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(object)
	}))
	defer server.Close()

	store := New()
	got, err := store.FetchRange(context.Background(), httpDesc(server.URL), storage.Credentials{}, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), got)
}

func TestFetchRangeUnsatisfiable(t *testing.T) {
	server := rangeServer(t, []byte("0123"))
	defer server.Close()

	store := New()
	_, err := store.FetchRange(context.Background(), httpDesc(server.URL), storage.Credentials{}, 100, 4)
	require.Error(t, err)
	assert.Equal(t, errors.KindRangeUnsatisfiable, errors.KindOf(err))
}

func TestFetchRangeShortObject(t *testing.T) {
	server := rangeServer(t, []byte("0123"))
	defer server.Close()

	store := New()
	_, err := store.FetchRange(context.Background(), httpDesc(server.URL), storage.Credentials{}, 0, 100)
	require.Error(t, err)
	assert.Equal(t, errors.KindRangeUnsatisfiable, errors.KindOf(err))
}

func TestFetchStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		kind   errors.Kind
	}{
		{http.StatusUnauthorized, errors.KindUnauthorized},
		{http.StatusForbidden, errors.KindForbidden},
		{http.StatusNotFound, errors.KindNotFound},
		{http.StatusInternalServerError, errors.KindUpstreamIO},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			store := New()
			_, err := store.FetchRange(context.Background(), httpDesc(server.URL), storage.Credentials{}, 0, 4)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}
}

func TestFetchNetworkError(t *testing.T) {
	store := New()
	_, err := store.FetchRange(context.Background(),
		httpDesc("http://127.0.0.1:1/nothing"), storage.Credentials{}, 0, 4)
	require.Error(t, err)
	assert.Equal(t, errors.KindUpstreamIO, errors.KindOf(err))
}

func TestBasicAuthForwarded(t *testing.T) {
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	store := New()
	creds := storage.Credentials{AccessKey: "key", Secret: "secret"}
	_, err := store.FetchRange(context.Background(), httpDesc(server.URL), creds, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, "key", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestObjectSize(t *testing.T) {
	server := rangeServer(t, []byte(strings.Repeat("x", 1234)))
	defer server.Close()

	store := New()
	size, err := store.ObjectSize(context.Background(), httpDesc(server.URL), storage.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), size)
}

func TestIsAuthorized(t *testing.T) {
	protected := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Length", "4")
	}))
	defer protected.Close()

	store := New()
	ok, err := store.IsAuthorized(context.Background(), httpDesc(protected.URL), storage.Credentials{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.IsAuthorized(context.Background(), httpDesc(protected.URL),
		storage.Credentials{AccessKey: "k", Secret: "s"})
	require.NoError(t, err)
	assert.True(t, ok)
}
