package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/filter"
	"github.com/c360/reductionist/governor"
	"github.com/c360/reductionist/ndview"
	"github.com/c360/reductionist/operation"
	"github.com/c360/reductionist/request"
	"github.com/c360/reductionist/response"
	"github.com/c360/reductionist/storage"
)

// handleOperation returns the handler driving the per-request state
// machine: validate, authorize, download (cache-aware), decode, reduce,
// respond. Any failure short-circuits to the structured error response.
func (s *Server) handleOperation(version request.Version) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		opName := r.PathValue("op")

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		logger := s.logger.With("request_id", requestID, "op", opName)

		core := s.metrics.Core
		core.InflightRequests.Inc()
		defer core.InflightRequests.Dec()

		payload, err := s.process(r, version, opName, logger)
		if err != nil {
			response.WriteError(w, logger, err)
			core.RequestsTotal.WithLabelValues(opName, strconv.Itoa(errors.HTTPStatus(err))).Inc()
			core.RequestDuration.WithLabelValues(opName).Observe(time.Since(start).Seconds())
			return
		}

		var writeErr error
		if version == request.V1 {
			writeErr = response.WriteV1(w, payload)
		} else {
			writeErr = response.WriteV2(w, payload)
		}
		if writeErr != nil {
			logger.Warn("response write failed", "error", writeErr)
		}
		core.RequestsTotal.WithLabelValues(opName, "200").Inc()
		core.RequestDuration.WithLabelValues(opName).Observe(time.Since(start).Seconds())
	}
}

// process runs the pipeline for one request. Permits acquired along the
// way are released when it returns, including on client disconnect.
func (s *Server) process(
	r *http.Request, version request.Version, opName string, logger *slog.Logger,
) (payload *response.Payload, err error) {
	ctx := r.Context()

	// Kernels index buffers with arithmetic derived from validated
	// shapes; a defect there must not take the process down.
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic in reduction pipeline", "panic", rec)
			payload = nil
			err = errors.Newf(errors.KindInternal, "service", "process", "internal error: %v", rec)
		}
	}()

	op, ok := operation.Lookup(opName)
	if !ok {
		return nil, errors.Newf(errors.KindNotFound, "service", "process",
			"unsupported operation %s", opName)
	}

	_, span := s.tracer.StartSpan(ctx, "validate")
	desc, err := s.parseBody(r, version)
	span.End()
	if err != nil {
		return nil, err
	}
	desc.Operation = string(op)

	creds := credentialsFrom(r)
	fetcher, ok := s.fetchers[desc.Backend]
	if !ok {
		return nil, errors.Newf(errors.KindBadRequest, "service", "process",
			"unsupported backend %s", desc.Backend)
	}

	// Permits are collected here and released in this frame so a dropped
	// request frees capacity at the point it is abandoned.
	var permits []*governor.Permit
	defer func() {
		for _, p := range permits {
			p.Release()
		}
	}()
	hold := func(p *governor.Permit) { permits = append(permits, p) }

	data, err := s.acquireData(ctx, desc, creds, fetcher, hold, logger)
	if err != nil {
		return nil, err
	}

	var result *operation.Result
	err = s.gov.RunCPU(ctx, func() (runErr error) {
		// In CPU-pool mode this closure runs on a worker goroutine, out
		// of reach of the recover above; kernel panics must be caught
		// here as well.
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in reduction kernel", "panic", rec)
				runErr = errors.Newf(errors.KindInternal, "service", "process",
					"internal error: %v", rec)
			}
		}()

		_, span := s.tracer.StartSpan(ctx, "decode")
		raw, runErr := filter.Run(desc, data)
		span.End()
		if runErr != nil {
			return runErr
		}
		if runErr = desc.ValidateRawSize(len(raw)); runErr != nil {
			return runErr
		}

		if desc.ByteOrder != request.NativeByteOrder {
			// The passthrough path still aliases the downloaded buffer,
			// which the cache writer may be persisting; swap a copy.
			if desc.Compression == "" && len(desc.Filters) == 0 {
				raw = append([]byte(nil), raw...)
			}
			ndview.SwapBytes(raw, desc.DType.Size())
		}

		_, span = s.tracer.StartSpan(ctx, "reduce")
		result, runErr = operation.Execute(op, desc, raw)
		span.End()
		return runErr
	})
	if err != nil {
		return nil, err
	}

	return response.FromResult(result, desc.ByteOrder), nil
}

// parseBody reads the size-capped request body and parses it.
func (s *Server) parseBody(r *http.Request, version request.Version) (*request.Descriptor, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodySize+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindBadRequest, "service", "parseBody", "read body")
	}
	if int64(len(body)) > s.cfg.MaxBodySize {
		return nil, errors.Newf(errors.KindBadRequest, "service", "parseBody",
			"request body exceeds maximum size of %d bytes", s.cfg.MaxBodySize)
	}
	return request.Parse(version, body)
}

// acquireData produces the chunk bytes: from the cache when possible,
// otherwise from the object store under governor permits, with the
// download enqueued for cache ingestion.
func (s *Server) acquireData(
	ctx context.Context,
	desc *request.Descriptor,
	creds storage.Credentials,
	fetcher storage.Fetcher,
	hold func(*governor.Permit),
	logger *slog.Logger,
) ([]byte, error) {
	// Initial memory guess from the declared size; refined below when the
	// size is learned from the store or the cache.
	if desc.SizeKnown() {
		permit, err := s.gov.AcquireMemory(ctx, desc.Size)
		if err != nil {
			return nil, err
		}
		hold(permit)
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.Key(desc, creds)
		if data, ok := s.cache.Get(cacheKey); ok {
			if s.cache.RequiresAuthProbe() {
				_, span := s.tracer.StartSpan(ctx, "authorize")
				authorized, err := fetcher.IsAuthorized(ctx, desc, creds)
				span.End()
				if err != nil {
					return nil, err
				}
				if !authorized {
					return nil, errors.New(errors.KindForbidden, "service", "acquireData",
						"credentials cannot access the cached object")
				}
			}
			if !desc.SizeKnown() {
				permit, err := s.gov.AcquireMemory(ctx, int64(len(data)))
				if err != nil {
					return nil, err
				}
				hold(permit)
				if err := desc.ResolveSize(int64(len(data))); err != nil {
					return nil, err
				}
			}
			s.metrics.Core.CacheHits.Inc()
			logger.Debug("cache hit", "bytes", len(data))
			return data, nil
		}
		s.metrics.Core.CacheMisses.Inc()
	}

	_, span := s.tracer.StartSpan(ctx, "download")
	defer span.End()

	s3Permit, err := s.gov.AcquireS3(ctx)
	if err != nil {
		return nil, err
	}
	// Released as soon as the body is materialized, not at request end.
	defer s3Permit.Release()

	if !desc.SizeKnown() {
		objectSize, err := fetcher.ObjectSize(ctx, desc, creds)
		if err != nil {
			return nil, err
		}
		if desc.Offset >= objectSize {
			return nil, errors.Newf(errors.KindRangeUnsatisfiable, "service", "acquireData",
				"offset %d beyond object of %d bytes", desc.Offset, objectSize)
		}
		if err := desc.ResolveSize(objectSize - desc.Offset); err != nil {
			return nil, err
		}
		permit, err := s.gov.AcquireMemory(ctx, desc.Size)
		if err != nil {
			return nil, err
		}
		hold(permit)
	}

	data, err := fetcher.FetchRange(ctx, desc, creds, desc.Offset, desc.Size)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(cacheKey, data)
	}
	return data, nil
}

// credentialsFrom extracts HTTP Basic credentials; an absent header means
// anonymous upstream access.
func credentialsFrom(r *http.Request) storage.Credentials {
	accessKey, secret, ok := r.BasicAuth()
	if !ok {
		return storage.Credentials{}
	}
	return storage.Credentials{AccessKey: accessKey, Secret: secret}
}
