// Package reductionist is a stateless HTTP service performing numeric
// reductions over binary array chunks held in remote object stores.
//
// A client POSTs a request naming an object byte range, the binary layout
// (dtype, shape, byte order, storage order), an optional decompression
// codec and filter pipeline, an optional N-dimensional selection, a
// missing-data policy and an operation. The server downloads exactly the
// requested bytes, reverses the encoding pipeline, interprets the result
// as a typed multi-dimensional array and returns the reduction together
// with its shape, element count, byte order and dtype.
//
// # Architecture
//
// The pipeline per request is linear:
//
//	validate -> authorize -> download (cache-aware) -> decompress/unfilter
//	        -> typed view -> reduce -> respond
//
// Packages, leaves first:
//
//   - errors: stable error taxonomy with cause chains
//   - config: env-var configuration
//   - request: request model, JSON schema validation, normalization
//   - storage, storage/s3store, storage/httpstore: byte-range fetchers
//   - chunkcache: optional on-disk chunk cache with async ingestion
//   - filter: gzip/zlib codecs and shuffle inversion
//   - ndview: zero-copy typed N-D views, byte-order normalization
//   - operation: count/min/max/sum/select kernels, closed dispatch
//   - governor: permits for downloads, in-flight memory and CPU sections
//   - service: request orchestrator and HTTP surface
//   - response: CBOR (v2) and header (v1) encoding
//   - metric, health, trace: observability surfaces
//
// The service holds no computational state beyond the optional chunk
// cache; any instance can serve any request.
package reductionist
