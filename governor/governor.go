// Package governor bounds the resources a request may hold: concurrent
// object-store fetches, in-flight decoded bytes and CPU-bound sections.
// Each bound is a counting semaphore; an absent bound means unlimited.
//
// CPU-bound sections run in one of two mutually exclusive disciplines:
// inline under a semaphore that caps concurrency, or on a dedicated worker
// pool. The semaphore mode is lower overhead for the current workload mix.
package governor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/pkg/worker"
)

// Config sets the governor's limits. Zero disables a bound.
type Config struct {
	S3ConnectionLimit int64
	MemoryLimit       int64
	CPULimit          int64
	UseCPUPool        bool
}

// Governor issues permits for the three governed resources.
type Governor struct {
	s3       *semaphore.Weighted
	mem      *semaphore.Weighted
	memTotal int64
	cpu      *semaphore.Weighted
	cpuPool  *worker.Pool[cpuTask]
}

type cpuTask struct {
	fn   func() error
	done chan error
}

// New creates a governor from configuration. CPULimit must be resolved by
// the caller (config.EffectiveCPULimit) before pool mode is selected.
func New(cfg Config) *Governor {
	g := &Governor{}
	if cfg.S3ConnectionLimit > 0 {
		g.s3 = semaphore.NewWeighted(cfg.S3ConnectionLimit)
	}
	if cfg.MemoryLimit > 0 {
		g.mem = semaphore.NewWeighted(cfg.MemoryLimit)
		g.memTotal = cfg.MemoryLimit
	}
	if cfg.CPULimit > 0 {
		if cfg.UseCPUPool {
			g.cpuPool = worker.NewPool(int(cfg.CPULimit), int(cfg.CPULimit)*2,
				func(_ context.Context, task cpuTask) error {
					err := task.fn()
					task.done <- err
					return err
				})
		} else {
			g.cpu = semaphore.NewWeighted(cfg.CPULimit)
		}
	}
	return g
}

// Start launches the CPU pool when pool mode is configured.
func (g *Governor) Start(ctx context.Context) error {
	if g.cpuPool != nil {
		return g.cpuPool.Start(ctx)
	}
	return nil
}

// Stop drains the CPU pool when pool mode is configured.
func (g *Governor) Stop(timeout time.Duration) error {
	if g.cpuPool != nil {
		return g.cpuPool.Stop(timeout)
	}
	return nil
}

// Permit represents held capacity. Release is idempotent; a zero Permit
// releases nothing.
type Permit struct {
	once    sync.Once
	release func()
}

// Release returns the held capacity.
func (p *Permit) Release() {
	p.once.Do(func() {
		if p.release != nil {
			p.release()
		}
	})
}

// AcquireS3 acquires one outbound connection permit.
func (g *Governor) AcquireS3(ctx context.Context) (*Permit, error) {
	if g.s3 == nil {
		return &Permit{}, nil
	}
	if err := g.s3.Acquire(ctx, 1); err != nil {
		return nil, acquireErr(err, "AcquireS3")
	}
	return &Permit{release: func() { g.s3.Release(1) }}, nil
}

// AcquireMemory acquires permits for the given number of in-flight bytes.
// A request for more than the entire pool can never be satisfied and fails
// immediately with RESOURCE_EXHAUSTED.
func (g *Governor) AcquireMemory(ctx context.Context, bytes int64) (*Permit, error) {
	if g.mem == nil || bytes <= 0 {
		return &Permit{}, nil
	}
	if bytes > g.memTotal {
		return nil, errors.Newf(errors.KindResourceExhausted, "governor", "AcquireMemory",
			"request needs %d bytes but the memory pool is %d", bytes, g.memTotal)
	}
	if err := g.mem.Acquire(ctx, bytes); err != nil {
		return nil, acquireErr(err, "AcquireMemory")
	}
	return &Permit{release: func() { g.mem.Release(bytes) }}, nil
}

// RunCPU executes fn as a governed CPU-bound section: inline under the CPU
// semaphore, on the CPU pool, or ungoverned when no limit is configured.
// Once started, fn runs to completion even if ctx is cancelled; work is
// bounded by chunk size.
func (g *Governor) RunCPU(ctx context.Context, fn func() error) error {
	switch {
	case g.cpuPool != nil:
		task := cpuTask{fn: fn, done: make(chan error, 1)}
		if err := g.cpuPool.Dispatch(ctx, task); err != nil {
			return acquireErr(err, "RunCPU")
		}
		select {
		case err := <-task.done:
			return err
		case <-ctx.Done():
			return acquireErr(ctx.Err(), "RunCPU")
		}
	case g.cpu != nil:
		if err := g.cpu.Acquire(ctx, 1); err != nil {
			return acquireErr(err, "RunCPU")
		}
		defer g.cpu.Release(1)
		return fn()
	default:
		return fn()
	}
}

// acquireErr classifies a failed acquisition. Deadline expiry surfaces as
// TIMEOUT; anything else (client disconnect, closed pool) as
// RESOURCE_EXHAUSTED.
func acquireErr(err error, operation string) error {
	kind := errors.KindResourceExhausted
	if err == context.DeadlineExceeded {
		kind = errors.KindTimeout
	}
	return errors.Wrap(err, kind, "governor", operation, "acquire permit")
}
