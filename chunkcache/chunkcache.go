// Package chunkcache is the optional on-disk cache of downloaded byte
// ranges. Entries are keyed by a configurable content fingerprint, hashed
// before use as a filename. Writes are ingested asynchronously through a
// bounded single-writer queue so request handlers never block on disk; a
// background task prunes by age and total size.
//
// The cache assumes a given (source, bucket, object, offset, size) always
// names identical bytes. Deployments that rewrite objects with different
// encodings add more tokens to the key template.
package chunkcache

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/c360/reductionist/errors"
	"github.com/c360/reductionist/metric"
	"github.com/c360/reductionist/pkg/worker"
)

// Config holds the startup-time cache settings.
type Config struct {
	Path          string
	TTL           time.Duration
	PruneInterval time.Duration
	SizeLimit     int64 // 0 = unlimited
	QueueSize     int
	KeyTemplate   string
	BypassAuth    bool
}

type entry struct {
	size       int64
	insertedAt time.Time
}

type write struct {
	digest string
	data   []byte
}

// Cache is a disk-backed chunk cache. The directory has a single writer
// (the ingestion worker) and many readers; the in-memory index is guarded
// by a mutex held only briefly.
type Cache struct {
	cfg    Config
	logger *slog.Logger
	core   *metric.CoreMetrics

	mu        sync.Mutex
	entries   map[string]entry
	totalSize int64

	writer *worker.Pool[write]
}

// New creates the cache, ensures its directory exists and rebuilds the
// index from any entries that survived a restart.
func New(cfg Config, logger *slog.Logger, core *metric.CoreMetrics) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "chunkcache", "New", "create cache directory")
	}

	c := &Cache{
		cfg:     cfg,
		logger:  logger,
		core:    core,
		entries: make(map[string]entry),
	}

	var opts []worker.Option[write]
	if core != nil {
		opts = append(opts,
			worker.WithQueueDepthGauge[write](core.CacheQueueDepth),
			worker.WithDroppedCounter[write](core.CacheDroppedWrites),
		)
	}
	c.writer = worker.NewPool(1, cfg.QueueSize, c.processWrite, opts...)

	if err := c.rebuild(); err != nil {
		return nil, err
	}
	return c, nil
}

// Start launches the writer and the prune loop. The context bounds both.
func (c *Cache) Start(ctx context.Context) error {
	if err := c.writer.Start(ctx); err != nil {
		return err
	}
	go c.pruneLoop(ctx)
	return nil
}

// Stop drains pending writes until the shutdown deadline, then drops the
// remainder.
func (c *Cache) Stop(timeout time.Duration) error {
	return c.writer.Stop(timeout)
}

// Get returns the cached bytes for the literal key, or a miss. Expired
// entries are treated as misses; the pruner removes them.
func (c *Cache) Get(key string) ([]byte, bool) {
	name := digest(key)

	c.mu.Lock()
	ent, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	if c.cfg.TTL > 0 && time.Since(ent.insertedAt) > c.cfg.TTL {
		return nil, false
	}

	data, err := os.ReadFile(c.path(name))
	if err != nil {
		// The file vanished under us (external cleanup); drop the entry.
		c.logger.Warn("cache entry unreadable", "digest", name, "error", err)
		c.remove(name)
		return nil, false
	}
	return data, true
}

// Put enqueues the bytes for asynchronous ingestion. When the queue is
// full the write is dropped and counted; request handlers never block
// here.
func (c *Cache) Put(key string, data []byte) {
	err := c.writer.Submit(write{digest: digest(key), data: data})
	if err == worker.ErrQueueFull {
		c.logger.Debug("cache write dropped, queue full")
	}
}

// QueueDepth reports pending cache writes.
func (c *Cache) QueueDepth() int {
	return c.writer.QueueDepth()
}

// processWrite is the single writer draining the ingestion queue.
func (c *Cache) processWrite(_ context.Context, w write) error {
	path := c.path(w.digest)
	if err := os.WriteFile(path, w.data, 0o644); err != nil {
		c.logger.Error("cache write failed", "digest", w.digest, "error", err)
		return err
	}

	c.mu.Lock()
	if old, ok := c.entries[w.digest]; ok {
		c.totalSize -= old.size
	}
	c.entries[w.digest] = entry{size: int64(len(w.data)), insertedAt: time.Now()}
	c.totalSize += int64(len(w.data))
	c.updateSizeMetric()
	c.mu.Unlock()
	return nil
}

// Prune deletes entries older than the TTL, then evicts least-recently-
// inserted entries until the total size is under the limit.
func (c *Cache) Prune() {
	type candidate struct {
		name string
		entry
	}

	c.mu.Lock()
	now := time.Now()
	var live []candidate
	for name, ent := range c.entries {
		if c.cfg.TTL > 0 && now.Sub(ent.insertedAt) > c.cfg.TTL {
			c.deleteLocked(name, ent)
			continue
		}
		live = append(live, candidate{name, ent})
	}

	if c.cfg.SizeLimit > 0 && c.totalSize > c.cfg.SizeLimit {
		sort.Slice(live, func(i, j int) bool {
			return live[i].insertedAt.Before(live[j].insertedAt)
		})
		for _, cand := range live {
			if c.totalSize <= c.cfg.SizeLimit {
				break
			}
			c.deleteLocked(cand.name, cand.entry)
		}
	}
	c.updateSizeMetric()
	c.mu.Unlock()
}

// TotalSize reports the accounted on-disk size.
func (c *Cache) TotalSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize
}

// Len reports the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Prune()
		}
	}
}

// rebuild scans the cache directory after a restart, restoring size
// accounting from file metadata and dropping entries already past the TTL.
func (c *Cache) rebuild() error {
	dirEntries, err := os.ReadDir(c.cfg.Path)
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "chunkcache", "rebuild", "scan cache directory")
	}

	now := time.Now()
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if c.cfg.TTL > 0 && now.Sub(info.ModTime()) > c.cfg.TTL {
			_ = os.Remove(filepath.Join(c.cfg.Path, de.Name()))
			continue
		}
		c.entries[de.Name()] = entry{size: info.Size(), insertedAt: info.ModTime()}
		c.totalSize += info.Size()
	}
	c.updateSizeMetric()
	c.logger.Info("chunk cache index rebuilt",
		"entries", len(c.entries), "total_bytes", c.totalSize, "path", c.cfg.Path)
	return nil
}

func (c *Cache) remove(name string) {
	c.mu.Lock()
	if ent, ok := c.entries[name]; ok {
		c.deleteLocked(name, ent)
		c.updateSizeMetric()
	}
	c.mu.Unlock()
}

// deleteLocked removes an entry and its file. Callers hold c.mu.
func (c *Cache) deleteLocked(name string, ent entry) {
	delete(c.entries, name)
	c.totalSize -= ent.size
	if err := os.Remove(c.path(name)); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("cache entry removal failed", "digest", name, "error", err)
	}
}

func (c *Cache) updateSizeMetric() {
	if c.core != nil {
		c.core.CacheSizeBytes.Set(float64(c.totalSize))
	}
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.cfg.Path, name)
}
