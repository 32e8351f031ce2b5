// Package cache wraps a remote.Client with metadata and content
// caching. Directory listings and attributes are cached with their own
// TTLs; file content uses a byte-budgeted LRU. Mutations through the
// wrapper invalidate the affected entries, and an optional poll loop
// reconciles listings changed behind the orchestrator's back.
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/tierfs/internal/bytesize"
	"github.com/marmos91/tierfs/internal/logger"
	"github.com/marmos91/tierfs/pkg/metrics"
	"github.com/marmos91/tierfs/pkg/remote"
	"github.com/marmos91/tierfs/pkg/tier"
)

// Config holds cache tuning knobs.
type Config struct {
	// MaxAge bounds how long cached file content is served without
	// revalidation. Default: 5m.
	MaxAge time.Duration

	// MaxSize caps the total bytes held in the content cache.
	// Default: 256MiB.
	MaxSize bytesize.ByteSize

	// DirCacheTime bounds how long directory listings are cached.
	// Default: 30s.
	DirCacheTime time.Duration

	// AttrTimeout bounds how long stat results are cached. Default: 10s.
	AttrTimeout time.Duration

	// PollInterval, when > 0, enables the background reconcile loop that
	// re-fetches cached listings and drops stale content.
	PollInterval time.Duration
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxAge == 0 {
		c.MaxAge = 5 * time.Minute
	}
	if c.MaxSize == 0 {
		c.MaxSize = 256 * bytesize.MiB
	}
	if c.DirCacheTime == 0 {
		c.DirCacheTime = 30 * time.Second
	}
	if c.AttrTimeout == 0 {
		c.AttrTimeout = 10 * time.Second
	}
}

type listEntry struct {
	entries []tier.Entry
	fetched time.Time
}

type statEntry struct {
	entry   tier.Entry
	fetched time.Time
}

type contentEntry struct {
	path    string
	data    []byte
	fetched time.Time
}

// Client decorates a remote.Client with caching. It implements
// remote.Client itself, so callers and the union view are oblivious to
// whether a read was served from cache.
type Client struct {
	inner remote.Client
	cfg   Config

	mu       sync.Mutex
	lists    map[string]listEntry
	stats    map[string]statEntry
	contents map[string]*list.Element
	lru      *list.List
	size     int64

	// now is overridable for deterministic expiry tests.
	now func() time.Time

	metrics metrics.RemoteMetrics

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New wraps inner with a cache configured by cfg.
func New(inner remote.Client, cfg Config, m metrics.RemoteMetrics) *Client {
	cfg.ApplyDefaults()
	return &Client{
		inner:    inner,
		cfg:      cfg,
		lists:    make(map[string]listEntry),
		stats:    make(map[string]statEntry),
		contents: make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
		metrics:  m,
	}
}

// SetClock overrides the time source. Call before first use.
func (c *Client) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func clean(path string) string {
	return strings.Trim(path, "/")
}

func parentOf(path string) string {
	p := clean(path)
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[:idx]
	}
	return ""
}

// List implements remote.Client, serving from the listing cache while
// fresh.
func (c *Client) List(ctx context.Context, path string) ([]tier.Entry, error) {
	p := clean(path)

	c.mu.Lock()
	if cached, ok := c.lists[p]; ok && c.now().Sub(cached.fetched) < c.cfg.DirCacheTime {
		entries := append([]tier.Entry(nil), cached.entries...)
		c.mu.Unlock()
		c.lookup("list", true)
		return entries, nil
	}
	c.mu.Unlock()
	c.lookup("list", false)

	entries, err := c.inner.List(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lists[p] = listEntry{entries: append([]tier.Entry(nil), entries...), fetched: c.now()}
	c.mu.Unlock()
	return entries, nil
}

// Stat implements remote.Client, serving from the attribute cache while
// fresh.
func (c *Client) Stat(ctx context.Context, path string) (tier.Entry, error) {
	p := clean(path)

	c.mu.Lock()
	if cached, ok := c.stats[p]; ok && c.now().Sub(cached.fetched) < c.cfg.AttrTimeout {
		entry := cached.entry
		c.mu.Unlock()
		c.lookup("stat", true)
		return entry, nil
	}
	c.mu.Unlock()
	c.lookup("stat", false)

	entry, err := c.inner.Stat(ctx, path)
	if err != nil {
		return tier.Entry{}, err
	}

	c.mu.Lock()
	c.stats[p] = statEntry{entry: entry, fetched: c.now()}
	c.mu.Unlock()
	return entry, nil
}

// Read implements remote.Client. Whole-object reads populate the
// content cache; ranged reads of a cached object are sliced from it.
func (c *Client) Read(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	p := clean(path)

	c.mu.Lock()
	if elem, ok := c.contents[p]; ok {
		ce := elem.Value.(*contentEntry)
		if c.now().Sub(ce.fetched) < c.cfg.MaxAge {
			data, served := slice(ce.data, offset, length)
			if served {
				c.lru.MoveToFront(elem)
				c.mu.Unlock()
				c.lookup("read", true)
				return data, nil
			}
		} else {
			c.removeLocked(elem)
		}
	}
	c.mu.Unlock()
	c.lookup("read", false)

	// Ranged misses go straight through; only full objects are cached
	// so eviction accounting stays simple.
	if offset != 0 || length >= 0 {
		return c.inner.Read(ctx, path, offset, length)
	}

	data, err := c.inner.Read(ctx, path, 0, -1)
	if err != nil {
		return nil, err
	}
	c.store(p, data)
	return append([]byte(nil), data...), nil
}

// slice extracts the requested range from cached content.
func slice(data []byte, offset, length int64) ([]byte, bool) {
	size := int64(len(data))
	if offset < 0 || offset > size {
		return nil, false
	}
	end := size
	if length >= 0 && offset+length < size {
		end = offset + length
	}
	return append([]byte(nil), data[offset:end]...), true
}

// store inserts content under the byte budget, evicting LRU entries.
func (c *Client) store(path string, data []byte) {
	budget := c.cfg.MaxSize.Int64()
	if int64(len(data)) > budget {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.contents[path]; ok {
		c.removeLocked(elem)
	}

	evicted := 0
	for c.size+int64(len(data)) > budget {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		evicted++
	}
	if evicted > 0 {
		logger.Debug("Evicted cached content",
			logger.Path(path),
			"evicted", evicted,
			"cache_size", c.size)
	}

	ce := &contentEntry{path: path, data: append([]byte(nil), data...), fetched: c.now()}
	c.contents[path] = c.lru.PushFront(ce)
	c.size += int64(len(ce.data))
	if c.metrics != nil {
		c.metrics.SetCacheSize(c.size)
	}
}

// removeLocked drops a content entry. Caller holds c.mu.
func (c *Client) removeLocked(elem *list.Element) {
	ce := elem.Value.(*contentEntry)
	c.lru.Remove(elem)
	delete(c.contents, ce.path)
	c.size -= int64(len(ce.data))
	if c.metrics != nil {
		c.metrics.SetCacheSize(c.size)
	}
}

func (c *Client) lookup(kind string, hit bool) {
	if c.metrics != nil {
		c.metrics.ObserveCacheLookup(kind, hit)
	}
}

// invalidate drops all cached state touching path: its content, its
// attributes, and the listing of its parent.
func (c *Client) invalidate(path string) {
	p := clean(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.contents[p]; ok {
		c.removeLocked(elem)
	}
	delete(c.stats, p)
	delete(c.lists, p)
	delete(c.lists, parentOf(p))
}

// Write implements remote.Client with write-through invalidation.
func (c *Client) Write(ctx context.Context, path string, data []byte) (tier.Entry, error) {
	entry, err := c.inner.Write(ctx, path, data)
	if err != nil {
		return tier.Entry{}, err
	}
	c.invalidate(path)
	return entry, nil
}

// Move implements remote.Client, invalidating both endpoints.
func (c *Client) Move(ctx context.Context, path, newPath string) (tier.Entry, error) {
	entry, err := c.inner.Move(ctx, path, newPath)
	if err != nil {
		return tier.Entry{}, err
	}
	c.invalidate(path)
	c.invalidate(newPath)
	return entry, nil
}

// Delete implements remote.Client with invalidation.
func (c *Client) Delete(ctx context.Context, path string) error {
	if err := c.inner.Delete(ctx, path); err != nil {
		return err
	}
	c.invalidate(path)
	return nil
}

// HealthCheck implements remote.Client, always passing through.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}

// Start launches the reconcile loop when PollInterval is configured.
// Safe to call when polling is disabled.
func (c *Client) Start(ctx context.Context) {
	if c.cfg.PollInterval <= 0 {
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	go c.pollLoop(pollCtx)
}

func (c *Client) pollLoop(ctx context.Context) {
	defer close(c.pollDone)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reconcile(ctx)
		}
	}
}

// reconcile re-fetches every cached listing and drops cached content
// whose object changed remotely.
func (c *Client) reconcile(ctx context.Context) {
	c.mu.Lock()
	dirs := make([]string, 0, len(c.lists))
	for dir := range c.lists {
		dirs = append(dirs, dir)
	}
	c.mu.Unlock()

	for _, dir := range dirs {
		entries, err := c.inner.List(ctx, dir)
		if err != nil {
			c.mu.Lock()
			delete(c.lists, dir)
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		c.lists[dir] = listEntry{entries: append([]tier.Entry(nil), entries...), fetched: c.now()}
		for _, e := range entries {
			if elem, ok := c.contents[e.Path]; ok {
				ce := elem.Value.(*contentEntry)
				if e.ModTime.After(ce.fetched) {
					c.removeLocked(elem)
					delete(c.stats, e.Path)
				}
			}
		}
		c.mu.Unlock()
	}
}

// Close stops the poll loop and closes the wrapped client.
func (c *Client) Close() error {
	if c.pollCancel != nil {
		c.pollCancel()
		<-c.pollDone
	}
	return c.inner.Close()
}

// ContentCacheSize returns the current content cache footprint in bytes.
func (c *Client) ContentCacheSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Ensure Client implements remote.Client.
var _ remote.Client = (*Client)(nil)
