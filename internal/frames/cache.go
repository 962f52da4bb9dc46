package frames

import (
	"context"
	"image"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the decoded-frame cache. Frames are large; the
// bound keeps long scrub sessions from holding every decoded frame forever.
const DefaultCacheSize = 512

// Status is the cache's answer for a frame index.
type Status int

const (
	// StatusAbsent means the index was never requested (or was evicted).
	StatusAbsent Status = iota
	// StatusPending means a fetch is in flight.
	StatusPending
	// StatusReady means the decoded frame is cached.
	StatusReady
	// StatusUnavailable means the fetch failed twice; the index is never
	// re-requested.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "absent"
	}
}

// Cache is a write-once-per-index store of decoded frames. Fetches run
// concurrently with no ordering requirement; out-of-order completion is
// safe because each index is only ever written once. A failed fetch is
// retried once, then the index is marked unavailable permanently.
type Cache struct {
	mu          sync.Mutex
	videoID     string
	source      Source
	ready       *lru.Cache[int, image.Image]
	pending     map[int]struct{}
	unavailable map[int]struct{}
	subscribers []func(index int)
	logger      *slog.Logger
}

// NewCache creates a cache over source for one video. capacity bounds the
// number of retained decoded frames; non-positive means DefaultCacheSize.
func NewCache(source Source, videoID string, capacity int, logger *slog.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	ready, _ := lru.New[int, image.Image](capacity)
	return &Cache{
		videoID:     videoID,
		source:      source,
		ready:       ready,
		pending:     make(map[int]struct{}),
		unavailable: make(map[int]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a callback invoked whenever a requested index settles
// (frame ready or marked unavailable). The playback clock uses this to
// re-evaluate its buffer gate.
func (c *Cache) Subscribe(fn func(index int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Has reports whether the decoded frame at index is cached.
func (c *Cache) Has(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready.Contains(index)
}

// Get returns the frame at index and its status.
func (c *Cache) Get(index int) (image.Image, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.ready.Get(index); ok {
		return img, StatusReady
	}
	if _, ok := c.pending[index]; ok {
		return nil, StatusPending
	}
	if _, ok := c.unavailable[index]; ok {
		return nil, StatusUnavailable
	}
	return nil, StatusAbsent
}

// Request starts a fetch for index unless it is already cached, in flight,
// or unavailable. Re-requesting is a no-op, so callers may schedule freely.
// The fetch outlives ctx cancellation; a seek never cancels in-flight
// fetches.
func (c *Cache) Request(ctx context.Context, index int) {
	if index < 0 {
		return
	}
	c.mu.Lock()
	if c.ready.Contains(index) {
		c.mu.Unlock()
		return
	}
	if _, ok := c.pending[index]; ok {
		c.mu.Unlock()
		return
	}
	if _, ok := c.unavailable[index]; ok {
		c.mu.Unlock()
		return
	}
	c.pending[index] = struct{}{}
	c.mu.Unlock()

	go c.fetch(context.WithoutCancel(ctx), index)
}

func (c *Cache) fetch(ctx context.Context, index int) {
	img, err := c.source.Fetch(ctx, c.videoID, index)
	if err != nil {
		c.logger.Warn("frame fetch failed, retrying once", "index", index, "error", err)
		img, err = c.source.Fetch(ctx, c.videoID, index)
	}

	c.mu.Lock()
	delete(c.pending, index)
	if err != nil {
		c.unavailable[index] = struct{}{}
	} else {
		c.ready.Add(index, img)
	}
	subs := make([]func(int), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("frame permanently unavailable", "index", index, "error", err)
	}
	for _, fn := range subs {
		fn(index)
	}
}

// Reset drops all cached frames and unavailable markers, as on session
// reset.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready.Purge()
	c.unavailable = make(map[int]struct{})
}
