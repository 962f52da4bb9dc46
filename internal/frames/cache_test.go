package frames

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a controllable frame source: per-index failure injection
// and an optional gate that holds fetches open.
type fakeSource struct {
	mu       sync.Mutex
	meta     Meta
	fetches  map[int]int
	failures map[int]int
	gate     chan struct{} // non-nil: fetches block until closed
}

func newFakeSource(total int, fps float64) *fakeSource {
	return &fakeSource{
		meta:     Meta{TotalFrames: total, FPS: fps, Width: 8, Height: 8},
		fetches:  make(map[int]int),
		failures: make(map[int]int),
	}
}

func (f *fakeSource) Meta(ctx context.Context, videoID string) (Meta, error) {
	return f.meta, nil
}

func (f *fakeSource) Fetch(ctx context.Context, videoID string, index int) (image.Image, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[index]++
	if f.failures[index] > 0 {
		f.failures[index]--
		return nil, errors.New("fetch blew up")
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (f *fakeSource) fetchCount(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[index]
}

func waitForStatus(t *testing.T, c *Cache, index int, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, st := c.Get(index)
		return st == want
	}, 2*time.Second, 5*time.Millisecond, "index %d never reached %s", index, want)
}

func TestRequestCachesFrame(t *testing.T) {
	src := newFakeSource(10, 5)
	c := NewCache(src, "vid", 0, nil)

	_, st := c.Get(3)
	assert.Equal(t, StatusAbsent, st)

	c.Request(context.Background(), 3)
	waitForStatus(t, c, 3, StatusReady)

	img, st := c.Get(3)
	assert.Equal(t, StatusReady, st)
	assert.NotNil(t, img)
	assert.True(t, c.Has(3))
	assert.Equal(t, 1, src.fetchCount(3))
}

func TestRequestIsIdempotentWhilePending(t *testing.T) {
	src := newFakeSource(10, 5)
	src.gate = make(chan struct{})
	c := NewCache(src, "vid", 0, nil)

	c.Request(context.Background(), 4)
	c.Request(context.Background(), 4)
	_, st := c.Get(4)
	assert.Equal(t, StatusPending, st)

	close(src.gate)
	waitForStatus(t, c, 4, StatusReady)
	assert.Equal(t, 1, src.fetchCount(4), "re-requesting a pending index must not trigger a second fetch")

	// Re-requesting a cached index is a no-op too.
	c.Request(context.Background(), 4)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, src.fetchCount(4))
}

func TestFailedFetchRetriesOnce(t *testing.T) {
	src := newFakeSource(10, 5)
	src.failures[2] = 1 // first attempt fails, retry succeeds
	c := NewCache(src, "vid", 0, nil)

	c.Request(context.Background(), 2)
	waitForStatus(t, c, 2, StatusReady)
	assert.Equal(t, 2, src.fetchCount(2))
}

func TestSecondFailureMarksUnavailablePermanently(t *testing.T) {
	src := newFakeSource(10, 5)
	src.failures[7] = 2
	c := NewCache(src, "vid", 0, nil)

	c.Request(context.Background(), 7)
	waitForStatus(t, c, 7, StatusUnavailable)
	assert.Equal(t, 2, src.fetchCount(7))
	assert.False(t, c.Has(7), "unavailable counts as not buffered")

	// Never re-requested.
	c.Request(context.Background(), 7)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, src.fetchCount(7))
	_, st := c.Get(7)
	assert.Equal(t, StatusUnavailable, st)
}

func TestSubscribeNotifiesOnSettle(t *testing.T) {
	src := newFakeSource(10, 5)
	src.failures[1] = 2
	c := NewCache(src, "vid", 0, nil)

	var mu sync.Mutex
	settled := make(map[int]int)
	c.Subscribe(func(index int) {
		mu.Lock()
		settled[index]++
		mu.Unlock()
	})

	c.Request(context.Background(), 0)
	c.Request(context.Background(), 1)
	waitForStatus(t, c, 0, StatusReady)
	waitForStatus(t, c, 1, StatusUnavailable)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return settled[0] == 1 && settled[1] == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPreloaderSchedulesWindow(t *testing.T) {
	src := newFakeSource(20, 5)
	src.failures[3] = 2
	c := NewCache(src, "vid", 0, nil)
	ctx := context.Background()

	// Index 2 is already cached, 3 is permanently unavailable.
	c.Request(ctx, 2)
	waitForStatus(t, c, 2, StatusReady)
	c.Request(ctx, 3)
	waitForStatus(t, c, 3, StatusUnavailable)

	p := NewPreloader(c, 20, 5)
	p.Preload(ctx, 1)

	// The window skips cached and unavailable indices and schedules the
	// next five fetchable ones.
	for _, i := range []int{4, 5, 6, 7, 8} {
		waitForStatus(t, c, i, StatusReady)
	}
	_, st := c.Get(9)
	assert.Equal(t, StatusAbsent, st, "window is bounded")
	assert.Equal(t, 1, src.fetchCount(2), "cached index is not re-fetched")
	assert.Equal(t, 2, src.fetchCount(3), "unavailable index is not re-fetched")
}

func TestPreloaderStopsAtEndOfVideo(t *testing.T) {
	src := newFakeSource(5, 5)
	c := NewCache(src, "vid", 0, nil)

	p := NewPreloader(c, 5, 10)
	p.Preload(context.Background(), 2)

	waitForStatus(t, c, 3, StatusReady)
	waitForStatus(t, c, 4, StatusReady)
	_, st := c.Get(5)
	assert.Equal(t, StatusAbsent, st)
}
