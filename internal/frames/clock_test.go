package frames

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects frame and state callbacks from a clock.
type recorder struct {
	mu     sync.Mutex
	frames []int
	states []ClockState
}

func (r *recorder) attach(c *Clock) {
	c.OnFrame(func(i int) {
		r.mu.Lock()
		r.frames = append(r.frames, i)
		r.mu.Unlock()
	})
	c.OnState(func(s ClockState) {
		r.mu.Lock()
		r.states = append(r.states, s)
		r.mu.Unlock()
	})
}

func (r *recorder) sawState(s ClockState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.states {
		if st == s {
			return true
		}
	}
	return false
}

func (r *recorder) frameLog() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.frames))
	copy(out, r.frames)
	return out
}

func newTestClock(t *testing.T, total int, fps float64) (*Clock, *Cache, *fakeSource) {
	t.Helper()
	src := newFakeSource(total, fps)
	c := NewCache(src, "vid", 0, nil)
	meta := Meta{TotalFrames: total, FPS: fps, Width: 8, Height: 8}
	p := NewPreloader(c, total, 5)
	return NewClock(c, p, meta, 3, nil), c, src
}

func fillCache(t *testing.T, c *Cache, total int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < total; i++ {
		c.Request(ctx, i)
	}
	for i := 0; i < total; i++ {
		waitForStatus(t, c, i, StatusReady)
	}
}

func TestPlayAtLastFrameStopsImmediately(t *testing.T) {
	clock, _, _ := newTestClock(t, 10, 5)
	rec := &recorder{}
	rec.attach(clock)
	ctx := context.Background()

	clock.Seek(ctx, 9)
	require.Equal(t, 9, clock.Current())
	require.Equal(t, Stopped, clock.State())

	clock.Play(ctx)
	assert.Equal(t, Stopped, clock.State(), "end-of-range play stops without buffering")
	assert.Equal(t, 0, clock.Current(), "play at the end rewinds to frame 0")
	assert.False(t, rec.sawState(Buffering))
	assert.False(t, rec.sawState(Playing))
}

func TestPlaybackAdvancesAndStopsAtEnd(t *testing.T) {
	const total = 6
	clock, cache, _ := newTestClock(t, total, 100)
	rec := &recorder{}
	rec.attach(clock)
	ctx := context.Background()

	fillCache(t, cache, total)
	clock.Play(ctx)

	require.Eventually(t, func() bool {
		return clock.State() == Stopped && clock.Current() == 0
	}, 3*time.Second, 10*time.Millisecond, "playback should reach the end and rewind")

	log := rec.frameLog()
	require.NotEmpty(t, log)
	assert.Equal(t, 0, log[len(log)-1], "final frame event is the rewind to 0")
	assert.Contains(t, log, total-1, "the last frame is displayed before the rewind")
	for _, f := range log {
		assert.Less(t, f, total, "current frame never exceeds total-1")
	}
	assert.True(t, rec.sawState(Playing))
	assert.True(t, rec.sawState(Stopped))

	// No auto-restart.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Stopped, clock.State())
	assert.Equal(t, 0, clock.Current())
}

func TestBufferGateHoldsPlayback(t *testing.T) {
	clock, _, src := newTestClock(t, 30, 100)
	rec := &recorder{}
	rec.attach(clock)
	ctx := context.Background()

	// Hold every fetch open so the buffer can never fill.
	src.mu.Lock()
	src.gate = make(chan struct{})
	src.mu.Unlock()

	clock.Play(ctx)
	require.Equal(t, Buffering, clock.State())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, Buffering, clock.State(), "gate closed, clock must not advance")
	assert.Equal(t, 0, clock.Current())
	assert.False(t, rec.sawState(Playing))

	// Release the fetches; the cache settling reopens the gate.
	close(src.gate)
	require.Eventually(t, func() bool {
		return clock.State() == Playing
	}, 3*time.Second, 5*time.Millisecond)

	clock.Pause()
	assert.Equal(t, Stopped, clock.State())
}

func TestSeekStopsAndPreloads(t *testing.T) {
	clock, cache, _ := newTestClock(t, 40, 100)
	ctx := context.Background()

	fillCache(t, cache, 10)
	clock.Play(ctx)
	require.Eventually(t, func() bool {
		return clock.State() == Playing
	}, 2*time.Second, 5*time.Millisecond)

	clock.Seek(ctx, 20)
	assert.Equal(t, Stopped, clock.State())
	assert.Equal(t, 20, clock.Current())

	// The landed-on frame is fetched along with a fresh lookahead window.
	for i := 20; i <= 25; i++ {
		waitForStatus(t, cache, i, StatusReady)
	}
}

func TestSeekFetchesTargetFrame(t *testing.T) {
	clock, cache, _ := newTestClock(t, 40, 5)

	clock.Seek(context.Background(), 20)
	waitForStatus(t, cache, 20, StatusReady)
}

func TestPlayFetchesCurrentFrame(t *testing.T) {
	clock, cache, _ := newTestClock(t, 40, 100)

	clock.Play(context.Background())
	waitForStatus(t, cache, 0, StatusReady)
	clock.Pause()
}

func TestSeekClampsToRange(t *testing.T) {
	clock, _, _ := newTestClock(t, 10, 5)
	ctx := context.Background()

	clock.Seek(ctx, -4)
	assert.Equal(t, 0, clock.Current())

	clock.Seek(ctx, 99)
	assert.Equal(t, 9, clock.Current())
}

func TestPlayWhileActiveIsNoOp(t *testing.T) {
	clock, cache, _ := newTestClock(t, 30, 100)
	ctx := context.Background()

	fillCache(t, cache, 10)
	clock.Play(ctx)
	require.Eventually(t, func() bool {
		return clock.State() == Playing
	}, 2*time.Second, 5*time.Millisecond)

	clock.Play(ctx) // already playing
	assert.Equal(t, Playing, clock.State())
	clock.Pause()
}
