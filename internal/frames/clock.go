package frames

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultMinBuffer is how many of the upcoming frames must be cached before
// the clock may advance.
const DefaultMinBuffer = 5

// ClockState is the playback state machine's current state.
type ClockState int

const (
	// Stopped: no tick scheduled, manual seeks allowed.
	Stopped ClockState = iota
	// Buffering: playback requested, waiting for the buffer gate.
	Buffering
	// Playing: ticking at the source frame rate.
	Playing
)

func (s ClockState) String() string {
	switch s {
	case Buffering:
		return "buffering"
	case Playing:
		return "playing"
	default:
		return "stopped"
	}
}

// Clock advances the current frame at the source rate, gated on buffer
// sufficiency. Transitions: Stopped→Buffering on play, Buffering→Playing
// once enough upcoming frames are cached, Playing→Buffering when the buffer
// runs dry, and anything→Stopped on pause or seek. Reaching the last frame
// stops playback and resets to frame 0 without auto-restarting.
type Clock struct {
	mu        sync.Mutex
	state     ClockState
	current   int
	meta      Meta
	cache     *Cache
	preloader *Preloader
	minBuffer int
	stopCh    chan struct{}
	readyCh   chan struct{}
	onFrame   func(index int)
	onState   func(state ClockState)
	logger    *slog.Logger
}

// NewClock creates a stopped clock at frame 0. minBuffer ≤ 0 falls back to
// DefaultMinBuffer.
func NewClock(cache *Cache, preloader *Preloader, meta Meta, minBuffer int, logger *slog.Logger) *Clock {
	if minBuffer <= 0 {
		minBuffer = DefaultMinBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Clock{
		meta:      meta,
		cache:     cache,
		preloader: preloader,
		minBuffer: minBuffer,
		readyCh:   make(chan struct{}, 1),
		logger:    logger,
	}
	cache.Subscribe(func(int) { c.nudge() })
	return c
}

// OnFrame registers the callback invoked when the current frame changes.
func (c *Clock) OnFrame(fn func(index int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = fn
}

// OnState registers the callback invoked on state transitions.
func (c *Clock) OnState(fn func(state ClockState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// State returns the current playback state.
func (c *Clock) State() ClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the current frame index.
func (c *Clock) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Play requests playback. At the last frame it detects end-of-range,
// resets to frame 0 and stays stopped without entering Buffering.
func (c *Clock) Play(ctx context.Context) {
	c.mu.Lock()
	if c.state != Stopped {
		c.mu.Unlock()
		return
	}
	if c.meta.TotalFrames <= 1 || c.current >= c.meta.TotalFrames-1 {
		c.current = 0
		frameFn := c.onFrame
		c.mu.Unlock()
		if frameFn != nil {
			frameFn(0)
		}
		return
	}
	c.state = Buffering
	c.stopCh = make(chan struct{})
	stop := c.stopCh
	stateFn := c.onState
	from := c.current
	c.mu.Unlock()

	if stateFn != nil {
		stateFn(Buffering)
	}
	c.cache.Request(ctx, from)
	c.preloader.Preload(ctx, from)
	c.maybeResume()
	go c.run(ctx, stop)
}

// Pause stops playback, keeping the current frame.
func (c *Clock) Pause() {
	c.mu.Lock()
	stateFn := c.stopLocked()
	c.mu.Unlock()
	if stateFn != nil {
		stateFn(Stopped)
	}
}

// Seek jumps to index immediately, cancels the tick, transitions to
// Stopped, requests the frame at the new position and opens a fresh preload
// window from it. In-flight fetches are left to finish.
func (c *Clock) Seek(ctx context.Context, index int) {
	if index < 0 {
		index = 0
	}
	if index > c.meta.TotalFrames-1 {
		index = c.meta.TotalFrames - 1
	}

	c.mu.Lock()
	stateFn := c.stopLocked()
	c.current = index
	frameFn := c.onFrame
	c.mu.Unlock()

	if stateFn != nil {
		stateFn(Stopped)
	}
	if frameFn != nil {
		frameFn(index)
	}
	c.cache.Request(ctx, index)
	c.preloader.Preload(ctx, index)
}

// stopLocked cancels the run loop and enters Stopped. Returns the state
// callback to invoke after unlocking, or nil when already stopped.
func (c *Clock) stopLocked() func(ClockState) {
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	if c.state == Stopped {
		return nil
	}
	c.state = Stopped
	return c.onState
}

// nudge wakes the run loop after a cache settle so Buffering can re-check
// the gate without waiting for the next tick.
func (c *Clock) nudge() {
	select {
	case c.readyCh <- struct{}{}:
	default:
	}
}

func (c *Clock) run(ctx context.Context, stop <-chan struct{}) {
	interval := time.Duration(float64(time.Second) / c.meta.FPS)
	if interval <= 0 {
		interval = time.Second / 30
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.readyCh:
			c.maybeResume()
		case <-ticker.C:
			if done := c.tick(ctx); done {
				return
			}
		}
	}
}

// sufficientLocked reports whether at least minBuffer of the next minBuffer
// indices after from are cached. The window clamps at the end of the video;
// unavailable frames count as not buffered.
func (c *Clock) sufficientLocked(from int) bool {
	end := from + c.minBuffer
	if end > c.meta.TotalFrames {
		end = c.meta.TotalFrames
	}
	for i := from; i < end; i++ {
		if !c.cache.Has(i) {
			return false
		}
	}
	return true
}

// maybeResume transitions Buffering→Playing once the gate opens.
func (c *Clock) maybeResume() {
	c.mu.Lock()
	if c.state != Buffering || !c.sufficientLocked(c.current+1) {
		c.mu.Unlock()
		return
	}
	c.state = Playing
	stateFn := c.onState
	c.mu.Unlock()
	if stateFn != nil {
		stateFn(Playing)
	}
}

// tick advances one frame while Playing. Returns true when playback reached
// the end and the run loop should exit.
func (c *Clock) tick(ctx context.Context) bool {
	c.mu.Lock()
	switch c.state {
	case Buffering:
		c.mu.Unlock()
		c.maybeResume()
		return false
	case Playing:
	default:
		c.mu.Unlock()
		return false
	}

	next := c.current + 1
	if !c.sufficientLocked(next) {
		c.state = Buffering
		stateFn := c.onState
		c.mu.Unlock()
		c.logger.Debug("buffer ran dry, pausing advancement", "frame", next)
		if stateFn != nil {
			stateFn(Buffering)
		}
		c.preloader.Preload(ctx, next-1)
		return false
	}

	frameFn := c.onFrame
	if next >= c.meta.TotalFrames-1 {
		// Last frame reached: display it, then stop and rewind. No
		// auto-restart.
		if c.stopCh != nil {
			close(c.stopCh)
			c.stopCh = nil
		}
		c.state = Stopped
		c.current = 0
		stateFn := c.onState
		c.mu.Unlock()
		if frameFn != nil {
			frameFn(next)
			frameFn(0)
		}
		if stateFn != nil {
			stateFn(Stopped)
		}
		return true
	}

	c.current = next
	c.mu.Unlock()
	if frameFn != nil {
		frameFn(next)
	}
	c.preloader.Preload(ctx, next)
	return false
}
