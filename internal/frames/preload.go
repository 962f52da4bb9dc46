package frames

import "context"

// DefaultLookahead is the number of future frames proactively fetched on
// every playback-index change.
const DefaultLookahead = 10

// Preloader schedules lookahead fetches ahead of the playback position.
type Preloader struct {
	cache  *Cache
	total  int
	window int
}

// NewPreloader creates a preloader over cache for a video of total frames.
// Non-positive windows fall back to DefaultLookahead.
func NewPreloader(cache *Cache, total, window int) *Preloader {
	if window <= 0 {
		window = DefaultLookahead
	}
	return &Preloader{cache: cache, total: total, window: window}
}

// Preload schedules requests for the next uncached, unpending indices after
// from, ascending, until the lookahead window is filled or the video ends.
// Unavailable indices are skipped, never re-requested. Requests already in
// flight outside the new window are left alone.
func (p *Preloader) Preload(ctx context.Context, from int) {
	scheduled := 0
	for i := from + 1; i < p.total && scheduled < p.window; i++ {
		switch _, st := p.cache.Get(i); st {
		case StatusReady, StatusPending, StatusUnavailable:
			continue
		default:
			p.cache.Request(ctx, i)
			scheduled++
		}
	}
}
