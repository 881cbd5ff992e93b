package autoplay

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/19player/internal/app/filter"
	"github.com/osa030/19player/internal/app/queue"
	"github.com/osa030/19player/internal/domain/playlist"
	"github.com/osa030/19player/internal/domain/track"
	"github.com/osa030/19player/internal/infra/config"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultRetryAfter   = time.Minute
	seedCount           = 5
)

// Source returns candidates; *Chain is the usual implementation.
type Source interface {
	Candidates(ctx context.Context, count int, seeds []track.Track, exclude map[string]bool) ([]Candidate, error)
}

// Target is where auto-play entries go.
type Target interface {
	Queue() *queue.Queue
	Enqueue(urls []string, before int, verified bool, flags playlist.EntryFlags) int
}

// Config holds the auto-play trigger settings.
type Config struct {
	Enabled     bool
	WaitMinutes int // idle minutes before auto-play starts, 0 for at once
	NumTracks   int // tracks per auto-play run
}

// ConfigFrom converts the file configuration.
func ConfigFrom(c config.AutoplayConfig) Config {
	return Config{Enabled: c.Enabled, WaitMinutes: c.WaitMinutes, NumTracks: c.NumTracks}
}

// Controller decides when auto-play entries are added. It is not safe for
// concurrent use; it lives on the session loop.
type Controller struct {
	cfg     Config
	source  Source
	target  Target
	filters *filter.Chain
	now     func() time.Time

	fetchTimeout time.Duration
	retryAfter   time.Duration
	post         func(func()) bool
	fetching     bool

	pending        []Candidate
	tracksLeft     int
	lastPlayback   time.Time
	lastAutoPlayID int64
	fetchBlocked   time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithFetchTimeout limits one candidate lookup.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) { c.fetchTimeout = d }
}

// WithAsyncFetch moves candidate lookups off the controller's goroutine.
// post must run fn on that goroutine and report false once it is gone.
// Until a lookup completes the controller adds nothing; it keeps one lookup
// ahead once its buffer runs empty.
func WithAsyncFetch(post func(fn func()) bool) Option {
	return func(c *Controller) { c.post = post }
}

// WithFilters sets the chain candidates must pass before they are enqueued.
func WithFilters(chain *filter.Chain) Option {
	return func(c *Controller) { c.filters = chain }
}

// New creates a controller. source may be nil when no provider is configured.
func New(cfg Config, source Source, target Target, opts ...Option) *Controller {
	c := &Controller{
		cfg:          cfg,
		source:       source,
		target:       target,
		now:          time.Now,
		fetchTimeout: defaultFetchTimeout,
		retryAfter:   defaultRetryAfter,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastPlayback = c.now()
	return c
}

// Config returns the current settings.
func (c *Controller) Config() Config { return c.cfg }

// SetConfig applies changed settings and restarts the idle timer.
func (c *Controller) SetConfig(cfg Config) {
	c.cfg = cfg
	c.tracksLeft = min(c.tracksLeft, cfg.NumTracks)
	c.lastPlayback = c.now()
}

// Enabled reports whether auto-play may add entries.
func (c *Controller) Enabled() bool {
	return c.cfg.Enabled && c.source != nil
}

// TracksLeft returns the entries still to be added in the current run.
func (c *Controller) TracksLeft() int { return c.tracksLeft }

// MoveToTopOnEoq reports whether the queue may return to the top once it
// ran out. It may not while auto-play continues without waiting.
func (c *Controller) MoveToTopOnEoq() bool {
	return !(c.Enabled() && c.cfg.WaitMinutes == 0)
}

// DoAutoPlayIfEnabled adds one entry when the queue ran out during playback.
// ignoreTimeouts starts a new run regardless of the remaining tracks.
func (c *Controller) DoAutoPlayIfEnabled(ignoreTimeouts bool) bool {
	if !c.Enabled() {
		return false
	}
	if ignoreTimeouts || c.cfg.WaitMinutes == 0 {
		c.tracksLeft = c.cfg.NumTracks
	} else if c.tracksLeft <= 0 {
		return false
	}

	ok := c.enqueue()
	c.tracksLeft--
	return ok
}

// Tick runs periodically. While playing the idle timer is reset; while
// stopped a new run starts once the wait time passed. It reports whether an
// entry was added, which the caller should then start.
func (c *Controller) Tick(stopped, haltedManually bool) bool {
	if !c.Enabled() {
		return false
	}

	now := c.now()
	if !stopped {
		c.lastPlayback = now
		return false
	}
	if haltedManually {
		return false
	}

	if c.tracksLeft > 0 && c.lastTrackWasAutoPlay() {
		ok := c.enqueue()
		c.tracksLeft--
		return ok
	}

	wait := time.Duration(c.cfg.WaitMinutes) * time.Minute
	if now.After(c.lastPlayback.Add(wait)) {
		c.tracksLeft = c.cfg.NumTracks
		ok := c.enqueue()
		c.tracksLeft--
		if ok {
			c.lastPlayback = now
		}
		return ok
	}
	return false
}

// Played marks that something is on air.
func (c *Controller) Played() {
	c.lastPlayback = c.now()
}

func (c *Controller) lastTrackWasAutoPlay() bool {
	q := c.target.Queue()
	n := q.Count()
	return n > 0 && q.IDByPos(n-1) == c.lastAutoPlayID
}

func (c *Controller) enqueue() bool {
	cand, ok := c.next()
	if !ok {
		return false
	}

	pos := c.target.Enqueue([]string{cand.Track.URL}, -1, true, playlist.FlagAutoplay)
	if pos < 0 {
		return false
	}
	c.lastAutoPlayID = c.target.Queue().IDByPos(pos)
	zlog.Info().Msgf("autoplay: enqueued: url=%s provider=%s tracks_left=%d", cand.Track.URL, cand.DisplayName, c.tracksLeft-1)
	if c.post != nil && len(c.pending) == 0 {
		c.fetchAsync()
	}
	return true
}

// next returns the next candidate not yet queued that passes the filters,
// fetching more if needed.
func (c *Controller) next() (Candidate, bool) {
	q := c.target.Queue()
	var queued []track.Track
	for attempt := 0; attempt < 2; attempt++ {
		for len(c.pending) > 0 {
			cand := c.pending[0]
			c.pending = c.pending[1:]
			if q.IsEnqueued(cand.Track.URL) {
				continue
			}
			if c.filters == nil || c.filters.Len() == 0 {
				return cand, true
			}
			if queued == nil {
				queued = lo.Map(q.Snapshot(), func(info queue.Info, _ int) track.Track { return info.Track })
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
			result := c.filters.Execute(ctx, cand.Track, queued)
			cancel()
			if result.Accepted {
				return cand, true
			}
			zlog.Debug().Msgf("autoplay: candidate rejected: url=%s provider=%s code=%s", cand.Track.URL, cand.DisplayName, result.Code)
		}
		if attempt > 0 {
			break
		}
		if c.post != nil {
			c.fetchAsync()
			break
		}
		if !c.fetch() {
			break
		}
	}
	return Candidate{}, false
}

func (c *Controller) fetch() bool {
	if c.now().Before(c.fetchBlocked) {
		return false
	}

	seeds, exclude := c.fetchArgs()
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	cands, err := c.source.Candidates(ctx, max(c.cfg.NumTracks, 1), seeds, exclude)
	return c.fetched(cands, err)
}

// fetchAsync starts a lookup whose result is posted back to the owner
// goroutine. At most one lookup runs at a time.
func (c *Controller) fetchAsync() {
	if c.fetching || c.now().Before(c.fetchBlocked) {
		return
	}
	c.fetching = true

	seeds, exclude := c.fetchArgs()
	source, timeout, count := c.source, c.fetchTimeout, max(c.cfg.NumTracks, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		cands, err := source.Candidates(ctx, count, seeds, exclude)
		cancel()
		if !c.post(func() { c.fetched(cands, err) }) {
			zlog.Debug().Msg("autoplay: lookup result dropped, controller gone")
		}
	}()
}

func (c *Controller) fetchArgs() ([]track.Track, map[string]bool) {
	q := c.target.Queue()
	seeds := q.RecentTracks(seedCount)
	exclude := lo.SliceToMap(q.URLs(), func(u string) (string, bool) { return u, true })
	return seeds, exclude
}

// fetched stores a lookup result and backs off on failure.
func (c *Controller) fetched(cands []Candidate, err error) bool {
	c.fetching = false
	if err != nil || len(cands) == 0 {
		zlog.Warn().Msgf("autoplay: no candidates, retrying in %v: error=%v", c.retryAfter, err)
		c.fetchBlocked = c.now().Add(c.retryAfter)
		return false
	}
	c.pending = append(c.pending, cands...)
	return true
}
