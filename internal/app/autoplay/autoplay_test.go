package autoplay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/app/filter"
	"github.com/osa030/19player/internal/app/queue"
	"github.com/osa030/19player/internal/domain/playlist"
	"github.com/osa030/19player/internal/domain/track"
	"github.com/osa030/19player/internal/infra/config"
)

type queueTarget struct {
	q *queue.Queue
}

func (t *queueTarget) Queue() *queue.Queue { return t.q }

func (t *queueTarget) Enqueue(urls []string, before int, verified bool, flags playlist.EntryFlags) int {
	return t.q.Enqueue(urls, before, verified, flags)
}

type fakeSource struct {
	cands []Candidate
	err   error
	calls int
	count int
}

func (s *fakeSource) Candidates(_ context.Context, count int, _ []track.Track, _ map[string]bool) ([]Candidate, error) {
	s.calls++
	s.count = count
	if s.err != nil {
		return nil, s.err
	}
	return append([]Candidate(nil), s.cands...), nil
}

func candidates(n int) []Candidate {
	var cands []Candidate
	for i := 1; i <= n; i++ {
		url := fmt.Sprintf("spotify:track:%d", i)
		cands = append(cands, Candidate{Track: track.Track{URL: url}, DisplayName: "test"})
	}
	return cands
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestController(cfg Config, source Source) (*Controller, *queueTarget, *testClock) {
	clock := &testClock{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
	target := &queueTarget{q: queue.New()}
	return New(cfg, source, target, WithClock(clock.Now)), target, clock
}

func TestDoAutoPlayIfEnabled_Disabled(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		source Source
	}{
		{name: "disabled", cfg: Config{Enabled: false, NumTracks: 3}, source: &fakeSource{cands: candidates(3)}},
		{name: "no source", cfg: Config{Enabled: true, NumTracks: 3}, source: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, target, _ := newTestController(tt.cfg, tt.source)
			assert.False(t, c.DoAutoPlayIfEnabled(true))
			assert.False(t, c.Tick(true, false))
			assert.Equal(t, 0, target.q.Count())
			assert.True(t, c.MoveToTopOnEoq())
		})
	}
}

func TestDoAutoPlayIfEnabled_NoWait(t *testing.T) {
	source := &fakeSource{cands: candidates(10)}
	c, target, _ := newTestController(Config{Enabled: true, WaitMinutes: 0, NumTracks: 2}, source)

	for i := 0; i < 5; i++ {
		require.True(t, c.DoAutoPlayIfEnabled(false))
	}
	assert.Equal(t, 5, target.q.Count())
	assert.False(t, c.MoveToTopOnEoq())
	assert.Equal(t, 2, source.count)

	for pos := 0; pos < target.q.Count(); pos++ {
		assert.True(t, target.q.EntryFlags(pos).Has(playlist.FlagAutoplay))
	}
}

func TestDoAutoPlayIfEnabled_LimitedRun(t *testing.T) {
	source := &fakeSource{cands: candidates(10)}
	c, target, clock := newTestController(Config{Enabled: true, WaitMinutes: 5, NumTracks: 3}, source)

	// no run started yet
	assert.False(t, c.DoAutoPlayIfEnabled(false))
	assert.True(t, c.MoveToTopOnEoq())

	clock.Advance(time.Minute)
	assert.False(t, c.Tick(true, false))

	clock.Advance(5 * time.Minute)
	require.True(t, c.Tick(true, false))
	assert.Equal(t, 1, target.q.Count())
	assert.Equal(t, 2, c.TracksLeft())

	assert.True(t, c.DoAutoPlayIfEnabled(false))
	assert.True(t, c.DoAutoPlayIfEnabled(false))
	assert.False(t, c.DoAutoPlayIfEnabled(false))
	assert.Equal(t, 3, target.q.Count())

	// an explicit request starts a new run
	assert.True(t, c.DoAutoPlayIfEnabled(true))
	assert.Equal(t, 2, c.TracksLeft())
}

func TestTick(t *testing.T) {
	t.Run("playing resets the idle timer", func(t *testing.T) {
		c, target, clock := newTestController(Config{Enabled: true, WaitMinutes: 5, NumTracks: 3}, &fakeSource{cands: candidates(3)})

		clock.Advance(4 * time.Minute)
		assert.False(t, c.Tick(false, false))
		clock.Advance(4 * time.Minute)
		assert.False(t, c.Tick(true, false))
		clock.Advance(2 * time.Minute)
		assert.True(t, c.Tick(true, false))
		assert.Equal(t, 1, target.q.Count())
	})

	t.Run("manual halt", func(t *testing.T) {
		c, target, clock := newTestController(Config{Enabled: true, WaitMinutes: 0, NumTracks: 3}, &fakeSource{cands: candidates(3)})

		clock.Advance(time.Hour)
		assert.False(t, c.Tick(true, true))
		assert.Equal(t, 0, target.q.Count())
	})

	t.Run("continues a run only after its own entries", func(t *testing.T) {
		c, target, clock := newTestController(Config{Enabled: true, WaitMinutes: 5, NumTracks: 3}, &fakeSource{cands: candidates(5)})

		clock.Advance(6 * time.Minute)
		require.True(t, c.Tick(true, false))
		require.True(t, c.Tick(true, false))
		assert.Equal(t, 2, target.q.Count())
		assert.Equal(t, 1, c.TracksLeft())

		target.Enqueue([]string{"/music/manual.mp3"}, -1, true, 0)
		assert.False(t, c.Tick(true, false))
		assert.Equal(t, 3, target.q.Count())
	})
}

func TestEnqueue_SkipsQueuedCandidates(t *testing.T) {
	source := &fakeSource{cands: candidates(2)}
	c, target, _ := newTestController(Config{Enabled: true, NumTracks: 2}, source)
	target.Enqueue([]string{"spotify:track:1"}, -1, true, 0)

	require.True(t, c.DoAutoPlayIfEnabled(true))
	assert.Equal(t, "spotify:track:2", target.q.URL(1))
	assert.Equal(t, 1, source.calls)

	// everything known is queued
	assert.False(t, c.DoAutoPlayIfEnabled(true))
	assert.Equal(t, 2, source.calls)
}

func TestEnqueue_FilteredCandidates(t *testing.T) {
	chain, err := filter.NewChainFromConfig(map[string]config.FilterConfig{
		filter.DurationLimitName: {Enabled: true, Settings: map[string]any{"max_minutes": 10}},
	})
	require.NoError(t, err)

	cands := candidates(3)
	cands[0].Track.Duration = 20 * time.Minute
	cands[1].Track.Duration = 3 * time.Minute
	source := &fakeSource{cands: cands}

	clock := &testClock{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
	target := &queueTarget{q: queue.New()}
	c := New(Config{Enabled: true, NumTracks: 3}, source, target, WithClock(clock.Now), WithFilters(chain))

	require.True(t, c.DoAutoPlayIfEnabled(true))
	assert.Equal(t, 1, target.q.Count())
	assert.Equal(t, "spotify:track:2", target.q.URL(0))
}

func TestEnqueue_FetchFailureBacksOff(t *testing.T) {
	source := &fakeSource{err: errors.New("unavailable")}
	c, target, clock := newTestController(Config{Enabled: true, NumTracks: 2}, source)

	assert.False(t, c.DoAutoPlayIfEnabled(true))
	assert.False(t, c.DoAutoPlayIfEnabled(true))
	assert.Equal(t, 1, source.calls)

	clock.Advance(2 * time.Minute)
	source.err = nil
	source.cands = candidates(1)
	assert.True(t, c.DoAutoPlayIfEnabled(true))
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, 1, target.q.Count())
}

func TestSetConfig(t *testing.T) {
	c, _, clock := newTestController(Config{Enabled: true, WaitMinutes: 5, NumTracks: 5}, &fakeSource{cands: candidates(5)})
	clock.Advance(6 * time.Minute)
	require.True(t, c.Tick(true, false))
	assert.Equal(t, 4, c.TracksLeft())

	c.SetConfig(Config{Enabled: true, WaitMinutes: 5, NumTracks: 2})
	assert.Equal(t, 2, c.TracksLeft())
	assert.Equal(t, 2, c.Config().NumTracks)
}

func TestSetConfig_RestartsIdleTimer(t *testing.T) {
	c, target, clock := newTestController(Config{Enabled: true, WaitMinutes: 5, NumTracks: 2}, &fakeSource{cands: candidates(2)})

	clock.Advance(4 * time.Minute)
	c.SetConfig(c.Config())
	clock.Advance(2 * time.Minute)
	assert.False(t, c.Tick(true, false))

	clock.Advance(4 * time.Minute)
	assert.True(t, c.Tick(true, false))
	assert.Equal(t, 1, target.q.Count())
}

func receive(t *testing.T, posted <-chan func()) func() {
	t.Helper()
	select {
	case fn := <-posted:
		return fn
	case <-time.After(time.Second):
		t.Fatal("lookup result was not posted")
		return nil
	}
}

func TestEnqueue_AsyncFetch(t *testing.T) {
	posted := make(chan func(), 1)
	post := func(fn func()) bool {
		posted <- fn
		return true
	}

	source := &fakeSource{cands: candidates(2)}
	clock := &testClock{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
	target := &queueTarget{q: queue.New()}
	c := New(Config{Enabled: true, NumTracks: 2}, source, target, WithClock(clock.Now), WithAsyncFetch(post))

	// nothing buffered yet, the lookup runs in the background
	assert.False(t, c.DoAutoPlayIfEnabled(true))
	assert.True(t, c.fetching)
	assert.False(t, c.DoAutoPlayIfEnabled(true))

	receive(t, posted)()
	assert.False(t, c.fetching)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 2, source.count)

	require.True(t, c.DoAutoPlayIfEnabled(true))
	assert.False(t, c.fetching)
	require.True(t, c.DoAutoPlayIfEnabled(true))
	assert.Equal(t, 2, target.q.Count())

	// the buffer ran empty, so the next lookup is already on its way
	assert.True(t, c.fetching)
	receive(t, posted)()
	assert.Equal(t, 2, source.calls)
}

func TestEnqueue_AsyncFetchFailureBacksOff(t *testing.T) {
	posted := make(chan func(), 1)
	post := func(fn func()) bool {
		posted <- fn
		return true
	}

	source := &fakeSource{err: errors.New("unavailable")}
	clock := &testClock{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
	target := &queueTarget{q: queue.New()}
	c := New(Config{Enabled: true, NumTracks: 2}, source, target, WithClock(clock.Now), WithAsyncFetch(post))

	assert.False(t, c.DoAutoPlayIfEnabled(true))
	receive(t, posted)()

	assert.False(t, c.DoAutoPlayIfEnabled(true))
	assert.False(t, c.fetching)

	clock.Advance(2 * time.Minute)
	source.err = nil
	source.cands = candidates(1)
	assert.False(t, c.DoAutoPlayIfEnabled(true))
	receive(t, posted)()
	assert.True(t, c.DoAutoPlayIfEnabled(true))
	assert.Equal(t, 1, target.q.Count())
}
