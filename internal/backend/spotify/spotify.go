// Package spotify plays spotify:track URIs on a Spotify Connect device.
//
// Spotify Connect plays one item at a time, so only the most recently created
// stream is audible. The end of a stream is detected by polling the player
// state.
package spotify

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/backend"
	spotifyclient "github.com/osa030/19player/internal/infra/spotify"
)

// Name is the backend type name.
const Name = "spotify"

// Remote is the part of the Spotify client the backend drives.
type Remote interface {
	Play(ctx context.Context, deviceID, uri string, positionMs int64) error
	Pause(ctx context.Context, deviceID string) error
	Resume(ctx context.Context, deviceID string) error
	Seek(ctx context.Context, deviceID string, positionMs int64) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
	PlaybackState(ctx context.Context) (*spotifyclient.PlaybackState, error)
}

// Settings holds spotify backend settings.
type Settings struct {
	DeviceID         string `mapstructure:"device_id"`
	PollIntervalMs   int    `mapstructure:"poll_interval_ms" default:"1000" validate:"gte=10"`
	RequestTimeoutMs int    `mapstructure:"request_timeout_ms" default:"5000" validate:"gte=100"`
}

// Backend drives a Spotify Connect device.
type Backend struct {
	remote   Remote
	settings Settings

	mu     sync.Mutex
	state  backend.DeviceState
	active *stream
	closed bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a spotify backend from a settings map and starts polling.
func New(remote Remote, settingsMap map[string]any) (*Backend, error) {
	var settings Settings
	if err := mapstructure.Decode(settingsMap, &settings); err != nil {
		return nil, errors.Wrap(err, "failed to decode spotify backend settings")
	}
	if err := defaults.Set(&settings); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(&settings); err != nil {
		return nil, errors.Wrap(err, "invalid spotify backend settings")
	}

	b := newBackend(remote, settings)
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.pollLoop(ctx)
	return b, nil
}

func newBackend(remote Remote, settings Settings) *Backend {
	return &Backend{
		remote:   remote,
		settings: settings,
		state:    backend.DeviceClosed,
		done:     make(chan struct{}),
	}
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return Name }

// CreateStream implements backend.Backend.
func (b *Backend) CreateStream(lane int, url string, seekMs int64, cb backend.Callback) (backend.Stream, error) {
	if !spotifyclient.IsTrackURI(url) {
		return nil, errors.Wrapf(backend.ErrUnsupportedURL, "url %s", url)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, backend.ErrClosed
	}

	s := &stream{owner: b, lane: lane, url: url, totalMs: -1, elapsedMs: max(seekMs, 0), cb: cb}
	b.active = s

	if b.state == backend.DevicePlaying {
		if err := b.start(s); err != nil {
			b.active = nil
			return nil, errors.Wrapf(backend.ErrStreamOpen, "%s: %v", url, err)
		}
	}
	return s, nil
}

// start begins playback of s on the device. Requires b.mu.
func (b *Backend) start(s *stream) error {
	ctx, cancel := b.requestContext()
	defer cancel()

	if err := b.remote.Play(ctx, b.settings.DeviceID, s.url, s.elapsedMs); err != nil {
		return err
	}
	s.started = true
	s.playing = true
	s.polledAt = time.Now()
	zlog.Debug().Msgf("spotify: playing %s from %dms", s.url, s.elapsedMs)
	return nil
}

// DestroyStream implements backend.Backend.
func (b *Backend) DestroyStream(s backend.Stream) {
	ss, ok := s.(*stream)
	if !ok || ss == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ss.destroyed = true
	if b.active == ss {
		b.active = nil
	}
}

// DeviceState implements backend.Backend.
func (b *Backend) DeviceState() backend.DeviceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetDeviceState implements backend.Backend.
func (b *Backend) SetDeviceState(state backend.DeviceState) {
	b.mu.Lock()
	failed := b.setDeviceState(state)
	b.mu.Unlock()

	if failed != nil {
		b.endStream(failed)
	}
}

// setDeviceState applies state and returns a stream that could not be
// started. Requires b.mu.
func (b *Backend) setDeviceState(state backend.DeviceState) *stream {
	if b.state == state {
		return nil
	}
	prev := b.state
	b.state = state

	s := b.active
	ctx, cancel := b.requestContext()
	defer cancel()

	switch state {
	case backend.DevicePlaying:
		if s == nil || s.ended {
			return nil
		}
		if !s.started {
			if err := b.start(s); err != nil {
				zlog.Warn().Msgf("spotify: failed to start %s: %v", s.url, err)
				s.ended = true
				return s
			}
			return nil
		}
		s.elapsedMs = s.elapsed()
		if err := b.remote.Resume(ctx, b.settings.DeviceID); err != nil {
			zlog.Warn().Msgf("spotify: failed to resume: %v", err)
			return nil
		}
		s.playing = true
		s.polledAt = time.Now()
	case backend.DevicePaused, backend.DeviceClosed:
		if s != nil && s.playing {
			s.elapsedMs = s.elapsed()
			s.playing = false
		}
		if prev == backend.DevicePlaying {
			if err := b.remote.Pause(ctx, b.settings.DeviceID); err != nil {
				zlog.Warn().Msgf("spotify: failed to pause: %v", err)
			}
		}
		if state == backend.DeviceClosed && s != nil {
			s.destroyed = true
			b.active = nil
		}
	}
	return nil
}

// SetDeviceVol implements backend.Backend.
func (b *Backend) SetDeviceVol(gain float64) {
	ctx, cancel := b.requestContext()
	defer cancel()
	percent := int(min(max(gain, 0), 1)*100 + 0.5)
	if err := b.remote.SetVolume(ctx, b.settings.DeviceID, percent); err != nil {
		zlog.Warn().Msgf("spotify: failed to set volume: %v", err)
	}
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	b.SetDeviceState(backend.DeviceClosed)

	b.mu.Lock()
	b.closed = true
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-b.done
	}
	return nil
}

func (b *Backend) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(b.settings.RequestTimeoutMs)*time.Millisecond)
}

func (b *Backend) pollLoop(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(time.Duration(b.settings.PollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.poll(ctx)
		}
	}
}

// poll refreshes the active stream from the player state and reports its end.
func (b *Backend) poll(ctx context.Context) {
	b.mu.Lock()
	s := b.active
	if s == nil || !s.playing {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(b.settings.RequestTimeoutMs)*time.Millisecond)
	state, err := b.remote.PlaybackState(reqCtx)
	cancel()
	if err != nil && !errors.Is(err, spotifyclient.ErrNoPlayback) {
		zlog.Debug().Msgf("spotify: poll failed: %v", err)
		return
	}

	b.mu.Lock()
	if s.destroyed || !s.playing || b.active != s {
		b.mu.Unlock()
		return
	}

	ended := false
	switch {
	case state != nil && state.URI == s.url:
		s.seen = true
		s.totalMs = state.DurationMs
		s.elapsedMs = state.ProgressMs
		s.polledAt = time.Now()
		// Connect rewinds to 0 and pauses after the last item
		ended = !state.Playing && state.ProgressMs == 0
	case s.seen:
		// playback moved on to something else, or stopped entirely
		ended = true
	}

	if !ended {
		b.mu.Unlock()
		return
	}

	s.playing = false
	s.ended = true
	if s.totalMs > 0 {
		s.elapsedMs = s.totalMs
	}
	b.mu.Unlock()

	b.endStream(s)
}

// endStream reports the end of s. Must not hold b.mu.
func (b *Backend) endStream(s *stream) {
	zlog.Debug().Msgf("spotify: end of stream: %s", s.url)
	if s.cb != nil {
		s.cb(backend.Message{Type: backend.MsgEndOfStream, Stream: s})
	}
}

// stream is one spotify track; fields are guarded by owner.mu.
type stream struct {
	owner *Backend
	lane  int
	url   string
	cb    backend.Callback

	totalMs   int64
	elapsedMs int64
	polledAt  time.Time
	started   bool
	playing   bool
	seen      bool // the device reported this uri at least once
	ended     bool
	destroyed bool
}

func (s *stream) URL() string { return s.url }

func (s *stream) Lane() int { return s.lane }

func (s *stream) GetTime() (totalMs, elapsedMs int64) {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.totalMs, s.elapsed()
}

func (s *stream) SeekAbs(ms int64) {
	b := s.owner
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.destroyed || s.ended {
		return
	}
	ms = max(ms, 0)
	if s.totalMs > 0 {
		ms = min(ms, s.totalMs)
	}
	s.elapsedMs = ms
	s.polledAt = time.Now()
	if !s.started {
		return
	}

	ctx, cancel := b.requestContext()
	defer cancel()
	if err := b.remote.Seek(ctx, b.settings.DeviceID, ms); err != nil {
		zlog.Warn().Msgf("spotify: failed to seek: %v", err)
	}
}

// elapsed interpolates the position since the last poll. Requires owner.mu.
func (s *stream) elapsed() int64 {
	e := s.elapsedMs
	if s.playing && !s.polledAt.IsZero() {
		e += time.Since(s.polledAt).Milliseconds()
	}
	if s.totalMs > 0 {
		e = min(e, s.totalMs)
	}
	return e
}
