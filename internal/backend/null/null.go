// Package null provides a simulated backend. Streams produce no sound; they
// run for a configured duration and then report the end of the stream.
package null

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/backend"
)

// Name is the backend type name.
const Name = "null"

// bytesPerMs is the size of 44.1kHz 16-bit stereo PCM per millisecond.
const bytesPerMs = 176.4

// Settings holds null backend settings.
type Settings struct {
	DurationMs   int64            `mapstructure:"duration_ms" default:"180000" validate:"gt=0"`
	Durations    map[string]int64 `mapstructure:"durations"`
	Speed        float64          `mapstructure:"speed" default:"1" validate:"gt=0"`
	FailPatterns []string         `mapstructure:"fail_patterns"`
	VideoPattern string           `mapstructure:"video_pattern"`
}

// Backend is the simulated backend.
type Backend struct {
	mu       sync.Mutex
	settings Settings
	state    backend.DeviceState
	gain     float64
	streams  map[*stream]struct{}
	closed   bool
}

// New creates a null backend from a settings map.
func New(settingsMap map[string]any) (*Backend, error) {
	var settings Settings
	if err := mapstructure.Decode(settingsMap, &settings); err != nil {
		return nil, errors.Wrap(err, "failed to decode null backend settings")
	}
	if err := defaults.Set(&settings); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(&settings); err != nil {
		return nil, errors.Wrap(err, "invalid null backend settings")
	}
	return NewWithSettings(settings), nil
}

// NewWithSettings creates a null backend.
func NewWithSettings(settings Settings) *Backend {
	return &Backend{
		settings: settings,
		state:    backend.DeviceClosed,
		gain:     1,
		streams:  make(map[*stream]struct{}),
	}
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return Name }

// CreateStream implements backend.Backend.
func (b *Backend) CreateStream(lane int, url string, seekMs int64, cb backend.Callback) (backend.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, backend.ErrClosed
	}
	for _, p := range b.settings.FailPatterns {
		if p != "" && strings.Contains(url, p) {
			return nil, errors.Wrapf(backend.ErrStreamOpen, "url %s", url)
		}
	}

	total := b.settings.DurationMs
	if d, ok := b.settings.Durations[url]; ok && d > 0 {
		total = d
	}

	s := &stream{
		owner:   b,
		lane:    lane,
		url:     url,
		totalMs: total,
		offset:  min(max(seekMs, 0), total),
		cb:      cb,
		video:   b.settings.VideoPattern != "" && strings.Contains(url, b.settings.VideoPattern),
	}
	b.streams[s] = struct{}{}
	if b.state == backend.DevicePlaying {
		s.resume()
	}

	zlog.Debug().Msgf("null: stream created: lane=%d url=%s total=%dms seek=%dms", lane, url, total, s.offset)
	return s, nil
}

// DestroyStream implements backend.Backend.
func (b *Backend) DestroyStream(s backend.Stream) {
	ns, ok := s.(*stream)
	if !ok || ns == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyLocked(ns)
}

func (b *Backend) destroyLocked(s *stream) {
	if _, ok := b.streams[s]; !ok {
		return
	}
	s.pause()
	s.destroyed = true
	delete(b.streams, s)
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
	defer b.mu.Unlock()

	if b.state == state {
		return
	}
	b.state = state

	for s := range b.streams {
		switch state {
		case backend.DevicePlaying:
			s.resume()
		case backend.DevicePaused:
			s.pause()
		case backend.DeviceClosed:
			b.destroyLocked(s)
		}
	}
}

// SetDeviceVol implements backend.Backend.
func (b *Backend) SetDeviceVol(gain float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gain = min(max(gain, 0), 1)
}

// Gain returns the last device gain.
func (b *Backend) Gain() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gain
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.streams {
		b.destroyLocked(s)
	}
	b.state = backend.DeviceClosed
	b.closed = true
	return nil
}

// stream is a simulated stream; all fields are guarded by owner.mu.
type stream struct {
	owner   *Backend
	lane    int
	url     string
	totalMs int64
	cb      backend.Callback
	video   bool

	offset    int64     // elapsed time at the last pause
	startedAt time.Time // zero while paused
	timer     *time.Timer
	gen       int // invalidates timers that fired while stopped
	destroyed bool
	videoSent bool
}

func (s *stream) URL() string { return s.url }

func (s *stream) Lane() int { return s.lane }

func (s *stream) GetTime() (totalMs, elapsedMs int64) {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.totalMs, s.elapsedLocked()
}

func (s *stream) SeekAbs(ms int64) {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()

	if s.destroyed {
		return
	}
	running := !s.startedAt.IsZero()
	s.pause()
	s.offset = min(max(ms, 0), s.totalMs)
	if running {
		s.resume()
	}
}

func (s *stream) elapsedLocked() int64 {
	elapsed := s.offset
	if !s.startedAt.IsZero() {
		elapsed += int64(float64(time.Since(s.startedAt).Milliseconds()) * s.owner.settings.Speed)
	}
	return min(elapsed, s.totalMs)
}

// resume starts the end-of-stream timer. Requires owner.mu.
func (s *stream) resume() {
	if s.destroyed || !s.startedAt.IsZero() {
		return
	}
	s.startedAt = time.Now()
	if s.video && !s.videoSent && s.cb != nil {
		s.videoSent = true
		go s.cb(backend.Message{Type: backend.MsgVideoDetected, Stream: s})
	}

	s.gen++
	gen := s.gen
	remaining := time.Duration(float64(s.totalMs-s.offset)/s.owner.settings.Speed) * time.Millisecond
	s.timer = time.AfterFunc(remaining, func() { s.finish(gen) })
}

// pause stops the timer and keeps the elapsed time. Requires owner.mu.
func (s *stream) pause() {
	if s.startedAt.IsZero() {
		return
	}
	s.offset = s.elapsedLocked()
	s.startedAt = time.Time{}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *stream) finish(gen int) {
	s.owner.mu.Lock()
	if s.destroyed || s.startedAt.IsZero() || gen != s.gen {
		s.owner.mu.Unlock()
		return
	}
	played := s.totalMs - s.offset
	s.offset = s.totalMs
	s.startedAt = time.Time{}
	s.timer = nil
	cb := s.cb
	s.owner.mu.Unlock()

	if cb == nil {
		return
	}
	cb(backend.Message{Type: backend.MsgDSPBuffer, Stream: s, Bytes: int(float64(played) * bytesPerMs)})
	cb(backend.Message{Type: backend.MsgEndOfStream, Stream: s})
}
