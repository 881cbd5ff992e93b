//go:build (linux && cgo) || windows || darwin

package beep

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/backend"
)

// Available indicates whether audio output is supported in this build.
const Available = true

var (
	speakerMu          sync.Mutex
	speakerInitialized bool
	speakerSampleRate  beep.SampleRate
)

// initSpeaker initializes the speaker once per process.
func initSpeaker(settings Settings) (beep.SampleRate, error) {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerInitialized {
		return speakerSampleRate, nil
	}

	sr := beep.SampleRate(settings.SampleRate)
	if err := speaker.Init(sr, sr.N(time.Duration(settings.BufferMs)*time.Millisecond)); err != nil {
		return 0, errors.Wrap(err, "failed to initialize speaker")
	}
	speakerInitialized = true
	speakerSampleRate = sr
	return sr, nil
}

// Backend plays local files through the speaker.
type Backend struct {
	settings   Settings
	sampleRate beep.SampleRate

	mu      sync.Mutex
	state   backend.DeviceState
	gain    float64
	streams map[*stream]struct{}
	closed  bool
}

// New creates a beep backend from a settings map and opens the speaker.
func New(settingsMap map[string]any) (*Backend, error) {
	settings, err := decodeSettings(settingsMap)
	if err != nil {
		return nil, err
	}

	sr, err := initSpeaker(settings)
	if err != nil {
		return nil, err
	}

	return &Backend{
		settings:   settings,
		sampleRate: sr,
		state:      backend.DeviceClosed,
		gain:       1,
		streams:    make(map[*stream]struct{}),
	}, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return Name }

// CreateStream implements backend.Backend.
func (b *Backend) CreateStream(lane int, url string, seekMs int64, cb backend.Callback) (backend.Stream, error) {
	path, err := localPath(url)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, backend.ErrClosed
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(backend.ErrStreamOpen, "%s: %v", url, err)
	}

	streamer, format, err := decode(f, path)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(backend.ErrStreamOpen, "%s: %v", url, err)
	}

	s := &stream{
		owner:    b,
		lane:     lane,
		url:      url,
		file:     f,
		streamer: streamer,
		format:   format,
		cb:       cb,
		dspEvery: b.sampleRate.N(time.Duration(b.settings.DSPIntervalMs) * time.Millisecond),
	}
	if seekMs > 0 {
		pos := min(format.SampleRate.N(time.Duration(seekMs)*time.Millisecond), streamer.Len())
		if err := streamer.Seek(pos); err != nil {
			zlog.Warn().Msgf("beep: seek failed: url=%s err=%v", url, err)
		}
	}

	var resampled beep.Streamer = streamer
	if format.SampleRate != b.sampleRate {
		resampled = beep.Resample(b.settings.ResampleQuality, format.SampleRate, b.sampleRate, streamer)
	}

	s.ctrl = &beep.Ctrl{Streamer: &tap{Streamer: resampled, stream: s}, Paused: b.state != backend.DevicePlaying}
	s.volume = &effects.Volume{Streamer: s.ctrl, Base: 2}
	applyGain(s.volume, b.gain)

	b.streams[s] = struct{}{}
	speaker.Play(beep.Seq(s.volume, beep.Callback(s.ended)))

	zlog.Debug().Msgf("beep: stream created: lane=%d url=%s rate=%d", lane, url, format.SampleRate)
	return s, nil
}

func decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3:
		return mp3.Decode(f)
	case extWAV:
		return wav.Decode(f)
	case extFLAC:
		return flac.Decode(f)
	default:
		return nil, beep.Format{}, backend.ErrUnsupportedURL
	}
}

// DestroyStream implements backend.Backend.
func (b *Backend) DestroyStream(s backend.Stream) {
	bs, ok := s.(*stream)
	if !ok || bs == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyLocked(bs)
}

func (b *Backend) destroyLocked(s *stream) {
	if _, ok := b.streams[s]; !ok {
		return
	}
	delete(b.streams, s)
	s.destroyed.Store(true)

	// a nil streamer ends the sequence so the mixer drops it
	speaker.Lock()
	s.ctrl.Streamer = nil
	speaker.Unlock()

	s.streamer.Close()
	s.file.Close()
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

	if state == backend.DeviceClosed {
		for s := range b.streams {
			b.destroyLocked(s)
		}
		return
	}

	speaker.Lock()
	for s := range b.streams {
		s.ctrl.Paused = state != backend.DevicePlaying
	}
	speaker.Unlock()
}

// SetDeviceVol implements backend.Backend.
func (b *Backend) SetDeviceVol(gain float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gain = min(max(gain, 0), 1)
	speaker.Lock()
	for s := range b.streams {
		applyGain(s.volume, b.gain)
	}
	speaker.Unlock()
}

// applyGain converts a linear gain to the exponent of effects.Volume.
func applyGain(v *effects.Volume, gain float64) {
	if gain <= 0 {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = math.Log2(gain)
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

// stream is one decoded file.
type stream struct {
	owner    *Backend
	lane     int
	url      string
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	cb       backend.Callback

	destroyed atomic.Bool

	// touched only from the speaker goroutine
	dspEvery   int
	dspSamples int
}

func (s *stream) URL() string { return s.url }

func (s *stream) Lane() int { return s.lane }

func (s *stream) GetTime() (totalMs, elapsedMs int64) {
	if s.destroyed.Load() {
		return -1, -1
	}
	speaker.Lock()
	pos, length := s.streamer.Position(), s.streamer.Len()
	speaker.Unlock()

	return s.format.SampleRate.D(length).Milliseconds(), s.format.SampleRate.D(pos).Milliseconds()
}

func (s *stream) SeekAbs(ms int64) {
	if s.destroyed.Load() {
		return
	}
	speaker.Lock()
	defer speaker.Unlock()

	pos := min(s.format.SampleRate.N(time.Duration(max(ms, 0))*time.Millisecond), s.streamer.Len())
	if err := s.streamer.Seek(pos); err != nil {
		zlog.Warn().Msgf("beep: seek failed: url=%s err=%v", s.url, err)
	}
}

// ended runs on the speaker goroutine with the speaker locked.
func (s *stream) ended() {
	if s.destroyed.Load() || s.cb == nil {
		return
	}
	if s.dspSamples > 0 {
		s.cb(backend.Message{Type: backend.MsgDSPBuffer, Stream: s, Bytes: s.dspSamples * 4})
		s.dspSamples = 0
	}
	go s.cb(backend.Message{Type: backend.MsgEndOfStream, Stream: s})
}

// tap reports decoded buffers to the stream callback.
type tap struct {
	beep.Streamer
	stream *stream
}

func (t *tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.Streamer.Stream(samples)
	s := t.stream
	if n <= 0 || s.cb == nil || s.destroyed.Load() {
		return n, ok
	}

	s.dspSamples += n
	if s.dspSamples < s.dspEvery {
		return n, ok
	}

	buf := make([]float64, 0, 2*n)
	for _, frame := range samples[:n] {
		buf = append(buf, frame[0], frame[1])
	}
	// 16-bit stereo
	s.cb(backend.Message{Type: backend.MsgDSPBuffer, Stream: s, Samples: buf, Bytes: s.dspSamples * 4})
	s.dspSamples = 0
	return n, ok
}
