package null

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/backend"
)

func collect(ch chan backend.Message) backend.Callback {
	return func(m backend.Message) { ch <- m }
}

func waitFor(t *testing.T, ch chan backend.Message, typ backend.MessageType) backend.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-ch:
			if m.Type == typ {
				return m
			}
		case <-deadline:
			t.Fatalf("no %s message", typ)
			return backend.Message{}
		}
	}
}

func TestNew_Settings(t *testing.T) {
	b, err := New(map[string]any{
		"duration_ms":   5000,
		"speed":         2,
		"fail_patterns": []any{"broken"},
		"durations":     map[string]any{"a.mp3": 1000},
	})
	require.NoError(t, err)
	assert.Equal(t, Name, b.Name())
	assert.Equal(t, int64(5000), b.settings.DurationMs)
	assert.Equal(t, float64(2), b.settings.Speed)
	assert.Equal(t, []string{"broken"}, b.settings.FailPatterns)
	assert.Equal(t, int64(1000), b.settings.Durations["a.mp3"])

	b, err = New(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(180000), b.settings.DurationMs)

	_, err = New(map[string]any{"speed": -1})
	assert.Error(t, err)
}

func TestBackend_EndOfStream(t *testing.T) {
	b := NewWithSettings(Settings{DurationMs: 30, Speed: 1})
	ch := make(chan backend.Message, 8)

	s, err := b.CreateStream(0, "a.mp3", 0, collect(ch))
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", s.URL())

	// nothing happens while the device is closed
	select {
	case m := <-ch:
		t.Fatalf("unexpected message %s", m.Type)
	case <-time.After(60 * time.Millisecond):
	}

	b.SetDeviceState(backend.DevicePlaying)
	dsp := waitFor(t, ch, backend.MsgDSPBuffer)
	assert.Positive(t, dsp.Bytes)
	eos := waitFor(t, ch, backend.MsgEndOfStream)
	assert.Equal(t, s, eos.Stream)

	total, elapsed := s.GetTime()
	assert.Equal(t, int64(30), total)
	assert.Equal(t, int64(30), elapsed)
}

func TestBackend_DestroyedStreamIsSilent(t *testing.T) {
	b := NewWithSettings(Settings{DurationMs: 20, Speed: 1})
	b.SetDeviceState(backend.DevicePlaying)
	ch := make(chan backend.Message, 8)

	s, err := b.CreateStream(0, "a.mp3", 0, collect(ch))
	require.NoError(t, err)
	b.DestroyStream(s)

	select {
	case m := <-ch:
		t.Fatalf("unexpected message %s", m.Type)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestBackend_PauseAndSeek(t *testing.T) {
	b := NewWithSettings(Settings{DurationMs: 60000, Speed: 1})
	s, err := b.CreateStream(0, "a.mp3", 1000, nil)
	require.NoError(t, err)

	total, elapsed := s.GetTime()
	assert.Equal(t, int64(60000), total)
	assert.Equal(t, int64(1000), elapsed)

	b.SetDeviceState(backend.DevicePlaying)
	b.SetDeviceState(backend.DevicePaused)
	_, paused := s.GetTime()
	time.Sleep(20 * time.Millisecond)
	_, later := s.GetTime()
	assert.Equal(t, paused, later)

	s.SeekAbs(50000)
	_, elapsed = s.GetTime()
	assert.Equal(t, int64(50000), elapsed)

	s.SeekAbs(999999)
	_, elapsed = s.GetTime()
	assert.Equal(t, int64(60000), elapsed)
}

func TestBackend_FailPatterns(t *testing.T) {
	b := NewWithSettings(Settings{DurationMs: 1000, Speed: 1, FailPatterns: []string{"broken"}})

	_, err := b.CreateStream(0, "/music/broken.mp3", 0, nil)
	assert.ErrorIs(t, err, backend.ErrStreamOpen)

	_, err = b.CreateStream(0, "/music/fine.mp3", 0, nil)
	assert.NoError(t, err)
}

func TestBackend_VideoDetected(t *testing.T) {
	b := NewWithSettings(Settings{DurationMs: 10000, Speed: 1, VideoPattern: ".mp4"})
	b.SetDeviceState(backend.DevicePlaying)
	ch := make(chan backend.Message, 8)

	_, err := b.CreateStream(0, "clip.mp4", 0, collect(ch))
	require.NoError(t, err)
	waitFor(t, ch, backend.MsgVideoDetected)
}

func TestBackend_CloseDevice(t *testing.T) {
	b := NewWithSettings(Settings{DurationMs: 10000, Speed: 1})
	b.SetDeviceState(backend.DevicePlaying)
	_, err := b.CreateStream(0, "a.mp3", 0, nil)
	require.NoError(t, err)

	b.SetDeviceVol(2)
	assert.Equal(t, float64(1), b.Gain())

	b.SetDeviceState(backend.DeviceClosed)
	assert.Equal(t, backend.DeviceClosed, b.DeviceState())
	assert.Empty(t, b.streams)

	require.NoError(t, b.Close())
	_, err = b.CreateStream(0, "a.mp3", 0, nil)
	assert.ErrorIs(t, err, backend.ErrClosed)
}
