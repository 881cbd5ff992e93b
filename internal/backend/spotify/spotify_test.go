package spotify

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/backend"
	spotifyclient "github.com/osa030/19player/internal/infra/spotify"
)

type fakeRemote struct {
	mu      sync.Mutex
	calls   []string
	state   *spotifyclient.PlaybackState
	playErr error
	volume  int
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) Play(_ context.Context, _ string, uri string, _ int64) error {
	f.record("play " + uri)
	return f.playErr
}

func (f *fakeRemote) Pause(context.Context, string) error {
	f.record("pause")
	return nil
}

func (f *fakeRemote) Resume(context.Context, string) error {
	f.record("resume")
	return nil
}

func (f *fakeRemote) Seek(context.Context, string, int64) error {
	f.record("seek")
	return nil
}

func (f *fakeRemote) SetVolume(_ context.Context, _ string, percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = percent
	return nil
}

func (f *fakeRemote) PlaybackState(context.Context) (*spotifyclient.PlaybackState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		return nil, spotifyclient.ErrNoPlayback
	}
	s := *f.state
	return &s, nil
}

func (f *fakeRemote) setState(s *spotifyclient.PlaybackState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func newTestBackend(remote *fakeRemote) *Backend {
	return newBackend(remote, Settings{PollIntervalMs: 1000, RequestTimeoutMs: 1000})
}

const uriA = "spotify:track:aaa"

func TestCreateStream_Unsupported(t *testing.T) {
	b := newTestBackend(&fakeRemote{})
	_, err := b.CreateStream(0, "/music/a.mp3", 0, nil)
	assert.ErrorIs(t, err, backend.ErrUnsupportedURL)
}

func TestCreateStream_StartsWhenPlaying(t *testing.T) {
	remote := &fakeRemote{}
	b := newTestBackend(remote)

	_, err := b.CreateStream(0, uriA, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, remote.Calls())

	b.SetDeviceState(backend.DevicePlaying)
	assert.Equal(t, []string{"play " + uriA}, remote.Calls())

	b.SetDeviceState(backend.DevicePaused)
	b.SetDeviceState(backend.DevicePlaying)
	assert.Equal(t, []string{"play " + uriA, "pause", "resume"}, remote.Calls())
}

func TestCreateStream_PlayFailure(t *testing.T) {
	remote := &fakeRemote{playErr: errors.New("404 device not found")}
	b := newTestBackend(remote)
	b.SetDeviceState(backend.DevicePlaying)

	_, err := b.CreateStream(0, uriA, 0, nil)
	assert.ErrorIs(t, err, backend.ErrStreamOpen)
}

func TestSetDeviceState_StartFailureEndsStream(t *testing.T) {
	remote := &fakeRemote{playErr: errors.New("404 device not found")}
	b := newTestBackend(remote)

	var got []backend.Message
	s, err := b.CreateStream(0, uriA, 0, func(m backend.Message) { got = append(got, m) })
	require.NoError(t, err)

	b.SetDeviceState(backend.DevicePlaying)
	require.Len(t, got, 1)
	assert.Equal(t, backend.MsgEndOfStream, got[0].Type)
	assert.Equal(t, s, got[0].Stream)

	for i := 0; i < 5; i++ {
		b.poll(context.Background())
	}
	b.SetDeviceState(backend.DevicePaused)
	b.SetDeviceState(backend.DevicePlaying)
	assert.Len(t, got, 1)
	assert.Equal(t, []string{"play " + uriA}, remote.Calls())
}

func TestPoll_EndOfStream(t *testing.T) {
	tests := []struct {
		name  string
		after *spotifyclient.PlaybackState
	}{
		{name: "rewound and paused", after: &spotifyclient.PlaybackState{URI: uriA, Playing: false, ProgressMs: 0, DurationMs: 200000}},
		{name: "moved on", after: &spotifyclient.PlaybackState{URI: "spotify:track:bbb", Playing: true, ProgressMs: 1000, DurationMs: 100000}},
		{name: "nothing playing", after: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{}
			b := newTestBackend(remote)
			b.SetDeviceState(backend.DevicePlaying)

			var got []backend.Message
			s, err := b.CreateStream(0, uriA, 0, func(m backend.Message) { got = append(got, m) })
			require.NoError(t, err)

			// not reported yet: no end of stream before the uri has been seen
			remote.setState(nil)
			b.poll(context.Background())
			assert.Empty(t, got)

			remote.setState(&spotifyclient.PlaybackState{URI: uriA, Playing: true, ProgressMs: 5000, DurationMs: 200000})
			b.poll(context.Background())
			assert.Empty(t, got)
			total, elapsed := s.GetTime()
			assert.Equal(t, int64(200000), total)
			assert.GreaterOrEqual(t, elapsed, int64(5000))

			remote.setState(tt.after)
			b.poll(context.Background())
			require.Len(t, got, 1)
			assert.Equal(t, backend.MsgEndOfStream, got[0].Type)
			assert.Equal(t, s, got[0].Stream)

			// reported once
			b.poll(context.Background())
			assert.Len(t, got, 1)
		})
	}
}

func TestPoll_DestroyedStreamIsSilent(t *testing.T) {
	remote := &fakeRemote{}
	b := newTestBackend(remote)
	b.SetDeviceState(backend.DevicePlaying)

	called := false
	s, err := b.CreateStream(0, uriA, 0, func(backend.Message) { called = true })
	require.NoError(t, err)
	remote.setState(&spotifyclient.PlaybackState{URI: uriA, Playing: true, ProgressMs: 5000, DurationMs: 200000})
	b.poll(context.Background())

	b.DestroyStream(s)
	remote.setState(nil)
	b.poll(context.Background())
	assert.False(t, called)
}

func TestSetDeviceVol(t *testing.T) {
	remote := &fakeRemote{}
	b := newTestBackend(remote)
	b.SetDeviceVol(240.0 / 255.0)
	assert.Equal(t, 94, remote.volume)
}

func TestNew_Settings(t *testing.T) {
	b, err := New(&fakeRemote{}, map[string]any{"device_id": "dev1"})
	require.NoError(t, err)
	assert.Equal(t, "dev1", b.settings.DeviceID)
	assert.Equal(t, 1000, b.settings.PollIntervalMs)
	require.NoError(t, b.Close())

	_, err = New(&fakeRemote{}, map[string]any{"poll_interval_ms": 1})
	assert.Error(t, err)
}
