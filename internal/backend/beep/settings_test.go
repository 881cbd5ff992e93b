package beep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/backend"
)

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain path", in: "/music/Artist - Song.mp3", want: "/music/Artist - Song.mp3"},
		{name: "upper case extension", in: "/music/a.FLAC", want: "/music/a.FLAC"},
		{name: "file url", in: "file:///music/My%20Song.wav", want: "/music/My Song.wav"},
		{name: "http stream", in: "http://radio.example.com/live.mp3", wantErr: true},
		{name: "spotify", in: "spotify:track:abc", wantErr: true},
		{name: "unsupported type", in: "/music/a.ogg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := localPath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, backend.ErrUnsupportedURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSettings(t *testing.T) {
	s, err := decodeSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, Settings{SampleRate: 44100, BufferMs: 100, ResampleQuality: 4, DSPIntervalMs: 250}, s)

	s, err = decodeSettings(map[string]any{"sample_rate": 48000})
	require.NoError(t, err)
	assert.Equal(t, 48000, s.SampleRate)

	_, err = decodeSettings(map[string]any{"sample_rate": 100})
	assert.Error(t, err)
}
