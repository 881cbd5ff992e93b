package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/osa030/19player/internal/domain/track"
)

type fakeGetter struct {
	tracks map[string]track.Track
	calls  int
}

func (f *fakeGetter) GetTrack(_ context.Context, id string) (*track.Track, error) {
	f.calls++
	t, ok := f.tracks[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &t, nil
}

func TestLoader_Load(t *testing.T) {
	getter := &fakeGetter{tracks: map[string]track.Track{
		"spotify:track:abc": {Name: "Song", Artist: "Band", Album: "Record", Duration: 200 * time.Second, URL: "spotify:track:abc"},
	}}
	l := New(getter, WithTimeout(time.Second))

	tests := []struct {
		name string
		url  string
		want track.Track
	}{
		{
			name: "local file",
			url:  "/music/Artist - Title.mp3",
			want: track.Track{Name: "Title", Artist: "Artist", Duration: track.UnknownDuration, URL: "/music/Artist - Title.mp3"},
		},
		{
			name: "spotify track",
			url:  "spotify:track:abc",
			want: track.Track{Name: "Song", Artist: "Band", Album: "Record", Duration: 200 * time.Second, URL: "spotify:track:abc"},
		},
		{
			name: "spotify lookup failure",
			url:  "spotify:track:missing",
			want: track.Track{Duration: track.UnknownDuration, URL: "spotify:track:missing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Load(tt.url))
		})
	}
}

func TestLoader_Cache(t *testing.T) {
	getter := &fakeGetter{tracks: map[string]track.Track{
		"spotify:track:abc": {Name: "Song", URL: "spotify:track:abc"},
	}}
	l := New(getter)

	l.Load("spotify:track:abc")
	l.Load("spotify:track:abc")
	assert.Equal(t, 1, getter.calls)

	l.Prime(track.Track{Name: "Primed", URL: "spotify:track:xyz"})
	assert.Equal(t, "Primed", l.Load("spotify:track:xyz").Name)
	assert.Equal(t, 1, getter.calls)
}

func TestLoader_NoSpotify(t *testing.T) {
	l := New(nil)
	got := l.Load("spotify:track:abc")
	assert.Equal(t, "spotify:track:abc", got.URL)
	assert.Empty(t, got.Name)
}
