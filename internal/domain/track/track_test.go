package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantArtist string
		wantName   string
	}{
		{
			name:       "artist and title",
			url:        "/music/Daft Punk - One More Time.mp3",
			wantArtist: "Daft Punk",
			wantName:   "One More Time",
		},
		{
			name:     "title only",
			url:      "/music/Intro.flac",
			wantName: "Intro",
		},
		{
			name:       "file url with escapes",
			url:        "file:///music/Air%20-%20Alpha%20Beta%20Gaga.mp3",
			wantArtist: "Air",
			wantName:   "Alpha Beta Gaga",
		},
		{
			name:       "only first separator splits",
			url:        "/music/A - B - C.wav",
			wantArtist: "A",
			wantName:   "B - C",
		},
		{
			name: "spotify uri",
			url:  "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name: "empty",
			url:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromURL(tt.url)
			assert.Equal(t, tt.wantArtist, got.Artist)
			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.url, got.URL)
			assert.False(t, got.HasDuration())
		})
	}
}

func TestTrack_BoredomKey(t *testing.T) {
	tr := Track{Artist: "Air", Name: "Sexy Boy"}
	assert.Equal(t, "Air/Sexy Boy", tr.BoredomKey())
	assert.Equal(t, "/", Track{}.BoredomKey())
}
