package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/19player/internal/domain/track"
)

func TestDuplicateTrackFilter_ExactURLMatch(t *testing.T) {
	queued := []track.Track{
		{URL: "spotify:track:123", Name: "Bohemian Rhapsody", Artist: "Queen"},
	}

	filter := NewDuplicateTrackFilter()

	// Same url with other metadata is still the same entry
	result := filter.Check(context.Background(), track.Track{URL: "spotify:track:123"}, queued)

	assert.False(t, result.Accepted)
	assert.Equal(t, "duplicate_track", result.Code)
}

func TestDuplicateTrackFilter_RemasterDetection(t *testing.T) {
	tests := []struct {
		name         string
		queued       track.Track
		candidate    track.Track
		shouldReject bool
	}{
		{
			name:         "Standard remaster pattern",
			queued:       track.Track{URL: "a", Name: "Bohemian Rhapsody", Artist: "Queen"},
			candidate:    track.Track{URL: "b", Name: "Bohemian Rhapsody - 2011 Remaster", Artist: "Queen"},
			shouldReject: true,
		},
		{
			name:         "Remastered in parentheses",
			queued:       track.Track{URL: "a", Name: "Yesterday", Artist: "The Beatles"},
			candidate:    track.Track{URL: "b", Name: "Yesterday (Remastered 2023)", Artist: "The Beatles"},
			shouldReject: true,
		},
		{
			name:      "Cover song - different artist",
			queued:    track.Track{URL: "a", Name: "Yesterday", Artist: "The Beatles"},
			candidate: track.Track{URL: "b", Name: "Yesterday", Artist: "Paul McCartney"},
		},
		{
			name:      "Different songs - similar names",
			queued:    track.Track{URL: "a", Name: "Love", Artist: "John Lennon"},
			candidate: track.Track{URL: "b", Name: "Love Song", Artist: "John Lennon"},
		},
		{
			name:         "Radio Edit version",
			queued:       track.Track{URL: "a", Name: "Stairway to Heaven", Artist: "Led Zeppelin"},
			candidate:    track.Track{URL: "b", Name: "Stairway to Heaven (Radio Edit)", Artist: "Led Zeppelin"},
			shouldReject: true,
		},
		{
			name:         "Live version",
			queued:       track.Track{URL: "a", Name: "Hotel California", Artist: "Eagles"},
			candidate:    track.Track{URL: "b", Name: "Hotel California - Live", Artist: "Eagles"},
			shouldReject: true,
		},
		{
			name:         "Two remasters",
			queued:       track.Track{URL: "a", Name: "Let It Be - 2011 Remaster", Artist: "The Beatles"},
			candidate:    track.Track{URL: "b", Name: "Let It Be (Remastered 2023)", Artist: "The Beatles"},
			shouldReject: true,
		},
		{
			name:      "Remix version",
			queued:    track.Track{URL: "a", Name: "Le Freak", Artist: "CHIC"},
			candidate: track.Track{URL: "b", Name: "Le Freak (Oliver Heldens Remix)", Artist: "CHIC"},
		},
		{
			name:      "No metadata",
			queued:    track.Track{URL: "/music/a.mp3"},
			candidate: track.Track{URL: "/music/b.mp3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewDuplicateTrackFilter()
			result := filter.Check(context.Background(), tt.candidate, []track.Track{tt.queued})

			if tt.shouldReject {
				assert.False(t, result.Accepted)
				assert.Equal(t, "duplicate_track", result.Code)
			} else {
				assert.True(t, result.Accepted)
			}
		})
	}
}

func TestDuplicateTrackFilter_EmptyQueue(t *testing.T) {
	filter := NewDuplicateTrackFilter()
	result := filter.Check(context.Background(), track.Track{URL: "x", Name: "Any Song", Artist: "Any Artist"}, nil)
	assert.True(t, result.Accepted, "Should accept any track when queue is empty")
}

func TestNormalizeTrackName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Bohemian Rhapsody", "bohemian rhapsody"},
		{"Bohemian Rhapsody - 2011 Remaster", "bohemian rhapsody"},
		{"Yesterday (Remastered 2023)", "yesterday"},
		{"Hotel California [Remastered]", "hotel california"},
		{"Stairway to Heaven (Radio Edit)", "stairway to heaven"},
		{"Imagine - Live", "imagine"},
		{"Alive", "alive"},
		{"Let It Be (Single Version)", "let it be"},
		{"Hey Jude - Remastered Version", "hey jude"},
		{"Come Together (2019 Mix)", "come together (2019 mix)"},
		{"   Extra   Spaces   ", "extra spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTrackName(tt.input))
		})
	}
}

func TestIsSameArtist(t *testing.T) {
	tests := []struct {
		name     string
		artist1  string
		artist2  string
		expected bool
	}{
		{name: "Same artist", artist1: "Queen", artist2: "Queen", expected: true},
		{name: "Same artist - case insensitive", artist1: "Queen", artist2: "queen", expected: true},
		{name: "Different artists", artist1: "The Beatles", artist2: "Paul McCartney"},
		{name: "Empty artist", artist1: "", artist2: "Queen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSameArtist(track.Track{Artist: tt.artist1}, track.Track{Artist: tt.artist2})
			assert.Equal(t, tt.expected, result)
		})
	}
}
