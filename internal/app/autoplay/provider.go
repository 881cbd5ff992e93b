// Package autoplay keeps the player busy when the queue runs out: it asks a
// chain of providers for candidate tracks and enqueues them one at a time.
package autoplay

import (
	"context"

	"github.com/osa030/19player/internal/domain/track"
	"github.com/osa030/19player/internal/infra/lastfm"
)

// Provider returns candidate tracks for auto-play.
type Provider interface {
	// Candidates returns up to count tracks.
	// seeds: recently played tracks, most recent first
	// exclude: urls already in the queue
	Candidates(ctx context.Context, count int, seeds []track.Track, exclude map[string]bool) ([]track.Track, error)

	// Name returns the provider type.
	Name() string
}

// SpotifyClient defines the Spotify operations needed by providers.
type SpotifyClient interface {
	GetPlaylistTracksRandom(ctx context.Context, playlistURL string, count int) ([]track.Track, error)
	SearchTrack(ctx context.Context, artist, title string) (*track.Track, error)
}

// LastFmClient defines the Last.fm operations needed by providers.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	GetTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TopTrack, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.TopTrack, error)
}
