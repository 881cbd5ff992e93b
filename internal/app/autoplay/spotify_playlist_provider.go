package autoplay

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/19player/internal/domain/track"
)

// SpotifyPlaylistProviderConfig configures a provider backed by a Spotify playlist.
type SpotifyPlaylistProviderConfig struct {
	PlaylistURL string `mapstructure:"playlist_url" validate:"required"`
}

// SpotifyPlaylistProvider picks random tracks from a Spotify playlist.
// It keeps a cache to minimize API calls.
type SpotifyPlaylistProvider struct {
	spotify   SpotifyClient
	cache     []track.Track
	cacheSize int
	config    *SpotifyPlaylistProviderConfig
}

// NewSpotifyPlaylistProvider creates a new SpotifyPlaylistProvider.
func NewSpotifyPlaylistProvider(spotify SpotifyClient, cacheSize int, settings map[string]any) (*SpotifyPlaylistProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}

	var config SpotifyPlaylistProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("autoplay: spotify playlist provider config: %+v", config)

	return &SpotifyPlaylistProvider{
		spotify:   spotify,
		cache:     make([]track.Track, 0),
		cacheSize: max(cacheSize, 1),
		config:    &config,
	}, nil
}

// Candidates implements Provider.
func (p *SpotifyPlaylistProvider) Candidates(ctx context.Context, count int, _ []track.Track, exclude map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}

	available := lo.Filter(p.cache, func(t track.Track, _ int) bool {
		return !exclude[t.URL]
	})

	if len(available) < count {
		needed := max(p.cacheSize, count) - len(available)
		fetched, err := p.spotify.GetPlaylistTracksRandom(ctx, p.config.PlaylistURL, needed)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get random tracks from playlist")
		}
		available = lo.UniqBy(append(available, lo.Filter(fetched, func(t track.Track, _ int) bool {
			return !exclude[t.URL]
		})...), func(t track.Track) string { return t.URL })
	}

	n := min(count, len(available))
	result := available[:n]
	p.cache = available[n:]
	return result, nil
}

// Name implements Provider.
func (p *SpotifyPlaylistProvider) Name() string {
	return TypeSpotifyPlaylist
}
