// Package metadata loads track metadata for playlist entries on first access.
package metadata

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/domain/track"
	spotifyclient "github.com/osa030/19player/internal/infra/spotify"
)

const (
	defaultTimeout = 3 * time.Second
	maxCacheSize   = 4096
)

// TrackGetter looks up Spotify tracks.
type TrackGetter interface {
	GetTrack(ctx context.Context, trackID string) (*track.Track, error)
}

// Loader implements playlist.MetadataLoader. Local locations are parsed from
// their file name; Spotify tracks are looked up once and cached.
type Loader struct {
	spotify TrackGetter
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]track.Track
}

// Option configures a Loader.
type Option func(*Loader)

// WithTimeout limits one remote lookup.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// New creates a loader. spotify may be nil.
func New(spotify TrackGetter, opts ...Option) *Loader {
	l := &Loader{
		spotify: spotify,
		timeout: defaultTimeout,
		cache:   make(map[string]track.Track),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the metadata of a location. It never fails; unknown fields
// stay empty.
func (l *Loader) Load(url string) track.Track {
	if l.spotify == nil || !spotifyclient.IsTrackURI(url) {
		return track.FromURL(url)
	}

	l.mu.Lock()
	if t, ok := l.cache[url]; ok {
		l.mu.Unlock()
		return t
	}
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	got, err := l.spotify.GetTrack(ctx, url)
	if err != nil {
		zlog.Debug().Msgf("metadata: spotify lookup failed: url=%s error=%v", url, err)
		return track.FromURL(url)
	}

	t := *got
	t.URL = url

	l.mu.Lock()
	if len(l.cache) >= maxCacheSize {
		clear(l.cache)
	}
	l.cache[url] = t
	l.mu.Unlock()
	return t
}

// Prime stores known metadata, e.g. from an auto-play provider.
func (l *Loader) Prime(t track.Track) {
	if t.URL == "" || !spotifyclient.IsTrackURI(t.URL) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.cache) >= maxCacheSize {
		clear(l.cache)
	}
	l.cache[t.URL] = t
}
