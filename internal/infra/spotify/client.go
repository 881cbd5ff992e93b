// Package spotify provides a client for the Spotify API.
package spotify

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/19player/internal/domain/track"
)

// Errors
var (
	ErrNotFound   = errors.New("no matching track")
	ErrNoPlayback = errors.New("no active playback")
)

// Scopes are the OAuth scopes the player needs.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
}

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// PlaybackState is the state of the Spotify Connect player.
type PlaybackState struct {
	URI        string // spotify:track:ID of the current item
	Playing    bool
	ProgressMs int64
	DurationMs int64
	DeviceID   string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	// Create token from refresh token
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	// Get HTTP client with auto-refresh capability
	httpClient := auth.Client(ctx, token)
	client := spotify.New(httpClient)

	market := cfg.Market
	if market == "" {
		market = "JP"
	}

	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// GetTrack retrieves track information by ID, URL, or URI.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*track.Track, error) {
	id := extractTrackID(trackID)

	var result *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	t := convertTrack(result)
	return &t, nil
}

// SearchTrack returns the best match for an artist and a title.
func (c *Client) SearchTrack(ctx context.Context, artist, title string) (*track.Track, error) {
	if title == "" {
		return nil, errors.New("search title is required")
	}

	query := "track:" + quote(title)
	if artist != "" {
		query += " artist:" + quote(artist)
	}

	var result *spotify.SearchResult
	err := c.retry(func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(5),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}

	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s - %s", artist, title)
	}
	t := convertTrack(&result.Tracks.Tracks[0])
	return &t, nil
}

// CheckPlaylistExists checks if a playlist exists without fetching all tracks.
func (c *Client) CheckPlaylistExists(ctx context.Context, playlistURL string) error {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return errors.New("invalid playlist URL")
	}

	// Fetch only 1 item to check existence
	err := c.retry(func() error {
		_, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(1),
			spotify.Offset(0),
			spotify.Market(c.market),
		)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "playlist does not exist or is not accessible")
	}

	return nil
}

// GetPlaylistTracksRandom retrieves a random sample of tracks from a playlist.
// It reads the total count first, then samples from one random page.
func (c *Client) GetPlaylistTracksRandom(ctx context.Context, playlistURL string, count int) ([]track.Track, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var firstPage *spotify.PlaylistItemPage
	err := c.retry(func() error {
		p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(1),
			spotify.Offset(0),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		firstPage = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist info")
	}

	totalTracks := int(firstPage.Total)
	if totalTracks == 0 {
		return []track.Track{}, nil
	}

	limit := 100 // Spotify API max per page
	offset := 0
	if maxOffset := totalTracks - limit; maxOffset > 0 {
		offset = rand.IntN(maxOffset + 1)
	}

	var page *spotify.PlaylistItemPage
	err = c.retry(func() error {
		p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(limit),
			spotify.Offset(offset),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist items")
	}

	var tracks []track.Track
	for _, item := range page.Items {
		// Only process tracks (exclude episodes)
		if item.Track.Track != nil && item.Track.Track.ID != "" {
			tracks = append(tracks, convertTrack(item.Track.Track))
		}
	}

	rand.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
	if len(tracks) > count {
		tracks = tracks[:count]
	}

	return tracks, nil
}

// Play starts uri on the device at positionMs.
func (c *Client) Play(ctx context.Context, deviceID, uri string, positionMs int64) error {
	opts := playOptions(deviceID)
	opts.URIs = []spotify.URI{spotify.URI(TrackURI(extractTrackID(uri)))}

	err := c.retry(func() error {
		return c.client.PlayOpt(ctx, opts)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to play %s", uri)
	}

	if positionMs > 0 {
		return c.Seek(ctx, deviceID, positionMs)
	}
	return nil
}

// Pause pauses the device.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	err := c.retry(func() error {
		return c.client.PauseOpt(ctx, playOptions(deviceID))
	})
	return errors.Wrap(err, "failed to pause")
}

// Resume resumes the current item on the device.
func (c *Client) Resume(ctx context.Context, deviceID string) error {
	err := c.retry(func() error {
		return c.client.PlayOpt(ctx, playOptions(deviceID))
	})
	return errors.Wrap(err, "failed to resume")
}

// Seek moves the current item to positionMs.
func (c *Client) Seek(ctx context.Context, deviceID string, positionMs int64) error {
	err := c.retry(func() error {
		return c.client.SeekOpt(ctx, int(positionMs), playOptions(deviceID))
	})
	return errors.Wrap(err, "failed to seek")
}

// SetVolume sets the device volume in percent.
func (c *Client) SetVolume(ctx context.Context, deviceID string, percent int) error {
	percent = min(max(percent, 0), 100)
	err := c.retry(func() error {
		return c.client.VolumeOpt(ctx, percent, playOptions(deviceID))
	})
	return errors.Wrap(err, "failed to set volume")
}

// PlaybackState returns the current player state.
// ErrNoPlayback is returned when nothing is loaded on any device.
func (c *Client) PlaybackState(ctx context.Context) (*PlaybackState, error) {
	var state *spotify.PlayerState
	err := c.retry(func() error {
		s, err := c.client.PlayerState(ctx, spotify.Market(c.market))
		if err != nil {
			return err
		}
		state = s
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get player state")
	}

	if state == nil || state.Item == nil {
		return nil, ErrNoPlayback
	}

	return &PlaybackState{
		URI:        TrackURI(string(state.Item.ID)),
		Playing:    state.Playing,
		ProgressMs: int64(state.Progress),
		DurationMs: int64(state.Item.Duration),
		DeviceID:   string(state.Device.ID),
	}, nil
}

func playOptions(deviceID string) *spotify.PlayOptions {
	opts := &spotify.PlayOptions{}
	if deviceID != "" {
		id := spotify.ID(deviceID)
		opts.DeviceID = &id
	}
	return opts
}

// convertTrack converts a Spotify FullTrack to domain Track.
func convertTrack(t *spotify.FullTrack) track.Track {
	var artist string
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}

	return track.Track{
		Name:     t.Name,
		Artist:   artist,
		Album:    t.Album.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		URL:      TrackURI(string(t.ID)),
	}
}

// TrackURI returns the spotify:track URI for a track ID.
func TrackURI(trackID string) string {
	return "spotify:track:" + trackID
}

// IsTrackURI reports whether location refers to a Spotify track.
func IsTrackURI(location string) bool {
	return strings.HasPrefix(location, "spotify:track:") ||
		(strings.Contains(location, "open.spotify.com") && strings.Contains(location, "/track/"))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable reports whether err is a rate limit or a server error.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}
	// Errors from the token source or the transport carry only text
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles spotify:<kind>:ID, https://open.spotify.com[/intl-XX]/<kind>/ID
// and plain IDs.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	if id, ok := strings.CutPrefix(input, "spotify:"+kind+":"); ok {
		return id
	}

	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/"+kind+"/") {
		parts := strings.Split(input, "/"+kind+"/")
		// Remove query parameters and trailing slashes
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	// Assume it's already an ID
	return input
}
