// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Last.fm API endpoint.
const DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// tag results are stable enough to keep for the process lifetime
	cacheMu   sync.RWMutex
	trackTags map[string][]Tag
	tagTracks map[string][]TopTrack
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey  string
	BaseURL string // DefaultBaseURL if empty
}

// SimilarTrack represents a similar track from Last.fm.
type SimilarTrack struct {
	Name   string
	Artist string
}

// Tag represents a Last.fm tag.
type Tag struct {
	Name  string
	Count int // Tag count/frequency
}

// TopTrack represents a top track for a tag or the global chart.
type TopTrack struct {
	Name   string
	Artist string
}

type trackList struct {
	Track []struct {
		Name   string `json:"name"`
		Artist struct {
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"track"`
}

type similarResponse struct {
	SimilarTracks trackList `json:"similartracks"`
}

type topTagsResponse struct {
	TopTags struct {
		Tag []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"tag"`
	} `json:"toptags"`
}

type topTracksResponse struct {
	Tracks trackList `json:"tracks"`
}

// apiError is the error body returned by Last.fm.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		trackTags:  make(map[string][]Tag),
		tagTracks:  make(map[string][]TopTrack),
	}, nil
}

// GetSimilarTracks retrieves tracks similar to the given one.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]SimilarTrack, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}

	params := url.Values{}
	params.Set("method", "track.getSimilar")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("limit", strconv.Itoa(clampLimit(limit, 20)))
	params.Set("autocorrect", "1")

	var response similarResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}

	tracks := make([]SimilarTrack, 0, len(response.SimilarTracks.Track))
	for _, t := range response.SimilarTracks.Track {
		tracks = append(tracks, SimilarTrack{Name: t.Name, Artist: t.Artist.Name})
	}
	return tracks, nil
}

// GetTopTags retrieves top tags for a track. Results are cached.
// Reference: https://www.last.fm/api/show/track.getTopTags
func (c *Client) GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]Tag, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}
	limit = clampLimit(limit, 10)

	cacheKey := artistName + "\x00" + trackName
	c.cacheMu.RLock()
	tags, ok := c.trackTags[cacheKey]
	c.cacheMu.RUnlock()
	if ok {
		zlog.Debug().Msgf("lastfm: using cached tags: %s - %s", artistName, trackName)
		return tags, nil
	}

	params := url.Values{}
	params.Set("method", "track.getTopTags")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("autocorrect", "1")

	var response topTagsResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}

	tags = make([]Tag, 0, min(len(response.TopTags.Tag), limit))
	for _, t := range response.TopTags.Tag {
		if len(tags) >= limit {
			break
		}
		tags = append(tags, Tag{Name: t.Name, Count: t.Count})
	}

	c.cacheMu.Lock()
	c.trackTags[cacheKey] = tags
	c.cacheMu.Unlock()

	return tags, nil
}

// GetTopTracks retrieves top tracks for a tag. Results are cached.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) GetTopTracks(ctx context.Context, tagName string, limit int) ([]TopTrack, error) {
	if tagName == "" {
		return nil, errors.New("tag name is required")
	}

	c.cacheMu.RLock()
	tracks, ok := c.tagTracks[tagName]
	c.cacheMu.RUnlock()
	if ok {
		zlog.Debug().Msgf("lastfm: using cached top tracks: tag=%s", tagName)
		return tracks, nil
	}

	params := url.Values{}
	params.Set("method", "tag.getTopTracks")
	params.Set("tag", tagName)
	params.Set("limit", strconv.Itoa(clampLimit(limit, 20)))

	var response topTracksResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}
	tracks = toTopTracks(response.Tracks)

	c.cacheMu.Lock()
	c.tagTracks[tagName] = tracks
	c.cacheMu.Unlock()

	return tracks, nil
}

// GetChartTopTracks retrieves global top tracks from Last.fm charts.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) GetChartTopTracks(ctx context.Context, limit int) ([]TopTrack, error) {
	params := url.Values{}
	params.Set("method", "chart.getTopTracks")
	params.Set("limit", strconv.Itoa(clampLimit(limit, 20)))

	var response topTracksResponse
	if err := c.get(ctx, params, &response); err != nil {
		return nil, err
	}
	return toTopTracks(response.Tracks), nil
}

// get performs a GET request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Newf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("last.fm API status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func toTopTracks(list trackList) []TopTrack {
	tracks := make([]TopTrack, 0, len(list.Track))
	for _, t := range list.Track {
		tracks = append(tracks, TopTrack{Name: t.Name, Artist: t.Artist.Name})
	}
	return tracks
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, 100)
}
