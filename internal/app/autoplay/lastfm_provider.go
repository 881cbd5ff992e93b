package autoplay

import (
	"cmp"
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/19player/internal/domain/track"
	"github.com/osa030/19player/internal/infra/lastfm"
)

const (
	lastFmTagLimit      = 10
	lastFmTagTrackLimit = 20
	lastFmSimilarLimit  = 10
	lastFmChartLimit    = 50
)

// LastFmProviderConfig configures the Last.fm provider.
type LastFmProviderConfig struct {
	APIKey         string  `mapstructure:"api_key" validate:"required"`
	SeedTrackCount int     `mapstructure:"seed_track_count" default:"3" validate:"gte=1"`
	TagCount       int     `mapstructure:"tag_count" default:"5" validate:"gte=1"`
	TagWeight      float64 `mapstructure:"tag_weight" default:"0.4" validate:"gte=0,lte=1"`
	SimilarWeight  float64 `mapstructure:"similar_weight" default:"0.6" validate:"gte=0,lte=1"`
}

// LastFmProvider recommends tracks with Last.fm and resolves them on Spotify.
// Tag-based and similar-based candidates are combined with configurable weights.
type LastFmProvider struct {
	lastfm  LastFmClient
	spotify SpotifyClient
	config  LastFmProviderConfig

	searchMu    sync.RWMutex
	searchCache map[string]*track.Track
}

type scoredTrack struct {
	Track track.Track
	Score float64
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(spotify SpotifyClient, settings map[string]any) (*LastFmProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}

	var config LastFmProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	if math.Abs(config.TagWeight+config.SimilarWeight-1) > 1e-9 {
		return nil, errors.New("tag weight and similar weight must sum to 1.0")
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}
	return newLastFmProvider(client, spotify, config), nil
}

func newLastFmProvider(lfm LastFmClient, spotify SpotifyClient, config LastFmProviderConfig) *LastFmProvider {
	return &LastFmProvider{
		lastfm:      lfm,
		spotify:     spotify,
		config:      config,
		searchCache: make(map[string]*track.Track),
	}
}

// Candidates implements Provider.
func (p *LastFmProvider) Candidates(ctx context.Context, count int, seeds []track.Track, exclude map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}

	seeds = lo.Filter(seeds, func(t track.Track, _ int) bool {
		return t.Name != "" && t.Artist != ""
	})
	if len(seeds) > p.config.SeedTrackCount {
		seeds = seeds[:p.config.SeedTrackCount]
	}
	if len(seeds) == 0 {
		// nothing played yet
		return p.chartCandidates(ctx, count, exclude)
	}

	var tagBased, similarBased []track.Track
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tagBased = p.tagCandidates(ctx, seeds, exclude)
	}()
	go func() {
		defer wg.Done()
		similarBased = p.similarCandidates(ctx, seeds, exclude)
	}()
	wg.Wait()

	scored := p.scoreAndMerge(tagBased, similarBased)
	if len(scored) == 0 {
		return []track.Track{}, nil
	}
	slices.SortStableFunc(scored, func(a, b scoredTrack) int {
		return cmp.Compare(b.Score, a.Score)
	})

	// pick randomly from the best 2N for variety
	pool := scored[:min(count*2, len(scored))]
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	result := make([]track.Track, 0, count)
	for _, s := range pool[:min(count, len(pool))] {
		result = append(result, s.Track)
	}
	return result, nil
}

// Name implements Provider.
func (p *LastFmProvider) Name() string {
	return TypeLastFm
}

func (p *LastFmProvider) tagCandidates(ctx context.Context, seeds []track.Track, exclude map[string]bool) []track.Track {
	tagCounts := make(map[string]int)
	for _, seed := range seeds {
		tags, err := p.lastfm.GetTopTags(ctx, seed.Name, seed.Artist, lastFmTagLimit)
		if err != nil {
			zlog.Debug().Msgf("autoplay: last.fm tags failed: track=%s error=%v", seed.Name, err)
			continue
		}
		for _, tag := range tags {
			tagCounts[tag.Name] += tag.Count
		}
	}
	if len(tagCounts) == 0 {
		return nil
	}

	topTags := lo.Keys(tagCounts)
	slices.SortFunc(topTags, func(a, b string) int {
		return cmp.Or(cmp.Compare(tagCounts[b], tagCounts[a]), cmp.Compare(a, b))
	})
	topTags = topTags[:min(p.config.TagCount, len(topTags))]

	var candidates []track.Track
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, tag := range topTags {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tops, err := p.lastfm.GetTopTracks(ctx, tag, lastFmTagTrackLimit)
			if err != nil {
				return
			}
			for _, top := range tops {
				if t := p.searchOnSpotify(ctx, top.Name, top.Artist); t != nil && !exclude[t.URL] {
					mu.Lock()
					candidates = append(candidates, *t)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	return uniqByURL(candidates)
}

func (p *LastFmProvider) similarCandidates(ctx context.Context, seeds []track.Track, exclude map[string]bool) []track.Track {
	var candidates []track.Track
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, seed := range seeds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			similar, err := p.lastfm.GetSimilarTracks(ctx, seed.Name, seed.Artist, lastFmSimilarLimit)
			if err != nil {
				return
			}
			for _, sim := range similar {
				if t := p.searchOnSpotify(ctx, sim.Name, sim.Artist); t != nil && !exclude[t.URL] {
					mu.Lock()
					candidates = append(candidates, *t)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	return uniqByURL(candidates)
}

func (p *LastFmProvider) scoreAndMerge(tagBased, similarBased []track.Track) []scoredTrack {
	byURL := make(map[string]*scoredTrack)
	var order []string
	add := func(t track.Track, weight float64) {
		if s, ok := byURL[t.URL]; ok {
			s.Score += weight
			return
		}
		byURL[t.URL] = &scoredTrack{Track: t, Score: weight}
		order = append(order, t.URL)
	}
	for _, t := range tagBased {
		add(t, p.config.TagWeight)
	}
	for _, t := range similarBased {
		add(t, p.config.SimilarWeight)
	}

	return lo.Map(order, func(url string, _ int) scoredTrack { return *byURL[url] })
}

// searchOnSpotify resolves a track on Spotify. Misses are cached too.
func (p *LastFmProvider) searchOnSpotify(ctx context.Context, name, artist string) *track.Track {
	key := artist + "/" + name

	p.searchMu.RLock()
	cached, ok := p.searchCache[key]
	p.searchMu.RUnlock()
	if ok {
		return cached
	}

	t, err := p.spotify.SearchTrack(ctx, artist, name)
	if err != nil {
		t = nil
	}

	p.searchMu.Lock()
	p.searchCache[key] = t
	p.searchMu.Unlock()
	return t
}

func (p *LastFmProvider) chartCandidates(ctx context.Context, count int, exclude map[string]bool) ([]track.Track, error) {
	charts, err := p.lastfm.GetChartTopTracks(ctx, lastFmChartLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chart top tracks")
	}
	rand.Shuffle(len(charts), func(i, j int) { charts[i], charts[j] = charts[j], charts[i] })

	var candidates []track.Track
	for _, c := range charts {
		if len(candidates) >= count {
			break
		}
		if t := p.searchOnSpotify(ctx, c.Name, c.Artist); t != nil && !exclude[t.URL] {
			candidates = append(candidates, *t)
			candidates = uniqByURL(candidates)
		}
	}
	return candidates, nil
}

func uniqByURL(tracks []track.Track) []track.Track {
	return lo.UniqBy(tracks, func(t track.Track) string { return t.URL })
}
