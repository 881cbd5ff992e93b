package autoplay

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/domain/track"
)

// ErrNoCandidates is returned when no provider returned anything.
var ErrNoCandidates = errors.New("all providers failed to return candidates")

// Candidate is a track together with the provider that found it.
type Candidate struct {
	Track       track.Track
	DisplayName string
}

// NamedProvider is a provider with its configured display name.
type NamedProvider struct {
	Provider    Provider
	DisplayName string
}

// Chain asks its providers in order until enough candidates are found.
type Chain struct {
	providers []NamedProvider
}

// NewChain creates a provider chain.
func NewChain(providers []NamedProvider) *Chain {
	return &Chain{providers: providers}
}

// Candidates collects up to count candidates. Later providers only fill
// what earlier ones left open, and never return a url twice.
func (c *Chain) Candidates(ctx context.Context, count int, seeds []track.Track, exclude map[string]bool) ([]Candidate, error) {
	var all []Candidate
	seen := make(map[string]bool, len(exclude))
	for k, v := range exclude {
		seen[k] = v
	}

	for i, np := range c.providers {
		if len(all) >= count {
			break
		}
		zlog.Debug().Msgf("autoplay: trying provider: index=%d total=%d name=%s type=%s",
			i+1, len(c.providers), np.DisplayName, np.Provider.Name())

		tracks, err := np.Provider.Candidates(ctx, count-len(all), seeds, seen)
		if err != nil {
			zlog.Warn().Msgf("autoplay: provider failed, trying next: provider=%s error=%v", np.DisplayName, err)
			continue
		}

		added := 0
		for _, t := range tracks {
			if t.URL == "" || seen[t.URL] {
				continue
			}
			seen[t.URL] = true
			all = append(all, Candidate{Track: t, DisplayName: np.DisplayName})
			added++
		}
		zlog.Info().Msgf("autoplay: provider returned candidates: provider=%s count=%d total_so_far=%d",
			np.DisplayName, added, len(all))
	}

	if len(all) == 0 {
		return nil, ErrNoCandidates
	}
	return all, nil
}

// Len returns the number of providers.
func (c *Chain) Len() int { return len(c.providers) }

// Close releases providers holding resources.
func (c *Chain) Close() error {
	var errs error
	for _, np := range c.providers {
		if closer, ok := np.Provider.(io.Closer); ok {
			errs = errors.CombineErrors(errs, closer.Close())
		}
	}
	return errs
}
