package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/domain/track"
	"github.com/osa030/19player/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig creates the chain of enabled filters in name order.
// Unknown filter names and invalid settings are errors.
func NewChainFromConfig(cfgs map[string]config.FilterConfig) (*Chain, error) {
	for name := range cfgs {
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
	}

	c := NewChain()
	for _, name := range Names() {
		fc, ok := cfgs[name]
		if !ok || !fc.Enabled {
			continue
		}
		f := registry[name]()
		if err := f.ValidateConfig(fc.Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		c.Add(f)
		zlog.Info().Msgf("filter: enabled: name=%s", name)
	}
	return c, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the candidate.
func (c *Chain) Execute(ctx context.Context, candidate track.Track, queued []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, candidate, queued)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Len returns the number of filters.
func (c *Chain) Len() int {
	return len(c.filters)
}
