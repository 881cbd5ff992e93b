package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/domain/track"
	"github.com/osa030/19player/internal/infra/config"
)

type stubFilter struct {
	name   string
	result Result
	calls  int
}

func (f *stubFilter) Name() string { return f.name }
func (f *stubFilter) Description() string { return "stub" }
func (f *stubFilter) ReturnCodes() []string { return []string{f.result.Code} }
func (f *stubFilter) ValidateConfig(map[string]any) error { return nil }

func (f *stubFilter) Check(context.Context, track.Track, []track.Track) Result {
	f.calls++
	return f.result
}

func TestChain_Execute(t *testing.T) {
	first := &stubFilter{name: "first", result: Accept()}
	second := &stubFilter{name: "second", result: Reject("nope")}
	third := &stubFilter{name: "third", result: Accept()}

	c := NewChain()
	c.Add(first)
	c.Add(second)
	c.Add(third)

	result := c.Execute(context.Background(), track.Track{}, nil)
	assert.False(t, result.Accepted)
	assert.Equal(t, "nope", result.Code)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls, "stops at the first rejection")

	assert.True(t, NewChain().Execute(context.Background(), track.Track{}, nil).Accepted)
}

func TestNewChainFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		cfgs      map[string]config.FilterConfig
		wantNames []string
		wantErr   bool
	}{
		{
			name: "nothing configured",
		},
		{
			name: "enabled filters in name order",
			cfgs: map[string]config.FilterConfig{
				DurationLimitName:  {Enabled: true, Settings: map[string]any{"max_minutes": 8}},
				DuplicateTrackName: {Enabled: true},
			},
			wantNames: []string{DuplicateTrackName, DurationLimitName},
		},
		{
			name: "disabled filter skipped",
			cfgs: map[string]config.FilterConfig{
				DurationLimitName:  {Enabled: false},
				DuplicateTrackName: {Enabled: true},
			},
			wantNames: []string{DuplicateTrackName},
		},
		{
			name:    "unknown filter",
			cfgs:    map[string]config.FilterConfig{"market_filter": {Enabled: true}},
			wantErr: true,
		},
		{
			name: "invalid settings",
			cfgs: map[string]config.FilterConfig{
				DurationLimitName: {Enabled: true, Settings: map[string]any{"min_minutes": 9, "max_minutes": 3}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChainFromConfig(tt.cfgs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var names []string
			for _, f := range c.Filters() {
				names = append(names, f.Name())
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, len(tt.wantNames), c.Len())
		})
	}
}

func TestNewChainFromConfig_Checks(t *testing.T) {
	c, err := NewChainFromConfig(map[string]config.FilterConfig{
		DurationLimitName:  {Enabled: true, Settings: map[string]any{"min_minutes": 2, "max_minutes": 6}},
		DuplicateTrackName: {Enabled: true},
	})
	require.NoError(t, err)

	queued := []track.Track{{URL: "a", Name: "Yesterday", Artist: "The Beatles", Duration: 2 * time.Minute}}

	tests := []struct {
		name      string
		candidate track.Track
		wantCode  string
	}{
		{name: "accepted", candidate: track.Track{URL: "b", Name: "Help!", Artist: "The Beatles", Duration: 3 * time.Minute}},
		{name: "duplicate", candidate: track.Track{URL: "c", Name: "Yesterday - Remastered", Artist: "The Beatles", Duration: 3 * time.Minute}, wantCode: "duplicate_track"},
		{name: "too long", candidate: track.Track{URL: "d", Name: "Jam", Artist: "X", Duration: 12 * time.Minute}, wantCode: "duration_limit_exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Execute(context.Background(), tt.candidate, queued)
			assert.Equal(t, tt.wantCode == "", result.Accepted)
			assert.Equal(t, tt.wantCode, result.Code)
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{DuplicateTrackName, DurationLimitName}, Names())
}
