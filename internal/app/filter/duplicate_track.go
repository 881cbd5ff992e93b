package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/19player/internal/domain/track"
)

// DuplicateTrackName is the config name of DuplicateTrackFilter.
const DuplicateTrackName = "duplicate_track_filter"

// DuplicateTrackFilter checks for duplicate tracks in the queue.
// Detects:
// - Exact url matches
// - Remasters (normalized track name + same artist)
// Excludes:
// - Cover songs (same track name but different artist)
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return DuplicateTrackName
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Skips candidates already queued, remasters included; covers by other artists pass"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the candidate is a duplicate of a queued track.
func (f *DuplicateTrackFilter) Check(_ context.Context, candidate track.Track, queued []track.Track) Result {
	for _, q := range queued {
		if q.URL != "" && q.URL == candidate.URL {
			return Reject("duplicate_track")
		}
		if isRemaster(q, candidate) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

// isRemaster checks if two tracks are the same song (remaster/different version).
func isRemaster(t1, t2 track.Track) bool {
	if t1.Name == "" || t2.Name == "" {
		return false
	}
	if normalizeTrackName(t1.Name) != normalizeTrackName(t2.Name) {
		return false
	}
	// Same normalized name by a different artist is a cover
	return isSameArtist(t1, t2)
}

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*-\s*live\b.*$`),         // "- Live at ..."
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

// isSameArtist compares the lead artists case-insensitively.
func isSameArtist(t1, t2 track.Track) bool {
	if t1.Artist == "" || t2.Artist == "" {
		return false
	}
	return strings.EqualFold(t1.Artist, t2.Artist)
}

func init() {
	Register(DuplicateTrackName, func() Filter {
		return NewDuplicateTrackFilter()
	})
}
