package queue

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Flags holds the queue options.
type Flags int

const (
	FlagBoredomTracks       Flags = 0x01 // Avoid replaying the same artist/track pair
	FlagBoredomArtists      Flags = 0x02 // Avoid replaying the same artist
	FlagRemovePlayed        Flags = 0x04 // Remove played entries from the queue
	FlagResume              Flags = 0x10 // Write and read the resume file
	FlagResumeLoadPlayed    Flags = 0x20 // Resume file also keeps played entries
	FlagResumeStartPlayback Flags = 0x40 // Start playback after resuming
)

// DefaultFlags are used by New.
const DefaultFlags Flags = 0

// Has reports whether all bits of flag are set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// NavFlags modify GetNextPos and GetPrevPos.
type NavFlags int

const (
	RegardRepeat NavFlags = 0x01 // Honor repeat single/all
	LookupOnly   NavFlags = 0x02 // Do not modify any state
	Init         NavFlags = 0x04 // Allow a result without a current position
)

// RepeatMode is the repeat setting of the queue.
type RepeatMode int

const (
	RepeatOff    RepeatMode = iota // Play the queue once
	RepeatAll                      // Start over at the end of the queue
	RepeatSingle                   // Repeat the current entry
)

// String returns the string representation of the repeat mode.
func (r RepeatMode) String() string {
	switch r {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatSingle:
		return "single"
	default:
		return "unknown"
	}
}

// ParseRepeatMode parses "off", "all" or "single".
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "single", "one":
		return RepeatSingle, nil
	default:
		return RepeatOff, errors.Newf("invalid repeat mode: %q", s)
	}
}

// Replay tells the player what to do after entries were removed.
type Replay int

const (
	ReplayNone    Replay = iota // The current entry is still in place
	ReplayCurrent               // The current entry was removed
	ReplayLast                  // The last entry was removed while being current
)

// String returns the string representation of the replay kind.
func (r Replay) String() string {
	switch r {
	case ReplayNone:
		return "none"
	case ReplayCurrent:
		return "current"
	case ReplayLast:
		return "last"
	default:
		return "unknown"
	}
}
