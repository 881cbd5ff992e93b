package playlist

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/osa030/19player/internal/domain/track"
)

// EntryFlags is a bit set describing the state of a playlist entry.
type EntryFlags int

const (
	FlagErroneous EntryFlags = 0x01 // Stream could not be opened
	FlagAutoplay  EntryFlags = 0x02 // Enqueued by auto-play
	FlagPlayNext  EntryFlags = 0x04 // Enqueued with "play next"
	FlagMovedDown EntryFlags = 0x20 // Delayed by the boredom reorder
)

// Has reports whether all bits of f are set.
func (f EntryFlags) Has(flag EntryFlags) bool {
	return f&flag == flag
}

// lastID is shared by all playlists so ids are unique per process.
var lastID atomic.Int64

func nextID() int64 {
	return lastID.Add(1)
}

// Entry is a single item of a Playlist.
// Entries are owned by their playlist; outside code refers to them by ID.
type Entry struct {
	id        int64
	url       string // raw url, may carry tab-separated extra information until verified
	verified  bool
	playCount int64
	flags     EntryFlags

	info       *track.Track // lazily loaded metadata
	playtimeMs int64        // explicit playtime, 0 if not set
}

func newEntry(url string, verified bool, flags EntryFlags) *Entry {
	return &Entry{
		id:       nextID(),
		url:      url,
		verified: verified,
		flags:    flags,
	}
}

// ID returns the process-unique entry id.
func (e *Entry) ID() int64 { return e.id }

// UnverifiedURL returns the url as it was enqueued.
func (e *Entry) UnverifiedURL() string { return e.url }

// Verified reports whether the url was already verified.
func (e *Entry) Verified() bool { return e.verified }

// PlayCount returns the repeat round in which the entry was last played, 0 if never.
func (e *Entry) PlayCount() int64 { return e.playCount }

// SetPlayCount sets the play count.
func (e *Entry) SetPlayCount(n int64) { e.playCount = n }

// Flags returns the entry flags.
func (e *Entry) Flags() EntryFlags { return e.flags }

// SetFlags replaces the entry flags.
func (e *Entry) SetFlags(f EntryFlags) { e.flags = f }

// SetFlag adds the given flags.
func (e *Entry) SetFlag(f EntryFlags) { e.flags |= f }

// ClearFlag removes the given flags.
func (e *Entry) ClearFlag(f EntryFlags) { e.flags &^= f }

// invalidate forgets loaded metadata.
func (e *Entry) invalidate() {
	e.info = nil
}

// setPlaytime stores a known playtime; values <= 0 are ignored.
func (e *Entry) setPlaytime(ms int64) {
	if ms <= 0 {
		return
	}
	e.playtimeMs = ms
	if e.info != nil {
		e.info.Duration = time.Duration(ms) * time.Millisecond
	}
}

// stripExtra removes tab-separated extra information from a raw url.
func stripExtra(raw string) string {
	u, _, _ := strings.Cut(raw, "\t")
	return u
}
