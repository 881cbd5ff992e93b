package queue

import (
	"maps"
	"slices"
	"time"

	"github.com/osa030/19player/internal/domain/track"
)

const (
	maxHistory        = 100
	historyTrim       = maxHistory / 10
	boredomPruneEvery = 100
)

// IsBoring reports whether the artist/track pair or the artist alone was
// played within the configured boredom windows before at.
// Empty names never match.
func (q *Queue) IsBoring(artist, name string, at time.Time) bool {
	if q.flags.Has(FlagBoredomTracks) && (artist != "" || name != "") {
		key := track.Track{Artist: artist, Name: name}.BoredomKey()
		if played, ok := q.boredomTracks[key]; ok && withinMinutes(played, at, q.boredomTrackMinutes) {
			return true
		}
	}

	if q.flags.Has(FlagBoredomArtists) && artist != "" {
		if played, ok := q.boredomArtists[artist]; ok && withinMinutes(played, at, q.boredomArtistMinutes) {
			return true
		}
	}

	return false
}

func (q *Queue) isBoringPos(pos int, at time.Time) bool {
	if q.flags&(FlagBoredomTracks|FlagBoredomArtists) == 0 {
		return false
	}
	t := q.pl.Track(pos)
	return q.IsBoring(t.Artist, t.Name, at)
}

func withinMinutes(played, at time.Time, minutes int) bool {
	return at.Sub(played) <= time.Duration(minutes)*time.Minute
}

func (q *Queue) addToHistory(pos int) {
	e := q.pl.At(pos)

	n := len(q.history)
	if n == 0 || q.history[n-1] != e.ID() {
		q.history = append(q.history, e.ID())
	}
	if n > maxHistory {
		q.history = slices.Delete(q.history, 0, historyTrim)
	}

	now := q.now()
	t := q.pl.Track(pos)
	if t.Artist != "" || t.Name != "" {
		q.boredomTracks[t.BoredomKey()] = now
	}
	if t.Artist != "" {
		q.boredomArtists[t.Artist] = now
	}

	if len(q.boredomTracks)%boredomPruneEvery == 0 {
		q.pruneBoredom(now)
	}
}

func (q *Queue) pruneBoredom(now time.Time) {
	maps.DeleteFunc(q.boredomTracks, func(_ string, played time.Time) bool {
		return !withinMinutes(played, now, q.boredomTrackMinutes)
	})
	maps.DeleteFunc(q.boredomArtists, func(_ string, played time.Time) bool {
		return !withinMinutes(played, now, q.boredomArtistMinutes)
	})
}

// popFromHistory returns the entry played before the current one.
// The last history item is the current entry. Removed entries are dropped
// on the way; unless LookupOnly is given, the found entry and its
// successor are removed as SetCurrPos will add the entry again.
func (q *Queue) popFromHistory(flags NavFlags) int {
	for i := len(q.history) - 2; i >= 0; i-- {
		pos := q.pl.PosByID(q.history[i])
		if pos == -1 {
			q.history = slices.Delete(q.history, i, i+1)
			continue
		}
		if flags&LookupOnly == 0 {
			q.history = slices.Delete(q.history, i, i+2)
		}
		return pos
	}
	return -1
}

// RecentTracks returns up to n distinct tracks from the play history,
// most recent first. Entries no longer in the queue are skipped.
func (q *Queue) RecentTracks(n int) []track.Track {
	var tracks []track.Track
	seen := make(map[int64]bool)
	for i := len(q.history) - 1; i >= 0 && len(tracks) < n; i-- {
		id := q.history[i]
		if seen[id] {
			continue
		}
		seen[id] = true
		if pos := q.pl.PosByID(id); pos != -1 {
			tracks = append(tracks, q.pl.Track(pos))
		}
	}
	return tracks
}
