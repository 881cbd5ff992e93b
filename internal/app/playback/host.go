package playback

import "time"

// Stats describes one stream when it is taken off air.
type Stats struct {
	URL          string
	StartedAt    time.Time
	DecodedBytes int64
	Gain         float64 // Estimated gain to reach full scale, -1 if unknown
	RealMs       int64   // Length reported by the backend, -1 if unknown
}

// Host is what the player needs from its environment.
type Host interface {
	// AutoPlay may enqueue more entries when the queue ran out. It reports
	// whether something was enqueued.
	AutoPlay(ignoreTimeouts bool) bool
	// MoveToTopOnEoq reports whether the position returns to the first entry
	// once the queue ran out.
	MoveToTopOnEoq() bool
	// PlaybackDone receives the statistics of a stream taken off air.
	PlaybackDone(stats Stats)
}

// NopHost never plays automatically and discards statistics.
type NopHost struct{}

func (NopHost) AutoPlay(bool) bool { return false }

func (NopHost) MoveToTopOnEoq() bool { return false }

func (NopHost) PlaybackDone(Stats) {}
