package playback

import (
	zlog "github.com/rs/zerolog/log"
)

// EventType represents a player notification type.
type EventType int

const (
	EventTrackOnAirChanged EventType = iota // The current queue position changed
	EventStoppedByEOQ                       // Playback stopped because nothing follows
	EventStateChanged                       // Stopped, playing or paused
	EventVideoDetected                      // The stream on air carries video
	EventQueueChanged                       // Entries were added, moved or removed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackOnAirChanged:
		return "track_on_air_changed"
	case EventStoppedByEOQ:
		return "stopped_by_eoq"
	case EventStateChanged:
		return "state_changed"
	case EventVideoDetected:
		return "video_detected"
	case EventQueueChanged:
		return "queue_changed"
	default:
		return "unknown"
	}
}

// Event represents a player notification.
type Event struct {
	Type  EventType
	Pos   int    // Current queue position, -1 if none
	URL   string // URL at Pos
	State State  // Player state when the event was raised
}

// Events returns the event channel.
func (p *Player) Events() <-chan Event {
	return p.eventCh
}

// sendEvent raises an event describing the current position and state.
func (p *Player) sendEvent(t EventType) {
	pos := p.queue.CurrPos()
	ev := Event{Type: t, Pos: pos, URL: p.queue.URL(pos), State: p.State()}

	select {
	case p.eventCh <- ev:
	default:
		// Channel full, drop event
		zlog.Warn().Msgf("player: event dropped: type=%s", t)
	}
}
