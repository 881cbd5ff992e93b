package session

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/queue"
	"github.com/osa030/19player/internal/domain/playlist"
)

// Status is a snapshot of the player.
type Status struct {
	SessionID          string                  `json:"session_id"`
	Phase              string                  `json:"phase"`
	StartedAt          time.Time               `json:"started_at"`
	State              string                  `json:"state"`
	Track              *notification.TrackInfo `json:"track,omitempty"`
	TotalMs            int64                   `json:"total_ms"`
	ElapsedMs          int64                   `json:"elapsed_ms"`
	RemainingMs        int64                   `json:"remaining_ms"`
	QueueCount         int                     `json:"queue_count"`
	UnplayedCount      int                     `json:"unplayed_count"`
	EnqueueTimeMs      int64                   `json:"enqueue_time_ms"`
	HasPrev            bool                    `json:"has_prev"`
	HasNext            bool                    `json:"has_next"`
	AutoplayOnAir      bool                    `json:"autoplay_on_air"`
	AutoplayTracksLeft int                     `json:"autoplay_tracks_left"`
	Subscribers        int                     `json:"subscribers"`
}

// Status returns a snapshot of the player.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	var s Status
	err := m.Do(ctx, func() {
		total, elapsed, remaining := m.player.GetTime()
		s = Status{
			SessionID:          m.id,
			Phase:              m.Phase().String(),
			StartedAt:          m.startedAt,
			State:              m.player.State().String(),
			Track:              m.trackInfo(m.queue.CurrPos()),
			TotalMs:            total,
			ElapsedMs:          elapsed,
			RemainingMs:        remaining,
			QueueCount:         m.queue.Count(),
			UnplayedCount:      m.queue.GetUnplayedCount(-1),
			EnqueueTimeMs:      m.player.GetEnqueueTime(),
			HasPrev:            m.player.HasPrev(),
			HasNext:            m.player.HasNext(),
			AutoplayOnAir:      m.player.IsAutoPlayOnAir(),
			AutoplayTracksLeft: m.autoplay.TracksLeft(),
			Subscribers:        m.notification.SubscriberCount(),
		}
	})
	return s, err
}

// Queue returns all entries in queue order.
func (m *Manager) Queue(ctx context.Context) ([]notification.TrackInfo, error) {
	var entries []notification.TrackInfo
	err := m.Do(ctx, func() {
		entries = lo.Map(m.queue.Snapshot(), func(info queue.Info, _ int) notification.TrackInfo {
			return toTrackInfo(info)
		})
	})
	return entries, err
}

// trackInfo returns the entry at pos or nil if pos is invalid.
func (m *Manager) trackInfo(pos int) *notification.TrackInfo {
	if !m.queue.Valid(pos) {
		return nil
	}
	info, _ := m.queue.Info(pos)
	ti := toTrackInfo(info)
	return &ti
}

func toTrackInfo(info queue.Info) notification.TrackInfo {
	durationMs := int64(-1)
	if info.Track.HasDuration() {
		durationMs = info.Track.Duration.Milliseconds()
	}
	return notification.TrackInfo{
		ID:         info.ID,
		Pos:        info.Pos,
		URL:        info.URL,
		Name:       info.Track.Name,
		Artist:     info.Track.Artist,
		Album:      info.Track.Album,
		DurationMs: durationMs,
		PlayCount:  info.PlayCount,
		Autoplay:   info.Flags.Has(playlist.FlagAutoplay),
		Erroneous:  info.Flags.Has(playlist.FlagErroneous),
	}
}
