package session

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/playback"
	"github.com/osa030/19player/internal/app/queue"
)

// host provides the player's environment. All calls arrive on the main loop.
type host struct {
	m *Manager
}

func (h *host) AutoPlay(ignoreTimeouts bool) bool {
	return h.m.autoplay.DoAutoPlayIfEnabled(ignoreTimeouts)
}

func (h *host) MoveToTopOnEoq() bool {
	return h.m.queue.Count() > 0 && h.m.autoplay.MoveToTopOnEoq()
}

func (h *host) PlaybackDone(stats playback.Stats) {
	if stats.RealMs > 0 {
		h.m.queue.UpdatePlaytime(stats.URL, stats.RealMs)
	}
	zlog.Debug().Msgf("session: playback done: url=%s started=%s bytes=%d gain=%.2f real_ms=%d",
		stats.URL, stats.StartedAt.Format("15:04:05"), stats.DecodedBytes, stats.Gain, stats.RealMs)
}

// handleEvent reacts to a player event and forwards it to subscribers.
func (m *Manager) handleEvent(ev playback.Event) {
	zlog.Debug().Msgf("session: player event: type=%s pos=%d url=%s state=%s", ev.Type, ev.Pos, ev.URL, ev.State)

	switch ev.Type {
	case playback.EventTrackOnAirChanged:
		if m.queue.QueueFlags().Has(queue.FlagRemovePlayed) {
			if n := m.player.UnqueuePlayed(); n > 0 {
				zlog.Info().Msgf("session: removed played entries: count=%d", n)
			}
		}
		if m.player.IsPlaying() {
			m.autoplay.Played()
		}
		m.saveResume()
	case playback.EventStoppedByEOQ:
		if m.player.IsStopped() && m.host.MoveToTopOnEoq() {
			m.player.GotoAbsPos(0)
		}
		zlog.Info().Msgf("session: end of queue reached: queue=%d", m.queue.Count())
	case playback.EventStateChanged:
		if m.player.IsPlaying() {
			m.haltedManually = false
		}
	}

	m.broadcast(notification.Type(ev.Type.String()))
}

// tick runs periodically on the main loop.
func (m *Manager) tick() {
	if m.autoplay.Tick(m.player.IsStopped(), m.haltedManually) && m.player.IsStopped() {
		if pos := m.queue.Count() - 1; pos >= 0 {
			m.player.GotoAbsPos(pos)
			m.player.Play(0)
		}
	}
	m.checkPlayTimeLimit()
}

// checkPlayTimeLimit moves on once the elapsed time exceeds the configured limit.
func (m *Manager) checkPlayTimeLimit() {
	limit := int64(m.cfg.Player.LimitPlayTimeSec) * 1000
	if limit <= 0 || !m.player.IsPlaying() || m.player.ElapsedTime() < limit {
		return
	}

	zlog.Info().Msgf("session: play time limit reached: url=%s limit_sec=%d", m.player.URLOnAir(), m.cfg.Player.LimitPlayTimeSec)
	if !m.player.GotoNextRegardAutoPlay(false) {
		m.player.Stop()
	}
}

func (m *Manager) broadcast(t notification.Type) {
	m.notification.Broadcast(&notification.Notification{
		Type:       t,
		State:      m.player.State().String(),
		QueueCount: m.queue.Count(),
		Track:      m.trackInfo(m.queue.CurrPos()),
	})
}
