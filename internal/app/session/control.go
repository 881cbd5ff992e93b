package session

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/19player/internal/domain/playlist"
)

// Play starts playback of the current entry. An empty queue asks auto-play
// for an entry first.
func (m *Manager) Play(ctx context.Context) error {
	return m.Do(ctx, m.play)
}

func (m *Manager) play() {
	if m.queue.Count() == 0 {
		m.autoplay.DoAutoPlayIfEnabled(true)
	}
	if m.queue.CurrPos() == -1 && m.queue.Count() > 0 {
		m.player.GotoAbsPos(0)
	}
	m.haltedManually = false
	m.player.Play(0)
}

// Pause pauses playback.
func (m *Manager) Pause(ctx context.Context) error {
	return m.Do(ctx, m.player.Pause)
}

// PlayOrPause toggles between playing and paused.
func (m *Manager) PlayOrPause(ctx context.Context) error {
	return m.Do(ctx, func() {
		if m.player.IsPlaying() {
			m.player.Pause()
			return
		}
		m.play()
	})
}

// Stop stops playback. Auto-play does not restart until playback is
// started again.
func (m *Manager) Stop(ctx context.Context) error {
	return m.Do(ctx, func() {
		m.haltedManually = true
		m.player.Stop()
	})
}

// Next moves to the next entry, asking auto-play if the queue ran out.
func (m *Manager) Next(ctx context.Context) error {
	return m.Do(ctx, func() {
		m.player.GotoNextRegardAutoPlay(true)
	})
}

// Prev moves to the previous entry.
func (m *Manager) Prev(ctx context.Context) error {
	return m.Do(ctx, m.player.GotoPrev)
}

// Goto makes pos the current entry; playback continues there if running.
func (m *Manager) Goto(ctx context.Context, pos int) error {
	var err error
	if doErr := m.Do(ctx, func() {
		if !m.queue.Valid(pos) {
			err = errors.Wrapf(ErrInvalidPosition, "pos %d", pos)
			return
		}
		m.player.GotoAbsPos(pos)
	}); doErr != nil {
		return doErr
	}
	return err
}

// Seek moves within the track on air.
func (m *Manager) Seek(ctx context.Context, ms int64, relative bool) error {
	return m.Do(ctx, func() {
		if relative {
			m.player.SeekRel(ms)
		} else {
			m.player.SeekAbs(ms)
		}
	})
}

// EnqueueRequest describes urls to add.
type EnqueueRequest struct {
	URLs     []string `json:"urls"`
	Pos      int      `json:"pos"`       // insert before; -1 appends
	PlayNext bool     `json:"play_next"` // play the first url next
	Play     bool     `json:"play"`      // start playing the first url now
}

// Enqueue adds urls and returns the position of the first one.
func (m *Manager) Enqueue(ctx context.Context, req EnqueueRequest) (int, error) {
	urls := lo.Compact(lo.Map(req.URLs, func(u string, _ int) string { return strings.TrimSpace(u) }))
	if len(urls) == 0 {
		return -1, errors.Wrap(ErrInvalidArgument, "no urls")
	}

	var flags playlist.EntryFlags
	if req.PlayNext {
		flags |= playlist.FlagPlayNext
	}

	pos := -1
	err := m.Do(ctx, func() {
		pos = m.player.Enqueue(urls, req.Pos, false, flags)
		if req.Play && pos != -1 {
			m.haltedManually = false
			m.player.GotoAbsPos(pos)
			if !m.player.IsPlaying() {
				m.player.Play(0)
			}
		}
	})
	return pos, err
}

// UnqueueRequest selects entries to remove. Selectors are applied in the
// order All, Played, IDs, URLs.
type UnqueueRequest struct {
	IDs    []int64  `json:"ids"`
	URLs   []string `json:"urls"`
	All    bool     `json:"all"`
	Played bool     `json:"played"`
}

// Unqueue removes entries and returns how many were removed.
func (m *Manager) Unqueue(ctx context.Context, req UnqueueRequest) (int, error) {
	if !req.All && !req.Played && len(req.IDs) == 0 && len(req.URLs) == 0 {
		return 0, errors.Wrap(ErrInvalidArgument, "nothing selected")
	}

	removed := 0
	err := m.Do(ctx, func() {
		before := m.queue.Count()
		switch {
		case req.All:
			m.player.UnqueueAll()
		case req.Played:
			m.player.UnqueuePlayed()
		default:
			if len(req.IDs) > 0 {
				m.player.UnqueueByIDs(req.IDs)
			}
			if len(req.URLs) > 0 {
				m.player.UnqueueByURLs(req.URLs)
			}
		}
		removed = before - m.queue.Count()
	})
	return removed, err
}

// Move moves entries by amount positions and returns the applied amount.
func (m *Manager) Move(ctx context.Context, ids []int64, amount int) (int, error) {
	if len(ids) == 0 {
		return 0, errors.Wrap(ErrInvalidArgument, "no ids")
	}
	moved := 0
	err := m.Do(ctx, func() {
		moved = m.player.MoveByIDs(ids, amount)
	})
	return moved, err
}
