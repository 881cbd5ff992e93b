package playback

import (
	"github.com/osa030/19player/internal/app/queue"
	"github.com/osa030/19player/internal/domain/playlist"
)

// Enqueue adds urls before pos (-1 appends) and returns the position of the
// first added entry.
func (p *Player) Enqueue(urls []string, before int, verified bool, flags playlist.EntryFlags) int {
	pos := p.queue.Enqueue(urls, before, verified, flags)
	if len(urls) > 0 {
		p.sendEvent(EventQueueChanged)
	}
	return pos
}

// UnqueueByPos removes the entry at pos.
func (p *Player) UnqueueByPos(pos int) {
	if !p.queue.Valid(pos) {
		return
	}
	_, replay := p.queue.UnqueueByPos(pos)
	p.replay(replay)
}

// UnqueueByURLs removes every entry with one of the urls.
func (p *Player) UnqueueByURLs(urls []string) {
	p.replay(p.queue.UnqueueByURLs(urls))
}

// UnqueueByIDs removes the entries with the given ids.
func (p *Player) UnqueueByIDs(ids []int64) {
	p.replay(p.queue.UnqueueByIDs(ids))
}

// UnqueueAll stops playback and empties the queue.
func (p *Player) UnqueueAll() {
	p.Stop()
	p.queue.UnqueueAll()
	p.sendEvent(EventQueueChanged)
}

// UnqueuePlayed removes entries played in this round and returns their number.
func (p *Player) UnqueuePlayed() int {
	n := p.queue.UnqueuePlayed()
	if n > 0 {
		p.sendEvent(EventQueueChanged)
	}
	return n
}

// MoveByIDs moves entries up (negative) or down and returns the applied amount.
func (p *Player) MoveByIDs(ids []int64, amount int) int {
	moved := p.queue.MoveByIDs(ids, amount)
	if moved != 0 {
		p.sendEvent(EventQueueChanged)
	}
	return moved
}

// replay continues after removed entries. If the current entry was removed,
// playback goes on with the entry that took its place.
func (p *Player) replay(replay queue.Replay) {
	p.sendEvent(EventQueueChanged)
	if replay == queue.ReplayNone {
		return
	}

	if p.queue.CurrPos() == -1 {
		p.Stop()
		return
	}

	pos, stop := p.queue.ReplayTarget(replay, p.host.MoveToTopOnEoq())
	if pos != -1 {
		p.GotoAbsPos(pos)
	}
	if stop {
		p.Stop()
	}
}
