package queue

import (
	"github.com/samber/lo"
)

// UnqueueByPos removes the entry at pos. It returns how many entries with
// the same url remain and what the player has to do about the current entry.
// If the queue becomes empty, the current position is -1.
func (q *Queue) UnqueueByPos(pos int) (rest int, replay Replay) {
	if !q.pl.Valid(pos) {
		return 0, ReplayNone
	}

	rest = q.pl.RemoveAt(pos)
	switch {
	case pos < q.pos:
		q.pos-- // same entry, no SetCurrPos
	case pos == q.pos:
		replay = ReplayCurrent
	}

	if q.pos >= q.pl.Count() {
		replay = ReplayLast
		q.pos = q.pl.Count() - 1
	}

	q.clearShuffleCache()
	return rest, replay
}

// UnqueueByURL removes all entries with url.
func (q *Queue) UnqueueByURL(url string) Replay {
	replay := ReplayNone
	for i := 0; i < q.pl.Count(); i++ {
		if q.pl.URL(i) != url {
			continue
		}
		rest, r := q.UnqueueByPos(i)
		replay = mergeReplay(replay, r)
		if rest == 0 {
			break
		}
		i--
	}
	return replay
}

// UnqueueByURLs removes all entries with any of the urls.
func (q *Queue) UnqueueByURLs(urls []string) Replay {
	replay := ReplayNone
	for _, url := range lo.Uniq(urls) {
		replay = mergeReplay(replay, q.UnqueueByURL(url))
	}
	return replay
}

// UnqueueByIDs removes the entries with the given ids.
func (q *Queue) UnqueueByIDs(ids []int64) Replay {
	set := lo.Associate(ids, func(id int64) (int64, bool) { return id, true })
	replay := ReplayNone
	for i := 0; i < q.pl.Count(); i++ {
		if !set[q.pl.At(i).ID()] {
			continue
		}
		_, r := q.UnqueueByPos(i)
		replay = mergeReplay(replay, r)
		i--
	}
	return replay
}

// UnqueueAll removes every entry and forgets the play history.
// The player must be stopped by the caller.
func (q *Queue) UnqueueAll() {
	q.pos = -1
	q.pl.Clear()
	q.history = nil
	q.playNextID = 0
	q.clearShuffleCache()
}

// UnqueuePlayed removes entries already played in this round except the
// current one. Without shuffle only entries before the current one are
// considered. It returns the number of removed entries.
func (q *Queue) UnqueuePlayed() int {
	last := q.pos
	if q.shuffle {
		last = q.pl.Count() - 1
	}

	ids := lo.FilterMap(lo.Range(last+1), func(i int, _ int) (int64, bool) {
		e := q.pl.At(i)
		return e.ID(), i != q.pos && e.PlayCount() >= q.round
	})
	if len(ids) > 0 {
		q.UnqueueByIDs(ids)
	}
	return len(ids)
}

// ReplayTarget resolves where to continue after the current entry was
// removed. It returns the position to go to, -1 if there is none, and
// whether the player has to stop afterwards. moveToTop allows returning to
// the first entry when the last one was removed without repeat.
func (q *Queue) ReplayTarget(replay Replay, moveToTop bool) (pos int, stop bool) {
	if replay == ReplayNone || q.pos == -1 {
		return -1, false
	}

	oldPos := q.pos
	if q.shuffle {
		q.pos = -1
		q.clearShuffleCache()
		newPos := q.GetNextPos(Init | RegardRepeat | LookupOnly)
		q.clearShuffleCache()
		if newPos == -1 {
			q.pos = oldPos
			return -1, true
		}
		q.pos = newPos
		return newPos, false
	}

	q.clearShuffleCache()
	if replay != ReplayLast {
		return q.pos, false
	}

	// the last entry was removed
	q.pos = 0
	if q.repeat == RepeatAll {
		return 0, false
	}
	if !moveToTop {
		q.pos = oldPos
	}
	return q.pos, true
}

func mergeReplay(prev, next Replay) Replay {
	if next != ReplayNone {
		return next
	}
	return prev
}
