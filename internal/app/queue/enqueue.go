package queue

import (
	"github.com/samber/lo"

	"github.com/osa030/19player/internal/domain/playlist"
)

// Enqueue adds urls before the given position; a position outside the queue
// appends. With FlagPlayNext the first url becomes the one-shot "play next"
// override. If nothing was selected before, the first playable position
// becomes current. It returns the position of the first added entry or -1.
func (q *Queue) Enqueue(urls []string, before int, verified bool, flags playlist.EntryFlags) int {
	if len(urls) == 0 {
		return -1
	}

	oldPos := q.pos
	playNext := flags.Has(playlist.FlagPlayNext)
	flags &^= playlist.FlagPlayNext

	appending := before < 0 || before >= q.pl.Count()
	first := before
	if appending {
		first = q.pl.Count()
	}

	for i, url := range urls {
		var pos int
		if appending {
			pos = q.pl.Add(url, verified, flags)
		} else {
			pos = q.pl.Insert(url, before+i, verified, flags)
			if q.pos >= pos {
				q.pos++
			}
		}
		if playNext && i == 0 {
			q.playNextID = q.pl.At(pos).ID()
		}
	}

	q.clearShuffleCache()
	if oldPos == -1 {
		if next := q.GetNextPos(Init); next != -1 {
			q.SetCurrPos(next)
		}
	}
	return first
}

// MoveByIDs moves the given entries by amount positions (negative moves up).
// The amount is clamped so no entry leaves the queue; the current entry
// keeps being current. It returns the applied amount.
func (q *Queue) MoveByIDs(ids []int64, amount int) int {
	if amount == 0 || len(ids) == 0 {
		return 0
	}

	positions := q.posByIDs(ids)
	if len(positions) == 0 {
		return 0
	}

	if amount < 0 {
		amount = max(amount, -positions[0])
	} else {
		amount = min(amount, q.pl.Count()-1-positions[len(positions)-1])
	}
	if amount == 0 {
		return 0
	}

	currID := q.IDByPos(q.pos)
	if amount < 0 {
		for _, pos := range positions {
			q.pl.MovePos(pos, pos+amount)
		}
	} else {
		for i := len(positions) - 1; i >= 0; i-- {
			q.pl.MovePos(positions[i], positions[i]+amount)
		}
	}

	if q.pos >= 0 {
		q.pos = q.pl.PosByID(currID)
	}
	q.clearShuffleCache()
	return amount
}

// GetURLsByIDs returns the urls of the given ids in queue order.
func (q *Queue) GetURLsByIDs(ids []int64) []string {
	return lo.Map(q.posByIDs(ids), func(pos int, _ int) string {
		return q.pl.URL(pos)
	})
}

// GetClosestPosByURL searches url from the current position to the end,
// then backwards from the end. It returns -1 if url is not enqueued.
func (q *Queue) GetClosestPosByURL(url string) int {
	if !q.pl.Contains(url) {
		return -1
	}
	count := q.pl.Count()
	for i := max(q.pos, 0); i < count; i++ {
		if q.pl.URL(i) == url {
			return i
		}
	}
	for i := count - 1; i >= 0; i-- {
		if q.pl.URL(i) == url {
			return i
		}
	}
	return -1
}

// GetAllPosByURL returns every position of url. With unplayedOnly, only
// unplayed entries and the current one are returned.
func (q *Queue) GetAllPosByURL(url string, unplayedOnly bool) []int {
	if !q.pl.Contains(url) {
		return nil
	}
	var positions []int
	for i := 0; i < q.pl.Count(); i++ {
		if q.pl.URL(i) != url {
			continue
		}
		if !unplayedOnly || q.pl.At(i).PlayCount() == 0 || i == q.pos {
			positions = append(positions, i)
		}
	}
	return positions
}

func (q *Queue) posByIDs(ids []int64) []int {
	set := lo.Associate(ids, func(id int64) (int64, bool) { return id, true })
	var positions []int
	for i := 0; i < q.pl.Count() && len(positions) < len(set); i++ {
		if set[q.pl.At(i).ID()] {
			positions = append(positions, i)
		}
	}
	return positions
}
