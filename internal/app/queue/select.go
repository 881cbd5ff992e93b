package queue

import (
	"slices"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/19player/internal/domain/playlist"
)

// GetNextPos returns the position to play after the current one or -1.
//
// Order of precedence: play-next override, repeat single (with RegardRepeat),
// shuffle, wrap-around for repeat all (with RegardRepeat), then the following
// position. Unless LookupOnly is given, the following position may be replaced
// by a later, non-boring entry which is moved up in the queue.
func (q *Queue) GetNextPos(flags NavFlags) int {
	count := q.pl.Count()
	newPos := -1

	if q.playNextID != 0 {
		newPos = q.pl.PosByID(q.playNextID)
		if newPos < 0 || q.pl.At(newPos).PlayCount() >= q.round {
			q.playNextID = 0
		}
	}

	switch {
	case count == 0 || (q.pos < 0 && flags&Init == 0):
		return -1

	case q.playNextID != 0:
		if flags&LookupOnly == 0 {
			q.playNextID = 0
		}
		return newPos

	case q.repeat == RepeatSingle && q.pos >= 0 && flags&RegardRepeat != 0:
		return q.pos

	case q.shuffle:
		return q.GetNextShufflePos(flags)

	case q.pos >= count-1:
		// boredom is not regarded when wrapping around
		if q.repeat == RepeatAll && flags&RegardRepeat != 0 {
			if flags&LookupOnly == 0 {
				q.incRound()
			}
			return 0
		}
		return -1
	}

	newPos = q.pos + 1
	if flags&LookupOnly != 0 {
		return newPos
	}

	now := q.now()
	better := newPos
	for better < count && q.isBoringPos(better, now) {
		better++
	}
	if better < count && better != newPos {
		for i := newPos; i < better; i++ {
			q.pl.At(i).SetFlag(playlist.FlagMovedDown)
		}
		zlog.Info().Msgf("queue: %s moved up due to avoid boredom settings", q.pl.URL(better))
		q.pl.MovePos(better, newPos)
		q.clearShuffleCache()
	}
	return newPos
}

// GetPrevPos returns the position to play before the current one or -1.
// In shuffle mode the play history is retraced.
func (q *Queue) GetPrevPos(flags NavFlags) int {
	count := q.pl.Count()

	switch {
	case count == 0 || q.pos < 0:
		return -1
	case q.repeat == RepeatSingle && flags&RegardRepeat != 0:
		return q.pos
	case q.shuffle:
		return q.popFromHistory(flags)
	case q.pos == 0:
		if q.repeat == RepeatAll && flags&RegardRepeat != 0 {
			return count - 1
		}
		return -1
	default:
		return q.pos - 1
	}
}

// GetNextShufflePos returns a random position not yet played in this round.
// The result is cached for the current position; LookupOnly calls keep the
// cache, others commit it (and advance the round if the pick required it).
func (q *Queue) GetNextShufflePos(flags NavFlags) int {
	if q.shuffleFor != q.pos {
		q.shuffleFor = q.pos
		q.shuffleIncRound = false
		q.shufflePos = q.pickShuffle(true, q.round)
		if q.shufflePos == -1 {
			if q.repeat == RepeatAll {
				q.shufflePos = q.pickShuffle(true, q.round+1)
				if q.shufflePos != -1 {
					q.shuffleIncRound = true
				} else {
					q.shufflePos = q.pickShuffle(false, q.round)
					if q.shufflePos == -1 && q.pl.Count() > 0 {
						q.shufflePos = q.pickShuffle(false, q.round+1)
						if q.shufflePos != -1 {
							q.shuffleIncRound = true
						} else {
							q.shufflePos = q.pos
						}
					}
				}
			} else {
				q.shufflePos = q.pickShuffle(false, q.round)
			}
		}
	}

	newPos := q.shufflePos
	if flags&LookupOnly == 0 {
		if q.shuffleIncRound {
			q.incRound()
		}
		q.clearShuffleCache()
	}
	return newPos
}

// pickShuffle draws from the entries with a play count below round,
// excluding the current one. Intensity limits the draw to the first
// part of the candidates.
func (q *Queue) pickShuffle(regardBoredom bool, round int64) int {
	candidates := lo.Filter(lo.Range(q.pl.Count()), func(i int, _ int) bool {
		return i != q.pos && q.pl.At(i).PlayCount() < round
	})

	now := q.now()
	for len(candidates) > 0 {
		window := len(candidates)
		if q.intensity >= 1 && q.intensity <= 100 {
			window = min(max(q.intensity*len(candidates)/100, 3), len(candidates))
		}

		i := q.rng.IntN(window)
		if !regardBoredom || !q.isBoringPos(candidates[i], now) {
			return candidates[i]
		}
		candidates = slices.Delete(candidates, i, i+1)
	}
	return -1
}

// SetCurrPos makes pos the current position. This is the only way to change
// the current entry: it marks the entry as played in the current round and
// records it in the history used by "previous" and boredom checks.
func (q *Queue) SetCurrPos(pos int) {
	if !q.pl.Valid(pos) {
		return
	}
	q.clearShuffleCache()
	q.pos = pos
	q.pl.At(pos).SetPlayCount(q.round)
	q.addToHistory(pos)
}
