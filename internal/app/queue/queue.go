// Package queue decides what plays next: it owns the playlist, the current
// position, shuffle/repeat policy and the boredom history.
//
// A Queue is not safe for concurrent use. It is owned by the session main loop.
package queue

import (
	"math/rand/v2"
	"time"

	"github.com/osa030/19player/internal/domain/playlist"
	"github.com/osa030/19player/internal/domain/track"
)

// Defaults
const (
	DefaultShuffleIntensity     = 50
	DefaultBoredomTrackMinutes  = 30
	DefaultBoredomArtistMinutes = 20
)

// Rand is the random source used by shuffle.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Option configures a Queue.
type Option func(*Queue)

// WithRand sets the random source.
func WithRand(r Rand) Option {
	return func(q *Queue) { q.rng = r }
}

// WithClock sets the time source used for boredom checks.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithPlaylistOptions passes options to the underlying playlist.
func WithPlaylistOptions(opts ...playlist.Option) Option {
	return func(q *Queue) { q.plOpts = append(q.plOpts, opts...) }
}

// Info is a copy of the state of one queue entry.
type Info struct {
	ID        int64               `json:"id"`
	Pos       int                 `json:"pos"`
	URL       string              `json:"url"`
	Track     track.Track         `json:"track"`
	PlayCount int64               `json:"play_count"`
	Flags     playlist.EntryFlags `json:"flags"`
	Current   bool                `json:"current"`
}

// Queue is the playback queue.
type Queue struct {
	pl     *playlist.Playlist
	plOpts []playlist.Option

	pos int // -1 if nothing is selected

	// Policy
	shuffle              bool
	intensity            int
	repeat               RepeatMode
	round                int64
	flags                Flags
	boredomTrackMinutes  int
	boredomArtistMinutes int

	// History
	history        []int64
	boredomTracks  map[string]time.Time
	boredomArtists map[string]time.Time

	// Shuffle lookahead, valid while shuffleFor == pos
	shuffleFor      int
	shufflePos      int
	shuffleIncRound bool

	playNextID int64

	now func() time.Time
	rng Rand
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		pos:                  -1,
		intensity:            DefaultShuffleIntensity,
		repeat:               RepeatOff,
		round:                1,
		flags:                DefaultFlags,
		boredomTrackMinutes:  DefaultBoredomTrackMinutes,
		boredomArtistMinutes: DefaultBoredomArtistMinutes,
		boredomTracks:        make(map[string]time.Time),
		boredomArtists:       make(map[string]time.Time),
		now:                  time.Now,
		rng:                  globalRand{},
	}
	for _, opt := range opts {
		opt(q)
	}
	q.pl = playlist.New(q.plOpts...)
	q.clearShuffleCache()
	return q
}

// Count returns the number of entries.
func (q *Queue) Count() int { return q.pl.Count() }

// CurrPos returns the current position or -1.
func (q *Queue) CurrPos() int { return q.pos }

// Round returns the current repeat round.
func (q *Queue) Round() int64 { return q.round }

// Valid reports whether pos is a valid position.
func (q *Queue) Valid(pos int) bool { return q.pl.Valid(pos) }

// URL returns the verified url at pos; pos < 0 means the current position.
// An empty string is returned for invalid positions.
func (q *Queue) URL(pos int) string {
	if pos < 0 {
		pos = q.pos
	}
	if !q.pl.Valid(pos) {
		return ""
	}
	return q.pl.URL(pos)
}

// UnverifiedURL returns the url at pos as it was enqueued.
func (q *Queue) UnverifiedURL(pos int) string {
	if !q.pl.Valid(pos) {
		return ""
	}
	return q.pl.UnverifiedURL(pos)
}

// URLs returns all verified urls in queue order.
func (q *Queue) URLs() []string { return q.pl.URLs() }

// Info returns a copy of the entry at pos; pos < 0 means the current position.
func (q *Queue) Info(pos int) (Info, bool) {
	if pos < 0 {
		pos = q.pos
	}
	if !q.pl.Valid(pos) {
		return Info{Pos: -1, Track: track.Track{Duration: track.UnknownDuration}}, false
	}
	e := q.pl.At(pos)
	return Info{
		ID:        e.ID(),
		Pos:       pos,
		URL:       q.pl.URL(pos),
		Track:     q.pl.Track(pos),
		PlayCount: e.PlayCount(),
		Flags:     e.Flags(),
		Current:   pos == q.pos,
	}, true
}

// Snapshot returns a copy of all entries.
func (q *Queue) Snapshot() []Info {
	infos := make([]Info, 0, q.pl.Count())
	for i := 0; i < q.pl.Count(); i++ {
		info, _ := q.Info(i)
		infos = append(infos, info)
	}
	return infos
}

// PlaytimeMs returns the playtime at pos or -1 if unknown.
func (q *Queue) PlaytimeMs(pos int) int64 {
	if !q.pl.Valid(pos) {
		return -1
	}
	return q.pl.PlaytimeMs(pos)
}

// PlayCount returns the play count at pos.
func (q *Queue) PlayCount(pos int) int64 {
	if !q.pl.Valid(pos) {
		return 0
	}
	return q.pl.At(pos).PlayCount()
}

// SetPlayCount overrides the play count at pos.
func (q *Queue) SetPlayCount(pos int, n int64) {
	if q.pl.Valid(pos) {
		q.pl.At(pos).SetPlayCount(n)
		q.clearShuffleCache()
	}
}

// EntryFlags returns the entry flags at pos.
func (q *Queue) EntryFlags(pos int) playlist.EntryFlags {
	if !q.pl.Valid(pos) {
		return 0
	}
	return q.pl.At(pos).Flags()
}

// SetEntryFlag adds flags to the entry at pos.
func (q *Queue) SetEntryFlag(pos int, f playlist.EntryFlags) {
	if q.pl.Valid(pos) {
		q.pl.At(pos).SetFlag(f)
	}
}

// ClearEntryFlag removes flags from the entry at pos.
func (q *Queue) ClearEntryFlag(pos int, f playlist.EntryFlags) {
	if q.pl.Valid(pos) {
		q.pl.At(pos).ClearFlag(f)
	}
}

// IDByPos returns the entry id at pos or 0.
func (q *Queue) IDByPos(pos int) int64 {
	if !q.pl.Valid(pos) {
		return 0
	}
	return q.pl.At(pos).ID()
}

// GetPosByID returns the position of the entry id or -1.
func (q *Queue) GetPosByID(id int64) int { return q.pl.PosByID(id) }

// IsEnqueued reports whether url is in the queue.
func (q *Queue) IsEnqueued(url string) bool { return q.pl.Contains(url) }

// GetUnplayedCount counts unplayed entries from the current position on,
// stopping at maxCnt if maxCnt > 0.
func (q *Queue) GetUnplayedCount(maxCnt int) int {
	return q.pl.UnplayedCount(q.pos, maxCnt)
}

// SetCurrErroneous flags the current entry as erroneous.
func (q *Queue) SetCurrErroneous() {
	q.SetEntryFlag(q.pos, playlist.FlagErroneous)
}

// ResetPlayCounts marks every entry as unplayed and starts a new round.
func (q *Queue) ResetPlayCounts() {
	for i := 0; i < q.pl.Count(); i++ {
		q.pl.At(i).SetPlayCount(0)
	}
	q.round = 1
	q.clearShuffleCache()
}

// OnURLChanged renames entries; play counts and flags are kept.
func (q *Queue) OnURLChanged(oldURL, newURL string) {
	q.pl.OnURLChanged(oldURL, newURL)
}

// UpdatePlaytime stores a known playtime for url.
func (q *Queue) UpdatePlaytime(url string, ms int64) {
	q.pl.UpdatePlaytime(url, ms)
}

// Items returns the queue as exportable playlist items.
func (q *Queue) Items() []playlist.Item { return q.pl.Items() }

// Shuffle reports whether shuffle is enabled.
func (q *Queue) Shuffle() bool { return q.shuffle }

// SetShuffle enables or disables shuffle.
func (q *Queue) SetShuffle(on bool) {
	if q.shuffle != on {
		q.shuffle = on
		q.clearShuffleCache()
	}
}

// ToggleShuffle flips the shuffle state.
func (q *Queue) ToggleShuffle() { q.SetShuffle(!q.shuffle) }

// ShuffleIntensity returns the shuffle intensity in percent.
func (q *Queue) ShuffleIntensity() int { return q.intensity }

// SetShuffleIntensity sets the intensity, clamped to 0..100.
func (q *Queue) SetShuffleIntensity(v int) {
	q.intensity = min(max(v, 0), 100)
	q.clearShuffleCache()
}

// Repeat returns the repeat mode.
func (q *Queue) Repeat() RepeatMode { return q.repeat }

// SetRepeat sets the repeat mode. Unknown values turn repeat off.
func (q *Queue) SetRepeat(r RepeatMode) {
	if r < RepeatOff || r > RepeatSingle {
		r = RepeatOff
	}
	q.repeat = r
	q.clearShuffleCache()
}

// ToggleRepeat cycles off, all, single.
func (q *Queue) ToggleRepeat() {
	switch q.repeat {
	case RepeatOff:
		q.SetRepeat(RepeatAll)
	case RepeatAll:
		q.SetRepeat(RepeatSingle)
	default:
		q.SetRepeat(RepeatOff)
	}
}

// QueueFlags returns the queue options.
func (q *Queue) QueueFlags() Flags { return q.flags }

// SetQueueFlags replaces the queue options.
func (q *Queue) SetQueueFlags(f Flags) {
	q.flags = f
	q.clearShuffleCache()
}

// BoredomMinutes returns the track and artist boredom windows.
func (q *Queue) BoredomMinutes() (trackMinutes, artistMinutes int) {
	return q.boredomTrackMinutes, q.boredomArtistMinutes
}

// SetBoredomMinutes sets the boredom windows; negative values count as 0.
func (q *Queue) SetBoredomMinutes(trackMinutes, artistMinutes int) {
	q.boredomTrackMinutes = max(trackMinutes, 0)
	q.boredomArtistMinutes = max(artistMinutes, 0)
	q.clearShuffleCache()
}

// EqualizeRepeatRound sets the round to the highest play count, at least 1.
func (q *Queue) EqualizeRepeatRound() {
	round := int64(1)
	for i := 0; i < q.pl.Count(); i++ {
		round = max(round, q.pl.At(i).PlayCount())
	}
	q.round = round
	q.clearShuffleCache()
}

func (q *Queue) incRound() {
	q.round++
	q.clearShuffleCache()
}

func (q *Queue) clearShuffleCache() {
	q.shuffleFor = -2
	q.shufflePos = -1
	q.shuffleIncRound = false
}
