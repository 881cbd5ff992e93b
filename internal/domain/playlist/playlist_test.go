package playlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/domain/track"
)

func newTestPlaylist(urls ...string) *Playlist {
	p := New()
	for _, u := range urls {
		p.Add(u, true, 0)
	}
	return p
}

func TestPlaylist_AddInsert(t *testing.T) {
	tests := []struct {
		name     string
		initial  []string
		url      string
		before   int
		wantPos  int
		expected []string
	}{
		{
			name:     "insert into empty",
			url:      "a",
			before:   0,
			wantPos:  0,
			expected: []string{"a"},
		},
		{
			name:     "insert at front",
			initial:  []string{"a", "b"},
			url:      "x",
			before:   0,
			wantPos:  0,
			expected: []string{"x", "a", "b"},
		},
		{
			name:     "insert in the middle",
			initial:  []string{"a", "b"},
			url:      "x",
			before:   1,
			wantPos:  1,
			expected: []string{"a", "x", "b"},
		},
		{
			name:     "negative position appends",
			initial:  []string{"a", "b"},
			url:      "x",
			before:   -1,
			wantPos:  2,
			expected: []string{"a", "b", "x"},
		},
		{
			name:     "position past the end appends",
			initial:  []string{"a"},
			url:      "x",
			before:   7,
			wantPos:  1,
			expected: []string{"a", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlaylist(tt.initial...)
			pos := p.Insert(tt.url, tt.before, true, 0)
			assert.Equal(t, tt.wantPos, pos)
			assert.Equal(t, tt.expected, p.URLs())
			assert.True(t, p.Contains(tt.url))
		})
	}
}

func TestPlaylist_IDsAreUnique(t *testing.T) {
	p := newTestPlaylist("a", "a", "b")
	q := newTestPlaylist("a")

	seen := map[int64]bool{}
	for _, pl := range []*Playlist{p, q} {
		for i := 0; i < pl.Count(); i++ {
			id := pl.At(i).ID()
			assert.False(t, seen[id], "id %d reused", id)
			seen[id] = true
		}
	}

	// ids survive removals and moves
	id := p.At(2).ID()
	p.RemoveAt(0)
	assert.Equal(t, 1, p.PosByID(id))
	p.MovePos(1, 0)
	assert.Equal(t, 0, p.PosByID(id))
	assert.Equal(t, -1, p.PosByID(-5))
}

func TestPlaylist_RemoveAt(t *testing.T) {
	p := newTestPlaylist("a", "b", "a", "c")

	assert.Equal(t, 2, p.CountOf("a"))
	assert.Equal(t, 1, p.RemoveAt(0))
	assert.Equal(t, []string{"b", "a", "c"}, p.URLs())
	assert.Equal(t, 0, p.RemoveAt(1))
	assert.False(t, p.Contains("a"))
	assert.Equal(t, []string{"b", "c"}, p.URLs())

	p.Clear()
	assert.Equal(t, 0, p.Count())
	assert.False(t, p.Contains("b"))
}

func TestPlaylist_MovePos(t *testing.T) {
	tests := []struct {
		name     string
		src, dst int
		expected []string
	}{
		{name: "down", src: 0, dst: 2, expected: []string{"b", "c", "a", "d"}},
		{name: "up", src: 3, dst: 1, expected: []string{"a", "d", "b", "c"}},
		{name: "same", src: 1, dst: 1, expected: []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPlaylist("a", "b", "c", "d")
			p.MovePos(tt.src, tt.dst)
			assert.Equal(t, tt.expected, p.URLs())
		})
	}
}

func TestPlaylist_LazyVerify(t *testing.T) {
	p := New()
	p.Add("file:///music/a.mp3\tsome extra", false, 0)

	assert.Equal(t, "file:///music/a.mp3\tsome extra", p.UnverifiedURL(0))
	assert.False(t, p.At(0).Verified())

	assert.Equal(t, "/music/a.mp3", p.URL(0))
	assert.True(t, p.At(0).Verified())
	assert.True(t, p.Contains("/music/a.mp3"))
	assert.Equal(t, 0, p.PosByURL("/music/a.mp3"))
}

func TestPlaylist_LazyMetadata(t *testing.T) {
	calls := 0
	loader := MetadataLoaderFunc(func(url string) track.Track {
		calls++
		return track.Track{Artist: "Air", Name: url, Duration: 3 * time.Minute}
	})
	p := New(WithLoader(loader))
	p.Add("x", true, 0)

	assert.Equal(t, 0, calls)
	assert.Equal(t, "Air", p.Track(0).Artist)
	assert.Equal(t, int64(180000), p.PlaytimeMs(0))
	assert.Equal(t, 1, calls)

	p.UpdatePlaytime("X", 1000)
	assert.Equal(t, int64(1000), p.PlaytimeMs(0))
	assert.Equal(t, 1, calls)

	p.OnURLChanged("x", "y")
	assert.Equal(t, "y", p.Track(0).Name)
	assert.Equal(t, int64(1000), p.PlaytimeMs(0))
	assert.Equal(t, 2, calls)
}

func TestPlaylist_UnknownPlaytime(t *testing.T) {
	p := newTestPlaylist("/music/Intro.mp3")
	assert.Equal(t, int64(-1), p.PlaytimeMs(0))
	assert.Equal(t, "Intro", p.Track(0).Name)
}

func TestPlaylist_OnURLChanged_KeepsState(t *testing.T) {
	p := newTestPlaylist("a", "b", "a")
	p.At(0).SetPlayCount(2)
	p.At(2).SetFlag(FlagAutoplay)

	p.OnURLChanged("a", "z")

	assert.Equal(t, []string{"z", "b", "z"}, p.URLs())
	assert.Equal(t, int64(2), p.At(0).PlayCount())
	assert.True(t, p.At(2).Flags().Has(FlagAutoplay))
	assert.Equal(t, 2, p.CountOf("z"))
	assert.False(t, p.Contains("a"))

	// unknown urls are ignored
	p.OnURLChanged("nope", "q")
	assert.False(t, p.Contains("q"))
}

func TestPlaylist_UnplayedCount(t *testing.T) {
	p := newTestPlaylist("a", "b", "c", "d", "e")
	p.At(1).SetPlayCount(1)
	p.At(3).SetPlayCount(1)

	assert.Equal(t, 3, p.UnplayedCount(0, 0))
	assert.Equal(t, 2, p.UnplayedCount(2, 0))
	assert.Equal(t, 1, p.UnplayedCount(0, 1))
	assert.Equal(t, 3, p.UnplayedCount(-1, 0))
}

func TestEntryFlags(t *testing.T) {
	p := newTestPlaylist("a")
	e := p.At(0)

	e.SetFlag(FlagAutoplay | FlagMovedDown)
	require.True(t, e.Flags().Has(FlagAutoplay))
	require.True(t, e.Flags().Has(FlagMovedDown))

	e.ClearFlag(FlagMovedDown)
	assert.False(t, e.Flags().Has(FlagMovedDown))
	assert.False(t, e.Flags().Has(FlagAutoplay|FlagPlayNext))

	e.SetFlags(FlagErroneous)
	assert.Equal(t, FlagErroneous, e.Flags())
}

func TestVerifyURL(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{raw: "/music/../music/a.mp3", expected: "/music/a.mp3"},
		{raw: "file:///music/b%20c.mp3", expected: "/music/b c.mp3"},
		{raw: "spotify:track:abc\tinfo", expected: "spotify:track:abc"},
		{raw: "http://radio.example/stream", expected: "http://radio.example/stream"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, VerifyURL(tt.raw))
		})
	}
}
