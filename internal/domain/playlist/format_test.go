package playlist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/domain/track"
)

func TestParseM3U(t *testing.T) {
	content := `#EXTM3U
#EXTINF:215,Air - Sexy Boy
Air - Sexy Boy.mp3

# a comment
/abs/Intro.flac
#EXTINF:-1,Radio
http://radio.example/stream
`
	items, err := ParseM3U(strings.NewReader(content), "/music")
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, Item{
		URL:      filepath.Join("/music", "Air - Sexy Boy.mp3"),
		Artist:   "Air",
		Title:    "Sexy Boy",
		Duration: 215 * time.Second,
	}, items[0])
	assert.Equal(t, "/abs/Intro.flac", items[1].URL)
	assert.Equal(t, track.UnknownDuration, items[1].Duration)
	assert.Equal(t, "http://radio.example/stream", items[2].URL)
	assert.Equal(t, "Radio", items[2].Title)
	assert.Equal(t, track.UnknownDuration, items[2].Duration)
}

func TestWriteM3U(t *testing.T) {
	var buf bytes.Buffer
	err := WriteM3U(&buf, []Item{
		{URL: "/m/a.mp3", Artist: "Air", Title: "Sexy Boy", Duration: 215 * time.Second},
		{URL: "/m/b.mp3", Duration: track.UnknownDuration},
	})
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n#EXTINF:215,Air - Sexy Boy\n/m/a.mp3\n/m/b.mp3\n", buf.String())
}

func TestParsePLS(t *testing.T) {
	content := `[playlist]
File2=b.mp3
Title2=Only Title
File1=/abs/a.mp3
Title1=Air - Sexy Boy
Length1=215
Length2=-1
Title3=dangling title without file
NumberOfEntries=2
Version=2
`
	items, err := ParsePLS(strings.NewReader(content), "/music")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "/abs/a.mp3", items[0].URL)
	assert.Equal(t, "Air", items[0].Artist)
	assert.Equal(t, 215*time.Second, items[0].Duration)
	assert.Equal(t, filepath.Join("/music", "b.mp3"), items[1].URL)
	assert.Equal(t, "Only Title", items[1].Title)
	assert.Equal(t, track.UnknownDuration, items[1].Duration)
}

func TestWritePLS(t *testing.T) {
	var buf bytes.Buffer
	err := WritePLS(&buf, []Item{
		{URL: "/m/a.mp3", Title: "A", Duration: 61 * time.Second},
	})
	require.NoError(t, err)
	assert.Equal(t, "[playlist]\nFile1=/m/a.mp3\nTitle1=A\nLength1=61\nNumberOfEntries=1\nVersion=2\n", buf.String())
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	items := []Item{
		{URL: "/m/a.mp3", Artist: "Air", Title: "Sexy Boy", Duration: 215 * time.Second},
		{URL: "spotify:track:abc", Title: "Remote", Duration: track.UnknownDuration},
	}

	for _, name := range []string{"list.m3u", "list.pls"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveFile(path, items))

			loaded, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, items, loaded)
		})
	}

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "list.txt")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.ErrorIs(t, SaveFile(path, items), ErrUnsupportedFormat)
	})
}

func TestPlaylist_Items(t *testing.T) {
	p := New()
	p.Add("/m/Air - Sexy Boy.mp3", true, 0)
	p.UpdatePlaytime("/m/Air - Sexy Boy.mp3", 215000)

	items := p.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Air", items[0].Artist)
	assert.Equal(t, "Sexy Boy", items[0].Title)
	assert.Equal(t, 215*time.Second, items[0].Duration)
}
