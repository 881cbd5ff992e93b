package playlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19player/internal/domain/track"
)

// ErrUnsupportedFormat is returned for playlist files of unknown type.
var ErrUnsupportedFormat = errors.New("unsupported playlist format")

// Item is one line of an imported or exported playlist file.
type Item struct {
	URL      string
	Artist   string
	Title    string
	Duration time.Duration // -1 if unknown
}

// Items returns the playlist as exportable items.
func (p *Playlist) Items() []Item {
	items := make([]Item, 0, len(p.entries))
	for i := range p.entries {
		t := p.Track(i)
		items = append(items, Item{
			URL:      p.URL(i),
			Artist:   t.Artist,
			Title:    t.Name,
			Duration: t.Duration,
		})
	}
	return items
}

// LoadFile reads an M3U or PLS file. Relative locations are resolved
// against the directory of the file.
func LoadFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open playlist file")
	}
	defer f.Close()

	baseDir := filepath.Dir(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u", ".m3u8":
		return ParseM3U(f, baseDir)
	case ".pls":
		return ParsePLS(f, baseDir)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "file %s", path)
	}
}

// SaveFile writes items as M3U or PLS depending on the file extension.
func SaveFile(path string, items []Item) error {
	var write func(io.Writer, []Item) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u", ".m3u8":
		write = WriteM3U
	case ".pls":
		write = WritePLS
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "file %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create playlist file")
	}
	if err := write(f, items); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "failed to close playlist file")
}

// ParseM3U parses simple and extended M3U content.
func ParseM3U(r io.Reader, baseDir string) ([]Item, error) {
	var items []Item
	pending := Item{Duration: track.UnknownDuration}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			secs, title, _ := strings.Cut(strings.TrimPrefix(line, "#EXTINF:"), ",")
			if n, err := strconv.Atoi(strings.TrimSpace(secs)); err == nil && n > 0 {
				pending.Duration = time.Duration(n) * time.Second
			}
			if artist, name, ok := strings.Cut(title, " - "); ok {
				pending.Artist = strings.TrimSpace(artist)
				pending.Title = strings.TrimSpace(name)
			} else {
				pending.Title = strings.TrimSpace(title)
			}
		case strings.HasPrefix(line, "#"):
			continue
		default:
			pending.URL = resolveLocation(line, baseDir)
			items = append(items, pending)
			pending = Item{Duration: track.UnknownDuration}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read m3u")
	}
	return items, nil
}

// WriteM3U writes extended M3U.
func WriteM3U(w io.Writer, items []Item) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#EXTM3U")
	for _, it := range items {
		if title := it.displayTitle(); title != "" || it.Duration > 0 {
			secs := -1
			if it.Duration > 0 {
				secs = int(it.Duration / time.Second)
			}
			fmt.Fprintf(bw, "#EXTINF:%d,%s\n", secs, title)
		}
		fmt.Fprintln(bw, it.URL)
	}
	return errors.Wrap(bw.Flush(), "failed to write m3u")
}

// ParsePLS parses PLS (version 2) content.
func ParsePLS(r io.Reader, baseDir string) ([]Item, error) {
	byIndex := make(map[int]*Item)
	get := func(n int) *Item {
		it, ok := byIndex[n]
		if !ok {
			it = &Item{Duration: track.UnknownDuration}
			byIndex[n] = it
		}
		return it
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		lower := strings.ToLower(key)
		switch {
		case strings.HasPrefix(lower, "file"):
			if n, err := strconv.Atoi(lower[len("file"):]); err == nil {
				get(n).URL = resolveLocation(strings.TrimSpace(value), baseDir)
			}
		case strings.HasPrefix(lower, "title"):
			if n, err := strconv.Atoi(lower[len("title"):]); err == nil {
				it := get(n)
				if artist, name, ok := strings.Cut(value, " - "); ok {
					it.Artist = strings.TrimSpace(artist)
					it.Title = strings.TrimSpace(name)
				} else {
					it.Title = strings.TrimSpace(value)
				}
			}
		case strings.HasPrefix(lower, "length"):
			if n, err := strconv.Atoi(lower[len("length"):]); err == nil {
				if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && secs > 0 {
					get(n).Duration = time.Duration(secs) * time.Second
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read pls")
	}

	indexes := make([]int, 0, len(byIndex))
	for n, it := range byIndex {
		if it.URL != "" {
			indexes = append(indexes, n)
		}
	}
	sort.Ints(indexes)

	items := make([]Item, 0, len(indexes))
	for _, n := range indexes {
		items = append(items, *byIndex[n])
	}
	return items, nil
}

// WritePLS writes PLS version 2.
func WritePLS(w io.Writer, items []Item) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "[playlist]")
	for i, it := range items {
		n := i + 1
		fmt.Fprintf(bw, "File%d=%s\n", n, it.URL)
		if title := it.displayTitle(); title != "" {
			fmt.Fprintf(bw, "Title%d=%s\n", n, title)
		}
		secs := -1
		if it.Duration > 0 {
			secs = int(it.Duration / time.Second)
		}
		fmt.Fprintf(bw, "Length%d=%d\n", n, secs)
	}
	fmt.Fprintf(bw, "NumberOfEntries=%d\n", len(items))
	fmt.Fprintln(bw, "Version=2")
	return errors.Wrap(bw.Flush(), "failed to write pls")
}

func (it Item) displayTitle() string {
	switch {
	case it.Artist != "" && it.Title != "":
		return it.Artist + " - " + it.Title
	default:
		return it.Title
	}
}

// resolveLocation makes relative file locations absolute.
func resolveLocation(loc, baseDir string) string {
	if loc == "" || baseDir == "" {
		return loc
	}
	if strings.Contains(loc, "://") || strings.HasPrefix(loc, "spotify:") {
		return loc
	}
	loc = filepath.FromSlash(loc)
	if filepath.IsAbs(loc) || isWindowsDrive(loc) {
		return loc
	}
	return filepath.Join(baseDir, loc)
}
