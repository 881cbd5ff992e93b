// Package resume saves the queue to a plain text file on shutdown and
// restores it on startup.
//
// The file is line based UTF-8:
//
//	resumeversion=2
//	played=1              applies to the next url
//	autoplay=1            applies to the next url
//	playing=<elapsedMs>   the next url is the current entry, -1 if not playing
//	url=<unverified url>
//	created=<UTC time>
//	ms=<time taken to write>
package resume

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/queue"
	"github.com/osa030/19player/internal/domain/playlist"
)

// Version is written to the header of every file.
const Version = 2

const createdLayout = "2006-01-02T15:04:05+00:00"

// Player is the part of the player used for saving and loading.
type Player interface {
	Queue() *queue.Queue
	IsPlaying() bool
	GetTime() (totalMs, elapsedMs, remainingMs int64)
	Play(seekMs int64)
	Enqueue(urls []string, before int, verified bool, flags playlist.EntryFlags) int
}

// Entry is one queue entry.
type Entry struct {
	URL      string
	Played   bool
	Autoplay bool
}

// State is the content of a resume file.
type State struct {
	Version int
	Entries []Entry
	Pos     int   // Index into Entries of the current entry, -1 if none
	Elapsed int64 // Elapsed time of the current entry, -1 if it was not playing
	Created time.Time
}

// Capture collects the entries to keep. Played entries are skipped unless
// loadPlayed is set; the current entry is always kept.
func Capture(p Player, loadPlayed bool) State {
	q := p.Queue()
	st := State{Version: Version, Pos: -1, Elapsed: -1}

	currPos := q.CurrPos()
	for i := 0; i < q.Count(); i++ {
		played := q.PlayCount(i) > 0
		if played && !loadPlayed && i != currPos {
			continue
		}

		if i == currPos {
			st.Pos = len(st.Entries)
			if p.IsPlaying() {
				_, elapsed, _ := p.GetTime()
				st.Elapsed = max(elapsed, 0)
			}
		}
		st.Entries = append(st.Entries, Entry{
			URL:      q.UnverifiedURL(i),
			Played:   played,
			Autoplay: q.EntryFlags(i).Has(playlist.FlagAutoplay),
		})
	}
	return st
}

// Encode writes the state followed by the footer.
func (s State) Encode(w io.Writer, now time.Time, took time.Duration) error {
	var b strings.Builder
	fmt.Fprintf(&b, "resumeversion=%d\n", Version)
	for i, e := range s.Entries {
		if e.Played {
			b.WriteString("played=1\n")
		}
		if e.Autoplay {
			b.WriteString("autoplay=1\n")
		}
		if i == s.Pos {
			fmt.Fprintf(&b, "playing=%d\n", s.Elapsed)
		}
		b.WriteString("url=" + e.URL + "\n")
	}
	fmt.Fprintf(&b, "created=%s\n", now.UTC().Format(createdLayout))
	fmt.Fprintf(&b, "ms=%d\n", took.Milliseconds())

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "failed to write resume data")
}

// Decode reads a resume file. Unknown keys are ignored.
func Decode(r io.Reader) (State, error) {
	st := State{Pos: -1, Elapsed: -1}
	var played, autoplay bool

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		key, value, _ := strings.Cut(line, "=")

		switch strings.TrimPrefix(key, "\ufeff") {
		case "resumeversion":
			st.Version, _ = strconv.Atoi(value)
		case "played":
			played = true
		case "autoplay":
			autoplay = true
		case "playing":
			st.Pos = len(st.Entries)
			elapsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				elapsed = -1
			}
			st.Elapsed = elapsed
		case "url":
			st.Entries = append(st.Entries, Entry{URL: value, Played: played, Autoplay: autoplay})
			played, autoplay = false, false
		case "created":
			if t, err := time.Parse(createdLayout, value); err == nil {
				st.Created = t
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return st, errors.Wrap(err, "failed to read resume data")
	}
	return st, nil
}

// Save writes the queue of p to path through a temporary file.
func Save(path string, p Player, loadPlayed bool) error {
	start := time.Now()
	st := Capture(p, loadPlayed)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".resume-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary resume file")
	}
	defer os.Remove(tmp.Name())

	if err := st.Encode(tmp, time.Now(), time.Since(start)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close resume file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "failed to replace resume file")
	}

	zlog.Info().Msgf("resume: saved: path=%s entries=%d", path, len(st.Entries))
	return nil
}

// Load appends the entries of the file at path to the queue of p. The
// current entry is restored and, with startPlayback, playback resumes at
// the recorded time. A missing file is not an error. It returns the number
// of entries loaded.
func Load(path string, p Player, startPlayback bool) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to open resume file")
	}
	defer f.Close()

	st, err := Decode(f)
	if err != nil {
		return 0, err
	}
	if len(st.Entries) == 0 {
		return 0, nil
	}
	zlog.Info().Msgf("resume: loading: path=%s entries=%d created=%s", path, len(st.Entries), st.Created.Format(time.RFC3339))

	Apply(st, p, startPlayback)
	return len(st.Entries), nil
}

// Apply enqueues the entries of st behind the existing ones.
func Apply(st State, p Player, startPlayback bool) {
	q := p.Queue()
	offset := q.Count()

	urls := make([]string, len(st.Entries))
	for i, e := range st.Entries {
		urls[i] = e.URL
	}
	p.Enqueue(urls, -1, false, 0)

	if st.Pos >= 0 && q.Valid(offset+st.Pos) {
		q.SetCurrPos(offset + st.Pos)
		if startPlayback && st.Elapsed >= 0 {
			p.Play(st.Elapsed)
		}
	}

	// enqueueing and playing mark entries as played; restore what was saved
	for i, e := range st.Entries {
		pos := offset + i
		if !q.Valid(pos) {
			break
		}
		if e.Played {
			q.SetPlayCount(pos, 1)
		} else if q.PlayCount(pos) > 0 {
			q.SetPlayCount(pos, 0)
		}
		if e.Autoplay {
			q.SetEntryFlag(pos, playlist.FlagAutoplay)
		}
	}
	q.EqualizeRepeatRound()
}
