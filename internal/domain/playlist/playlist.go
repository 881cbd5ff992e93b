// Package playlist provides the ordered playlist store used by the queue.
package playlist

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/osa030/19player/internal/domain/track"
)

// MetadataLoader loads metadata for a url.
// Implementations must not fail; unknown fields stay empty.
type MetadataLoader interface {
	Load(url string) track.Track
}

// MetadataLoaderFunc adapts a function to MetadataLoader.
type MetadataLoaderFunc func(url string) track.Track

// Load implements MetadataLoader.
func (f MetadataLoaderFunc) Load(url string) track.Track { return f(url) }

// Option configures a Playlist.
type Option func(*Playlist)

// WithLoader sets the metadata loader.
func WithLoader(l MetadataLoader) Option {
	return func(p *Playlist) { p.loader = l }
}

// WithVerifier sets the function that turns raw urls into playable locations.
func WithVerifier(v func(raw string) string) Option {
	return func(p *Playlist) { p.verify = v }
}

// Playlist is an ordered collection of entries plus a url index.
type Playlist struct {
	entries   []*Entry
	urlCounts map[string]int
	loader    MetadataLoader
	verify    func(raw string) string
}

// New creates an empty playlist.
func New(opts ...Option) *Playlist {
	p := &Playlist{
		urlCounts: make(map[string]int),
		loader:    MetadataLoaderFunc(track.FromURL),
		verify:    VerifyURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// VerifyURL is the default verifier: it drops extra information,
// converts file:// urls to paths and cleans local paths.
func VerifyURL(raw string) string {
	u := stripExtra(raw)
	if strings.HasPrefix(u, "file:") {
		if parsed, err := url.Parse(u); err == nil && parsed.Path != "" {
			return filepath.FromSlash(parsed.Path)
		}
	}
	if strings.Contains(u, ":") && !filepath.IsAbs(u) && !isWindowsDrive(u) {
		return u // some other scheme
	}
	return filepath.Clean(u)
}

func isWindowsDrive(u string) bool {
	return len(u) >= 2 && u[1] == ':' && ((u[0] >= 'a' && u[0] <= 'z') || (u[0] >= 'A' && u[0] <= 'Z'))
}

// Count returns the number of entries.
func (p *Playlist) Count() int { return len(p.entries) }

// At returns the entry at pos. The caller must check the range.
func (p *Playlist) At(pos int) *Entry { return p.entries[pos] }

// Valid reports whether pos is a valid index.
func (p *Playlist) Valid(pos int) bool { return pos >= 0 && pos < len(p.entries) }

// Add appends a url and returns its position.
func (p *Playlist) Add(url string, verified bool, flags EntryFlags) int {
	p.entries = append(p.entries, newEntry(url, verified, flags))
	p.urlCounts[url]++
	return len(p.entries) - 1
}

// Insert adds a url before the given position and returns the position.
// Out-of-range positions append.
func (p *Playlist) Insert(url string, before int, verified bool, flags EntryFlags) int {
	if before < 0 || before >= len(p.entries) {
		return p.Add(url, verified, flags)
	}
	p.entries = append(p.entries, nil)
	copy(p.entries[before+1:], p.entries[before:])
	p.entries[before] = newEntry(url, verified, flags)
	p.urlCounts[url]++
	return before
}

// RemoveAt removes the entry at pos and returns how many entries
// with the same url are still in the playlist.
func (p *Playlist) RemoveAt(pos int) int {
	e := p.entries[pos]
	rest := p.urlCounts[e.url] - 1
	if rest > 0 {
		p.urlCounts[e.url] = rest
	} else {
		delete(p.urlCounts, e.url)
		rest = 0
	}

	copy(p.entries[pos:], p.entries[pos+1:])
	p.entries[len(p.entries)-1] = nil
	p.entries = p.entries[:len(p.entries)-1]
	return rest
}

// Clear removes all entries.
func (p *Playlist) Clear() {
	p.entries = nil
	p.urlCounts = make(map[string]int)
}

// MovePos moves the entry at src so that it ends up at dst.
func (p *Playlist) MovePos(src, dst int) {
	if src == dst {
		return
	}
	e := p.entries[src]
	if src < dst {
		copy(p.entries[src:dst], p.entries[src+1:dst+1])
	} else {
		copy(p.entries[dst+1:src+1], p.entries[dst:src])
	}
	p.entries[dst] = e
}

// PosByID returns the position of the entry with the given id or -1.
func (p *Playlist) PosByID(id int64) int {
	for i, e := range p.entries {
		if e.id == id {
			return i
		}
	}
	return -1
}

// PosByURL returns the first position of url or -1.
func (p *Playlist) PosByURL(url string) int {
	if !p.Contains(url) {
		return -1
	}
	for i := range p.entries {
		if p.URL(i) == url {
			return i
		}
	}
	return -1
}

// Contains reports whether url is in the playlist.
func (p *Playlist) Contains(url string) bool {
	return p.urlCounts[url] > 0
}

// CountOf returns how often url is in the playlist.
func (p *Playlist) CountOf(url string) int {
	return p.urlCounts[url]
}

// URL returns the verified url at pos, verifying it on first access.
func (p *Playlist) URL(pos int) string {
	e := p.entries[pos]
	if !e.verified {
		e.verified = true
		if v := p.verify(e.url); v != "" && v != e.url {
			p.rename(e, v)
		}
	}
	return e.url
}

// UnverifiedURL returns the raw url at pos.
func (p *Playlist) UnverifiedURL(pos int) string {
	return p.entries[pos].url
}

// URLs returns the verified urls of all entries.
func (p *Playlist) URLs() []string {
	urls := make([]string, len(p.entries))
	for i := range p.entries {
		urls[i] = p.URL(i)
	}
	return urls
}

// Track returns the metadata at pos, loading it on first access.
func (p *Playlist) Track(pos int) track.Track {
	e := p.entries[pos]
	if e.info == nil {
		t := p.loader.Load(p.URL(pos))
		if t.URL == "" {
			t.URL = e.url
		}
		if e.playtimeMs > 0 {
			t.Duration = time.Duration(e.playtimeMs) * time.Millisecond
		}
		e.info = &t
	}
	return *e.info
}

// PlaytimeMs returns the playtime at pos in milliseconds or -1 if unknown.
func (p *Playlist) PlaytimeMs(pos int) int64 {
	t := p.Track(pos)
	if !t.HasDuration() {
		return -1
	}
	return t.Duration.Milliseconds()
}

// UnplayedCount counts entries at or after currPos that were never played,
// stopping at maxCnt if maxCnt > 0.
func (p *Playlist) UnplayedCount(currPos, maxCnt int) int {
	if currPos < 0 {
		currPos = 0
	}
	n := 0
	for i := len(p.entries) - 1; i >= currPos; i-- {
		if p.entries[i].playCount == 0 {
			n++
			if maxCnt > 0 && n >= maxCnt {
				break
			}
		}
	}
	return n
}

// OnURLChanged renames oldURL to newURL in all entries.
// Play count and flags survive; metadata is reloaded on next access.
// An empty newURL only invalidates the metadata.
func (p *Playlist) OnURLChanged(oldURL, newURL string) {
	if !p.Contains(oldURL) {
		return
	}
	for _, e := range p.entries {
		if e.url != oldURL {
			continue
		}
		if newURL != "" {
			p.rename(e, newURL)
		}
		e.invalidate()
	}
}

// UpdatePlaytime sets a known playtime for all entries with url.
// Urls are compared case-insensitively.
func (p *Playlist) UpdatePlaytime(url string, ms int64) {
	for _, e := range p.entries {
		if strings.EqualFold(e.url, url) {
			e.setPlaytime(ms)
		}
	}
}

func (p *Playlist) rename(e *Entry, newURL string) {
	if n := p.urlCounts[e.url] - 1; n > 0 {
		p.urlCounts[e.url] = n
	} else {
		delete(p.urlCounts, e.url)
	}
	e.url = newURL
	p.urlCounts[newURL]++
}
