// Package track provides the Track domain entity.
package track

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Track represents the metadata of a playable item.
// Every field may be empty; Duration is negative when unknown.
type Track struct {
	Name     string        // Track name
	Artist   string        // Lead artist name
	Album    string        // Album name
	Duration time.Duration // Playtime, -1 if unknown
	URL      string        // Location (file path, file:// URL, spotify:track:ID, ...)
}

// UnknownDuration marks a track whose playtime has not been determined.
const UnknownDuration time.Duration = -1

// BoredomKey returns the key used for "same track" comparisons.
func (t Track) BoredomKey() string {
	return t.Artist + "/" + t.Name
}

// HasDuration reports whether the playtime is known.
func (t Track) HasDuration() bool {
	return t.Duration > 0
}

// FromURL derives track metadata from a location alone.
// File names of the form "Artist - Title.ext" are split into artist and title;
// anything else becomes the title.
func FromURL(location string) Track {
	t := Track{URL: location, Duration: UnknownDuration}

	base := baseName(location)
	if base == "" {
		return t
	}

	if artist, title, ok := strings.Cut(base, " - "); ok {
		t.Artist = strings.TrimSpace(artist)
		t.Name = strings.TrimSpace(title)
	} else {
		t.Name = strings.TrimSpace(base)
	}
	return t
}

// baseName returns the last path element of a location without extension.
func baseName(location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return ""
	}

	// spotify:track:ID and similar URIs carry no readable name
	if strings.HasPrefix(location, "spotify:") {
		return ""
	}

	var p string
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = path.Base(u.Path)
		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}
	} else {
		p = filepath.Base(location)
	}

	if p == "." || p == "/" || p == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(p, filepath.Ext(p))
}
