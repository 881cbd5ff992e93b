package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Settings are the user settings changed at runtime and persisted
// between sessions. They override the player and queue sections.
type Settings struct {
	Shuffle              bool   `yaml:"shuffle"`
	ShuffleIntensity     int    `yaml:"shuffle_intensity" validate:"gte=0,lte=100"`
	Repeat               string `yaml:"repeat" validate:"oneof=off all"`
	AvoidBoredomTracks   bool   `yaml:"avoid_boredom_tracks"`
	AvoidBoredomArtists  bool   `yaml:"avoid_boredom_artists"`
	BoredomTrackMinutes  int    `yaml:"boredom_track_minutes" validate:"gte=0"`
	BoredomArtistMinutes int    `yaml:"boredom_artist_minutes" validate:"gte=0"`
	RemovePlayed         bool   `yaml:"remove_played"`
	Volume               int    `yaml:"volume" validate:"gte=0,lte=255"`
	StopAfterEachTrack   bool   `yaml:"stop_after_each_track"`
}

// SettingsFromConfig returns the settings defined by the configuration.
func SettingsFromConfig(c *Config) Settings {
	repeat := c.Queue.Repeat
	if repeat != "all" {
		repeat = "off"
	}
	return Settings{
		Shuffle:              c.Queue.Shuffle,
		ShuffleIntensity:     c.Queue.ShuffleIntensity,
		Repeat:               repeat,
		AvoidBoredomTracks:   BoolValue(c.Queue.AvoidBoredomTracks),
		AvoidBoredomArtists:  BoolValue(c.Queue.AvoidBoredomArtists),
		BoredomTrackMinutes:  c.Queue.BoredomTrackMinutes,
		BoredomArtistMinutes: c.Queue.BoredomArtistMinutes,
		RemovePlayed:         c.Queue.RemovePlayed,
		Volume:               c.Player.Volume,
		StopAfterEachTrack:   c.Player.StopAfterEachTrack,
	}
}

// Apply copies the settings into the configuration.
func (s Settings) Apply(c *Config) {
	c.Queue.Shuffle = s.Shuffle
	c.Queue.ShuffleIntensity = s.ShuffleIntensity
	c.Queue.Repeat = s.Repeat
	c.Queue.AvoidBoredomTracks = &s.AvoidBoredomTracks
	c.Queue.AvoidBoredomArtists = &s.AvoidBoredomArtists
	c.Queue.BoredomTrackMinutes = s.BoredomTrackMinutes
	c.Queue.BoredomArtistMinutes = s.BoredomArtistMinutes
	c.Queue.RemovePlayed = s.RemovePlayed
	c.Player.Volume = s.Volume
	c.Player.StopAfterEachTrack = s.StopAfterEachTrack
}

// LoadSettings reads persisted settings.
// It returns nil and no error if the file does not exist.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read settings file")
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "failed to parse settings file")
	}
	if s.Repeat == "" {
		s.Repeat = "off"
	}
	if err := validator.New().Struct(&s); err != nil {
		return nil, errors.Wrap(err, "settings validation failed")
	}
	return &s, nil
}

// SaveSettings writes settings through a temporary file in the same directory.
func SaveSettings(path string, s Settings) error {
	if err := validator.New().Struct(&s); err != nil {
		return errors.Wrap(err, "settings validation failed")
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return errors.Wrap(err, "failed to marshal settings")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create settings directory")
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary settings file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write settings")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close settings")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "failed to replace settings file")
}
