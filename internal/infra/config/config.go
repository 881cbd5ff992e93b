// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Log          LogConfig      `yaml:"log"`
	Library      LibraryConfig  `yaml:"library"`
	Player       PlayerConfig   `yaml:"player"`
	Queue        QueueConfig    `yaml:"queue"`
	Resume       ResumeConfig   `yaml:"resume"`
	Backend      BackendConfig  `yaml:"backend"`
	Autoplay     AutoplayConfig `yaml:"autoplay"`
	Server       ServerConfig   `yaml:"server"`
	Spotify      SpotifyConfig  `yaml:"spotify"`
	SettingsFile string         `yaml:"settings_file" default:"config/settings.yaml"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Output string `yaml:"output" default:"stdout" validate:"oneof=stdout stderr file"`
	File   string `yaml:"file" validate:"required_if=Output file"`
}

// LibraryConfig represents the music library location.
// Only the file name is used; the resume file lives next to it.
type LibraryConfig struct {
	File string `yaml:"file" default:"library.db" validate:"required"`
}

// PlayerConfig represents player configuration.
type PlayerConfig struct {
	Volume             int  `yaml:"volume" default:"240" validate:"gte=0,lte=255"`
	StopAfterEachTrack bool `yaml:"stop_after_each_track"`
	LimitPlayTimeSec   int  `yaml:"limit_play_time_sec" validate:"gte=0"`
	SignalBuffer       int  `yaml:"signal_buffer" default:"16" validate:"gte=1,lte=1024"`
}

// QueueConfig represents queue policy configuration.
type QueueConfig struct {
	Shuffle              bool   `yaml:"shuffle"`
	ShuffleIntensity     int    `yaml:"shuffle_intensity" default:"50" validate:"gte=0,lte=100"`
	Repeat               string `yaml:"repeat" default:"off" validate:"oneof=off all single"`
	AvoidBoredomTracks   *bool  `yaml:"avoid_boredom_tracks" default:"true"`
	AvoidBoredomArtists  *bool  `yaml:"avoid_boredom_artists" default:"true"`
	BoredomTrackMinutes  int    `yaml:"boredom_track_minutes" default:"30" validate:"gte=0"`
	BoredomArtistMinutes int    `yaml:"boredom_artist_minutes" default:"20" validate:"gte=0"`
	RemovePlayed         bool   `yaml:"remove_played"`
}

// ResumeConfig represents crash-resume configuration.
type ResumeConfig struct {
	Enabled       *bool `yaml:"enabled" default:"true"`
	LoadPlayed    bool  `yaml:"load_played"`
	StartPlayback *bool `yaml:"start_playback" default:"true"`
}

// BackendConfig selects the audio backend.
type BackendConfig struct {
	Type     string         `yaml:"type" default:"null" validate:"oneof=null beep spotify"`
	Settings map[string]any `yaml:"settings"`
}

// AutoplayConfig represents auto-play configuration.
type AutoplayConfig struct {
	Enabled     bool                    `yaml:"enabled"`
	WaitMinutes int                     `yaml:"wait_minutes" validate:"gte=0"`
	NumTracks   int                     `yaml:"num_tracks" default:"10" validate:"gte=1"`
	Providers   []ProviderConfig        `yaml:"providers" validate:"dive"`
	Filters     map[string]FilterConfig `yaml:"filters"`
}

// ProviderConfig represents a single auto-play provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a candidate filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// IsFilterEnabled checks if a candidate filter is enabled.
func (a AutoplayConfig) IsFilterEnabled(filterName string) bool {
	if f, ok := a.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// ServerConfig represents control API server configuration.
type ServerConfig struct {
	Addr               string      `yaml:"addr" default:"127.0.0.1:8019"`
	Token              string      `yaml:"token"` // required in the X-Api-Token header when set
	EventSendTimeoutMs int         `yaml:"event_send_timeout_ms" default:"500" validate:"gte=1"`
	Hooks              HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
	DeviceID     string `yaml:"device_id"`
}

// Configured reports whether credentials are present.
func (s SpotifyConfig) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RefreshToken != ""
}

// envOverrides holds values taken from the environment.
type envOverrides struct {
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	SpotifyRefreshToken string `env:"SPOTIFY_REFRESH_TOKEN"`
	SpotifyDeviceID     string `env:"SPOTIFY_DEVICE_ID"`
	LastfmAPIKey        string `env:"LASTFM_API_KEY"`
	LibraryFile         string `env:"PLAYER_LIBRARY_FILE"`
	Backend             string `env:"PLAYER_BACKEND"`
	Addr                string `env:"PLAYER_ADDR"`
	Token               string `env:"PLAYER_API_TOKEN"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return errors.Wrap(err, "failed to parse environment")
	}

	if o.SpotifyClientID != "" {
		c.Spotify.ClientID = o.SpotifyClientID
	}
	if o.SpotifyClientSecret != "" {
		c.Spotify.ClientSecret = o.SpotifyClientSecret
	}
	if o.SpotifyRefreshToken != "" {
		c.Spotify.RefreshToken = o.SpotifyRefreshToken
	}
	if o.SpotifyDeviceID != "" {
		c.Spotify.DeviceID = o.SpotifyDeviceID
	}
	if o.LastfmAPIKey != "" {
		for i := range c.Autoplay.Providers {
			if c.Autoplay.Providers[i].Type == "lastfm" {
				if c.Autoplay.Providers[i].Settings == nil {
					c.Autoplay.Providers[i].Settings = map[string]any{}
				}
				c.Autoplay.Providers[i].Settings["api_key"] = o.LastfmAPIKey
			}
		}
	}
	if o.LibraryFile != "" {
		c.Library.File = o.LibraryFile
	}
	if o.Backend != "" {
		c.Backend.Type = o.Backend
	}
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}
	if o.Token != "" {
		c.Server.Token = o.Token
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Autoplay.Enabled && len(c.Autoplay.Providers) == 0 {
		return errors.New("autoplay is enabled but no providers are configured")
	}

	if !c.Spotify.Configured() {
		if c.Backend.Type == "spotify" {
			return errors.New("spotify backend requires spotify credentials")
		}
		for _, p := range c.Autoplay.Providers {
			if strings.HasPrefix(p.Type, "spotify") || p.Type == "lastfm" {
				return errors.Newf("autoplay provider %q requires spotify credentials", p.Type)
			}
		}
	}

	return nil
}

// ResumeFile returns the path of the resume file: a hidden file next to
// the library file named ".<library file name>-resume".
func (c *Config) ResumeFile() string {
	dir, name := filepath.Split(c.Library.File)
	return filepath.Join(dir, "."+name+"-resume")
}

// BoolValue returns the value of p, false if p is nil.
func BoolValue(p *bool) bool {
	return p != nil && *p
}
