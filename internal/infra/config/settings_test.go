package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	s := Settings{
		Shuffle:              true,
		ShuffleIntensity:     70,
		Repeat:               "all",
		AvoidBoredomTracks:   true,
		BoredomTrackMinutes:  15,
		BoredomArtistMinutes: 5,
		Volume:               128,
		StopAfterEachTrack:   true,
	}
	require.NoError(t, SaveSettings(path, s))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, s, *loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestSettings_RepeatSingleIsRejected(t *testing.T) {
	err := SaveSettings(filepath.Join(t.TempDir(), "s.yaml"), Settings{Repeat: "single"})
	assert.Error(t, err)
}

func TestLoadSettings_Missing(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "none.yaml"))
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestLoadSettings_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volume: 999\n"), 0o644))

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestSettings_ApplyAndFromConfig(t *testing.T) {
	cfg, err := Parse([]byte("queue:\n  repeat: single\n"))
	require.NoError(t, err)

	s := SettingsFromConfig(cfg)
	assert.Equal(t, "off", s.Repeat)
	assert.Equal(t, 240, s.Volume)
	assert.True(t, s.AvoidBoredomArtists)

	s.Volume = 10
	s.AvoidBoredomArtists = false
	s.Repeat = "all"
	s.Apply(cfg)

	assert.Equal(t, 10, cfg.Player.Volume)
	assert.False(t, BoolValue(cfg.Queue.AvoidBoredomArtists))
	assert.Equal(t, "all", cfg.Queue.Repeat)
}
