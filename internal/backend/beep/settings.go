// Package beep plays local audio files through gopxl/beep.
package beep

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/19player/internal/backend"
)

// Name is the backend type name.
const Name = "beep"

const (
	extMP3  = ".mp3"
	extWAV  = ".wav"
	extFLAC = ".flac"
)

// Settings holds beep backend settings.
type Settings struct {
	SampleRate      int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int `mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	ResampleQuality int `mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
	DSPIntervalMs   int `mapstructure:"dsp_interval_ms" default:"250" validate:"gte=10"`
}

func decodeSettings(settingsMap map[string]any) (Settings, error) {
	var settings Settings
	if err := mapstructure.Decode(settingsMap, &settings); err != nil {
		return settings, errors.Wrap(err, "failed to decode beep backend settings")
	}
	if err := defaults.Set(&settings); err != nil {
		return settings, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(&settings); err != nil {
		return settings, errors.Wrap(err, "invalid beep backend settings")
	}
	return settings, nil
}

// localPath returns the file path for a playable location.
func localPath(location string) (string, error) {
	p := location
	if strings.HasPrefix(location, "file:") {
		u, err := url.Parse(location)
		if err != nil {
			return "", errors.Wrapf(backend.ErrUnsupportedURL, "url %s", location)
		}
		p = u.Path
	} else if strings.Contains(location, "://") || strings.HasPrefix(location, "spotify:") {
		return "", errors.Wrapf(backend.ErrUnsupportedURL, "url %s", location)
	}

	switch strings.ToLower(filepath.Ext(p)) {
	case extMP3, extWAV, extFLAC:
		return p, nil
	default:
		return "", errors.Wrapf(backend.ErrUnsupportedURL, "file type %s", filepath.Ext(p))
	}
}
