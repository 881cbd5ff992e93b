// Package factory creates the backend selected by configuration.
package factory

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/backend"
	"github.com/osa030/19player/internal/backend/beep"
	"github.com/osa030/19player/internal/backend/null"
	"github.com/osa030/19player/internal/backend/spotify"
	"github.com/osa030/19player/internal/infra/config"
)

// Info describes a backend type.
type Info struct {
	Name        string
	Description string
	Available   bool
}

// List returns the backend types known to this build.
func List() []Info {
	return []Info{
		{Name: null.Name, Description: "simulated playback, no audio output", Available: true},
		{Name: beep.Name, Description: "local mp3/wav/flac files through the sound card", Available: beep.Available},
		{Name: spotify.Name, Description: "spotify:track URIs on a Spotify Connect device", Available: true},
	}
}

// New creates the backend selected by cfg.
// remote is required for the spotify backend only.
func New(cfg config.BackendConfig, remote spotify.Remote) (backend.Backend, error) {
	zlog.Debug().Msgf("creating backend: type=%s settings=%+v", cfg.Type, cfg.Settings)

	var (
		b   backend.Backend
		err error
	)
	switch cfg.Type {
	case null.Name, "":
		b, err = null.New(cfg.Settings)
	case beep.Name:
		b, err = beep.New(cfg.Settings)
	case spotify.Name:
		if remote == nil {
			return nil, errors.New("spotify backend requires a spotify client")
		}
		b, err = spotify.New(remote, cfg.Settings)
	default:
		return nil, errors.Newf("unsupported backend type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create backend (type %s)", cfg.Type)
	}

	zlog.Info().Msgf("backend ready: type=%s", b.Name())
	return b, nil
}
