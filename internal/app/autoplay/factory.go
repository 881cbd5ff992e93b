package autoplay

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/infra/config"
)

// Provider types.
const (
	TypeFile            = "file"
	TypeSpotifyPlaylist = "spotify_playlist"
	TypeLastFm          = "lastfm"
)

// NewChainFromConfig creates a provider chain from configuration. spotify may
// be nil if no provider needs it.
func NewChainFromConfig(cfg config.AutoplayConfig, spotify SpotifyClient) (*Chain, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("no autoplay providers configured")
	}

	var providers []NamedProvider
	for i, pcfg := range cfg.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("autoplay: creating provider: index=%d type=%s", i+1, pcfg.Type)

		switch pcfg.Type {
		case TypeFile:
			provider, err = NewFileProvider(pcfg.Settings)
		case TypeSpotifyPlaylist:
			provider, err = NewSpotifyPlaylistProvider(spotify, cfg.NumTracks, pcfg.Settings)
		case TypeLastFm:
			provider, err = NewLastFmProvider(spotify, pcfg.Settings)
		default:
			err = errors.Newf("unsupported provider type: %s", pcfg.Type)
		}
		if err != nil {
			NewChain(providers).Close()
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, NamedProvider{Provider: provider, DisplayName: pcfg.DisplayName})
		zlog.Info().Msgf("autoplay: registered provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewChain(providers), nil
}

// decodeSettings fills out from a settings map, applies defaults and validates.
func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
