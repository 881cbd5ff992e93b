package session

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/queue"
	"github.com/osa030/19player/internal/infra/config"
)

var validate = validator.New()

// Settings is the runtime view of the user settings.
type Settings struct {
	Shuffle              bool   `json:"shuffle"`
	ShuffleIntensity     int    `json:"shuffle_intensity"`
	Repeat               string `json:"repeat"`
	Volume               int    `json:"volume"`
	Muted                bool   `json:"muted"`
	StopAfterThisTrack   bool   `json:"stop_after_this_track"`
	StopAfterEachTrack   bool   `json:"stop_after_each_track"`
	RemovePlayed         bool   `json:"remove_played"`
	AvoidBoredomTracks   bool   `json:"avoid_boredom_tracks"`
	AvoidBoredomArtists  bool   `json:"avoid_boredom_artists"`
	BoredomTrackMinutes  int    `json:"boredom_track_minutes"`
	BoredomArtistMinutes int    `json:"boredom_artist_minutes"`
	AutoplayEnabled      bool   `json:"autoplay_enabled"`
	AutoplayWaitMinutes  int    `json:"autoplay_wait_minutes"`
	AutoplayNumTracks    int    `json:"autoplay_num_tracks"`
}

// SettingsUpdate changes the non-nil fields.
type SettingsUpdate struct {
	Shuffle              *bool   `json:"shuffle,omitempty"`
	ShuffleIntensity     *int    `json:"shuffle_intensity,omitempty" validate:"omitempty,gte=0,lte=100"`
	Repeat               *string `json:"repeat,omitempty" validate:"omitempty,oneof=off all single"`
	Volume               *int    `json:"volume,omitempty" validate:"omitempty,gte=0,lte=255"`
	Muted                *bool   `json:"muted,omitempty"`
	StopAfterThisTrack   *bool   `json:"stop_after_this_track,omitempty"`
	StopAfterEachTrack   *bool   `json:"stop_after_each_track,omitempty"`
	RemovePlayed         *bool   `json:"remove_played,omitempty"`
	AvoidBoredomTracks   *bool   `json:"avoid_boredom_tracks,omitempty"`
	AvoidBoredomArtists  *bool   `json:"avoid_boredom_artists,omitempty"`
	BoredomTrackMinutes  *int    `json:"boredom_track_minutes,omitempty" validate:"omitempty,gte=0"`
	BoredomArtistMinutes *int    `json:"boredom_artist_minutes,omitempty" validate:"omitempty,gte=0"`
	AutoplayEnabled      *bool   `json:"autoplay_enabled,omitempty"`
	AutoplayWaitMinutes  *int    `json:"autoplay_wait_minutes,omitempty" validate:"omitempty,gte=0"`
	AutoplayNumTracks    *int    `json:"autoplay_num_tracks,omitempty" validate:"omitempty,gte=1"`
}

// Settings returns the current settings.
func (m *Manager) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := m.Do(ctx, func() { s = m.settings() })
	return s, err
}

// UpdateSettings applies u, persists the result and returns it.
func (m *Manager) UpdateSettings(ctx context.Context, u SettingsUpdate) (Settings, error) {
	if err := validate.Struct(&u); err != nil {
		return Settings{}, errors.Wrapf(ErrInvalidArgument, "%v", err)
	}

	var s Settings
	err := m.Do(ctx, func() {
		m.applyUpdate(u)
		m.saveSettings()
		s = m.settings()
	})
	return s, err
}

func (m *Manager) settings() Settings {
	flags := m.queue.QueueFlags()
	trackMin, artistMin := m.queue.BoredomMinutes()
	ap := m.autoplay.Config()
	return Settings{
		Shuffle:              m.queue.Shuffle(),
		ShuffleIntensity:     m.queue.ShuffleIntensity(),
		Repeat:               m.queue.Repeat().String(),
		Volume:               m.player.MainVol(),
		Muted:                m.player.IsMuted(),
		StopAfterThisTrack:   m.player.StopAfterThisTrack(),
		StopAfterEachTrack:   m.player.StopAfterEachTrack(),
		RemovePlayed:         flags.Has(queue.FlagRemovePlayed),
		AvoidBoredomTracks:   flags.Has(queue.FlagBoredomTracks),
		AvoidBoredomArtists:  flags.Has(queue.FlagBoredomArtists),
		BoredomTrackMinutes:  trackMin,
		BoredomArtistMinutes: artistMin,
		AutoplayEnabled:      ap.Enabled,
		AutoplayWaitMinutes:  ap.WaitMinutes,
		AutoplayNumTracks:    ap.NumTracks,
	}
}

func (m *Manager) applyUpdate(u SettingsUpdate) {
	if u.Shuffle != nil {
		m.queue.SetShuffle(*u.Shuffle)
	}
	if u.ShuffleIntensity != nil {
		m.queue.SetShuffleIntensity(*u.ShuffleIntensity)
	}
	if u.Repeat != nil {
		if r, err := queue.ParseRepeatMode(*u.Repeat); err == nil {
			m.queue.SetRepeat(r)
			if r != queue.RepeatSingle {
				m.savedRepeat = r.String()
			}
		}
	}
	if u.Volume != nil {
		m.player.SetMainVol(*u.Volume)
	}
	if u.Muted != nil {
		m.player.SetMute(*u.Muted)
	}
	if u.StopAfterThisTrack != nil {
		m.player.SetStopAfterThisTrack(*u.StopAfterThisTrack)
	}
	if u.StopAfterEachTrack != nil {
		m.player.SetStopAfterEachTrack(*u.StopAfterEachTrack)
	}

	flags := m.queue.QueueFlags()
	flags = setFlag(flags, queue.FlagRemovePlayed, u.RemovePlayed)
	flags = setFlag(flags, queue.FlagBoredomTracks, u.AvoidBoredomTracks)
	flags = setFlag(flags, queue.FlagBoredomArtists, u.AvoidBoredomArtists)
	m.queue.SetQueueFlags(flags)

	if u.BoredomTrackMinutes != nil || u.BoredomArtistMinutes != nil {
		trackMin, artistMin := m.queue.BoredomMinutes()
		if u.BoredomTrackMinutes != nil {
			trackMin = *u.BoredomTrackMinutes
		}
		if u.BoredomArtistMinutes != nil {
			artistMin = *u.BoredomArtistMinutes
		}
		m.queue.SetBoredomMinutes(trackMin, artistMin)
	}

	if u.AutoplayEnabled != nil || u.AutoplayWaitMinutes != nil || u.AutoplayNumTracks != nil {
		ap := m.autoplay.Config()
		if u.AutoplayEnabled != nil {
			ap.Enabled = *u.AutoplayEnabled
		}
		if u.AutoplayWaitMinutes != nil {
			ap.WaitMinutes = *u.AutoplayWaitMinutes
		}
		if u.AutoplayNumTracks != nil {
			ap.NumTracks = *u.AutoplayNumTracks
		}
		m.autoplay.SetConfig(ap)
	}

	zlog.Info().Msgf("session: settings updated: %+v", m.settings())
}

func setFlag(flags, flag queue.Flags, on *bool) queue.Flags {
	if on == nil {
		return flags
	}
	if *on {
		return flags | flag
	}
	return flags &^ flag
}

// persistedSettings returns what goes to the settings file. Repeat single
// is not persisted; the last off/all choice is kept instead.
func (m *Manager) persistedSettings() config.Settings {
	flags := m.queue.QueueFlags()
	trackMin, artistMin := m.queue.BoredomMinutes()
	repeat := m.queue.Repeat().String()
	if m.queue.Repeat() == queue.RepeatSingle {
		repeat = m.savedRepeat
	}
	return config.Settings{
		Shuffle:              m.queue.Shuffle(),
		ShuffleIntensity:     m.queue.ShuffleIntensity(),
		Repeat:               repeat,
		AvoidBoredomTracks:   flags.Has(queue.FlagBoredomTracks),
		AvoidBoredomArtists:  flags.Has(queue.FlagBoredomArtists),
		BoredomTrackMinutes:  trackMin,
		BoredomArtistMinutes: artistMin,
		RemovePlayed:         flags.Has(queue.FlagRemovePlayed),
		Volume:               m.player.SaveVolume(),
		StopAfterEachTrack:   m.player.StopAfterEachTrack(),
	}
}

func (m *Manager) saveSettings() {
	path := m.cfg.SettingsFile
	if path == "" {
		return
	}
	if err := config.SaveSettings(path, m.persistedSettings()); err != nil {
		zlog.Error().Msgf("session: failed to save settings: path=%s error=%v", path, err)
		return
	}
	zlog.Debug().Msgf("session: settings saved: path=%s", path)
}
