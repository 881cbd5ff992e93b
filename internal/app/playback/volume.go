package playback

import "github.com/osa030/19player/internal/backend"

// minRestoreVolume is the lowest backup volume restored on unmute.
const minRestoreVolume = 8

// MainVol returns the main volume, 0 if muted.
func (p *Player) MainVol() int { return p.mainVol }

// SetMainVol sets the main volume, clamped to 0..255.
func (p *Player) SetMainVol(v int) {
	p.mainVol = min(max(v, 0), MaxVolume)
	p.mainGain = float64(p.mainVol) / MaxVolume
	if p.backend.DeviceState() != backend.DeviceClosed {
		p.backend.SetDeviceVol(p.mainGain)
	}
}

// IsMuted reports whether the main volume is 0.
func (p *Player) IsMuted() bool { return p.mainVol == 0 }

// SetMute mutes or restores the main volume. Restoring a volume that was
// too low to hear falls back to the default.
func (p *Player) SetMute(mute bool) {
	if mute {
		if p.backupVol == -1 {
			p.backupVol = p.mainVol
		}
		p.SetMainVol(0)
		return
	}

	if p.backupVol > minRestoreVolume {
		p.SetMainVol(p.backupVol)
	} else {
		p.SetMainVol(DefaultVolume)
	}
	p.backupVol = -1
}

// ToggleMute flips the mute state.
func (p *Player) ToggleMute() { p.SetMute(!p.IsMuted()) }

// SaveVolume returns the volume to persist: the volume before muting if muted.
func (p *Player) SaveVolume() int {
	if p.backupVol != -1 {
		return p.backupVol
	}
	return p.mainVol
}
