//go:build !((linux && cgo) || windows || darwin)

package beep

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/19player/internal/backend"
)

// Available indicates whether audio output is supported in this build.
// Audio output requires cgo on this platform.
const Available = false

// ErrUnavailable is returned by New in builds without audio output.
var ErrUnavailable = errors.New("beep backend is not available in this build")

// Backend is never constructed in builds without audio output.
type Backend struct {
	backend.Backend
}

// New validates the settings and reports that audio output is unavailable.
func New(settingsMap map[string]any) (*Backend, error) {
	if _, err := decodeSettings(settingsMap); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}
