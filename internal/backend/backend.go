// Package backend defines the contract between the player and an audio engine.
//
// Backends deliver stream events through a Callback which may be invoked from
// any goroutine. Callbacks must only forward the message; they must not call
// back into the player.
package backend

import (
	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrUnsupportedURL = errors.New("url not supported by backend")
	ErrStreamOpen     = errors.New("failed to open stream")
	ErrClosed         = errors.New("backend closed")
)

// DeviceState is the state of the output device.
type DeviceState int

const (
	DeviceClosed  DeviceState = iota // No output, all streams released
	DevicePlaying                    // Output running
	DevicePaused                     // Output halted, streams kept
)

// String returns the string representation of the device state.
func (s DeviceState) String() string {
	switch s {
	case DeviceClosed:
		return "closed"
	case DevicePlaying:
		return "playing"
	case DevicePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MessageType identifies a stream event.
type MessageType int

const (
	MsgEndOfStream   MessageType = iota + 1 // The stream reached its end
	MsgDSPBuffer                            // A buffer was decoded
	MsgVideoDetected                        // The stream carries video
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	switch t {
	case MsgEndOfStream:
		return "end_of_stream"
	case MsgDSPBuffer:
		return "dsp_buffer"
	case MsgVideoDetected:
		return "video_detected"
	default:
		return "unknown"
	}
}

// Message is an event reported by a stream.
type Message struct {
	Type    MessageType
	Stream  Stream
	Samples []float64 // Interleaved stereo samples, MsgDSPBuffer only
	Bytes   int       // Decoded bytes represented by this buffer
}

// Callback receives stream messages.
type Callback func(Message)

// Stream is one opened url.
type Stream interface {
	// URL returns the url the stream was created for.
	URL() string
	// Lane returns the output lane of the stream.
	Lane() int
	// GetTime returns the total and elapsed time in milliseconds, -1 if unknown.
	GetTime() (totalMs, elapsedMs int64)
	// SeekAbs moves to the given position in milliseconds.
	SeekAbs(ms int64)
}

// Backend is an audio engine.
type Backend interface {
	// Name returns the backend type name.
	Name() string
	// CreateStream opens url on the given lane, starting at seekMs.
	// The device state decides whether the stream is audible at once.
	CreateStream(lane int, url string, seekMs int64, cb Callback) (Stream, error)
	// DestroyStream releases a stream; no callbacks follow for it.
	DestroyStream(s Stream)
	// DeviceState returns the state of the output device.
	DeviceState() DeviceState
	// SetDeviceState opens, pauses or closes the output device.
	SetDeviceState(state DeviceState)
	// SetDeviceVol sets the output gain, 0.0 to 1.0.
	SetDeviceVol(gain float64)
	// Close releases all resources.
	Close() error
}
