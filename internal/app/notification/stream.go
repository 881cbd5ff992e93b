package notification

import "github.com/cockroachdb/errors"

// ErrStreamFull is returned when a subscriber does not keep up.
var ErrStreamFull = errors.New("notification stream is full")

// ChannelStream is a Stream delivering into a buffered channel.
type ChannelStream struct {
	ch chan *Notification
}

// NewChannelStream creates a stream holding up to size pending notifications.
func NewChannelStream(size int) *ChannelStream {
	return &ChannelStream{ch: make(chan *Notification, size)}
}

// Send implements Stream. It never blocks.
func (s *ChannelStream) Send(n *Notification) error {
	select {
	case s.ch <- n:
		return nil
	default:
		return ErrStreamFull
	}
}

// C returns the receiving channel.
func (s *ChannelStream) C() <-chan *Notification {
	return s.ch
}
