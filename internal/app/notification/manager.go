// Package notification provides the notification manager for broadcasting
// player events to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

const defaultSendTimeout = 500 * time.Millisecond

// Type identifies a notification kind.
type Type string

// Notification types.
const (
	TypeTrackOnAirChanged Type = "track_on_air_changed"
	TypeStoppedByEOQ      Type = "stopped_by_eoq"
	TypeStateChanged      Type = "state_changed"
	TypeVideoDetected     Type = "video_detected"
	TypeQueueChanged      Type = "queue_changed"
	TypeSessionEnded      Type = "session_ended"
)

// TrackInfo describes a queue entry.
type TrackInfo struct {
	ID         int64  `json:"id"`
	Pos        int    `json:"pos"`
	URL        string `json:"url"`
	Name       string `json:"name,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	PlayCount  int64  `json:"play_count"`
	Autoplay   bool   `json:"autoplay,omitempty"`
	Erroneous  bool   `json:"erroneous,omitempty"`
}

// Notification is one broadcast message.
type Notification struct {
	SequenceNo uint64     `json:"sequence_no"`
	Type       Type       `json:"type"`
	Time       time.Time  `json:"time"`
	State      string     `json:"state"`
	QueueCount int        `json:"queue_count"`
	Track      *TrackInfo `json:"track,omitempty"`
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithSendTimeout limits how long a single subscriber may block a broadcast.
func WithSendTimeout(d time.Duration) Option {
	return func(m *Manager) { m.sendTimeout = d }
}

// NewManager creates a new notification manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s total=%d", id, len(m.subscriptions))
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[subscriptionID]; ok {
		delete(m.subscriptions, subscriptionID)
		zlog.Debug().Msgf("notification: unsubscribed: id=%s total=%d", subscriptionID, len(m.subscriptions))
	}
}

// Broadcast sends a notification to all subscribers. Each send runs in its
// own goroutine with a timeout; a subscriber whose send fails is dropped.
func (m *Manager) Broadcast(n *Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Warn().Msgf("notification: send failed, dropping subscriber: id=%s error=%v", s.id, err)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification: send timed out: id=%s seq=%d", s.id, n.SequenceNo)
			}
		}(sub)
	}
	wg.Wait()
}

// SequenceNo returns the number of the last broadcast.
func (m *Manager) SequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	return m.sequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
