// Package session owns the main loop: every queue and player mutation runs
// on one goroutine, which also drains backend signals, player events and a
// periodic tick for auto-play and play time limits.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/autoplay"
	"github.com/osa030/19player/internal/app/filter"
	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/playback"
	"github.com/osa030/19player/internal/app/queue"
	"github.com/osa030/19player/internal/app/resume"
	"github.com/osa030/19player/internal/backend"
	"github.com/osa030/19player/internal/domain/playlist"
	"github.com/osa030/19player/internal/infra/config"
)

const defaultTickInterval = time.Second

// Errors
var (
	ErrNotRunning      = errors.New("session is not running")
	ErrAlreadyStarted  = errors.New("session already started")
	ErrInvalidPosition = errors.New("invalid queue position")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRequestFailed   = errors.New("request failed")
)

// Options are the collaborators of a session.
type Options struct {
	Backend      backend.Backend         // required
	Autoplay     autoplay.Source         // nil disables auto-play
	Filters      *filter.Chain           // nil accepts every auto-play candidate
	Loader       playlist.MetadataLoader // nil derives metadata from urls
	Notification *notification.Manager   // nil creates one
	Now          func() time.Time        // nil uses time.Now
	TickInterval time.Duration           // 0 uses one second
	QueueOptions []queue.Option
}

// Manager manages the player session.
type Manager struct {
	id           string
	cfg          config.Config
	savedRepeat  string
	now          func() time.Time
	tickInterval time.Duration

	queue        *queue.Queue
	player       *playback.Player
	host         *host
	autoplay     *autoplay.Controller
	notification *notification.Manager

	haltedManually bool
	startedAt      time.Time

	phase  atomic.Int32
	reqCh  chan *request
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type request struct {
	fn       func()
	done     chan struct{}
	panicked bool
}

// New creates a session. Persisted user settings override cfg.
func New(cfg *config.Config, opts Options) (*Manager, error) {
	if cfg == nil || opts.Backend == nil {
		return nil, errors.New("config and backend are required")
	}

	c := *cfg
	settings, err := config.LoadSettings(c.SettingsFile)
	if err != nil {
		zlog.Warn().Msgf("session: ignoring settings file: path=%s error=%v", c.SettingsFile, err)
	} else if settings != nil {
		settings.Apply(&c)
		zlog.Info().Msgf("session: settings loaded: path=%s", c.SettingsFile)
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.Notification == nil {
		opts.Notification = notification.NewManager()
	}

	qopts := append([]queue.Option{queue.WithClock(opts.Now)}, opts.QueueOptions...)
	if opts.Loader != nil {
		qopts = append(qopts, queue.WithPlaylistOptions(playlist.WithLoader(opts.Loader)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		id:           uuid.New().String(),
		cfg:          c,
		savedRepeat:  config.SettingsFromConfig(&c).Repeat,
		now:          opts.Now,
		tickInterval: opts.TickInterval,
		queue:        queue.New(qopts...),
		notification: opts.Notification,
		reqCh:        make(chan *request),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	m.host = &host{m: m}
	m.player = playback.New(opts.Backend, m.queue, m.host, playback.Config{
		Volume:             c.Player.Volume,
		StopAfterEachTrack: c.Player.StopAfterEachTrack,
		SignalBuffer:       c.Player.SignalBuffer,
	})
	m.autoplay = autoplay.New(autoplay.ConfigFrom(c.Autoplay), opts.Autoplay, m.player, autoplay.WithClock(opts.Now), autoplay.WithFilters(opts.Filters), autoplay.WithAsyncFetch(m.post))
	m.applyQueueConfig()

	return m, nil
}

// applyQueueConfig copies the queue section into the queue.
func (m *Manager) applyQueueConfig() {
	qc := m.cfg.Queue
	m.queue.SetShuffle(qc.Shuffle)
	m.queue.SetShuffleIntensity(qc.ShuffleIntensity)
	if r, err := queue.ParseRepeatMode(qc.Repeat); err == nil {
		m.queue.SetRepeat(r)
	}
	m.queue.SetBoredomMinutes(qc.BoredomTrackMinutes, qc.BoredomArtistMinutes)

	var flags queue.Flags
	if config.BoolValue(qc.AvoidBoredomTracks) {
		flags |= queue.FlagBoredomTracks
	}
	if config.BoolValue(qc.AvoidBoredomArtists) {
		flags |= queue.FlagBoredomArtists
	}
	if qc.RemovePlayed {
		flags |= queue.FlagRemovePlayed
	}
	if config.BoolValue(m.cfg.Resume.Enabled) {
		flags |= queue.FlagResume
	}
	if m.cfg.Resume.LoadPlayed {
		flags |= queue.FlagResumeLoadPlayed
	}
	if config.BoolValue(m.cfg.Resume.StartPlayback) {
		flags |= queue.FlagResumeStartPlayback
	}
	m.queue.SetQueueFlags(flags)
}

// ID returns the session id.
func (m *Manager) ID() string { return m.id }

// Phase returns the lifecycle phase.
func (m *Manager) Phase() Phase { return Phase(m.phase.Load()) }

// Notification returns the notification manager.
func (m *Manager) Notification() *notification.Manager { return m.notification }

// Done returns a channel that is closed when the main loop has exited.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Start restores the resume file and starts the main loop.
func (m *Manager) Start(ctx context.Context) error {
	if !m.phase.CompareAndSwap(int32(PhaseWaiting), int32(PhaseActive)) {
		return ErrAlreadyStarted
	}
	m.startedAt = m.now()

	if m.queue.QueueFlags().Has(queue.FlagResume) {
		path := m.cfg.ResumeFile()
		n, err := resume.Load(path, m.player, m.queue.QueueFlags().Has(queue.FlagResumeStartPlayback))
		if err != nil {
			zlog.Error().Msgf("session: failed to load resume file: path=%s error=%v", path, err)
		} else if n > 0 {
			zlog.Info().Msgf("session: resumed: path=%s entries=%d pos=%d", path, n, m.queue.CurrPos())
		}
	}

	go m.run()
	zlog.Info().Msgf("session: started: session_id=%s queue=%d state=%s", m.id, m.queue.Count(), m.player.State())
	return ctx.Err()
}

// Shutdown ends the main loop, writes the resume and settings files and
// stops playback.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.phase.CompareAndSwap(int32(PhaseWaiting), int32(PhaseTerminated)) {
		m.cancel()
		close(m.done)
		return nil
	}
	if !m.phase.CompareAndSwap(int32(PhaseActive), int32(PhaseTerminated)) {
		return nil
	}

	m.cancel()
	select {
	case <-m.done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "main loop did not exit")
	}

	// the loop has exited; this goroutine owns the player now
	m.saveResume()
	m.player.Stop()
	m.saveSettings()

	m.notification.Broadcast(&notification.Notification{
		Type:       notification.TypeSessionEnded,
		State:      m.player.State().String(),
		QueueCount: m.queue.Count(),
	})
	m.notification.Close()
	zlog.Info().Msgf("session: stopped: session_id=%s", m.id)
	return nil
}

// Do runs fn on the main loop and waits for it to finish. ctx only bounds
// the wait for the loop to accept fn; once accepted, fn runs to completion
// before Do returns.
func (m *Manager) Do(ctx context.Context, fn func()) error {
	if m.Phase() != PhaseActive {
		return ErrNotRunning
	}

	req := &request{fn: fn, done: make(chan struct{})}
	select {
	case m.reqCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrNotRunning
	}

	<-req.done
	if req.panicked {
		return ErrRequestFailed
	}
	return nil
}

// post hands fn to the main loop without waiting for it to run. It reports
// false once the loop is shutting down.
func (m *Manager) post(fn func()) bool {
	select {
	case m.reqCh <- &request{fn: fn, done: make(chan struct{})}:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *Manager) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case req := <-m.reqCh:
			req.panicked = !m.safely("request", req.fn)
			close(req.done)
		case sig := <-m.player.Signals():
			m.safely("signal", func() { m.player.ReceiveSignal(sig) })
		case ev := <-m.player.Events():
			m.safely("event", func() { m.handleEvent(ev) })
		case <-ticker.C:
			m.safely("tick", m.tick)
		}
	}
}

// safely runs fn and keeps the loop alive if it panics. It reports whether
// fn returned normally.
func (m *Manager) safely(what string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("session: %s panicked: %v", what, r)
		}
	}()
	fn()
	return true
}

func (m *Manager) saveResume() {
	if !m.queue.QueueFlags().Has(queue.FlagResume) {
		return
	}
	path := m.cfg.ResumeFile()
	if err := resume.Save(path, m.player, m.queue.QueueFlags().Has(queue.FlagResumeLoadPlayed)); err != nil {
		zlog.Error().Msgf("session: failed to save resume file: path=%s error=%v", path, err)
		return
	}
	zlog.Debug().Msgf("session: resume file saved: path=%s entries=%d", path, m.queue.Count())
}
