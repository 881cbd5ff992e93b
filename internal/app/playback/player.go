package playback

import (
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/queue"
	"github.com/osa030/19player/internal/backend"
	"github.com/osa030/19player/internal/domain/playlist"
)

const (
	MaxVolume           = 255
	DefaultVolume       = 240
	DefaultSignalBuffer = 16

	eventBuffer      = 10
	estimatedTrackMs = 180000
	maxGain          = 5.0
	lane             = 0
)

// Config holds player configuration.
type Config struct {
	Volume             int  // Main volume 0..255
	StopAfterEachTrack bool // Stop at the end of every track
	SignalBuffer       int  // Mailbox capacity
}

// Player is the playback state machine. Except for the backend callbacks,
// all methods must be called from the goroutine owning the queue.
type Player struct {
	backend backend.Backend
	queue   *queue.Queue
	host    Host
	now     func() time.Time

	stream backend.Stream
	info   *streamInfo
	gen    uint64
	paused bool
	inGoto bool

	stopAfterThis bool
	stopAfterEach bool

	mainVol   int
	mainGain  float64
	backupVol int

	failedURLs map[string]struct{}
	skips      int

	signalCh chan Signal
	eventCh  chan Event
}

// New creates a stopped player.
func New(b backend.Backend, q *queue.Queue, host Host, config Config) *Player {
	if host == nil {
		host = NopHost{}
	}
	if config.SignalBuffer <= 0 {
		config.SignalBuffer = DefaultSignalBuffer
	}

	p := &Player{
		backend:       b,
		queue:         q,
		host:          host,
		now:           time.Now,
		stopAfterEach: config.StopAfterEachTrack,
		backupVol:     -1,
		failedURLs:    make(map[string]struct{}),
		signalCh:      make(chan Signal, config.SignalBuffer),
		eventCh:       make(chan Event, eventBuffer),
	}
	p.SetMainVol(config.Volume)
	return p
}

// Queue returns the queue driven by the player.
func (p *Player) Queue() *queue.Queue {
	return p.queue
}

// State returns the current playback state.
func (p *Player) State() State {
	switch {
	case p.URLOnAir() == "":
		return StateStopped
	case p.paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// IsPlaying reports whether a stream is on air and not paused.
func (p *Player) IsPlaying() bool { return p.State() == StatePlaying }

// IsPaused reports whether a stream is on air and paused.
func (p *Player) IsPaused() bool { return p.State() == StatePaused }

// IsStopped reports whether no stream is on air.
func (p *Player) IsStopped() bool { return p.State() == StateStopped }

// URLOnAir returns the url of the open stream or an empty string.
func (p *Player) URLOnAir() string {
	if p.stream == nil || p.backend.DeviceState() == backend.DeviceClosed {
		return ""
	}
	return p.stream.URL()
}

// IsAutoPlayOnAir reports whether the stream on air was enqueued by autoplay.
func (p *Player) IsAutoPlayOnAir() bool {
	url := p.URLOnAir()
	if url == "" {
		return false
	}
	pos := p.queue.GetClosestPosByURL(url)
	return pos >= 0 && p.queue.EntryFlags(pos).Has(playlist.FlagAutoplay)
}

// IsVideoOnAir reports whether the stream on air carries video.
func (p *Player) IsVideoOnAir() bool {
	return p.URLOnAir() != "" && p.info != nil && p.info.video.Load()
}

// StopAfterThisTrack returns the stop-after-this-track setting.
func (p *Player) StopAfterThisTrack() bool { return p.stopAfterThis }

// SetStopAfterThisTrack stops playback at the end of the current track.
// The setting is cleared by Stop and GotoAbsPos.
func (p *Player) SetStopAfterThisTrack(on bool) { p.stopAfterThis = on }

// StopAfterEachTrack returns the stop-after-each-track setting.
func (p *Player) StopAfterEachTrack() bool { return p.stopAfterEach }

// SetStopAfterEachTrack stops playback at the end of every track.
func (p *Player) SetStopAfterEachTrack(on bool) { p.stopAfterEach = on }

// Play starts playback of the current entry or resumes a paused stream.
func (p *Player) Play(seekMs int64) {
	before := p.State()

	if p.stream == nil {
		url := p.queue.URL(-1)
		if url == "" {
			return
		}
		p.skips = 0
		wasOpen := p.backend.DeviceState() != backend.DeviceClosed
		ok := p.openStream(url, seekMs)
		p.backend.SetDeviceState(backend.DevicePlaying)
		if !wasOpen {
			p.backend.SetDeviceVol(p.mainGain)
		}
		if !ok {
			p.post(Signal{Kind: SignalPrepareNext, Gen: p.gen})
		}
	} else {
		p.backend.SetDeviceState(backend.DevicePlaying)
	}

	p.paused = false
	p.notifyState(before)
}

// Pause halts the stream on air. Nothing happens if stopped or paused.
func (p *Player) Pause() {
	if p.URLOnAir() == "" || p.paused {
		return
	}
	before := p.State()
	p.backend.SetDeviceState(backend.DevicePaused)
	p.paused = true
	p.notifyState(before)
}

// PlayOrPause toggles between playing and paused.
func (p *Player) PlayOrPause() {
	if p.IsPlaying() {
		p.Pause()
	} else {
		p.Play(0)
	}
}

// Stop takes the stream off air and closes the device.
func (p *Player) Stop() {
	before := p.State()

	p.stopAfterThis = false
	clear(p.failedURLs)
	p.skips = 0
	p.gen++

	p.closeStream()
	p.backend.SetDeviceState(backend.DeviceClosed)
	p.paused = false

	p.notifyState(before)
}

// GotoAbsPos makes pos the current entry. A playing player continues with
// the new entry; a paused player is stopped. Playback is never started.
func (p *Player) GotoAbsPos(pos int) {
	if p.inGoto {
		return
	}
	p.inGoto = true
	defer func() { p.inGoto = false }()

	p.stopAfterThis = false
	if !p.queue.Valid(pos) {
		return
	}

	p.queue.SetCurrPos(pos)

	switch p.State() {
	case StatePaused:
		p.Stop()
	case StatePlaying:
		p.closeStream()
		p.skips = 0
		wasOpen := p.backend.DeviceState() != backend.DeviceClosed
		if !p.openStream(p.queue.URL(pos), 0) {
			p.post(Signal{Kind: SignalPrepareNext, Gen: p.gen})
		} else if !wasOpen {
			p.backend.SetDeviceVol(p.mainGain)
		}
	}

	p.sendEvent(EventTrackOnAirChanged)
}

// HasPrev reports whether GotoPrev would move.
func (p *Player) HasPrev() bool {
	return p.queue.GetPrevPos(queue.LookupOnly) != -1
}

// GotoPrev moves to the previous entry, retracing the history in shuffle mode.
func (p *Player) GotoPrev() {
	if pos := p.queue.GetPrevPos(0); pos != -1 {
		p.GotoAbsPos(pos)
	}
}

// HasNext reports whether an entry follows without asking for autoplay.
func (p *Player) HasNext() bool {
	return p.queue.GetNextPos(queue.LookupOnly) != -1
}

// GotoNextIgnoreAutoPlay moves to the next entry. It reports whether there was one.
func (p *Player) GotoNextIgnoreAutoPlay() bool {
	pos := p.queue.GetNextPos(0)
	if pos == -1 {
		return false
	}
	p.GotoAbsPos(pos)
	return true
}

// GotoNextRegardAutoPlay moves to the next entry, asking the host for
// autoplay entries if the queue ran out.
func (p *Player) GotoNextRegardAutoPlay(ignoreTimeouts bool) bool {
	if !p.HasNext() && !p.host.AutoPlay(ignoreTimeouts) {
		return false
	}
	return p.GotoNextIgnoreAutoPlay()
}

// GotoRelPos moves relative to the current position, ignoring shuffle.
func (p *Player) GotoRelPos(delta int) {
	p.GotoAbsPos(p.queue.CurrPos() + delta)
}

// GotoURL moves to the entry with url closest to the current position.
func (p *Player) GotoURL(url string) {
	if pos := p.queue.GetClosestPosByURL(url); pos != -1 {
		p.GotoAbsPos(pos)
	}
}

// GetTime returns the total, elapsed and remaining time of the stream on air
// in milliseconds. Unknown values are -1; without a stream all are 0.
func (p *Player) GetTime() (totalMs, elapsedMs, remainingMs int64) {
	if p.stream == nil {
		return 0, 0, 0
	}

	totalMs, elapsedMs = p.stream.GetTime()
	if totalMs > 0 {
		p.info.realMs = totalMs
	}

	remainingMs = -1
	if totalMs != -1 && elapsedMs != -1 {
		remainingMs = max(totalMs-elapsedMs, 0)
	}
	return totalMs, elapsedMs, remainingMs
}

// ElapsedTime returns the elapsed time of the stream on air.
func (p *Player) ElapsedTime() int64 {
	_, elapsed, _ := p.GetTime()
	return elapsed
}

// GetEnqueueTime estimates how long it takes until an entry appended now
// gets played.
func (p *Player) GetEnqueueTime() int64 {
	count := p.queue.Count()
	if count == 0 {
		return 0
	}

	_, _, total := p.GetTime()
	total = max(total, 0)
	if p.queue.Shuffle() {
		return total
	}
	for i := p.queue.CurrPos() + 1; i < count; i++ {
		if ms := p.queue.PlaytimeMs(i); ms > 0 {
			total += ms
		} else {
			total += estimatedTrackMs
		}
	}
	return total
}

// SeekAbs moves within the stream on air.
func (p *Player) SeekAbs(ms int64) {
	if p.stream == nil {
		return
	}
	p.stream.SeekAbs(max(ms, 0))
}

// SeekRel moves relative to the elapsed time.
func (p *Player) SeekRel(deltaMs int64) {
	p.SeekAbs(p.ElapsedTime() + deltaMs)
}

// ReceiveSignal handles a signal taken from the mailbox. It must run on the
// goroutine owning the queue.
func (p *Player) ReceiveSignal(sig Signal) {
	if sig.Gen != p.gen {
		zlog.Debug().Msgf("player: stale signal ignored: kind=%s gen=%d current=%d", sig.Kind, sig.Gen, p.gen)
		return
	}

	switch sig.Kind {
	case SignalPrepareNext:
		p.prepareNext(sig)
	case SignalVideoDetected:
		p.sendEvent(EventVideoDetected)
	}
}

func (p *Player) prepareNext(sig Signal) {
	if p.stopAfterThis || p.stopAfterEach {
		p.Stop()
		if p.HasNext() {
			p.GotoNextIgnoreAutoPlay()
		}
		zlog.Debug().Msg("player: stop after this/each track executed")
		return
	}

	next := p.queue.GetNextPos(queue.RegardRepeat)
	if next == -1 {
		p.host.AutoPlay(false)
		next = p.queue.GetNextPos(queue.RegardRepeat)
	}
	if next == -1 {
		p.stopByEOQ()
		return
	}

	url := p.queue.URL(next)
	if _, failed := p.failedURLs[url]; failed {
		p.skips++
		if p.skips > p.queue.Count() {
			zlog.Warn().Msgf("player: no playable entry left after %d skips", p.skips-1)
			p.stopByEOQ()
			return
		}
		zlog.Info().Msgf("player: skipping failed url: %s", url)
		p.queue.SetCurrPos(next)
		p.post(sig)
		return
	}

	p.closeStream()
	if p.openStream(url, 0) {
		p.skips = 0
	} else {
		p.skips++
		p.post(Signal{Kind: SignalPrepareNext, Gen: p.gen})
	}
	p.queue.SetCurrPos(next)
	p.sendEvent(EventTrackOnAirChanged)
}

func (p *Player) stopByEOQ() {
	zlog.Info().Msg("player: stopped by end of queue")
	p.Stop()
	p.sendEvent(EventStoppedByEOQ)
}

// openStream creates the stream for url on the single lane. A failed url is
// remembered until the next Stop.
func (p *Player) openStream(url string, seekMs int64) bool {
	p.gen++
	info := &streamInfo{gen: p.gen, url: url, startedAt: p.now(), realMs: -1}

	s, err := p.backend.CreateStream(lane, url, seekMs, p.callback(info))
	if err != nil {
		zlog.Warn().Msgf("player: failed to create stream: url=%s err=%v", url, err)
		p.failedURLs[url] = struct{}{}
		p.stream, p.info = nil, nil
		return false
	}
	p.stream, p.info = s, info
	return true
}

// closeStream hands the statistics of the open stream to the host and
// destroys it.
func (p *Player) closeStream() {
	if p.stream == nil {
		return
	}
	if total, _ := p.stream.GetTime(); total > 0 {
		p.info.realMs = total
	}

	p.host.PlaybackDone(Stats{
		URL:          p.info.url,
		StartedAt:    p.info.startedAt,
		DecodedBytes: p.info.decoded.Load(),
		Gain:         p.info.gain(),
		RealMs:       p.info.realMs,
	})
	p.backend.DestroyStream(p.stream)
	p.stream, p.info = nil, nil
}

func (p *Player) notifyState(before State) {
	if p.State() != before {
		p.sendEvent(EventStateChanged)
	}
}
