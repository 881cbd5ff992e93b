package playback

import (
	"math"
	"sync/atomic"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/backend"
)

// SignalKind identifies a message posted from a backend context.
type SignalKind int

const (
	SignalPrepareNext   SignalKind = iota + 1 // The stream on air ended
	SignalVideoDetected                       // The stream on air carries video
)

// String returns the string representation of the signal kind.
func (k SignalKind) String() string {
	switch k {
	case SignalPrepareNext:
		return "prepare_next"
	case SignalVideoDetected:
		return "video_detected"
	default:
		return "unknown"
	}
}

// Signal is posted to the main loop. Gen names the stream it refers to;
// signals for a stream that is no longer on air are ignored.
type Signal struct {
	Kind SignalKind
	Gen  uint64
}

// Signals returns the mailbox the main loop drains with ReceiveSignal.
func (p *Player) Signals() <-chan Signal {
	return p.signalCh
}

// post queues a signal without blocking. It may be called from any goroutine.
func (p *Player) post(sig Signal) {
	select {
	case p.signalCh <- sig:
	default:
		zlog.Warn().Msgf("player: signal dropped, mailbox full: kind=%s gen=%d", sig.Kind, sig.Gen)
	}
}

// streamInfo is shared with the backend callback. Only atomics are touched
// from there.
type streamInfo struct {
	gen       uint64
	url       string
	startedAt time.Time
	realMs    int64 // main loop only

	decoded atomic.Int64
	peak    atomic.Uint64 // float64 bits
	video   atomic.Bool
}

// callback returns the backend callback for a stream. It never touches
// queue or player state.
func (p *Player) callback(info *streamInfo) backend.Callback {
	return func(msg backend.Message) {
		switch msg.Type {
		case backend.MsgDSPBuffer:
			info.decoded.Add(int64(msg.Bytes))
			info.recordPeak(msg.Samples)
		case backend.MsgEndOfStream:
			p.post(Signal{Kind: SignalPrepareNext, Gen: info.gen})
		case backend.MsgVideoDetected:
			if info.video.CompareAndSwap(false, true) {
				p.post(Signal{Kind: SignalVideoDetected, Gen: info.gen})
			}
		}
	}
}

func (info *streamInfo) recordPeak(samples []float64) {
	peak := 0.0
	for _, v := range samples {
		peak = max(peak, math.Abs(v))
	}
	for {
		old := info.peak.Load()
		if peak <= math.Float64frombits(old) {
			return
		}
		if info.peak.CompareAndSwap(old, math.Float64bits(peak)) {
			return
		}
	}
}

// gain estimates the gain that brings the loudest sample to full scale.
func (info *streamInfo) gain() float64 {
	peak := math.Float64frombits(info.peak.Load())
	if peak <= 0 {
		return -1
	}
	return min(1/peak, maxGain)
}
