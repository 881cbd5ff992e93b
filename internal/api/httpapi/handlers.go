package httpapi

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19player/internal/app/session"
)

// PositionResponse reports the queue position of an enqueue.
type PositionResponse struct {
	Pos int `json:"pos"`
}

// CountResponse reports how many entries an operation affected.
type CountResponse struct {
	Count int `json:"count"`
}

// GotoRequest selects the entry to play.
type GotoRequest struct {
	Pos int `json:"pos"`
}

// SeekRequest moves within the track on air.
type SeekRequest struct {
	Ms       int64 `json:"ms"`
	Relative bool  `json:"relative"`
}

// MoveRequest moves entries by amount positions; negative moves up.
type MoveRequest struct {
	IDs    []int64 `json:"ids"`
	Amount int     `json:"amount"`
}

// OKResponse acknowledges a command.
type OKResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	st, err := s.session.Status(ctx)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	entries, err := s.session.Queue(ctx)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	req := session.EnqueueRequest{Pos: -1}
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	pos, err := s.session.Enqueue(ctx, req)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PositionResponse{Pos: pos})
}

func (s *Server) handleUnqueue(w http.ResponseWriter, r *http.Request) {
	var req session.UnqueueRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	n, err := s.session.Unqueue(ctx, req)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	n, err := s.session.Move(ctx, req.IDs, req.Amount)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	var req GotoRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, r, func(ctx context.Context) error { return s.session.Goto(ctx, req.Pos) })
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, r, func(ctx context.Context) error { return s.session.Seek(ctx, req.Ms, req.Relative) })
}

// handlePlayer runs the transport commands without a body.
func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	var fn func(context.Context) error
	switch action := r.PathValue("action"); action {
	case "play":
		fn = s.session.Play
	case "pause":
		fn = s.session.Pause
	case "toggle":
		fn = s.session.PlayOrPause
	case "stop":
		fn = s.session.Stop
	case "next":
		fn = s.session.Next
	case "prev":
		fn = s.session.Prev
	default:
		writeError(w, http.StatusNotFound, errors.Newf("unknown player action %q", action))
		return
	}
	s.command(w, r, fn)
}

func (s *Server) command(w http.ResponseWriter, r *http.Request, fn func(context.Context) error) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := fn(ctx); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	st, err := s.session.Settings(ctx)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req session.SettingsUpdate
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	st, err := s.session.UpdateSettings(ctx, req)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
