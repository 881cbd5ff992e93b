// Package httpapi serves the JSON control API and the notification event
// stream over HTTP/1.1 and HTTP/2 cleartext.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/session"
)

const (
	// TokenHeader carries the API token.
	TokenHeader = "X-Api-Token"

	defaultRequestTimeout = 10 * time.Second
	defaultKeepAlive      = 15 * time.Second
	eventBuffer           = 256
)

// Session is the part of the session manager the API drives.
type Session interface {
	Status(ctx context.Context) (session.Status, error)
	Queue(ctx context.Context) ([]notification.TrackInfo, error)
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	PlayOrPause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	Goto(ctx context.Context, pos int) error
	Seek(ctx context.Context, ms int64, relative bool) error
	Enqueue(ctx context.Context, req session.EnqueueRequest) (int, error)
	Unqueue(ctx context.Context, req session.UnqueueRequest) (int, error)
	Move(ctx context.Context, ids []int64, amount int) (int, error)
	Settings(ctx context.Context) (session.Settings, error)
	UpdateSettings(ctx context.Context, u session.SettingsUpdate) (session.Settings, error)
	Notification() *notification.Manager
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires token in the TokenHeader of every request.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithRequestTimeout limits how long a request waits for the main loop.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithKeepAlive sets the interval of comment lines on idle event streams.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

// Server is the control API.
type Server struct {
	session        Session
	token          string
	requestTimeout time.Duration
	keepAlive      time.Duration
	mux            *http.ServeMux

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates the API for s.
func New(s Session, opts ...Option) *Server {
	srv := &Server{
		session:        s,
		requestTimeout: defaultRequestTimeout,
		keepAlive:      defaultKeepAlive,
		mux:            http.NewServeMux(),
		closed:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/v1/queue", s.handleQueue)
	s.mux.HandleFunc("POST /api/v1/queue", s.handleEnqueue)
	s.mux.HandleFunc("DELETE /api/v1/queue", s.handleUnqueue)
	s.mux.HandleFunc("POST /api/v1/queue/move", s.handleMove)
	s.mux.HandleFunc("POST /api/v1/player/goto", s.handleGoto)
	s.mux.HandleFunc("POST /api/v1/player/seek", s.handleSeek)
	s.mux.HandleFunc("POST /api/v1/player/{action}", s.handlePlayer)
	s.mux.HandleFunc("GET /api/v1/settings", s.handleSettings)
	s.mux.HandleFunc("PUT /api/v1/settings", s.handleUpdateSettings)
	s.mux.HandleFunc("GET /api/v1/events", s.handleEvents)
}

// Handler returns the API handler, accepting HTTP/2 without TLS.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(s.authenticate(s.mux), &http2.Server{})
}

// NewHTTPServer returns an http.Server serving the API on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Close ends all open event streams.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// authenticate rejects requests without the configured token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, errors.New("invalid or missing token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestContext bounds a request to the request timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Msgf("httpapi: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeSessionError maps session errors to status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidArgument), errors.Is(err, session.ErrInvalidPosition):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, session.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err)
	default:
		zlog.Error().Msgf("httpapi: request failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return false
	}
	return true
}
