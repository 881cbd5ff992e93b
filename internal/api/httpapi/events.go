package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/notification"
)

// handleEvents streams notifications as server-sent events until the client
// goes away or the server closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	stream := notification.NewChannelStream(eventBuffer)
	nm := s.session.Notification()
	id := nm.Subscribe(stream)
	defer nm.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": subscribed %s\n\n", id)
	flusher.Flush()

	zlog.Info().Msgf("httpapi: event stream opened: subscription_id=%s remote=%s", id, r.RemoteAddr)
	defer zlog.Info().Msgf("httpapi: event stream closed: subscription_id=%s", id)

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closed:
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case n := <-stream.C():
			if err := writeEvent(w, n); err != nil {
				zlog.Debug().Msgf("httpapi: event write failed: subscription_id=%s error=%v", id, err)
				return
			}
			flusher.Flush()
			if n.Type == notification.TypeSessionEnded {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, n *notification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.SequenceNo, n.Type, data)
	return err
}
