package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19player/internal/api/httpapi"
	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/session"
)

type recorded struct {
	method string
	path   string
	token  string
	body   map[string]any
}

func newRecordingServer(t *testing.T, reply any) (*httptest.Server, <-chan recorded) {
	t.Helper()
	calls := make(chan recorded, 8)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, token: r.Header.Get(httpapi.TokenHeader)}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		calls <- rec
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(ts.Close)
	return ts, calls
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		reply      any
		wantMethod string
		wantPath   string
		wantBody   map[string]any
		wantOut    string
	}{
		{
			name:       "play",
			args:       []string{"play"},
			reply:      httpapi.OKResponse{OK: true},
			wantMethod: http.MethodPost,
			wantPath:   "/api/v1/player/play",
			wantOut:    "OK",
		},
		{
			name:       "goto",
			args:       []string{"goto", "3"},
			reply:      httpapi.OKResponse{OK: true},
			wantMethod: http.MethodPost,
			wantPath:   "/api/v1/player/goto",
			wantBody:   map[string]any{"pos": float64(3)},
		},
		{
			name:       "seek relative",
			args:       []string{"seek", "--by=-5000"},
			reply:      httpapi.OKResponse{OK: true},
			wantMethod: http.MethodPost,
			wantPath:   "/api/v1/player/seek",
			wantBody:   map[string]any{"ms": float64(-5000), "relative": true},
		},
		{
			name:       "add",
			args:       []string{"add", "--next", "/a.mp3", "/b.mp3"},
			reply:      httpapi.PositionResponse{Pos: 4},
			wantMethod: http.MethodPost,
			wantPath:   "/api/v1/queue",
			wantBody:   map[string]any{"urls": []any{"/a.mp3", "/b.mp3"}, "pos": float64(-1), "play_next": true, "play": false},
			wantOut:    "Enqueued at position 4",
		},
		{
			name:       "remove",
			args:       []string{"rm", "--id", "7", "--id", "9"},
			reply:      httpapi.CountResponse{Count: 2},
			wantMethod: http.MethodDelete,
			wantPath:   "/api/v1/queue",
			wantOut:    "Removed 2 entries",
		},
		{
			name:       "move down",
			args:       []string{"move", "7", "--down", "2"},
			reply:      httpapi.CountResponse{Count: 2},
			wantMethod: http.MethodPost,
			wantPath:   "/api/v1/queue/move",
			wantBody:   map[string]any{"ids": []any{float64(7)}, "amount": float64(2)},
		},
		{
			name:       "show settings",
			args:       []string{"set"},
			reply:      session.Settings{Repeat: "off", Volume: 240},
			wantMethod: http.MethodGet,
			wantPath:   "/api/v1/settings",
			wantOut:    "volume=240",
		},
		{
			name:       "change settings",
			args:       []string{"set", "--shuffle=on", "--volume=0"},
			reply:      session.Settings{Shuffle: true},
			wantMethod: http.MethodPut,
			wantPath:   "/api/v1/settings",
			wantBody:   map[string]any{"shuffle": true, "volume": float64(0)},
		},
		{
			name:       "queue",
			args:       []string{"queue"},
			reply:      []notification.TrackInfo{{ID: 1, URL: "/a.mp3", Artist: "Artist", Name: "Title", DurationMs: 61000}},
			wantMethod: http.MethodGet,
			wantPath:   "/api/v1/queue",
			wantOut:    "Artist - Title  (1:01)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, calls := newRecordingServer(t, tt.reply)
			var out bytes.Buffer

			_, err := newCLI().run(context.Background(), tt.args, NewClient(ts.URL, "secret", nil), &out)
			require.NoError(t, err)

			require.Len(t, calls, 1)
			got := <-calls
			assert.Equal(t, tt.wantMethod, got.method)
			assert.Equal(t, tt.wantPath, got.path)
			assert.Equal(t, "secret", got.token)
			if tt.wantBody != nil {
				assert.Equal(t, tt.wantBody, got.body)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func TestCommandErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid queue position"}`))
	}))
	defer ts.Close()

	_, err := newCLI().run(context.Background(), []string{"goto", "99"}, NewClient(ts.URL, "", nil), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid queue position")

	_, err = newCLI().run(context.Background(), []string{"move", "1"}, NewClient(ts.URL, "", nil), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestEvents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": subscribed x\n\n" +
			"id: 1\nevent: state_changed\ndata: {\"sequence_no\":1,\"type\":\"state_changed\",\"state\":\"playing\"}\n\n" +
			"id: 2\nevent: session_ended\ndata: {\"sequence_no\":2,\"type\":\"session_ended\",\"state\":\"stopped\"}\n\n"))
	}))
	defer ts.Close()

	var got []notification.Type
	err := NewClient(ts.URL, "", nil).Events(context.Background(), func(n *notification.Notification) {
		got = append(got, n.Type)
	})
	require.NoError(t, err)
	assert.Equal(t, []notification.Type{notification.TypeStateChanged, notification.TypeSessionEnded}, got)
}
