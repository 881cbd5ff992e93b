package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "verbose", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "player.log")
	require.NoError(t, Init(Config{Output: "file", Level: "warn", File: path}))
	t.Cleanup(func() {
		Close()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	zlog.Info().Msg("hidden")
	zlog.Warn().Msgf("player: stream failed: url=%s", "a.mp3")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "player: stream failed: url=a.mp3", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestInit_FileWithoutPath(t *testing.T) {
	assert.Error(t, Init(Config{Output: "file"}))
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("home", "src", "internal", "app", "queue", "select.go")
	assert.Equal(t, filepath.Join("queue", "select.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:1", shortCaller(0, "main.go", 1))
}
