package autoplay

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/19player/internal/domain/playlist"
	"github.com/osa030/19player/internal/domain/track"
)

// FileProviderConfig configures a provider backed by a local playlist file.
type FileProviderConfig struct {
	Path  string `mapstructure:"path" validate:"required"`
	Watch *bool  `mapstructure:"watch" default:"true"`
}

// FileProvider picks random entries from an M3U or PLS file. The file is
// reloaded when it changes on disk.
type FileProvider struct {
	path string

	mu     sync.RWMutex
	tracks []track.Track

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileProvider creates a new FileProvider.
func NewFileProvider(settings map[string]any) (*FileProvider, error) {
	var config FileProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}

	path, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid path %s", config.Path)
	}

	p := &FileProvider{path: path}
	if err := p.reload(); err != nil {
		return nil, err
	}
	if *config.Watch {
		if err := p.watch(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *FileProvider) reload() error {
	items, err := playlist.LoadFile(p.path)
	if err != nil {
		return errors.Wrapf(err, "failed to load %s", p.path)
	}

	tracks := lo.Map(items, func(it playlist.Item, _ int) track.Track {
		return track.Track{Name: it.Title, Artist: it.Artist, Duration: it.Duration, URL: it.URL}
	})

	p.mu.Lock()
	p.tracks = tracks
	p.mu.Unlock()

	zlog.Info().Msgf("autoplay: file provider loaded: path=%s tracks=%d", p.path, len(tracks))
	return nil
}

func (p *FileProvider) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	// the directory, so that files replaced by rename are still seen
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to watch %s", p.path)
	}

	p.watcher = w
	p.done = make(chan struct{})
	go p.watchLoop()
	return nil
}

func (p *FileProvider) watchLoop() {
	defer close(p.done)
	for {
		select {
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != p.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if err := p.reload(); err != nil {
				zlog.Warn().Msgf("autoplay: file provider reload failed: path=%s error=%v", p.path, err)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			zlog.Warn().Msgf("autoplay: file provider watch error: path=%s error=%v", p.path, err)
		}
	}
}

// Candidates implements Provider.
func (p *FileProvider) Candidates(_ context.Context, count int, _ []track.Track, exclude map[string]bool) ([]track.Track, error) {
	if count <= 0 {
		return []track.Track{}, nil
	}

	p.mu.RLock()
	available := lo.Filter(p.tracks, func(t track.Track, _ int) bool {
		return !exclude[t.URL]
	})
	p.mu.RUnlock()

	return lo.Samples(available, count), nil
}

// Name implements Provider.
func (p *FileProvider) Name() string {
	return TypeFile
}

// Close stops watching the file.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	<-p.done
	p.watcher = nil
	return err
}
