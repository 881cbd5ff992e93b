// Package main provides the player daemon entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/api/httpapi"
	"github.com/osa030/19player/internal/app/autoplay"
	"github.com/osa030/19player/internal/app/filter"
	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/session"
	"github.com/osa030/19player/internal/backend/factory"
	backendspotify "github.com/osa030/19player/internal/backend/spotify"
	"github.com/osa030/19player/internal/infra/config"
	"github.com/osa030/19player/internal/infra/logger"
	"github.com/osa030/19player/internal/infra/metadata"
	"github.com/osa030/19player/internal/infra/spotify"
)

var (
	app        = kingpin.New("19player", "19player jukebox daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: from config)").String()

	// list-backends command
	listBackendsCmd = app.Command("list-backends", "List available backends and exit")
	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available autoplay filters and exit")
)

func init() {
	app.Command("start", "Start the player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listBackendsCmd.FullCommand() {
		printBackends()
		return
	}
	if command == listFiltersCmd.FullCommand() {
		printFilters(*configPath)
		return
	}

	if err := logger.Init(loggerConfig(config.LogConfig{})); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if err := logger.Init(loggerConfig(cfg.Log)); err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		logger.Close()
		os.Exit(1)
	}
}

// loggerConfig merges the log section with the command-line flags; flags win.
func loggerConfig(c config.LogConfig) logger.Config {
	lc := logger.Config{Output: c.Output, Level: c.Level, File: c.File}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if *verbose {
		lc.Level = "debug"
	}
	if *logfile != "" {
		lc.Output = "file"
		lc.File = *logfile
	}
	return lc
}

// run executes the daemon. Using a separate function ensures deferred
// cleanups run before exiting with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Interfaces stay nil unless a client exists.
	var (
		remote  backendspotify.Remote
		catalog autoplay.SpotifyClient
		tracks  metadata.TrackGetter
	)
	if cfg.Spotify.Configured() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		if err := validatePlaylists(ctx, cfg, client); err != nil {
			return errors.Wrap(err, "playlist validation failed")
		}
		remote, catalog, tracks = client, client, client
	} else {
		zlog.Info().Msg("Spotify not configured, spotify features disabled")
	}

	if cfg.Backend.Type == backendspotify.Name && cfg.Spotify.DeviceID != "" {
		if cfg.Backend.Settings == nil {
			cfg.Backend.Settings = map[string]any{}
		}
		if _, ok := cfg.Backend.Settings["device_id"]; !ok {
			cfg.Backend.Settings["device_id"] = cfg.Spotify.DeviceID
		}
	}
	b, err := factory.New(cfg.Backend, remote)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			zlog.Error().Msgf("Failed to close backend: %v", err)
		}
	}()

	var source autoplay.Source
	if len(cfg.Autoplay.Providers) > 0 {
		chain, err := autoplay.NewChainFromConfig(cfg.Autoplay, catalog)
		if err != nil {
			return errors.Wrap(err, "failed to create autoplay providers")
		}
		defer func() {
			if err := chain.Close(); err != nil {
				zlog.Error().Msgf("Failed to close autoplay providers: %v", err)
			}
		}()
		source = chain
	}

	filters, err := filter.NewChainFromConfig(cfg.Autoplay.Filters)
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	notificationMgr := notification.NewManager(
		notification.WithSendTimeout(time.Duration(cfg.Server.EventSendTimeoutMs) * time.Millisecond),
	)
	sessionMgr, err := session.New(cfg, session.Options{
		Backend:      b,
		Autoplay:     source,
		Filters:      filters,
		Loader:       metadata.New(tracks),
		Notification: notificationMgr,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}

	api := httpapi.New(sessionMgr, httpapi.WithToken(cfg.Server.Token))
	server := api.NewHTTPServer(cfg.Server.Addr)
	serverErrCh := make(chan error, 1)

	if err := sessionMgr.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start session")
	}

	go func() {
		zlog.Info().Msgf("Starting control API: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("Received %s, shutting down...", sig)
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session ended, shutting down...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// End event streams first so Shutdown does not wait for them.
	api.Close()
	if err := sessionMgr.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to stop session: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	zlog.Info().Msg("Player stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return runErr
}

// printBackends prints the backends known to this build.
func printBackends() {
	fmt.Println("Available Backends:")
	for _, info := range factory.List() {
		avail := ""
		if !info.Available {
			avail = " (not available in this build)"
		}
		fmt.Printf("  %-10s - %s%s\n", info.Name, info.Description, avail)
	}
}

// printFilters prints the available autoplay filters. Filters enabled in the
// config file are marked when it can be read.
func printFilters(path string) {
	var af config.AutoplayConfig
	if cfg, err := config.Load(path); err == nil {
		af = cfg.Autoplay
	}

	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.Names() {
		f := registry[name]()
		mark := " "
		if af.IsFilterEnabled(name) {
			mark = "*"
		}
		fmt.Printf(" %s %-25s - %s\n", mark, f.Name(), f.Description())
		fmt.Printf("   %-25s   codes: %s\n", "", strings.Join(f.ReturnCodes(), ", "))
	}
}

// validatePlaylists checks that configured spotify_playlist providers point
// at existing playlists. Transient errors during startup are retried.
func validatePlaylists(ctx context.Context, cfg *config.Config, client *spotify.Client) error {
	const maxRetries = 5
	baseDelay := 1 * time.Second

	for _, p := range cfg.Autoplay.Providers {
		if p.Type != autoplay.TypeSpotifyPlaylist {
			continue
		}
		url, _ := p.Settings["playlist_url"].(string)
		if url == "" {
			continue
		}
		zlog.Info().Msgf("Validating autoplay playlist: provider=%s url=%s", p.DisplayName, url)

		var lastErr error
		for i := 0; i < maxRetries; i++ {
			if i > 0 {
				delay := baseDelay * time.Duration(1<<uint(i-1))
				zlog.Info().Msgf("Retrying playlist validation in %v...", delay)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			if lastErr = client.CheckPlaylistExists(ctx, url); lastErr == nil {
				break
			}
			zlog.Warn().Msgf("Failed to validate playlist (attempt %d/%d): %v", i+1, maxRetries, lastErr)
		}
		if lastErr != nil {
			return errors.Wrapf(lastErr, "playlist %s", url)
		}
	}
	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
