// Package main provides the Spotify authentication tool.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/19player/internal/infra/logger"
	"github.com/osa030/19player/internal/infra/spotify"
)

var (
	app          = kingpin.New("19player-auth", "Spotify authentication tool for 19player")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	timeout      = app.Flag("timeout", "How long to wait for the authorization").Default("5m").Duration()
)

const completePage = `<!DOCTYPE html>
<html>
<head><title>19player - Authorization Complete</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 20vh">
  <h1>Authorization Complete</h1>
  <p>You can close this window and return to the terminal.</p>
</body>
</html>
`

// callback receives the authorization code and exchanges it for a token.
type callback struct {
	auth   *spotifyauth.Authenticator
	state  string
	tokens chan *oauth2.Token
}

func (c *callback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if st := r.FormValue("state"); st != c.state {
		http.Error(w, "State mismatch", http.StatusForbidden)
		zlog.Warn().Msgf("auth: state mismatch: got=%s", st)
		return
	}

	token, err := c.auth.Token(r.Context(), c.state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusForbidden)
		zlog.Error().Msgf("auth: failed to get token: %v", err)
		return
	}

	fmt.Fprint(w, completePage)
	select {
	case c.tokens <- token:
	default:
	}
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	token, err := authorize()
	if err != nil {
		zlog.Fatal().Msgf("Authorization failed: %v", err)
	}
	printToken(token)
}

func authorize() (*oauth2.Token, error) {
	cb := &callback{
		auth: spotifyauth.New(
			spotifyauth.WithRedirectURL(fmt.Sprintf("http://127.0.0.1:%d/callback", *port)),
			spotifyauth.WithClientID(*clientID),
			spotifyauth.WithClientSecret(*clientSecret),
			spotifyauth.WithScopes(spotify.Scopes...),
		),
		state:  uuid.NewString(),
		tokens: make(chan *oauth2.Token, 1),
	}

	mux := http.NewServeMux()
	mux.Handle("/callback", cb)
	server := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", *port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			zlog.Warn().Msgf("auth: failed to shutdown callback server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize 19player:")
	fmt.Println()
	fmt.Println(cb.auth.AuthURL(cb.state))
	fmt.Println()
	fmt.Println("Waiting for authorization...")

	select {
	case token := <-cb.tokens:
		return token, nil
	case err := <-errCh:
		return nil, errors.Wrap(err, "callback server failed")
	case <-time.After(*timeout):
		return nil, errors.Newf("no authorization within %v", *timeout)
	}
}

func printToken(token *oauth2.Token) {
	fmt.Println()
	fmt.Println("=== Authorization Successful ===")
	fmt.Println()
	fmt.Println("Refresh Token:")
	fmt.Println(token.RefreshToken)
	fmt.Println()
	fmt.Println("Add this to your player.yaml:")
	fmt.Println()
	fmt.Println("spotify:")
	fmt.Printf("  refresh_token: \"%s\"\n", token.RefreshToken)
	fmt.Println()
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", token.RefreshToken)
}
