package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"

	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/session"
)

type handler func(ctx context.Context, c *Client, out io.Writer) error

// cli is the command set. A fresh one is built per shell line so that
// accumulated argument values never leak between commands.
type cli struct {
	app      *kingpin.Application
	server   *string
	token    *string
	shell    *kingpin.CmdClause
	handlers map[string]handler
}

func newCLI() *cli {
	c := &cli{
		app:      kingpin.New("19player-ctl", "19player control client"),
		handlers: make(map[string]handler),
	}
	c.server = c.app.Flag("server", "Player API address").Default("http://127.0.0.1:8019").Envar("PLAYER_SERVER").String()
	c.token = c.app.Flag("token", "API token (or set PLAYER_API_TOKEN env)").Envar("PLAYER_API_TOKEN").String()

	c.shell = c.app.Command("shell", "Interactive shell")

	c.add(c.app.Command("status", "Show the player status"), func(ctx context.Context, cl *Client, out io.Writer) error {
		s, err := cl.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(out, s)
		return nil
	})

	c.add(c.app.Command("queue", "List the queue").Alias("ls"), func(ctx context.Context, cl *Client, out io.Writer) error {
		entries, err := cl.Queue(ctx)
		if err != nil {
			return err
		}
		printQueue(out, entries)
		return nil
	})

	for _, action := range []struct{ name, help string }{
		{"play", "Start playback"},
		{"pause", "Pause playback"},
		{"toggle", "Toggle play/pause"},
		{"stop", "Stop playback"},
		{"next", "Play the next track"},
		{"prev", "Play the previous track"},
	} {
		name := action.name
		c.add(c.app.Command(name, action.help), func(ctx context.Context, cl *Client, out io.Writer) error {
			if err := cl.Player(ctx, name); err != nil {
				return err
			}
			fmt.Fprintln(out, "OK")
			return nil
		})
	}

	gotoCmd := c.app.Command("goto", "Play the entry at a queue position")
	gotoPos := gotoCmd.Arg("pos", "Queue position (0-based)").Required().Int()
	c.add(gotoCmd, func(ctx context.Context, cl *Client, out io.Writer) error {
		if err := cl.Goto(ctx, *gotoPos); err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
		return nil
	})

	seekCmd := c.app.Command("seek", "Seek within the current track")
	seekMs := seekCmd.Arg("ms", "Absolute position in milliseconds").Int64()
	seekBy := seekCmd.Flag("by", "Relative offset in milliseconds, e.g. --by=-5000").Int64()
	c.add(seekCmd, func(ctx context.Context, cl *Client, out io.Writer) error {
		var err error
		if *seekBy != 0 {
			err = cl.Seek(ctx, *seekBy, true)
		} else {
			err = cl.Seek(ctx, *seekMs, false)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "OK")
		return nil
	})

	addCmd := c.app.Command("add", "Enqueue urls or local paths")
	addURLs := addCmd.Arg("url", "URLs to enqueue").Required().Strings()
	addPos := addCmd.Flag("pos", "Insert before this position (-1 appends)").Default("-1").Int()
	addNext := addCmd.Flag("next", "Play the first url next").Bool()
	addPlay := addCmd.Flag("play", "Play the first url now").Bool()
	c.add(addCmd, func(ctx context.Context, cl *Client, out io.Writer) error {
		pos, err := cl.Enqueue(ctx, session.EnqueueRequest{URLs: *addURLs, Pos: *addPos, PlayNext: *addNext, Play: *addPlay})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Enqueued at position %d\n", pos)
		return nil
	})

	rmCmd := c.app.Command("remove", "Remove entries from the queue").Alias("rm")
	rmIDs := rmCmd.Flag("id", "Entry id (repeatable)").Int64List()
	rmURLs := rmCmd.Flag("url", "Entry url (repeatable)").Strings()
	rmAll := rmCmd.Flag("all", "Remove everything").Bool()
	rmPlayed := rmCmd.Flag("played", "Remove entries already played").Bool()
	c.add(rmCmd, func(ctx context.Context, cl *Client, out io.Writer) error {
		n, err := cl.Unqueue(ctx, session.UnqueueRequest{IDs: *rmIDs, URLs: *rmURLs, All: *rmAll, Played: *rmPlayed})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d entries\n", n)
		return nil
	})

	moveCmd := c.app.Command("move", "Move entries up or down")
	moveIDs := moveCmd.Arg("id", "Entry ids").Required().Int64List()
	moveUp := moveCmd.Flag("up", "Positions to move up").Int()
	moveDown := moveCmd.Flag("down", "Positions to move down").Int()
	c.add(moveCmd, func(ctx context.Context, cl *Client, out io.Writer) error {
		amount := *moveDown - *moveUp
		if amount == 0 {
			return errors.New("use --up or --down")
		}
		n, err := cl.Move(ctx, *moveIDs, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Moved by %d\n", n)
		return nil
	})

	c.addSettings()

	eventsCmd := c.app.Command("events", "Print notifications until interrupted")
	c.add(eventsCmd, func(ctx context.Context, cl *Client, out io.Writer) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintln(out, "Subscribed to notifications. Press Ctrl+C to exit.")
		return cl.Events(ctx, func(n *notification.Notification) { printNotification(out, n) })
	})

	return c
}

func (c *cli) add(cmd *kingpin.CmdClause, h handler) {
	c.handlers[cmd.FullCommand()] = h
}

// addSettings registers "set". Unset flags leave the setting unchanged.
func (c *cli) addSettings() {
	cmd := c.app.Command("set", "Show or change settings")
	var (
		shuffle       = cmd.Flag("shuffle", "Shuffle (on|off)").Enum("on", "off")
		repeat        = cmd.Flag("repeat", "Repeat mode").Enum("off", "all", "single")
		mute          = cmd.Flag("mute", "Mute (on|off)").Enum("on", "off")
		stopAfterThis = cmd.Flag("stop-after-this", "Stop after the current track (on|off)").Enum("on", "off")
		stopAfterEach = cmd.Flag("stop-after-each", "Stop after each track (on|off)").Enum("on", "off")
		removePlayed  = cmd.Flag("remove-played", "Remove played entries (on|off)").Enum("on", "off")
		autoplay      = cmd.Flag("autoplay", "Auto-play (on|off)").Enum("on", "off")
	)
	var (
		volume, intensity, wait          int
		volumeSet, intensitySet, waitSet bool
	)
	cmd.Flag("volume", "Volume 0..255").IsSetByUser(&volumeSet).IntVar(&volume)
	cmd.Flag("intensity", "Shuffle intensity 0..100").IsSetByUser(&intensitySet).IntVar(&intensity)
	cmd.Flag("autoplay-wait", "Idle minutes before auto-play").IsSetByUser(&waitSet).IntVar(&wait)

	c.add(cmd, func(ctx context.Context, cl *Client, out io.Writer) error {
		u := session.SettingsUpdate{
			Shuffle:            onOff(*shuffle),
			Muted:              onOff(*mute),
			StopAfterThisTrack: onOff(*stopAfterThis),
			StopAfterEachTrack: onOff(*stopAfterEach),
			RemovePlayed:       onOff(*removePlayed),
			AutoplayEnabled:    onOff(*autoplay),
		}
		if *repeat != "" {
			u.Repeat = repeat
		}
		if volumeSet {
			u.Volume = &volume
		}
		if intensitySet {
			u.ShuffleIntensity = &intensity
		}
		if waitSet {
			u.AutoplayWaitMinutes = &wait
		}

		var (
			s   session.Settings
			err error
		)
		if u == (session.SettingsUpdate{}) {
			s, err = cl.Settings(ctx)
		} else {
			s, err = cl.UpdateSettings(ctx, u)
		}
		if err != nil {
			return err
		}
		printSettings(out, s)
		return nil
	})
}

func onOff(v string) *bool {
	switch v {
	case "on":
		b := true
		return &b
	case "off":
		b := false
		return &b
	default:
		return nil
	}
}

// run parses args and executes the selected command.
func (c *cli) run(ctx context.Context, args []string, client *Client, out io.Writer) (string, error) {
	command, err := c.app.Parse(args)
	if err != nil {
		return "", err
	}
	h, ok := c.handlers[command]
	if !ok {
		return command, nil
	}
	if client == nil {
		client = NewClient(*c.server, *c.token, nil)
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout(command))
	defer cancel()
	return command, h(ctx, client, out)
}

func requestTimeout(command string) time.Duration {
	if command == "events" {
		return 365 * 24 * time.Hour
	}
	return 15 * time.Second
}

func printStatus(out io.Writer, s session.Status) {
	fmt.Fprintln(out, "\n=== PLAYER STATUS ===")
	fmt.Fprintf(out, "Session: %s (%s, since %s)\n", s.SessionID, s.Phase, s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "State: %s\n", s.State)
	fmt.Fprintf(out, "Queue: %d entries, %d unplayed, %s left\n", s.QueueCount, s.UnplayedCount, formatMs(s.EnqueueTimeMs))
	if s.Track != nil {
		fmt.Fprintf(out, "\nCurrent (#%d, id %d):\n", s.Track.Pos, s.Track.ID)
		fmt.Fprintf(out, "  %s\n", describe(*s.Track))
		fmt.Fprintf(out, "  URL: %s\n", s.Track.URL)
		fmt.Fprintf(out, "  Time: %s / %s\n", formatMs(s.ElapsedMs), formatMs(s.TotalMs))
		if s.AutoplayOnAir {
			fmt.Fprintf(out, "  Auto-play (%d left)\n", s.AutoplayTracksLeft)
		}
	} else {
		fmt.Fprintln(out, "\nNo current track")
	}
	fmt.Fprintln(out)
}

func printQueue(out io.Writer, entries []notification.TrackInfo) {
	fmt.Fprintf(out, "Queue (%d):\n", len(entries))
	for _, e := range entries {
		marks := ""
		if e.Autoplay {
			marks += " [auto]"
		}
		if e.Erroneous {
			marks += " [error]"
		}
		fmt.Fprintf(out, "  %3d  id=%-5d plays=%d  %s  (%s)%s\n", e.Pos, e.ID, e.PlayCount, describe(e), formatMs(e.DurationMs), marks)
	}
}

func printSettings(out io.Writer, s session.Settings) {
	fmt.Fprintf(out, "shuffle=%v intensity=%d repeat=%s\n", s.Shuffle, s.ShuffleIntensity, s.Repeat)
	fmt.Fprintf(out, "volume=%d muted=%v\n", s.Volume, s.Muted)
	fmt.Fprintf(out, "stop_after_this=%v stop_after_each=%v remove_played=%v\n", s.StopAfterThisTrack, s.StopAfterEachTrack, s.RemovePlayed)
	fmt.Fprintf(out, "boredom tracks=%v (%dmin) artists=%v (%dmin)\n",
		s.AvoidBoredomTracks, s.BoredomTrackMinutes, s.AvoidBoredomArtists, s.BoredomArtistMinutes)
	fmt.Fprintf(out, "autoplay=%v wait=%dmin tracks=%d\n", s.AutoplayEnabled, s.AutoplayWaitMinutes, s.AutoplayNumTracks)
}

func printNotification(out io.Writer, n *notification.Notification) {
	track := "-"
	if n.Track != nil {
		track = describe(*n.Track)
	}
	fmt.Fprintf(out, "[%s] #%d %-20s state=%-7s queue=%d %s\n",
		n.Time.Format("15:04:05"), n.SequenceNo, n.Type, n.State, n.QueueCount, track)
}

func describe(t notification.TrackInfo) string {
	switch {
	case t.Artist != "" && t.Name != "":
		return t.Artist + " - " + t.Name
	case t.Name != "":
		return t.Name
	default:
		return t.URL
	}
}

func formatMs(ms int64) string {
	if ms < 0 {
		return "?"
	}
	sec := ms / 1000
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}
