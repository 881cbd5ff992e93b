// Package main provides the control client entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/chzyer/readline"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	c := newCLI()
	command, err := c.app.Parse(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("%v, try --help", err)
	}

	client := NewClient(*c.server, *c.token, nil)
	if command == c.shell.FullCommand() {
		if err := shell(client); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if _, err := newCLI().run(context.Background(), os.Args[1:], client, os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// shell reads commands interactively until "exit" or EOF.
func shell(client *Client) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "19player> ",
		HistoryFile:     historyFile(),
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("Type a command (help for a list, exit to quit).")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return nil
		case "shell":
			continue
		}

		c := newCLI()
		c.app.Terminate(nil)
		c.app.UsageWriter(rl.Stdout())
		c.app.ErrorWriter(rl.Stderr())
		if _, err := c.run(context.Background(), args, client, rl.Stdout()); err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
	}
}

func completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range newCLI().app.Model().Commands {
		if cmd.Name == "shell" {
			continue
		}
		items = append(items, readline.PcItem(cmd.Name))
	}
	items = append(items, readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "19player-ctl.history")
}
