package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/cfgd/cfgd-go/pkg/client"
)

// shell runs commands read interactively. Subscriptions made with watch
// stay active until unwatch or exit and print through the readline
// writer so they do not garble the prompt.
type shell struct {
	*commander
	rl *readline.Instance
}

func newShell(c *commander) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cfgd> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	sc := *c
	sc.out = rl.Stdout()
	return &shell{commander: &sc, rl: rl}, nil
}

// Run reads commands until EOF, exit or ctx is done.
func (s *shell) Run(ctx context.Context) {
	defer s.rl.Close()

	var watches []uint64
	defer func() {
		for _, id := range watches {
			s.eng.Unsubscribe(context.WithoutCancel(ctx), id)
		}
	}()

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "exit", "quit", "q":
			return

		case "watch":
			if id, ok := s.watch(ctx, args); ok {
				watches = append(watches, id)
			}

		case "unwatch":
			watches = s.unwatch(ctx, args, watches)

		default:
			if err := s.dispatch(ctx, cmd, args); err != nil {
				fmt.Fprintf(s.rl.Stderr(), "error: %v\n", err)
			}
		}
	}
}

func (s *shell) watch(ctx context.Context, args []string) (uint64, bool) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stderr(), "usage: watch <dir>")
		return 0, false
	}
	out := s.rl.Stdout()
	id, err := s.eng.Subscribe(ctx, args[0], client.HandlerFunc(func(ev client.Event) {
		fmt.Fprintf(out, "[%d] %s\n", ev.ClientID, formatEntry(ev.Entry))
	}), nil)
	if err != nil {
		fmt.Fprintf(s.rl.Stderr(), "error: %v\n", err)
		return 0, false
	}
	fmt.Fprintf(out, "watching %s (subscription %d)\n", args[0], id)
	return id, true
}

func (s *shell) unwatch(ctx context.Context, args []string, watches []uint64) []uint64 {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stderr(), "usage: unwatch <id>")
		return watches
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(s.rl.Stderr(), "error: bad subscription id %q\n", args[0])
		return watches
	}
	for i, w := range watches {
		if w == id {
			s.eng.Unsubscribe(ctx, id)
			return append(watches[:i], watches[i+1:]...)
		}
	}
	fmt.Fprintf(s.rl.Stderr(), "error: no subscription %d\n", id)
	return watches
}

func (s *shell) printHelp() {
	printCommands(s.rl.Stdout())
	fmt.Fprintln(s.rl.Stdout(), "  unwatch <id>              Stop a watch started in this shell")
	fmt.Fprintln(s.rl.Stdout(), "  exit                      Leave the shell")
}

func printCommands(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "Commands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-25s %s\n", commands[name].usage, commands[name].help)
	}
}
