package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cfgd/cfgd-go/pkg/client"
	"github.com/cfgd/cfgd-go/pkg/storage"
)

// errUsage reports wrong arguments to a command.
var errUsage = errors.New("usage")

// commander runs database commands against one engine.
type commander struct {
	rt  *client.Runtime
	eng *client.Engine
	out io.Writer

	// valueType is used by set when the command line names no type.
	valueType storage.ValueType
}

type command struct {
	usage string
	help  string
	run   func(c *commander, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"get":         {"get <key>...", "Print values", (*commander).get},
	"set":         {"set <key> <value> [type]", "Store a value", (*commander).set},
	"unset":       {"unset <key>...", "Remove values", (*commander).unset},
	"ls":          {"ls [dir]", "List entries and subdirectories", (*commander).list},
	"dirs":        {"dirs [dir]", "List subdirectories", (*commander).dirs},
	"exists":      {"exists <dir>", "Report whether a directory exists", (*commander).exists},
	"watch":       {"watch <dir>", "Print changes below dir until interrupted", (*commander).watch},
	"sync":        {"sync", "Flush the database to disk", (*commander).sync},
	"clear-cache": {"clear-cache", "Drop server and client caches", (*commander).clearCache},
	"ping":        {"ping", "Print the server pid", (*commander).ping},
	"shutdown":    {"shutdown", "Stop the server", (*commander).shutdown},
}

func (c *commander) dispatch(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	err := cmd.run(c, ctx, args)
	if errors.Is(err, errUsage) {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return err
}

func formatEntry(e storage.Entry) string {
	var b strings.Builder
	b.WriteString(e.Key)
	if e.Value == nil {
		b.WriteString(" is unset")
	} else {
		fmt.Fprintf(&b, " = %s (%s)", e.Value, e.Value.Type)
	}
	if e.IsDefault {
		b.WriteString(" [default]")
	}
	if !e.IsWritable {
		b.WriteString(" [read-only]")
	}
	return b.String()
}

func dirArg(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "/", nil
	case 1:
		return args[0], nil
	}
	return "", errUsage
}

func (c *commander) get(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, key := range args {
		e, err := c.eng.Get(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, formatEntry(e))
	}
	return nil
}

func (c *commander) set(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	t := c.valueType
	if len(args) == 3 {
		var err error
		if t, err = storage.ParseValueType(args[2]); err != nil {
			return err
		}
	}
	v, err := storage.ParseValue(t, args[1])
	if err != nil {
		return err
	}
	return c.eng.Set(ctx, args[0], v)
}

func (c *commander) unset(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, key := range args {
		if err := c.eng.Unset(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *commander) list(ctx context.Context, args []string) error {
	dir, err := dirArg(args)
	if err != nil {
		return err
	}
	dirs, err := c.eng.AllDirs(ctx, dir)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		fmt.Fprintf(c.out, "%s/\n", d)
	}
	entries, err := c.eng.AllEntries(ctx, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(c.out, formatEntry(e))
	}
	return nil
}

func (c *commander) dirs(ctx context.Context, args []string) error {
	dir, err := dirArg(args)
	if err != nil {
		return err
	}
	dirs, err := c.eng.AllDirs(ctx, dir)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		fmt.Fprintln(c.out, d)
	}
	return nil
}

func (c *commander) exists(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	ok, err := c.eng.DirExists(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, ok)
	return nil
}

func (c *commander) watch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := c.eng.Subscribe(ctx, args[0], client.HandlerFunc(func(ev client.Event) {
		fmt.Fprintf(c.out, "[%d] %s\n", ev.ClientID, formatEntry(ev.Entry))
	}), nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "watching %s (subscription %d)\n", args[0], id)
	<-ctx.Done()
	c.eng.Unsubscribe(context.WithoutCancel(ctx), id)
	return nil
}

func (c *commander) sync(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	return c.eng.Sync(ctx)
}

func (c *commander) clearCache(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	return c.eng.ClearCache(ctx)
}

func (c *commander) ping(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	pid, err := c.rt.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "server pid %d\n", pid)
	return nil
}

func (c *commander) shutdown(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	return c.rt.ShutdownServer(ctx)
}
