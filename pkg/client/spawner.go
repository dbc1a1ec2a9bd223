package client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Spawner starts a server process when none is reachable.
type Spawner interface {
	// Spawn starts the server and returns without waiting for it to
	// become reachable.
	Spawn(ctx context.Context) error
}

// ExecSpawner runs a server binary in the background.
type ExecSpawner struct {
	// Path is the cfgd binary. Resolved through PATH when it has no
	// separator.
	Path string

	// Args are passed to the binary.
	Args []string

	// Env is appended to the current environment.
	Env []string
}

// Spawn implements Spawner.
func (s *ExecSpawner) Spawn(context.Context) error {
	path := s.Path
	if path == "" {
		path = "cfgd"
	}
	path, err := exec.LookPath(path)
	if err != nil {
		return fmt.Errorf("locate server binary: %w", err)
	}

	// Not tied to ctx: the server outlives the call that started it.
	cmd := exec.Command(path, s.Args...)
	cmd.Env = append(os.Environ(), s.Env...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

var _ Spawner = (*ExecSpawner)(nil)
