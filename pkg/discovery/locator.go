package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/cfgd/cfgd-go/pkg/persistence"
)

// Locator finds the descriptor of a running server object.
type Locator interface {
	// Locate returns the descriptor, or an error wrapping ErrNotFound
	// when no server is known.
	Locate(ctx context.Context) (string, error)
}

// StaticLocator always returns the same descriptor.
type StaticLocator string

// Locate returns the descriptor. An empty one is not found.
func (l StaticLocator) Locate(context.Context) (string, error) {
	if l == "" {
		return "", ErrNotFound
	}
	return string(l), nil
}

// StateFileLocator reads the descriptor a server wrote to its state file.
type StateFileLocator struct {
	Store *persistence.ServerStateStore
}

// NewStateFileLocator creates a locator for the state file at path.
func NewStateFileLocator(path string) *StateFileLocator {
	return &StateFileLocator{Store: persistence.NewServerStateStore(path)}
}

// Locate loads the state file.
func (l *StateFileLocator) Locate(context.Context) (string, error) {
	state, err := l.Store.Load()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", l.Store.Path(), err)
	}
	if state == nil || state.Descriptor == "" {
		return "", ErrNotFound
	}
	return state.Descriptor, nil
}

// Chain tries locators in order and returns the first descriptor found.
type Chain []Locator

// Locate runs the chain. If every locator fails the errors are joined.
func (c Chain) Locate(ctx context.Context) (string, error) {
	var errs []error
	for _, l := range c {
		desc, err := l.Locate(ctx)
		if err == nil {
			return desc, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", ErrNotFound
	}
	return "", errors.Join(errs...)
}

var (
	_ Locator = StaticLocator("")
	_ Locator = (*StateFileLocator)(nil)
	_ Locator = Chain(nil)
)
