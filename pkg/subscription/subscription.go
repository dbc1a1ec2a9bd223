package subscription

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/cfgd/cfgd-go/pkg/storage"
)

// ErrNotFound is returned for unknown subscription ids.
var ErrNotFound = errors.New("subscription not found")

// Subscriber is the callback capability of a subscription.
type Subscriber interface {
	// Notify delivers a change. A fault means the subscriber is gone.
	Notify(ctx context.Context, id uint64, entry storage.Entry) error

	// IsAlive probes the subscriber.
	IsAlive(ctx context.Context) bool

	// Descriptor identifies the subscriber in the journal.
	Descriptor() string

	// Release is called once the registry drops the subscription.
	Release()
}

// Subscription is one registered interest.
type Subscription struct {
	ID         uint64
	Location   string
	Name       string
	Subscriber Subscriber
}

// Matches reports whether a change to key concerns the subscription.
func (s *Subscription) Matches(key string) bool {
	return storage.Below(s.Location, key)
}

// NormalizeLocation strips trailing slashes and validates the result.
func NormalizeLocation(location string) (string, error) {
	if len(location) > 1 {
		location = strings.TrimRight(location, "/")
		if location == "" {
			location = "/"
		}
	}
	if err := storage.ValidateDir(location); err != nil {
		return "", err
	}
	return location, nil
}

func displayName(id uint64, name string) string {
	if name == "" {
		return strconv.FormatUint(id, 10)
	}
	return name
}
