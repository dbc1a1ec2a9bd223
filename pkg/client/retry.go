package client

import (
	"errors"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/rpc"
)

// withRetry calls fn up to maxAttempts times while it fails with an
// error isRetryable accepts.
func withRetry(maxAttempts int, fn func() error, isRetryable func(error) bool) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

// serverBroken reports whether err means the cached server handles are
// no longer usable: the call never reached a method, or the server is
// shutting down.
func serverBroken(err error) bool {
	return rpc.IsFault(err) || cfgerr.HasCode(err, cfgerr.InShutdown)
}

// surface turns a transport fault left after retrying into NoServer.
// Application errors pass through.
func surface(err error) error {
	var coded *cfgerr.Error
	if rpc.IsFault(err) && !errors.As(err, &coded) {
		return cfgerr.Wrap(cfgerr.NoServer, err)
	}
	return err
}
