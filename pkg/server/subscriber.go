package server

import (
	"context"
	"time"

	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/storage"
	"github.com/cfgd/cfgd-go/pkg/subscription"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// remoteSubscriber delivers notifications to a client listener.
type remoteSubscriber struct {
	ep       rpc.Endpoint
	database string
	timeout  time.Duration
}

func (r *remoteSubscriber) Notify(ctx context.Context, id uint64, entry storage.Entry) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.ep.Call(ctx, wire.MethodNotify, wire.NotifyArgs{
		Database: r.database,
		ID:       id,
		Entry:    entry,
	}, nil)
}

func (r *remoteSubscriber) IsAlive(ctx context.Context) bool {
	return r.ep.IsAlive(ctx)
}

func (r *remoteSubscriber) Descriptor() string {
	return r.ep.Descriptor()
}

func (r *remoteSubscriber) Release() {
	r.ep.Release()
}

var _ subscription.Subscriber = (*remoteSubscriber)(nil)
