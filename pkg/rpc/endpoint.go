package rpc

import (
	"context"
	"sync/atomic"

	"github.com/cfgd/cfgd-go/pkg/wire"
)

// Endpoint is an opaque reference to an object in another process.
type Endpoint interface {
	// Call invokes method with args and decodes the result into reply.
	// Either may be nil.
	Call(ctx context.Context, method string, args, reply any) error

	// IsAlive probes whether the object is reachable and registered.
	IsAlive(ctx context.Context) bool

	// Descriptor returns the textual form of the reference. Two
	// references are the same object iff their descriptors are equal.
	Descriptor() string

	// Duplicate returns an independent reference to the same object.
	Duplicate() Endpoint

	// Release drops the reference. Calls on a released reference fail.
	Release()
}

// OutboundLimiter is implemented by endpoints that can cap the number of
// outstanding calls to their peer.
type OutboundLimiter interface {
	LimitOutbound(n int)
}

// Ref is the Endpoint implementation of a Node.
type Ref struct {
	node     *Node
	peer     *peer
	desc     Descriptor
	str      string
	released atomic.Bool
}

var (
	_ Endpoint        = (*Ref)(nil)
	_ OutboundLimiter = (*Ref)(nil)
)

// Call implements Endpoint.
func (r *Ref) Call(ctx context.Context, method string, args, reply any) error {
	if r.released.Load() {
		return &FaultError{Op: method, Addr: r.str, Err: ErrReleased}
	}
	return r.peer.call(ctx, r.desc.Object, method, args, reply)
}

// IsAlive implements Endpoint.
func (r *Ref) IsAlive(ctx context.Context) bool {
	var res wire.ExistsResult
	if err := r.Call(ctx, wire.MethodExists, nil, &res); err != nil {
		return false
	}
	return res.Exists
}

// Descriptor implements Endpoint.
func (r *Ref) Descriptor() string { return r.str }

// Duplicate implements Endpoint.
func (r *Ref) Duplicate() Endpoint {
	return r.node.newRef(r.desc)
}

// Release implements Endpoint. Releasing twice is a no-op.
func (r *Ref) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.node.releasePeer(r.peer)
	}
}

// LimitOutbound caps the outstanding calls to the peer process. Calls
// beyond the limit fail immediately with ErrOutboundFull. Zero removes
// the limit. The limit is shared by every reference to the same peer.
func (r *Ref) LimitOutbound(n int) {
	r.peer.setLimit(n)
}
