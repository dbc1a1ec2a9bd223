package rpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/log"
	"github.com/cfgd/cfgd-go/pkg/transport"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// peer is the outbound side of a remote process: one lazily dialed
// connection plus the calls waiting for a response on it.
type peer struct {
	node    *Node
	key     string
	network string
	address string

	// refs is only touched inside Node.peers.Compute.
	refs int

	mu       sync.Mutex
	conn     *transport.Conn
	limit    int
	inflight int

	nextMsgID atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint32]*pendingCall
}

type pendingCall struct {
	conn *transport.Conn
	ch   chan *wire.Response
}

func newPeer(n *Node, d Descriptor) *peer {
	return &peer{
		node:    n,
		key:     d.peerKey(),
		network: d.Network,
		address: d.Address,
		pending: make(map[uint32]*pendingCall),
	}
}

func (p *peer) setLimit(n int) {
	p.mu.Lock()
	p.limit = n
	p.mu.Unlock()
}

func (p *peer) acquireSlot() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limit > 0 && p.inflight >= p.limit {
		return ErrOutboundFull
	}
	p.inflight++
	return nil
}

func (p *peer) releaseSlot() {
	p.mu.Lock()
	p.inflight--
	p.mu.Unlock()
}

// connect returns the open connection, dialing if there is none.
func (p *peer) connect(ctx context.Context) (*transport.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		select {
		case <-p.conn.Done():
			p.conn = nil
		default:
			return p.conn, nil
		}
	}

	c, err := transport.Dial(ctx, p.network, p.address, p.node.config.Conn, p)
	if err != nil {
		return nil, err
	}
	c.OnClose(func(error) { p.connClosed(c) })
	p.conn = c
	return c, nil
}

// connClosed fails every call still waiting on c. The stale p.conn is
// replaced by the next connect.
func (p *peer) connClosed(c *transport.Conn) {
	p.pendingMu.Lock()
	for id, pc := range p.pending {
		if pc.conn == c {
			close(pc.ch)
			delete(p.pending, id)
		}
	}
	p.pendingMu.Unlock()
}

func (p *peer) close() {
	p.mu.Lock()
	c := p.conn
	p.conn = nil
	p.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

func (p *peer) nextMessageID() uint32 {
	for {
		if id := p.nextMsgID.Add(1); id != 0 {
			return id
		}
	}
}

// HandleFrame implements transport.Handler for the outbound connection.
func (p *peer) HandleFrame(c *transport.Conn, f *wire.Frame) {
	switch f.Kind {
	case wire.FrameResponse:
		p.pendingMu.Lock()
		pc, ok := p.pending[f.Response.MessageID]
		if ok {
			delete(p.pending, f.Response.MessageID)
		}
		p.pendingMu.Unlock()
		if ok {
			pc.ch <- f.Response
		}
	case wire.FrameRequest:
		p.node.HandleFrame(c, f)
	}
}

func (p *peer) call(ctx context.Context, object, method string, args, reply any) error {
	fault := func(err error) error {
		return &FaultError{Op: method, Addr: p.key + "#" + object, Err: err}
	}

	if p.node.closed.Load() {
		return fault(ErrNodeClosed)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.node.config.CallTimeout)
		defer cancel()
	}

	payload, err := wire.EncodeArgs(args)
	if err != nil {
		return cfgerr.Wrap(cfgerr.Failed, err)
	}

	if err := p.acquireSlot(); err != nil {
		return fault(err)
	}
	defer p.releaseSlot()

	c, err := p.connect(ctx)
	if err != nil {
		return fault(err)
	}

	req := &wire.Request{
		MessageID: p.nextMessageID(),
		Object:    object,
		Method:    method,
		Args:      payload,
	}
	ch := make(chan *wire.Response, 1)
	p.pendingMu.Lock()
	p.pending[req.MessageID] = &pendingCall{conn: c, ch: ch}
	p.pendingMu.Unlock()
	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, req.MessageID)
		p.pendingMu.Unlock()
	}()

	start := time.Now()
	p.node.logRequest(c, log.DirectionOut, req)
	if err := c.Send(wire.RequestFrame(req)); err != nil {
		if errors.Is(err, transport.ErrMessageTooLarge) {
			return cfgerr.Wrap(cfgerr.Failed, err)
		}
		return fault(err)
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fault(ErrTimeout)
		}
		return fault(ctx.Err())
	case resp, ok := <-ch:
		if !ok {
			return fault(ErrConnectionLost)
		}
		p.node.logResponse(c, log.DirectionIn, req, resp, time.Since(start))
		switch resp.Fault {
		case wire.FaultNone:
		case wire.FaultNoObject:
			return fault(ErrNoObject)
		case wire.FaultNoMethod:
			return fault(ErrNoMethod)
		default:
			return fault(errors.New(resp.Fault.String()))
		}
		if err := resp.Err(); err != nil {
			return err
		}
		if err := wire.DecodeArgs(resp.Result, reply); err != nil {
			return cfgerr.Wrap(cfgerr.ParseError, err)
		}
		return nil
	}
}
