package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/log"
	"github.com/cfgd/cfgd-go/pkg/transport"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// DefaultCallTimeout bounds a call whose context has no deadline.
const DefaultCallTimeout = 30 * time.Second

// Servant is a local object reachable by name.
type Servant interface {
	// Dispatch runs one method. Returning ErrNoMethod reports an unknown
	// method; any other error is sent to the caller with its cfgerr code.
	Dispatch(ctx context.Context, call *Call) (any, error)
}

// ServantFunc adapts a function to Servant.
type ServantFunc func(ctx context.Context, call *Call) (any, error)

// Dispatch calls fn.
func (fn ServantFunc) Dispatch(ctx context.Context, call *Call) (any, error) {
	return fn(ctx, call)
}

// Call is an incoming request.
type Call struct {
	Object string
	Method string

	// Peer is the remote address of the calling connection.
	Peer string

	args cbor.RawMessage
}

// Decode decodes the call arguments into v.
func (c *Call) Decode(v any) error {
	if err := wire.DecodeArgs(c.args, v); err != nil {
		return cfgerr.Wrap(cfgerr.ParseError, err)
	}
	return nil
}

// Config configures a Node.
type Config struct {
	// Network is "tcp" (default) or "unix".
	Network string

	// Address to listen on. Defaults to "127.0.0.1:0" for tcp; required
	// for unix.
	Address string

	// CallTimeout bounds calls without a context deadline.
	CallTimeout time.Duration

	// Conn configures inbound and outbound connections.
	Conn transport.ConnConfig

	// Logger receives operational messages (optional).
	Logger *slog.Logger

	// ProtocolLogger receives call events (optional).
	ProtocolLogger log.Logger
}

// Node hosts local objects and holds references to remote ones.
type Node struct {
	config Config
	server *transport.Server
	base   string

	objMu   sync.RWMutex
	objects map[string]Servant

	peers *xsync.MapOf[string, *peer]

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewNode creates a node. It does not listen until Start.
func NewNode(config Config) (*Node, error) {
	if config.Network == "" {
		config.Network = "tcp"
	}
	if config.Address == "" {
		if config.Network != "tcp" {
			return nil, errors.New("listen address is required")
		}
		config.Address = "127.0.0.1:0"
	}
	if config.CallTimeout == 0 {
		config.CallTimeout = DefaultCallTimeout
	}
	if config.ProtocolLogger != nil && config.Conn.Logger == nil {
		config.Conn.Logger = config.ProtocolLogger
	}

	n := &Node{
		config:  config,
		objects: make(map[string]Servant),
		peers:   xsync.NewMapOf[string, *peer](),
		ctx:     context.Background(),
	}
	server, err := transport.NewServer(transport.ServerConfig{
		Network: config.Network,
		Address: config.Address,
		Conn:    config.Conn,
		Handler: n,
		OnError: func(err error) {
			if n.config.Logger != nil {
				n.config.Logger.Warn("accept failed", "error", err)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	n.server = server
	return n, nil
}

// Start begins accepting calls.
func (n *Node) Start(ctx context.Context) error {
	n.ctx, n.cancel = context.WithCancel(ctx)
	if err := n.server.Start(n.ctx); err != nil {
		n.cancel()
		return err
	}
	n.base = n.config.Network + "://" + advertisedAddr(n.server.Addr())
	if n.config.Logger != nil {
		n.config.Logger.Debug("node listening", "address", n.base)
	}
	return nil
}

// advertisedAddr turns a wildcard listen address into one peers can dial.
func advertisedAddr(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	host := tcp.IP.String()
	if tcp.IP == nil || tcp.IP.IsUnspecified() {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(tcp.Port))
}

// Addr returns the listen address, nil before Start.
func (n *Node) Addr() net.Addr {
	return n.server.Addr()
}

// Register makes s reachable as object name, replacing any previous one.
func (n *Node) Register(name string, s Servant) {
	n.objMu.Lock()
	n.objects[name] = s
	n.objMu.Unlock()
}

// Unregister removes object name. Later calls to it fault.
func (n *Node) Unregister(name string) {
	n.objMu.Lock()
	delete(n.objects, name)
	n.objMu.Unlock()
}

func (n *Node) lookup(name string) Servant {
	n.objMu.RLock()
	defer n.objMu.RUnlock()
	return n.objects[name]
}

// Descriptor returns the descriptor of local object name. It is only
// meaningful after Start.
func (n *Node) Descriptor(object string) string {
	return n.base + "#" + object
}

// Resolve turns a descriptor into a reference. It does not contact the
// peer; an unreachable peer shows up on the first call.
func (n *Node) Resolve(descriptor string) (*Ref, error) {
	if n.closed.Load() {
		return nil, &FaultError{Op: "resolve", Addr: descriptor, Err: ErrNodeClosed}
	}
	d, err := ParseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	return n.newRef(d), nil
}

func (n *Node) newRef(d Descriptor) *Ref {
	p, _ := n.peers.Compute(d.peerKey(), func(old *peer, loaded bool) (*peer, bool) {
		if !loaded {
			old = newPeer(n, d)
		}
		old.refs++
		return old, false
	})
	return &Ref{node: n, peer: p, desc: d, str: d.String()}
}

func (n *Node) releasePeer(p *peer) {
	drop := false
	n.peers.Compute(p.key, func(old *peer, loaded bool) (*peer, bool) {
		if !loaded || old != p {
			return old, !loaded
		}
		old.refs--
		drop = old.refs <= 0
		return old, drop
	})
	if drop {
		p.close()
	}
}

// PeerCount returns the number of remote processes with live references.
func (n *Node) PeerCount() int {
	return n.peers.Size()
}

// Close stops the listener, closes all outbound connections and waits
// for running dispatches.
func (n *Node) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	if n.cancel != nil {
		n.cancel()
	}
	n.server.Stop()
	n.peers.Range(func(key string, p *peer) bool {
		p.close()
		n.peers.Delete(key)
		return true
	})
	n.wg.Wait()
	return nil
}

// HandleFrame implements transport.Handler for inbound connections.
func (n *Node) HandleFrame(c *transport.Conn, f *wire.Frame) {
	if f.Kind != wire.FrameRequest || n.closed.Load() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.serve(c, f.Request)
	}()
}

func (n *Node) serve(c *transport.Conn, req *wire.Request) {
	start := time.Now()
	n.logRequest(c, log.DirectionIn, req)
	resp := n.dispatch(c, req)
	if req.OneWay {
		return
	}
	n.logResponse(c, log.DirectionOut, req, resp, time.Since(start))
	err := c.Send(wire.ResponseFrame(resp))
	if errors.Is(err, transport.ErrMessageTooLarge) {
		err = c.Send(wire.ResponseFrame(&wire.Response{
			MessageID: req.MessageID,
			Status:    cfgerr.Failed,
			Message:   "reply too large: " + err.Error(),
		}))
	}
	if err != nil && n.config.Logger != nil {
		n.config.Logger.Debug("response not sent", "method", req.Method, "error", err)
	}
}

func (n *Node) dispatch(c *transport.Conn, req *wire.Request) *wire.Response {
	resp := &wire.Response{MessageID: req.MessageID}

	s := n.lookup(req.Object)
	if req.Method == wire.MethodExists {
		resp.Result, _ = wire.EncodeArgs(wire.ExistsResult{Exists: s != nil})
		return resp
	}
	if s == nil {
		resp.Fault = wire.FaultNoObject
		return resp
	}

	ctx, cancel := context.WithTimeout(n.ctx, n.config.CallTimeout)
	defer cancel()
	result, err := s.Dispatch(ctx, &Call{
		Object: req.Object,
		Method: req.Method,
		Peer:   c.RemoteAddr().String(),
		args:   req.Args,
	})
	if errors.Is(err, ErrNoMethod) {
		resp.Fault = wire.FaultNoMethod
		return resp
	}
	if err != nil {
		resp.Status = cfgerr.CodeOf(err)
		resp.Message = errorMessage(err)
		return resp
	}

	resp.Result, err = wire.EncodeArgs(result)
	if err != nil {
		resp.Status = cfgerr.Failed
		resp.Message = err.Error()
	}
	return resp
}

// errorMessage strips the code prefix the receiver adds back.
func errorMessage(err error) string {
	var e *cfgerr.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func (n *Node) logRequest(c *transport.Conn, dir log.Direction, req *wire.Request) {
	if n.config.ProtocolLogger == nil {
		return
	}
	n.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.ID(),
		Direction:    dir,
		Layer:        log.LayerRPC,
		Category:     log.CategoryMessage,
		RemoteAddr:   c.RemoteAddr().String(),
		Call: &log.CallEvent{
			Type:      log.CallRequest,
			MessageID: req.MessageID,
			Object:    req.Object,
			Method:    req.Method,
			OneWay:    req.OneWay,
		},
	})
}

func (n *Node) logResponse(c *transport.Conn, dir log.Direction, req *wire.Request, resp *wire.Response, d time.Duration) {
	if n.config.ProtocolLogger == nil {
		return
	}
	ev := &log.CallEvent{
		Type:      log.CallResponse,
		MessageID: resp.MessageID,
		Object:    req.Object,
		Method:    req.Method,
		Duration:  &d,
	}
	if resp.Status != cfgerr.OK {
		ev.Status = resp.Status.String()
	}
	if resp.Fault != wire.FaultNone {
		ev.Fault = resp.Fault.String()
	}
	n.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.ID(),
		Direction:    dir,
		Layer:        log.LayerRPC,
		Category:     log.CategoryMessage,
		RemoteAddr:   c.RemoteAddr().String(),
		Call:         ev,
	})
}
