package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cfgd/cfgd-go/pkg/log"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrKeepAliveTimeout = errors.New("peer stopped answering pings")
)

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 10 * time.Second

// Handler receives the request and response frames of a connection.
// It is called from the connection's read goroutine, so it must not block
// on work that needs another frame from the same connection.
type Handler interface {
	HandleFrame(c *Conn, f *wire.Frame)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(c *Conn, f *wire.Frame)

// HandleFrame calls fn.
func (fn HandlerFunc) HandleFrame(c *Conn, f *wire.Frame) { fn(c, f) }

// ConnConfig configures a connection.
type ConnConfig struct {
	// MaxMessageSize is the maximum frame payload (default 1 MB).
	MaxMessageSize uint32

	// WriteTimeout bounds a single frame write (default 10s).
	WriteTimeout time.Duration

	// KeepAlive enables ping/pong monitoring when set.
	KeepAlive *KeepAliveConfig

	// Logger receives protocol events (optional).
	Logger log.Logger
}

// Conn is a framed connection to a peer process.
type Conn struct {
	id      string
	nc      net.Conn
	framer  *Framer
	handler Handler
	config  ConnConfig

	keepAlive *KeepAlive

	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	err    error
	onDone []func(error)
}

func newConn(nc net.Conn, config ConnConfig, handler Handler) *Conn {
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	c := &Conn{
		id:      uuid.New().String(),
		nc:      nc,
		framer:  NewFramer(nc, config.MaxMessageSize),
		handler: handler,
		config:  config,
		done:    make(chan struct{}),
	}
	if config.Logger != nil {
		c.framer.SetLogger(config.Logger, c.id)
	}
	return c
}

// ID returns the unique connection identifier.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// LocalAddr returns the local address.
func (c *Conn) LocalAddr() net.Addr { return c.nc.LocalAddr() }

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the reason the connection closed, or nil while it is open
// or after a clean close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// OnClose registers fn to run after the connection closes. If the
// connection is already closed fn runs immediately.
func (c *Conn) OnClose(fn func(err error)) {
	c.mu.Lock()
	select {
	case <-c.done:
		err := c.err
		c.mu.Unlock()
		fn(err)
		return
	default:
	}
	c.onDone = append(c.onDone, fn)
	c.mu.Unlock()
}

// Send encodes and writes a frame. A frame refused before any byte was
// written (ErrMessageTooLarge) leaves the connection open.
func (c *Conn) Send(f *wire.Frame) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	data, err := wire.EncodeFrame(f)
	if err != nil {
		return err
	}
	_ = c.nc.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.framer.WriteFrame(data); err != nil {
		if errors.Is(err, ErrMessageTooLarge) {
			return err
		}
		c.closeWith(err)
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return nil
}

// Close sends a close control frame and closes the connection.
func (c *Conn) Close() error {
	_ = c.Send(wire.ControlFrame(wire.ControlClose, 0))
	c.closeWith(nil)
	return nil
}

func (c *Conn) closeWith(err error) {
	var hooks []func(error)
	first := false
	c.closeOnce.Do(func() {
		first = true
		if c.keepAlive != nil {
			c.keepAlive.Stop()
		}
		c.nc.Close()

		c.mu.Lock()
		c.err = err
		hooks = c.onDone
		c.onDone = nil
		close(c.done)
		c.mu.Unlock()
	})
	if !first {
		return
	}

	c.logState("CONNECTED", "DISCONNECTED", err)
	for _, fn := range hooks {
		fn(err)
	}
}

// start launches the read loop and, if configured, keep-alive.
func (c *Conn) start(ctx context.Context) {
	c.logState("", "CONNECTED", nil)
	if c.config.KeepAlive != nil {
		c.keepAlive = NewKeepAlive(*c.config.KeepAlive,
			func(seq uint32) error {
				c.logControl(log.ControlMsgPing, seq, log.DirectionOut)
				return c.Send(wire.ControlFrame(wire.ControlPing, seq))
			},
			func() { c.closeWith(ErrKeepAliveTimeout) },
		)
		c.keepAlive.Start(ctx)
	}
	go c.readLoop(ctx)
}

func (c *Conn) readLoop(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { c.closeWith(ctx.Err()) })
	defer stop()

	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				err = nil
			}
			c.closeWith(err)
			return
		}

		f, err := wire.DecodeFrame(data)
		if err != nil {
			c.logError(err, "decode frame")
			continue
		}

		if f.Kind == wire.FrameControl {
			c.handleControl(f.Control)
			continue
		}
		if c.handler != nil {
			c.handler.HandleFrame(c, f)
		}
	}
}

func (c *Conn) handleControl(msg *wire.ControlMessage) {
	switch msg.Type {
	case wire.ControlPing:
		c.logControl(log.ControlMsgPing, msg.Sequence, log.DirectionIn)
		_ = c.Send(wire.ControlFrame(wire.ControlPong, msg.Sequence))
	case wire.ControlPong:
		c.logControl(log.ControlMsgPong, msg.Sequence, log.DirectionIn)
		if c.keepAlive != nil {
			c.keepAlive.PongReceived(msg.Sequence)
		}
	case wire.ControlClose:
		c.logControl(log.ControlMsgClose, 0, log.DirectionIn)
		c.closeWith(nil)
	}
}

func (c *Conn) logState(oldState, newState string, reason error) {
	if c.config.Logger == nil {
		return
	}
	sc := &log.StateChangeEvent{
		Entity:   log.StateEntityConnection,
		OldState: oldState,
		NewState: newState,
	}
	if reason != nil {
		sc.Reason = reason.Error()
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   c.nc.RemoteAddr().String(),
		StateChange:  sc,
	})
}

func (c *Conn) logControl(t log.ControlMsgType, seq uint32, dir log.Direction) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		ControlMsg:   &log.ControlMsgEvent{Type: t, Sequence: seq},
	})
}

func (c *Conn) logError(err error, context string) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Error:        &log.ErrorEventData{Layer: log.LayerTransport, Message: err.Error(), Context: context},
	})
}

// Dial connects to a peer and starts the connection's read loop. The
// context bounds only the dial; the connection lives until Close.
func Dial(ctx context.Context, network, address string, config ConnConfig, handler Handler) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	c := newConn(nc, config, handler)
	c.start(context.Background())
	return c, nil
}
