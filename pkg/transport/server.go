package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
)

// ServerConfig configures a listening server.
type ServerConfig struct {
	// Network is "tcp" or "unix" (default "tcp").
	Network string

	// Address to listen on, e.g. "127.0.0.1:0" or a socket path.
	Address string

	// Conn configures accepted connections.
	Conn ConnConfig

	// Handler receives frames from every accepted connection.
	Handler Handler

	// OnConnect is called when a new connection is established.
	OnConnect func(c *Conn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(c *Conn, err error)

	// OnError is called for accept errors.
	OnError func(err error)
}

// Server accepts connections and serves them with one Handler.
type Server struct {
	config   ServerConfig
	listener net.Listener

	connsMu sync.Mutex
	conns   map[*Conn]struct{}

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a server. It does not listen until Start.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Network == "" {
		config.Network = "tcp"
	}
	if config.Network != "tcp" && config.Network != "unix" {
		return nil, fmt.Errorf("unsupported network %q", config.Network)
	}
	if config.Address == "" {
		return nil, errors.New("listen address is required")
	}
	return &Server{
		config: config,
		conns:  make(map[*Conn]struct{}),
	}, nil
}

// Start listens and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}

	if s.config.Network == "unix" {
		// A socket file left by a crashed process blocks the listen.
		if err := os.Remove(s.config.Address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen(s.config.Network, s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every open connection.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()
	s.listener.Close()

	s.connsMu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()
	for _, c := range conns {
		c.Close()
	}

	s.wg.Wait()
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			if s.config.OnError != nil {
				s.config.OnError(fmt.Errorf("accept error: %w", err))
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		c := newConn(nc, s.config.Conn, s.config.Handler)

		s.connsMu.Lock()
		s.conns[c] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		c.OnClose(func(err error) {
			defer s.wg.Done()
			s.connsMu.Lock()
			delete(s.conns, c)
			s.connsMu.Unlock()
			if s.config.OnDisconnect != nil {
				s.config.OnDisconnect(c, err)
			}
		})

		if s.config.OnConnect != nil {
			s.config.OnConnect(c)
		}
		c.start(s.ctx)
	}
}
