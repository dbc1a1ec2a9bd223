package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/clientreg"
	"github.com/cfgd/cfgd-go/pkg/discovery"
	"github.com/cfgd/cfgd-go/pkg/journal"
	"github.com/cfgd/cfgd-go/pkg/metrics"
	"github.com/cfgd/cfgd-go/pkg/persistence"
	"github.com/cfgd/cfgd-go/pkg/recovery"
	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// Server is the configuration daemon.
type Server struct {
	config  Config
	pid     int
	node    *rpc.Node
	journal *journal.Journal
	clients *clientreg.Registry
	state   *persistence.ServerStateStore
	metrics *metrics.Metrics

	mu        sync.Mutex
	lifecycle State
	dbs       map[string]*database // keyed by storage address
	defaultDB *database
	nextDB    int
	maxID     uint64 // highest subscription id in the replayed journal

	// journalMu is held shared by appends and exclusively by compaction,
	// so no line lands in a file that is about to be replaced.
	journalMu      sync.RWMutex
	needCompaction atomic.Bool

	// cleanupMu serializes the cleanup sweep with shutdown.
	cleanupMu sync.Mutex

	ready    chan struct{}
	stopping chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	ctx        context.Context
	cancel     context.CancelFunc
	group      *errgroup.Group
	httpServer *http.Server
}

// New creates a server. It does not listen until Start.
func New(config Config) (*Server, error) {
	if config.StateDir == "" {
		return nil, errors.New("state directory is required")
	}
	config.applyDefaults()

	node, err := rpc.NewNode(rpc.Config{
		Network:        config.Network,
		Address:        config.Address,
		CallTimeout:    config.CallTimeout,
		Conn:           config.Conn,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}

	m := config.Metrics
	if m == nil && config.MetricsAddress != "" {
		m = metrics.New(nil)
	}

	s := &Server{
		config:   config,
		pid:      os.Getpid(),
		node:     node,
		state:    persistence.NewServerStateStore(filepath.Join(config.StateDir, persistence.StateFileName)),
		metrics:  m,
		dbs:      make(map[string]*database),
		ready:    make(chan struct{}),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.journal = journal.New(journal.Config{
		Dir:         config.StateDir,
		IdleTimeout: config.JournalIdleTimeout,
		Logger:      config.Logger,
	})
	s.clients = clientreg.New(clientreg.Config{
		Journal:       s,
		OutboundLimit: config.ClientOutboundLimit,
		Logger:        config.Logger,
	})
	return s, nil
}

// Start opens the default database, replays the journal, hands recovered
// subscriptions back to their clients and then serves calls.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.lifecycle != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.lifecycle = StateRecovering
	s.mu.Unlock()

	if err := os.MkdirAll(s.config.StateDir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	if err := s.node.Start(s.ctx); err != nil {
		s.cancel()
		return fmt.Errorf("start node: %w", err)
	}

	res, err := s.journal.Replay()
	if err != nil {
		s.abortStart()
		return fmt.Errorf("replay journal: %w", err)
	}
	s.mu.Lock()
	s.maxID = res.MaxID
	s.mu.Unlock()

	if _, err := s.openDefault(); err != nil {
		s.abortStart()
		return fmt.Errorf("open default database: %w", err)
	}
	s.node.Register(wire.ObjectServer, s.gate(wire.ObjectServer, rpc.ServantFunc(s.dispatch)))

	stats := recovery.Run(s.ctx, recovery.Config{
		Resolve:  s.resolve,
		Database: s.recoveryDatabase,
		Clients:  s.clients,
		Journal:  s,
		Logger:   s.config.Logger,
	}, res)
	s.observeRecovery(stats)

	s.cleanupMu.Lock()
	s.compact()
	s.cleanupMu.Unlock()

	s.mu.Lock()
	s.lifecycle = StateRunning
	s.mu.Unlock()
	close(s.ready)

	if err := s.state.Save(&persistence.ServerState{
		PID:            s.pid,
		Descriptor:     s.Descriptor(),
		MetricsAddress: s.config.MetricsAddress,
	}); err != nil {
		s.warn("cannot write state file", "path", s.state.Path(), "error", err)
	}

	s.advertise()

	s.group, _ = errgroup.WithContext(s.ctx)
	s.group.Go(func() error {
		s.cleanupLoop()
		return nil
	})
	if s.config.MetricsAddress != "" {
		if err := s.serveMetrics(); err != nil {
			s.warn("cannot serve metrics", "address", s.config.MetricsAddress, "error", err)
		}
	}

	s.info("server started", "descriptor", s.Descriptor(), "pid", s.pid)
	return nil
}

func (s *Server) abortStart() {
	s.cancel()
	_ = s.node.Close()
	s.mu.Lock()
	s.lifecycle = StateStopped
	s.mu.Unlock()
	close(s.done)
}

// Shutdown compacts the journal, closes all databases and stops serving.
// Calls in flight fail with InShutdown. It is safe to call more than
// once; later calls wait for the first one.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	state := s.lifecycle
	s.mu.Unlock()
	if state == StateIdle {
		return ErrNotStarted
	}

	s.stopOnce.Do(func() {
		go s.shutdown()
	})

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	if s.lifecycle == StateStopped {
		s.mu.Unlock()
		return
	}
	s.lifecycle = StateStopping
	s.mu.Unlock()
	close(s.stopping)
	s.info("server shutting down")

	s.cleanupMu.Lock()
	s.compact()

	s.mu.Lock()
	dbs := s.sortedDatabasesLocked()
	s.dbs = make(map[string]*database)
	s.mu.Unlock()
	for _, db := range dbs {
		db.close()
	}
	s.clients.Close()
	s.cleanupMu.Unlock()

	if err := s.journal.Close(); err != nil {
		s.warn("cannot close journal", "error", err)
	}
	if err := s.state.ClearIfOwner(s.pid); err != nil {
		s.warn("cannot clear state file", "error", err)
	}
	if s.config.Advertiser != nil {
		_ = s.config.Advertiser.Stop()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.httpServer.Shutdown(ctx)
		cancel()
	}

	s.cancel()
	_ = s.node.Close()
	if s.group != nil {
		_ = s.group.Wait()
	}

	s.mu.Lock()
	s.lifecycle = StateStopped
	s.mu.Unlock()
	close(s.done)
	s.info("server stopped")
}

// Done is closed when the server has stopped.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycle
}

// Descriptor returns the descriptor of the server object.
func (s *Server) Descriptor() string {
	return s.node.Descriptor(wire.ObjectServer)
}

// Addr returns the listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	return s.node.Addr()
}

// Metrics returns the metrics sink, nil when metrics are disabled.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Append journals e and marks the journal for compaction. It implements
// the Journal interface of the registries and the replayer.
func (s *Server) Append(e journal.Entry) error {
	s.journalMu.RLock()
	defer s.journalMu.RUnlock()

	s.needCompaction.Store(true)
	if s.metrics != nil {
		s.metrics.JournalAppends.WithLabelValues(e.Op.String()).Inc()
	}
	return s.journal.Append(e)
}

// compact rewrites the journal from the live state. Callers hold
// cleanupMu.
func (s *Server) compact() {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()

	entries := s.clients.Entries()
	s.mu.Lock()
	dbs := s.sortedDatabasesLocked()
	s.mu.Unlock()
	for _, db := range dbs {
		entries = append(entries, db.registry.Entries()...)
	}

	result := metrics.ResultOK
	if err := s.journal.Save(entries); err != nil {
		result = metrics.ResultFailed
		s.warn("journal compaction failed", "error", err)
	} else {
		s.needCompaction.Store(false)
		s.debug("journal compacted", "entries", len(entries))
	}
	if s.metrics != nil {
		s.metrics.Compactions.WithLabelValues(result).Inc()
	}
}

// sortedDatabasesLocked returns the default database first, then the
// others by address.
func (s *Server) sortedDatabasesLocked() []*database {
	dbs := make([]*database, 0, len(s.dbs))
	for _, db := range s.dbs {
		dbs = append(dbs, db)
	}
	sort.Slice(dbs, func(i, j int) bool {
		if dbs[i].isDefault != dbs[j].isDefault {
			return dbs[i].isDefault
		}
		return dbs[i].address < dbs[j].address
	})
	return dbs
}

// gate wraps a servant so calls wait for recovery to finish and fail once
// shutdown has begun.
func (s *Server) gate(kind string, servant rpc.Servant) rpc.Servant {
	return rpc.ServantFunc(func(ctx context.Context, call *rpc.Call) (any, error) {
		select {
		case <-s.ready:
		case <-s.stopping:
		case <-ctx.Done():
			return nil, cfgerr.Wrap(cfgerr.Failed, ctx.Err())
		}
		if s.inShutdown() {
			return nil, cfgerr.New(cfgerr.InShutdown, "server is shutting down")
		}

		start := time.Now()
		result, err := servant.Dispatch(ctx, call)
		if s.metrics != nil {
			status := cfgerr.CodeOf(err).String()
			if errors.Is(err, rpc.ErrNoMethod) {
				status = "NO_METHOD"
			}
			s.metrics.ObserveCall(kind, call.Method, status, time.Since(start))
		}
		return result, err
	})
}

func (s *Server) inShutdown() bool {
	select {
	case <-s.stopping:
		return true
	default:
		return false
	}
}

// resolve adapts Node.Resolve to the rpc.Endpoint interface.
func (s *Server) resolve(descriptor string) (rpc.Endpoint, error) {
	ref, err := s.node.Resolve(descriptor)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

func (s *Server) recoveryDatabase(_ context.Context, name string) (recovery.Database, error) {
	if name == journal.DefaultDatabase {
		return s.defaultDB, nil
	}
	return s.openDatabase(name)
}

func (s *Server) observeRecovery(st recovery.Stats) {
	if s.metrics == nil {
		return
	}
	s.metrics.Recovered.WithLabelValues("client", "restored").Add(float64(st.ClientsRestored))
	s.metrics.Recovered.WithLabelValues("client", "dropped").Add(float64(st.ClientsDropped))
	s.metrics.Recovered.WithLabelValues("subscription", "restored").Add(float64(st.SubscriptionsRestored))
	s.metrics.Recovered.WithLabelValues("subscription", "abandoned").Add(float64(st.SubscriptionsAbandoned))
	s.metrics.Recovered.WithLabelValues("subscription", "rejected").Add(float64(st.SubscriptionsRejected))
	s.metrics.Recovered.WithLabelValues("subscription", "skipped").Add(float64(st.SubscriptionsSkipped))
}

func (s *Server) advertise() {
	if s.config.Advertiser == nil {
		return
	}
	tcp, ok := s.node.Addr().(*net.TCPAddr)
	if !ok {
		s.debug("not advertising a non-tcp listener")
		return
	}
	name := s.config.InstanceName
	if name == "" {
		name = fmt.Sprintf("cfgd-%d", s.pid)
	}
	err := s.config.Advertiser.Advertise(s.ctx, &discovery.ServerInfo{
		Instance: name,
		Port:     uint16(tcp.Port),
		Object:   wire.ObjectServer,
		PID:      s.pid,
		Version:  1,
	})
	if err != nil {
		s.warn("cannot advertise server", "error", err)
	}
}

func (s *Server) serveMetrics() error {
	ln, err := net.Listen("tcp", s.config.MetricsAddress)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.group.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.warn("metrics server failed", "error", err)
			return err
		}
		return nil
	})
	s.info("serving metrics", "address", ln.Addr().String())
	return nil
}

func (s *Server) debug(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

func (s *Server) info(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Info(msg, args...)
	}
}

func (s *Server) warn(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Warn(msg, args...)
	}
}
