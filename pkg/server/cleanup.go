package server

import (
	"context"
	"time"
)

func (s *Server) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Cleanup(s.ctx)
		case <-s.stopping:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

// CleanupStats summarizes one cleanup sweep.
type CleanupStats struct {
	ClientsRemoved       int
	SubscriptionsRemoved int
	DatabasesClosed      int
	Compacted            bool
	Idle                 bool
}

// Cleanup runs one sweep: drop dead clients and subscribers, close idle
// databases and compact the journal if anything changed. With
// ExitWhenIdle set, an idle server shuts itself down.
func (s *Server) Cleanup(ctx context.Context) CleanupStats {
	var st CleanupStats

	s.cleanupMu.Lock()
	if s.inShutdown() {
		s.cleanupMu.Unlock()
		return st
	}

	st.ClientsRemoved = s.clients.SweepDead(ctx)

	s.mu.Lock()
	dbs := s.sortedDatabasesLocked()
	s.mu.Unlock()
	for _, db := range dbs {
		st.SubscriptionsRemoved += db.registry.DropDead(ctx)
	}

	st.DatabasesClosed = s.closeIdleDatabases(time.Now())

	if s.needCompaction.Load() {
		s.compact()
		st.Compacted = true
	}
	st.Idle = s.idle()
	s.cleanupMu.Unlock()

	s.updateGauges()
	if st.ClientsRemoved > 0 || st.SubscriptionsRemoved > 0 || st.DatabasesClosed > 0 {
		s.debug("cleanup",
			"clients_removed", st.ClientsRemoved,
			"subscriptions_removed", st.SubscriptionsRemoved,
			"databases_closed", st.DatabasesClosed)
	}

	if st.Idle && s.config.ExitWhenIdle {
		s.info("no clients left, exiting")
		go func() { _ = s.Shutdown(context.Background()) }()
	}
	return st
}

// idle reports whether no client and no subscription is registered.
func (s *Server) idle() bool {
	if s.clients.Count() > 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, db := range s.dbs {
		if db.registry.Count() > 0 {
			return false
		}
	}
	return true
}
