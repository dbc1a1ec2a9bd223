package server

import (
	"context"

	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

// dispatch serves the server object.
func (s *Server) dispatch(ctx context.Context, call *rpc.Call) (any, error) {
	switch call.Method {
	case wire.MethodGetDefaultDatabase:
		s.defaultDB.touch()
		return wire.DescriptorResult{Descriptor: s.defaultDB.Descriptor()}, nil

	case wire.MethodGetDatabase:
		var args wire.AddressArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		db, err := s.openDatabase(args.Address)
		if err != nil {
			return nil, err
		}
		db.touch()
		return wire.DescriptorResult{Descriptor: db.Descriptor()}, nil

	case wire.MethodAddClient:
		var args wire.DescriptorArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		ep, err := s.resolve(args.Descriptor)
		if err != nil {
			return nil, err
		}
		// The registry keeps its own duplicate.
		s.clients.Add(ep)
		ep.Release()
		s.updateGauges()
		return nil, nil

	case wire.MethodRemoveClient:
		var args wire.DescriptorArgs
		if err := call.Decode(&args); err != nil {
			return nil, err
		}
		// Unknown clients are only logged by the registry.
		if s.clients.Remove(args.Descriptor) {
			s.updateGauges()
		}
		return nil, nil

	case wire.MethodPing:
		return wire.PingResult{PID: s.pid}, nil

	case wire.MethodShutdown:
		s.info("shutdown requested", "peer", call.Peer)
		go func() { _ = s.Shutdown(context.Background()) }()
		return nil, nil

	default:
		return nil, rpc.ErrNoMethod
	}
}

// updateGauges refreshes the population gauges.
func (s *Server) updateGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.Clients.Set(float64(s.clients.Count()))

	s.mu.Lock()
	dbs := s.sortedDatabasesLocked()
	s.mu.Unlock()
	s.metrics.Databases.Set(float64(len(dbs)))
	for _, db := range dbs {
		s.metrics.Subscriptions.WithLabelValues(db.journalName()).Set(float64(db.registry.Count()))
	}
}
