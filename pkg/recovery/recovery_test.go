package recovery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/journal"
	"github.com/cfgd/cfgd-go/pkg/recovery"
	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/rpc/mocks"
	"github.com/cfgd/cfgd-go/pkg/wire"
)

const dbDesc = "tcp://127.0.0.1:7654#db/default"

type memJournal struct{ entries []journal.Entry }

func (j *memJournal) Append(e journal.Entry) error {
	j.entries = append(j.entries, e)
	return nil
}

type fakeClients struct{ added []string }

func (c *fakeClients) Add(ep rpc.Endpoint) bool {
	c.added = append(c.added, ep.Descriptor())
	return true
}

type fakeDB struct {
	next    uint64
	added   []string
	dropped []uint64
}

func (d *fakeDB) Address() string    { return "" }
func (d *fakeDB) Descriptor() string { return dbDesc }
func (d *fakeDB) Readd(location string, _ rpc.Endpoint) (uint64, error) {
	d.next++
	d.added = append(d.added, location)
	return d.next, nil
}
func (d *fakeDB) Drop(id uint64) { d.dropped = append(d.dropped, id) }

type harness struct {
	journal   *memJournal
	clients   *fakeClients
	db        *fakeDB
	endpoints map[string]rpc.Endpoint
}

func newHarness() *harness {
	return &harness{
		journal:   &memJournal{},
		clients:   &fakeClients{},
		db:        &fakeDB{next: 100},
		endpoints: map[string]rpc.Endpoint{},
	}
}

func (h *harness) config() recovery.Config {
	return recovery.Config{
		Resolve: func(d string) (rpc.Endpoint, error) {
			ep, ok := h.endpoints[d]
			if !ok {
				return nil, cfgerr.New(cfgerr.BadAddress, d)
			}
			return ep, nil
		},
		Database: func(_ context.Context, name string) (recovery.Database, error) {
			if name != journal.DefaultDatabase {
				return nil, cfgerr.New(cfgerr.BadAddress, name)
			}
			return h.db, nil
		},
		Clients: h.clients,
		Journal: h.journal,
	}
}

func (h *harness) endpoint(t *testing.T, desc string) *mocks.MockEndpoint {
	ep := mocks.NewMockEndpoint(t)
	ep.EXPECT().Descriptor().Return(desc).Maybe()
	h.endpoints[desc] = ep
	return ep
}

func TestRestoreClients(t *testing.T) {
	h := newHarness()
	good := h.endpoint(t, "tcp://127.0.0.1:1#listener")
	good.EXPECT().Call(mock.Anything, wire.MethodDropAllCaches, nil, nil).Return(nil).Once()
	good.EXPECT().Release().Once()

	gone := h.endpoint(t, "tcp://127.0.0.1:2#listener")
	gone.EXPECT().Call(mock.Anything, wire.MethodDropAllCaches, nil, nil).
		Return(&rpc.FaultError{Op: "drop_all_caches", Err: rpc.ErrConnectionLost}).Once()
	gone.EXPECT().Release().Once()

	stats := recovery.Run(context.Background(), h.config(), &journal.Result{
		Clients: []string{"tcp://127.0.0.1:1#listener", "tcp://127.0.0.1:2#listener", "garbage"},
	})

	assert.Equal(t, recovery.Stats{ClientsRestored: 1, ClientsDropped: 2}, stats)
	assert.Equal(t, []string{"tcp://127.0.0.1:1#listener"}, h.clients.added)
	assert.Empty(t, h.journal.entries)
}

func TestRestoreSubscriptions(t *testing.T) {
	h := newHarness()
	const (
		epOK     = "tcp://127.0.0.1:1#listener"
		epReject = "tcp://127.0.0.1:2#listener"
		epGone   = "tcp://127.0.0.1:4#listener"
	)

	ok := h.endpoint(t, epOK)
	var updates []wire.UpdateSubscriptionArgs
	ok.EXPECT().Call(mock.Anything, wire.MethodUpdateSubscriptionID, mock.Anything, nil).
		Run(func(_ context.Context, _ string, args any, _ any) {
			updates = append(updates, args.(wire.UpdateSubscriptionArgs))
		}).Return(nil).Twice()

	reject := h.endpoint(t, epReject)
	reject.EXPECT().Call(mock.Anything, wire.MethodUpdateSubscriptionID, mock.Anything, nil).
		Return(cfgerr.New(cfgerr.Failed, "unknown subscription")).Once()

	gone := h.endpoint(t, epGone)
	gone.EXPECT().Call(mock.Anything, wire.MethodUpdateSubscriptionID, mock.Anything, nil).
		Return(&rpc.FaultError{Op: "update_subscription_id", Err: rpc.ErrConnectionLost}).Once()

	res := &journal.Result{
		Subscriptions: []journal.Subscription{
			{ID: 3, Database: journal.DefaultDatabase, Location: "/apps", Endpoint: epOK},
			{ID: 5, Database: journal.DefaultDatabase, Location: "/desktop", Endpoint: epReject},
			{ID: 8, Database: "pebble:/gone", Location: "/x", Endpoint: epOK},
			{ID: 9, Database: journal.DefaultDatabase, Location: "/y", Endpoint: "tcp://127.0.0.1:3#listener"},
			{ID: 12, Database: journal.DefaultDatabase, Location: "/apps/editor", Endpoint: epOK},
			{ID: 14, Database: journal.DefaultDatabase, Location: "/net", Endpoint: epGone},
		},
		MaxID: 14,
	}
	stats := recovery.Run(context.Background(), h.config(), res)

	assert.Equal(t, recovery.Stats{
		SubscriptionsRestored:  2,
		SubscriptionsAbandoned: 1,
		SubscriptionsRejected:  1,
		SubscriptionsSkipped:   2,
	}, stats)

	assert.Equal(t, []wire.UpdateSubscriptionArgs{
		{Database: dbDesc, OldID: 3, Location: "/apps", NewID: 101},
		{Database: dbDesc, OldID: 12, Location: "/apps/editor", NewID: 103},
	}, updates)

	assert.Equal(t, []journal.Entry{
		journal.Remove(3, journal.DefaultDatabase, "/apps", epOK),
		journal.Add(101, journal.DefaultDatabase, "/apps", epOK),
		journal.Remove(5, journal.DefaultDatabase, "/desktop", epReject),
		journal.Remove(12, journal.DefaultDatabase, "/apps/editor", epOK),
		journal.Add(103, journal.DefaultDatabase, "/apps/editor", epOK),
		journal.Remove(14, journal.DefaultDatabase, "/net", epGone),
	}, h.journal.entries)
	assert.Equal(t, []string{"/apps", "/desktop", "/apps/editor", "/net"}, h.db.added)
	// Only the refused move is undone; the unreachable one waits for the sweep.
	assert.Equal(t, []uint64{102}, h.db.dropped)
}

func TestRestoreEmptyJournal(t *testing.T) {
	h := newHarness()
	stats := recovery.Run(context.Background(), h.config(), &journal.Result{})
	assert.Equal(t, recovery.Stats{}, stats)
	require.Empty(t, h.journal.entries)
}
