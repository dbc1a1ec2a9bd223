package clientreg_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cfgd/cfgd-go/pkg/clientreg"
	"github.com/cfgd/cfgd-go/pkg/journal"
	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/rpc/mocks"
)

type memJournal struct {
	entries []journal.Entry
}

func (j *memJournal) Append(e journal.Entry) error {
	j.entries = append(j.entries, e)
	return nil
}

// limitedEndpoint records the outbound limit applied to it.
type limitedEndpoint struct {
	*mocks.MockEndpoint
	limit int
}

func (e *limitedEndpoint) LimitOutbound(n int) { e.limit = n }

func newEndpoint(t *testing.T, desc string) (caller, held *mocks.MockEndpoint) {
	caller = mocks.NewMockEndpoint(t)
	held = mocks.NewMockEndpoint(t)
	caller.EXPECT().Descriptor().Return(desc).Maybe()
	held.EXPECT().Descriptor().Return(desc).Maybe()
	caller.EXPECT().Duplicate().Return(held).Maybe()
	return caller, held
}

func TestAddDeduplicates(t *testing.T) {
	j := &memJournal{}
	r := clientreg.New(clientreg.Config{Journal: j})

	a, _ := newEndpoint(t, "tcp://127.0.0.1:1#listener")
	again, _ := newEndpoint(t, "tcp://127.0.0.1:1#listener")

	assert.True(t, r.Add(a))
	assert.False(t, r.Add(again))
	again.AssertNotCalled(t, "Duplicate")

	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Contains("tcp://127.0.0.1:1#listener"))
	assert.Equal(t, []journal.Entry{journal.ClientAdd("tcp://127.0.0.1:1#listener")}, j.entries)
}

func TestAddAppliesOutboundLimit(t *testing.T) {
	r := clientreg.New(clientreg.Config{OutboundLimit: 8})

	caller := mocks.NewMockEndpoint(t)
	held := &limitedEndpoint{MockEndpoint: mocks.NewMockEndpoint(t)}
	caller.EXPECT().Descriptor().Return("tcp://127.0.0.1:2#listener")
	caller.EXPECT().Duplicate().Return(held)

	require.True(t, r.Add(caller))
	assert.Equal(t, 8, held.limit)
}

func TestRemove(t *testing.T) {
	j := &memJournal{}
	r := clientreg.New(clientreg.Config{Journal: j})

	a, held := newEndpoint(t, "tcp://127.0.0.1:1#listener")
	held.EXPECT().Release().Once()
	require.True(t, r.Add(a))

	assert.True(t, r.Remove("tcp://127.0.0.1:1#listener"))
	assert.False(t, r.Remove("tcp://127.0.0.1:1#listener"))
	assert.Zero(t, r.Count())
	assert.Equal(t, []journal.Entry{
		journal.ClientAdd("tcp://127.0.0.1:1#listener"),
		journal.ClientRemove("tcp://127.0.0.1:1#listener"),
	}, j.entries)
}

func TestSweepDead(t *testing.T) {
	j := &memJournal{}
	r := clientreg.New(clientreg.Config{Journal: j})

	live, liveHeld := newEndpoint(t, "tcp://127.0.0.1:1#listener")
	liveHeld.EXPECT().IsAlive(mock.Anything).Return(true)
	dead, deadHeld := newEndpoint(t, "tcp://127.0.0.1:2#listener")
	deadHeld.EXPECT().IsAlive(mock.Anything).Return(false)
	deadHeld.EXPECT().Release().Once()

	r.Add(live)
	r.Add(dead)

	assert.Equal(t, 1, r.SweepDead(context.Background()))
	assert.True(t, r.Contains("tcp://127.0.0.1:1#listener"))
	assert.False(t, r.Contains("tcp://127.0.0.1:2#listener"))
	assert.Equal(t, journal.ClientRemove("tcp://127.0.0.1:2#listener"), j.entries[len(j.entries)-1])
}

func TestEachEntriesAndClose(t *testing.T) {
	r := clientreg.New(clientreg.Config{})

	for _, d := range []string{"tcp://127.0.0.1:2#listener", "tcp://127.0.0.1:1#listener"} {
		ep, held := newEndpoint(t, d)
		held.EXPECT().Release().Once()
		r.Add(ep)
	}

	var seen []string
	r.Each(func(ep rpc.Endpoint) { seen = append(seen, ep.Descriptor()) })
	assert.Equal(t, []string{"tcp://127.0.0.1:1#listener", "tcp://127.0.0.1:2#listener"}, seen)

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, journal.ClientAdd("tcp://127.0.0.1:1#listener"), entries[0])

	r.Close()
	assert.Zero(t, r.Count())
}
