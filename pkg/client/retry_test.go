package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/rpc"
	"github.com/cfgd/cfgd-go/pkg/storage"
)

func TestWithRetry(t *testing.T) {
	fault := &rpc.FaultError{Op: "get", Addr: "tcp://127.0.0.1:1#server", Err: rpc.ErrConnectionLost}
	appErr := cfgerr.New(cfgerr.BadKey, "bad key")

	tests := []struct {
		name      string
		results   []error
		wantCalls int
		wantErr   error
	}{
		{"success first", []error{nil}, 1, nil},
		{"success after broken server", []error{fault, nil}, 2, nil},
		{"broken twice", []error{fault, fault}, 2, fault},
		{"application error not retried", []error{appErr}, 1, appErr},
		{"shutdown retried", []error{cfgerr.New(cfgerr.InShutdown, "bye"), nil}, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := withRetry(maxAttempts, func() error {
				err := tt.results[calls]
				calls++
				return err
			}, serverBroken)

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if err != tt.wantErr {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerBroken(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"fault", &rpc.FaultError{Op: "ping", Err: rpc.ErrTimeout}, true},
		{"wrapped fault", cfgerr.Wrap(cfgerr.NoServer, &rpc.FaultError{Op: "ping", Err: rpc.ErrTimeout}), true},
		{"in shutdown", cfgerr.New(cfgerr.InShutdown, ""), true},
		{"bad address", cfgerr.New(cfgerr.BadAddress, "x"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serverBroken(tt.err); got != tt.want {
				t.Errorf("serverBroken(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSurface(t *testing.T) {
	fault := &rpc.FaultError{Op: "set", Err: rpc.ErrConnectionLost}

	t.Run("fault becomes no server", func(t *testing.T) {
		err := surface(fault)
		assert.True(t, cfgerr.HasCode(err, cfgerr.NoServer))
		assert.ErrorIs(t, err, rpc.ErrConnectionLost)
	})

	t.Run("coded fault kept", func(t *testing.T) {
		in := cfgerr.Wrap(cfgerr.NoServer, fault)
		assert.Same(t, in, surface(in))
	})

	t.Run("application error kept", func(t *testing.T) {
		in := cfgerr.New(cfgerr.TypeMismatch, "int expected")
		assert.Same(t, in, surface(in))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, surface(nil))
	})
}

func TestCnxnTable(t *testing.T) {
	tbl := newCnxnTable()
	tbl.add(cnxn{clientID: 1, serverID: 10, location: "/a"})
	tbl.add(cnxn{clientID: 2, serverID: 11, location: "/b"})

	c, ok := tbl.byServerID(11)
	require.True(t, ok)
	assert.Equal(t, uint64(2), c.clientID)

	t.Run("rekey keeps client id", func(t *testing.T) {
		require.True(t, tbl.rekey(10, 20))
		_, ok := tbl.byServerID(10)
		assert.False(t, ok)
		c, ok := tbl.byServerID(20)
		require.True(t, ok)
		assert.Equal(t, uint64(1), c.clientID)
		assert.Equal(t, "/a", c.location)

		assert.False(t, tbl.rekey(99, 100))
	})

	t.Run("remove frees slot", func(t *testing.T) {
		removed, ok := tbl.remove(1)
		require.True(t, ok)
		assert.Equal(t, uint64(20), removed.serverID)
		assert.Equal(t, 1, tbl.len())

		_, ok = tbl.remove(1)
		assert.False(t, ok)

		tbl.add(cnxn{clientID: 3, serverID: 12})
		assert.Len(t, tbl.arena, 2, "freed slot reused")
		assert.ElementsMatch(t, []uint64{11, 12}, tbl.serverIDs())
	})
}

func TestDispatcherOrder(t *testing.T) {
	d := newDispatcher()

	var (
		mu  sync.Mutex
		got []uint64
	)
	h := HandlerFunc(func(ev Event) {
		mu.Lock()
		got = append(got, ev.ClientID)
		mu.Unlock()
	})

	for i := uint64(1); i <= 100; i++ {
		d.push(h, Event{ClientID: i})
	}
	d.stop()

	require.Len(t, got, 100)
	for i, id := range got {
		if id != uint64(i+1) {
			t.Fatalf("event %d = %d, want %d", i, id, i+1)
		}
	}

	// Pushing after stop is dropped.
	d.push(h, Event{ClientID: 101})
	assert.Len(t, got, 100)
}

func TestValueCache(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		c := newValueCache(0)
		assert.Nil(t, c)
		c.put(storage.Entry{Key: "/a"})
		_, ok := c.get("/a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.len())
		c.dropAll()
		c.stop()
	})

	t.Run("put get drop", func(t *testing.T) {
		c := newValueCache(time.Minute)
		defer c.stop()

		v := storage.IntValue(3)
		c.put(storage.Entry{Key: "/a", Value: &v})
		c.put(storage.Entry{Key: "/b"})

		e, ok := c.get("/a")
		require.True(t, ok)
		assert.Equal(t, int64(3), e.Value.Int)

		c.drop("/a")
		_, ok = c.get("/a")
		assert.False(t, ok)

		c.dropAll()
		assert.Equal(t, 0, c.len())
	})

	t.Run("expires", func(t *testing.T) {
		c := newValueCache(10 * time.Millisecond)
		defer c.stop()
		c.put(storage.Entry{Key: "/a"})
		time.Sleep(30 * time.Millisecond)
		_, ok := c.get("/a")
		assert.False(t, ok)
	})
}
