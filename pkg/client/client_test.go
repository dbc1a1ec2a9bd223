package client_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
	"github.com/cfgd/cfgd-go/pkg/client"
	"github.com/cfgd/cfgd-go/pkg/client/mocks"
	"github.com/cfgd/cfgd-go/pkg/discovery"
	dmocks "github.com/cfgd/cfgd-go/pkg/discovery/mocks"
	"github.com/cfgd/cfgd-go/pkg/metrics"
	"github.com/cfgd/cfgd-go/pkg/persistence"
	"github.com/cfgd/cfgd-go/pkg/server"
	"github.com/cfgd/cfgd-go/pkg/storage"
)

func startServer(t *testing.T, dir string, m *metrics.Metrics) *server.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.StateDir = dir
	cfg.CleanupInterval = time.Hour
	cfg.CallTimeout = 2 * time.Second
	cfg.Metrics = m
	s, err := server.New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { stopServer(t, s) })
	return s
}

func stopServer(t *testing.T, s *server.Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil && !errors.Is(err, server.ErrNotStarted) {
		t.Errorf("Shutdown() = %v", err)
	}
}

func newRuntime(t *testing.T, dir string, mutate ...func(*client.Config)) *client.Runtime {
	t.Helper()
	cfg := client.Config{
		ProgramName: "client-test",
		Network:     "tcp",
		Locator:     discovery.NewStateFileLocator(filepath.Join(dir, persistence.StateFileName)),
		CallTimeout: 2 * time.Second,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	rt, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []client.Event
	ch     chan client.Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan client.Event, 64)}
}

func (r *recorder) Notify(ev client.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
}

func (r *recorder) next(t *testing.T) client.Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no notification")
		return client.Event{}
	}
}

func TestNewRequiresLocator(t *testing.T) {
	_, err := client.New(client.Config{Network: "tcp"})
	assert.ErrorIs(t, err, client.ErrNoLocator)
}

func TestDataOperations(t *testing.T) {
	dir := t.TempDir()
	startServer(t, dir, nil)
	rt := newRuntime(t, dir)
	ctx := context.Background()

	eng, err := rt.DefaultEngine(ctx)
	require.NoError(t, err)
	defer eng.Unref(ctx)

	assert.False(t, eng.IsLocal())
	assert.Equal(t, "", eng.Address())
	assert.Contains(t, eng.Database(), "#db/default")

	require.NoError(t, eng.Set(ctx, "/apps/editor/font", storage.StringValue("mono")))
	require.NoError(t, eng.Set(ctx, "/apps/editor/size", storage.IntValue(12)))
	require.NoError(t, eng.Set(ctx, "/apps/shell/prompt", storage.StringValue("$")))

	t.Run("get", func(t *testing.T) {
		entry, err := eng.Get(ctx, "/apps/editor/font")
		require.NoError(t, err)
		require.NotNil(t, entry.Value)
		assert.Equal(t, "mono", entry.Value.Str)
		assert.True(t, entry.IsWritable)

		missing, err := eng.Get(ctx, "/apps/editor/none")
		require.NoError(t, err)
		assert.Nil(t, missing.Value)
	})

	t.Run("listing", func(t *testing.T) {
		entries, err := eng.AllEntries(ctx, "/apps/editor")
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		dirs, err := eng.AllDirs(ctx, "/apps")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"/apps/editor", "/apps/shell"}, dirs)

		ok, err := eng.DirExists(ctx, "/apps/shell")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = eng.DirExists(ctx, "/apps/none")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unset", func(t *testing.T) {
		require.NoError(t, eng.Unset(ctx, "/apps/shell/prompt"))
		entry, err := eng.Get(ctx, "/apps/shell/prompt")
		require.NoError(t, err)
		assert.Nil(t, entry.Value)
	})

	t.Run("application errors surface verbatim", func(t *testing.T) {
		err := eng.Set(ctx, "relative", storage.IntValue(1))
		assert.True(t, cfgerr.HasCode(err, cfgerr.BadKey), "err = %v", err)
	})

	t.Run("sync and clear cache", func(t *testing.T) {
		require.NoError(t, eng.Sync(ctx))
		require.NoError(t, eng.ClearCache(ctx))
	})
}

func TestEngineTable(t *testing.T) {
	dir := t.TempDir()
	startServer(t, dir, nil)
	rt := newRuntime(t, dir)
	ctx := context.Background()

	t.Run("same address shares engine", func(t *testing.T) {
		a, err := rt.Engine(ctx, "mem:readonly")
		require.NoError(t, err)
		b, err := rt.Engine(ctx, "mem:readonly")
		require.NoError(t, err)
		assert.Same(t, a, b)
		assert.Contains(t, a.Database(), "#db/")

		b.Unref(ctx)
		assert.NotEmpty(t, a.Database(), "still referenced")
		a.Unref(ctx)
		assert.Empty(t, a.Database())
	})

	t.Run("empty address is default", func(t *testing.T) {
		a, err := rt.Engine(ctx, "")
		require.NoError(t, err)
		defer a.Unref(ctx)
		b, err := rt.DefaultEngine(ctx)
		require.NoError(t, err)
		defer b.Unref(ctx)
		assert.Same(t, a, b)
	})

	t.Run("bad address", func(t *testing.T) {
		_, err := rt.Engine(ctx, "nosuch:thing")
		assert.True(t, cfgerr.HasCode(err, cfgerr.BadAddress), "err = %v", err)
	})

	t.Run("read only database", func(t *testing.T) {
		e, err := rt.Engine(ctx, "mem:readonly")
		require.NoError(t, err)
		defer e.Unref(ctx)
		err = e.Set(ctx, "/a", storage.IntValue(1))
		assert.True(t, cfgerr.HasCode(err, cfgerr.NoWritableDatabase), "err = %v", err)
	})
}

func TestLifecycleErrorsAreCoded(t *testing.T) {
	dir := t.TempDir()
	startServer(t, dir, nil)
	ctx := context.Background()

	t.Run("released engine", func(t *testing.T) {
		rt := newRuntime(t, dir)
		e, err := rt.Engine(ctx, "mem:")
		require.NoError(t, err)
		e.Unref(ctx)

		_, err = e.Get(ctx, "/a")
		assert.ErrorIs(t, err, client.ErrEngineReleased)
		assert.Equal(t, cfgerr.Failed, cfgerr.CodeOf(err))
	})

	t.Run("closed runtime", func(t *testing.T) {
		rt := newRuntime(t, dir)
		require.NoError(t, rt.Close(ctx))

		_, err := rt.DefaultEngine(ctx)
		assert.ErrorIs(t, err, client.ErrClosed)
		var coded *cfgerr.Error
		require.ErrorAs(t, err, &coded)
		assert.Equal(t, cfgerr.Failed, coded.Code)
	})
}

func TestLocalEngine(t *testing.T) {
	rt := newRuntime(t, t.TempDir())
	ctx := context.Background()

	e, err := rt.LocalEngine("mem:")
	require.NoError(t, err)
	assert.True(t, e.IsLocal())

	again, err := rt.LocalEngine("mem:")
	require.NoError(t, err)
	assert.Same(t, e, again)
	again.Unref(ctx)

	require.NoError(t, e.Set(ctx, "/x/y", storage.BoolValue(true)))
	entry, err := e.Get(ctx, "/x/y")
	require.NoError(t, err)
	require.NotNil(t, entry.Value)
	assert.True(t, entry.Value.Bool)

	ok, err := e.DirExists(ctx, "/x")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.Subscribe(ctx, "/x", client.HandlerFunc(func(client.Event) {}), nil)
	assert.ErrorIs(t, err, client.ErrLocalEngine)

	_, err = rt.LocalEngine("nosuch:")
	assert.True(t, cfgerr.HasCode(err, cfgerr.BadAddress))

	e.Unref(ctx)
}

func TestSubscribe(t *testing.T) {
	dir := t.TempDir()
	m := metrics.New(nil)
	srv := startServer(t, dir, m)
	rt := newRuntime(t, dir)
	ctx := context.Background()

	eng, err := rt.DefaultEngine(ctx)
	require.NoError(t, err)

	rec := newRecorder()
	id, err := eng.Subscribe(ctx, "/apps/editor", rec, "editor-data")
	require.NoError(t, err)
	assert.Equal(t, 1, eng.Subscriptions())

	require.NoError(t, eng.Set(ctx, "/apps/editor/font", storage.StringValue("serif")))
	ev := rec.next(t)
	assert.Equal(t, id, ev.ClientID)
	assert.Equal(t, "/apps/editor", ev.Location)
	assert.Equal(t, "/apps/editor/font", ev.Entry.Key)
	require.NotNil(t, ev.Entry.Value)
	assert.Equal(t, "serif", ev.Entry.Value.Str)
	assert.Equal(t, "editor-data", ev.UserData)
	assert.Same(t, eng, ev.Engine)

	t.Run("outside location not delivered", func(t *testing.T) {
		require.NoError(t, eng.Set(ctx, "/apps/shell/x", storage.IntValue(1)))
		require.NoError(t, eng.Unset(ctx, "/apps/editor/font"))
		ev := rec.next(t)
		assert.Equal(t, "/apps/editor/font", ev.Entry.Key)
		assert.Nil(t, ev.Entry.Value)
	})

	t.Run("unknown id panics", func(t *testing.T) {
		assert.Panics(t, func() { eng.Unsubscribe(ctx, 999) })
	})

	t.Run("unref removes subscriptions on server", func(t *testing.T) {
		eng.Unref(ctx)
		srv.Cleanup(ctx)
		assert.Equal(t, 0.0, testutil.ToFloat64(m.Subscriptions.WithLabelValues("def")))
	})
}

func TestUnsubscribe(t *testing.T) {
	dir := t.TempDir()
	startServer(t, dir, nil)
	rt := newRuntime(t, dir)
	ctx := context.Background()

	eng, err := rt.DefaultEngine(ctx)
	require.NoError(t, err)
	defer eng.Unref(ctx)

	gone := mocks.NewMockHandler(t)
	kept := newRecorder()

	goneID, err := eng.Subscribe(ctx, "/a", gone, nil)
	require.NoError(t, err)
	keptID, err := eng.Subscribe(ctx, "/a", kept, nil)
	require.NoError(t, err)
	assert.NotEqual(t, goneID, keptID)

	eng.Unsubscribe(ctx, goneID)
	assert.Equal(t, 1, eng.Subscriptions())

	// The mock has no expectations: a call to it fails the test.
	require.NoError(t, eng.Set(ctx, "/a/b", storage.IntValue(7)))
	ev := kept.next(t)
	assert.Equal(t, keptID, ev.ClientID)
}

func TestHandlerMayCallEngine(t *testing.T) {
	dir := t.TempDir()
	startServer(t, dir, nil)
	rt := newRuntime(t, dir)
	ctx := context.Background()

	eng, err := rt.DefaultEngine(ctx)
	require.NoError(t, err)
	defer eng.Unref(ctx)

	done := make(chan struct{})
	h := mocks.NewMockHandler(t)
	h.EXPECT().Notify(mock.MatchedBy(func(ev client.Event) bool {
		return ev.Entry.Key == "/trigger/go"
	})).Run(func(ev client.Event) {
		// Writing from a handler must not deadlock the server.
		assert.NoError(t, ev.Engine.Set(ctx, "/result/ok", storage.BoolValue(true)))
		close(done)
	}).Once()

	_, err = eng.Subscribe(ctx, "/trigger", h, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Set(ctx, "/trigger/go", storage.IntValue(1)))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("handler did not run")
	}
	entry, err := eng.Get(ctx, "/result/ok")
	require.NoError(t, err)
	require.NotNil(t, entry.Value)
	assert.True(t, entry.Value.Bool)
}

func TestValueCache(t *testing.T) {
	dir := t.TempDir()
	startServer(t, dir, nil)
	writer := newRuntime(t, dir)
	reader := newRuntime(t, dir, func(c *client.Config) { c.CacheTTL = time.Minute })
	ctx := context.Background()

	w, err := writer.DefaultEngine(ctx)
	require.NoError(t, err)
	defer w.Unref(ctx)
	r, err := reader.DefaultEngine(ctx)
	require.NoError(t, err)
	defer r.Unref(ctx)

	require.NoError(t, w.Set(ctx, "/k", storage.IntValue(1)))
	entry, err := r.Get(ctx, "/k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Value.Int)
	assert.Equal(t, 1, r.CachedEntries())

	t.Run("notification refreshes cache", func(t *testing.T) {
		rec := newRecorder()
		_, err := r.Subscribe(ctx, "/", rec, nil)
		require.NoError(t, err)

		require.NoError(t, w.Set(ctx, "/k", storage.IntValue(2)))
		rec.next(t)

		entry, err := r.Get(ctx, "/k")
		require.NoError(t, err)
		assert.Equal(t, int64(2), entry.Value.Int)
	})

	t.Run("clear cache drops every client cache", func(t *testing.T) {
		require.NoError(t, w.ClearCache(ctx))
		assert.Eventually(t, func() bool { return r.CachedEntries() == 0 }, 3*time.Second, 10*time.Millisecond)
	})
}

func TestNoServer(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to locate", func(t *testing.T) {
		rt := newRuntime(t, t.TempDir())
		_, err := rt.DefaultEngine(ctx)
		assert.True(t, cfgerr.HasCode(err, cfgerr.NoServer), "err = %v", err)
	})

	t.Run("locator error", func(t *testing.T) {
		loc := dmocks.NewMockLocator(t)
		loc.EXPECT().Locate(mock.Anything).Return("", discovery.ErrNotFound)
		rt := newRuntime(t, t.TempDir(), func(c *client.Config) { c.Locator = loc })
		_, err := rt.DefaultEngine(ctx)
		assert.True(t, cfgerr.HasCode(err, cfgerr.NoServer), "err = %v", err)
		assert.ErrorIs(t, err, discovery.ErrNotFound)
	})

	t.Run("server gone", func(t *testing.T) {
		dir := t.TempDir()
		srv := startServer(t, dir, nil)
		rt := newRuntime(t, dir)

		eng, err := rt.DefaultEngine(ctx)
		require.NoError(t, err)
		defer eng.Unref(ctx)

		stopServer(t, srv)
		_, err = eng.Get(ctx, "/a")
		assert.True(t, cfgerr.HasCode(err, cfgerr.NoServer), "err = %v", err)
	})
}

func TestSpawn(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	spawner := mocks.NewMockSpawner(t)
	spawner.EXPECT().Spawn(mock.Anything).RunAndReturn(func(context.Context) error {
		startServer(t, dir, nil)
		return nil
	}).Once()

	rt := newRuntime(t, dir, func(c *client.Config) {
		c.Spawner = spawner
		c.SpawnTimeout = 5 * time.Second
	})

	eng, err := rt.DefaultEngine(ctx)
	require.NoError(t, err)
	defer eng.Unref(ctx)
	require.NoError(t, eng.Set(ctx, "/spawned", storage.BoolValue(true)))
}

func TestReconnectAfterRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	first := startServer(t, dir, nil)
	rt := newRuntime(t, dir)

	eng, err := rt.Engine(ctx, "mem:")
	require.NoError(t, err)
	defer eng.Unref(ctx)
	require.NoError(t, eng.Set(ctx, "/a", storage.IntValue(1)))

	stopServer(t, first)
	startServer(t, dir, nil)

	// The first attempt hits the dead server; the retry finds the new one.
	require.NoError(t, eng.Set(ctx, "/a", storage.IntValue(2)))
	entry, err := eng.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.Value.Int)
}

func TestSubscriptionSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	first := startServer(t, dir, nil)
	rt := newRuntime(t, dir)

	eng, err := rt.DefaultEngine(ctx)
	require.NoError(t, err)
	defer eng.Unref(ctx)

	rec := newRecorder()
	id, err := eng.Subscribe(ctx, "/apps", rec, nil)
	require.NoError(t, err)
	before := eng.Database()

	stopServer(t, first)
	startServer(t, dir, nil)

	// Recovery has rebound the engine to the new database object.
	assert.NotEqual(t, before, eng.Database())
	assert.Equal(t, 1, eng.Subscriptions())

	require.NoError(t, eng.Set(ctx, "/apps/x", storage.StringValue("after")))
	ev := rec.next(t)
	assert.Equal(t, id, ev.ClientID)
	require.NotNil(t, ev.Entry.Value)
	assert.Equal(t, "after", ev.Entry.Value.Str)

	eng.Unsubscribe(ctx, id)
	assert.Equal(t, 0, eng.Subscriptions())
}

func TestServerCalls(t *testing.T) {
	dir := t.TempDir()
	srv := startServer(t, dir, nil)
	rt := newRuntime(t, dir)
	ctx := context.Background()

	pid, err := rt.Ping(ctx)
	require.NoError(t, err)
	assert.Positive(t, pid)

	require.NoError(t, rt.ShutdownServer(ctx))
	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = rt.Ping(ctx)
	assert.True(t, cfgerr.HasCode(err, cfgerr.NoServer), "err = %v", err)
}
