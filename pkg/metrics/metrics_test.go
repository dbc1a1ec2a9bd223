package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfgd/cfgd-go/pkg/storage"
)

func TestObserveCall(t *testing.T) {
	m := New(nil)

	m.ObserveCall("db", "set", "OK", 2*time.Millisecond)
	m.ObserveCall("db", "set", "OK", time.Millisecond)
	m.ObserveCall("db", "set", "BAD_KEY", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Calls.WithLabelValues("db", "set", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calls.WithLabelValues("db", "set", "BAD_KEY")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CallDuration))
}

func TestObserveNotify(t *testing.T) {
	m := New(nil)
	m.ObserveNotify(5, 1, 2)
	m.ObserveNotify(1, 0, 0)

	assert.Equal(t, 6.0, testutil.ToFloat64(m.Notifications.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(ResultFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Notifications.WithLabelValues(ResultPruned)))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveCall("server", "ping", "OK", time.Second)
	m.ObserveNotify(1, 1, 1)
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Clients.Set(3)
	m.JournalAppends.WithLabelValues("ADD").Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "cfgd_server_clients 3")
	assert.Contains(t, string(body), `cfgd_journal_appends_total{op="ADD"} 1`)
}

func TestPebbleCollector(t *testing.T) {
	db, err := storage.OpenPebble(storage.PebbleOptions{DataDir: t.TempDir()})
	require.NoError(t, err)

	m := New(nil)
	c := NewPebbleCollector("pebble:test", db)
	require.NoError(t, m.Register(c))

	require.NoError(t, db.Set("/a/b", storage.StringValue("x")))
	assert.Equal(t, 8, testutil.CollectAndCount(c))

	require.NoError(t, db.Close())
	assert.Equal(t, 0, testutil.CollectAndCount(c))

	m.Unregister(c)
}
