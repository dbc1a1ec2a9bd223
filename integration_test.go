package cfgd_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cfgd/cfgd-go/pkg/client"
	"github.com/cfgd/cfgd-go/pkg/config"
	"github.com/cfgd/cfgd-go/pkg/discovery"
	"github.com/cfgd/cfgd-go/pkg/server"
	"github.com/cfgd/cfgd-go/pkg/storage"
)

func startServer(t *testing.T, cfg server.Config) *server.Server {
	t.Helper()
	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { shutdown(t, srv) })
	return srv
}

func shutdown(t *testing.T, srv *server.Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && err != server.ErrNotStarted {
		t.Errorf("Shutdown: %v", err)
	}
}

func newRuntime(t *testing.T, cfg client.Config) *client.Runtime {
	t.Helper()
	rt, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

// TestE2E_ConfigFiles runs a server and a client built from their YAML
// configuration files and passes a change between two clients.
func TestE2E_ConfigFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sf, err := config.ParseServer([]byte(fmt.Sprintf(`
state_dir: %s
listen:
  network: tcp
  address: 127.0.0.1:0
default_database: "mem:"
cleanup_interval: 1h
`, dir)))
	if err != nil {
		t.Fatalf("ParseServer: %v", err)
	}
	startServer(t, sf.ServerConfig())

	cf, err := config.ParseClient([]byte(fmt.Sprintf(`
program_name: e2e
state_dir: %s
listen:
  network: tcp
  address: 127.0.0.1:0
call_timeout: 2s
`, dir)))
	if err != nil {
		t.Fatalf("ParseClient: %v", err)
	}

	writer := newRuntime(t, cf.ClientConfig())
	reader := newRuntime(t, cf.ClientConfig())

	weng, err := writer.DefaultEngine(ctx)
	if err != nil {
		t.Fatalf("writer DefaultEngine: %v", err)
	}
	defer weng.Unref(ctx)
	reng, err := reader.DefaultEngine(ctx)
	if err != nil {
		t.Fatalf("reader DefaultEngine: %v", err)
	}
	defer reng.Unref(ctx)

	events := make(chan client.Event, 8)
	if _, err := reng.Subscribe(ctx, "/desktop", client.HandlerFunc(func(ev client.Event) {
		events <- ev
	}), nil); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := weng.Set(ctx, "/desktop/background/color", storage.StringValue("#202020")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Entry.Key != "/desktop/background/color" {
			t.Errorf("notified key = %q", ev.Entry.Key)
		}
		if ev.Entry.Value == nil || ev.Entry.Value.Str != "#202020" {
			t.Errorf("notified value = %v", ev.Entry.Value)
		}
	case <-ctx.Done():
		t.Fatal("no notification")
	}

	e, err := reng.Get(ctx, "/desktop/background/color")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Value == nil || e.Value.Str != "#202020" {
		t.Errorf("Get = %v", e.Value)
	}
}

// TestE2E_PersistentDatabase stores values in a Pebble default database
// and reads them back through a second server.
func TestE2E_PersistentDatabase(t *testing.T) {
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := server.DefaultConfig()
	cfg.StateDir = dir
	cfg.DefaultDatabase = "pebble:" + dbDir
	cfg.CleanupInterval = time.Hour

	ccfg := client.DefaultConfig(filepath.Join(dir, "server.json"))
	ccfg.Network = "tcp"
	ccfg.Address = "127.0.0.1:0"
	ccfg.CallTimeout = 2 * time.Second

	srv := startServer(t, cfg)
	rt := newRuntime(t, ccfg)
	eng, err := rt.DefaultEngine(ctx)
	if err != nil {
		t.Fatalf("DefaultEngine: %v", err)
	}
	if err := eng.Set(ctx, "/apps/mail/check_interval", storage.IntValue(300)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := eng.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	eng.Unref(ctx)
	shutdown(t, srv)

	startServer(t, cfg)
	eng, err = rt.DefaultEngine(ctx)
	if err != nil {
		t.Fatalf("DefaultEngine after restart: %v", err)
	}
	defer eng.Unref(ctx)

	e, err := eng.Get(ctx, "/apps/mail/check_interval")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Value == nil || e.Value.Int != 300 {
		t.Errorf("Get = %v, want 300", e.Value)
	}
}

// TestE2E_MDNSDiscovery finds an advertised server without a state file.
func TestE2E_MDNSDiscovery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg := server.DefaultConfig()
	cfg.StateDir = t.TempDir()
	cfg.Address = "0.0.0.0:0"
	cfg.CleanupInterval = time.Hour
	cfg.InstanceName = fmt.Sprintf("cfgd-e2e-%d", os.Getpid())
	cfg.Advertiser = discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
	startServer(t, cfg)

	// Give mDNS time to propagate
	time.Sleep(500 * time.Millisecond)

	rt := newRuntime(t, client.Config{
		Network:     "tcp",
		Address:     "127.0.0.1:0",
		Locator:     &discovery.MDNSLocator{Timeout: 5 * time.Second},
		CallTimeout: 2 * time.Second,
	})

	pid, err := rt.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}
