package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestServerStateStore(t *testing.T) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		store := NewServerStateStore(filepath.Join(t.TempDir(), "run", StateFileName))

		err := store.Save(&ServerState{PID: 42, Descriptor: "tcp://127.0.0.1:7654#server"})
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.PID != 42 {
			t.Errorf("PID = %d, want 42", got.PID)
		}
		if got.Descriptor != "tcp://127.0.0.1:7654#server" {
			t.Errorf("Descriptor = %q", got.Descriptor)
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt not set")
		}
		if _, err := os.Stat(store.Path() + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("temp file left behind: %v", err)
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewServerStateStore(filepath.Join(t.TempDir(), StateFileName))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("LoadCorrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), StateFileName)
		if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewServerStateStore(path).Load(); err == nil {
			t.Error("Load() should fail on a corrupt file")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewServerStateStore(filepath.Join(t.TempDir(), StateFileName))
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() on missing file error = %v", err)
		}
		if err := store.Save(&ServerState{PID: 1}); err != nil {
			t.Fatal(err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if got, _ := store.Load(); got != nil {
			t.Errorf("Load() after Clear = %v, want nil", got)
		}
	})

	t.Run("ClearIfOwner", func(t *testing.T) {
		store := NewServerStateStore(filepath.Join(t.TempDir(), StateFileName))
		if err := store.Save(&ServerState{PID: 100}); err != nil {
			t.Fatal(err)
		}

		if err := store.ClearIfOwner(99); err != nil {
			t.Fatalf("ClearIfOwner(99) error = %v", err)
		}
		if got, _ := store.Load(); got == nil {
			t.Fatal("state of another pid was cleared")
		}

		if err := store.ClearIfOwner(100); err != nil {
			t.Fatalf("ClearIfOwner(100) error = %v", err)
		}
		if got, _ := store.Load(); got != nil {
			t.Error("state not cleared by its owner")
		}
	})
}
