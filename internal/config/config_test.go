package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultEnablesAllRequestKindsAndChecking(t *testing.T) {
	cfg := Default()
	if !cfg.UserSendLoadState || !cfg.UserSendSync || !cfg.WithStateChecking {
		t.Fatalf("Default() = %+v, want all three enabled", cfg)
	}
	if cfg.WithDelayedHistory || cfg.WithSizeCalculation {
		t.Fatalf("Default() = %+v, want delayed history and size calc off", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Clients = 12
	cfg.Duration = 30 * time.Second
	cfg.WithDelayedHistory = true

	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != cfg {
		t.Fatalf("Load() = %+v, want %+v", got, cfg)
	}
}

func TestLoadFillsOmittedFieldsFromDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	partial := []byte("clients: 2\n")
	if err := os.WriteFile(path, partial, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Clients != 2 {
		t.Fatalf("Clients = %d, want 2", got.Clients)
	}
	if got.SeedCells != Default().SeedCells {
		t.Fatalf("SeedCells = %d, want default %d", got.SeedCells, Default().SeedCells)
	}
	if !got.WithStateChecking {
		t.Fatalf("WithStateChecking = false, want default true to survive an omitted field")
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("Load(missing file) returned nil error")
	}
}
