package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Errorf("Load(nil) = %+v, want %+v", cfg, want)
	}
}

func TestFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvsrv.toml")
	if err := os.WriteFile(path, []byte("port = 7000\nbind = \"0.0.0.0\"\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load([]string{"-config", path, "-port", "7001"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7001 {
		t.Errorf("Port = %d, want 7001 (flag must win over file)", cfg.Port)
	}
	if cfg.Bind != "0.0.0.0" {
		t.Errorf("Bind = %q, want 0.0.0.0 (file value preserved when flag not set)", cfg.Bind)
	}
}

func TestFileSuppliesDefaultsWithoutFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvsrv.toml")
	if err := os.WriteFile(path, []byte("dbfilename = \"snapshot.rdb\"\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load([]string{"-config", path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBFilename != "snapshot.rdb" {
		t.Errorf("DBFilename = %q, want snapshot.rdb", cfg.DBFilename)
	}
}

func TestEnsureDirCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := Config{Dir: dir}
	if err := cfg.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected %s to exist as a directory", dir)
	}
}
