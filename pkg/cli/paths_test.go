package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathsLayout(t *testing.T) {
	home := t.TempDir()
	p := &Paths{HomeDir: home}
	if got, want := p.BaseDir(), filepath.Join(home, ".vibsynth"); got != want {
		t.Errorf("BaseDir = %q, want %q", got, want)
	}
	if got, want := p.ConfigFile(), filepath.Join(home, ".vibsynth", "config.yaml"); got != want {
		t.Errorf("ConfigFile = %q, want %q", got, want)
	}
	if err := p.EnsureCacheDir(); err != nil {
		t.Fatalf("EnsureCacheDir: %v", err)
	}
	if info, err := os.Stat(p.CacheDir()); err != nil || !info.IsDir() {
		t.Errorf("CacheDir not created: %v", err)
	}
}

func TestPathsDefaultConfig(t *testing.T) {
	p := &Paths{HomeDir: t.TempDir()}
	got, err := p.DefaultConfig()
	if err != nil || got != "" {
		t.Fatalf("DefaultConfig without file = %q, %v", got, err)
	}

	if err := os.MkdirAll(p.BaseDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.ConfigFile(), []byte("population: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = p.DefaultConfig()
	if err != nil || got != p.ConfigFile() {
		t.Errorf("DefaultConfig = %q, %v, want %q", got, err, p.ConfigFile())
	}
}

func TestNewPaths(t *testing.T) {
	p, err := NewPaths()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if p.HomeDir == "" {
		t.Error("HomeDir is empty")
	}
}
