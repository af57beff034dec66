package cli

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// DefaultBaseDir is the per-user directory under $HOME.
	DefaultBaseDir = ".vibsynth"
	// DefaultConfigFile is the pipeline config read when --config is unset.
	DefaultConfigFile = "config.yaml"
)

// Paths locates the per-user vibsynth directory.
type Paths struct {
	HomeDir string
}

// NewPaths resolves the current user's home directory.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns ~/.vibsynth.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns ~/.vibsynth/config.yaml.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// CacheDir returns ~/.vibsynth/cache, the default badger directory.
func (p *Paths) CacheDir() string {
	return filepath.Join(p.BaseDir(), "cache")
}

// EnsureCacheDir creates CacheDir.
func (p *Paths) EnsureCacheDir() error {
	return os.MkdirAll(p.CacheDir(), 0o755)
}

// DefaultConfig returns ConfigFile when it exists and "" otherwise.
func (p *Paths) DefaultConfig() (string, error) {
	path := p.ConfigFile()
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	default:
		return "", err
	}
}
