package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Local is a FileStore over a directory tree. Relative paths resolve under
// the root; absolute paths, which manifests may carry, are used as given.
//
// Writes go to a hidden temporary file beside the target and are renamed
// into place on Close, so a reader or List never sees a half-written
// record.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir, creating dir if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.root, filepath.FromSlash(p))
}

func (l *Local) Read(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(l.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return f, nil
}

func (l *Local) Write(_ context.Context, name string) (io.WriteCloser, error) {
	target := l.resolve(name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: write %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return nil, fmt.Errorf("storage: write %s: %w", name, err)
	}
	return &localWriter{File: tmp, target: target}, nil
}

func (l *Local) List(_ context.Context, dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(l.resolve(dir))
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") || !matchExt(e.Name(), ext) {
			continue
		}
		out = append(out, path.Join(filepath.ToSlash(dir), e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (l *Local) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(l.resolve(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// localWriter renames its temporary file onto target when closed.
type localWriter struct {
	*os.File
	target string
	done   bool
}

func (w *localWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	tmp := w.File.Name()
	if err := w.File.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: close %s: %w", w.target, err)
	}
	if err := os.Rename(tmp, w.target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: publish %s: %w", w.target, err)
	}
	return nil
}

// Discard removes the temporary file without publishing it.
func (w *localWriter) Discard() error {
	if w.done {
		return nil
	}
	w.done = true
	w.File.Close()
	return os.Remove(w.File.Name())
}

var _ FileStore = (*Local)(nil)
