// Package segcache caches decoded and filtered sensor segments so repeated
// epochs over the same corpus skip file parsing and filtering.
//
// Values are msgpack-encoded [audio.Clip]s. The package includes a
// BadgerDB-backed implementation that persists across runs and a bounded
// in-memory implementation on ristretto for single-process use and tests.
package segcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vibvoice/vibsynth/pkg/audio"
	"github.com/vibvoice/vibsynth/pkg/config"
)

// ErrMiss is returned by Get when the segment is not cached.
var ErrMiss = errors.New("segcache: miss")

// Key identifies a loaded segment: the source path, the window read from it
// in samples, and the sample rate it was read at.
type Key struct {
	Path   string
	Offset int
	Length int
	Rate   int
}

// String returns the encoded key. The path goes last so it may contain any
// character.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString("seg:")
	b.WriteString(strconv.Itoa(k.Rate))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(k.Offset))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(k.Length))
	b.WriteByte(':')
	b.WriteString(k.Path)
	return b.String()
}

// Store is a segment cache. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the cached clip or ErrMiss.
	Get(ctx context.Context, key Key) (*audio.Clip, error)

	// Put stores a clip, overwriting any previous value.
	Put(ctx context.Context, key Key, clip *audio.Clip) error

	// Close releases any resources held by the store.
	Close() error
}

// Open builds the cache selected by cfg. The "none" backend returns a nil
// Store, which callers treat as caching disabled.
func Open(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemory(cfg.MaxBytes)
	case "badger":
		return NewBadger(BadgerOptions{Dir: cfg.Dir})
	default:
		return nil, fmt.Errorf("segcache: unknown backend %q", cfg.Backend)
	}
}

func encode(c *audio.Clip) ([]byte, error) {
	b, err := msgpack.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("segcache: encode: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*audio.Clip, error) {
	var c audio.Clip
	if err := msgpack.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("segcache: decode: %w", err)
	}
	return &c, nil
}
