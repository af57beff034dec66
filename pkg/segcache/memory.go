package segcache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/vibvoice/vibsynth/pkg/audio"
)

// DefaultMemoryBytes is the memory cache bound when none is configured.
const DefaultMemoryBytes = 256 << 20

// Memory is an in-memory Store bounded by the encoded size of its segments.
// Values are held encoded so callers never share sample slices with the
// cache. Past the bound, ristretto's admission policy evicts or rejects the
// least frequently used segments, so a Put is not guaranteed to be kept.
type Memory struct {
	cache    *ristretto.Cache[string, []byte]
	maxBytes int64
}

// NewMemory creates an empty in-memory cache holding at most maxBytes of
// encoded segments. A non-positive maxBytes selects DefaultMemoryBytes.
func NewMemory(maxBytes int64) (*Memory, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMemoryBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        1e5,
		MaxCost:            maxBytes,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("segcache: memory: %w", err)
	}
	return &Memory{cache: cache, maxBytes: maxBytes}, nil
}

func (m *Memory) Get(_ context.Context, key Key) (*audio.Clip, error) {
	v, ok := m.cache.Get(key.String())
	if !ok {
		return nil, ErrMiss
	}
	return decode(v)
}

// Put stores the clip unless it is larger than the bound or loses admission
// to the segments already held.
func (m *Memory) Put(_ context.Context, key Key, clip *audio.Clip) error {
	b, err := encode(clip)
	if err != nil {
		return err
	}
	if m.cache.Set(key.String(), b, int64(len(b))) {
		m.cache.Wait()
	}
	return nil
}

// Len returns the number of cached segments.
func (m *Memory) Len() int {
	mt := m.cache.Metrics
	return int(mt.KeysAdded() - mt.KeysEvicted())
}

// Bytes returns the encoded size of the cached segments.
func (m *Memory) Bytes() int64 {
	mt := m.cache.Metrics
	return int64(mt.CostAdded() - mt.CostEvicted())
}

// MaxBytes returns the bound.
func (m *Memory) MaxBytes() int64 { return m.maxBytes }

func (m *Memory) Close() error {
	m.cache.Close()
	return nil
}
