package dataset

import (
	"errors"
	"fmt"
	"math"

	"github.com/vibvoice/vibsynth/pkg/config"
)

// ErrOutOfRange is returned when an example number is outside [0, Len()).
var ErrOutOfRange = errors.New("dataset: index out of range")

// Window describes how files are cut into examples.
type Window struct {
	// Segment is the example length in seconds. Zero means one example
	// covering each whole file.
	Segment float64

	// Stride is the distance between consecutive example starts, in seconds.
	// Zero or negative means Segment, so windows do not overlap.
	Stride float64

	// Pad keeps files shorter than Segment as one zero-padded example and
	// rounds the window count of longer files up.
	Pad bool
}

// WindowOf returns the window configured in cfg.
func WindowOf(cfg config.Pipeline) Window {
	return Window{Segment: cfg.SegmentSeconds, Stride: cfg.StrideSeconds, Pad: cfg.Pad}
}

// Coordinate locates one example inside a file.
type Coordinate struct {
	// File is the position of Entry in the index.
	File  int
	Entry Entry

	// Offset and Duration are in seconds. Duration is zero for whole-file
	// examples.
	Offset   float64
	Duration float64
}

// Index maps flat example numbers onto windows of a file list. It is
// immutable after construction.
type Index struct {
	entries []Entry
	counts  []int
	total   int
	window  Window
	rate    int
}

// NewIndex computes per-file example counts for entries sampled at rate.
func NewIndex(entries []Entry, w Window, rate int) *Index {
	ix := &Index{
		entries: entries,
		counts:  make([]int, len(entries)),
		window:  w,
		rate:    rate,
	}
	for i, e := range entries {
		ix.counts[i] = w.examples(e.Samples, rate)
		ix.total += ix.counts[i]
	}
	return ix
}

func (w Window) step() float64 {
	if w.Stride <= 0 {
		return w.Segment
	}
	return w.Stride
}

func (w Window) examples(samples, rate int) int {
	if w.Segment <= 0 {
		return 1
	}
	seg := w.Segment * float64(rate)
	n := float64(samples)
	if n < seg {
		if w.Pad {
			return 1
		}
		return 0
	}
	steps := (n - seg) / (w.step() * float64(rate))
	if w.Pad {
		return int(math.Ceil(steps)) + 1
	}
	return int(math.Floor(steps)) + 1
}

// Len returns the total number of examples.
func (ix *Index) Len() int { return ix.total }

// Rate returns the sample rate the index was built for.
func (ix *Index) Rate() int { return ix.rate }

// Window returns the windowing parameters.
func (ix *Index) Window() Window { return ix.window }

// Entries returns the indexed files.
func (ix *Index) Entries() []Entry { return ix.entries }

// Counts returns the number of examples contributed by each file.
func (ix *Index) Counts() []int {
	out := make([]int, len(ix.counts))
	copy(out, ix.counts)
	return out
}

// Resolve maps example i to its file and time offset.
func (ix *Index) Resolve(i int) (Coordinate, error) {
	if i < 0 || i >= ix.total {
		return Coordinate{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, ix.total)
	}
	local := i
	for f, n := range ix.counts {
		if local >= n {
			local -= n
			continue
		}
		c := Coordinate{File: f, Entry: ix.entries[f]}
		if ix.window.Segment > 0 {
			c.Offset = ix.window.step() * float64(local)
			c.Duration = ix.window.Segment
		}
		return c, nil
	}
	// Unreachable: counts sum to total.
	return Coordinate{}, fmt.Errorf("%w: %d", ErrOutOfRange, i)
}
