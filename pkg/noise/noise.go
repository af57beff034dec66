// Package noise holds the bank of background-noise spectrogram clips added
// to synthetic IMU spectrograms.
package noise

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path"
	"strings"

	"github.com/sbinet/npyio"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/vibvoice/vibsynth/pkg/storage"
)

var (
	// ErrCorpusEmpty is returned when the noise directory holds no clips.
	ErrCorpusEmpty = errors.New("noise: corpus is empty")

	// ErrShapeMismatch is returned for clips with too few frequency rows.
	ErrShapeMismatch = errors.New("noise: shape mismatch")

	// ErrClipTooShort is returned by Sample when no clip has enough frames.
	ErrClipTooShort = errors.New("noise: no clip long enough")
)

// Bank is an immutable set of [bins, frames] noise clips.
type Bank struct {
	bins  int
	clips []*mat.Dense
}

// NewBank builds a bank from in-memory clips. Clips with more than bins rows
// are cut to the first bins rows.
func NewBank(clips []*mat.Dense, bins int) (*Bank, error) {
	if len(clips) == 0 {
		return nil, ErrCorpusEmpty
	}
	b := &Bank{bins: bins, clips: make([]*mat.Dense, len(clips))}
	for i, c := range clips {
		fitted, err := fitRows(c, bins)
		if err != nil {
			return nil, fmt.Errorf("clip %d: %w", i, err)
		}
		b.clips[i] = fitted
	}
	return b, nil
}

func fitRows(m *mat.Dense, bins int) (*mat.Dense, error) {
	r, c := m.Dims()
	if r < bins {
		return nil, fmt.Errorf("%w: %d rows, want at least %d", ErrShapeMismatch, r, bins)
	}
	if r == bins {
		return mat.DenseCopyOf(m), nil
	}
	return mat.DenseCopyOf(m.Slice(0, bins, 0, c)), nil
}

// Len returns the number of clips.
func (b *Bank) Len() int { return len(b.clips) }

// Bins returns the row count of every clip.
func (b *Bank) Bins() int { return b.bins }

// Sample returns a random contiguous [bins, frames] window from a clip
// chosen uniformly among those with at least frames columns.
func (b *Bank) Sample(rng *rand.Rand, frames int) (*mat.Dense, error) {
	eligible := make([]*mat.Dense, 0, len(b.clips))
	for _, c := range b.clips {
		if _, cols := c.Dims(); cols >= frames {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: need %d frames", ErrClipTooShort, frames)
	}
	clip := eligible[rng.IntN(len(eligible))]
	_, cols := clip.Dims()
	start := rng.IntN(cols - frames + 1)
	return mat.DenseCopyOf(clip.Slice(0, b.bins, start, start+frames)), nil
}

// LoadOptions configures Load.
type LoadOptions struct {
	// Bins is the number of frequency rows kept from every clip.
	Bins int

	// Logger receives per-file diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Load reads every .npy or .msgpack clip in dir eagerly.
func Load(ctx context.Context, fs storage.FileStore, dir string, opts LoadOptions) (*Bank, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	paths, err := fs.List(ctx, dir, "")
	if err != nil {
		return nil, fmt.Errorf("noise: list %s: %w", dir, err)
	}

	var clips []*mat.Dense
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var decodeFn func([]byte) (*mat.Dense, error)
		switch strings.ToLower(path.Ext(p)) {
		case ".npy":
			decodeFn = DecodeNPY
		case ".msgpack":
			decodeFn = DecodeMsgpack
		default:
			logger.Debug("skip noise file", "path", p)
			continue
		}
		data, err := storage.ReadAll(ctx, fs, p)
		if err != nil {
			return nil, err
		}
		m, err := decodeFn(data)
		if err != nil {
			return nil, fmt.Errorf("noise: %s: %w", p, err)
		}
		if m, err = fitRows(m, opts.Bins); err != nil {
			return nil, fmt.Errorf("noise: %s: %w", p, err)
		}
		clips = append(clips, m)
	}
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCorpusEmpty, dir)
	}
	logger.Info("noise bank loaded", "dir", dir, "clips", len(clips), "bins", opts.Bins)
	return &Bank{bins: opts.Bins, clips: clips}, nil
}

// DecodeNPY decodes a 2-D .npy array.
func DecodeNPY(data []byte) (*mat.Dense, error) {
	var m mat.Dense
	if err := npyio.Read(bytes.NewReader(data), &m); err != nil {
		return nil, fmt.Errorf("decode npy: %w", err)
	}
	return &m, nil
}

// msgpackClip is the msgpack layout of a row-major clip.
type msgpackClip struct {
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

// DecodeMsgpack decodes a {rows, cols, data} map.
func DecodeMsgpack(data []byte) (*mat.Dense, error) {
	var c msgpackClip
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode msgpack: %w", err)
	}
	if c.Rows <= 0 || c.Cols <= 0 || len(c.Data) != c.Rows*c.Cols {
		return nil, fmt.Errorf("%w: %dx%d with %d values", ErrShapeMismatch, c.Rows, c.Cols, len(c.Data))
	}
	return mat.NewDense(c.Rows, c.Cols, c.Data), nil
}

// EncodeMsgpack encodes m in the layout read by DecodeMsgpack.
func EncodeMsgpack(m mat.Matrix) ([]byte, error) {
	r, c := m.Dims()
	return msgpack.Marshal(msgpackClip{Rows: r, Cols: c, Data: mat.DenseCopyOf(m).RawMatrix().Data})
}
