package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/sbinet/npyio/npz"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/vibvoice/vibsynth/pkg/storage"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Size is the resampled population size N.
	Size int

	// Bins is the expected number of frequency bins per record.
	Bins int

	// Logger receives per-file diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Load reads every record in dir and resamples the population to
// opts.Size rows. Files with an unrecognised extension are skipped.
func Load(ctx context.Context, fs storage.FileStore, dir string, opts LoadOptions) (*Population, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := fs.List(ctx, dir, "")
	if err != nil {
		return nil, fmt.Errorf("transfer: list %s: %w", dir, err)
	}

	var records []Record
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var decodeFn func([]byte) (Record, error)
		switch strings.ToLower(path.Ext(p)) {
		case ".npz":
			decodeFn = DecodeNPZ
		case ".msgpack":
			decodeFn = DecodeMsgpack
		default:
			logger.Debug("skip transfer file", "path", p)
			continue
		}
		data, err := storage.ReadAll(ctx, fs, p)
		if err != nil {
			return nil, err
		}
		rec, err := decodeFn(data)
		if err != nil {
			return nil, fmt.Errorf("transfer: %s: %w", p, err)
		}
		if err := rec.Validate(opts.Bins); err != nil {
			return nil, fmt.Errorf("transfer: %s: %w", p, err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCorpusEmpty, dir)
	}

	pop, err := Resample(records, opts.Size)
	if err != nil {
		return nil, err
	}
	logger.Info("transfer functions loaded", "dir", dir, "records", len(records), "size", pop.Len(), "bins", pop.Bins())
	return pop, nil
}

// DecodeNPZ decodes an npz archive holding "response" and "variance" arrays.
func DecodeNPZ(data []byte) (Record, error) {
	r, err := npz.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Record{}, fmt.Errorf("open npz: %w", err)
	}
	var rec Record
	if rec.Response, err = readArray(r, "response"); err != nil {
		return Record{}, err
	}
	if rec.Variance, err = readArray(r, "variance"); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func readArray(r *npz.Reader, name string) ([]float64, error) {
	for _, k := range r.Keys() {
		if k != name && k != name+".npy" {
			continue
		}
		var v []float64
		if err := r.Read(k, &v); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingArray, name)
}

// DecodeMsgpack decodes a msgpack map with "response" and "variance" keys.
func DecodeMsgpack(data []byte) (Record, error) {
	var raw map[string][]float64
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("decode msgpack: %w", err)
	}
	var rec Record
	var ok bool
	if rec.Response, ok = raw["response"]; !ok {
		return Record{}, fmt.Errorf("%w: response", ErrMissingArray)
	}
	if rec.Variance, ok = raw["variance"]; !ok {
		return Record{}, fmt.Errorf("%w: variance", ErrMissingArray)
	}
	return rec, nil
}

// WriteNPZ writes the population as an npz archive with N x F "response"
// and "variance" arrays.
func WriteNPZ(w io.Writer, p *Population) error {
	zw := npz.NewWriter(w)
	if err := zw.Write("response", p.Response); err != nil {
		zw.Close()
		return fmt.Errorf("transfer: write response: %w", err)
	}
	if err := zw.Write("variance", p.Variance); err != nil {
		zw.Close()
		return fmt.Errorf("transfer: write variance: %w", err)
	}
	return zw.Close()
}

// ReadNPZ reads a population written by WriteNPZ.
func ReadNPZ(data []byte) (*Population, error) {
	r, err := npz.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("transfer: open npz: %w", err)
	}
	p := &Population{Response: &mat.Dense{}, Variance: &mat.Dense{}}
	for name, dst := range map[string]*mat.Dense{"response": p.Response, "variance": p.Variance} {
		key := ""
		for _, k := range r.Keys() {
			if k == name || k == name+".npy" {
				key = k
			}
		}
		if key == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingArray, name)
		}
		if err := r.Read(key, dst); err != nil {
			return nil, fmt.Errorf("transfer: read %s: %w", name, err)
		}
	}
	return p, nil
}
