package dataset

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/vibvoice/vibsynth/pkg/audio/dsp"
)

// Matrix is a row-major real matrix.
type Matrix struct {
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

// ComplexMatrix is a row-major complex matrix with split parts.
type ComplexMatrix struct {
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Real []float64 `msgpack:"real"`
	Imag []float64 `msgpack:"imag"`
}

// Record is the on-disk form of a Tuple.
type Record struct {
	Index int           `msgpack:"index"`
	IMU   Matrix        `msgpack:"imu"`
	Noisy ComplexMatrix `msgpack:"noisy"`
	Clean ComplexMatrix `msgpack:"clean"`
	Label []string      `msgpack:"label,omitempty"`
}

func matrixOf(m *mat.Dense) Matrix {
	r, c := m.Dims()
	out := Matrix{Rows: r, Cols: c, Data: make([]float64, 0, r*c)}
	for i := range r {
		out.Data = append(out.Data, m.RawRowView(i)...)
	}
	return out
}

func complexOf(s dsp.Spectrogram) ComplexMatrix {
	out := ComplexMatrix{
		Rows: s.Bins,
		Cols: s.Frames,
		Real: make([]float64, len(s.Data)),
		Imag: make([]float64, len(s.Data)),
	}
	for i, v := range s.Data {
		out.Real[i] = real(v)
		out.Imag[i] = imag(v)
	}
	return out
}

// RecordOf converts example i to its serialized form.
func RecordOf(i int, t *Tuple) Record {
	return Record{
		Index: i,
		IMU:   matrixOf(t.IMU),
		Noisy: complexOf(t.Noisy),
		Clean: complexOf(t.Clean),
		Label: t.Label,
	}
}

// WriteRecord msgpack-encodes example i to w.
func WriteRecord(w io.Writer, i int, t *Tuple) error {
	if err := msgpack.NewEncoder(w).Encode(RecordOf(i, t)); err != nil {
		return fmt.Errorf("dataset: encode example %d: %w", i, err)
	}
	return nil
}

// ReadRecord decodes a Record written by WriteRecord.
func ReadRecord(r io.Reader) (Record, error) {
	var rec Record
	if err := msgpack.NewDecoder(r).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("dataset: decode record: %w", err)
	}
	if len(rec.IMU.Data) != rec.IMU.Rows*rec.IMU.Cols ||
		len(rec.Noisy.Real) != rec.Noisy.Rows*rec.Noisy.Cols ||
		len(rec.Clean.Real) != rec.Clean.Rows*rec.Clean.Cols {
		return Record{}, fmt.Errorf("dataset: record %d: data length does not match shape", rec.Index)
	}
	return rec, nil
}
