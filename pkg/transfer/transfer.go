// Package transfer holds the population of measured speech-to-vibration
// transfer functions and resamples it to a fixed size.
//
// Each measurement is a [Record]: per-frequency-bin response magnitudes and
// their variance over the analysis band. A [Population] stacks N records so
// the synthesis stage can draw a random device response per example.
package transfer

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrCorpusEmpty is returned when no usable record was found.
	ErrCorpusEmpty = errors.New("transfer: corpus is empty")

	// ErrShapeMismatch is returned when a record does not cover the expected
	// number of frequency bins.
	ErrShapeMismatch = errors.New("transfer: shape mismatch")

	// ErrMissingArray is returned when a record file lacks a named array.
	ErrMissingArray = errors.New("transfer: missing array")
)

// Record is one measured transfer function.
type Record struct {
	Response []float64 `msgpack:"response"`
	Variance []float64 `msgpack:"variance"`
}

// Validate checks that both arrays have bins entries.
func (r Record) Validate(bins int) error {
	if len(r.Response) != bins || len(r.Variance) != bins {
		return fmt.Errorf("%w: response %d, variance %d, want %d bins",
			ErrShapeMismatch, len(r.Response), len(r.Variance), bins)
	}
	return nil
}

// Population is an N x F stack of responses and variances.
type Population struct {
	Response *mat.Dense
	Variance *mat.Dense
}

// Len returns the number of rows.
func (p *Population) Len() int {
	r, _ := p.Response.Dims()
	return r
}

// Bins returns the number of frequency bins.
func (p *Population) Bins() int {
	_, c := p.Response.Dims()
	return c
}

// Row returns copies of row i.
func (p *Population) Row(i int) (response, variance []float64) {
	return mat.Row(nil, i, p.Response), mat.Row(nil, i, p.Variance)
}

// Resample builds an n-row population from records. For every frequency bin
// independently, the values across the population are sorted and a
// piecewise-linear curve over evenly spaced positions in [0, 1] is evaluated
// at n evenly spaced positions. A single record is replicated.
func Resample(records []Record, n int) (*Population, error) {
	if len(records) == 0 {
		return nil, ErrCorpusEmpty
	}
	if n < 1 {
		return nil, fmt.Errorf("transfer: population size %d < 1", n)
	}
	bins := len(records[0].Response)
	for i, r := range records {
		if err := r.Validate(bins); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	resp := mat.NewDense(n, bins, nil)
	vari := mat.NewDense(n, bins, nil)
	col := make([]float64, len(records))
	for j := range bins {
		for i, r := range records {
			col[i] = r.Response[j]
		}
		if err := resampleColumn(resp, j, col); err != nil {
			return nil, err
		}
		for i, r := range records {
			col[i] = r.Variance[j]
		}
		if err := resampleColumn(vari, j, col); err != nil {
			return nil, err
		}
	}
	return &Population{Response: resp, Variance: vari}, nil
}

// resampleColumn fills column j of dst with the sorted values of col
// stretched to dst's row count.
func resampleColumn(dst *mat.Dense, j int, col []float64) error {
	n, _ := dst.Dims()
	sorted := slices.Clone(col)
	slices.Sort(sorted)

	if len(sorted) == 1 {
		for i := range n {
			dst.Set(i, j, sorted[0])
		}
		return nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(linspace(len(sorted)), sorted); err != nil {
		return fmt.Errorf("transfer: fit bin %d: %w", j, err)
	}
	for i, x := range linspace(n) {
		dst.Set(i, j, pl.Predict(x))
	}
	return nil
}

// linspace returns n evenly spaced values over [0, 1].
func linspace(n int) []float64 {
	xs := make([]float64, n)
	if n == 1 {
		return xs
	}
	for i := range xs {
		xs[i] = float64(i) / float64(n-1)
	}
	xs[n-1] = 1
	return xs
}

// BinStats summarises one frequency bin of the response matrix.
type BinStats struct {
	Bin    int     `json:"bin" yaml:"bin"`
	Min    float64 `json:"min" yaml:"min"`
	Median float64 `json:"median" yaml:"median"`
	Max    float64 `json:"max" yaml:"max"`
}

// Summary returns per-bin statistics of the response.
func (p *Population) Summary() []BinStats {
	out := make([]BinStats, p.Bins())
	for j := range out {
		col := mat.Col(nil, j, p.Response)
		slices.Sort(col)
		out[j] = BinStats{
			Bin:    j,
			Min:    col[0],
			Median: stat.Quantile(0.5, stat.Empirical, col, nil),
			Max:    col[len(col)-1],
		}
	}
	return out
}
