// Package synth fabricates motion-sensor spectrograms from clean speech.
//
// A Generator draws one measured transfer function per call, perturbs it
// with per-frame Gaussian variation, applies it to the low band of a clean
// speech magnitude spectrogram and adds a background vibration floor.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vibvoice/vibsynth/pkg/config"
	"github.com/vibvoice/vibsynth/pkg/transfer"
)

// ErrShapeMismatch is returned when the population or an input spectrogram
// does not cover the sensor band.
var ErrShapeMismatch = errors.New("synth: shape mismatch")

// NoiseSource supplies [bins, frames] background windows.
// *noise.Bank satisfies it.
type NoiseSource interface {
	Sample(rng *rand.Rand, frames int) (*mat.Dense, error)
}

// Generator produces synthetic sensor spectrograms. It is read-only after
// construction and safe for concurrent use when each goroutine passes its
// own rng.
type Generator struct {
	pop   *transfer.Population
	noise NoiseSource
	bins  int
	gain  float64
	eps   float64
}

// New creates a Generator. The population must have cfg.FreqBinHigh() bins.
func New(pop *transfer.Population, noise NoiseSource, cfg config.Pipeline) (*Generator, error) {
	bins := cfg.FreqBinHigh()
	if pop.Bins() != bins {
		return nil, fmt.Errorf("%w: population has %d bins, want %d", ErrShapeMismatch, pop.Bins(), bins)
	}
	return &Generator{
		pop:   pop,
		noise: noise,
		bins:  bins,
		gain:  cfg.NoiseGain,
		eps:   cfg.Epsilon,
	}, nil
}

// Bins returns the number of output frequency rows.
func (g *Generator) Bins() int { return g.bins }

// Synthesize returns a [bins, T] sensor magnitude spectrogram for a clean
// magnitude spectrogram with at least bins rows and T frames.
func (g *Generator) Synthesize(rng *rand.Rand, clean mat.Matrix) (*mat.Dense, error) {
	rows, frames := clean.Dims()
	if rows < g.bins {
		return nil, fmt.Errorf("%w: clean has %d bins, want at least %d", ErrShapeMismatch, rows, g.bins)
	}

	response, variance := g.pop.Row(rng.IntN(g.pop.Len()))
	peak := math.Max(floats.Max(response), g.eps)
	floats.Scale(1/peak, response)
	floats.Scale(1/peak, variance)

	bg, err := g.noise.Sample(rng, frames)
	if err != nil {
		return nil, fmt.Errorf("synth: background: %w", err)
	}
	if r, c := bg.Dims(); r != g.bins || c != frames {
		return nil, fmt.Errorf("%w: background is %dx%d, want %dx%d", ErrShapeMismatch, r, c, g.bins, frames)
	}

	// One standard-normal draw per cell, scaled per row by the variance.
	z := make([]float64, g.bins*frames)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	for i := range z {
		z[i] = normal.Rand()
	}
	gains := mat.NewDense(g.bins, frames, z)
	gains.Apply(func(i, _ int, v float64) float64 {
		return response[i] + variance[i]*v
	}, gains)

	var low mat.Matrix
	if d, ok := clean.(*mat.Dense); ok {
		low = d.Slice(0, g.bins, 0, frames)
	} else {
		low = mat.DenseCopyOf(clean).Slice(0, g.bins, 0, frames)
	}

	out := mat.NewDense(g.bins, frames, nil)
	out.MulElem(gains, low)
	var floor mat.Dense
	floor.Scale(g.gain, bg)
	out.Add(out, &floor)
	return out, nil
}
