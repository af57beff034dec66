// Package dsp implements the signal-processing primitives of the synthesis
// pipeline: short-time Fourier analysis, Butterworth high-pass design with
// zero-phase filtering, and FFT convolution.
//
// STFT output follows the scipy.signal.stft convention used to train the
// enhancement models:
//
//	Window:   periodic Hann
//	Boundary: window/2 zeros on each side
//	Padding:  tail zero-padded to a whole number of hops
//	Scaling:  1 / sum(window)
//
// so that a segment of L samples analysed with hop H yields floor(L/H)+1
// frames and window/2+1 bins.
package dsp

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// Spectrogram is a complex time-frequency array stored row-major by
// frequency bin: Data[bin*Frames+frame].
type Spectrogram struct {
	Bins   int
	Frames int
	Data   []complex128
}

// At returns the coefficient at (bin, frame).
func (s Spectrogram) At(bin, frame int) complex128 {
	return s.Data[bin*s.Frames+frame]
}

// Truncate returns a copy holding only the first bins rows.
func (s Spectrogram) Truncate(bins int) Spectrogram {
	if bins > s.Bins {
		bins = s.Bins
	}
	data := make([]complex128, bins*s.Frames)
	copy(data, s.Data[:bins*s.Frames])
	return Spectrogram{Bins: bins, Frames: s.Frames, Data: data}
}

// Magnitude returns |s| as a Bins x Frames matrix.
func (s Spectrogram) Magnitude() *mat.Dense {
	out := make([]float64, len(s.Data))
	for i, c := range s.Data {
		out[i] = cmplx.Abs(c)
	}
	return mat.NewDense(s.Bins, s.Frames, out)
}

// STFT computes short-time Fourier transforms with a fixed window and
// overlap. It is safe for concurrent use.
type STFT struct {
	window int
	hop    int
	win    []float64
	scale  float64
	plans  sync.Pool
}

// NewSTFT creates an analyser. overlap must be smaller than window.
func NewSTFT(window, overlap int) *STFT {
	s := &STFT{
		window: window,
		hop:    window - overlap,
		win:    hannPeriodic(window),
	}
	sum := 0.0
	for _, w := range s.win {
		sum += w
	}
	s.scale = 1 / sum
	s.plans.New = func() any { return fourier.NewFFT(window) }
	return s
}

// Bins returns the number of one-sided frequency bins.
func (s *STFT) Bins() int {
	return s.window/2 + 1
}

// Frames returns the frame count for an input of n samples.
func (s *STFT) Frames(n int) int {
	total := s.paddedLen(n)
	return (total-s.window)/s.hop + 1
}

func (s *STFT) paddedLen(n int) int {
	l := n + 2*(s.window/2)
	rem := (-(l - s.window)) % s.hop
	if rem < 0 {
		rem += s.hop
	}
	return l + rem%s.window
}

// Transform returns the complex STFT of x.
func (s *STFT) Transform(x []float64) Spectrogram {
	half := s.window / 2
	total := s.paddedLen(len(x))
	padded := make([]float64, total)
	copy(padded[half:], x)

	frames := (total-s.window)/s.hop + 1
	bins := s.Bins()
	out := Spectrogram{Bins: bins, Frames: frames, Data: make([]complex128, bins*frames)}

	plan := s.plans.Get().(*fourier.FFT)
	defer s.plans.Put(plan)

	frame := make([]float64, s.window)
	coeff := make([]complex128, bins)
	for t := 0; t < frames; t++ {
		start := t * s.hop
		for i := range frame {
			frame[i] = padded[start+i] * s.win[i]
		}
		coeff = plan.Coefficients(coeff, frame)
		for k := 0; k < bins; k++ {
			out.Data[k*frames+t] = coeff[k] * complex(s.scale, 0)
		}
	}
	return out
}

// Magnitude returns the STFT magnitude of a multi-channel signal, combining
// channels by the L2 norm of their per-channel magnitudes. A single channel
// yields plain |STFT|.
func (s *STFT) Magnitude(channels [][]float64) *mat.Dense {
	if len(channels) == 1 {
		return s.Transform(channels[0]).Magnitude()
	}
	var acc []float64
	var bins, frames int
	for _, ch := range channels {
		spec := s.Transform(ch)
		if acc == nil {
			bins, frames = spec.Bins, spec.Frames
			acc = make([]float64, len(spec.Data))
		}
		for i, c := range spec.Data {
			m := cmplx.Abs(c)
			acc[i] += m * m
		}
	}
	for i, v := range acc {
		acc[i] = math.Sqrt(v)
	}
	return mat.NewDense(bins, frames, acc)
}

// hannPeriodic returns the DFT-even Hann window of length n.
func hannPeriodic(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
