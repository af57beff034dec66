package dsp

import "gonum.org/v1/gonum/dsp/fourier"

// FFTConvolve returns the full linear convolution of x and h, of length
// len(x)+len(h)-1. Either input being empty yields nil.
func FFTConvolve(x, h []float64) []float64 {
	if len(x) == 0 || len(h) == 0 {
		return nil
	}
	n := len(x) + len(h) - 1
	fft := fourier.NewFFT(n)

	xp := make([]float64, n)
	copy(xp, x)
	hp := make([]float64, n)
	copy(hp, h)

	xc := fft.Coefficients(nil, xp)
	hc := fft.Coefficients(nil, hp)
	for i := range xc {
		xc[i] *= hc[i]
	}
	y := fft.Sequence(nil, xc)
	inv := 1 / float64(n)
	for i := range y {
		y[i] *= inv
	}
	return y
}
