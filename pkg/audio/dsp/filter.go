package dsp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrTooShort is returned when a signal is not longer than the edge padding
// required by FiltFilt.
var ErrTooShort = errors.New("dsp: signal too short for zero-phase filtering")

// ButterHighpass designs an order-n digital Butterworth high-pass filter with
// a -3 dB point at cutoff Hz for sample rate fs, in transfer-function form.
// Design goes through the analog prototype, a high-pass frequency transform,
// and the pre-warped bilinear transform.
func ButterHighpass(order int, cutoff, fs float64) (b, a []float64, err error) {
	if order < 1 {
		return nil, nil, fmt.Errorf("dsp: filter order %d < 1", order)
	}
	if cutoff <= 0 || cutoff >= fs/2 {
		return nil, nil, fmt.Errorf("dsp: cutoff %g Hz outside (0, %g)", cutoff, fs/2)
	}

	fs2 := 2 * fs
	warped := fs2 * math.Tan(math.Pi*cutoff/fs)

	// Analog prototype poles on the unit circle, mapped by s -> warped/s.
	poles := make([]complex128, order)
	prodNegP := complex(1, 0)
	for k := range order {
		m := float64(-order + 1 + 2*k)
		p := -cexp(math.Pi * m / float64(2*order))
		prodNegP *= -p
		poles[k] = complex(warped, 0) / p
	}
	gain := 1 / real(prodNegP)

	// Bilinear transform. Every analog zero sits at s=0 and maps to z=1.
	zpoles := make([]complex128, order)
	den := complex(1, 0)
	for i, p := range poles {
		zpoles[i] = (complex(fs2, 0) + p) / (complex(fs2, 0) - p)
		den *= complex(fs2, 0) - p
	}
	gain *= real(complex(math.Pow(fs2, float64(order)), 0) / den)

	zeros := make([]complex128, order)
	for i := range zeros {
		zeros[i] = 1
	}

	bc := poly(zeros)
	ac := poly(zpoles)
	b = make([]float64, order+1)
	a = make([]float64, order+1)
	for i := range b {
		b[i] = gain * real(bc[i])
		a[i] = real(ac[i])
	}
	return b, a, nil
}

func cexp(theta float64) complex128 {
	return complex(math.Cos(theta), math.Sin(theta))
}

// poly expands prod(x - r) into coefficients, highest power first.
func poly(roots []complex128) []complex128 {
	c := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(c)+1)
		copy(next, c)
		for i := 1; i < len(next); i++ {
			next[i] -= r * c[i-1]
		}
		c = next
	}
	return c
}

// normalize pads b and a to the same length and divides both by a[0].
func normalize(b, a []float64) (nb, na []float64) {
	n := max(len(a), len(b))
	nb = make([]float64, n)
	na = make([]float64, n)
	copy(nb, b)
	copy(na, a)
	a0 := na[0]
	for i := range n {
		nb[i] /= a0
		na[i] /= a0
	}
	return nb, na
}

// LFilter runs a direct form II transposed IIR filter over x. zi holds the
// initial delay-line state (len = max(len(a), len(b)) - 1) and may be nil.
// It returns the output and the final state.
func LFilter(b, a, x, zi []float64) (y, zf []float64) {
	b, a = normalize(b, a)
	n := len(a)
	z := make([]float64, n-1)
	copy(z, zi)
	y = make([]float64, len(x))
	for i, xi := range x {
		if n == 1 {
			y[i] = b[0] * xi
			continue
		}
		yi := b[0]*xi + z[0]
		for j := 0; j < n-2; j++ {
			z[j] = b[j+1]*xi + z[j+1] - a[j+1]*yi
		}
		z[n-2] = b[n-1]*xi - a[n-1]*yi
		y[i] = yi
	}
	return y, z
}

// LFilterZI returns the steady-state delay-line state of LFilter for a unit
// step input.
func LFilterZI(b, a []float64) ([]float64, error) {
	b, a = normalize(b, a)
	n := len(a)
	if n < 2 {
		return nil, nil
	}
	m := n - 1

	// (I - companion(a)^T) zi = b[1:] - a[1:]*b[0]
	lhs := mat.NewDense(m, m, nil)
	rhs := mat.NewVecDense(m, nil)
	for r := range m {
		lhs.Set(r, 0, a[r+1])
		if r+1 < m {
			lhs.Set(r, r+1, -1)
		}
		rhs.SetVec(r, b[r+1]-a[r+1]*b[0])
	}
	lhs.Set(0, 0, lhs.At(0, 0)+1)
	for r := 1; r < m; r++ {
		lhs.Set(r, r, lhs.At(r, r)+1)
	}

	var zi mat.VecDense
	if err := zi.SolveVec(lhs, rhs); err != nil {
		return nil, fmt.Errorf("dsp: lfilter_zi: %w", err)
	}
	return zi.RawVector().Data, nil
}

// FiltFilt applies the filter forward and backward for zero phase
// distortion. The signal is extended at both ends by an odd reflection of
// 3*max(len(a), len(b)) samples, and each pass starts from the steady-state
// delay-line scaled to the first sample.
func FiltFilt(b, a, x []float64) ([]float64, error) {
	edge := 3 * max(len(a), len(b))
	if len(x) <= edge {
		return nil, fmt.Errorf("%w: %d samples, need more than %d", ErrTooShort, len(x), edge)
	}
	zi, err := LFilterZI(b, a)
	if err != nil {
		return nil, err
	}

	ext := oddExtend(x, edge)
	y, _ := LFilter(b, a, ext, scaled(zi, ext[0]))
	reverse(y)
	y, _ = LFilter(b, a, y, scaled(zi, y[0]))
	reverse(y)
	return y[edge : len(y)-edge], nil
}

func oddExtend(x []float64, edge int) []float64 {
	n := len(x)
	out := make([]float64, n+2*edge)
	for i := range edge {
		out[i] = 2*x[0] - x[edge-i]
		out[n+edge+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(out[edge:], x)
	return out
}

func scaled(v []float64, s float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// Highpass is a designed Butterworth high-pass applied with FiltFilt.
type Highpass struct {
	b, a []float64
}

// NewHighpass designs the filter once so it can be shared across goroutines.
func NewHighpass(order int, cutoff, fs float64) (*Highpass, error) {
	b, a, err := ButterHighpass(order, cutoff, fs)
	if err != nil {
		return nil, err
	}
	return &Highpass{b: b, a: a}, nil
}

// Apply filters x with zero phase.
func (h *Highpass) Apply(x []float64) ([]float64, error) {
	return FiltFilt(h.b, h.a, x)
}

// Coefficients returns copies of the numerator and denominator.
func (h *Highpass) Coefficients() (b, a []float64) {
	return append([]float64(nil), h.b...), append([]float64(nil), h.a...)
}
