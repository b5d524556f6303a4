package aistrack

import "math"

// butter3Lowpass is a fixed 3rd-order digital Butterworth low-pass filter
// with normalized cutoff 0.2 (i.e. 0.1 x Nyquist=0.5), designed once per
// Smoother (in New) via the standard analog-prototype -> bilinear-transform
// pipeline. No filter-design library appears anywhere in the example
// corpus, so the coefficients are derived by hand here rather than
// imported; see DESIGN.md for the justification.
type butter3Lowpass struct {
	b [4]float64 // numerator (feedforward) coefficients
	a [4]float64 // denominator (feedback) coefficients, a[0] == 1
}

// newButter3Lowpass designs a 3rd-order Butterworth low-pass with the given
// normalized cutoff (0, 1), where 1.0 is Nyquist.
func newButter3Lowpass(normalizedCutoff float64) butter3Lowpass {
	// Analog Butterworth prototype poles (order 3, unit cutoff):
	// p_k = exp(i*pi*(2k+n+1)/(2n)), k=0..n-1.
	const n = 3
	warped := math.Tan(math.Pi * normalizedCutoff / 2) // bilinear prewarp

	type cplx struct{ re, im float64 }
	poles := make([]cplx, n)
	for k := 0; k < n; k++ {
		theta := math.Pi * (2*float64(k) + float64(n) + 1) / (2 * float64(n))
		poles[k] = cplx{re: warped * math.Cos(theta), im: warped * math.Sin(theta)}
	}

	// Bilinear transform s -> (z-1)/(z+1) maps each analog pole p to a
	// digital pole (1+p)/(1-p); the gain is fixed by a single
	// DC-normalization pass at the end.
	type poly struct{ c []cplx } // coefficients, ascending power, c[0] is constant term

	mulRoot := func(p poly, root cplx) poly {
		// multiply p(z) by (z - root)
		out := make([]cplx, len(p.c)+1)
		for i, c := range p.c {
			out[i+1].re += c.re
			out[i+1].im += c.im
			out[i].re -= c.re*root.re - c.im*root.im
			out[i].im -= c.re*root.im + c.im*root.re
		}
		return poly{c: out}
	}

	denom := poly{c: []cplx{{1, 0}}}
	for _, p := range poles {
		dz := cplx{re: (1 + p.re), im: p.im}
		base := cplx{re: (1 - p.re), im: -p.im}
		zpole := cplxDiv(dz, base)
		denom = mulRoot(denom, zpole)
	}

	// Numerator is (z+1)^3, scaled so that |H(1)| (DC) == 1 after forming
	// the ratio with the scaled denominator below.
	numer := poly{c: []cplx{{1, 0}}}
	for i := 0; i < n; i++ {
		numer = mulRoot(numer, cplx{re: -1, im: 0})
	}

	b := make([]float64, n+1)
	a := make([]float64, n+1)
	for i := 0; i <= n; i++ {
		a[i] = denom.c[i].re
		b[i] = numer.c[i].re
	}

	// Normalize so a[n] (highest power, corresponding to z^n) is 1 when
	// coefficients are read in descending-power difference-equation form.
	// Our poly convention stored ascending; reverse to descending order
	// matching the standard difference equation a0*y[k] = sum(b)x - sum(a)y.
	reverse := func(v []float64) []float64 {
		out := make([]float64, len(v))
		for i, x := range v {
			out[len(v)-1-i] = x
		}
		return out
	}
	bD := reverse(b)
	aD := reverse(a)

	lead := aD[0]
	for i := range aD {
		aD[i] /= lead
	}
	for i := range bD {
		bD[i] /= lead
	}

	// DC-gain normalize: H(z=1) should equal 1.
	var sumB, sumA float64
	for _, v := range bD {
		sumB += v
	}
	for _, v := range aD {
		sumA += v
	}
	if sumB != 0 {
		scale := sumA / sumB
		for i := range bD {
			bD[i] *= scale
		}
	}

	var f butter3Lowpass
	copy(f.b[:], bD)
	copy(f.a[:], aD)
	return f
}

type cplxT = struct{ re, im float64 }

func cplxAbs2(c cplxT) float64 { return c.re*c.re + c.im*c.im }
func cplxDiv(a, b cplxT) cplxT {
	d := cplxAbs2(b)
	return cplxT{
		re: (a.re*b.re + a.im*b.im) / d,
		im: (a.im*b.re - a.re*b.im) / d,
	}
}

// filtfilt applies the filter forward then backward (zero-phase) as in the
// spec's "causal/zero-phase forward-backward filtering" requirement.
func (f butter3Lowpass) filtfilt(x []float64) []float64 {
	if len(x) == 0 {
		return x
	}
	fwd := f.filter(x)
	reversed := make([]float64, len(fwd))
	for i, v := range fwd {
		reversed[len(fwd)-1-i] = v
	}
	bwd := f.filter(reversed)
	out := make([]float64, len(bwd))
	for i, v := range bwd {
		out[len(bwd)-1-i] = v
	}
	return out
}

// filter applies the causal IIR difference equation:
// y[k] = b0*x[k] + b1*x[k-1] + b2*x[k-2] + b3*x[k-3]
//        - a1*y[k-1] - a2*y[k-2] - a3*y[k-3]
// Initial conditions are the first sample held constant (matches the
// common "pad with edge value" initialization used for short histories).
func (f butter3Lowpass) filter(x []float64) []float64 {
	n := len(x)
	y := make([]float64, n)
	x0 := x[0]
	getX := func(i int) float64 {
		if i < 0 {
			return x0
		}
		return x[i]
	}
	getY := func(i int) float64 {
		if i < 0 {
			return x0
		}
		return y[i]
	}
	for k := 0; k < n; k++ {
		v := f.b[0]*getX(k) + f.b[1]*getX(k-1) + f.b[2]*getX(k-2) + f.b[3]*getX(k-3)
		v -= f.a[1]*getY(k-1) + f.a[2]*getY(k-2) + f.a[3]*getY(k-3)
		y[k] = v
	}
	return y
}
