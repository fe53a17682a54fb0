package synth

import "math"

// lowpass is a resonant biquad low-pass filter. Coefficients are only
// recomputed when the cutoff moves by more than a hundredth of a Hz.
type lowpass struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
	cutoff             float64
	q                  float64
	valid              bool
}

func (f *lowpass) reset() {
	*f = lowpass{}
}

// setQ sets the resonance from the filter Q generator, in centibels above
// DC gain.
func (f *lowpass) setQ(qcB float64) {
	qdB := qcB/10 - 3.01
	q := math.Pow(10, qdB/20)
	if q <= 0 {
		q = 0.001
	}
	if q != f.q {
		f.q = q
		f.valid = false
	}
}

func (f *lowpass) update(cutoff, sampleRate float64) {
	cutoff = min(max(cutoff, 5), 0.45*sampleRate)
	if f.valid && math.Abs(cutoff-f.cutoff) <= 0.01 {
		return
	}
	f.cutoff = cutoff
	f.valid = true
	w := 2 * math.Pi * cutoff / sampleRate
	cosw := math.Cos(w)
	alpha := math.Sin(w) / (2 * f.q)
	gain := 1.0
	if f.q > 1 {
		gain = 1 / math.Sqrt(f.q)
	}
	a0 := 1 + alpha
	f.b1 = (1 - cosw) / a0 * gain
	f.b0 = f.b1 / 2
	f.b2 = f.b1 / 2
	f.a1 = -2 * cosw / a0
	f.a2 = (1 - alpha) / a0
}

func (f *lowpass) process(buf []float32) {
	for i, v := range buf {
		x := float64(v)
		y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
		f.x2, f.x1 = f.x1, x
		f.y2, f.y1 = f.y1, y
		buf[i] = float32(y)
	}
}
