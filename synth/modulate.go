package synth

import "github.com/vsariola/wavesynth"

// modValue returns the current contribution of m to its destination.
func (v *Voice) modValue(m *wavesynth.Modulator) float64 {
	if m.Src1 == wavesynth.ModNone && !m.Flags1.CC() {
		return 0
	}
	val, rng := v.sourceValue(m.Src1, m.Flags1)
	v1 := transform(val, rng, m.Flags1)
	v2 := 1.0
	if m.Src2 != wavesynth.ModNone || m.Flags2.CC() {
		val, rng = v.sourceValue(m.Src2, m.Flags2)
		v2 = transform(val, rng, m.Flags2)
	}
	return v1 * v2 * m.Amount
}

// sourceValue returns the raw controller value and its range.
func (v *Voice) sourceValue(src wavesynth.ModSource, flags wavesynth.ModFlags) (val, rng float64) {
	ch := v.ch
	if ch == nil {
		return 0, 127
	}
	if flags.CC() {
		return float64(ch.cc[src&127]), 127
	}
	switch src {
	case wavesynth.ModVelocity:
		return float64(v.vel), 127
	case wavesynth.ModKey:
		return float64(v.key), 127
	case wavesynth.ModChanPressure:
		return float64(ch.channelPressure), 127
	case wavesynth.ModPitchWheel:
		return float64(ch.pitchBend), 0x4000
	case wavesynth.ModPitchWheelSens:
		return float64(ch.pitchWheelSens), 127
	}
	return 0, 127
}

// transform maps a controller value to the modulator source curve given by
// flags. Unipolar curves return 0..1 and bipolar ones -1..1.
func transform(val, rng float64, flags wavesynth.ModFlags) float64 {
	n := min(max(val/rng, 0), 1)
	if flags.Negative() {
		n = 1 - n
	}
	const top = velocityTableSize - 1
	var curve func(int) float64
	switch flags.Shape() {
	case wavesynth.ModConcave:
		curve = concave
	case wavesynth.ModConvex:
		curve = convex
	case wavesynth.ModSwitch:
		x := 0.0
		if n >= 0.5 {
			x = 1
		}
		if flags.Bipolar() {
			return 2*x - 1
		}
		return x
	default:
		if flags.Bipolar() {
			return 2*n - 1
		}
		return n
	}
	if !flags.Bipolar() {
		return curve(int(top * n))
	}
	if n > 0.5 {
		return curve(int(top * 2 * (n - 0.5)))
	}
	return -curve(int(top * 2 * (0.5 - n)))
}

// readsSource reports whether m has the given controller as either source.
func readsSource(m *wavesynth.Modulator, isCC bool, ctrl int) bool {
	return (m.Flags1.CC() == isCC && int(m.Src1) == ctrl) ||
		(m.Flags2.CC() == isCC && int(m.Src2) == ctrl)
}
