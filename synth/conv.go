package synth

import "math"

// blockSize is the number of frames voices render per step. Envelopes, LFOs
// and the filter are updated once per block.
const blockSize = 64

// noiseFloor is the amplitude below which a decaying voice is turned off.
const noiseFloor = 0.00003

// peakAttenuation is the attenuation, in centibels, treated as silence.
const peakAttenuation = 1440

const velocityTableSize = 128

var concaveTable, convexTable = func() (concave, convex [velocityTableSize]float64) {
	concave[velocityTableSize-1] = 1
	convex[velocityTableSize-1] = 1
	for i := 1; i < velocityTableSize-1; i++ {
		x := (-200.0 / 960) * math.Log10(float64(i*i)/float64((velocityTableSize-1)*(velocityTableSize-1)))
		convex[i] = 1 - x
		concave[velocityTableSize-1-i] = x
	}
	return
}()

func concave(i int) float64 {
	if i < 0 {
		return 0
	}
	if i >= velocityTableSize {
		return 1
	}
	return concaveTable[i]
}

func convex(i int) float64 {
	if i < 0 {
		return 0
	}
	if i >= velocityTableSize {
		return 1
	}
	return convexTable[i]
}

// ct2hz converts absolute cents to Hz; 6900 cents is 440 Hz.
func ct2hz(cents float64) float64 {
	return 8.175798915643707 * math.Exp2(cents/1200)
}

// cb2amp converts an attenuation in centibels to a linear gain.
func cb2amp(cb float64) float64 {
	if cb <= 0 {
		return 1
	}
	if cb >= peakAttenuation {
		return 0
	}
	return math.Pow(10, -cb/200)
}

func tc2sec(tc float64) float64 {
	return math.Exp2(tc / 1200)
}

func tc2secDelay(tc float64) float64 {
	if tc <= -32768 {
		return 0
	}
	return tc2sec(min(max(tc, -12000), 5000))
}

func tc2secAttack(tc float64) float64 {
	if tc <= -32768 {
		return 0
	}
	return tc2sec(min(max(tc, -12000), 8000))
}

func tc2secRelease(tc float64) float64 {
	return tc2secAttack(tc)
}

// panGains returns equal-power left and right gains for a pan position in
// 0.1% units, -500 (left) to 500 (right).
func panGains(pan float64) (left, right float64) {
	p := min(max(pan, -500), 500)
	angle := (p + 500) / 1000 * math.Pi / 2
	return math.Cos(angle), math.Sin(angle)
}

// buffers returns how many blocks a duration in seconds lasts.
func buffers(sampleRate, seconds float64) uint32 {
	n := sampleRate * seconds / blockSize
	if n <= 0 {
		return 0
	}
	if n >= math.MaxUint32 {
		return math.MaxUint32 - 1
	}
	return uint32(n)
}
