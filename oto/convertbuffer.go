package oto

import (
	"encoding/binary"
	"math"

	"github.com/vsariola/wavesynth"
)

// frameBytes is the size of one stereo float32 frame.
const frameBytes = 8

// encodeFloat32LE writes buf as interleaved little-endian float32 samples
// into dst, which must hold len(buf)*frameBytes bytes.
func encodeFloat32LE(dst []byte, buf wavesynth.AudioBuffer) {
	for i, f := range buf {
		binary.LittleEndian.PutUint32(dst[i*frameBytes:], math.Float32bits(f[0]))
		binary.LittleEndian.PutUint32(dst[i*frameBytes+4:], math.Float32bits(f[1]))
	}
}
