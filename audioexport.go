package wavesynth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// Wav writes the buffer as a 16-bit stereo .wav file at the given sample
// rate.
func (buffer AudioBuffer) Wav(w io.WriteSeeker, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 2,
		},
		Data:           buffer.interleaved(),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("could not encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("could not finish wav: %w", err)
	}
	return nil
}

// Raw returns the buffer as headerless little-endian interleaved stereo,
// either float32 or, when pcm16 is set, signed 16-bit.
func (buffer AudioBuffer) Raw(pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	var err error
	if pcm16 {
		int16data := make([][2]int16, len(buffer))
		for i, v := range buffer {
			int16data[i] = [2]int16{toPCM16(v[0]), toPCM16(v[1])}
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, buffer)
	}
	if err != nil {
		return nil, fmt.Errorf("could not binary write data to binary buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func (buffer AudioBuffer) interleaved() []float32 {
	ret := make([]float32, 0, len(buffer)*2)
	for _, v := range buffer {
		ret = append(ret, v[0], v[1])
	}
	return ret
}

func toPCM16(v float32) int16 {
	return int16(min(max(v*math.MaxInt16, math.MinInt16), math.MaxInt16))
}
