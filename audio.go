package wavesynth

import "io"

type (
	// AudioBuffer is a buffer of stereo audio frames, left then right.
	AudioBuffer [][2]float32

	// Renderer fills a buffer with synthesized audio. Render must always
	// fill the whole buffer, with silence if there is nothing to play.
	Renderer interface {
		Render(buffer AudioBuffer)
	}

	// AudioSource is a pull-style source of audio. It returns io.EOF once
	// there is nothing more to read.
	AudioSource func(buf AudioBuffer) error

	// AudioContext plays audio sources on an output device.
	AudioContext interface {
		Play(r AudioSource) CloserWaiter
		Close() error
	}

	// CloserWaiter is a handle to something playing: Close stops it early,
	// Wait blocks until it has finished.
	CloserWaiter interface {
		Close() error
		Wait()
	}
)

// Clear zeroes the buffer.
func (b AudioBuffer) Clear() {
	clear(b)
}

// Source returns an AudioSource that reads the buffer once from the start.
func (b AudioBuffer) Source() AudioSource {
	pos := 0
	return func(buf AudioBuffer) error {
		if pos >= len(b) {
			return io.EOF
		}
		n := copy(buf, b[pos:])
		clear(buf[n:])
		pos += n
		return nil
	}
}

// RendererSource adapts a renderer into an endless AudioSource.
func RendererSource(r Renderer) AudioSource {
	return func(buf AudioBuffer) error {
		r.Render(buf)
		return nil
	}
}
