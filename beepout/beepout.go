// Package beepout plays audio sources through the beep speaker, and exposes
// them as beep streamers so they can be mixed or encoded with the rest of the
// beep ecosystem.
package beepout

import (
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
	"github.com/vsariola/wavesynth"
)

type (
	// Streamer is a beep.Streamer reading from an AudioSource.
	Streamer struct {
		src     wavesynth.AudioSource
		buf     wavesynth.AudioBuffer
		err     error
		drained bool
		stopped bool
	}

	// Context plays sources on the speaker.
	Context struct {
		rate beep.SampleRate
	}

	playback struct {
		st   *Streamer
		done chan struct{}
	}
)

// NewStreamer wraps src. The streamer ends when src returns io.EOF; any other
// error ends it too and is reported by Err.
func NewStreamer(src wavesynth.AudioSource) *Streamer {
	return &Streamer{src: src}
}

func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	if s.drained || s.stopped {
		return 0, false
	}
	if cap(s.buf) < len(samples) {
		s.buf = make(wavesynth.AudioBuffer, len(samples))
	}
	buf := s.buf[:len(samples)]
	if err := s.src(buf); err != nil {
		s.drained = true
		if err != io.EOF {
			s.err = err
		}
		return 0, false
	}
	for i, f := range buf {
		samples[i] = [2]float64{float64(f[0]), float64(f[1])}
	}
	return len(samples), true
}

func (s *Streamer) Err() error { return s.err }

// NewContext initializes the speaker at sampleRate. latency is the speaker
// buffer length.
func NewContext(sampleRate int, latency time.Duration) (*Context, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(latency)); err != nil {
		return nil, fmt.Errorf("cannot init speaker: %w", err)
	}
	return &Context{rate: sr}, nil
}

// SampleRate returns the speaker rate.
func (c *Context) SampleRate() int { return int(c.rate) }

// Play mixes src into the speaker output.
func (c *Context) Play(src wavesynth.AudioSource) wavesynth.CloserWaiter {
	p := &playback{st: NewStreamer(src), done: make(chan struct{})}
	speaker.Play(beep.Seq(p.st, beep.Callback(func() { close(p.done) })))
	return p
}

// Close stops the speaker.
func (c *Context) Close() error {
	speaker.Close()
	return nil
}

func (p *playback) Close() error {
	speaker.Lock()
	p.st.stopped = true
	speaker.Unlock()
	return nil
}

func (p *playback) Wait() { <-p.done }

// Encode writes src to w as a 16-bit stereo WAV file until src ends.
func Encode(w io.WriteSeeker, src wavesynth.AudioSource, sampleRate int) error {
	st := NewStreamer(src)
	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 2, Precision: 2}
	if err := wav.Encode(w, st, format); err != nil {
		return fmt.Errorf("could not encode wav: %w", err)
	}
	return st.Err()
}
