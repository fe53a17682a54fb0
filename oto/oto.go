// Package oto plays audio sources on the default output device. Audio is
// pulled: the device asks for bytes and the source, typically a synth,
// renders exactly that much.
package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/wavesynth"
)

type (
	// Context is an open output device.
	Context struct {
		ctx  *oto.Context
		rate int
	}

	// reader adapts an AudioSource to the byte stream oto pulls from.
	reader struct {
		src wavesynth.AudioSource
		buf wavesynth.AudioBuffer
		err error
	}

	playback struct {
		player *oto.Player
		once   sync.Once
		done   chan struct{}
	}
)

// bufferSize is the device buffer. Smaller means lower latency for live
// input but risks underruns.
const bufferSize = 50 * time.Millisecond

// NewContext opens the default output device at the given sample rate.
func NewContext(sampleRate int) (*Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx, rate: sampleRate}, nil
}

// SampleRate returns the rate the device was opened with.
func (c *Context) SampleRate() int { return c.rate }

// Play starts playing src. The returned handle stops playback on Close and
// Wait blocks until src has returned io.EOF and the device has drained.
func (c *Context) Play(src wavesynth.AudioSource) wavesynth.CloserWaiter {
	p := &playback{player: c.ctx.NewPlayer(&reader{src: src}), done: make(chan struct{})}
	p.player.Play()
	go p.watch()
	return p
}

// Close suspends the device. oto allows only one context per process, so
// the device itself stays open until the program exits.
func (c *Context) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (r *reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make(wavesynth.AudioBuffer, frames)
	}
	buf := r.buf[:frames]
	if err := r.src(buf); err != nil {
		r.err = err
		return 0, err
	}
	encodeFloat32LE(p, buf)
	return frames * frameBytes, nil
}

func (p *playback) watch() {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-t.C:
			if !p.player.IsPlaying() {
				p.finish()
				return
			}
		}
	}
}

func (p *playback) finish() {
	p.once.Do(func() { close(p.done) })
}

func (p *playback) Close() error {
	p.finish()
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

func (p *playback) Wait() {
	<-p.done
}
