package player

import (
	"context"

	"github.com/vsariola/wavesynth"
)

// blockFrames is how many frames are rendered between two Advance calls.
const blockFrames = 256

// Render plays p from the start into a buffer, until the sequence has ended
// and the engine has gone silent, or tailMs after the end at the latest.
// A looping player is rendered once through. Cancelling ctx returns what was
// rendered so far together with the context error.
func Render(ctx context.Context, p *FilePlayer, tailMs float64) (wavesynth.AudioBuffer, error) {
	loop := p.opts.Loop
	p.opts.Loop = false
	defer func() { p.opts.Loop = loop }()

	rate := p.engine.SampleRate()
	blockMs := float64(blockFrames) * 1000 / float64(rate)
	frames := int(p.Duration()/1000*float64(rate)) + blockFrames
	out := make(wavesynth.AudioBuffer, 0, frames)
	block := make(wavesynth.AudioBuffer, blockFrames)
	p.Play()
	var tail float64
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		status := p.Advance(blockMs)
		p.engine.Render(block)
		out = append(out, block...)
		if status != StatusEnded {
			continue
		}
		tail += blockMs
		if p.engine.Stats().ActiveVoices == 0 || tail >= tailMs {
			return out, nil
		}
	}
}
