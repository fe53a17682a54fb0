// Package player plays a sequence of note events on a synth. FilePlayer is
// driven by explicit Advance calls, so the same player serves real-time
// playback, where a goroutine advances it with the wall clock, and offline
// rendering, where it is advanced by the length of each rendered block.
package player

import (
	"fmt"

	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/seq"
	"github.com/vsariola/wavesynth/synth"
)

type (
	// Source is a sequence the player can seek in and retime.
	Source interface {
		wavesynth.SequenceSource
		Seek(timeMs float64) float64
		DurationMs() float64
		SetSpeed(speed float64)
		Tempo(timeMs float64) float64
	}

	// Engine is the synth the player plays on.
	Engine interface {
		wavesynth.Renderer
		PlayEvent(ev *wavesynth.NoteEvent)
		ClearAllSound(destroy bool)
		SampleRate() int
		Stats() synth.Stats
	}

	// FilePlayer schedules the events of a Source on an Engine. It is not
	// safe for concurrent use; the goroutine calling Advance should own it.
	FilePlayer struct {
		src    Source
		engine Engine
		opts   Options

		status    Status
		position  float64 // ms into the sequence
		pauseLeft float64 // ms until a timed pause ends, 0 for indefinite
		tempo     float64
		speed     float64
		played    int
		loops     int
	}

	// Options configure a FilePlayer.
	Options struct {
		Loop bool
		// Speed scales the playback speed, 1 when zero.
		Speed float64
		// EnableChangeTempo lets tempo events change the playback tempo.
		// Otherwise the file is played at its first tempo.
		EnableChangeTempo bool
		// KeepNoteOff keeps note off events instead of relying on note
		// durations.
		KeepNoteOff bool
		// OnEvents is called with the events played by each Advance.
		OnEvents func([]wavesynth.NoteEvent)
	}

	// Status is the state of a FilePlayer.
	Status int
)

const (
	StatusStopped Status = iota
	// StatusPlaying means the player needs further Advance calls.
	StatusPlaying
	StatusPaused
	StatusEnded
)

var statusNames = [...]string{"stopped", "playing", "paused", "ended"}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// New returns a stopped player for src.
func New(src Source, engine Engine, opts Options) *FilePlayer {
	p := &FilePlayer{src: src, engine: engine, opts: opts, speed: 1}
	if opts.Speed > 0 {
		p.SetSpeed(opts.Speed)
	}
	p.tempo = src.Tempo(0)
	return p
}

// Open loads a MIDI file and returns a stopped player for it.
func Open(path string, engine Engine, opts Options) (*FilePlayer, error) {
	s, err := seq.Load(path, seq.Options{KeepNoteOff: opts.KeepNoteOff, ConstantTempo: !opts.EnableChangeTempo})
	if err != nil {
		return nil, err
	}
	return New(s, engine, opts), nil
}

// Play starts playing from the beginning, silencing whatever the engine
// still plays.
func (p *FilePlayer) Play() {
	p.engine.ClearAllSound(true)
	p.src.Rewind()
	p.position = 0
	p.played = 0
	p.loops = 0
	p.tempo = p.src.Tempo(0)
	p.status = StatusPlaying
}

// Stop stops playing and silences the engine.
func (p *FilePlayer) Stop() {
	p.status = StatusStopped
	p.engine.ClearAllSound(true)
}

// RePlay restarts from the beginning, or starts playing if stopped.
func (p *FilePlayer) RePlay() {
	if p.status != StatusPlaying && p.status != StatusPaused {
		p.Play()
		return
	}
	p.engine.ClearAllSound(false)
	p.src.Rewind()
	p.position = 0
	p.status = StatusPlaying
}

// Pause pauses playing for ms milliseconds of Advance time, or until Resume
// if ms is not positive. Sounding notes are released.
func (p *FilePlayer) Pause(ms float64) {
	if p.status != StatusPlaying {
		return
	}
	p.status = StatusPaused
	p.pauseLeft = max(ms, 0)
	p.engine.ClearAllSound(false)
}

// Resume continues after Pause.
func (p *FilePlayer) Resume() {
	if p.status == StatusPaused {
		p.status = StatusPlaying
	}
}

// SetLoop sets whether the sequence restarts when it ends.
func (p *FilePlayer) SetLoop(loop bool) { p.opts.Loop = loop }

// SetSpeed changes the playback speed, keeping the musical position.
func (p *FilePlayer) SetSpeed(speed float64) {
	if speed <= 0 || speed == p.speed {
		return
	}
	p.position = p.position * p.speed / speed
	p.speed = speed
	p.src.SetSpeed(speed)
}

// Speed returns the playback speed.
func (p *FilePlayer) Speed() float64 { return p.speed }

// Position returns the playing position in milliseconds.
func (p *FilePlayer) Position() float64 { return p.position }

// Seek moves to timeMs. Sounding notes are released and notes that started
// before timeMs are not played.
func (p *FilePlayer) Seek(timeMs float64) {
	timeMs = min(max(timeMs, 0), p.Duration())
	p.engine.ClearAllSound(false)
	p.src.Seek(timeMs)
	p.position = timeMs
	p.tempo = p.src.Tempo(timeMs)
	if p.status == StatusEnded {
		p.status = StatusPlaying
	}
}

// Duration returns the length of the sequence in milliseconds at the
// current speed.
func (p *FilePlayer) Duration() float64 { return p.src.DurationMs() }

// Status returns the state of the player.
func (p *FilePlayer) Status() Status { return p.status }

// Tempo returns the current tempo in beats per minute.
func (p *FilePlayer) Tempo() float64 { return p.tempo }

// Played returns how many events have been played since Play.
func (p *FilePlayer) Played() int { return p.played }

// Loops returns how many times the sequence has restarted since Play.
func (p *FilePlayer) Loops() int { return p.loops }

// Advance moves the player deltaMs forward. Events due at the current
// position are played first, so they sound from the start of the next
// deltaMs of rendered audio. The returned status tells whether the player
// needs further calls.
func (p *FilePlayer) Advance(deltaMs float64) Status {
	switch p.status {
	case StatusPaused:
		if p.pauseLeft <= 0 {
			return p.status
		}
		p.pauseLeft -= deltaMs
		if p.pauseLeft > 0 {
			return p.status
		}
		p.status = StatusPlaying
	case StatusPlaying:
	default:
		return p.status
	}
	evs := p.src.ReadEventsUpTo(p.position)
	for i := range evs {
		if evs[i].Command == wavesynth.Tempo {
			if p.opts.EnableChangeTempo {
				p.tempo = float64(evs[i].Value)
			}
			continue
		}
		p.engine.PlayEvent(&evs[i])
		p.played++
	}
	if len(evs) > 0 && p.opts.OnEvents != nil {
		p.opts.OnEvents(evs)
	}
	p.position += deltaMs
	if p.src.EndReached() {
		if !p.opts.Loop {
			p.status = StatusEnded
			return p.status
		}
		p.src.Rewind()
		p.position = 0
		p.loops++
	}
	return p.status
}

// Source returns the sequence being played.
func (p *FilePlayer) Source() Source { return p.src }
