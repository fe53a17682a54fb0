// Package seq turns standard MIDI files into time ordered note events for
// the synth, with tempo changes resolved to milliseconds.
package seq

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"

	"github.com/vsariola/wavesynth"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type (
	// Sequence is the merged, tick sorted event list of a MIDI file. It is
	// read incrementally with ReadEventsUpTo and can be rewound and
	// replayed any number of times.
	Sequence struct {
		events  []wavesynth.NoteEvent
		tempos  []tempoChange
		ppqn    float64
		fixedMs float64 // tick length of SMPTE timed files, 0 for metric
		endTick int64
		speed   float64
		opts    Options

		cursor int
		out    []wavesynth.NoteEvent
	}

	// Options change how a file is read.
	Options struct {
		// KeepNoteOff keeps the note off events. By default they are dropped
		// and notes end after their Duration.
		KeepNoteOff bool
		// ConstantTempo ignores tempo changes after the first one.
		ConstantTempo bool
	}

	tempoChange struct {
		tick int64
		bpm  float64
	}
)

// DefaultTempo is the tempo of a file until its first tempo event.
const DefaultTempo = 120

const minDurationMs = 1

var errNoTracks = errors.New("midi file has no tracks")

// Load reads a standard MIDI file.
func Load(path string, opts Options) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %v: %w", path, err)
	}
	defer f.Close()
	s, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return s, nil
}

// Read reads a standard MIDI file from r.
func Read(r io.Reader, opts Options) (*Sequence, error) {
	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("could not parse midi file: %w", err)
	}
	return FromSMF(file, opts)
}

// FromSMF builds a sequence from a parsed MIDI file.
func FromSMF(file *smf.SMF, opts Options) (*Sequence, error) {
	if len(file.Tracks) == 0 {
		return nil, errNoTracks
	}
	s := &Sequence{speed: 1, opts: opts, ppqn: 960}
	switch tf := file.TimeFormat.(type) {
	case smf.MetricTicks:
		s.ppqn = float64(tf.Resolution())
	case smf.TimeCode:
		s.fixedMs = 1000 / (float64(tf.FramesPerSecond) * float64(tf.SubFrames))
	}
	type timed struct {
		tick  int64
		track int
		ev    wavesynth.NoteEvent
	}
	var all []timed
	for ti, track := range file.Tracks {
		var tick int64
		for _, e := range track {
			tick += int64(e.Delta)
			var bpm float64
			if e.Message.GetMetaTempo(&bpm) {
				s.tempos = append(s.tempos, tempoChange{tick: tick, bpm: bpm})
				all = append(all, timed{tick, ti, wavesynth.NoteEvent{Command: wavesynth.Tempo, Value: int(math.Round(bpm)), Tick: tick}})
				continue
			}
			ev, ok := MessageEvent(midi.Message(e.Message))
			if !ok {
				continue
			}
			ev.Tick = tick
			all = append(all, timed{tick, ti, ev})
		}
		s.endTick = max(s.endTick, tick)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].tick < all[j].tick })
	slices.SortStableFunc(s.tempos, func(a, b tempoChange) int { return int(a.tick - b.tick) })
	if len(s.tempos) == 0 || s.tempos[0].tick > 0 {
		s.tempos = append([]tempoChange{{0, DefaultTempo}}, s.tempos...)
	}
	if opts.ConstantTempo {
		s.tempos = s.tempos[:1]
	}
	s.events = make([]wavesynth.NoteEvent, 0, len(all))
	for _, t := range all {
		s.events = append(s.events, t.ev)
	}
	s.retime()
	s.pairNotes()
	return s, nil
}

// NewSequence wraps events that already carry ticks, at the given
// resolution and a constant tempo. It is mostly useful for generated music.
// A non-positive bpm means DefaultTempo.
func NewSequence(events []wavesynth.NoteEvent, ppqn int, bpm float64, opts Options) *Sequence {
	if bpm <= 0 {
		bpm = DefaultTempo
	}
	s := &Sequence{speed: 1, opts: opts, ppqn: float64(max(ppqn, 1))}
	s.events = slices.Clone(events)
	slices.SortStableFunc(s.events, func(a, b wavesynth.NoteEvent) int { return int(a.Tick - b.Tick) })
	s.tempos = []tempoChange{{0, bpm}}
	for _, e := range s.events {
		s.endTick = max(s.endTick, e.Tick)
		if e.Command == wavesynth.Tempo && !opts.ConstantTempo && e.Tick > 0 && e.Value > 0 {
			s.tempos = append(s.tempos, tempoChange{e.Tick, float64(e.Value)})
		}
	}
	s.retime()
	s.pairNotes()
	return s
}

// MessageEvent converts a channel message. It reports false for messages
// the synth does not play, such as system messages.
func MessageEvent(msg midi.Message) (wavesynth.NoteEvent, bool) {
	var ch, key, val uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&ch, &key, &val):
		return wavesynth.NoteEvent{Command: wavesynth.NoteOn, Channel: int(ch), Key: int(key), Value: int(val)}, true
	case msg.GetNoteEnd(&ch, &key):
		return wavesynth.NoteEvent{Command: wavesynth.NoteOff, Channel: int(ch), Key: int(key)}, true
	case msg.GetControlChange(&ch, &key, &val):
		return wavesynth.NoteEvent{Command: wavesynth.ControlChange, Channel: int(ch), Key: int(key), Value: int(val)}, true
	case msg.GetProgramChange(&ch, &key):
		return wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Channel: int(ch), Key: int(key)}, true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return wavesynth.NoteEvent{Command: wavesynth.PitchWheelChange, Channel: int(ch), Value: int(abs)}, true
	case msg.GetAfterTouch(&ch, &val):
		return wavesynth.NoteEvent{Command: wavesynth.ChannelPressure, Channel: int(ch), Value: int(val)}, true
	}
	return wavesynth.NoteEvent{}, false
}

// retime computes the time of every event from its tick, the tempo map and
// the speed.
func (s *Sequence) retime() {
	for i := range s.events {
		s.events[i].Time = s.TickToMs(s.events[i].Tick)
	}
}

// pairNotes gives every note on the duration up to its note off, or up to
// the end of its track if it has none, and drops the note offs unless
// they are to be kept.
func (s *Sequence) pairNotes() {
	type note struct{ ch, key int }
	open := map[note][]int{}
	durationTicks := make([]int64, len(s.events))
	for i, e := range s.events {
		n := note{e.Channel, e.Key}
		switch e.Command {
		case wavesynth.NoteOn:
			open[n] = append(open[n], i)
		case wavesynth.NoteOff:
			if on := open[n]; len(on) > 0 {
				durationTicks[on[0]] = e.Tick - s.events[on[0]].Tick + 1
				open[n] = on[1:]
			}
		}
	}
	for _, on := range open {
		for _, i := range on {
			durationTicks[i] = s.endTick - s.events[i].Tick + 1
		}
	}
	for i := range s.events {
		if d := durationTicks[i]; d > 0 {
			// a note off on the same tick still plays the note briefly
			s.events[i].Duration = max(s.TickToMs(s.events[i].Tick+d-1)-s.events[i].Time, minDurationMs)
		}
	}
	if !s.opts.KeepNoteOff {
		s.events = slices.DeleteFunc(s.events, func(e wavesynth.NoteEvent) bool { return e.Command == wavesynth.NoteOff })
	}
}

// TickToMs converts a tick to milliseconds, at the current speed.
func (s *Sequence) TickToMs(tick int64) float64 {
	if s.fixedMs > 0 {
		return float64(tick) * s.fixedMs / s.speed
	}
	var ms float64
	for i, t := range s.tempos {
		end := tick
		if i+1 < len(s.tempos) && s.tempos[i+1].tick < tick {
			end = s.tempos[i+1].tick
		}
		if end <= t.tick {
			break
		}
		// tick length is 60000 / (bpm * ppqn) / speed; multiplying first
		// keeps whole beats exact
		ms += float64(end-t.tick) * 60000 / (t.bpm * s.ppqn) / s.speed
	}
	return ms
}

// ReadEventsUpTo returns the events due at or before timeMs that have not
// been read yet. The returned slice is reused by the next call.
func (s *Sequence) ReadEventsUpTo(timeMs float64) []wavesynth.NoteEvent {
	s.out = s.out[:0]
	for s.cursor < len(s.events) && s.events[s.cursor].Time <= timeMs {
		s.out = append(s.out, s.events[s.cursor])
		s.cursor++
	}
	return s.out
}

// Rewind restarts reading from the first event.
func (s *Sequence) Rewind() { s.cursor = 0 }

// EndReached reports whether every event has been read.
func (s *Sequence) EndReached() bool { return s.cursor >= len(s.events) }

// Seek moves the read position to the first event at or after timeMs and
// returns the time of that event.
func (s *Sequence) Seek(timeMs float64) float64 {
	s.cursor = sort.Search(len(s.events), func(i int) bool { return s.events[i].Time >= timeMs })
	if s.cursor < len(s.events) {
		return s.events[s.cursor].Time
	}
	return s.DurationMs()
}

// DurationMs is the time at which the last note ends.
func (s *Sequence) DurationMs() float64 {
	var d float64
	for _, e := range s.events {
		d = max(d, e.Time+max(e.Duration, 0))
	}
	return d
}

// SetSpeed scales the playback speed; 2 plays twice as fast. The read
// position is kept.
func (s *Sequence) SetSpeed(speed float64) {
	if speed <= 0 || speed == s.speed {
		return
	}
	ratio := s.speed / speed
	s.speed = speed
	for i := range s.events {
		s.events[i].Time = s.TickToMs(s.events[i].Tick)
		s.events[i].Duration *= ratio
	}
}

// Speed returns the playback speed.
func (s *Sequence) Speed() float64 { return s.speed }

// Tempo returns the tempo in effect at timeMs, in beats per minute.
func (s *Sequence) Tempo(timeMs float64) float64 {
	bpm := s.tempos[0].bpm
	for _, t := range s.tempos[1:] {
		if s.TickToMs(t.tick) > timeMs {
			break
		}
		bpm = t.bpm
	}
	return bpm
}

// Events returns every event of the sequence. The slice must not be
// modified.
func (s *Sequence) Events() []wavesynth.NoteEvent { return s.events }

// PPQN is the resolution in ticks per quarter note.
func (s *Sequence) PPQN() int { return int(s.ppqn) }
