// Package live feeds MIDI from an input device to a synth as it arrives.
//
// Input decodes both whole messages, as delivered by the gomidi drivers, and
// a raw byte stream with running status, as read from a serial port or a
// portmidi stream. The synth should run in engine-thread mode: events are
// queued from the input goroutine and applied by the goroutine rendering.
package live

import (
	"sync"
	"sync/atomic"

	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/seq"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Sink receives the decoded events.
	Sink interface {
		PlayEvent(ev *wavesynth.NoteEvent)
	}

	// Input decodes MIDI and plays it on a Sink. It is safe for use by
	// several goroutines.
	Input struct {
		sink Sink

		mu     sync.Mutex
		status byte // running status
		data   [2]byte
		n      int
		sysex  bool

		played  atomic.Int64
		ignored atomic.Int64
	}
)

// New returns an input playing on sink.
func New(sink Sink) *Input {
	return &Input{sink: sink}
}

// HandleMessage plays one complete message. Its signature matches the
// callback of midi.ListenTo.
func (in *Input) HandleMessage(msg midi.Message, timestampms int32) {
	ev, ok := seq.MessageEvent(msg)
	if !ok {
		in.ignored.Add(1)
		return
	}
	in.play(ev)
}

// HandleShort plays a message given as its status and data bytes, the way
// portmidi reports them.
func (in *Input) HandleShort(status, data1, data2 byte) {
	if status < 0x80 || status >= 0xF0 {
		in.ignored.Add(1)
		return
	}
	msg := midi.Message{status, data1 & 0x7F, data2 & 0x7F}
	if dataLen(status) == 1 {
		msg = msg[:2]
	}
	in.HandleMessage(msg, 0)
}

// Write decodes a raw MIDI byte stream. Messages may be split across
// writes, and running status is honoured. System exclusive messages and
// system common messages are skipped; real-time bytes are ignored wherever
// they appear.
func (in *Input) Write(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, b := range p {
		switch {
		case b >= 0xF8:
			continue
		case b == 0xF0:
			in.sysex = true
			in.status = 0
		case b >= 0xF1:
			// system common, including the end of a sysex
			in.sysex = false
			in.status = 0
			in.ignored.Add(1)
		case b >= 0x80:
			in.sysex = false
			in.status = b
			in.n = 0
		case in.sysex || in.status == 0:
			// data without a status
		default:
			in.data[in.n] = b
			in.n++
			if in.n < dataLen(in.status) {
				continue
			}
			in.n = 0
			in.HandleShort(in.status, in.data[0], in.data[1])
		}
	}
	return len(p), nil
}

// Played returns the number of events played.
func (in *Input) Played() int64 { return in.played.Load() }

// Ignored returns the number of messages that had no meaning for the synth.
func (in *Input) Ignored() int64 { return in.ignored.Load() }

func (in *Input) play(ev wavesynth.NoteEvent) {
	in.played.Add(1)
	in.sink.PlayEvent(&ev)
}

func dataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	}
	return 2
}
