package live_test

import (
	"sync"
	"testing"

	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/live"
	"gitlab.com/gomidi/midi/v2"
)

type recorder struct {
	mu  sync.Mutex
	evs []wavesynth.NoteEvent
}

func (r *recorder) PlayEvent(ev *wavesynth.NoteEvent) {
	r.mu.Lock()
	r.evs = append(r.evs, *ev)
	r.mu.Unlock()
}

func TestWriteRawStream(t *testing.T) {
	r := &recorder{}
	in := live.New(r)
	stream := []byte{
		0x90, 60, 100, // note on
		62, 90, // running status
		0xF8,              // clock in the middle of nothing
		0x80, 60, 0xFE, 0, // active sensing inside a message
		0xF0, 1, 2, 3, 0xF7, // sysex
		0xC1, 5, // program change, one data byte
		0xB1, 7, // split across writes
	}
	in.Write(stream)
	in.Write([]byte{80, 0xE1, 0x00, 0x40, 0xD1, 33})
	want := []wavesynth.NoteEvent{
		{Command: wavesynth.NoteOn, Key: 60, Value: 100},
		{Command: wavesynth.NoteOn, Key: 62, Value: 90},
		{Command: wavesynth.NoteOff, Key: 60},
		{Command: wavesynth.ProgramChange, Channel: 1, Key: 5},
		{Command: wavesynth.ControlChange, Channel: 1, Key: 7, Value: 80},
		{Command: wavesynth.PitchWheelChange, Channel: 1, Value: wavesynth.PitchWheelCenter},
		{Command: wavesynth.ChannelPressure, Channel: 1, Value: 33},
	}
	if len(r.evs) != len(want) {
		t.Fatalf("got %v, want %v", r.evs, want)
	}
	for i := range want {
		if r.evs[i] != want[i] {
			t.Errorf("event %d: got %v, want %v", i, r.evs[i], want[i])
		}
	}
	if in.Played() != int64(len(want)) {
		t.Errorf("played: got %d, want %d", in.Played(), len(want))
	}
}

func TestDataWithoutStatusIgnored(t *testing.T) {
	r := &recorder{}
	in := live.New(r)
	in.Write([]byte{60, 100, 0xF0, 0x90, 60, 100})
	if len(r.evs) != 0 {
		t.Errorf("got %v, want nothing", r.evs)
	}
}

func TestHandleMessage(t *testing.T) {
	r := &recorder{}
	in := live.New(r)
	in.HandleMessage(midi.NoteOn(2, 64, 0), 0)
	in.HandleMessage(midi.Message{0xFA}, 0)
	in.HandleShort(0xA0, 60, 10) // poly pressure has no meaning for the synth
	in.HandleShort(0x92, 64, 127)
	if len(r.evs) != 2 || r.evs[0].Command != wavesynth.NoteOff || r.evs[1].Command != wavesynth.NoteOn {
		t.Fatalf("got %v", r.evs)
	}
	if in.Ignored() != 2 {
		t.Errorf("ignored: got %d, want 2", in.Ignored())
	}
}

func TestConcurrentInputs(t *testing.T) {
	r := &recorder{}
	in := live.New(r)
	var wg sync.WaitGroup
	for ch := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range 100 {
				in.Write([]byte{0x90 | byte(ch), byte(k), 100})
			}
		}()
	}
	wg.Wait()
	if len(r.evs) != 400 {
		t.Errorf("got %d events, want 400", len(r.evs))
	}
}
