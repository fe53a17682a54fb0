package synth_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/maddyblue/go-dsp/fft"
	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/synth"
)

const testRate = 44100

// sine returns a looped 440 Hz sine, recorded at 44000 Hz so that a period is
// exactly 100 samples.
func sine(name string) wavesynth.Sample {
	data := make([]float32, 4400)
	for i := range data {
		data[i] = float32(math.Sin(2 * math.Pi * float64(i) / 100))
	}
	return wavesynth.Sample{Name: name, SampleRate: 44000, LoopStart: 0, LoopEnd: len(data), RootKey: 69, Data: data}
}

func zone(index int, gens ...wavesynth.Generator) wavesynth.Zone {
	return wavesynth.Zone{Keys: wavesynth.FullRange, Vels: wavesynth.FullRange, Index: index, Generators: gens}
}

func gen(t wavesynth.GenType, amount float64) wavesynth.Generator {
	return wavesynth.Generator{Type: t, Amount: amount}
}

// testBank has preset 0:0 playing "Piano_A4" with a one second release and
// preset 0:1 playing "Organ".
func testBank() *wavesynth.Bank {
	b := &wavesynth.Bank{
		Name:    "test",
		Samples: []wavesynth.Sample{sine("Piano_A4"), sine("Organ")},
		Instruments: []wavesynth.Instrument{
			{Name: "Piano", Zones: []wavesynth.Zone{zone(0, gen(wavesynth.GenSampleMode, 1), gen(wavesynth.GenVolEnvRelease, 0))}},
			{Name: "Organ", Zones: []wavesynth.Zone{zone(1, gen(wavesynth.GenSampleMode, 1))}},
		},
		Presets: []wavesynth.Preset{
			{Name: "Piano", Bank: 0, Program: 0, Zones: []wavesynth.Zone{zone(0)}},
			{Name: "Organ", Bank: 0, Program: 1, Zones: []wavesynth.Zone{zone(1)}},
		},
	}
	b.Intern()
	return b
}

func newSynth(t *testing.T, b *wavesynth.Bank, cfg wavesynth.Config) (*synth.Synth, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	return synth.New(b, cfg, synth.WithLogger(log.New(&logs, "", 0))), &logs
}

func render(s *synth.Synth, ms float64) wavesynth.AudioBuffer {
	buf := make(wavesynth.AudioBuffer, int(ms*testRate/1000))
	s.Render(buf)
	return buf
}

func noteOn(ch, key, vel int) *wavesynth.NoteEvent {
	return &wavesynth.NoteEvent{Command: wavesynth.NoteOn, Channel: ch, Key: key, Value: vel}
}

func voicesOn(s *synth.Synth, ch, key int) (n int) {
	for _, id := range s.ActiveVoices() {
		v := s.Voice(id)
		if v.Channel() == ch && v.Key() == key {
			if st := v.State(); st == synth.VoiceOn || st == synth.VoiceSustained {
				n++
			}
		}
	}
	return
}

func TestMissingPresetDropsNotes(t *testing.T) {
	s, logs := newSynth(t, testBank(), wavesynth.DefaultConfig())
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCBankSelect, Value: 2})
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Key: 5})
	if p := s.ChannelPreset(0); p != nil {
		t.Fatalf("expected no preset for 2:5, got %q", p.Name)
	}
	if !strings.Contains(logs.String(), "no preset for bank 2 program 5") {
		t.Fatalf("expected a warning about the missing preset, got %q", logs.String())
	}
	s.PlayEvent(noteOn(0, 60, 100))
	if n := len(s.ActiveVoices()); n != 0 {
		t.Fatalf("expected no voices, got %d", n)
	}
	render(s, 10)
}

func TestBankSelectThenProgramChange(t *testing.T) {
	b := testBank()
	b.Presets = append(b.Presets, wavesynth.Preset{Name: "Organ 2", Bank: 2, Program: 5, Zones: []wavesynth.Zone{zone(1)}})
	s, _ := newSynth(t, b, wavesynth.DefaultConfig())
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCBankSelect, Value: 2})
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Key: 5})
	if got, want := s.ChannelPreset(0), b.GetPreset(2, 5); got != want {
		t.Fatalf("channel preset %v, want %v", got, want)
	}
	if s.ChannelBank(0) != 2 {
		t.Fatalf("channel bank %d, want 2", s.ChannelBank(0))
	}
}

func TestDrumChannelIgnoresProgramChange(t *testing.T) {
	b := testBank()
	b.Presets = append(b.Presets, wavesynth.Preset{Name: "Drums", Bank: 128, Program: 0, Zones: []wavesynth.Zone{zone(1)}})
	s, _ := newSynth(t, b, wavesynth.DefaultConfig())
	drums := s.ChannelPreset(wavesynth.DrumChannel)
	if drums == nil || drums.Name != "Drums" {
		t.Fatalf("drum channel should start on the drum bank, got %v", drums)
	}
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Channel: wavesynth.DrumChannel, Key: 1})
	if s.ChannelPreset(wavesynth.DrumChannel) != drums {
		t.Fatalf("program change on the drum channel should be ignored")
	}
}

func TestVelocityZeroIsNoteOff(t *testing.T) {
	a, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	b, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	for _, s := range []*synth.Synth{a, b} {
		s.PlayEvent(noteOn(0, 60, 100))
		render(s, 50)
	}
	a.PlayEvent(noteOn(0, 60, 0))
	b.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.NoteOff, Key: 60})
	bufA, bufB := render(a, 100), render(b, 100)
	for i := range bufA {
		if bufA[i] != bufB[i] {
			t.Fatalf("frame %d differs: %v vs %v", i, bufA[i], bufB[i])
		}
	}
	va, vb := a.Voice(a.ActiveVoices()[0]), b.Voice(b.ActiveVoices()[0])
	if va.State() != synth.VoiceRelease || vb.State() != synth.VoiceRelease {
		t.Fatalf("expected both voices releasing, got %v and %v", va.State(), vb.State())
	}
}

func TestSameNoteRetrigger(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	s.PlayEvent(noteOn(0, 60, 100))
	s.PlayEvent(noteOn(0, 60, 100))
	if n := voicesOn(s, 0, 60); n != 1 {
		t.Fatalf("expected one sounding voice for key 60, got %d", n)
	}
	// also with the sustain pedal down
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCSustain, Value: 127})
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.NoteOff, Key: 60})
	s.PlayEvent(noteOn(0, 60, 100))
	if n := voicesOn(s, 0, 60); n != 1 {
		t.Fatalf("expected one sounding voice for key 60 with sustain, got %d", n)
	}
}

func TestSustainPedal(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCSustain, Value: 127})
	s.PlayEvent(noteOn(0, 60, 100))
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.NoteOff, Key: 60})
	v := s.Voice(s.ActiveVoices()[0])
	if v.State() != synth.VoiceSustained {
		t.Fatalf("expected sustained voice, got %v", v.State())
	}
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCSustain, Value: 0})
	if v.State() != synth.VoiceRelease {
		t.Fatalf("expected releasing voice after pedal up, got %v", v.State())
	}
}

// exclusiveBank adds program 2, where keys below 60 and above share
// exclusive class 1, and program 3, a layered instrument playing two voices
// of class 2 for every note.
func exclusiveBank() *wavesynth.Bank {
	b := testBank()
	b.Instruments = append(b.Instruments,
		wavesynth.Instrument{Name: "Hihat", Zones: []wavesynth.Zone{
			{Keys: wavesynth.Range{Lo: 0, Hi: 59}, Vels: wavesynth.FullRange, Index: 0, Generators: []wavesynth.Generator{gen(wavesynth.GenExclusiveClass, 1), gen(wavesynth.GenVolEnvRelease, 0)}},
			{Keys: wavesynth.Range{Lo: 60, Hi: 127}, Vels: wavesynth.FullRange, Index: 1, Generators: []wavesynth.Generator{gen(wavesynth.GenExclusiveClass, 1), gen(wavesynth.GenVolEnvRelease, 0)}},
		}},
		wavesynth.Instrument{Name: "Layered", Zones: []wavesynth.Zone{
			zone(0, gen(wavesynth.GenExclusiveClass, 2)),
			zone(1, gen(wavesynth.GenExclusiveClass, 2)),
		}},
	)
	b.Presets = append(b.Presets,
		wavesynth.Preset{Name: "Hihat", Program: 2, Zones: []wavesynth.Zone{zone(2)}},
		wavesynth.Preset{Name: "Layered", Program: 3, Zones: []wavesynth.Zone{zone(3)}},
	)
	return b
}

func TestExclusiveClass(t *testing.T) {
	s, _ := newSynth(t, exclusiveBank(), wavesynth.DefaultConfig())
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Key: 2})
	s.PlayEvent(noteOn(0, 40, 100))
	closed := s.ActiveVoices()[0]
	s.PlayEvent(noteOn(0, 70, 100))
	if st := s.Voice(closed).State(); st != synth.VoiceRelease {
		t.Fatalf("first voice of the class should be releasing, got %v", st)
	}
	if n := voicesOn(s, 0, 70); n != 1 {
		t.Fatalf("second voice should be playing, got %d", n)
	}
	// other channels are not affected
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Channel: 1, Key: 2})
	s.PlayEvent(noteOn(1, 40, 100))
	if n := voicesOn(s, 0, 70); n != 1 {
		t.Fatalf("voice on channel 0 was killed by channel 1")
	}

	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Channel: 2, Key: 3})
	s.PlayEvent(noteOn(2, 60, 100))
	if n := voicesOn(s, 2, 60); n != 2 {
		t.Fatalf("voices of one note-on should not kill each other, got %d playing", n)
	}
}

func TestPianoA4Duration(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.NoteOn, Key: 69, Value: 100, Duration: 500})
	active := s.ActiveVoices()
	if len(active) != 1 {
		t.Fatalf("expected one voice, got %d", len(active))
	}
	id := active[0]
	if name := s.Voice(id).Sample().Name; name != "Piano_A4" {
		t.Fatalf("voice plays %q, want Piano_A4", name)
	}
	render(s, 490)
	if st := s.Voice(id).State(); st != synth.VoiceOn {
		t.Fatalf("at 490 ms the voice should be on, got %v", st)
	}
	render(s, 20)
	if st := s.Voice(id).State(); st != synth.VoiceRelease {
		t.Fatalf("at 510 ms the voice should be releasing, got %v", st)
	}
	render(s, 3000)
	if n := len(s.ActiveVoices()); n != 0 {
		t.Fatalf("expected the voice to have ended, %d still active", n)
	}
	if free := s.FreeVoices(); len(free) != 1 || free[0] != id {
		t.Fatalf("expected voice %d in the free pool, got %v", id, free)
	}
}

func TestReuseAfterOff(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	s.PlayEvent(noteOn(0, 60, 100))
	first := s.ActiveVoices()[0]
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.NoteOff, Key: 60})
	render(s, 2000)
	s.PlayEvent(noteOn(0, 62, 100))
	if got := s.ActiveVoices(); len(got) != 1 || got[0] != first {
		t.Fatalf("expected voice %d to be reused, got %v", first, got)
	}
	st := s.Stats()
	if st.Played != 2 || st.Reused != 1 || st.ReusedPercent != 50 {
		t.Fatalf("unexpected stats %+v", st)
	}
	s.ResetStats()
	if st := s.Stats(); st.Played != 0 || st.Reused != 0 || st.ActiveVoices != 1 {
		t.Fatalf("unexpected stats after reset %+v", st)
	}
}

func TestAutoClean(t *testing.T) {
	cfg := wavesynth.DefaultConfig()
	cfg.AutoCleanVoiceLimit = 2
	cfg.AutoCleanVoiceTime = 100
	b := testBank()
	s, _ := newSynth(t, b, cfg)
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Key: 1})
	for round := 0; round < 3; round++ {
		for k := 60; k < 65; k++ {
			s.PlayEvent(noteOn(0, k, 100))
		}
		render(s, 10)
		s.AllNotesOff(0)
		render(s, 20)
		if n := len(s.FreeVoices()); n != 5 {
			t.Fatalf("round %d: expected 5 free voices right after release, got %d", round, n)
		}
		render(s, 200)
		if n := len(s.FreeVoices()); n != cfg.AutoCleanVoiceLimit {
			t.Fatalf("round %d: expected the free pool trimmed to %d, got %d", round, cfg.AutoCleanVoiceLimit, n)
		}
	}
}

func TestRenderSilence(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	buf := make(wavesynth.AudioBuffer, 1000)
	for i := range buf {
		buf[i] = [2]float32{1, -1}
	}
	s.Render(buf)
	for i, f := range buf {
		if f != [2]float32{} {
			t.Fatalf("frame %d is %v, expected silence", i, f)
		}
	}
}

func TestRenderNilBank(t *testing.T) {
	s, logs := newSynth(t, nil, wavesynth.DefaultConfig())
	s.PlayEvent(noteOn(0, 60, 100))
	buf := render(s, 10)
	for i, f := range buf {
		if f != [2]float32{} {
			t.Fatalf("frame %d is %v, expected silence", i, f)
		}
	}
	if logs.Len() == 0 {
		t.Fatalf("expected warnings for the missing bank")
	}
}

func TestMissingSampleSkipsZone(t *testing.T) {
	b := testBank()
	b.Instruments[0].Zones = append([]wavesynth.Zone{zone(7)}, b.Instruments[0].Zones...)
	s, logs := newSynth(t, b, wavesynth.DefaultConfig())
	s.PlayEvent(noteOn(0, 60, 100))
	if n := len(s.ActiveVoices()); n != 1 {
		t.Fatalf("the valid zone should still play, got %d voices", n)
	}
	if !strings.Contains(logs.String(), "not loaded") {
		t.Fatalf("expected a warning for the missing sample, got %q", logs.String())
	}
}

func TestPlayOnlyFirstWave(t *testing.T) {
	b := testBank()
	b.Instruments[0].Zones = append(b.Instruments[0].Zones, zone(1))
	b.Presets[0].Zones = append(b.Presets[0].Zones, zone(1))
	for _, c := range []struct {
		only bool
		want int
	}{{false, 3}, {true, 1}} {
		cfg := wavesynth.DefaultConfig()
		cfg.PlayOnlyFirstWave = c.only
		s, _ := newSynth(t, b, cfg)
		s.PlayEvent(noteOn(0, 60, 100))
		if n := len(s.ActiveVoices()); n != c.want {
			t.Fatalf("PlayOnlyFirstWave=%v: got %d voices, want %d", c.only, n, c.want)
		}
	}
}

func TestStopEvent(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	a, b := noteOn(0, 60, 100), noteOn(0, 64, 100)
	s.PlayEvent(a)
	s.PlayEvent(b)
	if a.ID == 0 || a.ID == b.ID {
		t.Fatalf("events should get distinct ids, got %d and %d", a.ID, b.ID)
	}
	s.StopEvent(*a)
	if voicesOn(s, 0, 60) != 0 || voicesOn(s, 0, 64) != 1 {
		t.Fatalf("only the voices of the stopped event should release")
	}
}

func TestEngineThreadOrdering(t *testing.T) {
	cfg := wavesynth.DefaultConfig()
	cfg.EngineThread = true
	s, _ := newSynth(t, testBank(), cfg)
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Key: 1})
	s.PlayEvent(noteOn(0, 60, 100))
	if n := len(s.ActiveVoices()); n != 0 {
		t.Fatalf("events should wait for the render call, got %d voices", n)
	}
	render(s, 5)
	active := s.ActiveVoices()
	if len(active) != 1 {
		t.Fatalf("expected one voice after render, got %d", len(active))
	}
	if name := s.Voice(active[0]).Sample().Name; name != "Organ" {
		t.Fatalf("program change should apply before the note, voice plays %q", name)
	}
}

func TestQueueFullDropsCommands(t *testing.T) {
	cfg := wavesynth.DefaultConfig()
	cfg.EngineThread = true
	cfg.QueueSize = 2
	s, logs := newSynth(t, testBank(), cfg)
	for k := 60; k < 64; k++ {
		s.PlayEvent(noteOn(0, k, 100))
	}
	render(s, 5)
	if n := len(s.ActiveVoices()); n != 2 {
		t.Fatalf("expected the two queued notes to play, got %d", n)
	}
	if !strings.Contains(logs.String(), "queue full") {
		t.Fatalf("expected a warning about the full queue")
	}
}

func TestClearAllSoundDestroys(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	for k := 60; k < 64; k++ {
		s.PlayEvent(noteOn(0, k, 100))
	}
	render(s, 10)
	s.ClearAllSound(true)
	render(s, 100)
	if n := len(s.ActiveVoices()); n != 4 {
		t.Fatalf("voices should still be releasing, got %d", n)
	}
	render(s, 3000)
	if st := s.Stats(); st.ActiveVoices != 0 || st.FreeVoices != 0 {
		t.Fatalf("expected everything destroyed, got %+v", st)
	}
}

func TestClearAllSoundTimeout(t *testing.T) {
	b := testBank()
	// a release far longer than the timeout
	b.Instruments[0].Zones[0].Generators = append(b.Instruments[0].Zones[0].Generators, gen(wavesynth.GenVolEnvRelease, 5000))
	cfg := wavesynth.DefaultConfig()
	cfg.ReleaseTimeout = 200
	s, logs := newSynth(t, b, cfg)
	s.PlayEvent(noteOn(0, 60, 100))
	render(s, 10)
	s.ClearAllSound(false)
	render(s, 150)
	if n := len(s.ActiveVoices()); n != 1 {
		t.Fatalf("the voice should release until the timeout, got %d active", n)
	}
	render(s, 100)
	if n := len(s.ActiveVoices()); n != 0 {
		t.Fatalf("the watchdog should have stopped the voice, %d active", n)
	}
	if n := len(s.FreeVoices()); n != 1 {
		t.Fatalf("without destroy the voice should stay in the free pool, got %d", n)
	}
	if !strings.Contains(logs.String(), "still sounding") {
		t.Fatalf("expected a watchdog warning")
	}
}

func TestClearAllSoundSparesNewNotes(t *testing.T) {
	b := testBank()
	b.Instruments[0].Zones[0].Generators = append(b.Instruments[0].Zones[0].Generators, gen(wavesynth.GenVolEnvRelease, 5000))
	cfg := wavesynth.DefaultConfig()
	cfg.ReleaseTimeout = 200
	s, _ := newSynth(t, b, cfg)
	s.PlayEvent(noteOn(0, 60, 100))
	render(s, 10)
	s.ClearAllSound(true)
	s.PlayEvent(noteOn(0, 62, 100))
	render(s, 300)
	if n := len(s.ActiveVoices()); n != 1 {
		t.Fatalf("got %d active voices, want only the new note", n)
	}
	if voicesOn(s, 0, 62) != 1 {
		t.Fatalf("the note started after the clear was stopped")
	}
}

func TestWaitReleasedTimeout(t *testing.T) {
	b := testBank()
	b.Instruments[0].Zones[0].Generators = append(b.Instruments[0].Zones[0].Generators, gen(wavesynth.GenVolEnvRelease, 5000))
	cfg := wavesynth.DefaultConfig()
	cfg.EngineThread = true
	s, _ := newSynth(t, b, cfg)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		buf := make(wavesynth.AudioBuffer, 256)
		for {
			select {
			case <-done:
				return
			default:
				s.Render(buf)
				time.Sleep(time.Millisecond)
			}
		}
	}()
	s.PlayEvent(noteOn(0, 60, 100))
	for deadline := time.Now().Add(time.Second); s.Stats().ActiveVoices == 0; {
		if time.Now().After(deadline) {
			t.Fatalf("the note was never rendered")
		}
		time.Sleep(time.Millisecond)
	}
	s.ClearAllSound(false)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.WaitReleased(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a deadline error, got %v", err)
	}
	if err := s.WaitReleased(context.Background()); err != nil {
		t.Fatalf("after the hard stop the synth should go silent, got %v", err)
	}
	close(done)
	<-stopped
}

func TestPitch(t *testing.T) {
	for _, c := range []struct {
		key       int
		bend      int
		transpose int
		want      float64
	}{
		{69, wavesynth.PitchWheelCenter, 0, 440},
		{81, wavesynth.PitchWheelCenter, 0, 880},
		{69, 0x3fff, 0, 440 * math.Pow(2, 2.0/12)},
		{57, wavesynth.PitchWheelCenter, 12, 440},
	} {
		cfg := wavesynth.DefaultConfig()
		cfg.Transpose = c.transpose
		cfg.ApplyVibLFO = false
		cfg.ApplyModLFO = false
		s, _ := newSynth(t, testBank(), cfg)
		s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.PitchWheelChange, Value: c.bend})
		s.PlayEvent(noteOn(0, c.key, 127))
		render(s, 20)
		buf := make(wavesynth.AudioBuffer, 1<<15)
		s.Render(buf)
		if got := peakFrequency(buf); math.Abs(got-c.want) > 3 {
			t.Errorf("key %d bend %d transpose %d: peak at %.1f Hz, want %.1f", c.key, c.bend, c.transpose, got, c.want)
		}
	}
}

func peakFrequency(buf wavesynth.AudioBuffer) float64 {
	x := make([]float64, len(buf))
	for i, f := range buf {
		// Hann window
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(len(buf)-1))
		x[i] = float64(f[0]) * w
	}
	spectrum := fft.FFTReal(x)
	best, bestMag := 0, 0.0
	for i := 1; i < len(spectrum)/2; i++ {
		if m := real(spectrum[i])*real(spectrum[i]) + imag(spectrum[i])*imag(spectrum[i]); m > bestMag {
			best, bestMag = i, m
		}
	}
	return float64(best) * testRate / float64(len(buf))
}

func TestPanAndVolume(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCPan, Value: 0})
	s.PlayEvent(noteOn(0, 69, 127))
	buf := render(s, 100)
	var left, right float64
	for _, f := range buf {
		left += math.Abs(float64(f[0]))
		right += math.Abs(float64(f[1]))
	}
	if left == 0 || right > left*0.01 {
		t.Fatalf("hard left pan should silence the right channel, got left %v right %v", left, right)
	}
	v := s.Voice(s.ActiveVoices()[0])
	before := v.Attenuation()
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCVolume, Value: 20})
	if v.Attenuation() <= before {
		t.Fatalf("lowering the channel volume should raise the attenuation, %v -> %v", before, v.Attenuation())
	}
}

func TestSampleRateChange(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	s.PlayEvent(noteOn(0, 69, 127))
	render(s, 20)
	s.SetSampleRate(22050)
	buf := make(wavesynth.AudioBuffer, 1<<14)
	s.Render(buf)
	// the analysis assumes 44100 Hz, so a 440 Hz tone now shows at 880 Hz
	if got := peakFrequency(buf); math.Abs(got-880) > 6 {
		t.Fatalf("peak at %.1f Hz after the rate change, want 880", got)
	}
}

func TestChannelControls(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	if s.Channels() != 16 {
		t.Fatalf("expected 16 channels, got %d", s.Channels())
	}
	s.SetChannelEnabled(3, false)
	s.PlayEvent(noteOn(3, 60, 100))
	if n := len(s.ActiveVoices()); n != 0 {
		t.Fatalf("disabled channel should not play, got %d voices", n)
	}
	s.SetChannelPreset(wavesynth.DrumChannel, 1)
	if p := s.ChannelPreset(wavesynth.DrumChannel); p != nil {
		t.Fatalf("drum bank has no program 1, got %q", p.Name)
	}
	s.SetChannelBank(wavesynth.DrumChannel, 0)
	if p := s.ChannelPreset(wavesynth.DrumChannel); p == nil || p.Name != "Organ" {
		t.Fatalf("expected Organ after selecting bank 0, got %v", p)
	}
	s.Init(4)
	if s.Channels() != 4 || !s.ChannelEnabled(3) {
		t.Fatalf("Init should reset to 4 enabled channels")
	}
}

func TestResetControllers(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCVolume, Value: 10})
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.PitchWheelChange, Value: 0})
	// RPN 0, pitch wheel sensitivity 12 semitones
	for _, cc := range [][2]int{{wavesynth.CCRPNMSB, 0}, {wavesynth.CCRPNLSB, 0}, {wavesynth.CCDataEntryMSB, 12}} {
		s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: cc[0], Value: cc[1]})
	}
	ch := s.Channel(0)
	if ch.PitchWheelSensitivity() != 12 {
		t.Fatalf("RPN 0 should set the sensitivity, got %d", ch.PitchWheelSensitivity())
	}
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCResetAllControllers})
	if ch.CC(wavesynth.CCVolume) != 100 || ch.PitchBend() != wavesynth.PitchWheelCenter || ch.PitchWheelSensitivity() != 2 {
		t.Fatalf("controllers not reset: volume %d bend %d sens %d", ch.CC(wavesynth.CCVolume), ch.PitchBend(), ch.PitchWheelSensitivity())
	}
}

func TestDispatchExclusiveClass(t *testing.T) {
	s, _ := newSynth(t, exclusiveBank(), wavesynth.DefaultConfig())
	s.Dispatch(wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Key: 2})
	s.Dispatch(*noteOn(0, 40, 100))
	closed := s.ActiveVoices()[0]
	s.Dispatch(*noteOn(0, 70, 100))
	if st := s.Voice(closed).State(); st != synth.VoiceRelease {
		t.Fatalf("first voice of the class should be releasing, got %v", st)
	}
	if n := voicesOn(s, 0, 70); n != 1 {
		t.Fatalf("second voice should be playing, got %d", n)
	}
	s.Dispatch(wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Channel: 2, Key: 3})
	s.Dispatch(*noteOn(2, 60, 100))
	if n := voicesOn(s, 2, 60); n != 2 {
		t.Fatalf("voices of one note-on should not kill each other, got %d playing", n)
	}
}

func TestRealTimeModulatorGate(t *testing.T) {
	for _, apply := range []bool{true, false} {
		cfg := wavesynth.DefaultConfig()
		cfg.ApplyRealTimeModulator = apply
		s, _ := newSynth(t, testBank(), cfg)
		s.Dispatch(*noteOn(0, 60, 100))
		v := s.Voice(s.ActiveVoices()[0])
		pitch := v.Pitch()
		vib := v.Gen(wavesynth.GenVibLFOToPitch).Mod
		s.Dispatch(wavesynth.NoteEvent{Command: wavesynth.PitchWheelChange, Value: 0})
		s.Dispatch(wavesynth.NoteEvent{Command: wavesynth.ControlChange, Key: wavesynth.CCModulation, Value: 127})
		if apply {
			if got := s.Channel(0).PitchBend(); got != 0 {
				t.Errorf("pitch bend %d, want 0", got)
			}
			if got := v.Pitch(); math.Abs(got-(pitch-200)) > 1e-6 {
				t.Errorf("pitch %v after full down bend, want %v", got, pitch-200)
			}
			if got := v.Gen(wavesynth.GenVibLFOToPitch).Mod; got <= vib {
				t.Errorf("mod wheel did not raise vibrato depth: %v", got)
			}
			continue
		}
		if got := s.Channel(0).PitchBend(); got != wavesynth.PitchWheelCenter {
			t.Errorf("pitch bend %d, want center", got)
		}
		if got := v.Pitch(); got != pitch {
			t.Errorf("pitch %v, want it unchanged at %v", got, pitch)
		}
		if got := v.Gen(wavesynth.GenVibLFOToPitch).Mod; got != vib {
			t.Errorf("vibrato depth modulated to %v without real-time modulators", got)
		}
	}
}

func TestUninternedBankNotReused(t *testing.T) {
	b := testBank()
	for i := range b.Samples {
		b.Samples[i].ID = 0
	}
	b = &wavesynth.Bank{Name: b.Name, Presets: b.Presets, Instruments: b.Instruments, Samples: b.Samples}
	s, _ := newSynth(t, b, wavesynth.DefaultConfig())
	if !b.Interned() {
		t.Fatalf("bank should be interned by New")
	}
	s.Dispatch(*noteOn(0, 60, 100))
	s.Dispatch(wavesynth.NoteEvent{Command: wavesynth.NoteOff, Key: 60})
	render(s, 2000)
	if n := len(s.FreeVoices()); n != 1 {
		t.Fatalf("expected one free voice, got %d", n)
	}
	s.Dispatch(wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Key: 1})
	s.Dispatch(*noteOn(0, 60, 100))
	if name := s.Voice(s.ActiveVoices()[0]).Sample().Name; name != "Organ" {
		t.Fatalf("voice plays %q, want Organ", name)
	}
	if st := s.Stats(); st.Reused != 0 {
		t.Fatalf("a voice of another sample was reused: %+v", st)
	}
}

func TestInitDropsPendingFrames(t *testing.T) {
	s, _ := newSynth(t, testBank(), wavesynth.DefaultConfig())
	s.PlayEvent(noteOn(0, 69, 127))
	buf := make(wavesynth.AudioBuffer, 100)
	s.Render(buf)
	if peak(buf) == 0 {
		t.Fatalf("expected sound before Init")
	}
	s.Init(16)
	s.Render(buf)
	for i, f := range buf {
		if f != [2]float32{} {
			t.Fatalf("frame %d is %v after Init, expected silence", i, f)
		}
	}
}

func peak(buf wavesynth.AudioBuffer) (p float32) {
	for _, f := range buf {
		p = max(p, abs32(f[0]), abs32(f[1]))
	}
	return
}

func abs32(f float32) float32 { return float32(math.Abs(float64(f))) }
