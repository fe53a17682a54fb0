package bank_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/bank"
	"github.com/vsariola/wavesynth/synth"
)

func writeWav(t *testing.T, path string, channels int, frames int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			data[i*channels+c] = int(16000 * math.Sin(2*math.Pi*float64(i)/100))
		}
	}
	enc := wav.NewEncoder(f, 22050, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: 22050, NumChannels: channels},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf.AsFloat32Buffer()); err != nil {
		t.Fatalf("could not write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("could not close wav: %v", err)
	}
}

const testBank = `
presets:
  - {name: Lead, program: 3, zones: [{index: 0}]}
instruments:
  - name: Lead
    zones:
      - {index: 0, generators: [{type: samplemode, amount: 1}]}
      - {index: 1, keys: [0, 40]}
samples:
  - {name: tone, file: tone.wav, rootkey: 69, loopend: 1000}
  - {name: tone-low, file: tone.wav, rootkey: 57, samplerate: 11025}
  - {name: stereo, file: sub/stereo.wav, rootkey: 69}
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, filepath.Join(dir, "tone.wav"), 1, 1000)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeWav(t, filepath.Join(dir, "sub", "stereo.wav"), 2, 500)
	path := filepath.Join(dir, "test.yml")
	if err := os.WriteFile(path, []byte(testBank), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := bank.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Name != "test.yml" {
		t.Errorf("bank should be named after the file, got %q", b.Name)
	}
	tone, low, stereo := &b.Samples[0], &b.Samples[1], &b.Samples[2]
	if len(tone.Data) != 1000 || tone.SampleRate != 22050 {
		t.Fatalf("tone: %d frames at %d Hz", len(tone.Data), tone.SampleRate)
	}
	if &tone.Data[0] != &low.Data[0] {
		t.Errorf("samples of the same file should share data")
	}
	if low.SampleRate != 11025 {
		t.Errorf("an explicit sample rate should be kept, got %d", low.SampleRate)
	}
	if len(stereo.Data) != 500 {
		t.Errorf("stereo files should be mixed to mono, got %d frames", len(stereo.Data))
	}
	peak := 0.0
	for _, x := range tone.Data {
		peak = max(peak, math.Abs(float64(x)))
	}
	if peak < 0.45 || peak > 0.5 {
		t.Errorf("data should be normalized to -1..1, peak %v", peak)
	}
	if tone.ID != 0 || low.ID != 1 || stereo.ID != 2 {
		t.Errorf("unexpected sample ids %d %d %d", tone.ID, low.ID, stereo.ID)
	}

	s := synth.New(b, wavesynth.DefaultConfig())
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Key: 3})
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.NoteOn, Key: 30, Value: 100})
	if n := len(s.ActiveVoices()); n != 2 {
		t.Fatalf("expected both zones to play key 30, got %d voices", n)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := bank.Load(filepath.Join(dir, "missing.yml")); err == nil {
		t.Errorf("missing file should fail")
	}
	bad := filepath.Join(dir, "bad.yml")
	os.WriteFile(bad, []byte("samples: [{name: x, file: nothere.wav}]"), 0o644)
	if _, err := bank.Load(bad); err == nil || !strings.Contains(err.Error(), `sample "x"`) {
		t.Errorf("missing sample file should fail naming the sample, got %v", err)
	}
	dangling := filepath.Join(dir, "dangling.yml")
	os.WriteFile(dangling, []byte("presets: [{name: p, zones: [{index: 4}]}]"), 0o644)
	b, err := bank.Load(dangling)
	if err == nil || b == nil {
		t.Errorf("dangling references should be reported with the bank, got %v, %v", b, err)
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	writeWav(t, filepath.Join(dir, "tone.wav"), 1, 200)
	b := &wavesynth.Bank{
		Name:        "saved",
		Samples:     []wavesynth.Sample{{Name: "tone", File: "tone.wav", RootKey: 60}},
		Instruments: []wavesynth.Instrument{{Name: "i", Zones: []wavesynth.Zone{{Keys: wavesynth.FullRange, Vels: wavesynth.Range{Lo: 10, Hi: 20}, Index: 0}}}},
		Presets:     []wavesynth.Preset{{Name: "p", Program: 7, Zones: []wavesynth.Zone{{Keys: wavesynth.FullRange, Vels: wavesynth.FullRange, Index: 0, Generators: []wavesynth.Generator{{Type: wavesynth.GenFilterQ, Amount: 30}}}}}},
	}
	path := filepath.Join(dir, "saved.yml")
	if err := bank.Save(b, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := bank.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != "saved" || len(got.Samples[0].Data) != 200 {
		t.Fatalf("unexpected bank %+v", got)
	}
	if p := got.GetPreset(0, 7); p == nil || p.Zones[0].Generators[0].Type != wavesynth.GenFilterQ {
		t.Fatalf("preset not saved correctly: %+v", p)
	}
	if v := got.Instruments[0].Zones[0].Vels; v != (wavesynth.Range{Lo: 10, Hi: 20}) {
		t.Fatalf("velocity range %v", v)
	}
}

func TestSynthetic(t *testing.T) {
	b := bank.Synthetic()
	if err := b.Validate(); err != nil {
		t.Fatalf("synthetic bank is invalid: %v", err)
	}
	if len(b.Presets) != 129 {
		t.Fatalf("expected 128 programs and a kit, got %d presets", len(b.Presets))
	}
	cfg := wavesynth.DefaultConfig()
	s := synth.New(b, cfg)
	for p := 0; p < 128; p += 8 {
		s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.ProgramChange, Key: p})
		s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.NoteOn, Key: 60, Value: 100})
		buf := make(wavesynth.AudioBuffer, 4096)
		s.Render(buf)
		energy := 0.0
		for _, f := range buf {
			energy += float64(f[0]*f[0] + f[1]*f[1])
		}
		if energy == 0 {
			t.Errorf("program %d is silent", p)
		}
		s.SoundOff(0)
	}
	// closed hi-hat chokes the open one
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.NoteOn, Channel: wavesynth.DrumChannel, Key: 46, Value: 100})
	open := s.ActiveVoices()[len(s.ActiveVoices())-1]
	s.PlayEvent(&wavesynth.NoteEvent{Command: wavesynth.NoteOn, Channel: wavesynth.DrumChannel, Key: 42, Value: 100})
	if st := s.Voice(open).State(); st != synth.VoiceRelease {
		t.Fatalf("open hi-hat should be choked, got %v", st)
	}
}
