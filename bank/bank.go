// Package bank loads wavesynth banks: a YAML definition of presets,
// instruments and zones, with sample PCM data read from WAV files.
package bank

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cwbudde/wav"
	"github.com/vsariola/wavesynth"
	"gopkg.in/yaml.v3"
)

// Load reads a bank definition and the WAV files of its samples, which are
// resolved relative to the definition. Samples referring to the same file
// share their data.
//
// A bank with dangling zone references is still returned, together with an
// error listing them; the synth skips such zones.
func Load(path string) (*wavesynth.Bank, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read bank %v: %w", path, err)
	}
	var bank wavesynth.Bank
	if err := yaml.Unmarshal(b, &bank); err != nil {
		return nil, fmt.Errorf("could not parse bank %v: %w", path, err)
	}
	if bank.Name == "" {
		bank.Name = filepath.Base(path)
	}
	dir := filepath.Dir(path)
	loaded := map[string]*wavesynth.Sample{}
	for i := range bank.Samples {
		s := &bank.Samples[i]
		if s.File == "" {
			continue
		}
		file := s.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		if prev, ok := loaded[file]; ok {
			s.Data = prev.Data
			if s.SampleRate == 0 {
				s.SampleRate = prev.SampleRate
			}
			continue
		}
		data, rate, err := ReadSample(file)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", s.Name, err)
		}
		s.Data = data
		if s.SampleRate == 0 {
			s.SampleRate = rate
		}
		loaded[file] = s
	}
	bank.Intern()
	return &bank, bank.Validate()
}

// Save writes the bank definition. Sample data is not written; samples
// keep referring to their files.
func Save(bank *wavesynth.Bank, path string) error {
	b, err := yaml.Marshal(bank)
	if err != nil {
		return fmt.Errorf("could not marshal bank: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("could not write bank %v: %w", path, err)
	}
	return nil
}

// ReadSample decodes a WAV file into mono PCM in -1..1, averaging the
// channels of multichannel files.
func ReadSample(path string) (data []float32, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("could not decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	if frames == 0 {
		return nil, 0, fmt.Errorf("empty wav data: %s", path)
	}
	data = make([]float32, frames)
	peak := 0.0
	for i := range data {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		data[i] = float32(sum / float64(ch))
		peak = max(peak, math.Abs(float64(data[i])))
	}
	// integer PCM comes out unscaled
	if peak > 1 && buf.SourceBitDepth > 1 {
		scale := float32(1 / math.Exp2(float64(buf.SourceBitDepth-1)))
		for i := range data {
			data[i] *= scale
		}
	}
	return data, buf.Format.SampleRate, nil
}
