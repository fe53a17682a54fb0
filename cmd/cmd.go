// Package cmd holds what the wavesynth commands share: choosing the audio
// output, loading the bank and the configuration, and listing presets.
package cmd

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/bank"
	"github.com/vsariola/wavesynth/beepout"
	"github.com/vsariola/wavesynth/oto"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AudioContext is an output device with a fixed sample rate.
type AudioContext interface {
	wavesynth.AudioContext
	SampleRate() int
}

// AudioBackends are the names accepted by NewAudioContext.
var AudioBackends = []string{"oto", "beep"}

// NewAudioContext opens the default output device with the named backend.
func NewAudioContext(backend string, sampleRate int) (AudioContext, error) {
	switch backend {
	case "", "oto":
		return oto.NewContext(sampleRate)
	case "beep":
		return beepout.NewContext(sampleRate, 100*time.Millisecond)
	}
	return nil, fmt.Errorf("unknown audio backend %q, should be one of %v", backend, AudioBackends)
}

// LoadBank loads a bank definition, or returns the built-in synthetic bank
// when path is empty.
func LoadBank(path string) (*wavesynth.Bank, error) {
	if path == "" {
		return bank.Synthetic(), nil
	}
	return bank.Load(path)
}

// LoadConfig loads the engine settings, or returns the defaults when path is
// empty.
func LoadConfig(path string) (wavesynth.Config, error) {
	if path == "" {
		return wavesynth.DefaultConfig(), nil
	}
	return wavesynth.LoadConfig(path)
}

// ListPresets writes the presets of b, by bank and then by name.
func ListPresets(w io.Writer, b *wavesynth.Bank) error {
	presets := slices.Clone(b.Presets)
	col := collate.New(language.English, collate.IgnoreCase)
	slices.SortStableFunc(presets, func(x, y wavesynth.Preset) int {
		if c := cmp.Compare(x.Bank, y.Bank); c != 0 {
			return c
		}
		return col.CompareString(x.Name, y.Name)
	})
	caser := cases.Title(language.English)
	for _, p := range presets {
		if _, err := fmt.Fprintf(w, "%3d:%-3d %s\n", p.Bank, p.Program, caser.String(p.Name)); err != nil {
			return err
		}
	}
	return nil
}
