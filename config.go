package wavesynth

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type (
	// Config holds the engine settings. The zero value is not usable; start
	// from DefaultConfig and override fields, or load a file with LoadConfig.
	Config struct {
		SampleRate int
		// Channels is the number of MIDI channels, 16 by default.
		Channels int
		// Volume is the master volume, 0..1.
		Volume float64
		// Transpose is added to the key of every note, in semitones.
		Transpose int `yaml:",omitempty"`

		// EngineThread selects engine-thread mode: events are queued and
		// applied by the render call. Otherwise events are applied at once on
		// the calling goroutine, which must then also be the one rendering.
		EngineThread bool `yaml:",omitempty"`
		QueueSize    int  `yaml:",omitempty"`

		ApplyRealTimeModulator bool
		ApplyFilter            bool
		ApplyModLFO            bool
		ApplyVibLFO            bool
		EnablePresetDrum       bool `yaml:",omitempty"`
		EnablePanChange        bool
		PlayOnlyFirstWave      bool `yaml:",omitempty"`

		// Free voices idle longer than AutoCleanVoiceTime milliseconds are
		// destroyed while more than AutoCleanVoiceLimit voices are free.
		AutoCleanVoiceLimit int
		AutoCleanVoiceTime  float64

		// ReleaseTimeout bounds, in milliseconds, how long clearing all sound
		// waits for voices to release before stopping them hard.
		ReleaseTimeout float64

		Interpolation Interpolation

		DefaultBank int
		DrumBank    int

		Verbose bool `yaml:",omitempty"`
	}

	// Interpolation selects how samples are resampled to the voice pitch.
	Interpolation int
)

const (
	InterpolationNone Interpolation = iota
	InterpolationLinear
	InterpolationCubic
)

// DrumChannel is the channel index conventionally reserved for percussion.
const DrumChannel = 9

var interpolationNames = [...]string{"none", "linear", "cubic"}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		SampleRate:             44100,
		Channels:               16,
		Volume:                 0.5,
		QueueSize:              1024,
		ApplyRealTimeModulator: true,
		ApplyFilter:            true,
		ApplyModLFO:            true,
		ApplyVibLFO:            true,
		EnablePanChange:        true,
		AutoCleanVoiceLimit:    20,
		AutoCleanVoiceTime:     10000,
		ReleaseTimeout:         2000,
		Interpolation:          InterpolationLinear,
		DefaultBank:            0,
		DrumBank:               128,
	}
}

// LoadConfig reads settings from a .yml or .json file. Fields missing from
// the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config %v: %w", path, err)
	}
	if errJSON := json.Unmarshal(b, &cfg); errJSON != nil {
		cfg = DefaultConfig()
		if errYaml := yaml.Unmarshal(b, &cfg); errYaml != nil {
			return cfg, fmt.Errorf("the config could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	return cfg, nil
}

func (i Interpolation) String() string {
	if i >= 0 && int(i) < len(interpolationNames) {
		return interpolationNames[i]
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

func (i Interpolation) MarshalYAML() (any, error) {
	return i.String(), nil
}

func (i *Interpolation) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	for j, n := range interpolationNames {
		if n == name {
			*i = Interpolation(j)
			return nil
		}
	}
	return fmt.Errorf("unknown interpolation %q", name)
}
