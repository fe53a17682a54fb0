package wavesynth

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

type (
	// Bank is the instrument data the synth plays from: presets selectable
	// by (bank, program), the instruments they layer and the samples those
	// instruments play. A Bank is read-only once handed to a synth and may be
	// shared by several synths.
	Bank struct {
		Name        string       `yaml:",omitempty"`
		Presets     []Preset     `yaml:",omitempty"`
		Instruments []Instrument `yaml:",omitempty"`
		Samples     []Sample     `yaml:",omitempty"`

		interned bool
	}

	// Preset is a selectable program. Each zone references an instrument by
	// its index in Bank.Instruments.
	Preset struct {
		Name    string
		Bank    int
		Program int
		Global  *Zone `yaml:",omitempty"`
		Zones   []Zone
	}

	// Instrument groups samples. Each zone references a sample by its index
	// in Bank.Samples.
	Instrument struct {
		Name   string
		Global *Zone `yaml:",omitempty"`
		Zones  []Zone
	}

	// Zone scopes generators and modulators to a key and velocity range.
	// Index is the instrument (preset zones) or sample (instrument zones) the
	// zone plays; global zones have no index.
	Zone struct {
		Keys       Range
		Vels       Range
		Index      int
		Generators []Generator `yaml:",omitempty"`
		Modulators []Modulator `yaml:",omitempty"`
	}

	// Range is an inclusive range of MIDI keys or velocities.
	Range struct {
		Lo, Hi int
	}

	// Sample is a mono PCM wave. Data is normalized to -1..1 and is shared
	// read-only by every voice playing the sample.
	Sample struct {
		Name string
		// File is the path of the WAV file holding the sample data, relative
		// to the bank definition.
		File       string `yaml:",omitempty"`
		SampleRate int    `yaml:",omitempty"`
		LoopStart  int    `yaml:",omitempty"`
		LoopEnd    int    `yaml:",omitempty"`
		// RootKey is the MIDI key at which the sample plays at its recorded
		// pitch.
		RootKey int
		// Correction is a pitch correction in cents.
		Correction int `yaml:",omitempty"`

		ID   SampleID  `yaml:"-"`
		Data []float32 `yaml:"-"`
	}

	// SampleID identifies a sample within a bank. Samples with the same name
	// share an id, so comparing ids is enough to decide whether a voice can
	// be reused for a new note.
	SampleID int32
)

// FullRange covers every MIDI key or velocity.
var FullRange = Range{Lo: 0, Hi: 127}

// NoSample is the id of an unset sample.
const NoSample SampleID = -1

var errNoBank = errors.New("bank is nil")

// Contains reports whether v lies within the range.
func (r Range) Contains(v int) bool {
	return v >= r.Lo && v <= r.Hi
}

func (r Range) MarshalYAML() (any, error) {
	return []int{r.Lo, r.Hi}, nil
}

func (r *Range) UnmarshalYAML(value *yaml.Node) error {
	var pair []int
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("range: %w", err)
	}
	switch len(pair) {
	case 1:
		*r = Range{Lo: pair[0], Hi: pair[0]}
	case 2:
		*r = Range{Lo: pair[0], Hi: pair[1]}
	default:
		return fmt.Errorf("range should have one or two values, got %d", len(pair))
	}
	return nil
}

// UnmarshalYAML decodes a zone, defaulting to the full key and velocity
// ranges and no index when those are not given.
func (z *Zone) UnmarshalYAML(value *yaml.Node) error {
	type plain Zone
	p := plain{Keys: FullRange, Vels: FullRange, Index: -1}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*z = Zone(p)
	return nil
}

// Contains reports whether the zone plays for the given key and velocity.
func (z *Zone) Contains(key, vel int) bool {
	return z.Keys.Contains(key) && z.Vels.Contains(vel)
}

// Loaded reports whether the sample has PCM data to play.
func (s *Sample) Loaded() bool {
	return s != nil && len(s.Data) > 0
}

// GetPreset returns the preset bound to (bank, program) or nil if the bank
// has none. Presets are searched in storage order.
func (b *Bank) GetPreset(bank, program int) *Preset {
	if b == nil {
		return nil
	}
	for i := range b.Presets {
		if b.Presets[i].Bank == bank && b.Presets[i].Program == program {
			return &b.Presets[i]
		}
	}
	return nil
}

// Instrument returns the instrument at index, or nil if out of range.
func (b *Bank) Instrument(index int) *Instrument {
	if b == nil || index < 0 || index >= len(b.Instruments) {
		return nil
	}
	return &b.Instruments[index]
}

// Sample returns the sample at index, or nil if out of range.
func (b *Bank) Sample(index int) *Sample {
	if b == nil || index < 0 || index >= len(b.Samples) {
		return nil
	}
	return &b.Samples[index]
}

// Intern assigns sample ids. Samples sharing a name get the id of the first
// one, so voices can be recycled across them. Intern must be called before
// the bank is given to a synth; loaders call it for you.
func (b *Bank) Intern() {
	if b == nil {
		return
	}
	ids := make(map[string]SampleID, len(b.Samples))
	for i := range b.Samples {
		s := &b.Samples[i]
		id, ok := ids[s.Name]
		if !ok {
			id = SampleID(i)
			ids[s.Name] = id
		}
		s.ID = id
	}
	b.interned = true
}

// Interned reports whether Intern has assigned the sample ids.
func (b *Bank) Interned() bool {
	return b != nil && b.interned
}

// Validate checks that every zone references an existing instrument or
// sample. Dangling references are not fatal for the synth, which skips such
// zones, but loaders report them so broken banks are noticed.
func (b *Bank) Validate() error {
	if b == nil {
		return errNoBank
	}
	var errs []error
	for _, p := range b.Presets {
		for j, z := range p.Zones {
			if b.Instrument(z.Index) == nil {
				errs = append(errs, fmt.Errorf("preset %q zone %d: no instrument %d", p.Name, j, z.Index))
			}
		}
	}
	for _, ins := range b.Instruments {
		for j, z := range ins.Zones {
			if b.Sample(z.Index) == nil {
				errs = append(errs, fmt.Errorf("instrument %q zone %d: no sample %d", ins.Name, j, z.Index))
			}
		}
	}
	return errors.Join(errs...)
}
