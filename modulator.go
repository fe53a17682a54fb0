package wavesynth

type (
	// ModFlags is the SoundFont 2 source-operand bit field of a modulator:
	// direction, polarity, curve shape and whether the source index refers to
	// a MIDI continuous controller or a general controller.
	ModFlags uint8

	// ModSource is a general controller index (when the CC flag is clear) or
	// a MIDI controller number (when it is set).
	ModSource uint8

	// Modulator maps up to two real-time sources onto a destination
	// generator. The contribution is transform(Src1) * transform(Src2) *
	// Amount and is added to the destination generator of a voice.
	Modulator struct {
		Dest   GenType
		Src1   ModSource
		Flags1 ModFlags
		Src2   ModSource
		Flags2 ModFlags
		Amount float64
	}

	// ModAddMode tells how a modulator is added to a voice that may already
	// hold an identical one.
	ModAddMode int
)

// The bit encoding follows the SoundFont 2 modulator source operand.
const (
	ModPositive ModFlags = 0
	ModNegative ModFlags = 1
	ModUnipolar ModFlags = 0
	ModBipolar  ModFlags = 2
	ModLinear   ModFlags = 0
	ModConcave  ModFlags = 4
	ModConvex   ModFlags = 8
	ModSwitch   ModFlags = 12
	ModGC       ModFlags = 0
	ModCC       ModFlags = 16

	modShapeMask ModFlags = 12
)

// General controller sources.
const (
	ModNone           ModSource = 0
	ModVelocity       ModSource = 2
	ModKey            ModSource = 3
	ModKeyPressure    ModSource = 10
	ModChanPressure   ModSource = 13
	ModPitchWheel     ModSource = 14
	ModPitchWheelSens ModSource = 16
)

const (
	// ModDefault appends the modulator without looking for an identical one.
	ModDefault ModAddMode = iota
	// ModOverwrite replaces the amount of an identical modulator, or appends.
	ModOverwrite
	// ModAdd sums the amount into an identical modulator, or appends.
	ModAdd
)

// Negative reports whether the source runs from max to min.
func (f ModFlags) Negative() bool { return f&ModNegative != 0 }

// Bipolar reports whether the source maps to -1..1 instead of 0..1.
func (f ModFlags) Bipolar() bool { return f&ModBipolar != 0 }

// CC reports whether the source index is a MIDI controller number.
func (f ModFlags) CC() bool { return f&ModCC != 0 }

// Shape returns one of ModLinear, ModConcave, ModConvex or ModSwitch.
func (f ModFlags) Shape() ModFlags { return f & modShapeMask }

// Identical reports whether two modulators have the same destination,
// sources and source flags. The amount is not compared: identical modulators
// override or sum into each other when zones are merged.
func (m Modulator) Identical(o Modulator) bool {
	return m.Dest == o.Dest &&
		m.Src1 == o.Src1 && m.Flags1 == o.Flags1 &&
		m.Src2 == o.Src2 && m.Flags2 == o.Flags2
}

// NewCCModulator is a helper for a single-source modulator driven by a MIDI
// controller.
func NewCCModulator(cc uint8, flags ModFlags, dest GenType, amount float64) Modulator {
	return Modulator{Dest: dest, Src1: ModSource(cc), Flags1: flags | ModCC, Amount: amount}
}

// NewGCModulator is a helper for a single-source modulator driven by a
// general controller such as velocity or the pitch wheel.
func NewGCModulator(src ModSource, flags ModFlags, dest GenType, amount float64) Modulator {
	return Modulator{Dest: dest, Src1: src, Flags1: flags &^ ModCC, Amount: amount}
}

var defaultModulators = [...]Modulator{
	// velocity to attenuation
	NewGCModulator(ModVelocity, ModConcave|ModUnipolar|ModNegative, GenAttenuation, 960),
	// velocity to filter cutoff, only for velocities above 64
	{
		Dest: GenFilterFc,
		Src1: ModVelocity, Flags1: ModGC | ModLinear | ModUnipolar | ModNegative,
		Src2: ModVelocity, Flags2: ModGC | ModSwitch | ModUnipolar | ModPositive,
		Amount: -2400,
	},
	// channel pressure to vibrato depth
	NewGCModulator(ModChanPressure, ModLinear|ModUnipolar|ModPositive, GenVibLFOToPitch, 50),
	// modulation wheel to vibrato depth
	NewCCModulator(1, ModLinear|ModUnipolar|ModPositive, GenVibLFOToPitch, 50),
	// channel volume
	NewCCModulator(7, ModConcave|ModUnipolar|ModNegative, GenAttenuation, 960),
	// channel pan
	NewCCModulator(10, ModLinear|ModBipolar|ModPositive, GenPan, 500),
	// expression
	NewCCModulator(11, ModConcave|ModUnipolar|ModNegative, GenAttenuation, 960),
	// reverb send
	NewCCModulator(91, ModLinear|ModUnipolar|ModPositive, GenReverbSend, 200),
	// chorus send
	NewCCModulator(93, ModLinear|ModUnipolar|ModPositive, GenChorusSend, 200),
	// pitch wheel scaled by pitch wheel sensitivity
	{
		Dest: GenPitch,
		Src1: ModPitchWheel, Flags1: ModGC | ModLinear | ModBipolar | ModPositive,
		Src2: ModPitchWheelSens, Flags2: ModGC | ModLinear | ModUnipolar | ModPositive,
		Amount: 12700,
	},
}

// DefaultModulators returns the modulators every voice starts with. The
// table is shared process-wide and never mutated; the returned array is a
// copy.
func DefaultModulators() [len(defaultModulators)]Modulator {
	return defaultModulators
}

// NumDefaultModulators is the number of modulators in DefaultModulators.
const NumDefaultModulators = len(defaultModulators)
