package wavesynth

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

type (
	// GenType enumerates the synthesis parameters a zone can set. The numeric
	// values are the ones used in SoundFont 2 banks and must not be reordered.
	GenType uint8

	// Generator sets one synthesis parameter in a zone. Amount is in the
	// native unit of the generator: cents, centibels, timecents, 0.1% etc.
	Generator struct {
		Type   GenType
		Amount float64
	}

	// GenFlags records where the value of a resolved generator came from.
	GenFlags uint8

	// GenSlot is one resolved generator of a voice. Val is the static value
	// produced by zone merging, Mod is the sum contributed by modulators and is
	// recomputed every time a controller changes.
	GenSlot struct {
		Val   float64
		Mod   float64
		Flags GenFlags
	}

	// GenInfo documents a generator type: its name in bank files, valid
	// range and the value a voice starts with when no zone sets it.
	GenInfo struct {
		Name    string
		Min     float64
		Max     float64
		Default float64
		Unit    string
	}
)

const (
	GenStartAddrOfs GenType = iota
	GenEndAddrOfs
	GenStartLoopAddrOfs
	GenEndLoopAddrOfs
	GenStartAddrCoarseOfs
	GenModLFOToPitch
	GenVibLFOToPitch
	GenModEnvToPitch
	GenFilterFc
	GenFilterQ
	GenModLFOToFilterFc
	GenModEnvToFilterFc
	GenEndAddrCoarseOfs
	GenModLFOToVol
	GenUnused1
	GenChorusSend
	GenReverbSend
	GenPan
	GenUnused2
	GenUnused3
	GenUnused4
	GenModLFODelay
	GenModLFOFreq
	GenVibLFODelay
	GenVibLFOFreq
	GenModEnvDelay
	GenModEnvAttack
	GenModEnvHold
	GenModEnvDecay
	GenModEnvSustain
	GenModEnvRelease
	GenKeyToModEnvHold
	GenKeyToModEnvDecay
	GenVolEnvDelay
	GenVolEnvAttack
	GenVolEnvHold
	GenVolEnvDecay
	GenVolEnvSustain
	GenVolEnvRelease
	GenKeyToVolEnvHold
	GenKeyToVolEnvDecay
	GenInstrument
	GenReserved1
	GenKeyRange
	GenVelRange
	GenStartLoopAddrCoarseOfs
	GenKeyNum
	GenVelocity
	GenAttenuation
	GenReserved2
	GenEndLoopAddrCoarseOfs
	GenCoarseTune
	GenFineTune
	GenSampleID
	GenSampleMode
	GenReserved3
	GenScaleTune
	GenExclusiveClass
	GenOverrideRootKey
	// GenPitch is not stored in banks; it holds the key pitch of a voice in
	// cents so that the pitch wheel modulator has a destination.
	GenPitch
	GenLast
)

const (
	GenDefault GenFlags = iota
	GenSetInstrument
	GenSetPreset
)

// Sample modes of GenSampleMode.
const (
	SampleModeUnlooped         = 0
	SampleModeLoopContinuous   = 1
	SampleModeLoopUntilRelease = 3
)

// instantTimecents is the shortest envelope or LFO time, about one millisecond.
const instantTimecents = -12000

// GenTypes documents every generator, indexed by GenType.
var GenTypes = [GenLast]GenInfo{
	GenStartAddrOfs:           {Name: "startaddrofs", Min: 0, Max: 1e10, Unit: "smpls"},
	GenEndAddrOfs:             {Name: "endaddrofs", Min: -1e10, Max: 0, Unit: "smpls"},
	GenStartLoopAddrOfs:       {Name: "startloopaddrofs", Min: -1e10, Max: 1e10, Unit: "smpls"},
	GenEndLoopAddrOfs:         {Name: "endloopaddrofs", Min: -1e10, Max: 1e10, Unit: "smpls"},
	GenStartAddrCoarseOfs:     {Name: "startaddrcoarseofs", Min: 0, Max: 1e10, Unit: "32k smpls"},
	GenModLFOToPitch:          {Name: "modlfotopitch", Min: -12000, Max: 12000, Unit: "cent fs"},
	GenVibLFOToPitch:          {Name: "viblfotopitch", Min: -12000, Max: 12000, Unit: "cent fs"},
	GenModEnvToPitch:          {Name: "modenvtopitch", Min: -12000, Max: 12000, Unit: "cent fs"},
	GenFilterFc:               {Name: "filterfc", Min: 1500, Max: 13500, Default: 13500, Unit: "cent"},
	GenFilterQ:                {Name: "filterq", Min: 0, Max: 960, Unit: "cB"},
	GenModLFOToFilterFc:       {Name: "modlfotofilterfc", Min: -12000, Max: 12000, Unit: "cent fs"},
	GenModEnvToFilterFc:       {Name: "modenvtofilterfc", Min: -12000, Max: 12000, Unit: "cent fs"},
	GenEndAddrCoarseOfs:       {Name: "endaddrcoarseofs", Min: -1e10, Max: 0, Unit: "32k smpls"},
	GenModLFOToVol:            {Name: "modlfotovol", Min: -960, Max: 960, Unit: "cB fs"},
	GenUnused1:                {Name: "unused1"},
	GenChorusSend:             {Name: "chorussend", Min: 0, Max: 1000, Unit: "0.1%"},
	GenReverbSend:             {Name: "reverbsend", Min: 0, Max: 1000, Unit: "0.1%"},
	GenPan:                    {Name: "pan", Min: -500, Max: 500, Unit: "0.1%"},
	GenUnused2:                {Name: "unused2"},
	GenUnused3:                {Name: "unused3"},
	GenUnused4:                {Name: "unused4"},
	GenModLFODelay:            {Name: "modlfodelay", Min: -12000, Max: 5000, Default: instantTimecents, Unit: "timecent"},
	GenModLFOFreq:             {Name: "modlfofreq", Min: -16000, Max: 4500, Unit: "cent"},
	GenVibLFODelay:            {Name: "viblfodelay", Min: -12000, Max: 5000, Default: instantTimecents, Unit: "timecent"},
	GenVibLFOFreq:             {Name: "viblfofreq", Min: -16000, Max: 4500, Unit: "cent"},
	GenModEnvDelay:            {Name: "modenvdelay", Min: -12000, Max: 5000, Default: instantTimecents, Unit: "timecent"},
	GenModEnvAttack:           {Name: "modenvattack", Min: -12000, Max: 8000, Default: instantTimecents, Unit: "timecent"},
	GenModEnvHold:             {Name: "modenvhold", Min: -12000, Max: 5000, Default: instantTimecents, Unit: "timecent"},
	GenModEnvDecay:            {Name: "modenvdecay", Min: -12000, Max: 8000, Default: instantTimecents, Unit: "timecent"},
	GenModEnvSustain:          {Name: "modenvsustain", Min: 0, Max: 1000, Unit: "-0.1%"},
	GenModEnvRelease:          {Name: "modenvrelease", Min: -12000, Max: 8000, Default: instantTimecents, Unit: "timecent"},
	GenKeyToModEnvHold:        {Name: "keytomodenvhold", Min: -1200, Max: 1200, Unit: "tcent/key"},
	GenKeyToModEnvDecay:       {Name: "keytomodenvdecay", Min: -1200, Max: 1200, Unit: "tcent/key"},
	GenVolEnvDelay:            {Name: "volenvdelay", Min: -12000, Max: 5000, Default: instantTimecents, Unit: "timecent"},
	GenVolEnvAttack:           {Name: "volenvattack", Min: -12000, Max: 8000, Default: instantTimecents, Unit: "timecent"},
	GenVolEnvHold:             {Name: "volenvhold", Min: -12000, Max: 5000, Default: instantTimecents, Unit: "timecent"},
	GenVolEnvDecay:            {Name: "volenvdecay", Min: -12000, Max: 8000, Default: instantTimecents, Unit: "timecent"},
	GenVolEnvSustain:          {Name: "volenvsustain", Min: 0, Max: 1440, Unit: "cB attn"},
	GenVolEnvRelease:          {Name: "volenvrelease", Min: -12000, Max: 8000, Default: instantTimecents, Unit: "timecent"},
	GenKeyToVolEnvHold:        {Name: "keytovolenvhold", Min: -1200, Max: 1200, Unit: "tcent/key"},
	GenKeyToVolEnvDecay:       {Name: "keytovolenvdecay", Min: -1200, Max: 1200, Unit: "tcent/key"},
	GenInstrument:             {Name: "instrument"},
	GenReserved1:              {Name: "reserved1"},
	GenKeyRange:               {Name: "keyrange", Max: 127},
	GenVelRange:               {Name: "velrange", Max: 127},
	GenStartLoopAddrCoarseOfs: {Name: "startloopaddrcoarseofs", Min: -1e10, Max: 1e10, Unit: "32k smpls"},
	GenKeyNum:                 {Name: "keynum", Min: -1, Max: 127, Default: -1, Unit: "key"},
	GenVelocity:               {Name: "velocity", Min: -1, Max: 127, Default: -1, Unit: "vel"},
	GenAttenuation:            {Name: "attenuation", Min: 0, Max: 1440, Unit: "cB"},
	GenReserved2:              {Name: "reserved2"},
	GenEndLoopAddrCoarseOfs:   {Name: "endloopaddrcoarseofs", Min: -1e10, Max: 1e10, Unit: "32k smpls"},
	GenCoarseTune:             {Name: "coarsetune", Min: -120, Max: 120, Unit: "semitone"},
	GenFineTune:               {Name: "finetune", Min: -99, Max: 99, Unit: "cent"},
	GenSampleID:               {Name: "sampleid"},
	GenSampleMode:             {Name: "samplemode", Min: 0, Max: 3},
	GenReserved3:              {Name: "reserved3"},
	GenScaleTune:              {Name: "scaletune", Min: 0, Max: 1200, Default: 100, Unit: "cent/key"},
	GenExclusiveClass:         {Name: "exclusiveclass", Min: 0, Max: 127},
	GenOverrideRootKey:        {Name: "overriderootkey", Min: -1, Max: 127, Default: -1, Unit: "key"},
	GenPitch:                  {Name: "pitch", Min: -1e10, Max: 1e10, Unit: "cent"},
}

var genTypeByName = func() map[string]GenType {
	ret := make(map[string]GenType, GenLast)
	for i, info := range GenTypes {
		ret[info.Name] = GenType(i)
	}
	return ret
}()

// ParseGenType returns the generator type with the given bank-file name.
func ParseGenType(name string) (GenType, error) {
	if t, ok := genTypeByName[name]; ok {
		return t, nil
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < int(GenLast) {
		return GenType(i), nil
	}
	return 0, fmt.Errorf("unknown generator %q", name)
}

func (t GenType) String() string {
	if t < GenLast {
		return GenTypes[t].Name
	}
	return "gen" + strconv.Itoa(int(t))
}

// Clamp limits a generator value to the valid range of its type. Types with
// no documented range are returned unchanged.
func (t GenType) Clamp(v float64) float64 {
	if t >= GenLast {
		return v
	}
	info := GenTypes[t]
	if info.Min == 0 && info.Max == 0 {
		return v
	}
	return min(max(v, info.Min), info.Max)
}

func (t GenType) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *GenType) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return fmt.Errorf("generator type: %w", err)
	}
	parsed, err := ParseGenType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DefaultGens returns a fresh set of generator slots, each at its default
// value and flagged GenDefault.
func DefaultGens() (ret [GenLast]GenSlot) {
	for i := range ret {
		ret[i] = GenSlot{Val: GenTypes[i].Default}
	}
	return
}

// Value returns the value of the slot with the modulator contribution added.
func (g GenSlot) Value() float64 {
	return g.Val + g.Mod
}
