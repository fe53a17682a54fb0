package bank

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/vsariola/wavesynth"
)

// The synthetic waves are recorded at 44000 Hz so that one period of A4 is
// exactly 100 samples and loops are seamless.
const (
	synthRate   = 44000
	synthPeriod = 100
	synthLoops  = 40
)

var familyNames = [...]string{
	"Piano", "Chromatic Percussion", "Organ", "Guitar",
	"Bass", "Strings", "Ensemble", "Brass",
	"Reed", "Pipe", "Synth Lead", "Synth Pad",
	"Synth Effects", "Ethnic", "Percussive", "Sound Effects",
}

// instrument of each General MIDI family, indexing the instruments of the
// synthetic bank
var familyInstruments = [...]int{0, 1, 2, 3, 3, 4, 4, 5, 5, 2, 5, 4, 4, 3, 1, 4}

// Synthetic returns a small General MIDI shaped bank built from generated
// waves: every program of bank 0 maps to one of six instruments by its
// family, and bank 128 holds a drum kit. It needs no files and is what the
// tools play when no bank is given.
func Synthetic() *wavesynth.Bank {
	g := func(t wavesynth.GenType, amount float64) wavesynth.Generator {
		return wavesynth.Generator{Type: t, Amount: amount}
	}
	looped := g(wavesynth.GenSampleMode, wavesynth.SampleModeLoopContinuous)
	full := func(sample int, gens ...wavesynth.Generator) wavesynth.Zone {
		return wavesynth.Zone{Keys: wavesynth.FullRange, Vels: wavesynth.FullRange, Index: sample, Generators: gens}
	}
	keys := func(lo, hi, sample int, gens ...wavesynth.Generator) wavesynth.Zone {
		z := full(sample, gens...)
		z.Keys = wavesynth.Range{Lo: lo, Hi: hi}
		return z
	}
	b := &wavesynth.Bank{
		Name: "synthetic",
		Samples: []wavesynth.Sample{
			periodic("Sine", 1, 1),
			periodic("Square", 2, 39),
			periodic("Saw", 1, 40),
			noise("Noise"),
		},
		Instruments: []wavesynth.Instrument{
			{Name: "Piano", Zones: []wavesynth.Zone{full(0, looped,
				g(wavesynth.GenVolEnvDecay, 1200), g(wavesynth.GenVolEnvSustain, 400),
				g(wavesynth.GenKeyToVolEnvDecay, 10), g(wavesynth.GenVolEnvRelease, -1200))}},
			{Name: "Bell", Zones: []wavesynth.Zone{full(0, looped,
				g(wavesynth.GenVolEnvDecay, 700), g(wavesynth.GenVolEnvSustain, 1000),
				g(wavesynth.GenVolEnvRelease, 0), g(wavesynth.GenCoarseTune, 12))}},
			{Name: "Organ", Zones: []wavesynth.Zone{full(1, looped,
				g(wavesynth.GenVolEnvAttack, -6000), g(wavesynth.GenVolEnvRelease, -3600),
				g(wavesynth.GenAttenuation, 60))}},
			{Name: "Pluck", Zones: []wavesynth.Zone{full(2, looped,
				g(wavesynth.GenFilterFc, 9000), g(wavesynth.GenModEnvToFilterFc, 3000),
				g(wavesynth.GenModEnvDecay, -1200), g(wavesynth.GenModEnvSustain, 1000),
				g(wavesynth.GenVolEnvDecay, 1200), g(wavesynth.GenVolEnvSustain, 1000),
				g(wavesynth.GenVolEnvRelease, -2400))}},
			{Name: "Strings", Global: &wavesynth.Zone{Generators: []wavesynth.Generator{
				g(wavesynth.GenVolEnvAttack, -1200), g(wavesynth.GenVolEnvRelease, 0),
				g(wavesynth.GenVibLFOToPitch, 10), g(wavesynth.GenVibLFODelay, -2400),
				g(wavesynth.GenVibLFOFreq, 100), looped,
			}}, Zones: []wavesynth.Zone{
				// detuned pair panned apart
				full(2, g(wavesynth.GenPan, -300), g(wavesynth.GenFineTune, -6)),
				full(2, g(wavesynth.GenPan, 300), g(wavesynth.GenFineTune, 6)),
			}},
			{Name: "Lead", Zones: []wavesynth.Zone{full(1, looped,
				g(wavesynth.GenFilterFc, 10000), g(wavesynth.GenFilterQ, 60),
				g(wavesynth.GenVibLFOToPitch, 15), g(wavesynth.GenVolEnvRelease, -2400))}},
			{Name: "Kit", Global: &wavesynth.Zone{Generators: []wavesynth.Generator{
				g(wavesynth.GenOverrideRootKey, 60), g(wavesynth.GenScaleTune, 0),
			}}, Zones: []wavesynth.Zone{
				keys(35, 36, 3, g(wavesynth.GenCoarseTune, -36), g(wavesynth.GenFilterFc, 6000), g(wavesynth.GenVolEnvDecay, -2400), g(wavesynth.GenVolEnvSustain, 1440)),
				keys(37, 40, 3, g(wavesynth.GenFilterFc, 9500), g(wavesynth.GenVolEnvDecay, -2000), g(wavesynth.GenVolEnvSustain, 1440)),
				keys(42, 42, 3, g(wavesynth.GenExclusiveClass, 1), g(wavesynth.GenCoarseTune, 12), g(wavesynth.GenVolEnvDecay, -3000), g(wavesynth.GenVolEnvSustain, 1440)),
				keys(44, 44, 3, g(wavesynth.GenExclusiveClass, 1), g(wavesynth.GenCoarseTune, 12), g(wavesynth.GenVolEnvDecay, -2800), g(wavesynth.GenVolEnvSustain, 1440)),
				keys(46, 46, 3, g(wavesynth.GenExclusiveClass, 1), g(wavesynth.GenCoarseTune, 12), g(wavesynth.GenVolEnvDecay, -600), g(wavesynth.GenVolEnvSustain, 1440)),
				keys(49, 59, 3, g(wavesynth.GenCoarseTune, 7), g(wavesynth.GenVolEnvDecay, 600), g(wavesynth.GenVolEnvSustain, 1440), g(wavesynth.GenAttenuation, 40)),
			}},
		},
	}
	for p := 0; p < 128; p++ {
		family := p / 8
		b.Presets = append(b.Presets, wavesynth.Preset{
			Name:    fmt.Sprintf("%s %d", familyNames[family], p%8+1),
			Bank:    0,
			Program: p,
			Zones:   []wavesynth.Zone{full(familyInstruments[family])},
		})
	}
	b.Presets = append(b.Presets, wavesynth.Preset{Name: "Standard Kit", Bank: 128, Program: 0, Zones: []wavesynth.Zone{full(6)}})
	b.Intern()
	return b
}

// periodic builds a looped band-limited wave of A4 from the harmonics
// 1, 1+step, 1+2*step... up to last, each at 1/n amplitude.
func periodic(name string, step, last int) wavesynth.Sample {
	data := make([]float32, synthPeriod*synthLoops)
	var norm float64
	for n := 1; n <= last; n += step {
		norm += 1 / float64(n)
	}
	for i := range data {
		var x float64
		for n := 1; n <= last; n += step {
			x += math.Sin(2*math.Pi*float64(n*i)/synthPeriod) / float64(n)
		}
		data[i] = float32(0.8 * x / norm)
	}
	return wavesynth.Sample{Name: name, SampleRate: synthRate, LoopStart: 0, LoopEnd: len(data), RootKey: 69, Data: data}
}

// noise is half a second of white noise, the same on every call.
func noise(name string) wavesynth.Sample {
	r := rand.New(rand.NewPCG(1, 2))
	data := make([]float32, synthRate/2)
	for i := range data {
		data[i] = float32(r.Float64()*1.6 - 0.8)
	}
	return wavesynth.Sample{Name: name, SampleRate: synthRate, RootKey: 60, Data: data}
}
