package synth

import "math"

// EnvSection is the stage an envelope is in.
type EnvSection int

const (
	EnvDelay EnvSection = iota
	EnvAttack
	EnvHold
	EnvDecay
	EnvSustain
	EnvRelease
	EnvFinished
)

var envSectionNames = [...]string{"delay", "attack", "hold", "decay", "sustain", "release", "finished"}

func (s EnvSection) String() string {
	if s >= 0 && int(s) < len(envSectionNames) {
		return envSectionNames[s]
	}
	return "unknown"
}

type (
	// envStage describes one section: it lasts count blocks, during which
	// the value evolves as val = coeff*val + incr, and ends early when the
	// value leaves [min, max].
	envStage struct {
		count    uint32
		coeff    float64
		incr     float64
		min, max float64
	}

	envelope struct {
		stages  [EnvFinished + 1]envStage
		section EnvSection
		count   uint32
		val     float64
	}
)

const forever = math.MaxUint32

func (e *envelope) reset() {
	*e = envelope{}
	e.stages[EnvSustain] = envStage{count: forever, coeff: 1, min: -1, max: 2}
	e.stages[EnvFinished] = envStage{count: forever, min: -1, max: 1}
	e.stages[EnvRelease] = envStage{count: forever, coeff: 1, min: 0, max: 1}
}

func (e *envelope) setDelay(count uint32) {
	e.stages[EnvDelay] = envStage{count: count, coeff: 0, incr: 0, min: -1, max: 1}
}

func (e *envelope) setAttack(count uint32) {
	e.stages[EnvAttack] = envStage{count: count, coeff: 1, incr: ramp(count), min: -1, max: 1}
}

func (e *envelope) setHold(count uint32) {
	e.stages[EnvHold] = envStage{count: count, coeff: 1, incr: 0, min: -1, max: 2}
}

// setDecay decays towards the sustain level, given as 0..1 of full scale.
func (e *envelope) setDecay(count uint32, sustain float64) {
	e.stages[EnvDecay] = envStage{count: count, coeff: 1, incr: -ramp(count), min: min(max(sustain, 0), 1), max: 2}
}

func (e *envelope) setRelease(count uint32) {
	e.stages[EnvRelease] = envStage{count: count, coeff: 1, incr: -ramp(count), min: 0, max: 1}
}

func ramp(count uint32) float64 {
	if count == 0 {
		return 0
	}
	return 1 / float64(count)
}

// enter jumps straight to a section.
func (e *envelope) enter(s EnvSection) {
	e.section = s
	e.count = 0
}

// step advances the envelope by one block.
func (e *envelope) step() {
	st := &e.stages[e.section]
	for e.count >= st.count && e.section < EnvFinished {
		if e.section == EnvDecay {
			e.val = st.min * st.coeff
		}
		e.section++
		e.count = 0
		st = &e.stages[e.section]
	}
	x := st.coeff*e.val + st.incr
	if x < st.min {
		x = st.min
		e.section++
		e.count = 0
	} else if x > st.max {
		x = st.max
		e.section++
		e.count = 0
	} else {
		e.count++
	}
	e.section = min(e.section, EnvFinished)
	e.val = x
}
