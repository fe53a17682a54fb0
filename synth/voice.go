package synth

import (
	"math"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/wavesynth"
)

type (
	// Voice is one sounding instance of a sample. Voices live in the arena
	// of a Synth and are referred to by VoiceID; a *Voice obtained from
	// Synth.Voice is only valid until the next call that may allocate.
	Voice struct {
		s  *Synth
		ch *Channel

		id       uint64
		group    uint64
		key      int
		vel      int
		status   voiceStatus
		started  float64 // synth clock, ms
		freedAt  float64 // synth clock, ms
		sample   *wavesynth.Sample
		gens     [wavesynth.GenLast]wavesynth.GenSlot
		mods     []wavesynth.Modulator
		rate     float64
		ticks    uint64
		duration uint64 // in samples, 0 means until note off

		volenv, modenv envelope

		modlfoVal, modlfoIncr                  float64
		modlfoDelay                            uint64
		modlfoToPitch, modlfoToVol, modlfoToFc float64
		viblfoVal, viblfoIncr                  float64
		viblfoDelay                            uint64
		viblfoToPitch                          float64
		modenvToPitch, modenvToFc              float64

		pitch       float64 // cents
		rootPitchHz float64
		attenuation float64 // cB
		pan         float64
		ampLeft     float64
		ampRight    float64
		amp         float64 // gain at the end of the previous block
		reverbSend  float64
		chorusSend  float64
		fres        float64 // cutoff, absolute cents
		filter      lowpass

		exclusiveClass int
		sampleMode     int
		begin, end     int
		loopStart      int
		loopEnd        int
		phase          float64

		dsp [blockSize]float32
		tmp [blockSize]float32
	}

	voiceStatus int

	// VoiceState is the externally visible lifecycle state of a voice.
	VoiceState int
)

const (
	statusOff voiceStatus = iota
	statusOn
	statusSustained
)

const (
	VoiceOff VoiceState = iota
	VoiceOn
	VoiceSustained
	VoiceRelease
)

var voiceStateNames = [...]string{"off", "on", "sustained", "release"}

func (s VoiceState) String() string {
	if s >= 0 && int(s) < len(voiceStateNames) {
		return voiceStateNames[s]
	}
	return "unknown"
}

// init prepares a voice for a new note. Everything from the previous note is
// discarded, except the modulator slice capacity.
func (v *Voice) init(s *Synth, ch *Channel, key, vel int, sample *wavesynth.Sample, id, group uint64) {
	mods := v.mods[:0]
	*v = Voice{
		s:        s,
		ch:       ch,
		id:       id,
		group:    group,
		key:      key,
		vel:      vel,
		sample:   sample,
		gens:     wavesynth.DefaultGens(),
		mods:     mods,
		started:  s.clock,
		rate:     s.rate,
		ampLeft:  1,
		ampRight: 1,
	}
	v.volenv.reset()
	v.modenv.reset()
	for _, m := range wavesynth.DefaultModulators() {
		v.addModulator(m, wavesynth.ModDefault)
	}
}

// destroy releases everything the voice references so the slot can be
// reconstructed later.
func (v *Voice) destroy() {
	*v = Voice{}
}

func (v *Voice) setGen(t wavesynth.GenType, val float64, flags wavesynth.GenFlags) {
	if t >= wavesynth.GenLast {
		return
	}
	v.gens[t].Val = val
	v.gens[t].Flags = flags
}

func (v *Voice) incrGen(t wavesynth.GenType, val float64) {
	if t >= wavesynth.GenLast {
		return
	}
	v.gens[t].Val += val
	v.gens[t].Flags = wavesynth.GenSetPreset
}

func (v *Voice) addModulator(m wavesynth.Modulator, mode wavesynth.ModAddMode) {
	if mode != wavesynth.ModDefault {
		for i := range v.mods {
			if !v.mods[i].Identical(m) {
				continue
			}
			if mode == wavesynth.ModOverwrite {
				v.mods[i].Amount = m.Amount
			} else {
				v.mods[i].Amount += m.Amount
			}
			return
		}
	}
	v.mods = append(v.mods, m)
}

// start makes the voice audible: it applies key and velocity overrides,
// computes all modulators and derives every synthesis parameter.
func (v *Voice) start(duration float64) {
	if k := int(v.gens[wavesynth.GenKeyNum].Val); k >= 0 {
		v.key = k
	}
	if vel := int(v.gens[wavesynth.GenVelocity].Val); vel >= 0 {
		v.vel = vel
	}
	v.gens[wavesynth.GenPitch].Val = v.gens[wavesynth.GenScaleTune].Val*float64(v.key-60) + 6000
	for i := range v.gens {
		v.gens[i].Mod = 0
	}
	for i := range v.mods {
		v.gens[v.mods[i].Dest].Mod += v.modValue(&v.mods[i])
	}
	v.updateAll()
	v.phase = float64(v.begin)
	v.volenv.enter(EnvDelay)
	v.modenv.enter(EnvDelay)
	if duration > 0 {
		v.duration = uint64(duration * v.rate / 1000)
	}
	v.status = statusOn
}

// State reports the lifecycle state of the voice.
func (v *Voice) State() VoiceState {
	switch {
	case v.status == statusOff:
		return VoiceOff
	case v.volenv.section >= EnvRelease:
		return VoiceRelease
	case v.status == statusSustained:
		return VoiceSustained
	}
	return VoiceOn
}

// playing is true for ON or SUSTAINED voices that have not started to
// release.
func (v *Voice) playing() bool {
	return v.status != statusOff && v.volenv.section < EnvRelease
}

// noteOff releases the voice. If the sustain pedal of the channel is down
// and force is not set, the voice is only marked sustained and released
// later when the pedal comes up.
func (v *Voice) noteOff(force bool) {
	if v.status == statusOff {
		return
	}
	if !force && v.ch != nil && v.ch.sustained() {
		v.status = statusSustained
		return
	}
	if v.volenv.section == EnvAttack && v.volenv.val > 0 {
		// the attack is linear in amplitude and the other sections are not,
		// so map the current amplitude onto the release scale
		lfo := v.modlfoVal * -v.modlfoToVol
		amp := v.volenv.val * math.Pow(10, lfo/-200)
		env := -((-200*math.Log10(amp)-lfo)/960 - 1)
		v.volenv.val = min(max(env, 0), 1)
	}
	v.volenv.enter(EnvRelease)
	v.modenv.enter(EnvRelease)
	v.status = statusOn
}

// kill force-releases the voice with a very short release, for exclusive
// classes. It is not killed twice.
func (v *Voice) kill() {
	if !v.playing() {
		return
	}
	v.setGen(wavesynth.GenExclusiveClass, 0, wavesynth.GenSetInstrument)
	v.exclusiveClass = 0
	if v.volenv.section != EnvRelease {
		v.volenv.enter(EnvRelease)
		v.modenv.enter(EnvRelease)
	}
	v.setGen(wavesynth.GenVolEnvRelease, -200, wavesynth.GenSetInstrument)
	v.updateParam(wavesynth.GenVolEnvRelease)
	v.setGen(wavesynth.GenModEnvRelease, -200, wavesynth.GenSetInstrument)
	v.updateParam(wavesynth.GenModEnvRelease)
	v.status = statusOn
}

// off stops the voice at once.
func (v *Voice) off() {
	v.volenv.enter(EnvFinished)
	v.modenv.enter(EnvFinished)
	v.status = statusOff
}

// modulate recomputes the generators whose modulators read the given
// controller. isCC tells whether ctrl is a MIDI controller number or a
// general controller source.
func (v *Voice) modulate(isCC bool, ctrl int) {
	for i := range v.mods {
		m := &v.mods[i]
		if !readsSource(m, isCC, ctrl) {
			continue
		}
		dest := m.Dest
		sum := 0.0
		for j := range v.mods {
			if v.mods[j].Dest == dest {
				sum += v.modValue(&v.mods[j])
			}
		}
		v.gens[dest].Mod = sum
		v.updateParam(dest)
	}
}

// modulateAll recomputes every modulated generator.
func (v *Voice) modulateAll() {
	var touched [wavesynth.GenLast]bool
	for i := range v.mods {
		touched[v.mods[i].Dest] = true
	}
	for t, ok := range touched {
		if ok {
			v.gens[t].Mod = 0
		}
	}
	for i := range v.mods {
		v.gens[v.mods[i].Dest].Mod += v.modValue(&v.mods[i])
	}
	for t, ok := range touched {
		if ok {
			v.updateParam(wavesynth.GenType(t))
		}
	}
}

func (v *Voice) gen(t wavesynth.GenType) float64 {
	return v.gens[t].Value()
}

func (v *Voice) updateAll() {
	for t := wavesynth.GenType(0); t < wavesynth.GenLast; t++ {
		v.updateParam(t)
	}
	v.updateRootPitch()
	v.updateAddresses()
}

// updateParam derives the synthesis parameters depending on generator t.
func (v *Voice) updateParam(t wavesynth.GenType) {
	switch t {
	case wavesynth.GenPan:
		v.pan = v.gen(t)
		v.ampLeft, v.ampRight = panGains(v.pan)
	case wavesynth.GenAttenuation:
		v.attenuation = min(max(v.gen(t), 0), peakAttenuation)
	case wavesynth.GenPitch, wavesynth.GenCoarseTune, wavesynth.GenFineTune:
		v.pitch = v.gen(wavesynth.GenPitch) + 100*v.gen(wavesynth.GenCoarseTune) + v.gen(wavesynth.GenFineTune)
	case wavesynth.GenReverbSend:
		v.reverbSend = min(max(v.gen(t)/1000, 0), 1)
	case wavesynth.GenChorusSend:
		v.chorusSend = min(max(v.gen(t)/1000, 0), 1)
	case wavesynth.GenOverrideRootKey:
		v.updateRootPitch()
	case wavesynth.GenFilterFc:
		v.fres = v.gen(t)
	case wavesynth.GenFilterQ:
		v.filter.setQ(min(max(v.gen(t), 0), 960))
	case wavesynth.GenModLFOToPitch:
		v.modlfoToPitch = min(max(v.gen(t), -12000), 12000)
	case wavesynth.GenModLFOToVol:
		v.modlfoToVol = min(max(v.gen(t), -960), 960)
	case wavesynth.GenModLFOToFilterFc:
		v.modlfoToFc = min(max(v.gen(t), -12000), 12000)
	case wavesynth.GenModLFODelay:
		v.modlfoDelay = uint64(v.rate * tc2secDelay(v.gen(t)))
	case wavesynth.GenModLFOFreq:
		v.modlfoIncr = 4 * blockSize * ct2hz(min(max(v.gen(t), -16000), 4500)) / v.rate
	case wavesynth.GenVibLFOToPitch:
		v.viblfoToPitch = min(max(v.gen(t), -12000), 12000)
	case wavesynth.GenVibLFODelay:
		v.viblfoDelay = uint64(v.rate * tc2secDelay(v.gen(t)))
	case wavesynth.GenVibLFOFreq:
		v.viblfoIncr = 4 * blockSize * ct2hz(min(max(v.gen(t), -16000), 4500)) / v.rate
	case wavesynth.GenModEnvToPitch:
		v.modenvToPitch = min(max(v.gen(t), -12000), 12000)
	case wavesynth.GenModEnvToFilterFc:
		v.modenvToFc = min(max(v.gen(t), -12000), 12000)
	case wavesynth.GenStartAddrOfs, wavesynth.GenStartAddrCoarseOfs,
		wavesynth.GenEndAddrOfs, wavesynth.GenEndAddrCoarseOfs,
		wavesynth.GenStartLoopAddrOfs, wavesynth.GenStartLoopAddrCoarseOfs,
		wavesynth.GenEndLoopAddrOfs, wavesynth.GenEndLoopAddrCoarseOfs,
		wavesynth.GenSampleMode:
		v.updateAddresses()
	case wavesynth.GenExclusiveClass:
		v.exclusiveClass = int(v.gen(t))
	case wavesynth.GenVolEnvDelay:
		v.volenv.setDelay(buffers(v.rate, tc2secDelay(v.gen(t))))
	case wavesynth.GenVolEnvAttack:
		v.volenv.setAttack(1 + buffers(v.rate, tc2secAttack(v.gen(t))))
	case wavesynth.GenVolEnvHold, wavesynth.GenKeyToVolEnvHold:
		tc := v.gen(wavesynth.GenVolEnvHold) + v.gen(wavesynth.GenKeyToVolEnvHold)*float64(60-v.key)
		v.volenv.setHold(buffers(v.rate, tc2secDelay(tc)))
	case wavesynth.GenVolEnvDecay, wavesynth.GenVolEnvSustain, wavesynth.GenKeyToVolEnvDecay:
		tc := v.gen(wavesynth.GenVolEnvDecay) + v.gen(wavesynth.GenKeyToVolEnvDecay)*float64(60-v.key)
		v.volenv.setDecay(1+buffers(v.rate, tc2secAttack(tc)), 1-0.001*v.gen(wavesynth.GenVolEnvSustain))
	case wavesynth.GenVolEnvRelease:
		v.volenv.setRelease(1 + buffers(v.rate, tc2secRelease(v.gen(t))))
	case wavesynth.GenModEnvDelay:
		v.modenv.setDelay(buffers(v.rate, tc2secDelay(v.gen(t))))
	case wavesynth.GenModEnvAttack:
		v.modenv.setAttack(1 + buffers(v.rate, tc2secAttack(v.gen(t))))
	case wavesynth.GenModEnvHold, wavesynth.GenKeyToModEnvHold:
		tc := v.gen(wavesynth.GenModEnvHold) + v.gen(wavesynth.GenKeyToModEnvHold)*float64(60-v.key)
		v.modenv.setHold(buffers(v.rate, tc2secDelay(tc)))
	case wavesynth.GenModEnvDecay, wavesynth.GenModEnvSustain, wavesynth.GenKeyToModEnvDecay:
		tc := v.gen(wavesynth.GenModEnvDecay) + v.gen(wavesynth.GenKeyToModEnvDecay)*float64(60-v.key)
		v.modenv.setDecay(1+buffers(v.rate, tc2secAttack(tc)), 1-0.001*v.gen(wavesynth.GenModEnvSustain))
	case wavesynth.GenModEnvRelease:
		v.modenv.setRelease(1 + buffers(v.rate, tc2secRelease(v.gen(t))))
	}
}

func (v *Voice) updateRootPitch() {
	if v.sample == nil {
		return
	}
	root := float64(v.sample.RootKey)*100 - float64(v.sample.Correction)
	if k := v.gen(wavesynth.GenOverrideRootKey); k >= 0 {
		root = k*100 - float64(v.sample.Correction)
	}
	v.rootPitchHz = ct2hz(root)
	if sr := v.sample.SampleRate; sr > 0 && v.rate > 0 {
		v.rootPitchHz *= v.rate / float64(sr)
	}
}

func (v *Voice) updateAddresses() {
	if v.sample == nil {
		return
	}
	n := len(v.sample.Data)
	coarse := func(t wavesynth.GenType) int { return 32768 * int(v.gen(t)) }
	v.begin = min(max(int(v.gen(wavesynth.GenStartAddrOfs))+coarse(wavesynth.GenStartAddrCoarseOfs), 0), n)
	v.end = min(max(n+int(v.gen(wavesynth.GenEndAddrOfs))+coarse(wavesynth.GenEndAddrCoarseOfs), v.begin), n)
	v.loopStart = min(max(v.sample.LoopStart+int(v.gen(wavesynth.GenStartLoopAddrOfs))+coarse(wavesynth.GenStartLoopAddrCoarseOfs), v.begin), v.end)
	v.loopEnd = min(max(v.sample.LoopEnd+int(v.gen(wavesynth.GenEndLoopAddrOfs))+coarse(wavesynth.GenEndLoopAddrCoarseOfs), v.loopStart), v.end)
	v.sampleMode = int(v.gen(wavesynth.GenSampleMode))
}

func (v *Voice) looping() bool {
	if v.loopEnd-v.loopStart < 2 {
		return false
	}
	switch v.sampleMode {
	case wavesynth.SampleModeLoopContinuous:
		return true
	case wavesynth.SampleModeLoopUntilRelease:
		return v.volenv.section < EnvRelease
	}
	return false
}

// render advances the voice by one block and mixes it into left and right,
// which must be blockSize long.
func (v *Voice) render(left, right []float32) {
	if v.status == statusOff {
		return
	}
	cfg := &v.s.cfg
	if v.rate != v.s.rate {
		v.rate = v.s.rate
		v.filter.valid = false
		v.updateAll()
	}
	if v.duration > 0 && v.ticks >= v.duration && v.volenv.section < EnvRelease {
		v.noteOff(true)
	}
	v.volenv.step()
	if v.volenv.section == EnvFinished {
		v.off()
		return
	}
	v.modenv.step()
	if cfg.ApplyModLFO && v.ticks >= v.modlfoDelay {
		v.modlfoVal = triangle(v.modlfoVal, &v.modlfoIncr)
	}
	if cfg.ApplyVibLFO && v.ticks >= v.viblfoDelay {
		v.viblfoVal = triangle(v.viblfoVal, &v.viblfoIncr)
	}
	if v.volenv.section == EnvDelay {
		v.ticks += blockSize
		return
	}
	lfoVol := 0.0
	if cfg.ApplyModLFO {
		lfoVol = v.modlfoVal * -v.modlfoToVol
	}
	var target float64
	if v.volenv.section == EnvAttack {
		target = cb2amp(v.attenuation) * cb2amp(lfoVol) * v.volenv.val
	} else {
		target = cb2amp(v.attenuation) * cb2amp(960*(1-v.volenv.val)+lfoVol)
		if v.volenv.section >= EnvDecay && target < noiseFloor && v.amp < noiseFloor {
			v.off()
			return
		}
	}
	pitch := v.pitch + v.modenv.val*v.modenvToPitch
	if cfg.ApplyModLFO {
		pitch += v.modlfoVal * v.modlfoToPitch
	}
	if cfg.ApplyVibLFO {
		pitch += v.viblfoVal * v.viblfoToPitch
	}
	incr := 0.0
	if v.rootPitchHz > 0 {
		incr = ct2hz(pitch) / v.rootPitchHz
	}
	n := v.fill(v.dsp[:], incr, v.amp, target, cfg.Interpolation)
	v.amp = target
	if cfg.ApplyFilter {
		fres := v.fres + v.modenv.val*v.modenvToFc
		if cfg.ApplyModLFO {
			fres += v.modlfoVal * v.modlfoToFc
		}
		v.filter.update(ct2hz(fres), v.rate)
		v.filter.process(v.dsp[:n])
	}
	vek32.MulNumber_Into(v.tmp[:n], v.dsp[:n], float32(v.ampLeft))
	vek32.Add_Inplace(left[:n], v.tmp[:n])
	vek32.MulNumber_Into(v.tmp[:n], v.dsp[:n], float32(v.ampRight))
	vek32.Add_Inplace(right[:n], v.tmp[:n])
	v.ticks += blockSize
	if n < blockSize {
		v.off()
	}
}

func triangle(val float64, incr *float64) float64 {
	val += *incr
	if val > 1 {
		*incr = -*incr
		val = 2 - val
	} else if val < -1 {
		*incr = -*incr
		val = -2 - val
	}
	return val
}

// fill resamples the sample into out, ramping the gain from amp to ampEnd.
// It returns how many frames were written before an unlooped sample ran
// out.
func (v *Voice) fill(out []float32, incr, amp, ampEnd float64, interp wavesynth.Interpolation) int {
	data := v.sample.Data
	ampIncr := (ampEnd - amp) / float64(len(out))
	for i := range out {
		looping := v.looping()
		if looping {
			for v.phase >= float64(v.loopEnd) {
				v.phase -= float64(v.loopEnd - v.loopStart)
			}
		} else if v.phase >= float64(v.end) {
			clear(out[i:])
			return i
		}
		idx := int(v.phase)
		frac := v.phase - float64(idx)
		var x float64
		switch interp {
		case wavesynth.InterpolationNone:
			x = float64(data[idx])
		case wavesynth.InterpolationCubic:
			xm1 := v.at(idx-1, looping)
			x0 := float64(data[idx])
			x1 := v.at(idx+1, looping)
			x2 := v.at(idx+2, looping)
			x = x0 + 0.5*frac*(x1-xm1+frac*(2*xm1-5*x0+4*x1-x2+frac*(3*(x0-x1)+x2-xm1)))
		default:
			x0 := float64(data[idx])
			x = x0 + frac*(v.at(idx+1, looping)-x0)
		}
		out[i] = float32(x * amp)
		amp += ampIncr
		v.phase += incr
	}
	return len(out)
}

// at returns sample i, wrapping around the loop when looping.
func (v *Voice) at(i int, looping bool) float64 {
	if looping {
		if i >= v.loopEnd {
			i -= v.loopEnd - v.loopStart
		} else if i < v.loopStart && v.phase >= float64(v.loopStart) {
			i += v.loopEnd - v.loopStart
		}
	}
	if i < v.begin || i >= v.end {
		return 0
	}
	return float64(v.sample.Data[i])
}

// ID is unique among all voices ever started by a synth.
func (v *Voice) ID() uint64 { return v.id }

// Group is the id of the note-on event that started the voice.
func (v *Voice) Group() uint64 { return v.group }

func (v *Voice) Channel() int {
	if v.ch == nil {
		return -1
	}
	return v.ch.num
}

func (v *Voice) Key() int                  { return v.key }
func (v *Voice) Velocity() int             { return v.vel }
func (v *Voice) Sample() *wavesynth.Sample { return v.sample }
func (v *Voice) ExclusiveClass() int       { return v.exclusiveClass }
func (v *Voice) StartTime() float64        { return v.started }
func (v *Voice) EnvSection() EnvSection    { return v.volenv.section }
func (v *Voice) ReverbSend() float64       { return v.reverbSend }
func (v *Voice) ChorusSend() float64       { return v.chorusSend }
func (v *Voice) Pitch() float64            { return v.pitch }
func (v *Voice) Attenuation() float64      { return v.attenuation }
func (v *Voice) Pan() float64              { return v.pan }

// Gen returns the resolved generator t.
func (v *Voice) Gen(t wavesynth.GenType) wavesynth.GenSlot { return v.gens[t] }

// Modulators returns the modulators of the voice. The slice must not be
// modified.
func (v *Voice) Modulators() []wavesynth.Modulator { return v.mods }
