package synth

import "github.com/vsariola/wavesynth"

// noteOn turns a note-on into voices: every preset zone and instrument zone
// covering (key, vel) starts one voice. It returns how many were started.
func (s *Synth) noteOn(c *Channel, key, vel int, duration float64, group uint64) int {
	if !c.Enabled() {
		return 0
	}
	preset := c.Preset()
	if preset == nil {
		s.warnf("channel %d: note %d dropped, no preset bound", c.num, key)
		return 0
	}
	// same note retrigger
	s.noteOff(c.num, key, true)
	started := 0
	first := len(s.active)
	for pi := range preset.Zones {
		pz := &preset.Zones[pi]
		if !pz.Contains(key, vel) {
			continue
		}
		ins := s.bank.Instrument(pz.Index)
		if ins == nil {
			s.warnf("preset %q: zone %d has no instrument %d", preset.Name, pi, pz.Index)
			continue
		}
		for ii := range ins.Zones {
			iz := &ins.Zones[ii]
			if !iz.Contains(key, vel) {
				continue
			}
			sample := s.bank.Sample(iz.Index)
			if !sample.Loaded() {
				s.warnf("instrument %q: zone %d sample %d is not loaded", ins.Name, ii, iz.Index)
				continue
			}
			id := s.alloc(sample)
			v := &s.voices[id]
			s.nextVoice++
			v.init(s, c, key, vel, sample, s.nextVoice, group)
			applyInstrumentZone(v, ins.Global, iz)
			applyPresetZone(v, preset.Global, pz)
			v.start(duration)
			s.killExclusive(id, first)
			started++
			if s.cfg.Verbose {
				s.log.Printf("wavesynth: voice %d ch=%d key=%d vel=%d sample %q", v.id, c.num, key, vel, sample.Name)
			}
			if s.cfg.PlayOnlyFirstWave {
				return started
			}
		}
	}
	if started == 0 && s.cfg.Verbose {
		s.log.Printf("wavesynth: preset %q has no zone for key %d vel %d", preset.Name, key, vel)
	}
	return started
}

// applyInstrumentZone sets the generators of the global zone and then the
// local one, and overwrites the default modulators with the merged zone
// modulators.
func applyInstrumentZone(v *Voice, global, local *wavesynth.Zone) {
	if global != nil {
		for _, g := range global.Generators {
			v.setGen(g.Type, g.Amount, wavesynth.GenSetInstrument)
		}
	}
	for _, g := range local.Generators {
		v.setGen(g.Type, g.Amount, wavesynth.GenSetInstrument)
	}
	for _, m := range mergeModulators(global, local) {
		v.addModulator(m, wavesynth.ModOverwrite)
	}
}

// applyPresetZone adds the preset generators on top of the instrument
// values. Global generators only count for types the local zone leaves
// alone. Generators that only make sense at instrument level are ignored.
func applyPresetZone(v *Voice, global, local *wavesynth.Zone) {
	var touched [wavesynth.GenLast]bool
	for _, g := range local.Generators {
		if instrumentOnly(g.Type) {
			continue
		}
		v.incrGen(g.Type, g.Amount)
		touched[g.Type] = true
	}
	if global != nil {
		for _, g := range global.Generators {
			if instrumentOnly(g.Type) || touched[g.Type] {
				continue
			}
			v.incrGen(g.Type, g.Amount)
		}
	}
	for _, m := range mergeModulators(global, local) {
		if m.Amount != 0 {
			v.addModulator(m, wavesynth.ModAdd)
		}
	}
}

// mergeModulators lists the modulators of a global and a local zone. Of two
// identical modulators only one is kept, carrying the amount of the later.
func mergeModulators(global, local *wavesynth.Zone) []wavesynth.Modulator {
	var n int
	if global != nil {
		n = len(global.Modulators)
	}
	ret := make([]wavesynth.Modulator, 0, n+len(local.Modulators))
	add := func(mods []wavesynth.Modulator) {
	next:
		for _, m := range mods {
			if m.Dest >= wavesynth.GenLast {
				continue
			}
			for i := range ret {
				if ret[i].Identical(m) {
					ret[i].Amount = m.Amount
					continue next
				}
			}
			ret = append(ret, m)
		}
	}
	if global != nil {
		add(global.Modulators)
	}
	add(local.Modulators)
	return ret
}

func instrumentOnly(t wavesynth.GenType) bool {
	switch t {
	case wavesynth.GenStartAddrOfs, wavesynth.GenEndAddrOfs,
		wavesynth.GenStartLoopAddrOfs, wavesynth.GenEndLoopAddrOfs,
		wavesynth.GenStartAddrCoarseOfs, wavesynth.GenEndAddrCoarseOfs,
		wavesynth.GenStartLoopAddrCoarseOfs, wavesynth.GenEndLoopAddrCoarseOfs,
		wavesynth.GenKeyNum, wavesynth.GenVelocity, wavesynth.GenSampleMode,
		wavesynth.GenExclusiveClass, wavesynth.GenOverrideRootKey,
		wavesynth.GenSampleID, wavesynth.GenInstrument,
		wavesynth.GenKeyRange, wavesynth.GenVelRange, wavesynth.GenPitch:
		return true
	}
	return t >= wavesynth.GenLast
}

// killExclusive force-releases the voices on the channel of voice id that
// share its exclusive class. Voices at active index first and above were
// started by the same note-on and are spared.
func (s *Synth) killExclusive(id VoiceID, first int) {
	v := &s.voices[id]
	class := v.exclusiveClass
	if class == 0 {
		return
	}
	for _, oid := range s.active[:first] {
		o := &s.voices[oid]
		if o.ch == v.ch && o.exclusiveClass == class && o.playing() {
			o.kill()
		}
	}
}
