package synth

import (
	"slices"

	"github.com/vsariola/wavesynth"
)

// VoiceID is the index of a voice in the arena of a Synth. It stays valid
// until the voice is evicted from the free pool.
type VoiceID int32

// alloc returns an active voice for sample. A free voice that last played
// the same sample is reused, then a destroyed slot, and only then the arena
// grows.
func (s *Synth) alloc(sample *wavesynth.Sample) VoiceID {
	s.played.Add(1)
	for i, id := range s.free {
		if v := &s.voices[id]; v.sample != nil && v.sample.ID == sample.ID {
			s.free = slices.Delete(s.free, i, i+1)
			s.active = append(s.active, id)
			s.reused.Add(1)
			s.publishCounts()
			return id
		}
	}
	var id VoiceID
	if n := len(s.dead); n > 0 {
		id = s.dead[n-1]
		s.dead = s.dead[:n-1]
	} else {
		s.voices = append(s.voices, Voice{})
		id = VoiceID(len(s.voices) - 1)
	}
	s.active = append(s.active, id)
	s.publishCounts()
	return id
}

// recycle moves the voices that went OFF from the active list to the free
// pool, keeping their sample so they can be reused.
func (s *Synth) recycle() {
	moved := false
	s.active = slices.DeleteFunc(s.active, func(id VoiceID) bool {
		v := &s.voices[id]
		if v.status != statusOff {
			return false
		}
		v.freedAt = s.clock
		s.free = append(s.free, id)
		moved = true
		if s.cfg.Verbose {
			s.log.Printf("wavesynth: voice %d off", v.id)
		}
		return true
	})
	if moved {
		s.publishCounts()
	}
}

// autoClean destroys free voices idle for longer than AutoCleanVoiceTime
// while the free pool holds more than AutoCleanVoiceLimit voices. The oldest
// are freed first.
func (s *Synth) autoClean() {
	if len(s.free) <= s.cfg.AutoCleanVoiceLimit {
		return
	}
	excess := len(s.free) - s.cfg.AutoCleanVoiceLimit
	s.free = slices.DeleteFunc(s.free, func(id VoiceID) bool {
		if excess == 0 {
			return false
		}
		v := &s.voices[id]
		if s.clock-v.freedAt <= s.cfg.AutoCleanVoiceTime {
			return false
		}
		v.destroy()
		s.dead = append(s.dead, id)
		excess--
		return true
	})
	s.publishCounts()
}

// destroyFree empties the free pool.
func (s *Synth) destroyFree() {
	for _, id := range s.free {
		s.voices[id].destroy()
		s.dead = append(s.dead, id)
	}
	s.free = s.free[:0]
	s.publishCounts()
}

func (s *Synth) publishCounts() {
	s.activeCount.Store(int32(len(s.active)))
	s.freeCount.Store(int32(len(s.free)))
}
