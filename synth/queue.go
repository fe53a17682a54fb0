package synth

import "github.com/vsariola/wavesynth"

type (
	// command is a request queued for the render goroutine in engine-thread
	// mode. Only the fields its kind needs are set.
	command struct {
		kind    commandKind
		ev      wavesynth.NoteEvent
		channel int
		value   int
	}

	commandKind int
)

const (
	cmdEvent commandKind = iota
	cmdStopGroup
	cmdAllNotesOff
	cmdSoundOff
	cmdClearAllSound
	cmdHardStop
	cmdChannelEnabled
	cmdChannelBank
	cmdChannelPreset
	cmdSampleRate
)

// trySend queues c without blocking. A full queue drops the command; the
// render goroutine is not keeping up and blocking the caller would not help.
func trySend(q chan<- command, c command) bool {
	select {
	case q <- c:
		return true
	default:
		return false
	}
}

// drain applies every queued command in order. It never blocks.
func (s *Synth) drain() {
	for {
		select {
		case c := <-s.queue:
			s.apply(c)
		default:
			return
		}
	}
}

// submit applies c at once in caller-thread mode and queues it in
// engine-thread mode.
func (s *Synth) submit(c command) {
	if !s.cfg.EngineThread {
		s.apply(c)
		return
	}
	if !trySend(s.queue, c) {
		s.warnf("command queue full, dropping %v", c.kind)
	}
}

func (s *Synth) apply(c command) {
	switch c.kind {
	case cmdEvent:
		s.Dispatch(c.ev)
	case cmdStopGroup:
		s.stopGroup(c.ev.ID)
	case cmdAllNotesOff:
		s.allNotesOff(c.channel)
	case cmdSoundOff:
		s.soundOff(c.channel)
	case cmdClearAllSound:
		s.clearAllSound(c.value != 0)
	case cmdHardStop:
		s.hardStop()
	case cmdChannelEnabled:
		if ch := s.channel(c.channel); ch != nil {
			ch.enabled.Store(c.value != 0)
			if c.value == 0 {
				s.allNotesOff(c.channel)
			}
		}
	case cmdChannelBank:
		if ch := s.channel(c.channel); ch != nil {
			ch.bank.Store(int32(c.value))
			ch.setProgramChange(ch.Program())
		}
	case cmdChannelPreset:
		if ch := s.channel(c.channel); ch != nil {
			ch.setProgramChange(c.value)
		}
	case cmdSampleRate:
		s.setRate(c.value)
	}
}

var commandKindNames = [...]string{"event", "stop", "all notes off", "sound off", "clear all sound", "hard stop", "channel enable", "channel bank", "channel preset", "sample rate"}

func (k commandKind) String() string {
	if k >= 0 && int(k) < len(commandKindNames) {
		return commandKindNames[k]
	}
	return "unknown"
}
