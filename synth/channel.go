package synth

import (
	"sync/atomic"

	"github.com/vsariola/wavesynth"
)

// Channel holds the performance state of one MIDI channel. Controller values
// are only touched by the goroutine dispatching events; the enable flag, bank,
// program and preset can be read from anywhere.
type Channel struct {
	s   *Synth
	num int

	enabled atomic.Bool
	bank    atomic.Int32
	program atomic.Int32
	preset  atomic.Pointer[wavesynth.Preset]

	cc              [128]int
	channelPressure int
	pitchBend       int
	pitchWheelSens  int
}

func (c *Channel) init(s *Synth, num int) {
	c.s = s
	c.num = num
	c.enabled.Store(true)
	bank := s.cfg.DefaultBank
	if num == wavesynth.DrumChannel {
		bank = s.cfg.DrumBank
	}
	c.bank.Store(int32(bank))
	c.setProgramChange(0)
	c.resetControllers()
}

// resetControllers puts every controller back to its power-on value.
func (c *Channel) resetControllers() {
	clear(c.cc[:])
	c.cc[wavesynth.CCVolume] = 100
	c.cc[wavesynth.CCPan] = 64
	c.cc[wavesynth.CCExpression] = 127
	c.cc[wavesynth.CCRPNLSB] = 127
	c.cc[wavesynth.CCRPNMSB] = 127
	c.cc[wavesynth.CCNRPNLSB] = 127
	c.cc[wavesynth.CCNRPNMSB] = 127
	c.channelPressure = 0
	c.pitchBend = wavesynth.PitchWheelCenter
	c.pitchWheelSens = 2
}

func (c *Channel) sustained() bool {
	return c.cc[wavesynth.CCSustain] >= 64
}

// setControlChange stores a controller value and applies its side effects:
// channel mode messages, sustain damping, RPN 0 and re-modulation of the
// voices sounding on the channel.
func (c *Channel) setControlChange(ctrl, val int) {
	if ctrl < 0 || ctrl > 127 {
		c.s.warnf("channel %d: controller %d out of range", c.num, ctrl)
		return
	}
	val = min(max(val, 0), 127)
	if ctrl == wavesynth.CCPan && !c.s.cfg.EnablePanChange {
		return
	}
	c.cc[ctrl] = val
	switch ctrl {
	case wavesynth.CCBankSelect:
		c.bank.Store(int32(val))
	case wavesynth.CCBankSelectLSB:
		// banks above 127 are not addressed by the LSB
	case wavesynth.CCSustain:
		if val < 64 {
			c.s.damp(c.num)
		}
	case wavesynth.CCAllSoundOff:
		c.s.soundOff(c.num)
	case wavesynth.CCAllNotesOff:
		c.s.allNotesOff(c.num)
	case wavesynth.CCResetAllControllers:
		c.resetControllers()
		c.s.modulateAll(c.num)
	case wavesynth.CCDataEntryMSB:
		if c.cc[wavesynth.CCRPNMSB] == 0 && c.cc[wavesynth.CCRPNLSB] == 0 {
			c.pitchWheelSens = val
			c.s.modulate(c.num, false, int(wavesynth.ModPitchWheelSens))
		}
	case wavesynth.CCRPNLSB, wavesynth.CCRPNMSB, wavesynth.CCNRPNLSB, wavesynth.CCNRPNMSB, wavesynth.CCDataEntryLSB:
	default:
		c.s.modulate(c.num, true, ctrl)
	}
}

// setProgramChange binds the preset at (bank, program). A missing preset
// unbinds the channel, which then drops its notes.
func (c *Channel) setProgramChange(program int) {
	program = min(max(program, 0), 127)
	c.program.Store(int32(program))
	bank := int(c.bank.Load())
	p := c.s.bank.GetPreset(bank, program)
	c.preset.Store(p)
	if p == nil {
		c.s.warnf("channel %d: no preset for bank %d program %d", c.num, bank, program)
	}
}

func (c *Channel) setPitchBend(val int) {
	c.pitchBend = min(max(val, 0), 0x3fff)
	c.s.modulate(c.num, false, int(wavesynth.ModPitchWheel))
}

func (c *Channel) setChannelPressure(val int) {
	c.channelPressure = min(max(val, 0), 127)
	c.s.modulate(c.num, false, int(wavesynth.ModChanPressure))
}

func (c *Channel) Num() int                   { return c.num }
func (c *Channel) Enabled() bool              { return c.enabled.Load() }
func (c *Channel) Bank() int                  { return int(c.bank.Load()) }
func (c *Channel) Program() int               { return int(c.program.Load()) }
func (c *Channel) Preset() *wavesynth.Preset  { return c.preset.Load() }
func (c *Channel) PitchBend() int             { return c.pitchBend }
func (c *Channel) PitchWheelSensitivity() int { return c.pitchWheelSens }
func (c *Channel) ChannelPressure() int       { return c.channelPressure }
func (c *Channel) Sustained() bool            { return c.sustained() }

// CC returns the value of controller n.
func (c *Channel) CC(n int) int {
	if n < 0 || n > 127 {
		return 0
	}
	return c.cc[n]
}
