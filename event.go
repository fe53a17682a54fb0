package wavesynth

import "fmt"

type (
	// Command is the kind of a NoteEvent.
	Command int

	// NoteEvent is a timestamped performance event, produced by a sequence
	// source or a live input and consumed once by the synth.
	NoteEvent struct {
		Command Command
		Channel int
		// Key is the MIDI key for notes, the controller number for
		// ControlChange and the program for ProgramChange.
		Key int
		// Value is the velocity for notes, the controller value for
		// ControlChange, the 14-bit wheel position for PitchWheelChange, the
		// pressure for ChannelPressure and the tempo in BPM for Tempo.
		Value int
		// Duration is the note length in milliseconds. Zero or negative means
		// the note sounds until an explicit note off.
		Duration float64
		// Tick and Time locate the event in its sequence, in MIDI ticks and
		// milliseconds.
		Tick int64
		Time float64
		// ID groups the voices started by one NoteOn; it is assigned by the
		// synth when the event is played.
		ID uint64
	}

	// SequenceSource yields performance events in time order.
	SequenceSource interface {
		// ReadEventsUpTo returns the events at or before timeMs that have
		// not been returned yet.
		ReadEventsUpTo(timeMs float64) []NoteEvent
		// Rewind restarts the sequence from the beginning.
		Rewind()
		// EndReached reports whether every event has been returned.
		EndReached() bool
	}
)

const (
	NoteOff Command = iota
	NoteOn
	ControlChange
	ProgramChange
	PitchWheelChange
	ChannelPressure
	Tempo
)

// MIDI controller numbers the synth interprets itself.
const (
	CCBankSelect          = 0
	CCModulation          = 1
	CCDataEntryMSB        = 6
	CCVolume              = 7
	CCPan                 = 10
	CCExpression          = 11
	CCBankSelectLSB       = 32
	CCDataEntryLSB        = 38
	CCSustain             = 64
	CCReverbSend          = 91
	CCChorusSend          = 93
	CCNRPNLSB             = 98
	CCNRPNMSB             = 99
	CCRPNLSB              = 100
	CCRPNMSB              = 101
	CCAllSoundOff         = 120
	CCResetAllControllers = 121
	CCAllNotesOff         = 123
)

// PitchWheelCenter is the 14-bit pitch wheel value of no bend.
const PitchWheelCenter = 0x2000

var commandNames = [...]string{"NoteOff", "NoteOn", "ControlChange", "ProgramChange", "PitchWheelChange", "ChannelPressure", "Tempo"}

func (c Command) String() string {
	if c >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

func (e NoteEvent) String() string {
	return fmt.Sprintf("%v ch=%d key=%d value=%d dur=%.0fms", e.Command, e.Channel, e.Key, e.Value, e.Duration)
}
