//go:build !cgo

package cmd

import (
	"errors"
	"io"

	"github.com/vsariola/wavesynth/live"
)

// with no cgo there are no MIDI drivers
var errNoMIDI = errors.New("MIDI input is not available in builds without cgo")

func OpenMIDIInput(driver, name string, in *live.Input) (io.Closer, error) {
	return nil, errNoMIDI
}

func MIDIInputs(driver string) ([]string, error) {
	return nil, errNoMIDI
}
