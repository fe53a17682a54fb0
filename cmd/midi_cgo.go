//go:build cgo

package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/vsariola/wavesynth/live"
	"github.com/vsariola/wavesynth/live/gomidi"
	"github.com/vsariola/wavesynth/live/portmidi"
)

// OpenMIDIInput connects a MIDI input to in. With the rtmidi driver, name is
// a device name prefix; with portmidi it is a device id, empty for the
// default input.
func OpenMIDIInput(driver, name string, in *live.Input) (io.Closer, error) {
	switch driver {
	case "", "rtmidi":
		return gomidi.Open(name, in)
	case "portmidi":
		id := -1
		if name != "" {
			var err error
			if id, err = strconv.Atoi(name); err != nil {
				return nil, fmt.Errorf("portmidi device should be a number, got %q", name)
			}
		}
		return portmidi.Open(id, in)
	}
	return nil, fmt.Errorf("unknown MIDI driver %q", driver)
}

// MIDIInputs lists the input devices of a driver.
func MIDIInputs(driver string) ([]string, error) {
	switch driver {
	case "", "rtmidi":
		return gomidi.Inputs()
	case "portmidi":
		ins, err := portmidi.Inputs()
		if err != nil {
			return nil, err
		}
		var ret []string
		for id, name := range ins {
			ret = append(ret, fmt.Sprintf("%d %s", id, name))
		}
		return ret, nil
	}
	return nil, fmt.Errorf("unknown MIDI driver %q", driver)
}
