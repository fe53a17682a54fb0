//go:build cgo

// Package gomidi connects MIDI input devices to a live.Input through the
// rtmidi driver of gomidi.
package gomidi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vsariola/wavesynth/live"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Device is an open input device.
type Device struct {
	driver *rtmididrv.Driver
	in     drivers.In
	stop   func()
}

var errNoDevice = errors.New("no MIDI input found")

// Inputs lists the names of the available input devices.
func Inputs() ([]string, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("could not open rtmidi driver: %w", err)
	}
	defer driver.Close()
	ins, err := driver.Ins()
	if err != nil {
		return nil, fmt.Errorf("could not list MIDI inputs: %w", err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// Open opens the first input whose name starts with prefix, or the first
// input at all when prefix is empty, and plays what it receives on input.
func Open(prefix string, input *live.Input) (*Device, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("could not open rtmidi driver: %w", err)
	}
	ins, err := driver.Ins()
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("could not list MIDI inputs: %w", err)
	}
	for _, in := range ins {
		if !strings.HasPrefix(in.String(), prefix) {
			continue
		}
		if err := in.Open(); err != nil {
			driver.Close()
			return nil, fmt.Errorf("opening MIDI input %v failed: %w", in, err)
		}
		stop, err := midi.ListenTo(in, input.HandleMessage)
		if err != nil {
			in.Close()
			driver.Close()
			return nil, fmt.Errorf("could not listen to MIDI input %v: %w", in, err)
		}
		return &Device{driver: driver, in: in, stop: stop}, nil
	}
	driver.Close()
	if prefix == "" {
		return nil, errNoDevice
	}
	return nil, fmt.Errorf("%w starting with %q", errNoDevice, prefix)
}

func (d *Device) String() string { return d.in.String() }

// Close stops listening and closes the device and the driver.
func (d *Device) Close() error {
	d.stop()
	if d.in.IsOpen() {
		d.in.Close()
	}
	return d.driver.Close()
}
