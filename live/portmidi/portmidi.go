//go:build cgo

// Package portmidi connects a portmidi input stream to a live.Input.
package portmidi

import (
	"fmt"
	"time"

	"github.com/rakyll/portmidi"
	"github.com/vsariola/wavesynth/live"
)

// Stream is an open input stream.
type Stream struct {
	stream *portmidi.Stream
	done   chan struct{}
	exited chan error
}

const (
	bufferSize   = 1024
	pollInterval = time.Millisecond
)

// Inputs lists the input devices, indexed by their device id.
func Inputs() (map[int]string, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, fmt.Errorf("could not initialize portmidi: %w", err)
	}
	defer portmidi.Terminate()
	ret := map[int]string{}
	for i := range portmidi.CountDevices() {
		if info := portmidi.Info(portmidi.DeviceID(i)); info != nil && info.IsInputAvailable {
			ret[i] = info.Interface + ": " + info.Name
		}
	}
	return ret, nil
}

// Open opens the input device with the given id, or the default input when
// id is negative, and plays what it receives on input.
func Open(id int, input *live.Input) (*Stream, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, fmt.Errorf("could not initialize portmidi: %w", err)
	}
	dev := portmidi.DeviceID(id)
	if id < 0 {
		dev = portmidi.DefaultInputDeviceID()
	}
	in, err := portmidi.NewInputStream(dev, bufferSize)
	if err != nil {
		portmidi.Terminate()
		return nil, fmt.Errorf("could not open MIDI input %d: %w", dev, err)
	}
	s := &Stream{stream: in, done: make(chan struct{}), exited: make(chan error, 1)}
	go s.run(input)
	return s, nil
}

func (s *Stream) run(input *live.Input) {
	for {
		select {
		case <-s.done:
			s.exited <- nil
			return
		default:
		}
		ok, err := s.stream.Poll()
		if err != nil {
			s.exited <- fmt.Errorf("polling MIDI input failed: %w", err)
			return
		}
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		events, err := s.stream.Read(bufferSize)
		if err != nil {
			s.exited <- fmt.Errorf("reading MIDI input failed: %w", err)
			return
		}
		for _, e := range events {
			input.HandleShort(byte(e.Status), byte(e.Data1), byte(e.Data2))
		}
	}
}

// Close stops reading and closes the stream. It returns the error that
// stopped reading early, if any.
func (s *Stream) Close() error {
	close(s.done)
	err := <-s.exited
	if cerr := s.stream.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("could not close MIDI input: %w", cerr)
	}
	portmidi.Terminate()
	return err
}
