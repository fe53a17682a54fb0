package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/cmd"
	"github.com/vsariola/wavesynth/live"
	"github.com/vsariola/wavesynth/synth"
	"github.com/vsariola/wavesynth/version"
)

var bankPath = flag.String("bank", "", "Bank definition (.yml) to play with. By default, a built-in synthetic bank is used.")
var configPath = flag.String("config", "", "Engine settings (.yml or .json).")
var midiDriver = flag.String("driver", "rtmidi", "MIDI driver, rtmidi or portmidi.")
var midiInput = flag.String("midi-input", "", "MIDI input: a device name prefix for rtmidi, a device id for portmidi. By default, the first or default input.")
var backend = flag.String("audio", "oto", fmt.Sprintf("Audio output, one of %v.", cmd.AudioBackends))
var program = flag.Int("program", -1, "Program to select on every melodic channel at start.")
var listInputs = flag.Bool("list-inputs", false, "List the MIDI inputs and exit.")
var listPresets = flag.Bool("list", false, "List the presets of the bank and exit.")
var statsEvery = flag.Duration("stats", 0, "Log voice statistics at this interval, 0 to disable.")
var versionFlag = flag.Bool("v", false, "Print version.")

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *listInputs {
		ins, err := cmd.MIDIInputs(*midiDriver)
		if err != nil {
			log.Fatal(err)
		}
		for _, in := range ins {
			fmt.Println(in)
		}
		return
	}
	bank, err := cmd.LoadBank(*bankPath)
	if err != nil {
		if bank == nil {
			log.Fatalf("could not load bank: %v", err)
		}
		log.Printf("bank %v has problems, continuing: %v", *bankPath, err)
	}
	if *listPresets {
		if err := cmd.ListPresets(os.Stdout, bank); err != nil {
			log.Fatal(err)
		}
		return
	}
	cfg, err := cmd.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	// MIDI arrives on driver goroutines, audio is rendered on the device
	// goroutine
	cfg.EngineThread = true
	audioContext, err := cmd.NewAudioContext(*backend, cfg.SampleRate)
	if err != nil {
		log.Fatalf("could not acquire AudioContext: %v", err)
	}
	defer audioContext.Close()
	cfg.SampleRate = audioContext.SampleRate()
	s := synth.New(bank, cfg)
	if *program >= 0 {
		for ch := range s.Channels() {
			if ch != wavesynth.DrumChannel {
				s.SetChannelPreset(ch, *program)
			}
		}
	}
	input := live.New(s)
	midi, err := cmd.OpenMIDIInput(*midiDriver, *midiInput, input)
	if err != nil {
		log.Fatalf("could not open MIDI input: %v", err)
	}
	playing := audioContext.Play(wavesynth.RendererSource(s))
	log.Printf("playing %v from %v input %v, press Ctrl-C to quit", bank.Name, *midiDriver, midi)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	var ticks <-chan time.Time
	if *statsEvery > 0 {
		t := time.NewTicker(*statsEvery)
		defer t.Stop()
		ticks = t.C
	}
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticks:
			st := s.Stats()
			log.Printf("voices: %d active, %d free, %d played, %.0f%% reused, %d events, %d ignored",
				st.ActiveVoices, st.FreeVoices, st.Played, st.ReusedPercent, input.Played(), input.Ignored())
		}
	}
	if err := midi.Close(); err != nil {
		log.Printf("closing MIDI input: %v", err)
	}
	s.ClearAllSound(true)
	wait, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ReleaseTimeout)*time.Millisecond)
	defer cancel()
	if err := s.WaitReleased(wait); err != nil {
		log.Printf("voices did not release in time: %v", err)
	}
	playing.Close()
}
