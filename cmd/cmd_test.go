package cmd_test

import (
	"strings"
	"testing"

	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/cmd"
)

func TestListPresets(t *testing.T) {
	b := &wavesynth.Bank{Presets: []wavesynth.Preset{
		{Name: "strings", Bank: 0, Program: 48},
		{Name: "standard kit", Bank: 128, Program: 0},
		{Name: "Acoustic piano", Bank: 0, Program: 0},
		{Name: "bass", Bank: 0, Program: 33},
	}}
	var out strings.Builder
	if err := cmd.ListPresets(&out, b); err != nil {
		t.Fatal(err)
	}
	want := "  0:0   Acoustic Piano\n  0:33  Bass\n  0:48  Strings\n128:0   Standard Kit\n"
	if out.String() != want {
		t.Errorf("got\n%s\nwant\n%s", out.String(), want)
	}
}

func TestLoadDefaults(t *testing.T) {
	b, err := cmd.LoadBank("")
	if err != nil || b == nil || len(b.Presets) == 0 {
		t.Fatalf("synthetic bank: %v", err)
	}
	cfg, err := cmd.LoadConfig("")
	if err != nil || cfg != wavesynth.DefaultConfig() {
		t.Fatalf("default config: %+v, %v", cfg, err)
	}
}

func TestUnknownAudioBackend(t *testing.T) {
	if _, err := cmd.NewAudioContext("alsa", 44100); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
