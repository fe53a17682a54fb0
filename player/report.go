package player

import (
	"embed"
	"fmt"
	"io"
	"math"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/synth"
)

type (
	// Report summarizes an offline render.
	Report struct {
		Title      string
		SampleRate int
		Frames     int
		Speed      float64
		Events     int
		Peak       float64
		Stats      synth.Stats
		Channels   []ChannelReport
	}

	// ChannelReport lists what played on one channel.
	ChannelReport struct {
		Num    int
		Preset string
		Notes  int
	}
)

//go:embed templates/*
var templateFS embed.FS

var reportTemplate = template.Must(template.New("base").Funcs(sprig.TxtFuncMap()).ParseFS(templateFS, "templates/*.txt"))

// NewReport builds a report of buffer rendered by s from the events.
func NewReport(title string, buffer wavesynth.AudioBuffer, s *synth.Synth, events []wavesynth.NoteEvent, speed float64) Report {
	r := Report{
		Title:      title,
		SampleRate: s.SampleRate(),
		Frames:     len(buffer),
		Speed:      speed,
		Stats:      s.Stats(),
	}
	var peak float32
	for _, f := range buffer {
		peak = max(peak, float32(math.Abs(float64(f[0]))), float32(math.Abs(float64(f[1]))))
	}
	r.Peak = float64(peak)
	notes := make([]int, s.Channels())
	for _, e := range events {
		if e.Command == wavesynth.Tempo {
			continue
		}
		r.Events++
		if e.Command == wavesynth.NoteOn && e.Channel >= 0 && e.Channel < len(notes) {
			notes[e.Channel]++
		}
	}
	for ch, n := range notes {
		if n == 0 {
			continue
		}
		c := ChannelReport{Num: ch, Notes: n}
		if p := s.ChannelPreset(ch); p != nil {
			c.Preset = p.Name
		}
		r.Channels = append(r.Channels, c)
	}
	return r
}

// Write formats the report as text.
func (r Report) Write(w io.Writer) error {
	if err := reportTemplate.ExecuteTemplate(w, "report", r); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	return nil
}

// Seconds is the rendered length in seconds.
func (r Report) Seconds() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(r.Frames) / float64(r.SampleRate)
}
