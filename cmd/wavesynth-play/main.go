package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/vsariola/wavesynth"
	"github.com/vsariola/wavesynth/cmd"
	"github.com/vsariola/wavesynth/player"
	"github.com/vsariola/wavesynth/synth"
	"github.com/vsariola/wavesynth/version"
)

// writeSeeker buffers a file in memory so the wav encoder can seek back to
// fill in the header.
type writeSeeker struct {
	buf []byte
	pos int
}

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, files are written to the working directory.")
	play := flag.Bool("p", false, "Play the input files (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered audio as .raw file. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the rendered audio as 16-bit .wav file.")
	pcm := flag.Bool("c", false, "Convert .raw audio to 16-bit signed PCM.")
	bankPath := flag.String("bank", "", "Bank definition (.yml) to play with. By default, a built-in synthetic bank is used.")
	configPath := flag.String("config", "", "Engine settings (.yml or .json).")
	speed := flag.Float64("speed", 1, "Playback speed.")
	constTempo := flag.Bool("const-tempo", false, "Ignore tempo changes in the MIDI files.")
	keepNoteOff := flag.Bool("keep-noteoff", false, "Play note off events instead of note durations.")
	tail := flag.Float64("tail", 5000, "Longest time in ms rendered after the last event while notes release.")
	report := flag.Bool("report", false, "Print a report of each rendered file.")
	list := flag.Bool("list", false, "List the presets of the bank and exit.")
	backend := flag.String("audio", "oto", fmt.Sprintf("Audio output for playing, one of %v.", cmd.AudioBackends))
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	bank, err := cmd.LoadBank(*bankPath)
	if err != nil {
		if bank == nil {
			fmt.Fprintf(os.Stderr, "could not load bank: %v\n", err)
			os.Exit(1)
		}
		log.Printf("bank %v has problems, continuing: %v", *bankPath, err)
	}
	if *list {
		if err := cmd.ListPresets(os.Stdout, bank); err != nil {
			fmt.Fprintf(os.Stderr, "could not list presets: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	cfg, err := cmd.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	// rendering is offline, events are applied as they are played
	cfg.EngineThread = false
	if !*rawOut && !*wavOut {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	var audioContext cmd.AudioContext
	if *play {
		audioContext, err = cmd.NewAudioContext(*backend, cfg.SampleRate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire AudioContext: %v\n", err)
			os.Exit(1)
		}
		defer audioContext.Close()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			if *stdout {
				_, err := os.Stdout.Write(contents)
				return err
			}
			_, name := filepath.Split(filename)
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
				}
			}
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			return nil
		}
		s := synth.New(bank, cfg)
		p, err := player.Open(filename, s, player.Options{
			Speed:             *speed,
			EnableChangeTempo: !*constTempo,
			KeepNoteOff:       *keepNoteOff,
		})
		if err != nil {
			return err
		}
		buffer, err := player.Render(ctx, p, *tail)
		if err != nil {
			return fmt.Errorf("rendering stopped: %v", err)
		}
		if *report {
			var events []wavesynth.NoteEvent
			if src, ok := p.Source().(interface{ Events() []wavesynth.NoteEvent }); ok {
				events = src.Events()
			}
			r := player.NewReport(filepath.Base(filename), buffer, s, events, *speed)
			if err := r.Write(os.Stderr); err != nil {
				return err
			}
		}
		if *rawOut {
			raw, err := buffer.Raw(*pcm)
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %v", err)
			}
			if err := output(".raw", raw); err != nil {
				return fmt.Errorf("error outputting .raw file: %v", err)
			}
		}
		if *wavOut {
			var ws writeSeeker
			if err := buffer.Wav(&ws, cfg.SampleRate); err != nil {
				return fmt.Errorf("could not generate .wav file: %v", err)
			}
			if err := output(".wav", ws.buf); err != nil {
				return fmt.Errorf("error outputting .wav file: %v", err)
			}
		}
		if *play {
			playWaiter := audioContext.Play(buffer.Source())
			go func() {
				<-ctx.Done()
				playWaiter.Close()
			}()
			playWaiter.Wait()
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if ctx.Err() != nil {
			break
		}
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			var files []string
			for _, pattern := range []string{"*.mid", "*.midi"} {
				matches, err := filepath.Glob(filepath.Join(param, pattern))
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not glob the path %v for midi files: %v\n", param, err)
					retval = 1
				}
				files = append(files, matches...)
			}
			for _, file := range files {
				if err := process(file); err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
					retval = 1
				}
			}
		} else if err := process(param); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(w.pos) + offset
	case io.SeekEnd:
		pos = int64(len(w.buf)) + offset
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position %d", pos)
	}
	w.pos = int(pos)
	return pos, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "wavesynth command line utility for rendering and playing MIDI files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
