// Package synth is a polyphonic wavetable synthesizer rendering note and
// controller events against a wavesynth.Bank.
package synth

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/wavesynth"
)

type (
	// Synth owns the channels and the voice arena and mixes the active voices
	// into audio buffers.
	//
	// In caller-thread mode (Config.EngineThread false) every method applies
	// at once, so all calls, Render included, must come from one goroutine.
	// In engine-thread mode the event methods only queue commands, which
	// Render applies in order before synthesizing; they may then be called
	// from any goroutine while another one renders.
	Synth struct {
		cfg  wavesynth.Config
		bank *wavesynth.Bank
		log  *log.Logger

		channels []Channel

		voices []Voice
		active []VoiceID
		free   []VoiceID
		dead   []VoiceID

		queue chan command

		rate  float64
		clock float64 // rendered time in ms

		left, right [blockSize]float32
		out         [blockSize][2]float32
		pos         int // frames of out already handed out

		clearing      bool
		clearDestroy  bool
		clearDeadline float64
		clearMark     uint64 // last voice started before the clear

		nextVoice   uint64
		nextEvent   atomic.Uint64
		played      atomic.Int64
		reused      atomic.Int64
		activeCount atomic.Int32
		freeCount   atomic.Int32
	}

	// Option configures a Synth.
	Option func(*Synth)

	// Stats is a snapshot of the voice pool.
	Stats struct {
		ActiveVoices int
		FreeVoices   int
		Played       int64
		Reused       int64
		// ReusedPercent is the share of played voices that reused a free one.
		ReusedPercent float64
	}
)

// initialVoices is the arena capacity allocated up front so the render
// goroutine does not allocate for typical polyphony.
const initialVoices = 64

// WithLogger sets the logger warnings and verbose diagnostics go to.
func WithLogger(l *log.Logger) Option {
	return func(s *Synth) { s.log = l }
}

// New creates a synth playing bank with cfg.Channels channels. A bank built
// without calling Intern is interned here, before any voice is allocated.
func New(bank *wavesynth.Bank, cfg wavesynth.Config, opts ...Option) *Synth {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = wavesynth.DefaultConfig().QueueSize
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = wavesynth.DefaultConfig().SampleRate
	}
	if bank != nil && !bank.Interned() {
		bank.Intern()
	}
	s := &Synth{
		cfg:    cfg,
		bank:   bank,
		log:    log.Default(),
		voices: make([]Voice, 0, initialVoices),
		active: make([]VoiceID, 0, initialVoices),
		free:   make([]VoiceID, 0, initialVoices),
		queue:  make(chan command, cfg.QueueSize),
		rate:   float64(cfg.SampleRate),
		pos:    blockSize,
	}
	for _, o := range opts {
		o(s)
	}
	s.Init(cfg.Channels)
	return s
}

// Init resets the synth to n channels in their power-on state and stops and
// destroys every voice. It must not run concurrently with Render.
func (s *Synth) Init(n int) {
	if n <= 0 {
		n = 16
	}
	for i := range s.voices {
		s.voices[i].destroy()
	}
	s.voices = s.voices[:0]
	s.active = s.active[:0]
	s.free = s.free[:0]
	s.dead = s.dead[:0]
	s.clearing = false
	s.pos = blockSize
	s.channels = make([]Channel, n)
	for i := range s.channels {
		s.channels[i].init(s, i)
	}
	s.publishCounts()
}

// Config returns the settings the synth was created with.
func (s *Synth) Config() wavesynth.Config { return s.cfg }

// Bank returns the bank the synth plays.
func (s *Synth) Bank() *wavesynth.Bank { return s.bank }

// PlayEvent plays ev. A NoteOn is given a fresh event id, written back to ev,
// which StopEvent later uses to stop the voices it started.
func (s *Synth) PlayEvent(ev *wavesynth.NoteEvent) {
	if ev.Command == wavesynth.NoteOn {
		ev.ID = s.nextEvent.Add(1)
	}
	s.submit(command{kind: cmdEvent, ev: *ev})
}

// PlayEvents plays events in order.
func (s *Synth) PlayEvents(events []wavesynth.NoteEvent) {
	for i := range events {
		s.PlayEvent(&events[i])
	}
}

// StopEvent releases the voices started by a NoteOn given to PlayEvent.
func (s *Synth) StopEvent(ev wavesynth.NoteEvent) {
	if ev.ID == 0 {
		return
	}
	s.submit(command{kind: cmdStopGroup, ev: ev})
}

// Dispatch applies ev at once. It is the caller-thread entry point; in
// engine-thread mode only the render goroutine may call it.
func (s *Synth) Dispatch(ev wavesynth.NoteEvent) {
	c := s.channel(ev.Channel)
	if c == nil {
		s.warnf("%v: channel %d out of range", ev.Command, ev.Channel)
		return
	}
	switch ev.Command {
	case wavesynth.NoteOn:
		key := ev.Key + s.cfg.Transpose
		if key < 0 || key > 127 {
			s.warnf("channel %d: key %d out of range", ev.Channel, key)
			return
		}
		if ev.Value <= 0 {
			s.noteOff(c.num, key, false)
			return
		}
		s.noteOn(c, key, min(ev.Value, 127), ev.Duration, ev.ID)
	case wavesynth.NoteOff:
		s.noteOff(c.num, ev.Key+s.cfg.Transpose, false)
	case wavesynth.ControlChange:
		c.setControlChange(ev.Key, ev.Value)
	case wavesynth.ProgramChange:
		if c.num == wavesynth.DrumChannel && !s.cfg.EnablePresetDrum {
			return
		}
		c.setProgramChange(ev.Key)
	case wavesynth.PitchWheelChange:
		if s.cfg.ApplyRealTimeModulator {
			c.setPitchBend(ev.Value)
		}
	case wavesynth.ChannelPressure:
		c.setChannelPressure(ev.Value)
	case wavesynth.Tempo:
		// tempo is for sequence players
	default:
		s.warnf("unknown command %v", ev.Command)
	}
}

// AllNotesOff releases every playing voice on channel ch, or on all
// channels if ch is negative.
func (s *Synth) AllNotesOff(ch int) {
	s.submit(command{kind: cmdAllNotesOff, channel: ch})
}

// SoundOff stops every voice on channel ch at once, skipping the release.
// A negative ch stops all channels.
func (s *Synth) SoundOff(ch int) {
	s.submit(command{kind: cmdSoundOff, channel: ch})
}

// ClearAllSound releases every voice. Voices still sounding after
// Config.ReleaseTimeout ms of rendered time are stopped hard. With destroy,
// the free pool is emptied once everything is silent.
func (s *Synth) ClearAllSound(destroy bool) {
	v := 0
	if destroy {
		v = 1
	}
	s.submit(command{kind: cmdClearAllSound, value: v})
}

// WaitReleased blocks until no voice is active or ctx is done, in which
// case the remaining voices are stopped hard and the context error is
// returned. It is meant for engine-thread mode, where another goroutine keeps
// rendering; in caller-thread mode nothing renders while it waits, so
// sounding voices are stopped at once.
func (s *Synth) WaitReleased(ctx context.Context) error {
	if !s.cfg.EngineThread {
		if s.activeCount.Load() > 0 {
			s.hardStop()
		}
		return nil
	}
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for s.activeCount.Load() > 0 {
		select {
		case <-ctx.Done():
			s.submit(command{kind: cmdHardStop})
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// SetSampleRate changes the output rate. Voices re-derive their rate
// dependent state at their next block.
func (s *Synth) SetSampleRate(rate int) {
	if rate <= 0 {
		s.warnf("invalid sample rate %d", rate)
		return
	}
	s.submit(command{kind: cmdSampleRate, value: rate})
}

func (s *Synth) setRate(rate int) {
	s.rate = float64(rate)
	s.cfg.SampleRate = rate
}

// SampleRate returns the output rate in Hz.
func (s *Synth) SampleRate() int { return int(s.rate) }

// Time returns the rendered time in milliseconds.
func (s *Synth) Time() float64 { return s.clock }

// Render fills buf with the mix of every active voice, scaled by the master
// volume. The buffer is overwritten; with nothing playing it is silence. In
// engine-thread mode the queued commands are applied first.
func (s *Synth) Render(buf wavesynth.AudioBuffer) {
	s.drain()
	if len(s.channels) == 0 {
		buf.Clear()
		return
	}
	for n := 0; n < len(buf); {
		if s.pos >= blockSize {
			s.renderBlock()
			s.pos = 0
		}
		c := copy(buf[n:], s.out[s.pos:])
		n += c
		s.pos += c
	}
}

func (s *Synth) renderBlock() {
	clear(s.left[:])
	clear(s.right[:])
	for _, id := range s.active {
		s.voices[id].render(s.left[:], s.right[:])
	}
	vol := float32(min(max(s.cfg.Volume, 0), 1))
	vek32.MulNumber_Inplace(s.left[:], vol)
	vek32.MulNumber_Inplace(s.right[:], vol)
	for i := range s.out {
		s.out[i] = [2]float32{s.left[i], s.right[i]}
	}
	s.clock += blockSize * 1000 / s.rate
	s.recycle()
	s.watchdog()
	s.autoClean()
}

// watchdog finishes a ClearAllSound: once the voices it released are
// silent, or the release timeout has passed, survivors are stopped and the
// free pool is optionally destroyed. Notes started after the clear are left
// alone.
func (s *Synth) watchdog() {
	if !s.clearing {
		return
	}
	left := 0
	for _, id := range s.active {
		if s.voices[id].id <= s.clearMark {
			left++
		}
	}
	if left > 0 && s.clock < s.clearDeadline {
		return
	}
	if left > 0 {
		s.warnf("%d voices still sounding after %.0f ms, stopping them", left, s.cfg.ReleaseTimeout)
		for _, id := range s.active {
			if v := &s.voices[id]; v.id <= s.clearMark {
				v.off()
			}
		}
		s.recycle()
	}
	if s.clearDestroy {
		s.destroyFree()
	}
	s.clearing = false
}

func (s *Synth) clearAllSound(destroy bool) {
	s.allNotesOff(-1)
	s.clearing = true
	s.clearDestroy = destroy
	s.clearDeadline = s.clock + s.cfg.ReleaseTimeout
	s.clearMark = s.nextVoice
}

func (s *Synth) hardStop() {
	for _, id := range s.active {
		s.voices[id].off()
	}
	s.recycle()
}

func (s *Synth) channel(ch int) *Channel {
	if ch < 0 || ch >= len(s.channels) {
		return nil
	}
	return &s.channels[ch]
}

// noteOff releases the playing voices of (ch, key). Unless forced, voices
// held by the sustain pedal are only marked sustained.
func (s *Synth) noteOff(ch, key int, force bool) {
	for _, id := range s.active {
		v := &s.voices[id]
		if v.ch.num == ch && v.key == key && v.playing() {
			v.noteOff(force)
		}
	}
}

func (s *Synth) stopGroup(group uint64) {
	for _, id := range s.active {
		v := &s.voices[id]
		if v.group == group && v.playing() {
			v.noteOff(true)
		}
	}
}

func (s *Synth) allNotesOff(ch int) {
	for _, id := range s.active {
		v := &s.voices[id]
		if (ch < 0 || v.ch.num == ch) && v.playing() {
			v.noteOff(true)
		}
	}
}

func (s *Synth) soundOff(ch int) {
	for _, id := range s.active {
		v := &s.voices[id]
		if ch < 0 || v.ch.num == ch {
			v.off()
		}
	}
}

// damp releases the voices held by the sustain pedal.
func (s *Synth) damp(ch int) {
	for _, id := range s.active {
		v := &s.voices[id]
		if v.ch.num == ch && v.status == statusSustained {
			v.noteOff(true)
		}
	}
}

// modulate recomputes, on the playing voices of channel ch, the generators
// driven by a controller.
func (s *Synth) modulate(ch int, isCC bool, ctrl int) {
	if !s.cfg.ApplyRealTimeModulator {
		return
	}
	for _, id := range s.active {
		v := &s.voices[id]
		if v.ch.num == ch && v.status != statusOff {
			v.modulate(isCC, ctrl)
		}
	}
}

func (s *Synth) modulateAll(ch int) {
	if !s.cfg.ApplyRealTimeModulator {
		return
	}
	for _, id := range s.active {
		v := &s.voices[id]
		if v.ch.num == ch && v.status != statusOff {
			v.modulateAll()
		}
	}
}

// Channels returns the number of channels.
func (s *Synth) Channels() int { return len(s.channels) }

// Channel returns channel ch, or nil if out of range. Its controller state
// is only safe to read from the goroutine dispatching events.
func (s *Synth) Channel(ch int) *Channel { return s.channel(ch) }

func (s *Synth) ChannelEnabled(ch int) bool {
	c := s.channel(ch)
	return c != nil && c.Enabled()
}

// SetChannelEnabled enables or disables a channel. Disabling releases the
// voices playing on it.
func (s *Synth) SetChannelEnabled(ch int, enabled bool) {
	v := 0
	if enabled {
		v = 1
	}
	s.submit(command{kind: cmdChannelEnabled, channel: ch, value: v})
}

func (s *Synth) ChannelBank(ch int) int {
	if c := s.channel(ch); c != nil {
		return c.Bank()
	}
	return -1
}

// SetChannelBank selects a bank and rebinds the preset of the current
// program from it.
func (s *Synth) SetChannelBank(ch, bank int) {
	s.submit(command{kind: cmdChannelBank, channel: ch, value: bank})
}

func (s *Synth) ChannelPreset(ch int) *wavesynth.Preset {
	if c := s.channel(ch); c != nil {
		return c.Preset()
	}
	return nil
}

// SetChannelPreset binds program of the current bank, regardless of the
// drum channel policy.
func (s *Synth) SetChannelPreset(ch, program int) {
	s.submit(command{kind: cmdChannelPreset, channel: ch, value: program})
}

// ActiveVoices returns the ids of the active voices. Caller-thread mode only.
func (s *Synth) ActiveVoices() []VoiceID { return s.active }

// FreeVoices returns the ids of the free voices. Caller-thread mode only.
func (s *Synth) FreeVoices() []VoiceID { return s.free }

// Voice returns the voice with the given id. The pointer is valid until the
// next event or render. Caller-thread mode only.
func (s *Synth) Voice(id VoiceID) *Voice {
	if id < 0 || int(id) >= len(s.voices) {
		return nil
	}
	return &s.voices[id]
}

// Stats returns a snapshot of the voice pool. It may be called from any
// goroutine.
func (s *Synth) Stats() Stats {
	st := Stats{
		ActiveVoices: int(s.activeCount.Load()),
		FreeVoices:   int(s.freeCount.Load()),
		Played:       s.played.Load(),
		Reused:       s.reused.Load(),
	}
	if st.Played > 0 {
		st.ReusedPercent = float64(st.Reused) * 100 / float64(st.Played)
	}
	return st
}

// ResetStats zeroes the played and reused counters.
func (s *Synth) ResetStats() {
	s.played.Store(0)
	s.reused.Store(0)
}

func (s *Synth) warnf(format string, args ...any) {
	s.log.Printf("wavesynth: "+format, args...)
}
