// Package core assembles the LineBus, parameter inbox, three synthesis
// engines, mixer and audio sink into the owned SynthesisCore value spec.md
// §9 calls for ("Global mutable state in the source -> per-instance
// context"), and supervises the non-RT producer goroutines with
// errgroup.Group the way the source's ad-hoc global `running` flag never
// could (spec.md §5 Cancellation).
package core

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/sp3ctra/sp3ctra/internal/additive"
	"github.com/sp3ctra/sp3ctra/internal/audiosink"
	"github.com/sp3ctra/sp3ctra/internal/bus"
	"github.com/sp3ctra/sp3ctra/internal/config"
	"github.com/sp3ctra/sp3ctra/internal/imaging"
	"github.com/sp3ctra/sp3ctra/internal/midi"
	"github.com/sp3ctra/sp3ctra/internal/mixer"
	"github.com/sp3ctra/sp3ctra/internal/photowave"
	"github.com/sp3ctra/sp3ctra/internal/poly"
	"github.com/sp3ctra/sp3ctra/internal/status"
)

// SynthesisCore owns every component spec.md §2 names, constructed once at
// start-up (spec.md §9 DESIGN NOTES).
//
// Thread roles (spec.md §5): each engine's state is touched by exactly one
// producer goroutine. MIDI note events fan out at enqueue time into one
// bounded FIFO per consuming engine, so each producer drains its own queue
// at its own block boundary and no engine is ever written from another
// engine's goroutine. CC values become inbox parameters on the midi_rx
// thread, which shares the single inbox-writer role with PushParameter.
type SynthesisCore struct {
	cfg config.RuntimeConfig

	Inbox     *config.Inbox
	LineBus   *bus.LineBus[imaging.PreprocessedLine]
	Preproc   *imaging.Preprocessor
	Additive  *additive.Engine
	Poly      *poly.Engine
	Photowave *photowave.Engine
	Mixer     *mixer.Mixer
	Status    *status.Store

	// PolyMIDI and PhotowaveMIDI are the per-engine note queues; midi_rx is
	// the only writer of both, each engine's producer the only reader of its
	// own.
	PolyMIDI      *midi.Queue
	PhotowaveMIDI *midi.Queue

	// VolumeRing is the RT-safe debug capture ring behind
	// capture_volume_sample_fast (spec.md §9 Debug image capture).
	VolumeRing *status.VolumeSampleRing

	sink   audiosink.Sink
	logger *log.Logger

	bufferFrames int
	sampleRate   int
}

// New validates cfg and constructs every component. A ConfigInvalid error
// (spec.md §7) aborts construction with every violation reported at once.
func New(cfg config.RuntimeConfig, logger *log.Logger) (*SynthesisCore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	preproc, err := imaging.New(cfg)
	if err != nil {
		return nil, err
	}

	additiveEngine, err := additive.New(cfg, preproc.NNotes())
	if err != nil {
		return nil, err
	}
	polyEngine, err := poly.New(cfg, cfg.Audio.SamplingFrequency)
	if err != nil {
		return nil, err
	}
	photowaveEngine, err := photowave.New(cfg, cfg.Audio.SamplingFrequency)
	if err != nil {
		return nil, err
	}

	st := status.New()
	mx := mixer.New(cfg.Audio.BufferSize, cfg.Audio.SamplingFrequency, st)

	return &SynthesisCore{
		cfg:           cfg,
		Inbox:         config.NewInbox(cfg),
		LineBus:       bus.NewLineBus[imaging.PreprocessedLine](),
		Preproc:       preproc,
		Additive:      additiveEngine,
		Poly:          polyEngine,
		Photowave:     photowaveEngine,
		Mixer:         mx,
		Status:        st,
		PolyMIDI:      midi.NewQueue(256),
		PhotowaveMIDI: midi.NewQueue(256),
		VolumeRing:    status.NewVolumeSampleRing(),
		logger:        logger,
		bufferFrames:  cfg.Audio.BufferSize,
		sampleRate:    cfg.Audio.SamplingFrequency,
	}, nil
}

// PublishImageLine implements spec.md §6's publish_image_line: called by
// the network layer whenever a complete line has been reassembled.
func (c *SynthesisCore) PublishImageLine(line *imaging.ImageLine) {
	pre, ok := c.Preproc.Preprocess(line)
	if !ok {
		c.Status.IncFrameDropped()
		return
	}
	c.LineBus.Publish(pre)
}

// EnqueueMIDIEvent implements spec.md §6's enqueue_midi_event. Called on
// the midi_rx thread. Note events fan out to both MIDI-driven engines'
// queues; CC values are translated into parameter-inbox pushes so they
// reach the photowave producer at its block boundary like every other
// MIDI-bound scalar (spec.md §4.7).
func (c *SynthesisCore) EnqueueMIDIEvent(kind midi.Kind, channel, data1, data2 int) {
	switch kind {
	case midi.KindNoteOn, midi.KindNoteOff:
		c.PolyMIDI.Enqueue(kind, channel, data1, data2)
		c.PhotowaveMIDI.Enqueue(kind, channel, data1, data2)
	case midi.KindControlChange:
		c.applyCC(data1, data2)
	}
}

// PushParameter implements spec.md §6's push_parameter(id, value). Shares
// the inbox writer role with the CC dispatch above; both run on the
// control-plane thread.
func (c *SynthesisCore) PushParameter(id config.ParameterID, value float64) {
	c.Inbox.Push(id, value)
}

// DMXZoneMeans implements spec.md §6's dmx_zone_means(): a snapshot reader
// for the optional DMX stage.
func (c *SynthesisCore) DMXZoneMeans() []imaging.ZoneMean {
	_, line := c.LineBus.Snapshot()
	if line == nil {
		return nil
	}
	return line.ZoneMeans
}

// applyCC translates the photowave CC map (spec.md §4.5 MIDI behavior)
// into inbox parameters.
func (c *SynthesisCore) applyCC(controller, value int) {
	switch controller {
	case 1:
		c.Inbox.Push(config.ParamPhotowaveScanMode, float64(photowave.ScanModeFromCC1(value)))
	case 7:
		c.Inbox.Push(config.ParamPhotowaveAmplitude, float64(value)/127.0)
	case 74:
		c.Inbox.Push(config.ParamPhotowaveInterpMode, float64(photowave.InterpModeFromCC74(value)))
	}
}

// drainPolyMIDI applies queued note events to the polyphonic engine.
// Called only from the poly producer goroutine, at the block start
// (spec.md §5: "processing within an audio block is deferred to the block
// start").
func (c *SynthesisCore) drainPolyMIDI() {
	events := c.PolyMIDI.Drain()
	if len(events) == 0 {
		return
	}
	_, line := c.LineBus.Snapshot()
	for _, ev := range events {
		switch ev.Kind {
		case midi.KindNoteOn:
			c.Poly.NoteOn(ev.Data1, ev.Data2, line)
		case midi.KindNoteOff:
			c.Poly.NoteOff(ev.Data1)
		}
	}
}

// drainPhotowaveMIDI applies queued note events to the photowave engine.
// Called only from the photowave producer goroutine.
func (c *SynthesisCore) drainPhotowaveMIDI() {
	for _, ev := range c.PhotowaveMIDI.Drain() {
		switch ev.Kind {
		case midi.KindNoteOn:
			c.Photowave.NoteOn(ev.Data1, ev.Data2, c.Preproc.NPixels())
		case midi.KindNoteOff:
			c.Photowave.NoteOff(ev.Data1)
		}
	}
}

// applyPolyParameters pushes the poly-bound slice of an inbox snapshot into
// the engine. Called only from the poly producer goroutine.
func (c *SynthesisCore) applyPolyParameters(snap config.ParameterSnapshot) {
	c.Poly.ApplyParameters(
		snap.Values[config.ParamPolyMasterVolume],
		snap.Values[config.ParamPolyVolAttackMs],
		snap.Values[config.ParamPolyVolDecayMs],
		snap.Values[config.ParamPolyVolSustain],
		snap.Values[config.ParamPolyVolReleaseMs],
		snap.Values[config.ParamPolyFilterAttackMs],
		snap.Values[config.ParamPolyFilterDecayMs],
		snap.Values[config.ParamPolyFilterSustain],
		snap.Values[config.ParamPolyFilterReleaseMs],
		snap.Values[config.ParamPolyLFORateHz],
		snap.Values[config.ParamPolyLFODepthSemitones],
		snap.Values[config.ParamPolyFilterCutoffHz],
		snap.Values[config.ParamPolyFilterEnvDepthHz],
	)
}

// applyPhotowaveParameters pushes the photowave-bound inbox scalars into
// the engine. Called only from the photowave producer goroutine.
func (c *SynthesisCore) applyPhotowaveParameters(snap config.ParameterSnapshot) {
	c.Photowave.SetAmplitude(snap.Values[config.ParamPhotowaveAmplitude])
	c.Photowave.SetScanMode(photowave.ScanMode(snap.Values[config.ParamPhotowaveScanMode]))
	c.Photowave.SetInterpMode(photowave.InterpMode(snap.Values[config.ParamPhotowaveInterpMode]))
}

// Render is the audio callback: render(out_left[], out_right[], n_frames)
// from spec.md §6. Never allocates, never blocks (spec.md §4.6 Contract):
// the inbox snapshot is a lock-free copy, the mixer works entirely out of
// preallocated buffers, and the capture ring writes with atomic indices.
func (c *SynthesisCore) Render(outLeft, outRight []float32) {
	snap := c.Inbox.Snapshot()
	c.Mixer.SetSends(
		snap.Values[config.ParamAdditiveSend],
		snap.Values[config.ParamPolyphonicSend],
		snap.Values[config.ParamPhotowaveSend],
		snap.Values[config.ParamReverbSend],
		snap.Values[config.ParamReverbMix],
	)
	c.Mixer.Mix(outLeft, outRight)
	for f := range outLeft {
		c.VolumeRing.CaptureVolumeSampleFast(outLeft[f])
	}
}

// StatusSnapshot merges the store's counters with the per-engine counters
// kept inside the engines themselves (spec.md §7: "All recoverable
// conditions are observable via monotonically increasing counters exposed
// through a status snapshot reader").
func (c *SynthesisCore) StatusSnapshot() status.Snapshot {
	snap := c.Status.Read()
	snap.VoiceStarved += c.Poly.VoiceStarved()
	snap.NumericAnomaly += c.Additive.NumericAnomalies()
	return snap
}

// runProducer advances one engine's scratch buffer once per tick, paced to
// the audio buffer duration rather than a literal busy spin (spec.md §5
// calls for additive_producer/poly_producer/photowave_producer to never
// block; a ticker achieves that without pegging a whole OS thread, which a
// true spin loop would do under the Go scheduler). prepare runs at the
// block start, before the scratch write.
func (c *SynthesisCore) runProducer(ctx context.Context, slot *mixer.EngineSlot, prepare func(), fn func(left, right []float32)) {
	period := time.Duration(float64(c.bufferFrames) / float64(c.sampleRate) * float64(time.Second))
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prepare()
			left, right := slot.BeginWrite()
			fn(left, right)
			slot.CommitWrite()
		}
	}
}

// Run launches the three producer goroutines and blocks until ctx is
// cancelled or one producer returns an error (spec.md §5 Cancellation: "a
// single running flag ... terminates all loops at their next iteration
// boundary").
func (c *SynthesisCore) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.runProducer(ctx, c.Mixer.Slot(mixer.EngineAdditive),
			func() {},
			func(left, right []float32) {
				// Global volume feeds the per-oscillator targets, not the
				// finished mix (spec.md §4.3), so it is read here and passed
				// through Render rather than applied to the output.
				snap := c.Inbox.Snapshot()
				volume := snap.Values[config.ParamAdditiveMasterVolume]
				_, line := c.LineBus.Snapshot()
				contrast := 1.0
				if line != nil {
					contrast = float64(line.Contrast)
				}
				c.Additive.Render(line, c.cfg.Synthesis.PixelsPerNote, contrast, volume, left, right)
			})
		return nil
	})
	g.Go(func() error {
		c.runProducer(ctx, c.Mixer.Slot(mixer.EnginePolyphonic),
			func() {
				c.applyPolyParameters(c.Inbox.Snapshot())
				c.drainPolyMIDI()
			},
			func(left, right []float32) {
				c.Poly.Render(left, right)
			})
		return nil
	})
	g.Go(func() error {
		c.runProducer(ctx, c.Mixer.Slot(mixer.EnginePhotowave),
			func() {
				c.applyPhotowaveParameters(c.Inbox.Snapshot())
				c.drainPhotowaveMIDI()
			},
			func(left, right []float32) {
				_, line := c.LineBus.Snapshot()
				c.Photowave.Render(line, left, right)
			})
		return nil
	})

	if c.logger != nil {
		c.logger.Info("synthesis core running", "sample_rate", c.sampleRate, "buffer_frames", c.bufferFrames)
	}

	return g.Wait()
}

// AttachSink wires a constructed audio backend as this core's render
// consumer. Not required for tests that drive Render directly.
func (c *SynthesisCore) AttachSink(sink audiosink.Sink) { c.sink = sink }

// Shutdown implements spec.md §6's graceful-shutdown hook: drains
// producers (via ctx cancellation in Run), flushes the audio sink, and
// releases scratch buffers (the scratch buffers themselves are GC-managed
// and released when SynthesisCore is dropped).
func (c *SynthesisCore) Shutdown() error {
	if c.sink != nil {
		if err := c.sink.Stop(); err != nil {
			return err
		}
		return c.sink.Close()
	}
	return nil
}
