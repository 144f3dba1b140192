// Package poly implements spec.md §4.4: a fixed-size voice pool, three-tier
// steal-order allocation, per-voice ADSR x LFO x filter x harmonics.
// Grounded on audio_chip.go's envelope/gate/filter channel model, expanded
// from one waveform per channel to a bank of image-line-derived harmonics
// per voice.
package poly

import (
	"math"
	"sync/atomic"

	"github.com/sp3ctra/sp3ctra/internal/config"
	"github.com/sp3ctra/sp3ctra/internal/dsp"
	"github.com/sp3ctra/sp3ctra/internal/imaging"
)

const middleA = 440.0

// Engine is the polyphonic voice pool. One producer goroutine owns it
// (spec.md §5 poly_producer); MIDI events are enqueued by midi_rx and
// consumed here at block boundaries.
type Engine struct {
	sampleRate float64
	voices     []voice
	triggerSeq uint64

	maxOscillators        int
	maxHarmonicsPerVoice  int
	highFreqHarmonicLimit float64
	amplitudeGamma        float64
	minAudibleAmplitude   float64
	masterVolume          float64

	volAttackMs, volDecayMs, volSustain, volReleaseMs             float64
	filterAttackMs, filterDecayMs, filterSustain, filterReleaseMs float64

	lfoRateHz         float64
	lfoDepthSemitones float64
	lfoPhase          float64

	filterCutoffHz   float64
	filterEnvDepthHz float64

	sine *dsp.Table

	voiceStarved atomic.Uint64
}

// New constructs a fixed voice pool sized from cfg.Polyphonic.NumVoices.
// Fails construction on an invalid sample rate or bounds, per spec.md §4.4
// Failure.
func New(cfg config.RuntimeConfig, sampleRate int) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, errPoly("sample rate must be positive")
	}
	if cfg.Polyphonic.NumVoices <= 0 {
		return nil, errPoly("num_voices must be positive")
	}

	voices := make([]voice, cfg.Polyphonic.NumVoices)
	for i := range voices {
		voices[i] = *newVoice(float64(sampleRate), cfg.Polyphonic.MaxHarmonicsPerVoice)
	}

	e := &Engine{
		sampleRate:            float64(sampleRate),
		voices:                voices,
		maxOscillators:        cfg.Polyphonic.MaxOscillators,
		maxHarmonicsPerVoice:  cfg.Polyphonic.MaxHarmonicsPerVoice,
		highFreqHarmonicLimit: cfg.Polyphonic.HighFreqHarmonicLimit,
		amplitudeGamma:        cfg.Polyphonic.AmplitudeGamma,
		minAudibleAmplitude:   cfg.Polyphonic.MinAudibleAmplitude,
		masterVolume:          cfg.Polyphonic.MasterVolume,
		volAttackMs:           cfg.Polyphonic.VolAttackMs,
		volDecayMs:            cfg.Polyphonic.VolDecayMs,
		volSustain:            cfg.Polyphonic.VolSustain,
		volReleaseMs:          cfg.Polyphonic.VolReleaseMs,
		filterAttackMs:        cfg.Polyphonic.FilterAttackMs,
		filterDecayMs:         cfg.Polyphonic.FilterDecayMs,
		filterSustain:         cfg.Polyphonic.FilterSustain,
		filterReleaseMs:       cfg.Polyphonic.FilterReleaseMs,
		lfoRateHz:             cfg.Polyphonic.LFORateHz,
		lfoDepthSemitones:     cfg.Polyphonic.LFODepthSemitones,
		filterCutoffHz:        cfg.Polyphonic.FilterCutoffHz,
		filterEnvDepthHz:      cfg.Polyphonic.FilterEnvDepthHz,
		sine:                  dsp.NewTable(4096),
	}
	for i := range e.voices {
		e.voices[i].volEnv.setRates(e.volAttackMs, e.volDecayMs, e.volSustain, e.volReleaseMs)
		e.voices[i].filterEnv.setRates(e.filterAttackMs, e.filterDecayMs, e.filterSustain, e.filterReleaseMs)
	}
	return e, nil
}

// VoiceStarved returns the voice-steal-fallback counter (spec.md §7).
func (e *Engine) VoiceStarved() uint64 { return e.voiceStarved.Load() }

// ApplyParameters pushes updated ADSR/LFO/filter knobs from the parameter
// inbox snapshot and recomputes every voice's envelope stage lengths in
// place (see adsr.setRates). Stage and level are not reset, but a voice in
// mid-stage continues on the new ramp from its elapsed sample count rather
// than from its current level.
func (e *Engine) ApplyParameters(masterVolume, volAttackMs, volDecayMs, volSustain, volReleaseMs,
	filterAttackMs, filterDecayMs, filterSustain, filterReleaseMs,
	lfoRateHz, lfoDepthSemitones, filterCutoffHz, filterEnvDepthHz float64) {
	e.masterVolume = masterVolume
	e.volAttackMs, e.volDecayMs, e.volSustain, e.volReleaseMs = volAttackMs, volDecayMs, volSustain, volReleaseMs
	e.filterAttackMs, e.filterDecayMs, e.filterSustain, e.filterReleaseMs = filterAttackMs, filterDecayMs, filterSustain, filterReleaseMs
	e.lfoRateHz, e.lfoDepthSemitones = lfoRateHz, lfoDepthSemitones
	e.filterCutoffHz, e.filterEnvDepthHz = filterCutoffHz, filterEnvDepthHz
	for i := range e.voices {
		e.voices[i].volEnv.setRates(volAttackMs, volDecayMs, volSustain, volReleaseMs)
		e.voices[i].filterEnv.setRates(filterAttackMs, filterDecayMs, filterSustain, filterReleaseMs)
	}
}

// NoteOn implements spec.md §4.4's allocation order and harmonic
// derivation. Velocity 0 is treated exactly as NoteOff.
func (e *Engine) NoteOn(note, velocity int, line *imaging.PreprocessedLine) {
	if velocity == 0 {
		e.NoteOff(note)
		return
	}
	idx := e.allocate()
	v := &e.voices[idx]

	e.triggerSeq++
	v.active = true
	v.note = note
	v.velocity = velocity
	v.triggerSeq = e.triggerSeq
	v.fundamental = middleA * math.Pow(2, float64(note-69)/12)
	v.filterState = 0

	v.harmonics = v.harmonics[:0]
	v.phases = v.phases[:0]
	e.deriveHarmonics(v, line)

	v.volEnv.setRates(e.volAttackMs, e.volDecayMs, e.volSustain, e.volReleaseMs)
	v.filterEnv.setRates(e.filterAttackMs, e.filterDecayMs, e.filterSustain, e.filterReleaseMs)
	v.volEnv.trigger()
	v.filterEnv.trigger()
}

// NoteOff releases the most-recently-triggered active voice still sounding
// that pitch.
func (e *Engine) NoteOff(note int) {
	var best = -1
	var bestSeq uint64
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.note == note && !v.releasing() {
			if best == -1 || v.triggerSeq > bestSeq {
				best = i
				bestSeq = v.triggerSeq
			}
		}
	}
	if best >= 0 {
		e.voices[best].volEnv.release()
		e.voices[best].filterEnv.release()
	}
}

// allocate implements the exact three-tier steal order of spec.md §4.4.
func (e *Engine) allocate() int {
	for i := range e.voices {
		if !e.voices[i].active || e.voices[i].idle() {
			return i
		}
	}

	oldestIdx := -1
	var oldestSeq uint64
	for i := range e.voices {
		if e.voices[i].releasing() {
			continue
		}
		if oldestIdx == -1 || e.voices[i].triggerSeq < oldestSeq {
			oldestIdx = i
			oldestSeq = e.voices[i].triggerSeq
		}
	}
	if oldestIdx >= 0 {
		return oldestIdx
	}

	lowestIdx := -1
	var lowestLevel = math.Inf(1)
	for i := range e.voices {
		if e.voices[i].releasing() && e.voices[i].volEnv.level < lowestLevel {
			lowestIdx = i
			lowestLevel = e.voices[i].volEnv.level
		}
	}
	if lowestIdx >= 0 {
		return lowestIdx
	}

	e.voiceStarved.Add(1)
	return 0
}

// deriveHarmonics samples the current grayscale line and picks up to
// maxHarmonicsPerVoice bins above minAudibleAmplitude (spec.md §4.4
// "Harmonic derivation"). The engine-wide oscillator count is held to
// maxOscillators: a note-on arriving with most of the budget already
// spent gets fewer harmonics. Every voice keeps at least one harmonic, so
// once the budget is spent each further note-on still adds one.
func (e *Engine) deriveHarmonics(v *voice, line *imaging.PreprocessedLine) {
	budget := e.maxHarmonicsPerVoice
	if e.maxOscillators > 0 {
		used := 0
		for i := range e.voices {
			if e.voices[i].active && &e.voices[i] != v {
				used += len(e.voices[i].harmonics)
			}
		}
		if remaining := e.maxOscillators - used; remaining < budget {
			budget = remaining
		}
	}
	if budget < 1 {
		budget = 1
	}
	if line == nil || len(line.Grayscale) == 0 {
		v.harmonics = append(v.harmonics, harmonic{amplitude: 1.0, multiplier: 1.0})
		v.phases = append(v.phases, 0)
		return
	}
	n := len(line.Grayscale)
	step := n / e.maxHarmonicsPerVoice
	if step < 1 {
		step = 1
	}
	multiplier := 1.0
	for i := 0; i < n && len(v.harmonics) < budget; i += step {
		amp := float64(line.Grayscale[i])
		if amp < e.minAudibleAmplitude {
			multiplier++
			continue
		}
		shaped := math.Pow(amp, e.amplitudeGamma)
		freq := v.fundamental * multiplier
		if freq <= e.highFreqHarmonicLimit {
			v.harmonics = append(v.harmonics, harmonic{amplitude: shaped, multiplier: multiplier})
			v.phases = append(v.phases, 0)
		}
		multiplier++
	}
	if len(v.harmonics) == 0 {
		v.harmonics = append(v.harmonics, harmonic{amplitude: 1.0, multiplier: 1.0})
		v.phases = append(v.phases, 0)
	}
}

// Render produces F stereo frames (spec.md §4.4 Per-sample processing).
func (e *Engine) Render(outLeft, outRight []float32) {
	n := len(outLeft)
	dt := 1.0 / e.sampleRate
	lfoInc := e.lfoRateHz * dt

	for f := 0; f < n; f++ {
		e.lfoPhase += lfoInc
		if e.lfoPhase >= 1 {
			e.lfoPhase -= math.Floor(e.lfoPhase)
		}
		lfo := e.sine.At(e.lfoPhase)

		active := 0
		var mix float64

		for i := range e.voices {
			v := &e.voices[i]
			if !v.active {
				continue
			}
			volLevel := v.volEnv.step()
			filtLevel := v.filterEnv.step()

			if v.idle() {
				v.active = false
				continue
			}

			fMod := v.fundamental * math.Pow(2, float64(lfo)*e.lfoDepthSemitones/12)
			cutoff := e.filterCutoffHz + filtLevel*e.filterEnvDepthHz
			if cutoff < 20 {
				cutoff = 20
			}
			nyquist := e.sampleRate / 2
			if cutoff > nyquist {
				cutoff = nyquist
			}

			var voiceSample float64
			for h := range v.harmonics {
				freq := fMod * v.harmonics[h].multiplier
				inc := freq * dt
				v.phases[h] += inc
				if v.phases[h] >= 1 {
					v.phases[h] -= math.Floor(v.phases[h])
				}
				voiceSample += v.harmonics[h].amplitude * float64(e.sine.At(v.phases[h]))
			}

			rc := 1.0 / (2 * math.Pi * cutoff)
			alpha := dt / (rc + dt)
			v.filterState += alpha * (voiceSample - v.filterState)

			voiceOut := v.filterState * volLevel * float64(v.velocity) / 127.0
			mix += voiceOut
			active++
		}

		if active > 1 {
			mix /= math.Sqrt(float64(active))
		}
		mix *= e.masterVolume
		if mix > 1 {
			mix = 1
		} else if mix < -1 {
			mix = -1
		}
		outLeft[f] = float32(mix)
		outRight[f] = float32(mix)
	}
}

type polyError string

func (e polyError) Error() string { return string(e) }

func errPoly(msg string) error { return polyError(msg) }
