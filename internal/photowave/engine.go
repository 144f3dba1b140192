// Package photowave implements spec.md §4.5: the current image line as a
// single-cycle wavetable, played back polyphonically under MIDI control.
// Grounded on audio_chip.go's oscillator/ADSR channel model (reused voice
// allocation and envelope shape) and music_interfaces.go's note/CC event
// types.
package photowave

import (
	"math"

	"github.com/sp3ctra/sp3ctra/internal/config"
	"github.com/sp3ctra/sp3ctra/internal/imaging"
)

// ScanMode selects how phase maps to a pixel position (spec.md §4.5
// Sampling).
type ScanMode int

const (
	ScanLeftToRight ScanMode = iota
	ScanRightToLeft
	ScanDual
)

// InterpMode selects the resampling filter.
type InterpMode int

const (
	InterpLinear InterpMode = iota
	InterpCatmullRom
)

const photowaveMaxFrequency = 8000.0
const middleA = 440.0

// Fixed envelope, vibrato and filter shaping for the voice family. The
// configuration surface for this engine is scan_mode / interp_mode /
// amplitude / continuous_mode / num_voices; the rest of the voice family
// is a single shared design.
const (
	volAttackMs  = 10.0
	volDecayMs   = 100.0
	volSustain   = 0.8
	volReleaseMs = 150.0

	filterAttackMs  = 15.0
	filterDecayMs   = 200.0
	filterSustain   = 0.5
	filterReleaseMs = 250.0

	lfoRateHz         = 5.0
	lfoDepthSemitones = 0.08

	filterCutoffHz   = 5000.0
	filterEnvDepthHz = 3000.0
)

type photoVoice struct {
	active     bool
	note       int
	velocity   int
	triggerSeq uint64
	phase      float64
	phaseInc   float64 // base increment, before vibrato and Dual doubling

	volStage   envStage
	volLevel   float64
	volSamples int

	filtStage   envStage
	filtLevel   float64
	filtSamples int
	filtState   float64
}

// Engine is the photowave voice pool (spec.md §4.5 Contract). All voices
// share one global vibrato LFO and one filter family; each voice carries
// its own volume and filter ADSRs and phase accumulator.
type Engine struct {
	sampleRate float64
	voices     []photoVoice
	triggerSeq uint64

	scanMode       ScanMode
	interpMode     InterpMode
	amplitude      float64
	continuousMode bool

	lfoPhase float64

	attackSamples, decaySamples, releaseSamples             int
	sustain                                                 float64
	filtAttackSamples, filtDecaySamples, filtReleaseSamples int
	filtSustain                                             float64
}

// New builds a fixed voice pool sized from cfg.Photowave.NumVoices.
func New(cfg config.RuntimeConfig, sampleRate int) (*Engine, error) {
	if cfg.Photowave.NumVoices <= 0 {
		return nil, errPhotowave("num_voices must be positive")
	}
	sr := float64(sampleRate)
	return &Engine{
		sampleRate:         sr,
		voices:             make([]photoVoice, cfg.Photowave.NumVoices),
		scanMode:           ScanMode(cfg.Photowave.ScanMode),
		interpMode:         InterpMode(cfg.Photowave.InterpMode),
		amplitude:          cfg.Photowave.Amplitude,
		continuousMode:     cfg.Photowave.ContinuousMode,
		attackSamples:      msToSamples(volAttackMs, sr),
		decaySamples:       msToSamples(volDecayMs, sr),
		sustain:            volSustain,
		releaseSamples:     msToSamples(volReleaseMs, sr),
		filtAttackSamples:  msToSamples(filterAttackMs, sr),
		filtDecaySamples:   msToSamples(filterDecayMs, sr),
		filtSustain:        filterSustain,
		filtReleaseSamples: msToSamples(filterReleaseMs, sr),
	}, nil
}

func msToSamples(ms, sampleRate float64) int {
	n := int(ms / 1000.0 * sampleRate)
	if n < 1 {
		n = 1
	}
	return n
}

// SetScanMode, SetAmplitude, SetInterpMode implement the CC1/CC7/CC74
// mappings (spec.md §4.5 MIDI behavior).
func (e *Engine) SetScanMode(m ScanMode)     { e.scanMode = m }
func (e *Engine) SetAmplitude(a float64)     { e.amplitude = a }
func (e *Engine) SetInterpMode(m InterpMode) { e.interpMode = m }

// ScanModeFromCC1 maps a 0-127 CC1 value to a scan mode by range thirds.
func ScanModeFromCC1(value int) ScanMode {
	switch {
	case value < 43:
		return ScanLeftToRight
	case value < 86:
		return ScanRightToLeft
	default:
		return ScanDual
	}
}

// InterpModeFromCC74 maps a 0-127 CC74 value to an interpolation mode.
func InterpModeFromCC74(value int) InterpMode {
	if value < 64 {
		return InterpLinear
	}
	return InterpCatmullRom
}

// FrequencyFromNote computes spec.md §4.5's MIDI-to-frequency formula,
// clamped to [sample_rate/N_PIXELS, PHOTOWAVE_MAX_FREQUENCY] (P6).
func FrequencyFromNote(note int, sampleRate float64, nPixels int) float64 {
	f := middleA * math.Pow(2, float64(note-69)/12)
	minFreq := sampleRate / float64(nPixels)
	if f < minFreq {
		f = minFreq
	}
	if f > photowaveMaxFrequency {
		f = photowaveMaxFrequency
	}
	return f
}

// NoteOn implements the same three-tier steal priority as the polyphonic
// engine (spec.md §4.5 "Note-On steals by the same three-tier priority as
// §4.4"). Velocity 0 is Note-Off.
func (e *Engine) NoteOn(note, velocity, nPixels int) {
	if velocity == 0 {
		e.NoteOff(note)
		return
	}
	idx := e.allocate()
	v := &e.voices[idx]
	e.triggerSeq++

	freq := FrequencyFromNote(note, e.sampleRate, nPixels)

	v.active = true
	v.note = note
	v.velocity = velocity
	v.triggerSeq = e.triggerSeq
	if !e.continuousMode {
		v.phase = 0
	}
	v.phaseInc = freq / e.sampleRate
	v.volStage = envAttack
	v.volSamples = 0
	v.filtStage = envAttack
	v.filtSamples = 0
	v.filtState = 0
}

func (e *Engine) NoteOff(note int) {
	var best = -1
	var bestSeq uint64
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.note == note && v.volStage != envRelease {
			if best == -1 || v.triggerSeq > bestSeq {
				best = i
				bestSeq = v.triggerSeq
			}
		}
	}
	if best >= 0 {
		e.voices[best].volStage = envRelease
		e.voices[best].volSamples = 0
		e.voices[best].filtStage = envRelease
		e.voices[best].filtSamples = 0
	}
}

func (e *Engine) allocate() int {
	for i := range e.voices {
		if !e.voices[i].active || e.voices[i].volStage == envIdle {
			return i
		}
	}
	oldestIdx := -1
	var oldestSeq uint64
	for i := range e.voices {
		if e.voices[i].volStage == envRelease {
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
	lowestLevel := math.Inf(1)
	for i := range e.voices {
		if e.voices[i].volStage == envRelease && e.voices[i].volLevel < lowestLevel {
			lowestIdx = i
			lowestLevel = e.voices[i].volLevel
		}
	}
	if lowestIdx >= 0 {
		return lowestIdx
	}
	return 0
}

type envStage int

const (
	envIdle envStage = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

// stepStage advances one ADSR-shaped envelope by a sample. Shared by the
// volume and filter envelopes, which differ only in their stage lengths
// and sustain level.
func stepStage(stage *envStage, level *float64, samples *int, attack, decay int, sustain float64, release int) float64 {
	switch *stage {
	case envAttack:
		*samples++
		*level = float64(*samples) / float64(attack)
		if *level >= 1 || *samples >= attack {
			*level = 1
			*stage = envDecay
			*samples = 0
		}
	case envDecay:
		*samples++
		*level = 1 - (1-sustain)*float64(*samples)/float64(decay)
		if *level <= sustain || *samples >= decay {
			*level = sustain
			*stage = envSustain
			*samples = 0
		}
	case envSustain:
		*level = sustain
	case envRelease:
		*samples++
		*level = sustain * (1 - float64(*samples)/float64(release))
		if *level <= 0 || *samples >= release {
			*level = 0
			*stage = envIdle
			*samples = 0
		}
	default:
		*level = 0
	}
	if *level < 0 {
		*level = 0
	}
	return *level
}

func (e *Engine) stepEnvelope(v *photoVoice) float64 {
	return stepStage(&v.volStage, &v.volLevel, &v.volSamples,
		e.attackSamples, e.decaySamples, e.sustain, e.releaseSamples)
}

func (e *Engine) stepFilterEnvelope(v *photoVoice) float64 {
	return stepStage(&v.filtStage, &v.filtLevel, &v.filtSamples,
		e.filtAttackSamples, e.filtDecaySamples, e.filtSustain, e.filtReleaseSamples)
}

// samplePosition maps phase to a pixel position per scan mode (spec.md
// §4.5 Sampling).
func (e *Engine) samplePosition(phase float64, n int) float64 {
	nf := float64(n - 1)
	switch e.scanMode {
	case ScanRightToLeft:
		return (1 - phase) * nf
	case ScanDual:
		if phase < 0.5 {
			return 2 * phase * nf
		}
		return (1 - phase) * 2 * nf
	default:
		return phase * nf
	}
}

// sampleLine reads the wavetable at a fractional pixel position with the
// configured interpolation and boundary clamping.
func (e *Engine) sampleLine(line *imaging.PreprocessedLine, pos float64) float64 {
	n := len(line.Grayscale)
	if n == 0 {
		return 0
	}
	clampIdx := func(i int) int {
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
	toSigned := func(g float32) float64 { return (float64(g)*255.0/127.5) - 1 }

	i0 := int(math.Floor(pos))
	frac := pos - float64(i0)

	if e.interpMode == InterpLinear {
		a := toSigned(line.Grayscale[clampIdx(i0)])
		b := toSigned(line.Grayscale[clampIdx(i0+1)])
		return a + frac*(b-a)
	}

	p0 := toSigned(line.Grayscale[clampIdx(i0-1)])
	p1 := toSigned(line.Grayscale[clampIdx(i0)])
	p2 := toSigned(line.Grayscale[clampIdx(i0+1)])
	p3 := toSigned(line.Grayscale[clampIdx(i0+2)])
	return catmullRom(p0, p1, p2, p3, frac)
}

func catmullRom(p0, p1, p2, p3, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}

// Render produces F stereo frames from the current line (spec.md §4.5
// Contract).
func (e *Engine) Render(line *imaging.PreprocessedLine, outLeft, outRight []float32) {
	n := len(outLeft)
	if line == nil || len(line.Grayscale) == 0 {
		for i := 0; i < n; i++ {
			outLeft[i], outRight[i] = 0, 0
		}
		return
	}
	nPixels := len(line.Grayscale)
	dt := 1.0 / e.sampleRate
	lfoInc := lfoRateHz * dt
	nyquist := e.sampleRate / 2

	for f := 0; f < n; f++ {
		e.lfoPhase += lfoInc
		if e.lfoPhase >= 1 {
			e.lfoPhase -= math.Floor(e.lfoPhase)
		}
		lfo := math.Sin(2 * math.Pi * e.lfoPhase)
		vibrato := math.Pow(2, lfo*lfoDepthSemitones/12)

		var mix float64
		for i := range e.voices {
			v := &e.voices[i]
			if !v.active {
				continue
			}
			level := e.stepEnvelope(v)
			filtLevel := e.stepFilterEnvelope(v)
			if v.volStage == envIdle {
				v.active = false
				continue
			}
			inc := v.phaseInc * vibrato
			if e.scanMode == ScanDual {
				inc *= 2
			}
			v.phase += inc
			if v.phase >= 1 {
				v.phase -= math.Floor(v.phase)
			}
			pos := e.samplePosition(v.phase, nPixels)
			sample := e.sampleLine(line, pos)

			cutoff := filterCutoffHz + filtLevel*filterEnvDepthHz
			if cutoff < 20 {
				cutoff = 20
			}
			if cutoff > nyquist {
				cutoff = nyquist
			}
			rc := 1.0 / (2 * math.Pi * cutoff)
			alpha := dt / (rc + dt)
			v.filtState += alpha * (sample - v.filtState)

			mix += v.filtState * level * float64(v.velocity) / 127.0 * e.amplitude
		}
		if mix > 1 {
			mix = 1
		} else if mix < -1 {
			mix = -1
		}
		outLeft[f] = float32(mix)
		outRight[f] = float32(mix)
	}
}

type photowaveError string

func (e photowaveError) Error() string { return string(e) }

func errPhotowave(msg string) error { return photowaveError(msg) }
