// Package additive implements spec.md §4.3: one oscillator per image-line
// note slot, slewed amplitude envelopes, intelligent volume-weighted
// summation. Grounded on the teacher's audio_chip.go channel-render loop
// and audio_lut.go's shared sine-table approach, generalized from a fixed
// register-mapped channel count to a runtime-sized oscillator bank.
package additive

import (
	"math"
	"sync/atomic"

	"github.com/sp3ctra/sp3ctra/internal/config"
	"github.com/sp3ctra/sp3ctra/internal/dsp"
	"github.com/sp3ctra/sp3ctra/internal/imaging"
)

const (
	semitonesPerOctave = 12
	gammaValue         = 2.2

	alphaMin     = 1e-5
	tauUpMaxMs   = 500.0
	tauDownMaxMs = 2000.0
	decayFreqMin = 0.1
	decayFreqMax = 10.0

	summationBaseLevel = 0.05
)

// oscillator is the per-note-slot state described in spec.md §3.
type oscillator struct {
	freq        float64
	areaSize    int
	phaseInc    float64 // normalized, 1/areaSize
	octaveCoeff float64 // 2^floor(i / (commasPerSemitone*semitonesPerOctave))
	table       *dsp.Table

	phase  float64 // normalized [0,1)
	amp    float32
	target float32
}

// Engine is the additive oscillator bank. One Engine instance owns its
// entire oscillator array; nothing outside the producer thread that calls
// Render ever writes into it (spec.md §4.3 Concurrency).
type Engine struct {
	sampleRate int
	nNotes     int
	oscs       []oscillator

	tauUpBaseMs    float64
	tauDownBaseMs  float64
	decayFreqRef   float64
	decayFreqBeta  float64
	instantAttack  bool

	nonLinearMapping bool
	volumeWeightExp  float64
	summationExp     float64
	noiseGate        float64
	softLimitThresh  float64
	softLimitKnee    float64
	logVolumeCurve   bool

	numericAnomalies atomic.Uint64
}

// New builds the frequency grid and sine tables once from cfg and the
// preprocessor's derived N_NOTES (spec.md §4.3 "Frequency grid
// (initialization only)"). Returns an error if the resulting grid would be
// non-monotonic or alias (P2), which Validate already guards against for
// the config bounds that feed it.
func New(cfg config.RuntimeConfig, nNotes int) (*Engine, error) {
	low := cfg.Synthesis.LowFrequency
	high := cfg.Synthesis.HighFrequency
	commasPerSemitone := float64(nNotes) / (math.Log2(high/low) * semitonesPerOctave)
	if commasPerSemitone <= 0 || math.IsInf(commasPerSemitone, 0) || math.IsNaN(commasPerSemitone) {
		return nil, errInvalidGrid("commas_per_semitone must be finite and positive")
	}

	cache := dsp.NewCache()
	oscs := make([]oscillator, nNotes)
	var prevFreq float64
	for i := 0; i < nNotes; i++ {
		freq := low * math.Pow(2, float64(i)/(commasPerSemitone*semitonesPerOctave))
		if i > 0 && freq <= prevFreq {
			return nil, errInvalidGrid("frequency grid is not strictly increasing")
		}
		prevFreq = freq

		octaveLog := math.Floor(float64(i) / (commasPerSemitone * semitonesPerOctave))
		octaveCoeff := math.Pow(2, octaveLog)

		// The table spans one cycle of the oscillator's octave-folded base
		// frequency; stepping the phase by octaveCoeff transposes it back
		// up to freq. Oscillators in the same octave row share tables.
		areaSize := int(math.Round(float64(cfg.Audio.SamplingFrequency) * octaveCoeff / freq))
		if areaSize < 2 {
			areaSize = 2
		}
		phaseInc := 1.0 / float64(areaSize)
		if phaseInc*octaveCoeff >= 0.5 {
			return nil, errInvalidGrid("phase increment aliases at construction time")
		}

		oscs[i] = oscillator{
			freq:        freq,
			areaSize:    areaSize,
			phaseInc:    phaseInc,
			octaveCoeff: octaveCoeff,
			table:       cache.Get(areaSize),
		}
	}

	return &Engine{
		sampleRate:       cfg.Audio.SamplingFrequency,
		nNotes:           nNotes,
		oscs:             oscs,
		tauUpBaseMs:      cfg.EnvelopeSlew.TauUpBaseMs,
		tauDownBaseMs:    cfg.EnvelopeSlew.TauDownBaseMs,
		decayFreqRef:     cfg.EnvelopeSlew.DecayFreqRefHz,
		decayFreqBeta:    cfg.EnvelopeSlew.DecayFreqBeta,
		instantAttack:    cfg.Synthesis.InstantAttack,
		nonLinearMapping: cfg.Synthesis.NonLinearMapping,
		volumeWeightExp:  cfg.SummationNormalization.VolumeWeightingExponent,
		summationExp:     cfg.SummationNormalization.SummationResponseExp,
		noiseGate:        cfg.SummationNormalization.NoiseGateThreshold,
		softLimitThresh:  cfg.SummationNormalization.SoftLimitThreshold,
		softLimitKnee:    cfg.SummationNormalization.SoftLimitKnee,
		logVolumeCurve:   cfg.SummationNormalization.LogVolumeCurve,
	}, nil
}

// NumericAnomalies returns the NaN/Inf counter (spec.md §7).
func (e *Engine) NumericAnomalies() uint64 { return e.numericAnomalies.Load() }

// pixelOf maps note slot i to the representative pixel driving it (the
// slot's first pixel — grayscale is already a per-pixel average of
// nothing coarser, so any pixel in the slot is representative within the
// preprocessor's own averaging).
func pixelOf(i, pixelsPerNote int) int { return i * pixelsPerNote }

// Render fills outLeft/outRight (each length F) from the current line
// snapshot. globalVolume is the inbox-bound master volume; it multiplies
// into every oscillator's target before the slew, so turning it down
// changes the slew dynamics, the intelligent weighting, and what falls
// under the noise gate (spec.md §4.3 "Per-frame target amplitude"). No
// allocation (spec.md §4.3 Contract, §4.6 P7): oscs, outLeft and outRight
// are all pre-existing storage.
func (e *Engine) Render(line *imaging.PreprocessedLine, pixelsPerNote int, contrast float64, globalVolume float64, outLeft, outRight []float32) {
	n := len(outLeft)
	dt := 1.0 / float64(e.sampleRate)

	for i := range e.oscs {
		osc := &e.oscs[i]
		osc.target = e.targetAmplitude(line, i, pixelsPerNote, contrast, globalVolume)
	}

	for f := 0; f < n; f++ {
		var weightSumL, weightSumR float64
		var sumL, sumR float64

		for i := range e.oscs {
			osc := &e.oscs[i]

			tauMs := e.tauUpBaseMs
			if tauMs > tauUpMaxMs {
				tauMs = tauUpMaxMs
			}
			if osc.target < osc.amp {
				tauMs = e.downTau(osc.freq)
			}
			if e.instantAttack && osc.target >= osc.amp {
				osc.amp = osc.target
			} else {
				alpha := 1 - math.Exp(-dt/(tauMs/1000.0))
				if alpha < alphaMin {
					alpha = alphaMin
				}
				osc.amp += float32(alpha) * (osc.target - osc.amp)
			}

			osc.phase += osc.phaseInc * osc.octaveCoeff
			if osc.phase >= 1 {
				osc.phase -= math.Floor(osc.phase)
			}
			sampleVal := osc.table.At(osc.phase)

			amp := osc.amp
			if amp != amp || math.IsInf(float64(amp), 0) {
				e.numericAnomalies.Add(1)
				amp = 0
				osc.amp = 0
			}

			var leftGain, rightGain float32 = 1, 1
			if line != nil && len(line.PanLeft) == len(e.oscs) {
				leftGain = line.PanLeft[i]
				rightGain = line.PanRight[i]
			}

			var weight float64
			if e.logVolumeCurve {
				weight = logVolumeWeight(float64(amp))
			} else {
				weight = math.Pow(math.Abs(float64(amp)), e.volumeWeightExp)
			}

			contribL := float64(amp*sampleVal) * float64(leftGain)
			contribR := float64(amp*sampleVal) * float64(rightGain)

			sumL += weight * contribL
			sumR += weight * contribR
			weightSumL += weight
			weightSumR += weight
		}

		outL := sumL / (weightSumL + summationBaseLevel)
		outR := sumR / (weightSumR + summationBaseLevel)

		outL = shapeResponse(outL, e.summationExp)
		outR = shapeResponse(outR, e.summationExp)

		outL = gateAndLimit(outL, e.noiseGate, e.softLimitThresh, e.softLimitKnee)
		outR = gateAndLimit(outR, e.noiseGate, e.softLimitThresh, e.softLimitKnee)

		if math.IsNaN(outL) || math.IsInf(outL, 0) {
			e.numericAnomalies.Add(1)
			outL = 0
		}
		if math.IsNaN(outR) || math.IsInf(outR, 0) {
			e.numericAnomalies.Add(1)
			outR = 0
		}

		outLeft[f] = float32(outL)
		outRight[f] = float32(outR)
	}
}

// targetAmplitude computes the per-block target for oscillator i (spec.md
// §4.3 "Per-frame target amplitude").
func (e *Engine) targetAmplitude(line *imaging.PreprocessedLine, i, pixelsPerNote int, contrast, globalVolume float64) float32 {
	if line == nil {
		return 0
	}
	pixel := pixelOf(i, pixelsPerNote)
	if pixel >= len(line.Grayscale) {
		return 0
	}
	raw := float64(line.Grayscale[pixel])
	if e.nonLinearMapping {
		raw = math.Pow(raw, gammaValue)
	}
	return float32(raw * globalVolume * contrast)
}

// downTau computes τ_down_eff (spec.md §4.3), frequency-weighted so highs
// and lows decay comparably.
func (e *Engine) downTau(freq float64) float64 {
	ratio := math.Pow(freq/e.decayFreqRef, e.decayFreqBeta)
	if ratio < decayFreqMin {
		ratio = decayFreqMin
	}
	if ratio > decayFreqMax {
		ratio = decayFreqMax
	}
	tau := e.tauDownBaseMs * ratio
	if tau > tauDownMaxMs {
		tau = tauDownMaxMs
	}
	return tau
}

// logVolumeWeight is the SID+-derived logarithmic weighting curve
// (SPEC_FULL.md Supplemented Features), an alternative to the power-law
// weight: the weight is the amplitude rounded down to a 2 dB step, so it
// follows the amplitude linearly in ~2 dB stairs.
func logVolumeWeight(amp float64) float64 {
	if amp <= 0 {
		return 0
	}
	db := 20 * math.Log10(amp)
	step := math.Floor(db/2) * 2
	return math.Pow(10, step/20)
}

func shapeResponse(x, exponent float64) float64 {
	if x == 0 {
		return 0
	}
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	return sign * math.Pow(math.Abs(x), exponent)
}

func gateAndLimit(x, gate, limitThresh, knee float64) float64 {
	if math.Abs(x) < gate {
		return 0
	}
	abs := math.Abs(x)
	if abs <= limitThresh {
		return x
	}
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	over := abs - limitThresh
	if knee <= 0 {
		if abs > 1 {
			return sign
		}
		return x
	}
	softened := limitThresh + knee*math.Tanh(over/knee)
	if softened > 1 {
		softened = 1
	}
	return sign * softened
}

type gridError string

func (e gridError) Error() string { return string(e) }

func errInvalidGrid(msg string) error { return gridError(msg) }
