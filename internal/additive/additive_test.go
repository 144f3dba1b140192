package additive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sp3ctra/sp3ctra/internal/config"
	"github.com/sp3ctra/sp3ctra/internal/imaging"
)

func TestNew_FrequencyGridIsMonotonicAndNonAliasing(t *testing.T) {
	t.Log("P2: each oscillator's frequency grid entry is strictly increasing and never aliases")
	cfg := config.Default()
	n, err := cfg.NPixels()
	require.NoError(t, err)
	nNotes := n / cfg.Synthesis.PixelsPerNote

	e, err := New(cfg, nNotes)
	require.NoError(t, err)
	require.Len(t, e.oscs, nNotes)

	for i := 1; i < len(e.oscs); i++ {
		require.Greater(t, e.oscs[i].freq, e.oscs[i-1].freq)
		require.Less(t, e.oscs[i].phaseInc, 0.5)
	}
}

func TestNew_RejectsDegenerateFrequencyRange(t *testing.T) {
	cfg := config.Default()
	cfg.Synthesis.LowFrequency = 440
	cfg.Synthesis.HighFrequency = 440

	n, err := cfg.NPixels()
	require.NoError(t, err)
	_, err = New(cfg, n/cfg.Synthesis.PixelsPerNote)
	require.Error(t, err)
}

func TestRender_SilentLineProducesSilence(t *testing.T) {
	cfg := config.Default()
	n, err := cfg.NPixels()
	require.NoError(t, err)
	nNotes := n / cfg.Synthesis.PixelsPerNote

	e, err := New(cfg, nNotes)
	require.NoError(t, err)

	outL := make([]float32, 64)
	outR := make([]float32, 64)
	// A nil line drives every oscillator's target amplitude to zero; after
	// a few render blocks the slewed amplitude should settle near silence.
	for i := 0; i < 50; i++ {
		e.Render(nil, cfg.Synthesis.PixelsPerNote, 1.0, 1.0, outL, outR)
	}
	for _, v := range outL {
		require.InDelta(t, 0, v, 1e-3)
	}
}

func TestRender_NeverProducesNaNOrInf(t *testing.T) {
	cfg := config.Default()
	n, err := cfg.NPixels()
	require.NoError(t, err)
	nNotes := n / cfg.Synthesis.PixelsPerNote

	e, err := New(cfg, nNotes)
	require.NoError(t, err)

	outL := make([]float32, 128)
	outR := make([]float32, 128)
	e.Render(nil, cfg.Synthesis.PixelsPerNote, 1.0, 1.0, outL, outR)

	for i := range outL {
		require.False(t, math.IsNaN(float64(outL[i])))
		require.False(t, math.IsInf(float64(outL[i]), 0))
		require.False(t, math.IsNaN(float64(outR[i])))
		require.False(t, math.IsInf(float64(outR[i]), 0))
	}
	require.Equal(t, uint64(0), e.NumericAnomalies())
}

func TestDownTau_ClampsToConfiguredBounds(t *testing.T) {
	cfg := config.Default()
	n, err := cfg.NPixels()
	require.NoError(t, err)
	e, err := New(cfg, n/cfg.Synthesis.PixelsPerNote)
	require.NoError(t, err)

	tau := e.downTau(e.decayFreqRef * 1e6)
	require.LessOrEqual(t, tau, tauDownMaxMs)

	tau = e.downTau(e.decayFreqRef / 1e6)
	require.Greater(t, tau, 0.0)
}

func TestShapeResponse_PreservesSign(t *testing.T) {
	require.Greater(t, shapeResponse(0.5, 2.0), 0.0)
	require.Less(t, shapeResponse(-0.5, 2.0), 0.0)
	require.Equal(t, 0.0, shapeResponse(0, 2.0))
}

func TestGateAndLimit_GatesBelowThreshold(t *testing.T) {
	require.Equal(t, 0.0, gateAndLimit(0.001, 0.01, 0.9, 0.1))
}

func TestGateAndLimit_SoftensAboveThreshold(t *testing.T) {
	out := gateAndLimit(1.5, 0.01, 0.9, 0.1)
	require.LessOrEqual(t, out, 1.0)
	require.Greater(t, out, 0.9)
}

func TestNew_TableSteppingReproducesGridFrequency(t *testing.T) {
	t.Log("the octave coefficient stepped through the shared table must land on the grid frequency, not an octave multiple")
	cfg := config.Default()
	n, err := cfg.NPixels()
	require.NoError(t, err)

	e, err := New(cfg, n/cfg.Synthesis.PixelsPerNote)
	require.NoError(t, err)

	sr := float64(cfg.Audio.SamplingFrequency)
	for i := range e.oscs {
		osc := &e.oscs[i]
		effective := sr * osc.octaveCoeff / float64(osc.areaSize)
		// Table lengths are integer, so the playable grid is quantized;
		// the error of round(sr*coeff/freq) stays within half a table step.
		require.InEpsilon(t, osc.freq, effective, 0.01, "oscillator %d", i)
		require.Less(t, osc.phaseInc*osc.octaveCoeff, 0.5, "oscillator %d advances past Nyquist", i)
	}
}

func TestRender_AmplitudeSlewsMonotonicallyTowardTarget(t *testing.T) {
	t.Log("P3: with a constant bright line, per-oscillator amplitude approaches its target without overshoot")
	cfg := config.Default()
	n, err := cfg.NPixels()
	require.NoError(t, err)
	nNotes := n / cfg.Synthesis.PixelsPerNote

	e, err := New(cfg, nNotes)
	require.NoError(t, err)

	gray := make([]float32, n)
	for i := range gray {
		gray[i] = 1.0
	}
	line := &imaging.PreprocessedLine{Grayscale: gray, Contrast: 1}

	outL := make([]float32, 64)
	outR := make([]float32, 64)
	osc := &e.oscs[0]
	var prevGap float64 = math.Inf(1)
	for block := 0; block < 20; block++ {
		e.Render(line, cfg.Synthesis.PixelsPerNote, 1.0, 1.0, outL, outR)
		gap := math.Abs(float64(osc.target - osc.amp))
		require.LessOrEqual(t, gap, prevGap, "block %d: distance to target must never grow", block)
		prevGap = gap
	}
}

func TestRender_GlobalVolumeScalesTargetsBeforeSlew(t *testing.T) {
	t.Log("global volume multiplies into the per-oscillator target, not the finished mix")
	cfg := config.Default()
	n, err := cfg.NPixels()
	require.NoError(t, err)
	nNotes := n / cfg.Synthesis.PixelsPerNote

	gray := make([]float32, n)
	for i := range gray {
		gray[i] = 1.0
	}
	line := &imaging.PreprocessedLine{Grayscale: gray, Contrast: 1}
	outL := make([]float32, 16)
	outR := make([]float32, 16)

	full, err := New(cfg, nNotes)
	require.NoError(t, err)
	full.Render(line, cfg.Synthesis.PixelsPerNote, 1.0, 1.0, outL, outR)

	half, err := New(cfg, nNotes)
	require.NoError(t, err)
	half.Render(line, cfg.Synthesis.PixelsPerNote, 1.0, 0.5, outL, outR)

	require.InDelta(t, float64(full.oscs[0].target)*0.5, float64(half.oscs[0].target), 1e-6)
}

func TestRender_ZeroGlobalVolumeIsBitExactSilence(t *testing.T) {
	t.Log("P4: with every target driven to zero the noise gate forces exact zeros, not merely attenuated output")
	cfg := config.Default()
	n, err := cfg.NPixels()
	require.NoError(t, err)
	nNotes := n / cfg.Synthesis.PixelsPerNote

	e, err := New(cfg, nNotes)
	require.NoError(t, err)

	gray := make([]float32, n)
	for i := range gray {
		gray[i] = 1.0
	}
	line := &imaging.PreprocessedLine{Grayscale: gray, Contrast: 1}
	outL := make([]float32, 64)
	outR := make([]float32, 64)
	e.Render(line, cfg.Synthesis.PixelsPerNote, 1.0, 0, outL, outR)

	for f := range outL {
		require.Equal(t, float32(0), outL[f])
		require.Equal(t, float32(0), outR[f])
	}
}
