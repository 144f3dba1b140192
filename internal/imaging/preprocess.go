package imaging

import (
	"math"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sp3ctra/sp3ctra/internal/config"
)

const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114

	// centerCompensationMaxBoost is the perceptual center-compensation
	// ceiling applied when a note slot's color temperature sits near zero
	// (spec.md §4.2: "a perceptual center-compensation boost of ≤ 1.02x
	// applies when |t| < 0.1").
	centerCompensationMaxBoost = 1.02
	centerCompensationBand     = 0.1
)

// Preprocessor turns raw RGB line scans into PreprocessedLine values
// (spec.md §4.2). It owns no mutable cross-thread state beyond its drop
// and sequence counters; every Preprocess call is independent and allocates its own
// output arrays, which is acceptable here because, unlike the audio
// callback, the preprocess thread is allowed to block and allocate (spec.md
// §5: "preprocess ... yes (condvar)").
type Preprocessor struct {
	nPixels int
	nNotes  int
	nZones  int
	seq     atomic.Uint64
	dropped atomic.Uint64

	pixelsPerNote           int
	invert                  bool
	nonLinearMapping        bool
	contrastStride          int
	contrastAdjustmentPower float64
	contrastMin             float64

	stereoEnabled     bool
	tempAmplification float64
	blueRedWeight     float64
	cyanYellowWeight  float64
	tempCurveExponent float64
}

// New builds a Preprocessor for the given RuntimeConfig. N_PIXELS and
// N_NOTES are derived once, at start-up, and never change for the lifetime
// of the process (spec.md §9 DESIGN NOTES: "Static arrays sized by
// preprocessor constants → runtime-sized containers").
func New(cfg config.RuntimeConfig) (*Preprocessor, error) {
	nPixels, err := cfg.NPixels()
	if err != nil {
		return nil, err
	}
	nNotes := nPixels / cfg.Synthesis.PixelsPerNote
	return &Preprocessor{
		nPixels:                 nPixels,
		nNotes:                  nNotes,
		nZones:                  cfg.Synthesis.NumDMXZones,
		pixelsPerNote:           cfg.Synthesis.PixelsPerNote,
		invert:                  cfg.Synthesis.InvertIntensity,
		nonLinearMapping:        cfg.Synthesis.NonLinearMapping,
		contrastStride:          cfg.Synthesis.ContrastStride,
		contrastAdjustmentPower: cfg.Synthesis.ContrastAdjustmentPower,
		contrastMin:             cfg.Synthesis.ContrastMin,
		stereoEnabled:           cfg.StereoProcessing.Enabled,
		tempAmplification:       cfg.StereoProcessing.TemperatureAmplification,
		blueRedWeight:           cfg.StereoProcessing.BlueRedWeight,
		cyanYellowWeight:        cfg.StereoProcessing.CyanYellowWeight,
		tempCurveExponent:       cfg.StereoProcessing.TemperatureCurveExponent,
	}, nil
}

// NPixels and NNotes expose the derived constants for callers (e.g. the
// additive engine) that must size their own arrays to match.
func (p *Preprocessor) NPixels() int { return p.nPixels }
func (p *Preprocessor) NNotes() int  { return p.nNotes }
func (p *Preprocessor) NZones() int  { return p.nZones }

// Dropped returns the FrameDropped counter (spec.md §7).
func (p *Preprocessor) Dropped() uint64 { return p.dropped.Load() }

// Preprocess builds a PreprocessedLine from one raw ImageLine. On malformed
// input it returns (nil, false) and bumps Dropped — "the frame is dropped
// and a counter is incremented; no partial line is published" (spec.md
// §4.2 Errors).
func (p *Preprocessor) Preprocess(line *ImageLine) (*PreprocessedLine, bool) {
	if !line.Valid(p.nPixels) {
		p.dropped.Add(1)
		return nil, false
	}

	gray := p.grayscale(line)
	contrast := p.contrast(gray)
	panLeft, panRight := p.pans(line)
	zones := p.zoneMeans(line)

	seq := p.seq.Add(1)
	return &PreprocessedLine{
		ID:        uuid.New(),
		Seq:       seq,
		Grayscale: gray,
		PanLeft:   panLeft,
		PanRight:  panRight,
		Contrast:  contrast,
		ZoneMeans: zones,
	}, true
}

func (p *Preprocessor) grayscale(line *ImageLine) []float32 {
	out := make([]float32, p.nPixels)
	for i := 0; i < p.nPixels; i++ {
		v := lumaR*float64(line.R[i]) + lumaG*float64(line.G[i]) + lumaB*float64(line.B[i])
		v /= 255.0
		if p.invert {
			v = 1.0 - v
		}
		out[i] = float32(v)
	}
	return out
}

// contrast computes the RMS-over-stride dynamic-range scalar (spec.md
// §4.2). Non-linear mapping off means contrast is pinned to 1 (flat
// passthrough).
func (p *Preprocessor) contrast(gray []float32) float32 {
	if !p.nonLinearMapping {
		return 1.0
	}
	var sumSq float64
	var n int
	for i := 0; i < len(gray); i += p.contrastStride {
		v := float64(gray[i])
		sumSq += v * v
		n++
	}
	if n == 0 {
		return float32(p.contrastMin)
	}
	rms := math.Sqrt(sumSq / float64(n))
	shaped := math.Pow(rms, p.contrastAdjustmentPower)
	if shaped < p.contrastMin {
		shaped = p.contrastMin
	}
	if shaped > 1 {
		shaped = 1
	}
	return float32(shaped)
}

// pans computes the per-note constant-power stereo pan gains (spec.md
// §4.2).
func (p *Preprocessor) pans(line *ImageLine) (left, right []float32) {
	left = make([]float32, p.nNotes)
	right = make([]float32, p.nNotes)

	if !p.stereoEnabled {
		for i := range left {
			left[i], right[i] = 1, 1
		}
		return left, right
	}

	for note := 0; note < p.nNotes; note++ {
		start := note * p.pixelsPerNote
		end := start + p.pixelsPerNote
		if end > p.nPixels {
			end = p.nPixels
		}
		var rSum, gSum, bSum float64
		count := end - start
		for i := start; i < end; i++ {
			rSum += float64(line.R[i])
			gSum += float64(line.G[i])
			bSum += float64(line.B[i])
		}
		if count == 0 {
			left[note], right[note] = 1, 1
			continue
		}
		r := rSum / float64(count) / 255.0
		g := gSum / float64(count) / 255.0
		b := bSum / float64(count) / 255.0

		blueRed := (b - r) * p.blueRedWeight
		cyanYellow := ((g+b)/2 - r) * p.cyanYellowWeight

		t := (blueRed + cyanYellow) / 2 * p.tempAmplification
		sign := 1.0
		if t < 0 {
			sign = -1.0
		}
		t = sign * math.Pow(math.Abs(t), p.tempCurveExponent)
		if t > 1 {
			t = 1
		} else if t < -1 {
			t = -1
		}

		angle := (t + 1) * math.Pi / 4
		l := math.Cos(angle)
		r2 := math.Sin(angle)
		if math.Abs(t) < centerCompensationBand {
			boost := 1 + (centerCompensationMaxBoost-1)*(1-math.Abs(t)/centerCompensationBand)
			l *= boost
			r2 *= boost
		}
		left[note] = float32(l)
		right[note] = float32(r2)
	}
	return left, right
}

// zoneMeans partitions the line into N_ZONES equal-width bands and returns
// the per-band mean RGB (spec.md §3, §4.2).
func (p *Preprocessor) zoneMeans(line *ImageLine) []ZoneMean {
	zones := make([]ZoneMean, p.nZones)
	if p.nZones == 0 {
		return zones
	}
	bandWidth := p.nPixels / p.nZones
	if bandWidth == 0 {
		bandWidth = 1
	}
	for z := 0; z < p.nZones; z++ {
		start := z * bandWidth
		end := start + bandWidth
		if z == p.nZones-1 || end > p.nPixels {
			end = p.nPixels
		}
		var rSum, gSum, bSum float64
		count := end - start
		for i := start; i < end; i++ {
			rSum += float64(line.R[i])
			gSum += float64(line.G[i])
			bSum += float64(line.B[i])
		}
		if count == 0 {
			continue
		}
		zones[z] = ZoneMean{
			R: float32(rSum / float64(count)),
			G: float32(gSum / float64(count)),
			B: float32(bSum / float64(count)),
		}
	}
	return zones
}
