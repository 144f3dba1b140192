package imaging

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sp3ctra/sp3ctra/internal/config"
)

func makeLine(n int, r, g, b uint8) *ImageLine {
	line := &ImageLine{R: make([]uint8, n), G: make([]uint8, n), B: make([]uint8, n)}
	for i := 0; i < n; i++ {
		line.R[i], line.G[i], line.B[i] = r, g, b
	}
	return line
}

func TestPreprocess_DropsMalformedLine(t *testing.T) {
	cfg := config.Default()
	p, err := New(cfg)
	require.NoError(t, err)

	n, _ := cfg.NPixels()
	bad := &ImageLine{R: make([]uint8, n-1), G: make([]uint8, n), B: make([]uint8, n)}

	_, ok := p.Preprocess(bad)
	require.False(t, ok)
	require.Equal(t, uint64(1), p.Dropped())
}

func TestPreprocess_WhiteInvertedIsSilentGrayscale(t *testing.T) {
	t.Log("white input with invert_intensity maps to grayscale 0 (silence source)")
	cfg := config.Default()
	cfg.Synthesis.InvertIntensity = true
	p, err := New(cfg)
	require.NoError(t, err)

	n, _ := cfg.NPixels()
	line := makeLine(n, 255, 255, 255)

	out, ok := p.Preprocess(line)
	require.True(t, ok)
	for _, v := range out.Grayscale {
		require.InDelta(t, 0.0, v, 1e-6)
	}
}

func TestPreprocess_BlackInvertedIsLoud(t *testing.T) {
	cfg := config.Default()
	cfg.Synthesis.InvertIntensity = true
	p, err := New(cfg)
	require.NoError(t, err)

	n, _ := cfg.NPixels()
	line := makeLine(n, 0, 0, 0)

	out, ok := p.Preprocess(line)
	require.True(t, ok)
	for _, v := range out.Grayscale {
		require.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestPreprocess_ContrastClampedToMinWhenFlat(t *testing.T) {
	cfg := config.Default()
	cfg.Synthesis.NonLinearMapping = true
	p, err := New(cfg)
	require.NoError(t, err)

	n, _ := cfg.NPixels()
	// Uniform white with inversion gives grayscale 0 everywhere, whose RMS
	// contrast of 0 clamps to contrast_min.
	line := makeLine(n, 255, 255, 255)

	out, ok := p.Preprocess(line)
	require.True(t, ok)
	require.InDelta(t, cfg.Synthesis.ContrastMin, float64(out.Contrast), 1e-6)
}

func TestPreprocess_ContrastPinnedToOneWhenNonLinearDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Synthesis.NonLinearMapping = false
	p, err := New(cfg)
	require.NoError(t, err)

	n, _ := cfg.NPixels()
	out, ok := p.Preprocess(makeLine(n, 10, 10, 10))
	require.True(t, ok)
	require.Equal(t, float32(1.0), out.Contrast)
}

func TestPreprocess_NeutralColorPansCenter(t *testing.T) {
	cfg := config.Default()
	p, err := New(cfg)
	require.NoError(t, err)

	n, _ := cfg.NPixels()
	// Equal R/G/B everywhere: blue-red and cyan-yellow axes are both zero,
	// so every note should pan dead center.
	out, ok := p.Preprocess(makeLine(n, 128, 128, 128))
	require.True(t, ok)
	for i := range out.PanLeft {
		require.InDelta(t, out.PanLeft[i], out.PanRight[i], 1e-3)
	}
}

func TestPreprocess_ZoneMeansPartitionCoversWholeLine(t *testing.T) {
	cfg := config.Default()
	p, err := New(cfg)
	require.NoError(t, err)

	n, _ := cfg.NPixels()
	out, ok := p.Preprocess(makeLine(n, 200, 50, 25))
	require.True(t, ok)
	require.Len(t, out.ZoneMeans, cfg.Synthesis.NumDMXZones)
	for _, z := range out.ZoneMeans {
		require.InDelta(t, 200, z.R, 1.0)
		require.InDelta(t, 50, z.G, 1.0)
		require.InDelta(t, 25, z.B, 1.0)
	}
}

func TestPreprocess_SequenceNumbersIncrease(t *testing.T) {
	cfg := config.Default()
	p, err := New(cfg)
	require.NoError(t, err)
	n, _ := cfg.NPixels()

	first, _ := p.Preprocess(makeLine(n, 1, 2, 3))
	second, _ := p.Preprocess(makeLine(n, 4, 5, 6))
	require.Less(t, first.Seq, second.Seq)
	require.NotEqual(t, first.ID, second.ID)
}
