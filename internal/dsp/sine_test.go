package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTable_MatchesMathSinAtKeyPhases(t *testing.T) {
	table := NewTable(4096)
	require.InDelta(t, 0.0, table.At(0), 1e-3)
	require.InDelta(t, 1.0, table.At(0.25), 1e-3)
	require.InDelta(t, 0.0, table.At(0.5), 1e-3)
	require.InDelta(t, -1.0, table.At(0.75), 1e-3)
}

func TestTable_WrapsPhaseAboveOne(t *testing.T) {
	table := NewTable(4096)
	require.InDelta(t, table.At(0.1), table.At(1.1), 1e-6)
}

func TestCache_ReusesTableForSameAreaSize(t *testing.T) {
	t.Log("oscillators sharing an area_size must never duplicate a table")
	c := NewCache()
	a := c.Get(256)
	b := c.Get(256)
	require.Same(t, a, b)
}

func TestCache_SeparateAreaSizesGetSeparateTables(t *testing.T) {
	c := NewCache()
	a := c.Get(128)
	b := c.Get(256)
	require.NotSame(t, a, b)
	require.Equal(t, 128, a.Len())
	require.Equal(t, 256, b.Len())
}

func TestFastSineApproximatesMathSin(t *testing.T) {
	table := NewTable(8192)
	for phase := 0.0; phase < 1.0; phase += 0.0137 {
		want := math.Sin(2 * math.Pi * phase)
		require.InDelta(t, want, table.At(phase), 1e-2)
	}
}
