// Package dsp holds lookup tables and small numeric helpers shared by the
// three synthesis engines, adapted from audio_lut.go's fastSin/fastTanh
// approach: precompute once, interpolate on the hot path, never call
// math.Sin/math.Tanh per sample.
package dsp

import (
	"math"
	"sync"
)

// Table is a precomputed one-cycle sine lookup with linear interpolation,
// sized to a specific oscillator's area_size (spec.md §4.3: "a shared
// precomputed sine table of length area_size[i]"). Index i corresponds to
// phase 2π·i/N.
type Table struct {
	samples []float32
}

// NewTable builds a sine table with n entries spanning one full cycle.
func NewTable(n int) *Table {
	if n < 2 {
		n = 2
	}
	t := &Table{samples: make([]float32, n)}
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * float64(i) / float64(n)
		t.samples[i] = float32(math.Sin(phase))
	}
	return t
}

// Len returns the table's area_size.
func (t *Table) Len() int { return len(t.samples) }

// At returns sin(2π·phase) for phase in normalized [0,1) units, linearly
// interpolating between adjacent table entries.
func (t *Table) At(phase float64) float32 {
	n := len(t.samples)
	phase -= math.Floor(phase)
	scaled := phase * float64(n)
	idx := int(scaled)
	if idx >= n {
		idx = n - 1
	}
	frac := float32(scaled - float64(idx))
	next := idx + 1
	if next >= n {
		next = 0
	}
	return t.samples[idx] + frac*(t.samples[next]-t.samples[idx])
}

// Cache hands out shared, reference-counted-by-reuse sine tables keyed by
// area_size, so oscillators at the same area_size never duplicate a table
// (spec.md §9: "Ownership of sine tables ... model them as a ... handle,
// never duplicated per oscillator").
type Cache struct {
	mu     sync.Mutex
	tables map[int]*Table
}

// NewCache returns an empty table cache.
func NewCache() *Cache {
	return &Cache{tables: make(map[int]*Table)}
}

// Get returns the shared table for the given area_size, building it on
// first use. Safe for concurrent callers during engine construction; never
// called from the render path.
func (c *Cache) Get(areaSize int) *Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[areaSize]; ok {
		return t
	}
	t := NewTable(areaSize)
	c.tables[areaSize] = t
	return t
}
