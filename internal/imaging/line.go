// Package imaging implements spec.md §4.2: turning one RGB line scan into
// the PreprocessedLine every synthesis engine reads.
package imaging

import "github.com/google/uuid"

// ImageLine is one RGB line scan: N_PIXELS triplets, produced by the network
// layer and never mutated after publication (spec.md §3).
type ImageLine struct {
	R, G, B []uint8
}

// NPixels returns the line's pixel count.
func (l *ImageLine) NPixels() int { return len(l.R) }

// Valid reports whether the three channel arrays are present and agree in
// length — the input-validation gate behind spec.md §4.2's FrameDropped.
func (l *ImageLine) Valid(expectedPixels int) bool {
	if l == nil || l.R == nil || l.G == nil || l.B == nil {
		return false
	}
	return len(l.R) == expectedPixels && len(l.G) == expectedPixels && len(l.B) == expectedPixels
}

// ZoneMean is the per-DMX-zone mean RGB (spec.md §3, §4.2).
type ZoneMean struct {
	R, G, B float32
}

// PreprocessedLine is derived from one ImageLine and is immutable after
// publication (spec.md §3). ID and Seq are a domain-stack addition (see
// SPEC_FULL.md DOMAIN STACK) letting status consumers correlate a frame
// across the bus, the three engines, and the mixer's per-engine buffer-miss
// counters without re-deriving a hash of the pixel data.
type PreprocessedLine struct {
	ID  uuid.UUID
	Seq uint64

	// Grayscale is the normalized luminance per pixel, length N_PIXELS,
	// values in [0,1].
	Grayscale []float32

	// PanLeft and PanRight are the constant-power gain pair per note slot,
	// length N_NOTES.
	PanLeft, PanRight []float32

	// Contrast summarizes the line's dynamic range (spec.md §4.2), already
	// clamped to [contrast_min, 1].
	Contrast float32

	// ZoneMeans holds the per-DMX-zone mean RGB, length N_ZONES.
	ZoneMeans []ZoneMean
}
