// Package mixer implements spec.md §4.6: per-engine scratch-buffer
// hand-off, send levels, a shared reverb, and the final stereo write into
// the audio sink. Grounded on audio_chip.go's GenerateSample mix-down
// (send/reverb/clamp tail) and the A/B ready-flag pattern spec.md §9
// prescribes in place of the teacher's mutex-guarded buffer.
package mixer

import (
	"sync/atomic"

	"github.com/sp3ctra/sp3ctra/internal/status"
)

// EngineSlot is a double-buffered PCM hand-off for one producer/consumer
// pair (spec.md §3 "AudioBuffer handoff"). The producer writes into the
// non-ready half and flips ready with release ordering; the mixer acquires
// ready, reads, and clears it.
type EngineSlot struct {
	bufLeft  [2][]float32
	bufRight [2][]float32
	ready    [2]atomic.Bool
	writeIdx int
}

// NewEngineSlot allocates both halves of the double buffer at the given
// frame capacity. Called once at start-up; never resized.
func NewEngineSlot(frames int) *EngineSlot {
	s := &EngineSlot{}
	for i := 0; i < 2; i++ {
		s.bufLeft[i] = make([]float32, frames)
		s.bufRight[i] = make([]float32, frames)
	}
	return s
}

// BeginWrite returns the non-ready half's buffers for the producer to fill.
func (s *EngineSlot) BeginWrite() (left, right []float32) {
	idx := s.writeIdx
	return s.bufLeft[idx], s.bufRight[idx]
}

// CommitWrite flips the just-filled half to ready and advances writeIdx.
func (s *EngineSlot) CommitWrite() {
	idx := s.writeIdx
	s.ready[idx].Store(true)
	s.writeIdx = 1 - idx
}

// acquire finds a ready half, clears its flag, and returns its buffers.
// Returns ok=false if no half is ready (spec.md §4.6 BufferMiss).
func (s *EngineSlot) acquire() (left, right []float32, ok bool) {
	for i := 0; i < 2; i++ {
		if s.ready[i].CompareAndSwap(true, false) {
			return s.bufLeft[i], s.bufRight[i], true
		}
	}
	return nil, nil, false
}

// EngineID names one of the three synthesis engines for per-engine send
// levels and buffer-miss counters.
type EngineID int

const (
	EngineAdditive EngineID = iota
	EnginePolyphonic
	EnginePhotowave
	engineCount
)

// Mixer pulls the latest block from each engine's slot, applies send
// levels and the shared reverb, and mixes to stereo (spec.md §4.6).
type Mixer struct {
	slots      [engineCount]*EngineSlot
	sends      [engineCount]float64
	reverbSend float64
	reverbMix  float64
	rv         *reverb

	// sendBus accumulates the pre-reverb send of every ready engine for
	// one block; processed through the shared reverb once per sample.
	// Preallocated so Mix never allocates (P7).
	sendBus []float32

	status *status.Store
}

// New builds a Mixer with one scratch slot per engine, each sized to hold
// frames samples.
func New(frames, sampleRate int, st *status.Store) *Mixer {
	m := &Mixer{rv: newReverb(sampleRate), status: st, sendBus: make([]float32, frames)}
	for i := range m.slots {
		m.slots[i] = NewEngineSlot(frames)
	}
	return m
}

// Slot exposes the scratch buffer for a given engine to its producer.
func (m *Mixer) Slot(id EngineID) *EngineSlot { return m.slots[id] }

// SetSends updates the per-engine send levels and reverb parameters. Must
// be called from the same thread that calls Mix — in the running system
// that is the audio callback, which reads the values out of the parameter
// inbox snapshot at the start of each block.
func (m *Mixer) SetSends(additive, polyphonic, photowave, reverbSend, reverbMix float64) {
	m.sends[EngineAdditive] = additive
	m.sends[EnginePolyphonic] = polyphonic
	m.sends[EnginePhotowave] = photowave
	m.reverbSend = reverbSend
	m.reverbMix = reverbMix
}

// Mix pulls each engine's latest block, applies sends and reverb, and
// writes the stereo result into outLeft/outRight. Never allocates, never
// blocks (spec.md §4.6 Contract, P7): every buffer here is pre-existing.
func (m *Mixer) Mix(outLeft, outRight []float32) {
	n := len(outLeft)
	if n > len(m.sendBus) {
		n = len(m.sendBus)
	}
	for f := 0; f < n; f++ {
		outLeft[f] = 0
		outRight[f] = 0
		m.sendBus[f] = 0
	}

	for id := EngineID(0); id < engineCount; id++ {
		left, right, ok := m.slots[id].acquire()
		if !ok {
			m.status.IncBufferMiss(int(id))
			continue
		}
		send := float32(m.sends[id])
		rvSend := float32(m.reverbSend)
		for f := 0; f < n && f < len(left); f++ {
			dryL := left[f] * send
			dryR := right[f] * send
			outLeft[f] += dryL
			outRight[f] += dryR
			m.sendBus[f] += (dryL + dryR) * 0.5 * rvSend
		}
	}

	// One pass through the shared reverb for the whole block; the wet
	// signal is added on top of the dry mix at the configured mix level
	// (spec.md §4.6 Reverb).
	if m.reverbSend > 0 && m.reverbMix > 0 {
		mixLevel := float32(m.reverbMix)
		for f := 0; f < n; f++ {
			wet := m.rv.process(m.sendBus[f]) * mixLevel
			outLeft[f] += wet
			outRight[f] += wet
		}
	}

	for f := 0; f < n; f++ {
		outLeft[f] = clamp(outLeft[f], -1, 1)
		outRight[f] = clamp(outRight[f], -1, 1)
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
