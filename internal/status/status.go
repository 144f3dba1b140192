// Package status exposes the runtime error-kind counters of spec.md §7
// through a snapshot reader. The shape follows runtime_status.go's
// snapshot-store pattern (a value copied out whole, never read
// field-by-field by consumers), but the live counters are atomics rather
// than a mutex-guarded struct: IncBufferMiss and IncUnderrunReported run
// on the audio callback path, which may never take a blocking lock
// (spec.md §5).
package status

import "sync/atomic"

const numMixerEngines = 3

// Snapshot is a point-in-time copy of every counter, safe to marshal (e.g.
// to YAML for a diagnostic dump) without holding any lock.
type Snapshot struct {
	FrameDropped     uint64                  `yaml:"frame_dropped"`
	BufferMiss       [numMixerEngines]uint64 `yaml:"buffer_miss"`
	VoiceStarved     uint64                  `yaml:"voice_starved"`
	NumericAnomaly   uint64                  `yaml:"numeric_anomaly"`
	UnderrunReported uint64                  `yaml:"underrun_reported"`
}

// Store holds the live counters. ConfigInvalid is not represented here: it
// is fatal at construction time and never becomes a running counter
// (spec.md §7).
type Store struct {
	frameDropped     atomic.Uint64
	bufferMiss       [numMixerEngines]atomic.Uint64
	voiceStarved     atomic.Uint64
	numericAnomaly   atomic.Uint64
	underrunReported atomic.Uint64
}

// New returns a zeroed Store.
func New() *Store { return &Store{} }

// IncFrameDropped bumps the FrameDropped counter (spec.md §4.2 Errors).
func (s *Store) IncFrameDropped() { s.frameDropped.Add(1) }

// IncBufferMiss bumps the per-engine BufferMiss counter (spec.md §4.6).
// RT-safe: called by the mixer on the audio callback path.
func (s *Store) IncBufferMiss(engine int) {
	if engine < 0 || engine >= numMixerEngines {
		return
	}
	s.bufferMiss[engine].Add(1)
}

// IncVoiceStarved bumps the VoiceStarved counter (spec.md §4.4 Failure).
func (s *Store) IncVoiceStarved() { s.voiceStarved.Add(1) }

// IncNumericAnomaly bumps the NumericAnomaly counter (spec.md §4.3 Failure
// semantics).
func (s *Store) IncNumericAnomaly() { s.numericAnomaly.Add(1) }

// IncUnderrunReported bumps the UnderrunReported counter (spec.md §7).
// RT-safe: called from the audio thread by underrun-reporting backends.
func (s *Store) IncUnderrunReported() { s.underrunReported.Add(1) }

// Read returns a copy of the current counters, safe to read concurrently
// with any Inc* call. Each counter is monotonic; the snapshot as a whole
// is not a single atomic cut across counters, which spec.md §7 does not
// require.
func (s *Store) Read() Snapshot {
	var snap Snapshot
	snap.FrameDropped = s.frameDropped.Load()
	for i := range s.bufferMiss {
		snap.BufferMiss[i] = s.bufferMiss[i].Load()
	}
	snap.VoiceStarved = s.voiceStarved.Load()
	snap.NumericAnomaly = s.numericAnomaly.Load()
	snap.UnderrunReported = s.underrunReported.Load()
	return snap
}

// volumeSampleRingSize is the depth of the RT-safe debug capture ring
// (SPEC_FULL.md Supplemented Features, spec.md §9 "capture_volume_sample_fast").
const volumeSampleRingSize = 4096

// VolumeSampleRing is a lock-free, allocation-free ring buffer the audio
// callback may write into for debug capture. Writes never block and are
// allowed to silently overwrite unread samples (spec.md §9: "allowed to
// drop samples silently").
type VolumeSampleRing struct {
	buf        [volumeSampleRingSize]float32
	writeIndex atomic.Uint64
}

// NewVolumeSampleRing returns an empty ring.
func NewVolumeSampleRing() *VolumeSampleRing { return &VolumeSampleRing{} }

// CaptureVolumeSampleFast writes one sample at the next ring position.
// RT-safe: one atomic add, one store, no allocation.
func (r *VolumeSampleRing) CaptureVolumeSampleFast(v float32) {
	idx := r.writeIndex.Add(1) - 1
	r.buf[idx%volumeSampleRingSize] = v
}

// Drain copies out the ring's current contents in write order for an
// external (non-RT) debug consumer. Not RT-safe; never call from the audio
// callback.
func (r *VolumeSampleRing) Drain() []float32 {
	n := r.writeIndex.Load()
	count := uint64(volumeSampleRingSize)
	if n < count {
		count = n
	}
	out := make([]float32, count)
	start := n - count
	for i := uint64(0); i < count; i++ {
		out[i] = r.buf[(start+i)%volumeSampleRingSize]
	}
	return out
}
