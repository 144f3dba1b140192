// Package bus implements a lock-free publish/snapshot hand-off: at-most-one
// writer, many readers, readers never block the writer and the writer never
// waits for readers.
//
// The ring holds K=3 slots. K>=2 guarantees a reader cannot witness a torn
// write while the writer is filling the next slot; the third slot gives the
// writer one full slot of headroom against a reader that is still
// dereferencing the oldest published slot when a new publish starts, at
// essentially no extra cost.
package bus

import "sync/atomic"

const ringSlots = 3

// SeqLock publishes values of type T from a single writer to many readers
// without ever blocking either side. It backs both the image-line bus and
// the MIDI-bound RuntimeConfig parameter inbox, which share the same
// atomic sequence-lock pattern.
type SeqLock[T any] struct {
	seq   atomic.Uint64
	slots [ringSlots]atomic.Pointer[T]
}

// NewSeqLock returns a SeqLock with no published value yet; Snapshot returns
// (0, nil) until the first Publish.
func NewSeqLock[T any]() *SeqLock[T] {
	return &SeqLock[T]{}
}

// Publish stores a fully-constructed value and makes it visible to readers.
// Must be called by a single writer goroutine only. value must not be
// mutated by the caller after this call returns: once published, a payload
// is never mutated again.
func (s *SeqLock[T]) Publish(value *T) uint64 {
	next := s.seq.Load() + 1
	slot := next % ringSlots
	s.slots[slot].Store(value)
	s.seq.Store(next)
	return next
}

// Snapshot returns the most recently published value and its sequence
// number. Safe to call from any number of concurrent reader goroutines,
// including the real-time audio callback: it performs one atomic load, one
// atomic load of a pointer, and a dereference — no allocation, no lock.
//
// A reader that loaded sequence S before a concurrent publish bumped the
// counter to S+1 simply returns the slot it already resolved; because
// ringSlots >= 2, that slot can never be the one the writer is about to
// overwrite next.
func (s *SeqLock[T]) Snapshot() (uint64, *T) {
	seq := s.seq.Load()
	if seq == 0 {
		return 0, nil
	}
	slot := seq % ringSlots
	return seq, s.slots[slot].Load()
}
