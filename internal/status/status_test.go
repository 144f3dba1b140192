package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_CountersStartAtZero(t *testing.T) {
	s := New()
	snap := s.Read()
	require.Equal(t, uint64(0), snap.FrameDropped)
	require.Equal(t, uint64(0), snap.VoiceStarved)
	require.Equal(t, uint64(0), snap.NumericAnomaly)
	require.Equal(t, uint64(0), snap.UnderrunReported)
	for _, v := range snap.BufferMiss {
		require.Equal(t, uint64(0), v)
	}
}

func TestStore_IncrementsAreObservedByRead(t *testing.T) {
	s := New()
	s.IncFrameDropped()
	s.IncFrameDropped()
	s.IncVoiceStarved()
	s.IncNumericAnomaly()
	s.IncUnderrunReported()
	s.IncBufferMiss(1)

	snap := s.Read()
	require.Equal(t, uint64(2), snap.FrameDropped)
	require.Equal(t, uint64(1), snap.VoiceStarved)
	require.Equal(t, uint64(1), snap.NumericAnomaly)
	require.Equal(t, uint64(1), snap.UnderrunReported)
	require.Equal(t, uint64(1), snap.BufferMiss[1])
}

func TestStore_IncBufferMissIgnoresOutOfRangeEngine(t *testing.T) {
	s := New()
	s.IncBufferMiss(-1)
	s.IncBufferMiss(99)
	snap := s.Read()
	for _, v := range snap.BufferMiss {
		require.Equal(t, uint64(0), v)
	}
}

func TestStore_ConcurrentIncrementsAreConsistent(t *testing.T) {
	t.Log("many goroutines incrementing the same counter must never lose an update")
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.IncFrameDropped()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, uint64(5000), s.Read().FrameDropped)
}

func TestVolumeSampleRing_DrainReturnsWrittenSamplesInOrder(t *testing.T) {
	r := NewVolumeSampleRing()
	for i := 0; i < 10; i++ {
		r.CaptureVolumeSampleFast(float32(i))
	}
	out := r.Drain()
	require.Len(t, out, 10)
	for i, v := range out {
		require.Equal(t, float32(i), v)
	}
}

func TestVolumeSampleRing_OverwritesOldestWhenFull(t *testing.T) {
	t.Log("writes beyond the ring's depth silently overwrite the oldest unread samples")
	r := NewVolumeSampleRing()
	for i := 0; i < volumeSampleRingSize+5; i++ {
		r.CaptureVolumeSampleFast(float32(i))
	}
	out := r.Drain()
	require.Len(t, out, volumeSampleRingSize)
	require.Equal(t, float32(5), out[0])
}
