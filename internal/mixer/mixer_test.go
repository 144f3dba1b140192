package mixer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sp3ctra/sp3ctra/internal/status"
)

func TestEngineSlot_AcquireFailsBeforeAnyWrite(t *testing.T) {
	s := NewEngineSlot(64)
	_, _, ok := s.acquire()
	require.False(t, ok)
}

func TestEngineSlot_CommitMakesBufferAcquirable(t *testing.T) {
	s := NewEngineSlot(64)
	left, right := s.BeginWrite()
	for i := range left {
		left[i] = 0.5
		right[i] = -0.5
	}
	s.CommitWrite()

	gotLeft, gotRight, ok := s.acquire()
	require.True(t, ok)
	require.Equal(t, float32(0.5), gotLeft[0])
	require.Equal(t, float32(-0.5), gotRight[0])

	_, _, ok = s.acquire()
	require.False(t, ok, "acquire clears the ready flag; a second call without a new commit must miss")
}

func TestEngineSlot_DoubleBuffersAlternate(t *testing.T) {
	s := NewEngineSlot(8)
	l0, _ := s.BeginWrite()
	l0[0] = 1
	s.CommitWrite()

	l1, _ := s.BeginWrite()
	require.NotEqual(t, &l0[0], &l1[0], "the second write must target the other half of the double buffer")
}

func TestMixer_BufferMissIsCountedWhenEngineHasNothingReady(t *testing.T) {
	t.Log("P8: mixer never blocks on a missing engine buffer; instead counts a buffer miss and continues")
	st := status.New()
	m := New(64, 44100, st)

	outL := make([]float32, 64)
	outR := make([]float32, 64)
	m.Mix(outL, outR)

	snap := st.Read()
	require.Equal(t, uint64(1), snap.BufferMiss[EngineAdditive])
	require.Equal(t, uint64(1), snap.BufferMiss[EnginePolyphonic])
	require.Equal(t, uint64(1), snap.BufferMiss[EnginePhotowave])
	for _, v := range outL {
		require.Equal(t, float32(0), v)
	}
}

func TestMixer_MixesReadyEnginesWithSendLevels(t *testing.T) {
	st := status.New()
	m := New(8, 44100, st)
	m.SetSends(1.0, 0, 0, 0, 0)

	left, right := m.Slot(EngineAdditive).BeginWrite()
	for i := range left {
		left[i], right[i] = 0.25, 0.25
	}
	m.Slot(EngineAdditive).CommitWrite()

	outL := make([]float32, 8)
	outR := make([]float32, 8)
	m.Mix(outL, outR)

	for _, v := range outL {
		require.InDelta(t, 0.25, v, 1e-6)
	}
}

func TestMixer_ClampsOutputToUnitRange(t *testing.T) {
	st := status.New()
	m := New(8, 44100, st)
	m.SetSends(2.0, 2.0, 2.0, 0, 0)

	for id := EngineID(0); id < engineCount; id++ {
		left, right := m.Slot(id).BeginWrite()
		for i := range left {
			left[i], right[i] = 1.0, 1.0
		}
		m.Slot(id).CommitWrite()
	}

	outL := make([]float32, 8)
	outR := make([]float32, 8)
	m.Mix(outL, outR)
	for _, v := range outL {
		require.LessOrEqual(t, v, float32(1.0))
		require.GreaterOrEqual(t, v, float32(-1.0))
	}
}

func TestReverb_ProcessNeverPanics(t *testing.T) {
	rv := newReverb(44100)
	for i := 0; i < 1000; i++ {
		require.NotPanics(t, func() { rv.process(0.5) })
	}
}

func TestMixer_ReverbAddsWetSignalOnTopOfDry(t *testing.T) {
	t.Log("scenario: with a nonzero reverb send, an impulse grows a tail the dry-only mix does not have")
	run := func(reverbSend, reverbMix float64) []float32 {
		m := New(64, 44100, status.New())
		var tail []float32
		for block := 0; block < 40; block++ {
			m.SetSends(1.0, 0, 0, reverbSend, reverbMix)
			left, right := m.Slot(EngineAdditive).BeginWrite()
			for i := range left {
				left[i], right[i] = 0, 0
			}
			if block == 0 {
				left[0], right[0] = 1, 1
			}
			m.Slot(EngineAdditive).CommitWrite()

			outL := make([]float32, 64)
			outR := make([]float32, 64)
			m.Mix(outL, outR)
			if block > 0 {
				tail = append(tail, outL...)
			}
		}
		return tail
	}

	dryTail := run(0, 0)
	wetTail := run(1.0, 0.5)

	var dryEnergy, wetEnergy float64
	for i := range dryTail {
		dryEnergy += float64(dryTail[i] * dryTail[i])
		wetEnergy += float64(wetTail[i] * wetTail[i])
	}
	require.Equal(t, 0.0, dryEnergy, "without a reverb send the impulse leaves no tail")
	require.Greater(t, wetEnergy, 0.0, "the reverb send must produce a decaying tail after the impulse")
}
