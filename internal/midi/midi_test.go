package midi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueue_DrainPreservesFIFOOrder(t *testing.T) {
	q := NewQueue(8)
	q.Enqueue(KindNoteOn, 0, 60, 100)
	q.Enqueue(KindControlChange, 0, 1, 64)
	q.Enqueue(KindNoteOff, 0, 60, 0)

	events := q.Drain()
	require.Len(t, events, 3)
	require.Equal(t, KindNoteOn, events[0].Kind)
	require.Equal(t, KindControlChange, events[1].Kind)
	require.Equal(t, KindNoteOff, events[2].Kind)
}

func TestQueue_DrainOnEmptyQueueReturnsNil(t *testing.T) {
	q := NewQueue(4)
	require.Empty(t, q.Drain())
}

func TestQueue_DropsOldestWhenFull(t *testing.T) {
	t.Log("a full queue drops the oldest unread event rather than blocking the producer")
	q := NewQueue(2)
	q.Enqueue(KindNoteOn, 0, 1, 1)
	q.Enqueue(KindNoteOn, 0, 2, 2)
	q.Enqueue(KindNoteOn, 0, 3, 3)

	events := q.Drain()
	require.Len(t, events, 2)
	require.Equal(t, 2, events[0].Data1)
	require.Equal(t, 3, events[1].Data1)
}

func TestQueue_DrainIsIdempotentWhenEmpty(t *testing.T) {
	q := NewQueue(4)
	q.Enqueue(KindNoteOn, 0, 1, 1)
	first := q.Drain()
	require.Len(t, first, 1)
	second := q.Drain()
	require.Empty(t, second)
}

func TestNewQueue_ClampsCapacityToAtLeastOne(t *testing.T) {
	q := NewQueue(0)
	q.Enqueue(KindNoteOn, 0, 1, 1)
	require.Len(t, q.Drain(), 1)
}
