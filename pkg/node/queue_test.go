package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Skamba/VibeSensor-sub002/pkg/adxl345"
)

func samplesOf(vals ...int16) []adxl345.Sample {
	out := make([]adxl345.Sample, len(vals))
	for i, v := range vals {
		out[i] = adxl345.Sample{X: v, Y: v, Z: v}
	}
	return out
}

func TestQueuePushPeekAck(t *testing.T) {
	q := newFrameQueue(4)
	q.push(1000, samplesOf(1, 2))
	q.push(2000, samplesOf(3, 4))
	require.Equal(t, 2, q.depth())

	item, ok := q.peekSendable(0, dataRetransmitIntervalMS)
	require.True(t, ok)
	require.Equal(t, uint32(0), item.seq)
	require.Equal(t, uint64(1000), item.t0US)
	require.Equal(t, samplesOf(1, 2), item.samples)

	require.Equal(t, 1, q.ackThrough(0))
	require.Equal(t, 1, q.depth())

	item, ok = q.peekSendable(0, dataRetransmitIntervalMS)
	require.True(t, ok)
	require.Equal(t, uint32(1), item.seq)
}

func TestQueuePushCopiesSamples(t *testing.T) {
	q := newFrameQueue(4)
	src := samplesOf(7)
	q.push(0, src)
	src[0].X = 99

	item, ok := q.peekSendable(0, dataRetransmitIntervalMS)
	require.True(t, ok)
	require.Equal(t, int16(7), item.samples[0].X)
}

func TestQueueIgnoresEmptyPush(t *testing.T) {
	q := newFrameQueue(4)
	q.push(0, nil)
	require.Equal(t, 0, q.depth())
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	q := newFrameQueue(2)
	q.push(0, samplesOf(0))
	q.push(0, samplesOf(1))
	q.push(0, samplesOf(2))

	require.Equal(t, 2, q.depth())
	require.Equal(t, uint32(1), q.overflowDropCount())

	// Seq 0 was dropped; seq numbers keep advancing.
	item, ok := q.peekSendable(0, dataRetransmitIntervalMS)
	require.True(t, ok)
	require.Equal(t, uint32(1), item.seq)
	require.Equal(t, samplesOf(1), item.samples)
}

func TestQueueRetransmitGating(t *testing.T) {
	q := newFrameQueue(4)
	q.push(0, samplesOf(1))

	_, ok := q.peekSendable(100, dataRetransmitIntervalMS)
	require.True(t, ok)
	q.markTransmitted(0, 100)

	// Inside the retransmit interval the frame is withheld.
	_, ok = q.peekSendable(100+dataRetransmitIntervalMS-1, dataRetransmitIntervalMS)
	require.False(t, ok)

	// On the cadence it becomes sendable again.
	item, ok := q.peekSendable(100+dataRetransmitIntervalMS, dataRetransmitIntervalMS)
	require.True(t, ok)
	require.Equal(t, uint32(0), item.seq)
}

func TestQueueMarkTransmittedIgnoresStaleSeq(t *testing.T) {
	q := newFrameQueue(4)
	q.push(0, samplesOf(1))
	q.markTransmitted(5, 100)

	// Front frame is still untransmitted and sendable immediately.
	_, ok := q.peekSendable(100, dataRetransmitIntervalMS)
	require.True(t, ok)
}

func TestQueueAckThroughTrimsRun(t *testing.T) {
	q := newFrameQueue(8)
	for i := 0; i < 5; i++ {
		q.push(0, samplesOf(int16(i)))
	}
	require.Equal(t, 3, q.ackThrough(2))
	require.Equal(t, 2, q.depth())

	// An older ack trims nothing.
	require.Equal(t, 0, q.ackThrough(1))
	require.Equal(t, 2, q.depth())
}

func TestQueueAckAcrossSeqWraparound(t *testing.T) {
	q := newFrameQueue(8)
	q.nextSeq = 0xFFFFFFFE
	q.push(0, samplesOf(1)) // seq fffffffe
	q.push(0, samplesOf(2)) // seq ffffffff
	q.push(0, samplesOf(3)) // seq 0
	q.push(0, samplesOf(4)) // seq 1

	require.Equal(t, 3, q.ackThrough(0))
	require.Equal(t, 1, q.depth())

	item, ok := q.peekSendable(0, dataRetransmitIntervalMS)
	require.True(t, ok)
	require.Equal(t, uint32(1), item.seq)
}

func TestSeqLessOrEqual(t *testing.T) {
	for _, tc := range []struct {
		lhs, rhs uint32
		want     bool
	}{
		{0, 0, true},
		{1, 2, true},
		{2, 1, false},
		{0xFFFFFFFF, 0, true},
		{0, 0xFFFFFFFF, false},
		{0xFFFFFF00, 0x000000FF, true},
	} {
		require.Equal(t, tc.want, seqLessOrEqual(tc.lhs, tc.rhs), "lhs=%#x rhs=%#x", tc.lhs, tc.rhs)
	}
}
