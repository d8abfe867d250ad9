package node

import (
	"sync"

	"github.com/Skamba/VibeSensor-sub002/pkg/adxl345"
)

// frame is one datagram worth of samples, tracked until the collector's
// cumulative data ack covers its sequence number.
type frame struct {
	seq         uint32
	t0US        uint64
	samples     []adxl345.Sample
	transmitted bool
	lastTxMS    uint32
}

// sendItem is a snapshot of the queue's front frame handed to the uplink.
// The sample slice is owned by the queue but never mutated after push, so
// it is safe to encode outside the lock.
type sendItem struct {
	seq     uint32
	t0US    uint64
	samples []adxl345.Sample
}

// frameQueue is a drop-oldest ring of frames awaiting acknowledgement.
// When full, the oldest frame is dropped so the freshest samples stay
// prioritized. The sampler pushes, the uplink peeks and trims.
type frameQueue struct {
	mu            sync.Mutex
	frames        []frame
	head          int
	tail          int
	size          int
	nextSeq       uint32
	overflowDrops uint32
}

func newFrameQueue(capacity int) *frameQueue {
	return &frameQueue{frames: make([]frame, capacity)}
}

// push enqueues a copy of samples as a new frame.
func (q *frameQueue) push(t0US uint64, samples []adxl345.Sample) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(samples) == 0 {
		return
	}
	if q.size == len(q.frames) {
		q.overflowDrops++
		q.tail = (q.tail + 1) % len(q.frames)
		q.size--
	}
	q.frames[q.head] = frame{
		seq:     q.nextSeq,
		t0US:    t0US,
		samples: append([]adxl345.Sample(nil), samples...),
	}
	q.nextSeq++
	q.head = (q.head + 1) % len(q.frames)
	q.size++
}

// peekSendable returns the oldest frame when it is due for (re)transmission:
// either never sent, or sent longer than retransmitIntervalMS ago.
func (q *frameQueue) peekSendable(nowMS, retransmitIntervalMS uint32) (sendItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return sendItem{}, false
	}
	f := &q.frames[q.tail]
	if f.transmitted && nowMS-f.lastTxMS < retransmitIntervalMS {
		return sendItem{}, false
	}
	return sendItem{seq: f.seq, t0US: f.t0US, samples: f.samples}, true
}

// markTransmitted records a successful send of the front frame.
func (q *frameQueue) markTransmitted(seq, nowMS uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return
	}
	f := &q.frames[q.tail]
	if f.seq == seq {
		f.transmitted = true
		f.lastTxMS = nowMS
	}
}

// dropFront discards the oldest frame.
func (q *frameQueue) dropFront() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropFrontLocked()
}

func (q *frameQueue) dropFrontLocked() {
	if q.size == 0 {
		return
	}
	q.frames[q.tail] = frame{}
	q.tail = (q.tail + 1) % len(q.frames)
	q.size--
}

// ackThrough trims every frame whose sequence number is covered by the
// collector's cumulative ack, and returns how many were trimmed.
func (q *frameQueue) ackThrough(lastSeqReceived uint32) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	trimmed := 0
	for q.size > 0 {
		if !seqLessOrEqual(q.frames[q.tail].seq, lastSeqReceived) {
			break
		}
		q.dropFrontLocked()
		trimmed++
	}
	return trimmed
}

func (q *frameQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *frameQueue) capacity() int {
	return len(q.frames)
}

func (q *frameQueue) overflowDropCount() uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflowDrops
}

// seqLessOrEqual compares sequence numbers with signed 32-bit subtraction
// so ordering stays valid across uint32 wraparound.
func seqLessOrEqual(lhs, rhs uint32) bool {
	return int32(lhs-rhs) <= 0
}
