package fbmirror

import "sync/atomic"

// Display controller command tags carried by queued tasks. These are the
// standard MIPI DCS opcodes shared by the ST7789/ILI9341/GC9307 family.
const (
	cmdColumnWindow  = 0x2A // CASET: set write cursor X window
	cmdRowWindow     = 0x2B // RASET: set write cursor Y window
	cmdWritePixels   = 0x2C // RAMWR: write pixel payload from window origin
	cmdWriteContinue = 0x3C // RAMWRC: continue a split pixel payload
)

// task is one unit of work for the transport: a command tag plus an
// already-encoded payload. The payload slice aliases the ring slot's backing
// array and is reused once the consumer has passed the slot.
type task struct {
	cmd  byte
	data []byte
}

// taskQueue is a fixed-capacity single-producer single-consumer ring of SPI
// tasks.
//
// head and tail are free-running counters masked down to slot indices; the
// producer never writes head, the consumer never writes tail, so no lock is
// needed as long as the counters are published atomically. tail is only
// advanced by commit after a slot is fully built; head is only advanced by
// pop after the consumer finishes transmitting a task.
//
// bytes tracks the total payload bytes (plus one command byte per task)
// currently enqueued, for the producer's drain-time estimation.
type taskQueue struct {
	slots []task
	mask  uint32
	head  atomic.Uint32
	tail  atomic.Uint32
	bytes atomic.Int64
}

// newTaskQueue creates a queue with at least the requested capacity, rounded
// up to a power of two for cheap index masking.
func newTaskQueue(capacity int) *taskQueue {
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &taskQueue{
		slots: make([]task, n),
		mask:  uint32(n - 1),
	}
}

// pending returns the number of committed, unconsumed tasks.
func (q *taskQueue) pending() int {
	return int(q.tail.Load() - q.head.Load())
}

// queuedBytes returns the total bytes currently enqueued.
func (q *taskQueue) queuedBytes() int64 {
	return q.bytes.Load()
}

// tailMark returns the current tail counter, used to mark frame boundaries
// in the task stream.
func (q *taskQueue) tailMark() uint32 {
	return q.tail.Load()
}

// headPassed reports whether the consumer has consumed every task committed
// before mark.
func (q *taskQueue) headPassed(mark uint32) bool {
	// Counter-space comparison; both values wrap together.
	return int32(q.head.Load()-mark) >= 0
}

// alloc stages the next task slot for the producer, growing the slot's
// payload buffer to size bytes. It returns nil when the ring is full; the
// producer must then back off and retry, never overwrite.
//
// The returned task is invisible to the consumer until commit.
func (q *taskQueue) alloc(cmd byte, size int) *task {
	tail := q.tail.Load()
	if tail-q.head.Load() > q.mask {
		return nil
	}
	t := &q.slots[tail&q.mask]
	t.cmd = cmd
	if cap(t.data) < size {
		t.data = make([]byte, size)
	} else {
		t.data = t.data[:size]
	}
	return t
}

// commit publishes the most recently staged task to the consumer.
func (q *taskQueue) commit(t *task) {
	q.bytes.Add(int64(len(t.data)) + 1)
	q.tail.Add(1)
}

// peek returns the task at the head of the queue without consuming it, or
// nil when the queue is empty. Consumer-only.
func (q *taskQueue) peek() *task {
	head := q.head.Load()
	if head == q.tail.Load() {
		return nil
	}
	return &q.slots[head&q.mask]
}

// pop releases the task previously returned by peek. Consumer-only.
func (q *taskQueue) pop(t *task) {
	q.bytes.Add(-int64(len(t.data)) - 1)
	q.head.Add(1)
}
