package fbmirror

import (
	"encoding/binary"
	"sync"
	"testing"
)

func TestQueueRoundsCapacityUp(t *testing.T) {
	q := newTaskQueue(100)
	if len(q.slots) != 128 {
		t.Errorf("capacity = %d, want 128", len(q.slots))
	}
	if q.mask != 127 {
		t.Errorf("mask = %d, want 127", q.mask)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := newTaskQueue(8)
	for i := 0; i < 5; i++ {
		tk := q.alloc(cmdWritePixels, 4)
		if tk == nil {
			t.Fatalf("alloc %d returned nil on a non-full queue", i)
		}
		binary.BigEndian.PutUint32(tk.data, uint32(i))
		q.commit(tk)
	}
	if got := q.pending(); got != 5 {
		t.Fatalf("pending = %d, want 5", got)
	}
	for i := 0; i < 5; i++ {
		tk := q.peek()
		if tk == nil {
			t.Fatalf("peek %d returned nil", i)
		}
		if got := binary.BigEndian.Uint32(tk.data); got != uint32(i) {
			t.Errorf("task %d payload = %d, out of order", i, got)
		}
		q.pop(tk)
	}
	if q.peek() != nil {
		t.Error("peek on drained queue returned a task")
	}
}

func TestQueueAllocNilWhenFull(t *testing.T) {
	q := newTaskQueue(4)
	for i := 0; i < 4; i++ {
		tk := q.alloc(cmdWritePixels, 1)
		if tk == nil {
			t.Fatalf("alloc %d returned nil before the queue was full", i)
		}
		q.commit(tk)
	}
	if q.alloc(cmdWritePixels, 1) != nil {
		t.Fatal("alloc on a full queue did not return nil")
	}
	q.pop(q.peek())
	if q.alloc(cmdWritePixels, 1) == nil {
		t.Error("alloc still nil after pop freed a slot")
	}
}

func TestQueueBytesAccounting(t *testing.T) {
	q := newTaskQueue(8)
	tk := q.alloc(cmdWritePixels, 10)
	q.commit(tk)
	tk = q.alloc(cmdColumnWindow, 4)
	q.commit(tk)
	// Each task costs its payload plus one command byte.
	if got := q.queuedBytes(); got != 16 {
		t.Errorf("queuedBytes = %d, want 16", got)
	}
	q.pop(q.peek())
	if got := q.queuedBytes(); got != 5 {
		t.Errorf("queuedBytes after pop = %d, want 5", got)
	}
	q.pop(q.peek())
	if got := q.queuedBytes(); got != 0 {
		t.Errorf("queuedBytes after drain = %d, want 0", got)
	}
}

func TestQueueHeadPassed(t *testing.T) {
	q := newTaskQueue(4)
	mark := q.tailMark()
	if !q.headPassed(mark) {
		t.Error("empty queue should have passed its own tail mark")
	}
	tk := q.alloc(cmdWritePixels, 1)
	q.commit(tk)
	mark = q.tailMark()
	if q.headPassed(mark) {
		t.Error("headPassed true with a committed task still queued")
	}
	q.pop(q.peek())
	if !q.headPassed(mark) {
		t.Error("headPassed false after the consumer drained the mark")
	}
}

func TestQueueConcurrentTransfer(t *testing.T) {
	const n = 100000
	q := newTaskQueue(64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			tk := q.peek()
			if tk == nil {
				continue
			}
			if got := binary.BigEndian.Uint32(tk.data); got != uint32(i) {
				t.Errorf("consumed %d, want %d", got, i)
			}
			q.pop(tk)
			i++
		}
	}()
	for i := 0; i < n; {
		tk := q.alloc(cmdWritePixels, 4)
		if tk == nil {
			continue
		}
		binary.BigEndian.PutUint32(tk.data, uint32(i))
		q.commit(tk)
		i++
	}
	wg.Wait()
	if q.pending() != 0 || q.queuedBytes() != 0 {
		t.Errorf("queue not empty after transfer: pending=%d bytes=%d", q.pending(), q.queuedBytes())
	}
}
