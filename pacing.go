package fbmirror

import "time"

const (
	// Arrival samples older than this are evicted, so a drop from 60Hz to
	// 1Hz content empties the histogram within 10 seconds and lets the
	// pipeline idle.
	arrivalHorizonUsecs = 10000000
	arrivalCap          = 600

	// Completed-update records are only kept over a short window, enough
	// for throughput statistics.
	updateHorizonUsecs = 1000000
	updateCap          = 240
)

// frameHistogram is a capped circular record of recent frame arrival
// timestamps, used to estimate the current incoming frame rate.
type frameHistogram struct {
	times [arrivalCap]int64
	head  int // index of the oldest sample
	size  int
}

func (h *frameHistogram) add(now int64) {
	if h.size == len(h.times) {
		h.head = (h.head + 1) % len(h.times)
		h.size--
	}
	h.times[(h.head+h.size)%len(h.times)] = now
	h.size++
	h.expire(now)
}

func (h *frameHistogram) expire(now int64) {
	for h.size > 0 && now-h.times[h.head] >= arrivalHorizonUsecs {
		h.head = (h.head + 1) % len(h.times)
		h.size--
	}
}

// estimateFPS returns the estimated incoming frame rate, or 0 when there are
// not enough recent samples to tell.
func (h *frameHistogram) estimateFPS(now int64) float64 {
	h.expire(now)
	if h.size < 2 {
		return 0
	}
	oldest := h.times[h.head]
	newest := h.times[(h.head+h.size-1)%len(h.times)]
	if newest <= oldest {
		return 0
	}
	return float64(h.size-1) * 1e6 / float64(newest-oldest)
}

// pollInterval suggests how long the caller may wait before polling the
// frame source again. With a healthy estimate it tracks the incoming frame
// interval; with sparse or no recent frames it allows a longer sleep.
func (h *frameHistogram) pollInterval(now int64) time.Duration {
	fps := h.estimateFPS(now)
	if fps < 1 {
		return 100 * time.Millisecond
	}
	return time.Duration(1e6/fps) * time.Microsecond
}

// updateRecord marks one completed display update.
type updateRecord struct {
	time       int64
	interlaced bool
}

// updateHistory is a capped circular record of completed-update timestamps,
// used for rate statistics.
type updateHistory struct {
	records [updateCap]updateRecord
	head    int
	size    int
}

func (u *updateHistory) add(now int64, interlaced bool) {
	if u.size == len(u.records) {
		u.head = (u.head + 1) % len(u.records)
		u.size--
	}
	u.records[(u.head+u.size)%len(u.records)] = updateRecord{time: now, interlaced: interlaced}
	u.size++
	u.expire(now)
}

func (u *updateHistory) expire(now int64) {
	for u.size > 0 && now-u.records[u.head].time >= updateHorizonUsecs {
		u.head = (u.head + 1) % len(u.records)
		u.size--
	}
}

// rates returns the progressive and interlaced update counts inside the
// history window.
func (u *updateHistory) rates(now int64) (progressive, interlaced int) {
	u.expire(now)
	for i := 0; i < u.size; i++ {
		if u.records[(u.head+i)%len(u.records)].interlaced {
			interlaced++
		} else {
			progressive++
		}
	}
	return progressive, interlaced
}
