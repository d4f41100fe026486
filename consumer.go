package fbmirror

import "time"

// consume drains the task queue onto the transport until the pipeline is
// halted, then flushes whatever is still in flight. Runs on its own
// goroutine in threaded mode.
func (p *Pipeline) consume() {
	defer close(p.done)
	for p.running.Load() {
		if !p.drainOne() {
			time.Sleep(50 * time.Microsecond)
		}
	}
	for p.drainOne() {
	}
}

// drainOne transmits the task at the queue head, if any. A transport error
// is logged and the task released anyway: there is no mid-frame rollback,
// the next diff rebuilds from whatever actually reached the panel.
func (p *Pipeline) drainOne() bool {
	t := p.q.peek()
	if t == nil {
		return false
	}
	if err := p.t.Send(t.cmd, t.data); err != nil {
		p.log.Error("spi transfer failed", "cmd", t.cmd, "bytes", len(t.data), "err", err)
	}
	p.q.pop(t)
	return true
}
