package fbmirror

// InterlaceMode selects how the update policy may split frames.
type InterlaceMode int

const (
	// InterlaceAuto drops to interlaced half-field updates whenever the
	// estimated transfer time for a frame exceeds the time budget.
	InterlaceAuto InterlaceMode = iota
	// InterlaceOff always sends progressive updates.
	InterlaceOff
	// InterlaceAlways sends every non-empty frame as an interlaced update.
	InterlaceAlways
)

// timesliceUsecs is the fixed share of wall time the pipeline may spend
// transferring, divided by the desired frame rate to form the per-frame
// budget.
const timesliceUsecs = 1500000

// updatePolicy decides, once per frame, between a progressive update and an
// interlaced half-resolution update, and owns the interlace field parity.
type updatePolicy struct {
	mode          InterlaceMode
	targetFPS     float64
	bytesPerPixel int
	height        int
	usecsPerByte  float64

	// parity is 0 or 1, denoting even or odd scanlines, and flips each
	// time an interlaced update is issued. Progressive updates ignore it.
	parity int
}

// decide returns true when this frame should be sent interlaced.
//
// The cost estimate charges the changed pixels at the wire pixel size plus a
// per-scanline cursor overhead, on top of whatever is still queued and
// unconsumed on the SPI link. forceFull always wins and yields a progressive
// update, e.g. on resume from idle, so stale half-fields are never left
// visible.
func (p *updatePolicy) decide(changedPixels int, queuedBytes int64, inputFPS float64, forceFull bool) bool {
	var interlaced bool
	switch p.mode {
	case InterlaceOff:
		interlaced = false
	case InterlaceAlways:
		interlaced = changedPixels > 0
	default:
		desired := inputFPS
		if desired > p.targetFPS {
			desired = p.targetFPS
		}
		if desired < 1 {
			desired = 1
		}
		budget := timesliceUsecs / desired
		bytesToSend := float64(changedPixels*p.bytesPerPixel + p.height*2)
		interlaced = (bytesToSend+float64(queuedBytes))*p.usecsPerByte > budget
	}
	if forceFull {
		interlaced = false
	}
	if interlaced {
		p.parity = 1 - p.parity
	}
	return interlaced
}
