// Package fbmirror mirrors an RGB565 framebuffer onto an SPI display.
//
// Every frame is diffed against what the display already shows and only the
// changed scanline spans are re-encoded and transmitted, so content updates
// far faster than a full-frame transfer over the SPI link would allow.
//
// See the examples for how to use this package.
package fbmirror

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"periph.io/x/devices/v3/fbmirror/image565"
)

// Opts is the configuration for the mirror pipeline.
type Opts struct {
	// Display geometry in pixels.
	W int // Width of the mirrored framebuffer
	H int // Height of the mirrored framebuffer

	// StrideBytes is the scanline stride of the retained pixel buffers in
	// bytes. It must be even and at least W*2. 0 means tightly packed.
	StrideBytes int

	// XOffset and YOffset position the mirrored area inside the panel's
	// addressable RAM, for panels whose visible area does not start at
	// column or row zero.
	XOffset int
	YOffset int

	// TargetFPS caps the frame rate the update policy budgets for
	// (default: 60).
	TargetFPS float64

	// Interlace selects the adaptive update policy mode.
	Interlace InterlaceMode

	// AlignTransfers widens one-pixel spans so no transfer payload is
	// smaller than 4 bytes, required by some DMA-backed transports.
	AlignTransfers bool

	// Format is the wire pixel format of the panel (default: RGB565BE).
	Format PixelFormat

	// MaxTransferChunk bounds the payload size of a single queued
	// transfer task in bytes (default: 4096). Larger span payloads are
	// split across tasks.
	MaxTransferChunk int

	// QueueDepth is the SPI task queue capacity in tasks (default: 512),
	// rounded up to a power of two.
	QueueDepth int

	// Threaded runs the transmit side on its own goroutine. When false,
	// every task is transmitted synchronously as it is queued.
	Threaded bool

	// CoarseDiff enables the fast 4-pixels-at-a-time diff. It is ignored
	// when the geometry is incompatible (W%4 != 0 or StrideBytes%8 != 0).
	CoarseDiff bool

	// UsecsPerByte overrides the measured per-byte transfer time of the
	// link. 0 means take it from the transport when it reports one.
	UsecsPerByte float64

	// Logger receives pipeline diagnostics. nil means silent.
	Logger *slog.Logger
}

// Stats is a snapshot of pipeline throughput counters.
type Stats struct {
	Frames           int64   // Frames that queued at least one task
	InterlacedFrames int64   // Of which interlaced half-field updates
	BytesPushed      int64   // Total task bytes handed to the queue
	QueuedBytes      int64   // Bytes currently enqueued and unsent
	QueuedTasks      int     // Tasks currently enqueued and unsent
	InputFPS         float64 // Estimated incoming frame rate
	ProgressiveRate  int     // Progressive updates completed in the last second
	InterlacedRate   int     // Interlaced updates completed in the last second
}

// Pipeline is the handle for one mirrored display.
//
// Tick and Draw must be called from a single goroutine (the producer); the
// transmit side runs either inline or on the pipeline's consumer goroutine
// depending on Opts.Threaded.
type Pipeline struct {
	t   Transport
	log *slog.Logger

	// Geometry
	rect       image.Rectangle
	xOff, yOff int

	// Pixel buffers: cur holds the just-captured frame, ref holds what
	// the display is currently showing. Diffing the two yields the spans
	// to transmit.
	cur, ref *image565.RGB565
	staging  *image565.RGB565 // For lazy Draw conversion

	arena  *spanArena
	q      *taskQueue
	enc    encoder
	policy updatePolicy

	hist    frameHistogram
	updates updateHistory
	clock   func() int64

	// Write-cursor window last programmed into the display controller,
	// used to skip redundant cursor commands.
	spiX, spiEndX, spiY int

	// Frame boundaries in the task stream, for the two-frames-in-flight
	// cap.
	curFrameEnd  uint32
	prevFrameEnd uint32

	prevInterlaced bool

	coarse       bool
	align        bool
	threaded     bool
	chunk        int
	usecsPerByte float64
	rowBuf       []byte

	running atomic.Bool
	done    chan struct{}

	frames     atomic.Int64
	interlaced atomic.Int64
	bytesOut   atomic.Int64
	fpsBits    atomic.Uint64
	progRate   atomic.Int64
	intRate    atomic.Int64
}

var epoch = time.Now()

func monotonicUsecs() int64 {
	return time.Since(epoch).Microseconds()
}

// New creates a mirror pipeline transmitting through t.
//
// opts can be nil to use defaults (240x240, RGB565BE, 60fps, adaptive
// interlacing, synchronous transmit).
func New(t Transport, opts *Opts) (*Pipeline, error) {
	if t == nil {
		return nil, errors.New("fbmirror: transport is required")
	}
	if opts == nil {
		opts = &Opts{W: 240, H: 240}
	}

	if opts.W <= 0 || opts.H <= 0 {
		return nil, errors.New("fbmirror: width and height must be positive")
	}
	stride := opts.StrideBytes
	if stride == 0 {
		stride = opts.W * 2
	}
	if stride%2 != 0 || stride < opts.W*2 {
		return nil, errors.New("fbmirror: stride must be even and cover the width")
	}

	targetFPS := opts.TargetFPS
	if targetFPS == 0 {
		targetFPS = 60
	}
	if targetFPS < 0 {
		return nil, errors.New("fbmirror: target fps must be positive")
	}
	chunk := opts.MaxTransferChunk
	if chunk == 0 {
		chunk = defaultMaxTx
	}
	if chunk < 4 {
		return nil, errors.New("fbmirror: transfer chunk must be at least 4 bytes")
	}
	depth := opts.QueueDepth
	if depth == 0 {
		depth = 512
	}
	if depth < 4 {
		return nil, errors.New("fbmirror: queue depth must be at least 4")
	}

	logger := opts.Logger
	if logger == nil {
		logger = nopLogger()
	}

	enc := newEncoder(opts.Format)
	rect := image.Rect(0, 0, opts.W, opts.H)

	usecsPerByte := opts.UsecsPerByte
	if usecsPerByte == 0 {
		if m, ok := t.(interface{ UsecsPerByte() float64 }); ok {
			usecsPerByte = m.UsecsPerByte()
		}
	}
	if usecsPerByte <= 0 {
		// Assume a conservative 16Mbit/s link.
		usecsPerByte = 0.5
	}

	p := &Pipeline{
		t:    t,
		log:  logger,
		rect: rect,
		xOff: opts.XOffset,
		yOff: opts.YOffset,
		cur:  image565.NewWithStride(rect, stride),
		ref:  image565.NewWithStride(rect, stride),

		arena: newSpanArena(opts.W, opts.H),
		q:     newTaskQueue(depth),
		enc:   enc,
		policy: updatePolicy{
			mode:          opts.Interlace,
			targetFPS:     targetFPS,
			bytesPerPixel: enc.BytesPerPixel(),
			height:        opts.H,
			usecsPerByte:  usecsPerByte,
		},
		clock: monotonicUsecs,

		spiX:    -1,
		spiEndX: opts.W,
		spiY:    -1,

		coarse:       opts.CoarseDiff && canDiffCoarse(opts.W, stride),
		align:        opts.AlignTransfers,
		threaded:     opts.Threaded,
		chunk:        chunk,
		usecsPerByte: usecsPerByte,
		rowBuf:       make([]byte, opts.W*enc.BytesPerPixel()),
		done:         make(chan struct{}),
	}
	p.curFrameEnd = p.q.tailMark()
	p.prevFrameEnd = p.q.tailMark()

	p.running.Store(true)
	if p.threaded {
		go p.consume()
	}
	p.log.Debug("fbmirror pipeline running",
		"width", opts.W, "height", opts.H,
		"usecsPerByte", usecsPerByte, "threaded", p.threaded)
	return p, nil
}

// Bounds returns the bounds of the mirrored framebuffer.
func (p *Pipeline) Bounds() image.Rectangle {
	return p.rect
}

// ColorModel returns the color model of the mirrored framebuffer.
func (p *Pipeline) ColorModel() color.Model {
	return image565.Model
}

// String returns a string representation of the pipeline.
func (p *Pipeline) String() string {
	return fmt.Sprintf("fbmirror.Pipeline{%dx%d}", p.rect.Dx(), p.rect.Dy())
}

// PollInterval suggests how long the caller may wait before acquiring the
// next frame snapshot, based on the recent frame arrival histogram. Producer
// goroutine only.
func (p *Pipeline) PollInterval() time.Duration {
	return p.hist.pollInterval(p.clock())
}

// Stats returns a snapshot of pipeline throughput counters. Safe to call
// from any goroutine.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:           p.frames.Load(),
		InterlacedFrames: p.interlaced.Load(),
		BytesPushed:      p.bytesOut.Load(),
		QueuedBytes:      p.q.queuedBytes(),
		QueuedTasks:      p.q.pending(),
		InputFPS:         math.Float64frombits(p.fpsBits.Load()),
		ProgressiveRate:  int(p.progRate.Load()),
		InterlacedRate:   int(p.intRate.Load()),
	}
}

// Tick processes exactly one source frame.
//
// pixels must hold W*H tightly packed native RGB565 values. When forceFull
// is set the frame is always sent progressive, covering every changed
// scanline, regardless of the update policy.
//
// Calling Tick on a halted pipeline logs a warning and drops the frame.
func (p *Pipeline) Tick(pixels []uint16, forceFull bool) error {
	if !p.running.Load() {
		p.log.Warn("fbmirror not running, dropping frame")
		return nil
	}
	w, h := p.rect.Dx(), p.rect.Dy()
	if len(pixels) != w*h {
		return fmt.Errorf("fbmirror: frame size %d, want %d", len(pixels), w*h)
	}

	now := p.clock()

	prevInterlaced := p.prevInterlaced

	// Keep at most two rendered frames pending in the task queue; only
	// submit a new one once the older of those has been transmitted.
	p.waitPrevFrameDrained()

	for y := 0; y < h; y++ {
		copy(p.cur.Row(y), pixels[y*w:(y+1)*w])
	}

	// The policy's cost estimate needs the changed pixel count unless
	// interlacing can never trigger.
	changed := 0
	scanNeeded := true
	if p.policy.mode != InterlaceOff {
		changed = countChangedPixels(p.cur, p.ref)
		scanNeeded = changed > 0
	}

	inputFPS := p.hist.estimateFPS(now)
	p.fpsBits.Store(math.Float64bits(inputFPS))
	if inputFPS == 0 {
		// No recent arrival estimate; budget for the configured rate.
		inputFPS = p.policy.targetFPS
	}

	interlaced := p.policy.decide(changed, p.q.queuedBytes(), inputFPS, forceFull)

	p.arena.reset()
	var head *Span
	if scanNeeded || prevInterlaced {
		if p.coarse {
			head = diffCoarse4(p.cur, p.ref, interlaced, p.policy.parity, p.arena)
		} else {
			head = diffExact(p.cur, p.ref, interlaced, p.policy.parity, p.arena)
		}
	}
	if !interlaced {
		mergeSpans(head)
	}
	if p.align {
		alignSpans(head, w)
	}

	if head != nil {
		p.hist.add(now)
	}

	bytesTransferred := 0
	for s := head; s != nil; s = s.next {
		if !p.submitSpan(s, &bytesTransferred) {
			break
		}
	}

	if bytesTransferred > 0 {
		p.prevFrameEnd = p.curFrameEnd
		p.curFrameEnd = p.q.tailMark()
		p.updates.add(p.clock(), interlaced || prevInterlaced)
		p.frames.Add(1)
		if interlaced {
			p.interlaced.Add(1)
		}
		p.bytesOut.Add(int64(bytesTransferred))
	}
	prog, inter := p.updates.rates(p.clock())
	p.progRate.Store(int64(prog))
	p.intRate.Store(int64(inter))
	p.prevInterlaced = interlaced
	return nil
}

// Draw renders src into the pipeline's staging buffer and submits it as one
// frame, with the usual differential update. It lets any image.Image caller
// drive the mirror.
func (p *Pipeline) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if !p.running.Load() {
		return errors.New("fbmirror: halted")
	}
	dst = dst.Intersect(p.rect)
	if dst.Empty() {
		return nil
	}
	if p.staging == nil {
		p.staging = image565.New(p.rect)
	}
	draw.Draw(p.staging, dst, src, sp, draw.Src)
	return p.Tick(p.staging.Pix, false)
}

// Halt stops the pipeline: in-flight tasks are drained, the consumer
// goroutine exits and further frames are dropped. Halt is idempotent.
func (p *Pipeline) Halt() error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}
	if p.threaded {
		<-p.done
	} else {
		for p.drainOne() {
		}
	}
	p.log.Debug("fbmirror pipeline stopped")
	return nil
}

// backpressureWarnUsecs is the sleep estimate above which the producer logs
// that the transport is persistently underrunning the content rate.
const backpressureWarnUsecs = 1000

// waitPrevFrameDrained blocks until the previous-to-last frame's tasks have
// been fully transmitted, sleeping proportionally to the estimated drain
// time rather than spinning.
func (p *Pipeline) waitPrevFrameDrained() {
	if !p.threaded {
		// Synchronous mode transmits inline; nothing is ever pending
		// between frames.
		return
	}
	warned := false
	for p.running.Load() && !p.q.headPassed(p.prevFrameEnd) {
		usecs := float64(p.q.queuedBytes()) * p.usecsPerByte * 0.4
		if usecs > backpressureWarnUsecs && !warned {
			p.log.Warn("spi task queue draining slowly",
				"queuedBytes", p.q.queuedBytes(), "sleepUsecs", int64(usecs))
			warned = true
		}
		if usecs < 50 {
			usecs = 50
		}
		time.Sleep(time.Duration(usecs) * time.Microsecond)
	}
}

// allocTask stages the next queue slot, backing off while the ring is full.
// It returns nil only when the pipeline is halted mid-frame.
func (p *Pipeline) allocTask(cmd byte, size int) *task {
	for {
		if t := p.q.alloc(cmd, size); t != nil {
			return t
		}
		if !p.threaded {
			p.drainOne()
			continue
		}
		if !p.running.Load() {
			return nil
		}
		usecs := float64(p.q.queuedBytes()) * p.usecsPerByte * 0.4
		if usecs < 50 {
			usecs = 50
		}
		time.Sleep(time.Duration(usecs) * time.Microsecond)
	}
}

func (p *Pipeline) commitTask(t *task) {
	p.q.commit(t)
	if !p.threaded {
		p.drainOne()
	}
}

// queueWindowTask enqueues a cursor-window command covering [start, end].
func (p *Pipeline) queueWindowTask(cmd byte, start, end int) bool {
	t := p.allocTask(cmd, 4)
	if t == nil {
		return false
	}
	binary.BigEndian.PutUint16(t.data[0:], uint16(start))
	binary.BigEndian.PutUint16(t.data[2:], uint16(end))
	p.commitTask(t)
	return true
}

// submitSpan queues the cursor-window commands and encoded pixel payload for
// one span, advancing the reference buffer in lockstep with encoding. It
// returns false when the pipeline halted mid-frame.
func (p *Pipeline) submitSpan(s *Span, bytesTransferred *int) bool {
	w, h := p.rect.Dx(), p.rect.Dy()

	// Update the write cursor only when the target position differs from
	// the last-programmed cursor state.
	if p.spiY != s.Y {
		if !p.queueWindowTask(cmdRowWindow, p.yOff+s.Y, p.yOff+h-1) {
			return false
		}
		*bytesTransferred += 5
		p.spiY = s.Y
	}

	if s.EndY > s.Y+1 {
		// Multiline span: the X window must match exactly so the
		// payload wraps at the right column.
		if p.spiX != s.X || p.spiEndX != s.EndX {
			if !p.queueWindowTask(cmdColumnWindow, p.xOff+s.X, p.xOff+s.EndX-1) {
				return false
			}
			*bytesTransferred += 5
			p.spiX, p.spiEndX = s.X, s.EndX
		}
	} else {
		if p.spiEndX < s.EndX {
			// Need to push the X end window. Peek ahead to cater
			// to the next multiline span if that will be
			// compatible, saving its cursor command.
			nextEndX := w
			for j := s.next; j != nil; j = j.next {
				if j.EndY > j.Y+1 {
					if j.EndX >= s.EndX {
						nextEndX = j.EndX
					}
					break
				}
			}
			if !p.queueWindowTask(cmdColumnWindow, p.xOff+s.X, p.xOff+nextEndX-1) {
				return false
			}
			*bytesTransferred += 5
			p.spiX, p.spiEndX = s.X, nextEndX
		} else if p.spiX != s.X {
			if !p.queueWindowTask(cmdColumnWindow, p.xOff+s.X, p.xOff+p.spiEndX-1) {
				return false
			}
			*bytesTransferred += 5
			p.spiX = s.X
		}
	}

	return p.submitSpanPixels(s, bytesTransferred)
}

// submitSpanPixels encodes the span's pixel rectangle into one or more
// write-pixels tasks, splitting payloads at the transfer chunk size. The
// reference buffer's bytes are overwritten with the current buffer's for
// exactly the pixels encoded, so the diff baseline advances only for content
// actually transmitted.
func (p *Pipeline) submitSpanPixels(s *Span, bytesTransferred *int) bool {
	remaining := s.Size * p.enc.BytesPerPixel()

	size := remaining
	if size > p.chunk {
		size = p.chunk
	}
	t := p.allocTask(cmdWritePixels, size)
	if t == nil {
		return false
	}
	fill := 0

	for y := s.Y; y < s.EndY; y++ {
		endX := s.EndX
		if y+1 == s.EndY {
			endX = s.LastScanEndX
		}
		row := p.cur.Row(y)[s.X:endX]
		n := p.enc.EncodeScanline(p.rowBuf, row, s.X)
		copy(p.ref.Row(y)[s.X:endX], row)

		off := 0
		for off < n {
			c := copy(t.data[fill:], p.rowBuf[off:n])
			fill += c
			off += c
			if fill == len(t.data) {
				p.commitTask(t)
				*bytesTransferred += fill + 1
				remaining -= fill
				if remaining == 0 {
					t = nil
					break
				}
				size = remaining
				if size > p.chunk {
					size = p.chunk
				}
				t = p.allocTask(cmdWriteContinue, size)
				if t == nil {
					return false
				}
				fill = 0
			}
		}
	}
	return true
}
