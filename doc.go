// Package fbmirror mirrors an RGB565 framebuffer onto an SPI display.
//
// The pipeline diffs each submitted frame against what the panel already
// shows, merges the changed pixels into rectangular spans, and transmits only
// those spans. When content changes faster than the SPI link can carry it,
// the update policy adaptively drops to interlaced half-field updates so
// motion stays smooth instead of the queue falling behind.
//
// # Hardware Connection
//
// Connect an ST7789/ILI9341-class panel to your system via SPI:
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SCL/CLK     → SPI Clock (SCLK)
//	SDA/MOSI    → SPI Data (MOSI)
//	DC          → GPIO (any available pin)
//	CS          → SPI Chip Select (or GND if always selected)
//
// # Basic Usage
//
// Example of mirroring frames onto a 240x240 panel:
//
//	package main
//
//	import (
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/physic"
//		"periph.io/x/conn/v3/spi/spireg"
//		"periph.io/x/devices/v3/fbmirror"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		// Initialize periph.io
//		host.Init()
//
//		// Open SPI bus
//		spiBus, _ := spireg.Open("")
//
//		// Get Data/Command GPIO pin
//		dcPin := gpioreg.ByName("GPIO25")
//
//		// Create the transport and the pipeline
//		spi, _ := fbmirror.NewSPI(spiBus, dcPin, 40*physic.MegaHertz)
//		p, _ := fbmirror.New(spi, &fbmirror.Opts{
//			W: 240,
//			H: 240,
//		})
//		defer p.Halt()
//
//		frame := make([]uint16, 240*240)
//		for {
//			// ... render or capture into frame ...
//			p.Tick(frame, false)
//			time.Sleep(p.PollInterval())
//		}
//	}
//
// # Frame Submission
//
// Tick takes a full frame of tightly packed native RGB565 pixels. The
// pipeline retains the previous frame internally, so the caller always
// submits complete frames and never tracks dirty regions itself:
//
//	p.Tick(frame, false)
//
// Pass forceFull=true to send every changed scanline progressively in one
// update, e.g. after the panel was re-initialized:
//
//	p.Tick(frame, true)
//
// Any image.Image can drive the mirror through the display.Drawer interface;
// the image is converted into the staging buffer and submitted as one frame:
//
//	p.Draw(p.Bounds(), img, image.Point{})
//
// # Adaptive Interlacing
//
// The update policy estimates the transfer time of each frame from the
// changed pixel count, the bytes still queued on the link and the measured
// per-byte wire time. Frames that fit the time budget are sent progressive
// and pixel-exact. Frames that would fall behind are sent as interlaced
// half-field updates, alternating between even and odd scanlines, which
// halves the transfer time at the cost of transient combing on motion. Once
// content settles, the next update restores every stale scanline.
//
// The policy is configurable through Opts.Interlace:
//
//	fbmirror.InterlaceAuto   // adaptive (default)
//	fbmirror.InterlaceOff    // always progressive, pixel-exact
//	fbmirror.InterlaceAlways // every non-empty update is a half-field
//
// # Threaded Transmission
//
// With Opts.Threaded the SPI transmit side runs on its own goroutine behind
// a lock-free task queue, overlapping diffing and encoding of the next frame
// with transmission of the previous one. At most two frames are in flight;
// the producer blocks on the third, so latency stays bounded when content
// outruns the link. Without it every task is transmitted inline and Tick
// returns only after the frame is on the wire.
//
// # Performance
//
// On a 40MHz SPI link a full 240x240 RGB565 frame is about 29ms of wire
// time. Differential updates reduce typical UI content to well under a
// millisecond per frame, and interlacing keeps full-motion content at half
// the full-frame cost. The optional coarse diff (Opts.CoarseDiff) compares
// four pixels per step for a further CPU reduction on large frames, at the
// cost of slightly padded span boundaries.
package fbmirror
