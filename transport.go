package fbmirror

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Transport carries encoded display commands to the panel. Send transmits
// one command byte followed by its payload, switching whatever line or
// framing the bus uses to distinguish the two.
//
// Implementations may be called from the pipeline's consumer goroutine only;
// they do not need to be safe for concurrent use.
type Transport interface {
	Send(cmd byte, data []byte) error
}

// SPI is a Transport over a periph.io SPI connection with a Data/Command
// GPIO pin, the common 4-wire wiring of ST7789-class controllers.
type SPI struct {
	c     conn.Conn
	dc    gpio.PinOut
	maxTx int

	usecsPerByte float64
}

// defaultMaxTx bounds a single bus transfer when the port does not report
// its own limit.
const defaultMaxTx = 4096

// NewSPI connects to the panel on the given SPI port.
//
// The port is configured for Mode0, 8-bit transfers at the requested
// frequency. The dc (Data/Command) pin must be provided and configured as an
// output.
func NewSPI(p spi.Port, dc gpio.PinOut, f physic.Frequency) (*SPI, error) {
	if dc == nil {
		return nil, errors.New("fbmirror: dc pin is required")
	}
	if f <= 0 {
		return nil, errors.New("fbmirror: spi frequency must be positive")
	}

	c, err := p.Connect(f, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("fbmirror: failed to connect spi: %w", err)
	}

	maxTx := defaultMaxTx
	if l, ok := c.(conn.Limits); ok {
		if m := l.MaxTxSize(); m > 0 && m < maxTx {
			maxTx = m
		}
	}

	return &SPI{
		c:     c,
		dc:    dc,
		maxTx: maxTx,
		// 8 bits per byte on the wire; f is stored in micro-hertz.
		usecsPerByte: 8 * 1e6 / (float64(f) / float64(physic.Hertz)),
	}, nil
}

// UsecsPerByte returns the measured transfer time per byte on this link,
// derived from the configured clock rate.
func (s *SPI) UsecsPerByte() float64 {
	return s.usecsPerByte
}

// Send transmits cmd with the DC pin low, then data with DC high, splitting
// data into chunks the port can accept.
func (s *SPI) Send(cmd byte, data []byte) error {
	if err := s.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := s.c.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := s.dc.Out(gpio.High); err != nil {
		return err
	}
	for off := 0; off < len(data); off += s.maxTx {
		end := off + s.maxTx
		if end > len(data) {
			end = len(data)
		}
		if err := s.c.Tx(data[off:end], nil); err != nil {
			return err
		}
	}
	return nil
}
