package fbmirror

import (
	"bytes"
	"testing"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
)

func TestNewSPIValidation(t *testing.T) {
	port := &spitest.Record{}
	if _, err := NewSPI(port, nil, 40*physic.MegaHertz); err == nil {
		t.Error("NewSPI accepted a nil dc pin")
	}
	dc := &gpiotest.Pin{N: "DC"}
	if _, err := NewSPI(port, dc, 0); err == nil {
		t.Error("NewSPI accepted a zero frequency")
	}
}

func TestNewSPIUsecsPerByte(t *testing.T) {
	tests := []struct {
		f    physic.Frequency
		want float64
	}{
		// 16 MHz moves 2e6 bytes/s, 0.5 us per byte.
		{16 * physic.MegaHertz, 0.5},
		{40 * physic.MegaHertz, 0.2},
	}
	for _, tt := range tests {
		port := &spitest.Record{}
		dc := &gpiotest.Pin{N: "DC"}
		s, err := NewSPI(port, dc, tt.f)
		if err != nil {
			t.Fatal(err)
		}
		if got := s.UsecsPerByte(); got != tt.want {
			t.Errorf("UsecsPerByte at %v = %v, want %v", tt.f, got, tt.want)
		}
	}
}

func TestSPISendCommandAndData(t *testing.T) {
	port := &spitest.Record{}
	dc := &gpiotest.Pin{N: "DC"}
	s, err := NewSPI(port, dc, 40*physic.MegaHertz)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Send(cmdColumnWindow, []byte{0x00, 0x0A, 0x00, 0xEF}); err != nil {
		t.Fatal(err)
	}

	if len(port.Ops) != 2 {
		t.Fatalf("recorded %d transfers, want 2", len(port.Ops))
	}
	if !bytes.Equal(port.Ops[0].W, []byte{cmdColumnWindow}) {
		t.Errorf("command transfer = % X", port.Ops[0].W)
	}
	if !bytes.Equal(port.Ops[1].W, []byte{0x00, 0x0A, 0x00, 0xEF}) {
		t.Errorf("data transfer = % X", port.Ops[1].W)
	}
	// DC ends high after the payload.
	if dc.L != gpio.High {
		t.Error("dc pin not left high after data")
	}
}

func TestSPISendCommandOnly(t *testing.T) {
	port := &spitest.Record{}
	dc := &gpiotest.Pin{N: "DC"}
	s, err := NewSPI(port, dc, 40*physic.MegaHertz)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Send(cmdWritePixels, nil); err != nil {
		t.Fatal(err)
	}
	if len(port.Ops) != 1 {
		t.Fatalf("recorded %d transfers, want 1", len(port.Ops))
	}
	if dc.L != gpio.Low {
		t.Error("dc pin not low after a bare command")
	}
}

// chunkConn records the size of every transfer to verify payload splitting.
type chunkConn struct {
	sizes []int
}

func (c *chunkConn) String() string { return "chunk" }

func (c *chunkConn) Tx(w, r []byte) error {
	c.sizes = append(c.sizes, len(w))
	return nil
}

func (c *chunkConn) Duplex() conn.Duplex { return conn.Half }

func TestSPISendChunksAtMaxTx(t *testing.T) {
	cc := &chunkConn{}
	s := &SPI{c: cc, dc: &gpiotest.Pin{N: "DC"}, maxTx: 8}

	if err := s.Send(cmdWritePixels, make([]byte, 20)); err != nil {
		t.Fatal(err)
	}

	// One command byte, then 20 payload bytes in 8+8+4.
	want := []int{1, 8, 8, 4}
	if len(cc.sizes) != len(want) {
		t.Fatalf("transfer sizes = %v, want %v", cc.sizes, want)
	}
	for i, n := range want {
		if cc.sizes[i] != n {
			t.Fatalf("transfer sizes = %v, want %v", cc.sizes, want)
		}
	}
}
