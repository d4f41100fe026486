package fbmirror

import "encoding/binary"

// PixelFormat selects the wire pixel encoding of the destination panel.
type PixelFormat int

const (
	// RGB565BE byte-swaps native RGB565 into the big-endian order most
	// SPI display controllers expect. 2 bytes per pixel.
	RGB565BE PixelFormat = iota
	// RGB666 expands RGB565 into the 18-bit-per-pixel wire format used by
	// panels driven in 6-6-6 color mode. 3 bytes per pixel.
	RGB666
)

// encoder converts native RGB565 pixels into wire-format bytes.
type encoder interface {
	// BytesPerPixel returns the encoded size of one pixel.
	BytesPerPixel() int
	// EncodeScanline encodes src into dst and returns the number of bytes
	// written. startX is the source column of src[0], used to keep the
	// paired swap on even pixel boundaries. dst must hold
	// len(src)*BytesPerPixel() bytes.
	EncodeScanline(dst []byte, src []uint16, startX int) int
}

func newEncoder(f PixelFormat) encoder {
	if f == RGB666 {
		return rgb666Encoder{}
	}
	return rgb565BEEncoder{}
}

// rgb565BEEncoder byte-swaps pixels two at a time through one 32-bit value,
// with single-pixel handling for odd leading and trailing columns.
type rgb565BEEncoder struct{}

func (rgb565BEEncoder) BytesPerPixel() int { return 2 }

func (rgb565BEEncoder) EncodeScanline(dst []byte, src []uint16, startX int) int {
	x := 0
	o := 0
	if startX&1 != 0 && x < len(src) {
		binary.BigEndian.PutUint16(dst[o:], src[x])
		x++
		o += 2
	}
	for x+1 < len(src) {
		u := uint32(src[x]) | uint32(src[x+1])<<16
		u = (u&0xFF00FF00)>>8 | (u&0x00FF00FF)<<8
		binary.LittleEndian.PutUint32(dst[o:], u)
		x += 2
		o += 4
	}
	if x < len(src) {
		binary.BigEndian.PutUint16(dst[o:], src[x])
		o += 2
	}
	return o
}

// rgb666Encoder expands 16-bit RGB565 to 3 bytes per pixel. The 5-bit red and
// blue channels are widened to 6 bits by replicating the highest bit as the
// lowest, a cheap approximation of accurate upscaling.
type rgb666Encoder struct{}

func (rgb666Encoder) BytesPerPixel() int { return 3 }

func (rgb666Encoder) EncodeScanline(dst []byte, src []uint16, _ int) int {
	o := 0
	for _, p := range src {
		r := byte(p>>8) & 0xF8
		g := byte(p>>3) & 0xFC
		b := byte(p<<3) & 0xF8
		dst[o] = r | r>>5
		dst[o+1] = g
		dst[o+2] = b | b>>5
		o += 3
	}
	return o
}
