// Package image565 provides a native RGB565 pixel buffer for SPI display pipelines.
//
// Pixels are stored as 16-bit values in the host's native layout
// (rrrrrggggggbbbbb), one uint16 per pixel. The row stride is expressed in
// pixels and may exceed the image width when the producer pads scanlines for
// alignment. This package provides the Pixel color type and the RGB565 image
// implementation.
package image565

import (
	"image"
	"image/color"
)

// Pixel is a single RGB565 color value: 5 bits red, 6 bits green, 5 bits blue.
type Pixel uint16

// New565 packs 8-bit channel values into a Pixel.
func New565(r, g, b uint8) Pixel {
	return Pixel(uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3))
}

// RGBA converts the Pixel to standard RGBA.
// The 5/6-bit channels are expanded to 8 bits by replicating their high bits,
// then scaled to 16-bit.
func (p Pixel) RGBA() (r, g, b, a uint32) {
	r8 := uint32(p>>11) & 0x1F
	g8 := uint32(p>>5) & 0x3F
	b8 := uint32(p) & 0x1F
	r8 = r8<<3 | r8>>2
	g8 = g8<<2 | g8>>4
	b8 = b8<<3 | b8>>2
	return r8 * 0x101, g8 * 0x101, b8 * 0x101, 0xFFFF
}

// toPixel converts any color.Color to Pixel.
func toPixel(c color.Color) color.Color {
	if p, ok := c.(Pixel); ok {
		return p
	}
	r, g, b, _ := c.RGBA()
	return New565(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Model converts colors to Pixel.
var Model = color.ModelFunc(toPixel)

// RGB565 is an in-memory RGB565 image. Stride is measured in pixels per row
// and must be at least the image width.
type RGB565 struct {
	Pix    []uint16        // Pixel data, one uint16 per pixel
	Stride int             // Pixels per row (may exceed width for alignment)
	Rect   image.Rectangle // Image bounds
}

// New creates a tightly packed RGB565 image with the specified bounds.
func New(r image.Rectangle) *RGB565 {
	return NewWithStride(r, r.Dx()*2)
}

// NewWithStride creates an RGB565 image with an explicit row stride in bytes.
// The stride must be even and at least twice the image width.
func NewWithStride(r image.Rectangle, strideBytes int) *RGB565 {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &RGB565{Rect: r}
	}
	if strideBytes%2 != 0 || strideBytes < w*2 {
		panic("image565: stride must be even and cover the image width")
	}

	stride := strideBytes / 2
	return &RGB565{
		Pix:    make([]uint16, stride*h),
		Stride: stride,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *RGB565) ColorModel() color.Model {
	return Model
}

// Bounds returns the image bounds.
func (p *RGB565) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (p *RGB565) At(x, y int) color.Color {
	return p.PixelAt(x, y)
}

// PixelAt returns the Pixel at (x, y).
func (p *RGB565) PixelAt(x, y int) Pixel {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return 0
	}
	return Pixel(p.Pix[p.PixOffset(x, y)])
}

// Set sets the color of the pixel at (x, y).
func (p *RGB565) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.PixOffset(x, y)] = uint16(Model.Convert(c).(Pixel))
}

// SetPixel sets the Pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (p *RGB565) SetPixel(x, y int, c Pixel) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.Pix[p.PixOffset(x, y)] = uint16(c)
}

// PixOffset returns the index into Pix for the pixel at (x, y).
func (p *RGB565) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x - p.Rect.Min.X)
}

// Row returns the pixels of scanline y, excluding any stride padding.
func (p *RGB565) Row(y int) []uint16 {
	start := (y - p.Rect.Min.Y) * p.Stride
	return p.Pix[start : start+p.Rect.Dx()]
}
