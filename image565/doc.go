// Package image565 provides an RGB565 image format for SPI display pipelines.
//
// RGB565 panels and framebuffer snapshots use 16 bits per pixel:
// 5 bits red, 6 bits green, 5 bits blue.
//
// Memory layout example for a 3-pixel row:
//
//	Pixels:  0       1       2
//	Colors:  red     green   blue
//	Values:  0xF800  0x07E0  0x001F
//
// Rows may carry trailing padding pixels when the producing framebuffer pads
// scanlines for alignment; Stride records the full row width in pixels.
//
// This package provides:
//
// - Pixel: A color type representing one RGB565 value
// - Model: A color model for converting standard Go colors to Pixel
// - RGB565: An image.Image implementation backed by native 16-bit pixels
//
// Example usage:
//
//	// Create a 240x240 image
//	img := image565.New(image.Rect(0, 0, 240, 240))
//
//	// Set a pixel to pure red
//	img.SetPixel(10, 20, image565.New565(0xFF, 0, 0))
//
//	// Get a pixel
//	p := img.PixelAt(10, 20)
//
//	// Use with standard Go image operations
//	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
package image565
