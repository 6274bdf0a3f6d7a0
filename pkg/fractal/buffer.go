package fractal

import (
	"fmt"
	"image"
	"image/color"
)

// PixelBuffer is a row-major ARGB image, addressed as row*Width+col.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint32
}

func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint32, width*height),
	}
}

// Row returns the pixels of one row. The slice aliases Pix.
func (b *PixelBuffer) Row(row int) []uint32 {
	return b.Rows(row, row+1)
}

// Rows returns the pixels of rows [start, end). The slice aliases Pix.
func (b *PixelBuffer) Rows(start, end int) []uint32 {
	return b.Pix[start*b.Width : end*b.Width]
}

// SetRows copies whole rows starting at row start.
func (b *PixelBuffer) SetRows(start int, pix []uint32) error {
	if b.Width <= 0 || len(pix)%b.Width != 0 {
		return fmt.Errorf("band of %d pixels is not whole rows of width %d", len(pix), b.Width)
	}
	end := start + len(pix)/b.Width
	if start < 0 || end > b.Height {
		return fmt.Errorf("rows [%d, %d) outside image height %d", start, end, b.Height)
	}
	copy(b.Rows(start, end), pix)
	return nil
}

func (b *PixelBuffer) ColorModel() color.Model {
	return color.NRGBAModel
}

func (b *PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

func (b *PixelBuffer) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.NRGBA{}
	}
	argb := b.Pix[y*b.Width+x]
	return color.NRGBA{
		R: uint8(argb >> 16),
		G: uint8(argb >> 8),
		B: uint8(argb),
		A: uint8(argb >> 24),
	}
}
