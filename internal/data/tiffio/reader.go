// Package tiffio decodes single-plane TIFF files into grayscale pixel
// buffers. It is the default decode collaborator for the image cache.
package tiffio

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/tiff"

	"github.com/incuview/viewer/internal/plate"
)

// Decoder reads TIFF files from disk.
type Decoder struct{}

// NewDecoder creates a TIFF decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode reads the file at path and converts it to an 8-bit grayscale
// buffer. Multi-sample images are converted through the standard gray model.
func (d *Decoder) Decode(path string) (*plate.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode tiff: %w", err)
	}
	return fromImage(img), nil
}

func fromImage(img image.Image) *plate.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := &plate.Image{Width: w, Height: h, Pix: make([]uint8, w*h)}

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			copy(out.Pix[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
		}
		return out
	}

	if gray16, ok := img.(*image.Gray16); ok {
		// 16-bit microscopy exports keep the high byte.
		for y := 0; y < h; y++ {
			row := gray16.Pix[y*gray16.Stride:]
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = row[x*2]
			}
		}
		return out
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			out.Pix[y*w+x] = g.Y
		}
	}
	return out
}
