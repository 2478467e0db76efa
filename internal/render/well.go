// Package render composites well views and thumbnails using fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/incuview/viewer/internal/annotation"
	"github.com/incuview/viewer/internal/plate"
)

// overlayAlpha is the opacity of the GFP overlay composited onto the
// brightfield base.
const overlayAlpha = 128

// Config contains renderer configuration.
type Config struct {
	ThumbnailSize int
}

// Renderer turns decoded pixel buffers into encoded PNG views.
type Renderer struct {
	config     Config
	bufferPool sync.Pool
}

// NewRenderer creates a renderer.
func NewRenderer(cfg Config) *Renderer {
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = 80
	}
	return &Renderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

// RenderView encodes the brightfield base image as PNG, compositing the GFP
// channel as a semi-transparent green layer when overlay is non-nil.
func (r *Renderer) RenderView(base, overlay *plate.Image) ([]byte, error) {
	if base == nil {
		return nil, fmt.Errorf("render view: no base image")
	}

	dc := gg.NewContext(base.Width, base.Height)
	dc.SetColor(color.Black)
	dc.Clear()
	dc.DrawImage(grayImage(base), 0, 0)

	if overlay != nil {
		dc.DrawImage(greenOverlay(overlay), 0, 0)
	}

	return r.encode(dc.Image())
}

// RenderThumbnail scales an image down to the configured thumbnail size and,
// when the well carries an annotation, strokes a colored border around it.
func (r *Renderer) RenderThumbnail(img *plate.Image, label annotation.Label) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("render thumbnail: no image")
	}

	size := r.config.ThumbnailSize
	src := grayImage(img)
	thumb := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	dc := gg.NewContextForRGBA(thumb)
	if c, ok := labelColor(label); ok {
		dc.SetColor(c)
		dc.SetLineWidth(4)
		dc.DrawRectangle(0, 0, float64(size), float64(size))
		dc.Stroke()
	}

	return r.encode(dc.Image())
}

// labelColor maps an annotation label to its border color.
func labelColor(label annotation.Label) (color.Color, bool) {
	switch label {
	case annotation.Singlet:
		return color.RGBA{G: 255, A: 255}, true
	case annotation.Doublet:
		return color.RGBA{R: 255, A: 255}, true
	case annotation.Inconclusive:
		return color.RGBA{R: 255, G: 255, A: 255}, true
	default:
		return nil, false
	}
}

func grayImage(img *plate.Image) *image.Gray {
	return &image.Gray{
		Pix:    img.Pix,
		Stride: img.Width,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

// greenOverlay builds the fluorescence layer: green intensity from the GFP
// pixels at constant partial opacity.
func greenOverlay(img *plate.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i, v := range img.Pix {
		out.Pix[i*4+1] = v
		out.Pix[i*4+3] = overlayAlpha
	}
	return out
}

func (r *Renderer) encode(img image.Image) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, img); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
