package mapgen

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Rasterizer converts an SVG document to PNG bytes of the given pixel width.
type Rasterizer interface {
	Rasterize(svg []byte, width int) ([]byte, error)
}

// OKSVGRasterizer rasterizes with oksvg onto an opaque background.
type OKSVGRasterizer struct {
	Background color.Color
}

func (r OKSVGRasterizer) Rasterize(svg []byte, width int) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("rasterize: panic: %v", p)
		}
	}()

	if width <= 0 {
		return nil, fmt.Errorf("rasterize: invalid width %d", width)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("rasterize: parse svg: %w", err)
	}
	vb := icon.ViewBox
	if vb.W <= 0 || vb.H <= 0 {
		return nil, errors.New("rasterize: svg has no viewBox")
	}
	height := int(math.Round(float64(width) * vb.H / vb.W))
	if height <= 0 {
		return nil, fmt.Errorf("rasterize: invalid height %d", height)
	}

	bg := r.Background
	if bg == nil {
		bg = color.White
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	icon.SetTarget(0, 0, float64(width), float64(height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("rasterize: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
