package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

// Processor implements analysis.ImageProcessor.
type Processor struct {
	JPEGQuality int
	BoxColor    color.Color
	BoxWidth    int
	// LabelFields draws each field's index next to its box.
	LabelFields bool
}

// NewProcessor returns a Processor with the diagnostic defaults
// (red 2px outlines, numbered boxes, JPEG quality 90).
func NewProcessor() *Processor {
	return &Processor{
		JPEGQuality: 90,
		BoxColor:    color.RGBA{R: 255, A: 255},
		BoxWidth:    2,
		LabelFields: true,
	}
}

// Resize scales the image to targetWidth keeping the aspect ratio and
// re-encodes it in its original format. The input slice is not modified.
func (p *Processor) Resize(data []byte, targetWidth int) (analysis.Image, error) {
	if targetWidth <= 0 {
		return analysis.Image{}, fmt.Errorf("%w: target width must be positive, got %d", analysis.ErrInvalidImage, targetWidth)
	}
	src, format, err := decode(data)
	if err != nil {
		return analysis.Image{}, err
	}

	b := src.Bounds()
	height := ScaledHeight(b.Dx(), b.Dy(), targetWidth)
	resized := imaging.Resize(src, targetWidth, height, imaging.Lanczos)

	out, err := p.encode(resized, format)
	if err != nil {
		return analysis.Image{}, err
	}
	return analysis.Image{Data: out, Format: format, Width: targetWidth, Height: height}, nil
}

// ScaledHeight is round(targetWidth * height / width), at least 1.
func ScaledHeight(width, height, targetWidth int) int {
	if width <= 0 {
		return 1
	}
	h := int(math.Round(float64(targetWidth) * float64(height) / float64(width)))
	if h < 1 {
		h = 1
	}
	return h
}

func decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty upload", analysis.ErrInvalidImage)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", analysis.ErrInvalidImage, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", fmt.Errorf("%w: empty bounds", analysis.ErrInvalidImage)
	}
	return img, format, nil
}

func (p *Processor) encode(img image.Image, format string) ([]byte, error) {
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot encode %s", analysis.ErrInvalidImage, format)
	}
	quality := p.JPEGQuality
	if quality <= 0 {
		quality = 90
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, imaging.JPEGQuality(quality)); err != nil {
		return nil, errors.Join(analysis.ErrInvalidImage, err)
	}
	return buf.Bytes(), nil
}
