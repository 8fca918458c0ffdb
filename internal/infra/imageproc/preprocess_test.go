package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

func testImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			v := uint8((x + y) % 256)
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func encodePNG(t testing.TB, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t testing.TB, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestResize_PreservesAspectRatioAndFormat(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name       string
		data       []byte
		width      int
		wantHeight int
		wantFormat string
	}{
		{"png landscape", encodePNG(t, testImage(800, 600)), 400, 300, "png"},
		{"jpeg portrait", encodeJPEG(t, testImage(300, 900)), 400, 1200, "jpeg"},
		{"rounds to nearest", encodePNG(t, testImage(3, 2)), 400, 267, "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Resize(tt.data, tt.width)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, out.Format)
			assert.Equal(t, tt.width, out.Width)
			assert.Equal(t, tt.wantHeight, out.Height)

			decoded, format, err := image.Decode(bytes.NewReader(out.Data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, format)
			assert.Equal(t, tt.width, decoded.Bounds().Dx())
			assert.Equal(t, tt.wantHeight, decoded.Bounds().Dy())
		})
	}
}

func TestResize_DoesNotTouchInput(t *testing.T) {
	data := encodePNG(t, testImage(64, 32))
	orig := append([]byte(nil), data...)

	_, err := NewProcessor().Resize(data, 16)
	require.NoError(t, err)
	assert.Equal(t, orig, data)
}

func TestResize_InvalidInput(t *testing.T) {
	p := NewProcessor()

	_, err := p.Resize(nil, 400)
	assert.ErrorIs(t, err, analysis.ErrInvalidImage)

	_, err = p.Resize([]byte("definitely not an image"), 400)
	assert.ErrorIs(t, err, analysis.ErrInvalidImage)

	_, err = p.Resize(encodePNG(t, testImage(10, 10)), 0)
	assert.ErrorIs(t, err, analysis.ErrInvalidImage)
}

func TestResize_AspectRatioProperty(t *testing.T) {
	p := NewProcessor()
	properties := gopter.NewProperties(nil)

	properties.Property("height within one pixel of the exact ratio", prop.ForAll(
		func(width, height, target int) bool {
			out, err := p.Resize(encodePNG(t, testImage(width, height)), target)
			if err != nil {
				return false
			}
			exact := float64(target) * float64(height) / float64(width)
			diff := float64(out.Height) - exact
			if exact >= 1 && (diff > 1 || diff < -1) {
				return false
			}
			decoded, format, err := image.Decode(bytes.NewReader(out.Data))
			if err != nil || format != "png" {
				return false
			}
			return decoded.Bounds().Dx() == target && decoded.Bounds().Dy() == out.Height
		},
		gen.IntRange(1, 64),
		gen.IntRange(1, 64),
		gen.IntRange(1, 96),
	))

	properties.TestingRun(t)
}

func TestScaledHeight(t *testing.T) {
	assert.Equal(t, 300, ScaledHeight(800, 600, 400))
	assert.Equal(t, 1, ScaledHeight(1000, 1, 10))
	assert.Equal(t, 1, ScaledHeight(0, 10, 10))
}
