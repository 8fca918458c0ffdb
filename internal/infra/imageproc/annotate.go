package imageproc

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

// Annotate draws every OCR field's bounding polygon on a copy of img and
// returns it together with the inferred texts in field order. Duplicates and
// empty texts are kept.
func (p *Processor) Annotate(img analysis.Image, res analysis.OCRResult) (analysis.Image, []string, error) {
	src, format, err := decode(img.Data)
	if err != nil {
		return analysis.Image{}, nil, err
	}
	if img.Format != "" {
		format = img.Format
	}

	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)

	col := p.BoxColor
	if col == nil {
		col = color.RGBA{R: 255, A: 255}
	}

	fields := res.Fields()
	texts := make([]string, 0, len(fields))
	for i, f := range fields {
		pts := make([]point, len(f.BoundingPoly.Vertices))
		for j, v := range f.BoundingPoly.Vertices {
			pts[j] = point{x: sanitize(v.X), y: sanitize(v.Y)}
		}
		drawPolygon(canvas, pts, col, p.BoxWidth)
		if p.LabelFields && len(pts) > 0 {
			drawLabel(canvas, pts, strconv.Itoa(i), col)
		}
		texts = append(texts, f.InferText)
	}

	out, err := p.encode(canvas, format)
	if err != nil {
		return analysis.Image{}, nil, err
	}
	return analysis.Image{Data: out, Format: format, Width: b.Dx(), Height: b.Dy()}, texts, nil
}

// point is a vertex in image coordinates, before rounding.
type point struct{ x, y float64 }

// maxCoord bounds vertex coordinates so segment arithmetic stays finite.
const maxCoord = 1 << 30

// sanitize maps non-finite values to 0 and clamps the rest to ±maxCoord.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(-maxCoord, math.Min(maxCoord, v))
}

// drawPolygon draws the closed outline through pts.
func drawPolygon(dst *image.RGBA, pts []point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	// the brush can reach the canvas from up to thickness pixels outside it
	margin := float64(max(thickness, 1) + 1)
	b := dst.Bounds()
	lo := point{x: float64(b.Min.X) - margin, y: float64(b.Min.Y) - margin}
	hi := point{x: float64(b.Max.X) + margin, y: float64(b.Max.Y) + margin}
	for i := range pts {
		a, c, ok := clipSegment(pts[i], pts[(i+1)%len(pts)], lo, hi)
		if !ok {
			continue
		}
		drawLine(dst, a.round(), c.round(), col, thickness)
	}
}

func (p point) round() image.Point {
	return image.Pt(int(math.Round(p.x)), int(math.Round(p.y)))
}

// clipSegment cuts a-b to the rectangle lo-hi (Liang-Barsky). ok is false
// when the segment lies entirely outside.
func clipSegment(a, b, lo, hi point) (point, point, bool) {
	dx, dy := b.x-a.x, b.y-a.y
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, a.x - lo.x},
		{dx, hi.x - a.x},
		{-dy, a.y - lo.y},
		{dy, hi.y - a.y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return point{}, point{}, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return point{}, point{}, false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return point{}, point{}, false
			}
			t1 = math.Min(t1, r)
		}
	}
	return point{x: a.x + t0*dx, y: a.y + t0*dy}, point{x: a.x + t1*dx, y: a.y + t1*dy}, true
}

// drawLine is Bresenham with a square brush.
func drawLine(dst *image.RGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	e := dx + dy
	for {
		plot(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func plot(dst *image.RGBA, x, y int, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := (thickness - 1) / 2
	for yy := y - r; yy <= y-r+thickness-1; yy++ {
		for xx := x - r; xx <= x-r+thickness-1; xx++ {
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func drawLabel(dst *image.RGBA, pts []point, label string, col color.Color) {
	minX, minY := pts[0].x, pts[0].y
	for _, pt := range pts[1:] {
		minX = math.Min(minX, pt.x)
		minY = math.Min(minY, pt.y)
	}
	b := dst.Bounds()
	anchor := point{
		x: math.Max(float64(b.Min.X), math.Min(float64(b.Max.X), minX)),
		y: math.Max(float64(b.Min.Y), math.Min(float64(b.Max.Y), minY)),
	}.round()
	face := basicfont.Face7x13
	// baseline sits above the box, or inside it when the box touches the top edge
	y := anchor.Y - 2
	if y < face.Ascent {
		y = anchor.Y + face.Ascent
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(anchor.X, y),
	}
	d.DrawString(label)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
