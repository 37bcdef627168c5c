// Package trace writes annotated detection frames to disk. Each traced
// frame shows the detected outline, colored by how close the scanner is to
// an automatic capture, plus a one-line state label. Intended for tuning
// detector and stability settings against real footage.
package trace

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/geometry"
	"github.com/teslashibe/go-docscan/pkg/scan"
	"github.com/teslashibe/go-docscan/pkg/scan/detection"
)

// Outline gradient endpoints. A fresh detection draws near-white and blends
// toward green as the stable count approaches the capture threshold.
var (
	searchColor = colorful.Color{R: 0.94, G: 0.94, B: 0.94}
	lockedColor = colorful.Color{R: 0.18, G: 0.80, B: 0.44}
)

// Writer renders detection overlays onto frames and writes them to a
// directory, one JPEG per traced frame.
type Writer struct {
	dir       string
	threshold int
}

// NewWriter creates a trace writer targeting dir, creating it if needed.
// threshold sets the stable count at which the outline reaches full green;
// it should match the scanner's stability threshold.
func NewWriter(dir string, threshold int) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("trace directory not set")
	}
	if threshold < 1 {
		threshold = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	return &Writer{dir: dir, threshold: threshold}, nil
}

// Trace renders and writes one annotated frame. Failures are logged and
// swallowed; tracing never disturbs the capture loop.
func (w *Writer) Trace(frame framesource.Frame, det detection.Result, st scan.Stability) {
	src, err := imaging.Decode(bytes.NewReader(frame.JPEG))
	if err != nil {
		log.Debug("trace frame decode failed", "frame_seq", frame.Seq, "error", err)
		return
	}

	img := imaging.Clone(src)

	if det.Found() {
		col := w.outlineColor(st.Count)
		drawQuad(img, det.Quad, col)
	}

	label := fmt.Sprintf("frame %d  stable %d/%d", frame.Seq, st.Count, w.threshold)
	if det.Found() {
		label += fmt.Sprintf("  conf %.2f", det.Confidence)
	} else {
		label += "  no document"
	}
	drawLabel(img, label)

	path := filepath.Join(w.dir, fmt.Sprintf("frame-%06d.jpg", frame.Seq))
	if err := imaging.Save(img, path, imaging.JPEGQuality(85)); err != nil {
		log.Warn("trace frame write failed", "path", path, "error", err)
	}
}

// outlineColor blends from near-white toward green as count approaches the
// threshold. Blending happens in HCL space to keep the ramp perceptually
// even.
func (w *Writer) outlineColor(count int) color.RGBA {
	t := float64(count) / float64(w.threshold)
	if t > 1 {
		t = 1
	}
	r, g, b := searchColor.BlendHcl(lockedColor, t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// drawQuad draws the document outline with corner markers
func drawQuad(img *image.NRGBA, q *geometry.Quadrilateral, col color.RGBA) {
	corners := [4]geometry.Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
	for i := 0; i < 4; i++ {
		a := corners[i]
		b := corners[(i+1)%4]
		drawThickLine(img, a.X, a.Y, b.X, b.Y, 3, col)
	}
	for _, c := range corners {
		fillCircle(img, int(c.X), int(c.Y), 5, col)
	}
}

// drawLabel writes text over a dark strip in the top-left corner
func drawLabel(img *image.NRGBA, text string) {
	strip := image.Rect(0, 0, 7*len(text)+12, 18).Intersect(img.Bounds())
	draw.Draw(img, strip, &image.Uniform{color.RGBA{A: 170}}, image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(6), Y: fixed.I(13)},
	}
	d.DrawString(text)
}

// drawThickLine draws a line with the given thickness by stacking parallel
// Bresenham lines perpendicular to its direction.
func drawThickLine(img *image.NRGBA, x1, y1, x2, y2 float64, thickness int, col color.RGBA) {
	dx := x2 - x1
	dy := y2 - y1
	length := math.Sqrt(dx*dx + dy*dy)
	if length == 0 {
		fillCircle(img, int(x1), int(y1), thickness/2, col)
		return
	}

	px := -dy / length
	py := dx / length
	half := float64(thickness) / 2

	for t := -half; t <= half; t += 1.0 {
		drawLine(img, int(x1+px*t), int(y1+py*t), int(x2+px*t), int(y2+py*t), col)
	}
}

// drawLine draws a line using Bresenham's algorithm
func drawLine(img *image.NRGBA, x1, y1, x2, y2 int, col color.RGBA) {
	bounds := img.Bounds()
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)

	sx := -1
	if x1 < x2 {
		sx = 1
	}
	sy := -1
	if y1 < y2 {
		sy = 1
	}

	err := dx - dy
	for {
		if x1 >= bounds.Min.X && x1 < bounds.Max.X && y1 >= bounds.Min.Y && y1 < bounds.Max.Y {
			img.Set(x1, y1, col)
		}
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// fillCircle fills a circle with the given color
func fillCircle(img *image.NRGBA, cx, cy, r int, col color.RGBA) {
	bounds := img.Bounds()
	for y := cy - r; y <= cy+r; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := cx - r; x <= cx+r; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			ddx, ddy := x-cx, y-cy
			if ddx*ddx+ddy*ddy <= r*r {
				img.Set(x, y, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

var _ scan.Tracer = (*Writer)(nil)
