package detection

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/segment"
	"github.com/anthonynsimon/bild/transform"
	"github.com/teslashibe/go-docscan/pkg/debug"
	"github.com/teslashibe/go-docscan/pkg/geometry"
)

// Working width for the segmentation pass. Corners are scaled back to the
// source resolution afterwards.
const edgeWorkWidth = 320

// EdgeDetector is a pure-Go fallback detector for builds without OpenCV.
// It segments the bright document region against the background and takes
// the extreme points of the largest connected component as corners. Lower
// fidelity than ContourDetector, good enough for well-lit paper on a dark
// surface.
type EdgeDetector struct {
	config Config
	mu     sync.Mutex
}

// NewEdge creates a new pure-Go document detector
func NewEdge(cfg Config) *EdgeDetector {
	return &EdgeDetector{config: cfg}
}

// Detect finds the document boundary in the JPEG image
func (d *EdgeDetector) Detect(data []byte) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return None(), fmt.Errorf("decode image: %w", err)
	}
	return d.detectImage(img)
}

func (d *EdgeDetector) detectImage(img image.Image) (Result, error) {
	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()
	if srcW == 0 || srcH == 0 {
		return None(), fmt.Errorf("empty image")
	}

	workW := edgeWorkWidth
	if srcW < workW {
		workW = srcW
	}
	workH := srcH * workW / srcW
	if workH == 0 {
		workH = 1
	}

	resized := transform.Resize(img, workW, workH, transform.Linear)
	blurred := blur.Gaussian(resized, 1.5)
	mask := segment.Threshold(blurred, meanLuminance(blurred))

	comp := largestComponent(mask)
	imgArea := float64(workW * workH)
	if comp.size == 0 ||
		float64(comp.size) < imgArea*d.config.MinAreaFraction ||
		float64(comp.size) > imgArea*d.config.MaxAreaFraction {
		return None(), nil
	}

	debug.DetectLog("edge component=%d px of %d\n", comp.size, int(imgArea))

	scaleX := float64(srcW) / float64(workW)
	scaleY := float64(srcH) / float64(workH)
	var corners [4]geometry.Point
	for i, p := range comp.corners {
		corners[i] = geometry.Point{X: p.X * scaleX, Y: p.Y * scaleY}
	}

	quad := geometry.NewQuadrilateral(corners)
	if !quad.IsConvex() {
		return None(), nil
	}

	confidence := float64(comp.size) / imgArea
	if confidence < d.config.ConfidenceThresh {
		return None(), nil
	}

	return Result{Quad: &quad, Confidence: confidence}, nil
}

// Close releases the detector resources
func (d *EdgeDetector) Close() error {
	return nil
}

// meanLuminance returns the average 8-bit luminance, used as the
// segmentation threshold.
func meanLuminance(img *image.RGBA) uint8 {
	bounds := img.Bounds()
	var sum, n uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
			sum += uint64(lum)
			n++
		}
	}
	if n == 0 {
		return 128
	}
	return uint8(sum / n)
}

type component struct {
	size    int
	corners [4]geometry.Point // extreme points: min x+y, max x-y, max x+y, max y-x
}

// largestComponent finds the biggest 4-connected white region in the mask
// and its corner extremes.
func largestComponent(mask *image.Gray) component {
	bounds := mask.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	visited := make([]bool, w*h)

	at := func(x, y int) bool {
		return mask.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y > 127
	}

	var best component
	queue := make([]image.Point, 0, w)

	for sy := 0; sy < h; sy++ {
		for sx := 0; sx < w; sx++ {
			if visited[sy*w+sx] || !at(sx, sy) {
				continue
			}

			cur := component{}
			tl := geometry.Point{X: float64(sx), Y: float64(sy)}
			tr, br, bl := tl, tl, tl

			queue = queue[:0]
			queue = append(queue, image.Point{X: sx, Y: sy})
			visited[sy*w+sx] = true

			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				cur.size++

				fx, fy := float64(p.X), float64(p.Y)
				if fx+fy < tl.X+tl.Y {
					tl = geometry.Point{X: fx, Y: fy}
				}
				if fx-fy > tr.X-tr.Y {
					tr = geometry.Point{X: fx, Y: fy}
				}
				if fx+fy > br.X+br.Y {
					br = geometry.Point{X: fx, Y: fy}
				}
				if fy-fx > bl.Y-bl.X {
					bl = geometry.Point{X: fx, Y: fy}
				}

				for _, n := range [4]image.Point{
					{X: p.X + 1, Y: p.Y}, {X: p.X - 1, Y: p.Y},
					{X: p.X, Y: p.Y + 1}, {X: p.X, Y: p.Y - 1},
				} {
					if n.X < 0 || n.X >= w || n.Y < 0 || n.Y >= h {
						continue
					}
					if visited[n.Y*w+n.X] || !at(n.X, n.Y) {
						continue
					}
					visited[n.Y*w+n.X] = true
					queue = append(queue, n)
				}
			}

			cur.corners = [4]geometry.Point{tl, tr, br, bl}
			if cur.size > best.size {
				best = cur
			}
		}
	}

	return best
}
