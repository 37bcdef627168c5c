package detection

import (
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/go-docscan/pkg/debug"
	"github.com/teslashibe/go-docscan/pkg/geometry"
	"gocv.io/x/gocv"
)

// ContourDetector finds document boundaries with OpenCV contour analysis
type ContourDetector struct {
	config Config
	mu     sync.Mutex // Serializes OpenCV calls
}

// NewContour creates a new OpenCV-backed document detector
func NewContour(cfg Config) *ContourDetector {
	return &ContourDetector{config: cfg}
}

// Detect finds the document boundary in the JPEG image.
// Pipeline: grayscale, blur, Canny, dilate, contours, polygon approximation,
// then the largest 4-cornered contour inside the area bounds wins.
func (d *ContourDetector) Detect(jpeg []byte) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return None(), fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return None(), fmt.Errorf("empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, d.config.CannyLow, d.config.CannyHigh)

	// Connect broken edge segments before contour extraction
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	imgArea := float64(img.Cols() * img.Rows())
	bestArea := 0.0
	var bestCorners [4]geometry.Point
	haveBest := false

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < imgArea*d.config.MinAreaFraction || area > imgArea*d.config.MaxAreaFraction {
			continue
		}

		epsilon := 0.02 * gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, epsilon, true)

		if approx.Size() == 4 && area > bestArea {
			var corners [4]geometry.Point
			for j := 0; j < 4; j++ {
				pt := approx.At(j)
				corners[j] = geometry.Point{X: float64(pt.X), Y: float64(pt.Y)}
			}
			bestArea = area
			bestCorners = corners
			haveBest = true
		}
		approx.Close()
	}

	debug.DetectLog("contours=%d best_area=%.0f img_area=%.0f\n", contours.Size(), bestArea, imgArea)

	if !haveBest {
		return None(), nil
	}

	quad := geometry.NewQuadrilateral(bestCorners)
	if !quad.IsConvex() {
		return None(), nil
	}

	confidence := bestArea / imgArea
	if confidence < d.config.ConfidenceThresh {
		return None(), nil
	}

	return Result{Quad: &quad, Confidence: confidence}, nil
}

// Close releases the detector resources
func (d *ContourDetector) Close() error {
	return nil
}
