package detection

import (
	"image"
	"image/color"
	"testing"

	"github.com/teslashibe/go-docscan/pkg/geometry"
)

func quadAt(x, y, w, h float64) *geometry.Quadrilateral {
	q := geometry.NewQuadrilateral([4]geometry.Point{
		{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h},
	})
	return &q
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    *geometry.Quadrilateral
	}{
		{
			name:    "empty input",
			results: nil,
			want:    nil,
		},
		{
			name:    "all none",
			results: []Result{None(), None()},
			want:    nil,
		},
		{
			name: "single detection wins",
			results: []Result{
				None(),
				{Quad: quadAt(10, 10, 100, 100), Confidence: 0.4},
			},
			want: quadAt(10, 10, 100, 100),
		},
		{
			name: "higher confidence wins at equal area",
			results: []Result{
				{Quad: quadAt(0, 0, 100, 100), Confidence: 0.3},
				{Quad: quadAt(50, 50, 100, 100), Confidence: 0.9},
			},
			want: quadAt(50, 50, 100, 100),
		},
		{
			name: "much larger area beats slightly higher confidence",
			results: []Result{
				{Quad: quadAt(0, 0, 30, 30), Confidence: 0.55},
				{Quad: quadAt(0, 0, 300, 300), Confidence: 0.5},
			},
			want: quadAt(0, 0, 300, 300),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectBest(tt.results)
			if tt.want == nil {
				if got.Found() {
					t.Fatalf("SelectBest() = %v, want none", got.Quad)
				}
				return
			}
			if !got.Found() {
				t.Fatal("SelectBest() = none, want a detection")
			}
			if got.Quad.MaxCornerDrift(*tt.want) > 1e-9 {
				t.Errorf("SelectBest() quad = %v, want %v", got.Quad, tt.want)
			}
		})
	}
}

func TestMockScript(t *testing.T) {
	a := Result{Quad: quadAt(0, 0, 10, 10), Confidence: 0.5}
	m := NewMock(a, None())

	first, err := m.Detect(nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !first.Found() {
		t.Error("first scripted result should be a detection")
	}

	second, _ := m.Detect(nil)
	if second.Found() {
		t.Error("second scripted result should be none")
	}

	// Script exhausted: last result repeats
	third, _ := m.Detect(nil)
	if third.Found() {
		t.Error("exhausted script should repeat the last result")
	}

	if m.DetectCalls != 3 {
		t.Errorf("DetectCalls = %d, want 3", m.DetectCalls)
	}
}

// syntheticDocument draws a bright rectangle on a dark background, roughly
// what a sheet of paper on a desk looks like to the segmenting detector.
func syntheticDocument(w, h int, doc image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	dark := color.RGBA{R: 30, G: 30, B: 35, A: 255}
	bright := color.RGBA{R: 235, G: 235, B: 230, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if image.Pt(x, y).In(doc) {
				img.Set(x, y, bright)
			} else {
				img.Set(x, y, dark)
			}
		}
	}
	return img
}

func TestEdgeDetectorFindsDocument(t *testing.T) {
	img := syntheticDocument(320, 240, image.Rect(60, 40, 260, 200))

	d := NewEdge(DefaultConfig())
	defer d.Close()

	got, err := d.detectImage(img)
	if err != nil {
		t.Fatalf("detectImage: %v", err)
	}
	if !got.Found() {
		t.Fatal("expected a detection for a bright rectangle on dark background")
	}

	want := quadAt(60, 40, 199, 159)
	if drift := got.Quad.MaxCornerDrift(*want); drift > 8 {
		t.Errorf("detected quad %v drifts %.1fpx from expected %v", got.Quad, drift, want)
	}
	if got.Confidence <= 0 || got.Confidence > 1 {
		t.Errorf("confidence = %v, want (0,1]", got.Confidence)
	}
}

func TestEdgeDetectorEmptyScene(t *testing.T) {
	// Uniform frame: the threshold splits noise-free gray arbitrarily but
	// the component covers nearly the whole frame and is rejected by the
	// max area bound.
	img := syntheticDocument(320, 240, image.Rect(0, 0, 320, 240))

	d := NewEdge(DefaultConfig())
	defer d.Close()

	got, err := d.detectImage(img)
	if err != nil {
		t.Fatalf("detectImage: %v", err)
	}
	if got.Found() {
		t.Errorf("expected no detection for a uniform frame, got %v", got.Quad)
	}
}
