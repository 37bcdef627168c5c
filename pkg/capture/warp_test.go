package capture

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/teslashibe/go-docscan/pkg/geometry"
)

func TestHomographyMapsCorners(t *testing.T) {
	rect := [4]geometry.Point{{X: 0, Y: 0}, {X: 200, Y: 0}, {X: 200, Y: 280}, {X: 0, Y: 280}}
	quad := [4]geometry.Point{{X: 30, Y: 20}, {X: 220, Y: 40}, {X: 210, Y: 300}, {X: 10, Y: 280}}

	h, err := solveHomography(rect, quad)
	if err != nil {
		t.Fatalf("solveHomography failed: %v", err)
	}

	for i := range rect {
		got := h.Apply(rect[i])
		if math.Abs(got.X-quad[i].X) > 1e-6 || math.Abs(got.Y-quad[i].Y) > 1e-6 {
			t.Errorf("Corner %d: expected (%.2f, %.2f), got (%.6f, %.6f)",
				i, quad[i].X, quad[i].Y, got.X, got.Y)
		}
	}
}

func TestHomographyIdentity(t *testing.T) {
	pts := [4]geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}

	h, err := solveHomography(pts, pts)
	if err != nil {
		t.Fatalf("solveHomography failed: %v", err)
	}

	mid := h.Apply(geometry.Point{X: 50, Y: 50})
	if math.Abs(mid.X-50) > 1e-6 || math.Abs(mid.Y-50) > 1e-6 {
		t.Errorf("Expected identity to keep (50,50), got (%.6f, %.6f)", mid.X, mid.Y)
	}
}

func TestDeskewAxisAlignedRegion(t *testing.T) {
	// A red card on black: deskewing its axis-aligned outline is a crop,
	// so every output pixel must be pure red.
	src := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	red := color.NRGBA{R: 255, A: 255}
	for y := 40; y < 120; y++ {
		for x := 50; x < 150; x++ {
			src.SetNRGBA(x, y, red)
		}
	}

	quad := geometry.NewQuadrilateral([4]geometry.Point{
		{X: 50, Y: 40}, {X: 150, Y: 40}, {X: 150, Y: 120}, {X: 50, Y: 120},
	})

	out, err := Deskew(src, quad)
	if err != nil {
		t.Fatalf("Deskew failed: %v", err)
	}

	b := out.Bounds()
	if b.Dx() != 100 || b.Dy() != 80 {
		t.Fatalf("Expected 100x80 output, got %dx%d", b.Dx(), b.Dy())
	}

	checks := []image.Point{{0, 0}, {99, 0}, {99, 79}, {0, 79}, {50, 40}}
	for _, p := range checks {
		got := out.NRGBAAt(p.X, p.Y)
		if got != red {
			t.Errorf("Pixel (%d,%d): expected pure red, got %v", p.X, p.Y, got)
		}
	}
}

func TestDeskewDegenerateQuad(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	quad := geometry.NewQuadrilateral([4]geometry.Point{
		{X: 10, Y: 10}, {X: 11, Y: 10}, {X: 11, Y: 11}, {X: 10, Y: 11},
	})

	if _, err := Deskew(src, quad); err != ErrDegenerateQuad {
		t.Errorf("Expected ErrDegenerateQuad, got %v", err)
	}
}

func TestFitWidth(t *testing.T) {
	big := image.NewNRGBA(image.Rect(0, 0, 3600, 2400))
	scaled := fitWidth(big, 1800)
	if scaled.Bounds().Dx() != 1800 || scaled.Bounds().Dy() != 1200 {
		t.Errorf("Expected 1800x1200, got %dx%d", scaled.Bounds().Dx(), scaled.Bounds().Dy())
	}

	small := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	if fitWidth(small, 1800) != small {
		t.Error("Expected small image to pass through unscaled")
	}
}
