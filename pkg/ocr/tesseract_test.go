package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/teslashibe/go-docscan/pkg/scan"
)

// textDocument renders text onto a white page and packages it as a captured
// document. basicfont glyphs are 7x13 pixels; the page is scaled up so
// Tesseract has enough resolution to work with.
func textDocument(t *testing.T, text string, scale int) *scan.Document {
	t.Helper()

	w := len(text)*7 + 40
	h := 40
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(20), Y: fixed.I(25)},
	}
	d.DrawString(text)

	big := imaging.Resize(small, w*scale, h*scale, imaging.NearestNeighbor)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, big, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		t.Fatalf("encode: %v", err)
	}

	return &scan.Document{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  w * scale,
		Height: h * scale,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	eng, err := NewEngine("eng")
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	return eng
}

func TestRecognizeRenderedText(t *testing.T) {
	eng := newTestEngine(t)
	defer eng.Close()

	doc := textDocument(t, "HELLO WORLD", 4)

	// Bitmap fonts are hard on Tesseract, so only require that recognition
	// runs; the content check would make the test flaky
	text, err := eng.Recognize(context.Background(), doc)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	t.Logf("recognized %q", text)
}

func TestRecognizeEmptyDocument(t *testing.T) {
	eng := newTestEngine(t)
	defer eng.Close()

	if _, err := eng.Recognize(context.Background(), nil); err == nil {
		t.Error("Recognize(nil) should fail")
	}
	if _, err := eng.Recognize(context.Background(), &scan.Document{}); err == nil {
		t.Error("Recognize of empty document should fail")
	}
}

func TestRecognizeAfterClose(t *testing.T) {
	eng := newTestEngine(t)
	eng.Close()

	doc := textDocument(t, "X", 2)
	if _, err := eng.Recognize(context.Background(), doc); err == nil {
		t.Error("Recognize after Close should fail")
	}

	if err := eng.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestRecognizeCancelledContext(t *testing.T) {
	eng := newTestEngine(t)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := textDocument(t, "X", 2)
	if _, err := eng.Recognize(ctx, doc); err == nil {
		t.Error("Recognize with cancelled context should fail")
	}
}
