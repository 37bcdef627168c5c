package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/geometry"
	"github.com/teslashibe/go-docscan/pkg/scan"
)

// frameJPEG renders a dark scene with a white page region and encodes it.
func frameJPEG(t *testing.T, w, h int, page image.Rectangle) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 30, G: 30, B: 30, A: 255})
		}
	}
	for y := page.Min.Y; y < page.Max.Y; y++ {
		for x := page.Min.X; x < page.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 235, G: 235, B: 230, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(92)); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
	return buf.Bytes()
}

func pipelineRequest(t *testing.T, jpeg []byte, quad *geometry.Quadrilateral, cfg scan.Config) scan.Request {
	t.Helper()
	return scan.Request{
		ID:     "req-pipe",
		Mode:   scan.ModeAuto,
		Frame:  framesource.Frame{Seq: 1, JPEG: jpeg, At: time.Now()},
		Quad:   quad,
		Config: cfg,
		At:     time.Now(),
	}
}

func TestStillFullFrame(t *testing.T) {
	jpeg := frameJPEG(t, 320, 240, image.Rect(60, 40, 260, 180))
	cfg := scan.DefaultConfig()
	cfg.Persist = false

	doc, err := NewStill().Process(context.Background(), pipelineRequest(t, jpeg, nil, cfg))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if doc.Width != 320 || doc.Height != 240 {
		t.Errorf("Expected full-frame 320x240 document, got %dx%d", doc.Width, doc.Height)
	}
	if doc.Format != "jpeg" {
		t.Errorf("Expected jpeg format, got %q", doc.Format)
	}
	if len(doc.Data) < 2 || doc.Data[0] != 0xFF || doc.Data[1] != 0xD8 {
		t.Error("Expected JPEG magic bytes at the start of the document data")
	}
	if doc.Base64 != "" {
		t.Errorf("Expected no text encoding by default, got %d chars", len(doc.Base64))
	}
}

func TestStillDeskewsDetectedOutline(t *testing.T) {
	jpeg := frameJPEG(t, 320, 240, image.Rect(60, 40, 260, 180))
	quad := geometry.NewQuadrilateral([4]geometry.Point{
		{X: 60, Y: 40}, {X: 260, Y: 40}, {X: 260, Y: 180}, {X: 60, Y: 180},
	})
	cfg := scan.DefaultConfig()
	cfg.Persist = false

	doc, err := NewStill().Process(context.Background(), pipelineRequest(t, jpeg, &quad, cfg))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// Output size follows the outline's side lengths.
	if doc.Width != 200 || doc.Height != 140 {
		t.Errorf("Expected 200x140 page, got %dx%d", doc.Width, doc.Height)
	}
	if doc.Quad == nil {
		t.Error("Expected source outline kept on the document")
	}

	// The page interior decodes back to near-white.
	img, err := imaging.Decode(bytes.NewReader(doc.Data))
	if err != nil {
		t.Fatalf("decode document: %v", err)
	}
	r, g, b, _ := img.At(100, 70).RGBA()
	if r>>8 < 200 || g>>8 < 200 || b>>8 < 200 {
		t.Errorf("Expected near-white page center, got r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}
}

func TestStillCropFallbackWithoutDeskew(t *testing.T) {
	jpeg := frameJPEG(t, 320, 240, image.Rect(60, 40, 260, 180))
	quad := geometry.NewQuadrilateral([4]geometry.Point{
		{X: 60, Y: 40}, {X: 260, Y: 40}, {X: 260, Y: 180}, {X: 60, Y: 180},
	})
	cfg := scan.DefaultConfig()
	cfg.Persist = false
	cfg.Deskew = false

	doc, err := NewStill().Process(context.Background(), pipelineRequest(t, jpeg, &quad, cfg))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if doc.Width != 201 || doc.Height != 141 {
		t.Errorf("Expected 201x141 bounding-box crop, got %dx%d", doc.Width, doc.Height)
	}
}

func TestStillBase64Encoding(t *testing.T) {
	jpeg := frameJPEG(t, 160, 120, image.Rect(20, 20, 140, 100))
	cfg := scan.DefaultConfig()
	cfg.Persist = false
	cfg.OutputEncoding = scan.EncodingBase64

	doc, err := NewStill().Process(context.Background(), pipelineRequest(t, jpeg, nil, cfg))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if doc.Base64 == "" {
		t.Fatal("Expected base64 text on the document")
	}
	decoded, err := base64.StdEncoding.DecodeString(doc.Base64)
	if err != nil {
		t.Fatalf("base64 decode failed: %v", err)
	}
	if !bytes.Equal(decoded, doc.Data) {
		t.Error("Expected base64 text to decode to the document bytes")
	}
}

func TestStillGrayscale(t *testing.T) {
	jpeg := frameJPEG(t, 160, 120, image.Rect(20, 20, 140, 100))
	cfg := scan.DefaultConfig()
	cfg.Persist = false
	cfg.Grayscale = true
	cfg.Contrast = 10

	doc, err := NewStill().Process(context.Background(), pipelineRequest(t, jpeg, nil, cfg))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(doc.Data))
	if err != nil {
		t.Fatalf("decode document: %v", err)
	}
	r, g, b, _ := img.At(80, 60).RGBA()
	if r != g || g != b {
		t.Errorf("Expected gray pixel, got r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}
}

func TestStillRejectsEmptyFrame(t *testing.T) {
	cfg := scan.DefaultConfig()
	req := pipelineRequest(t, nil, nil, cfg)
	req.Frame = framesource.Frame{}

	if _, err := NewStill().Process(context.Background(), req); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
}

func TestStillRejectsBadImageData(t *testing.T) {
	cfg := scan.DefaultConfig()
	req := pipelineRequest(t, []byte("not a jpeg at all"), nil, cfg)

	if _, err := NewStill().Process(context.Background(), req); err == nil {
		t.Error("Expected an error for undecodable frame data")
	}
}

func TestDiskStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	doc := &scan.Document{
		Data:       []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Format:     "jpeg",
		Width:      100,
		Height:     140,
		Text:       "hello",
		CapturedAt: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
	}
	req := scan.Request{ID: "abcdef1234567890", Mode: scan.ModeManual}

	ref, err := store.Save(context.Background(), req, doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if filepath.Dir(ref) != dir {
		t.Errorf("Expected reference inside %s, got %s", dir, ref)
	}
	if !strings.HasSuffix(ref, ".jpg") {
		t.Errorf("Expected .jpg reference, got %s", ref)
	}
	if !strings.Contains(ref, "abcdef12") {
		t.Errorf("Expected short request id in the name, got %s", ref)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		t.Fatalf("read stored document: %v", err)
	}
	if !bytes.Equal(data, doc.Data) {
		t.Error("Stored bytes differ from document bytes")
	}

	// The metadata sidecar sits next to the image.
	sidecarPath := strings.TrimSuffix(ref, ".jpg") + ".json"
	raw, err := os.ReadFile(sidecarPath)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	if meta.RequestID != req.ID || meta.Mode != "manual" || meta.Text != "hello" {
		t.Errorf("Unexpected sidecar contents: %+v", meta)
	}
}
