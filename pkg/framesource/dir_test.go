package framesource

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func waitForFrame(t *testing.T, src Source, timeout time.Duration) Frame {
	t.Helper()
	select {
	case f, ok := <-src.Frames():
		if !ok {
			t.Fatal("frame channel closed before a frame arrived")
		}
		return f
	case <-time.After(timeout):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func TestDirEmitsWrittenFrames(t *testing.T) {
	dir := t.TempDir()

	src, err := NewDir(dir, DirOpts{})
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	defer src.Close()

	data := testJPEG(t, 64, 48)
	if err := os.WriteFile(filepath.Join(dir, "frame1.jpg"), data, 0o644); err != nil {
		t.Fatalf("write frame file: %v", err)
	}

	f := waitForFrame(t, src, 2*time.Second)
	if f.Empty() {
		t.Fatal("expected frame data")
	}
	if f.Width != 64 || f.Height != 48 {
		t.Errorf("frame dims = %dx%d, want 64x48", f.Width, f.Height)
	}
	if f.Seq != 1 {
		t.Errorf("frame seq = %d, want 1", f.Seq)
	}
}

func TestDirIgnoresNonImageFiles(t *testing.T) {
	dir := t.TempDir()

	src, err := NewDir(dir, DirOpts{})
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	defer src.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a frame"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not a jpeg"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ok.jpeg"), testJPEG(t, 32, 32), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	f := waitForFrame(t, src, 2*time.Second)
	if f.Width != 32 {
		t.Errorf("got unexpected frame %dx%d, want the valid 32x32 jpeg", f.Width, f.Height)
	}
}

func TestDirRemoveOption(t *testing.T) {
	dir := t.TempDir()

	src, err := NewDir(dir, DirOpts{Remove: true})
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	defer src.Close()

	path := filepath.Join(dir, "frame.jpg")
	if err := os.WriteFile(path, testJPEG(t, 16, 16), 0o644); err != nil {
		t.Fatalf("write frame file: %v", err)
	}

	waitForFrame(t, src, 2*time.Second)

	// Removal happens before the frame is emitted
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected consumed frame file to be removed, stat err = %v", err)
	}
}

func TestDirCloseEndsStream(t *testing.T) {
	dir := t.TempDir()

	src, err := NewDir(dir, DirOpts{})
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case _, ok := <-src.Frames():
		if ok {
			t.Error("expected closed channel, got frame")
		}
	case <-time.After(2 * time.Second):
		t.Error("frame channel not closed after Close")
	}
}
