package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/geometry"
	"github.com/teslashibe/go-docscan/pkg/scan"
)

// DiskStore persists captured documents as files in a directory, one image
// per capture plus a JSON sidecar with the capture metadata.
type DiskStore struct {
	dir string
}

// sidecar is the JSON structure written next to each stored image.
type sidecar struct {
	RequestID  string                  `json:"request_id"`
	Mode       string                  `json:"mode"`
	CapturedAt time.Time               `json:"captured_at"`
	Width      int                     `json:"width"`
	Height     int                     `json:"height"`
	Quad       *geometry.Quadrilateral `json:"quad,omitempty"`
	Text       string                  `json:"text,omitempty"`
}

// NewDiskStore creates a store rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("capture: create store directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save implements scan.Store. The image is written to a temp file first and
// renamed into place so readers never see a partial document.
func (s *DiskStore) Save(ctx context.Context, req scan.Request, doc *scan.Document) (string, error) {
	name := fmt.Sprintf("%s-%s.%s",
		doc.CapturedAt.Format("20060102-150405"), shortID(req.ID), ext(doc.Format))
	path := filepath.Join(s.dir, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, doc.Data, 0644); err != nil {
		return "", fmt.Errorf("capture: write document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("capture: finalize document: %w", err)
	}

	s.writeSidecar(path, req, doc)
	return path, nil
}

// writeSidecar records the capture metadata next to the image. Best effort:
// a capture with a missing sidecar is still a stored capture.
func (s *DiskStore) writeSidecar(imagePath string, req scan.Request, doc *scan.Document) {
	meta := sidecar{
		RequestID:  req.ID,
		Mode:       req.Mode.String(),
		CapturedAt: doc.CapturedAt,
		Width:      doc.Width,
		Height:     doc.Height,
		Quad:       doc.Quad,
		Text:       doc.Text,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return
	}
	path := imagePath[:len(imagePath)-len(filepath.Ext(imagePath))] + ".json"
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn("sidecar write failed", "path", path, "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func ext(format string) string {
	switch format {
	case "jpeg", "":
		return "jpg"
	default:
		return format
	}
}

// Ensure DiskStore implements the store contract.
var _ scan.Store = (*DiskStore)(nil)
