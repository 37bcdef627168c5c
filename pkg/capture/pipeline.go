// Package capture turns accepted capture requests into finished documents:
// decode the source frame, flatten the detected outline, apply the session's
// image adjustments and encode the result. It also provides the disk and
// Google Drive document stores.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/scan"
)

// Output images wider than this are scaled down before encoding. Camera
// frames can exceed what document consumers want to move around.
const maxOutputWidth = 1800

// Still is the capture pipeline for single frames.
type Still struct{}

// NewStill returns the standard frame-to-document pipeline.
func NewStill() *Still {
	return &Still{}
}

// Process implements scan.Pipeline.
func (p *Still) Process(ctx context.Context, req scan.Request) (*scan.Document, error) {
	if req.Frame.Empty() {
		return nil, ErrEmptyFrame
	}

	img, err := imaging.Decode(bytes.NewReader(req.Frame.JPEG))
	if err != nil {
		return nil, fmt.Errorf("capture: decode frame: %w", err)
	}

	page := p.extractPage(img, req)
	page = fitWidth(page, maxOutputWidth)
	page = enhance(page, req.Config)

	data, b64, err := encodeDocument(page, req.Config)
	if err != nil {
		return nil, fmt.Errorf("capture: encode: %w", err)
	}

	b := page.Bounds()
	capturedAt := req.Frame.At
	if capturedAt.IsZero() {
		capturedAt = req.At
	}
	return &scan.Document{
		Data:       data,
		Base64:     b64,
		Format:     "jpeg",
		Width:      b.Dx(),
		Height:     b.Dy(),
		Quad:       req.Quad,
		CapturedAt: capturedAt,
	}, nil
}

// extractPage isolates the document region. With a detected outline and
// deskew enabled the region is perspective-corrected; otherwise the outline's
// bounding box is cropped, and with no outline at all the full frame stands.
func (p *Still) extractPage(img image.Image, req scan.Request) *image.NRGBA {
	if req.Quad == nil {
		return imaging.Clone(img)
	}

	if req.Config.Deskew {
		page, err := Deskew(img, *req.Quad)
		if err == nil {
			return page
		}
		log.Warn("deskew failed, falling back to crop",
			"request_id", req.ID,
			"error", err)
	}

	min, max := req.Quad.Bounds()
	crop := image.Rect(int(min.X), int(min.Y), int(max.X)+1, int(max.Y)+1)
	crop = crop.Intersect(img.Bounds())
	if crop.Empty() {
		return imaging.Clone(img)
	}
	return imaging.Crop(img, crop)
}

// Ensure Still implements the pipeline contract.
var _ scan.Pipeline = (*Still)(nil)
