package capture

import (
	"bytes"
	"encoding/base64"
	"image"

	"github.com/disintegration/imaging"

	"github.com/teslashibe/go-docscan/pkg/scan"
)

// encodeDocument renders the finished page image to JPEG at the session's
// quality and, when the session asked for text encoding, a base64 rendering
// of the same bytes.
func encodeDocument(img image.Image, cfg scan.Config) (data []byte, b64 string, err error) {
	quality := int(cfg.OutputQuality * 100)
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, "", err
	}

	data = buf.Bytes()
	if cfg.OutputEncoding == scan.EncodingBase64 {
		b64 = base64.StdEncoding.EncodeToString(data)
	}
	return data, b64, nil
}
