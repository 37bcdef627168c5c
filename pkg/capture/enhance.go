package capture

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/teslashibe/go-docscan/pkg/scan"
)

// enhance applies the session's image adjustments in a fixed order:
// brightness, contrast, saturation, then grayscale. Zero-valued adjustments
// are skipped so the common case copies nothing.
func enhance(img *image.NRGBA, cfg scan.Config) *image.NRGBA {
	out := img
	if cfg.Brightness != 0 {
		out = imaging.AdjustBrightness(out, cfg.Brightness)
	}
	if cfg.Contrast != 0 {
		out = imaging.AdjustContrast(out, cfg.Contrast)
	}
	if cfg.Saturation != 0 {
		out = imaging.AdjustSaturation(out, cfg.Saturation)
	}
	if cfg.Grayscale {
		out = imaging.Grayscale(out)
	}
	return out
}
