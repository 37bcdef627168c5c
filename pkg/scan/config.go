package scan

import "fmt"

// Encoding selects how a captured document is delivered to the host.
type Encoding int

const (
	// EncodingRaw delivers the encoded image bytes as-is.
	EncodingRaw Encoding = iota
	// EncodingBase64 additionally delivers a base64 text rendering, for
	// hosts that move documents over JSON transports.
	EncodingBase64
)

// String returns the wire name of the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "raw"
	case EncodingBase64:
		return "base64"
	default:
		return "unknown"
	}
}

// ParseEncoding converts a wire name back into an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "raw":
		return EncodingRaw, nil
	case "base64":
		return EncodingBase64, nil
	default:
		return EncodingRaw, fmt.Errorf("%w: unknown encoding %q", ErrInvalidConfig, s)
	}
}

// Config holds all tunable parameters for a capture session
type Config struct {
	// Stability
	StabilityThreshold   int     // Consecutive similar frames before auto-capture
	CornerDriftTolerance float64 // Max corner movement in pixels still counted as "same position"

	// Gating
	ManualOnly bool // Suppress automatic triggers; capture() still works
	MultiShot  bool // Allow re-arming after the stable count cycles through zero

	// Output
	OutputQuality  float64  // JPEG quality in [0,1]
	OutputEncoding Encoding // Raw bytes or base64 text
	Persist        bool     // Write the document to the configured store

	// Enhancement
	Deskew     bool    // Perspective-correct using the detected corners
	Grayscale  bool    // Convert to grayscale before encoding
	Brightness float64 // Brightness adjustment in [-100, 100]
	Contrast   float64 // Contrast adjustment in [-100, 100]
	Saturation float64 // Saturation adjustment in [-100, 100]

	// Extras
	OCR      bool   // Run text recognition on the captured document
	TraceDir string // Write annotated detection frames here when set
}

// DefaultConfig returns the recommended configuration for desk scanning
func DefaultConfig() Config {
	return Config{
		// Stability - settle for about half a second at 10 fps
		StabilityThreshold:   5,  // 5 consecutive similar frames
		CornerDriftTolerance: 24, // Corners may wander up to 24px

		// Gating - hands-free single shot
		ManualOnly: false,
		MultiShot:  false,

		// Output
		OutputQuality:  0.9, // High quality, documents compress well
		OutputEncoding: EncodingRaw,
		Persist:        true,

		// Enhancement - deskew only, keep color untouched
		Deskew:     true,
		Grayscale:  false,
		Brightness: 0,
		Contrast:   0,
		Saturation: 0,

		// Extras
		OCR:      false,
		TraceDir: "",
	}
}

// BurstConfig returns a configuration for capturing a stack of pages in sequence
func BurstConfig() Config {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 3 // Trigger faster between page swaps
	cfg.MultiShot = true
	cfg.OutputQuality = 0.8
	return cfg
}

// ManualConfig returns a configuration where the host decides when to capture
func ManualConfig() Config {
	cfg := DefaultConfig()
	cfg.ManualOnly = true
	return cfg
}

// Validate checks the configuration for values the scanner cannot work with.
func (c Config) Validate() error {
	if c.StabilityThreshold <= 0 {
		return fmt.Errorf("%w: stability threshold must be positive, got %d", ErrInvalidConfig, c.StabilityThreshold)
	}
	if c.CornerDriftTolerance <= 0 {
		return fmt.Errorf("%w: corner drift tolerance must be positive, got %v", ErrInvalidConfig, c.CornerDriftTolerance)
	}
	if c.OutputQuality < 0 || c.OutputQuality > 1 {
		return fmt.Errorf("%w: output quality must be in [0,1], got %v", ErrInvalidConfig, c.OutputQuality)
	}
	if c.OutputEncoding != EncodingRaw && c.OutputEncoding != EncodingBase64 {
		return fmt.Errorf("%w: unknown output encoding %d", ErrInvalidConfig, int(c.OutputEncoding))
	}
	for name, v := range map[string]float64{
		"brightness": c.Brightness,
		"contrast":   c.Contrast,
		"saturation": c.Saturation,
	} {
		if v < -100 || v > 100 {
			return fmt.Errorf("%w: %s must be in [-100,100], got %v", ErrInvalidConfig, name, v)
		}
	}
	return nil
}
