package protocol

import (
	"encoding/base64"

	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/geometry"
	"github.com/teslashibe/go-docscan/pkg/scan"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFrameMessage creates a frame message from a camera frame
func NewFrameMessage(frame framesource.Frame) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:  frame.Width,
		Height: frame.Height,
		Format: "jpeg",
		Data:   base64.StdEncoding.EncodeToString(frame.JPEG),
		Seq:    frame.Seq,
	})
}

// NewCaptureMessage creates a manual capture request
func NewCaptureMessage() (*Message, error) {
	return NewMessage(TypeCapture, nil)
}

// NewRectangleMessage creates a rectangle event message
func NewRectangleMessage(ev scan.RectangleEvent) (*Message, error) {
	return NewMessage(TypeRectangle, RectangleFromEvent(ev))
}

// NewPictureMessage creates a picture event message
func NewPictureMessage(out scan.Outcome) (*Message, error) {
	return NewMessage(TypePicture, PictureFromOutcome(out))
}

// NewStatusMessage creates a status snapshot message
func NewStatusMessage(st scan.Status) (*Message, error) {
	return NewMessage(TypeStatus, StatusFromScan(st))
}

// NewConfigMessage creates a configuration snapshot message
func NewConfigMessage(cfg scan.Config) (*Message, error) {
	return NewMessage(TypeConfig, ConfigFromScan(cfg))
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeFrameData decodes the base64 image data
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetRectangleData extracts rectangle event data from a message
func (m *Message) GetRectangleData() (*RectangleData, error) {
	var data RectangleData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPictureData extracts picture event data from a message
func (m *Message) GetPictureData() (*PictureData, error) {
	var data PictureData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodePictureData decodes the base64 document image
func (p *PictureData) DecodePictureData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

// GetStatusData extracts a status snapshot from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetConfigData extracts a configuration snapshot from a message
func (m *Message) GetConfigData() (*ConfigData, error) {
	var data ConfigData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetConfigUpdate extracts a partial configuration change from a message
func (m *Message) GetConfigUpdate() (*ConfigUpdate, error) {
	var data ConfigUpdate
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// =============================================================================
// Conversions between wire and engine types
// =============================================================================

// QuadFromGeometry converts a detected outline to its wire form
func QuadFromGeometry(q *geometry.Quadrilateral) *QuadData {
	if q == nil {
		return nil
	}
	return &QuadData{
		TopLeft:     PointData{X: q.TopLeft.X, Y: q.TopLeft.Y},
		TopRight:    PointData{X: q.TopRight.X, Y: q.TopRight.Y},
		BottomRight: PointData{X: q.BottomRight.X, Y: q.BottomRight.Y},
		BottomLeft:  PointData{X: q.BottomLeft.X, Y: q.BottomLeft.Y},
	}
}

// ToGeometry converts a wire outline back to the engine type
func (q *QuadData) ToGeometry() *geometry.Quadrilateral {
	if q == nil {
		return nil
	}
	quad := geometry.NewQuadrilateral([4]geometry.Point{
		{X: q.TopLeft.X, Y: q.TopLeft.Y},
		{X: q.TopRight.X, Y: q.TopRight.Y},
		{X: q.BottomRight.X, Y: q.BottomRight.Y},
		{X: q.BottomLeft.X, Y: q.BottomLeft.Y},
	})
	return &quad
}

// RectangleFromEvent converts a rectangle event to its wire form
func RectangleFromEvent(ev scan.RectangleEvent) RectangleData {
	return RectangleData{
		Change:      ev.Change.String(),
		Quad:        QuadFromGeometry(ev.Quad),
		StableCount: ev.StableCount,
		FrameSeq:    ev.FrameSeq,
	}
}

// PictureFromOutcome converts a capture outcome to its wire form
func PictureFromOutcome(out scan.Outcome) PictureData {
	data := PictureData{
		RequestID: out.RequestID,
		Mode:      out.Mode.String(),
		OK:        out.OK,
		Shots:     out.Shots,
	}
	if out.Err != nil {
		data.Error = out.Err.Error()
	}
	if doc := out.Document; doc != nil {
		data.Width = doc.Width
		data.Height = doc.Height
		data.Format = doc.Format
		data.Data = doc.Base64
		data.Quad = QuadFromGeometry(doc.Quad)
		data.Text = doc.Text
		data.StoredRef = doc.StoredRef
		if !doc.CapturedAt.IsZero() {
			data.CapturedAt = doc.CapturedAt.UnixMilli()
		}
	}
	return data
}

// StatusFromScan converts a scanner status snapshot to its wire form
func StatusFromScan(st scan.Status) StatusData {
	data := StatusData{
		Running:     st.Running,
		Gate:        st.Gate.String(),
		StableCount: st.Stability.Count,
		Quad:        QuadFromGeometry(st.Stability.Quad),
		InFlight:    st.InFlight,
		ShotsTaken:  st.ShotsTaken,
		FrameSeq:    st.FrameSeq,
		Config:      ConfigFromScan(st.Config),
	}
	if !st.LastFrame.IsZero() {
		data.LastFrame = st.LastFrame.UnixMilli()
	}
	return data
}

// ConfigFromScan converts a session configuration to its wire form
func ConfigFromScan(cfg scan.Config) ConfigData {
	return ConfigData{
		StabilityThreshold:   cfg.StabilityThreshold,
		CornerDriftTolerance: cfg.CornerDriftTolerance,
		ManualOnly:           cfg.ManualOnly,
		MultiShot:            cfg.MultiShot,
		OutputQuality:        cfg.OutputQuality,
		OutputEncoding:       cfg.OutputEncoding.String(),
		Persist:              cfg.Persist,
		Deskew:               cfg.Deskew,
		Grayscale:            cfg.Grayscale,
		Brightness:           cfg.Brightness,
		Contrast:             cfg.Contrast,
		Saturation:           cfg.Saturation,
		OCR:                  cfg.OCR,
	}
}

// ApplyTo overlays the update on a configuration. Nil fields keep the value
// from cfg. The result is not validated here; the scanner rejects bad values
// when the configuration is applied.
func (u ConfigUpdate) ApplyTo(cfg scan.Config) (scan.Config, error) {
	if u.StabilityThreshold != nil {
		cfg.StabilityThreshold = *u.StabilityThreshold
	}
	if u.CornerDriftTolerance != nil {
		cfg.CornerDriftTolerance = *u.CornerDriftTolerance
	}
	if u.ManualOnly != nil {
		cfg.ManualOnly = *u.ManualOnly
	}
	if u.MultiShot != nil {
		cfg.MultiShot = *u.MultiShot
	}
	if u.OutputQuality != nil {
		cfg.OutputQuality = *u.OutputQuality
	}
	if u.OutputEncoding != nil {
		enc, err := scan.ParseEncoding(*u.OutputEncoding)
		if err != nil {
			return cfg, err
		}
		cfg.OutputEncoding = enc
	}
	if u.Persist != nil {
		cfg.Persist = *u.Persist
	}
	if u.Deskew != nil {
		cfg.Deskew = *u.Deskew
	}
	if u.Grayscale != nil {
		cfg.Grayscale = *u.Grayscale
	}
	if u.Brightness != nil {
		cfg.Brightness = *u.Brightness
	}
	if u.Contrast != nil {
		cfg.Contrast = *u.Contrast
	}
	if u.Saturation != nil {
		cfg.Saturation = *u.Saturation
	}
	if u.OCR != nil {
		cfg.OCR = *u.OCR
	}
	return cfg, nil
}
