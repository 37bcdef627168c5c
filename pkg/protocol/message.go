// Package protocol defines the WebSocket and REST message types shared by the
// scanner service and its clients: capture devices pushing frames in, and UIs
// receiving detection and capture events.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Device → Server messages
	TypeFrame   MessageType = "frame"   // Camera frame
	TypeCapture MessageType = "capture" // Manual capture request

	// Server → Client messages
	TypeRectangle MessageType = "rectangle" // Document outline changed
	TypePicture   MessageType = "picture"   // Capture attempt finished
	TypeStatus    MessageType = "status"    // Scanner state snapshot
	TypeConfig    MessageType = "config"    // Active session configuration

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Device → Server Message Types
// =============================================================================

// FrameData contains one camera frame
type FrameData struct {
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Format string `json:"format"`        // "jpeg"
	Data   string `json:"data"`          // base64 encoded
	Seq    uint64 `json:"seq,omitempty"` // Device frame counter
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// PointData is a pixel coordinate in the source frame
type PointData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// QuadData describes a document outline, corners clockwise from top-left
type QuadData struct {
	TopLeft     PointData `json:"tl"`
	TopRight    PointData `json:"tr"`
	BottomRight PointData `json:"br"`
	BottomLeft  PointData `json:"bl"`
}

// RectangleData reports a change in the detected document outline
type RectangleData struct {
	Change      string    `json:"change"` // "gained", "moved", "lost"
	Quad        *QuadData `json:"quad,omitempty"`
	StableCount int       `json:"stable_count"`
	FrameSeq    uint64    `json:"frame_seq"`
}

// PictureData reports one finished capture attempt
type PictureData struct {
	RequestID string `json:"request_id"`
	Mode      string `json:"mode"` // "auto", "manual"
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Shots     int    `json:"shots"` // Session shot count after this attempt

	// Document fields, present when the attempt produced one
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Format     string    `json:"format,omitempty"`
	Data       string    `json:"data,omitempty"` // base64, only when the session asked for it
	Quad       *QuadData `json:"quad,omitempty"`
	Text       string    `json:"text,omitempty"`
	StoredRef  string    `json:"stored_ref,omitempty"`
	CapturedAt int64     `json:"captured_at,omitempty"` // Unix milliseconds
}

// StatusData is a scanner state snapshot
type StatusData struct {
	Running     bool       `json:"running"`
	Gate        string     `json:"gate"` // "idle", "armed", "triggered", "disarmed"
	StableCount int        `json:"stable_count"`
	Quad        *QuadData  `json:"quad,omitempty"`
	InFlight    bool       `json:"in_flight"`
	ShotsTaken  int        `json:"shots_taken"`
	FrameSeq    uint64     `json:"frame_seq"`
	LastFrame   int64      `json:"last_frame,omitempty"` // Unix milliseconds
	Config      ConfigData `json:"config"`
}

// ConfigData is the wire form of a session configuration
type ConfigData struct {
	StabilityThreshold   int     `json:"stability_threshold"`
	CornerDriftTolerance float64 `json:"corner_drift_tolerance"`
	ManualOnly           bool    `json:"manual_only"`
	MultiShot            bool    `json:"multi_shot"`
	OutputQuality        float64 `json:"output_quality"`
	OutputEncoding       string  `json:"output_encoding"` // "raw", "base64"
	Persist              bool    `json:"persist"`
	Deskew               bool    `json:"deskew"`
	Grayscale            bool    `json:"grayscale"`
	Brightness           float64 `json:"brightness"`
	Contrast             float64 `json:"contrast"`
	Saturation           float64 `json:"saturation"`
	OCR                  bool    `json:"ocr"`
}

// ConfigUpdate is a partial configuration change. Nil fields keep their
// current value.
type ConfigUpdate struct {
	StabilityThreshold   *int     `json:"stability_threshold,omitempty"`
	CornerDriftTolerance *float64 `json:"corner_drift_tolerance,omitempty"`
	ManualOnly           *bool    `json:"manual_only,omitempty"`
	MultiShot            *bool    `json:"multi_shot,omitempty"`
	OutputQuality        *float64 `json:"output_quality,omitempty"`
	OutputEncoding       *string  `json:"output_encoding,omitempty"`
	Persist              *bool    `json:"persist,omitempty"`
	Deskew               *bool    `json:"deskew,omitempty"`
	Grayscale            *bool    `json:"grayscale,omitempty"`
	Brightness           *float64 `json:"brightness,omitempty"`
	Contrast             *float64 `json:"contrast,omitempty"`
	Saturation           *float64 `json:"saturation,omitempty"`
	OCR                  *bool    `json:"ocr,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
