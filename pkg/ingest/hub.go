// Package ingest accepts frames pushed over WebSocket by capture devices
// and exposes them to the scanner as a frame source.
package ingest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/protocol"
)

// DeviceConnection represents a connected capture device
type DeviceConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the device
func (d *DeviceConnection) Send(msg *protocol.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return d.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages WebSocket connections from capture devices. Frame messages
// from every device merge into one stream with hub-assigned sequence
// numbers, so the scanner sees a single framesource.Source regardless of
// how many devices push.
type Hub struct {
	mu      sync.RWMutex
	devices map[string]*DeviceConnection
	closed  bool

	frames chan framesource.Frame
	seq    atomic.Uint64

	// onCapture fires when a device requests a manual capture, typically
	// from a hardware button.
	onCapture func(deviceID string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	framesDropped    atomic.Uint64
}

// NewHub creates a new device hub
func NewHub() *Hub {
	return &Hub{
		devices: make(map[string]*DeviceConnection),
		frames:  make(chan framesource.Frame, 1),
	}
}

// Frames implements framesource.Source.
func (h *Hub) Frames() <-chan framesource.Frame {
	return h.frames
}

// Close implements framesource.Source. Connected devices are dropped and
// the frame channel is closed.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	devices := make([]*DeviceConnection, 0, len(h.devices))
	for _, d := range h.devices {
		devices = append(devices, d)
	}
	h.mu.Unlock()

	for _, d := range devices {
		d.Conn.Close()
	}
	close(h.frames)
	return nil
}

// OnCapture sets the callback for device-initiated capture requests
func (h *Hub) OnCapture(callback func(deviceID string)) {
	h.mu.Lock()
	h.onCapture = callback
	h.mu.Unlock()
}

// RegisterRoutes registers the device WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware, scoped so it cannot shadow other
	// /ws routes registered elsewhere
	app.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/device", websocket.New(h.handleDevice))
	app.Get("/ws/device/:id", websocket.New(h.handleDevice))
}

// handleDevice handles a device WebSocket connection
func (h *Hub) handleDevice(c *websocket.Conn) {
	deviceID := c.Params("id")
	if deviceID == "" {
		deviceID = generateDeviceID()
	}

	device := &DeviceConnection{
		ID:        deviceID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.Close()
		return
	}
	h.devices[deviceID] = device
	deviceCount := len(h.devices)
	h.mu.Unlock()

	log.Info("capture device connected", "device", deviceID, "total", deviceCount)

	defer func() {
		h.mu.Lock()
		delete(h.devices, deviceID)
		deviceCount := len(h.devices)
		h.mu.Unlock()

		log.Info("capture device disconnected", "device", deviceID, "total", deviceCount)
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("device read ended", "device", deviceID, "error", err)
			return
		}

		device.mu.Lock()
		device.LastSeen = time.Now()
		device.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(deviceID, data)
	}
}

// handleMessage processes an incoming message from a device
func (h *Hub) handleMessage(deviceID string, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Debug("device message parse error", "device", deviceID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeFrame:
		frame, err := msg.GetFrameData()
		if err != nil {
			log.Debug("frame payload parse error", "device", deviceID, "error", err)
			return
		}
		h.handleFrame(deviceID, frame)

	case protocol.TypeCapture:
		h.mu.RLock()
		captureCb := h.onCapture
		h.mu.RUnlock()
		if captureCb != nil {
			captureCb(deviceID)
		}

	case protocol.TypePing:
		h.sendPong(deviceID, msg.Timestamp)
	}
}

// handleFrame decodes a frame payload and delivers it to the scanner
func (h *Hub) handleFrame(deviceID string, fd *protocol.FrameData) {
	jpeg, err := fd.DecodeFrameData()
	if err != nil {
		log.Debug("frame decode error", "device", deviceID, "error", err)
		return
	}
	if len(jpeg) == 0 {
		return
	}

	h.framesReceived.Add(1)
	h.deliver(framesource.Frame{
		Seq:    h.seq.Add(1),
		JPEG:   jpeg,
		Width:  fd.Width,
		Height: fd.Height,
		At:     time.Now(),
	})
}

// deliver hands a frame to the consumer without blocking the read loop.
// The RLock pairs with the write lock in Close so a frame is never sent
// on a closed channel.
func (h *Hub) deliver(frame framesource.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	select {
	case h.frames <- frame:
	default:
		// Consumer busy: drop rather than queue stale frames
		h.framesDropped.Add(1)
		log.Debug("ingest frame dropped, consumer busy", "seq", frame.Seq)
	}
}

// sendPong sends a pong response to a device
func (h *Hub) sendPong(deviceID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToDevice(deviceID, msg)
}

// SendConfig pushes the active configuration to a device
func (h *Hub) SendConfig(deviceID string, msg *protocol.Message) error {
	return h.sendToDevice(deviceID, msg)
}

// Broadcast sends a message to every connected device
func (h *Hub) Broadcast(msg *protocol.Message) {
	h.mu.RLock()
	devices := make([]*DeviceConnection, 0, len(h.devices))
	for _, d := range h.devices {
		devices = append(devices, d)
	}
	h.mu.RUnlock()

	for _, device := range devices {
		h.messagesSent.Add(1)
		if err := device.Send(msg); err != nil {
			log.Debug("device broadcast failed", "device", device.ID, "error", err)
		}
	}
}

// sendToDevice sends a message to a specific device
func (h *Hub) sendToDevice(deviceID string, msg *protocol.Message) error {
	h.mu.RLock()
	device, ok := h.devices[deviceID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "device not connected")
	}

	h.messagesSent.Add(1)
	return device.Send(msg)
}

// GetDevice returns a device connection by ID
func (h *Hub) GetDevice(deviceID string) *DeviceConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.devices[deviceID]
}

// DeviceCount returns the number of connected devices
func (h *Hub) DeviceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices)
}

// Stats contains hub statistics
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	FramesDropped    uint64 `json:"frames_dropped"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		DeviceCount:      h.DeviceCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		FramesDropped:    h.framesDropped.Load(),
	}
}

// DeviceInfo contains info about a connected device
type DeviceInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetDeviceInfos returns info about all connected devices
func (h *Hub) GetDeviceInfos() []DeviceInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]DeviceInfo, 0, len(h.devices))
	for _, d := range h.devices {
		d.mu.Lock()
		infos = append(infos, DeviceInfo{
			ID:        d.ID,
			Connected: d.Connected,
			LastSeen:  d.LastSeen,
		})
		d.mu.Unlock()
	}
	return infos
}

// generateDeviceID generates a unique device ID
func generateDeviceID() string {
	return uuid.NewString()[:8]
}

var _ framesource.Source = (*Hub)(nil)
