// Package web provides the REST and WebSocket surface of the document
// scanner: status and configuration endpoints, capture triggers, Google
// Drive authentication, and live event/preview streams for UIs.
package web

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/capture"
	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/hub"
	"github.com/teslashibe/go-docscan/pkg/ingest"
	"github.com/teslashibe/go-docscan/pkg/protocol"
	"github.com/teslashibe/go-docscan/pkg/scan"
)

// Server is the scanner's web server
type Server struct {
	app     *fiber.App
	port    string
	scanner *scan.Scanner

	// Optional attachments
	ingest *ingest.Hub
	drive  *capture.DriveStore

	// Hubs for websocket broadcast
	eventHub *hub.Hub
	frameHub *hub.Hub

	// Latest preview frame for late joiners and the snapshot endpoint
	frameMu   sync.RWMutex
	lastFrame framesource.Frame
}

// NewServer creates a web server for the given scanner
func NewServer(port string, scanner *scan.Scanner) *Server {
	s := &Server{
		port:     port,
		scanner:  scanner,
		eventHub: hub.New("events"),
		frameHub: hub.New("frames"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "docscan",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files for the bundled UI
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleGetConfig)
	api.Patch("/config", s.handlePatchConfig)
	api.Post("/capture", s.handleCapture)
	api.Post("/capture/wait", s.handleCaptureWait)
	api.Get("/frame", s.handleFrame)

	// WebSocket upgrade middleware, scoped to the client streams so the
	// device ingest route can carry its own
	app.Use("/ws/events", upgradeRequired)
	app.Use("/ws/frames", upgradeRequired)

	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	s.app = app
	return s
}

func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// SetIngest attaches a device ingest hub: its WebSocket route joins this
// server and the device endpoints appear under /api/devices.
func (s *Server) SetIngest(h *ingest.Hub) {
	s.ingest = h
	h.RegisterRoutes(s.app)

	devices := s.app.Group("/api/devices")
	devices.Get("/", s.handleDevices)
	devices.Get("/stats", s.handleDeviceStats)
}

// SetDrive attaches a Google Drive store and its auth endpoints.
func (s *Server) SetDrive(d *capture.DriveStore) {
	s.drive = d

	drive := s.app.Group("/api/drive")
	drive.Get("/status", s.handleDriveStatus)
	drive.Get("/auth", s.handleDriveAuth)
	drive.Get("/callback", s.handleDriveCallback)
	drive.Post("/disconnect", s.handleDriveDisconnect)
}

// Start starts the web server and its broadcast hubs
func (s *Server) Start() error {
	go s.eventHub.Run()
	go s.frameHub.Run()

	log.Info("web server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	s.eventHub.Stop()
	s.frameHub.Stop()
	return s.app.Shutdown()
}

// PushFrame feeds a camera frame into the live preview stream. Wire it as
// a framesource tee so the scanner still receives every frame.
func (s *Server) PushFrame(frame framesource.Frame) {
	if frame.Empty() {
		return
	}

	s.frameMu.Lock()
	s.lastFrame = frame
	s.frameMu.Unlock()

	s.frameHub.BroadcastBinary(frame.JPEG)
}

// RectangleChanged implements scan.Sink by pushing the event to /ws/events.
func (s *Server) RectangleChanged(ev scan.RectangleEvent) {
	msg, err := protocol.NewRectangleMessage(ev)
	if err != nil {
		return
	}
	s.broadcastEnvelope(msg)
}

// PictureTaken implements scan.Sink. Clients get the picture event plus a
// fresh status snapshot, since shot accounting changed with it.
func (s *Server) PictureTaken(out scan.Outcome) {
	msg, err := protocol.NewPictureMessage(out)
	if err != nil {
		return
	}
	s.broadcastEnvelope(msg)

	if status, err := protocol.NewStatusMessage(s.scanner.Status()); err == nil {
		s.broadcastEnvelope(status)
	}
}

func (s *Server) broadcastEnvelope(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	s.eventHub.Broadcast(hub.NewJSONMessage(data))
}

var _ scan.Sink = (*Server)(nil)
