package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/hub"
	"github.com/teslashibe/go-docscan/pkg/protocol"
	"github.com/teslashibe/go-docscan/pkg/scan"
)

// handleStatus returns the current scanner state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(protocol.StatusFromScan(s.scanner.Status()))
}

// handleGetConfig returns the active session configuration
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(protocol.ConfigFromScan(s.scanner.Config()))
}

// handlePatchConfig applies a partial configuration change. Fields absent
// from the body keep their current value. A successful change starts a
// fresh capture session.
func (s *Server) handlePatchConfig(c *fiber.Ctx) error {
	var update protocol.ConfigUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cfg, err := update.ApplyTo(s.scanner.Config())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.scanner.Configure(cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	s.broadcastConfig(cfg)

	return c.JSON(protocol.ConfigFromScan(cfg))
}

// broadcastConfig pushes the active configuration to UI clients and, when
// a device hub is attached, to the capture devices as well.
func (s *Server) broadcastConfig(cfg scan.Config) {
	msg, err := protocol.NewConfigMessage(cfg)
	if err != nil {
		return
	}
	s.broadcastEnvelope(msg)
	if s.ingest != nil {
		s.ingest.Broadcast(msg)
	}
}

// handleCapture requests a manual capture and returns immediately. The
// outcome arrives as a picture event on /ws/events, correlated by the
// returned request id.
func (s *Server) handleCapture(c *fiber.Ctx) error {
	id, err := s.scanner.Capture()
	if err != nil {
		return c.Status(captureErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"request_id": id})
}

// handleCaptureWait requests a manual capture and blocks until the attempt
// finishes, returning the full picture payload.
func (s *Server) handleCaptureWait(c *fiber.Ctx) error {
	out, err := s.scanner.CaptureWait(c.UserContext())
	if err != nil {
		return c.Status(captureErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(protocol.PictureFromOutcome(out))
}

// captureErrorStatus maps capture rejections to HTTP statuses
func captureErrorStatus(err error) int {
	switch {
	case errors.Is(err, scan.ErrAlreadyCapturing):
		return fiber.StatusConflict
	case errors.Is(err, scan.ErrNoFrame):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// handleFrame returns the latest camera frame as a JPEG
func (s *Server) handleFrame(c *fiber.Ctx) error {
	s.frameMu.RLock()
	frame := s.lastFrame
	s.frameMu.RUnlock()

	if frame.Empty() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no frame received yet"})
	}

	c.Set("Content-Type", "image/jpeg")
	return c.Send(frame.JPEG)
}

// handleDevices lists connected capture devices
func (s *Server) handleDevices(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"devices": s.ingest.GetDeviceInfos(),
		"count":   s.ingest.DeviceCount(),
	})
}

// handleDeviceStats returns ingest hub statistics
func (s *Server) handleDeviceStats(c *fiber.Ctx) error {
	return c.JSON(s.ingest.GetStats())
}

// handleDriveStatus reports the Drive connection state
func (s *Server) handleDriveStatus(c *fiber.Ctx) error {
	return c.JSON(s.drive.Status())
}

// handleDriveAuth redirects the operator into the OAuth consent flow
func (s *Server) handleDriveAuth(c *fiber.Ctx) error {
	return c.Redirect(s.drive.AuthURL(), fiber.StatusFound)
}

// handleDriveCallback completes the OAuth flow
func (s *Server) handleDriveCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing code parameter"})
	}

	if err := s.drive.HandleCallback(code); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.SendString("Google Drive connected. You can close this tab.")
}

// handleDriveDisconnect drops the Drive authentication
func (s *Server) handleDriveDisconnect(c *fiber.Ctx) error {
	if err := s.drive.Disconnect(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "disconnected"})
}

// handleEventsWS serves the scanner event stream. New clients get a status
// snapshot before joining the broadcast, and may send capture commands.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	// Written before the client registers, so nothing else writes to the
	// connection yet
	if msg, err := protocol.NewStatusMessage(s.scanner.Status()); err == nil {
		if data, err := msg.Bytes(); err == nil {
			c.WriteMessage(websocket.TextMessage, data)
		}
	}

	client := hub.NewClient(s.eventHub, c)
	client.OnMessage = s.handleClientCommand
	client.Run()
}

// handleClientCommand processes envelopes sent by event stream clients
func (s *Server) handleClientCommand(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Debug("client command parse error", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeCapture:
		if _, err := s.scanner.Capture(); err != nil {
			log.Debug("client capture rejected", "error", err)
		}
	case protocol.TypeConfig:
		update, err := msg.GetConfigUpdate()
		if err != nil {
			log.Debug("client config parse error", "error", err)
			return
		}
		cfg, err := update.ApplyTo(s.scanner.Config())
		if err == nil {
			err = s.scanner.Configure(cfg)
		}
		if err != nil {
			log.Debug("client config rejected", "error", err)
			return
		}
		s.broadcastConfig(cfg)
	}
}

// handleFramesWS serves the live preview stream as binary JPEG messages
func (s *Server) handleFramesWS(c *websocket.Conn) {
	s.frameMu.RLock()
	last := s.lastFrame
	s.frameMu.RUnlock()

	if !last.Empty() {
		c.WriteMessage(websocket.BinaryMessage, last.JPEG)
	}

	hub.NewClient(s.frameHub, c).Run()
}
