package web

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-docscan/pkg/framesource"
	"github.com/teslashibe/go-docscan/pkg/protocol"
	"github.com/teslashibe/go-docscan/pkg/scan"
	"github.com/teslashibe/go-docscan/pkg/scan/detection"
)

func readEnvelope(t *testing.T, conn *websocket.Conn) *protocol.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	return msg
}

func TestEventStreamSocket(t *testing.T) {
	cfg := scan.DefaultConfig()
	cfg.Persist = false

	scanner, err := scan.New(cfg, detection.NewMock(), &stubPipeline{})
	if err != nil {
		t.Fatalf("New scanner: %v", err)
	}

	srv := NewServer("18093", scanner)
	scanner.AddSink(srv)

	srv.StartAsync()
	defer srv.Shutdown()
	time.Sleep(300 * time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18093/ws/events", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// New clients get a status snapshot first
	msg := readEnvelope(t, conn)
	if msg.Type != protocol.TypeStatus {
		t.Fatalf("first message = %s, want status", msg.Type)
	}
	st, err := msg.GetStatusData()
	if err != nil {
		t.Fatalf("GetStatusData: %v", err)
	}
	if st.ShotsTaken != 0 {
		t.Errorf("ShotsTaken = %d, want 0", st.ShotsTaken)
	}

	// Wait for the client to finish registering with the hub
	time.Sleep(100 * time.Millisecond)

	// A detection gain reaches the stream
	scanner.HandleDetection(testFrame(1), detection.Result{Quad: testQuad(), Confidence: 0.9})

	msg = readEnvelope(t, conn)
	if msg.Type != protocol.TypeRectangle {
		t.Fatalf("message = %s, want rectangle", msg.Type)
	}
	rect, err := msg.GetRectangleData()
	if err != nil {
		t.Fatalf("GetRectangleData: %v", err)
	}
	if rect.Change != "gained" {
		t.Errorf("Change = %q, want gained", rect.Change)
	}
	if rect.StableCount != 1 {
		t.Errorf("StableCount = %d, want 1", rect.StableCount)
	}
	if rect.Quad == nil {
		t.Error("Quad is nil, want detected outline")
	}

	// A capture command comes back as a picture followed by fresh status
	cmd, err := protocol.NewCaptureMessage()
	if err != nil {
		t.Fatalf("NewCaptureMessage: %v", err)
	}
	data, err := cmd.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	msg = readEnvelope(t, conn)
	if msg.Type != protocol.TypePicture {
		t.Fatalf("message = %s, want picture", msg.Type)
	}
	pic, err := msg.GetPictureData()
	if err != nil {
		t.Fatalf("GetPictureData: %v", err)
	}
	if !pic.OK {
		t.Errorf("OK = false, want true (error %q)", pic.Error)
	}
	if pic.Mode != "manual" {
		t.Errorf("Mode = %q, want manual", pic.Mode)
	}
	if pic.Shots != 1 {
		t.Errorf("Shots = %d, want 1", pic.Shots)
	}

	msg = readEnvelope(t, conn)
	if msg.Type != protocol.TypeStatus {
		t.Fatalf("message = %s, want status", msg.Type)
	}
	st, err = msg.GetStatusData()
	if err != nil {
		t.Fatalf("GetStatusData: %v", err)
	}
	if st.ShotsTaken != 1 {
		t.Errorf("ShotsTaken = %d, want 1", st.ShotsTaken)
	}
}

func TestFrameStreamSocket(t *testing.T) {
	cfg := scan.DefaultConfig()
	cfg.Persist = false

	scanner, err := scan.New(cfg, detection.NewMock(), &stubPipeline{})
	if err != nil {
		t.Fatalf("New scanner: %v", err)
	}

	srv := NewServer("18094", scanner)
	srv.StartAsync()
	defer srv.Shutdown()
	time.Sleep(300 * time.Millisecond)

	first := []byte{0xff, 0xd8, 0x01}
	srv.PushFrame(framesource.Frame{Seq: 1, JPEG: first, Width: 320, Height: 240, At: time.Now()})

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18094/ws/frames", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Latest frame arrives immediately as the preview seed
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", mt)
	}
	if string(data) != string(first) {
		t.Error("seed frame does not match pushed frame")
	}

	// Wait for the client to finish registering with the hub
	time.Sleep(100 * time.Millisecond)

	second := []byte{0xff, 0xd8, 0x02}
	srv.PushFrame(framesource.Frame{Seq: 2, JPEG: second, Width: 320, Height: 240, At: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", mt)
	}
	if string(data) != string(second) {
		t.Error("broadcast frame does not match pushed frame")
	}
}
