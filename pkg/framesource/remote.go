package framesource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"github.com/teslashibe/go-docscan/internal/log"
)

// RemoteOpts has options for a WebRTC remote camera source.
type RemoteOpts struct {
	// SignalURL is the GStreamer-style signalling server, e.g. ws://host:8443.
	SignalURL string

	// ProducerName selects the camera producer by its meta name.
	ProducerName string

	// DecodeInterval bounds how often access units are transcoded to JPEG.
	DecodeInterval time.Duration
}

// DefaultRemoteOpts returns defaults for a phone or browser camera producer.
func DefaultRemoteOpts(signalURL string) RemoteOpts {
	return RemoteOpts{
		SignalURL:      signalURL,
		ProducerName:   "docscan-camera",
		DecodeInterval: 100 * time.Millisecond,
	}
}

// Remote streams frames from a WebRTC camera producer. Signalling follows
// the GStreamer webrtcsink protocol: welcome, producer list, startSession,
// then peer messages carrying SDP and ICE. H264 RTP packets are
// depacketized to Annex-B access units and transcoded to JPEG with ffmpeg.
type Remote struct {
	opts RemoteOpts

	ws      *websocket.Conn
	pc      *webrtc.PeerConnection
	wsMutex sync.Mutex

	peerID     string
	producerID string
	sessionID  string

	frames  chan Frame
	tempDir string

	// Cached parameter sets, prepended when a decode buffer lacks them
	sps []byte
	pps []byte

	mu     sync.Mutex
	seq    uint64
	closed bool

	trackReady chan struct{}
}

// NewRemote connects to the signalling server and starts receiving video.
func NewRemote(opts RemoteOpts) (*Remote, error) {
	if opts.DecodeInterval <= 0 {
		opts.DecodeInterval = 100 * time.Millisecond
	}

	r := &Remote{
		opts:       opts,
		frames:     make(chan Frame, 1),
		trackReady: make(chan struct{}, 1),
	}

	tempDir, err := os.MkdirTemp("", "docscan-remote-*")
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %w", err)
	}
	r.tempDir = tempDir

	if err := r.connect(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Frames implements Source.
func (r *Remote) Frames() <-chan Frame {
	return r.frames
}

func (r *Remote) connect() error {
	log.Info("connecting to signalling server", "url", r.opts.SignalURL)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	var err error
	r.ws, _, err = dialer.Dial(r.opts.SignalURL, nil)
	if err != nil {
		return fmt.Errorf("signalling connect failed: %w", err)
	}

	if err := r.waitForWelcome(); err != nil {
		return fmt.Errorf("welcome failed: %w", err)
	}
	log.Debug("signalling welcome received", "peer_id", r.peerID)

	if err := r.findProducer(); err != nil {
		return fmt.Errorf("find producer failed: %w", err)
	}
	log.Info("found camera producer", "producer_id", r.producerID)

	if err := r.createPeerConnection(); err != nil {
		return fmt.Errorf("peer connection failed: %w", err)
	}

	if err := r.startSession(); err != nil {
		return fmt.Errorf("start session failed: %w", err)
	}

	go r.handleSignalling()

	select {
	case <-r.trackReady:
		log.Info("remote video track connected")
	case <-time.After(15 * time.Second):
		return fmt.Errorf("timeout waiting for video track")
	}
	return nil
}

func (r *Remote) waitForWelcome() error {
	r.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := r.ws.ReadMessage()
	r.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	r.peerID = welcome.PeerID
	return nil
}

func (r *Remote) findProducer() error {
	r.wsMutex.Lock()
	err := r.ws.WriteJSON(map[string]string{"type": "list"})
	r.wsMutex.Unlock()
	if err != nil {
		return err
	}

	r.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := r.ws.ReadMessage()
	r.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var listResp struct {
		Type      string `json:"type"`
		Producers []struct {
			ID   string            `json:"id"`
			Meta map[string]string `json:"meta"`
		} `json:"producers"`
	}
	if err := json.Unmarshal(msg, &listResp); err != nil {
		return err
	}

	for _, p := range listResp.Producers {
		if name, ok := p.Meta["name"]; ok && name == r.opts.ProducerName {
			r.producerID = p.ID
			return nil
		}
	}
	return fmt.Errorf("producer %q not found in %d producers", r.opts.ProducerName, len(listResp.Producers))
}

func (r *Remote) createPeerConnection() error {
	var err error
	r.pc, err = webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}

	if _, err = r.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	r.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info("got track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go r.handleVideoTrack(track)
		}
	})

	r.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			r.sendICECandidate(candidate)
		}
	})

	r.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("peer connection state", "state", state.String())
	})

	return nil
}

func (r *Remote) startSession() error {
	r.wsMutex.Lock()
	defer r.wsMutex.Unlock()
	return r.ws.WriteJSON(map[string]string{
		"type":   "startSession",
		"peerId": r.producerID,
	})
}

func (r *Remote) handleSignalling() {
	for !r.isClosed() {
		_, msg, err := r.ws.ReadMessage()
		if err != nil {
			if !r.isClosed() {
				log.Warn("signalling error", "error", err)
			}
			return
		}

		var baseMsg struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		json.Unmarshal(msg, &baseMsg)

		switch baseMsg.Type {
		case "sessionStarted":
			r.sessionID = baseMsg.SessionID
		case "peer":
			r.handlePeerMessage(msg)
		case "endSession":
			return
		}
	}
}

func (r *Remote) handlePeerMessage(msg []byte) {
	var peerMsg map[string]interface{}
	json.Unmarshal(msg, &peerMsg)

	if sdpData, ok := peerMsg["sdp"]; ok {
		sdpMap, ok := sdpData.(map[string]interface{})
		if !ok {
			return
		}
		sdpType, _ := sdpMap["type"].(string)
		sdpStr, _ := sdpMap["sdp"].(string)

		if sdpType == "offer" {
			offer := webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer,
				SDP:  sdpStr,
			}
			if err := r.pc.SetRemoteDescription(offer); err != nil {
				log.Warn("set remote description", "error", err)
				return
			}

			answer, err := r.pc.CreateAnswer(nil)
			if err != nil {
				log.Warn("create answer", "error", err)
				return
			}
			if err := r.pc.SetLocalDescription(answer); err != nil {
				log.Warn("set local description", "error", err)
				return
			}
			r.sendSDP(answer)
		}
	}

	if iceData, ok := peerMsg["ice"]; ok {
		iceMap, ok := iceData.(map[string]interface{})
		if !ok {
			return
		}
		candidate, _ := iceMap["candidate"].(string)

		var sdpMid string
		if mid, ok := iceMap["sdpMid"]; ok && mid != nil {
			sdpMid, _ = mid.(string)
		}
		var sdpMLineIndex uint16
		if idx, ok := iceMap["sdpMLineIndex"]; ok && idx != nil {
			if f, ok := idx.(float64); ok {
				sdpMLineIndex = uint16(f)
			}
		}

		r.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     candidate,
			SDPMid:        &sdpMid,
			SDPMLineIndex: &sdpMLineIndex,
		})
	}
}

func (r *Remote) sendSDP(sdp webrtc.SessionDescription) {
	msg := map[string]interface{}{
		"type":      "peer",
		"sessionId": r.sessionID,
		"sdp": map[string]string{
			"type": sdp.Type.String(),
			"sdp":  sdp.SDP,
		},
	}
	r.wsMutex.Lock()
	r.ws.WriteJSON(msg)
	r.wsMutex.Unlock()
}

func (r *Remote) sendICECandidate(candidate *webrtc.ICECandidate) {
	if r.sessionID == "" {
		return
	}
	init := candidate.ToJSON()
	msg := map[string]interface{}{
		"type":      "peer",
		"sessionId": r.sessionID,
		"ice": map[string]interface{}{
			"candidate":     init.Candidate,
			"sdpMid":        init.SDPMid,
			"sdpMLineIndex": init.SDPMLineIndex,
		},
	}
	r.wsMutex.Lock()
	r.ws.WriteJSON(msg)
	r.wsMutex.Unlock()
}

// handleVideoTrack depacketizes H264 RTP into access units. The marker bit
// closes an access unit; units are transcoded at most once per
// DecodeInterval.
func (r *Remote) handleVideoTrack(track *webrtc.TrackRemote) {
	select {
	case r.trackReady <- struct{}{}:
	default:
	}

	var depacketizer rtp.Depacketizer = &codecs.H264Packet{}
	var accessUnit bytes.Buffer
	var lastDecode time.Time

	for !r.isClosed() {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}

		payload, err := depacketizer.Unmarshal(pkt.Payload)
		if err != nil {
			// Incomplete fragmentation unit, wait for the next packet
			continue
		}
		r.cacheParameterSets(payload)
		accessUnit.Write(payload)

		if !depacketizer.IsPartitionTail(pkt.Marker, pkt.Payload) {
			continue
		}

		if time.Since(lastDecode) >= r.opts.DecodeInterval {
			r.transcode(accessUnit.Bytes())
			lastDecode = time.Now()
		}
		accessUnit.Reset()
	}
}

// cacheParameterSets remembers SPS and PPS NAL units so decode buffers can
// be made self-contained even when the producer sends them only once.
func (r *Remote) cacheParameterSets(annexB []byte) {
	for _, nal := range splitNALs(annexB) {
		if len(nal) == 0 {
			continue
		}
		switch nal[0] & 0x1F {
		case 7:
			r.sps = append([]byte(nil), nal...)
		case 8:
			r.pps = append([]byte(nil), nal...)
		}
	}
}

var annexBStartCode = []byte{0, 0, 1}

// splitNALs splits an Annex-B buffer into raw NAL units.
func splitNALs(annexB []byte) [][]byte {
	var nals [][]byte
	start := -1
	for i := 0; i+2 < len(annexB); i++ {
		if !bytes.Equal(annexB[i:i+3], annexBStartCode) {
			continue
		}
		if start >= 0 {
			end := i
			if end > 0 && annexB[end-1] == 0 {
				end--
			}
			nals = append(nals, annexB[start:end])
		}
		start = i + 3
		i += 2
	}
	if start >= 0 && start < len(annexB) {
		nals = append(nals, annexB[start:])
	}
	return nals
}

// transcode decodes one H264 access unit to JPEG via ffmpeg and emits it.
func (r *Remote) transcode(accessUnit []byte) {
	if len(accessUnit) < 100 {
		return
	}

	buf := accessUnit
	if !containsParameterSets(accessUnit) && r.sps != nil && r.pps != nil {
		headed := make([]byte, 0, len(r.sps)+len(r.pps)+len(accessUnit)+8)
		headed = append(headed, 0, 0, 0, 1)
		headed = append(headed, r.sps...)
		headed = append(headed, 0, 0, 0, 1)
		headed = append(headed, r.pps...)
		headed = append(headed, accessUnit...)
		buf = headed
	}

	h264Path := filepath.Join(r.tempDir, "au.h264")
	jpegPath := filepath.Join(r.tempDir, "frame.jpg")

	if err := os.WriteFile(h264Path, buf, 0o644); err != nil {
		log.Debug("write access unit", "error", err)
		return
	}

	cmd := exec.Command("ffmpeg", "-y", "-i", h264Path, "-vframes", "1", "-f", "image2", jpegPath)
	if err := cmd.Run(); err != nil {
		log.Debug("ffmpeg transcode", "error", err)
		return
	}

	jpegData, err := os.ReadFile(jpegPath)
	if err != nil || len(jpegData) < 1000 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.seq++
	select {
	case r.frames <- Frame{Seq: r.seq, JPEG: jpegData, At: time.Now()}:
	default:
		// Consumer busy: drop rather than queue stale frames
	}
}

func containsParameterSets(annexB []byte) bool {
	for _, nal := range splitNALs(annexB) {
		if len(nal) > 0 && nal[0]&0x1F == 7 {
			return true
		}
	}
	return false
}

func (r *Remote) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close shuts down the peer connection, signalling socket, and temp files.
func (r *Remote) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.frames)
	r.mu.Unlock()

	if r.pc != nil {
		r.pc.Close()
	}
	if r.ws != nil {
		r.ws.Close()
	}
	if r.tempDir != "" {
		os.RemoveAll(r.tempDir)
	}
	return nil
}

// Ensure Remote implements Source.
var _ Source = (*Remote)(nil)
