package web

import (
	"encoding/json"

	"github.com/teslashibe/go-docscan/internal/httpc"
	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/protocol"
	"github.com/teslashibe/go-docscan/pkg/scan"
)

// WebhookSink posts completed captures to an external endpoint. Each
// finished attempt, manual or automatic, is delivered as a JSON picture
// payload. Rectangle events are not forwarded.
type WebhookSink struct {
	url string
}

// NewWebhookSink creates a sink that posts capture outcomes to url
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{url: url}
}

// RectangleChanged is a no-op; webhooks only care about captures
func (w *WebhookSink) RectangleChanged(ev scan.RectangleEvent) {}

// PictureTaken posts the outcome to the webhook endpoint. Delivery happens
// in the background so a slow endpoint never stalls the scanner.
func (w *WebhookSink) PictureTaken(out scan.Outcome) {
	data, err := json.Marshal(protocol.PictureFromOutcome(out))
	if err != nil {
		log.Warn("webhook payload marshal failed", "error", err)
		return
	}

	go func() {
		resp, err := httpc.Post(w.url, "application/json", data)
		if err != nil {
			log.Warn("webhook delivery failed", "url", w.url, "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			log.Warn("webhook rejected", "url", w.url, "status", resp.StatusCode)
		}
	}()
}

var _ scan.Sink = (*WebhookSink)(nil)
