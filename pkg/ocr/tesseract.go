// Package ocr provides text recognition for captured documents using
// Tesseract.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/teslashibe/go-docscan/pkg/scan"
)

// Engine recognizes text in captured document images. One Tesseract client
// is shared across calls, so recognition is serialized; the capture
// controller only runs one recognition at a time anyway.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewEngine creates a Tesseract-backed recognizer. language is a Tesseract
// language code ("eng", "deu", ...); empty selects English. The matching
// traineddata must be installed on the system.
func NewEngine(language string) (*Engine, error) {
	if language == "" {
		language = "eng"
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Full page layout analysis: captures are whole document pages, not
	// single lines or sparse labels
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &Engine{client: client}, nil
}

// Close releases the Tesseract client
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// Recognize extracts the text of a captured document. The scanner treats
// recognition as best-effort: an error here leaves the document without
// text but does not fail the capture.
func (e *Engine) Recognize(ctx context.Context, doc *scan.Document) (string, error) {
	if doc == nil || len(doc.Data) == 0 {
		return "", errors.New("no document image to recognize")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return "", errors.New("recognizer is closed")
	}

	if err := e.client.SetImageFromBytes(doc.Data); err != nil {
		return "", fmt.Errorf("failed to load document image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("text recognition failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

var _ scan.TextRecognizer = (*Engine)(nil)
