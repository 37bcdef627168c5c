package capture

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teslashibe/go-docscan/pkg/scan"
)

func testDriveStore(t *testing.T) *DriveStore {
	t.Helper()
	store, err := NewDriveStore(DriveConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		TokenPath:    filepath.Join(t.TempDir(), "token.json"),
	})
	if err != nil {
		t.Fatalf("NewDriveStore failed: %v", err)
	}
	return store
}

func TestNewDriveStoreRequiresCredentials(t *testing.T) {
	if _, err := NewDriveStore(DriveConfig{}); err == nil {
		t.Error("Expected an error without client credentials")
	}
	if _, err := NewDriveStore(DriveConfig{ClientID: "id-only"}); err == nil {
		t.Error("Expected an error without a client secret")
	}
}

func TestDriveStoreUnauthenticatedSave(t *testing.T) {
	store := testDriveStore(t)

	if store.IsAuthenticated() {
		t.Error("Expected a fresh store to be unauthenticated")
	}

	doc := &scan.Document{Data: []byte{0xFF, 0xD8}, Format: "jpeg"}
	_, err := store.Save(context.Background(), scan.Request{ID: "req-1"}, doc)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestDriveStoreStatus(t *testing.T) {
	store := testDriveStore(t)

	status := store.Status()
	if status.Connected {
		t.Error("Expected disconnected status before the OAuth flow")
	}
	if status.AuthURL == "" {
		t.Fatal("Expected an auth URL for the operator to visit")
	}
	if !strings.Contains(status.AuthURL, "test-client") {
		t.Errorf("Expected the client id in the auth URL, got %s", status.AuthURL)
	}
	if !strings.Contains(status.AuthURL, "access_type=offline") {
		t.Errorf("Expected offline access in the auth URL, got %s", status.AuthURL)
	}
}

func TestDriveFileURL(t *testing.T) {
	url := FileURL("abc123")
	if url != "https://drive.google.com/file/d/abc123/view" {
		t.Errorf("Unexpected file URL %s", url)
	}
}

func TestDriveStoreDisconnect(t *testing.T) {
	store := testDriveStore(t)
	if err := store.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if store.IsAuthenticated() {
		t.Error("Expected store to stay unauthenticated after disconnect")
	}
}
