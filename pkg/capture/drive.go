package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/teslashibe/go-docscan/internal/log"
	"github.com/teslashibe/go-docscan/pkg/scan"
)

// DriveConfig configures the Google Drive document store.
type DriveConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "http://localhost:8090/api/drive/callback"
	TokenPath    string // Path to store token (default: ~/.docscan/google_token.json)
	FolderID     string // Optional Drive folder to upload into
}

// DriveStore persists captured documents to Google Drive. It owns the OAuth2
// flow: the host sends the user to AuthURL, Drive redirects back with a code
// and HandleCallback completes the exchange. The token is cached on disk so
// restarts stay authenticated.
type DriveStore struct {
	config    *oauth2.Config
	tokenPath string
	folderID  string

	mu    sync.RWMutex
	token *oauth2.Token
	svc   *drive.Service
}

// NewDriveStore creates a Drive store. The client credentials are required;
// everything else has defaults.
func NewDriveStore(cfg DriveConfig) (*DriveStore, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("capture: GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://localhost:8090/api/drive/callback"
	}
	if cfg.TokenPath == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.TokenPath = filepath.Join(homeDir, ".docscan", "google_token.json")
	}

	store := &DriveStore{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{drive.DriveFileScope},
			Endpoint:     google.Endpoint,
		},
		tokenPath: cfg.TokenPath,
		folderID:  cfg.FolderID,
	}

	// Try to resume a previous session from the cached token.
	if err := store.loadToken(); err == nil {
		if err := store.initService(); err != nil {
			store.mu.Lock()
			store.token = nil
			store.mu.Unlock()
		}
	}

	return store, nil
}

// IsAuthenticated returns true if the store has a valid token.
func (d *DriveStore) IsAuthenticated() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.token != nil && d.token.Valid()
}

// AuthURL returns the OAuth2 authorization URL for user consent.
func (d *DriveStore) AuthURL() string {
	return d.config.AuthCodeURL("docscan-state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback processes the OAuth2 callback with the authorization code.
func (d *DriveStore) HandleCallback(code string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := d.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("capture: exchange code for token: %w", err)
	}

	d.mu.Lock()
	d.token = token
	d.mu.Unlock()

	if err := d.saveToken(); err != nil {
		log.Warn("token cache write failed", "error", err)
	}
	return d.initService()
}

// Disconnect clears the authentication and removes the cached token.
func (d *DriveStore) Disconnect() error {
	d.mu.Lock()
	d.token = nil
	d.svc = nil
	d.mu.Unlock()

	if err := os.Remove(d.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("capture: remove token file: %w", err)
	}
	return nil
}

// Save implements scan.Store by uploading the document image to Drive.
func (d *DriveStore) Save(ctx context.Context, req scan.Request, doc *scan.Document) (string, error) {
	d.mu.RLock()
	svc := d.svc
	d.mu.RUnlock()
	if svc == nil {
		return "", ErrNotAuthenticated
	}

	file := &drive.File{
		Name:     fmt.Sprintf("scan-%s-%s.%s", doc.CapturedAt.Format("20060102-150405"), shortID(req.ID), ext(doc.Format)),
		MimeType: "image/" + formatName(doc.Format),
	}
	if d.folderID != "" {
		file.Parents = []string{d.folderID}
	}

	created, err := svc.Files.Create(file).
		Media(bytes.NewReader(doc.Data)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("capture: drive upload: %w", err)
	}

	log.Info("document uploaded", "file_id", created.Id, "name", file.Name)
	return FileURL(created.Id), nil
}

// FileURL returns the browser URL for an uploaded Drive file.
func FileURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", fileID)
}

// DriveStatus reports the store's connection state for API consumers.
type DriveStatus struct {
	Connected bool   `json:"connected"`
	AuthURL   string `json:"auth_url,omitempty"`
}

// Status returns the current connection status.
func (d *DriveStore) Status() DriveStatus {
	status := DriveStatus{Connected: d.IsAuthenticated()}
	if !status.Connected {
		status.AuthURL = d.AuthURL()
	}
	return status
}

// initService initializes the Drive service with the current token.
func (d *DriveStore) initService() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.token == nil {
		return ErrNotAuthenticated
	}

	ctx := context.Background()
	client := d.config.Client(ctx, d.token)
	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return fmt.Errorf("capture: create drive service: %w", err)
	}
	d.svc = svc
	return nil
}

// loadToken loads the OAuth token from disk.
func (d *DriveStore) loadToken() error {
	data, err := os.ReadFile(d.tokenPath)
	if err != nil {
		return err
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}

	d.mu.Lock()
	d.token = &token
	d.mu.Unlock()
	return nil
}

// saveToken saves the OAuth token to disk.
func (d *DriveStore) saveToken() error {
	d.mu.RLock()
	token := d.token
	d.mu.RUnlock()
	if token == nil {
		return fmt.Errorf("capture: no token to save")
	}

	if err := os.MkdirAll(filepath.Dir(d.tokenPath), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(d.tokenPath, data, 0600)
}

func formatName(format string) string {
	if format == "" {
		return "jpeg"
	}
	return format
}

// Ensure DriveStore implements the store contract.
var _ scan.Store = (*DriveStore)(nil)
