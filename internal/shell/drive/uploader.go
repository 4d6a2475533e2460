// Package drive stores device photos in Google Drive and hands back public
// direct-download links.
package drive

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// =============================================================================
// Uploader Interface
// =============================================================================

// Uploader defines the interface for storing a photo and returning a public
// URL for it.
type Uploader interface {
	Upload(ctx context.Context, name string, content io.Reader) (string, error)
}

// =============================================================================
// Drive Implementation
// =============================================================================

// Service wraps an authenticated Drive API client. One service serves all
// target folders.
type Service struct {
	api *drive.Service
}

// NewService creates a Drive service from a service account credentials file.
func NewService(ctx context.Context, credentialsFile string) (*Service, error) {
	api, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Service{api: api}, nil
}

// Folder returns an uploader that stores files in the given Drive folder.
func (s *Service) Folder(folderID string) *FolderUploader {
	return &FolderUploader{api: s.api, folderID: folderID}
}

// FolderUploader implements Uploader against one Drive folder.
type FolderUploader struct {
	api      *drive.Service
	folderID string
}

// Upload stores the file, makes it readable by anyone with the link, and
// returns the direct-download URL.
func (u *FolderUploader) Upload(ctx context.Context, name string, content io.Reader) (string, error) {
	meta := &drive.File{
		Name:    name,
		Parents: []string{u.folderID},
	}

	created, err := u.api.Files.Create(meta).
		Media(content).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}

	_, err = u.api.Permissions.Create(created.Id, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to make %s public: %w", name, err)
	}

	return DirectLink(created.Id), nil
}

// DirectLink builds the uc?export= URL that serves the raw file bytes.
// Telegram and the label printer need the bytes, not the Drive viewer page.
func DirectLink(fileID string) string {
	return "https://drive.google.com/uc?export=download&id=" + fileID
}

// =============================================================================
// No-Op Uploader (for development/testing)
// =============================================================================

// NoOpUploader is an uploader that drops files (for development mode).
type NoOpUploader struct{}

// NewNoOpUploader creates a no-op uploader.
func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}

// Upload discards the content and returns an empty URL.
func (u *NoOpUploader) Upload(ctx context.Context, name string, content io.Reader) (string, error) {
	return "", nil
}
