package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	config "github.com/postpipe/postpipe/configs"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const archiveRootName = "Social Media Automation"

type ArchiveFile struct {
	Name     string
	MimeType string
	Data     []byte
}

type ArchiveObject struct {
	Data     []byte
	FileName string
	MimeType string
}

// ArchiveService is the durable Drive-backed asset archive: one folder per
// post, plus single-file uploads used as a public-URL fallback host.
type ArchiveService interface {
	UploadPostFolder(ctx context.Context, folderName string, files []ArchiveFile, caption string) (string, []string, error)
	UploadFile(ctx context.Context, name, mimeType string, data []byte) (string, error)
	DeleteFolder(ctx context.Context, folderID string) error
	DownloadFile(ctx context.Context, fileID string) (*ArchiveObject, error)
	PublicDownloadURL(ctx context.Context, fileID string) (string, error)
}

type driveService struct {
	svc          *drive.Service
	rootFolderID string
}

// NewGoogleClient builds the authorized HTTP client shared by the Drive and
// Calendar services from the configured credentials and token files. Missing
// files are fatal: Drive/Calendar operations cannot degrade without them.
func NewGoogleClient(ctx context.Context, cfg config.Config) (*http.Client, error) {
	credBytes, err := os.ReadFile(cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read Google credentials file %s: %w", cfg.GoogleCredentialsFile, err)
	}

	oauthCfg, err := google.ConfigFromJSON(credBytes, drive.DriveScope, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse Google credentials: %w", err)
	}

	tokenBytes, err := os.ReadFile(cfg.GoogleTokenFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read Google token file %s: %w", cfg.GoogleTokenFile, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenBytes, &token); err != nil {
		return nil, fmt.Errorf("unable to parse Google token: %w", err)
	}

	return oauthCfg.Client(ctx, &token), nil
}

func NewDriveService(ctx context.Context, client *http.Client) (ArchiveService, error) {
	svc, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive client: %w", err)
	}
	return &driveService{svc: svc}, nil
}

// ensureRootFolder finds or creates the shared root folder all post folders
// live under. The id is cached for the life of the process.
func (d *driveService) ensureRootFolder(ctx context.Context) (string, error) {
	if d.rootFolderID != "" {
		return d.rootFolderID, nil
	}

	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false", archiveRootName)
	list, err := d.svc.Files.List().Q(query).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if len(list.Files) > 0 {
		d.rootFolderID = list.Files[0].Id
		return d.rootFolderID, nil
	}

	folder, err := d.svc.Files.Create(&drive.File{
		Name:     archiveRootName,
		MimeType: "application/vnd.google-apps.folder",
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	slog.Info("created archive root folder", "id", folder.Id)
	d.rootFolderID = folder.Id
	return d.rootFolderID, nil
}

// UploadPostFolder creates a fresh folder under the archive root and uploads
// every file plus a caption.txt into it. Returns the folder id and the file
// ids in input order. On any per-file failure the folder is deleted and the
// whole upload fails, so a partially archived post never exists.
func (d *driveService) UploadPostFolder(ctx context.Context, folderName string, files []ArchiveFile, caption string) (string, []string, error) {
	rootID, err := d.ensureRootFolder(ctx)
	if err != nil {
		return "", nil, err
	}

	folder, err := d.svc.Files.Create(&drive.File{
		Name:     folderName,
		MimeType: "application/vnd.google-apps.folder",
		Parents:  []string{rootID},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return "", nil, err
	}
	folderID := folder.Id

	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		id, err := d.uploadInto(ctx, folderID, f.Name, f.MimeType, f.Data)
		if err != nil {
			slog.Error("archive upload failed, removing partial folder", "folder", folderID, "file", f.Name)
			if delErr := d.DeleteFolder(ctx, folderID); delErr != nil {
				slog.Info(delErr.Error())
			}
			return "", nil, fmt.Errorf("uploading %s: %w", f.Name, err)
		}
		fileIDs = append(fileIDs, id)
	}

	if _, err := d.uploadInto(ctx, folderID, "caption.txt", "text/plain", []byte(caption)); err != nil {
		slog.Info(err.Error())
	}

	return folderID, fileIDs, nil
}

func (d *driveService) uploadInto(ctx context.Context, folderID, name, mimeType string, data []byte) (string, error) {
	file, err := d.svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{folderID},
	}).Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}

func (d *driveService) UploadFile(ctx context.Context, name, mimeType string, data []byte) (string, error) {
	rootID, err := d.ensureRootFolder(ctx)
	if err != nil {
		return "", err
	}
	return d.uploadInto(ctx, rootID, name, mimeType, data)
}

// DeleteFolder removes an archive folder. A folder that is already gone is
// not an error.
func (d *driveService) DeleteFolder(ctx context.Context, folderID string) error {
	err := d.svc.Files.Delete(folderID).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			slog.Info("archive folder already deleted", "folder", folderID)
			return nil
		}
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (d *driveService) DownloadFile(ctx context.Context, fileID string) (*ArchiveObject, error) {
	meta, err := d.svc.Files.Get(fileID).Fields("name, mimeType").Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	resp, err := d.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &ArchiveObject{Data: data, FileName: meta.Name, MimeType: meta.MimeType}, nil
}

// PublicDownloadURL grants anyone-with-the-link access to a file and returns
// the direct download URL.
func (d *driveService) PublicDownloadURL(ctx context.Context, fileID string) (string, error) {
	_, err := d.svc.Permissions.Create(fileID, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", fileID), nil
}

// FolderLink returns the browser URL for an archive folder, used in calendar
// event descriptions.
func FolderLink(folderID string) string {
	return fmt.Sprintf("https://drive.google.com/drive/folders/%s", folderID)
}
