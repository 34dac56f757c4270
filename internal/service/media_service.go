package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/postpipe/postpipe/internal/models"
)

// ErrNoMediaSource is returned when no location of a MediaEntry yields
// bytes.
var ErrNoMediaSource = errors.New("no available source found for media entry")

type ResolvedMedia struct {
	Data     []byte
	FileName string
	MimeType string
	Source   string
}

// MediaResolver turns a MediaEntry into bytes, trying its locations in
// priority order: media-store URL, archive file id, requested path as URL,
// requested path as local file.
type MediaResolver interface {
	ResolveBytes(ctx context.Context, entry models.MediaEntry) (*ResolvedMedia, error)
}

type mediaResolver struct {
	store   MediaStore
	archive ArchiveService
	client  *http.Client
}

func NewMediaResolver(store MediaStore, archive ArchiveService) MediaResolver {
	return &mediaResolver{
		store:   store,
		archive: archive,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (m *mediaResolver) ResolveBytes(ctx context.Context, entry models.MediaEntry) (*ResolvedMedia, error) {
	if isHTTPURL(entry.R2URL) {
		if data, err := m.store.Download(ctx, entry.R2URL); err == nil {
			return m.describe(data, fileNameFromURL(entry.R2URL), entry.MimeType, "r2"), nil
		} else {
			slog.Info(err.Error())
		}
	}

	if entry.DriveFileID != "" {
		if obj, err := m.archive.DownloadFile(ctx, entry.DriveFileID); err == nil {
			return m.describe(obj.Data, obj.FileName, obj.MimeType, "drive"), nil
		} else {
			slog.Info(err.Error())
		}
	}

	if isHTTPURL(entry.RequestedPath) {
		if data, mimeType, err := m.fetch(ctx, entry.RequestedPath); err == nil {
			return m.describe(data, fileNameFromURL(entry.RequestedPath), mimeType, "http"), nil
		} else {
			slog.Info(err.Error())
		}
	}

	if entry.RequestedPath != "" && !isHTTPURL(entry.RequestedPath) {
		if data, err := os.ReadFile(entry.RequestedPath); err == nil {
			return m.describe(data, path.Base(strings.ReplaceAll(entry.RequestedPath, "\\", "/")), entry.MimeType, "local"), nil
		} else {
			slog.Info(err.Error())
		}
	}

	return nil, ErrNoMediaSource
}

func (m *mediaResolver) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// describe fills in missing file name and MIME type, sniffing the content
// when the caller knows neither.
func (m *mediaResolver) describe(data []byte, fileName, mimeType, source string) *ResolvedMedia {
	if mimeType == "" {
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			mimeType = kind.MIME.Value
			if fileName != "" && !strings.Contains(fileName, ".") {
				fileName = fileName + "." + kind.Extension
			}
		}
	}
	if fileName == "" {
		fileName = "file"
	}
	return &ResolvedMedia{Data: data, FileName: fileName, MimeType: mimeType, Source: source}
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func fileNameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
