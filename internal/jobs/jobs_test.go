package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/postpipe/postpipe/internal/models"
	"github.com/postpipe/postpipe/internal/repository"
	"github.com/postpipe/postpipe/internal/service"
)

type stubRepo struct {
	due       []*models.ScheduledPost
	expired   []*models.ScheduledPost
	findErr   error
	statuses  map[int64]string
	updateErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{statuses: map[int64]string{}}
}

func (s *stubRepo) Create(_ context.Context, _ *sql.Tx, _ *models.ScheduledPost) (int64, error) {
	return 0, errors.New("not implemented")
}

func (s *stubRepo) GetByID(_ context.Context, _ int64) (*models.ScheduledPost, error) {
	return nil, nil
}

func (s *stubRepo) FindDue(_ context.Context, _ time.Time) ([]*models.ScheduledPost, error) {
	return s.due, s.findErr
}

func (s *stubRepo) FindExpired(_ context.Context, _ time.Time) ([]*models.ScheduledPost, error) {
	return s.expired, s.findErr
}

func (s *stubRepo) UpdateStatus(_ context.Context, status string, postID int64) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.statuses[postID] = status
	return nil
}

func (s *stubRepo) CancelByEventID(_ context.Context, _ string) error { return nil }

func (s *stubRepo) EnsureSchema(_ context.Context) error { return nil }

var _ repository.ScheduledPostRepository = (*stubRepo)(nil)

type stubStore struct {
	configured bool
	uploads    []string
	uploadErr  error
}

func (s *stubStore) Configured() bool { return s.configured }

func (s *stubStore) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.uploads = append(s.uploads, key)
	return "https://cdn.test/" + key, nil
}

func (s *stubStore) Download(_ context.Context, _ string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *stubStore) PublicURL(key string) string { return "https://cdn.test/" + key }

type stubResolver struct {
	media *service.ResolvedMedia
	err   error
	calls int
}

func (s *stubResolver) ResolveBytes(_ context.Context, _ models.MediaEntry) (*service.ResolvedMedia, error) {
	s.calls++
	return s.media, s.err
}

type stubNormalizer struct {
	url string
	err error
}

func (s *stubNormalizer) PrepareImageURL(_ context.Context, _ []byte) (string, error) {
	return s.url, s.err
}

type stubGraph struct {
	sent      bool
	status    string
	photos    []string
	carousels [][]string
	videos    []string
}

func (s *stubGraph) PublishPhoto(imageURL, _ string) (bool, string) {
	s.photos = append(s.photos, imageURL)
	return s.sent, s.status
}

func (s *stubGraph) PublishCarousel(imageURLs []string, _ string) (bool, string) {
	s.carousels = append(s.carousels, imageURLs)
	return s.sent, s.status
}

func (s *stubGraph) PublishVideo(videoURL, _ string) (bool, string) {
	s.videos = append(s.videos, videoURL)
	return s.sent, s.status
}

type stubArchive struct {
	deleted   []string
	deleteErr error
}

func (s *stubArchive) UploadPostFolder(_ context.Context, _ string, _ []service.ArchiveFile, _ string) (string, []string, error) {
	return "", nil, errors.New("not implemented")
}

func (s *stubArchive) UploadFile(_ context.Context, _, _ string, _ []byte) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubArchive) DeleteFolder(_ context.Context, folderID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, folderID)
	return nil
}

func (s *stubArchive) DownloadFile(_ context.Context, fileID string) (*service.ArchiveObject, error) {
	return nil, fmt.Errorf("file not found: %s", fileID)
}

func (s *stubArchive) PublicDownloadURL(_ context.Context, fileID string) (string, error) {
	return "https://drive.test/" + fileID, nil
}
