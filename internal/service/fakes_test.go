package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/postpipe/postpipe/internal/models"
	"google.golang.org/api/calendar/v3"
)

type fakeStore struct {
	configured  bool
	objects     map[string][]byte
	uploads     []string
	uploadErr   error
	downloadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{configured: true, objects: map[string][]byte{}}
}

func (f *fakeStore) Configured() bool { return f.configured }

func (f *fakeStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.objects[key] = data
	f.uploads = append(f.uploads, key)
	return f.PublicURL(key), nil
}

func (f *fakeStore) Download(_ context.Context, rawURL string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	key := strings.TrimPrefix(rawURL, "https://cdn.test/")
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}

func (f *fakeStore) PublicURL(key string) string { return "https://cdn.test/" + key }

type fakeArchive struct {
	folders      map[string][]ArchiveFile
	files        map[string]*ArchiveObject
	deleted      []string
	uploadErr    error
	deleteErr    error
	nextFolderID string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		folders:      map[string][]ArchiveFile{},
		files:        map[string]*ArchiveObject{},
		nextFolderID: "folder-1",
	}
}

func (f *fakeArchive) UploadPostFolder(_ context.Context, _ string, files []ArchiveFile, _ string) (string, []string, error) {
	if f.uploadErr != nil {
		return "", nil, f.uploadErr
	}
	f.folders[f.nextFolderID] = files
	fileIDs := make([]string, len(files))
	for i := range files {
		fileIDs[i] = fmt.Sprintf("%s-file-%d", f.nextFolderID, i)
	}
	return f.nextFolderID, fileIDs, nil
}

func (f *fakeArchive) UploadFile(_ context.Context, name, mimeType string, data []byte) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	id := "file-" + name
	f.files[id] = &ArchiveObject{Data: data, FileName: name, MimeType: mimeType}
	return id, nil
}

func (f *fakeArchive) DeleteFolder(_ context.Context, folderID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, folderID)
	delete(f.folders, folderID)
	return nil
}

func (f *fakeArchive) DownloadFile(_ context.Context, fileID string) (*ArchiveObject, error) {
	obj, ok := f.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", fileID)
	}
	return obj, nil
}

func (f *fakeArchive) PublicDownloadURL(_ context.Context, fileID string) (string, error) {
	return "https://drive.test/" + fileID, nil
}

type fakeCalendar struct {
	events    map[string]*calendar.Event
	created   []string
	createErr error
	nextID    string
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]*calendar.Event{}, nextID: "event-1"}
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _, caption, _, _, _ string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.events[f.nextID] = &calendar.Event{Id: f.nextID, Summary: caption}
	f.created = append(f.created, f.nextID)
	return f.nextID, nil
}

func (f *fakeCalendar) GetEvent(_ context.Context, eventID string) (*calendar.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	return event, nil
}

func (f *fakeCalendar) Watch(_ context.Context, _ string) (string, error) {
	return "channel-1", nil
}

type fakeResolver struct {
	media map[string]*ResolvedMedia
	err   error
}

func (f *fakeResolver) ResolveBytes(_ context.Context, entry models.MediaEntry) (*ResolvedMedia, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, key := range []string{entry.RequestedPath, entry.R2URL, entry.DriveFileID} {
		if media, ok := f.media[key]; ok {
			return media, nil
		}
	}
	return nil, ErrNoMediaSource
}

type fakeNormalizer struct {
	url string
	err error
}

func (f *fakeNormalizer) PrepareImageURL(_ context.Context, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeGraph struct {
	sent      bool
	status    string
	photos    []string
	carousels [][]string
	videos    []string
}

func (f *fakeGraph) PublishPhoto(imageURL, _ string) (bool, string) {
	f.photos = append(f.photos, imageURL)
	return f.sent, f.status
}

func (f *fakeGraph) PublishCarousel(imageURLs []string, _ string) (bool, string) {
	f.carousels = append(f.carousels, imageURLs)
	return f.sent, f.status
}

func (f *fakeGraph) PublishVideo(videoURL, _ string) (bool, string) {
	f.videos = append(f.videos, videoURL)
	return f.sent, f.status
}

type fakeRepo struct {
	created   []*models.ScheduledPost
	createErr error
	nextID    int64
	statuses  map[int64]string
	updateErr error
	cancelled []string
	due       []*models.ScheduledPost
	expired   []*models.ScheduledPost
	findErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, statuses: map[int64]string{}}
}

func (f *fakeRepo) Create(_ context.Context, _ *sql.Tx, post *models.ScheduledPost) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	post.ID = f.nextID
	f.nextID++
	f.created = append(f.created, post)
	f.statuses[post.ID] = post.Status
	return post.ID, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*models.ScheduledPost, error) {
	for _, post := range f.created {
		if post.ID == id {
			return post, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindDue(_ context.Context, _ time.Time) ([]*models.ScheduledPost, error) {
	return f.due, f.findErr
}

func (f *fakeRepo) FindExpired(_ context.Context, _ time.Time) ([]*models.ScheduledPost, error) {
	return f.expired, f.findErr
}

func (f *fakeRepo) UpdateStatus(_ context.Context, status string, postID int64) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.statuses[postID] != models.PostStatusScheduled && f.statuses[postID] != "" {
		return errors.New("post is not in scheduled state")
	}
	f.statuses[postID] = status
	return nil
}

func (f *fakeRepo) CancelByEventID(_ context.Context, eventID string) error {
	f.cancelled = append(f.cancelled, eventID)
	return nil
}

func (f *fakeRepo) EnsureSchema(_ context.Context) error { return nil }
