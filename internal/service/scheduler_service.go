package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpipe/postpipe/internal/models"
	"github.com/postpipe/postpipe/internal/repository"
	"github.com/postpipe/postpipe/internal/transfer"
	"github.com/postpipe/postpipe/pkg/utils"
)

const pendingStatus = "Pending - will be sent at scheduled time"

// SchedulerService is the orchestrator: it drives a content selection
// through object storage, the Drive archive, the calendar and the database,
// and owns every status transition a webhook can cause.
type SchedulerService interface {
	Schedule(ctx context.Context, req *transfer.ScheduleRequest) (*transfer.ScheduleResponse, error)
	PublishNow(ctx context.Context, req *transfer.WebhookRequest) (*transfer.ScheduleResponse, error)
	HandleCalendarNotification(ctx context.Context, n *transfer.CalendarNotification) error
}

type schedulerService struct {
	pr         repository.ScheduledPostRepository
	store      MediaStore
	archive    ArchiveService
	cal        CalendarService
	resolver   MediaResolver
	normalizer ImageNormalizer
	graph      PublishService
}

func NewSchedulerService(
	pr repository.ScheduledPostRepository,
	store MediaStore,
	archive ArchiveService,
	cal CalendarService,
	resolver MediaResolver,
	normalizer ImageNormalizer,
	graph PublishService) SchedulerService {
	return &schedulerService{
		pr:         pr,
		store:      store,
		archive:    archive,
		cal:        cal,
		resolver:   resolver,
		normalizer: normalizer,
		graph:      graph,
	}
}

// Schedule stages the selected media, creates the calendar placeholder and
// persists the post for the trigger job. Archive and calendar failures
// degrade to synthetic references; only a persistence failure (or media that
// resolves nowhere) aborts the request.
func (s *schedulerService) Schedule(ctx context.Context, req *transfer.ScheduleRequest) (*transfer.ScheduleResponse, error) {
	scheduledTime, _, err := ParseScheduledTime(req.ScheduledTime, req.Timezone)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	if len(req.SelectedMedia) == 0 {
		err := errors.New("no media selected")
		slog.Info(err.Error())
		return nil, err
	}

	// Resolve everything up front: a selection that yields no bytes is a
	// caller error, and failing here means no partial folder ever exists.
	resolved := make([]*ResolvedMedia, 0, len(req.SelectedMedia))
	for _, ref := range req.SelectedMedia {
		media, err := s.resolver.ResolveBytes(ctx, models.MediaEntry{RequestedPath: ref})
		if err != nil {
			return nil, fmt.Errorf("missing media file %s: %w", ref, err)
		}
		resolved = append(resolved, media)
	}

	entries, files := s.stageMedia(ctx, req.SelectedMedia, resolved)

	folderID, fileIDs := s.uploadArchiveFolder(ctx, req.PostType, files, req.SelectedCaption)
	for i := range entries {
		if i < len(fileIDs) {
			entries[i].DriveFileID = fileIDs[i]
		}
	}

	eventID := ""
	if folderID != "" {
		err := utils.Retry(2, time.Second, 2.0, func() error {
			var createErr error
			eventID, createErr = s.cal.CreateEvent(ctx, req.ScheduledTime, req.SelectedCaption, folderID, req.PostType, req.Timezone)
			return createErr
		})
		if err != nil {
			slog.Error("calendar event creation failed", "error", err.Error())
			eventID = ""
		}
	} else {
		slog.Warn("skipped calendar event creation due to archive upload failure")
	}

	finalFolderID := folderID
	if finalFolderID == "" {
		finalFolderID = syntheticRef("no_drive", req.PostType, req.ScheduledTime)
	}
	finalEventID := eventID
	if finalEventID == "" {
		finalEventID = syntheticRef("no_calendar", req.PostType, req.ScheduledTime)
	}

	post := &models.ScheduledPost{
		PostType:        req.PostType,
		Caption:         req.SelectedCaption,
		ScheduledTime:   scheduledTime,
		DriveFolderID:   finalFolderID,
		CalendarEventID: finalEventID,
		Status:          models.PostStatusScheduled,
		MediaEntries:    entries,
	}
	if _, err := s.pr.Create(ctx, nil, post); err != nil {
		return nil, fmt.Errorf("failed to save scheduled post: %w", err)
	}

	return &transfer.ScheduleResponse{
		Message:       "Post scheduled successfully. Publishing will be triggered at the scheduled time.",
		FolderID:      finalFolderID,
		EventID:       finalEventID,
		WebhookSent:   false,
		WebhookStatus: pendingStatus,
	}, nil
}

// stageMedia uploads every resolved asset to the media store and builds the
// MediaEntry list plus the archive upload set. Store failures leave the
// entry without an R2 URL; the archive copy still provides durability.
func (s *schedulerService) stageMedia(ctx context.Context, refs []string, resolved []*ResolvedMedia) ([]models.MediaEntry, []ArchiveFile) {
	entries := make([]models.MediaEntry, 0, len(resolved))
	files := make([]ArchiveFile, 0, len(resolved))

	for i, media := range resolved {
		fileName := media.FileName
		if fileName == "" || fileName == "file" {
			if id, err := gonanoid.New(); err == nil {
				fileName = "media_" + id + extensionFor(media.MimeType)
			}
		}

		r2URL := ""
		if s.store.Configured() {
			url, err := s.store.Upload(ctx, "drive_backup/"+fileName, media.Data, media.MimeType)
			if err != nil {
				slog.Info(err.Error())
			} else {
				r2URL = url
			}
		}

		entries = append(entries, models.MediaEntry{
			RequestedPath: refs[i],
			R2URL:         r2URL,
			FileName:      fileName,
			MimeType:      media.MimeType,
		})
		files = append(files, ArchiveFile{Name: fileName, MimeType: media.MimeType, Data: media.Data})
	}

	return entries, files
}

// uploadArchiveFolder archives the post's assets, tolerating failure: quota
// and storage errors are logged and scheduling continues without a folder.
// Returns the folder id and the per-file archive ids, which callers attach
// to the media entries as the durable fallback source.
func (s *schedulerService) uploadArchiveFolder(ctx context.Context, postType string, files []ArchiveFile, caption string) (string, []string) {
	folderName := fmt.Sprintf("%s_%s", postType, time.Now().Format("2006-01-02_15-04-05"))

	var folderID string
	var fileIDs []string
	err := utils.Retry(2, time.Second, 2.0, func() error {
		var uploadErr error
		folderID, fileIDs, uploadErr = s.archive.UploadPostFolder(ctx, folderName, files, caption)
		return uploadErr
	})
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "quota") || strings.Contains(msg, "storage") || strings.Contains(msg, "full") {
			slog.Warn("archive storage quota issue, continuing with scheduling", "error", err.Error())
		} else {
			slog.Error("archive upload failed, continuing with scheduling", "error", err.Error())
		}
		return "", nil
	}

	return folderID, fileIDs
}

func syntheticRef(prefix, postType, scheduledTime string) string {
	t := strings.ReplaceAll(strings.ReplaceAll(scheduledTime, ":", "-"), "T", "_")
	return fmt.Sprintf("%s_%s_%s", prefix, postType, t)
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "png"):
		return ".png"
	case strings.Contains(mimeType, "jpeg"), strings.Contains(mimeType, "jpg"):
		return ".jpg"
	case strings.Contains(mimeType, "gif"):
		return ".gif"
	case strings.Contains(mimeType, "mp4"):
		return ".mp4"
	case mimeType == "":
		return ".bin"
	}
	if ext := path.Ext(mimeType); ext != "" {
		return ext
	}
	return ".bin"
}

// PublishNow is the webhook path: it runs the whole pipeline synchronously,
// ending in an inline Graph API publish, and reports the outcome in the
// response instead of failing the request.
func (s *schedulerService) PublishNow(ctx context.Context, req *transfer.WebhookRequest) (*transfer.ScheduleResponse, error) {
	scheduledTime, _, err := ParseScheduledTime(req.ScheduledTime, req.Timezone)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}

	resolved := make([]*ResolvedMedia, 0, len(req.Media))
	for _, entry := range req.Media {
		var media *ResolvedMedia
		err := utils.Retry(2, time.Second, 2.0, func() error {
			var resolveErr error
			media, resolveErr = s.resolver.ResolveBytes(ctx, entry)
			return resolveErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch media %s: %w", entry.RequestedPath+entry.R2URL, err)
		}
		resolved = append(resolved, media)
	}

	refs := make([]string, len(req.Media))
	for i, entry := range req.Media {
		refs[i] = entry.RequestedPath
	}
	entries, files := s.stageMedia(ctx, refs, resolved)
	for i := range entries {
		// keep identifiers the caller already knows
		if req.Media[i].DriveFileID != "" {
			entries[i].DriveFileID = req.Media[i].DriveFileID
		}
		if entries[i].R2URL == "" {
			entries[i].R2URL = req.Media[i].R2URL
		}
	}

	folderName := fmt.Sprintf("%s_%s", req.PostType, time.Now().Format("2006-01-02_15-04-05"))
	var folderID string
	var fileIDs []string
	err = utils.Retry(2, time.Second, 2.0, func() error {
		var uploadErr error
		folderID, fileIDs, uploadErr = s.archive.UploadPostFolder(ctx, folderName, files, req.SelectedCaption)
		return uploadErr
	})
	if err != nil {
		return nil, fmt.Errorf("archive upload failed: %w", err)
	}
	for i := range entries {
		if i < len(fileIDs) && entries[i].DriveFileID == "" {
			entries[i].DriveFileID = fileIDs[i]
		}
	}

	var eventID string
	err = utils.Retry(2, time.Second, 2.0, func() error {
		var createErr error
		eventID, createErr = s.cal.CreateEvent(ctx, req.ScheduledTime, req.SelectedCaption, folderID, req.PostType, req.Timezone)
		return createErr
	})
	if err != nil {
		if delErr := s.archive.DeleteFolder(ctx, folderID); delErr != nil {
			slog.Info(delErr.Error())
		}
		return nil, fmt.Errorf("calendar event creation failed: %w", err)
	}

	publicURLs := s.preparePublishURLs(ctx, req.PostType, entries, resolved)
	if len(publicURLs) == 0 {
		return &transfer.ScheduleResponse{
			Message:       "Webhook scheduled but publish payload failed",
			FolderID:      folderID,
			EventID:       eventID,
			WebhookSent:   false,
			WebhookStatus: "No valid public media URL available for publishing",
		}, nil
	}

	post := &models.ScheduledPost{
		PostType:        req.PostType,
		Caption:         req.SelectedCaption,
		ScheduledTime:   scheduledTime,
		DriveFolderID:   folderID,
		CalendarEventID: eventID,
		Status:          models.PostStatusScheduled,
		MediaEntries:    entries,
	}
	postID, err := s.pr.Create(ctx, nil, post)
	if err != nil {
		return nil, fmt.Errorf("failed to save scheduled post: %w", err)
	}

	sent, status := PublishByType(s.graph, req.PostType, publicURLs, req.SelectedCaption)
	if sent {
		// the trigger job must not publish this post a second time
		if err := s.pr.UpdateStatus(ctx, models.PostStatusTriggered, postID); err != nil {
			slog.Error("failed to mark webhook post triggered", "post", postID, "error", err.Error())
		}
	}

	return &transfer.ScheduleResponse{
		Message:       "Webhook scheduled successfully",
		FolderID:      folderID,
		EventID:       eventID,
		WebhookSent:   sent,
		WebhookStatus: status,
	}, nil
}

// preparePublishURLs converts staged media into URLs the publish target can
// ingest: videos verbatim from the media store, images through the
// normalizer.
func (s *schedulerService) preparePublishURLs(ctx context.Context, postType string, entries []models.MediaEntry, resolved []*ResolvedMedia) []string {
	var urls []string

	if strings.EqualFold(postType, "video") {
		for i := range entries {
			if isHTTPURL(entries[i].R2URL) {
				urls = append(urls, entries[i].R2URL)
			} else if i < len(resolved) && s.store.Configured() {
				if id, err := gonanoid.New(); err == nil {
					if url, err := s.store.Upload(ctx, "videos/"+id+".mp4", resolved[i].Data, "video/mp4"); err == nil {
						entries[i].R2URL = url
						urls = append(urls, url)
					} else {
						slog.Info(err.Error())
					}
				}
			}
		}
		return urls
	}

	for i := range entries {
		if i >= len(resolved) {
			break
		}
		finalURL, err := s.normalizer.PrepareImageURL(ctx, resolved[i].Data)
		if err != nil {
			slog.Error("image preparation failed", "file", entries[i].FileName, "error", err.Error())
			continue
		}
		entries[i].R2URL = finalURL
		urls = append(urls, finalURL)
	}
	return urls
}

// PublishByType maps a post type onto the Graph operation: static posts
// publish a photo, carousel_N an album, video a video.
func PublishByType(graph PublishService, postType string, urls []string, caption string) (bool, string) {
	if len(urls) == 0 {
		return false, "no media URL to publish"
	}

	pt := strings.ToLower(postType)
	switch {
	case pt == "static":
		return graph.PublishPhoto(urls[0], caption)
	case strings.HasPrefix(pt, "carousel"):
		return graph.PublishCarousel(urls, caption)
	case pt == "video":
		return graph.PublishVideo(urls[0], caption)
	}
	return false, fmt.Sprintf("unsupported post type: %s", postType)
}

// HandleCalendarNotification reconciles a push notification against the
// store: a vanished event cancels the matching post, anything else is logged
// only.
func (s *schedulerService) HandleCalendarNotification(ctx context.Context, n *transfer.CalendarNotification) error {
	if n.ResourceID == "" {
		slog.Info("calendar notification without resource id ignored")
		return nil
	}

	event, err := s.cal.GetEvent(ctx, n.ResourceID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			slog.Info("calendar event deleted, cancelling post", "event", n.ResourceID)
			return s.pr.CancelByEventID(ctx, n.ResourceID)
		}
		slog.Info("failed to fetch calendar event", "event", n.ResourceID, "error", err.Error())
		return nil
	}

	slog.Info("calendar event still exists", "event", n.ResourceID, "summary", event.Summary)
	return nil
}
