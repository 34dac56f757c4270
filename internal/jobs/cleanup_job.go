package job

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/postpipe/postpipe/internal/models"
	"github.com/postpipe/postpipe/internal/repository"
	"github.com/postpipe/postpipe/internal/service"
)

// CleanupJob removes archive folders for posts whose scheduled time passed
// long enough ago, then marks those posts deleted. A folder that fails to
// delete keeps its post alive so the next run retries it.
type CleanupJob struct {
	pr      repository.ScheduledPostRepository
	archive service.ArchiveService
	delay   time.Duration
	mu      sync.Mutex
}

func NewCleanupJob(pr repository.ScheduledPostRepository, archive service.ArchiveService, delay time.Duration) *CleanupJob {
	return &CleanupJob{
		pr:      pr,
		archive: archive,
		delay:   delay,
	}
}

func (j *CleanupJob) Run() {
	if !j.mu.TryLock() {
		slog.Info("cleanup run still in progress, skipping")
		return
	}
	defer j.mu.Unlock()

	ctx := context.Background()

	threshold := time.Now().Add(-j.delay)
	posts, err := j.pr.FindExpired(ctx, threshold)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if len(posts) == 0 {
		return
	}

	cleaned, failed := 0, 0
	for _, post := range posts {
		if hasRealFolder(post.DriveFolderID) {
			if err := j.archive.DeleteFolder(ctx, post.DriveFolderID); err != nil {
				slog.Error("folder deletion failed", "post", post.ID, "folder", post.DriveFolderID, "error", err.Error())
				failed++
				continue
			}
		}

		if err := j.pr.UpdateStatus(ctx, models.PostStatusDeleted, post.ID); err != nil {
			slog.Info(err.Error())
			failed++
			continue
		}
		cleaned++
	}

	slog.Info("cleanup run finished", "cleaned", cleaned, "failed", failed)
}

// hasRealFolder filters out the synthetic placeholder written when the
// archive upload was skipped.
func hasRealFolder(folderID string) bool {
	return folderID != "" && !strings.HasPrefix(folderID, "no_drive_")
}
