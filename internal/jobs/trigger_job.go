package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpipe/postpipe/internal/models"
	"github.com/postpipe/postpipe/internal/repository"
	"github.com/postpipe/postpipe/internal/service"
	"github.com/postpipe/postpipe/pkg/utils"
)

// TriggerJob publishes every post whose scheduled time has arrived. Each
// post succeeds or fails on its own; a failed post stays scheduled and is
// retried on the next run.
type TriggerJob struct {
	pr         repository.ScheduledPostRepository
	store      service.MediaStore
	resolver   service.MediaResolver
	normalizer service.ImageNormalizer
	graph      service.PublishService
	mu         sync.Mutex
}

func NewTriggerJob(
	pr repository.ScheduledPostRepository,
	store service.MediaStore,
	resolver service.MediaResolver,
	normalizer service.ImageNormalizer,
	graph service.PublishService) *TriggerJob {
	return &TriggerJob{
		pr:         pr,
		store:      store,
		resolver:   resolver,
		normalizer: normalizer,
		graph:      graph,
	}
}

func (j *TriggerJob) Run() {
	if !j.mu.TryLock() {
		slog.Info("trigger run still in progress, skipping")
		return
	}
	defer j.mu.Unlock()

	ctx := context.Background()

	posts, err := j.pr.FindDue(ctx, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if len(posts) == 0 {
		return
	}

	slog.Info("trigger run started", "due", len(posts))
	for _, post := range posts {
		if err := j.publish(ctx, post); err != nil {
			slog.Error("trigger failed", "post", post.ID, "error", err.Error())
		}
	}
}

func (j *TriggerJob) publish(ctx context.Context, post *models.ScheduledPost) error {
	urls := j.prepareURLs(ctx, post)
	if len(urls) == 0 {
		return fmt.Errorf("no publishable media URL for post %d", post.ID)
	}

	sent, status := service.PublishByType(j.graph, post.PostType, urls, post.Caption)
	if !sent {
		return fmt.Errorf("publish rejected: %s", status)
	}

	if err := j.pr.UpdateStatus(ctx, models.PostStatusTriggered, post.ID); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			slog.Info("post already left scheduled state", "post", post.ID)
			return nil
		}
		return err
	}

	slog.Info("post published", "post", post.ID, "type", post.PostType)
	return nil
}

// prepareURLs builds the list of public URLs the publish target can fetch.
// Videos reuse their stored URL or get a fresh one; images always go through
// the normalizer so aspect ratio and size limits hold.
func (j *TriggerJob) prepareURLs(ctx context.Context, post *models.ScheduledPost) []string {
	var urls []string

	for _, entry := range post.MediaEntries {
		if strings.EqualFold(post.PostType, "video") {
			if url := j.videoURL(ctx, entry); url != "" {
				urls = append(urls, url)
			}
			continue
		}
		if url := j.imageURL(ctx, entry); url != "" {
			urls = append(urls, url)
		}
	}

	return urls
}

func (j *TriggerJob) videoURL(ctx context.Context, entry models.MediaEntry) string {
	if strings.HasPrefix(entry.R2URL, "http://") || strings.HasPrefix(entry.R2URL, "https://") {
		return entry.R2URL
	}

	media, err := j.resolveWithRetry(ctx, entry)
	if err != nil {
		slog.Error("video media unavailable", "file", entry.FileName, "error", err.Error())
		return ""
	}

	if !j.store.Configured() {
		slog.Warn("media store not configured, cannot host video", "file", entry.FileName)
		return ""
	}
	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return ""
	}
	url, err := j.store.Upload(ctx, "videos/"+id+".mp4", media.Data, "video/mp4")
	if err != nil {
		slog.Error("video upload failed", "file", entry.FileName, "error", err.Error())
		return ""
	}
	return url
}

func (j *TriggerJob) imageURL(ctx context.Context, entry models.MediaEntry) string {
	media, err := j.resolveWithRetry(ctx, entry)
	if err != nil {
		slog.Error("image media unavailable", "file", entry.FileName, "error", err.Error())
		return ""
	}

	url, err := j.normalizer.PrepareImageURL(ctx, media.Data)
	if err != nil {
		slog.Error("image preparation failed", "file", entry.FileName, "error", err.Error())
		return ""
	}
	return url
}

func (j *TriggerJob) resolveWithRetry(ctx context.Context, entry models.MediaEntry) (*service.ResolvedMedia, error) {
	var media *service.ResolvedMedia
	err := utils.Retry(3, time.Second, 2.0, func() error {
		var resolveErr error
		media, resolveErr = j.resolver.ResolveBytes(ctx, entry)
		return resolveErr
	})
	return media, err
}
