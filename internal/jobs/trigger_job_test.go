package job

import (
	"testing"
	"time"

	"github.com/postpipe/postpipe/internal/models"
	"github.com/postpipe/postpipe/internal/repository"
	"github.com/postpipe/postpipe/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func duePost(id int64, postType string, entries ...models.MediaEntry) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:            id,
		PostType:      postType,
		Caption:       "caption",
		ScheduledTime: time.Now().Add(-time.Minute),
		Status:        models.PostStatusScheduled,
		MediaEntries:  entries,
	}
}

func TestTriggerPublishesDueImagePost(t *testing.T) {
	repo := newStubRepo()
	repo.due = []*models.ScheduledPost{
		duePost(1, "static", models.MediaEntry{RequestedPath: "a.jpg", FileName: "a.jpg"}),
	}
	resolver := &stubResolver{media: &service.ResolvedMedia{Data: []byte("img"), FileName: "a.jpg"}}
	normalizer := &stubNormalizer{url: "https://cdn.test/instagram_ready/a.jpg"}
	graph := &stubGraph{sent: true, status: "Published"}

	j := NewTriggerJob(repo, &stubStore{configured: true}, resolver, normalizer, graph)
	j.Run()

	require.Len(t, graph.photos, 1)
	assert.Equal(t, "https://cdn.test/instagram_ready/a.jpg", graph.photos[0])
	assert.Equal(t, models.PostStatusTriggered, repo.statuses[int64(1)])
}

func TestTriggerVideoReusesStoredURL(t *testing.T) {
	repo := newStubRepo()
	repo.due = []*models.ScheduledPost{
		duePost(2, "video", models.MediaEntry{R2URL: "https://cdn.test/videos/v.mp4"}),
	}
	resolver := &stubResolver{}
	graph := &stubGraph{sent: true, status: "Published"}

	j := NewTriggerJob(repo, &stubStore{configured: true}, resolver, &stubNormalizer{}, graph)
	j.Run()

	require.Len(t, graph.videos, 1)
	assert.Equal(t, "https://cdn.test/videos/v.mp4", graph.videos[0])
	assert.Zero(t, resolver.calls, "stored video URL needs no re-download")
	assert.Equal(t, models.PostStatusTriggered, repo.statuses[int64(2)])
}

func TestTriggerLeavesPostScheduledOnPublishFailure(t *testing.T) {
	repo := newStubRepo()
	repo.due = []*models.ScheduledPost{
		duePost(3, "static", models.MediaEntry{RequestedPath: "a.jpg"}),
	}
	resolver := &stubResolver{media: &service.ResolvedMedia{Data: []byte("img"), FileName: "a.jpg"}}
	normalizer := &stubNormalizer{url: "https://cdn.test/instagram_ready/a.jpg"}
	graph := &stubGraph{sent: false, status: "Publish failed: rate limited"}

	j := NewTriggerJob(repo, &stubStore{configured: true}, resolver, normalizer, graph)
	j.Run()

	_, touched := repo.statuses[int64(3)]
	assert.False(t, touched, "failed publish must not change status")
}

func TestTriggerSkipsPostWithoutPublishableMedia(t *testing.T) {
	repo := newStubRepo()
	repo.due = []*models.ScheduledPost{
		duePost(4, "static", models.MediaEntry{RequestedPath: "gone.jpg"}),
	}
	resolver := &stubResolver{err: service.ErrNoMediaSource}
	graph := &stubGraph{sent: true, status: "Published"}

	j := NewTriggerJob(repo, &stubStore{configured: true}, resolver, &stubNormalizer{}, graph)
	j.Run()

	assert.Empty(t, graph.photos)
	_, touched := repo.statuses[int64(4)]
	assert.False(t, touched)
}

func TestTriggerTreatsAlreadyHandledPostAsDone(t *testing.T) {
	repo := newStubRepo()
	repo.due = []*models.ScheduledPost{
		duePost(5, "static", models.MediaEntry{RequestedPath: "a.jpg"}),
	}
	repo.updateErr = repository.ErrNotPending
	resolver := &stubResolver{media: &service.ResolvedMedia{Data: []byte("img"), FileName: "a.jpg"}}
	normalizer := &stubNormalizer{url: "https://cdn.test/instagram_ready/a.jpg"}
	graph := &stubGraph{sent: true, status: "Published"}

	j := NewTriggerJob(repo, &stubStore{configured: true}, resolver, normalizer, graph)

	// the lost race surfaces as ErrNotPending and is swallowed
	j.Run()
	require.Len(t, graph.photos, 1)
}

func TestTriggerPublishesCarouselWithAllEntries(t *testing.T) {
	repo := newStubRepo()
	repo.due = []*models.ScheduledPost{
		duePost(6, "carousel_2",
			models.MediaEntry{RequestedPath: "a.jpg"},
			models.MediaEntry{RequestedPath: "b.jpg"}),
	}
	resolver := &stubResolver{media: &service.ResolvedMedia{Data: []byte("img"), FileName: "a.jpg"}}
	normalizer := &stubNormalizer{url: "https://cdn.test/instagram_ready/x.jpg"}
	graph := &stubGraph{sent: true, status: "Published"}

	j := NewTriggerJob(repo, &stubStore{configured: true}, resolver, normalizer, graph)
	j.Run()

	require.Len(t, graph.carousels, 1)
	assert.Len(t, graph.carousels[0], 2)
	assert.Equal(t, models.PostStatusTriggered, repo.statuses[int64(6)])
}
