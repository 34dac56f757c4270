package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/postpipe/postpipe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (ScheduledPostRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewScheduledPostRepository(db), mock
}

func postRows(id int64, status string, scheduled time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "post_type", "caption", "scheduled_time", "drive_folder_id",
		"calendar_event_id", "status", "media_entries", "created_at",
	}).AddRow(id, "static", "caption", scheduled, "folder", "event", status,
		[]byte(`[{"requested_path":"a.jpg","r2_url":"https://cdn.example.com/a.jpg"}]`), time.Now())
}

func TestCreateScheduledPost(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO scheduled_posts").
		WithArgs("static", "caption", sqlmock.AnyArg(), "folder", "event", models.PostStatusScheduled, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.Create(context.Background(), nil, &models.ScheduledPost{
		PostType:        "static",
		Caption:         "caption",
		ScheduledTime:   time.Now().Add(time.Hour),
		DriveFolderID:   "folder",
		CalendarEventID: "event",
		MediaEntries:    []models.MediaEntry{{RequestedPath: "a.jpg"}},
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDueFiltersOnStatusAndTime(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM scheduled_posts").
		WithArgs(now, models.PostStatusScheduled).
		WillReturnRows(postRows(1, models.PostStatusScheduled, now.Add(-time.Minute)))

	posts, err := repo.FindDue(context.Background(), now)

	assert.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, int64(1), posts[0].ID)
	require.Len(t, posts[0].MediaEntries, 1)
	assert.Equal(t, "https://cdn.example.com/a.jpg", posts[0].MediaEntries[0].R2URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMovesPendingPost(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE scheduled_posts").
		WithArgs(models.PostStatusTriggered, int64(5), models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), models.PostStatusTriggered, 5)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusRejectsAlreadyTerminalPost(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE scheduled_posts").
		WithArgs(models.PostStatusTriggered, int64(5), models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), models.PostStatusTriggered, 5)

	assert.ErrorIs(t, err, ErrNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	repo, _ := newMockRepo(t)

	// no SQL expected: the transition is refused before the database
	err := repo.UpdateStatus(context.Background(), models.PostStatusScheduled, 5)

	assert.ErrorIs(t, err, ErrNotPending)
}

func TestCancelByEventID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE scheduled_posts").
		WithArgs(models.PostStatusCancelled, "event-123", models.PostStatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CancelByEventID(context.Background(), "event-123")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
