package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/postpipe/postpipe/internal/models"
)

// ErrNotPending is returned when a status update targets a post that is no
// longer in the "scheduled" state. Transitions out of terminal states are
// rejected at this boundary.
var ErrNotPending = errors.New("post is not in scheduled state")

type ScheduledPostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	FindDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error)
	FindExpired(ctx context.Context, threshold time.Time) ([]*models.ScheduledPost, error)
	UpdateStatus(ctx context.Context, status string, postID int64) error
	CancelByEventID(ctx context.Context, eventID string) error
	EnsureSchema(ctx context.Context) error
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const postColumns = `id, post_type, caption, scheduled_time, drive_folder_id, calendar_event_id, status, media_entries, created_at`

func (r *scheduledPostRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS scheduled_posts (
			id BIGSERIAL PRIMARY KEY,
			post_type TEXT NOT NULL,
			caption TEXT NOT NULL DEFAULT '',
			scheduled_time TIMESTAMPTZ NOT NULL,
			drive_folder_id TEXT NOT NULL DEFAULT '',
			calendar_event_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'scheduled',
			media_entries JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}

func (r *scheduledPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO scheduled_posts (post_type, caption, scheduled_time, drive_folder_id, calendar_event_id, status, media_entries)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	entries, err := json.Marshal(post.MediaEntries)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	status := post.Status
	if status == "" {
		status = models.PostStatusScheduled
	}

	var id int64
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.PostType, post.Caption, post.ScheduledTime, post.DriveFolderID, post.CalendarEventID, status, entries).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.PostType, post.Caption, post.ScheduledTime, post.DriveFolderID, post.CalendarEventID, status, entries).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

// FindDue returns every still-scheduled post whose time has arrived, oldest
// first, so no post is silently skipped after downtime.
func (r *scheduledPostRepository) FindDue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE scheduled_time <= $1 AND status = $2
		ORDER BY scheduled_time ASC
	`
	return r.queryPosts(ctx, query, now, models.PostStatusScheduled)
}

func (r *scheduledPostRepository) FindExpired(ctx context.Context, threshold time.Time) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE scheduled_time < $1 AND status = $2
	`
	return r.queryPosts(ctx, query, threshold, models.PostStatusScheduled)
}

func (r *scheduledPostRepository) queryPosts(ctx context.Context, query string, args ...any) ([]*models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// UpdateStatus moves a post out of "scheduled". The WHERE guard makes the
// transition single-winner: a second caller sees ErrNotPending instead of
// re-triggering a terminal post.
func (r *scheduledPostRepository) UpdateStatus(ctx context.Context, status string, postID int64) error {
	if !models.ValidTransition(models.PostStatusScheduled, status) {
		return ErrNotPending
	}

	query := `
		UPDATE scheduled_posts
		SET status = $1
		WHERE id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query, status, postID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *scheduledPostRepository) CancelByEventID(ctx context.Context, eventID string) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1
		WHERE calendar_event_id = $2 AND status = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusCancelled, eventID, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	var entries []byte

	err := row.Scan(
		&post.ID,
		&post.PostType,
		&post.Caption,
		&post.ScheduledTime,
		&post.DriveFolderID,
		&post.CalendarEventID,
		&post.Status,
		&entries,
		&post.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		if err := json.Unmarshal(entries, &post.MediaEntries); err != nil {
			return nil, err
		}
	}

	return &post, nil
}
