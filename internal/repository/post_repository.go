package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/crosspost/internal/models"
)

// ErrStaleWrite is returned when a guarded update matched no row because the
// post changed status since it was read.
var ErrStaleWrite = errors.New("post changed since it was read")

const postColumns = `id, user_id, title, content, image_url, status, scheduled_time, published_at, created_at, updated_at`

type PostRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListByStatus(ctx context.Context, userID int64, status models.PostStatus) ([]*models.Post, error)
	ListByDate(ctx context.Context, userID int64, date time.Time) ([]*models.Post, error)
	FindDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	GetStatus(ctx context.Context, id int64) (models.PostStatus, error)
	Update(ctx context.Context, tx *sqlx.Tx, post *models.Post, expected models.PostStatus) error
	UpdatePostStatus(ctx context.Context, status models.PostStatus, postID int64) error
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) ext(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *postRepository) Create(ctx context.Context, tx *sqlx.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, title, content, image_url, status, scheduled_time, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := sqlx.GetContext(ctx, r.ext(tx), &id, query,
		post.UserID, post.Title, post.Content, post.ImageURL, post.Status, post.ScheduledTime, post.PublishedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	var post models.Post
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *postRepository) ListByStatus(ctx context.Context, userID int64, status models.PostStatus) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC`
	return r.list(ctx, query, userID, status)
}

func (r *postRepository) ListByDate(ctx context.Context, userID int64, date time.Time) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM posts
		WHERE user_id = $1
		  AND (created_at::date = $2::date OR scheduled_time::date = $2::date)
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID, date.Format("2006-01-02"))
}

func (r *postRepository) FindDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY scheduled_time
	`
	return r.list(ctx, query, models.PostStatusScheduled, now)
}

func (r *postRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) GetStatus(ctx context.Context, id int64) (models.PostStatus, error) {
	var status models.PostStatus
	err := r.db.GetContext(ctx, &status, `SELECT status FROM posts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		slog.Info(err.Error())
		return "", err
	}
	return status, nil
}

// Update writes post back only while its stored status is still expected.
// ErrStaleWrite means a sweep or another request moved it first.
func (r *postRepository) Update(ctx context.Context, tx *sqlx.Tx, post *models.Post, expected models.PostStatus) error {
	query := `
		UPDATE posts
		SET title = $1,
			content = $2,
			image_url = $3,
			status = $4,
			scheduled_time = $5,
			published_at = $6,
			updated_at = $7
		WHERE id = $8 AND status = $9
	`
	result, err := r.ext(tx).ExecContext(ctx, query,
		post.Title, post.Content, post.ImageURL, post.Status, post.ScheduledTime, post.PublishedAt, time.Now(), post.ID, expected)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if n == 0 {
		return ErrStaleWrite
	}
	return nil
}

// UpdatePostStatus moves a post to status. scheduled_time is cleared when the
// post leaves scheduled and published_at is stamped on publication. Posts
// that are already published are left untouched.
func (r *postRepository) UpdatePostStatus(ctx context.Context, status models.PostStatus, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			scheduled_time = CASE WHEN $1 = 'scheduled' THEN scheduled_time ELSE NULL END,
			published_at = CASE WHEN $1 = 'published' THEN COALESCE(published_at, $2) ELSE published_at END,
			updated_at = $2
		WHERE id = $3 AND status <> 'published'
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// Remove deletes a post; its platform associations and attempts cascade.
func (r *postRepository) Remove(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
