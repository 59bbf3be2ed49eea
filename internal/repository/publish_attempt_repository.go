package repository

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/crosspost/internal/models"
)

type PublishAttemptRepository interface {
	Create(ctx context.Context, a *models.PublishAttempt) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error)
}

type publishAttemptRepository struct {
	db *sqlx.DB
}

func NewPublishAttemptRepository(db *sqlx.DB) PublishAttemptRepository {
	return &publishAttemptRepository{db: db}
}

func (r *publishAttemptRepository) Create(ctx context.Context, a *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (post_id, platform_id, run_id, outcome, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.GetContext(ctx, &id, query, a.PostID, a.PlatformID, a.RunID, a.Outcome, a.Message)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *publishAttemptRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	query := `
		SELECT id, post_id, platform_id, run_id, outcome, message, created_at
		FROM publish_attempts
		WHERE post_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var attempts []*models.PublishAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, postID); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return attempts, nil
}
