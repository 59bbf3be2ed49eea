package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/maheshrc27/crosspost/internal/models"
)

type PostPlatformRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, pp *models.PostPlatform) error
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostPlatform, error)
	ListByPostIDs(ctx context.Context, postIDs []int64) (map[int64][]*models.PostPlatform, error)
	UpdateStatus(ctx context.Context, postID, platformID int64, status models.PlatformStatus) error
	Sync(ctx context.Context, tx *sqlx.Tx, postID int64, pps []*models.PostPlatform) error
}

type postPlatformRepository struct {
	db *sqlx.DB
}

func NewPostPlatformRepository(db *sqlx.DB) PostPlatformRepository {
	return &postPlatformRepository{db: db}
}

func (r *postPlatformRepository) ext(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *postPlatformRepository) Create(ctx context.Context, tx *sqlx.Tx, pp *models.PostPlatform) error {
	query := `
		INSERT INTO post_platform (post_id, platform_id, platform_status)
		VALUES ($1, $2, $3)
	`
	_, err := r.ext(tx).ExecContext(ctx, query, pp.PostID, pp.PlatformID, pp.PlatformStatus)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

const associationSelect = `
	SELECT pp.post_id, pp.platform_id, pp.platform_status, pp.created_at, pp.updated_at,
		p.id, p.name, p.type, p.is_active, p.created_at, p.updated_at
	FROM post_platform pp
	JOIN platforms p ON p.id = pp.platform_id
`

// ListByPostID returns the post's associations with Platform populated.
// Credentials are not loaded.
func (r *postPlatformRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostPlatform, error) {
	query := associationSelect + `WHERE pp.post_id = $1 ORDER BY pp.platform_id`
	return r.list(ctx, query, postID)
}

// ListByPostIDs loads the associations of several posts in one query, keyed
// by post id. Posts without associations have no entry.
func (r *postPlatformRepository) ListByPostIDs(ctx context.Context, postIDs []int64) (map[int64][]*models.PostPlatform, error) {
	byPost := make(map[int64][]*models.PostPlatform, len(postIDs))
	if len(postIDs) == 0 {
		return byPost, nil
	}

	query := associationSelect + `WHERE pp.post_id = ANY($1) ORDER BY pp.post_id, pp.platform_id`
	pps, err := r.list(ctx, query, pq.Array(postIDs))
	if err != nil {
		return nil, err
	}
	for _, pp := range pps {
		byPost[pp.PostID] = append(byPost[pp.PostID], pp)
	}
	return byPost, nil
}

func (r *postPlatformRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.PostPlatform, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var pps []*models.PostPlatform
	for rows.Next() {
		var pp models.PostPlatform
		var p models.Platform
		err := rows.Scan(&pp.PostID, &pp.PlatformID, &pp.PlatformStatus, &pp.CreatedAt, &pp.UpdatedAt,
			&p.ID, &p.Name, &p.Type, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		pp.Platform = &p
		pps = append(pps, &pp)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return pps, nil
}

func (r *postPlatformRepository) UpdateStatus(ctx context.Context, postID, platformID int64, status models.PlatformStatus) error {
	query := `
		UPDATE post_platform
		SET platform_status = $1,
			updated_at = $2
		WHERE post_id = $3 AND platform_id = $4
	`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), postID, platformID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		slog.Warn("association no longer exists", "post_id", postID, "platform_id", platformID)
	}
	return nil
}

// Sync replaces the post's association set with pps: rows for platforms not
// in pps are deleted, the rest are inserted or have their status reset.
// A row a sweep has already published keeps its status.
func (r *postPlatformRepository) Sync(ctx context.Context, tx *sqlx.Tx, postID int64, pps []*models.PostPlatform) error {
	q := r.ext(tx)

	platformIDs := make([]int64, 0, len(pps))
	for _, pp := range pps {
		platformIDs = append(platformIDs, pp.PlatformID)
	}

	deleteQuery := `DELETE FROM post_platform WHERE post_id = $1 AND NOT (platform_id = ANY($2))`
	if _, err := q.ExecContext(ctx, deleteQuery, postID, pq.Array(platformIDs)); err != nil {
		slog.Info(err.Error())
		return err
	}

	upsertQuery := `
		INSERT INTO post_platform (post_id, platform_id, platform_status)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, platform_id)
		DO UPDATE SET platform_status = EXCLUDED.platform_status, updated_at = CURRENT_TIMESTAMP
		WHERE post_platform.platform_status <> 'published'
	`
	for _, pp := range pps {
		if _, err := q.ExecContext(ctx, upsertQuery, postID, pp.PlatformID, pp.PlatformStatus); err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	return nil
}
