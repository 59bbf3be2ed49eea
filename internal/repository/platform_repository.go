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

const platformColumns = `id, name, type, is_active, api_key, api_secret, access_token, created_at, updated_at`

type PlatformRepository interface {
	Create(ctx context.Context, p *models.Platform) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Platform, error)
	List(ctx context.Context) ([]*models.Platform, error)
	Update(ctx context.Context, p *models.Platform) error
	Remove(ctx context.Context, id int64) error
}

type platformRepository struct {
	db *sqlx.DB
}

func NewPlatformRepository(db *sqlx.DB) PlatformRepository {
	return &platformRepository{db: db}
}

func (r *platformRepository) Create(ctx context.Context, p *models.Platform) (int64, error) {
	query := `
		INSERT INTO platforms (name, type, is_active, api_key, api_secret, access_token)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.GetContext(ctx, &id, query, p.Name, p.Type, p.IsActive, p.APIKey, p.APISecret, p.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *platformRepository) GetByID(ctx context.Context, id int64) (*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms WHERE id = $1`

	var p models.Platform
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &p, nil
}

func (r *platformRepository) List(ctx context.Context) ([]*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms ORDER BY name`

	var platforms []*models.Platform
	if err := r.db.SelectContext(ctx, &platforms, query); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return platforms, nil
}

func (r *platformRepository) Update(ctx context.Context, p *models.Platform) error {
	query := `
		UPDATE platforms
		SET name = $1,
			type = $2,
			is_active = $3,
			api_key = $4,
			api_secret = $5,
			access_token = $6,
			updated_at = $7
		WHERE id = $8
	`
	_, err := r.db.ExecContext(ctx, query, p.Name, p.Type, p.IsActive, p.APIKey, p.APISecret, p.AccessToken, time.Now(), p.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformRepository) Remove(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM platforms WHERE id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
