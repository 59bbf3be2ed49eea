package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/internal/validation"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

const uniqueViolation = "23505"

type PlatformService interface {
	Create(ctx context.Context, in *transfer.PlatformInput) (*models.Platform, error)
	Get(ctx context.Context, id int64) (*models.Platform, error)
	List(ctx context.Context) ([]*models.Platform, error)
	Update(ctx context.Context, id int64, in *transfer.PlatformInput) (*models.Platform, error)
	Delete(ctx context.Context, id int64) error
}

type platformService struct {
	secretKey string
	plr       repository.PlatformRepository
}

func NewPlatformService(secretKey string, plr repository.PlatformRepository) PlatformService {
	return &platformService{
		secretKey: secretKey,
		plr:       plr,
	}
}

func (s *platformService) Create(ctx context.Context, in *transfer.PlatformInput) (*models.Platform, error) {
	platform := &models.Platform{IsActive: true}
	if err := s.apply(platform, in); err != nil {
		return nil, err
	}

	id, err := s.plr.Create(ctx, platform)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePlatform
		}
		return nil, fmt.Errorf("error creating platform: %w", err)
	}
	platform.ID = id

	slog.Info("platform created", "platform_id", id, "type", platform.Type)
	return platform, nil
}

func (s *platformService) Get(ctx context.Context, id int64) (*models.Platform, error) {
	platform, err := s.plr.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting platform: %w", err)
	}
	if platform == nil {
		return nil, ErrPlatformNotFound
	}
	return platform, nil
}

func (s *platformService) List(ctx context.Context) ([]*models.Platform, error) {
	platforms, err := s.plr.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting platforms: %w", err)
	}
	return platforms, nil
}

func (s *platformService) Update(ctx context.Context, id int64, in *transfer.PlatformInput) (*models.Platform, error) {
	platform, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.apply(platform, in); err != nil {
		return nil, err
	}

	if err := s.plr.Update(ctx, platform); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePlatform
		}
		return nil, fmt.Errorf("error updating platform: %w", err)
	}
	return platform, nil
}

func (s *platformService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.plr.Remove(ctx, id); err != nil {
		return fmt.Errorf("error removing platform: %w", err)
	}
	return nil
}

// apply copies in onto platform. Credentials are only replaced when a new
// value is supplied and are stored encrypted.
func (s *platformService) apply(platform *models.Platform, in *transfer.PlatformInput) error {
	if in == nil {
		return errors.New("platform data is nil")
	}

	platform.Name = strings.TrimSpace(in.Name)
	platform.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if platform.Type == "" {
		platform.Type = string(validation.Other)
	}
	if in.IsActive != nil {
		platform.IsActive = *in.IsActive
	}

	credentials := []struct {
		value string
		dest  *string
	}{
		{in.APIKey, &platform.APIKey},
		{in.APISecret, &platform.APISecret},
		{in.AccessToken, &platform.AccessToken},
	}
	for _, c := range credentials {
		if c.value == "" {
			continue
		}
		sealed, err := utils.Encrypt(c.value, s.secretKey)
		if err != nil {
			return fmt.Errorf("error encrypting credentials: %w", err)
		}
		*c.dest = sealed
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
