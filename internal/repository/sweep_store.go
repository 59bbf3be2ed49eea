package repository

import (
	"context"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
)

// SweepStore exposes the post and association repositories through the
// narrow interface the scheduled post sweep depends on.
type SweepStore struct {
	posts        PostRepository
	associations PostPlatformRepository
}

func NewSweepStore(posts PostRepository, associations PostPlatformRepository) *SweepStore {
	return &SweepStore{posts: posts, associations: associations}
}

func (s *SweepStore) FindDuePosts(ctx context.Context, now time.Time) ([]*models.Post, error) {
	return s.posts.FindDue(ctx, now)
}

func (s *SweepStore) GetAssociations(ctx context.Context, postID int64) ([]*models.PostPlatform, error) {
	return s.associations.ListByPostID(ctx, postID)
}

func (s *SweepStore) UpdateAssociationStatus(ctx context.Context, postID, platformID int64, status models.PlatformStatus) error {
	return s.associations.UpdateStatus(ctx, postID, platformID, status)
}

func (s *SweepStore) UpdatePostStatus(ctx context.Context, postID int64, status models.PostStatus) error {
	return s.posts.UpdatePostStatus(ctx, status, postID)
}

func (s *SweepStore) GetPostStatus(ctx context.Context, postID int64) (models.PostStatus, error) {
	return s.posts.GetStatus(ctx, postID)
}
