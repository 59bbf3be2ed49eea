package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/internal/validation"
)

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error)
	Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) (*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	ListByStatus(ctx context.Context, userID int64, status string) ([]*models.Post, error)
	ListByDate(ctx context.Context, userID int64, date string) ([]*models.Post, error)
	Attempts(ctx context.Context, userID, postID int64) ([]*models.PublishAttempt, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	db  TxBeginner
	pr  repository.PostRepository
	ppr repository.PostPlatformRepository
	plr repository.PlatformRepository
	ar  repository.PublishAttemptRepository
	now func() time.Time
}

func NewPostService(
	db TxBeginner,
	pr repository.PostRepository,
	ppr repository.PostPlatformRepository,
	plr repository.PlatformRepository,
	ar repository.PublishAttemptRepository) PostService {
	return &postService{
		db:  db,
		pr:  pr,
		ppr: ppr,
		plr: plr,
		ar:  ar,
		now: time.Now,
	}
}

func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error) {
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return nil, ErrInvalidUser
	}
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return nil, err
	}

	status := models.PostStatus(pc.Status)
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	post := &models.Post{
		UserID:   userID,
		Title:    pc.Title,
		Content:  pc.Content,
		ImageURL: normalizeImageURL(pc.ImageURL),
		Status:   status,
	}

	now := s.now()
	switch status {
	case models.PostStatusScheduled:
		scheduledTime, err := s.futureTime(pc.ScheduledTime)
		if err != nil {
			return nil, err
		}
		post.ScheduledTime = &scheduledTime
	case models.PostStatusPublished:
		post.PublishedAt = &now
	}

	platforms, err := s.loadPlatforms(ctx, pc.PlatformIDs)
	if err != nil {
		return nil, err
	}

	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		postID, err := s.pr.Create(ctx, tx, post)
		if err != nil {
			return fmt.Errorf("error creating post: %w", err)
		}
		post.ID = postID

		for _, platform := range platforms {
			pp := &models.PostPlatform{
				PostID:         postID,
				PlatformID:     platform.ID,
				PlatformStatus: associationStatus(post, platform),
				Platform:       platform,
			}
			if err := s.ppr.Create(ctx, tx, pp); err != nil {
				return fmt.Errorf("error saving platform %d: %w", platform.ID, err)
			}
			post.Platforms = append(post.Platforms, pp)
		}
		return nil
	})
	if err != nil {
		slog.Error("create post failed", "user_id", userID, "error", err)
		return nil, err
	}

	return post, nil
}

func (s *postService) Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) (*models.Post, error) {
	if pu == nil {
		err := errors.New("post update data is nil")
		slog.Error(err.Error())
		return nil, err
	}

	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	previousStatus := post.Status
	contentChanged := false

	if pu.Title != nil {
		post.Title = *pu.Title
	}
	if pu.Content != nil && *pu.Content != post.Content {
		post.Content = *pu.Content
		contentChanged = true
	}
	if pu.ImageURL != nil {
		post.ImageURL = normalizeImageURL(pu.ImageURL)
		contentChanged = true
	}

	if pu.Status != nil {
		status := models.PostStatus(*pu.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		if err := checkTransition(previousStatus, status); err != nil {
			return nil, err
		}
		post.Status = status
	}

	if err := s.applySchedule(post, previousStatus, pu.ScheduledTime); err != nil {
		return nil, err
	}

	associations, err := s.nextAssociations(ctx, post, pu.PlatformIDs, contentChanged)
	if err != nil {
		return nil, err
	}

	err = withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.pr.Update(ctx, tx, post, previousStatus); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return s.staleWrite(ctx, post.ID)
			}
			return fmt.Errorf("error updating post: %w", err)
		}
		if associations == nil {
			return nil
		}
		if err := s.ppr.Sync(ctx, tx, post.ID, associations); err != nil {
			return fmt.Errorf("error syncing platforms: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("update post failed", "post_id", postID, "error", err)
		return nil, err
	}

	post.Platforms, err = s.ppr.ListByPostID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("error loading platforms: %w", err)
	}

	return post, nil
}

// checkTransition rejects moving a post out of a terminal status. Published
// and failed are only ever set once.
func checkTransition(from, to models.PostStatus) error {
	if from == to {
		return nil
	}
	switch from {
	case models.PostStatusPublished:
		return ErrPublishedImmutable
	case models.PostStatusFailed:
		return ErrFailedTerminal
	}
	return nil
}

// staleWrite explains why a guarded update matched nothing: usually a sweep
// finished the post between the read and the write.
func (s *postService) staleWrite(ctx context.Context, postID int64) error {
	status, err := s.pr.GetStatus(ctx, postID)
	if err != nil {
		return fmt.Errorf("error reloading post status: %w", err)
	}
	switch status {
	case "":
		return ErrPostNotFound
	case models.PostStatusPublished:
		return ErrPublishedImmutable
	case models.PostStatusFailed:
		return ErrFailedTerminal
	}
	slog.Info(ErrPostConflict.Error(), "post_id", postID, "status", status)
	return ErrPostConflict
}

// applySchedule keeps scheduled_time consistent with the post's status.
// Entering scheduled, or supplying a new time, requires a time in the future.
func (s *postService) applySchedule(post *models.Post, previous models.PostStatus, scheduledTime *string) error {
	switch post.Status {
	case models.PostStatusScheduled:
		if scheduledTime != nil {
			t, err := s.futureTime(*scheduledTime)
			if err != nil {
				return err
			}
			post.ScheduledTime = &t
		} else if previous != models.PostStatusScheduled || post.ScheduledTime == nil {
			return ErrInvalidSchedule
		}
	case models.PostStatusPublished:
		post.ScheduledTime = nil
		if post.PublishedAt == nil {
			now := s.now()
			post.PublishedAt = &now
		}
	default:
		post.ScheduledTime = nil
	}
	return nil
}

// nextAssociations returns the association set to sync, or nil when the
// stored set should be left alone. With explicit platform ids every row is
// freshly validated; after a content change only rows that have not been
// attempted yet are revalidated.
func (s *postService) nextAssociations(ctx context.Context, post *models.Post, platformIDs []int64, contentChanged bool) ([]*models.PostPlatform, error) {
	if platformIDs != nil {
		platforms, err := s.loadPlatforms(ctx, platformIDs)
		if err != nil {
			return nil, err
		}
		pps := make([]*models.PostPlatform, 0, len(platforms))
		for _, platform := range platforms {
			pps = append(pps, &models.PostPlatform{
				PostID:         post.ID,
				PlatformID:     platform.ID,
				PlatformStatus: associationStatus(post, platform),
			})
		}
		return pps, nil
	}

	if !contentChanged {
		return nil, nil
	}

	current, err := s.ppr.ListByPostID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("error loading platforms: %w", err)
	}
	for _, pp := range current {
		switch pp.PlatformStatus {
		case models.PlatformStatusPending, models.PlatformStatusValidationFailed:
			if pp.Platform != nil {
				pp.PlatformStatus = associationStatus(post, pp.Platform)
			}
		}
	}
	return current, nil
}

func (s *postService) futureTime(value string) (time.Time, error) {
	t, err := parseScheduledTime(value)
	if err != nil {
		slog.Info(err.Error())
		return time.Time{}, err
	}
	if !t.After(s.now()) {
		return time.Time{}, ErrInvalidSchedule
	}
	return t, nil
}

func (s *postService) loadPlatforms(ctx context.Context, ids []int64) ([]*models.Platform, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoPlatforms
	}

	platforms := make([]*models.Platform, 0, len(ids))
	for _, id := range ids {
		platform, err := s.plr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("error checking platform %d: %w", id, err)
		}
		if platform == nil {
			return nil, fmt.Errorf("%w: %d", ErrPlatformNotFound, id)
		}
		platforms = append(platforms, platform)
	}
	return platforms, nil
}

func associationStatus(post *models.Post, platform *models.Platform) models.PlatformStatus {
	if validation.IsValidForPlatform(post.Content, post.HasImage(), platform.Type) {
		return models.PlatformStatusPending
	}
	return models.PlatformStatusValidationFailed
}

func (s *postService) ownedPost(ctx context.Context, userID, postID int64) (*models.Post, error) {
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return nil, ErrInvalidUser
	}
	if postID == 0 {
		return nil, ErrPostNotFound
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		slog.Info(ErrPostNotFound.Error(), "post_id", postID, "user_id", userID)
		return nil, ErrPostNotFound
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	post.Platforms, err = s.ppr.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error loading platforms: %w", err)
	}

	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting posts: %w", err)
	}
	return s.withPlatforms(ctx, posts)
}

func (s *postService) ListByStatus(ctx context.Context, userID int64, status string) ([]*models.Post, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}

	postStatus := models.PostStatus(status)
	if !postStatus.Valid() && postStatus != models.PostStatusFailed {
		return nil, ErrInvalidStatus
	}

	posts, err := s.pr.ListByStatus(ctx, userID, postStatus)
	if err != nil {
		return nil, fmt.Errorf("error getting posts: %w", err)
	}
	return s.withPlatforms(ctx, posts)
}

func (s *postService) ListByDate(ctx context.Context, userID int64, date string) ([]*models.Post, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}

	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	posts, err := s.pr.ListByDate(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("error getting posts: %w", err)
	}
	return s.withPlatforms(ctx, posts)
}

// withPlatforms attaches each post's associations using a single query.
func (s *postService) withPlatforms(ctx context.Context, posts []*models.Post) ([]*models.Post, error) {
	if len(posts) == 0 {
		return posts, nil
	}

	ids := make([]int64, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}

	byPost, err := s.ppr.ListByPostIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error loading platforms: %w", err)
	}
	for _, post := range posts {
		post.Platforms = byPost[post.ID]
	}
	return posts, nil
}

func (s *postService) Attempts(ctx context.Context, userID, postID int64) ([]*models.PublishAttempt, error) {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return nil, err
	}

	attempts, err := s.ar.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting publish attempts: %w", err)
	}
	return attempts, nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return err
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}

	slog.Info("post removed", "post_id", postID, "user_id", userID)
	return nil
}
