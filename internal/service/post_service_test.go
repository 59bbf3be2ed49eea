package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakePostRepo struct {
	posts  map[int64]*models.Post
	nextID int64
	// beforeUpdate runs between the service's read and its write.
	beforeUpdate func()
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: map[int64]*models.Post{}, nextID: 100}
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sqlx.Tx, post *models.Post) (int64, error) {
	r.nextID++
	cp := *post
	cp.ID = r.nextID
	r.posts[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListByStatus(ctx context.Context, userID int64, status models.PostStatus) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID && p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListByDate(ctx context.Context, userID int64, date time.Time) ([]*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) FindDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) GetStatus(ctx context.Context, id int64) (models.PostStatus, error) {
	if p, ok := r.posts[id]; ok {
		return p.Status, nil
	}
	return "", nil
}

func (r *fakePostRepo) Update(ctx context.Context, tx *sqlx.Tx, post *models.Post, expected models.PostStatus) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	stored, ok := r.posts[post.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleWrite
	}
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *fakePostRepo) UpdatePostStatus(ctx context.Context, status models.PostStatus, postID int64) error {
	r.posts[postID].Status = status
	return nil
}

func (r *fakePostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	p, ok := r.posts[postID]
	return ok && p.UserID == userID, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id int64) error {
	delete(r.posts, id)
	return nil
}

type fakeAssociationRepo struct {
	rows       map[int64][]*models.PostPlatform
	platforms  *fakePlatformRepo
	syncs      int
	batchLoads int
}

func (r *fakeAssociationRepo) Create(ctx context.Context, tx *sqlx.Tx, pp *models.PostPlatform) error {
	cp := *pp
	r.rows[pp.PostID] = append(r.rows[pp.PostID], &cp)
	return nil
}

func (r *fakeAssociationRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostPlatform, error) {
	var out []*models.PostPlatform
	for _, pp := range r.rows[postID] {
		cp := *pp
		cp.Platform = r.platforms.platforms[pp.PlatformID]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAssociationRepo) ListByPostIDs(ctx context.Context, postIDs []int64) (map[int64][]*models.PostPlatform, error) {
	r.batchLoads++
	out := make(map[int64][]*models.PostPlatform)
	for _, id := range postIDs {
		pps, _ := r.ListByPostID(ctx, id)
		if len(pps) > 0 {
			out[id] = pps
		}
	}
	return out, nil
}

func (r *fakeAssociationRepo) UpdateStatus(ctx context.Context, postID, platformID int64, status models.PlatformStatus) error {
	for _, pp := range r.rows[postID] {
		if pp.PlatformID == platformID {
			pp.PlatformStatus = status
		}
	}
	return nil
}

func (r *fakeAssociationRepo) Sync(ctx context.Context, tx *sqlx.Tx, postID int64, pps []*models.PostPlatform) error {
	r.syncs++
	rows := make([]*models.PostPlatform, 0, len(pps))
	for _, pp := range pps {
		cp := *pp
		cp.PostID = postID
		rows = append(rows, &cp)
	}
	r.rows[postID] = rows
	return nil
}

type fakePlatformRepo struct {
	platforms map[int64]*models.Platform
	createErr error
}

func (r *fakePlatformRepo) Create(ctx context.Context, p *models.Platform) (int64, error) {
	if r.createErr != nil {
		return 0, r.createErr
	}
	id := int64(len(r.platforms) + 1)
	cp := *p
	cp.ID = id
	r.platforms[id] = &cp
	return id, nil
}

func (r *fakePlatformRepo) GetByID(ctx context.Context, id int64) (*models.Platform, error) {
	p, ok := r.platforms[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePlatformRepo) List(ctx context.Context) ([]*models.Platform, error) {
	var out []*models.Platform
	for _, p := range r.platforms {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakePlatformRepo) Update(ctx context.Context, p *models.Platform) error {
	cp := *p
	r.platforms[p.ID] = &cp
	return nil
}

func (r *fakePlatformRepo) Remove(ctx context.Context, id int64) error {
	delete(r.platforms, id)
	return nil
}

type fakeAttemptRepo struct {
	attempts []*models.PublishAttempt
}

func (r *fakeAttemptRepo) Create(ctx context.Context, a *models.PublishAttempt) (int64, error) {
	r.attempts = append(r.attempts, a)
	return int64(len(r.attempts)), nil
}

func (r *fakeAttemptRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	var out []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.PostID == postID {
			out = append(out, a)
		}
	}
	return out, nil
}

type postFixture struct {
	svc       *postService
	mock      sqlmock.Sqlmock
	posts     *fakePostRepo
	links     *fakeAssociationRepo
	platforms *fakePlatformRepo
	attempts  *fakeAttemptRepo
}

func newPostFixture(t *testing.T) *postFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { sqlxDB.Close() })

	platforms := &fakePlatformRepo{platforms: map[int64]*models.Platform{
		1: {ID: 1, Name: "main twitter", Type: "twitter", IsActive: true},
		2: {ID: 2, Name: "company ig", Type: "instagram", IsActive: true},
		3: {ID: 3, Name: "blog", Type: "", IsActive: true},
	}}
	f := &postFixture{
		mock:      mock,
		posts:     newFakePostRepo(),
		links:     &fakeAssociationRepo{rows: map[int64][]*models.PostPlatform{}, platforms: platforms},
		platforms: platforms,
		attempts:  &fakeAttemptRepo{},
	}
	svc := NewPostService(sqlxDB, f.posts, f.links, f.platforms, f.attempts).(*postService)
	svc.now = func() time.Time { return fixedNow }
	f.svc = svc
	return f
}

func strPtr(s string) *string { return &s }

func TestPostService_Create(t *testing.T) {
	f := newPostFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	post, err := f.svc.Create(context.Background(), 7, &transfer.PostCreation{
		Title:         "launch",
		Content:       "hello world",
		Status:        "scheduled",
		ScheduledTime: fixedNow.Add(time.Hour).Format(time.RFC3339),
		PlatformIDs:   []int64{1, 2, 1},
	})
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusScheduled, post.Status)
	require.NotNil(t, post.ScheduledTime)
	assert.True(t, post.ScheduledTime.Equal(fixedNow.Add(time.Hour)))
	require.Len(t, post.Platforms, 2)
	assert.Equal(t, models.PlatformStatusPending, post.Platforms[0].PlatformStatus)
	assert.Equal(t, models.PlatformStatusValidationFailed, post.Platforms[1].PlatformStatus)
	assert.Len(t, f.links.rows[post.ID], 2)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPostService_CreateRejects(t *testing.T) {
	tests := []struct {
		name    string
		userID  int64
		input   *transfer.PostCreation
		wantErr error
	}{
		{
			name:    "no user",
			userID:  0,
			input:   &transfer.PostCreation{Status: "draft", PlatformIDs: []int64{1}},
			wantErr: ErrInvalidUser,
		},
		{
			name:    "failed is not a user status",
			userID:  7,
			input:   &transfer.PostCreation{Status: "failed", PlatformIDs: []int64{1}},
			wantErr: ErrInvalidStatus,
		},
		{
			name:   "schedule in the past",
			userID: 7,
			input: &transfer.PostCreation{
				Status:        "scheduled",
				ScheduledTime: fixedNow.Add(-time.Minute).Format(time.RFC3339),
				PlatformIDs:   []int64{1},
			},
			wantErr: ErrInvalidSchedule,
		},
		{
			name:    "unparseable schedule",
			userID:  7,
			input:   &transfer.PostCreation{Status: "scheduled", ScheduledTime: "tomorrow", PlatformIDs: []int64{1}},
			wantErr: ErrInvalidSchedule,
		},
		{
			name:    "unknown platform",
			userID:  7,
			input:   &transfer.PostCreation{Status: "draft", PlatformIDs: []int64{1, 99}},
			wantErr: ErrPlatformNotFound,
		},
		{
			name:    "no platforms",
			userID:  7,
			input:   &transfer.PostCreation{Status: "draft"},
			wantErr: ErrNoPlatforms,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture(t)
			post, err := f.svc.Create(context.Background(), tt.userID, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, post)
			assert.Empty(t, f.posts.posts)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestPostService_CreateDraftIgnoresSchedule(t *testing.T) {
	f := newPostFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	post, err := f.svc.Create(context.Background(), 7, &transfer.PostCreation{
		Title:         "draft",
		Content:       "later",
		Status:        "draft",
		ScheduledTime: "2000-01-01T00:00",
		PlatformIDs:   []int64{3},
	})
	require.NoError(t, err)
	assert.Nil(t, post.ScheduledTime)
	assert.Nil(t, post.PublishedAt)
	assert.Equal(t, models.PlatformStatusPending, post.Platforms[0].PlatformStatus)
}

func seedPost(f *postFixture, post *models.Post, links ...*models.PostPlatform) {
	f.posts.posts[post.ID] = post
	for _, l := range links {
		l.PostID = post.ID
		f.links.rows[post.ID] = append(f.links.rows[post.ID], l)
	}
}

func TestPostService_UpdatePublishedIsImmutable(t *testing.T) {
	f := newPostFixture(t)
	published := fixedNow.Add(-time.Hour)
	seedPost(f, &models.Post{ID: 5, UserID: 7, Content: "done", Status: models.PostStatusPublished, PublishedAt: &published})

	_, err := f.svc.Update(context.Background(), 7, 5, &transfer.PostUpdate{Status: strPtr("draft")})
	assert.ErrorIs(t, err, ErrPublishedImmutable)
	assert.Equal(t, models.PostStatusPublished, f.posts.posts[5].Status)
}

func TestPostService_UpdateFailedIsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{name: "back to scheduled", status: "scheduled"},
		{name: "back to draft", status: "draft"},
		{name: "to published", status: "published"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture(t)
			seedPost(f, &models.Post{ID: 5, UserID: 7, Content: "hi", Status: models.PostStatusFailed},
				&models.PostPlatform{PlatformID: 1, PlatformStatus: models.PlatformStatusFailed})

			update := &transfer.PostUpdate{Status: strPtr(tt.status)}
			if tt.status == "scheduled" {
				update.ScheduledTime = strPtr(fixedNow.Add(time.Hour).Format(time.RFC3339))
			}

			_, err := f.svc.Update(context.Background(), 7, 5, update)
			assert.ErrorIs(t, err, ErrFailedTerminal)
			assert.Equal(t, models.PostStatusFailed, f.posts.posts[5].Status)
			assert.Nil(t, f.posts.posts[5].ScheduledTime)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestPostService_UpdateFailedKeepsStatusOnEdit(t *testing.T) {
	f := newPostFixture(t)
	seedPost(f, &models.Post{ID: 5, UserID: 7, Title: "old", Content: "hi", Status: models.PostStatusFailed})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	post, err := f.svc.Update(context.Background(), 7, 5, &transfer.PostUpdate{Title: strPtr("new")})
	require.NoError(t, err)
	assert.Equal(t, "new", post.Title)
	assert.Equal(t, models.PostStatusFailed, post.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPostService_UpdateRacingSweep(t *testing.T) {
	tests := []struct {
		name    string
		sweepTo models.PostStatus
		wantErr error
	}{
		{name: "sweep published the post", sweepTo: models.PostStatusPublished, wantErr: ErrPublishedImmutable},
		{name: "sweep failed the post", sweepTo: models.PostStatusFailed, wantErr: ErrFailedTerminal},
		{name: "another edit moved it", sweepTo: models.PostStatusDraft, wantErr: ErrPostConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture(t)
			scheduled := fixedNow.Add(-time.Minute)
			seedPost(f, &models.Post{ID: 5, UserID: 7, Content: "hi", Status: models.PostStatusScheduled, ScheduledTime: &scheduled},
				&models.PostPlatform{PlatformID: 1, PlatformStatus: models.PlatformStatusPending})
			f.posts.beforeUpdate = func() {
				f.posts.posts[5].Status = tt.sweepTo
				f.posts.posts[5].ScheduledTime = nil
			}
			f.mock.ExpectBegin()
			f.mock.ExpectRollback()

			post, err := f.svc.Update(context.Background(), 7, 5, &transfer.PostUpdate{Status: strPtr("draft")})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, post)
			assert.Equal(t, tt.sweepTo, f.posts.posts[5].Status)
			assert.Equal(t, 0, f.links.syncs)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestPostService_UpdateSyncsPlatforms(t *testing.T) {
	f := newPostFixture(t)
	seedPost(f, &models.Post{ID: 5, UserID: 7, Content: "hi", Status: models.PostStatusDraft},
		&models.PostPlatform{PlatformID: 1, PlatformStatus: models.PlatformStatusPending},
		&models.PostPlatform{PlatformID: 3, PlatformStatus: models.PlatformStatusPending},
	)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	post, err := f.svc.Update(context.Background(), 7, 5, &transfer.PostUpdate{
		ImageURL:    strPtr("https://img.example/a.png"),
		PlatformIDs: []int64{1, 2},
	})
	require.NoError(t, err)

	require.Len(t, post.Platforms, 2)
	assert.Equal(t, int64(1), post.Platforms[0].PlatformID)
	assert.Equal(t, int64(2), post.Platforms[1].PlatformID)
	assert.Equal(t, models.PlatformStatusPending, post.Platforms[1].PlatformStatus)
	assert.Equal(t, 1, f.links.syncs)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPostService_UpdateContentRevalidatesUnattempted(t *testing.T) {
	f := newPostFixture(t)
	scheduled := fixedNow.Add(time.Hour)
	seedPost(f, &models.Post{ID: 5, UserID: 7, Content: "short", Status: models.PostStatusScheduled, ScheduledTime: &scheduled},
		&models.PostPlatform{PlatformID: 1, PlatformStatus: models.PlatformStatusPending},
		&models.PostPlatform{PlatformID: 3, PlatformStatus: models.PlatformStatusFailed},
	)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	long := make([]rune, 281)
	for i := range long {
		long[i] = 'a'
	}

	post, err := f.svc.Update(context.Background(), 7, 5, &transfer.PostUpdate{Content: strPtr(string(long))})
	require.NoError(t, err)

	require.Len(t, post.Platforms, 2)
	assert.Equal(t, models.PlatformStatusValidationFailed, post.Platforms[0].PlatformStatus)
	assert.Equal(t, models.PlatformStatusFailed, post.Platforms[1].PlatformStatus)
	require.NotNil(t, post.ScheduledTime)
	assert.True(t, post.ScheduledTime.Equal(scheduled))
}

func TestPostService_UpdateScheduleRules(t *testing.T) {
	tests := []struct {
		name    string
		start   models.PostStatus
		update  *transfer.PostUpdate
		wantErr error
		check   func(t *testing.T, post *models.Post)
	}{
		{
			name:    "scheduling without a time",
			start:   models.PostStatusDraft,
			update:  &transfer.PostUpdate{Status: strPtr("scheduled")},
			wantErr: ErrInvalidSchedule,
		},
		{
			name:  "scheduling with a future time",
			start: models.PostStatusDraft,
			update: &transfer.PostUpdate{
				Status:        strPtr("scheduled"),
				ScheduledTime: strPtr("2025-03-02T09:30"),
			},
			check: func(t *testing.T, post *models.Post) {
				require.NotNil(t, post.ScheduledTime)
				assert.Equal(t, time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC), *post.ScheduledTime)
			},
		},
		{
			name:   "publishing stamps published_at",
			start:  models.PostStatusDraft,
			update: &transfer.PostUpdate{Status: strPtr("published")},
			check: func(t *testing.T, post *models.Post) {
				require.NotNil(t, post.PublishedAt)
				assert.Equal(t, fixedNow, *post.PublishedAt)
				assert.Nil(t, post.ScheduledTime)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture(t)
			seedPost(f, &models.Post{ID: 5, UserID: 7, Content: "hi", Status: tt.start},
				&models.PostPlatform{PlatformID: 1, PlatformStatus: models.PlatformStatusPending})
			if tt.wantErr == nil {
				f.mock.ExpectBegin()
				f.mock.ExpectCommit()
			}

			post, err := f.svc.Update(context.Background(), 7, 5, tt.update)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, post)
			assert.Equal(t, 0, f.links.syncs)
		})
	}
}

func TestPostService_OwnershipChecks(t *testing.T) {
	f := newPostFixture(t)
	seedPost(f, &models.Post{ID: 5, UserID: 7, Content: "hi", Status: models.PostStatusDraft})

	_, err := f.svc.PostInfo(context.Background(), 5, 8)
	assert.ErrorIs(t, err, ErrPostNotFound)

	_, err = f.svc.Attempts(context.Background(), 8, 5)
	assert.ErrorIs(t, err, ErrPostNotFound)

	err = f.svc.Remove(context.Background(), 8, 5)
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.Contains(t, f.posts.posts, int64(5))

	require.NoError(t, f.svc.Remove(context.Background(), 7, 5))
	assert.NotContains(t, f.posts.posts, int64(5))
}

func TestPostService_Listing(t *testing.T) {
	f := newPostFixture(t)
	seedPost(f, &models.Post{ID: 5, UserID: 7, Status: models.PostStatusFailed})
	seedPost(f, &models.Post{ID: 6, UserID: 7, Status: models.PostStatusDraft})
	f.attempts.attempts = []*models.PublishAttempt{{PostID: 5, PlatformID: 1, Outcome: "rejected"}}

	failed, err := f.svc.ListByStatus(context.Background(), 7, "failed")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(5), failed[0].ID)
	assert.Empty(t, failed[0].Platforms)

	_, err = f.svc.ListByStatus(context.Background(), 7, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.ListByDate(context.Background(), 7, "03/01/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)

	attempts, err := f.svc.Attempts(context.Background(), 7, 5)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestPostService_ListIncludesPlatforms(t *testing.T) {
	f := newPostFixture(t)
	seedPost(f, &models.Post{ID: 5, UserID: 7, Status: models.PostStatusPublished},
		&models.PostPlatform{PlatformID: 1, PlatformStatus: models.PlatformStatusPublished},
		&models.PostPlatform{PlatformID: 2, PlatformStatus: models.PlatformStatusFailed})
	seedPost(f, &models.Post{ID: 6, UserID: 7, Status: models.PostStatusDraft},
		&models.PostPlatform{PlatformID: 3, PlatformStatus: models.PlatformStatusPending})
	seedPost(f, &models.Post{ID: 8, UserID: 9, Status: models.PostStatusDraft},
		&models.PostPlatform{PlatformID: 1, PlatformStatus: models.PlatformStatusPending})

	posts, err := f.svc.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, 1, f.links.batchLoads, "associations load in one query")

	byID := map[int64]*models.Post{}
	for _, p := range posts {
		byID[p.ID] = p
	}
	require.Len(t, byID[5].Platforms, 2)
	assert.Equal(t, models.PlatformStatusFailed, byID[5].Platforms[1].PlatformStatus)
	require.NotNil(t, byID[5].Platforms[0].Platform)
	assert.Equal(t, "twitter", byID[5].Platforms[0].Platform.Type)
	require.Len(t, byID[6].Platforms, 1)

	drafts, err := f.svc.ListByStatus(context.Background(), 7, "draft")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, int64(3), drafts[0].Platforms[0].PlatformID)

	none, err := f.svc.ListByStatus(context.Background(), 7, "scheduled")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, 2, f.links.batchLoads, "empty result skips the association query")
}
