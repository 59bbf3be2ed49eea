package models

import "time"

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

// Valid reports whether s is a status a user may set on a post.
// PostStatusFailed is only ever written by the sweep.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublished:
		return true
	}
	return false
}

type Post struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Title         string     `db:"title" json:"title"`
	Content       string     `db:"content" json:"content"`
	ImageURL      *string    `db:"image_url" json:"image_url"`
	Status        PostStatus `db:"status" json:"status"`
	ScheduledTime *time.Time `db:"scheduled_time" json:"scheduled_time"`
	PublishedAt   *time.Time `db:"published_at" json:"published_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	Platforms []*PostPlatform `db:"-" json:"platforms,omitempty"`
}

func (p *Post) HasImage() bool {
	return p.ImageURL != nil && *p.ImageURL != ""
}

// IsDue reports whether the sweep should pick the post up at now.
func (p *Post) IsDue(now time.Time) bool {
	return p.Status == PostStatusScheduled && p.ScheduledTime != nil && !p.ScheduledTime.After(now)
}
