package models

import "time"

type Platform struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Type        string    `db:"type" json:"type"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	APIKey      string    `db:"api_key" json:"-"`
	APISecret   string    `db:"api_secret" json:"-"`
	AccessToken string    `db:"access_token" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type PlatformStatus string

const (
	PlatformStatusPending          PlatformStatus = "pending"
	PlatformStatusScheduled        PlatformStatus = "scheduled"
	PlatformStatusPublished        PlatformStatus = "published"
	PlatformStatusFailed           PlatformStatus = "failed"
	PlatformStatusValidationFailed PlatformStatus = "validation_failed"
)

// PostPlatform is one row of the post_platform association. Platform is
// populated by queries that join the platforms table.
type PostPlatform struct {
	PostID         int64          `db:"post_id" json:"post_id"`
	PlatformID     int64          `db:"platform_id" json:"platform_id"`
	PlatformStatus PlatformStatus `db:"platform_status" json:"platform_status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`

	Platform *Platform `db:"-" json:"platform,omitempty"`
}
