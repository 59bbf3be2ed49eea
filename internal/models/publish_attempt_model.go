package models

import "time"

type PublishAttempt struct {
	ID         int64     `db:"id" json:"id"`
	PostID     int64     `db:"post_id" json:"post_id"`
	PlatformID int64     `db:"platform_id" json:"platform_id"`
	RunID      string    `db:"run_id" json:"run_id"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Message    string    `db:"message" json:"message"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
