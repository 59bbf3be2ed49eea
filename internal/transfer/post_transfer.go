package transfer

type PostCreation struct {
	Title         string  `json:"title" validate:"required,max=255"`
	Content       string  `json:"content" validate:"required"`
	ImageURL      *string `json:"image_url" validate:"omitempty,url"`
	Status        string  `json:"status" validate:"required,oneof=draft scheduled published"`
	ScheduledTime string  `json:"scheduled_time" validate:"required_if=Status scheduled"`
	PlatformIDs   []int64 `json:"platform_ids" validate:"required,min=1,dive,gt=0"`
}

// PostUpdate carries a partial update. Nil fields are left unchanged.
type PostUpdate struct {
	Title         *string `json:"title" validate:"omitempty,max=255"`
	Content       *string `json:"content" validate:"omitempty,min=1"`
	ImageURL      *string `json:"image_url" validate:"omitempty,url"`
	Status        *string `json:"status" validate:"omitempty,oneof=draft scheduled published"`
	ScheduledTime *string `json:"scheduled_time"`
	PlatformIDs   []int64 `json:"platform_ids" validate:"omitempty,min=1,dive,gt=0"`
}
