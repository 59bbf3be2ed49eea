package transfer

type PlatformInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Type        string `json:"type" validate:"omitempty,max=50"`
	IsActive    *bool  `json:"is_active"`
	APIKey      string `json:"api_key"`
	APISecret   string `json:"api_secret"`
	AccessToken string `json:"access_token"`
}
