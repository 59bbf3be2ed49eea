package service

import "errors"

var (
	ErrInvalidUser        = errors.New("user is not valid")
	ErrPostNotFound       = errors.New("post doesn't exist")
	ErrPlatformNotFound   = errors.New("platform doesn't exist")
	ErrDuplicatePlatform  = errors.New("platform name already in use")
	ErrInvalidStatus      = errors.New("invalid post status")
	ErrInvalidSchedule    = errors.New("scheduled time must be a valid time in the future")
	ErrInvalidDate        = errors.New("date must be in YYYY-MM-DD format")
	ErrPublishedImmutable = errors.New("published posts cannot change status")
	ErrFailedTerminal     = errors.New("failed posts cannot change status")
	ErrPostConflict       = errors.New("post was changed by another request, reload and retry")
	ErrNoPlatforms        = errors.New("at least one platform is required")
	ErrUnsupportedMedia   = errors.New("unsupported file type")
	ErrFileTooLarge       = errors.New("file exceeds upload limit")
)
