// Package validation holds the per-platform content rules shared by post
// creation and the publisher.
package validation

import (
	"errors"
	"unicode/utf8"
)

type PlatformType string

const (
	Twitter   PlatformType = "twitter"
	Instagram PlatformType = "instagram"
	LinkedIn  PlatformType = "linkedin"
	Facebook  PlatformType = "facebook"
	Other     PlatformType = "other"
)

const (
	TwitterMaxLength  = 280
	LinkedInMaxLength = 3000
	FacebookMaxLength = 63206
)

var (
	ErrContentTooLong = errors.New("content exceeds platform length limit")
	ErrImageRequired  = errors.New("platform requires an image")
)

// ParseType maps a stored platform type onto the closed set of known types.
// Anything unrecognised is Other.
func ParseType(s string) PlatformType {
	switch t := PlatformType(s); t {
	case Twitter, Instagram, LinkedIn, Facebook:
		return t
	}
	return Other
}

// Check returns the first rule content violates for platformType, or nil.
// Lengths are counted in runes.
func Check(content string, hasImage bool, platformType string) error {
	length := utf8.RuneCountInString(content)

	switch ParseType(platformType) {
	case Twitter:
		if length > TwitterMaxLength {
			return ErrContentTooLong
		}
	case Instagram:
		if !hasImage {
			return ErrImageRequired
		}
	case LinkedIn:
		if length > LinkedInMaxLength {
			return ErrContentTooLong
		}
	case Facebook:
		if length > FacebookMaxLength {
			return ErrContentTooLong
		}
	case Other:
	}
	return nil
}

func IsValidForPlatform(content string, hasImage bool, platformType string) bool {
	return Check(content, hasImage, platformType) == nil
}
