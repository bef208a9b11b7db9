package utils

import "errors"

var (
	ErrEmptySlug         = errors.New("slug cannot be empty")
	ErrSlugTooLong       = errors.New("slug exceeds maximum length")
	ErrSlugInvalidFormat = errors.New("slug must contain only letters, numbers, hyphens and underscores")
	ErrEmptyURL          = errors.New("URL cannot be empty")
	ErrInvalidURL        = errors.New("invalid URL format")
	ErrInvalidScheme     = errors.New("URL scheme must be http or https")
	ErrEmptyHost         = errors.New("URL host cannot be empty")
)
