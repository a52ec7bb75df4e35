package apperr

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidArchive       = errors.New("invalid archive")
	ErrUnsupportedExtension = errors.New("unsupported extension")
)
