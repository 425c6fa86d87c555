package validation

import "errors"

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrInvalidFileType = errors.New("file is not a supported image")
)
