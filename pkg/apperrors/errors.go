package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrSourceNotFound   = errors.New("source not found")
	ErrRevisionNotFound = errors.New("revision not found")
	ErrDiffNotFound     = errors.New("change diff not found")
	ErrSourceDisabled   = errors.New("source is disabled")
	ErrScanInProgress   = errors.New("scan already in progress for source")
)
