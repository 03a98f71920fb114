package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrUnsupportedAsset  = errors.New("unsupported asset")
	ErrNoArtifacts       = errors.New("no artifacts found")
	ErrProviderFailure   = errors.New("provider failure")
)
