package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrBadMetadata     = errors.New("bad metadata")
	ErrEmptyCorpus     = errors.New("no documents found in corpus")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrDetectorTimeout = errors.New("detector timed out")
	ErrUnknownAction   = errors.New("unknown action type")
)
