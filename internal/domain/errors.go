package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrPayloadMissing       = errors.New("submission payload missing")
	ErrIncompleteSubmission = errors.New("submission payload incomplete")
	ErrNotCancellable       = errors.New("submission is not cancellable")
	ErrProviderFailure      = errors.New("provider failure")
	ErrNoAudioProduced      = errors.New("no audio produced")
	ErrPersistenceFailed    = errors.New("persistence failed")
)
