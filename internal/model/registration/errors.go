package registration

import "errors"

var (
	// ErrExtractionTimeout means the language model missed its deadline.
	ErrExtractionTimeout = errors.New("extraction timed out")
	// ErrExtractionProviderError means the language model returned an error or unusable output.
	ErrExtractionProviderError = errors.New("extraction provider error")
	// ErrSessionExpired marks a session that was reset because it expired or was purged.
	ErrSessionExpired = errors.New("session expired")
	// ErrPersistenceUnavailable means the farmer record could not be written; callers may retry.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrSessionIDRequired rejects requests without a session id.
	ErrSessionIDRequired = errors.New("session id is required")
	// ErrNotConfirming rejects completion outside the confirmation state.
	ErrNotConfirming = errors.New("session is not awaiting confirmation")
)
