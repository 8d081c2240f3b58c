package storage

import "errors"

// Sentinel errors for the storage package. Using sentinels instead of ad-hoc
// fmt.Errorf allows callers to match with errors.Is for reliable error handling.
var (
	// ErrSessionNotFound is returned when no project directory holds the session's transcript.
	ErrSessionNotFound = errors.New("session transcript not found")

	// ErrInvalidSessionID is returned for ids that cannot name a transcript file.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrProjectsDirMissing is returned when the projects directory does not exist.
	ErrProjectsDirMissing = errors.New("projects directory missing")
)
