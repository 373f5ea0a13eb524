package util

import "errors"

// Sentinel errors for the migration failure modes
var (
	// ErrNotFound indicates no legacy data exists. This is the normal
	// outcome on fresh installs.
	ErrNotFound = errors.New("not found")

	// ErrVersionUnavailable indicates the destination engine version could not be read
	ErrVersionUnavailable = errors.New("destination version unavailable")

	// ErrMalformedVersion indicates the version string has no numeric major component
	ErrMalformedVersion = errors.New("malformed destination version")

	// ErrLegacySourceUnreadable indicates the legacy database is missing or corrupt
	ErrLegacySourceUnreadable = errors.New("legacy source unreadable")

	// ErrTranscode indicates a row could not be decoded or written
	ErrTranscode = errors.New("transcode failed")

	// ErrMalformedValue indicates a legacy value blob is not valid UTF-16LE
	ErrMalformedValue = errors.New("malformed legacy value")

	// ErrRelocate indicates a directory could not be renamed into place
	ErrRelocate = errors.New("relocate failed")

	// ErrAlreadyAttempted indicates the migration guard was already consumed
	ErrAlreadyAttempted = errors.New("migration already attempted")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
