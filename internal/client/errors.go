package client

import "github.com/pkg/errors"

// Engine failures are classified into three buckets the dispatcher matches
// on with errors.Is.
var (
	// ErrNotFound means the referenced torrent no longer exists.
	ErrNotFound = errors.New("torrent not found")

	// ErrUnavailable means the engine is unreachable or refused the call.
	ErrUnavailable = errors.New("engine unavailable")

	// ErrRejected means the engine refused the operation for the current
	// state, e.g. an invalid magnet link or corrupt metainfo.
	ErrRejected = errors.New("operation rejected")
)
