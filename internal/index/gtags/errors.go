package gtags

import (
	"errors"

	"codenav/internal/core/indexer"
)

var (
	// ErrNoRoot means no project root could be derived for a path.
	ErrNoRoot = errors.New("no project root")
	// ErrCancelled means the user declined a confirmation.
	ErrCancelled = errors.New("cancelled")
)

// FilesystemError reports a database that is missing or could not be
// read, written or deleted.
type FilesystemError = indexer.FilesystemError
