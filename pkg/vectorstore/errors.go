package vectorstore

import "errors"

var (
	// ErrUnavailable wraps Qdrant connection/transport failures.
	ErrUnavailable = errors.New("vector store unavailable")
)
