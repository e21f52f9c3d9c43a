package graphstore

import "errors"

// ErrUnavailable wraps Neo4j connection/transport failures.
var ErrUnavailable = errors.New("graph store unavailable")
