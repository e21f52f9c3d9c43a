package logging

import (
	"log/slog"
	"os"
)

// Open opens path for appending and returns a *slog.Logger writing through
// Handler at level. Callers are responsible for closing the returned file
// handle via the returned io.Closer-compatible *os.File if they need a
// clean shutdown; the process lifetime is the common case.
func Open(path string, level slog.Leveler) (*slog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(NewHandler(f, level)), f, nil
}
