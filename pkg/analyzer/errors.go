package analyzer

import "errors"

// ErrMalformedResponse is returned when the LLM's JSON could not be
// parsed even after the stricter reformat retry.
var ErrMalformedResponse = errors.New("analyzer: malformed llm response")
