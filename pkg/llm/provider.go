// Package llm defines the chat/embedding provider contracts and the
// prefix-routed registry that selects between them. The three concrete
// providers live in the anthropicprovider, openaiprovider and localprovider
// subpackages and are registered by the caller.
package llm

import "context"

// ChatResult is the outcome of one chat generation call.
type ChatResult struct {
	Text string
	OK   bool
	// Error is set whenever OK is false; the pipeline never treats this
	// as a Go error, only as a degrade signal.
	Error string
}

// ConnectionStatus is the result of a connectivity probe.
type ConnectionStatus struct {
	OK    bool
	Model string
	Error string
}

// ChatProvider generates text completions. Deterministic where the
// provider allows (e.g. temperature=0).
type ChatProvider interface {
	Generate(ctx context.Context, prompt string) ChatResult
	TestConnection(ctx context.Context) ConnectionStatus
}

// EmbeddingProvider turns text into fixed-dimension vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
