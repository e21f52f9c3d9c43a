// Package localprovider implements llm.ChatProvider and
// llm.EmbeddingProvider against a locally-hosted Ollama-compatible
// server — the catch-all route for any model string that does not match
// a registered hosted-provider prefix.
package localprovider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/memoryd/memoryd/pkg/llm"
)

// localEmbeddingDimensions is the output width of the default local
// embedding model (nomic-embed-text).
const localEmbeddingDimensions = 768

// Provider implements both capability sets against one Ollama server.
type Provider struct {
	client *api.Client
	model  string
}

// New builds a Provider pointed at baseURL (e.g. http://localhost:11434)
// for the given model name.
func New(baseURL, model string) (*Provider, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse local provider url: %w", err)
	}
	return &Provider{client: api.NewClient(u, nil), model: model}, nil
}

var (
	_ llm.ChatProvider      = (*Provider)(nil)
	_ llm.EmbeddingProvider = (*Provider)(nil)
)

func (p *Provider) Generate(ctx context.Context, prompt string) llm.ChatResult {
	stream := false
	var text string

	err := p.client.Generate(ctx, &api.GenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: &stream,
	}, func(resp api.GenerateResponse) error {
		text += resp.Response
		return nil
	})
	if err != nil {
		return llm.ChatResult{OK: false, Error: err.Error()}
	}
	return llm.ChatResult{OK: true, Text: text}
}

func (p *Provider) TestConnection(ctx context.Context) llm.ConnectionStatus {
	if err := p.client.Heartbeat(ctx); err != nil {
		return llm.ConnectionStatus{OK: false, Error: err.Error()}
	}
	return llm.ConnectionStatus{OK: true, Model: p.model}
}

func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		resp, err := p.client.Embeddings(ctx, &api.EmbeddingRequest{
			Model:  p.model,
			Prompt: text,
		})
		if err != nil {
			return nil, fmt.Errorf("local embedding: %w", err)
		}
		vec := make([]float32, len(resp.Embedding))
		for j, f := range resp.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
}

func (p *Provider) Dimensions() int {
	return localEmbeddingDimensions
}
