// Package openaiprovider implements llm.ChatProvider and
// llm.EmbeddingProvider against the OpenAI API via go-openai.
package openaiprovider

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/memoryd/memoryd/pkg/llm"
)

// dimensionsTextEmbedding3Small is the fixed output width of OpenAI's
// text-embedding-3-small model, the default embedding model here.
const dimensionsTextEmbedding3Small = 1536

// ChatProvider wraps one configured OpenAI chat model.
type ChatProvider struct {
	client *openai.Client
	model  string
}

// NewChat builds a ChatProvider for the given model and API key.
func NewChat(apiKey, model string) *ChatProvider {
	return &ChatProvider{client: openai.NewClient(apiKey), model: model}
}

var _ llm.ChatProvider = (*ChatProvider)(nil)

func (p *ChatProvider) Generate(ctx context.Context, prompt string) llm.ChatResult {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return llm.ChatResult{OK: false, Error: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResult{OK: false, Error: "empty response from openai"}
	}
	return llm.ChatResult{OK: true, Text: resp.Choices[0].Message.Content}
}

func (p *ChatProvider) TestConnection(ctx context.Context) llm.ConnectionStatus {
	result := p.Generate(ctx, "ping")
	if !result.OK {
		return llm.ConnectionStatus{OK: false, Error: result.Error}
	}
	return llm.ConnectionStatus{OK: true, Model: p.model}
}

// EmbeddingProvider wraps OpenAI's embeddings endpoint.
type EmbeddingProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewEmbedding builds an EmbeddingProvider using text-embedding-3-small.
func NewEmbedding(apiKey string) *EmbeddingProvider {
	return &EmbeddingProvider{
		client: openai.NewClient(apiKey),
		model:  openai.SmallEmbedding3,
	}
}

var _ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)

func (p *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (p *EmbeddingProvider) Dimensions() int {
	return dimensionsTextEmbedding3Small
}
