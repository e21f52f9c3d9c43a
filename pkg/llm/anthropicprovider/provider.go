// Package anthropicprovider implements llm.ChatProvider against the
// Anthropic Messages API.
package anthropicprovider

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/memoryd/memoryd/pkg/llm"
)

// Provider wraps one configured Anthropic model.
type Provider struct {
	client anthropic.Client
	model  anthropic.Model
}

// New builds a Provider for the given model and API key.
func New(apiKey string, model string) *Provider {
	return &Provider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

var _ llm.ChatProvider = (*Provider)(nil)

func (p *Provider) Generate(ctx context.Context, prompt string) llm.ChatResult {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return llm.ChatResult{OK: false, Error: err.Error()}
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return llm.ChatResult{OK: true, Text: text}
}

func (p *Provider) TestConnection(ctx context.Context) llm.ConnectionStatus {
	result := p.Generate(ctx, "ping")
	if !result.OK {
		return llm.ConnectionStatus{OK: false, Error: result.Error}
	}
	return llm.ConnectionStatus{OK: true, Model: string(p.model)}
}
