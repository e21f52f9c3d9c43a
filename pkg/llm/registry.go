package llm

import "strings"

// Registry resolves a model string to the provider that should serve it.
// Selection is by prefix/equality, a small tagged union rather than a
// generic factory: chat models starting with a known family name route to
// that family's provider; the literal "openai" routes embeddings to
// OpenAI; everything else falls back to the local provider.
type Registry struct {
	chatProviders      map[string]ChatProvider
	embeddingProviders map[string]EmbeddingProvider
	localChat          ChatProvider
	localEmbedding     EmbeddingProvider
}

// NewRegistry builds an empty registry; call RegisterChat/RegisterEmbedding
// to wire concrete providers, then SetLocal to install the fallback.
func NewRegistry() *Registry {
	return &Registry{
		chatProviders:      map[string]ChatProvider{},
		embeddingProviders: map[string]EmbeddingProvider{},
	}
}

// RegisterChat associates a model-name prefix (e.g. "claude") with a
// concrete chat provider.
func (r *Registry) RegisterChat(prefix string, p ChatProvider) {
	r.chatProviders[prefix] = p
}

// RegisterEmbedding associates a model name (e.g. "openai") with a
// concrete embedding provider.
func (r *Registry) RegisterEmbedding(name string, p EmbeddingProvider) {
	r.embeddingProviders[name] = p
}

// SetLocal installs the fallback providers used when no registered prefix
// matches the configured model string.
func (r *Registry) SetLocal(chat ChatProvider, embedding EmbeddingProvider) {
	r.localChat = chat
	r.localEmbedding = embedding
}

// Chat resolves model to a ChatProvider by longest matching prefix.
func (r *Registry) Chat(model string) ChatProvider {
	if p, ok := r.chatProviders[model]; ok {
		return p
	}
	var best ChatProvider
	bestLen := 0
	for prefix, p := range r.chatProviders {
		if prefix != "" && len(prefix) > bestLen && strings.HasPrefix(model, prefix) {
			best, bestLen = p, len(prefix)
		}
	}
	if best != nil {
		return best
	}
	return r.localChat
}

// Embedding resolves model to an EmbeddingProvider. "openai" (exact
// match) always selects the OpenAI provider; anything else falls back to
// local.
func (r *Registry) Embedding(model string) EmbeddingProvider {
	if p, ok := r.embeddingProviders[model]; ok {
		return p
	}
	return r.localEmbedding
}
