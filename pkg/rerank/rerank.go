// Package rerank implements the three reranking strategies search results
// can be passed through: text (Jaccard), embedding (cosine), and hybrid
// (mean of the two).
package rerank

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/memoryd/memoryd/pkg/llm"
	"github.com/memoryd/memoryd/pkg/models"
)

// Candidate is one item eligible for reranking: the text the strategies
// score against, the original relevance score, and arbitrary payload the
// caller round-trips through Result.
type Candidate struct {
	Text    string
	Score   float64
	Payload any
}

// Result is one reranked candidate with its score breakdown.
type Result struct {
	Payload       any
	RerankScore   float64
	RerankDetails map[string]float64
}

// Reranker computes rerank scores using an embedding provider for the
// embedding/hybrid strategies.
type Reranker struct {
	embedder llm.EmbeddingProvider
}

// New builds a Reranker bound to embedder (used by embedding/hybrid).
func New(embedder llm.EmbeddingProvider) *Reranker {
	return &Reranker{embedder: embedder}
}

// Rerank scores candidates against query using strategy, returning them
// stably sorted by descending rerank score (equal scores keep input order).
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []Candidate, strategy models.RerankStrategy) ([]Result, error) {
	var textScores, embedScores []float64
	var err error

	switch strategy {
	case models.RerankStrategyText:
		textScores = textRerank(query, candidates)
	case models.RerankStrategyEmbedding:
		embedScores, err = r.embeddingRerank(ctx, query, candidates)
		if err != nil {
			return nil, err
		}
	case models.RerankStrategyHybrid:
		textScores = textRerank(query, candidates)
		embedScores, err = r.embeddingRerank(ctx, query, candidates)
		if err != nil {
			return nil, err
		}
	default:
		textScores = textRerank(query, candidates)
		embedScores, err = r.embeddingRerank(ctx, query, candidates)
		if err != nil {
			return nil, err
		}
		strategy = models.RerankStrategyHybrid
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		details := map[string]float64{"original_score": c.Score}
		var score float64

		switch strategy {
		case models.RerankStrategyText:
			details["jaccard"] = textScores[i]
			score = textScores[i]
		case models.RerankStrategyEmbedding:
			details["cosine"] = embedScores[i]
			score = embedScores[i]
		case models.RerankStrategyHybrid:
			details["jaccard"] = textScores[i]
			details["cosine"] = embedScores[i]
			score = (textScores[i] + embedScores[i]) / 2
		}

		results[i] = Result{Payload: c.Payload, RerankScore: score, RerankDetails: details}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RerankScore > results[j].RerankScore
	})
	return results, nil
}

// textRerank blends Jaccard token overlap with the original score:
// 0.5*jaccard + 0.5*score.
func textRerank(query string, candidates []Candidate) []float64 {
	queryTokens := tokenize(query)
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		j := jaccard(queryTokens, tokenize(c.Text))
		out[i] = 0.5*j + 0.5*c.Score
	}
	return out
}

// embeddingRerank blends cosine similarity to the query embedding with
// the original score: 0.7*cosine + 0.3*score.
func (r *Reranker) embeddingRerank(ctx context.Context, query string, candidates []Candidate) ([]float64, error) {
	texts := make([]string, len(candidates)+1)
	texts[0] = query
	for i, c := range candidates {
		texts[i+1] = c.Text
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	queryVec := vectors[0]
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		cos := cosineSimilarity(queryVec, vectors[i+1])
		out[i] = 0.7*cos + 0.3*c.Score
	}
	return out, nil
}

func tokenize(s string) map[string]bool {
	tokens := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(s)) {
		tokens[word] = true
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if b[token] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
