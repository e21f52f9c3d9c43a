package rerank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/rerank"
)

type stubEmbedder struct {
	dim int
}

func (s stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, s.dim)
		for j := 0; j < len(t) && j < s.dim; j++ {
			vec[j] = float32(t[j])
		}
		out[i] = vec
	}
	return out, nil
}

func (s stubEmbedder) Dimensions() int { return s.dim }

func TestTextRerankRanksOverlappingCandidateFirst(t *testing.T) {
	r := rerank.New(stubEmbedder{dim: 8})

	candidates := []rerank.Candidate{
		{Text: "golang concurrency patterns", Score: 0.5, Payload: "a"},
		{Text: "unrelated cooking recipe", Score: 0.5, Payload: "b"},
	}

	results, err := r.Rerank(context.Background(), "golang concurrency", candidates, models.RerankStrategyText)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].Payload)
	require.Greater(t, results[0].RerankScore, results[1].RerankScore)
}

func TestHybridRerankProducesBothComponents(t *testing.T) {
	r := rerank.New(stubEmbedder{dim: 8})

	candidates := []rerank.Candidate{
		{Text: "memory of a breakthrough", Score: 0.4, Payload: 1},
	}

	results, err := r.Rerank(context.Background(), "breakthrough moment", candidates, models.RerankStrategyHybrid)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].RerankDetails, "jaccard")
	require.Contains(t, results[0].RerankDetails, "cosine")
	require.GreaterOrEqual(t, results[0].RerankScore, 0.0)
	require.LessOrEqual(t, results[0].RerankScore, 1.0)
}
