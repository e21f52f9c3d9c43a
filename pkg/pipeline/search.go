package pipeline

import (
	"context"
	"math"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/rerank"
)

// SearchIntelligent implements search_intelligent: relational and vector
// search run concurrently, results are deduplicated by memory id, and an
// adaptive strategy is recorded in the response depending on which
// backend actually produced hits.
func (p *Pipeline) SearchIntelligent(ctx context.Context, query string, categories []string, doRerank bool, strategy *models.RerankStrategy) (*SearchResult, error) {
	var relResults []models.Memory
	var vecResults []models.VectorSearchResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := p.relational.SearchBasic(gctx, query, categories)
		if err != nil {
			p.logger.Warn("search_basic failed", "component", "pipeline", "error", err)
			return nil
		}
		relResults = res
		return nil
	})
	g.Go(func() error {
		if p.vector == nil {
			return nil
		}
		res, err := p.vector.SearchSimilar(gctx, query, 20, categories)
		if err != nil {
			p.logger.Warn("search_similar failed", "component", "pipeline", "error", err)
			return nil
		}
		vecResults = res
		return nil
	})
	_ = g.Wait()

	searchStrategy := models.SearchStrategyHybrid
	switch {
	case len(relResults) == 0 && len(vecResults) > 0:
		searchStrategy = models.SearchStrategyVectorOnly
	case len(relResults) > 0 && len(vecResults) == 0:
		searchStrategy = models.SearchStrategyRelationalOnly
	}

	combined := combineResults(relResults, vecResults)

	result := &SearchResult{
		Success:           true,
		SearchStrategy:    searchStrategy,
		RelationalResults: relResults,
		VectorResults:     vecResults,
		CombinedResults:   combined,
	}

	if !doRerank || len(combined) == 0 {
		return result, nil
	}

	rs := models.RerankStrategyHybrid
	if strategy != nil {
		rs = *strategy
	}
	result.RerankStrategy = &rs

	reranked, err := p.rerankCombined(ctx, query, combined, rs)
	if err != nil {
		p.logger.Warn("rerank failed, returning unranked combined results", "component", "pipeline", "error", err)
		return result, nil
	}
	result.RerankedResults = reranked
	return result, nil
}

// SearchWithGraph runs search_intelligent (unranked) and expands the top
// five hits up to maxDepth hops (clamped to [1,4]) via the graph store,
// giving each discovered neighbor the parent's score times 0.7^maxDepth.
// Capped at 50 total results.
func (p *Pipeline) SearchWithGraph(ctx context.Context, query string, categories []string, includeRelated bool, maxDepth int) (*SearchResult, error) {
	base, err := p.SearchIntelligent(ctx, query, categories, false, nil)
	if err != nil {
		return nil, err
	}
	if !includeRelated || p.graph == nil || len(base.CombinedResults) == 0 {
		return base, nil
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxDepth > 4 {
		maxDepth = 4
	}

	seedCount := 5
	if seedCount > len(base.CombinedResults) {
		seedCount = len(base.CombinedResults)
	}
	seeds := base.CombinedResults[:seedCount]

	type expansion struct {
		parentScore float64
		neighborhood *models.GraphNeighborhood
	}
	expansions := make([]expansion, seedCount)

	g, gctx := errgroup.WithContext(ctx)
	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			n, err := p.graph.FindRelated(gctx, strconv.FormatInt(seed.MemoryID, 10), maxDepth, nil)
			if err != nil {
				p.logger.Warn("find_related failed", "component", "pipeline", "error", err)
				return nil
			}
			expansions[i] = expansion{parentScore: seed.RelevanceScore, neighborhood: n}
			return nil
		})
	}
	_ = g.Wait()

	seen := map[int64]bool{}
	for _, c := range base.CombinedResults {
		seen[c.MemoryID] = true
	}

	for _, exp := range expansions {
		if exp.neighborhood == nil {
			continue
		}
		for _, node := range exp.neighborhood.Nodes {
			id, err := strconv.ParseInt(node.ID, 10, 64)
			if err != nil || id == 0 || seen[id] {
				continue
			}
			seen[id] = true

			memory, err := p.relational.GetByID(ctx, id)
			if err != nil || memory == nil {
				continue
			}

			base.CombinedResults = append(base.CombinedResults, CombinedResult{
				MemoryID:       id,
				RelevanceScore: exp.parentScore * math.Pow(0.7, float64(maxDepth)),
				Sources:        []MatchSource{MatchSourceRelational},
				Memory:         memory,
				GraphEnhanced:  true,
			})
			if len(base.CombinedResults) >= 50 {
				break
			}
		}
		if len(base.CombinedResults) >= 50 {
			break
		}
	}

	sort.SliceStable(base.CombinedResults, func(i, j int) bool {
		return base.CombinedResults[i].RelevanceScore > base.CombinedResults[j].RelevanceScore
	})
	if len(base.CombinedResults) > 50 {
		base.CombinedResults = base.CombinedResults[:50]
	}

	return base, nil
}

func (p *Pipeline) rerankCombined(ctx context.Context, query string, combined []CombinedResult, strategy models.RerankStrategy) ([]RerankedResult, error) {
	candidates := make([]rerank.Candidate, len(combined))
	for i, c := range combined {
		text := ""
		if c.Memory != nil {
			text = c.Memory.Topic + " " + c.Memory.Content
		}
		candidates[i] = rerank.Candidate{Text: text, Score: c.RelevanceScore, Payload: i}
	}

	results, err := p.reranker.Rerank(ctx, query, candidates, strategy)
	if err != nil {
		return nil, err
	}

	out := make([]RerankedResult, len(results))
	for i, r := range results {
		idx := r.Payload.(int)
		out[i] = RerankedResult{CombinedResult: combined[idx], RerankScore: r.RerankScore, RerankDetails: r.RerankDetails}
	}
	return out, nil
}

// combineResults merges relational and vector hits by memory id. A
// relational-only hit scores 0.5; a memory present in both sources keeps
// the higher-scoring source rather than averaging the two.
func combineResults(relational []models.Memory, vector []models.VectorSearchResult) []CombinedResult {
	byID := map[int64]*CombinedResult{}
	var order []int64

	for _, m := range relational {
		m := m
		byID[m.ID] = &CombinedResult{MemoryID: m.ID, RelevanceScore: 0.5, Sources: []MatchSource{MatchSourceRelational}, Memory: &m}
		order = append(order, m.ID)
	}

	for _, v := range vector {
		if existing, ok := byID[v.MemoryID]; ok {
			existing.RelevanceScore = math.Max(existing.RelevanceScore, v.Score)
			existing.Sources = append(existing.Sources, MatchSourceVector)
			existing.Metadata = v.Metadata
			continue
		}
		byID[v.MemoryID] = &CombinedResult{MemoryID: v.MemoryID, RelevanceScore: v.Score, Sources: []MatchSource{MatchSourceVector}, Metadata: v.Metadata}
		order = append(order, v.MemoryID)
	}

	out := make([]CombinedResult, len(order))
	for i, id := range order {
		out[i] = *byID[id]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return out
}
