// Package pipeline is the memory pipeline core (C7): the orchestration
// layer that routes a saved memory across the relational, vector, and
// graph backends and answers the unified search operations. It never
// propagates raw backend errors — every public operation returns a
// structured result, degrading the affected store's contribution instead.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/memoryd/memoryd/pkg/analyzer"
	"github.com/memoryd/memoryd/pkg/graphstore"
	"github.com/memoryd/memoryd/pkg/llm"
	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/relational"
	"github.com/memoryd/memoryd/pkg/rerank"
	"github.com/memoryd/memoryd/pkg/vectorstore"
)

// Config holds pipeline-wide tunables.
type Config struct {
	ShortMemoryCapacity int
	StoreTimeout        time.Duration
}

// Pipeline wires the three backend adapters together with the analyzer
// and reranker to implement save/search/update/graph operations.
//
// The vector and graph adapters are optional: either may be nil, in which
// case the pipeline degrades per the BackendUnavailable policy rather than
// failing the call.
type Pipeline struct {
	relational relational.Store
	vector     *vectorstore.Store
	graph      *graphstore.Store
	analyzer   *analyzer.Analyzer
	reranker   *rerank.Reranker
	embedder   llm.EmbeddingProvider
	cfg        Config
	logger     *slog.Logger
}

// New builds a Pipeline. vector and graph may be nil.
func New(store relational.Store, vector *vectorstore.Store, graph *graphstore.Store, an *analyzer.Analyzer, rr *rerank.Reranker, embedder llm.EmbeddingProvider, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		relational: store,
		vector:     vector,
		graph:      graph,
		analyzer:   an,
		reranker:   rr,
		embedder:   embedder,
		cfg:        cfg,
		logger:     logger,
	}
}

// Save implements save(category, topic, content, force_relationships?).
func (p *Pipeline) Save(ctx context.Context, category, topic, content string, forceRelationships []ForceRelationship) (*SaveReceipt, error) {
	if strings.TrimSpace(content) == "" {
		return nil, NewValidationError("content", "must not be empty")
	}

	if category == models.CategoryCore {
		return p.savePathA(ctx, category, topic, content, forceRelationships)
	}
	return p.savePathB(ctx, category, topic, content, forceRelationships)
}

// savePathA is the reserved core_memories path: always kept relationally,
// enrichment is best-effort.
func (p *Pipeline) savePathA(ctx context.Context, category, topic, content string, forceRelationships []ForceRelationship) (*SaveReceipt, error) {
	saved, err := p.relational.SaveMemory(ctx, category, topic, content)
	if err != nil {
		return nil, fmt.Errorf("save_memory: %w", err)
	}
	memory := models.Memory{ID: saved.ID, Category: category, Topic: topic, Content: content, Date: saved.Date, CreatedAt: saved.CreatedAt}

	if err := p.relational.AddToShortMemory(ctx, p.cfg.ShortMemoryCapacity, memory); err != nil {
		p.logger.Warn("short memory add failed", "component", "pipeline", "error", err)
	}

	receipt := &SaveReceipt{MemoryID: saved.ID, KeptInRelational: true}

	concepts, storedVector := p.enrichBestEffort(ctx, memory, receipt)
	if storedVector || p.graph != nil {
		relationships := p.graphEnrichBestEffort(ctx, memory, concepts, forceRelationships, receipt)
		receipt.RelationshipsCreated = relationships
	}

	return receipt, nil
}

// enrichBestEffort runs classify_and_extract + vector store_concepts,
// never failing the surrounding save. Returns the concepts (for graph
// relationship discovery) and whether the vector write happened.
func (p *Pipeline) enrichBestEffort(ctx context.Context, memory models.Memory, receipt *SaveReceipt) ([]models.Concept, bool) {
	if p.analyzer == nil {
		return nil, false
	}
	memType, concepts, err := p.analyzer.ClassifyAndExtract(ctx, memory)
	if err != nil {
		p.logger.Warn("classify_and_extract failed", "component", "pipeline", "error", err)
		return nil, false
	}
	receipt.MemoryType = memType

	if p.vector == nil {
		return concepts, false
	}
	stored, _, err := p.vector.StoreConcepts(ctx, memory, concepts)
	if err != nil {
		p.logger.Warn("store_concepts failed", "component", "pipeline", "error", err)
		return concepts, false
	}
	receipt.StoredInVector = stored > 0
	return concepts, stored > 0
}

// graphEnrichBestEffort upserts the node and discovers relationships,
// returning the number of edges created. Never fails the surrounding save.
func (p *Pipeline) graphEnrichBestEffort(ctx context.Context, memory models.Memory, concepts []models.Concept, forced []ForceRelationship, receipt *SaveReceipt) int {
	if p.graph == nil {
		return 0
	}

	node := models.GraphNode{
		ID:          strconv.FormatInt(memory.ID, 10),
		Category:    memory.Category,
		Topic:       memory.Topic,
		ContentHead: headOf(memory.Content, 200),
		Concepts:    joinConceptTitles(concepts),
		CreatedAt:   memory.CreatedAt,
	}
	if err := p.graph.UpsertNode(ctx, node); err != nil {
		p.logger.Warn("upsert_node failed", "component", "pipeline", "error", err)
		return 0
	}
	receipt.StoredInGraph = true

	return p.discoverRelationships(ctx, memory, concepts, forced)
}

// discoverRelationships implements relationship discovery: find
// candidates, score affinity, emit typed edges, capped at 10.
func (p *Pipeline) discoverRelationships(ctx context.Context, memory models.Memory, concepts []models.Concept, forced []ForceRelationship) int {
	selfID := strconv.FormatInt(memory.ID, 10)
	created := 0

	for _, f := range forced {
		if created >= 10 {
			break
		}
		if err := p.graph.CreateEdge(ctx, models.GraphEdge{FromID: selfID, ToID: f.ToID, Type: f.Type, Strength: 1.0}); err != nil {
			p.logger.Warn("create_edge (forced) failed", "component", "pipeline", "error", err)
			continue
		}
		created++
	}

	if created >= 10 {
		return created
	}

	searchText := joinConceptSearchTerms(concepts, memory.Topic)
	candidates, err := p.graph.FindCandidatesByContent(ctx, searchText, 10)
	if err != nil {
		p.logger.Warn("find_candidates_by_content failed", "component", "pipeline", "error", err)
		return created
	}

	for _, cand := range candidates {
		if created >= 10 {
			break
		}
		candID := strconv.FormatInt(cand.MemoryID, 10)
		if candID == selfID {
			continue
		}

		candMemory, err := p.relational.GetByID(ctx, cand.MemoryID)
		if err != nil || candMemory == nil {
			continue
		}

		sameCategory := candMemory.Category == memory.Category
		overlap := conceptOverlapRatio(concepts, candMemory)
		temporal := temporalProximity(memory.CreatedAt, candMemory.CreatedAt)
		affinity := 0.5*boolScore(sameCategory) + 0.3*overlap + 0.2*temporal

		var edgeType models.EdgeType
		var strength float64
		switch {
		case sameCategory:
			edgeType, strength = models.EdgeSameCategory, affinity
		case overlap >= 0.3:
			edgeType, strength = models.EdgeConceptSimilar, affinity
		case affinity >= 0.4:
			edgeType, strength = models.EdgeRelatedTo, affinity
		default:
			continue
		}

		if err := p.graph.CreateEdge(ctx, models.GraphEdge{FromID: selfID, ToID: candID, Type: edgeType, Strength: strength}); err != nil {
			p.logger.Warn("create_edge failed", "component", "pipeline", "error", err)
			continue
		}
		created++
	}

	return created
}

// savePathB is the advanced pipeline for non-core categories: six phases
// ending in a routing decision keyed on the classified memory type.
func (p *Pipeline) savePathB(ctx context.Context, category, topic, content string, forceRelationships []ForceRelationship) (*SaveReceipt, error) {
	// Phase 1: provisional write.
	saved, err := p.relational.SaveMemory(ctx, category, topic, content)
	if err != nil {
		return nil, fmt.Errorf("save_memory: %w", err)
	}
	memory := models.Memory{ID: saved.ID, Category: category, Topic: topic, Content: content, Date: saved.Date, CreatedAt: saved.CreatedAt}

	// Phase 2: analyze.
	memType, concepts, err := p.classifyWithDefault(ctx, topic, content, &memory)

	receipt := &SaveReceipt{MemoryID: memory.ID, MemoryType: memType}

	// Phase 3: vector enrich.
	if p.vector != nil {
		stored, _, verr := p.vector.StoreConcepts(ctx, memory, concepts)
		if verr != nil {
			p.logger.Warn("store_concepts failed", "component", "pipeline", "error", verr)
		}
		receipt.StoredInVector = stored > 0
	}

	// Phase 4: route by type.
	keep, inShortMemory, sigReason, rerr := p.routeByType(ctx, memory, memType)
	if rerr != nil {
		p.logger.Warn("routing decision error", "component", "pipeline", "error", rerr)
	}
	receipt.KeptInRelational = keep
	receipt.InShortMemory = inShortMemory
	receipt.SignificanceReason = sigReason

	finalID := memory.ID
	if !keep {
		finalID = 0
	}
	receipt.MemoryID = finalID
	memory.ID = finalID

	// Phase 5: graph.
	if p.graph != nil {
		receipt.RelationshipsCreated = p.graphEnrichBestEffort(ctx, memory, concepts, forceRelationships, receipt)
	}

	_ = err // analyzer error already folded into the safe-default path
	return receipt, nil
}

// classifyWithDefault runs the analyzer and falls back to a factual
// default concept when classification fails, per the analyzer's contract.
func (p *Pipeline) classifyWithDefault(ctx context.Context, topic, content string, memory *models.Memory) (models.MemoryType, []models.Concept, error) {
	if p.analyzer == nil {
		return models.MemoryTypeFactual, []models.Concept{analyzer.DefaultConcept(topic, content)}, nil
	}
	memType, concepts, err := p.analyzer.ClassifyAndExtract(ctx, *memory)
	if err != nil {
		return models.MemoryTypeFactual, []models.Concept{analyzer.DefaultConcept(topic, content)}, err
	}
	return memType, concepts, nil
}

// routeByType applies the type-based routing rules, physically discarding
// the provisional relational row when the type demands it.
func (p *Pipeline) routeByType(ctx context.Context, memory models.Memory, memType models.MemoryType) (keep, inShortMemory bool, sigReason *string, err error) {
	if memType.DiscardFromRelational() {
		if _, derr := p.relational.Delete(ctx, memory.ID); derr != nil {
			return false, false, nil, fmt.Errorf("discard row: %w", derr)
		}
		return false, false, nil, nil
	}

	if !memType.SignificanceGated() {
		// Not in the documented significance-gated set and not
		// discard-always: keep conservatively.
		return true, false, nil, nil
	}

	if p.analyzer == nil {
		return true, false, nil, nil
	}

	significant, reason, serr := p.analyzer.EvaluateSignificance(ctx, memory, memType)
	if serr != nil {
		// Significance evaluation failed: keep conservatively rather
		// than silently discarding user content.
		p.logger.Warn("evaluate_significance failed", "component", "pipeline", "error", serr)
		return true, false, nil, nil
	}

	if significant {
		return true, false, &reason, nil
	}

	if _, derr := p.relational.Delete(ctx, memory.ID); derr != nil {
		return false, false, &reason, fmt.Errorf("discard row: %w", derr)
	}
	if aerr := p.relational.AddToShortMemory(ctx, p.cfg.ShortMemoryCapacity, memory); aerr != nil {
		p.logger.Warn("short memory add failed", "component", "pipeline", "error", aerr)
		return false, false, &reason, nil
	}
	return false, true, &reason, nil
}

// Update touches only the relational store.
func (p *Pipeline) Update(ctx context.Context, id int64, fields relational.UpdateFields) (*UpdateOutcome, error) {
	ok, err := p.relational.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	return &UpdateOutcome{OK: ok, Warning: "vector/graph not synchronized"}, nil
}

// Move touches only the relational store.
func (p *Pipeline) Move(ctx context.Context, id int64, newCategory string) (*UpdateOutcome, error) {
	ok, err := p.relational.Move(ctx, id, newCategory)
	if err != nil {
		return nil, err
	}
	return &UpdateOutcome{OK: ok, Warning: "vector/graph not synchronized"}, nil
}

// GraphContext passes through to the graph store with depth validation.
func (p *Pipeline) GraphContext(ctx context.Context, id int64, depth int, edgeTypes []models.EdgeType) (*models.GraphNeighborhood, error) {
	if depth < 1 || depth > 4 {
		return nil, ErrDepthOutOfRange
	}
	if p.graph == nil {
		return nil, graphstore.ErrUnavailable
	}
	return p.graph.FindRelated(ctx, strconv.FormatInt(id, 10), depth, edgeTypes)
}

// GraphStats passes through to the graph store.
func (p *Pipeline) GraphStats(ctx context.Context) (*models.GraphStatistics, error) {
	if p.graph == nil {
		return nil, graphstore.ErrUnavailable
	}
	return p.graph.Statistics(ctx)
}

func headOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func joinConceptTitles(concepts []models.Concept) string {
	titles := make([]string, len(concepts))
	for i, c := range concepts {
		titles[i] = c.Title
	}
	return strings.Join(titles, ", ")
}

func joinConceptSearchTerms(concepts []models.Concept, topic string) string {
	terms := []string{topic}
	for _, c := range concepts {
		terms = append(terms, c.Title)
		terms = append(terms, c.Keywords...)
	}
	return strings.Join(terms, " ")
}

func conceptOverlapRatio(concepts []models.Concept, candidate *models.Memory) float64 {
	if len(concepts) == 0 {
		return 0
	}
	candidateTokens := tokenSet(candidate.Topic + " " + candidate.Content)
	matches := 0
	total := 0
	for _, c := range concepts {
		for _, kw := range append([]string{c.Title}, c.Keywords...) {
			total++
			if candidateTokens[strings.ToLower(kw)] {
				matches++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matches) / float64(total)
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}

func temporalProximity(a, b time.Time) float64 {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	const horizon = 30 * 24 * time.Hour
	if delta >= horizon {
		return 0
	}
	return 1 - float64(delta)/float64(horizon)
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
