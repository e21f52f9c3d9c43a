package pipeline

import "github.com/memoryd/memoryd/pkg/models"

// SaveReceipt is the unified result of Save, covering both the core-category
// path (Path A) and the advanced pipeline (Path B). Fields not produced by
// a given path are left at their zero value (SignificanceReason remains
// nil unless significance was actually evaluated).
type SaveReceipt struct {
	MemoryID              int64             `json:"memory_id"`
	MemoryType            models.MemoryType `json:"memory_type,omitempty"`
	KeptInRelational      bool              `json:"kept_in_relational"`
	InShortMemory         bool              `json:"in_short_memory"`
	StoredInVector         bool              `json:"stored_in_vector"`
	StoredInGraph          bool              `json:"stored_in_graph"`
	RelationshipsCreated  int               `json:"relationships_created"`
	SignificanceReason    *string           `json:"significance_reason,omitempty"`
}

// ForceRelationship is an explicit edge the caller wants created
// regardless of discovery, carried through save(..., force_relationships?).
type ForceRelationship struct {
	ToID string
	Type models.EdgeType
}

// MatchSource identifies which backend(s) a combined search hit came from.
type MatchSource string

const (
	MatchSourceRelational MatchSource = "relational"
	MatchSourceVector     MatchSource = "vector"
)

// CombinedResult is one deduplicated hit from search_intelligent, before
// optional reranking.
type CombinedResult struct {
	MemoryID       int64          `json:"memory_id"`
	RelevanceScore float64        `json:"relevance_score"`
	Sources        []MatchSource  `json:"sources"`
	Memory         *models.Memory `json:"memory,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	// GraphEnhanced is set only by search_with_graph for neighbor
	// entries synthesized from graph traversal.
	GraphEnhanced bool `json:"graph_enhanced,omitempty"`
}

// RerankedResult pairs a CombinedResult with its rerank score breakdown.
type RerankedResult struct {
	CombinedResult
	RerankScore   float64            `json:"rerank_score"`
	RerankDetails map[string]float64 `json:"rerank_details"`
}

// SearchResult is the unified response shape for search_intelligent and
// search_with_graph.
type SearchResult struct {
	Success          bool                    `json:"success"`
	Error            string                  `json:"error,omitempty"`
	SearchStrategy   models.SearchStrategy   `json:"search_strategy,omitempty"`
	RerankStrategy   *models.RerankStrategy  `json:"rerank_strategy,omitempty"`
	RelationalResults []models.Memory        `json:"relational_results,omitempty"`
	VectorResults     []models.VectorSearchResult `json:"vector_results,omitempty"`
	CombinedResults   []CombinedResult        `json:"combined_results,omitempty"`
	RerankedResults   []RerankedResult        `json:"reranked_results,omitempty"`
}

// UpdateOutcome is returned by Update/Move.
type UpdateOutcome struct {
	OK      bool   `json:"ok"`
	Warning string `json:"warning,omitempty"`
}
