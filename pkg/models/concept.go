package models

import "time"

// Concept is the analyzer's per-memory extraction.
type Concept struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	MemoryType         MemoryType `json:"memory_type"`
	Confidence         float64    `json:"confidence"`
	Mood               string     `json:"mood"`
	Keywords           []string   `json:"keywords"`
	ExtractedConcepts  []string   `json:"extracted_concepts"`
}

// VectorRecord is one row written to the vector store.
type VectorRecord struct {
	DocID     string
	Document  string
	Embedding []float32
	Metadata  map[string]any
}

// VectorMetadata is the flattened-Concept-plus-back-references metadata
// shape marshaled into VectorRecord.Metadata.
type VectorMetadata struct {
	Title             string   `json:"title"`
	MemoryType        string   `json:"memory_type"`
	Confidence        float64  `json:"confidence"`
	Mood              string   `json:"mood"`
	Keywords          []string `json:"keywords"`
	ExtractedConcepts []string `json:"extracted_concepts"`

	SourceMemoryID int64     `json:"source_memory_id"`
	SourceCategory string    `json:"source_category"`
	SourceTopic    string    `json:"source_topic"`
	SourceDate     time.Time `json:"source_date"`
	CreatedAt      time.Time `json:"created_at"`
	Source         string    `json:"source"` // always "semantic_analysis"
}

// VectorSearchResult is one hit returned by search_similar.
type VectorSearchResult struct {
	MemoryID int64
	Score    float64
	Metadata map[string]any
}

// GraphNode is one node per saved memory.
type GraphNode struct {
	ID          string
	Category    string
	Topic       string
	ContentHead string
	Concepts    string
	CreatedAt   time.Time
}

// GraphEdge connects two GraphNodes with a typed label and optional strength.
type GraphEdge struct {
	FromID   string
	ToID     string
	Type     EdgeType
	Strength float64
}

// GraphNeighborhood is the result of a bounded BFS traversal.
type GraphNeighborhood struct {
	Nodes []GraphNode
	Edges []GraphEdge
}

// GraphCandidate is a content-similarity hit from find_candidates_by_content.
type GraphCandidate struct {
	MemoryID int64
	Score    float64
}

// GraphStatistics summarizes the graph store.
type GraphStatistics struct {
	TotalNodes     int            `json:"total_nodes"`
	TotalEdges     int            `json:"total_edges"`
	EdgeTypeCounts map[string]int `json:"edge_type_counts"`
}
