// Package vectorstore is the semantic-similarity adapter (C2), backed by
// Qdrant. Collections hold one point per extracted concept; each point's
// payload carries source_memory_id, and best-effort purge on memory
// deletion is a payload filter on that field.
package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/memoryd/memoryd/pkg/llm"
	"github.com/memoryd/memoryd/pkg/models"
)

// Config holds the Qdrant connection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Store is the Qdrant-backed implementation of the vector adapter contract.
type Store struct {
	client     *qdrant.Client
	embedder   llm.EmbeddingProvider
	collection string
}

// New dials Qdrant and wraps it with the embedding provider used to turn
// concept descriptions into vectors.
func New(cfg Config, embedder llm.EmbeddingProvider) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Store{client: client, embedder: embedder, collection: cfg.Collection}, nil
}

// Initialize ensures the configured collection exists, sized to the
// embedder's dimensionality. Idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists {
		return nil
	}

	dim := s.embedder.Dimensions()
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig:  qdrant.NewVectorsConfig(uint64(dim)),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// StoreConcepts computes an embedding for each concept with a non-empty
// description and writes it as one point. Concepts with an empty
// description are dropped silently and counted as skipped, not errors.
func (s *Store) StoreConcepts(ctx context.Context, m models.Memory, concepts []models.Concept) (stored int, skipped []string, err error) {
	var docs []string
	var kept []models.Concept
	for _, k := range concepts {
		if strings.TrimSpace(k.Description) == "" {
			skipped = append(skipped, k.Title)
			continue
		}
		docs = append(docs, k.Description)
		kept = append(kept, k)
	}
	if len(docs) == 0 {
		return 0, skipped, nil
	}

	vectors, embedErr := s.embedder.Embed(ctx, docs)
	if embedErr != nil {
		return 0, skipped, fmt.Errorf("embed concepts: %w", embedErr)
	}

	now := time.Now().UTC()
	points := make([]*qdrant.PointStruct, 0, len(kept))
	for i, k := range kept {
		docID := fmt.Sprintf("memory_%d_concept_%d_%d", m.ID, i, now.UnixNano())
		meta := models.VectorMetadata{
			Title:             k.Title,
			MemoryType:        string(k.MemoryType),
			Confidence:        k.Confidence,
			Mood:              k.Mood,
			Keywords:          k.Keywords,
			ExtractedConcepts: k.ExtractedConcepts,
			SourceMemoryID:    m.ID,
			SourceCategory:    m.Category,
			SourceTopic:       m.Topic,
			SourceDate:        m.Date,
			CreatedAt:         now,
			Source:            "semantic_analysis",
		}

		payload, perr := qdrant.NewValueMap(metadataToMap(meta, k.Description))
		if perr != nil {
			return stored, skipped, fmt.Errorf("%w: %v", ErrUnavailable, perr)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(docID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		})
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return 0, skipped, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return len(points), skipped, nil
}

// SearchSimilar returns the top-k vector hits for query, optionally
// post-filtered by category.
func (s *Store) SearchSimilar(ctx context.Context, query string, topK int, categoryFilter []string) ([]models.VectorSearchResult, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := uint64(topK)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	allowed := map[string]bool{}
	for _, c := range categoryFilter {
		allowed[c] = true
	}

	var out []models.VectorSearchResult
	for _, pt := range resp {
		fields := pt.GetPayload()
		meta := valueMapToMap(fields)

		if len(allowed) > 0 {
			cat, _ := meta["source_category"].(string)
			if !allowed[cat] {
				continue
			}
		}

		memID, _ := meta["source_memory_id"].(float64)
		out = append(out, models.VectorSearchResult{
			MemoryID: int64(memID),
			Score:    float64(pt.GetScore()),
			Metadata: meta,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].MemoryID > out[j].MemoryID
	})

	return out, nil
}

// DeleteForMemory best-effort removes every point whose payload points
// back to memoryID.
func (s *Store) DeleteForMemory(ctx context.Context, memoryID int64) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("source_memory_id", memoryID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Health succeeds iff the collection is reachable.
func (s *Store) Health(ctx context.Context) bool {
	_, err := s.client.CollectionExists(ctx, s.collection)
	return err == nil
}

func metadataToMap(meta models.VectorMetadata, document string) map[string]any {
	return map[string]any{
		"title":              meta.Title,
		"memory_type":        meta.MemoryType,
		"confidence":         meta.Confidence,
		"mood":               meta.Mood,
		"keywords":           meta.Keywords,
		"extracted_concepts": meta.ExtractedConcepts,
		"source_memory_id":   meta.SourceMemoryID,
		"source_category":    meta.SourceCategory,
		"source_topic":       meta.SourceTopic,
		"source_date":        meta.SourceDate.Format(time.RFC3339),
		"created_at":         meta.CreatedAt.Format(time.RFC3339),
		"source":             meta.Source,
		"document":           document,
	}
}

func valueMapToMap(fields map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = decodeValue(v)
	}
	return out
}

// decodeValue unwraps Qdrant's protobuf-style payload value into a plain
// Go value for consumption by the pipeline/rerank layers.
func decodeValue(v *qdrant.Value) any {
	switch {
	case v == nil:
		return nil
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetIntegerValue() != 0:
		return float64(v.GetIntegerValue())
	case v.GetListValue() != nil:
		items := v.GetListValue().GetValues()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = decodeValue(it)
		}
		return out
	default:
		return v.GetDoubleValue()
	}
}
