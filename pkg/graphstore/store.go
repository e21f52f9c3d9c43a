// Package graphstore is the relationship adapter (C3), backed by Neo4j.
// Edge idempotence is enforced with a Cypher MERGE keyed on
// (from_id, to_id, type) that always sets strength to the latest value.
package graphstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/memoryd/memoryd/pkg/models"
)

// Config holds the Neo4j connection settings.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
}

// Store is the Neo4j-backed implementation of the graph adapter contract.
type Store struct {
	driver neo4j.DriverWithContext
	dbName string
}

// New dials Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Store{driver: driver, dbName: cfg.Database}, nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
}

// UpsertNode creates or updates a node keyed by M.ID.
func (s *Store) UpsertNode(ctx context.Context, node models.GraphNode) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (m:Memory {id: $id})
			SET m.category = $category,
			    m.topic = $topic,
			    m.content_head = $content_head,
			    m.concepts = $concepts,
			    m.created_at = $created_at`,
			map[string]any{
				"id":           node.ID,
				"category":     node.Category,
				"topic":        node.Topic,
				"content_head": node.ContentHead,
				"concepts":     node.Concepts,
				"created_at":   node.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// CreateEdge is idempotent on (from,to,type): repeated calls update
// strength to the latest value rather than duplicating the relationship.
func (s *Store) CreateEdge(ctx context.Context, edge models.GraphEdge) error {
	if !edge.Type.IsValid() {
		return fmt.Errorf("invalid edge type %q", edge.Type)
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (a:Memory {id: $from_id}), (b:Memory {id: $to_id})
		MERGE (a)-[r:%s]->(b)
		SET r.strength = $strength`, cypherSafeLabel(string(edge.Type)))

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{
			"from_id":  edge.FromID,
			"to_id":    edge.ToID,
			"strength": edge.Strength,
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// FindRelated runs a bounded breadth-first traversal from centerID,
// restricted to edgeTypes if any are given, capped at 50 nodes.
func (s *Store) FindRelated(ctx context.Context, centerID string, maxDepth int, edgeTypes []models.EdgeType) (*models.GraphNeighborhood, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxDepth > 4 {
		maxDepth = 4
	}

	relFilter := ""
	if len(edgeTypes) > 0 {
		labels := make([]string, len(edgeTypes))
		for i, t := range edgeTypes {
			labels[i] = cypherSafeLabel(string(t))
		}
		relFilter = ":" + strings.Join(labels, "|")
	}

	query := fmt.Sprintf(`
		MATCH (center:Memory {id: $center_id})
		MATCH path = (center)-[r%s*1..%d]-(other:Memory)
		WITH other, relationships(path) AS rels
		UNWIND rels AS rel
		RETURN DISTINCT other.id AS id, other.category AS category, other.topic AS topic,
		       other.content_head AS content_head, other.concepts AS concepts, other.created_at AS created_at,
		       startNode(rel).id AS from_id, endNode(rel).id AS to_id, type(rel) AS rel_type, rel.strength AS strength
		LIMIT 50`, relFilter, maxDepth)

	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"center_id": centerID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	records := result.([]*neo4j.Record)
	neighborhood := &models.GraphNeighborhood{}
	seenNodes := map[string]bool{}
	seenEdges := map[string]bool{}

	for _, rec := range records {
		id, _ := rec.Get("id")
		idStr, _ := id.(string)
		if idStr != "" && !seenNodes[idStr] {
			seenNodes[idStr] = true
			category, _ := rec.Get("category")
			topic, _ := rec.Get("topic")
			contentHead, _ := rec.Get("content_head")
			concepts, _ := rec.Get("concepts")
			neighborhood.Nodes = append(neighborhood.Nodes, models.GraphNode{
				ID:          idStr,
				Category:    asString(category),
				Topic:       asString(topic),
				ContentHead: asString(contentHead),
				Concepts:    asString(concepts),
			})
		}

		fromID, _ := rec.Get("from_id")
		toID, _ := rec.Get("to_id")
		relType, _ := rec.Get("rel_type")
		strength, _ := rec.Get("strength")

		edgeKey := asString(fromID) + "|" + asString(toID) + "|" + asString(relType)
		if !seenEdges[edgeKey] {
			seenEdges[edgeKey] = true
			neighborhood.Edges = append(neighborhood.Edges, models.GraphEdge{
				FromID:   asString(fromID),
				ToID:     asString(toID),
				Type:     models.EdgeType(asString(relType)),
				Strength: asFloat(strength),
			})
		}
	}

	return neighborhood, nil
}

// FindCandidatesByContent is a content-similarity search. Neo4j full-text
// indexing is not assumed to be configured, so this falls back to a
// case-insensitive substring match over topic/content_head; every match
// gets score 1.0.
func (s *Store) FindCandidatesByContent(ctx context.Context, text string, topK int) ([]models.GraphCandidate, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (m:Memory)
			WHERE toLower(m.topic) CONTAINS toLower($text) OR toLower(m.content_head) CONTAINS toLower($text)
			RETURN m.id AS id
			LIMIT $limit`,
			map[string]any{"text": text, "limit": topK})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	records := result.([]*neo4j.Record)
	out := make([]models.GraphCandidate, 0, len(records))
	for _, rec := range records {
		idVal, _ := rec.Get("id")
		idStr := asString(idVal)
		memID, _ := strconv.ParseInt(idStr, 10, 64)
		out = append(out, models.GraphCandidate{MemoryID: memID, Score: 1.0})
	}
	return out, nil
}

// Statistics reports node/edge/edge-type counts.
func (s *Store) Statistics(ctx context.Context) (*models.GraphStatistics, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Memory)
			WITH count(n) AS nodes
			OPTIONAL MATCH (:Memory)-[r]->()
			RETURN nodes, count(r) AS edges, type(r) AS rel_type`,
			nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	stats := &models.GraphStatistics{EdgeTypeCounts: map[string]int{}}
	records := result.([]*neo4j.Record)
	for _, rec := range records {
		nodes, _ := rec.Get("nodes")
		edges, _ := rec.Get("edges")
		stats.TotalNodes = int(asFloat(nodes))
		stats.TotalEdges += int(asFloat(edges))
		if relType, ok := rec.Get("rel_type"); ok {
			if s := asString(relType); s != "" {
				stats.EdgeTypeCounts[s] += int(asFloat(edges))
			}
		}
	}
	return stats, nil
}

// DeleteNode removes the node and its incident edges.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `MATCH (m:Memory {id: $id}) DETACH DELETE m`, map[string]any{"id": id})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Health verifies connectivity.
func (s *Store) Health(ctx context.Context) bool {
	return s.driver.VerifyConnectivity(ctx) == nil
}

// cypherSafeLabel allows only the fixed edge-type vocabulary through to
// Cypher label position, where driver-side parameter binding is unavailable.
func cypherSafeLabel(label string) string {
	switch models.EdgeType(label) {
	case models.EdgeRelatedTo, models.EdgeSameCategory, models.EdgeSameTopic,
		models.EdgeConceptSimilar, models.EdgeTemporalAdjacent:
		return label
	default:
		return string(models.EdgeRelatedTo)
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
