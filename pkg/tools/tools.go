package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/memoryd/memoryd/pkg/graphstore"
	"github.com/memoryd/memoryd/pkg/jobs"
	"github.com/memoryd/memoryd/pkg/llm"
	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/pipeline"
	"github.com/memoryd/memoryd/pkg/relational"
	"github.com/memoryd/memoryd/pkg/vectorstore"
)

// Deps bundles everything RegisterAll needs to bind the 19 tools from the
// external tool surface to their C7/C8 operations.
type Deps struct {
	Pipeline      *pipeline.Pipeline
	Store         relational.Store
	Vector        *vectorstore.Store
	Graph         *graphstore.Store
	Jobs          *jobs.Manager
	Chat          llm.ChatProvider
	LogPath       string
	DirectivePath string
}

// RegisterAll wires every tool in the external surface into d.
func RegisterAll(d *Dispatcher, deps Deps) {
	registerMemoryStatus(d, deps)
	registerSaveMemoryFull(d, deps)
	registerSaveMemorySQL(d, deps)
	registerUpdateMemorySQL(d, deps)
	registerMoveMemorySQL(d, deps)
	registerRecallCategory(d, deps)
	registerGetRecentMemories(d, deps)
	registerListCategories(d, deps)
	registerSearchMemoriesIntelligent(d, deps)
	registerSearchMemoriesWithGraph(d, deps)
	registerGetGraphContextForMemory(d, deps)
	registerGetGraphStatistics(d, deps)
	registerRetrieveMemoryAdvanced(d, deps)
	registerBatchAnalyzeMemories(d, deps)
	registerGetAnalysisStatus(d, deps)
	registerGetAnalysisResult(d, deps)
	registerTestLLMConnection(d, deps)
	registerReadSystemLogs(d, deps)
	registerExecuteSpecialDirective(d, deps)
}

func registerMemoryStatus(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:        "memory_status",
		Description: "Aggregate stats and health for all three backing stores.",
		Optional:    []ArgSpec{{Name: "autostart", Kind: KindBool}},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			stats, err := deps.Store.Stats(ctx)
			if err != nil {
				stats = &models.Stats{}
			}
			relHealth, err := deps.Store.Health(ctx)
			if err != nil {
				relHealth = &models.Health{OK: false, Detail: err.Error()}
			}
			result := map[string]any{
				"stats":            stats,
				"relational_health": relHealth,
			}
			if deps.Vector != nil {
				result["vector_health"] = deps.Vector.Health(ctx)
			}
			if deps.Graph != nil {
				result["graph_health"] = deps.Graph.Health(ctx)
			}
			// autostart requests external container lifecycle management,
			// which is out of scope for this core; the flag is accepted
			// and ignored rather than rejected.
			return result, nil
		},
	})
}

func registerSaveMemoryFull(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name: "save_memory_full",
		Required: []ArgSpec{
			{Name: "category", Kind: KindString},
			{Name: "topic", Kind: KindString},
			{Name: "content", Kind: KindString},
		},
		Optional: []ArgSpec{{Name: "forceRelationships", Kind: KindRaw}},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			forced, err := parseForceRelationships(args["forceRelationships"])
			if err != nil {
				return nil, err
			}
			receipt, err := deps.Pipeline.Save(ctx, args["category"].(string), args["topic"].(string), args["content"].(string), forced)
			if err != nil {
				return nil, err
			}
			return map[string]any{"receipt": receipt}, nil
		},
	})
}

func registerSaveMemorySQL(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name: "save_memory_sql",
		Required: []ArgSpec{
			{Name: "category", Kind: KindString},
			{Name: "topic", Kind: KindString},
			{Name: "content", Kind: KindString},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			saved, err := deps.Store.SaveMemory(ctx, args["category"].(string), args["topic"].(string), args["content"].(string))
			if err != nil {
				return nil, err
			}
			return map[string]any{"memory": saved}, nil
		},
	})
}

func registerUpdateMemorySQL(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "update_memory_sql",
		Required: []ArgSpec{{Name: "id", Kind: KindInt}},
		Optional: []ArgSpec{
			{Name: "topic", Kind: KindString},
			{Name: "content", Kind: KindString},
			{Name: "category", Kind: KindString},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			fields := relational.UpdateFields{}
			if v, ok := args["topic"].(string); ok {
				fields.Topic = &v
			}
			if v, ok := args["content"].(string); ok {
				fields.Content = &v
			}
			if v, ok := args["category"].(string); ok {
				fields.Category = &v
			}
			outcome, err := deps.Pipeline.Update(ctx, args["id"].(int64), fields)
			if err != nil {
				return nil, err
			}
			return map[string]any{"outcome": outcome}, nil
		},
	})
}

func registerMoveMemorySQL(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name: "move_memory_sql",
		Required: []ArgSpec{
			{Name: "id", Kind: KindInt},
			{Name: "new_category", Kind: KindString},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			outcome, err := deps.Pipeline.Move(ctx, args["id"].(int64), args["new_category"].(string))
			if err != nil {
				return nil, err
			}
			return map[string]any{"outcome": outcome}, nil
		},
	})
}

func registerRecallCategory(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "recall_category",
		Required: []ArgSpec{{Name: "category", Kind: KindString}},
		Optional: []ArgSpec{{Name: "limit", Kind: KindInt}},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			limit := optInt(args, "limit", 20)
			memories, err := deps.Store.ByCategory(ctx, args["category"].(string), int(limit))
			if err != nil {
				return nil, err
			}
			return map[string]any{"memories": memories}, nil
		},
	})
}

func registerGetRecentMemories(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "get_recent_memories",
		Optional: []ArgSpec{{Name: "limit", Kind: KindInt}},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			limit := optInt(args, "limit", 20)
			memories, err := deps.Store.Recent(ctx, int(limit))
			if err != nil {
				return nil, err
			}
			return map[string]any{"memories": memories}, nil
		},
	})
}

func registerListCategories(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name: "list_categories",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			categories, err := deps.Store.ListCategories(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"categories": categories}, nil
		},
	})
}

func registerSearchMemoriesIntelligent(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "search_memories_intelligent",
		Required: []ArgSpec{{Name: "query", Kind: KindString}},
		Optional: []ArgSpec{
			{Name: "categories", Kind: KindStringList},
			{Name: "enableReranking", Kind: KindBool},
			{Name: "rerankStrategy", Kind: KindString},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			var strategy *models.RerankStrategy
			if s := optString(args, "rerankStrategy", ""); s != "" {
				rs := models.RerankStrategy(s)
				strategy = &rs
			}
			result, err := deps.Pipeline.SearchIntelligent(ctx, args["query"].(string),
				optStringList(args, "categories"), optBool(args, "enableReranking", false), strategy)
			if err != nil {
				return nil, err
			}
			return map[string]any{"result": result}, nil
		},
	})
}

func registerSearchMemoriesWithGraph(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "search_memories_with_graph",
		Required: []ArgSpec{{Name: "query", Kind: KindString}},
		Optional: []ArgSpec{
			{Name: "categories", Kind: KindStringList},
			{Name: "includeRelated", Kind: KindBool},
			{Name: "maxRelationshipDepth", Kind: KindInt},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			depth := optInt(args, "maxRelationshipDepth", 2)
			result, err := deps.Pipeline.SearchWithGraph(ctx, args["query"].(string),
				optStringList(args, "categories"), optBool(args, "includeRelated", true), int(depth))
			if err != nil {
				return nil, err
			}
			return map[string]any{"result": result}, nil
		},
	})
}

func registerGetGraphContextForMemory(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "get_graph_context_for_memory",
		Required: []ArgSpec{{Name: "memoryId", Kind: KindInt}},
		Optional: []ArgSpec{
			{Name: "relationshipDepth", Kind: KindInt},
			{Name: "relationshipTypes", Kind: KindStringList},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			depth := optInt(args, "relationshipDepth", 2)
			edgeTypes := parseEdgeTypes(optStringList(args, "relationshipTypes"))
			neighborhood, err := deps.Pipeline.GraphContext(ctx, args["memoryId"].(int64), int(depth), edgeTypes)
			if err != nil {
				return nil, err
			}
			return map[string]any{"neighborhood": neighborhood}, nil
		},
	})
}

func registerGetGraphStatistics(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name: "get_graph_statistics",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			stats, err := deps.Pipeline.GraphStats(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"statistics": stats}, nil
		},
	})
}

func registerRetrieveMemoryAdvanced(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "retrieve_memory_advanced",
		Required: []ArgSpec{{Name: "memoryId", Kind: KindInt}},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			id := args["memoryId"].(int64)
			memory, err := deps.Store.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if memory == nil {
				return map[string]any{"success": false, "error": fmt.Sprintf("memory %d not found", id)}, nil
			}
			neighborhood, err := deps.Pipeline.GraphContext(ctx, id, 1, nil)
			if err != nil {
				neighborhood = &models.GraphNeighborhood{}
			}
			return map[string]any{"memory": memory, "neighborhood": neighborhood}, nil
		},
	})
}

func registerBatchAnalyzeMemories(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "batch_analyze_memories",
		Required: []ArgSpec{{Name: "memory_ids", Kind: KindRaw}},
		Optional: []ArgSpec{{Name: "background", Kind: KindBool}},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ids, err := parseIntList(args["memory_ids"])
			if err != nil {
				return nil, err
			}
			job, err := deps.Jobs.Submit(ctx, "classify_and_extract", ids)
			if err != nil {
				return nil, err
			}
			return map[string]any{"job": job}, nil
		},
	})
}

func registerGetAnalysisStatus(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "get_analysis_status",
		Required: []ArgSpec{{Name: "job_id", Kind: KindString}},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			job, err := deps.Jobs.Status(ctx, args["job_id"].(string))
			if err != nil {
				return nil, err
			}
			return map[string]any{"job": job}, nil
		},
	})
}

func registerGetAnalysisResult(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name:     "get_analysis_result",
		Required: []ArgSpec{{Name: "job_id", Kind: KindString}},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			results, err := deps.Jobs.Result(ctx, args["job_id"].(string))
			if err != nil {
				return nil, err
			}
			return map[string]any{"results": results}, nil
		},
	})
}

func registerTestLLMConnection(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name: "test_llm_connection",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			if deps.Chat == nil {
				return map[string]any{"success": false, "error": "no chat provider configured"}, nil
			}
			status := deps.Chat.TestConnection(ctx)
			return map[string]any{"connection": status}, nil
		},
	})
}

func registerReadSystemLogs(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name: "read_system_logs",
		Optional: []ArgSpec{
			{Name: "lines", Kind: KindInt},
			{Name: "filter", Kind: KindString},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			limit := int(optInt(args, "lines", 100))
			filter := optString(args, "filter", "")
			lines, err := tailLog(deps.LogPath, limit, filter)
			if err != nil {
				return nil, err
			}
			return map[string]any{"lines": lines}, nil
		},
	})
}

func registerExecuteSpecialDirective(d *Dispatcher, deps Deps) {
	d.Register(ToolSpec{
		Name: "execute_special_directive",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			data, err := os.ReadFile(deps.DirectivePath)
			if err != nil {
				return nil, fmt.Errorf("read directive file: %w", err)
			}
			return map[string]any{"content": string(data)}, nil
		},
	})
}

// parseForceRelationships accepts a []any of {"to_id": "...", "type": "..."}
// maps, the shape an MCP caller's already-decoded JSON argument arrives in.
func parseForceRelationships(raw any) ([]pipeline.ForceRelationship, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("forceRelationships must be a list")
	}
	out := make([]pipeline.ForceRelationship, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("forceRelationships entries must be objects")
		}
		toID, _ := m["to_id"].(string)
		typ, _ := m["type"].(string)
		if toID == "" || !models.EdgeType(typ).IsValid() {
			return nil, fmt.Errorf("forceRelationships entry requires to_id and a valid type")
		}
		out = append(out, pipeline.ForceRelationship{ToID: toID, Type: models.EdgeType(typ)})
	}
	return out, nil
}

func parseEdgeTypes(raw []string) []models.EdgeType {
	if len(raw) == 0 {
		return nil
	}
	out := make([]models.EdgeType, 0, len(raw))
	for _, s := range raw {
		out = append(out, models.EdgeType(s))
	}
	return out
}

func parseIntList(raw any) ([]int64, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("memory_ids must be a list")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("memory_ids must not be empty")
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := coerceIntVal(item)
		if err != nil {
			return nil, fmt.Errorf("memory_ids: %w", err)
		}
		out = append(out, id)
	}
	return out, nil
}

// tailLog returns up to limit lines from path, most recent last, filtered
// by a case-insensitive substring match when filter is non-empty.
func tailLog(path string, limit int, filter string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var all []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lowerFilter := strings.ToLower(filter)
	for scanner.Scan() {
		line := scanner.Text()
		if filter == "" || strings.Contains(strings.ToLower(line), lowerFilter) {
			all = append(all, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}

	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
