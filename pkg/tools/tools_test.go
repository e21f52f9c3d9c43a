package tools_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/pipeline"
	"github.com/memoryd/memoryd/pkg/relational"
	"github.com/memoryd/memoryd/pkg/tools"
)

type fakeStore struct {
	mu     sync.Mutex
	rows   map[int64]models.Memory
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[int64]models.Memory{}, nextID: 1}
}

func (f *fakeStore) SaveMemory(ctx context.Context, category, topic, content string) (*relational.SavedMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	now := time.Now()
	f.rows[id] = models.Memory{ID: id, Category: category, Topic: topic, Content: content, Date: now, CreatedAt: now}
	return &relational.SavedMemory{ID: id, Date: now, CreatedAt: now}, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeStore) Update(ctx context.Context, id int64, fields relational.UpdateFields) (bool, error) {
	return false, nil
}
func (f *fakeStore) Move(ctx context.Context, id int64, newCategory string) (bool, error) {
	return false, nil
}
func (f *fakeStore) Delete(ctx context.Context, id int64) (bool, error) { return false, nil }
func (f *fakeStore) SearchBasic(ctx context.Context, query string, categories []string) ([]models.Memory, error) {
	return nil, nil
}
func (f *fakeStore) Recent(ctx context.Context, limit int) ([]models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Memory
	for _, m := range f.rows {
		out = append(out, m)
	}
	return out, nil
}
func (f *fakeStore) ByCategory(ctx context.Context, category string, limit int) ([]models.Memory, error) {
	return nil, nil
}
func (f *fakeStore) ListCategories(ctx context.Context) ([]models.CategoryCount, error) {
	return nil, nil
}
func (f *fakeStore) AddToShortMemory(ctx context.Context, capacity int, m models.Memory) error {
	return nil
}
func (f *fakeStore) ListShortMemory(ctx context.Context, limit int) ([]models.Memory, error) {
	return nil, nil
}
func (f *fakeStore) Stats(ctx context.Context) (*models.Stats, error) { return &models.Stats{Total: len(f.rows)}, nil }
func (f *fakeStore) Health(ctx context.Context) (*models.Health, error) {
	return &models.Health{OK: true}, nil
}
func (f *fakeStore) Close() error { return nil }

var _ relational.Store = (*fakeStore)(nil)

func TestDispatcherCallUnknownToolReturnsFailureEnvelope(t *testing.T) {
	d := tools.NewDispatcher()
	result := d.Call(context.Background(), "no_such_tool", nil)
	require.False(t, result["success"].(bool))
	require.Contains(t, result["error"], "unknown tool")
}

func TestDispatcherCallMissingRequiredArgReturnsFailureEnvelope(t *testing.T) {
	store := newFakeStore()
	p := pipeline.New(store, nil, nil, nil, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)
	d := tools.NewDispatcher()
	tools.RegisterAll(d, tools.Deps{Pipeline: p, Store: store})

	result := d.Call(context.Background(), "save_memory_full", map[string]any{"category": "core_memories"})
	require.False(t, result["success"].(bool))
	require.Contains(t, result["error"], "missing required argument")
}

func TestSaveMemoryFullHappyPath(t *testing.T) {
	store := newFakeStore()
	p := pipeline.New(store, nil, nil, nil, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)
	d := tools.NewDispatcher()
	tools.RegisterAll(d, tools.Deps{Pipeline: p, Store: store})

	result := d.Call(context.Background(), "save_memory_full", map[string]any{
		"category": models.CategoryCore,
		"topic":    "topic",
		"content":  "content",
	})
	require.True(t, result["success"].(bool))
	receipt := result["receipt"].(*pipeline.SaveReceipt)
	require.True(t, receipt.KeptInRelational)
}

func TestUpdateMemorySQLCoercesLooseIntArgs(t *testing.T) {
	store := newFakeStore()
	p := pipeline.New(store, nil, nil, nil, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)
	d := tools.NewDispatcher()
	tools.RegisterAll(d, tools.Deps{Pipeline: p, Store: store})

	saveResult := d.Call(context.Background(), "save_memory_full", map[string]any{
		"category": models.CategoryCore, "topic": "t", "content": "c",
	})
	receipt := saveResult["receipt"].(*pipeline.SaveReceipt)

	// MCP callers sometimes send numeric ids as strings; the dispatcher
	// must coerce "1" the same way it handles a native JSON number.
	result := d.Call(context.Background(), "update_memory_sql", map[string]any{
		"id": fmt.Sprint(receipt.MemoryID), "topic": "new topic",
	})
	require.True(t, result["success"].(bool))
}

func TestMemoryStatusAggregatesStoreHealth(t *testing.T) {
	store := newFakeStore()
	p := pipeline.New(store, nil, nil, nil, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)
	d := tools.NewDispatcher()
	tools.RegisterAll(d, tools.Deps{Pipeline: p, Store: store})

	result := d.Call(context.Background(), "memory_status", nil)
	require.True(t, result["success"].(bool))
	require.NotNil(t, result["stats"])
	require.NotNil(t, result["relational_health"])
}

func TestExecuteSpecialDirectiveMissingFileReturnsFailureEnvelope(t *testing.T) {
	d := tools.NewDispatcher()
	tools.RegisterAll(d, tools.Deps{DirectivePath: "/nonexistent/directive.txt"})

	result := d.Call(context.Background(), "execute_special_directive", nil)
	require.False(t, result["success"].(bool))
}
