package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memoryd/memoryd/pkg/analyzer"
	"github.com/memoryd/memoryd/pkg/llm"
	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/pipeline"
	"github.com/memoryd/memoryd/pkg/relational"
)

// fakeStore is an in-memory relational.Store used to exercise the
// pipeline's routing decisions without a real backend.
type fakeStore struct {
	mu        sync.Mutex
	rows      map[int64]models.Memory
	shortMem  []models.Memory
	nextID    int64
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
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return false, nil
	}
	if fields.Topic != nil {
		m.Topic = *fields.Topic
	}
	if fields.Content != nil {
		m.Content = *fields.Content
	}
	if fields.Category != nil {
		m.Category = *fields.Category
	}
	f.rows[id] = m
	return true, nil
}

func (f *fakeStore) Move(ctx context.Context, id int64, newCategory string) (bool, error) {
	return f.Update(ctx, id, relational.UpdateFields{Category: &newCategory})
}

func (f *fakeStore) Delete(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

func (f *fakeStore) SearchBasic(ctx context.Context, query string, categories []string) ([]models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Memory
	for _, m := range f.rows {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) Recent(ctx context.Context, limit int) ([]models.Memory, error) { return nil, nil }

func (f *fakeStore) ByCategory(ctx context.Context, category string, limit int) ([]models.Memory, error) {
	return nil, nil
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]models.CategoryCount, error) {
	return nil, nil
}

func (f *fakeStore) AddToShortMemory(ctx context.Context, capacity int, m models.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shortMem = append(f.shortMem, m)
	if len(f.shortMem) > capacity {
		f.shortMem = f.shortMem[len(f.shortMem)-capacity:]
	}
	return nil
}

func (f *fakeStore) ListShortMemory(ctx context.Context, limit int) ([]models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shortMem, nil
}

func (f *fakeStore) Stats(ctx context.Context) (*models.Stats, error) { return &models.Stats{}, nil }

func (f *fakeStore) Health(ctx context.Context) (*models.Health, error) {
	return &models.Health{OK: true}, nil
}

func (f *fakeStore) Close() error { return nil }

var _ relational.Store = (*fakeStore)(nil)

func TestSavePathACoreAlwaysKept(t *testing.T) {
	store := newFakeStore()
	p := pipeline.New(store, nil, nil, nil, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)

	receipt, err := p.Save(context.Background(), models.CategoryCore, "topic", "content", nil)
	require.NoError(t, err)
	require.True(t, receipt.KeptInRelational)
	require.NotZero(t, receipt.MemoryID)

	got, err := store.GetByID(context.Background(), receipt.MemoryID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestSavePathBFactualIsDiscarded(t *testing.T) {
	store := newFakeStore()
	an := analyzer.New(scriptedChat{classify: `{"memory_type":"factual","concepts":[{"title":"x","description":"y"}]}`})
	p := pipeline.New(store, nil, nil, an, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)

	receipt, err := p.Save(context.Background(), "notes", "topic", "the sky is blue", nil)
	require.NoError(t, err)
	require.False(t, receipt.KeptInRelational)
	require.False(t, receipt.InShortMemory)
	require.Equal(t, int64(0), receipt.MemoryID)
	require.Equal(t, models.MemoryTypeFactual, receipt.MemoryType)
}

func TestSavePathBSignificantExperienceIsKept(t *testing.T) {
	store := newFakeStore()
	an := analyzer.New(scriptedChat{
		classify:     `{"memory_type":"experience","concepts":[{"title":"x","description":"y"}]}`,
		significance: `{"significant":true,"reason":"pivotal moment"}`,
	})
	p := pipeline.New(store, nil, nil, an, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)

	receipt, err := p.Save(context.Background(), "notes", "topic", "a breakthrough happened today", nil)
	require.NoError(t, err)
	require.True(t, receipt.KeptInRelational)
	require.False(t, receipt.InShortMemory)
	require.NotNil(t, receipt.SignificanceReason)
	require.Equal(t, "pivotal moment", *receipt.SignificanceReason)
}

func TestSavePathBInsignificantExperienceGoesToShortMemory(t *testing.T) {
	store := newFakeStore()
	an := analyzer.New(scriptedChat{
		classify:     `{"memory_type":"experience","concepts":[{"title":"x","description":"y"}]}`,
		significance: `{"significant":false,"reason":"routine"}`,
	})
	p := pipeline.New(store, nil, nil, an, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)

	receipt, err := p.Save(context.Background(), "notes", "topic", "had coffee", nil)
	require.NoError(t, err)
	require.False(t, receipt.KeptInRelational)
	require.True(t, receipt.InShortMemory)
	require.Equal(t, int64(0), receipt.MemoryID)

	listed, err := store.ListShortMemory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestShortMemoryCacheIsBounded(t *testing.T) {
	store := newFakeStore()
	an := analyzer.New(scriptedChat{
		classify:     `{"memory_type":"humor","concepts":[{"title":"x","description":"y"}]}`,
		significance: `{"significant":false,"reason":"minor"}`,
	})
	p := pipeline.New(store, nil, nil, an, nil, nil, pipeline.Config{ShortMemoryCapacity: 3}, nil)

	for i := 0; i < 5; i++ {
		_, err := p.Save(context.Background(), "jokes", "t", "content", nil)
		require.NoError(t, err)
	}

	listed, err := store.ListShortMemory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)
}

func TestUpdateReturnsDesyncWarning(t *testing.T) {
	store := newFakeStore()
	p := pipeline.New(store, nil, nil, nil, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)

	receipt, err := p.Save(context.Background(), models.CategoryCore, "topic", "content", nil)
	require.NoError(t, err)

	newTopic := "new topic"
	outcome, err := p.Update(context.Background(), receipt.MemoryID, relational.UpdateFields{Topic: &newTopic})
	require.NoError(t, err)
	require.True(t, outcome.OK)
	require.Contains(t, outcome.Warning, "not synchronized")
}

func TestGraphContextRejectsOutOfRangeDepth(t *testing.T) {
	p := pipeline.New(newFakeStore(), nil, nil, nil, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)

	_, err := p.GraphContext(context.Background(), 1, 0, nil)
	require.ErrorIs(t, err, pipeline.ErrDepthOutOfRange)

	_, err = p.GraphContext(context.Background(), 1, 5, nil)
	require.ErrorIs(t, err, pipeline.ErrDepthOutOfRange)
}

func TestSearchIntelligentStrategySelection(t *testing.T) {
	store := newFakeStore()
	p := pipeline.New(store, nil, nil, nil, nil, nil, pipeline.Config{ShortMemoryCapacity: 10}, nil)

	_, err := store.SaveMemory(context.Background(), "notes", "golang", "concurrency patterns")
	require.NoError(t, err)

	result, err := p.SearchIntelligent(context.Background(), "golang", nil, false, nil)
	require.NoError(t, err)
	require.Equal(t, models.SearchStrategyRelationalOnly, result.SearchStrategy)
	require.Len(t, result.CombinedResults, 1)
}

// scriptedChat distinguishes the classify call from the significance call
// by the prompt content, since analyzer.Analyzer issues both through the
// same ChatProvider.
type scriptedChat struct {
	classify     string
	significance string
}

func (s scriptedChat) Generate(ctx context.Context, prompt string) llm.ChatResult {
	if containsAny(prompt, "significant") || containsAny(prompt, "Memory type:") {
		return llm.ChatResult{Text: s.significance, OK: true}
	}
	return llm.ChatResult{Text: s.classify, OK: true}
}

func (s scriptedChat) TestConnection(ctx context.Context) llm.ConnectionStatus {
	return llm.ConnectionStatus{OK: true}
}

func containsAny(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
