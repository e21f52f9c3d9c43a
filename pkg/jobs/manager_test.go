package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memoryd/memoryd/pkg/analyzer"
	"github.com/memoryd/memoryd/pkg/jobs"
	"github.com/memoryd/memoryd/pkg/llm"
	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/relational"
)

type fakeJobStore struct {
	mu      sync.Mutex
	jobs    map[string]*models.AnalysisJob
	results map[string][]models.AnalysisResult
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*models.AnalysisJob{}, results: map[string][]models.AnalysisResult{}}
}

func (f *fakeJobStore) CreateJob(ctx context.Context, job models.AnalysisJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := job
	f.jobs[job.ID] = &j
	return nil
}

func (f *fakeJobStore) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobStore) StartJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = models.JobStatusRunning
	now := time.Now()
	j.StartedAt = &now
	return nil
}

func (f *fakeJobStore) UpdateJobProgress(ctx context.Context, id string, progressCurrent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].ProgressCurrent = progressCurrent
	return nil
}

func (f *fakeJobStore) FinishJob(ctx context.Context, id string, status models.JobStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = status
	j.ErrorMessage = errMessage
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

func (f *fakeJobStore) AppendResult(ctx context.Context, result models.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[result.JobID] = append(f.results[result.JobID], result)
	return nil
}

func (f *fakeJobStore) ListResults(ctx context.Context, jobID string) ([]models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[jobID], nil
}

var _ relational.JobStore = (*fakeJobStore)(nil)

type fakeMemories struct {
	rows map[int64]models.Memory
}

func (f *fakeMemories) SaveMemory(ctx context.Context, category, topic, content string) (*relational.SavedMemory, error) {
	return nil, nil
}
func (f *fakeMemories) GetByID(ctx context.Context, id int64) (*models.Memory, error) {
	m, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}
func (f *fakeMemories) Update(ctx context.Context, id int64, fields relational.UpdateFields) (bool, error) {
	return false, nil
}
func (f *fakeMemories) Move(ctx context.Context, id int64, newCategory string) (bool, error) {
	return false, nil
}
func (f *fakeMemories) Delete(ctx context.Context, id int64) (bool, error)          { return false, nil }
func (f *fakeMemories) SearchBasic(ctx context.Context, query string, categories []string) ([]models.Memory, error) {
	return nil, nil
}
func (f *fakeMemories) Recent(ctx context.Context, limit int) ([]models.Memory, error) { return nil, nil }
func (f *fakeMemories) ByCategory(ctx context.Context, category string, limit int) ([]models.Memory, error) {
	return nil, nil
}
func (f *fakeMemories) ListCategories(ctx context.Context) ([]models.CategoryCount, error) {
	return nil, nil
}
func (f *fakeMemories) AddToShortMemory(ctx context.Context, capacity int, m models.Memory) error {
	return nil
}
func (f *fakeMemories) ListShortMemory(ctx context.Context, limit int) ([]models.Memory, error) {
	return nil, nil
}
func (f *fakeMemories) Stats(ctx context.Context) (*models.Stats, error) { return &models.Stats{}, nil }
func (f *fakeMemories) Health(ctx context.Context) (*models.Health, error) {
	return &models.Health{OK: true}, nil
}
func (f *fakeMemories) Close() error { return nil }

var _ relational.Store = (*fakeMemories)(nil)

type scriptedChat struct{ response string }

func (s scriptedChat) Generate(ctx context.Context, prompt string) llm.ChatResult {
	return llm.ChatResult{Text: s.response, OK: true}
}
func (s scriptedChat) TestConnection(ctx context.Context) llm.ConnectionStatus {
	return llm.ConnectionStatus{OK: true}
}

func waitForStatus(t *testing.T, m *jobs.Manager, id string, want models.JobStatus) *models.AnalysisJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Status(context.Background(), id)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return nil
}

func TestSubmitProcessesAllItemsInOrder(t *testing.T) {
	store := newFakeJobStore()
	memories := &fakeMemories{rows: map[int64]models.Memory{
		1: {ID: 1, Topic: "a", Content: "first"},
		2: {ID: 2, Topic: "b", Content: "second"},
	}}
	an := analyzer.New(scriptedChat{response: `{"memory_type":"factual","concepts":[{"title":"x","description":"y"}]}`})
	mgr := jobs.New(store, memories, an, 4, nil)
	mgr.Start(context.Background())
	defer mgr.Stop()

	job, err := mgr.Submit(context.Background(), "classify_and_extract", []int64{1, 2})
	require.NoError(t, err)

	waitForStatus(t, mgr, job.ID, models.JobStatusCompleted)

	results, err := mgr.Result(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int64(1), results[0].MemoryID)
	require.Equal(t, int64(2), results[1].MemoryID)
}

func TestSubmitRejectsEmptyMemoryIDs(t *testing.T) {
	mgr := jobs.New(newFakeJobStore(), &fakeMemories{rows: map[int64]models.Memory{}}, nil, 4, nil)
	_, err := mgr.Submit(context.Background(), "classify_and_extract", nil)
	require.Error(t, err)
}

func TestStatusReturnsErrJobNotFoundForUnknownID(t *testing.T) {
	mgr := jobs.New(newFakeJobStore(), &fakeMemories{rows: map[int64]models.Memory{}}, nil, 4, nil)
	_, err := mgr.Status(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestMissingMemoryIsSkippedButJobCompletes(t *testing.T) {
	store := newFakeJobStore()
	memories := &fakeMemories{rows: map[int64]models.Memory{1: {ID: 1, Topic: "a", Content: "first"}}}
	an := analyzer.New(scriptedChat{response: `{"memory_type":"factual","concepts":[{"title":"x","description":"y"}]}`})
	mgr := jobs.New(store, memories, an, 4, nil)
	mgr.Start(context.Background())
	defer mgr.Stop()

	job, err := mgr.Submit(context.Background(), "classify_and_extract", []int64{1, 999})
	require.NoError(t, err)

	waitForStatus(t, mgr, job.ID, models.JobStatusCompleted)

	results, err := mgr.Result(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
