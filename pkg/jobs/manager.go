// Package jobs is the job manager (C8): a single background worker that
// processes AnalysisJob submissions serially, modeled on the worker-pool
// idiom from the relational store's history (poll loop, stop channel,
// cancellation registry) but fixed to one worker to avoid LLM
// rate-limit contention across concurrent batch analyses.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memoryd/memoryd/pkg/analyzer"
	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/relational"
)

// ErrJobNotFound is returned by Status/Result for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// Manager owns the single background worker and the cancellation registry.
type Manager struct {
	store    relational.JobStore
	memories relational.Store
	analyzer *analyzer.Analyzer
	logger   *slog.Logger

	queue    chan string
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.Mutex
	cancelled map[string]bool
}

// New builds a Manager. queueCapacity bounds the number of pending
// submissions buffered ahead of the worker; Submit blocks once full.
func New(store relational.JobStore, memories relational.Store, an *analyzer.Analyzer, queueCapacity int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		memories:  memories,
		analyzer:  an,
		logger:    logger,
		queue:     make(chan string, queueCapacity),
		stopCh:    make(chan struct{}),
		cancelled: map[string]bool{},
	}
}

// Start spawns the single worker goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.run(ctx)
}

// Stop signals the worker to finish its current item and exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// Submit creates a pending job for memoryIDs and enqueues it. Returns once
// the job is queued (waiting only while the queue is full); the worker
// processes jobs in submission order.
func (m *Manager) Submit(ctx context.Context, jobType string, memoryIDs []int64) (*models.AnalysisJob, error) {
	if len(memoryIDs) == 0 {
		return nil, fmt.Errorf("memory_ids must not be empty")
	}

	job := models.AnalysisJob{
		ID:            uuid.NewString(),
		Status:        models.JobStatusPending,
		JobType:       jobType,
		MemoryIDs:     memoryIDs,
		ProgressTotal: len(memoryIDs),
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	select {
	case m.queue <- job.ID:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &job, nil
}

// Status returns the current AnalysisJob state.
func (m *Manager) Status(ctx context.Context, id string) (*models.AnalysisJob, error) {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Result returns the per-memory outcomes recorded so far for id.
func (m *Manager) Result(ctx context.Context, id string) ([]models.AnalysisResult, error) {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return m.store.ListResults(ctx, id)
}

// Cancel requests that id stop before its next item starts. Returns true
// if id was a known, still-running or pending job.
func (m *Manager) Cancel(id string) bool {
	job, err := m.store.GetJob(context.Background(), id)
	if err != nil || job == nil {
		return false
	}
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusRunning {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[id] = true
	return true
}

func (m *Manager) isCancelled(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled[id]
}

func (m *Manager) clearCancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancelled, id)
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	log := m.logger.With("component", "jobs")
	log.Info("job worker started")

	for {
		select {
		case <-m.stopCh:
			log.Info("job worker stopping")
			return
		case <-ctx.Done():
			return
		case id := <-m.queue:
			m.process(ctx, id)
		}
	}
}

// process runs classify_and_extract over every memory id in job, appending
// a result and advancing progress after each, honoring cancellation
// between items (never mid-item).
func (m *Manager) process(ctx context.Context, id string) {
	log := m.logger.With("component", "jobs", "job_id", id)
	defer m.clearCancel(id)

	job, err := m.store.GetJob(ctx, id)
	if err != nil || job == nil {
		log.Error("job vanished before processing", "error", err)
		return
	}

	if err := m.store.StartJob(ctx, id); err != nil {
		log.Error("start job failed", "error", err)
		return
	}

	for i, memID := range job.MemoryIDs {
		if m.isCancelled(id) {
			_ = m.store.FinishJob(ctx, id, models.JobStatusFailed, "cancelled")
			log.Info("job cancelled", "completed_items", i)
			return
		}

		if err := m.processOne(ctx, id, memID); err != nil {
			log.Warn("item processing failed, continuing", "memory_id", memID, "error", err)
		}

		if err := m.store.UpdateJobProgress(ctx, id, i+1); err != nil {
			log.Error("progress update failed", "error", err)
		}
	}

	if err := m.store.FinishJob(ctx, id, models.JobStatusCompleted, ""); err != nil {
		log.Error("finish job failed", "error", err)
	}
}

func (m *Manager) processOne(ctx context.Context, jobID string, memoryID int64) error {
	memory, err := m.memories.GetByID(ctx, memoryID)
	if err != nil {
		return fmt.Errorf("load memory %d: %w", memoryID, err)
	}
	if memory == nil {
		return fmt.Errorf("memory %d not found", memoryID)
	}

	memType, concepts, err := m.analyzer.ClassifyAndExtract(ctx, *memory)
	if err != nil {
		memType = models.MemoryTypeFactual
		concepts = []models.Concept{analyzer.DefaultConcept(memory.Topic, memory.Content)}
	}

	conceptsJSON, _ := json.Marshal(concepts)
	metadataJSON, _ := json.Marshal(map[string]any{"job_id": jobID, "memory_id": memoryID})

	confidence := 0.0
	if len(concepts) > 0 {
		confidence = concepts[0].Confidence
	}

	return m.store.AppendResult(ctx, models.AnalysisResult{
		JobID:             jobID,
		MemoryID:          memoryID,
		MemoryType:        memType,
		Confidence:        confidence,
		ExtractedConcepts: string(conceptsJSON),
		Metadata:          string(metadataJSON),
		CreatedAt:         time.Now().UTC(),
	})
}
