// Package relational defines the backend-agnostic contract for the
// relational store adapter. The shared conformance suite that both
// concrete backends (pgstore, sqlitestore) must satisfy identically lives
// in the relationaltest subpackage.
package relational

import (
	"context"
	"time"

	"github.com/memoryd/memoryd/pkg/models"
)

// UpdateFields is a partial update: nil pointers mean "leave unchanged".
type UpdateFields struct {
	Topic    *string
	Content  *string
	Category *string
}

// SavedMemory is the {id, date, created_at} triple save_memory returns.
type SavedMemory struct {
	ID        int64
	Date      time.Time
	CreatedAt time.Time
}

// Store is the contract both the embedded (SQLite) and networked
// (Postgres) relational adapters satisfy. Differences between the two are
// limited to connection/transport.
type Store interface {
	// SaveMemory appends a new row; id is auto-assigned.
	SaveMemory(ctx context.Context, category, topic, content string) (*SavedMemory, error)

	// GetByID returns the memory, or (nil, nil) if absent.
	GetByID(ctx context.Context, id int64) (*models.Memory, error)

	// Update applies a partial update. Returns false if id is absent.
	Update(ctx context.Context, id int64, fields UpdateFields) (bool, error)

	// Move is equivalent to Update(id, {Category: &newCategory}) but
	// rejects an empty newCategory.
	Move(ctx context.Context, id int64, newCategory string) (bool, error)

	// Delete physically removes the row. Used only internally by the
	// pipeline's discard path and by the short-memory cache eviction —
	// never exposed directly to callers.
	Delete(ctx context.Context, id int64) (bool, error)

	// SearchBasic performs a case-insensitive substring match over
	// topic ∪ content; when categories is non-empty, results are
	// intersected with it.
	SearchBasic(ctx context.Context, query string, categories []string) ([]models.Memory, error)

	Recent(ctx context.Context, limit int) ([]models.Memory, error)
	ByCategory(ctx context.Context, category string, limit int) ([]models.Memory, error)
	ListCategories(ctx context.Context) ([]models.CategoryCount, error)

	// AddToShortMemory appends to the bounded FIFO short-memory cache,
	// pruning the oldest row once capacity is exceeded.
	AddToShortMemory(ctx context.Context, capacity int, m models.Memory) error
	ListShortMemory(ctx context.Context, limit int) ([]models.Memory, error)

	Stats(ctx context.Context) (*models.Stats, error)
	Health(ctx context.Context) (*models.Health, error)

	// Close releases backend resources (pool refcounting, file handles).
	Close() error
}

// JobStore persists AnalysisJob/AnalysisResult state for the job manager.
// Implemented by both relational backends alongside Store; kept as a
// separate interface since callers that never submit batch jobs (e.g.
// the conformance suite) have no need of it.
type JobStore interface {
	CreateJob(ctx context.Context, job models.AnalysisJob) error
	GetJob(ctx context.Context, id string) (*models.AnalysisJob, error)
	StartJob(ctx context.Context, id string) error
	UpdateJobProgress(ctx context.Context, id string, progressCurrent int) error
	FinishJob(ctx context.Context, id string, status models.JobStatus, errMessage string) error
	AppendResult(ctx context.Context, result models.AnalysisResult) error
	ListResults(ctx context.Context, jobID string) ([]models.AnalysisResult, error)
}
