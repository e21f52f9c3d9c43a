package models

import "time"

// AnalysisJob is one async batch-analysis unit.
type AnalysisJob struct {
	ID               string    `json:"id"`
	Status           JobStatus `json:"status"`
	JobType          string    `json:"job_type"`
	MemoryIDs        []int64   `json:"memory_ids"`
	ProgressCurrent  int       `json:"progress_current"`
	ProgressTotal    int       `json:"progress_total"`
	CreatedAt        time.Time `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
}

// AnalysisResult is one per-memory outcome appended while a job runs.
type AnalysisResult struct {
	ID                 int64     `json:"id"`
	JobID              string    `json:"job_id"`
	MemoryID           int64     `json:"memory_id"`
	MemoryType         MemoryType `json:"memory_type"`
	Confidence         float64   `json:"confidence"`
	ExtractedConcepts  string    `json:"extracted_concepts"` // JSON-encoded []Concept
	Metadata           string    `json:"metadata"`           // JSON-encoded map
	CreatedAt          time.Time `json:"created_at"`
}
