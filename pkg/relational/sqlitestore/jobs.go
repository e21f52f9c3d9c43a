package sqlitestore

import (
	stdsql "database/sql"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/memoryd/memoryd/pkg/models"
	"github.com/memoryd/memoryd/pkg/relational"
)

var _ relational.JobStore = (*Client)(nil)

func (c *Client) CreateJob(ctx context.Context, job models.AnalysisJob) error {
	idsJSON, err := json.Marshal(job.MemoryIDs)
	if err != nil {
		return fmt.Errorf("marshal memory_ids: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs (id, status, job_type, memory_ids, progress_current, progress_total, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		job.ID, string(models.JobStatusPending), job.JobType, string(idsJSON), job.ProgressTotal, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	return nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, status, job_type, memory_ids, progress_current, progress_total,
		       created_at, started_at, completed_at, COALESCE(error_message, '')
		FROM analysis_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	return job, nil
}

func (c *Client) StartJob(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(models.JobStatusRunning), now, id)
	if err != nil {
		return fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	return nil
}

func (c *Client) UpdateJobProgress(ctx context.Context, id string, progressCurrent int) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET progress_current = ? WHERE id = ?`, progressCurrent, id)
	if err != nil {
		return fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	return nil
}

func (c *Client) FinishJob(ctx context.Context, id string, status models.JobStatus, errMessage string) error {
	now := time.Now().UTC()
	var errArg any
	if errMessage != "" {
		errArg = errMessage
	}
	_, err := c.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET status = ?, completed_at = ?, error_message = ? WHERE id = ?`,
		string(status), now, errArg, id)
	if err != nil {
		return fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	return nil
}

func (c *Client) AppendResult(ctx context.Context, result models.AnalysisResult) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO analysis_results (job_id, memory_id, memory_type, confidence, extracted_concepts, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.JobID, result.MemoryID, string(result.MemoryType), result.Confidence,
		result.ExtractedConcepts, result.Metadata, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	return nil
}

func (c *Client) ListResults(ctx context.Context, jobID string) ([]models.AnalysisResult, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, job_id, memory_id, memory_type, confidence, extracted_concepts, metadata, created_at
		FROM analysis_results WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var out []models.AnalysisResult
	for rows.Next() {
		var r models.AnalysisResult
		var memType string
		if err := rows.Scan(&r.ID, &r.JobID, &r.MemoryID, &memType, &r.Confidence, &r.ExtractedConcepts, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", relational.ErrBackendUnavailable, err)
		}
		r.MemoryType = models.MemoryType(memType)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanJob(row interface{ Scan(...any) error }) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	var status, idsJSON string
	var startedAt, completedAt stdsql.NullTime
	var errMsg string

	if err := row.Scan(&job.ID, &status, &job.JobType, &idsJSON, &job.ProgressCurrent, &job.ProgressTotal,
		&job.CreatedAt, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}

	job.Status = models.JobStatus(status)
	job.ErrorMessage = errMsg
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(idsJSON), &job.MemoryIDs); err != nil {
		return nil, fmt.Errorf("unmarshal memory_ids: %w", err)
	}
	return &job, nil
}
