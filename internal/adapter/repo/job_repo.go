package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tailor/internal/domain"
	"tailor/internal/infra"
	"tailor/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertJob, job.ID, job.SessionID, string(job.Type), nullableJSON(job.Input))
	return err
}

func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID))
}

func (r *JobRepositoryPG) MarkRunning(ctx context.Context, jobID string) error {
	return r.transition(ctx, jobID, sqlinline.QMarkJobRunning, jobID)
}

func (r *JobRepositoryPG) Complete(ctx context.Context, jobID string, output json.RawMessage) error {
	return r.transition(ctx, jobID, sqlinline.QCompleteJob, jobID, nullableJSON(output))
}

func (r *JobRepositoryPG) Fail(ctx context.Context, jobID string, errMsg string) error {
	return r.transition(ctx, jobID, sqlinline.QFailJob, jobID, errMsg)
}

func (r *JobRepositoryPG) ClaimPending(ctx context.Context) (*domain.Job, error) {
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QClaimStalePendingJob))
}

// transition runs a status-guarded update. Zero affected rows means either
// the job does not exist or its status forbids the move.
func (r *JobRepositoryPG) transition(ctx context.Context, jobID, query string, args ...any) error {
	tag, err := r.sql.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s", domain.ErrInvalidTransition, jobID, job.Status)
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		input  []byte
		output []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.SessionID,
		&job.Type,
		&job.Status,
		&input,
		&output,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Input = input
	job.Output = output
	return &job, nil
}

func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
