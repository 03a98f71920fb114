package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tailor/internal/domain"
	"tailor/internal/queue"
)

// Enqueuer records a PENDING job and then announces it on the queue. The
// row is written first so a lost event only delays the job: workers also
// claim stale PENDING rows.
type Enqueuer struct {
	jobs   domain.JobRepository
	queue  queue.Queue
	logger zerolog.Logger
	now    func() time.Time
}

func NewEnqueuer(jobs domain.JobRepository, q queue.Queue, logger zerolog.Logger) *Enqueuer {
	return &Enqueuer{jobs: jobs, queue: q, logger: logger, now: time.Now}
}

// Enqueue creates a job of typ for session. An empty jobID gets a random
// id; chained jobs pass a derived one so the hand-off is replay safe.
func (e *Enqueuer) Enqueue(ctx context.Context, jobID, sessionID string, typ domain.JobType, input any) (*domain.Job, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: job type %q", domain.ErrInvalidInput, typ)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode job input: %w", err)
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}
	job := &domain.Job{
		ID:        jobID,
		SessionID: sessionID,
		Type:      typ,
		Status:    domain.JobStatusPending,
		Input:     payload,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	ev := queue.Event{JobID: job.ID, Type: string(typ), SessionID: sessionID, EnqueuedAt: e.now().UTC()}
	if e.queue != nil {
		if err := e.queue.Publish(ctx, ev); err != nil {
			e.logger.Warn().
				Err(err).
				Str("job_id", job.ID).
				Msg("pipeline: publish failed, job left for the pending sweep")
		}
	}
	e.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(typ)).
		Str("session_id", sessionID).
		Msg("pipeline: job enqueued")
	return job, nil
}
