package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tailor/internal/domain"
	"tailor/internal/queue"
)

// JobRunner executes one job by id.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// Worker drains the queue with a fixed number of goroutines. When the
// queue is empty it claims stale PENDING rows so lost events never strand
// a job.
type Worker struct {
	Runner       JobRunner
	Queue        queue.Queue
	Jobs         domain.JobRepository
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if w.PollInterval <= 0 {
		w.PollInterval = 2 * time.Second
	}
	w.Logger.Info().Int("concurrency", concurrency).Msg("worker: started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return w.loop(gctx, i)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context, slot int) error {
	log := w.Logger.With().Int("slot", slot).Logger()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		jobID, ok := w.next(ctx, log)
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.PollInterval):
			}
			continue
		}
		log.Info().Str("job_id", jobID).Msg("worker: picked job")
		if err := w.Runner.Run(ctx, jobID); err != nil {
			log.Error().Err(err).Str("job_id", jobID).Msg("worker: job failed")
		}
	}
}

// next returns the id of the next job to run, queue first.
func (w *Worker) next(ctx context.Context, log zerolog.Logger) (string, bool) {
	if w.Queue != nil {
		ev, ok, err := w.Queue.Pop(ctx)
		if err != nil {
			log.Error().Err(err).Msg("worker: queue pop failed")
		} else if ok {
			return ev.JobID, true
		}
	}
	if w.Jobs == nil {
		return "", false
	}
	job, err := w.Jobs.ClaimPending(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Msg("worker: failed to claim job")
		}
		return "", false
	}
	return job.ID, true
}
