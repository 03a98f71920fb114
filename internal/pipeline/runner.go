package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"tailor/internal/compositor"
	"tailor/internal/design"
	"tailor/internal/domain"
	"tailor/internal/imageproc"
	"tailor/internal/providers/fulfillment"
	"tailor/internal/providers/genai"
	"tailor/internal/storage"
)

// Generator produces artwork from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts genai.GenerateOptions) genai.Result
}

// BackgroundRemover drops the backdrop of an image.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, img image.Image, prov imageproc.Provenance) (image.Image, error)
}

// Fulfillment is the part of the store API the product flow needs.
type Fulfillment interface {
	CreateProduct(ctx context.Context, spec fulfillment.ProductSpec) (*fulfillment.Product, error)
	// FindProduct returns nil, nil when no product carries externalID.
	FindProduct(ctx context.Context, externalID string) (*fulfillment.Product, error)
	PrintArea(ctx context.Context, catalogProductID int, placement string) (design.PrintArea, error)
	CreateMockupTask(ctx context.Context, catalogProductID int, variantIDs []int, files []fulfillment.File) (string, error)
	WaitForMockup(ctx context.Context, taskKey string) (*fulfillment.MockupTask, error)
}

// Config holds the fixed product and print parameters.
type Config struct {
	PrintTarget      design.PrintArea
	CatalogProductID int
	VariantIDs       []int
	RetailPrice      string
	Mockups          bool
}

// Deps wires a Runner. Fulfillment may be nil when no store is configured.
type Deps struct {
	Jobs        domain.JobRepository
	Artifacts   domain.ArtifactRepository
	Sessions    domain.SessionRepository
	Store       storage.AssetStore
	Generator   Generator
	Remover     BackgroundRemover
	Fulfillment Fulfillment
	Enqueuer    *Enqueuer
	Notifier    *Notifier
	Config      Config
	Logger      zerolog.Logger
}

// Runner executes one job at a time through its flow. Runner is safe for
// concurrent use by several workers.
type Runner struct {
	Deps
	resolver   ArtifactResolver
	compositor *compositor.Compositor
}

func NewRunner(d Deps) *Runner {
	if d.Config.PrintTarget.Width <= 0 || d.Config.PrintTarget.Height <= 0 {
		d.Config.PrintTarget = design.PrintArea{
			Width:  imageproc.DefaultTargetWidth,
			Height: imageproc.DefaultTargetHeight,
			DPI:    imageproc.DefaultTargetDPI,
		}
	}
	if d.Config.PrintTarget.DPI <= 0 {
		d.Config.PrintTarget.DPI = imageproc.DefaultTargetDPI
	}
	r := &Runner{Deps: d}
	r.resolver = ArtifactResolver{Artifacts: d.Artifacts, Store: d.Store}
	r.compositor = compositor.New(r.resolver, d.Logger)
	return r
}

// Run drives job jobID to a terminal status. Jobs that already finished
// are skipped, so a redelivered event is harmless. A flow failure is
// recorded on the job, announced once in the chat and returned.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	log := r.Logger.With().Str("job_id", job.ID).Str("type", string(job.Type)).Logger()
	if job.Status.Terminal() {
		log.Debug().Str("status", string(job.Status)).Msg("pipeline: job already finished, skipping")
		r.resumeChain(ctx, job)
		return nil
	}
	if err := r.Jobs.MarkRunning(ctx, job.ID); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	job.Status = domain.JobStatusRunning

	locale := ""
	if session, err := r.Sessions.GetByID(ctx, job.SessionID); err == nil {
		locale = session.Locale
	}

	log.Info().Msg("pipeline: job started")
	switch job.Type {
	case domain.JobTypeGenerateArtwork:
		err = r.runGenerate(ctx, job, locale)
	case domain.JobTypeNormalizeArtwork:
		err = r.runNormalize(ctx, job, locale)
	case domain.JobTypeCreateFulfillmentProduct:
		err = r.runProduct(ctx, job, locale)
	default:
		err = fmt.Errorf("%w: unsupported job type %q", domain.ErrInvalidInput, job.Type)
		r.fail(ctx, job, err)
	}
	if err != nil {
		log.Warn().Err(err).Msg("pipeline: job failed")
		return err
	}
	log.Info().Msg("pipeline: job completed")
	return nil
}

// resumeChain re-issues the hand-off of a finished generate job. The
// first attempt may have died between Complete and Enqueue.
func (r *Runner) resumeChain(ctx context.Context, job *domain.Job) {
	if job.Type != domain.JobTypeGenerateArtwork || job.Status != domain.JobStatusCompleted {
		return
	}
	var out domain.GenerateOutput
	if err := json.Unmarshal(job.Output, &out); err != nil {
		r.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("pipeline: unreadable generate output, not re-chaining")
		return
	}
	r.chainNormalize(ctx, job, out.ArtifactID)
}

func (r *Runner) complete(ctx context.Context, job *domain.Job, output any) error {
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode job output: %w", err)
	}
	if err := r.Jobs.Complete(ctx, job.ID, payload); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	job.Status = domain.JobStatusCompleted
	job.Output = payload
	return nil
}

func (r *Runner) fail(ctx context.Context, job *domain.Job, cause error) {
	if err := r.Jobs.Fail(ctx, job.ID, cause.Error()); err != nil {
		r.Logger.Error().Err(err).Str("job_id", job.ID).Msg("pipeline: mark job failed")
		return
	}
	job.Status = domain.JobStatusFailed
	job.Error = cause.Error()
}

func decodeInput(job *domain.Job, into any) error {
	if len(job.Input) == 0 {
		return fmt.Errorf("%w: job %s has no input", domain.ErrInvalidInput, job.ID)
	}
	if err := json.Unmarshal(job.Input, into); err != nil {
		return fmt.Errorf("%w: decode job input: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// existingArtifact returns the artifact a previous run of this step wrote.
func (r *Runner) existingArtifact(ctx context.Context, id string) (*domain.Artifact, bool, error) {
	a, err := r.Artifacts.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// saveDocument writes doc back to the session. The stored document is
// overwritten as a whole; concurrent editors resolve by last write.
func (r *Runner) saveDocument(ctx context.Context, sessionID string, doc design.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode design: %w", err)
	}
	if err := r.Sessions.SaveDesignState(ctx, sessionID, raw); err != nil {
		return fmt.Errorf("save design: %w", err)
	}
	return nil
}
