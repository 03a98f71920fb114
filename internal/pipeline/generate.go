package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"

	"tailor/internal/design"
	"tailor/internal/domain"
	"tailor/internal/imageproc"
	"tailor/internal/providers/genai"
	"tailor/internal/storage"
)

func (r *Runner) runGenerate(ctx context.Context, job *domain.Job, locale string) error {
	r.Notifier.Post(ctx, job, locale, "", NoticeGenerating)

	out, err := r.generate(ctx, job, locale)
	if err != nil {
		r.fail(ctx, job, err)
		r.Notifier.Post(ctx, job, locale, "", NoticeArtworkFailed, err.Error())
		return err
	}
	if err := r.complete(ctx, job, out); err != nil {
		return err
	}
	r.Notifier.Post(ctx, job, locale, out.ArtifactID, NoticeArtworkReady)

	// Chained only after COMPLETED is stored.
	r.chainNormalize(ctx, job, out.ArtifactID)
	return nil
}

// chainNormalize queues the print-ready copy of a generated artwork. The
// job id is derived from the generate job, so issuing it again from a
// replay only republishes the same job.
func (r *Runner) chainNormalize(ctx context.Context, job *domain.Job, artifactID string) {
	if r.Enqueuer == nil || artifactID == "" {
		return
	}
	next := domain.NormalizeInput{
		ArtifactID:       artifactID,
		RemoveBackground: true,
		Provenance:       string(imageproc.ProvenanceGenerated),
		TargetWidth:      r.Config.PrintTarget.Width,
		TargetHeight:     r.Config.PrintTarget.Height,
		TargetDPI:        r.Config.PrintTarget.DPI,
	}
	if _, err := r.Enqueuer.Enqueue(ctx, StepID(job.ID, "normalize"), job.SessionID, domain.JobTypeNormalizeArtwork, next); err != nil {
		r.Logger.Error().Err(err).Str("job_id", job.ID).Msg("pipeline: chain normalize failed")
	}
}

func (r *Runner) generate(ctx context.Context, job *domain.Job, locale string) (*domain.GenerateOutput, error) {
	var in domain.GenerateInput
	if err := decodeInput(job, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	session, err := r.Sessions.GetByID(ctx, job.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	artifactID := StepID(job.ID, "artifact")
	artifact, done, err := r.existingArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if !done {
		artifact, err = r.generateArtifact(ctx, session, artifactID, in, locale)
		if err != nil {
			return nil, err
		}
	}

	doc := design.Migrate(session.DesignState)
	side, ok := design.ParseSide(in.Side)
	if !ok {
		side = doc.ActiveSide
	}
	next, replaced := doc.ReplaceArtifact(in.SourceArtifactID, artifact.ID)
	if !replaced {
		next = doc.AttachArtifact(side, artifact.ID)
	}
	if err := r.saveDocument(ctx, session.ID, next); err != nil {
		return nil, err
	}

	return &domain.GenerateOutput{ArtifactID: artifact.ID, URL: artifact.URL}, nil
}

func (r *Runner) generateArtifact(ctx context.Context, session *domain.Session, artifactID string, in domain.GenerateInput, locale string) (*domain.Artifact, error) {
	var opts genai.GenerateOptions
	if in.SourceArtifactID != "" {
		source, err := r.Artifacts.GetByID(ctx, in.SourceArtifactID)
		if err != nil {
			return nil, fmt.Errorf("load source artifact: %w", err)
		}
		if source.SessionID != session.ID {
			return nil, fmt.Errorf("%w: source artifact belongs to another session", domain.ErrInvalidInput)
		}
		data, err := r.Store.Get(ctx, source.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("fetch source artifact: %w", err)
		}
		opts.SourceImage = data
		opts.SourceImageMimeType = source.MimeType
	}

	prompt := genai.BuildArtworkPrompt(genai.ArtworkRequest{
		Prompt:  in.Prompt,
		Locale:  locale,
		Editing: in.SourceArtifactID != "",
	})
	res := r.Generator.Generate(ctx, prompt, opts)
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderFailure, res.Error)
	}
	if len(res.ImageData) == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrProviderFailure)
	}

	mime := res.MimeType
	if mime == "" {
		mime = http.DetectContentType(res.ImageData)
	}
	key := storage.GeneratedKey(session.ID, artifactID, storage.ExtensionFor(mime))
	if err := r.Store.Put(ctx, key, res.ImageData, mime); err != nil {
		return nil, fmt.Errorf("store artwork: %w", err)
	}

	artifact := &domain.Artifact{
		ID:               artifactID,
		SessionID:        session.ID,
		Kind:             domain.ArtifactKindGenerated,
		StorageKey:       key,
		URL:              r.Store.PublicURL(key),
		MimeType:         mime,
		SourceArtifactID: in.SourceArtifactID,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(res.ImageData)); err == nil {
		artifact.Width, artifact.Height = cfg.Width, cfg.Height
	}
	if err := r.Artifacts.Create(ctx, artifact); err != nil {
		return nil, fmt.Errorf("record artwork: %w", err)
	}
	return artifact, nil
}
