package pipeline

import (
	"context"
	"fmt"

	"tailor/internal/design"
	"tailor/internal/domain"
	"tailor/internal/imageproc"
	"tailor/internal/storage"
)

func (r *Runner) runNormalize(ctx context.Context, job *domain.Job, locale string) error {
	out, err := r.normalize(ctx, job)
	if err != nil {
		r.fail(ctx, job, err)
		r.Notifier.Post(ctx, job, locale, "", NoticePrintFailed, err.Error())
		return err
	}
	if err := r.complete(ctx, job, out); err != nil {
		return err
	}
	r.Notifier.Post(ctx, job, locale, out.ArtifactID, NoticePrintReady, out.Width, out.Height, out.DPI)
	return nil
}

func (r *Runner) normalize(ctx context.Context, job *domain.Job) (*domain.NormalizeOutput, error) {
	var in domain.NormalizeInput
	if err := decodeInput(job, &in); err != nil {
		return nil, err
	}
	if in.ArtifactID == "" {
		return nil, fmt.Errorf("%w: artifactId is required", domain.ErrInvalidInput)
	}

	normalizedID := StepID(job.ID, "normalized")
	if done, ok, err := r.existingArtifact(ctx, normalizedID); err != nil {
		return nil, err
	} else if ok {
		if err := r.pointDesignAt(ctx, job.SessionID, in.ArtifactID, done.ID); err != nil {
			return nil, err
		}
		return &domain.NormalizeOutput{
			ArtifactID: done.ID,
			URL:        done.URL,
			Width:      done.Width,
			Height:     done.Height,
			DPI:        done.DPI,
			HasAlpha:   true,
		}, nil
	}

	// The chained job checks what it was handed instead of trusting it.
	source, img, err := r.resolver.ForSession(job.SessionID).load(ctx, in.ArtifactID)
	if err != nil {
		return nil, err
	}

	if in.RemoveBackground && r.Remover != nil {
		prov := imageproc.Provenance(in.Provenance)
		if prov == "" {
			prov = imageproc.Provenance(source.Provenance())
		}
		img, err = r.Remover.RemoveBackground(ctx, img, prov)
		if err != nil {
			return nil, fmt.Errorf("remove background: %w", err)
		}
	}

	opts := imageproc.NormalizeOptions{
		TargetWidth:         in.TargetWidth,
		TargetHeight:        in.TargetHeight,
		TargetDPI:           in.TargetDPI,
		MaintainAspectRatio: true,
	}
	if opts.TargetWidth <= 0 || opts.TargetHeight <= 0 {
		opts.TargetWidth = r.Config.PrintTarget.Width
		opts.TargetHeight = r.Config.PrintTarget.Height
	}
	if opts.TargetDPI <= 0 {
		opts.TargetDPI = r.Config.PrintTarget.DPI
	}
	res, err := imageproc.Normalize(img, opts)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	key := storage.NormalizedKey(job.SessionID, normalizedID)
	if err := r.Store.Put(ctx, key, res.Buffer, "image/png"); err != nil {
		return nil, fmt.Errorf("store print file: %w", err)
	}
	artifact := &domain.Artifact{
		ID:               normalizedID,
		SessionID:        job.SessionID,
		Kind:             domain.ArtifactKindNormalized,
		StorageKey:       key,
		URL:              r.Store.PublicURL(key),
		MimeType:         "image/png",
		Width:            res.Width,
		Height:           res.Height,
		DPI:              res.DPI,
		SourceArtifactID: source.ID,
	}
	if err := r.Artifacts.Create(ctx, artifact); err != nil {
		return nil, fmt.Errorf("record print file: %w", err)
	}
	if err := r.pointDesignAt(ctx, job.SessionID, source.ID, artifact.ID); err != nil {
		return nil, err
	}

	return &domain.NormalizeOutput{
		ArtifactID: artifact.ID,
		URL:        artifact.URL,
		Width:      res.Width,
		Height:     res.Height,
		DPI:        res.DPI,
		HasAlpha:   res.HasAlpha,
	}, nil
}

// pointDesignAt swaps layers that show from over to the print-ready copy.
func (r *Runner) pointDesignAt(ctx context.Context, sessionID, from, to string) error {
	session, err := r.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	next, changed := design.Migrate(session.DesignState).ReplaceArtifact(from, to)
	if !changed {
		return nil
	}
	return r.saveDocument(ctx, sessionID, next)
}
