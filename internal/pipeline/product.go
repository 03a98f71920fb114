package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"tailor/internal/compositor"
	"tailor/internal/design"
	"tailor/internal/domain"
	"tailor/internal/providers/fulfillment"
	"tailor/internal/storage"
)

const defaultProductTitle = "Custom Tee"

var sides = []design.Side{design.SideFront, design.SideBack}

func (r *Runner) runProduct(ctx context.Context, job *domain.Job, locale string) error {
	r.Notifier.Post(ctx, job, locale, "", NoticeProductWorking)

	out, err := r.createProduct(ctx, job)
	if err != nil {
		r.fail(ctx, job, err)
		if errors.Is(err, domain.ErrNoArtifacts) {
			r.Notifier.Post(ctx, job, locale, "", NoticeNoArtworkToSell)
		} else {
			r.Notifier.Post(ctx, job, locale, "", NoticeProductFailed, err.Error())
		}
		return err
	}
	if err := r.complete(ctx, job, out); err != nil {
		return err
	}
	r.Notifier.Post(ctx, job, locale, "", NoticeProductReady, out.ProductID)
	return nil
}

func (r *Runner) createProduct(ctx context.Context, job *domain.Job) (*domain.ProductOutput, error) {
	var in domain.ProductInput
	if err := decodeInput(job, &in); err != nil {
		return nil, err
	}
	session, err := r.Sessions.GetByID(ctx, job.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	doc := design.Migrate(session.DesignState)
	if filled, ok := doc.FillMissingArtifacts(in.PrimaryArtifactID); ok {
		doc = filled
	}

	resolved := r.resolveArtifacts(ctx, session.ID, doc, in.PrimaryArtifactID)
	if len(resolved) == 0 {
		return nil, domain.ErrNoArtifacts
	}

	files, err := r.printFiles(ctx, job, doc, resolved, in.PrimaryArtifactID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, domain.ErrNoArtifacts
	}

	if r.Fulfillment == nil {
		return nil, fmt.Errorf("%w: fulfillment service is not configured", domain.ErrProviderFailure)
	}
	variants := in.VariantIDs
	if len(variants) == 0 {
		variants = r.Config.VariantIDs
	}
	price := in.RetailPrice
	if price == "" {
		price = r.Config.RetailPrice
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultProductTitle
	}

	specFiles := make([]fulfillment.File, len(files))
	for i, f := range files {
		specFiles[i] = fulfillment.File{Placement: f.Placement, URL: f.URL}
	}
	// A replay finds the product its first run created instead of listing
	// a duplicate in the store.
	externalID := StepID(job.ID, "product")
	product, err := r.Fulfillment.FindProduct(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	if product == nil {
		product, err = r.Fulfillment.CreateProduct(ctx, fulfillment.ProductSpec{
			ExternalID:  externalID,
			Title:       title,
			Files:       specFiles,
			VariantIDs:  variants,
			RetailPrice: price,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
		}
	}
	if err := r.Sessions.SetProductID(ctx, session.ID, product.ID); err != nil {
		return nil, fmt.Errorf("save product id: %w", err)
	}

	out := &domain.ProductOutput{ProductID: product.ID, Files: files}
	if r.Config.Mockups {
		out.MockupURLs = r.mockups(ctx, job, variants, specFiles)
	}
	return out, nil
}

// resolveArtifacts loads every artifact the design references plus the
// fallback primary one. Missing or foreign artifacts are skipped.
func (r *Runner) resolveArtifacts(ctx context.Context, sessionID string, doc design.Document, primary string) map[string]*domain.Artifact {
	ids := doc.ArtifactIDs()
	if primary != "" {
		ids = append(ids, primary)
	}
	resolved := make(map[string]*domain.Artifact, len(ids))
	for _, id := range ids {
		if _, ok := resolved[id]; ok {
			continue
		}
		a, err := r.Artifacts.GetByID(ctx, id)
		if err != nil || a.SessionID != sessionID {
			r.Logger.Warn().Err(err).Str("artifact_id", id).Msg("pipeline: artifact not resolvable, skipping")
			continue
		}
		resolved[id] = a
	}
	return resolved
}

// printFiles yields one file per non-empty side, front first. Designs
// with text or stacked layers are flattened; a lone image layer ships its
// own asset untouched.
func (r *Runner) printFiles(ctx context.Context, job *domain.Job, doc design.Document, resolved map[string]*domain.Artifact, primary string) ([]domain.PrintFile, error) {
	if doc.IsEmpty() {
		if a, ok := resolved[primary]; ok {
			return []domain.PrintFile{{Placement: string(design.SideFront), URL: a.URL, ArtifactID: a.ID}}, nil
		}
		return nil, nil
	}

	flatten := doc.HasTextLayers()
	for _, side := range sides {
		if doc.LayerCount(side) > 1 {
			flatten = true
		}
	}

	perSide := make([]*domain.PrintFile, len(sides))
	g, gctx := errgroup.WithContext(ctx)
	for i, side := range sides {
		layers := doc.SortedLayers(side)
		if len(layers) == 0 {
			continue
		}
		if !flatten {
			if a, ok := resolved[layers[0].ArtifactID]; ok {
				perSide[i] = &domain.PrintFile{Placement: string(side), URL: a.URL, ArtifactID: a.ID}
			}
			continue
		}
		g.Go(func() error {
			flat, err := r.compositeSide(gctx, job, side, layers)
			if err != nil {
				return err
			}
			perSide[i] = &domain.PrintFile{Placement: string(side), URL: flat.URL, ArtifactID: flat.ID}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var files []domain.PrintFile
	for _, f := range perSide {
		if f != nil {
			files = append(files, *f)
		}
	}
	return files, nil
}

func (r *Runner) compositeSide(ctx context.Context, job *domain.Job, side design.Side, layers []design.Layer) (*domain.Artifact, error) {
	id := StepID(job.ID, "composite/"+string(side))
	if done, ok, err := r.existingArtifact(ctx, id); err != nil {
		return nil, err
	} else if ok {
		return done, nil
	}

	area := r.printArea(ctx, side)
	img, err := r.compositor.WithResolver(r.resolver.ForSession(job.SessionID)).Composite(ctx, layers, area)
	if err != nil {
		return nil, fmt.Errorf("composite %s: %w", side, err)
	}
	data, err := compositor.EncodePNG(img, area.DPI)
	if err != nil {
		return nil, err
	}
	key := storage.CompositedKey(job.SessionID, string(side), id)
	if err := r.Store.Put(ctx, key, data, "image/png"); err != nil {
		return nil, fmt.Errorf("store %s print file: %w", side, err)
	}
	artifact := &domain.Artifact{
		ID:         id,
		SessionID:  job.SessionID,
		Kind:       domain.ArtifactKindComposited,
		StorageKey: key,
		URL:        r.Store.PublicURL(key),
		MimeType:   "image/png",
		Width:      area.Width,
		Height:     area.Height,
		DPI:        area.DPI,
	}
	if err := r.Artifacts.Create(ctx, artifact); err != nil {
		return nil, fmt.Errorf("record %s print file: %w", side, err)
	}
	return artifact, nil
}

// printArea asks the store for the placement's printfile size and falls
// back to the configured target when it cannot answer.
func (r *Runner) printArea(ctx context.Context, side design.Side) design.PrintArea {
	fallback := r.Config.PrintTarget
	if r.Fulfillment == nil || r.Config.CatalogProductID <= 0 {
		return fallback
	}
	area, err := r.Fulfillment.PrintArea(ctx, r.Config.CatalogProductID, string(side))
	if err != nil {
		r.Logger.Warn().Err(err).Str("side", string(side)).Msg("pipeline: printfile lookup failed, using default print area")
		return fallback
	}
	if area.DPI <= 0 {
		area.DPI = fallback.DPI
	}
	return area
}

// mockups renders storefront previews. Any failure only costs the previews.
func (r *Runner) mockups(ctx context.Context, job *domain.Job, variants []int, files []fulfillment.File) []string {
	log := r.Logger.With().Str("job_id", job.ID).Logger()
	taskKey, err := r.Fulfillment.CreateMockupTask(ctx, r.Config.CatalogProductID, variants, files)
	if err != nil {
		log.Warn().Err(err).Msg("pipeline: mockup task not created")
		return nil
	}
	task, err := r.Fulfillment.WaitForMockup(ctx, taskKey)
	switch {
	case errors.Is(err, fulfillment.ErrMockupTimeout):
		log.Warn().Err(err).Str("task_key", taskKey).Msg("pipeline: mockup still pending, giving up")
		return nil
	case err != nil:
		log.Warn().Err(err).Str("task_key", taskKey).Msg("pipeline: mockup failed")
		return nil
	}
	urls := make([]string, 0, len(task.Mockups))
	for _, m := range task.Mockups {
		if m.URL != "" {
			urls = append(urls, m.URL)
		}
	}
	return urls
}
