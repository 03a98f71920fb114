package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"tailor/internal/domain"
	"tailor/internal/imageproc"
	"tailor/internal/storage"
)

// ArtifactResolver loads artifact rasters for the compositor. It only
// serves artifacts of the session it was scoped to with ForSession, so a
// design can never paint another session's artwork.
type ArtifactResolver struct {
	Artifacts domain.ArtifactRepository
	Store     storage.AssetStore
	SessionID string
}

// ForSession returns a copy of r limited to sessionID.
func (r ArtifactResolver) ForSession(sessionID string) ArtifactResolver {
	r.SessionID = sessionID
	return r
}

func (r ArtifactResolver) Resolve(ctx context.Context, artifactID string) (image.Image, error) {
	_, img, err := r.load(ctx, artifactID)
	return img, err
}

func (r ArtifactResolver) load(ctx context.Context, artifactID string) (*domain.Artifact, image.Image, error) {
	if r.SessionID == "" {
		return nil, nil, errors.New("artifact resolver is not scoped to a session")
	}
	artifact, err := r.Artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, nil, fmt.Errorf("load artifact %s: %w", artifactID, err)
	}
	if artifact.SessionID != r.SessionID {
		return nil, nil, fmt.Errorf("%w: artifact %s belongs to another session", domain.ErrInvalidInput, artifactID)
	}
	data, err := r.Store.Get(ctx, artifact.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch artifact %s: %w", artifactID, err)
	}
	img, _, err := imageproc.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: artifact %s: %v", domain.ErrUnsupportedAsset, artifactID, err)
	}
	return artifact, img, nil
}
