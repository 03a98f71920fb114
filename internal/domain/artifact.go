package domain

import (
	"encoding/json"
	"time"
)

// ArtifactKind enumerates where an artifact came from.
type ArtifactKind string

const (
	ArtifactKindGenerated  ArtifactKind = "generated"
	ArtifactKindUpload     ArtifactKind = "upload"
	ArtifactKindNormalized ArtifactKind = "normalized"
	ArtifactKindComposited ArtifactKind = "composited"
)

// Artifact is a stored raster owned by a session. SourceArtifactID links an
// edit or a normalized copy back to its origin.
type Artifact struct {
	ID               string
	SessionID        string
	Kind             ArtifactKind
	StorageKey       string
	URL              string
	MimeType         string
	Width            int
	Height           int
	DPI              int
	SourceArtifactID string
	Properties       json.RawMessage
	CreatedAt        time.Time
}

// Provenance maps the artifact kind onto the background removal strategy.
func (a Artifact) Provenance() string {
	if a.Kind == ArtifactKindUpload {
		return "upload"
	}
	return "generated"
}
