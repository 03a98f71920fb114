package handlers

import (
	"bytes"
	"errors"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tailor/internal/design"
	"tailor/internal/domain"
	"tailor/internal/imageproc"
	"tailor/internal/pipeline"
	"tailor/internal/storage"
)

type uploadResponse struct {
	Artifact     artifactDTO     `json:"artifact"`
	Design       design.Document `json:"design"`
	NormalizeJob string          `json:"normalizeJobId,omitempty"`
}

type artifactDTO struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	URL              string    `json:"url"`
	MimeType         string    `json:"mimeType"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	DPI              int       `json:"dpi,omitempty"`
	SourceArtifactID string    `json:"sourceArtifactId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func toArtifactDTO(a *domain.Artifact) artifactDTO {
	return artifactDTO{
		ID:               a.ID,
		Kind:             string(a.Kind),
		URL:              a.URL,
		MimeType:         a.MimeType,
		Width:            a.Width,
		Height:           a.Height,
		DPI:              a.DPI,
		SourceArtifactID: a.SourceArtifactID,
		CreatedAt:        a.CreatedAt,
	}
}

// Upload stores a user image, places it on the requested side and queues
// its print-ready copy. Background removal for uploads goes through the
// segmentation service when one is configured.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	session, err := a.session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload too large")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_asset", "upload must be a PNG, JPEG or WebP image")
		return
	}

	side, ok := design.ParseSide(r.FormValue("side"))
	doc := design.Migrate(session.DesignState)
	if !ok {
		side = doc.ActiveSide
	}
	if doc.LayerCount(side) >= design.MaxLayersPerSide {
		a.error(w, http.StatusConflict, "layer_limit", "side already has the maximum number of layers")
		return
	}

	mime := "image/" + format
	id := uuid.NewString()
	key := storage.UploadKey(session.ID, id, storage.ExtensionFor(mime))
	if err := a.Store.Put(r.Context(), key, data, mime); err != nil {
		a.fail(w, r, err, "upload")
		return
	}
	artifact := &domain.Artifact{
		ID:         id,
		SessionID:  session.ID,
		Kind:       domain.ArtifactKindUpload,
		StorageKey: key,
		URL:        a.Store.PublicURL(key),
		MimeType:   mime,
		Width:      cfg.Width,
		Height:     cfg.Height,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.Artifacts.Create(r.Context(), artifact); err != nil {
		a.fail(w, r, err, "upload")
		return
	}

	next := doc.AddLayer(side, artifact.ID)
	if err := a.saveDocument(r, session.ID, next); err != nil {
		a.fail(w, r, err, "design")
		return
	}

	resp := uploadResponse{Artifact: toArtifactDTO(artifact), Design: next}
	if r.FormValue("normalize") != "false" {
		job, err := a.Enqueuer.Enqueue(r.Context(), pipeline.StepID(artifact.ID, "normalize"), session.ID,
			domain.JobTypeNormalizeArtwork, domain.NormalizeInput{
				ArtifactID:       artifact.ID,
				RemoveBackground: r.FormValue("removeBackground") != "false",
				Provenance:       string(imageproc.ProvenanceUpload),
			})
		if err != nil {
			a.log(r).Warn().Err(err).Str("artifact_id", artifact.ID).Msg("http: normalize not queued")
		} else {
			resp.NormalizeJob = job.ID
		}
	}
	a.json(w, http.StatusCreated, resp)
}

// ListArtifacts returns every artifact of the session, newest first.
func (a *App) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	session, err := a.session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	artifacts, err := a.Artifacts.ListBySession(r.Context(), session.ID)
	if err != nil {
		a.fail(w, r, err, "artifacts")
		return
	}
	items := make([]artifactDTO, 0, len(artifacts))
	for i := range artifacts {
		items = append(items, toArtifactDTO(&artifacts[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetArtifact(w http.ResponseWriter, r *http.Request) {
	artifact, err := a.Artifacts.GetByID(r.Context(), chi.URLParam(r, "artifactID"))
	if err != nil {
		a.fail(w, r, err, "artifact")
		return
	}
	a.json(w, http.StatusOK, toArtifactDTO(artifact))
}

// ArtifactContent serves the stored bytes, for stores without public URLs.
func (a *App) ArtifactContent(w http.ResponseWriter, r *http.Request) {
	artifact, err := a.Artifacts.GetByID(r.Context(), chi.URLParam(r, "artifactID"))
	if err != nil {
		a.fail(w, r, err, "artifact")
		return
	}
	data, err := a.Store.Get(r.Context(), artifact.StorageKey)
	if err != nil {
		a.fail(w, r, err, "artifact")
		return
	}
	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
