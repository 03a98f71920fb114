package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tailor/internal/domain"
	"tailor/pkg/zip"
)

type jobResponse struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toJobResponse(j *domain.Job) jobResponse {
	return jobResponse{
		ID:        j.ID,
		SessionID: j.SessionID,
		Type:      string(j.Type),
		Status:    string(j.Status),
		Input:     j.Input,
		Output:    j.Output,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

func (a *App) EnqueueNormalize(w http.ResponseWriter, r *http.Request) {
	var in domain.NormalizeInput
	if err := decodeBody(r, &in); err != nil {
		a.fail(w, r, err, "job")
		return
	}
	if strings.TrimSpace(in.ArtifactID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "artifactId is required")
		return
	}
	a.enqueue(w, r, domain.JobTypeNormalizeArtwork, in)
}

func (a *App) EnqueueProduct(w http.ResponseWriter, r *http.Request) {
	var in domain.ProductInput
	if r.ContentLength != 0 {
		if err := decodeBody(r, &in); err != nil {
			a.fail(w, r, err, "job")
			return
		}
	}
	a.enqueue(w, r, domain.JobTypeCreateFulfillmentProduct, in)
}

func (a *App) enqueue(w http.ResponseWriter, r *http.Request, typ domain.JobType, input any) {
	session, err := a.session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	job, err := a.Enqueuer.Enqueue(r.Context(), "", session.ID, typ, input)
	if err != nil {
		a.fail(w, r, err, "job")
		return
	}
	a.json(w, http.StatusAccepted, toJobResponse(job))
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.GetByID(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		a.fail(w, r, err, "job")
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job))
}

// PrintFiles streams the print files of a finished product job as a zip,
// one PNG per garment side.
func (a *App) PrintFiles(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.GetByID(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		a.fail(w, r, err, "job")
		return
	}
	if job.Type != domain.JobTypeCreateFulfillmentProduct {
		a.error(w, http.StatusBadRequest, "bad_request", "job has no print files")
		return
	}
	if job.Status != domain.JobStatusCompleted {
		a.error(w, http.StatusConflict, "not_ready", fmt.Sprintf("job is %s", strings.ToLower(string(job.Status))))
		return
	}
	var out domain.ProductOutput
	if err := json.Unmarshal(job.Output, &out); err != nil {
		a.fail(w, r, err, "print files")
		return
	}

	assets := make([]zip.Asset, 0, len(out.Files))
	for _, f := range out.Files {
		artifact, err := a.Artifacts.GetByID(r.Context(), f.ArtifactID)
		if err != nil {
			a.fail(w, r, err, "print file")
			return
		}
		data, err := a.Store.Get(r.Context(), artifact.StorageKey)
		if err != nil {
			a.fail(w, r, err, "print file")
			return
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%s-%s.png", f.Placement, artifact.ID),
			MIME:     artifact.MimeType,
			Data:     data,
		})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.fail(w, r, err, "print files")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=print-files-%s.zip", job.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
