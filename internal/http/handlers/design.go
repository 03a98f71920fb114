package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tailor/internal/design"
	"tailor/internal/domain"
)

const maxDesignBytes = 1 << 20

// apiError is a handler-level rejection with its own status code.
type apiError struct {
	status int
	kind   string
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func conflict(kind, format string, args ...any) error {
	return &apiError{status: http.StatusConflict, kind: kind, msg: fmt.Sprintf(format, args...)}
}

func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, kind: "bad_request", msg: fmt.Sprintf(format, args...)}
}

func layerNotFound(id string) error {
	return &apiError{status: http.StatusNotFound, kind: "not_found", msg: fmt.Sprintf("layer %s not found", id)}
}

func (a *App) reject(w http.ResponseWriter, r *http.Request, err error, what string) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		a.error(w, apiErr.status, apiErr.kind, apiErr.msg)
		return
	}
	a.fail(w, r, err, what)
}

// updateDesign loads the session's document, applies fn and stores the
// result. The write replaces the whole document; the last writer wins.
func (a *App) updateDesign(w http.ResponseWriter, r *http.Request, fn func(*domain.Session, design.Document) (design.Document, error)) {
	session, err := a.session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	next, err := fn(session, design.Migrate(session.DesignState))
	if err != nil {
		a.reject(w, r, err, "design")
		return
	}
	raw, err := json.Marshal(next)
	if err != nil {
		a.fail(w, r, err, "design")
		return
	}
	if err := a.Sessions.SaveDesignState(r.Context(), session.ID, raw); err != nil {
		a.fail(w, r, err, "design")
		return
	}
	a.json(w, http.StatusOK, next)
}

func sideParam(r *http.Request) (design.Side, error) {
	v := chi.URLParam(r, "side")
	side, ok := design.ParseSide(v)
	if !ok {
		return "", badRequest("unknown side %q", v)
	}
	return side, nil
}

func (a *App) GetDesign(w http.ResponseWriter, r *http.Request) {
	session, err := a.session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	a.json(w, http.StatusOK, design.Migrate(session.DesignState))
}

// PutDesign replaces the document. Legacy single-placement records are
// accepted and migrated; fields the server does not know are kept.
func (a *App) PutDesign(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxDesignBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}
	if len(raw) > maxDesignBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "design document too large")
		return
	}
	var doc design.Document
	switch design.DetectFormat(raw) {
	case design.FormatCurrent:
		// Migrate would swallow a bad layer and store an empty document.
		if err := json.Unmarshal(raw, &doc); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	case design.FormatLegacy:
		doc = design.Migrate(raw)
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unrecognized design document")
		return
	}
	a.updateDesign(w, r, func(_ *domain.Session, _ design.Document) (design.Document, error) {
		for _, side := range []design.Side{design.SideFront, design.SideBack} {
			if n := doc.LayerCount(side); n > design.MaxLayersPerSide {
				return doc, badRequest("%s has %d layers, at most %d allowed", side, n, design.MaxLayersPerSide)
			}
		}
		return doc, nil
	})
}

type activeSideRequest struct {
	Side string `json:"side"`
}

func (a *App) SetActiveSide(w http.ResponseWriter, r *http.Request) {
	var req activeSideRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err, "design")
		return
	}
	side, ok := design.ParseSide(req.Side)
	if !ok {
		a.error(w, http.StatusBadRequest, "bad_request", "side must be front or back")
		return
	}
	a.updateDesign(w, r, func(_ *domain.Session, doc design.Document) (design.Document, error) {
		return doc.WithActiveSide(side), nil
	})
}

type addLayerRequest struct {
	Kind       design.LayerKind     `json:"kind"`
	ArtifactID string               `json:"artifactId"`
	Text       design.TextOverrides `json:"text"`
	State      *design.DesignState  `json:"designState"`
}

func (a *App) AddLayer(w http.ResponseWriter, r *http.Request) {
	side, err := sideParam(r)
	if err != nil {
		a.reject(w, r, err, "design")
		return
	}
	var req addLayerRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err, "design")
		return
	}
	a.updateDesign(w, r, func(session *domain.Session, doc design.Document) (design.Document, error) {
		if doc.LayerCount(side) >= design.MaxLayersPerSide {
			return doc, conflict("layer_limit", "%s already has %d layers", side, design.MaxLayersPerSide)
		}
		var next design.Document
		switch req.Kind {
		case design.KindText:
			next = doc.AddTextLayer(side, req.Text)
		case design.KindImage, "":
			if req.ArtifactID != "" {
				artifact, err := a.Artifacts.GetByID(r.Context(), req.ArtifactID)
				if errors.Is(err, domain.ErrNotFound) {
					return doc, badRequest("artifact %s not found", req.ArtifactID)
				}
				if err != nil {
					return doc, err
				}
				if artifact.SessionID != session.ID {
					return doc, badRequest("artifact %s belongs to another session", req.ArtifactID)
				}
			}
			next = doc.AddLayer(side, req.ArtifactID)
		default:
			return doc, badRequest("unknown layer kind %q", req.Kind)
		}
		if req.State != nil {
			if top, ok := next.TopLayer(side); ok {
				next = next.UpdateLayerDesignState(side, top.ID, *req.State)
			}
		}
		return next, nil
	})
}

type patchLayerRequest struct {
	DesignState *design.DesignState   `json:"designState"`
	Text        *design.TextOverrides `json:"text"`
	Command     *design.Command       `json:"command"`
}

func (a *App) PatchLayer(w http.ResponseWriter, r *http.Request) {
	side, err := sideParam(r)
	if err != nil {
		a.reject(w, r, err, "design")
		return
	}
	layerID := chi.URLParam(r, "layerID")
	var req patchLayerRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err, "design")
		return
	}
	a.updateDesign(w, r, func(_ *domain.Session, doc design.Document) (design.Document, error) {
		if _, ok := doc.Layer(side, layerID); !ok {
			return doc, layerNotFound(layerID)
		}
		next := doc
		if req.DesignState != nil {
			next = next.UpdateLayerDesignState(side, layerID, *req.DesignState)
		}
		if req.Command != nil {
			next = next.ApplyCommandToLayer(side, layerID, *req.Command)
		}
		if req.Text != nil {
			next = next.UpdateTextLayerProps(side, layerID, *req.Text)
		}
		return next, nil
	})
}

func (a *App) DeleteLayer(w http.ResponseWriter, r *http.Request) {
	side, err := sideParam(r)
	if err != nil {
		a.reject(w, r, err, "design")
		return
	}
	layerID := chi.URLParam(r, "layerID")
	a.updateDesign(w, r, func(_ *domain.Session, doc design.Document) (design.Document, error) {
		if _, ok := doc.Layer(side, layerID); !ok {
			return doc, layerNotFound(layerID)
		}
		return doc.RemoveLayer(side, layerID), nil
	})
}

type commandRequest struct {
	Side      string          `json:"side"`
	LayerID   string          `json:"layerId"`
	Command   *design.Command `json:"command"`
	Directive string          `json:"directive"`
}

// ApplyCommand runs a structured command, or a free-text directive, against
// one layer. Without a layer id the top layer of the side is used.
func (a *App) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err, "design")
		return
	}
	var cmd design.Command
	switch {
	case req.Command != nil:
		cmd = *req.Command
	case req.Directive != "":
		parsed, ok := design.ParseDirective(req.Directive)
		if !ok {
			a.error(w, http.StatusUnprocessableEntity, "not_a_placement", "message is not a placement instruction")
			return
		}
		cmd = parsed
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "command or directive is required")
		return
	}
	a.updateDesign(w, r, func(_ *domain.Session, doc design.Document) (design.Document, error) {
		return applyToLayer(doc, req.Side, req.LayerID, cmd)
	})
}

func applyToLayer(doc design.Document, sideName, layerID string, cmd design.Command) (design.Document, error) {
	side := doc.ActiveSide
	if sideName != "" {
		parsed, ok := design.ParseSide(sideName)
		if !ok {
			return doc, badRequest("unknown side %q", sideName)
		}
		side = parsed
	}
	if layerID == "" {
		top, ok := doc.TopLayer(side)
		if !ok {
			return doc, conflict("no_layer", "%s has no layer to move", side)
		}
		layerID = top.ID
	} else if _, ok := doc.Layer(side, layerID); !ok {
		return doc, layerNotFound(layerID)
	}
	return doc.ApplyCommandToLayer(side, layerID, cmd), nil
}
