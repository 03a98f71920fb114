package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tailor/internal/design"
	"tailor/internal/domain"
)

type postMessageRequest struct {
	Content string `json:"content"`
	// ArtifactID asks for an edit of an existing artwork instead of a new one.
	ArtifactID string `json:"artifactId"`
	Side       string `json:"side"`
}

type messageDTO struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	ArtifactID string    `json:"artifactId,omitempty"`
	JobID      string    `json:"jobId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type postMessageResponse struct {
	Message messageDTO       `json:"message"`
	Kind    string           `json:"kind"`
	Design  *design.Document `json:"design,omitempty"`
	JobID   string           `json:"jobId,omitempty"`
}

func toMessageDTO(m domain.Message) messageDTO {
	return messageDTO{
		ID:         m.ID,
		Role:       string(m.Role),
		Content:    m.Content,
		ArtifactID: m.ArtifactID,
		JobID:      m.JobID,
		CreatedAt:  m.CreatedAt,
	}
}

// PostMessage records a chat message. Placement instructions move the top
// layer of the active side right away; anything else becomes an artwork
// generation job.
func (a *App) PostMessage(w http.ResponseWriter, r *http.Request) {
	session, err := a.session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	var req postMessageRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, r, err, "message")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "content is required")
		return
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	doc := design.Migrate(session.DesignState)

	if cmd, ok := design.ParseDirective(content); ok && req.ArtifactID == "" {
		if _, hasLayer := doc.TopLayer(doc.ActiveSide); hasLayer {
			next, err := applyToLayer(doc, req.Side, "", cmd)
			if err != nil {
				a.reject(w, r, err, "design")
				return
			}
			if err := a.saveDocument(r, session.ID, next); err != nil {
				a.fail(w, r, err, "design")
				return
			}
			if err := a.Messages.Create(r.Context(), &msg); err != nil {
				a.fail(w, r, err, "message")
				return
			}
			a.json(w, http.StatusOK, postMessageResponse{Message: toMessageDTO(msg), Kind: "placement", Design: &next})
			return
		}
	}

	// The user's line must be stored before a worker can answer it, so the
	// job id is picked here and the job queued afterwards.
	msg.JobID = uuid.NewString()
	if err := a.Messages.Create(r.Context(), &msg); err != nil {
		a.fail(w, r, err, "message")
		return
	}
	job, err := a.Enqueuer.Enqueue(r.Context(), msg.JobID, session.ID, domain.JobTypeGenerateArtwork, domain.GenerateInput{
		Prompt:           content,
		SourceArtifactID: req.ArtifactID,
		Side:             req.Side,
	})
	if err != nil {
		a.fail(w, r, err, "job")
		return
	}
	a.json(w, http.StatusAccepted, postMessageResponse{Message: toMessageDTO(msg), Kind: "generation", JobID: job.ID})
}

func (a *App) ListMessages(w http.ResponseWriter, r *http.Request) {
	session, err := a.session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	msgs, err := a.Messages.ListBySession(r.Context(), session.ID, limit)
	if err != nil {
		a.fail(w, r, err, "messages")
		return
	}
	items := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, toMessageDTO(m))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) saveDocument(r *http.Request, sessionID string, doc design.Document) error {
	raw, err := doc.MarshalJSON()
	if err != nil {
		return err
	}
	return a.Sessions.SaveDesignState(r.Context(), sessionID, raw)
}
