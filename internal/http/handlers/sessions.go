package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tailor/internal/design"
	"tailor/internal/domain"
	"tailor/internal/middleware"
)

type createSessionRequest struct {
	Locale string `json:"locale"`
}

type sessionResponse struct {
	ID        string          `json:"id"`
	Locale    string          `json:"locale"`
	Design    design.Document `json:"design"`
	ProductID *int64          `json:"productId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		Locale:    s.Locale,
		Design:    design.Migrate(s.DesignState),
		ProductID: s.ProductID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			a.fail(w, r, err, "session")
			return
		}
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = middleware.LocaleFromContext(r.Context())
	}
	doc, err := json.Marshal(design.EmptyDocument())
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	session := &domain.Session{ID: uuid.NewString(), Locale: locale, DesignState: doc}
	if err := a.Sessions.Create(r.Context(), session); err != nil {
		a.fail(w, r, err, "session")
		return
	}
	a.json(w, http.StatusCreated, toSessionResponse(session))
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	a.json(w, http.StatusOK, toSessionResponse(session))
}

func (a *App) session(ctx context.Context, id string) (*domain.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: session id %q", domain.ErrNotFound, id)
	}
	return a.Sessions.GetByID(ctx, id)
}
