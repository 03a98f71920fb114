package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"tailor/internal/compositor"
	"tailor/internal/domain"
	"tailor/internal/pipeline"
	"tailor/internal/storage"
)

const defaultMaxUploadBytes = 15 << 20

// App holds what the HTTP handlers need. Handlers only touch the design
// document and enqueue jobs; all heavy work runs in the worker.
type App struct {
	Sessions   domain.SessionRepository
	Artifacts  domain.ArtifactRepository
	Jobs       domain.JobRepository
	Messages   domain.MessageRepository
	Store      storage.AssetStore
	Enqueuer   *pipeline.Enqueuer
	Compositor *compositor.Compositor
	Resolver   pipeline.ArtifactResolver
	Logger     zerolog.Logger

	MaxUploadBytes int64
}

type Options struct {
	Sessions  domain.SessionRepository
	Artifacts domain.ArtifactRepository
	Jobs      domain.JobRepository
	Messages  domain.MessageRepository
	Store     storage.AssetStore
	Enqueuer  *pipeline.Enqueuer
	Logger    zerolog.Logger
}

func NewApp(opts Options) *App {
	resolver := pipeline.ArtifactResolver{Artifacts: opts.Artifacts, Store: opts.Store}
	return &App{
		Sessions:       opts.Sessions,
		Artifacts:      opts.Artifacts,
		Jobs:           opts.Jobs,
		Messages:       opts.Messages,
		Store:          opts.Store,
		Enqueuer:       opts.Enqueuer,
		Compositor:     compositor.New(resolver, opts.Logger),
		Resolver:       resolver,
		Logger:         opts.Logger,
		MaxUploadBytes: defaultMaxUploadBytes,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, errorResponse{Error: kind, Message: msg})
}

// fail maps domain sentinels onto status codes. Anything unexpected is
// logged and hidden behind a 500.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", what+" not found")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnsupportedAsset):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_asset", err.Error())
	default:
		a.log(r).Error().Err(err).Str("what", what).Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load "+what)
	}
}

// log prefers the request-scoped logger installed by the middleware.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: decode body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
