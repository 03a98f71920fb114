package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tailor/internal/http/handlers"
	"tailor/internal/middleware"
)

type Options struct {
	Logger         zerolog.Logger
	Limiter        middleware.Limiter
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	// StaticDir, when set, is served under /static for the local file store.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.RequestID(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
		middleware.Logger(opts.Logger),
	)

	r.Get("/v1/healthz", app.Health)
	if opts.StaticDir != "" {
		r.Handle("/static/*", stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(opts.StaticDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(middleware.RateLimit(opts.Limiter, opts.Logger))
		}

		r.Post("/sessions", app.CreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", app.GetSession)

			r.Route("/design", func(r chi.Router) {
				r.Get("/", app.GetDesign)
				r.Put("/", app.PutDesign)
				r.Put("/active-side", app.SetActiveSide)
				r.Post("/commands", app.ApplyCommand)
				r.Post("/{side}/layers", app.AddLayer)
				r.Patch("/{side}/layers/{layerID}", app.PatchLayer)
				r.Delete("/{side}/layers/{layerID}", app.DeleteLayer)
			})
			r.Get("/preview/{side}", app.Preview)

			r.Get("/messages", app.ListMessages)
			r.Post("/messages", app.PostMessage)
			r.Post("/uploads", app.Upload)
			r.Get("/artifacts", app.ListArtifacts)

			r.Post("/jobs/normalize", app.EnqueueNormalize)
			r.Post("/jobs/product", app.EnqueueProduct)
		})

		r.Get("/jobs/{jobID}", app.GetJob)
		r.Get("/jobs/{jobID}/print-files", app.PrintFiles)

		r.Get("/artifacts/{artifactID}", app.GetArtifact)
		r.Get("/artifacts/{artifactID}/content", app.ArtifactContent)
	})

	return r
}
