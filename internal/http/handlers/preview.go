package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tailor/internal/compositor"
	"tailor/internal/design"
)

const (
	maxPreviewWidth = 1200
	previewDPI      = 72
)

// Preview renders one side of the current design as a PNG. The default
// width is the reference width text sizes are authored against, so a
// preview shows type at its authored size.
func (a *App) Preview(w http.ResponseWriter, r *http.Request) {
	side, err := sideParam(r)
	if err != nil {
		a.reject(w, r, err, "preview")
		return
	}
	session, err := a.session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		a.fail(w, r, err, "session")
		return
	}
	width, _ := strconv.Atoi(r.URL.Query().Get("width"))
	if width <= 0 {
		width = compositor.PreviewReferenceWidth
	}
	width = min(width, maxPreviewWidth)
	area := design.PrintArea{Width: width, Height: width * 4 / 3, DPI: previewDPI}

	doc := design.Migrate(session.DesignState)
	comp := a.Compositor.WithResolver(a.Resolver.ForSession(session.ID))
	img, err := comp.Composite(r.Context(), doc.SortedLayers(side), area)
	if err != nil {
		a.fail(w, r, err, "preview")
		return
	}
	data, err := compositor.EncodePNG(img, area.DPI)
	if err != nil {
		a.fail(w, r, err, "preview")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
