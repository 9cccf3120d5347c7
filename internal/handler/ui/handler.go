package ui

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

//go:embed static/index.html
var assets embed.FS

// Handler serves the single-page chat client.
type Handler struct {
	page []byte
}

// New loads the embedded page.
func New() *Handler {
	page, err := assets.ReadFile("static/index.html")
	if err != nil {
		log.Fatal().Err(err).Msg("embedded page missing")
	}
	return &Handler{page: page}
}

// RegisterRoutes mounts GET /.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
}

func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.page); err != nil {
		log.Warn().Err(err).Msg("failed to write page")
	}
}
