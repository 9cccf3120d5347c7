package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gemchat/backend/internal/model/catalog"
	"github.com/gemchat/backend/pkg/utils"
)

// Handler serves the choices shown in the settings sidebar.
type Handler struct {
	catalog   catalog.Store
	dictation bool
}

// New creates the settings handler.
func New(store catalog.Store, dictation bool) *Handler {
	return &Handler{catalog: store, dictation: dictation}
}

// RegisterRoutes mounts GET /settings.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.handleSettings)
}

type settingsResponse struct {
	Models       []catalog.ModelOption `json:"models"`
	DefaultModel string                `json:"defaultModel"`
	Themes       []catalog.Theme       `json:"themes"`
	Dictation    bool                  `json:"dictation"`
}

func (h *Handler) handleSettings(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, settingsResponse{
		Models:       h.catalog.Models(),
		DefaultModel: h.catalog.DefaultModel().ID,
		Themes:       h.catalog.Themes(),
		Dictation:    h.dictation,
	})
}
