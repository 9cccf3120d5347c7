package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gemchat/backend/internal/handler/chat"
	"github.com/gemchat/backend/internal/handler/settings"
	"github.com/gemchat/backend/internal/handler/speech"
	"github.com/gemchat/backend/internal/handler/stream"
	"github.com/gemchat/backend/internal/handler/ui"
	middlewarePkg "github.com/gemchat/backend/internal/middleware"
	"github.com/gemchat/backend/internal/model/catalog"
	chatService "github.com/gemchat/backend/internal/service/chat"
	speechService "github.com/gemchat/backend/internal/service/speech"
	"github.com/gemchat/backend/internal/service/turn"
	"github.com/gemchat/backend/pkg/utils"
)

// Services bundles what the HTTP layer depends on. Dictation is nil when no
// speech credentials are configured.
type Services struct {
	Catalog    catalog.Store
	Chat       *chatService.Service
	Controller *turn.Controller
	Dictation  speechService.Transcriber
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	ui.New().RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		settings.New(svc.Catalog, svc.Dictation != nil).RegisterRoutes(api)
		chat.New(svc.Chat, svc.Controller, svc.Dictation).RegisterRoutes(api)
		stream.New(svc.Chat, svc.Controller).RegisterRoutes(api)

		ws := speech.NewWebSocketHandler(svc.Dictation, svc.Chat, svc.Controller)
		speech.New(svc.Dictation).RegisterRoutes(api, ws)
	})

	return r
}
