package stream

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatservice "github.com/gemchat/backend/internal/service/chat"
	"github.com/gemchat/backend/internal/service/turn"
	"github.com/gemchat/backend/pkg/utils"
)

// Handler runs a chat turn and reports its progress as Server-Sent Events.
// The reply arrives as one message event since completions are not streamed.
type Handler struct {
	chatSvc    *chatservice.Service
	controller *turn.Controller
}

// New creates a stream handler.
func New(chatSvc *chatservice.Service, controller *turn.Controller) *Handler {
	return &Handler{chatSvc: chatSvc, controller: controller}
}

// RegisterRoutes mounts GET /stream/{sessionID}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// StreamResponse is the payload of every event.
type StreamResponse struct {
	SessionID string `json:"sessionId,omitempty"`
	Model     string `json:"model,omitempty"`
	Utterance string `json:"utterance,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	in := turn.Input{Text: r.URL.Query().Get("message")}
	if _, ok := turn.SelectUtterance(in); !ok {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	option, err := h.controller.ResolveModel(r.URL.Query().Get("model"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	utils.SendSSEEvent(w, flusher, "start", StreamResponse{SessionID: session.ID, Model: option.ID})

	result, err := h.controller.HandleTurn(ctx, session, in, option.ID)
	switch {
	case err != nil:
		log.Error().Err(err).Str("session", session.ID).Msg("stream turn rejected")
		utils.SendSSEEvent(w, flusher, "error", StreamResponse{SessionID: session.ID, Error: err.Error()})
	case result.Err != nil:
		utils.SendSSEEvent(w, flusher, "error", StreamResponse{
			SessionID: session.ID,
			Utterance: result.Utterance,
			Error:     result.Err.UserMessage(),
		})
	default:
		utils.SendSSEEvent(w, flusher, "message", StreamResponse{
			SessionID: session.ID,
			Model:     result.Model,
			Utterance: result.Utterance,
			Content:   result.Reply,
		})
	}

	utils.SendSSEEvent(w, flusher, "end", StreamResponse{SessionID: session.ID, Finished: true})
}
