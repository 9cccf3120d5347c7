package chat

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	speechhandler "github.com/gemchat/backend/internal/handler/speech"
	"github.com/gemchat/backend/internal/model/chat"
	speechmodel "github.com/gemchat/backend/internal/model/speech"
	chatservice "github.com/gemchat/backend/internal/service/chat"
	speechservice "github.com/gemchat/backend/internal/service/speech"
	"github.com/gemchat/backend/internal/service/turn"
	"github.com/gemchat/backend/pkg/utils"
)

const maxUploadSize = 32 << 20

// Handler serves the chat log and turn submission.
type Handler struct {
	chatSvc    *chatservice.Service
	controller *turn.Controller
	dictation  speechservice.Transcriber
}

// New creates the chat handler. dictation may be nil.
func New(chatSvc *chatservice.Service, controller *turn.Controller, dictation speechservice.Transcriber) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		controller: controller,
		dictation:  dictation,
	}
}

// RegisterRoutes mounts the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Delete("/", h.handleDeleteSession)
		sr.Get("/messages", h.handleListMessages)
		sr.Delete("/messages", h.handleClearMessages)
		sr.Post("/turns", h.handleTurn)
	})
}

// MessageView is a message as rendered in the chat log.
type MessageView struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
	Avatar  string    `json:"avatar"`
}

// Views renders a transcript for display.
func Views(messages []chat.Message) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, MessageView{Role: msg.Role, Content: msg.Content, Avatar: msg.Avatar()})
	}
	return views
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type turnRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Model string `json:"model"`
}

type turnResponse struct {
	Status    turn.Status   `json:"status"`
	Utterance string        `json:"utterance,omitempty"`
	Reply     string        `json:"reply,omitempty"`
	Model     string        `json:"model"`
	Error     string        `json:"error,omitempty"`
	Messages  []MessageView `json:"messages"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.chatSvc.CreateSession(r.Context())
	utils.RespondJSON(w, http.StatusCreated, sessionResponse{ID: session.ID, CreatedAt: session.CreatedAt})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	h.controller.Forget(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"id":       sessionID,
		"messages": Views(messages),
	})
}

func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.controller.Clear(session)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	var payload turnRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		payload, err = h.decodeMultipartTurn(r, session.ID)
		if err != nil {
			respondDictationError(w, err)
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.controller.HandleTurn(r.Context(), session, turn.Input{Text: payload.Text, Voice: payload.Voice}, payload.Model)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := turnResponse{
		Status:    result.Status,
		Utterance: result.Utterance,
		Reply:     result.Reply,
		Model:     result.Model,
		Messages:  Views(session.All()),
	}
	if result.Err != nil {
		resp.Error = result.Err.UserMessage()
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

// decodeMultipartTurn reads text and model fields and, when an audio file is
// attached, transcribes it into the voice input.
func (h *Handler) decodeMultipartTurn(r *http.Request, sessionID string) (turnRequest, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return turnRequest{}, badRequestError{"failed to parse multipart form: " + err.Error()}
	}
	defer r.MultipartForm.RemoveAll()

	payload := turnRequest{
		Text:  r.FormValue("text"),
		Voice: r.FormValue("voice"),
		Model: r.FormValue("model"),
	}

	file, header, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return payload, nil
	}
	if err != nil {
		return turnRequest{}, badRequestError{"invalid audio upload"}
	}
	defer file.Close()

	if h.dictation == nil {
		return turnRequest{}, speechservice.ErrDictationUnavailable
	}

	resp, err := h.dictation.Transcribe(r.Context(), &speechmodel.ASRRequest{
		SessionID: sessionID,
		AudioData: file,
		Format:    speechhandler.InferAudioFormat(header.Filename),
		Language:  strings.TrimSpace(r.FormValue("language")),
	})
	if err != nil {
		return turnRequest{}, err
	}
	payload.Voice = resp.Text
	return payload, nil
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, turn.ErrUnknownModel):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("chat request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondDictationError(w http.ResponseWriter, err error) {
	var badReq badRequestError
	switch {
	case errors.As(err, &badReq):
		utils.RespondError(w, http.StatusBadRequest, badReq.msg)
	case errors.Is(err, speechservice.ErrDictationUnavailable):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, speechservice.ErrUnsupportedFormat):
		utils.RespondError(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		log.Warn().Err(err).Msg("dictation failed")
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
	}
}
