package speech

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	speechmodel "github.com/gemchat/backend/internal/model/speech"
	speechservice "github.com/gemchat/backend/internal/service/speech"
	"github.com/gemchat/backend/pkg/utils"
)

const maxUploadSize = 32 << 20

// Handler exposes the dictation collaborator over HTTP.
type Handler struct {
	dictation speechservice.Transcriber
}

// New creates a speech handler. A nil dictation service makes every
// transcription request answer 503.
func New(dictation speechservice.Transcriber) *Handler {
	return &Handler{dictation: dictation}
}

// RegisterRoutes mounts the speech routes. ws may be nil.
func (h *Handler) RegisterRoutes(r chi.Router, ws *WebSocketHandler) {
	r.Route("/speech", func(sr chi.Router) {
		sr.Post("/transcribe", h.handleTranscribe)
		sr.Get("/health", h.handleHealth)
		if ws != nil {
			ws.RegisterWebSocketRoutes(sr)
		}
	})
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if h.dictation == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, speechservice.ErrDictationUnavailable.Error())
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		sessionID = "default"
	}

	resp, err := h.dictation.Transcribe(r.Context(), &speechmodel.ASRRequest{
		SessionID: sessionID,
		AudioData: file,
		Format:    InferAudioFormat(header.Filename),
		Language:  strings.TrimSpace(r.FormValue("language")),
	})
	if err != nil {
		switch {
		case errors.Is(err, speechservice.ErrDictationUnavailable):
			utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
			return
		case errors.Is(err, speechservice.ErrUnsupportedFormat):
			utils.RespondError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		log.Warn().Err(err).Str("session", sessionID).Msg("speech recognition failed")
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if h.dictation == nil {
		status = "disabled"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"service": "speech",
	})
}

// InferAudioFormat guesses the container format from an upload's file name.
func InferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3", ".wav", ".webm", ".m4a", ".aac", ".ogg", ".pcm":
		return strings.TrimPrefix(ext, ".")
	default:
		return "wav"
	}
}
