package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gemchat/backend/internal/model/chat"
	speechmodel "github.com/gemchat/backend/internal/model/speech"
	chatservice "github.com/gemchat/backend/internal/service/chat"
	speechservice "github.com/gemchat/backend/internal/service/speech"
	"github.com/gemchat/backend/internal/service/turn"
)

const readTimeout = 60 * time.Second

// WebSocketHandler runs chat turns over a websocket so a client can stream
// recorded audio and receive the transcript and reply on one connection.
type WebSocketHandler struct {
	dictation     speechservice.Transcriber
	chatSvc       *chatservice.Service
	controller    *turn.Controller
	upgrader      websocket.Upgrader
	maxAudioBytes int
}

// NewWebSocketHandler creates the voice websocket handler. dictation may be nil,
// in which case only text messages are accepted.
func NewWebSocketHandler(dictation speechservice.Transcriber, chatSvc *chatservice.Service, controller *turn.Controller) *WebSocketHandler {
	return &WebSocketHandler{
		dictation:     dictation,
		chatSvc:       chatSvc,
		controller:    controller,
		maxAudioBytes: maxUploadSize,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes mounts the websocket endpoint.
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AudioMessage carries one chunk of a recording. The turn runs once IsFinal is set.
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
	Format    string `json:"format"`
	Language  string `json:"language"`
	IsFinal   bool   `json:"isFinal"`
}

// TextMessage is a typed utterance.
type TextMessage struct {
	Text string `json:"text"`
}

// ConfigMessage changes the model or dictation language for later turns.
type ConfigMessage struct {
	Model    string `json:"model"`
	Language string `json:"language"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	session     *chat.Session
	model       string
	language    string
	audioFormat string
	buffer      bytes.Buffer
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", session.ID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// audio arrives base64 encoded inside a JSON envelope
	conn.SetReadLimit(int64(h.maxAudioBytes)*4/3 + 4096)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	state := &connectionState{session: session}
	log.Info().Str("session", session.ID).Msg("voice websocket connected")

	h.send(conn, session.ID, "connected", map[string]any{
		"dictation": h.dictation != nil,
		"messages":  len(session.All()),
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", session.ID).Msg("websocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, state, msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg inboundMessage) {
	switch msg.Type {
	case "audio":
		h.handleAudioMessage(ctx, conn, state, msg.Data)
	case "text":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			h.sendError(conn, state, "invalid text payload")
			return
		}
		h.runTurn(ctx, conn, state, turn.Input{Text: text.Text})
	case "config":
		h.applyConfig(conn, state, msg.Data)
	default:
		h.sendError(conn, state, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) applyConfig(conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(conn, state, "invalid config payload")
		return
	}

	if model := strings.TrimSpace(cfg.Model); model != "" {
		option, err := h.controller.ResolveModel(model)
		if err != nil {
			h.sendError(conn, state, err.Error())
			return
		}
		state.model = option.ID
	}
	if cfg.Language != "" {
		state.language = cfg.Language
	}

	h.send(conn, state.session.ID, "config", map[string]string{
		"model":    state.model,
		"language": state.language,
	})
}

func (h *WebSocketHandler) handleAudioMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	if h.dictation == nil {
		h.sendError(conn, state, speechservice.ErrDictationUnavailable.Error())
		return
	}

	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		h.sendError(conn, state, "invalid audio payload")
		return
	}

	if state.buffer.Len()+len(audio.AudioData) > h.maxAudioBytes {
		state.buffer.Reset()
		h.sendError(conn, state, "recording too large")
		return
	}
	state.buffer.Write(audio.AudioData)
	if audio.Format != "" {
		state.audioFormat = audio.Format
	}
	if audio.Language != "" {
		state.language = audio.Language
	}
	if !audio.IsFinal {
		return
	}

	recording := bytes.NewReader(append([]byte(nil), state.buffer.Bytes()...))
	state.buffer.Reset()
	if recording.Len() == 0 {
		return
	}

	resp, err := h.dictation.Transcribe(ctx, &speechmodel.ASRRequest{
		SessionID: state.session.ID,
		AudioData: recording,
		Format:    state.audioFormat,
		Language:  state.language,
	})
	if err != nil {
		log.Warn().Err(err).Str("session", state.session.ID).Msg("websocket dictation failed")
		if errors.Is(err, speechservice.ErrUnsupportedFormat) {
			h.sendError(conn, state, err.Error())
			return
		}
		h.sendError(conn, state, "speech recognition failed")
		return
	}

	h.send(conn, state.session.ID, "transcript", map[string]any{
		"text":       resp.Text,
		"confidence": resp.Confidence,
	})
	h.runTurn(ctx, conn, state, turn.Input{Voice: resp.Text})
}

func (h *WebSocketHandler) runTurn(ctx context.Context, conn *websocket.Conn, state *connectionState, in turn.Input) {
	result, err := h.controller.HandleTurn(ctx, state.session, in, state.model)
	if err != nil {
		h.sendError(conn, state, err.Error())
		return
	}

	switch result.Status {
	case turn.StatusSkipped:
		h.send(conn, state.session.ID, "skipped", nil)
	case turn.StatusFailed:
		h.send(conn, state.session.ID, "error", map[string]string{
			"utterance": result.Utterance,
			"error":     result.Err.UserMessage(),
		})
	default:
		h.send(conn, state.session.ID, "reply", map[string]string{
			"utterance": result.Utterance,
			"reply":     result.Reply,
			"model":     result.Model,
		})
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, sessionID, kind string, data interface{}) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("websocket write failed")
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, state *connectionState, message string) {
	h.send(conn, state.session.ID, "error", map[string]string{"error": message})
}
