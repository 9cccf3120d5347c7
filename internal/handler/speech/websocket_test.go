package speech

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemchat/backend/internal/model/catalog"
	"github.com/gemchat/backend/internal/model/chat"
	"github.com/gemchat/backend/internal/service/ai"
	chatservice "github.com/gemchat/backend/internal/service/chat"
	"github.com/gemchat/backend/internal/service/turn"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, req ai.Request) (string, error) {
	return "echo: " + req.Prompt, nil
}

type wsFixture struct {
	conn    *websocket.Conn
	session *chat.Session
}

func dialVoice(t *testing.T, dictation *fakeDictation, opts ...func(*WebSocketHandler)) *wsFixture {
	t.Helper()

	chatSvc := chatservice.NewService()
	session := chatSvc.CreateSession(context.Background())
	controller := turn.NewController(echoCompleter{}, catalog.NewMemoryStore(nil, nil))

	var ws *WebSocketHandler
	if dictation != nil {
		ws = NewWebSocketHandler(dictation, chatSvc, controller)
	} else {
		ws = NewWebSocketHandler(nil, chatSvc, controller)
	}
	for _, opt := range opts {
		opt(ws)
	}

	r := chi.NewRouter()
	New(nil).RegisterRoutes(r, ws)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/speech/ws/" + session.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	connected := readMessage(t, conn)
	require.Equal(t, "connected", connected.Type)

	return &wsFixture{conn: conn, session: session}
}

type received struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketTextTurn(t *testing.T) {
	fx := dialVoice(t, nil)

	require.NoError(t, fx.conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": "Hello"}}))

	msg := readMessage(t, fx.conn)
	assert.Equal(t, "reply", msg.Type)
	assert.Equal(t, "echo: Hello", msg.Data["reply"])
	assert.Equal(t, 2, fx.session.Len())
}

func TestWebSocketAudioTurn(t *testing.T) {
	fake := &fakeDictation{text: "spoken hello"}
	fx := dialVoice(t, fake)

	require.NoError(t, fx.conn.WriteJSON(map[string]any{"type": "audio", "data": map[string]any{"audioData": []byte("part1"), "format": "pcm"}}))
	require.NoError(t, fx.conn.WriteJSON(map[string]any{"type": "audio", "data": map[string]any{"audioData": []byte("part2"), "isFinal": true}}))

	transcript := readMessage(t, fx.conn)
	assert.Equal(t, "transcript", transcript.Type)
	assert.Equal(t, "spoken hello", transcript.Data["text"])

	reply := readMessage(t, fx.conn)
	assert.Equal(t, "reply", reply.Type)
	assert.Equal(t, "echo: spoken hello", reply.Data["reply"])

	assert.Equal(t, []byte("part1part2"), fake.audio)
	assert.Equal(t, "pcm", fake.got.Format)
}

func TestWebSocketRejectsUnknownModel(t *testing.T) {
	fx := dialVoice(t, nil)

	require.NoError(t, fx.conn.WriteJSON(map[string]any{"type": "config", "data": map[string]string{"model": "gpt-4"}}))

	msg := readMessage(t, fx.conn)
	assert.Equal(t, "error", msg.Type)
	assert.Zero(t, fx.session.Len())
}

func TestWebSocketAudioWithoutDictation(t *testing.T) {
	fx := dialVoice(t, nil)

	require.NoError(t, fx.conn.WriteJSON(map[string]any{"type": "audio", "data": map[string]any{"audioData": []byte("x"), "isFinal": true}}))

	msg := readMessage(t, fx.conn)
	assert.Equal(t, "error", msg.Type)
	assert.Zero(t, fx.session.Len())
}

func TestWebSocketCapsRecordingSize(t *testing.T) {
	fake := &fakeDictation{text: "never"}
	fx := dialVoice(t, fake, func(h *WebSocketHandler) { h.maxAudioBytes = 8 })

	require.NoError(t, fx.conn.WriteJSON(map[string]any{"type": "audio", "data": map[string]any{"audioData": []byte("12345")}}))
	require.NoError(t, fx.conn.WriteJSON(map[string]any{"type": "audio", "data": map[string]any{"audioData": []byte("67890"), "isFinal": true}}))

	msg := readMessage(t, fx.conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "recording too large", msg.Data["error"])

	require.NoError(t, fx.conn.WriteJSON(map[string]any{"type": "audio", "data": map[string]any{"audioData": []byte("abc"), "isFinal": true}}))
	transcript := readMessage(t, fx.conn)
	assert.Equal(t, "transcript", transcript.Type)
	assert.Equal(t, []byte("abc"), fake.audio)
}
