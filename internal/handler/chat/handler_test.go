package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemchat/backend/internal/model/catalog"
	"github.com/gemchat/backend/internal/model/chat"
	speechmodel "github.com/gemchat/backend/internal/model/speech"
	"github.com/gemchat/backend/internal/service/ai"
	chatservice "github.com/gemchat/backend/internal/service/chat"
	speechservice "github.com/gemchat/backend/internal/service/speech"
	"github.com/gemchat/backend/internal/service/turn"
)

type stubCompleter struct {
	calls int
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, req ai.Request) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if req.Prompt == "Hello" {
		return "Hi there", nil
	}
	return "ok", nil
}

type stubDictation struct {
	text string
	lang string
	err  error
}

func (s *stubDictation) Transcribe(_ context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	s.lang = req.Language
	if s.err != nil {
		return nil, s.err
	}
	if _, err := io.ReadAll(req.AudioData); err != nil {
		return nil, err
	}
	return &speechmodel.ASRResponse{Text: s.text}, nil
}

type fixture struct {
	router    *chi.Mux
	chatSvc   *chatservice.Service
	completer *stubCompleter
}

func setupRouter(dictation speechservice.Transcriber) *fixture {
	chatSvc := chatservice.NewService()
	completer := &stubCompleter{}
	controller := turn.NewController(completer, catalog.NewMemoryStore(nil, nil))

	r := chi.NewRouter()
	New(chatSvc, controller, dictation).RegisterRoutes(r)
	return &fixture{router: r, chatSvc: chatSvc, completer: completer}
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) postTurn(t *testing.T, sessionID string, payload map[string]string) (*httptest.ResponseRecorder, turnResponse) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	rr := f.do(t, http.MethodPost, "/sessions/"+sessionID+"/turns", bytes.NewReader(raw), "application/json")
	var resp turnResponse
	if rr.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	}
	return rr, resp
}

func TestCreateSession(t *testing.T) {
	f := setupRouter(nil)

	rr := f.do(t, http.MethodPost, "/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp sessionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)

	_, err := f.chatSvc.GetSession(context.Background(), resp.ID)
	assert.NoError(t, err)
}

func TestTurnHelloScenario(t *testing.T) {
	f := setupRouter(nil)
	session := f.chatSvc.CreateSession(context.Background())

	rr, resp := f.postTurn(t, session.ID, map[string]string{"text": "Hello"})
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, turn.StatusCompleted, resp.Status)
	assert.Equal(t, "Hi there", resp.Reply)
	assert.Equal(t, "gemini-1.5-flash", resp.Model)
	assert.Equal(t, []MessageView{
		{Role: chat.RoleUser, Content: "Hello", Avatar: "👤"},
		{Role: chat.RoleAssistant, Content: "Hi there", Avatar: "🤖"},
	}, resp.Messages)
}

func TestTurnFailureIsInline(t *testing.T) {
	f := setupRouter(nil)
	f.completer.err = errors.New("service unavailable")
	session := f.chatSvc.CreateSession(context.Background())

	rr, resp := f.postTurn(t, session.ID, map[string]string{"text": "Hello"})
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, turn.StatusFailed, resp.Status)
	assert.Equal(t, "Oops! Error: service unavailable", resp.Error)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, chat.RoleUser, resp.Messages[0].Role)
}

func TestTurnBlankIsSkipped(t *testing.T) {
	f := setupRouter(nil)
	session := f.chatSvc.CreateSession(context.Background())

	rr, resp := f.postTurn(t, session.ID, map[string]string{"text": "   "})
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, turn.StatusSkipped, resp.Status)
	assert.Empty(t, resp.Messages)
	assert.Zero(t, f.completer.calls)
}

func TestTurnUnknownModel(t *testing.T) {
	f := setupRouter(nil)
	session := f.chatSvc.CreateSession(context.Background())

	rr, _ := f.postTurn(t, session.ID, map[string]string{"text": "Hello", "model": "gpt-4"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, session.Len())
}

func TestTurnUnknownSession(t *testing.T) {
	f := setupRouter(nil)

	rr, _ := f.postTurn(t, "missing", map[string]string{"text": "Hello"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTurnInvalidBody(t *testing.T) {
	f := setupRouter(nil)
	session := f.chatSvc.CreateSession(context.Background())

	rr := f.do(t, http.MethodPost, "/sessions/"+session.ID+"/turns", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListAndClearMessages(t *testing.T) {
	f := setupRouter(nil)
	session := f.chatSvc.CreateSession(context.Background())
	f.postTurn(t, session.ID, map[string]string{"text": "Hello"})

	rr := f.do(t, http.MethodGet, "/sessions/"+session.ID+"/messages", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed struct {
		Messages []MessageView `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&listed))
	assert.Len(t, listed.Messages, 2)

	rr = f.do(t, http.MethodDelete, "/sessions/"+session.ID+"/messages", nil, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, session.Len())

	rr = f.do(t, http.MethodDelete, "/sessions/missing/messages", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteSession(t *testing.T) {
	f := setupRouter(nil)
	session := f.chatSvc.CreateSession(context.Background())

	rr := f.do(t, http.MethodDelete, "/sessions/"+session.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, "/sessions/"+session.ID+"/messages", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func multipartTurn(t *testing.T, fields map[string]string, withAudio bool) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if withAudio {
		part, err := writer.CreateFormFile("audio", "clip.wav")
		require.NoError(t, err)
		_, err = part.Write([]byte("RIFF"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestMultipartTurnUsesTranscript(t *testing.T) {
	dictation := &stubDictation{text: "Hello"}
	f := setupRouter(dictation)
	session := f.chatSvc.CreateSession(context.Background())

	body, contentType := multipartTurn(t, map[string]string{"language": "en-US"}, true)
	rr := f.do(t, http.MethodPost, "/sessions/"+session.ID+"/turns", body, contentType)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp turnResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Hello", resp.Utterance)
	assert.Equal(t, "Hi there", resp.Reply)
	assert.Equal(t, "en-US", dictation.lang)
}

func TestMultipartTurnTextBeatsVoice(t *testing.T) {
	f := setupRouter(&stubDictation{text: "spoken"})
	session := f.chatSvc.CreateSession(context.Background())

	body, contentType := multipartTurn(t, map[string]string{"text": "typed"}, true)
	rr := f.do(t, http.MethodPost, "/sessions/"+session.ID+"/turns", body, contentType)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp turnResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "typed", resp.Utterance)
}

func TestMultipartTurnWithoutDictation(t *testing.T) {
	f := setupRouter(nil)
	session := f.chatSvc.CreateSession(context.Background())

	body, contentType := multipartTurn(t, nil, true)
	rr := f.do(t, http.MethodPost, "/sessions/"+session.ID+"/turns", body, contentType)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Zero(t, session.Len())
}

func TestMultipartTurnTextOnly(t *testing.T) {
	f := setupRouter(nil)
	session := f.chatSvc.CreateSession(context.Background())

	body, contentType := multipartTurn(t, map[string]string{"text": "Hello", "model": "gemini-1.5-pro"}, false)
	rr := f.do(t, http.MethodPost, "/sessions/"+session.ID+"/turns", body, contentType)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp turnResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "gemini-1.5-pro", resp.Model)
}

func TestMultipartTurnUnsupportedContainer(t *testing.T) {
	f := setupRouter(&stubDictation{err: speechservice.ErrUnsupportedFormat})
	session := f.chatSvc.CreateSession(context.Background())

	body, contentType := multipartTurn(t, nil, true)
	rr := f.do(t, http.MethodPost, "/sessions/"+session.ID+"/turns", body, contentType)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Zero(t, session.Len())
}
