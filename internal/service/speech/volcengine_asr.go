package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gemchat/backend/internal/model/speech"
)

const (
	// 16 kHz, 16 bit, mono: 200 ms of audio.
	defaultChunkSize     = 6400
	defaultChunkInterval = 200 * time.Millisecond
	successCode          = 20000000
)

// VolcengineASRClient transcribes one recording over the streaming ASR websocket.
type VolcengineASRClient struct {
	config        *speech.SpeechConfig
	dialer        *websocket.Dialer
	chunkSize     int
	chunkInterval time.Duration
}

// NewVolcengineASRClient creates a client for the configured endpoint.
func NewVolcengineASRClient(config *speech.SpeechConfig) *VolcengineASRClient {
	return &VolcengineASRClient{
		config:        config,
		dialer:        &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		chunkSize:     defaultChunkSize,
		chunkInterval: defaultChunkInterval,
	}
}

type asrSessionParams struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text     string `json:"text"`
	Definite bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info"`
}

// Transcribe sends the whole recording and waits for the final transcript.
func (c *VolcengineASRClient) Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio data to send")
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID(c.config))
	header.Set("X-Api-Connect-Id", req.SessionID)

	conn, resp, err := c.dialer.DialContext(ctx, c.config.Endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ASR websocket: %w", err)
	}
	defer conn.Close()

	if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
		log.Debug().Str("session", req.SessionID).Str("logid", logid).Msg("asr connected")
	}

	if err := c.sendConfig(conn, params); err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// closing the socket is the only way to unblock a pending read
	stop := context.AfterFunc(sendCtx, func() { _ = conn.Close() })
	defer stop()

	sendErrCh := make(chan error, 1)
	go func() {
		err := c.sendAudio(sendCtx, conn, audio)
		if err != nil {
			cancel()
		}
		sendErrCh <- err
	}()

	result, recvErr := c.receiveTranscript(conn, req.SessionID)
	cancel()
	sendErr := <-sendErrCh

	if recvErr != nil {
		if sendErr != nil && !errors.Is(sendErr, context.Canceled) {
			return nil, fmt.Errorf("failed to send audio data: %w", sendErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, recvErr
	}
	return result, nil
}

// audioLayout maps a container name to the format and codec fields the ASR
// service expects.
func audioLayout(format string) (string, string, error) {
	switch strings.ToLower(format) {
	case "", "wav":
		return "wav", "raw", nil
	case "pcm":
		return "pcm", "raw", nil
	case "ogg", "opus":
		return "ogg", "opus", nil
	case "mp3":
		return "mp3", "raw", nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func (c *VolcengineASRClient) buildParams(req *speech.ASRRequest) (*asrSessionParams, error) {
	format, codec, err := audioLayout(req.Format)
	if err != nil {
		return nil, err
	}

	params := &asrSessionParams{}
	params.User.UID = req.SessionID

	params.Audio.Format = format
	params.Audio.Codec = codec
	params.Audio.Language = req.Language
	if params.Audio.Language == "" {
		params.Audio.Language = c.config.Language
	}
	// sample layout only describes uncompressed audio
	if codec == "raw" && format != "mp3" {
		params.Audio.Rate = 16000
		params.Audio.Bits = 16
		params.Audio.Channel = 1
	}

	params.Request.ModelName = "bigmodel"
	params.Request.EnableITN = true
	params.Request.EnablePunc = true
	params.Request.ShowUtterances = true
	params.Request.ResultType = "full"
	params.Request.EndWindowSize = 800

	return params, nil
}

func (c *VolcengineASRClient) sendConfig(conn *websocket.Conn, params *asrSessionParams) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	payload, err := compress(raw, GzipCompression)
	if err != nil {
		return fmt.Errorf("failed to compress ASR request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, newConfigFrame(payload).marshal()); err != nil {
		return fmt.Errorf("failed to send ASR request: %w", err)
	}
	return nil
}

// sendAudio streams the recording in real-time sized chunks. The config frame
// holds sequence 1, so audio starts at 2.
func (c *VolcengineASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	sequence := int32(2)
	for start := 0; start < len(audio); start += c.chunkSize {
		end := min(start+c.chunkSize, len(audio))
		last := end == len(audio)

		payload, err := compress(audio[start:end], GzipCompression)
		if err != nil {
			return fmt.Errorf("failed to compress audio chunk: %w", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, newAudioFrame(payload, sequence, last).marshal()); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
		if last {
			return nil
		}
		sequence++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.chunkInterval):
		}
	}
	return nil
}

func (c *VolcengineASRClient) receiveTranscript(conn *websocket.Conn, sessionID string) (*speech.ASRResponse, error) {
	var (
		text     string
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read ASR response: %w", err)
		}

		f, err := unmarshalFrame(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ASR frame: %w", err)
		}

		switch f.Type {
		case ErrorMessage:
			payload, _ := decompress(f.Payload, f.Compression)
			return nil, fmt.Errorf("ASR error %d: %s", f.ErrorCode, string(payload))

		case FullServerResponse:
			payload, err := decompress(f.Payload, f.Compression)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress ASR payload: %w", err)
			}

			var msg asrServerMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				log.Warn().Err(err).Str("session", sessionID).Msg("unreadable asr payload")
				continue
			}
			if msg.Code != 0 && msg.Code != successCode {
				return nil, fmt.Errorf("ASR API error %d: %s", msg.Code, msg.Message)
			}

			if candidate := transcriptText(msg); candidate != "" {
				text = candidate
			}
			if msg.AudioInfo.Duration > 0 {
				duration = msg.AudioInfo.Duration
			}

			if f.isLast() || msg.Sequence < 0 {
				return &speech.ASRResponse{
					SessionID:  sessionID,
					Text:       text,
					Confidence: estimateConfidence(text),
					Duration:   duration,
					RequestID:  sessionID,
					CreatedAt:  time.Now(),
				}, nil
			}
		}
	}
}

func transcriptText(msg asrServerMessage) string {
	if msg.Result.Text != "" {
		return msg.Result.Text
	}
	parts := make([]string, 0, len(msg.Result.Utterances))
	for _, u := range msg.Result.Utterances {
		if u.Text != "" {
			parts = append(parts, u.Text)
		}
	}
	return strings.Join(parts, " ")
}

func estimateConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.95
}
