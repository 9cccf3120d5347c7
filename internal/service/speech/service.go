package speech

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gemchat/backend/internal/config"
	"github.com/gemchat/backend/internal/model/speech"
)

// ErrDictationUnavailable is returned when no speech credentials are configured.
var ErrDictationUnavailable = errors.New("speech dictation is not configured")

// ErrUnsupportedFormat is returned for audio containers the recogniser cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Transcriber turns one recording into one transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
}

// Service is the dictation collaborator: every call yields at most one utterance.
type Service struct {
	config *speech.SpeechConfig
	client Transcriber
}

// NewService creates a dictation service backed by the Volcengine ASR client.
func NewService(config *speech.SpeechConfig) *Service {
	return NewServiceWithClient(config, NewVolcengineASRClient(config))
}

// NewServiceWithClient wires an arbitrary Transcriber.
func NewServiceWithClient(config *speech.SpeechConfig, client Transcriber) *Service {
	return &Service{config: config, client: client}
}

// Transcribe fills in defaults, applies the configured timeout and returns the
// trimmed transcript.
func (s *Service) Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if s == nil || s.client == nil {
		return nil, ErrDictationUnavailable
	}

	if req.SessionID == "" {
		req.SessionID = "default"
	}
	if req.Language == "" {
		req.Language = s.config.Language
	}
	if req.Format == "" {
		req.Format = "wav"
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.Timeout)*time.Second)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.client.Transcribe(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("session", req.SessionID).Msg("transcription failed")
		return nil, err
	}
	resp.Text = strings.TrimSpace(resp.Text)

	log.Info().
		Str("session", req.SessionID).
		Int("chars", len(resp.Text)).
		Dur("elapsed", time.Since(start)).
		Msg("transcription finished")
	return resp, nil
}

// TranscribeBuffer is Transcribe for an in-memory recording.
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speech.ASRResponse, error) {
	return s.Transcribe(ctx, &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audio),
		Format:    format,
		Language:  language,
	})
}

// NewServiceFromConfig returns a dictation service, or nil when no
// credentials are configured.
func NewServiceFromConfig(cfg config.SpeechConfig) Transcriber {
	if !cfg.Enabled {
		return nil
	}
	return NewService(&speech.SpeechConfig{
		AppID:          cfg.AppID,
		AccessToken:    cfg.AccessToken,
		ConcurrentMode: cfg.Concurrent,
		Endpoint:       cfg.Endpoint,
		Language:       cfg.Language,
		Timeout:        cfg.Timeout,
	})
}
