package ai

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gemchat/backend/internal/model/chat"
)

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("model returned no text")

// Request is one non-streaming completion call.
type Request struct {
	Model   string
	History []chat.Message // prior turns, oldest first, excluding Prompt
	Prompt  string
}

// Completer sends a conversation to a hosted model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// GenerationConfig carries optional sampling parameters shared by every backend.
type GenerationConfig struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}
