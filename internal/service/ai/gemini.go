package ai

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/gemchat/backend/internal/model/chat"
)

// geminiModelRole is the role name Gemini expects for assistant turns.
const geminiModelRole = "model"

// GeminiCompleter talks to the Google Gemini API.
type GeminiCompleter struct {
	client *genai.Client
	gen    GenerationConfig
}

// NewGeminiCompleter creates a client authenticated with apiKey.
func NewGeminiCompleter(ctx context.Context, apiKey string, gen GenerationConfig) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}
	return &GeminiCompleter{client: client, gen: gen}, nil
}

// Close releases the underlying connection.
func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}

// Complete starts a chat seeded with the prior history and sends the prompt.
func (g *GeminiCompleter) Complete(ctx context.Context, req Request) (string, error) {
	m := g.client.GenerativeModel(req.Model)
	applyGeneration(m, g.gen)

	cs := m.StartChat()
	cs.History = toGeminiHistory(req.History)

	resp, err := cs.SendMessage(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", errors.Wrapf(err, "gemini %s", req.Model)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", errors.Wrapf(err, "gemini %s", req.Model)
	}

	log.Debug().Str("model", req.Model).Int("history", len(req.History)).Int("length", len(text)).Msg("gemini reply")
	return text, nil
}

func applyGeneration(m *genai.GenerativeModel, gen GenerationConfig) {
	if gen.Temperature != nil {
		m.SetTemperature(float32(*gen.Temperature))
	}
	if gen.TopP != nil {
		m.SetTopP(float32(*gen.TopP))
	}
	if gen.MaxTokens != nil {
		m.SetMaxOutputTokens(int32(*gen.MaxTokens))
	}
}

func toGeminiHistory(messages []chat.Message) []*genai.Content {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := string(chat.RoleUser)
		if msg.Role == chat.RoleAssistant {
			role = geminiModelRole
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
