package ai

import (
	"context"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gemchat/backend/internal/config"
	"github.com/gemchat/backend/internal/model/chat"
)

// ChainCompleter runs completions through an eino chain: template then chat model.
type ChainCompleter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkCompleter builds a ChainCompleter backed by a Volcengine Ark chat model.
func NewArkCompleter(ctx context.Context, cfg config.AIConfig) (*ChainCompleter, error) {
	if len(cfg.Models) == 0 {
		return nil, errors.New("ark completer needs at least one model")
	}

	var temperature, topP *float32
	if cfg.Temperature != nil {
		v := float32(*cfg.Temperature)
		temperature = &v
	}
	if cfg.TopP != nil {
		v := float32(*cfg.TopP)
		topP = &v
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.ArkBaseURL,
		Region:      cfg.ArkRegion,
		APIKey:      cfg.ArkAPIKey,
		AccessKey:   cfg.ArkAccessKey,
		SecretKey:   cfg.ArkSecretKey,
		Model:       cfg.Models[0],
		MaxTokens:   cfg.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ark chat model")
	}

	return NewChainCompleter(ctx, chatModel)
}

// NewChainCompleter compiles the history + query chain around chatModel.
func NewChainCompleter(ctx context.Context, chatModel model.BaseChatModel) (*ChainCompleter, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile chat chain")
	}

	return &ChainCompleter{chain: runnable}, nil
}

// Complete invokes the chain with the selected model.
func (c *ChainCompleter) Complete(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"history": toSchemaHistory(req.History),
		"query":   req.Prompt,
	}

	response, err := c.chain.Invoke(ctx, input, compose.WithChatModelOption(model.WithModel(req.Model)))
	if err != nil {
		return "", errors.Wrapf(err, "chat chain %s", req.Model)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", errors.Wrapf(ErrEmptyResponse, "chat chain %s", req.Model)
	}

	log.Debug().Str("model", req.Model).Int("history", len(req.History)).Int("length", len(response.Content)).Msg("chain reply")
	return response.Content, nil
}

func toSchemaHistory(messages []chat.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
