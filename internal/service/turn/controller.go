package turn

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gemchat/backend/internal/model/catalog"
	"github.com/gemchat/backend/internal/model/chat"
	"github.com/gemchat/backend/internal/service/ai"
)

// ErrUnknownModel is returned when the requested model is not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Status reports how a turn ended.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Input carries whatever the user submitted this turn. Either field may be blank.
type Input struct {
	Text  string
	Voice string
}

// SelectUtterance picks the text to send. Typed text wins over a voice
// transcript. Whitespace-only values count as blank; the chosen value is
// returned as entered.
func SelectUtterance(in Input) (string, bool) {
	if strings.TrimSpace(in.Text) != "" {
		return in.Text, true
	}
	if strings.TrimSpace(in.Voice) != "" {
		return in.Voice, true
	}
	return "", false
}

// TurnError is the single recoverable failure signal of a turn.
type TurnError struct {
	Kind  ai.Kind
	Cause error
}

func (e *TurnError) Error() string {
	return e.UserMessage()
}

func (e *TurnError) Unwrap() error {
	return e.Cause
}

// UserMessage is the text shown inline in the chat surface.
func (e *TurnError) UserMessage() string {
	return fmt.Sprintf("Oops! Error: %v", e.Cause)
}

// Result describes one handled turn.
type Result struct {
	Status    Status
	Utterance string
	Reply     string
	Model     string
	Err       *TurnError
}

// Controller runs the request/response cycle of a chat turn.
type Controller struct {
	completer    ai.Completer
	catalog      catalog.Store
	historyLimit int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customises a Controller.
type Option func(*Controller)

// WithHistoryLimit bounds the prior messages sent with each prompt. Zero or
// negative sends the whole transcript.
func WithHistoryLimit(limit int) Option {
	return func(c *Controller) {
		if limit > 0 {
			c.historyLimit = limit
		}
	}
}

// NewController wires a completion backend and the model catalog.
func NewController(completer ai.Completer, store catalog.Store, opts ...Option) *Controller {
	c := &Controller{
		completer: completer,
		catalog:   store,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveModel maps an identifier to a catalog entry. Blank selects the default.
func (c *Controller) ResolveModel(id string) (catalog.ModelOption, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return c.catalog.DefaultModel(), nil
	}
	option, ok := c.catalog.FindModel(id)
	if !ok {
		return catalog.ModelOption{}, errors.Wrapf(ErrUnknownModel, "%q", id)
	}
	return option, nil
}

// HandleTurn appends the user's utterance, asks the model for a reply and
// appends it on success. A completion failure is reported through Result.Err
// and leaves the user message in place. The returned error is reserved for
// caller mistakes (unknown model, nil session) and is raised before the
// session is touched.
func (c *Controller) HandleTurn(ctx context.Context, session *chat.Session, in Input, modelID string) (Result, error) {
	if session == nil {
		return Result{}, errors.New("nil session")
	}

	option, err := c.ResolveModel(modelID)
	if err != nil {
		return Result{}, err
	}

	utterance, ok := SelectUtterance(in)
	if !ok {
		return Result{Status: StatusSkipped, Model: option.ID}, nil
	}

	unlock := c.lock(session.ID)
	defer unlock()

	history := c.bound(session.All())
	session.Append(chat.UserMessage(utterance))

	logger := log.With().Str("session", session.ID).Str("model", option.ID).Logger()
	start := time.Now()

	reply, err := c.completer.Complete(ctx, ai.Request{
		Model:   option.ID,
		History: history,
		Prompt:  utterance,
	})
	if err != nil {
		turnErr := &TurnError{Kind: ai.Classify(err), Cause: err}
		logger.Error().Err(err).Str("kind", string(turnErr.Kind)).Msg("turn failed")
		return Result{Status: StatusFailed, Utterance: utterance, Model: option.ID, Err: turnErr}, nil
	}

	session.Append(chat.AssistantMessage(reply))
	logger.Info().Dur("elapsed", time.Since(start)).Int("messages", session.Len()).Msg("turn completed")

	return Result{Status: StatusCompleted, Utterance: utterance, Reply: reply, Model: option.ID}, nil
}

// Clear empties the session once any in-flight turn on it has finished, so a
// late reply never lands in the fresh transcript.
func (c *Controller) Clear(session *chat.Session) {
	unlock := c.lock(session.ID)
	defer unlock()

	session.Clear()
	log.Info().Str("session", session.ID).Msg("session cleared")
}

func (c *Controller) bound(history []chat.Message) []chat.Message {
	if c.historyLimit > 0 && len(history) > c.historyLimit {
		return history[len(history)-c.historyLimit:]
	}
	return history
}

func (c *Controller) lock(sessionID string) func() {
	c.mu.Lock()
	l, ok := c.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[sessionID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Forget drops the turn lock for a deleted session.
func (c *Controller) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.locks, sessionID)
	c.mu.Unlock()
}
