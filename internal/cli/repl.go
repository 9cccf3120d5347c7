package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gemchat/backend/internal/model/catalog"
	"github.com/gemchat/backend/internal/model/chat"
	speechmodel "github.com/gemchat/backend/internal/model/speech"
	"github.com/gemchat/backend/internal/service/ai"
	"github.com/gemchat/backend/internal/service/speech"
	"github.com/gemchat/backend/internal/service/turn"
)

var replModel string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Chat with the model from the terminal",
	Long: `Start an interactive conversation. Commands:
  /clear          forget the conversation
  /model <id>     switch model for later turns
  /models         list selectable models
  /voice <file>   transcribe a recording and send it as the next turn
  /quit           exit`,
	RunE: runREPL,
}

func init() {
	replCmd.Flags().StringVar(&replModel, "model", "", "model to start with (default: first configured)")
	rootCmd.AddCommand(replCmd)
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	completer, closeCompleter, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		return err
	}
	defer closeCompleter()

	store := catalog.NewMemoryStore(cfg.AI.ModelOptions(), catalog.SeedThemes())
	controller := turn.NewController(completer, store, turn.WithHistoryLimit(cfg.AI.HistoryLimit))

	repl := NewREPL(controller, store, speech.NewServiceFromConfig(cfg.Speech), cmd.InOrStdin(), cmd.OutOrStdout())
	if replModel != "" {
		if err := repl.SetModel(replModel); err != nil {
			return err
		}
	}
	return repl.Run(ctx)
}

// REPL is a line-oriented chat surface over a turn controller.
type REPL struct {
	controller *turn.Controller
	catalog    catalog.Store
	dictation  speech.Transcriber
	session    *chat.Session
	model      string

	in  io.Reader
	out io.Writer
}

// NewREPL creates a REPL with a fresh session. dictation may be nil.
func NewREPL(controller *turn.Controller, store catalog.Store, dictation speech.Transcriber, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		controller: controller,
		catalog:    store,
		dictation:  dictation,
		session:    chat.NewSession(uuid.NewString(), time.Now().UTC()),
		model:      store.DefaultModel().ID,
		in:         in,
		out:        out,
	}
}

// Session exposes the conversation state.
func (r *REPL) Session() *chat.Session {
	return r.session
}

// SetModel switches the model used for later turns.
func (r *REPL) SetModel(id string) error {
	option, err := r.controller.ResolveModel(id)
	if err != nil {
		return err
	}
	r.model = option.ID
	return nil
}

// Run reads lines until EOF, /quit or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintf(r.out, "Chatting with %s. Type /quit to exit.\n", r.model)

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		quit, err := r.handleLine(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (r *REPL) handleLine(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/quit", "/exit":
		return true, nil
	case "/clear":
		r.controller.Clear(r.session)
		fmt.Fprintln(r.out, "conversation cleared")
		return false, nil
	case "/models":
		for _, option := range r.catalog.Models() {
			marker := " "
			if option.ID == r.model {
				marker = "*"
			}
			fmt.Fprintf(r.out, "%s %s\n", marker, option.ID)
		}
		return false, nil
	case "/model":
		if err := r.SetModel(arg); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "using %s\n", r.model)
		return false, nil
	case "/voice":
		text, err := r.transcribe(ctx, arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "🎤 %s\n", text)
		return false, r.turn(ctx, turn.Input{Voice: text})
	}

	return false, r.turn(ctx, turn.Input{Text: line})
}

func (r *REPL) turn(ctx context.Context, in turn.Input) error {
	result, err := r.controller.HandleTurn(ctx, r.session, in, r.model)
	if err != nil {
		return err
	}

	switch result.Status {
	case turn.StatusCompleted:
		fmt.Fprintf(r.out, "%s %s\n", chat.AssistantMessage("").Avatar(), result.Reply)
	case turn.StatusFailed:
		fmt.Fprintln(r.out, result.Err.UserMessage())
	}
	return nil
}

func (r *REPL) transcribe(ctx context.Context, path string) (string, error) {
	if r.dictation == nil {
		return "", speech.ErrDictationUnavailable
	}
	if path == "" {
		return "", errors.New("usage: /voice <file>")
	}

	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open recording")
	}
	defer file.Close()

	resp, err := r.dictation.Transcribe(ctx, &speechmodel.ASRRequest{
		SessionID: r.session.ID,
		AudioData: file,
		Format:    audioFormat(path),
	})
	if err != nil {
		return "", errors.Wrap(err, "transcribe recording")
	}
	return resp.Text, nil
}

func audioFormat(path string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		return ext
	}
	return "wav"
}
