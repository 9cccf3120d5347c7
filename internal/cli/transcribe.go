package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	speechmodel "github.com/gemchat/backend/internal/model/speech"
	"github.com/gemchat/backend/internal/service/speech"
)

var (
	transcribeFormat   string
	transcribeLanguage string
	transcribeTimeout  time.Duration
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Run dictation on a recording and print the transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeFormat, "format", "", "audio format (default: from file extension)")
	transcribeCmd.Flags().StringVar(&transcribeLanguage, "lang", "", "language code (default: SPEECH_ASR_LANGUAGE)")
	transcribeCmd.Flags().DurationVar(&transcribeTimeout, "timeout", 45*time.Second, "request timeout")
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dictation := speech.NewServiceFromConfig(cfg.Speech)
	if dictation == nil {
		return errors.Wrap(speech.ErrDictationUnavailable, "set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), transcribeTimeout)
	defer cancel()

	text, err := transcribeFile(ctx, dictation, args[0], transcribeFormat, transcribeLanguage)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func transcribeFile(ctx context.Context, dictation speech.Transcriber, path, format, language string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open recording")
	}
	defer file.Close()

	if format == "" {
		format = audioFormat(path)
	}

	start := time.Now()
	resp, err := dictation.Transcribe(ctx, &speechmodel.ASRRequest{
		SessionID: fmt.Sprintf("cli-%d", start.UnixNano()),
		AudioData: file,
		Format:    format,
		Language:  language,
	})
	if err != nil {
		return "", errors.Wrap(err, "transcribe recording")
	}
	return resp.Text, nil
}
