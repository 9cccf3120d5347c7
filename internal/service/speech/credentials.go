package speech

import (
	"fmt"
	"strings"

	speechmodel "github.com/gemchat/backend/internal/model/speech"
)

// resolveCredentials returns the trimmed app id and access token.
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("speech config not initialised")
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if appID == "" || token == "" {
		return "", "", fmt.Errorf("speech config is missing app id or access token")
	}

	return appID, token, nil
}

func resourceID(cfg *speechmodel.SpeechConfig) string {
	if cfg.ConcurrentMode {
		return "volc.bigasr.sauc.concurrent"
	}
	return "volc.bigasr.sauc.duration"
}
