package speech

import "io"

// ASRRequest is one recording handed to the dictation service.
type ASRRequest struct {
	SessionID string    `json:"sessionId"`
	AudioData io.Reader `json:"-"`
	Format    string    `json:"format"`   // wav, pcm, mp3, ...
	Language  string    `json:"language"` // en-US, zh-CN, ...
}
