package speech

// SpeechConfig holds the Volcengine dictation credentials and defaults.
type SpeechConfig struct {
	AppID          string `json:"appId"`
	AccessToken    string `json:"accessToken"`
	ConcurrentMode bool   `json:"concurrentMode"` // concurrent billing instead of hourly
	Endpoint       string `json:"endpoint"`
	Language       string `json:"language"`
	Timeout        int    `json:"timeout"` // seconds
}
