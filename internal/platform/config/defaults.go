package config

import "time"

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "ar-scan.log",
		},
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8090,
		},
		Web: WebConfig{
			AllowedOrigins: []string{"*"},
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
		Vision: VisionConfig{
			URL:         "https://vision.googleapis.com/v1/images:annotate",
			MaxResults:  5,
			JPEGQuality: 75,
		},
		LLM: LLMConfig{
			URL:         "https://openrouter.ai/api/v1/chat/completions",
			Model:       "deepseek/deepseek-chat-v3-0324:free",
			Temperature: 0.7,
			MaxTokens:   300,
		},
		TTS: TTSConfig{
			Provider:      "google",
			URL:           "https://texttospeech.googleapis.com/v1/text:synthesize",
			LanguageCode:  "en-US",
			MaleVoice:     "en-US-Wavenet-D",
			FemaleVoice:   "en-US-Wavenet-F",
			AudioEncoding: "MP3",
			EdgeVoice:     "en-US-GuyNeural",
		},
		Audio: AudioConfig{
			Player:       "none",
			Command:      []string{"aplay", "-q", "-f", "S16_LE", "-c", "{channels}", "-r", "{rate}"},
			CleanupGrace: time.Second,
		},
		Capture: CaptureConfig{
			MaxBytes: 10 * 1024 * 1024,
			MaxSide:  1600,
		},
	}
}
