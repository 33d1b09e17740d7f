package config

import (
	"time"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Web     WebConfig     `yaml:"web"`
	HTTP    HTTPConfig    `yaml:"http"`
	Vision  VisionConfig  `yaml:"vision"`
	LLM     LLMConfig     `yaml:"llm"`
	TTS     TTSConfig     `yaml:"tts"`
	Audio   AudioConfig   `yaml:"audio"`
	Capture CaptureConfig `yaml:"capture"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

// WebConfig controls the optional presentation assets and browser access.
type WebConfig struct {
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HTTPConfig applies to every outbound vendor call.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type VisionConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	MaxResults  int64  `yaml:"max_results"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

type LLMConfig struct {
	URL         string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Referer     string  `yaml:"referer"`
	Title       string  `yaml:"title"`
}

type TTSConfig struct {
	Provider      string `yaml:"provider"`
	URL           string `yaml:"url"`
	APIKey        string `yaml:"api_key"`
	LanguageCode  string `yaml:"language_code"`
	MaleVoice     string `yaml:"male_voice"`
	FemaleVoice   string `yaml:"female_voice"`
	Female        bool   `yaml:"female"`
	AudioEncoding string `yaml:"audio_encoding"`
	EdgeVoice     string `yaml:"edge_voice"`
}

type AudioConfig struct {
	Player       string        `yaml:"player"`
	Command      []string      `yaml:"command"`
	CleanupGrace time.Duration `yaml:"cleanup_grace"`
	TempDir      string        `yaml:"temp_dir"`
}

// CaptureConfig describes the default capture source and the limits applied
// to every captured buffer.
type CaptureConfig struct {
	ImagePath string `yaml:"image_path"`
	MaxBytes  int64  `yaml:"max_bytes"`
	MaxSide   int    `yaml:"max_side"`
}
