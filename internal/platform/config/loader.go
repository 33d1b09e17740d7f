package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "ar-scan-go/internal/platform/errors"
)

// Environment variables that override the file.
const (
	EnvVisionAPIKey = "ARSCAN_VISION_API_KEY"
	EnvLLMAPIKey    = "ARSCAN_LLM_API_KEY"
	EnvTTSAPIKey    = "ARSCAN_TTS_API_KEY"
	EnvLogLevel     = "ARSCAN_LOG_LEVEL"
	EnvServerPort   = "ARSCAN_SERVER_PORT"
)

// defaultPaths are tried in order when no explicit path is given.
var defaultPaths = []string{".config.yaml", "config.yaml"}

// Loader reads the YAML file, merges it over DefaultConfig and applies env
// overrides.
type Loader struct {
	useDotEnv bool
	path      string
}

func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath forces a config file. A missing forced file is an error.
func (l *Loader) WithPath(path string) *Loader {
	l.path = strings.TrimSpace(path)
	return l
}

// Result captures the loaded configuration and its origin path. Path is empty
// when only defaults were used.
type Result struct {
	Config *Config
	Path   string
}

func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println(".env not found, using system environment")
		}
	}

	cfg := DefaultConfig()
	path, err := l.resolvePath()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "read "+path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "parse "+path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) resolvePath() (string, error) {
	if l.path != "" {
		if _, err := os.Stat(l.path); err != nil {
			return "", platformerrors.Wrap(platformerrors.KindConfig, "config.load", "config file "+l.path, err)
		}
		return l.path, nil
	}
	for _, p := range defaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvVisionAPIKey); v != "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv(EnvTTSAPIKey); v != "" {
		cfg.TTS.APIKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindConfig, "config.env", EnvServerPort+" is not a number", err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func (l *Loader) validate(cfg *Config) error {
	return cfg.Validate()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", fmt.Sprintf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("invalid server port: %d", c.Server.Port)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return invalid("llm temperature %.2f outside [0,2]", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		return invalid("llm max_tokens %d outside [1,8192]", c.LLM.MaxTokens)
	}
	if c.Audio.CleanupGrace <= 0 {
		return invalid("audio cleanup_grace must be positive")
	}
	switch c.TTS.Provider {
	case "google", "edge":
	default:
		return invalid("unknown tts provider %q", c.TTS.Provider)
	}
	switch c.Audio.Player {
	case "none", "command":
	default:
		return invalid("unknown audio player %q", c.Audio.Player)
	}
	if c.Audio.Player == "command" && len(c.Audio.Command) == 0 {
		return invalid("audio player command is empty")
	}
	return nil
}
