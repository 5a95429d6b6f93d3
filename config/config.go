package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/satriahrh/cocoa-relay/domain"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultGeminiModel       = "gemini-2.0-flash-001"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultCompletionTimeout = 30 * time.Second
	DefaultHTTPAddr          = ":8080"
	DefaultInboundQueueSize  = 32
)

// Config is read once from the environment at startup.
type Config struct {
	DiscordToken string

	Provider          string
	GeminiAPIKey      string
	GeminiModel       string
	OpenAIAPIKey      string
	OpenAIModel       string
	CompletionTimeout time.Duration

	PersonaFile string

	HTTPAddr     string
	JWTSecret    string
	ClientKey    string
	ClientSecret string

	VoiceEnabled     bool
	InboundQueueSize int
	Debug            bool
}

// Load reads the environment. Every missing or malformed value is reported
// as a *domain.ConfigurationError naming the variable.
func Load() (Config, error) {
	cfg := Config{
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		Provider:     strings.ToLower(getenv("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getenv("GEMINI_MODEL", DefaultGeminiModel),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  getenv("OPENAI_MODEL", DefaultOpenAIModel),
		PersonaFile:  os.Getenv("PERSONA_FILE"),
		HTTPAddr:     getenv("HTTP_ADDR", DefaultHTTPAddr),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		ClientKey:    os.Getenv("API_CLIENT_KEY"),
		ClientSecret: os.Getenv("API_CLIENT_SECRET"),
	}

	if cfg.DiscordToken == "" {
		return Config{}, missing("DISCORD_TOKEN")
	}

	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return Config{}, missing("GEMINI_API_KEY")
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, missing("OPENAI_API_KEY")
		}
	default:
		return Config{}, &domain.ConfigurationError{
			Key:    "LLM_PROVIDER",
			Reason: "unknown provider " + strconv.Quote(cfg.Provider),
		}
	}

	var err error
	if cfg.CompletionTimeout, err = duration("COMPLETION_TIMEOUT", DefaultCompletionTimeout); err != nil {
		return Config{}, err
	}
	if cfg.InboundQueueSize, err = positiveInt("INBOUND_QUEUE_SIZE", DefaultInboundQueueSize); err != nil {
		return Config{}, err
	}
	if cfg.VoiceEnabled, err = boolean("VOICE_ENABLED"); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = boolean("DEBUG"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func missing(key string) error {
	return &domain.ConfigurationError{Key: key, Reason: "must be set"}
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, &domain.ConfigurationError{Key: key, Reason: "must be a positive duration such as 30s"}
	}
	return d, nil
}

func positiveInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &domain.ConfigurationError{Key: key, Reason: "must be a positive integer"}
	}
	return n, nil
}

func boolean(key string) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &domain.ConfigurationError{Key: key, Reason: "must be true or false"}
	}
	return b, nil
}
