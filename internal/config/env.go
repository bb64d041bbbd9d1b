package config

import (
	"os"
	"strings"
)

// ApplyEnv overlays credentials and a few selectors from the environment.
func ApplyEnv(cfg *Config) {
	overrideString(&cfg.Credentials.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	overrideString(&cfg.Credentials.OpenAIAPIKey, "OPENAI_API_KEY")
	overrideString(&cfg.Credentials.BasetenAPIKey, "BASETEN_API_KEY")
	overrideString(&cfg.LogLevel, "VOYC_LOG_LEVEL")

	var provider string
	overrideString(&provider, "VOYC_PROVIDER")
	if provider != "" {
		cfg.Provider = ProviderType(strings.ToLower(provider))
	}
}

func overrideString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}
