package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	switch cfg.Provider {
	case ProviderElevenLabs, ProviderElevenLabsStreaming, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("provider must be one of: elevenlabs, elevenlabs_streaming, openai")
	}
	if key := cfg.APIKey(cfg.Provider); key == "" {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("no API key configured for provider %q; transcription will fail", cfg.Provider)})
	}

	for name, raw := range map[string]string{
		"endpoints.elevenlabs":          cfg.Endpoints.ElevenLabs,
		"endpoints.elevenlabs_realtime": cfg.Endpoints.ElevenLabsRealtime,
		"endpoints.openai":              cfg.Endpoints.OpenAI,
		"endpoints.baseten":             cfg.Endpoints.Baseten,
	} {
		if err := validateURL(name, raw); err != nil {
			return nil, err
		}
	}

	if cfg.Silence.ThresholdDB >= 0 {
		return nil, fmt.Errorf("silence.threshold_db must be < 0")
	}
	if cfg.Silence.MinSilentFrames <= 0 {
		return nil, fmt.Errorf("silence.min_silent_frames must be > 0")
	}
	switch cfg.Silence.TimeoutSeconds {
	case 0, 30, 60:
	default:
		return nil, fmt.Errorf("silence.timeout_seconds must be one of: 0, 30, 60")
	}

	switch cfg.Refinement.Provider {
	case RefinerNone, RefinerBaseten, RefinerOpenAI:
	default:
		return nil, fmt.Errorf("refinement.provider must be one of: none, baseten, openai")
	}
	if cfg.Refinement.TimeoutMS < 0 {
		return nil, fmt.Errorf("refinement.timeout_ms must be >= 0")
	}
	if cfg.Refinement.Enable && cfg.Refinement.Provider != RefinerNone && cfg.RefinerAPIKey() == "" {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("refinement enabled but no API key configured for %q; remote refinement will be skipped", cfg.Refinement.Provider)})
	}

	if cfg.Latency.BasetenPostProcessMS < 0 || cfg.Latency.TotalMS < 0 || cfg.Latency.STTMS < 0 {
		return nil, fmt.Errorf("latency thresholds must be >= 0")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if cfg.Clipboard.Raw != "" && len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd is configured but empty")
	}
	if cfg.Paste.Enable && cfg.Paste.Cmd.Raw != "" && len(cfg.Paste.Cmd.Argv) == 0 {
		return nil, fmt.Errorf("paste.cmd is configured but empty")
	}

	if cfg.HistorySize <= 0 {
		return nil, fmt.Errorf("history_size must be > 0")
	}
	if cfg.ErrorAutoResetMS < 0 {
		return nil, fmt.Errorf("error_auto_reset_ms must be >= 0")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}

func validateURL(name string, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", name)
	}
	return nil
}

// APIKey returns the credential used by a transcription provider type.
func (c Config) APIKey(provider ProviderType) string {
	switch provider {
	case ProviderElevenLabs, ProviderElevenLabsStreaming:
		return strings.TrimSpace(c.Credentials.ElevenLabsAPIKey)
	case ProviderOpenAI:
		return strings.TrimSpace(c.Credentials.OpenAIAPIKey)
	default:
		return ""
	}
}

// RefinerAPIKey returns the credential for the configured refinement provider.
func (c Config) RefinerAPIKey() string {
	switch c.Refinement.Provider {
	case RefinerBaseten:
		return strings.TrimSpace(c.Credentials.BasetenAPIKey)
	case RefinerOpenAI:
		return strings.TrimSpace(c.Credentials.OpenAIAPIKey)
	default:
		return ""
	}
}
