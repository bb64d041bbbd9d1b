// Package config resolves, parses, validates, and defaults voyc configuration.
package config

// ProviderType selects the transcription backend.
type ProviderType string

const (
	ProviderElevenLabs          ProviderType = "elevenlabs"
	ProviderElevenLabsStreaming ProviderType = "elevenlabs_streaming"
	ProviderOpenAI              ProviderType = "openai"
)

// RefinerType selects the remote refinement backend.
type RefinerType string

const (
	RefinerNone    RefinerType = "none"
	RefinerBaseten RefinerType = "baseten"
	RefinerOpenAI  RefinerType = "openai"
)

// Config is the fully materialized runtime configuration.
type Config struct {
	Provider         ProviderType      `yaml:"provider"`
	Language         string            `yaml:"language"`
	Credentials      CredentialsConfig `yaml:"credentials"`
	Endpoints        EndpointsConfig   `yaml:"endpoints"`
	Models           ModelsConfig      `yaml:"models"`
	Silence          SilenceConfig     `yaml:"silence"`
	Refinement       RefinementConfig  `yaml:"refinement"`
	Latency          LatencyConfig     `yaml:"latency"`
	Audio            AudioConfig       `yaml:"audio"`
	Clipboard        CommandConfig     `yaml:"clipboard_cmd"`
	Paste            PasteConfig       `yaml:"paste"`
	Indicator        IndicatorConfig   `yaml:"indicator"`
	Telemetry        TelemetryConfig   `yaml:"telemetry"`
	HistorySize      int               `yaml:"history_size"`
	ErrorAutoResetMS int               `yaml:"error_auto_reset_ms"`
	LogLevel         string            `yaml:"log_level"`
}

// CredentialsConfig holds provider API keys. Environment variables override
// these at load time.
type CredentialsConfig struct {
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"`
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	BasetenAPIKey    string `yaml:"baseten_api_key"`
}

// EndpointsConfig holds provider base URLs.
type EndpointsConfig struct {
	ElevenLabs         string `yaml:"elevenlabs"`
	ElevenLabsRealtime string `yaml:"elevenlabs_realtime"`
	OpenAI             string `yaml:"openai"`
	Baseten            string `yaml:"baseten"`
}

// ModelsConfig names the model requested from each provider.
type ModelsConfig struct {
	ElevenLabs         string `yaml:"elevenlabs"`
	ElevenLabsRealtime string `yaml:"elevenlabs_realtime"`
	OpenAITranscribe   string `yaml:"openai_transcribe"`
	OpenAIRefine       string `yaml:"openai_refine"`
	BasetenRefine      string `yaml:"baseten_refine"`
}

// SilenceConfig tunes endpoint detection.
type SilenceConfig struct {
	ThresholdDB     float64 `yaml:"threshold_db"`
	MinSilentFrames int     `yaml:"min_silent_frames"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

// RefinementConfig controls the post-transcription pipeline.
type RefinementConfig struct {
	Enable        bool        `yaml:"enable"`
	Provider      RefinerType `yaml:"provider"`
	LocalCleanup  bool        `yaml:"local_cleanup"`
	TrailingSpace bool        `yaml:"trailing_space"`
	Prompt        string      `yaml:"prompt"`
	TimeoutMS     int         `yaml:"timeout_ms"`
}

// LatencyConfig holds alert thresholds in milliseconds; 0 disables a check.
type LatencyConfig struct {
	BasetenPostProcessMS int `yaml:"baseten_post_process_ms"`
	TotalMS              int `yaml:"total_ms"`
	STTMS                int `yaml:"stt_ms"`
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string `yaml:"input"`
	Fallback string `yaml:"fallback"`
}

// PasteConfig controls the paste step after the clipboard is set.
type PasteConfig struct {
	Enable   bool          `yaml:"enable"`
	Cmd      CommandConfig `yaml:"cmd"`
	Shortcut string        `yaml:"shortcut"`
}

// IndicatorConfig controls visual state notifications.
type IndicatorConfig struct {
	Enable         bool   `yaml:"enable"`
	Backend        string `yaml:"backend"`
	DesktopAppName string `yaml:"desktop_app_name"`
	ErrorTimeoutMS int    `yaml:"error_timeout_ms"`
}

// TelemetryConfig controls metrics and trace export.
type TelemetryConfig struct {
	MetricsListen string `yaml:"metrics_listen"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	OTLPInsecure  bool   `yaml:"otlp_insecure"`
	TraceStdout   bool   `yaml:"trace_stdout"`
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
