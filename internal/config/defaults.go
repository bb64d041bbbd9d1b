package config

// Default returns the configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Provider: ProviderElevenLabs,
		Endpoints: EndpointsConfig{
			ElevenLabs:         "https://api.elevenlabs.io/v1",
			ElevenLabsRealtime: "wss://api.elevenlabs.io/v1/speech-to-text/realtime",
			OpenAI:             "https://api.openai.com/v1",
			Baseten:            "https://inference.baseten.co/v1",
		},
		Models: ModelsConfig{
			ElevenLabs:         "scribe_v1",
			ElevenLabsRealtime: "scribe_v2_realtime",
			OpenAITranscribe:   "whisper-1",
			OpenAIRefine:       "gpt-4o-mini",
			BasetenRefine:      "meta-llama/Llama-4-Scout-17B-16E-Instruct",
		},
		Silence: SilenceConfig{
			ThresholdDB:     -40,
			MinSilentFrames: 10,
			TimeoutSeconds:  30,
		},
		Refinement: RefinementConfig{
			Enable:        false,
			Provider:      RefinerBaseten,
			LocalCleanup:  true,
			TrailingSpace: true,
			TimeoutMS:     5000,
		},
		Latency: LatencyConfig{
			BasetenPostProcessMS: 250,
			TotalMS:              3000,
			STTMS:                1500,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Paste:     PasteConfig{Enable: true, Shortcut: "CTRL,V"},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "desktop",
			DesktopAppName: "voyc",
			ErrorTimeoutMS: 1600,
		},
		Telemetry: TelemetryConfig{
			OTLPInsecure: true,
		},
		HistorySize:      64,
		ErrorAutoResetMS: 2000,
		LogLevel:         "info",
	}
}
