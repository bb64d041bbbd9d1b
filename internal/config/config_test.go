package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ELEVENLABS_API_KEY", "OPENAI_API_KEY", "BASETEN_API_KEY", "VOYC_PROVIDER", "VOYC_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestDefaultValidatesWithMissingKeyWarning(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "no API key")
}

func TestParseOverlaysBase(t *testing.T) {
	input := `
provider: openai
language: zh-Hans
credentials:
  openai_api_key: sk-test
silence:
  threshold_db: -35
  timeout_seconds: 60
refinement:
  enable: true
  provider: openai
clipboard_cmd: "xclip -selection clipboard"
paste:
  cmd: "ydotool key 'ctrl+v'"
`
	cfg, warnings, err := Parse(input, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, ProviderOpenAI, cfg.Provider)
	require.Equal(t, "zh-Hans", cfg.Language)
	require.Equal(t, -35.0, cfg.Silence.ThresholdDB)
	require.Equal(t, 10, cfg.Silence.MinSilentFrames)
	require.Equal(t, 60, cfg.Silence.TimeoutSeconds)
	require.True(t, cfg.Refinement.Enable)
	require.Equal(t, []string{"xclip", "-selection", "clipboard"}, cfg.Clipboard.Argv)
	require.Equal(t, []string{"ydotool", "key", "ctrl+v"}, cfg.Paste.Cmd.Argv)
	require.Equal(t, Default().Endpoints, cfg.Endpoints)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, _, err := Parse("provider: openai\nmystery: 1\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "mystery")
}

func TestParseEmptyUsesBase(t *testing.T) {
	cfg, _, err := Parse("   \n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseRejectsBadCommand(t *testing.T) {
	_, _, err := Parse(`clipboard_cmd: "wl-copy \"oops"`+"\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated quote")
}

func TestValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "whisper.cpp" }, wantErr: "provider must be"},
		{name: "relative endpoint", mutate: func(c *Config) { c.Endpoints.OpenAI = "/v1" }, wantErr: "endpoints.openai"},
		{name: "empty endpoint", mutate: func(c *Config) { c.Endpoints.Baseten = "" }, wantErr: "endpoints.baseten"},
		{name: "positive threshold", mutate: func(c *Config) { c.Silence.ThresholdDB = 3 }, wantErr: "threshold_db"},
		{name: "zero min frames", mutate: func(c *Config) { c.Silence.MinSilentFrames = 0 }, wantErr: "min_silent_frames"},
		{name: "odd timeout", mutate: func(c *Config) { c.Silence.TimeoutSeconds = 45 }, wantErr: "timeout_seconds"},
		{name: "unknown refiner", mutate: func(c *Config) { c.Refinement.Provider = "ollama" }, wantErr: "refinement.provider"},
		{name: "negative latency", mutate: func(c *Config) { c.Latency.TotalMS = -1 }, wantErr: "latency"},
		{name: "bad indicator backend", mutate: func(c *Config) { c.Indicator.Backend = "tray" }, wantErr: "indicator.backend"},
		{name: "desktop without app name", mutate: func(c *Config) { c.Indicator.DesktopAppName = " " }, wantErr: "desktop_app_name"},
		{name: "clipboard raw without argv", mutate: func(c *Config) { c.Clipboard.Argv = nil }, wantErr: "clipboard_cmd"},
		{name: "paste raw without argv", mutate: func(c *Config) { c.Paste.Cmd = CommandConfig{Raw: "# nothing"} }, wantErr: "paste.cmd"},
		{name: "zero history", mutate: func(c *Config) { c.HistorySize = 0 }, wantErr: "history_size"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "log_level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsWhenRefinerKeyMissing(t *testing.T) {
	cfg := Default()
	cfg.Credentials.ElevenLabsAPIKey = "xi"
	cfg.Refinement.Enable = true

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "baseten")
}

func TestAPIKeySelection(t *testing.T) {
	cfg := Default()
	cfg.Credentials = CredentialsConfig{ElevenLabsAPIKey: " xi ", OpenAIAPIKey: "sk", BasetenAPIKey: "bt"}

	require.Equal(t, "xi", cfg.APIKey(ProviderElevenLabs))
	require.Equal(t, "xi", cfg.APIKey(ProviderElevenLabsStreaming))
	require.Equal(t, "sk", cfg.APIKey(ProviderOpenAI))
	require.Equal(t, "bt", cfg.RefinerAPIKey())

	cfg.Refinement.Provider = RefinerOpenAI
	require.Equal(t, "sk", cfg.RefinerAPIKey())
	cfg.Refinement.Provider = RefinerNone
	require.Empty(t, cfg.RefinerAPIKey())
}

func TestResolvePathPrecedence(t *testing.T) {
	resolved, err := ResolvePath("/tmp/custom.yaml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.yaml", resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "voyc", "config.yaml"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "voyc", "config.yaml"), resolved)
}

func TestResolvePathAcceptsYMLExtension(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, "voyc")
	require.NoError(t, os.MkdirAll(dir, 0o700))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("provider: openai\n"), 0o600))
	resolved, err := ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "config.yml"), resolved)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("provider: elevenlabs\n"), 0o600))
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "config.yaml"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "missing.yaml")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("credentials:\n  elevenlabs_api_key: from-file\n"), 0o600))

	t.Setenv("ELEVENLABS_API_KEY", "from-env")
	t.Setenv("VOYC_PROVIDER", "ElevenLabs_Streaming")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "from-env", loaded.Config.Credentials.ElevenLabsAPIKey)
	require.Equal(t, ProviderElevenLabsStreaming, loaded.Config.Provider)
	require.Empty(t, loaded.Warnings)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unclosed\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestStoreReloadNotifiesSubscribers(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: elevenlabs\n"), 0o600))

	store, err := NewStore(path, nil)
	require.NoError(t, err)

	var changes [][2]ProviderType
	unsubscribe := store.Subscribe(func(prev, next Config) {
		changes = append(changes, [2]ProviderType{prev.Provider, next.Provider})
	})

	require.NoError(t, os.WriteFile(path, []byte("provider: openai\n"), 0o600))
	_, err = store.Reload()
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, store.Current().Provider)
	require.Equal(t, [][2]ProviderType{{ProviderElevenLabs, ProviderOpenAI}}, changes)

	require.NoError(t, os.WriteFile(path, []byte("provider: nope\n"), 0o600))
	_, err = store.Reload()
	require.Error(t, err)
	require.Equal(t, ProviderOpenAI, store.Current().Provider)
	require.Len(t, changes, 1)

	unsubscribe()
	cfg := store.Current()
	cfg.Provider = ProviderElevenLabs
	require.NoError(t, store.Set(cfg))
	require.Len(t, changes, 1)
}

func TestStaticStoreSetValidates(t *testing.T) {
	store := NewStaticStore(Default())
	cfg := Default()
	cfg.HistorySize = 0
	require.Error(t, store.Set(cfg))
	require.Equal(t, Default(), store.Current())

	_, err := store.Reload()
	require.Error(t, err)
}
