// Package openai transcribes through the Whisper audio endpoint and refines
// text through chat completions.
package openai

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voyc/internal/provider"
)

const (
	name             = "openai"
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "whisper-1"
	defaultChatModel = "gpt-4o-mini"
)

// Config controls the OpenAI endpoint and models.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	RefineModel string
	Timeout     time.Duration
}

func (c Config) baseURL() string {
	if strings.TrimSpace(c.BaseURL) == "" {
		return defaultBaseURL
	}
	return c.BaseURL
}

// Transcriber uploads recordings to /audio/transcriptions.
type Transcriber struct {
	baseURL string
	model   string
	client  *http.Client

	mu  sync.RWMutex
	key string
}

// NewTranscriber builds a Whisper transcriber.
func NewTranscriber(cfg Config) *Transcriber {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Transcriber{
		baseURL: cfg.baseURL(),
		model:   cfg.Model,
		client:  provider.NewHTTPClient(cfg.Timeout),
		key:     strings.TrimSpace(cfg.APIKey),
	}
}

func (t *Transcriber) Name() string            { return name }
func (t *Transcriber) SupportsStreaming() bool { return false }

func (t *Transcriber) SetAPIKey(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.key = strings.TrimSpace(key)
}

func (t *Transcriber) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Transcribe sends container as a verbose_json transcription request.
func (t *Transcriber) Transcribe(ctx context.Context, container []byte, opts provider.Options) (provider.TranscribeResult, error) {
	t.mu.RLock()
	key := t.key
	t.mu.RUnlock()
	if key == "" {
		return provider.TranscribeResult{}, provider.MissingKey(name)
	}

	parts := []provider.Part{
		{Name: "file", FileName: "audio.wav", Data: container},
		{Name: "model", Data: []byte(t.model)},
		{Name: "response_format", Data: []byte("verbose_json")},
	}
	if lang := provider.NormalizeLanguage(opts.Language); lang != "" {
		parts = append(parts, provider.Part{Name: "language", Data: []byte(lang)})
	}
	body, contentType, err := provider.MultipartBody(parts...)
	if err != nil {
		return provider.TranscribeResult{}, err
	}

	req, err := http.NewRequest(http.MethodPost, provider.JoinURL(t.baseURL, "audio/transcriptions"), body)
	if err != nil {
		return provider.TranscribeResult{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", provider.Bearer(key))

	started := time.Now()
	var out verboseTranscription
	if err := provider.Do(ctx, t.client, name, req, &out); err != nil {
		return provider.TranscribeResult{}, err
	}
	return provider.TranscribeResult{
		Text:            strings.TrimSpace(out.Text),
		Language:        out.Language,
		DurationSeconds: out.Duration,
		Latency:         time.Since(started),
	}, nil
}

// NewRefiner builds a chat-completions refiner.
func NewRefiner(cfg Config) *provider.ChatRefiner {
	model := cfg.RefineModel
	if strings.TrimSpace(model) == "" {
		model = defaultChatModel
	}
	return provider.NewChatRefiner(provider.ChatConfig{
		Name:    name,
		BaseURL: cfg.baseURL(),
		Model:   model,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
}
