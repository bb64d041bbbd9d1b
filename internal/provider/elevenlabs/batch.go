// Package elevenlabs implements speech-to-text against the ElevenLabs API,
// both as a single multipart upload and as a realtime websocket session.
package elevenlabs

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voyc/internal/audio"
	"github.com/rbright/voyc/internal/provider"
)

const (
	defaultBaseURL     = "https://api.elevenlabs.io/v1"
	defaultRealtimeURL = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"
	defaultModel       = "scribe_v1"
	defaultRealtime    = "scribe_v2_realtime"
	keyHeader          = "xi-api-key"
)

// Config controls ElevenLabs endpoints and models.
type Config struct {
	APIKey        string
	BaseURL       string
	RealtimeURL   string
	Model         string
	RealtimeModel string
	Timeout       time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(c.RealtimeURL) == "" {
		c.RealtimeURL = defaultRealtimeURL
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = defaultModel
	}
	if strings.TrimSpace(c.RealtimeModel) == "" {
		c.RealtimeModel = defaultRealtime
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Batch uploads a whole recording per request.
type Batch struct {
	cfg    Config
	client *http.Client

	mu  sync.RWMutex
	key string
}

// NewBatch builds a batch transcriber.
func NewBatch(cfg Config) *Batch {
	cfg = cfg.withDefaults()
	return &Batch{
		cfg:    cfg,
		client: provider.NewHTTPClient(cfg.Timeout),
		key:    strings.TrimSpace(cfg.APIKey),
	}
}

func (b *Batch) Name() string            { return "elevenlabs" }
func (b *Batch) SupportsStreaming() bool { return false }

func (b *Batch) SetAPIKey(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.key = strings.TrimSpace(key)
}

func (b *Batch) apiKey() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.key
}

func (b *Batch) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

type transcriptResponse struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
}

// Transcribe uploads container and returns the recognized text.
func (b *Batch) Transcribe(ctx context.Context, container []byte, opts provider.Options) (provider.TranscribeResult, error) {
	return b.transcribe(ctx, b.Name(), container, opts)
}

func (b *Batch) transcribe(ctx context.Context, name string, container []byte, opts provider.Options) (provider.TranscribeResult, error) {
	key := b.apiKey()
	if key == "" {
		return provider.TranscribeResult{}, provider.MissingKey(name)
	}

	parts := []provider.Part{
		{Name: "file", FileName: "audio.wav", Data: container},
		{Name: "model_id", Data: []byte(b.cfg.Model)},
	}
	if lang := provider.NormalizeLanguage(opts.Language); lang != "" {
		parts = append(parts, provider.Part{Name: "language_code", Data: []byte(lang)})
	}
	body, contentType, err := provider.MultipartBody(parts...)
	if err != nil {
		return provider.TranscribeResult{}, err
	}

	req, err := http.NewRequest(http.MethodPost, provider.JoinURL(b.cfg.BaseURL, "speech-to-text"), body)
	if err != nil {
		return provider.TranscribeResult{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(keyHeader, key)

	started := time.Now()
	var out transcriptResponse
	if err := provider.Do(ctx, b.client, name, req, &out); err != nil {
		return provider.TranscribeResult{}, err
	}

	return provider.TranscribeResult{
		Text:            strings.TrimSpace(out.Text),
		Language:        out.LanguageCode,
		DurationSeconds: audio.ContainerDuration(container).Seconds(),
		Latency:         time.Since(started),
	}, nil
}
