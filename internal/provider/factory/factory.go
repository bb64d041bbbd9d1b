// Package factory builds and caches the transcription and refinement
// providers selected by the live configuration.
package factory

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/voyc/internal/config"
	"github.com/rbright/voyc/internal/provider"
	"github.com/rbright/voyc/internal/provider/baseten"
	"github.com/rbright/voyc/internal/provider/elevenlabs"
	"github.com/rbright/voyc/internal/provider/openai"
)

// ErrNoRefiner reports that remote refinement is not configured.
var ErrNoRefiner = errors.New("no refinement provider configured")

// Builders construct providers from a configuration snapshot.
type Builders struct {
	Transcriber func(kind config.ProviderType, cfg config.Config) (provider.Transcriber, error)
	Refiner     func(kind config.RefinerType, cfg config.Config) (provider.Refiner, error)
}

// DefaultBuilders returns the builders for the real HTTP providers.
func DefaultBuilders() Builders {
	return Builders{Transcriber: buildTranscriber, Refiner: buildRefiner}
}

// selection captures every field that changes which instance is built.
type selection struct {
	provider  config.ProviderType
	refiner   config.RefinerType
	endpoints config.EndpointsConfig
	models    config.ModelsConfig
	timeoutMS int
}

func selectionOf(cfg config.Config) selection {
	return selection{
		provider:  cfg.Provider,
		refiner:   cfg.Refinement.Provider,
		endpoints: cfg.Endpoints,
		models:    cfg.Models,
		timeoutMS: cfg.Refinement.TimeoutMS,
	}
}

// Factory memoizes one provider instance per type.
type Factory struct {
	logger   *slog.Logger
	builders Builders

	mu           sync.Mutex
	cfg          config.Config
	transcribers map[config.ProviderType]provider.Transcriber
	refiners     map[config.RefinerType]provider.Refiner
}

// New builds a factory around cfg using the real providers.
func New(cfg config.Config, logger *slog.Logger) *Factory {
	return NewWithBuilders(cfg, logger, DefaultBuilders())
}

// NewWithBuilders builds a factory with custom constructors.
func NewWithBuilders(cfg config.Config, logger *slog.Logger, builders Builders) *Factory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if builders.Transcriber == nil {
		builders.Transcriber = buildTranscriber
	}
	if builders.Refiner == nil {
		builders.Refiner = buildRefiner
	}
	return &Factory{
		logger:       logger,
		builders:     builders,
		cfg:          cfg,
		transcribers: map[config.ProviderType]provider.Transcriber{},
		refiners:     map[config.RefinerType]provider.Refiner{},
	}
}

// Transcriber returns the instance for the configured provider type.
func (f *Factory) Transcriber() (provider.Transcriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind := f.cfg.Provider
	if t, ok := f.transcribers[kind]; ok {
		return t, nil
	}
	t, err := f.builders.Transcriber(kind, f.cfg)
	if err != nil {
		return nil, err
	}
	f.transcribers[kind] = t
	return t, nil
}

// Refiner returns the instance for the configured refinement provider, or
// ErrNoRefiner when refinement is disabled or set to none.
func (f *Factory) Refiner() (provider.Refiner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind := f.cfg.Refinement.Provider
	if !f.cfg.Refinement.Enable || kind == config.RefinerNone || kind == "" {
		return nil, ErrNoRefiner
	}
	if r, ok := f.refiners[kind]; ok {
		return r, nil
	}
	r, err := f.builders.Refiner(kind, f.cfg)
	if err != nil {
		return nil, err
	}
	f.refiners[kind] = r
	return r, nil
}

// UpdateConfig adopts next. A changed selection disposes every cached
// instance; otherwise live instances only receive fresh credentials.
func (f *Factory) UpdateConfig(next config.Config) {
	f.mu.Lock()
	prev := f.cfg
	f.cfg = next

	if selectionOf(prev) != selectionOf(next) {
		stale := f.evictLocked()
		f.mu.Unlock()
		f.logger.Info("provider selection changed",
			"provider", string(next.Provider),
			"refiner", string(next.Refinement.Provider),
		)
		f.closeAll(stale)
		return
	}

	for kind, t := range f.transcribers {
		t.SetAPIKey(next.APIKey(kind))
	}
	for _, r := range f.refiners {
		r.SetAPIKey(next.RefinerAPIKey())
	}
	f.mu.Unlock()
}

// Watch keeps the factory in step with store and returns an unsubscribe func.
func (f *Factory) Watch(store *config.Store) func() {
	return store.Subscribe(func(_ config.Config, next config.Config) {
		f.UpdateConfig(next)
	})
}

// Dispose closes and forgets every cached instance.
func (f *Factory) Dispose() {
	f.mu.Lock()
	stale := f.evictLocked()
	f.mu.Unlock()
	f.closeAll(stale)
}

func (f *Factory) evictLocked() []provider.Provider {
	stale := make([]provider.Provider, 0, len(f.transcribers)+len(f.refiners))
	for _, t := range f.transcribers {
		stale = append(stale, t)
	}
	for _, r := range f.refiners {
		stale = append(stale, r)
	}
	f.transcribers = map[config.ProviderType]provider.Transcriber{}
	f.refiners = map[config.RefinerType]provider.Refiner{}
	return stale
}

func (f *Factory) closeAll(stale []provider.Provider) {
	for _, p := range stale {
		if err := p.Close(); err != nil {
			f.logger.Warn("close provider failed", "provider", p.Name(), "error", err.Error())
		}
	}
}

func buildTranscriber(kind config.ProviderType, cfg config.Config) (provider.Transcriber, error) {
	elevenCfg := elevenlabs.Config{
		APIKey:        cfg.APIKey(kind),
		BaseURL:       cfg.Endpoints.ElevenLabs,
		RealtimeURL:   cfg.Endpoints.ElevenLabsRealtime,
		Model:         cfg.Models.ElevenLabs,
		RealtimeModel: cfg.Models.ElevenLabsRealtime,
	}
	switch kind {
	case config.ProviderElevenLabs:
		return elevenlabs.NewBatch(elevenCfg), nil
	case config.ProviderElevenLabsStreaming:
		return elevenlabs.NewStreaming(elevenCfg), nil
	case config.ProviderOpenAI:
		return openai.NewTranscriber(openai.Config{
			APIKey:  cfg.APIKey(kind),
			BaseURL: cfg.Endpoints.OpenAI,
			Model:   cfg.Models.OpenAITranscribe,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", kind)
	}
}

func buildRefiner(kind config.RefinerType, cfg config.Config) (provider.Refiner, error) {
	timeout := time.Duration(cfg.Refinement.TimeoutMS) * time.Millisecond
	switch kind {
	case config.RefinerBaseten:
		return baseten.NewRefiner(baseten.Config{
			APIKey:  cfg.RefinerAPIKey(),
			BaseURL: cfg.Endpoints.Baseten,
			Model:   cfg.Models.BasetenRefine,
			Timeout: timeout,
		}), nil
	case config.RefinerOpenAI:
		return openai.NewRefiner(openai.Config{
			APIKey:      cfg.RefinerAPIKey(),
			BaseURL:     cfg.Endpoints.OpenAI,
			RefineModel: cfg.Models.OpenAIRefine,
			Timeout:     timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown refinement provider %q", kind)
	}
}
