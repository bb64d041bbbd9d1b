// Package baseten refines dictated text through Baseten's OpenAI-compatible
// inference API.
package baseten

import (
	"net/http"
	"strings"
	"time"

	"github.com/rbright/voyc/internal/provider"
)

// Name is the provider name used in errors and latency records.
const Name = "baseten"

const (
	defaultBaseURL = "https://inference.baseten.co/v1"
	defaultModel   = "meta-llama/Llama-4-Scout-17B-16E-Instruct"
)

// Config controls the Baseten endpoint and model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewRefiner builds a refiner that authenticates with an Api-Key header.
func NewRefiner(cfg Config) *provider.ChatRefiner {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	return provider.NewChatRefiner(provider.ChatConfig{
		Name:    Name,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
		Authorize: func(req *http.Request, key string) {
			req.Header.Set("Authorization", "Api-Key "+key)
		},
	})
}
