package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultRefinePrompt instructs a chat model to clean up dictated text.
const DefaultRefinePrompt = "You clean up dictated text. Fix punctuation, capitalization, and obvious " +
	"recognition errors. Remove filler words such as um and uh. Keep the speaker's wording and " +
	"language. Reply with the corrected text only."

// ChatRefiner refines text through an OpenAI-compatible chat completions API.
type ChatRefiner struct {
	name    string
	baseURL string
	model   string
	client  *http.Client
	// authorize sets the credential header on a request.
	authorize func(req *http.Request, key string)

	mu  sync.RWMutex
	key string
}

// ChatConfig configures a ChatRefiner.
type ChatConfig struct {
	Name      string
	BaseURL   string
	Model     string
	APIKey    string
	Timeout   time.Duration
	Authorize func(req *http.Request, key string)
}

// NewChatRefiner builds a refiner. Bearer auth is used unless Authorize is set.
func NewChatRefiner(cfg ChatConfig) *ChatRefiner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Authorize == nil {
		cfg.Authorize = func(req *http.Request, key string) {
			req.Header.Set("Authorization", Bearer(key))
		}
	}
	return &ChatRefiner{
		name:      cfg.Name,
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		client:    NewHTTPClient(cfg.Timeout),
		authorize: cfg.Authorize,
		key:       strings.TrimSpace(cfg.APIKey),
	}
}

func (c *ChatRefiner) Name() string            { return c.name }
func (c *ChatRefiner) SupportsStreaming() bool { return false }

func (c *ChatRefiner) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = strings.TrimSpace(key)
}

func (c *ChatRefiner) apiKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

func (c *ChatRefiner) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Process sends text to the model and returns its rewrite.
func (c *ChatRefiner) Process(ctx context.Context, text string, rc RefineContext) (ProcessResult, error) {
	key := c.apiKey()
	if key == "" {
		return ProcessResult{}, MissingKey(c.name)
	}

	system := rc.Prompt
	if strings.TrimSpace(system) == "" {
		system = DefaultRefinePrompt
	}
	if rc.Language != "" {
		system += " The text language is " + rc.Language + "."
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return ProcessResult{}, err
	}

	req, err := http.NewRequest(http.MethodPost, JoinURL(c.baseURL, "chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return ProcessResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, key)

	started := time.Now()
	var out chatResponse
	if err := Do(ctx, c.client, c.name, req, &out); err != nil {
		return ProcessResult{}, err
	}
	latency := time.Since(started)

	if len(out.Choices) == 0 {
		return ProcessResult{}, &Error{Kind: KindGeneric, Provider: c.name, Detail: "response has no choices"}
	}
	refined := strings.TrimSpace(out.Choices[0].Message.Content)
	model := out.Model
	if model == "" {
		model = c.model
	}
	return ProcessResult{
		Text:       refined,
		Latency:    latency,
		Modified:   refined != strings.TrimSpace(text),
		TokenCount: out.Usage.TotalTokens,
		Model:      model,
	}, nil
}
