package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatRefinerProcess(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"gpt-x","choices":[{"message":{"role":"assistant","content":" Hello, world. "}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	r := NewChatRefiner(ChatConfig{Name: "openai", BaseURL: srv.URL + "/v1", Model: "gpt-x", APIKey: "sk-test"})
	result, err := r.Process(context.Background(), "hello world", RefineContext{Language: "en"})
	require.NoError(t, err)
	require.Equal(t, "Hello, world.", result.Text)
	require.True(t, result.Modified)
	require.Equal(t, 42, result.TokenCount)
	require.Equal(t, "gpt-x", result.Model)

	require.Equal(t, "gpt-x", got.Model)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Contains(t, got.Messages[0].Content, "language is en")
	require.Equal(t, "hello world", got.Messages[1].Content)
}

func TestChatRefinerUnmodifiedWhenEchoed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Same text."}}]}`))
	}))
	defer srv.Close()

	r := NewChatRefiner(ChatConfig{Name: "baseten", BaseURL: srv.URL, Model: "m", APIKey: "k"})
	result, err := r.Process(context.Background(), "Same text.", RefineContext{})
	require.NoError(t, err)
	require.False(t, result.Modified)
	require.Equal(t, "m", result.Model)
}

func TestChatRefinerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") == "Bearer empty" {
			_, _ = w.Write([]byte(`{"choices":[]}`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := NewChatRefiner(ChatConfig{Name: "openai", BaseURL: srv.URL, Model: "m"})
	_, err := r.Process(context.Background(), "text", RefineContext{})
	require.ErrorIs(t, err, ErrAuth)
	require.Zero(t, calls.Load())

	r.SetAPIKey("limited")
	_, err = r.Process(context.Background(), "text", RefineContext{})
	require.ErrorIs(t, err, ErrRateLimit)

	r.SetAPIKey("empty")
	_, err = r.Process(context.Background(), "text", RefineContext{})
	require.ErrorIs(t, err, ErrGeneric)
	require.NoError(t, r.Close())
}

func TestChatRefinerCustomAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Api-Key secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	r := NewChatRefiner(ChatConfig{
		Name:    "baseten",
		BaseURL: srv.URL,
		APIKey:  "secret",
		Authorize: func(req *http.Request, key string) {
			req.Header.Set("Authorization", "Api-Key "+key)
		},
	})
	_, err := r.Process(context.Background(), "x", RefineContext{})
	require.NoError(t, err)
}
