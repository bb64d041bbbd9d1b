package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rbright/voyc/internal/provider"
)

const streamingName = "elevenlabs_streaming"

// Streaming transcribes over the realtime websocket and falls back to the
// batch endpoint for whole recordings.
type Streaming struct {
	*Batch
	dialer *websocket.Dialer

	mu   sync.Mutex
	open map[*stream]struct{}
}

// NewStreaming builds a streaming-capable transcriber.
func NewStreaming(cfg Config) *Streaming {
	return &Streaming{
		Batch: NewBatch(cfg),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		open: map[*stream]struct{}{},
	}
}

func (s *Streaming) Name() string            { return streamingName }
func (s *Streaming) SupportsStreaming() bool { return true }

// Transcribe uses the batch endpoint under the streaming provider's name.
func (s *Streaming) Transcribe(ctx context.Context, container []byte, opts provider.Options) (provider.TranscribeResult, error) {
	return s.Batch.transcribe(ctx, streamingName, container, opts)
}

// Close aborts every open stream and drops idle HTTP connections.
func (s *Streaming) Close() error {
	s.mu.Lock()
	streams := make([]*stream, 0, len(s.open))
	for st := range s.open {
		streams = append(streams, st)
	}
	s.mu.Unlock()

	for _, st := range streams {
		_ = st.Close()
	}
	return s.Batch.Close()
}

// OpenStream dials the realtime endpoint.
func (s *Streaming) OpenStream(ctx context.Context, opts provider.StreamOptions) (provider.StreamConnection, error) {
	key := s.apiKey()
	if key == "" {
		return nil, provider.MissingKey(streamingName)
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}

	wsURL, err := buildRealtimeURL(s.cfg, opts)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set(keyHeader, key)
	conn, resp, err := s.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, provider.FromResponse(streamingName, resp)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, provider.Network(streamingName, err)
	}

	st := &stream{
		conn:       conn,
		opts:       opts,
		audio:      make(chan []byte, 256),
		committed:  make(chan struct{}),
		done:       make(chan struct{}),
		deregister: func(st *stream) { s.forget(st) },
	}
	s.mu.Lock()
	s.open[st] = struct{}{}
	s.mu.Unlock()

	st.wg.Add(2)
	go st.readLoop()
	go st.writeLoop()
	go func() {
		st.wg.Wait()
		close(st.done)
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = st.Close()
		case <-st.done:
		}
	}()

	return st, nil
}

func (s *Streaming) forget(st *stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, st)
}

func buildRealtimeURL(cfg Config, opts provider.StreamOptions) (string, error) {
	base := strings.TrimSpace(cfg.RealtimeURL)
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid realtime URL: %w", err)
	}
	query := u.Query()
	query.Set("model_id", cfg.RealtimeModel)
	query.Set("audio_format", "pcm_"+strconv.Itoa(opts.SampleRate))
	query.Set("commit_strategy", "manual")
	if lang := provider.NormalizeLanguage(opts.Language); lang != "" {
		query.Set("language_code", lang)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

type outboundChunk struct {
	MessageType string `json:"message_type"`
	Audio       string `json:"audio_base_64"`
	Commit      bool   `json:"commit"`
	SampleRate  int    `json:"sample_rate"`
}

type inboundMessage struct {
	MessageType  string `json:"message_type"`
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
	Error        string `json:"error"`
	Message      string `json:"message"`
}

type stream struct {
	conn       *websocket.Conn
	opts       provider.StreamOptions
	deregister func(*stream)

	audio     chan []byte
	committed chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup

	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	mu         sync.Mutex
	finals     []string
	language   string
	commitSent bool

	sendMu     sync.RWMutex
	sendClosed bool

	closeSendOnce sync.Once
	closeOnce     sync.Once
	commitOnce    sync.Once
	bytesSent     atomic.Int64
}

func (s *stream) Send(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), frame...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("stream closed")
	default:
		return errors.New("stream send buffer is full")
	}
}

func (s *stream) closeSend() {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
}

func (s *stream) Finish(ctx context.Context) (provider.TranscribeResult, error) {
	started := time.Now()
	s.closeSend()

	committed := false
	select {
	case <-s.committed:
		committed = true
	case <-s.done:
		select {
		case <-s.committed:
			committed = true
		default:
		}
	case <-ctx.Done():
		_ = s.Close()
		return provider.TranscribeResult{}, ctx.Err()
	}
	_ = s.Close()

	if !committed {
		if err := s.waitErr(); err != nil {
			return provider.TranscribeResult{}, err
		}
		return provider.TranscribeResult{}, &provider.Error{
			Kind:     provider.KindNetwork,
			Provider: streamingName,
			Detail:   "stream ended before the final transcript",
		}
	}

	s.mu.Lock()
	text := strings.Join(s.finals, " ")
	language := s.language
	s.mu.Unlock()

	bytesPerSecond := float64(s.opts.SampleRate * 2)
	return provider.TranscribeResult{
		Text:            strings.TrimSpace(text),
		Language:        language,
		DurationSeconds: float64(s.bytesSent.Load()) / bytesPerSecond,
		Latency:         time.Since(started),
	}, nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeSend()
		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()
		_ = s.conn.Close()
		if s.deregister != nil {
			s.deregister(s)
		}
	})
	<-s.done
	return nil
}

func (s *stream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *stream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *stream) write(msg outboundChunk) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *stream) writeLoop() {
	defer s.wg.Done()

	for frame := range s.audio {
		err := s.write(outboundChunk{
			MessageType: "input_audio_chunk",
			Audio:       base64.StdEncoding.EncodeToString(frame),
			SampleRate:  s.opts.SampleRate,
		})
		if err != nil {
			s.setErr(provider.Network(streamingName, fmt.Errorf("send audio: %w", err)))
			return
		}
		s.bytesSent.Add(int64(len(frame)))
	}

	s.mu.Lock()
	s.commitSent = true
	s.mu.Unlock()
	err := s.write(outboundChunk{
		MessageType: "input_audio_chunk",
		Commit:      true,
		SampleRate:  s.opts.SampleRate,
	})
	if err != nil {
		s.setErr(provider.Network(streamingName, fmt.Errorf("send commit: %w", err)))
	}
}

func (s *stream) readLoop() {
	defer s.wg.Done()
	// A dead reader means no transcript can arrive; stop accepting audio.
	defer s.closeSend()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(provider.Network(streamingName, err))
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		switch msg.MessageType {
		case "partial_transcript":
			if text := strings.TrimSpace(msg.Text); text != "" && s.opts.OnPartial != nil {
				s.opts.OnPartial(text)
			}
		case "committed_transcript", "committed_transcript_with_timestamps":
			text := strings.TrimSpace(msg.Text)
			s.mu.Lock()
			if text != "" {
				s.finals = append(s.finals, text)
			}
			if msg.LanguageCode != "" {
				s.language = msg.LanguageCode
			}
			final := s.commitSent
			s.mu.Unlock()

			if text != "" && s.opts.OnFinal != nil {
				s.opts.OnFinal(text)
			}
			if final {
				s.commitOnce.Do(func() { close(s.committed) })
			}
		case "session_started", "":
		default:
			if strings.Contains(msg.MessageType, "error") || msg.Error != "" ||
				msg.MessageType == "quota_exceeded" || msg.MessageType == "rate_limited" {
				s.setErr(classifyStreamError(msg))
				return
			}
		}
	}
}

func classifyStreamError(msg inboundMessage) error {
	detail := strings.TrimSpace(msg.Error)
	if detail == "" {
		detail = strings.TrimSpace(msg.Message)
	}
	if detail == "" {
		detail = msg.MessageType
	}

	kind := provider.KindGeneric
	switch msg.MessageType {
	case "auth_error", "unauthorized":
		kind = provider.KindAuth
	case "quota_exceeded", "rate_limited", "rate_limit_error":
		kind = provider.KindRateLimit
	}
	return &provider.Error{Kind: kind, Provider: streamingName, Detail: detail}
}
