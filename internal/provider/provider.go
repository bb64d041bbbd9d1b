// Package provider defines the transcription and refinement capabilities that
// remote speech and language services implement, and the error taxonomy they
// report through.
package provider

import (
	"context"
	"time"
)

// Provider is the lifecycle surface shared by every remote backend.
type Provider interface {
	Name() string
	SupportsStreaming() bool
	// SetAPIKey swaps the credential used by subsequent requests.
	SetAPIKey(key string)
	// Close releases idle connections and aborts open streams.
	Close() error
}

// Options are per-request transcription hints.
type Options struct {
	// Language is a BCP-47 hint; empty lets the service detect it.
	Language string
}

// TranscribeResult is one completed transcription.
type TranscribeResult struct {
	Text            string
	Language        string
	DurationSeconds float64
	Latency         time.Duration
}

// Transcriber converts a RIFF/WAVE container to text in a single request.
type Transcriber interface {
	Provider
	Transcribe(ctx context.Context, container []byte, opts Options) (TranscribeResult, error)
}

// StreamOptions configures an incremental transcription session.
type StreamOptions struct {
	Options
	SampleRate int
	OnPartial  func(text string)
	OnFinal    func(text string)
}

// StreamConnection is an open incremental transcription session.
type StreamConnection interface {
	// Send queues one PCM frame without blocking on the network.
	Send(frame []byte) error
	// Finish flushes pending audio and waits for the final transcript.
	Finish(ctx context.Context) (TranscribeResult, error)
	// Close aborts the session.
	Close() error
}

// StreamingTranscriber can also transcribe while audio is still arriving.
type StreamingTranscriber interface {
	Transcriber
	OpenStream(ctx context.Context, opts StreamOptions) (StreamConnection, error)
}

// RefineContext carries hints for a refinement request.
type RefineContext struct {
	Language string
	Prompt   string
}

// ProcessResult is the output of one refinement stage.
type ProcessResult struct {
	Text       string
	Latency    time.Duration
	Modified   bool
	TokenCount int
	Model      string
}

// Refiner rewrites transcribed text.
type Refiner interface {
	Provider
	Process(ctx context.Context, text string, rc RefineContext) (ProcessResult, error)
}
