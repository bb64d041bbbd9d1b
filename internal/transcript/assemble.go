// Package transcript normalizes recognized text before delivery.
package transcript

import (
	"context"
	"strings"
	"time"

	"github.com/rbright/voyc/internal/provider"
)

// Options controls transcript formatting.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

// Assemble joins segments, collapses whitespace, and applies opts.
func Assemble(segments []string, opts Options) string {
	if len(segments) == 0 {
		return ""
	}

	normalized := strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalizeSentences(normalized)
	}
	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

func capitalizeSentences(text string) string {
	return capitalizePronounI(capitalizeSentenceStarts(text))
}

// Cleanup is the local refinement stage. It never fails.
type Cleanup struct {
	Options Options
}

func (c Cleanup) Name() string { return "cleanup" }

func (c Cleanup) Process(_ context.Context, text string, _ provider.RefineContext) (provider.ProcessResult, error) {
	started := time.Now()
	out := Assemble([]string{text}, c.Options)
	return provider.ProcessResult{
		Text:     out,
		Latency:  time.Since(started),
		Modified: out != text,
	}, nil
}
