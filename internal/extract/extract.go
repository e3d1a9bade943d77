// Package extract turns one notification span into structured fields
// (title, summary, deadline) using an LLM provider.
//
// Extraction never fails from the caller's point of view. Missing
// credentials, transport errors and malformed model output all degrade to a
// best-effort Result whose summary is the raw span text.
package extract

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/vgh186/feishu/internal/llm"
)

// Extraction methods recorded on Result.Method.
const (
	MethodLLM          = "llm"          // fields came from the model
	MethodFailed       = "failed"       // the call or its response was unusable
	MethodUnconfigured = "unconfigured" // no provider was configured
)

// MaxTitleRunes caps titles derived from the first line of a span.
const MaxTitleRunes = 60

// DefaultTemperature matches the sampling used by the original prompt tuning.
const DefaultTemperature = 0.3

// Result is the outcome of extracting one span.
type Result struct {
	Title    string  `json:"title,omitempty"` // empty when nothing was extracted
	Summary  string  `json:"summary"`
	Deadline *string `json:"deadline"` // YYYY-MM-DD or nil
	Method   string  `json:"method"`
}

// Extractor calls the provider for each span.
type Extractor struct {
	provider llm.Provider
	log      *zap.Logger
	now      func() time.Time
	opts     llm.CompletionOpts

	missingOnce sync.Once
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the clock used to date the prompt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithCompletionOpts overrides the provider request options.
func WithCompletionOpts(opts llm.CompletionOpts) Option {
	return func(e *Extractor) { e.opts = opts }
}

// New creates an Extractor. provider may be nil when extraction credentials
// are not configured; every span then takes the unconfigured fallback.
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		provider: provider,
		log:      zap.NewNop(),
		now:      time.Now,
		opts:     llm.CompletionOpts{Temperature: DefaultTemperature},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the fields for span.
func (e *Extractor) Extract(ctx context.Context, span string) Result {
	if e.provider == nil {
		e.missingOnce.Do(func() {
			e.log.Warn("extraction credentials not configured; using first-line titles")
		})
		return Result{Title: FirstLineTitle(span), Summary: span, Method: MethodUnconfigured}
	}

	content, err := e.provider.Complete(ctx, BuildPrompt(span, e.now()), e.opts)
	if err != nil {
		e.log.Warn("extraction call failed", zap.String("provider", e.provider.Name()), zap.Error(err))
		return Result{Summary: span, Method: MethodFailed}
	}

	res, rejected, err := ParseResponse(content, span)
	if err != nil {
		e.log.Warn("extraction response is not valid JSON",
			zap.Error(err),
			zap.String("raw", content),
		)
		return Result{Summary: span, Method: MethodFailed}
	}
	if rejected {
		e.log.Warn("discarding deadline that is not YYYY-MM-DD", zap.String("raw", content))
	}
	return res
}

// FirstLineTitle returns the first line of span cut to MaxTitleRunes.
func FirstLineTitle(span string) string {
	first, _, _ := strings.Cut(span, "\n")
	return strings.TrimSpace(truncateRunes(first, MaxTitleRunes))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
