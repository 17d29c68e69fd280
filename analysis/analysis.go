// CLAUDE:SUMMARY Analysis orchestrator: ordered LLM provider fallback with per-call timeout, ending in the rule-based analyzer that never fails.
// Package analysis turns competitor content into a short categorized
// assessment (Summary, Category, Impact, Action).
//
// An Orchestrator holds an ordered list of Backends. Summarize tries them in
// order under a per-call timeout, moving on after any error or blank
// answer, and falls back to the local RuleBased analyzer when none is
// configured or all fail. Summarize therefore always returns a result.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// RuleBasedProvider names results produced by the local analyzer.
const RuleBasedProvider = "rule_based"

// ErrEmptyResponse is returned by backends that answered with no text.
var ErrEmptyResponse = errors.New("analysis: empty response")

// Backend is one external analysis service.
type Backend interface {
	Name() string
	Analyze(ctx context.Context, content, competitor string) (string, error)
}

// Result is the outcome of Summarize. Text is the backend output verbatim.
type Result struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Fields   Fields `json:"fields"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each backend call. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithLogger sets the logger used to report backend failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator runs the fallback chain.
type Orchestrator struct {
	backends []Backend
	timeout  time.Duration
	logger   *slog.Logger
	rules    RuleBased
}

// New creates an Orchestrator over backends, tried in slice order. Nil
// entries are ignored.
func New(backends []Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{timeout: 30 * time.Second}
	for _, b := range backends {
		if b != nil {
			o.backends = append(o.backends, b)
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.timeout <= 0 {
		o.timeout = 30 * time.Second
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Providers returns the backend names in priority order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, len(o.backends))
	for i, b := range o.backends {
		names[i] = b.Name()
	}
	return names
}

// Summarize analyses content on behalf of competitor. Backend failures are
// logged and never returned.
func (o *Orchestrator) Summarize(ctx context.Context, content, competitor string) Result {
	if competitor == "" {
		competitor = "competitor"
	}
	for _, b := range o.backends {
		if ctx.Err() != nil {
			break
		}
		log := o.logger.With("provider", b.Name(), "competitor", competitor)
		text, err := o.call(ctx, b, content, competitor)
		if err != nil {
			log.Warn("analysis: provider failed, trying next", "error", err)
			continue
		}
		log.Debug("analysis: provider answered", "chars", len(text))
		return Result{Text: text, Provider: b.Name(), Fields: ParseFields(text)}
	}

	text := o.rules.Analyze(content, competitor)
	return Result{Text: text, Provider: RuleBasedProvider, Fields: ParseFields(text)}
}

func (o *Orchestrator) call(ctx context.Context, b Backend, content, competitor string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	text, err := b.Analyze(ctx, content, competitor)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
