// CLAUDE:SUMMARY Two-strategy page fetcher (headless render then simple HTTP) with retry/backoff and SSRF validation.
// Package fetch retrieves competitor pages and normalizes them to Content.
//
// Two strategies are tried in order. The render strategy loads the page in
// a headless browser and is retried with exponential backoff. When its
// attempts are exhausted, or no renderer is configured, the simple-HTTP
// strategy issues a single plain GET. If both fail the fetch fails with
// ErrAllStrategiesExhausted; the caller decides what that means for the
// item.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/hazyhaar/rivalwatch/horosafe"
	"github.com/hazyhaar/rivalwatch/veille/internal/normalize"
	"github.com/hazyhaar/rivalwatch/veille/internal/retry"
)

// Methods identifying the strategy that produced a Result.
const (
	MethodRender     = "render"
	MethodSimpleHTTP = "simple_http"
)

var (
	// ErrAllStrategiesExhausted matches an *ExhaustedError.
	ErrAllStrategiesExhausted = errors.New("fetch: all strategies exhausted")
	// ErrURLRejected is returned when the URL validator refuses a target.
	ErrURLRejected = errors.New("fetch: URL rejected")
)

// Renderer loads a page in a browser and returns the final URL and DOM.
type Renderer interface {
	Render(ctx context.Context, pageURL, userAgent string) (finalURL, html string, err error)
}

// Result is a normalized page and how it was obtained.
type Result struct {
	Content  normalize.Content
	Method   string
	Attempts int
}

// ExhaustedError reports the last failure of each strategy.
type ExhaustedError struct {
	URL      string
	Attempts int
	Render   error // nil when the render strategy is disabled
	Simple   error
}

func (e *ExhaustedError) Error() string {
	if e.Render == nil {
		return fmt.Sprintf("fetch %s: simple http: %v", e.URL, e.Simple)
	}
	return fmt.Sprintf("fetch %s: render: %v; simple http: %v", e.URL, e.Render, e.Simple)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllStrategiesExhausted }

func (e *ExhaustedError) Unwrap() []error {
	var errs []error
	if e.Render != nil {
		errs = append(errs, e.Render)
	}
	if e.Simple != nil {
		errs = append(errs, e.Simple)
	}
	return errs
}

// StatusError is a non-2xx response from the simple-HTTP strategy.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, http.StatusText(e.Code))
}

// Config configures the Fetcher.
type Config struct {
	// Renderer runs the render strategy. Nil skips straight to simple HTTP.
	Renderer Renderer

	// Retry governs render attempts. Default: 3 attempts, 2s base, x2.
	Retry retry.Policy

	// HTTPTimeout bounds the simple-HTTP request. Default: 15s.
	HTTPTimeout time.Duration

	// MaxBytes caps the simple-HTTP body. Default: 10 MiB.
	MaxBytes int64

	// UserAgents is the pool one agent is drawn from per attempt.
	UserAgents []string

	// Headers are sent by both strategies.
	Headers map[string]string

	// URLValidator vets targets and redirects. Default: horosafe.ValidateURL.
	URLValidator func(string) error

	// Pick returns an index in [0, n). Default: math/rand/v2.
	Pick func(n int) int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = 2 * time.Second
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = horosafe.MaxResponseBody
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = UserAgents
	}
	if c.Headers == nil {
		c.Headers = DefaultHeaders()
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
	if c.Pick == nil {
		c.Pick = rand.IntN
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher runs the strategies for one URL at a time.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New creates a Fetcher. Redirects of the simple-HTTP strategy are capped
// at five and each hop goes through the URL validator.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
	}
}

// Fetch obtains the normalized content of pageURL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	if err := f.cfg.URLValidator(pageURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrURLRejected, err)
	}
	log := f.cfg.Logger.With("url", pageURL)

	var (
		renderErr error
		attempts  int
	)
	if f.cfg.Renderer != nil {
		var content normalize.Content
		attempts, renderErr = f.cfg.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
			c, err := f.render(ctx, pageURL)
			if err != nil {
				log.Warn("fetch: render attempt failed",
					"attempt", attempt, "max", f.cfg.Retry.MaxAttempts, "error", err)
				return err
			}
			content = c
			return nil
		})
		if renderErr == nil {
			return &Result{Content: content, Method: MethodRender, Attempts: attempts}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(renderErr, ErrURLRejected) {
			log.Warn("fetch: render redirected to a rejected URL", "error", renderErr)
			return nil, renderErr
		}
		log.Warn("fetch: render strategy exhausted, trying simple http", "attempts", attempts)
	}

	attempts++
	content, err := f.simple(ctx, pageURL)
	if err != nil {
		log.Error("fetch: all strategies failed", "attempts", attempts, "error", err)
		return nil, &ExhaustedError{URL: pageURL, Attempts: attempts, Render: renderErr, Simple: err}
	}
	return &Result{Content: content, Method: MethodSimpleHTTP, Attempts: attempts}, nil
}

func (f *Fetcher) render(ctx context.Context, pageURL string) (normalize.Content, error) {
	finalURL, html, err := f.cfg.Renderer.Render(ctx, pageURL, f.userAgent())
	if err != nil {
		return normalize.Content{}, err
	}
	if finalURL == "" {
		finalURL = pageURL
	}
	if finalURL != pageURL {
		if err := f.cfg.URLValidator(finalURL); err != nil {
			return normalize.Content{}, retry.Permanent(fmt.Errorf("%w: redirected to %s: %w", ErrURLRejected, finalURL, err))
		}
	}
	return normalize.FromDOM(html, finalURL)
}

func (f *Fetcher) userAgent() string {
	return f.cfg.UserAgents[f.cfg.Pick(len(f.cfg.UserAgents))]
}
