// Package browser renders pages in headless Chrome through go-rod. Every
// Render call runs in its own browser session (a fresh local Chrome, or an
// incognito context on a remote one) that is torn down before Render
// returns, whatever the outcome.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures a Renderer.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome per session.
	RemoteURL string

	// Bin is the Chrome binary used for local launches. Empty lets the
	// launcher find or download one.
	Bin string

	// NavigationTimeout bounds navigation up to DOMContentLoaded. Default: 20s.
	NavigationTimeout time.Duration

	// Settle is the pause after DOMContentLoaded before the DOM is read. Default: 2s.
	Settle time.Duration

	// Width and Height of the viewport. Default: 1280x800.
	Width, Height int

	// Headers are sent with every request of the page.
	Headers map[string]string

	// Block lists resource types aborted by the page: images, fonts, media,
	// stylesheets. Default: images, fonts, media.
	Block []string

	// EnableJavaScript lets page scripts run. Off by default.
	EnableJavaScript bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 20 * time.Second
	}
	if c.Settle < 0 {
		c.Settle = 0
	} else if c.Settle == 0 {
		c.Settle = 2 * time.Second
	}
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 800
	}
	if c.Block == nil {
		c.Block = []string{"images", "fonts", "media"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer renders pages in isolated browser sessions.
type Renderer struct {
	cfg Config
}

// New creates a Renderer. No browser is started until Render is called.
func New(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg}
}

// Render loads pageURL with the given user agent and returns the final
// page URL and the serialized DOM.
func (r *Renderer) Render(ctx context.Context, pageURL, userAgent string) (string, string, error) {
	b, release, err := r.session(ctx)
	if err != nil {
		return "", "", err
	}
	defer release()

	page, err := stealth.Page(b)
	if err != nil {
		return "", "", fmt.Errorf("browser: create page: %w", err)
	}
	defer page.Close()

	if err := r.prepare(page, userAgent); err != nil {
		return "", "", err
	}

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	defer cancel()
	nav := page.Context(navCtx)

	wait := nav.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := nav.Navigate(pageURL); err != nil {
		return "", "", fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	wait()
	if err := navCtx.Err(); err != nil {
		return "", "", fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	if err := sleepCtx(ctx, r.cfg.Settle); err != nil {
		return "", "", err
	}

	live := page.Context(ctx)
	html, err := live.HTML()
	if err != nil {
		return "", "", fmt.Errorf("browser: read DOM: %w", err)
	}
	finalURL := pageURL
	if info, err := live.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}
	return finalURL, html, nil
}

func (r *Renderer) prepare(page *rod.Page, userAgent string) error {
	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      userAgent,
			AcceptLanguage: "en-US,en",
		}); err != nil {
			return fmt.Errorf("browser: set user agent: %w", err)
		}
	}
	if len(r.cfg.Headers) > 0 {
		if _, err := page.SetExtraHeaders(headerPairs(r.cfg.Headers)); err != nil {
			return fmt.Errorf("browser: set headers: %w", err)
		}
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.Width,
		Height:            r.cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("browser: set viewport: %w", err)
	}
	if !r.cfg.EnableJavaScript {
		if err := (proto.EmulationSetScriptExecutionDisabled{Value: true}).Call(page); err != nil {
			return fmt.Errorf("browser: disable scripts: %w", err)
		}
	}
	if len(r.cfg.Block) > 0 {
		blockResources(page, r.cfg.Block)
	}
	return nil
}

// session returns a browser scoped to one render and the function that
// tears it down. The DevTools websocket is dialled here and closed by the
// release function: rod never closes a connection it was handed.
func (r *Renderer) session(ctx context.Context) (*rod.Browser, func(), error) {
	log := r.cfg.Logger
	connCtx, cancel := context.WithCancel(ctx)

	if r.cfg.RemoteURL != "" {
		root, ws, err := connect(connCtx, r.cfg.RemoteURL)
		if err != nil {
			cancel()
			return nil, nil, fmt.Errorf("browser: connect remote: %w", err)
		}
		incog, err := root.Incognito()
		if err != nil {
			ws.Close()
			cancel()
			return nil, nil, fmt.Errorf("browser: incognito context: %w", err)
		}
		return incog, func() {
			if err := incog.Close(); err != nil {
				log.Debug("browser: close incognito", "error", err)
			}
			ws.Close()
			cancel()
		}, nil
	}

	l := launcher.New().
		Context(connCtx).
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-extensions").
		Set("no-sandbox")
	if r.cfg.Bin != "" {
		l = l.Bin(r.cfg.Bin)
	}
	u, err := l.Launch()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("browser: launch: %w", err)
	}
	b, ws, err := connect(connCtx, u)
	if err != nil {
		l.Kill()
		l.Cleanup()
		cancel()
		return nil, nil, fmt.Errorf("browser: connect: %w", err)
	}
	log.Debug("browser: launched session", "control_url", u)

	return b, func() {
		if err := b.Close(); err != nil {
			log.Debug("browser: close", "error", err)
		}
		ws.Close()
		l.Kill()
		l.Cleanup()
		cancel()
	}, nil
}

// connect dials the DevTools endpoint and attaches a rod browser to it.
// The caller owns the returned websocket.
func connect(ctx context.Context, controlURL string) (*rod.Browser, *cdp.WebSocket, error) {
	ws := &cdp.WebSocket{}
	if err := ws.Connect(ctx, controlURL, nil); err != nil {
		return nil, nil, err
	}
	b := rod.New().Client(cdp.New().Start(ws)).Context(ctx)
	if err := b.Connect(); err != nil {
		ws.Close()
		return nil, nil, err
	}
	return b, ws, nil
}

// headerPairs flattens headers into the key, value list rod expects,
// sorted by key so requests are reproducible.
func headerPairs(h map[string]string) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, h[k])
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
