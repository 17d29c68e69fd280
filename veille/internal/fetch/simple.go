package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/html/charset"

	"github.com/hazyhaar/rivalwatch/horosafe"
	"github.com/hazyhaar/rivalwatch/veille/internal/normalize"
)

// simple is the single-shot plain GET strategy. Page scripts never run.
func (f *Fetcher) simple(ctx context.Context, pageURL string) (normalize.Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return normalize.Content{}, fmt.Errorf("new request: %w", err)
	}
	for k, v := range f.cfg.Headers {
		// The transport only decompresses bodies when it negotiated
		// the encoding itself.
		if http.CanonicalHeaderKey(k) == "Accept-Encoding" {
			continue
		}
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", f.userAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return normalize.Content{}, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return normalize.Content{}, &StatusError{Code: resp.StatusCode}
	}

	raw, err := horosafe.LimitedReadAll(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return normalize.Content{}, fmt.Errorf("read body: %w", err)
	}
	decoded, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return normalize.Content{}, fmt.Errorf("decode charset: %w", err)
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		return normalize.Content{}, fmt.Errorf("decode body: %w", err)
	}

	return normalize.FromMarkup(string(body), pageURL), nil
}
