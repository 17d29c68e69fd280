// CLAUDE:SUMMARY URL canonicalisation for configured sources: lowercase scheme/host, remove fragment, sort query params.
// CLAUDE:EXPORTS NormalizeSourceURL
package veille

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// NormalizeSourceURL canonicalises a feed or page URL so that the snapshot
// history of a target does not split over cosmetic variants. It lowercases
// scheme and host, removes the fragment and sorts query params. The path is
// kept as written since it is fetched verbatim. Only http and https are
// accepted. It does not upgrade http to https.
func NormalizeSourceURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty URL", ErrInvalidInput)
	}

	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidInput, raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidInput, raw)
	}

	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	if parsed.RawQuery != "" {
		params := parsed.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf strings.Builder
		for i, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for j, v := range vals {
				if i > 0 || j > 0 {
					buf.WriteByte('&')
				}
				buf.WriteString(url.QueryEscape(k))
				buf.WriteByte('=')
				buf.WriteString(url.QueryEscape(v))
			}
		}
		parsed.RawQuery = buf.String()
	}

	return parsed.String(), nil
}
