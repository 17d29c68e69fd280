package veille

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the rivalwatch configuration file. JSON files parse as well
// since JSON is a subset of YAML.
type Config struct {
	Competitors []Competitor   `yaml:"competitors" json:"competitors"`
	Monitoring  Monitoring     `yaml:"monitoring" json:"monitoring"`
	Fetch       FetchConfig    `yaml:"fetch" json:"fetch"`
	Browser     BrowserConfig  `yaml:"browser" json:"browser"`
	Analysis    AnalysisConfig `yaml:"analysis" json:"analysis"`
	Storage     StorageConfig  `yaml:"storage" json:"storage"`
}

// Competitor is one tracked organisation and where to watch it.
type Competitor struct {
	ID      string  `yaml:"id" json:"id"`
	Name    string  `yaml:"name" json:"name"`
	Sources Sources `yaml:"sources" json:"sources"`
}

// Sources lists the feeds and pages of a competitor.
type Sources struct {
	RSS      []string `yaml:"rss,omitempty" json:"rss,omitempty"`
	Websites []string `yaml:"websites,omitempty" json:"websites,omitempty"`
}

// Monitoring bounds the work done per run. A negative delay disables the
// corresponding throttle.
type Monitoring struct {
	MaxArticlesPerSource     int           `yaml:"maxArticlesPerSource" json:"maxArticlesPerSource"`
	MaxWebsitesPerCompetitor int           `yaml:"maxWebsitesPerCompetitor" json:"maxWebsitesPerCompetitor"`
	WebsiteDelay             time.Duration `yaml:"websiteDelay" json:"websiteDelay"`
	RSSDelay                 time.Duration `yaml:"rssDelay" json:"rssDelay"`
}

// FetchConfig tunes page retrieval.
type FetchConfig struct {
	// Render enables the headless browser strategy. Default: true.
	Render        *bool         `yaml:"render,omitempty" json:"render,omitempty"`
	RenderTimeout time.Duration `yaml:"renderTimeout" json:"renderTimeout"`
	Settle        time.Duration `yaml:"settle" json:"settle"`
	HTTPTimeout   time.Duration `yaml:"httpTimeout" json:"httpTimeout"`
	MaxAttempts   int           `yaml:"maxAttempts" json:"maxAttempts"`
	BaseDelay     time.Duration `yaml:"baseDelay" json:"baseDelay"`
}

// RenderEnabled reports whether the browser strategy is on.
func (f FetchConfig) RenderEnabled() bool {
	return f.Render == nil || *f.Render
}

// BrowserConfig selects the browser used by the render strategy. Remote is
// a DevTools websocket URL; empty launches a local headless Chromium from
// Bin (or the one rod downloads).
type BrowserConfig struct {
	Remote string `yaml:"remote" json:"remote"`
	Bin    string `yaml:"bin" json:"bin"`
}

// AnalysisConfig tunes the provider chain.
type AnalysisConfig struct {
	Timeout time.Duration     `yaml:"timeout" json:"timeout"`
	Models  map[string]string `yaml:"models,omitempty" json:"models,omitempty"`
}

// StorageConfig locates persistent state.
type StorageConfig struct {
	DB        string `yaml:"db" json:"db"`
	DigestDir string `yaml:"digestDir" json:"digestDir"`
}

func (c *Config) defaults() {
	if c.Monitoring.MaxArticlesPerSource <= 0 {
		c.Monitoring.MaxArticlesPerSource = 5
	}
	if c.Monitoring.MaxWebsitesPerCompetitor <= 0 {
		c.Monitoring.MaxWebsitesPerCompetitor = 3
	}
	if c.Monitoring.WebsiteDelay == 0 {
		c.Monitoring.WebsiteDelay = 2 * time.Second
	}
	if c.Monitoring.RSSDelay == 0 {
		c.Monitoring.RSSDelay = time.Second
	}
	if c.Fetch.RenderTimeout <= 0 {
		c.Fetch.RenderTimeout = 20 * time.Second
	}
	if c.Fetch.Settle == 0 {
		c.Fetch.Settle = 2 * time.Second
	}
	if c.Fetch.HTTPTimeout <= 0 {
		c.Fetch.HTTPTimeout = 15 * time.Second
	}
	if c.Fetch.MaxAttempts <= 0 {
		c.Fetch.MaxAttempts = 3
	}
	if c.Fetch.BaseDelay <= 0 {
		c.Fetch.BaseDelay = 2 * time.Second
	}
	if c.Analysis.Timeout <= 0 {
		c.Analysis.Timeout = 30 * time.Second
	}
	if c.Storage.DB == "" {
		c.Storage.DB = "data/rivalwatch.db"
	}
}

// DefaultConfig is used when no configuration file exists.
func DefaultConfig() *Config {
	cfg := &Config{
		Competitors: []Competitor{
			{
				ID:      "mozilla",
				Name:    "Mozilla",
				Sources: Sources{RSS: []string{"https://blog.mozilla.org/feed/"}},
			},
			{
				ID:      "example",
				Name:    "Example Competitor",
				Sources: Sources{Websites: []string{"https://example.com"}},
			},
		},
	}
	cfg.defaults()
	return cfg
}

// ParseConfig decodes a YAML or JSON configuration, applies defaults and
// validates it.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", ErrInvalidInput, err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads the configuration at path. A missing file is reported
// with an error wrapping fs.ErrNotExist so callers can fall back to
// DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("veille: read config: %w", err)
	}
	return ParseConfig(data)
}

// Competitor returns the configured competitor with the given id.
func (c *Config) Competitor(id string) (Competitor, error) {
	for _, comp := range c.Competitors {
		if comp.ID == id {
			return comp, nil
		}
	}
	return Competitor{}, fmt.Errorf("%w: %q", ErrUnknownCompetitor, id)
}
