package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type CommonHTTP struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type FeedConfig struct {
	Name string     `yaml:"name"` // source label, e.g. "openai"
	URL  string     `yaml:"url"`  // e.g. https://status.openai.com/history.rss
	HTTP CommonHTTP `yaml:"http"`
	// Incremental sync
	StatePath   string `yaml:"state_path"`   // persisted cursor file path
	SkipInitial bool   `yaml:"skip_initial"` // first cycle only primes the cursor
	// Resilience
	MaxRetries int           `yaml:"max_retries"` // retry attempts (e.g. 3)
	Backoff    time.Duration `yaml:"backoff"`     // initial backoff (e.g. 500ms)
	MaxBackoff time.Duration `yaml:"max_backoff"` // cap (e.g. 5s)
}

type LogConfig struct {
	Path    string `yaml:"path"`    // JSON incident log file
	Console bool   `yaml:"console"` // also print incidents to stdout
}

type LokiConfig struct {
	URL       string        `yaml:"url"`       // http://loki:3100; empty disables the sink
	TenantID  string        `yaml:"tenant_id"` // optional multi-tenancy
	Job       string        `yaml:"job"`       // label value, default: statuspage-monitor
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type ProductRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"` // case-insensitive substrings to match in entry text
}

type DetectConfig struct {
	Products []ProductRule `yaml:"products"` // empty: built-in table
	Fallback string        `yaml:"fallback"` // product used when nothing matches
	// LogUnmatched logs entries that match no keyword under the
	// fallback product instead of skipping them.
	LogUnmatched bool `yaml:"log_unmatched"`
}

type DedupConfig struct {
	TTL       time.Duration `yaml:"ttl"`        // in-memory cache TTL, e.g. 168h
	MaxKeys   int           `yaml:"max_keys"`   // cap to bound memory
	StatePath string        `yaml:"state_path"` // persisted seen-ID file
	MaxSeen   int           `yaml:"max_seen"`   // cap on persisted IDs, oldest trimmed
}

type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"` // e.g. :9109
}

type WebhookConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"` // e.g. :8080
	Path   string `yaml:"path"`   // e.g. /webhooks/status
}

type Config struct {
	Feeds   []FeedConfig  `yaml:"feeds"`
	Log     LogConfig     `yaml:"log"`
	Loki    LokiConfig    `yaml:"loki"`
	Detect  DetectConfig  `yaml:"detect"`
	Dedup   DedupConfig   `yaml:"dedup"`
	Metrics MetricsConfig `yaml:"metrics"`
	Webhook WebhookConfig `yaml:"webhook"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(c.Feeds) == 0 && !c.Webhook.Enable {
		return nil, errors.New("need at least one feed or the webhook listener")
	}
	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.URL == "" {
			return nil, fmt.Errorf("feed %d: url is required", i)
		}
		if f.Name == "" {
			f.Name = fmt.Sprintf("feed%d", i)
		}
		if f.HTTP.Timeout == 0 {
			f.HTTP.Timeout = 15 * time.Second
		}
		if f.MaxRetries <= 0 {
			f.MaxRetries = 3
		}
		if f.Backoff == 0 {
			f.Backoff = 500 * time.Millisecond
		}
		if f.MaxBackoff == 0 {
			f.MaxBackoff = 5 * time.Second
		}
	}
	// Defaults
	if c.Log.Path == "" {
		c.Log.Path = "logs/incident_log.json"
	}
	if c.Loki.Job == "" {
		c.Loki.Job = "statuspage-monitor"
	}
	if c.Loki.Timeout == 0 {
		c.Loki.Timeout = 10 * time.Second
	}
	if c.Dedup.TTL == 0 {
		c.Dedup.TTL = 7 * 24 * time.Hour
	}
	if c.Dedup.MaxKeys <= 0 {
		c.Dedup.MaxKeys = 10000
	}
	if c.Dedup.StatePath == "" {
		c.Dedup.StatePath = "logs/seen.json"
	}
	if c.Dedup.MaxSeen <= 0 {
		c.Dedup.MaxSeen = 50000
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9109"
	}
	if c.Webhook.Listen == "" {
		c.Webhook.Listen = ":8080"
	}
	if c.Webhook.Path == "" {
		c.Webhook.Path = "/webhooks/status"
	}
	return &c, nil
}
