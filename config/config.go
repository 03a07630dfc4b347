package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds settings for the jobs, the scrapers and the site.
type Config struct {
	// content store
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	UseCDN     bool
	CacheSize  int
	CacheTTL   time.Duration
	LocalStore bool

	// scraping
	Parallelism      int
	Delay            time.Duration
	RandomDelay      time.Duration
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration
	UserAgent        string
	RespectRobotsTxt bool
	Stealth          bool
	BrowserTimeout   time.Duration
	WaitTimeout      time.Duration
	ChromePath       string

	// pipeline
	Workers            int
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
	OutputFile         string
	OutputFormat       string // store, csv, json, or dual
	CaptureImages      bool

	// site
	ListenAddr     string
	MetricsAddr    string
	AllowedOrigins []string
	DatabaseURL    string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	MailFrom       string
	SalesEmail     string

	Verbose bool
}

// DefaultConfig returns the settings the production site and jobs use.
func DefaultConfig() *Config {
	return &Config{
		ProjectID:  "l2w4m5p0",
		Dataset:    "production",
		APIVersion: "2023-05-03",
		UseCDN:     true,
		CacheSize:  256,
		CacheTTL:   time.Minute,

		Parallelism:     1,
		Timeout:         30 * time.Second,
		MaxRetries:      0,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 5 * time.Second,
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		BrowserTimeout:  60 * time.Second,
		WaitTimeout:     15 * time.Second,

		Workers:            1,
		PipelineBufferSize: 64,
		BatchSize:          16,
		DedupeMaxSize:      1024,
		OutputFile:         "output/listings.csv",
		OutputFormat:       "store",
		CaptureImages:      true,

		ListenAddr:     ":8080",
		AllowedOrigins: []string{"*"},
		SMTPPort:       587,
		MailFrom:       "terminal@karda.tech",
		SalesEmail:     "n.hansen@karda.tech",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project id cannot be empty")
	}
	if c.Dataset == "" {
		return fmt.Errorf("dataset cannot be empty")
	}
	if c.APIVersion == "" {
		return fmt.Errorf("api version cannot be empty")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.BrowserTimeout <= 0 {
		return fmt.Errorf("browser timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	switch c.OutputFormat {
	case "store":
	case "csv", "json", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	default:
		return fmt.Errorf("output format must be store, csv, json, or dual")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("database URL must use the postgres scheme")
		}
	}
	if c.SMTPHost != "" && (c.SMTPPort <= 0 || c.SMTPPort > 65535) {
		return fmt.Errorf("smtp port must be between 1 and 65535")
	}
	if c.SMTPHost != "" && !strings.Contains(c.SalesEmail, "@") {
		return fmt.Errorf("sales email must be an address when smtp is enabled")
	}

	return nil
}

// MailEnabled reports whether inquiry notices should be emailed.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}
