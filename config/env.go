package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvString returns a trimmed, non-empty environment value.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses an integer environment value.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvBool parses a boolean environment value ("1", "true", "yes").
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true, true, nil
	case "no", "n", "off":
		return false, true, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return b, true, nil
}

// EnvDuration parses a duration environment value ("30s", "2m").
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// Load reads .env files (when present) into the environment and applies
// the environment over DefaultConfig. Variables already set win over the
// files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"SANITY_PROJECT_ID":   &c.ProjectID,
		"SANITY_DATASET":      &c.Dataset,
		"SANITY_API_VERSION":  &c.APIVersion,
		"SANITY_AUTH_TOKEN":   &c.Token,
		"KARDA_USER_AGENT":    &c.UserAgent,
		"KARDA_OUTPUT":        &c.OutputFile,
		"KARDA_OUTPUT_FORMAT": &c.OutputFormat,
		"KARDA_LISTEN_ADDR":   &c.ListenAddr,
		"KARDA_METRICS_ADDR":  &c.MetricsAddr,
		"DATABASE_URL":        &c.DatabaseURL,
		"SMTP_HOST":           &c.SMTPHost,
		"SMTP_USERNAME":       &c.SMTPUsername,
		"SMTP_PASSWORD":       &c.SMTPPassword,
		"KARDA_MAIL_FROM":     &c.MailFrom,
		"KARDA_SALES_EMAIL":   &c.SalesEmail,
		"CHROME_BIN":          &c.ChromePath,
	}
	for key, dst := range strs {
		if v, ok := EnvString(key); ok {
			*dst = v
		}
	}
	if v, ok := EnvString("KARDA_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}

	ints := map[string]*int{
		"KARDA_CACHE_SIZE":  &c.CacheSize,
		"KARDA_PARALLEL":    &c.Parallelism,
		"KARDA_MAX_RETRIES": &c.MaxRetries,
		"KARDA_WORKERS":     &c.Workers,
		"KARDA_BATCH_SIZE":  &c.BatchSize,
		"SMTP_PORT":         &c.SMTPPort,
	}
	for key, dst := range ints {
		v, ok, err := EnvInt(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"SANITY_USE_CDN":       &c.UseCDN,
		"KARDA_LOCAL_STORE":    &c.LocalStore,
		"KARDA_STEALTH":        &c.Stealth,
		"KARDA_CAPTURE_IMAGES": &c.CaptureImages,
		"KARDA_VERBOSE":        &c.Verbose,
	}
	for key, dst := range bools {
		v, ok, err := EnvBool(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"KARDA_CACHE_TTL":       &c.CacheTTL,
		"KARDA_TIMEOUT":         &c.Timeout,
		"KARDA_DELAY":           &c.Delay,
		"KARDA_BROWSER_TIMEOUT": &c.BrowserTimeout,
	}
	for key, dst := range durations {
		v, ok, err := EnvDuration(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
