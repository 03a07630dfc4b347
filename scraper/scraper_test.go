package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/kardainfra/karda/config"
	"github.com/kardainfra/karda/models"
	"github.com/kardainfra/karda/pipeline"
)

const listingHTML = `<!doctype html>
<html><head>
<title>Listing</title>
<meta property="og:image" content="/img/abb.jpg">
</head><body>
<h1>2500 kVA ABB Pad Mount</h1>
<span class="price">$95,000</span>
<div class="entry-content">New surplus unit, copper windings, ONAN cooled.</div>
<p>Location: Pittsburgh, PA</p>
<table>
<tr><td>Primary Voltage</td><td>34.5kV</td></tr>
<tr><td>Secondary Voltage</td><td>575V</td></tr>
</table>
</body></html>`

func htmlResponder(status int, body string) httpmock.Responder {
	return func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		resp.Header.Set("Content-Type", "text/html; charset=utf-8")
		return resp, nil
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Parallelism = 1
	cfg.MaxRetries = 0
	cfg.PipelineBufferSize = 16
	cfg.BatchSize = 1
	cfg.RespectRobotsTxt = false
	return cfg
}

func testTarget(url string) models.Target {
	return models.Target{
		AssetID: "TR-ABB-2500-PA",
		URL:     url,
		Defaults: models.Listing{
			Name:   "2500 kVA ABB SURPLUS",
			Weight: "13,500 LBS",
		},
	}
}

func TestRetryManagerAllowRespectsLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 2

	rm := newRetryManager(cfg, NewMetrics())
	timeout := &FetchError{Kind: KindTimeout, URL: "http://example.test/a"}

	if !rm.Allow("http://example.test/a", timeout) {
		t.Fatalf("first retry should be allowed")
	}
	if !rm.Allow("http://example.test/a", timeout) {
		t.Fatalf("second retry should be allowed")
	}
	if rm.Allow("http://example.test/a", timeout) {
		t.Fatalf("third retry should not be allowed")
	}
	if got := rm.TotalRetries(); got != 2 {
		t.Fatalf("total retries = %d, want 2", got)
	}
}

func TestRetryManagerSkipsPermanentFailures(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 3

	rm := newRetryManager(cfg, NewMetrics())
	if rm.Allow("http://example.test/gone", &FetchError{Kind: KindNotFound, Status: 404}) {
		t.Fatalf("404 should not be retried")
	}
	if rm.Allow("http://example.test/blocked", &FetchError{Kind: KindForbidden, Status: 403}) {
		t.Fatalf("403 should not be retried")
	}
}

func TestRetryManagerDisabledByDefault(t *testing.T) {
	rm := newRetryManager(config.DefaultConfig(), NewMetrics())
	if rm.Allow("http://example.test/a", errors.New("boom")) {
		t.Fatalf("retries should be disabled when MaxRetries is zero")
	}
}

func TestRetryManagerBackoffCapped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	rm := newRetryManager(cfg, NewMetrics())

	if got := rm.backoff(1); got != 200*time.Millisecond {
		t.Fatalf("backoff(1) = %v", got)
	}
	if got := rm.backoff(4); got != cfg.RetryBackoffMax {
		t.Fatalf("backoff(4) = %v, want %v", got, cfg.RetryBackoffMax)
	}
}

func TestRetryManagerWaitCancelled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RetryBackoff = time.Hour
	cfg.RetryBackoffMax = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rm := newRetryManager(cfg, NewMetrics())
	if err := rm.Wait(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("wait error = %v, want context.Canceled", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: errors.New("Not Found"), statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorLabel(classifyError(tt.err, tt.statusCode, "http://example.test/")); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestScraperHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			cfg := testConfig()
			url := "http://example.test/listing/abb/"

			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", url, htmlResponder(tt.status, ""))

			s, err := NewScraper(cfg, WithTransport(transport))
			if err != nil {
				t.Fatalf("new scraper: %v", err)
			}

			writer := &collectingWriter{}
			p := pipeline.NewPipeline(context.Background(), writer, cfg)
			p.Start(1)

			result, err := s.Run(context.Background(), []models.Target{testTarget(url)}, p)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if err := p.Close(); err != nil {
				t.Fatalf("close pipeline: %v", err)
			}

			if got := result.ErrorsByType[tt.expected]; got == 0 {
				t.Fatalf("expected %q classification for status %d, got %v", tt.expected, tt.status, result.ErrorsByType)
			}
			if len(result.FailedURLs) != 1 || result.FailedURLs[0] != url {
				t.Fatalf("failed urls = %v", result.FailedURLs)
			}
			if writer.count() != 0 {
				t.Fatalf("nothing should be written for status %d", tt.status)
			}
		})
	}
}

func TestScraperRetriesRateLimitedPage(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 5 * time.Millisecond
	url := "http://example.test/listing/abb/"

	var mu sync.Mutex
	calls := 0
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", url, func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return htmlResponder(http.StatusTooManyRequests, "")(req)
		}
		return htmlResponder(http.StatusOK, listingHTML)(req)
	})

	s, err := NewScraper(cfg, WithTransport(transport))
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	page, err := s.Scrape(context.Background(), testTarget(url))
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if page.Title != "2500 kVA ABB Pad Mount" {
		t.Fatalf("title = %q", page.Title)
	}
	if got := s.retry.TotalRetries(); got != 1 {
		t.Fatalf("retries = %d, want 1", got)
	}
}

func TestScraperRejectsNonHTML(t *testing.T) {
	cfg := testConfig()
	url := "http://example.test/listing/feed.json"

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", url, httpmock.NewStringResponder(http.StatusOK, `{"ok":true}`))

	s, err := NewScraper(cfg, WithTransport(transport))
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	if _, err := s.Scrape(context.Background(), testTarget(url)); !errors.Is(err, ErrNotHTML) {
		t.Fatalf("error = %v, want ErrNotHTML", err)
	}
}

func TestScraperRunWritesListing(t *testing.T) {
	cfg := testConfig()
	url := "http://example.test/listing/abb/"

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", url, htmlResponder(http.StatusOK, listingHTML))

	s, err := NewScraper(cfg, WithTransport(transport))
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	result, err := s.Run(context.Background(), []models.Target{testTarget(url)}, p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}

	if result.PageCount != 1 || result.RequestCount != 1 {
		t.Fatalf("result = %+v", result)
	}
	if n := p.Processed(); n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	listings := writer.snapshot()
	if len(listings) != 1 {
		t.Fatalf("written = %d, want 1", len(listings))
	}
	got := listings[0]
	if got.ID != "TR-ABB-2500-PA" || got.Title != "2500 kVA ABB Pad Mount" {
		t.Fatalf("listing = %+v", got)
	}
	if got.Price.Amount != 95000 || got.Location != "PITTSBURGH, PA" {
		t.Fatalf("price/location = %+v / %q", got.Price, got.Location)
	}
	if got.PrimaryVoltage != "34.5kV" || got.Weight != "13,500 LBS" {
		t.Fatalf("specs = %q / %q", got.PrimaryVoltage, got.Weight)
	}
	if got.SourceImageURL != "http://example.test/img/abb.jpg" {
		t.Fatalf("image = %q", got.SourceImageURL)
	}
	if !strings.HasPrefix(got.Description, "New surplus unit") || got.TechSpecs.ProductionStatus != "New Surplus" {
		t.Fatalf("description = %q status = %q", got.Description, got.TechSpecs.ProductionStatus)
	}
}

func TestScraperRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	s, err := NewScraper(cfg, WithTransport(transport))
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	p := pipeline.NewPipeline(context.Background(), &collectingWriter{}, cfg)
	p.Start(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	targets := []models.Target{testTarget("http://example.test/a"), testTarget("http://example.test/b")}
	if _, err := s.Run(ctx, targets, p); !errors.Is(err, context.Canceled) {
		t.Fatalf("run error = %v, want context.Canceled", err)
	}
	if s.requestCount != 0 {
		t.Fatalf("no request should be made after cancel")
	}
}

type collectingWriter struct {
	mu       sync.Mutex
	listings []*models.Listing
}

func (cw *collectingWriter) Write(_ context.Context, listings []*models.Listing) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.listings = append(cw.listings, listings...)
	return nil
}

func (cw *collectingWriter) Close() error {
	return nil
}

func (cw *collectingWriter) Validate() error {
	return nil
}

func (cw *collectingWriter) count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.listings)
}

func (cw *collectingWriter) snapshot() []*models.Listing {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return append([]*models.Listing(nil), cw.listings...)
}

func BenchmarkPipelineProcess(b *testing.B) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 64
	cfg.PipelineBufferSize = 256

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		page := &models.ScrapedPage{
			Target:   models.Target{AssetID: fmt.Sprintf("TR-BENCH-%d", i)},
			URL:      fmt.Sprintf("http://example.test/listing/%d", i),
			Title:    "2500 kVA Padmount",
			RawPrice: "$45,000",
		}
		if err := p.Process(page); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
	b.StopTimer()

	if err := p.Close(); err != nil {
		b.Fatalf("close pipeline: %v", err)
	}
}
