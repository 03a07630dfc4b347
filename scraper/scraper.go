package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/gocolly/colly/v2"
	"github.com/kardainfra/karda/config"
	"github.com/kardainfra/karda/models"
	"github.com/kardainfra/karda/parser"
	"github.com/kardainfra/karda/pipeline"
)

// ErrNotHTML is returned when a listing URL answers with something other
// than an HTML page.
var ErrNotHTML = errors.New("response is not an html page")

// Scraper fetches individual listing pages with colly and hands the
// extracted fields to the pipeline.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	transport http.RoundTripper
	retry     *retryManager
	Metrics   *Metrics

	requestCount int64
	pageCount    int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithTransport replaces the HTTP transport. The stealth wrapper, when
// enabled, is applied on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Scraper) { s.transport = rt }
}

// NewScraper builds a scraper configured from cfg.
func NewScraper(cfg *config.Config, opts ...Option) (*Scraper, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt

	s := &Scraper{
		cfg:       cfg,
		collector: collector,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	rt := s.transport
	if cfg.Stealth {
		rt = cloudflarebp.AddCloudFlareByPass(rt)
	}
	collector.WithTransport(rt)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s.retry = newRetryManager(cfg, s.Metrics)
	s.configureHandlers()
	return s, nil
}

// Scrape fetches one target, retrying retryable failures up to
// cfg.MaxRetries times.
func (s *Scraper) Scrape(ctx context.Context, target models.Target) (*models.ScrapedPage, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.fetch(target)
		if err == nil {
			return page, nil
		}
		if !s.retry.Allow(target.URL, err) {
			s.mu.Lock()
			s.failedURLs = append(s.failedURLs, target.URL)
			s.mu.Unlock()
			return nil, err
		}
		slog.Warn("retrying listing",
			slog.String("asset_id", target.AssetID),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if err := s.retry.Wait(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// Run scrapes every target in order and feeds the pages to p. A target that
// fails is logged and skipped; cancellation stops the run.
func (s *Scraper) Run(ctx context.Context, targets []models.Target, p *pipeline.Pipeline) (*models.ScraperResult, error) {
	start := time.Now()

	var runErr error
	for _, target := range targets {
		page, err := s.Scrape(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			slog.Error("listing scrape failed",
				slog.String("asset_id", target.AssetID),
				slog.String("url", target.URL),
				slog.Any("error", err),
			)
			continue
		}
		if err := p.Process(page); err != nil {
			if errors.Is(err, pipeline.ErrPipelineClosed) {
				runErr = err
				break
			}
			slog.Error("pipeline process error", slog.Any("error", err))
		}
	}

	result := &models.ScraperResult{
		StartTime:    start,
		EndTime:      time.Now(),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
		RetryCount:   s.retry.TotalRetries(),
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
		PageCount:    int(atomic.LoadInt64(&s.pageCount)),
	}
	return result, runErr
}

func (s *Scraper) fetch(target models.Target) (*models.ScrapedPage, error) {
	cctx := colly.NewContext()
	cctx.Put("target", target)

	err := s.collector.Request(http.MethodGet, target.URL, nil, cctx, nil)
	if fe, ok := cctx.GetAny("error").(error); ok {
		return nil, fe
	}
	if err != nil {
		return nil, classifyError(err, 0, target.URL)
	}
	page, ok := cctx.GetAny("page").(*models.ScrapedPage)
	if !ok {
		return nil, &FetchError{Kind: KindOther, URL: target.URL, Err: ErrNotHTML}
	}
	return page, nil
}

func (s *Scraper) configureHandlers() {
	s.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		atomic.AddInt64(&s.requestCount, 1)
		s.Metrics.IncRequest("started")
		slog.Debug("fetching listing", slog.String("url", r.URL.String()))
	})

	s.collector.OnResponse(func(r *colly.Response) {
		s.Metrics.IncRequest("completed")
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.Metrics.ObserveDuration(time.Since(start))
		}
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		atomic.AddInt64(&s.errorCount, 1)
		url := ""
		if r.Request != nil && r.Request.URL != nil {
			url = r.Request.URL.String()
		}
		classified := classifyError(err, r.StatusCode, url)
		category := ErrorLabel(classified)

		s.mu.Lock()
		s.errorsByType[category]++
		s.mu.Unlock()

		slog.Error("request error",
			slog.String("url", url),
			slog.String("category", category),
			slog.Any("error", err),
		)
		s.Metrics.IncError(category)
		if r.Ctx != nil {
			r.Ctx.Put("error", classified)
		}
	})

	s.collector.OnHTML("html", func(e *colly.HTMLElement) {
		page := parser.ExtractPage(e.DOM, string(e.Response.Body), e.Request.URL.String())
		if target, ok := e.Request.Ctx.GetAny("target").(models.Target); ok {
			page.Target = target
		}
		atomic.AddInt64(&s.pageCount, 1)
		s.Metrics.IncPages(page.Source)
		e.Request.Ctx.Put("page", &page)
	})
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
