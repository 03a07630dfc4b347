// Package browser scrapes listing pages that only render in a real browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/kardainfra/karda/config"
	"github.com/kardainfra/karda/models"
	"github.com/kardainfra/karda/parser"
	"github.com/kardainfra/karda/pipeline"
	"github.com/kardainfra/karda/scraper"
)

// readySelector must be visible before the page is captured.
const readySelector = "h1"

var chromeNames = []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}

var chromePaths = []string{
	"/usr/bin/google-chrome-stable",
	"/usr/bin/google-chrome",
	"/usr/bin/chromium-browser",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
	"/opt/google/chrome/google-chrome",
}

// Scraper drives headless Chrome through one listing page at a time.
type Scraper struct {
	cfg *config.Config
}

// NewScraper returns a browser scraper configured from cfg.
func NewScraper(cfg *config.Config) *Scraper {
	return &Scraper{cfg: cfg}
}

func (s *Scraper) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(s.cfg.UserAgent),
	)
	if bin := findChrome(s.cfg.ChromePath, exec.LookPath, fileExists); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}
	return opts
}

// Scrape loads target in a fresh browser, waits for the title and parses
// the rendered document.
func (s *Scraper) Scrape(ctx context.Context, target models.Target) (*models.ScrapedPage, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, s.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, s.cfg.BrowserTimeout)
	defer cancelRun()

	slog.Info("launching headless browser", slog.String("url", target.URL))

	if err := chromedp.Run(runCtx, chromedp.Navigate(target.URL)); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", target.URL, err)
	}

	waitCtx, cancelWait := context.WithTimeout(runCtx, s.cfg.WaitTimeout)
	err := chromedp.Run(waitCtx, chromedp.WaitVisible(readySelector, chromedp.ByQuery))
	cancelWait()
	if err != nil {
		return nil, fmt.Errorf("wait for %s on %s: %w", readySelector, target.URL, err)
	}

	var html, text string
	if err := chromedp.Run(runCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	); err != nil {
		return nil, fmt.Errorf("capture %s: %w", target.URL, err)
	}

	page, err := parsePage(html, text, target)
	if err != nil {
		return nil, err
	}
	slog.Info("browser capture complete",
		slog.String("url", target.URL),
		slog.String("title", page.Title),
		slog.String("price", page.RawPrice),
	)
	return page, nil
}

// parsePage extracts fields from rendered markup. innerText is searched for
// a price when the markup has none, since rendered text drops tag noise.
func parsePage(html, innerText string, target models.Target) (*models.ScrapedPage, error) {
	page, err := parser.ParseHTML(strings.NewReader(html), target.URL)
	if err != nil {
		return nil, err
	}
	if _, ok := parser.ParsePrice(page.RawPrice); !ok {
		if price := parser.FindPrice(innerText); price != "" {
			page.RawPrice = price
		}
	}
	if page.Location == "" {
		page.Location = parser.ExtractLocation(innerText)
	}
	page.Target = target
	page.ScrapedAt = time.Now()
	return &page, nil
}

// Run scrapes each target in order and feeds the pages to p.
func (s *Scraper) Run(ctx context.Context, targets []models.Target, p *pipeline.Pipeline) (*models.ScraperResult, error) {
	result := &models.ScraperResult{StartTime: time.Now(), ErrorsByType: make(map[string]int)}

	var runErr error
	for _, target := range targets {
		result.RequestCount++
		page, err := s.Scrape(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			result.ErrorCount++
			result.FailedURLs = append(result.FailedURLs, target.URL)
			result.ErrorsByType[scraper.ErrorLabel(classify(err, target.URL))]++
			slog.Error("stealth scrape failed",
				slog.String("asset_id", target.AssetID),
				slog.Any("error", err),
			)
			continue
		}
		result.PageCount++
		if err := p.Process(page); err != nil {
			if errors.Is(err, pipeline.ErrPipelineClosed) {
				runErr = err
				break
			}
			slog.Error("pipeline process error", slog.Any("error", err))
		}
	}

	result.EndTime = time.Now()
	return result, runErr
}

// classify maps Chrome navigation failures (net::ERR_*) onto fetch error
// kinds. Anything else is left for scraper.ErrorLabel.
func classify(err error, url string) error {
	msg := err.Error()
	if !strings.Contains(msg, "net::ERR_") {
		return err
	}
	kind := scraper.KindConnection
	switch {
	case strings.Contains(msg, "ERR_TIMED_OUT"), strings.Contains(msg, "ERR_CONNECTION_TIMED_OUT"):
		kind = scraper.KindTimeout
	case strings.Contains(msg, "ERR_HTTP_RESPONSE_CODE_FAILURE"), strings.Contains(msg, "ERR_BLOCKED"):
		kind = scraper.KindOther
	}
	return &scraper.FetchError{Kind: kind, URL: url, Err: err}
}

// findChrome resolves the browser binary: explicit path, then PATH lookup,
// then well-known install locations. An empty result lets chromedp search.
func findChrome(explicit string, lookPath func(string) (string, error), exists func(string) bool) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range chromeNames {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	for _, p := range chromePaths {
		if exists(p) {
			return p
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
