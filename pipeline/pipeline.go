// Package pipeline validates scraped pages, turns them into listings and
// hands them to an output writer in batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kardainfra/karda/config"
	"github.com/kardainfra/karda/models"
	"github.com/kardainfra/karda/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers do not drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for in-flight batches.
var drainTimeout = 30 * time.Second

// OutputWriter receives batches of normalized listings.
type OutputWriter interface {
	Write(ctx context.Context, listings []*models.Listing) error
	Close() error
	Validate() error
}

// Pipeline coordinates validation, de-duplication, and output writing.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	pageCh    chan *models.ScrapedPage
	batchSize int

	wg   sync.WaitGroup
	seen *lru.Cache[string, struct{}]

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	buffer := cfg.PipelineBufferSize
	if buffer <= 0 {
		buffer = 1
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 1
	}
	dedupe := cfg.DedupeMaxSize
	if dedupe <= 0 {
		dedupe = 1024
	}
	seen, _ := lru.New[string, struct{}](dedupe)

	return &Pipeline{
		ctx:       ctx,
		writer:    writer,
		pageCh:    make(chan *models.ScrapedPage, buffer),
		batchSize: batch,
		seen:      seen,
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues scraped pages for downstream processing.
func (p *Pipeline) Process(pages ...*models.ScrapedPage) error {
	if len(pages) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, page := range pages {
		if page == nil {
			continue
		}
		if err := p.enqueue(page); err != nil {
			return err
		}
	}
	return nil
}

// Close stops intake and waits for workers to flush, at most drainTimeout.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.pageCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return p.Err()
	case <-time.After(drainTimeout):
		return ErrPipelineCloseTimeout
	}
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]any {
	return p.metrics.snapshot()
}

// Processed returns how many pages have been normalized so far. It is only
// final once Close has returned.
func (p *Pipeline) Processed() int {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()
	return int(p.metrics.processed)
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				snapshot := p.GetMetrics()
				processed, _ := snapshot["processed_listings"].(int64)
				validation, _ := snapshot["validation_errors"].(map[string]int)
				slog.Info("pipeline progress",
					slog.Int64("processed", processed),
					slog.Int("validation_kinds", len(validation)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.Listing, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(p.ctx, batch); err != nil {
			return err
		}
		p.metrics.addWritten(len(batch))
		batch = make([]*models.Listing, 0, p.batchSize)
		return nil
	}

	for page := range p.pageCh {
		listing := p.prepare(page)
		if listing == nil {
			continue
		}
		batch = append(batch, listing)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

func (p *Pipeline) prepare(page *models.ScrapedPage) *models.Listing {
	if err := parser.ValidatePage(page); err != nil {
		p.metrics.addValidation("invalid_page")
		slog.Debug("page rejected", slog.String("url", page.URL), slog.Any("error", err))
		return nil
	}

	if found, _ := p.seen.ContainsOrAdd(page.URL, struct{}{}); found {
		p.metrics.addValidation("duplicate_url")
		return nil
	}

	listing, err := parser.BuildListing(*page, page.Target.Defaults)
	if err != nil {
		p.metrics.addValidation("invalid_record")
		slog.Warn("listing rejected", slog.String("url", page.URL), slog.Any("error", err))
		return nil
	}

	p.metrics.incrementProcessed()
	return listing
}

func (p *Pipeline) enqueue(page *models.ScrapedPage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.pageCh <- page:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	written    int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addWritten(n int) {
	m.mu.Lock()
	m.written += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]any{
		"processed_listings": m.processed,
		"written_listings":   m.written,
		"validation_errors":  copyValidation,
	}
}
