package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kardainfra/karda/browser"
	"github.com/kardainfra/karda/config"
	"github.com/kardainfra/karda/inventory"
	"github.com/kardainfra/karda/models"
	"github.com/kardainfra/karda/parser"
	"github.com/kardainfra/karda/pipeline"
	"github.com/kardainfra/karda/scraper"
)

// ErrUnknownJob is returned by Run for a name with no definition.
var ErrUnknownJob = errors.New("jobs: unknown job")

// PageScraper fetches targets and feeds the pages into a pipeline.
type PageScraper interface {
	Run(ctx context.Context, targets []models.Target, p *pipeline.Pipeline) (*models.ScraperResult, error)
}

// ScraperFactory builds the scraper for an engine.
type ScraperFactory func(engine Engine, cfg *config.Config) (PageScraper, error)

// Report describes what a job did.
type Report struct {
	Job      string
	Kind     Kind
	Deleted  int
	Listings []*models.Listing
	Scrape   *models.ScraperResult
	Duration time.Duration
}

// Runner executes jobs against one inventory repository.
type Runner struct {
	cfg        *config.Config
	repo       *inventory.Repository
	jobs       []Job
	byName     map[string]Job
	newScraper ScraperFactory
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithScraperFactory replaces how scrape jobs build their scraper.
func WithScraperFactory(f ScraperFactory) Option {
	return func(r *Runner) { r.newScraper = f }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner loads the embedded definitions.
func NewRunner(cfg *config.Config, repo *inventory.Repository, opts ...Option) (*Runner, error) {
	defs, err := Definitions()
	if err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:        cfg,
		repo:       repo,
		jobs:       defs,
		byName:     make(map[string]Job, len(defs)),
		newScraper: DefaultScrapers,
		logger:     slog.Default(),
	}
	for _, job := range defs {
		r.byName[job.Name] = job
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// DefaultScrapers uses colly for static pages and headless Chrome for the
// browser engine.
func DefaultScrapers(engine Engine, cfg *config.Config) (PageScraper, error) {
	if engine == EngineBrowser {
		return browser.NewScraper(cfg), nil
	}
	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Jobs returns the definitions in file order.
func (r *Runner) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Run executes the named job. Failures are logged with the job name and
// returned.
func (r *Runner) Run(ctx context.Context, name string) (*Report, error) {
	job, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	logger := r.logger.With(slog.String("job", job.Name), slog.String("kind", string(job.Kind)))
	logger.Info("job started", slog.String("summary", job.Summary))

	start := time.Now()
	report := &Report{Job: job.Name, Kind: job.Kind}

	var err error
	switch job.Kind {
	case KindScrape:
		err = r.runScrape(ctx, job, report)
	case KindSeed:
		err = r.runSeed(ctx, job, report, logger)
	case KindPatch:
		err = r.runPatch(ctx, job, report)
	case KindImage:
		err = r.runImage(ctx, job, report)
	}
	report.Duration = time.Since(start)

	if err != nil {
		logger.Error("job failed", slog.Any("error", err))
		return report, fmt.Errorf("job %s: %w", job.Name, err)
	}
	logger.Info("job complete",
		slog.Int("listings", len(report.Listings)),
		slog.Int("deleted", report.Deleted),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

func (r *Runner) runScrape(ctx context.Context, job Job, report *Report) error {
	s, err := r.newScraper(job.Engine, r.cfg)
	if err != nil {
		return fmt.Errorf("build scraper: %w", err)
	}

	var (
		writer pipeline.OutputWriter
		store  *pipeline.StoreWriter
	)
	if r.cfg.OutputFormat == "store" {
		store = pipeline.NewStoreWriter(r.repo, r.cfg.CaptureImages && job.Image != nil)
		if job.Image != nil {
			store.ImageKey = job.Image.Key
			store.ImageFilename = job.Image.Filename
		}
		writer = store
	} else {
		writer, err = pipeline.NewFileWriter(r.cfg.OutputFormat, r.cfg.OutputFile)
		if err != nil {
			return err
		}
	}
	defer func() {
		if err := writer.Close(); err != nil {
			r.logger.Error("close writer", slog.Any("error", err))
		}
	}()

	p := pipeline.NewPipeline(ctx, writer, r.cfg)
	p.Start(r.cfg.Workers)
	if r.cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, runErr := s.Run(ctx, job.Targets, p)
	closeErr := p.Close()
	if result != nil {
		result.TotalCount = p.Processed()
	}
	report.Scrape = result
	if store != nil {
		report.Listings = store.Stored()
	}
	if err := errors.Join(runErr, closeErr); err != nil {
		return err
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("nothing captured: %w", err)
	}
	return nil
}

func (r *Runner) runSeed(ctx context.Context, job Job, report *Report, logger *slog.Logger) error {
	if job.Purge {
		n, err := r.repo.Reset(ctx)
		if err != nil {
			return err
		}
		report.Deleted = n
	}

	for _, item := range job.Items {
		l := prepare(item.Listing, job.Derive)

		// A failed upload is logged and the listing is still written.
		if item.Image != nil {
			asset, err := r.repo.CaptureImage(ctx, item.Image.URL, item.Image.Filename)
			if err != nil {
				logger.Warn("image upload skipped", slog.String("asset_id", l.ID), slog.Any("error", err))
			} else {
				l.Images = []models.ImageRef{{Key: item.Image.Key, AssetRef: asset.ID, URL: asset.URL}}
			}
		}
		if item.Document != nil {
			asset, err := r.repo.CaptureDocument(ctx, item.Document.URL, item.Document.Filename)
			if err != nil {
				logger.Warn("document upload skipped", slog.String("asset_id", l.ID), slog.Any("error", err))
			} else {
				l.Documents = []models.FileRef{{
					Key:      item.Document.Key,
					AssetRef: asset.ID,
					Filename: item.Document.Filename,
					URL:      asset.URL,
				}}
			}
		}

		var (
			stored *models.Listing
			err    error
		)
		if job.Upsert {
			stored, err = r.repo.Upsert(ctx, l)
		} else {
			stored, err = r.repo.Create(ctx, l)
		}
		if err != nil {
			return err
		}
		logger.Info("listing written",
			slog.String("asset_id", stored.ID),
			slog.String("doc_id", stored.DocID),
			slog.String("title", stored.DisplayName()),
		)
		report.Listings = append(report.Listings, stored)
	}
	return nil
}

func (r *Runner) runPatch(ctx context.Context, job Job, report *Report) error {
	l, err := r.repo.Patch(ctx, job.AssetID, job.Set)
	if err != nil {
		return err
	}
	report.Listings = []*models.Listing{l}
	return nil
}

func (r *Runner) runImage(ctx context.Context, job Job, report *Report) error {
	if _, err := r.repo.AttachImage(ctx, job.AssetID, job.KeyPrefix, job.Sources...); err != nil {
		return err
	}
	l, err := r.repo.Get(ctx, job.AssetID)
	if err != nil {
		return err
	}
	report.Listings = []*models.Listing{l}
	return nil
}

// prepare fills the fields a seed listing leaves implicit: display price,
// split or joined voltage and, when derive is set, the id, manufacturer and
// condition read from the marketing name and description.
func prepare(l models.Listing, derive bool) *models.Listing {
	switch {
	case l.Price.Text == "":
		l.Price = parser.NewPrice(l.Price.Amount)
	case l.Price.Amount == 0:
		l.Price = parser.PriceFromText(l.Price.Text)
	}

	if l.Voltage != "" && l.PrimaryVoltage == "" && l.SecondaryVoltage == "" {
		l.PrimaryVoltage, l.SecondaryVoltage = parser.SplitVoltage(l.Voltage)
	}
	if l.Voltage == "" && (l.PrimaryVoltage != "" || l.SecondaryVoltage != "") {
		l.Voltage = parser.JoinVoltage(l.PrimaryVoltage, l.SecondaryVoltage)
	}

	if derive {
		if l.ID == "" {
			l.ID = parser.GenerateID(l.Name)
		}
		if l.Manufacturer == "" {
			l.Manufacturer = parser.Manufacturer(l.Name)
		}
		if l.Condition == "" && l.Description != "" {
			l.Condition = parser.InferCondition(l.Description)
		}
	}
	return &l
}
