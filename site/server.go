// Package site serves the Karda marketing site: the landing page, the
// inventory browser, asset detail, the inquiry form and the contact and
// about pages, plus a small JSON API over the same inventory.
package site

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kardainfra/karda/inquiry"
	"github.com/kardainfra/karda/inventory"
	"github.com/kardainfra/karda/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var templateFS embed.FS

// Inventory is the read side of inventory.Repository.
type Inventory interface {
	List(ctx context.Context, f inventory.Filter) ([]*models.Listing, error)
	Get(ctx context.Context, assetID string) (*models.Listing, error)
}

// Options configures the server.
type Options struct {
	AllowedOrigins []string
	SalesEmail     string
	Logger         *slog.Logger
	Metrics        *Metrics
}

// Server renders the site.
type Server struct {
	inventory  Inventory
	inquiries  *inquiry.Service
	salesEmail string
	logger     *slog.Logger
	metrics    *Metrics
	pages      map[string]*template.Template
	router     *gin.Engine
}

// NewServer parses the page templates and builds the router.
func NewServer(inv Inventory, inquiries *inquiry.Service, opts Options) (*Server, error) {
	s := &Server{
		inventory:  inv,
		inquiries:  inquiries,
		salesEmail: opts.SalesEmail,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.salesEmail == "" {
		s.salesEmail = "n.hansen@karda.tech"
	}

	pages, err := parsePages(templateFS)
	if err != nil {
		return nil, err
	}
	s.pages = pages
	s.router = s.routes(opts.AllowedOrigins)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests for up to five seconds.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("site listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes(origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), instrument(s.metrics), corsPolicy(origins))

	r.GET("/", s.home)
	r.GET("/portfolio", s.portfolio)
	r.GET("/portfolio/:id", s.detail)
	r.GET("/inquiry/:id", s.inquiryForm)
	r.POST("/inquiry/:id", s.submitInquiry)
	r.GET("/contact", s.contact)
	r.GET("/about", s.about)

	api := r.Group("/api")
	{
		api.GET("/inventory", s.apiList)
		api.GET("/inventory/:id", s.apiGet)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	r.NoRoute(func(c *gin.Context) {
		s.render(c, http.StatusNotFound, "notfound", gin.H{"Title": "Not Found"})
	})
	return r
}

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"pct": func(v float64) string {
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		return fmt.Sprintf("%.0f", v)
	},
}

// parsePages builds one template set per page so every page can define
// its own "content" block inside the shared layout.
func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	names, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template)
	for _, name := range names {
		base := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		if base == "layout" {
			continue
		}
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(fsys, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[base] = t
	}
	return pages, nil
}

func (s *Server) render(c *gin.Context, status int, page string, data gin.H) {
	t, ok := s.pages[page]
	if !ok {
		c.String(http.StatusInternalServerError, "unknown page %s", page)
		return
	}
	data["Page"] = page
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(c.Writer, "layout", data); err != nil {
		s.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
	}
}
