package site

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kardainfra/karda/catalog"
	"github.com/kardainfra/karda/inquiry"
	"github.com/kardainfra/karda/inventory"
	"github.com/kardainfra/karda/models"
	"github.com/kardainfra/karda/parser"
)

// Inventory views.
const (
	ViewGrid     = "grid"
	ViewTable    = "table"
	ViewTerminal = "terminal"
)

var views = []string{ViewGrid, ViewTable, ViewTerminal}

func (s *Server) home(c *gin.Context) {
	s.render(c, http.StatusOK, "home", gin.H{"Title": "Karda Infrastructure Group"})
}

func (s *Server) contact(c *gin.Context) {
	s.render(c, http.StatusOK, "contact", gin.H{
		"Title":      "Direct Comms",
		"SalesEmail": s.salesEmail,
	})
}

func (s *Server) about(c *gin.Context) {
	s.render(c, http.StatusOK, "about", gin.H{"Title": "The Power Crisis"})
}

func (s *Server) portfolio(c *gin.Context) {
	view := strings.ToLower(c.DefaultQuery("view", ViewGrid))
	if view != ViewTable && view != ViewTerminal {
		view = ViewGrid
	}
	query := strings.TrimSpace(c.Query("q"))
	status, _ := parser.NormalizeStatus(c.Query("status"))

	// A store failure shows the same empty state as an empty inventory.
	listings, err := s.inventory.List(c.Request.Context(), inventory.Filter{Status: status})
	if err != nil {
		s.logger.Error("list inventory", slog.Any("error", err))
		_ = c.Error(err)
		listings = nil
	}
	listings = catalog.Filter(listings, query)

	data := gin.H{
		"Title":    "Available Inventory",
		"View":     view,
		"Views":    views,
		"Query":    query,
		"Status":   string(status),
		"Statuses": models.Statuses,
		"Count":    len(listings),
	}
	switch view {
	case ViewTable:
		data["Rows"] = catalog.Rows(listings)
	case ViewTerminal:
		if len(listings) > 0 {
			data["Terminal"] = catalog.Terminal(listings)
		}
	default:
		data["Cards"] = catalog.Cards(listings)
	}
	s.render(c, http.StatusOK, "portfolio", data)
}

func (s *Server) detail(c *gin.Context) {
	l, ok := s.lookup(c)
	if !ok {
		s.render(c, http.StatusNotFound, "notfound", gin.H{"Title": "Asset Not Found"})
		return
	}
	s.render(c, http.StatusOK, "detail", gin.H{
		"Title":   l.DisplayName(),
		"Listing": l,
		"Card":    catalog.NewCard(l),
	})
}

func (s *Server) inquiryForm(c *gin.Context) {
	l, ok := s.lookup(c)
	if !ok {
		s.render(c, http.StatusNotFound, "inquiry", gin.H{"Title": "Inquiry"})
		return
	}
	s.render(c, http.StatusOK, "inquiry", gin.H{
		"Title": "Inquiry",
		"Asset": catalog.NewCard(l),
		"Form":  inquiry.Form{},
	})
}

func (s *Server) submitInquiry(c *gin.Context) {
	l, ok := s.lookup(c)
	if !ok {
		s.metrics.incInquiry("no_asset")
		s.render(c, http.StatusNotFound, "inquiry", gin.H{"Title": "Inquiry"})
		return
	}

	var form inquiry.Form
	if err := c.ShouldBind(&form); err != nil {
		s.metrics.incInquiry("invalid")
		s.renderInquiryError(c, l, form, err)
		return
	}

	in, err := s.inquiries.Submit(c.Request.Context(), l, form)
	switch {
	case errors.Is(err, inquiry.ErrMissingField), errors.Is(err, inquiry.ErrInvalidEmail):
		s.metrics.incInquiry("invalid")
		s.renderInquiryError(c, l, form, err)
		return
	case err != nil:
		s.metrics.incInquiry("error")
		s.logger.Error("submit inquiry", slog.String("asset_id", l.ID), slog.Any("error", err))
		_ = c.Error(err)
		s.render(c, http.StatusInternalServerError, "inquiry", gin.H{
			"Title":   "Inquiry",
			"Asset":   catalog.NewCard(l),
			"Form":    form,
			"Problem": "TRANSMISSION FAILED. TRY AGAIN.",
		})
		return
	}

	s.metrics.incInquiry("received")
	s.render(c, http.StatusOK, "inquiry", gin.H{
		"Title":    "Inquiry Received",
		"Asset":    catalog.NewCard(l),
		"Received": in,
	})
}

func (s *Server) renderInquiryError(c *gin.Context, l *models.Listing, form inquiry.Form, err error) {
	s.render(c, http.StatusBadRequest, "inquiry", gin.H{
		"Title":   "Inquiry",
		"Asset":   catalog.NewCard(l),
		"Form":    form,
		"Problem": strings.ToUpper(strings.TrimPrefix(err.Error(), "inquiry: ")),
	})
}

func (s *Server) apiList(c *gin.Context) {
	status, _ := parser.NormalizeStatus(c.Query("status"))
	listings, err := s.inventory.List(c.Request.Context(), inventory.Filter{Status: status})
	if err != nil {
		s.logger.Error("list inventory", slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "inventory unavailable"})
		return
	}
	listings = catalog.Filter(listings, c.Query("q"))
	if listings == nil {
		listings = []*models.Listing{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(listings), "items": listings})
}

func (s *Server) apiGet(c *gin.Context) {
	l, err := s.inventory.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, inventory.ErrAssetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
	case err != nil:
		s.logger.Error("get asset", slog.String("asset_id", c.Param("id")), slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "inventory unavailable"})
	default:
		c.JSON(http.StatusOK, l)
	}
}

// lookup resolves the :id parameter. Store failures are logged and treated
// like a missing asset.
func (s *Server) lookup(c *gin.Context) (*models.Listing, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return nil, false
	}
	l, err := s.inventory.Get(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, inventory.ErrAssetNotFound) {
			s.logger.Error("get asset", slog.String("asset_id", id), slog.Any("error", err))
			_ = c.Error(err)
		}
		return nil, false
	}
	return l, true
}
