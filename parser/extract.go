package parser

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/kardainfra/karda/models"
)

var descriptionSelectors = []string{
	".entry-content",
	`div[itemprop="description"]`,
	".product-description",
	"#tab-description",
}

const (
	priceSelector   = ".price, .woocommerce-Price-amount"
	gallerySelector = ".woocommerce-product-gallery__image a"
)

// ParseHTML reads a listing page and extracts its fields.
func ParseHTML(r io.Reader, pageURL string) (models.ScrapedPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return models.ScrapedPage{}, fmt.Errorf("parse listing html: %w", err)
	}
	html, err := doc.Html()
	if err != nil {
		return models.ScrapedPage{}, fmt.Errorf("render listing html: %w", err)
	}
	return ExtractPage(doc.Selection, html, pageURL), nil
}

// ExtractPage pulls the listing fields out of a parsed page. body is the raw
// markup, searched for a price when no price element is present.
func ExtractPage(root *goquery.Selection, body, pageURL string) models.ScrapedPage {
	page := models.ScrapedPage{
		URL:       pageURL,
		Title:     CollapseSpace(root.Find("h1").First().Text()),
		Specs:     extractSpecs(root),
		ScrapedAt: time.Now(),
	}

	for _, sel := range descriptionSelectors {
		if text := CollapseSpace(root.Find(sel).First().Text()); text != "" {
			page.Description = text
			break
		}
	}

	page.RawPrice = CollapseSpace(root.Find(priceSelector).First().Text())
	if _, ok := ParsePrice(page.RawPrice); !ok {
		page.RawPrice = FindPrice(body)
	}

	page.Location = ExtractLocation(root.Find("body").Text())
	if page.Location == "" {
		page.Location = NormalizeLocation(page.Specs["location"])
	}

	image, _ := root.Find(`meta[property="og:image"]`).Attr("content")
	if strings.TrimSpace(image) == "" {
		image, _ = root.Find(gallerySelector).First().Attr("href")
	}
	page.ImageURL = resolveURL(pageURL, strings.TrimSpace(image))

	if u, err := url.Parse(pageURL); err == nil {
		page.Source = u.Host
	}
	return page
}

// extractSpecs reads two-column spec tables into cleaned keys.
func extractSpecs(root *goquery.Selection) map[string]string {
	specs := make(map[string]string)
	root.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		key := CleanSpecKey(cells.Eq(0).Text())
		if key == "" {
			return
		}
		specs[key] = CollapseSpace(cells.Eq(1).Text())
	})
	return specs
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
