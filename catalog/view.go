package catalog

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/kardainfra/karda/models"
)

// Placeholder is shown for any spec the listing does not carry.
const Placeholder = "N/A"

// Metric is one bar of a card's performance matrix.
type Metric struct {
	Label string
	Value float64
}

// Card is one grid tile.
type Card struct {
	ID          string
	Title       string
	Status      string
	Live        bool
	Price       string
	Location    string
	Voltage     string
	Rating      string
	Weight      string
	Condition   string
	Description string
	ImageURL    string
	Metrics     []Metric
	DetailURL   string
	InquiryURL  string
}

// NewCard maps a listing onto a grid tile.
func NewCard(l *models.Listing) Card {
	c := Card{
		ID:          l.ID,
		Title:       l.DisplayName(),
		Status:      string(l.Status),
		Live:        l.Status == models.StatusAvailable,
		Price:       priceLabel(l.Price),
		Location:    orPlaceholder(l.Location),
		Voltage:     orPlaceholder(l.Voltage),
		Rating:      orPlaceholder(Rating(l)),
		Weight:      orPlaceholder(l.Weight),
		Condition:   orPlaceholder(l.Condition),
		Description: l.Description,
		DetailURL:   "/portfolio/" + url.PathEscape(l.ID),
		InquiryURL:  "/inquiry/" + url.PathEscape(l.ID),
	}
	if img := l.PrimaryImage(); img != nil {
		c.ImageURL = img.URL
	}
	if !l.Specs.IsZero() {
		c.Metrics = []Metric{
			{Label: "Efficiency", Value: l.Specs.Efficiency},
			{Label: "Load", Value: l.Specs.Load},
			{Label: "Durability", Value: l.Specs.Durability},
			{Label: "Shielding", Value: l.Specs.Shielding},
		}
	}
	return c
}

// Cards maps every listing.
func Cards(listings []*models.Listing) []Card {
	cards := make([]Card, 0, len(listings))
	for _, l := range listings {
		cards = append(cards, NewCard(l))
	}
	return cards
}

// Rating is the capacity label: the stored rating, or the kVA figure.
func Rating(l *models.Listing) string {
	if l.Rating != "" {
		return l.Rating
	}
	kva := strings.TrimSpace(l.KVA)
	if kva == "" {
		return ""
	}
	if strings.Contains(strings.ToLower(kva), "va") {
		return kva
	}
	return kva + " kVA"
}

// Row is one line of the table and terminal views.
type Row struct {
	ID       string
	Title    string
	Voltage  string
	Rating   string
	Location string
	Status   string
	Price    string
}

// NewRow maps a listing onto a table row.
func NewRow(l *models.Listing) Row {
	return Row{
		ID:       l.ID,
		Title:    l.DisplayName(),
		Voltage:  orPlaceholder(l.Voltage),
		Rating:   orPlaceholder(Rating(l)),
		Location: orPlaceholder(l.Location),
		Status:   string(l.Status),
		Price:    priceLabel(l.Price),
	}
}

// Rows maps every listing.
func Rows(listings []*models.Listing) []Row {
	rows := make([]Row, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, NewRow(l))
	}
	return rows
}

// NewTable returns an empty inventory table writing to w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Asset", "Voltage", "Rating", "Location", "Status", "Price"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, Align: text.AlignRight},
	})
	return t
}

// RenderTable writes the listings as a terminal table with a count footer.
func RenderTable(w io.Writer, listings []*models.Listing) {
	t := NewTable(w)
	for _, r := range Rows(listings) {
		t.AppendRow(table.Row{r.ID, r.Title, r.Voltage, r.Rating, r.Location, r.Status, r.Price})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Assets", fmt.Sprint(len(listings))})
	t.Render()
}

// Terminal renders the table as a string for the site's terminal view.
func Terminal(listings []*models.Listing) string {
	var b strings.Builder
	RenderTable(&b, listings)
	return b.String()
}

func priceLabel(p models.Price) string {
	if p.Text != "" {
		return p.Text
	}
	return "Inquire"
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}
