// Package models defines the data structures shared by the site, the content
// store mapping and the seeding/scraping jobs.
package models

import (
	"strings"
	"time"
)

// Status is the sales state of an asset listing.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusPending   Status = "PENDING"
	StatusAcquiring Status = "ACQUIRING"
	StatusSold      Status = "SOLD"
)

// Statuses lists every status in the order the studio presents them.
var Statuses = []Status{StatusAvailable, StatusPending, StatusAcquiring, StatusSold}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Title returns the human label used by the studio ("Available").
func (s Status) Title() string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(string(s))
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// Price keeps the numeric amount next to the text shown on the site.
// Amount is zero when the seller did not publish one.
type Price struct {
	Amount float64 `json:"amount,omitempty"`
	Text   string  `json:"text,omitempty"`
}

// Known reports whether a numeric amount is available.
func (p Price) Known() bool {
	return p.Amount > 0
}

// Metrics is the small performance matrix shown on inventory cards, in percent.
type Metrics struct {
	Efficiency float64 `json:"efficiency,omitempty"`
	Load       float64 `json:"load,omitempty"`
	Durability float64 `json:"durability,omitempty"`
	Shielding  float64 `json:"shielding,omitempty"`
}

// IsZero reports whether no metric was set.
func (m Metrics) IsZero() bool {
	return m == Metrics{}
}

// TechSpecs holds the engineering detail captured by deep scrapes and patches.
type TechSpecs struct {
	CoolingClass     string            `json:"cooling_class,omitempty"`
	OilType          string            `json:"oil_type,omitempty"`
	Windings         string            `json:"windings,omitempty"`
	TempRise         string            `json:"temp_rise,omitempty"`
	BIL              string            `json:"bil,omitempty"`
	Taps             string            `json:"taps,omitempty"`
	Dimensions       string            `json:"dimensions,omitempty"`
	ProductionStatus string            `json:"production_status,omitempty"`
	Phase            string            `json:"phase,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// IsZero reports whether no tech spec was set.
func (t TechSpecs) IsZero() bool {
	return t.CoolingClass == "" && t.OilType == "" && t.Windings == "" && t.TempRise == "" &&
		t.BIL == "" && t.Taps == "" && t.Dimensions == "" && t.ProductionStatus == "" &&
		t.Phase == "" && len(t.Extra) == 0
}

// ImageRef points at an uploaded image asset.
type ImageRef struct {
	Key      string `json:"key,omitempty"`
	AssetRef string `json:"asset_ref"`
	URL      string `json:"url,omitempty"`
}

// FileRef points at an uploaded file asset such as a brochure.
type FileRef struct {
	Key      string `json:"key,omitempty"`
	AssetRef string `json:"asset_ref"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Listing describes one piece of electrical infrastructure available for sale.
type Listing struct {
	ID               string     `json:"id"`
	DocID            string     `json:"doc_id,omitempty"`
	Title            string     `json:"title"`
	Name             string     `json:"name,omitempty"`
	Manufacturer     string     `json:"manufacturer,omitempty"`
	Status           Status     `json:"status"`
	Price            Price      `json:"price"`
	Voltage          string     `json:"voltage,omitempty"`
	PrimaryVoltage   string     `json:"primary_voltage,omitempty"`
	SecondaryVoltage string     `json:"secondary_voltage,omitempty"`
	KVA              string     `json:"kva,omitempty"`
	Rating           string     `json:"rating,omitempty"`
	Impedance        string     `json:"impedance,omitempty"`
	Frequency        string     `json:"frequency,omitempty"`
	Cooling          string     `json:"cooling,omitempty"`
	Location         string     `json:"location,omitempty"`
	Weight           string     `json:"weight,omitempty"`
	MfgYear          string     `json:"mfg_year,omitempty"`
	Condition        string     `json:"condition,omitempty"`
	LeadTime         string     `json:"lead_time,omitempty"`
	Warranty         string     `json:"warranty,omitempty"`
	Specs            Metrics    `json:"specs"`
	TechSpecs        TechSpecs  `json:"tech_specs"`
	Description      string     `json:"description,omitempty"`
	Images           []ImageRef `json:"images,omitempty"`
	Documents        []FileRef  `json:"documents,omitempty"`
	SourceURL        string     `json:"source_url,omitempty"`
	SourceImageURL   string     `json:"source_image_url,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at,omitempty"`
}

// PrimaryImage returns the first image or nil.
func (l *Listing) PrimaryImage() *ImageRef {
	if l == nil || len(l.Images) == 0 {
		return nil
	}
	return &l.Images[0]
}

// DisplayName prefers the title and falls back to the marketing name, then the id.
func (l *Listing) DisplayName() string {
	switch {
	case strings.TrimSpace(l.Title) != "":
		return l.Title
	case strings.TrimSpace(l.Name) != "":
		return l.Name
	default:
		return l.ID
	}
}
