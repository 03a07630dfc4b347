package parser

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/kardainfra/karda/models"
)

var (
	ErrMissingID     = errors.New("listing: missing asset id")
	ErrMissingTitle  = errors.New("listing: missing title")
	ErrInvalidStatus = errors.New("listing: invalid status")
	ErrMissingURL    = errors.New("page: missing url")
)

// ValidatePage rejects scrape results that cannot become a listing.
func ValidatePage(page *models.ScrapedPage) error {
	if page == nil {
		return errors.New("page: nil")
	}
	if strings.TrimSpace(page.URL) == "" {
		return ErrMissingURL
	}
	if page.Title == "" && page.Target.Defaults.Title == "" && page.Target.Defaults.Name == "" {
		return ErrMissingTitle
	}
	return nil
}

// ValidateListing checks the fields every stored listing must carry.
func ValidateListing(l *models.Listing) error {
	if l == nil {
		return errors.New("listing: nil")
	}
	if strings.TrimSpace(l.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(l.Title) == "" && strings.TrimSpace(l.Name) == "" {
		return ErrMissingTitle
	}
	if !l.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, l.Status)
	}
	return nil
}

// BuildListing merges a scraped page over the hard-coded defaults for its
// target. Scraped values win when present; inferred tech specs fall back to
// the defaults when the description says nothing.
func BuildListing(page models.ScrapedPage, defaults models.Listing) (*models.Listing, error) {
	l := defaults
	l.Images = append([]models.ImageRef(nil), defaults.Images...)
	l.Documents = append([]models.FileRef(nil), defaults.Documents...)
	l.TechSpecs.Extra = maps.Clone(defaults.TechSpecs.Extra)

	if l.ID == "" {
		l.ID = page.Target.AssetID
	}
	if l.ID == "" {
		l.ID = GenerateID(l.Name)
	}
	if l.DocID == "" {
		l.DocID = DocumentID(l.ID)
	}
	if l.Name == "" {
		l.Name = page.Target.Name
	}
	if l.Manufacturer == "" {
		l.Manufacturer = Manufacturer(l.Name)
	}
	if l.Status == "" {
		l.Status = models.StatusAvailable
	}

	l.Title = firstNonEmpty(CollapseSpace(page.Title), defaults.Title)

	desc := page.Description
	if desc != "" {
		l.Description = Truncate(desc, page.Target.DescriptionLimit)
	}

	if amount, ok := ParsePrice(page.RawPrice); ok {
		l.Price = NewPrice(amount)
	} else if l.Price.Text == "" {
		l.Price = NewPrice(l.Price.Amount)
	}

	specs := page.Specs
	l.PrimaryVoltage = firstNonEmpty(specs["primary_voltage"], defaults.PrimaryVoltage)
	l.SecondaryVoltage = firstNonEmpty(specs["secondary_voltage"], defaults.SecondaryVoltage)
	if l.PrimaryVoltage != "" || l.SecondaryVoltage != "" {
		l.Voltage = JoinVoltage(l.PrimaryVoltage, l.SecondaryVoltage)
	}
	l.KVA = firstNonEmpty(specs["kva"], specs["capacity"], defaults.KVA)
	l.Frequency = firstNonEmpty(specs["frequency"], defaults.Frequency)
	l.Impedance = firstNonEmpty(specs["impedance"], defaults.Impedance)
	l.Weight = firstNonEmpty(specs["weight"], defaults.Weight)
	l.MfgYear = firstNonEmpty(specs["year"], specs["mfg_year"], defaults.MfgYear)
	l.Cooling = firstNonEmpty(specs["cooling"], defaults.Cooling)
	l.Location = firstNonEmpty(NormalizeLocation(page.Location), defaults.Location)
	if tmpl := page.Target.DescriptionTemplate; tmpl != "" {
		l.Description = strings.NewReplacer("{capacity}", l.KVA, "{location}", l.Location).Replace(tmpl)
	}

	ts := &l.TechSpecs
	ts.CoolingClass = firstNonEmpty(InferCoolingClass(specs["cooling"], desc), defaults.TechSpecs.CoolingClass)
	ts.OilType = firstNonEmpty(InferOilType(desc), defaults.TechSpecs.OilType)
	ts.Windings = firstNonEmpty(InferWindingMaterial(desc), defaults.TechSpecs.Windings)
	ts.BIL = firstNonEmpty(ExtractBIL(desc), defaults.TechSpecs.BIL)
	ts.Dimensions = firstNonEmpty(specs["dimensions"], defaults.TechSpecs.Dimensions)
	ts.Phase = firstNonEmpty(specs["phase"], defaults.TechSpecs.Phase)
	if desc != "" {
		ts.ProductionStatus = InferProductionStatus(desc)
	}
	if l.Condition == "" && desc != "" {
		l.Condition = InferCondition(desc)
	}

	l.SourceURL = page.URL
	l.SourceImageURL = page.ImageURL

	if err := ValidateListing(&l); err != nil {
		return nil, err
	}
	return &l, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
