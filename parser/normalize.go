// Package parser turns scraped listing text into normalized listing fields.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/kardainfra/karda/models"
)

// PriceOnRequest is shown when a listing does not publish an amount.
const PriceOnRequest = "Inquire"

var (
	voltageArrows = []string{"->", "→", "=>"}

	// a dollar amount with at least three digits, as listing pages print it
	bodyPriceRegexp = regexp.MustCompile(`\$\d[\d,]*\d{2}(?:\.\d{2})?`)
	dollarRegexp    = regexp.MustCompile(`\$\s*(\d[\d,]*(?:\.\d+)?)`)
	plainNumRegexp  = regexp.MustCompile(`^\d[\d,]*(?:\.\d+)?$`)

	specKeyRegexp    = regexp.MustCompile(`[:\s]+`)
	underscoreRegexp = regexp.MustCompile(`_+`)
	idUnsafeRegexp   = regexp.MustCompile(`[^A-Z0-9-]+`)
	newWordRegexp    = regexp.MustCompile(`(?i)\bnew\b`)
	bilRegexp        = regexp.MustCompile(`(?i)(\d+)\s*kv\s*bil`)
	locationRegexp   = regexp.MustCompile(`Location:[ \t]*([A-Za-z ,]+)`)
	innerSpaceRegexp = regexp.MustCompile(`\s+`)
)

// SplitVoltage splits a combined voltage string into primary and secondary
// parts. Arrows ("13.8kV -> 480V") and spaced slashes ("12.47kV / 480V")
// separate the sides; unspaced slashes belong to wye ratings like 575Y/332V.
// A single-sided value is returned as the primary with an empty secondary.
func SplitVoltage(raw string) (primary, secondary string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	for _, arrow := range voltageArrows {
		if left, right, ok := strings.Cut(raw, arrow); ok {
			return strings.TrimSpace(left), strings.TrimSpace(right)
		}
	}
	if left, right, ok := strings.Cut(raw, " / "); ok {
		return strings.TrimSpace(left), strings.TrimSpace(right)
	}
	return raw, ""
}

// JoinVoltage builds the combined display string stored in the voltage field.
func JoinVoltage(primary, secondary string) string {
	primary = strings.TrimSpace(primary)
	secondary = strings.TrimSpace(secondary)
	switch {
	case primary == "":
		return secondary
	case secondary == "":
		return primary
	default:
		return primary + " -> " + secondary
	}
}

// ParsePrice reads an amount from "$45,000", "$68,500.00", "95000" or text
// containing a dollar amount. It reports false for "Inquire" and other text
// without a number.
func ParsePrice(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	var digits string
	if m := dollarRegexp.FindStringSubmatch(raw); m != nil {
		digits = m[1]
	} else if plainNumRegexp.MatchString(raw) {
		digits = raw
	} else {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// FindPrice returns the first dollar amount of three or more digits in a page
// body, or "" when there is none.
func FindPrice(body string) string {
	return bodyPriceRegexp.FindString(body)
}

// FormatPrice renders an amount the way the site shows it ("$95,000").
func FormatPrice(amount float64) string {
	if amount <= 0 {
		return PriceOnRequest
	}
	if amount == math.Trunc(amount) {
		return "$" + humanize.Comma(int64(amount))
	}
	return "$" + humanize.CommafWithDigits(amount, 2)
}

// NewPrice builds a Price from an amount.
func NewPrice(amount float64) models.Price {
	if amount <= 0 {
		return models.Price{Text: PriceOnRequest}
	}
	return models.Price{Amount: amount, Text: FormatPrice(amount)}
}

// PriceFromText builds a Price from display text, keeping the text as given.
func PriceFromText(text string) models.Price {
	text = strings.TrimSpace(text)
	amount, ok := ParsePrice(text)
	if !ok {
		if text == "" {
			text = PriceOnRequest
		}
		return models.Price{Text: text}
	}
	return models.Price{Amount: amount, Text: FormatPrice(amount)}
}

// CleanSpecKey maps a spec-table label to a snake_case key
// ("Primary Voltage:" -> "primary_voltage").
func CleanSpecKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = specKeyRegexp.ReplaceAllString(key, "_")
	key = underscoreRegexp.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

// GenerateID derives an asset id from a marketing name laid out as
// "<kva> kVA <MANUFACTURER> ..." ("2500 kVA MADDOX PREMIUM" -> "TR-MADDOX-2500").
func GenerateID(name string) string {
	parts := strings.Fields(strings.ToUpper(name))
	if len(parts) == 0 {
		return ""
	}
	if len(parts) < 3 {
		return sanitizeID("TR-" + strings.Join(parts, "-"))
	}
	return sanitizeID("TR-" + sanitizeID(parts[2]) + "-" + sanitizeID(parts[0]))
}

func sanitizeID(id string) string {
	return idUnsafeRegexp.ReplaceAllString(id, "")
}

// DocumentID is the content-store document id for an asset id.
func DocumentID(assetID string) string {
	if assetID == "" {
		return ""
	}
	return "inventory-" + assetID
}

// Manufacturer returns the third word of a marketing name, or "Generic".
func Manufacturer(name string) string {
	parts := strings.Fields(name)
	if len(parts) < 3 {
		return "Generic"
	}
	return parts[2]
}

// InferCondition classifies a listing as NEW when its description calls it
// new, RECONDITIONED otherwise.
func InferCondition(description string) string {
	if newWordRegexp.MatchString(description) {
		return "NEW"
	}
	return "RECONDITIONED"
}

// InferProductionStatus distinguishes new-surplus stock from reconditioned units.
func InferProductionStatus(description string) string {
	if strings.Contains(strings.ToLower(description), "new surplus") {
		return "New Surplus"
	}
	return "Reconditioned"
}

// InferWindingMaterial looks for the winding metal in a description.
// It returns "" when none is mentioned.
func InferWindingMaterial(description string) string {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "copper"):
		return "Copper/Copper"
	case strings.Contains(lower, "aluminum"):
		return "Aluminum"
	default:
		return ""
	}
}

// InferOilType looks for the insulating fluid in a description.
// It returns "" when none is mentioned.
func InferOilType(description string) string {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "mineral oil"):
		return "Mineral Oil"
	case strings.Contains(lower, "fr3"):
		return "FR3 (Vegetable Oil)"
	default:
		return ""
	}
}

// InferCoolingClass prefers the spec-table value, then an ONAN mention.
func InferCoolingClass(specValue, description string) string {
	if v := strings.TrimSpace(specValue); v != "" {
		return v
	}
	if strings.Contains(strings.ToLower(description), "onan") {
		return "ONAN"
	}
	return ""
}

// ExtractBIL finds a basic-insulation-level rating ("150 kV BIL").
func ExtractBIL(description string) string {
	m := bilRegexp.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return m[1] + " kV BIL"
}

// ExtractLocation reads the "Location:" line from page text, upper-cased.
func ExtractLocation(text string) string {
	m := locationRegexp.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return NormalizeLocation(m[1])
}

// NormalizeLocation upper-cases and trims a location.
func NormalizeLocation(location string) string {
	location = strings.Trim(strings.TrimSpace(location), ",")
	return strings.ToUpper(strings.TrimSpace(location))
}

// CollapseSpace trims and folds whitespace runs into single spaces.
func CollapseSpace(s string) string {
	return strings.TrimSpace(innerSpaceRegexp.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
// A limit of zero or less leaves s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

// NormalizeStatus maps free-form status text to a Status.
func NormalizeStatus(raw string) (models.Status, bool) {
	status := models.Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", false
	}
	return status, true
}
