package inventory

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kardainfra/karda/content"
	"github.com/kardainfra/karda/models"
	"github.com/kardainfra/karda/parser"
)

// techSpecKeys maps every spelling seen in stored documents to the field it fills.
var techSpecKeys = map[string]string{
	"coolingClass":      "cooling_class",
	"cooling_class":     "cooling_class",
	"oilType":           "oil_type",
	"oil_type":          "oil_type",
	"fluid":             "oil_type",
	"windings":          "windings",
	"windingMaterial":   "windings",
	"tempRise":          "temp_rise",
	"temp_rise":         "temp_rise",
	"bil":               "bil",
	"taps":              "taps",
	"dimensions":        "dimensions",
	"productionStatus":  "production_status",
	"production_status": "production_status",
	"phase":             "phase",
}

// ToDocument renders a listing in the field layout the studio schema and
// the site expect.
func ToDocument(l *models.Listing) content.Document {
	doc := content.Document{
		content.KeyType: content.InventoryType,
		"id":            l.ID,
	}
	if l.DocID != "" {
		doc[content.KeyID] = l.DocID
	}

	putString(doc, "status", string(l.Status))
	putString(doc, "type", l.Title)
	putString(doc, "name", l.Name)
	putString(doc, "manufacturer", l.Manufacturer)
	putString(doc, "price", priceText(l.Price))
	putString(doc, "voltage", l.Voltage)
	putString(doc, "primary_voltage", l.PrimaryVoltage)
	putString(doc, "secondary_voltage", l.SecondaryVoltage)
	putString(doc, "kva", l.KVA)
	putString(doc, "rating", l.Rating)
	putString(doc, "impedance", l.Impedance)
	putString(doc, "frequency", l.Frequency)
	putString(doc, "cooling", l.Cooling)
	putString(doc, "location", l.Location)
	putString(doc, "weight", l.Weight)
	putString(doc, "mfgYear", l.MfgYear)
	putString(doc, "condition", l.Condition)
	putString(doc, "lead_time", l.LeadTime)
	putString(doc, "warranty", l.Warranty)
	putString(doc, "desc", l.Description)
	putString(doc, "sourceUrl", l.SourceURL)

	if !l.Specs.IsZero() {
		specs := map[string]any{}
		putNumber(specs, "efficiency", l.Specs.Efficiency)
		putNumber(specs, "load_capacity", l.Specs.Load)
		putNumber(specs, "durability", l.Specs.Durability)
		putNumber(specs, "shielding", l.Specs.Shielding)
		doc["specs"] = specs
	}
	if !l.TechSpecs.IsZero() {
		doc["techSpecs"] = techSpecsDocument(l.TechSpecs)
	}
	if len(l.Images) > 0 {
		images := make([]any, 0, len(l.Images))
		for _, img := range l.Images {
			images = append(images, ImageValue(img.AssetRef, img.Key))
		}
		doc["images"] = images
	}
	if len(l.Documents) > 0 {
		files := make([]any, 0, len(l.Documents))
		for _, f := range l.Documents {
			item := map[string]any{
				content.KeyType: "file",
				content.KeyKey:  keyOrNew(f.Key),
				"asset":         map[string]any{"_type": "reference", "_ref": f.AssetRef},
			}
			putString(item, "filename", f.Filename)
			files = append(files, item)
		}
		doc["documents"] = files
	}
	return doc
}

// ImageValue is one entry of a document's images array.
func ImageValue(assetRef, key string) map[string]any {
	return map[string]any{
		content.KeyType: "image",
		content.KeyKey:  keyOrNew(key),
		"asset":         map[string]any{"_type": "reference", "_ref": assetRef},
	}
}

// FromDocument reads a stored document, whichever field names it was
// written with.
func FromDocument(doc content.Document) *models.Listing {
	l := &models.Listing{
		ID:               doc.String("id"),
		DocID:            doc.ID(),
		Title:            firstString(doc, "type", "title", "name"),
		Name:             doc.String("name"),
		Manufacturer:     doc.String("manufacturer"),
		Voltage:          doc.String("voltage"),
		PrimaryVoltage:   firstString(doc, "primary_voltage", "primaryVoltage"),
		SecondaryVoltage: firstString(doc, "secondary_voltage", "secondaryVoltage"),
		KVA:              doc.String("kva"),
		Rating:           doc.String("rating"),
		Impedance:        doc.String("impedance"),
		Frequency:        doc.String("frequency"),
		Cooling:          doc.String("cooling"),
		Location:         doc.String("location"),
		Weight:           doc.String("weight"),
		MfgYear:          firstString(doc, "mfgYear", "mfg_year"),
		Condition:        doc.String("condition"),
		LeadTime:         firstString(doc, "lead_time", "leadTimeSavings", "leadTime"),
		Warranty:         doc.String("warranty"),
		Description:      firstString(doc, "desc", "description"),
		SourceURL:        firstString(doc, "sourceUrl", "source_url"),
		UpdatedAt:        doc.UpdatedAt(),
	}

	if raw := doc.String("status"); raw != "" {
		if status, ok := parser.NormalizeStatus(raw); ok {
			l.Status = status
		} else {
			l.Status = models.Status(strings.ToUpper(strings.TrimSpace(raw)))
		}
	}

	switch v := doc["price"].(type) {
	case string:
		l.Price = parser.PriceFromText(v)
	case nil:
		l.Price = parser.NewPrice(0)
	default:
		amount, _ := doc.Float("price")
		l.Price = parser.NewPrice(amount)
	}

	if l.Voltage == "" && (l.PrimaryVoltage != "" || l.SecondaryVoltage != "") {
		l.Voltage = parser.JoinVoltage(l.PrimaryVoltage, l.SecondaryVoltage)
	}
	if l.PrimaryVoltage == "" && l.Voltage != "" {
		l.PrimaryVoltage, l.SecondaryVoltage = parser.SplitVoltage(l.Voltage)
	}

	specs := content.Document(doc.Map("specs"))
	l.Specs = models.Metrics{
		Efficiency: number(specs, "efficiency"),
		Load:       number(specs, "load_capacity", "load"),
		Durability: number(specs, "durability"),
		Shielding:  number(specs, "shielding"),
	}

	l.TechSpecs = techSpecsFromDocument(content.Document(doc.Map("techSpecs")))
	if l.TechSpecs.TempRise == "" {
		l.TechSpecs.TempRise = specs.String("tempRise")
	}
	if l.Cooling == "" {
		l.Cooling = specs.String("cooling")
	}

	l.Images = imagesFromDocument(doc)
	for _, item := range doc.Slice("documents") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := content.Document(m)
		ref := assetRef(entry)
		if ref == "" {
			continue
		}
		l.Documents = append(l.Documents, models.FileRef{
			Key:      entry.String(content.KeyKey),
			AssetRef: ref,
			Filename: entry.String("filename"),
			URL:      assetURL(entry),
		})
	}
	return l
}

func techSpecsDocument(t models.TechSpecs) map[string]any {
	out := map[string]any{}
	for k, v := range t.Extra {
		out[k] = v
	}
	putString(out, "coolingClass", t.CoolingClass)
	putString(out, "oilType", t.OilType)
	putString(out, "windings", t.Windings)
	putString(out, "tempRise", t.TempRise)
	putString(out, "bil", t.BIL)
	putString(out, "taps", t.Taps)
	putString(out, "dimensions", t.Dimensions)
	putString(out, "productionStatus", t.ProductionStatus)
	putString(out, "phase", t.Phase)
	return out
}

func techSpecsFromDocument(doc content.Document) models.TechSpecs {
	var t models.TechSpecs
	if doc == nil {
		return t
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value := doc.String(key)
		if value == "" {
			continue
		}
		field, known := techSpecKeys[key]
		if !known {
			if t.Extra == nil {
				t.Extra = make(map[string]string)
			}
			t.Extra[key] = value
			continue
		}
		target := techSpecField(&t, field)
		if *target == "" {
			*target = value
		}
	}
	return t
}

func techSpecField(t *models.TechSpecs, field string) *string {
	switch field {
	case "cooling_class":
		return &t.CoolingClass
	case "oil_type":
		return &t.OilType
	case "windings":
		return &t.Windings
	case "temp_rise":
		return &t.TempRise
	case "bil":
		return &t.BIL
	case "taps":
		return &t.Taps
	case "dimensions":
		return &t.Dimensions
	case "production_status":
		return &t.ProductionStatus
	default:
		return &t.Phase
	}
}

func imagesFromDocument(doc content.Document) []models.ImageRef {
	var entries []any
	entries = append(entries, doc.Slice("images")...)
	if len(entries) == 0 {
		for _, key := range []string{"image", "mainImage"} {
			if m := doc.Map(key); m != nil {
				entries = append(entries, m)
				break
			}
		}
	}

	var out []models.ImageRef
	for _, item := range entries {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := content.Document(m)
		ref := assetRef(entry)
		if ref == "" {
			continue
		}
		out = append(out, models.ImageRef{
			Key:      firstString(entry, content.KeyKey, "key"),
			AssetRef: ref,
			URL:      assetURL(entry),
		})
	}
	return out
}

func assetRef(entry content.Document) string {
	asset := content.Document(entry.Map("asset"))
	return firstString(asset, "_ref", content.KeyID)
}

func assetURL(entry content.Document) string {
	return content.Document(entry.Map("asset")).String("url")
}

func priceText(p models.Price) string {
	if p.Text != "" {
		return p.Text
	}
	return parser.FormatPrice(p.Amount)
}

func putString(m map[string]any, key, value string) {
	if strings.TrimSpace(value) != "" {
		m[key] = value
	}
}

func putNumber(m map[string]any, key string, value float64) {
	if value != 0 {
		m[key] = value
	}
}

func number(doc content.Document, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := doc.Float(k); ok {
			return v
		}
	}
	return 0
}

func firstString(doc content.Document, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(doc.String(k)); v != "" {
			return v
		}
	}
	return ""
}

func keyOrNew(key string) string {
	if key != "" {
		return key
	}
	return uuid.NewString()[:12]
}

// visualKey names a freshly attached image the way the image jobs do.
func visualKey(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d", prefix, now.UnixMilli())
}
