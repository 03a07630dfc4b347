package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kardainfra/karda/models"
)

func TestSplitVoltage(t *testing.T) {
	tests := []struct {
		raw           string
		wantPrimary   string
		wantSecondary string
	}{
		{raw: "12470 Delta -> 480Y/277", wantPrimary: "12470 Delta", wantSecondary: "480Y/277"},
		{raw: "13.8kV (Multi-Tap) -> 480V", wantPrimary: "13.8kV (Multi-Tap)", wantSecondary: "480V"},
		{raw: "12.47kV / 480V", wantPrimary: "12.47kV", wantSecondary: "480V"},
		{raw: "34.5kV → 575Y/332V", wantPrimary: "34.5kV", wantSecondary: "575Y/332V"},
		{raw: "575Y/332V", wantPrimary: "575Y/332V", wantSecondary: ""},
		{raw: "38kV", wantPrimary: "38kV", wantSecondary: ""},
		{raw: "  ", wantPrimary: "", wantSecondary: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			primary, secondary := SplitVoltage(tt.raw)
			if primary != tt.wantPrimary || secondary != tt.wantSecondary {
				t.Fatalf("SplitVoltage(%q) = (%q, %q), want (%q, %q)", tt.raw, primary, secondary, tt.wantPrimary, tt.wantSecondary)
			}
		})
	}
}

func TestJoinVoltage(t *testing.T) {
	if got := JoinVoltage("34.5kV Delta", "575Y/332V"); got != "34.5kV Delta -> 575Y/332V" {
		t.Fatalf("JoinVoltage = %q", got)
	}
	if got := JoinVoltage("38kV", ""); got != "38kV" {
		t.Fatalf("JoinVoltage single side = %q", got)
	}
	primary, secondary := SplitVoltage(JoinVoltage("13.8 kV", "480/277V"))
	if primary != "13.8 kV" || secondary != "480/277V" {
		t.Fatalf("round trip = (%q, %q)", primary, secondary)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{raw: "$45,000", want: 45000, wantOK: true},
		{raw: "$68,500.00", want: 68500, wantOK: true},
		{raw: "95000", want: 95000, wantOK: true},
		{raw: "Price: $1,250 each", want: 1250, wantOK: true},
		{raw: "$ 2,450,000", want: 2450000, wantOK: true},
		{raw: "Inquire", wantOK: false},
		{raw: "Request Quote", wantOK: false},
		{raw: "$0", wantOK: false},
		{raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParsePrice(tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("ParsePrice(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{amount: 95000, want: "$95,000"},
		{amount: 850000, want: "$850,000"},
		{amount: 12500, want: "$12,500"},
		{amount: 0, want: "Inquire"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.amount); got != tt.want {
			t.Fatalf("FormatPrice(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestPriceFromText(t *testing.T) {
	if got := PriceFromText("$45,000"); got.Amount != 45000 || got.Text != "$45,000" {
		t.Fatalf("PriceFromText($45,000) = %+v", got)
	}
	if got := PriceFromText("Call for pricing"); got.Known() || got.Text != "Call for pricing" {
		t.Fatalf("PriceFromText(text) = %+v", got)
	}
	if got := PriceFromText(""); got.Text != PriceOnRequest {
		t.Fatalf("PriceFromText(empty) = %+v", got)
	}
}

func TestFindPrice(t *testing.T) {
	body := `<div>Call $12,500 today</div><span>$5</span>`
	if got := FindPrice(body); got != "$12,500" {
		t.Fatalf("FindPrice = %q, want $12,500", got)
	}
	if got := FindPrice("<p>$5 shipping</p>"); got != "" {
		t.Fatalf("FindPrice short amount = %q, want empty", got)
	}
}

func TestCleanSpecKey(t *testing.T) {
	tests := map[string]string{
		"Primary Voltage:":    "primary_voltage",
		" KVA  Rating ":       "kva_rating",
		"Frequency":           "frequency",
		"Secondary: Voltage:": "secondary_voltage",
		"::":                  "",
	}
	for in, want := range tests {
		if got := CleanSpecKey(in); got != want {
			t.Fatalf("CleanSpecKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateID(t *testing.T) {
	tests := map[string]string{
		"2500 kVA MADDOX PREMIUM":    "TR-MADDOX-2500",
		"2500 kVA SUNBELT MULTI-TAP": "TR-SUNBELT-2500",
		"2500 kVA T&R UTILITY SPEC":  "TR-TR-2500",
		"ABB":                        "TR-ABB",
		"":                           "",
	}
	for in, want := range tests {
		if got := GenerateID(in); got != want {
			t.Fatalf("GenerateID(%q) = %q, want %q", in, got, want)
		}
	}
	if got := DocumentID("TR-MADDOX-2500"); got != "inventory-TR-MADDOX-2500" {
		t.Fatalf("DocumentID = %q", got)
	}
}

func TestManufacturer(t *testing.T) {
	if got := Manufacturer("2500 kVA T&R UTILITY SPEC"); got != "T&R" {
		t.Fatalf("Manufacturer = %q, want T&R", got)
	}
	if got := Manufacturer("ABB"); got != "Generic" {
		t.Fatalf("Manufacturer short name = %q, want Generic", got)
	}
}

func TestInference(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "condition new", got: InferCondition("New Surplus unit. Copper windings."), want: "NEW"},
		{name: "condition reconditioned", got: InferCondition("Reconditioned to IEEE standards."), want: "RECONDITIONED"},
		{name: "condition renewed is not new", got: InferCondition("Renewed gaskets"), want: "RECONDITIONED"},
		{name: "windings copper", got: InferWindingMaterial("Copper/Copper windings"), want: "Copper/Copper"},
		{name: "windings aluminum", got: InferWindingMaterial("aluminum coils"), want: "Aluminum"},
		{name: "windings unknown", got: InferWindingMaterial("sealed tank"), want: ""},
		{name: "oil mineral", got: InferOilType("filled with Mineral Oil"), want: "Mineral Oil"},
		{name: "oil fr3", got: InferOilType("FR3 fluid"), want: "FR3 (Vegetable Oil)"},
		{name: "oil unknown", got: InferOilType(""), want: ""},
		{name: "cooling from spec", got: InferCoolingClass("KNAN", "onan"), want: "KNAN"},
		{name: "cooling from text", got: InferCoolingClass("", "ONAN cooled"), want: "ONAN"},
		{name: "bil", got: ExtractBIL("rated 150 kV BIL on the primary"), want: "150 kV BIL"},
		{name: "bil compact", got: ExtractBIL("95kv bil"), want: "95 kV BIL"},
		{name: "bil missing", got: ExtractBIL("no rating"), want: ""},
		{name: "production new surplus", got: InferProductionStatus("New Surplus unit"), want: "New Surplus"},
		{name: "production default", got: InferProductionStatus("tested"), want: "Reconditioned"},
		{name: "location", got: ExtractLocation("Ships from\nLocation: Temple, TX\nPrice"), want: "TEMPLE, TX"},
		{name: "location missing", got: ExtractLocation("no location here"), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("abc", 3); got != "abc" {
		t.Fatalf("Truncate at limit = %q", got)
	}
	if got := Truncate("abcdef", 0); got != "abcdef" {
		t.Fatalf("Truncate without limit = %q", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	if got, ok := NormalizeStatus(" pending "); !ok || got != models.StatusPending {
		t.Fatalf("NormalizeStatus = %q, %v", got, ok)
	}
	if _, ok := NormalizeStatus("RESERVED"); ok {
		t.Fatalf("unknown status should be rejected")
	}
}

const listingFixture = `<html>
<head><meta property="og:image" content="/img/unit.jpg"></head>
<body>
<h1>  ABB 2500 kVA
  Pad Mount </h1>
<div class="entry-content"><p>New surplus unit with copper windings, mineral oil, 150 kV BIL.</p></div>
<span class="woocommerce-Price-amount">$95,000</span>
<table>
<tr><th>Primary Voltage:</th><td>34.5kV</td></tr>
<tr><td>Secondary Voltage</td><td>575Y/332V</td></tr>
<tr><td>Phase</td><td>3-Phase</td></tr>
</table>
<p>Location: Pittsburgh, PA</p>
</body>
</html>`

func TestParseHTML(t *testing.T) {
	page, err := ParseHTML(strings.NewReader(listingFixture), "http://example.test/listing/abb/")
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}

	if page.Title != "ABB 2500 kVA Pad Mount" {
		t.Fatalf("title = %q", page.Title)
	}
	if page.Description != "New surplus unit with copper windings, mineral oil, 150 kV BIL." {
		t.Fatalf("description = %q", page.Description)
	}
	if page.RawPrice != "$95,000" {
		t.Fatalf("raw price = %q", page.RawPrice)
	}
	if page.Location != "PITTSBURGH, PA" {
		t.Fatalf("location = %q", page.Location)
	}
	if page.ImageURL != "http://example.test/img/unit.jpg" {
		t.Fatalf("image = %q", page.ImageURL)
	}
	if page.Source != "example.test" {
		t.Fatalf("source = %q", page.Source)
	}

	wantSpecs := map[string]string{
		"primary_voltage":   "34.5kV",
		"secondary_voltage": "575Y/332V",
		"phase":             "3-Phase",
	}
	if diff := cmp.Diff(wantSpecs, page.Specs); diff != "" {
		t.Fatalf("specs mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHTMLFallbacks(t *testing.T) {
	html := `<html><body>
<h1>Sunbelt 2500</h1>
<div id="tab-description">Reconditioned unit.</div>
<div class="woocommerce-product-gallery__image"><a href="https://cdn.test/a.jpg">img</a></div>
<table><tr><td>Location</td><td>Temple, TX</td></tr></table>
<p>Call $12,500 today</p>
</body></html>`

	page, err := ParseHTML(strings.NewReader(html), "http://example.test/listing/sunbelt/")
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if page.Description != "Reconditioned unit." {
		t.Fatalf("description = %q", page.Description)
	}
	if page.RawPrice != "$12,500" {
		t.Fatalf("raw price = %q", page.RawPrice)
	}
	if page.Location != "TEMPLE, TX" {
		t.Fatalf("location = %q", page.Location)
	}
	if page.ImageURL != "https://cdn.test/a.jpg" {
		t.Fatalf("image = %q", page.ImageURL)
	}
}

func TestBuildListing(t *testing.T) {
	page, err := ParseHTML(strings.NewReader(listingFixture), "http://example.test/listing/abb/")
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	page.Target = models.Target{AssetID: "TR-ABB-2500-PA", DescriptionLimit: 20}

	defaults := models.Listing{
		Name:      "2500 kVA ABB SURPLUS",
		Title:     "ABB 2500 kVA Padmount",
		Weight:    "13,500 LBS",
		Impedance: "5.75%",
		Location:  "USA",
		TechSpecs: models.TechSpecs{OilType: "Mineral Oil Type II", Windings: "Standard", CoolingClass: "ONAN"},
	}

	l, err := BuildListing(page, defaults)
	if err != nil {
		t.Fatalf("BuildListing: %v", err)
	}

	if l.ID != "TR-ABB-2500-PA" || l.DocID != "inventory-TR-ABB-2500-PA" {
		t.Fatalf("ids = %q / %q", l.ID, l.DocID)
	}
	if l.Title != "ABB 2500 kVA Pad Mount" {
		t.Fatalf("title = %q", l.Title)
	}
	if l.Manufacturer != "ABB" {
		t.Fatalf("manufacturer = %q", l.Manufacturer)
	}
	if l.Status != models.StatusAvailable {
		t.Fatalf("status = %q", l.Status)
	}
	if l.Price.Amount != 95000 || l.Price.Text != "$95,000" {
		t.Fatalf("price = %+v", l.Price)
	}
	if l.Voltage != "34.5kV -> 575Y/332V" {
		t.Fatalf("voltage = %q", l.Voltage)
	}
	if l.Location != "PITTSBURGH, PA" {
		t.Fatalf("location = %q", l.Location)
	}
	if l.Description != "New surplus unit wit..." {
		t.Fatalf("description = %q", l.Description)
	}
	if l.Condition != "NEW" {
		t.Fatalf("condition = %q", l.Condition)
	}
	if l.SourceImageURL != "http://example.test/img/unit.jpg" {
		t.Fatalf("source image = %q", l.SourceImageURL)
	}

	want := models.TechSpecs{
		CoolingClass:     "ONAN",
		OilType:          "Mineral Oil",
		Windings:         "Copper/Copper",
		BIL:              "150 kV BIL",
		Phase:            "3-Phase",
		ProductionStatus: "New Surplus",
	}
	if diff := cmp.Diff(want, l.TechSpecs); diff != "" {
		t.Fatalf("tech specs mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildListingUsesDefaultsWhenPageIsBare(t *testing.T) {
	page := models.ScrapedPage{URL: "http://example.test/x", Target: models.Target{AssetID: "TR-SUNBELT-SCRAPED"}}
	defaults := models.Listing{
		Title:            "Sunbelt 2500",
		Price:            models.Price{Amount: 65000},
		PrimaryVoltage:   "13.8kV Delta",
		SecondaryVoltage: "480 Delta",
		Location:         "TEMPLE, TX",
	}

	l, err := BuildListing(page, defaults)
	if err != nil {
		t.Fatalf("BuildListing: %v", err)
	}
	if l.Price.Text != "$65,000" {
		t.Fatalf("price = %+v", l.Price)
	}
	if l.Voltage != "13.8kV Delta -> 480 Delta" {
		t.Fatalf("voltage = %q", l.Voltage)
	}
	if l.Condition != "" || l.TechSpecs.ProductionStatus != "" {
		t.Fatalf("inference should not run without a description: %+v", l)
	}
}

func TestValidateListing(t *testing.T) {
	tests := []struct {
		name    string
		listing *models.Listing
		want    error
	}{
		{name: "ok", listing: &models.Listing{ID: "TR-1", Title: "Unit", Status: models.StatusSold}},
		{name: "missing id", listing: &models.Listing{Title: "Unit", Status: models.StatusSold}, want: ErrMissingID},
		{name: "missing title", listing: &models.Listing{ID: "TR-1", Status: models.StatusSold}, want: ErrMissingTitle},
		{name: "bad status", listing: &models.Listing{ID: "TR-1", Name: "Unit", Status: "RESERVED"}, want: ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateListing(tt.listing)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidatePage(t *testing.T) {
	if err := ValidatePage(&models.ScrapedPage{Title: "x"}); !errors.Is(err, ErrMissingURL) {
		t.Fatalf("missing url error = %v", err)
	}
	if err := ValidatePage(&models.ScrapedPage{URL: "http://a"}); !errors.Is(err, ErrMissingTitle) {
		t.Fatalf("missing title error = %v", err)
	}
	page := &models.ScrapedPage{URL: "http://a", Target: models.Target{Defaults: models.Listing{Title: "Fallback"}}}
	if err := ValidatePage(page); err != nil {
		t.Fatalf("defaults should satisfy title: %v", err)
	}
}

func TestBuildListingDescriptionTemplate(t *testing.T) {
	page := models.ScrapedPage{
		URL:         "http://example.test/listing/abb/",
		Title:       "ABB 2500 kVA Pad Mount",
		Description: "Seller copy with Aluminum windings.",
		Location:    "Houston, TX",
		Target: models.Target{
			AssetID:             "TR-SURPLUS-2500",
			DescriptionTemplate: "Auto-captured from Surplus Record. {capacity} unit. Located in {location}.",
		},
	}
	l, err := BuildListing(page, models.Listing{KVA: "2500 kVA", Location: "USA"})
	if err != nil {
		t.Fatalf("BuildListing: %v", err)
	}
	if want := "Auto-captured from Surplus Record. 2500 kVA unit. Located in HOUSTON, TX."; l.Description != want {
		t.Fatalf("description = %q, want %q", l.Description, want)
	}
	if l.TechSpecs.Windings == "" {
		t.Fatalf("inference should still read the scraped text: %+v", l.TechSpecs)
	}
}
