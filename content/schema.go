package content

// SchemaOption is one entry of a field's fixed value list.
type SchemaOption struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// SchemaField describes one document field as the studio shows it.
type SchemaField struct {
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	List        []SchemaOption `json:"list,omitempty"`
	Fields      []SchemaField  `json:"fields,omitempty"`
	Hotspot     bool           `json:"hotspot,omitempty"`
}

// SchemaType describes a document type.
type SchemaType struct {
	Name   string        `json:"name"`
	Title  string        `json:"title"`
	Type   string        `json:"type"`
	Fields []SchemaField `json:"fields"`
}

// Field returns the named field, or nil.
func (s SchemaType) Field(name string) *SchemaField {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// Allows reports whether value is acceptable for a list-constrained field.
// Fields without a list accept anything.
func (f *SchemaField) Allows(value string) bool {
	if f == nil || len(f.List) == 0 {
		return true
	}
	for _, opt := range f.List {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// InventoryType is the document type holding asset listings.
const InventoryType = "inventory"

// InventorySchema is the studio definition of inventory documents.
var InventorySchema = SchemaType{
	Name:  InventoryType,
	Title: "Inventory",
	Type:  "document",
	Fields: []SchemaField{
		{Name: "id", Title: "Asset ID", Type: "string", Description: "e.g., TR-PAD-2500"},
		{Name: "type", Title: "Type / Title", Type: "string"},
		{Name: "status", Title: "Status", Type: "string", List: []SchemaOption{
			{Title: "Available", Value: "AVAILABLE"},
			{Title: "Pending", Value: "PENDING"},
			{Title: "Acquiring", Value: "ACQUIRING"},
			{Title: "Sold", Value: "SOLD"},
		}},
		{Name: "voltage", Title: "Voltage", Type: "string"},
		{Name: "price", Title: "Price", Type: "string"},
		{Name: "specs", Title: "Specifications", Type: "object", Fields: []SchemaField{
			{Name: "efficiency", Title: "Efficiency (%)", Type: "number"},
			{Name: "load_capacity", Title: "Load Capacity (%)", Type: "number"},
			{Name: "durability", Title: "Durability (%)", Type: "number"},
			{Name: "shielding", Title: "Shielding (%)", Type: "number"},
		}},
		{Name: "desc", Title: "Description", Type: "text"},
		{Name: "image", Title: "Asset Image", Type: "image", Hotspot: true},
	},
}
