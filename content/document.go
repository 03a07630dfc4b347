// Package content talks to the hosted content store that holds the asset
// listings, and provides an in-memory store and a read cache with the same
// semantics.
package content

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Reserved document keys.
const (
	KeyID        = "_id"
	KeyType      = "_type"
	KeyRev       = "_rev"
	KeyCreatedAt = "_createdAt"
	KeyUpdatedAt = "_updatedAt"
	KeyKey       = "_key"
)

// Document is a schemaless content-store document.
type Document map[string]any

// ID returns the document id.
func (d Document) ID() string { return d.String(KeyID) }

// Type returns the document type.
func (d Document) Type() string { return d.String(KeyType) }

// Rev returns the revision id.
func (d Document) Rev() string { return d.String(KeyRev) }

// UpdatedAt parses _updatedAt, returning the zero time when absent.
func (d Document) UpdatedAt() time.Time {
	t, _ := time.Parse(time.RFC3339Nano, d.String(KeyUpdatedAt))
	return t
}

// String returns a string field. Numbers are formatted; other types give "".
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Float returns a numeric field, also accepting numeric strings.
func (d Document) Float(key string) (float64, bool) {
	return toFloat(d[key])
}

// Map returns a nested object field, or nil.
func (d Document) Map(key string) map[string]any {
	switch v := d[key].(type) {
	case map[string]any:
		return v
	case Document:
		return v
	default:
		return nil
	}
}

// Slice returns an array field, or nil.
func (d Document) Slice(key string) []any {
	switch v := d[key].(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	default:
		return nil
	}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

// Project returns a copy holding only the named fields.
func (d Document) Project(fields []string) Document {
	if len(fields) == 0 {
		return d.Clone()
	}
	out := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = cloneValue(v)
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Document:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneMap(t[i])
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	default:
		return v
	}
}

// setPath assigns a value at a dotted path ("specs.efficiency"), creating
// intermediate objects.
func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			if d, isDoc := cur[p].(Document); isDoc {
				next = d
			} else {
				next = make(map[string]any)
			}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = cloneValue(value)
}

func unsetPath(doc map[string]any, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// normalize round-trips a document through JSON so typed values (structs,
// []string, ints) take the shapes the hosted store would return.
func normalize(doc Document) (Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
