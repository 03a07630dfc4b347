package content

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Query is the subset of GROQ the jobs and the site need: documents of one
// type, optionally filtered by field equality, ordered, limited and projected.
type Query struct {
	Type   string
	Where  map[string]any
	Order  string // "<field> asc" or "<field> desc"
	Limit  int
	Fields []string
}

// ByType selects every document of a type.
func ByType(docType string) Query {
	return Query{Type: docType}
}

// Eq returns a copy of q with an extra field equality.
func (q Query) Eq(field string, value any) Query {
	where := make(map[string]any, len(q.Where)+1)
	for k, v := range q.Where {
		where[k] = v
	}
	where[field] = value
	q.Where = where
	return q
}

// GROQ renders the query and its parameters
// (`*[_type == $type && id == $w0] | order(_updatedAt desc) [0...10] {_id, id}`).
func (q Query) GROQ() (string, map[string]any) {
	params := make(map[string]any)
	var filters []string
	if q.Type != "" {
		filters = append(filters, "_type == $type")
		params["type"] = q.Type
	}
	for i, field := range q.whereFields() {
		name := fmt.Sprintf("w%d", i)
		filters = append(filters, fmt.Sprintf("%s == $%s", field, name))
		params[name] = q.Where[field]
	}

	var b strings.Builder
	b.WriteString("*")
	if len(filters) > 0 {
		b.WriteString("[" + strings.Join(filters, " && ") + "]")
	}
	if field, desc := q.order(); field != "" {
		dir := "asc"
		if desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, " | order(%s %s)", field, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " [0...%d]", q.Limit)
	}
	if len(q.Fields) > 0 {
		b.WriteString(" {" + strings.Join(q.Fields, ", ") + "}")
	}
	return b.String(), params
}

// Matches reports whether doc passes the type and equality filters.
func (q Query) Matches(doc Document) bool {
	if q.Type != "" && doc.Type() != q.Type {
		return false
	}
	for field, want := range q.Where {
		if !valuesEqual(doc[field], want) {
			return false
		}
	}
	return true
}

// Apply filters, orders, limits and projects docs the way the hosted store would.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}

	field, desc := q.order()
	if field == "" {
		field = KeyID
	}
	slices.SortStableFunc(out, func(a, b Document) int {
		c := compareValues(a[field], b[field])
		if desc {
			return -c
		}
		return c
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i := range out {
		out[i] = out[i].Project(q.Fields)
	}
	return out
}

func (q Query) whereFields() []string {
	fields := make([]string, 0, len(q.Where))
	for k := range q.Where {
		fields = append(fields, k)
	}
	slices.Sort(fields)
	return fields
}

func (q Query) order() (string, bool) {
	parts := strings.Fields(q.Order)
	if len(parts) == 0 {
		return "", false
	}
	return parts[0], len(parts) > 1 && strings.EqualFold(parts[1], "desc")
}

func valuesEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			_, aStr := a.(string)
			_, bStr := b.(string)
			if aStr == bStr {
				return af == bf
			}
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compareValues(a, b any) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	_, aStr := a.(string)
	_, bStr := b.(string)
	if aNum && bNum && !aStr && !bStr {
		return cmp.Compare(af, bf)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
