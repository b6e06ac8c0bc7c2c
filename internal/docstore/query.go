package docstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Op is a filter comparison operator.
type Op string

const (
	Eq    Op = "=="
	NotEq Op = "!="
	Lt    Op = "<"
	Lte   Op = "<="
	Gt    Op = ">"
	Gte   Op = ">="
)

// Filter restricts a query to documents whose top-level Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Order sorts query results by a top-level field. Documents missing the
// field are excluded from ordered results.
type Order struct {
	Field      string
	Descending bool
}

// Query selects documents from one collection, or from every collection with
// the given Group name at any depth when Collection is empty.
type Query struct {
	Collection CollectionRef
	Group      string
	Filters    []Filter
	OrderBy    []Order
	Limit      int
	// StartAfter holds the OrderBy values of the last document of the previous page.
	StartAfter []any
}

// From starts a query over one collection.
func From(c CollectionRef) Query {
	return Query{Collection: c}
}

// FromGroup starts a collection-group query.
func FromGroup(name string) Query {
	return Query{Group: name}
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Where(field, op, value))
	return q
}

func (q Query) Order(field string, descending bool) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), Order{Field: field, Descending: descending})
	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

func (q Query) After(values ...any) Query {
	q.StartAfter = values
	return q
}

// Validate checks the query scope and cursor shape.
func (q Query) Validate() error {
	if q.Collection.Path == "" && q.Group == "" {
		return fmt.Errorf("%w: no collection or group", ErrInvalidQuery)
	}
	if q.Collection.Path != "" {
		if err := q.Collection.Validate(); err != nil {
			return err
		}
	}
	if len(q.StartAfter) > len(q.OrderBy) {
		return fmt.Errorf("%w: cursor has more values than order fields", ErrInvalidQuery)
	}
	return nil
}

// InScope reports whether a document at ref belongs to the queried collection or group.
func (q Query) InScope(ref DocRef) bool {
	if q.Collection.Path != "" {
		return ref.Coll.Path == q.Collection.Path
	}
	return ref.Coll.Name() == q.Group
}

// EqualityFilters returns the == filters as a field map with normalised values.
// Backends that can push equality down (jsonb containment) use it.
func (q Query) EqualityFilters() (map[string]any, error) {
	out := map[string]any{}
	for _, f := range q.Filters {
		if f.Op != Eq {
			continue
		}
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		out[f.Field] = v
	}
	return out, nil
}

// Select applies filters, ordering, cursor and limit to candidate documents.
// Candidates outside the query scope are dropped.
func Select(q Query, candidates []Document) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filters := make([]Filter, len(q.Filters))
	for i, f := range q.Filters {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		filters[i] = Filter{Field: f.Field, Op: f.Op, Value: v}
	}

	out := make([]Document, 0, len(candidates))
	for _, doc := range candidates {
		if !q.InScope(doc.Ref) || !matchesAll(doc.Data, filters) || !hasFields(doc.Data, q.OrderBy) {
			continue
		}
		out = append(out, doc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := compareDocs(out[i], out[j], q.OrderBy); c != 0 {
			return c < 0
		}
		return out[i].Ref.Path() < out[j].Ref.Path()
	})

	if len(q.StartAfter) > 0 {
		cursor := make([]any, len(q.StartAfter))
		for i, v := range q.StartAfter {
			nv, err := normalizeValue(v)
			if err != nil {
				return nil, fmt.Errorf("cursor: %w", err)
			}
			cursor[i] = nv
		}
		start := len(out)
		for i, doc := range out {
			if compareCursor(doc.Data, cursor, q.OrderBy) > 0 {
				start = i
				break
			}
		}
		out = out[start:]
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchesAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok {
			return false
		}
		c, comparable := compareValues(v, f.Value)
		switch f.Op {
		case Eq:
			if !comparable || c != 0 {
				return false
			}
		case NotEq:
			if comparable && c == 0 {
				return false
			}
		case Lt:
			if !comparable || c >= 0 {
				return false
			}
		case Lte:
			if !comparable || c > 0 {
				return false
			}
		case Gt:
			if !comparable || c <= 0 {
				return false
			}
		case Gte:
			if !comparable || c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func hasFields(data map[string]any, orders []Order) bool {
	for _, o := range orders {
		if _, ok := data[o.Field]; !ok {
			return false
		}
	}
	return true
}

func compareDocs(a, b Document, orders []Order) int {
	for _, o := range orders {
		c := compareOrdered(a.Data[o.Field], b.Data[o.Field])
		if o.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func compareCursor(data map[string]any, cursor []any, orders []Order) int {
	for i, v := range cursor {
		c := compareOrdered(data[orders[i].Field], v)
		if orders[i].Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// compareOrdered gives a total order: values of different types are ranked
// null < bool < number < string.
func compareOrdered(a, b any) int {
	if c, ok := compareValues(a, b); ok {
		return c
	}
	ra, rb := typeRank(a), typeRank(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case nil:
		return 0, b == nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		if ta, tb, ok := parseTimes(av, bv); ok {
			return ta.Compare(tb), true
		}
		return strings.Compare(av, bv), true
	}
	return 0, false
}

func parseTimes(a, b string) (time.Time, time.Time, bool) {
	ta, err := time.Parse(time.RFC3339Nano, a)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	tb, err := time.Parse(time.RFC3339Nano, b)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return ta, tb, true
}
