package query

import "slices"

// Kind identifies the variant of a Filter
type Kind string

const (
	// KindEqual renders key=value or key.in(...)
	KindEqual Kind = "EQUAL"
	// KindLess renders key<value
	KindLess Kind = "LESS"
	// KindMore renders key>value
	KindMore Kind = "MORE"
	// KindMatch renders key.matches(value) or an OR-group of matches
	KindMatch Kind = "MATCH"
	// KindMultiple renders key.in(...)
	KindMultiple Kind = "MULTIPLE"
	// KindSort renders sortBy=key.direction
	KindSort Kind = "SORT"
	// KindCustom renders a template with positional placeholders
	KindCustom Kind = "CUSTOM"
	// KindCombo is rendered by an external ComboCompiler
	KindCombo Kind = "COMBO"
)

// Filter is one constraint to render into a query string.
// The set of implementations is closed and limited to the types of this package.
type Filter interface {
	// Kind returns the variant tag of the filter
	Kind() Kind
	// Field returns the field path the filter targets
	Field() string

	isFilter()
}

// Value is either a single token or an ordered list of tokens.
type Value struct {
	scalar string
	list   []string
	isList bool
}

// Scalar returns a single-token value
func Scalar(v string) Value {
	return Value{scalar: v}
}

// List returns a list value. The tokens are copied.
func List(values ...string) Value {
	return Value{list: slices.Clone(values), isList: true}
}

// IsList reports whether the value holds a list
func (v Value) IsList() bool {
	return v.isList
}

// String returns the scalar token, or the empty string for list values
func (v Value) String() string {
	return v.scalar
}

// Items returns a copy of the list tokens, or nil for scalar values
func (v Value) Items() []string {
	return slices.Clone(v.list)
}

// Equal matches a field against a value, or against a set of values when the value is a list.
type Equal struct {
	Key   string
	Value Value
}

// Less matches a field strictly below a value.
type Less struct {
	Key   string
	Value string
}

// More matches a field strictly above a value.
type More struct {
	Key   string
	Value string
}

// Match matches a field against a pattern, or any of several patterns when the value is a list.
type Match struct {
	Key   string
	Value Value
}

// Multiple matches a field against a non-empty set of values.
type Multiple struct {
	Key    string
	Values []string
}

// Direction is a sort direction token
type Direction string

const (
	// Asc sorts ascending
	Asc Direction = "asc"
	// Desc sorts descending
	Desc Direction = "desc"
)

// Sort orders the result set by a field.
type Sort struct {
	Key       string
	Direction Direction
}

// Custom is a pre-formatted fragment with positional placeholders ({0}, {1}, ...)
// substituted from Args in order.
type Custom struct {
	Template string
	Args     []string
}

// Combo is a free-text search box expression rendered by a ComboCompiler.
type Combo struct {
	Key   string
	Value string
}

// Param wraps a filter with metadata used by the hosts table refresh.
// It renders exactly like the wrapped filter.
type Param struct {
	Filter

	// ComponentRelated marks filters on host components, which require
	// resolving matching host names before the main hosts request
	ComponentRelated bool

	// HostDetails marks the single-host filter of the host details view
	HostDetails bool
}

// Kind returns KindEqual
func (Equal) Kind() Kind { return KindEqual }

// Kind returns KindLess
func (Less) Kind() Kind { return KindLess }

// Kind returns KindMore
func (More) Kind() Kind { return KindMore }

// Kind returns KindMatch
func (Match) Kind() Kind { return KindMatch }

// Kind returns KindMultiple
func (Multiple) Kind() Kind { return KindMultiple }

// Kind returns KindSort
func (Sort) Kind() Kind { return KindSort }

// Kind returns KindCustom
func (Custom) Kind() Kind { return KindCustom }

// Kind returns KindCombo
func (Combo) Kind() Kind { return KindCombo }

// Field returns the filtered key
func (f Equal) Field() string { return f.Key }

// Field returns the filtered key
func (f Less) Field() string { return f.Key }

// Field returns the filtered key
func (f More) Field() string { return f.Key }

// Field returns the filtered key
func (f Match) Field() string { return f.Key }

// Field returns the filtered key
func (f Multiple) Field() string { return f.Key }

// Field returns the sort key
func (f Sort) Field() string { return f.Key }

// Field returns the template
func (f Custom) Field() string { return f.Template }

// Field returns the combo key
func (f Combo) Field() string { return f.Key }

func (Equal) isFilter()    {}
func (Less) isFilter()     {}
func (More) isFilter()     {}
func (Match) isFilter()    {}
func (Multiple) isFilter() {}
func (Sort) isFilter()     {}
func (Custom) isFilter()   {}
func (Combo) isFilter()    {}

// HostNames returns the single-field filter selecting the given hosts
func HostNames(names ...string) Multiple {
	return Multiple{Key: HostNameKey, Values: slices.Clone(names)}
}

// HostNameKey is the field path of a host's name
const HostNameKey = "Hosts/host_name"

// Unwrap strips Param metadata and returns the underlying filter
func Unwrap(f Filter) Filter {
	for {
		p, ok := f.(Param)
		if !ok {
			return f
		}
		f = p.Filter
	}
}

// IsComponentRelated reports whether any filter is marked as component related
func IsComponentRelated(filters []Filter) bool {
	for _, f := range filters {
		if p, ok := f.(Param); ok && p.ComponentRelated {
			return true
		}
	}
	return false
}

// SelectKeys returns the filters whose field is one of keys, in their original order
func SelectKeys(filters []Filter, keys ...string) []Filter {
	var out []Filter
	for _, f := range filters {
		if f == nil {
			continue
		}
		if slices.Contains(keys, Unwrap(f).Field()) {
			out = append(out, f)
		}
	}
	return out
}

// PaginationKeys are the host table fields that page through results
var PaginationKeys = []string{"page_size", "from"}

// Pagination returns the pagination filters in their original order
func Pagination(filters []Filter) []Filter {
	return SelectKeys(filters, PaginationKeys...)
}
