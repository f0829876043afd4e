package query

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNilFilter is returned for a nil entry in the filter list
	ErrNilFilter = errors.New("filter is nil")
	// ErrEmptyKey is returned when a filter has no field path
	ErrEmptyKey = errors.New("filter key is empty")
	// ErrEmptyList is returned for list values without items
	ErrEmptyList = errors.New("list value is empty")
	// ErrPlaceholderMismatch is returned when a custom template's placeholders do not match its arguments
	ErrPlaceholderMismatch = errors.New("placeholders do not match values")
	// ErrInvalidDirection is returned for sort directions other than asc and desc
	ErrInvalidDirection = errors.New("invalid sort direction")
	// ErrNoComboCompiler is returned when a combo filter is compiled without a ComboCompiler
	ErrNoComboCompiler = errors.New("no combo compiler configured")
	// ErrUnknownKind is returned for filter implementations outside this package
	ErrUnknownKind = errors.New("unknown filter kind")
)

// CompileError describes a filter that could not be rendered
type CompileError struct {
	// Index is the position of the filter in the compiled list
	Index int
	// Kind is the variant of the filter, empty for nil filters
	Kind Kind
	// Key is the field path (or template) of the filter
	Key string
	// Err is the underlying cause
	Err error
}

// Error returns the error message
func (e *CompileError) Error() string {
	return fmt.Sprintf("filter %d (%s %q): %v", e.Index, e.Kind, e.Key, e.Err)
}

// Unwrap returns the underlying cause
func (e *CompileError) Unwrap() error {
	return e.Err
}

// ComboCompiler renders free-text search box expressions
type ComboCompiler interface {
	CompileCombo(f Combo) (string, error)
}

// ComboFunc adapts a function to the ComboCompiler interface
type ComboFunc func(f Combo) (string, error)

// CompileCombo calls fn(f)
func (fn ComboFunc) CompileCombo(f Combo) (string, error) {
	return fn(f)
}

// Compiler renders filters into query strings
type Compiler struct {
	combo ComboCompiler
}

// Option configures a Compiler
type Option func(*Compiler)

// WithComboCompiler sets the collaborator used for Combo filters
func WithComboCompiler(cc ComboCompiler) Option {
	return func(c *Compiler) {
		c.combo = cc
	}
}

// NewCompiler creates a Compiler
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCompiler = NewCompiler()

// Compile renders filters with a compiler that has no combo support
func Compile(filters []Filter) (string, error) {
	return defaultCompiler.Compile(filters)
}

// Compile renders filters in order and joins the fragments with "&".
// Only the last Sort filter is rendered. The result carries no trailing separator.
func (c *Compiler) Compile(filters []Filter) (string, error) {
	lastSort := -1
	for i, f := range filters {
		if _, ok := Unwrap(f).(Sort); ok {
			lastSort = i
		}
	}

	parts := make([]string, 0, len(filters))
	for i, f := range filters {
		f = Unwrap(f)
		if f == nil {
			return "", &CompileError{Index: i, Err: ErrNilFilter}
		}
		if _, ok := f.(Sort); ok && i != lastSort {
			continue
		}

		fragment, err := c.render(f)
		if err != nil {
			return "", &CompileError{Index: i, Kind: f.Kind(), Key: f.Field(), Err: err}
		}
		if fragment == "" {
			continue
		}
		parts = append(parts, fragment)
	}

	return strings.Join(parts, "&"), nil
}

func (c *Compiler) render(f Filter) (string, error) {
	if f.Field() == "" {
		return "", ErrEmptyKey
	}

	switch f := f.(type) {
	case Equal:
		if f.Value.IsList() {
			return in(f.Key, f.Value.list)
		}
		return f.Key + "=" + f.Value.scalar, nil
	case Less:
		return f.Key + "<" + f.Value, nil
	case More:
		return f.Key + ">" + f.Value, nil
	case Match:
		if !f.Value.IsList() {
			return f.Key + ".matches(" + f.Value.scalar + ")", nil
		}
		if len(f.Value.list) == 0 {
			return "", ErrEmptyList
		}
		group := make([]string, len(f.Value.list))
		for i, v := range f.Value.list {
			group[i] = f.Key + ".matches(" + v + ")"
		}
		return "(" + strings.Join(group, "|") + ")", nil
	case Multiple:
		return in(f.Key, f.Values)
	case Sort:
		if f.Direction != Asc && f.Direction != Desc {
			return "", fmt.Errorf("%w: %q", ErrInvalidDirection, f.Direction)
		}
		return "sortBy=" + f.Key + "." + string(f.Direction), nil
	case Custom:
		return substitute(f.Template, f.Args)
	case Combo:
		if c.combo == nil {
			return "", ErrNoComboCompiler
		}
		return c.combo.CompileCombo(f)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownKind, f)
	}
}

func in(key string, values []string) (string, error) {
	if len(values) == 0 {
		return "", ErrEmptyList
	}
	return key + ".in(" + strings.Join(values, ",") + ")", nil
}

var placeholderPattern = regexp.MustCompile(`\{(\d+)\}`)

// substitute replaces {i} with args[i] in a single pass, so argument text is never re-expanded.
// Every value is consumed by exactly one placeholder.
func substitute(template string, args []string) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	if len(matches) != len(args) {
		return "", fmt.Errorf("%w: %d placeholders for %d values", ErrPlaceholderMismatch, len(matches), len(args))
	}
	seen := make(map[int]struct{}, len(matches))
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx >= len(args) {
			return "", fmt.Errorf("%w: placeholder %s has no value (%d given)", ErrPlaceholderMismatch, m[0], len(args))
		}
		if _, dup := seen[idx]; dup {
			return "", fmt.Errorf("%w: placeholder %s used more than once", ErrPlaceholderMismatch, m[0])
		}
		seen[idx] = struct{}{}
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		idx, _ := strconv.Atoi(m[1 : len(m)-1])
		return args[idx]
	}), nil
}
