package query

import (
	"fmt"
	"strings"
)

// Spec is the declarative (YAML) form of a filter
type Spec struct {
	Key   string `yaml:"key"`
	Type  Kind   `yaml:"type"`
	Value any    `yaml:"value"`

	// ComponentRelated marks host component filters of the hosts table
	ComponentRelated bool `yaml:"componentRelated,omitempty"`
}

// FromSpecs converts declarative specs into filters, preserving order
func FromSpecs(specs []Spec) ([]Filter, error) {
	filters := make([]Filter, 0, len(specs))
	for i, s := range specs {
		f, err := s.Filter()
		if err != nil {
			return nil, fmt.Errorf("filter[%d] (%s): %w", i, s.Key, err)
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// Filter converts the spec into its typed variant
func (s Spec) Filter() (Filter, error) {
	tokens, isList, err := tokens(s.Value)
	if err != nil {
		return nil, err
	}

	var f Filter
	switch Kind(strings.ToUpper(string(s.Type))) {
	case KindEqual:
		f = Equal{Key: s.Key, Value: value(tokens, isList)}
	case KindLess:
		if isList {
			return nil, fmt.Errorf("%s expects a single value", KindLess)
		}
		f = Less{Key: s.Key, Value: first(tokens)}
	case KindMore:
		if isList {
			return nil, fmt.Errorf("%s expects a single value", KindMore)
		}
		f = More{Key: s.Key, Value: first(tokens)}
	case KindMatch:
		f = Match{Key: s.Key, Value: value(tokens, isList)}
	case KindMultiple:
		f = Multiple{Key: s.Key, Values: tokens}
	case KindSort:
		f = Sort{Key: s.Key, Direction: Direction(strings.ToLower(first(tokens)))}
	case KindCustom:
		f = Custom{Template: s.Key, Args: tokens}
	case KindCombo:
		f = Combo{Key: s.Key, Value: first(tokens)}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Type)
	}

	if s.ComponentRelated {
		return Param{Filter: f, ComponentRelated: true}, nil
	}
	return f, nil
}

func tokens(v any) ([]string, bool, error) {
	switch v := v.(type) {
	case nil:
		return nil, false, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch item.(type) {
			case []any, map[string]any:
				return nil, false, fmt.Errorf("nested value %v is not supported", item)
			}
			out = append(out, fmt.Sprint(item))
		}
		return out, true, nil
	case []string:
		return v, true, nil
	case map[string]any:
		return nil, false, fmt.Errorf("structured value %v is not supported", v)
	default:
		return []string{fmt.Sprint(v)}, false, nil
	}
}

func value(tokens []string, isList bool) Value {
	if isList {
		return List(tokens...)
	}
	return Scalar(first(tokens))
}

func first(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}
