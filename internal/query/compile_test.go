package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filters  []Filter
		expected string
	}{
		{
			name:     "no filters",
			filters:  nil,
			expected: "",
		},
		{
			name:     "multiple renders in-list",
			filters:  []Filter{Multiple{Key: "state", Values: []string{"CRITICAL", "WARNING"}}},
			expected: "state.in(CRITICAL,WARNING)",
		},
		{
			name:     "match list renders OR-group",
			filters:  []Filter{Match{Key: "name", Value: List("a", "b")}},
			expected: "(name.matches(a)|name.matches(b))",
		},
		{
			name:     "match scalar",
			filters:  []Filter{Match{Key: "Hosts/host_name", Value: Scalar(".*c6401.*")}},
			expected: "Hosts/host_name.matches(.*c6401.*)",
		},
		{
			name:     "sort",
			filters:  []Filter{Sort{Key: "count", Direction: Asc}},
			expected: "sortBy=count.asc",
		},
		{
			name:     "custom substitutes placeholders",
			filters:  []Filter{Custom{Template: "x=[{0}]", Args: []string{"42"}}},
			expected: "x=[42]",
		},
		{
			name: "custom with reordered placeholders",
			filters: []Filter{Custom{
				Template: "{1}/a={0}",
				Args:     []string{"1", "Hosts"},
			}},
			expected: "Hosts/a=1",
		},
		{
			name:     "custom arguments are not re-expanded",
			filters:  []Filter{Custom{Template: "a={0}&b={1}", Args: []string{"{1}", "x"}}},
			expected: "a={1}&b=x",
		},
		{
			name:     "equal scalar",
			filters:  []Filter{Equal{Key: "host", Value: Scalar("h1")}},
			expected: "host=h1",
		},
		{
			name:     "equal list",
			filters:  []Filter{Equal{Key: "host", Value: List("h1", "h2")}},
			expected: "host.in(h1,h2)",
		},
		{
			name: "less and more",
			filters: []Filter{
				Less{Key: "metrics/load/load_one", Value: "5"},
				More{Key: "Hosts/cpu_count", Value: "2"},
			},
			expected: "metrics/load/load_one<5&Hosts/cpu_count>2",
		},
		{
			name: "filters are joined in order",
			filters: []Filter{
				Multiple{Key: "state", Values: []string{"CRITICAL", "WARNING"}},
				Equal{Key: "host", Value: Scalar("h1")},
			},
			expected: "state.in(CRITICAL,WARNING)&host=h1",
		},
		{
			name: "last sort wins",
			filters: []Filter{
				Sort{Key: "Hosts/host_name", Direction: Asc},
				Equal{Key: "page_size", Value: Scalar("10")},
				Sort{Key: "Hosts/ip", Direction: Desc},
			},
			expected: "page_size=10&sortBy=Hosts/ip.desc",
		},
		{
			name: "param metadata does not change rendering",
			filters: []Filter{
				Param{Filter: Equal{Key: "host_components/HostRoles/component_name", Value: Scalar("DATANODE")}, ComponentRelated: true},
			},
			expected: "host_components/HostRoles/component_name=DATANODE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := Compile(tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	t.Parallel()

	filters := []Filter{
		Multiple{Key: "state", Values: []string{"CRITICAL", "WARNING"}},
		Match{Key: "name", Value: List("a", "b")},
		Custom{Template: "x=[{0}]", Args: []string{"42"}},
		Sort{Key: "count", Direction: Desc},
	}

	first, err := Compile(filters)
	require.NoError(t, err)
	for range 10 {
		again, err := Compile(filters)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		filters []Filter
		index   int
		kind    Kind
		wantErr error
	}{
		{
			name:    "empty multiple",
			filters: []Filter{Multiple{Key: "state"}},
			kind:    KindMultiple,
			wantErr: ErrEmptyList,
		},
		{
			name:    "empty equal list",
			filters: []Filter{Equal{Key: "host", Value: Scalar("a")}, Equal{Key: "host", Value: List()}},
			index:   1,
			kind:    KindEqual,
			wantErr: ErrEmptyList,
		},
		{
			name:    "empty OR-group",
			filters: []Filter{Match{Key: "name", Value: List()}},
			kind:    KindMatch,
			wantErr: ErrEmptyList,
		},
		{
			name:    "too few custom values",
			filters: []Filter{Custom{Template: "a={0}&b={1}", Args: []string{"1"}}},
			kind:    KindCustom,
			wantErr: ErrPlaceholderMismatch,
		},
		{
			name:    "repeated custom placeholder",
			filters: []Filter{Custom{Template: "a={0}&b={0}", Args: []string{"1"}}},
			kind:    KindCustom,
			wantErr: ErrPlaceholderMismatch,
		},
		{
			name:    "repeated placeholder leaves a value unused",
			filters: []Filter{Custom{Template: "a={0}&b={0}", Args: []string{"1", "2"}}},
			kind:    KindCustom,
			wantErr: ErrPlaceholderMismatch,
		},
		{
			name:    "too many custom values",
			filters: []Filter{Custom{Template: "a={0}", Args: []string{"1", "2"}}},
			kind:    KindCustom,
			wantErr: ErrPlaceholderMismatch,
		},
		{
			name:    "invalid sort direction",
			filters: []Filter{Sort{Key: "count", Direction: "sideways"}},
			kind:    KindSort,
			wantErr: ErrInvalidDirection,
		},
		{
			name:    "combo without compiler",
			filters: []Filter{Combo{Key: "combo", Value: "h1"}},
			kind:    KindCombo,
			wantErr: ErrNoComboCompiler,
		},
		{
			name:    "empty key",
			filters: []Filter{Equal{Value: Scalar("x")}},
			kind:    KindEqual,
			wantErr: ErrEmptyKey,
		},
		{
			name:    "nil filter",
			filters: []Filter{nil},
			wantErr: ErrNilFilter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := Compile(tt.filters)
			require.Error(t, err)
			assert.Empty(t, result)
			assert.ErrorIs(t, err, tt.wantErr)

			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr))
			assert.Equal(t, tt.index, compileErr.Index)
			assert.Equal(t, tt.kind, compileErr.Kind)
		})
	}
}

func TestCompiler_Combo(t *testing.T) {
	t.Parallel()

	compiler := NewCompiler(WithComboCompiler(ComboFunc(func(f Combo) (string, error) {
		return "(Hosts/host_name.matches(" + f.Value + "))", nil
	})))

	result, err := compiler.Compile([]Filter{
		Combo{Key: "combo", Value: ".*h1.*"},
		Equal{Key: "from", Value: Scalar("0")},
	})
	require.NoError(t, err)
	assert.Equal(t, "(Hosts/host_name.matches(.*h1.*))&from=0", result)
}

func TestCompiler_ComboEmptyFragmentIsSkipped(t *testing.T) {
	t.Parallel()

	compiler := NewCompiler(WithComboCompiler(ComboFunc(func(Combo) (string, error) {
		return "", nil
	})))

	result, err := compiler.Compile([]Filter{
		Combo{Key: "combo", Value: ""},
		Equal{Key: "from", Value: Scalar("0")},
	})
	require.NoError(t, err)
	assert.Equal(t, "from=0", result)
}

func TestValue_ItemsIsCopy(t *testing.T) {
	t.Parallel()

	src := []string{"a", "b"}
	v := List(src...)
	src[0] = "changed"

	items := v.Items()
	items[1] = "changed"

	assert.Equal(t, []string{"a", "b"}, v.Items())
	assert.True(t, v.IsList())
	assert.False(t, Scalar("x").IsList())
	assert.Equal(t, "x", Scalar("x").String())
}

func TestSelectKeys(t *testing.T) {
	t.Parallel()

	filters := []Filter{
		Equal{Key: "page_size", Value: Scalar("25")},
		Equal{Key: "Hosts/host_status", Value: Scalar("HEALTHY")},
		Param{Filter: Equal{Key: "from", Value: Scalar("50")}},
	}

	selected := SelectKeys(filters, "page_size", "from")
	require.Len(t, selected, 2)
	assert.Equal(t, "page_size", selected[0].Field())
	assert.Equal(t, "from", selected[1].Field())
}

func TestIsComponentRelated(t *testing.T) {
	t.Parallel()

	assert.False(t, IsComponentRelated([]Filter{Equal{Key: "a", Value: Scalar("b")}}))
	assert.True(t, IsComponentRelated([]Filter{
		Equal{Key: "a", Value: Scalar("b")},
		Param{Filter: Equal{Key: "host_components/HostRoles/state", Value: Scalar("STARTED")}, ComponentRelated: true},
	}))
}
