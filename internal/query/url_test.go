package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLBuilder_Complex(t *testing.T) {
	t.Parallel()

	b := NewURLBuilder("/api/v1/", "c1", nil)

	tests := []struct {
		name     string
		template string
		filters  []Filter
		expected string
	}{
		{
			name:     "filters get a trailing separator",
			template: "/hosts?<parameters>minimal_response=true",
			filters: []Filter{
				Param{Filter: Equal{Key: "host_components/HostRoles/component_name", Value: Scalar("DATANODE")}, ComponentRelated: true},
			},
			expected: "/api/v1/clusters/c1/hosts?host_components/HostRoles/component_name=DATANODE&minimal_response=true",
		},
		{
			name:     "no filters leave no separator",
			template: "/hosts?<parameters>minimal_response=true",
			expected: "/api/v1/clusters/c1/hosts?minimal_response=true",
		},
		{
			name:     "template without placeholder",
			template: "/alerts?format=groupedSummary",
			filters:  []Filter{Equal{Key: "a", Value: Scalar("b")}},
			expected: "/api/v1/clusters/c1/alerts?format=groupedSummary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			url, err := b.Complex(tt.template, tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, url)
		})
	}
}

func TestURLBuilder_ComplexError(t *testing.T) {
	t.Parallel()

	b := NewURLBuilder("/api/v1", "c1", nil)
	_, err := b.Complex("/hosts?<parameters>", []Filter{Multiple{Key: HostNameKey}})
	assert.ErrorIs(t, err, ErrEmptyList)
}

func TestURLBuilder_Paths(t *testing.T) {
	t.Parallel()

	b := NewURLBuilder("/api/v1", "c1", nil)

	assert.Equal(t, "/api/v1/clusters/c1", b.Prefix())
	assert.Equal(t, "/api/v1/clusters/c1/services?fields=*", b.Cluster("/services?fields=*"))
	assert.Equal(t, "/api/v1/alert_targets?fields=*", b.API("/alert_targets?fields=*"))
	assert.NotNil(t, b.Compiler())
}

func TestURLBuilder_Append(t *testing.T) {
	t.Parallel()

	b := NewURLBuilder("/api/v1", "c1", nil)

	url, err := b.Append("/hosts?fields=a", []Filter{
		Equal{Key: "page_size", Value: Scalar("10")},
		Equal{Key: "from", Value: Scalar("0")},
	})
	require.NoError(t, err)
	assert.Equal(t, "/hosts?fields=a&page_size=10&from=0", url)

	url, err = b.Append("/hosts?fields=a", nil)
	require.NoError(t, err)
	assert.Equal(t, "/hosts?fields=a", url)
}
