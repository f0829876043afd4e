package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionalFields(t *testing.T) {
	t.Parallel()

	const (
		storm21 = "metrics/api/cluster/summary"
		storm22 = "metrics/api/v1/cluster/summary,metrics/api/v1/topology/summary"
		stormV1 = "metrics/api/v1/cluster/summary,metrics/api/v1/topology/summary,metrics/api/v1/nimbus/summary"
		flume   = "host_components/processes/HostComponentProcess"
	)

	tests := []struct {
		name     string
		ctx      FieldContext
		contains []string
		excludes []string
		length   int
	}{
		{
			name: "first load keeps only non-metric fields",
			ctx: FieldContext{
				Services: []string{"FLUME", "YARN", "HBASE", "STORM"},
			},
			contains: []string{flume},
			length:   1,
		},
		{
			name: "loaded metrics include common and service fields",
			ctx: FieldContext{
				Services:             []string{"HDFS", "FLUME", "STORM"},
				StackVersion:         "2.6",
				ServiceMetricsLoaded: true,
			},
			contains: []string{"host_components/metrics/jvm/memHeapUsedM", flume, stormV1},
			length:   len(serviceComponentMetrics) + 2,
		},
		{
			name: "stack 2.1 overrides storm fields",
			ctx: FieldContext{
				Services:             []string{"STORM"},
				StackVersion:         "2.1",
				ServiceMetricsLoaded: true,
			},
			contains: []string{storm21},
			excludes: []string{stormV1},
		},
		{
			name: "stack 2.2.x overrides storm fields",
			ctx: FieldContext{
				Services:             []string{"STORM"},
				StackVersion:         "2.2.4",
				ServiceMetricsLoaded: true,
			},
			contains: []string{storm22},
			excludes: []string{stormV1},
		},
		{
			name: "services without specific params add nothing",
			ctx: FieldContext{
				Services:             []string{"HDFS", "ZOOKEEPER"},
				ServiceMetricsLoaded: true,
			},
			length: len(serviceComponentMetrics),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fields := ConditionalFields(tt.ctx)
			for _, c := range tt.contains {
				assert.Contains(t, fields, c)
			}
			for _, e := range tt.excludes {
				assert.NotContains(t, fields, e)
			}
			if tt.length > 0 {
				assert.Len(t, fields, tt.length)
			}
			if !tt.ctx.ServiceMetricsLoaded {
				for _, f := range fields {
					assert.False(t, strings.Contains(f, "metrics/"), f)
				}
			}
		})
	}
}

func TestConditionalFields_DoesNotMutateDefaults(t *testing.T) {
	t.Parallel()

	before := len(serviceComponentMetrics)
	_ = ConditionalFields(FieldContext{Services: []string{"STORM"}, StackVersion: "2.1"})
	_ = ConditionalFields(FieldContext{Services: []string{"YARN"}, ServiceMetricsLoaded: true})

	assert.Len(t, serviceComponentMetrics, before)
	assert.Contains(t, serviceSpecificParams["STORM"], "nimbus")
}
