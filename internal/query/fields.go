package query

import (
	"maps"
	"slices"
	"strings"

	"github.com/tqrg-bot/ambari-sync/internal/versions"
)

// serviceComponentMetrics are requested for every cluster
var serviceComponentMetrics = []string{
	"host_components/metrics/jvm/memHeapUsedM",
	"host_components/metrics/jvm/HeapMemoryMax",
	"host_components/metrics/jvm/HeapMemoryUsed",
	"host_components/metrics/jvm/memHeapCommittedM",
	"host_components/metrics/mapred/jobtracker/trackers_decommissioned",
	"host_components/metrics/cpu/cpu_wio",
	"host_components/metrics/rpc/client/RpcQueueTime_avg_time",
	"host_components/metrics/dfs/FSNamesystem/*",
	"host_components/metrics/dfs/namenode/Version",
	"host_components/metrics/dfs/namenode/LiveNodes",
	"host_components/metrics/dfs/namenode/DeadNodes",
	"host_components/metrics/dfs/namenode/DecomNodes",
	"host_components/metrics/dfs/namenode/TotalFiles",
	"host_components/metrics/dfs/namenode/UpgradeFinalized",
	"host_components/metrics/dfs/namenode/Safemode",
	"host_components/metrics/runtime/StartTime",
}

// serviceSpecificParams are requested only when the service is installed
var serviceSpecificParams = map[string]string{
	"FLUME": "host_components/processes/HostComponentProcess",
	"YARN": "host_components/metrics/yarn/Queue," +
		"host_components/metrics/yarn/ClusterMetrics/NumActiveNMs," +
		"host_components/metrics/yarn/ClusterMetrics/NumLostNMs," +
		"host_components/metrics/yarn/ClusterMetrics/NumUnhealthyNMs," +
		"host_components/metrics/yarn/ClusterMetrics/NumRebootedNMs," +
		"host_components/metrics/yarn/ClusterMetrics/NumDecommissionedNMs",
	"HBASE": "host_components/metrics/hbase/master/IsActiveMaster," +
		"host_components/metrics/hbase/master/MasterStartTime," +
		"host_components/metrics/hbase/master/MasterActiveTime," +
		"host_components/metrics/hbase/master/AverageLoad," +
		"host_components/metrics/master/AssignmentManger/ritCount",
	"STORM": "metrics/api/v1/cluster/summary,metrics/api/v1/topology/summary,metrics/api/v1/nimbus/summary",
}

const metricsKey = "metrics/"

// FieldContext is the cluster state the service metrics field list depends on
type FieldContext struct {
	// Services lists the installed service names in display order
	Services []string
	// StackVersion is the current stack version number, e.g. "2.6"
	StackVersion string
	// ServiceMetricsLoaded is false until the first service metrics response was applied
	ServiceMetricsLoaded bool
}

// ConditionalFields returns the optional fields of the service metrics request.
// Metric fields are left out until service metrics have been loaded once, to keep
// the first request light.
func ConditionalFields(fc FieldContext) []string {
	fields := slices.Clone(serviceComponentMetrics)
	params := maps.Clone(serviceSpecificParams)

	switch {
	case versions.InStackLine(fc.StackVersion, 2, 1):
		params["STORM"] = "metrics/api/cluster/summary"
	case versions.InStackLine(fc.StackVersion, 2, 2):
		params["STORM"] = "metrics/api/v1/cluster/summary,metrics/api/v1/topology/summary"
	}

	for _, service := range fc.Services {
		if p, ok := params[service]; ok {
			fields = append(fields, p)
		}
	}

	if !fc.ServiceMetricsLoaded {
		return slices.DeleteFunc(fields, func(f string) bool {
			return strings.Contains(f, metricsKey)
		})
	}
	return fields
}
