package coordinator

import (
	"context"
	"slices"
	"strings"

	"github.com/tqrg-bot/ambari-sync/internal/httpclient"
	"github.com/tqrg-bot/ambari-sync/internal/query"
	"github.com/tqrg-bot/ambari-sync/internal/store"
)

var masterComponentFields = []string{
	"ServiceComponentInfo/service_name",
	"host_components/HostRoles/display_name",
	"host_components/HostRoles/host_name",
	"host_components/HostRoles/public_host_name",
	"host_components/HostRoles/state",
	"host_components/HostRoles/maintenance_state",
	"host_components/HostRoles/stale_configs",
	"host_components/HostRoles/ha_state",
	"host_components/HostRoles/desired_admin_state",
}

// serviceMetricPath renders the master components request. Flume handlers,
// the timeline server and the HA components are requested next to the
// masters when they are installed.
func (c *defaultCoordinator) serviceMetricPath() string {
	services := c.installedServices()

	var selector strings.Builder
	if slices.Contains(services, "FLUME") {
		selector.WriteString("ServiceComponentInfo/component_name=FLUME_HANDLER|")
	}
	if slices.Contains(services, "YARN") && c.hasComponent("APP_TIMELINE_SERVER") {
		selector.WriteString("ServiceComponentInfo/component_name=APP_TIMELINE_SERVER|")
	}
	if c.haEnabled() {
		selector.WriteString("ServiceComponentInfo/component_name=JOURNALNODE|ServiceComponentInfo/component_name=ZKFC|")
	}

	fields := append(slices.Clone(masterComponentFields), query.ConditionalFields(query.FieldContext{
		Services:             services,
		StackVersion:         c.config.Server.StackVersion,
		ServiceMetricsLoaded: c.store.Loaded(store.ServiceMetrics),
	})...)

	return "/components/?" + selector.String() + "ServiceComponentInfo/category=MASTER&fields=" +
		strings.Join(fields, ",") + "&minimal_response=true"
}

func (c *defaultCoordinator) updateServiceMetric(ctx context.Context) (result, error) {
	return c.fetch(ctx, c.urls.Cluster(c.serviceMetricPath()), store.ServiceMetrics, httpclient.Options{})
}
