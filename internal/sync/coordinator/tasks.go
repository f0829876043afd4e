package coordinator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tqrg-bot/ambari-sync/internal/httpclient"
	"github.com/tqrg-bot/ambari-sync/internal/query"
	"github.com/tqrg-bot/ambari-sync/internal/store"
	pkgsync "github.com/tqrg-bot/ambari-sync/internal/sync"
)

// Task names
const (
	TaskUpdateHost                    = "updateHost"
	TaskUpdateHostsMetrics            = "updateHostsMetrics"
	TaskUpdateServiceMetric           = "updateServiceMetric"
	TaskUpdateComponentsState         = "updateComponentsState"
	TaskGraphsUpdate                  = "graphsUpdate"
	TaskUpdateComponentConfig         = "updateComponentConfig"
	TaskUpdateAlertGroups             = "updateAlertGroups"
	TaskUpdateUnhealthyAlertInstances = "updateUnhealthyAlertInstances"
	TaskUpdateUpgradeState            = "updateUpgradeState"
	TaskUpdateWizardWatcher           = "updateWizardWatcher"
	TaskUpdateServices                = "updateServices"
	TaskUpdateAlertDefinitions        = "updateAlertDefinitions"
	TaskUpdateAlertDefinitionSummary  = "updateAlertDefinitionSummary"
	TaskUpdateAlertNotifications      = "updateAlertNotifications"
	TaskUpdateClusterEnv              = "updateClusterEnv"
)

// UI flags consulted by task gates
const (
	// FlagAlertInstancesUpdating is set while the alerts page loads instances itself
	FlagAlertInstancesUpdating = "alertInstancesUpdating"
	// FlagUpgradeInProgress is set while a stack upgrade wizard is unfinished
	FlagUpgradeInProgress = "upgradeInProgress"
)

// Flags lists the flags accepted by SetFlag
var Flags = []string{FlagAlertInstancesUpdating, FlagUpgradeInProgress}

// Route patterns of route-sensitive tasks
const (
	hostsRoutePattern      = `/main/(hosts).*`
	servicesRoutePattern   = `/main/(dashboard|services).*`
	componentsRoutePattern = `/main/(dashboard|services|hosts).*`
	alertsRoutePattern     = `/main/alerts.*`
)

// Pages that load the upgrade state on their own
const (
	stackVersionsRoute = "/main/admin/stack/versions"
	stackUpgradeRoute  = "/main/admin/stack/upgrade"
)

const (
	servicesPath = "/services?fields=ServiceInfo/state,ServiceInfo/maintenance_state," +
		"ServiceInfo/desired_repository_version_id,components/ServiceComponentInfo/component_name&minimal_response=true"

	componentConfigPath = "/components?host_components/HostRoles/stale_configs=true&fields=" +
		"host_components/HostRoles/display_name,host_components/HostRoles/service_name," +
		"host_components/HostRoles/state,host_components/HostRoles/maintenance_state," +
		"host_components/HostRoles/host_name,host_components/HostRoles/public_host_name," +
		"host_components/HostRoles/stale_configs,host_components/HostRoles/desired_admin_state&minimal_response=true"

	componentsStatePath = "/components/?fields=ServiceComponentInfo/service_name," +
		"ServiceComponentInfo/category,ServiceComponentInfo/installed_count,ServiceComponentInfo/started_count," +
		"ServiceComponentInfo/init_count,ServiceComponentInfo/install_failed_count,ServiceComponentInfo/unknown_count," +
		"ServiceComponentInfo/total_count,ServiceComponentInfo/display_name,host_components/HostRoles/host_name&minimal_response=true"

	alertDefinitionsPath = "/alert_definitions?fields=" +
		"AlertDefinition/component_name,AlertDefinition/description,AlertDefinition/enabled," +
		"AlertDefinition/repeat_tolerance,AlertDefinition/repeat_tolerance_enabled," +
		"AlertDefinition/id,AlertDefinition/ignore_host,AlertDefinition/interval,AlertDefinition/label," +
		"AlertDefinition/name,AlertDefinition/scope,AlertDefinition/service_name,AlertDefinition/source,AlertDefinition/help_url"

	alertInstancesPath = "/alerts?fields=" +
		"Alert/component_name,Alert/definition_id,Alert/definition_name,Alert/host_name,Alert/id,Alert/instance," +
		"Alert/label,Alert/latest_timestamp,Alert/maintenance_state,Alert/original_timestamp,Alert/scope," +
		"Alert/service_name,Alert/state,Alert/text,Alert/repeat_tolerance,Alert/repeat_tolerance_remaining"

	alertSummaryPath = "/alerts?format=groupedSummary"

	alertGroupsPath = "/alert_groups?fields=" +
		"AlertGroup/default,AlertGroup/definitions,AlertGroup/id,AlertGroup/name,AlertGroup/targets"

	alertTargetsPath = "/alert_targets?fields=*"

	upgradesPath = "/upgrades?fields=Upgrade&minimal_response=true"

	wizardDataPath = "/persist/wizard-data"

	clusterEnvSite     = "cluster-env"
	clusterEnvTagsPath = "?fields=Clusters/desired_configs/" + clusterEnvSite
)

// taskDef describes one update task
type taskDef struct {
	name         string
	interval     time.Duration
	routePattern string
	gate         func() bool
	run          func(ctx context.Context) (result, error)
}

// result is the outcome of a successful run.
// after, when set, runs once the task's guard is released.
type result struct {
	items   int
	skipped string
	after   func(ctx context.Context)
}

func skipped(reason string) result {
	return result{skipped: reason}
}

// taskDefs returns the task table in registration order
func (c *defaultCoordinator) taskDefs() []taskDef {
	iv := c.config.Intervals

	return []taskDef{
		{name: TaskUpdateHost, interval: iv.GetContent(), run: c.updateHost},
		{name: TaskUpdateHostsMetrics, interval: iv.GetContent(), routePattern: hostsRoutePattern, run: c.updateHostsMetrics},
		{name: TaskUpdateServiceMetric, interval: iv.GetComponents(), routePattern: servicesRoutePattern, run: c.updateServiceMetric},
		{name: TaskUpdateComponentsState, interval: iv.GetComponents(), routePattern: componentsRoutePattern,
			run: c.fetchTo(store.ComponentsState, componentsStatePath)},
		{name: TaskGraphsUpdate, interval: iv.GetContent(), run: c.graphsUpdate},
		{name: TaskUpdateComponentConfig, interval: iv.GetContent(), run: c.fetchTo(store.ComponentConfigs, componentConfigPath)},
		{name: TaskUpdateAlertGroups, interval: iv.GetAlertGroups(), routePattern: alertsRoutePattern,
			run: c.fetchTo(store.AlertGroups, alertGroupsPath)},
		{name: TaskUpdateUnhealthyAlertInstances, interval: iv.GetAlertInstances(), routePattern: alertsRoutePattern,
			gate: func() bool { return !c.flag(FlagAlertInstancesUpdating) }, run: c.updateUnhealthyAlertInstances},
		{name: TaskUpdateUpgradeState, interval: iv.GetBgOperations(), run: c.updateUpgradeState},
		{name: TaskUpdateWizardWatcher, interval: iv.GetBgOperations(), run: c.updateWizardWatcher},

		// run once per activation, or on Refresh
		{name: TaskUpdateServices, run: c.fetchTo(store.Services, servicesPath)},
		{name: TaskUpdateAlertDefinitions, run: c.fetchTo(store.AlertDefinitions, alertDefinitionsPath)},
		{name: TaskUpdateAlertDefinitionSummary, run: c.fetchTo(store.AlertSummary, alertSummaryPath)},
		{name: TaskUpdateAlertNotifications, run: c.updateAlertNotifications},
		{name: TaskUpdateClusterEnv, run: c.updateClusterEnv},
	}
}

// fetch gets url and applies the body to dataset
func (c *defaultCoordinator) fetch(ctx context.Context, url, dataset string, opts httpclient.Options) (result, error) {
	var res result
	err := c.client.Get(ctx, url, func(body []byte) error {
		if err := c.store.Apply(dataset, body); err != nil {
			return pkgsync.NewError(dataset, pkgsync.ReasonMapFailed, err)
		}
		if ds, ok := c.store.Get(dataset); ok {
			res.items = ds.Items()
		}
		return nil
	}, opts)
	return res, err
}

// fetchTo returns a run that fetches a cluster-scoped path into dataset
func (c *defaultCoordinator) fetchTo(dataset, path string) func(ctx context.Context) (result, error) {
	return func(ctx context.Context) (result, error) {
		return c.fetch(ctx, c.urls.Cluster(path), dataset, httpclient.Options{})
	}
}

func (c *defaultCoordinator) updateAlertNotifications(ctx context.Context) (result, error) {
	return c.fetch(ctx, c.urls.API(alertTargetsPath), store.AlertNotifications, httpclient.Options{})
}

func (c *defaultCoordinator) updateWizardWatcher(ctx context.Context) (result, error) {
	return c.fetch(ctx, c.urls.API(wizardDataPath), store.WizardData, httpclient.Options{})
}

// updateUnhealthyAlertInstances loads the first page of critical and warning alerts
// that are not in maintenance
func (c *defaultCoordinator) updateUnhealthyAlertInstances(ctx context.Context) (result, error) {
	url, err := c.urls.Append(c.urls.Cluster(alertInstancesPath), []query.Filter{
		query.Multiple{Key: "Alert/state", Values: []string{"CRITICAL", "WARNING"}},
		query.Multiple{Key: "Alert/maintenance_state", Values: []string{"OFF"}},
		query.Equal{Key: "from", Value: query.Scalar("0")},
		query.Equal{Key: "page_size", Value: query.Scalar(strconv.Itoa(c.config.Hosts.GetAlertsPageSize()))},
	})
	if err != nil {
		return result{}, pkgsync.NewError(TaskUpdateUnhealthyAlertInstances, pkgsync.ReasonCompileFailed, err)
	}
	return c.fetch(ctx, url, store.AlertInstances, httpclient.Options{})
}

// updateUpgradeState polls the upgrade while an upgrade wizard is unfinished,
// except on the pages that poll it themselves
func (c *defaultCoordinator) updateUpgradeState(ctx context.Context) (result, error) {
	route := c.nav.Current().Route
	if strings.HasPrefix(route, stackVersionsRoute) || strings.HasPrefix(route, stackUpgradeRoute) {
		return skipped(pkgsync.ReasonUpToDate), nil
	}
	if !c.flag(FlagUpgradeInProgress) {
		return skipped(pkgsync.ReasonUpToDate), nil
	}
	return c.fetch(ctx, c.urls.Cluster(upgradesPath), store.UpgradeState, httpclient.Options{})
}

// updateClusterEnv looks up the desired cluster-env tag and loads that configuration
func (c *defaultCoordinator) updateClusterEnv(ctx context.Context) (result, error) {
	var tag string
	err := c.client.Get(ctx, c.urls.Prefix()+clusterEnvTagsPath, func(body []byte) error {
		tag = gjson.GetBytes(body, "Clusters.desired_configs."+clusterEnvSite+".tag").String()
		if tag == "" {
			return pkgsync.NewError(TaskUpdateClusterEnv, pkgsync.ReasonMapFailed,
				errMissingField("Clusters.desired_configs."+clusterEnvSite+".tag"))
		}
		return nil
	}, httpclient.Options{})
	if err != nil {
		return result{}, err
	}

	return c.fetch(ctx, c.urls.Cluster("/configurations?(type="+clusterEnvSite+"&tag="+tag+")"),
		store.ClusterEnv, httpclient.Options{})
}

// UpdateLogging fetches the logging resources of the components on host.
// fields are extra fields requested next to logging.
func (c *defaultCoordinator) UpdateLogging(ctx context.Context, host string, fields []string) error {
	extra := ""
	if len(fields) > 0 {
		extra = "," + strings.Join(fields, ",")
	}
	url := c.urls.Cluster("/hosts/" + host + "/host_components?fields=logging" + extra + "&minimal_response=true")
	_, err := c.fetch(ctx, url, store.HostLogging, httpclient.Options{})
	return err
}
