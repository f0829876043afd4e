package coordinator

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/tqrg-bot/ambari-sync/internal/config"
	"github.com/tqrg-bot/ambari-sync/internal/httpclient"
	"github.com/tqrg-bot/ambari-sync/internal/lazyload"
	"github.com/tqrg-bot/ambari-sync/internal/navigation"
	"github.com/tqrg-bot/ambari-sync/internal/query"
	"github.com/tqrg-bot/ambari-sync/internal/store"
	pkgsync "github.com/tqrg-bot/ambari-sync/internal/sync"
)

const (
	hostsPathTemplate = "/hosts?fields=Hosts/rack_info,Hosts/host_name,Hosts/maintenance_state,Hosts/public_host_name," +
		"Hosts/cpu_count,Hosts/ph_cpu_count,Hosts/last_agent_env,alerts_summary,Hosts/host_status,Hosts/host_state," +
		"Hosts/last_heartbeat_time,Hosts/ip,host_components/HostRoles/state,host_components/HostRoles/maintenance_state," +
		"host_components/HostRoles/stale_configs,host_components/HostRoles/service_name,host_components/HostRoles/display_name," +
		"host_components/HostRoles/desired_admin_state,<metrics>Hosts/total_mem<hostDetailsParams><stackVersions>&minimal_response=true"

	inlineMetricsFields = "metrics/disk,metrics/load/load_one,"

	hostDetailsFields = ",Hosts/os_arch,Hosts/os_type,metrics/cpu/cpu_system,metrics/cpu/cpu_user," +
		"metrics/memory/mem_total,metrics/memory/mem_free"

	stackVersionFields = ",stack_versions/HostStackVersions," +
		"stack_versions/repository_versions/RepositoryVersions/repository_version," +
		"stack_versions/repository_versions/RepositoryVersions/id," +
		"stack_versions/repository_versions/RepositoryVersions/display_name"

	loggingResource = ",host_components/logging"

	hostsPreloadTemplate = "/hosts?" + query.ParametersPlaceholder + "minimal_response=true"
)

// defaultHostFilters returns the first page of the hosts table, or nothing
// when paging is disabled
func (c *defaultCoordinator) defaultHostFilters() []query.Filter {
	size := 0
	if c.config.Hosts != nil {
		size = c.config.Hosts.PageSize
	}
	if size <= 0 {
		return nil
	}
	return []query.Filter{
		query.Equal{Key: "page_size", Value: query.Scalar(strconv.Itoa(size))},
		query.Equal{Key: "from", Value: query.Scalar("0")},
	}
}

// hostFilters returns the filters of the current view. The host details view
// selects the focused host only.
func hostFilters(nav navigation.Context, q HostQuery) []query.Filter {
	if nav.View == navigation.ViewHostDetails {
		return []query.Filter{query.Param{Filter: query.HostNames(nav.FocusedHost), HostDetails: true}}
	}
	return q.Filters
}

func sortFilters(sorts []query.Sort) []query.Filter {
	filters := make([]query.Filter, len(sorts))
	for i, s := range sorts {
		filters[i] = s
	}
	return filters
}

// updateHost refreshes the hosts table. The hosts list polls at the content
// interval, host details at the components interval; other views load the
// hosts once.
func (c *defaultCoordinator) updateHost(ctx context.Context) (result, error) {
	nav := c.nav.Current()
	q := c.HostQuery()
	filters := hostFilters(nav, q)
	detailsFields := hostDetailsFields

	switch nav.View {
	case navigation.ViewHostsList:
		c.retime(TaskUpdateHost, c.config.Intervals.GetContent())
		detailsFields = ""
	case navigation.ViewHostDetails:
		c.retime(TaskUpdateHost, c.config.Intervals.GetComponents())
	default:
		if c.store.Loaded(store.Hosts) {
			return skipped(pkgsync.ReasonUpToDate), nil
		}
	}

	itemTotal := ""
	if query.IsComponentRelated(filters) {
		names, total, err := c.preloadHosts(ctx, filters)
		if err != nil {
			return result{}, err
		}
		if len(names) == 0 {
			if err := c.store.Apply(store.Hosts, []byte(`{"items":[],"itemTotal":"0"}`)); err != nil {
				return result{}, pkgsync.NewError(TaskUpdateHost, pkgsync.ReasonMapFailed, err)
			}
			return skipped(pkgsync.ReasonNoMatches), nil
		}
		// the pre-load already paged through the matching hosts
		filters = []query.Filter{query.HostNames(names...)}
		itemTotal = total
	}

	hosts := c.hostsConfig()
	var res result
	primary := func(ctx context.Context, inlineMetrics bool) error {
		url, params, err := c.hostsRequest(filters, q.Sort, detailsFields, inlineMetrics)
		if err != nil {
			return err
		}
		res, err = c.fetch(ctx, url, store.Hosts, httpclient.Options{
			Params:    params,
			BeforeMap: annotateItemTotal(itemTotal),
		})
		return err
	}

	deferred := lazyload.Defer(hosts.LazyLoadMetrics, q.Sort)
	err := c.loader.LoadPrimary(ctx, primary, !deferred)
	if deferred {
		// the metrics phase runs even when the primary fetch failed
		res.after = func(ctx context.Context) {
			if err := c.loader.LoadSecondary(ctx, filters); err != nil {
				slog.Warn("Failed to load deferred host metrics", "task", TaskUpdateHost, "error", err)
			}
		}
	}
	return res, err
}

// hostsRequest renders the hosts URL and the GET-as-POST parameters
func (c *defaultCoordinator) hostsRequest(
	filters []query.Filter,
	sorts []query.Sort,
	detailsFields string,
	inlineMetrics bool,
) (url, params string, err error) {
	metrics := ""
	if inlineMetrics {
		metrics = inlineMetricsFields
	}
	path := strings.NewReplacer(
		"<metrics>", metrics,
		"<hostDetailsParams>", detailsFields,
		"<stackVersions>", stackVersionFields,
	).Replace(hostsPathTemplate)
	if c.hostsConfig().LogSearch {
		path += loggingResource
	}

	url, err = c.urls.Append(c.urls.Cluster(path), query.Pagination(filters))
	if err == nil {
		url, err = c.urls.Append(url, sortFilters(sorts))
	}
	if err == nil {
		params, err = c.urls.Compiler().Compile(filters)
	}
	if err != nil {
		return "", "", pkgsync.NewError(TaskUpdateHost, pkgsync.ReasonCompileFailed, err)
	}
	return url, params, nil
}

// preloadHosts resolves the names of the hosts matching component filters.
// total is the itemTotal of the response, empty when absent.
func (c *defaultCoordinator) preloadHosts(ctx context.Context, filters []query.Filter) (names []string, total string, err error) {
	url, err := c.urls.Complex(hostsPreloadTemplate, filters)
	if err != nil {
		return nil, "", pkgsync.NewError(TaskUpdateHost, pkgsync.ReasonCompileFailed, err)
	}

	err = c.client.Get(ctx, url, func(body []byte) error {
		gjson.GetBytes(body, "items.#.Hosts.host_name").ForEach(func(_, v gjson.Result) bool {
			names = append(names, v.String())
			return true
		})
		if t := gjson.GetBytes(body, "itemTotal"); t.Exists() {
			if _, convErr := strconv.Atoi(t.String()); convErr == nil {
				total = t.String()
			}
		}
		return nil
	}, httpclient.Options{})
	return names, total, err
}

// annotateItemTotal sets itemTotal on the response when the pre-load counted the hosts
func annotateItemTotal(total string) func([]byte) ([]byte, error) {
	return func(body []byte) ([]byte, error) {
		if total == "" {
			return body, nil
		}
		return sjson.SetBytes(body, "itemTotal", total)
	}
}

// updateHostsMetrics loads the host metrics of the current view
func (c *defaultCoordinator) updateHostsMetrics(ctx context.Context) (result, error) {
	if !c.metricsServiceStarted() {
		return skipped(pkgsync.ReasonPreconditionNotMet), nil
	}
	filters := hostFilters(c.nav.Current(), c.HostQuery())
	if err := c.loader.LoadSecondary(ctx, filters); err != nil {
		return result{}, err
	}
	ds, _ := c.store.Get(store.HostsMetrics)
	return result{items: ds.Items()}, nil
}

func (c *defaultCoordinator) hostsConfig() config.HostsConfig {
	if c.config.Hosts == nil {
		return config.HostsConfig{}
	}
	return *c.config.Hosts
}

func (c *defaultCoordinator) retime(name string, interval time.Duration) {
	if err := c.scheduler.UpdateInterval(name, interval); err != nil {
		slog.Warn("Failed to update task interval", "task", name, "error", err)
	}
}
