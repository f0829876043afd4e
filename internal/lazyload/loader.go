// Package lazyload splits a host table refresh into a cheap primary request
// and a deferred metrics request.
package lazyload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/tqrg-bot/ambari-sync/internal/httpclient"
	"github.com/tqrg-bot/ambari-sync/internal/query"
	"github.com/tqrg-bot/ambari-sync/internal/store"
)

// MetricsPath requests only the metric fields of hosts
const MetricsPath = "/hosts?fields=metrics/disk/disk_free,metrics/disk/disk_total,metrics/load/load_one&minimal_response=true"

// Sort keys whose values come from metric fields. Sorting on them needs the
// metrics in the primary payload.
const (
	SortLoadAvg   = "loadAvg"
	SortDiskUsage = "diskUsage"
)

var inlineSortKeys = []string{SortLoadAvg, SortDiskUsage}

// Primary fetches the primary payload. inlineMetrics reports whether the
// metric fields must be part of it.
type Primary func(ctx context.Context, inlineMetrics bool) error

// Defer reports whether metrics should be loaded separately: only when lazy
// loading is requested and the first sort key is not a metric.
func Defer(lazy bool, sorts []query.Sort) bool {
	if !lazy {
		return false
	}
	return len(sorts) == 0 || !slices.Contains(inlineSortKeys, sorts[0].Key)
}

// Loader runs the primary and secondary phases
type Loader struct {
	client       httpclient.Client
	urls         *query.URLBuilder
	store        *store.Store
	precondition func() bool
}

// New creates a Loader. precondition gates the secondary request; nil means always allowed.
func New(client httpclient.Client, urls *query.URLBuilder, st *store.Store, precondition func() bool) *Loader {
	return &Loader{
		client:       client,
		urls:         urls,
		store:        st,
		precondition: precondition,
	}
}

// Load runs the primary phase with metrics inline unless they are deferred,
// then the secondary phase when they are. The secondary phase runs even when
// the primary one failed; both errors are returned joined.
func (l *Loader) Load(ctx context.Context, lazy bool, sorts []query.Sort, filters []query.Filter, primary Primary) error {
	deferred := Defer(lazy, sorts)

	primaryErr := l.LoadPrimary(ctx, primary, !deferred)
	if !deferred {
		return primaryErr
	}
	return errors.Join(primaryErr, l.LoadSecondary(ctx, filters))
}

// LoadPrimary runs the primary fetch
func (l *Loader) LoadPrimary(ctx context.Context, primary Primary, inlineMetrics bool) error {
	return primary(ctx, inlineMetrics)
}

// LoadSecondary fetches host metrics for the hosts selected by filters.
// It succeeds without a request when the precondition does not hold.
func (l *Loader) LoadSecondary(ctx context.Context, filters []query.Filter) error {
	if l.precondition != nil && !l.precondition() {
		slog.Debug("Skipping host metrics, metrics service not started")
		return nil
	}

	url, err := l.urls.Append(l.urls.Cluster(MetricsPath), query.Pagination(filters))
	if err != nil {
		return fmt.Errorf("failed to build host metrics url: %w", err)
	}
	params, err := l.urls.Compiler().Compile(filters)
	if err != nil {
		return fmt.Errorf("failed to compile host metrics parameters: %w", err)
	}

	return l.client.Get(ctx, url, func(body []byte) error {
		return l.store.Apply(store.HostsMetrics, body)
	}, httpclient.Options{Params: params})
}
