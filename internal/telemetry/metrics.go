// Package telemetry provides OpenTelemetry instrumentation for the update engine.
package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SchedulerMetricsMeterName is the name used for the task scheduler meter
	SchedulerMetricsMeterName = "github.com/tqrg-bot/ambari-sync/updater"

	// TransportMetricsMeterName is the name used for the REST transport meter
	TransportMetricsMeterName = "github.com/tqrg-bot/ambari-sync/httpclient"

	// PushMetricsMeterName is the name used for the push channel meter
	PushMetricsMeterName = "github.com/tqrg-bot/ambari-sync/push"
)

// SchedulerMetrics holds the OpenTelemetry instruments for task scheduling
type SchedulerMetrics struct {
	taskDuration metric.Float64Histogram
	skippedTicks metric.Int64Counter
	armedTasks   metric.Int64Gauge
}

// NewSchedulerMetrics creates a new SchedulerMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSchedulerMetrics(provider metric.MeterProvider) (*SchedulerMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SchedulerMetricsMeterName)

	taskDuration, err := meter.Float64Histogram(
		"ambari_sync_task_duration_seconds",
		metric.WithDescription("Duration of update task runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	skippedTicks, err := meter.Int64Counter(
		"ambari_sync_task_skipped_ticks_total",
		metric.WithDescription("Number of timer ticks that did not run the task"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	armedTasks, err := meter.Int64Gauge(
		"ambari_sync_armed_tasks",
		metric.WithDescription("Number of tasks with an armed timer"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerMetrics{
		taskDuration: taskDuration,
		skippedTicks: skippedTicks,
		armedTasks:   armedTasks,
	}, nil
}

// RecordTaskDuration records the duration of one task run
func (m *SchedulerMetrics) RecordTaskDuration(ctx context.Context, task string, duration time.Duration) {
	if m == nil || m.taskDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("task", task),
	}

	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSkippedTick records a tick that did not run the task
func (m *SchedulerMetrics) RecordSkippedTick(ctx context.Context, task, reason string) {
	if m == nil || m.skippedTicks == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("task", task),
		attribute.String("reason", reason),
	}

	m.skippedTicks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordArmedTasks records the current number of armed tasks
func (m *SchedulerMetrics) RecordArmedTasks(ctx context.Context, count int64) {
	if m == nil || m.armedTasks == nil {
		return
	}

	m.armedTasks.Record(ctx, count)
}

// TransportMetrics holds the OpenTelemetry instruments for REST requests
type TransportMetrics struct {
	requestDuration metric.Float64Histogram
}

// NewTransportMetrics creates a new TransportMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewTransportMetrics(provider metric.MeterProvider) (*TransportMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(TransportMetricsMeterName)

	requestDuration, err := meter.Float64Histogram(
		"ambari_sync_request_duration_seconds",
		metric.WithDescription("Duration of requests to the cluster REST API in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return &TransportMetrics{
		requestDuration: requestDuration,
	}, nil
}

// RecordRequest records one REST request. statusCode is 0 when no response was received.
func (m *TransportMetrics) RecordRequest(ctx context.Context, method string, statusCode int, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("status_code", strconv.Itoa(statusCode)),
	}

	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// PushMetrics holds the OpenTelemetry instruments for push channels
type PushMetrics struct {
	messages   metric.Int64Counter
	reconnects metric.Int64Counter
}

// NewPushMetrics creates a new PushMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewPushMetrics(provider metric.MeterProvider) (*PushMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(PushMetricsMeterName)

	messages, err := meter.Int64Counter(
		"ambari_sync_push_messages_total",
		metric.WithDescription("Number of messages received on push channels"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	reconnects, err := meter.Int64Counter(
		"ambari_sync_push_reconnects_total",
		metric.WithDescription("Number of push connection re-establishments"),
		metric.WithUnit("{reconnect}"),
	)
	if err != nil {
		return nil, err
	}

	return &PushMetrics{
		messages:   messages,
		reconnects: reconnects,
	}, nil
}

// RecordMessage records a message delivered on destination
func (m *PushMetrics) RecordMessage(ctx context.Context, destination string) {
	if m == nil || m.messages == nil {
		return
	}

	m.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("destination", destination)))
}

// RecordReconnect records a reconnection of the push connection
func (m *PushMetrics) RecordReconnect(ctx context.Context) {
	if m == nil || m.reconnects == nil {
		return
	}

	m.reconnects.Add(ctx, 1)
}
