package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// NopMetricsRecorder drops every measurement.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

// metricTagKeys are the operation fields promoted to metric tags when set.
var metricTagKeys = []string{"integration", "webhook", "event"}

type logLevel int

const (
	levelInfo logLevel = iota
	levelWarn
	levelError
)

// Observer logs operation outcomes and records their counters and latency
// histograms. The zero value is usable and silent.
type Observer struct {
	Logger  Logger
	Metrics MetricsRecorder
	// Namespace prefixes metric names, e.g. "integrations".
	Namespace string
}

func NewObserver(logger Logger, metrics MetricsRecorder, namespace string) Observer {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "integrations"
	}
	return Observer{Logger: logger, Metrics: metrics, Namespace: namespace}
}

// Operation records <operation>.total and <operation>.duration_ms and logs
// the outcome at info, or error when err is set.
func (o Observer) Operation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt)

	entry := make(map[string]any, len(fields)+4)
	maps.Copy(entry, fields)
	entry["event_type"] = operation
	entry["status"] = status
	entry["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		entry["error"] = err.Error()
	}

	tags := map[string]string{"operation": operation, "status": status}
	for _, key := range metricTagKeys {
		raw, ok := entry[key]
		if !ok || raw == nil {
			continue
		}
		if value := strings.TrimSpace(fmt.Sprint(raw)); value != "" {
			tags[key] = value
		}
	}

	o.Counter(ctx, operation+".total", 1, tags)
	o.Histogram(ctx, operation+".duration_ms", float64(elapsed.Milliseconds()), tags)

	if err != nil {
		o.log(ctx, levelError, operation+" failed", entry)
		return
	}
	o.log(ctx, levelInfo, operation+" succeeded", entry)
}

func (o Observer) Info(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, levelInfo, message, fields)
}

func (o Observer) Warn(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, levelWarn, message, fields)
}

func (o Observer) Error(ctx context.Context, message string, fields map[string]any) {
	o.log(ctx, levelError, message, fields)
}

// log redacts fields once and hands them to the logger both as structured
// fields, when supported, and as key/value pairs.
func (o Observer) log(ctx context.Context, level logLevel, message string, fields map[string]any) {
	if o.Logger == nil {
		return
	}
	safe := RedactSensitiveMap(fields)
	logger := o.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if withFields, ok := logger.(FieldsLogger); ok {
		logger = withFields.WithFields(safe)
	}
	args := flattenFields(safe)
	switch level {
	case levelError:
		logger.Error(message, args...)
	case levelWarn:
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (o Observer) Counter(ctx context.Context, name string, value int64, tags map[string]string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.IncCounter(ctx, o.metricName(name), value, copyTags(tags))
}

func (o Observer) Histogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.ObserveHistogram(ctx, o.metricName(name), value, copyTags(tags))
}

func (o Observer) metricName(name string) string {
	name = strings.TrimSpace(name)
	if namespace := strings.TrimSpace(o.Namespace); namespace != "" {
		return namespace + "." + name
	}
	return name
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	maps.Copy(out, tags)
	return out
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

// normalizeOperation lower-cases operation and folds spaces and dashes to
// underscores so metric names stay stable.
func normalizeOperation(operation string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
}
