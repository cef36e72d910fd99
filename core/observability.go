package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

const metricPrefix = "mintflow."

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

// outcomeLabel maps an operation error onto the status tag.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsTimeoutError(err):
		return "timeout"
	}
	return "failure"
}

// observeOperation emits the counter, duration and log line for one
// service operation. Timeouts log at warn since the ledger may still settle.
func (s *Service) observeOperation(ctx context.Context, startedAt time.Time, operation string, err error, fields map[string]any) {
	if s == nil {
		return
	}
	operation = metricName(operation)
	elapsed := time.Since(startedAt).Milliseconds()
	status := outcomeLabel(err)

	tags := map[string]string{"operation": operation, "status": status}
	for _, key := range []string{"stage", "kind", "chain"} {
		if value, ok := fields[key]; ok && value != nil {
			if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
				tags[key] = text
			}
		}
	}

	entry := RedactSensitiveMap(fields)
	entry["event_type"] = operation
	entry["status"] = status
	entry["duration_ms"] = elapsed
	level, message := levelInfo, operation+" succeeded"
	if err != nil {
		entry["error"] = err.Error()
		if code := TextCode(err); code != "" {
			entry["error_code"] = code
			tags["error_code"] = code
		}
		level, message = levelError, operation+" failed"
		if status == "timeout" {
			level, message = levelWarn, operation+" timed out"
		}
	}

	if s.metricsRecorder != nil {
		s.metricsRecorder.IncCounter(ctx, metricPrefix+operation+".total", 1, maps.Clone(tags))
		s.metricsRecorder.ObserveHistogram(ctx, metricPrefix+operation+".duration_ms", float64(elapsed), maps.Clone(tags))
	}
	s.log(ctx, level, message, entry)
}

func (s *Service) log(ctx context.Context, level logLevel, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if scoped, ok := logger.(FieldsLogger); ok {
		logger = scoped.WithFields(maps.Clone(fields))
	}
	args := flattenFields(fields)
	switch level {
	case levelDebug:
		logger.Debug(message, args...)
	case levelWarn:
		logger.Warn(message, args...)
	case levelError:
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

// flattenFields turns fields into sorted key/value pairs.
func flattenFields(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

func metricName(operation string) string {
	operation = strings.ToLower(strings.TrimSpace(operation))
	operation = strings.NewReplacer(" ", "_", "-", "_").Replace(operation)
	if operation == "" {
		return "unknown"
	}
	return operation
}
