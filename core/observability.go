package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

// searchOutcome classifies a finished search for metrics and log level.
// Caller mistakes and throttling are not service failures.
type searchOutcome struct {
	status string
	level  string
}

func classifySearchError(err error) searchOutcome {
	switch {
	case err == nil:
		return searchOutcome{status: "success", level: "debug"}
	case hasTextCode(err, SearchErrorRateLimited):
		return searchOutcome{status: "throttled", level: "warn"}
	case hasTextCode(err, SearchErrorInvalidFragment),
		hasTextCode(err, SearchErrorArithmetic),
		hasTextCode(err, SearchErrorBadInput):
		return searchOutcome{status: "rejected", level: "warn"}
	default:
		return searchOutcome{status: "failure", level: "error"}
	}
}

// observeSearch records one log line plus a counter and a latency histogram
// per search call. Tags stay low cardinality: the fragment and cursor only
// go to the log fields.
func (s *Service) observeSearch(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	outcome := classifySearchError(err)
	elapsed := time.Since(startedAt)

	logFields := cloneFields(fields)
	logFields["operation"] = operation
	logFields["status"] = outcome.status
	logFields["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		logFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    outcome.status,
	}
	for _, key := range []string{"org_id", "collection", "range_kind"} {
		if value := strings.TrimSpace(fmt.Sprint(logFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}

	s.recordCounter(ctx, "search."+operation+".total", 1, tags)
	s.recordHistogram(ctx, "search."+operation+".duration_ms", float64(elapsed.Milliseconds()), tags)
	if hidden, ok := logFields["hidden"].(int); ok && hidden > 0 {
		s.recordCounter(ctx, "search."+operation+".hidden", int64(hidden), tags)
	}

	message := operation + " succeeded"
	switch outcome.status {
	case "failure":
		message = operation + " failed"
	case "rejected", "throttled":
		message = operation + " " + outcome.status
	}
	s.logWithLevel(ctx, outcome.level, message, logFields)
}

func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
